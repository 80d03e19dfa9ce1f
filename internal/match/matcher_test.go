package match

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuncerburak97/gozcu/internal/config"
)

func TestIsInScope_EmptyPatternsMatchEverything(t *testing.T) {
	for _, url := range []string{"", "https://example.com", "ftp://x", "not a url"} {
		assert.True(t, IsInScope(url, nil), url)
		assert.True(t, IsInScope(url, []string{}), url)
	}
}

func TestIsInScope_CaseInsensitiveSubstring(t *testing.T) {
	assert.True(t, IsInScope("https://API.Example.com/x", []string{"example.com"}))
	assert.True(t, IsInScope("https://api.example.com/x", []string{"EXAMPLE.COM"}))
	assert.True(t, IsInScope("https://license.vendor.io/v1/check", []string{"other.org", "/v1/check"}))
}

func TestIsInScope_DefaultPatternsAreBroad(t *testing.T) {
	assert.True(t, IsInScope("https://license.vendor.io/check", config.DefaultPatterns))
	assert.True(t, IsInScope("https://example.com/licenses", config.DefaultPatterns))
	assert.False(t, IsInScope("https://example.com/billing", config.DefaultPatterns))
}

func TestIsInScope_NoMatch(t *testing.T) {
	assert.False(t, IsInScope("https://other.org", []string{"example.com"}))
}

func TestIsInScope_MetacharactersAreLiteral(t *testing.T) {
	patterns := []string{"a.b+c"}

	assert.True(t, IsInScope("https://host/a.b+c/path", patterns))
	assert.False(t, IsInScope("https://host/aXbbbc/path", patterns))
	assert.False(t, IsInScope("https://host/abc", patterns))

	assert.True(t, IsInScope("https://h/q?x=(1|2)", []string{"(1|2)"}))
	assert.False(t, IsInScope("https://h/q?x=1", []string{"(1|2)"}))
	assert.False(t, IsInScope("https://h/anything", []string{".*"}))
	assert.True(t, IsInScope("https://h/a[b]", []string{"[b]"}))
	assert.True(t, IsInScope(`https://h/a\d`, []string{`\d`}))
	assert.False(t, IsInScope("https://h/a5", []string{`\d`}))
}

func TestCompile_DropsEmptyPatterns(t *testing.T) {
	m, err := Compile([]string{"", "example.com", ""})
	require.NoError(t, err)
	assert.False(t, m.MatchAll())
	assert.Equal(t, []string{"example.com"}, m.Patterns())
	assert.False(t, m.Match("https://other.org"))

	m, err = Compile([]string{""})
	require.NoError(t, err)
	assert.True(t, m.MatchAll())
}

func TestCompile_FailureFailsOpen(t *testing.T) {
	// RE2 refuses expressions beyond its size limit.
	huge := []string{strings.Repeat("x", 1<<20)}
	for i := 0; i < 200; i++ {
		huge = append(huge, strings.Repeat("y", 1<<16)+string(rune('a'+i%26)))
	}

	m, err := Compile(huge)
	if err == nil {
		t.Skip("regexp accepted the oversized pattern set")
	}
	assert.ErrorContains(t, err, "match pattern compilation failed")
	assert.True(t, m.MatchAll())
	assert.True(t, m.Match("https://anything.example"))
}

func TestNilMatcherMatchesEverything(t *testing.T) {
	var m *Matcher
	assert.True(t, m.Match("https://example.com"))
	assert.Nil(t, m.Patterns())
}

func TestEngine_Reload(t *testing.T) {
	e := NewEngine([]string{"example.com"})
	assert.True(t, e.Match("https://example.com/a"))
	assert.False(t, e.Match("https://other.org/a"))

	require.NoError(t, e.Reload([]string{"other.org"}))
	assert.False(t, e.Match("https://example.com/a"))
	assert.True(t, e.Match("https://other.org/a"))

	require.NoError(t, e.Reload(nil))
	assert.True(t, e.Match("https://example.com/a"))
}

func TestEngine_ConcurrentReloadAndMatch(t *testing.T) {
	e := NewEngine([]string{"a"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				e.Match("https://a.example")
			}
		}()
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = e.Reload([]string{"example", string(rune('a' + i))})
			}
		}(i)
	}
	wg.Wait()
	assert.True(t, e.Match("https://a.example"))
}
