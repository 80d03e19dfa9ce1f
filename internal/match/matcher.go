// Package match decides whether an outbound URL is in scope for capture.
//
// Patterns are literal fragments: each one is quoted, the quoted fragments are
// joined into a single case-insensitive alternation, and a URL is in scope when
// any fragment occurs anywhere in it. An empty pattern list matches every URL.
// A pattern set that fails to compile also matches every URL.
package match

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/gozcu/internal/model"
)

// Matcher is a compiled pattern list. The zero value matches everything.
type Matcher struct {
	re       *regexp.Regexp
	patterns []string
}

// Compile builds a Matcher from patterns. On failure it returns a match-all
// Matcher together with an error wrapping model.ErrMatchCompilation.
func Compile(patterns []string) (*Matcher, error) {
	quoted := make([]string, 0, len(patterns))
	kept := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(p))
		kept = append(kept, p)
	}
	if len(quoted) == 0 {
		return &Matcher{}, nil
	}

	re, err := regexp.Compile("(?i)" + strings.Join(quoted, "|"))
	if err != nil {
		return &Matcher{}, fmt.Errorf("%w: %v", model.ErrMatchCompilation, err)
	}
	return &Matcher{re: re, patterns: kept}, nil
}

// MatchAll reports whether m accepts every URL.
func (m *Matcher) MatchAll() bool {
	return m == nil || m.re == nil
}

// Patterns returns the fragments m was compiled from.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// Match reports whether url contains one of the patterns. A nil Matcher matches everything.
func (m *Matcher) Match(url string) bool {
	if m.MatchAll() {
		return true
	}
	return m.re.MatchString(url)
}

// IsInScope compiles patterns and matches url in one step.
func IsInScope(url string, patterns []string) bool {
	m, _ := Compile(patterns)
	return m.Match(url)
}

// Engine holds the active Matcher and swaps it when the settings change.
type Engine struct {
	current atomic.Pointer[Matcher]
}

// NewEngine returns an Engine with patterns already compiled.
func NewEngine(patterns []string) *Engine {
	e := &Engine{}
	e.Reload(patterns)
	return e
}

// Reload recompiles the pattern list. A compile failure installs a match-all
// Matcher and is returned for reporting only.
func (e *Engine) Reload(patterns []string) error {
	m, err := Compile(patterns)
	if err != nil {
		log.Warn().
			Err(err).
			Int("patterns", len(patterns)).
			Msg("Pattern compilation failed, capturing all calls")
	}
	e.current.Store(m)
	return err
}

// Match reports whether url is in scope under the active patterns.
func (e *Engine) Match(url string) bool {
	return e.current.Load().Match(url)
}

func (e *Engine) Matcher() *Matcher {
	return e.current.Load()
}
