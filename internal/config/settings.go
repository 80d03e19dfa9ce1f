package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"golang.org/x/text/unicode/norm"
)

// CaptureSettings is the typed form of the api_log_settings value.
type CaptureSettings struct {
	URLs []string `json:"urls" mapstructure:"-"`
}

// Text renders the pattern list the way the settings form edits it: one per line.
func (s CaptureSettings) Text() string {
	return strings.Join(s.URLs, "\n")
}

// SettingsGateway supplies and persists the active pattern list.
type SettingsGateway interface {
	Load() CaptureSettings
	Save(raw any) (CaptureSettings, error)
	OnChange(fn func(CaptureSettings))
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// SettingsFrom sanitizes an untyped settings value into CaptureSettings.
func SettingsFrom(raw any) CaptureSettings {
	return CaptureSettings{URLs: SanitizeURLs(raw)}
}

// SanitizeURLs normalizes a newline-delimited string or a sequence into trimmed,
// text-sanitized patterns. Empty entries are dropped and any other shape yields nil.
func SanitizeURLs(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(strings.ReplaceAll(v, "\r\n", "\n"), "\n")
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			s, err := cast.ToStringE(item)
			if err != nil {
				continue
			}
			parts = append(parts, s)
		}
	default:
		return nil
	}

	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = sanitizeText(p); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

func sanitizeText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = norm.NFC.String(s)
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// ViperSettings keeps the pattern list under api_log_settings in the viper config
// and writes it back to the config file when one is in use.
type ViperSettings struct {
	mu        sync.RWMutex
	v         *viper.Viper
	current   CaptureSettings
	listeners []func(CaptureSettings)
}

func NewViperSettings(v *viper.Viper) *ViperSettings {
	return &ViperSettings{
		v:       v,
		current: SettingsFrom(v.Get(SettingsKey + ".urls")),
	}
}

func (s *ViperSettings) Load() CaptureSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CaptureSettings{URLs: append([]string(nil), s.current.URLs...)}
}

func (s *ViperSettings) Save(raw any) (CaptureSettings, error) {
	settings := SettingsFrom(raw)

	s.mu.Lock()
	s.v.Set(SettingsKey+".urls", settings.URLs)
	if s.v.ConfigFileUsed() != "" {
		if err := s.v.WriteConfig(); err != nil {
			s.mu.Unlock()
			return CaptureSettings{}, fmt.Errorf("failed to write settings: %w", err)
		}
	}
	s.current = settings
	listeners := append([]func(CaptureSettings){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(settings)
	}
	return settings, nil
}

func (s *ViperSettings) OnChange(fn func(CaptureSettings)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Watch reloads the pattern list whenever the config file changes on disk.
func (s *ViperSettings) Watch() {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		settings := SettingsFrom(s.v.Get(SettingsKey + ".urls"))

		s.mu.Lock()
		s.current = settings
		listeners := append([]func(CaptureSettings){}, s.listeners...)
		s.mu.Unlock()

		log.Info().
			Str("file", e.Name).
			Int("patterns", len(settings.URLs)).
			Msg("Capture settings reloaded")
		for _, fn := range listeners {
			fn(settings)
		}
	})
	s.v.WatchConfig()
}

// MemorySettings is a SettingsGateway without persistence.
type MemorySettings struct {
	mu        sync.RWMutex
	current   CaptureSettings
	listeners []func(CaptureSettings)
}

func NewMemorySettings(raw any) *MemorySettings {
	return &MemorySettings{current: SettingsFrom(raw)}
}

func (s *MemorySettings) Load() CaptureSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CaptureSettings{URLs: append([]string(nil), s.current.URLs...)}
}

func (s *MemorySettings) Save(raw any) (CaptureSettings, error) {
	settings := SettingsFrom(raw)
	s.mu.Lock()
	s.current = settings
	listeners := append([]func(CaptureSettings){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(settings)
	}
	return settings, nil
}

func (s *MemorySettings) OnChange(fn func(CaptureSettings)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
