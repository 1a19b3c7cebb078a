// Package settings exposes the user-tunable values read by the monitor and
// keeps them current while the config file changes.
package settings

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-focus-must-flow/internal/config"
	"github.com/Veraticus/the-focus-must-flow/internal/escalation"
	"github.com/Veraticus/the-focus-must-flow/internal/judge"
	"github.com/Veraticus/the-focus-must-flow/internal/model"
	"github.com/Veraticus/the-focus-must-flow/internal/sampler"
)

// Keys.
const (
	KeyGraceSeconds    = "scorer.grace_seconds"
	KeyPersistence     = "scorer.persistence"
	KeyCooldownSeconds = "scorer.cooldown_seconds"

	KeyTone    = "nudge.tone"
	KeyPersona = "nudge.persona"
	KeyEmoji   = "nudge.emoji"

	KeySampleInterval = "sampler.interval"
	KeyOCREvery       = "sampler.ocr_every"

	KeyEscalationWindow     = "escalation.window"
	KeyEscalationMinGap     = "escalation.min_gap"
	KeyEscalationTimeout    = "escalation.timeout"
	KeyEscalationConfidence = "escalation.confidence"

	KeyJudgeEndpoint  = "judge.endpoint"
	KeyJudgeAPIKey    = "judge.api_key"
	KeyJudgeRateLimit = "judge.requests_per_minute"

	KeyAppCommand   = "probes.app_command"
	KeyTitleCommand = "probes.title_command"
	KeyURLCommand   = "probes.url_command"
	KeyOCRCommand   = "probes.ocr_command"
	KeyCDPURL       = "probes.cdp_url"

	KeyCatalogOverrides = "catalog.overrides"
	KeyJournalPath      = "journal.path"
	KeyLogLevel         = "logging.level"
	KeyLogFormat        = "logging.format"
)

// Edit bounds.
const (
	MaxGraceSeconds    = 3600
	MinPersistence     = 1
	MaxPersistence     = 10
	MaxCooldownSeconds = 86400
	MaxPersonaRunes    = 40
)

// Default probe commands for macOS.
const (
	defaultAppCommand = `osascript -e 'tell application "System Events" to set p to first application process whose frontmost is true' ` +
		`-e 'return (name of p) & "|" & (bundle identifier of p)'`
	defaultTitleCommand = `osascript -e 'tell application "System Events" to tell (first application process whose frontmost is true) ` +
		`to if (count of windows) > 0 then return name of front window'`
	defaultURLCommand = `osascript -e 'tell application "System Events" to set n to name of first application process whose frontmost is true' ` +
		`-e 'if n is "Safari" then tell application "Safari" to return URL of front document' ` +
		`-e 'if n is in {"Google Chrome", "Arc", "Brave Browser", "Microsoft Edge", "Vivaldi", "Opera"} then ` +
		`tell application n to return URL of active tab of front window'`
)

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	scorer := model.DefaultScorerConfig()
	esc := escalation.DefaultConfig()

	v.SetDefault(KeyGraceSeconds, int(scorer.Grace/time.Second))
	v.SetDefault(KeyPersistence, scorer.Persistence)
	v.SetDefault(KeyCooldownSeconds, int(scorer.Cooldown/time.Second))

	v.SetDefault(KeyTone, string(model.ToneGentle))
	v.SetDefault(KeyPersona, "")
	v.SetDefault(KeyEmoji, true)

	v.SetDefault(KeySampleInterval, sampler.DefaultInterval)
	v.SetDefault(KeyOCREvery, 0)

	v.SetDefault(KeyEscalationWindow, esc.Window)
	v.SetDefault(KeyEscalationMinGap, esc.MinGap)
	v.SetDefault(KeyEscalationTimeout, esc.Timeout)
	v.SetDefault(KeyEscalationConfidence, esc.Confidence)

	v.SetDefault(KeyJudgeEndpoint, "")
	v.SetDefault(KeyJudgeAPIKey, "")
	v.SetDefault(KeyJudgeRateLimit, 12)

	v.SetDefault(KeyAppCommand, defaultAppCommand)
	v.SetDefault(KeyTitleCommand, defaultTitleCommand)
	v.SetDefault(KeyURLCommand, defaultURLCommand)
	v.SetDefault(KeyOCRCommand, "")
	v.SetDefault(KeyCDPURL, "")

	v.SetDefault(KeyCatalogOverrides, "")
	v.SetDefault(KeyJournalPath, "~/.local/share/focus/journal.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// ProbeCommands are the shell commands behind each signal probe.
type ProbeCommands struct {
	App    string
	Title  string
	URL    string
	OCR    string
	CDPURL string
}

// Store reads settings from a viper instance. Reads are safe for concurrent
// use with Set and with config file reloads.
type Store struct {
	v         *viper.Viper
	listeners []func()
	mu        sync.RWMutex
}

// New wraps v, registering defaults for any key it does not already carry.
func New(v *viper.Viper) *Store {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	return &Store{v: v}
}

// Viper returns the underlying instance.
func (s *Store) Viper() *viper.Viper {
	return s.v
}

// Subscribe registers fn to run after every change.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Scorer returns the hysteresis settings, clamped to their edit bounds.
func (s *Store) Scorer() model.ScorerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.ScorerConfig{
		Grace:       time.Duration(clampInt(s.v.GetInt(KeyGraceSeconds), 0, MaxGraceSeconds)) * time.Second,
		Persistence: clampInt(s.v.GetInt(KeyPersistence), MinPersistence, MaxPersistence),
		Cooldown:    time.Duration(clampInt(s.v.GetInt(KeyCooldownSeconds), 0, MaxCooldownSeconds)) * time.Second,
	}
}

// Preferences returns the nudge presentation settings.
func (s *Store) Preferences() model.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.Preferences{
		Tone:    model.ParseTone(s.v.GetString(KeyTone)),
		Persona: cleanPersona(s.v.GetString(KeyPersona)),
		Emoji:   s.v.GetBool(KeyEmoji),
	}
}

// Sampler returns the polling settings.
func (s *Store) Sampler() sampler.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sampler.ClampConfig(sampler.Config{
		Interval: s.v.GetDuration(KeySampleInterval),
		OCREvery: s.v.GetInt(KeyOCREvery),
	})
}

// Escalation returns the coordinator settings. Non-positive values fall back to defaults.
func (s *Store) Escalation() escalation.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := escalation.DefaultConfig()
	if d := s.v.GetDuration(KeyEscalationWindow); d > 0 {
		cfg.Window = d
	}
	if d := s.v.GetDuration(KeyEscalationMinGap); d > 0 {
		cfg.MinGap = d
	}
	if d := s.v.GetDuration(KeyEscalationTimeout); d > 0 {
		cfg.Timeout = d
	}
	if c := s.v.GetFloat64(KeyEscalationConfidence); c >= 0 && c <= 1 {
		cfg.Confidence = c
	}
	return cfg
}

// Judge returns the transport settings. An empty endpoint disables escalation.
func (s *Store) Judge() judge.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return judge.Config{
		Endpoint:          strings.TrimSpace(s.v.GetString(KeyJudgeEndpoint)),
		APIKey:            strings.TrimSpace(s.v.GetString(KeyJudgeAPIKey)),
		Timeout:           s.v.GetDuration(KeyEscalationTimeout),
		RequestsPerMinute: max(0, s.v.GetInt(KeyJudgeRateLimit)),
	}
}

// Probes returns the probe commands.
func (s *Store) Probes() ProbeCommands {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ProbeCommands{
		App:    s.v.GetString(KeyAppCommand),
		Title:  s.v.GetString(KeyTitleCommand),
		URL:    s.v.GetString(KeyURLCommand),
		OCR:    s.v.GetString(KeyOCRCommand),
		CDPURL: strings.TrimSpace(s.v.GetString(KeyCDPURL)),
	}
}

// CatalogOverridesPath returns the expanded override file path, or "".
func (s *Store) CatalogOverridesPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return config.ExpandPath(strings.TrimSpace(s.v.GetString(KeyCatalogOverrides)))
}

// JournalPath returns the expanded journal database path.
func (s *Store) JournalPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return config.ExpandPath(strings.TrimSpace(s.v.GetString(KeyJournalPath)))
}

// Set changes one value, clamping bounded keys, and notifies subscribers.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.v.Set(key, clampValue(key, value))
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func clampValue(key string, value any) any {
	switch key {
	case KeyGraceSeconds:
		return clampInt(cast.ToInt(value), 0, MaxGraceSeconds)
	case KeyPersistence:
		return clampInt(cast.ToInt(value), MinPersistence, MaxPersistence)
	case KeyCooldownSeconds:
		return clampInt(cast.ToInt(value), 0, MaxCooldownSeconds)
	case KeyTone:
		return string(model.ParseTone(cast.ToString(value)))
	case KeyPersona:
		return cleanPersona(cast.ToString(value))
	default:
		return value
	}
}

func (s *Store) reload() error {
	s.mu.Lock()
	err := s.v.ReadInConfig()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, fn := range listeners {
		fn()
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func cleanPersona(p string) string {
	p = strings.Join(strings.Fields(p), " ")
	if utf8.RuneCountInString(p) <= MaxPersonaRunes {
		return p
	}
	return strings.TrimSpace(string([]rune(p)[:MaxPersonaRunes]))
}
