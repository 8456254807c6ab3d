package generate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bethropolis/spanedit/internal/logger"
)

// Preset overrides generation options. Zero fields keep the base value.
type Preset struct {
	Model       string   `toml:"model"`
	MaxTokens   int      `toml:"max_tokens"`
	Temperature *float64 `toml:"temperature"`
	Template    string   `toml:"prompt_template"`
}

// Settings is the shared generation state: base options, the prompt
// template and the preset currently applied on top of them.
type Settings struct {
	mu       sync.Mutex
	base     Options
	template string
	presets  map[string]Preset
	active   string
}

// NewSettings creates settings from base options and named presets.
func NewSettings(base Options, template string, presets map[string]Preset) *Settings {
	p := make(map[string]Preset, len(presets))
	for k, v := range presets {
		p[k] = v
	}
	return &Settings{base: base, template: template, presets: p}
}

// Active returns the name of the applied preset, "" for none.
func (s *Settings) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Presets returns the preset names, sorted.
func (s *Settings) Presets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.presets))
	for name := range s.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Current returns the effective options and template.
func (s *Settings) Current() (Options, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts, tmpl := s.base, s.template
	if p, ok := s.presets[s.active]; ok {
		if p.Model != "" {
			opts.Model = p.Model
		}
		if p.MaxTokens > 0 {
			opts.MaxTokens = p.MaxTokens
		}
		if p.Temperature != nil {
			opts.Temperature = *p.Temperature
		}
		if p.Template != "" {
			tmpl = p.Template
		}
	}
	return opts, tmpl
}

// Swap applies the named preset and returns a function restoring the
// previous one. An empty name leaves the settings alone.
func (s *Settings) Swap(name string) (restore func(), err error) {
	if name == "" {
		return func() {}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.presets[name]; !ok {
		return func() {}, &Error{Kind: KindPreset, Err: fmt.Errorf("preset %q not found", name)}
	}
	prev := s.active
	s.active = name
	logger.DebugTagf("generate", "Preset swapped: %q -> %q", prev, name)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.active = prev
		logger.DebugTagf("generate", "Preset restored: %q", prev)
	}, nil
}
