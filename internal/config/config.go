// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/bethropolis/spanedit/internal/core/loose"
	"github.com/bethropolis/spanedit/internal/generate"
	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/render"
)

// Config holds the application's combined configuration.
type Config struct {
	Logger     logger.Config    `toml:"logger"`
	Menu       MenuConfig       `toml:"menu"`
	History    HistoryConfig    `toml:"history"`
	Resolve    ResolveConfig    `toml:"resolve"`
	Render     RenderConfig     `toml:"render"`
	Generation GenerationConfig `toml:"generation"`
	Store      StoreConfig      `toml:"store"`
	Clipboard  ClipboardConfig  `toml:"clipboard"`
	Chat       ChatConfig       `toml:"chat"`
	UI         UIConfig         `toml:"ui"`
}

// MenuConfig selects the actions offered for a selection.
type MenuConfig struct {
	ShowDelete   bool `toml:"show_delete"`
	ShowRewrite  bool `toml:"show_rewrite"`
	ShowGenerate bool `toml:"show_generate"`
}

// HistoryConfig sizes the undo ledger.
type HistoryConfig struct {
	Capacity int `toml:"capacity"`
}

// ResolveConfig tunes the selection resolver fallbacks.
type ResolveConfig struct {
	FuzzyFallback  bool    `toml:"fuzzy_fallback"`
	FuzzyThreshold float64 `toml:"fuzzy_threshold"`
}

// Matcher builds the loose matcher these settings describe.
func (r ResolveConfig) Matcher() loose.Matcher {
	return loose.Matcher{Fuzzy: r.FuzzyFallback, Threshold: r.FuzzyThreshold}
}

// RenderConfig picks the renderer.
type RenderConfig struct {
	Engine string `toml:"engine"`
}

// GenerationConfig describes the generation back-end. An empty Backend
// disables generated rewrites.
type GenerationConfig struct {
	Backend        string                     `toml:"backend"`
	Endpoint       string                     `toml:"endpoint"`
	Model          string                     `toml:"model"`
	APIKeyEnv      string                     `toml:"api_key_env"`
	Stream         bool                       `toml:"stream"`
	MaxTokens      int                        `toml:"max_tokens"`
	Temperature    float64                    `toml:"temperature"`
	Timeout        time.Duration              `toml:"timeout"`
	Preset         string                     `toml:"preset"`
	PromptTemplate string                     `toml:"prompt_template"`
	Presets        map[string]generate.Preset `toml:"presets"`
}

// Enabled reports whether a back-end is configured.
func (g GenerationConfig) Enabled() bool { return g.Backend != "" }

// BackendConfig returns the connection settings, reading the API key from
// the configured environment variable.
func (g GenerationConfig) BackendConfig() generate.Config {
	cfg := generate.Config{Endpoint: g.Endpoint, Timeout: g.Timeout}
	if g.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(g.APIKeyEnv)
	}
	return cfg
}

// Options returns the base sampling options.
func (g GenerationConfig) Options() generate.Options {
	return generate.Options{
		Model:       g.Model,
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
		Stream:      g.Stream,
	}
}

// Settings builds the shared generation settings with the configured presets.
func (g GenerationConfig) Settings() *generate.Settings {
	return generate.NewSettings(g.Options(), g.PromptTemplate, g.Presets)
}

// StoreConfig selects the message store.
type StoreConfig struct {
	Kind   string        `toml:"kind"`
	Watch  bool          `toml:"watch"`
	Settle time.Duration `toml:"settle"`
}

// KindFor returns the store kind to use for path, resolving the automatic
// setting by file extension.
func (s StoreConfig) KindFor(path string) string {
	if s.Kind != StoreAuto {
		return s.Kind
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return StoreSQLite
	}
	return StoreJSONL
}

// ClipboardConfig controls system clipboard use.
type ClipboardConfig struct {
	System bool `toml:"system"`
}

// ChatConfig holds names substituted into rendered messages and the chat
// opened from a database.
type ChatConfig struct {
	UserName string `toml:"user_name"`
	CharName string `toml:"char_name"`
	ChatID   string `toml:"chat_id"`
}

// UIConfig holds terminal view settings.
type UIConfig struct {
	ThemeFile      string        `toml:"theme_file"`
	MessageTimeout time.Duration `toml:"message_timeout"`
}

var (
	loadedConfig *Config
	loadOnce     sync.Once
	loadErr      error
)

// NewDefaultConfig creates a Config struct with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Logger: logger.Config{
			LogLevel:    "info",
			LogFilePath: "", // Empty means default path logic in logger.OpenOutput applies
		},
		Menu:    MenuConfig{ShowDelete: true, ShowRewrite: true, ShowGenerate: true},
		History: HistoryConfig{Capacity: DefaultHistoryCapacity},
		Resolve: ResolveConfig{FuzzyThreshold: DefaultFuzzyThreshold},
		Render:  RenderConfig{Engine: render.EngineTreeSitter},
		Generation: GenerationConfig{
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
			Timeout:     DefaultGenerationTimeout,
		},
		Store:     StoreConfig{Kind: StoreAuto, Watch: true, Settle: DefaultWatchSettle},
		Clipboard: ClipboardConfig{System: true},
		Chat:      ChatConfig{UserName: "User", CharName: "Assistant"},
		UI:        UIConfig{MessageTimeout: MessageTimeout},
	}
}

// loadFromFile decodes a TOML file over cfg. A missing file is not an error.
func loadFromFile(filePath string, cfg *Config, verbose bool) error {
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		if verbose {
			logger.Debugf("Config file not found: %s", filePath)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("error checking config file '%s': %w", filePath, err)
	}

	metadata, err := toml.DecodeFile(filePath, cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", filePath, err)
	}
	if len(metadata.Undecoded()) > 0 && verbose {
		logger.Warnf("Config file '%s': Unrecognized keys: %v", filePath, metadata.Undecoded())
	}
	if verbose {
		logger.Infof("Successfully loaded configuration from: %s", filePath)
	}
	return nil
}

// validate resets invalid values to their defaults.
func (c *Config) validate() {
	defaults := NewDefaultConfig()

	if c.Logger.LogLevel == "" {
		c.Logger.LogLevel = defaults.Logger.LogLevel
	}
	if c.History.Capacity <= 0 {
		c.History.Capacity = defaults.History.Capacity
	}
	if c.Resolve.FuzzyThreshold <= 0 || c.Resolve.FuzzyThreshold > 1 {
		c.Resolve.FuzzyThreshold = defaults.Resolve.FuzzyThreshold
	}

	c.Render.Engine = strings.ToLower(c.Render.Engine)
	if c.Render.Engine != render.EngineTreeSitter && c.Render.Engine != render.EnginePlain {
		c.Render.Engine = defaults.Render.Engine
	}

	c.Store.Kind = strings.ToLower(c.Store.Kind)
	switch c.Store.Kind {
	case StoreAuto, StoreJSONL, StoreSQLite:
	default:
		c.Store.Kind = StoreAuto
	}
	if c.Store.Settle <= 0 {
		c.Store.Settle = defaults.Store.Settle
	}

	if c.UI.MessageTimeout <= 0 {
		c.UI.MessageTimeout = defaults.UI.MessageTimeout
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = defaults.Generation.MaxTokens
	}
	if c.Generation.Temperature < 0 {
		c.Generation.Temperature = defaults.Generation.Temperature
	}
	if c.Generation.Timeout <= 0 {
		c.Generation.Timeout = defaults.Generation.Timeout
	}
	if c.Generation.Preset != "" {
		if _, ok := c.Generation.Presets[c.Generation.Preset]; !ok {
			c.Generation.Preset = ""
		}
	}
}

// DefaultPath returns the config file location under the user config dir.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, AppName, DefaultConfigFileName)
}

// Load builds a configuration from defaults, the file at path (or the
// default location), flag overrides and validation.
func Load(path string, flags *Flags) (*Config, error) {
	cfg := NewDefaultConfig()

	if path == "" {
		path = DefaultPath()
	}
	var err error
	if path != "" {
		// The logger is not initialized yet, so stay quiet.
		err = loadFromFile(path, cfg, false)
	}

	if flags != nil {
		flags.ApplyOverrides(cfg, false)
	}
	cfg.validate()
	return cfg, err
}

// LoadConfig loads the configuration once and stores it for Get.
// It should be called only once, typically from main.
func LoadConfig(configFilePath string, flags *Flags) (*Config, error) {
	loadOnce.Do(func() {
		loadedConfig, loadErr = Load(configFilePath, flags)
	})
	return loadedConfig, loadErr
}

// Get returns the loaded application configuration. Panics if LoadConfig wasn't called.
func Get() *Config {
	if loadedConfig == nil {
		panic("config.Get() called before config.LoadConfig()")
	}
	return loadedConfig
}
