// internal/config/flags.go
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/bethropolis/spanedit/internal/logger"
)

// Flags holds values parsed from command-line flags.
// Use pointers to distinguish between unset flags and zero-value flags.
type Flags struct {
	set *flag.FlagSet

	ConfigFilePath  *string
	Version         *bool
	LogLevel        *string
	LogFilePath     *string
	EnableTags      *string
	DisableTags     *string
	EnablePkgs      *string
	DisablePkgs     *string
	Engine          *string
	Backend         *string
	Endpoint        *string
	Model           *string
	Preset          *string
	Stream          *bool
	Fuzzy           *bool
	Watch           *bool
	SystemClipboard *bool
	ChatID          *string
}

// NewFlags defines the command-line flags on a new flag set.
func NewFlags(name string) *Flags {
	f := &Flags{set: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.DefineFlags()
	return f
}

// DefineFlags sets up the command-line flags and associates them with the Flags struct fields.
func (f *Flags) DefineFlags() {
	fs := f.set
	f.ConfigFilePath = fs.String("config", "", fmt.Sprintf("Path to TOML configuration file (default ~/.config/%s/%s)", AppName, DefaultConfigFileName))
	f.Version = fs.Bool("version", false, "Show version information and exit")
	f.LogLevel = fs.String("loglevel", "", "Log level (debug, info, warn, error) - Overrides config file")
	f.LogFilePath = fs.String("logfile", "", "Path to write log file (use '-' for stderr) - Overrides config file")
	f.EnableTags = fs.String("log-tags", "", "Comma-separated list of tags to enable - Overrides config file")
	f.DisableTags = fs.String("log-disable-tags", "", "Comma-separated list of tags to disable - Overrides config file")
	f.EnablePkgs = fs.String("log-packages", "", "Comma-separated list of packages to enable - Overrides config file")
	f.DisablePkgs = fs.String("log-disable-packages", "", "Comma-separated list of packages to disable - Overrides config file")
	f.Engine = fs.String("render", "", "Renderer engine (treesitter, plain) - Overrides config file")
	f.Backend = fs.String("backend", "", "Generation back-end (chat, text, simple) - Overrides config file")
	f.Endpoint = fs.String("endpoint", "", "Generation endpoint URL - Overrides config file")
	f.Model = fs.String("model", "", "Generation model - Overrides config file")
	f.Preset = fs.String("preset", "", "Preset applied to generated rewrites - Overrides config file")
	f.Stream = fs.Bool("stream", false, "Stream generated text - Overrides config file")
	f.Fuzzy = fs.Bool("fuzzy", false, "Enable the fuzzy match fallback - Overrides config file")
	f.Watch = fs.Bool("watch", true, "Watch the chat file for external edits - Overrides config file")
	f.SystemClipboard = fs.Bool("system-clipboard", true, "Use the system clipboard - Overrides config file")
	f.ChatID = fs.String("chat", "", "Chat id to open from a database - Overrides config file")
}

// ParseFlags parses args into the Flags struct and returns the remaining
// non-flag arguments (e.g., the chat path).
func (f *Flags) ParseFlags(args []string) ([]string, error) {
	if err := f.set.Parse(args); err != nil {
		return nil, err
	}
	return f.set.Args(), nil
}

// ApplyOverrides updates the Config struct with values from flags *if* they were set.
func (f *Flags) ApplyOverrides(cfg *Config, verbose bool) {
	// Visit only processes flags that were actually set
	f.set.Visit(func(fl *flag.Flag) {
		if verbose {
			logger.DebugTagf("config", "Applying flag override: %s", fl.Name)
		}
		switch fl.Name {
		case "loglevel":
			if *f.LogLevel != "" {
				cfg.Logger.LogLevel = *f.LogLevel
			}
		case "logfile":
			cfg.Logger.LogFilePath = *f.LogFilePath // Empty string is valid
		case "log-tags":
			cfg.Logger.EnabledTags = splitCommaList(*f.EnableTags)
		case "log-disable-tags":
			cfg.Logger.DisabledTags = splitCommaList(*f.DisableTags)
		case "log-packages":
			cfg.Logger.EnabledPackages = splitCommaList(*f.EnablePkgs)
		case "log-disable-packages":
			cfg.Logger.DisabledPackages = splitCommaList(*f.DisablePkgs)
		case "render":
			if *f.Engine != "" {
				cfg.Render.Engine = *f.Engine
			}
		case "backend":
			cfg.Generation.Backend = *f.Backend
		case "endpoint":
			cfg.Generation.Endpoint = *f.Endpoint
		case "model":
			cfg.Generation.Model = *f.Model
		case "preset":
			cfg.Generation.Preset = *f.Preset
		case "stream":
			cfg.Generation.Stream = *f.Stream
		case "fuzzy":
			cfg.Resolve.FuzzyFallback = *f.Fuzzy
		case "watch":
			cfg.Store.Watch = *f.Watch
		case "system-clipboard":
			cfg.Clipboard.System = *f.SystemClipboard
		case "chat":
			cfg.Chat.ChatID = *f.ChatID
		}
	})
}

// Helper function to split comma-separated list
func splitCommaList(list string) []string {
	if list == "" {
		return nil
	}
	items := strings.Split(list, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
