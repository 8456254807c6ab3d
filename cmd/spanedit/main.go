// cmd/spanedit/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	stlog "log" // Use standard log for FATAL errors before logger is ready
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bethropolis/spanedit/internal/app"
	"github.com/bethropolis/spanedit/internal/chat"
	"github.com/bethropolis/spanedit/internal/clipboard"
	"github.com/bethropolis/spanedit/internal/config"
	"github.com/bethropolis/spanedit/internal/event"
	"github.com/bethropolis/spanedit/internal/generate"
	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/render"
	"github.com/bethropolis/spanedit/internal/session"
	"github.com/bethropolis/spanedit/internal/theme"
)

var version = "dev"

func main() {
	// --- Argument & Flag Parsing ---
	flags := config.NewFlags(config.AppName)
	args, err := flags.ParseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if *flags.Version {
		fmt.Printf("%s %s\n", config.AppName, version)
		return
	}
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <chat.jsonl | chats.db>\n", config.AppName)
		os.Exit(2)
	}
	chatPath := args[0]

	cfg, err := config.LoadConfig(*flags.ConfigFilePath, flags)
	if err != nil {
		stlog.Printf("Warning: %v (using defaults)", err)
	}

	// --- Logger Initialization ---
	logPath := cfg.Logger.LogFilePath
	if logPath == "" {
		logPath = defaultLogPath()
	}
	output, closeLog, err := logger.OpenOutput(logPath)
	if err != nil {
		stlog.Fatalf("Failed to open log output: %v", err)
	}
	defer closeLog()
	logger.Init(cfg.Logger, output)

	logger.Infof("Starting %s %s...", config.AppName, version)
	logger.Debugf("Log file: %s", logPath)
	logger.Debugf("Chat path: %s", chatPath)

	if err := run(cfg, chatPath); err != nil {
		logger.Errorf("Application exited with error: %v", err)
		closeLog()
		fmt.Fprintf(os.Stderr, "%s: %v\n", config.AppName, err)
		os.Exit(1)
	}
	logger.Infof("%s finished.", config.AppName)
}

func run(cfg *config.Config, chatPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, chatPath)
	if err != nil {
		return err
	}
	defer closeStore()

	events := event.NewManager()

	if r, ok := store.(chat.Reloadable); ok && cfg.Store.Watch {
		w, err := chat.NewWatcher(r, events, cfg.Store.Settle)
		if err != nil {
			logger.Warnf("File watching disabled: %v", err)
		} else if err := w.Start(); err != nil {
			logger.Warnf("File watching disabled: %v", err)
		} else {
			defer w.Stop()
		}
	}

	renderer, err := render.New(cfg.Render.Engine)
	if err != nil {
		return err
	}

	var backend generate.Backend
	if cfg.Generation.Enabled() {
		client := &http.Client{Timeout: cfg.Generation.Timeout}
		backend, err = generate.NewRegistry().New(cfg.Generation.Backend, cfg.Generation.BackendConfig(), client)
		if err != nil {
			return fmt.Errorf("generation back-end: %w", err)
		}
		logger.Infof("Generation back-end: %s", backend.Name())
	}

	th := theme.GetCurrentTheme()
	if cfg.UI.ThemeFile != "" {
		loaded, err := theme.LoadThemeFromFile(cfg.UI.ThemeFile)
		if err != nil {
			logger.Warnf("Failed to load theme %s: %v", cfg.UI.ThemeFile, err)
		} else {
			theme.SetCurrentTheme(loaded)
			th = loaded
		}
	}

	clip := clipboard.NewManager(cfg.Clipboard.System)

	// --- Create and Run App ---
	spanApp, err := app.New(app.Options{
		Store:          store,
		Clipboard:      clip,
		Theme:          th,
		MessageTimeout: cfg.UI.MessageTimeout,
	})
	if err != nil {
		return err
	}

	sess := session.New(session.Options{
		Store:           store,
		Renderer:        renderer,
		Events:          events,
		Notifier:        spanApp,
		Backend:         backend,
		Settings:        cfg.Generation.Settings(),
		Preset:          cfg.Generation.Preset,
		HistoryCapacity: cfg.History.Capacity,
		Matcher:         cfg.Resolve.Matcher(),
		Menu: session.Menu{
			Delete:   cfg.Menu.ShowDelete,
			Rewrite:  cfg.Menu.ShowRewrite,
			Generate: cfg.Menu.ShowGenerate,
		},
		Clipboard: clip,
		UserName:  cfg.Chat.UserName,
		CharName:  cfg.Chat.CharName,
	})
	defer sess.Close()
	spanApp.SetSession(sess)
	events.Dispatch(event.TypeChatLoaded, event.ChatData{ChatID: store.ChatID(), Path: chatPath})

	return spanApp.Run(ctx)
}

// openStore opens the chat file with the store kind configured for it.
func openStore(ctx context.Context, cfg *config.Config, path string) (chat.Store, func(), error) {
	switch kind := cfg.Store.KindFor(path); kind {
	case config.StoreJSONL:
		s, err := chat.OpenJSONL(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open chat %s: %w", path, err)
		}
		return s, func() {}, nil
	case config.StoreSQLite:
		s, err := chat.OpenSQLite(ctx, path, cfg.Chat.ChatID)
		if errors.Is(err, chat.ErrNoChats) {
			return nil, nil, fmt.Errorf("database %s holds no chats", path)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("open database %s: %w", path, err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warnf("Closing database: %v", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", kind)
	}
}

func defaultLogPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return config.DefaultLogFileName
	}
	return filepath.Join(dir, config.AppName, config.DefaultLogFileName)
}
