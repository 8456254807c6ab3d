// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/bethropolis/spanedit/internal/chat"
	"github.com/bethropolis/spanedit/internal/clipboard"
	"github.com/bethropolis/spanedit/internal/event"
	"github.com/bethropolis/spanedit/internal/input"
	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/modehandler"
	"github.com/bethropolis/spanedit/internal/session"
	"github.com/bethropolis/spanedit/internal/statusbar"
	"github.com/bethropolis/spanedit/internal/theme"
	"github.com/bethropolis/spanedit/internal/tui"
)

// Options configure the terminal application.
type Options struct {
	// Screen defaults to the real terminal.
	Screen         tcell.Screen
	Store          chat.Store
	Clipboard      *clipboard.Manager
	Theme          *theme.Theme
	MessageTimeout time.Duration
}

// App encapsulates the chat view and its main loop.
type App struct {
	tuiManager  *tui.TUI
	store       chat.Store
	session     *session.Session
	clip        *clipboard.Manager
	statusBar   *statusbar.StatusBar
	modeHandler *modehandler.ModeHandler
	activeTheme *theme.Theme
	subs        []event.Subscription

	ctx context.Context

	messages []tui.Message
	lines    []tui.Line
	width    int
	top      int
	cursor   tui.Position
	anchor   *tui.Position

	quit chan struct{}
}

// New creates the application. Attach a session before calling Run.
func New(opts Options) (*App, error) {
	var (
		tuiManager *tui.TUI
		err        error
	)
	if opts.Screen != nil {
		tuiManager, err = tui.NewWithScreen(opts.Screen)
	} else {
		tuiManager, err = tui.New()
	}
	if err != nil {
		return nil, fmt.Errorf("TUI initialization failed: %w", err)
	}

	if opts.Theme == nil {
		opts.Theme = theme.GetCurrentTheme()
	}
	sbCfg := statusbar.DefaultConfig()
	if opts.MessageTimeout > 0 {
		sbCfg.MessageTimeout = opts.MessageTimeout
	}

	a := &App{
		tuiManager:  tuiManager,
		store:       opts.Store,
		clip:        opts.Clipboard,
		statusBar:   statusbar.New(sbCfg),
		activeTheme: opts.Theme,
		ctx:         context.Background(),
		quit:        make(chan struct{}),
	}
	a.modeHandler = modehandler.New(modehandler.Config{
		Editor:         a,
		InputProcessor: input.NewInputProcessor(),
		StatusBar:      a.statusBar,
		QuitSignal:     a.quit,
	})
	return a, nil
}

// Notify implements session.Notifier. It may be called from any goroutine.
func (a *App) Notify(level session.Level, message string) {
	if level == session.LevelError {
		a.statusBar.SetError("%s", message)
	} else {
		a.statusBar.SetTemporaryMessage("%s", message)
	}
	a.post(redrawRequest{})
}

// SetSession attaches the editing session and subscribes to its events.
func (a *App) SetSession(s *session.Session) {
	a.session = s
	events := s.Events()
	a.subs = append(a.subs,
		events.Subscribe(event.TypeMessageUpdated, a.onMessageEvent),
		events.Subscribe(event.TypeMessageEdited, a.onMessageEvent),
		events.Subscribe(event.TypeHistoryChanged, func(event.Event) bool {
			a.post(redrawRequest{})
			return false
		}),
		events.Subscribe(event.TypeChatChanged, func(event.Event) bool {
			a.post(chatReloaded{})
			return false
		}),
	)
}

// Run starts the event loop and returns when the user quits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	if a.session == nil {
		return fmt.Errorf("app: no session attached")
	}
	a.ctx = ctx
	defer a.tuiManager.Close()
	defer func() {
		for _, sub := range a.subs {
			a.session.Events().Unsubscribe(sub)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			a.post(quitRequest{})
		case <-a.quit:
		}
	}()

	a.loadMessages()
	a.session.Events().Dispatch(event.TypeAppReady, nil)
	a.statusBar.SetTemporaryMessage("shift+arrows select | d delete | r rewrite | p paste | g generate | u undo | [ ] chats | q quit")
	a.drawEditor()

	for {
		ev := a.tuiManager.PollEvent()
		if ev == nil {
			return nil
		}
		if a.handleEvent(ev) {
			a.session.Events().Dispatch(event.TypeAppQuit, nil)
			logger.Infof("Exiting application.")
			return nil
		}
		a.drawEditor()
	}
}

// handleEvent processes one screen event and reports whether to quit.
func (a *App) handleEvent(ev tcell.Event) bool {
	switch e := ev.(type) {
	case *tcell.EventResize:
		a.tuiManager.GetScreen().Sync()
		a.relayout()
	case *tcell.EventKey:
		a.modeHandler.HandleKeyEvent(e)
	case *tcell.EventInterrupt:
		if _, ok := e.Data().(quitRequest); ok {
			return true
		}
		a.handleInterrupt(e.Data())
	}

	select {
	case <-a.quit:
		return true
	default:
		return false
	}
}

// post wakes the event loop from another goroutine.
func (a *App) post(data interface{}) {
	if err := a.tuiManager.Interrupt(data); err != nil {
		logger.DebugTagf("app", "Dropped interrupt %T: %v", data, err)
	}
}
