// Package session holds the per-chat editing state and runs the selection,
// edit, generation and undo workflows against the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bethropolis/spanedit/internal/chat"
	"github.com/bethropolis/spanedit/internal/core/edit"
	"github.com/bethropolis/spanedit/internal/core/history"
	"github.com/bethropolis/spanedit/internal/core/loose"
	"github.com/bethropolis/spanedit/internal/core/resolve"
	"github.com/bethropolis/spanedit/internal/event"
	"github.com/bethropolis/spanedit/internal/generate"
	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/render"
	"github.com/bethropolis/spanedit/internal/utils"
)

// SelectionDelay is how long selection changes settle before processing.
const SelectionDelay = 50 * time.Millisecond

var (
	// ErrNoSelection is returned when an edit is requested without a selection.
	ErrNoSelection = errors.New("no text selected")
	// ErrBusy is returned when a generation is already running.
	ErrBusy = errors.New("a generation is already running")
	// ErrNoBackend is returned for a generated rewrite without a back-end.
	ErrNoBackend = errors.New("no generation backend configured")
	// ErrNoChat is returned when no chat is loaded.
	ErrNoChat = errors.New("no chat loaded")
	// ErrUndoTargetMissing is returned when the message to undo is gone.
	ErrUndoTargetMissing = edit.ErrTargetMissing
)

// Menu lists the actions offered for the current selection.
type Menu struct {
	Delete   bool
	Rewrite  bool
	Generate bool
}

// Any reports whether at least one action is offered.
func (m Menu) Any() bool { return m.Delete || m.Rewrite || m.Generate }

// Options configure a session.
type Options struct {
	Store    chat.Store
	Renderer render.Renderer
	Events   *event.Manager
	Notifier Notifier

	// Backend and Settings may be nil when generated rewrites are disabled.
	Backend  generate.Backend
	Settings *generate.Settings
	// Preset is swapped in for the duration of each generated rewrite.
	Preset string

	HistoryCapacity int
	Matcher         loose.Matcher
	Menu            Menu

	// Clipboard supplies text for RewriteFromClipboard.
	Clipboard Clipboard

	UserName string
	CharName string
}

// Clipboard is the source of pasted rewrite text.
type Clipboard interface {
	Read() (string, error)
}

// Session is the editing state of one chat.
type Session struct {
	store    chat.Store
	renderer render.Renderer
	events   *event.Manager
	notifier Notifier
	backend  generate.Backend
	settings *generate.Settings
	preset   string
	menu     Menu
	userName string
	charName string
	clip     Clipboard

	resolver   resolve.Resolver
	applicator *edit.Applicator
	ledger     *history.Ledger
	subs       []event.Subscription
	debouncer  utils.Debouncer

	mu         sync.Mutex
	selection  *resolve.Selection
	containers map[string]*resolve.Container
	cancel     context.CancelFunc
	done       chan struct{} // closed when the running generation returns
}

// New creates a session and subscribes it to chat and message events.
func New(opts Options) *Session {
	if opts.Events == nil {
		opts.Events = event.NewManager()
	}
	if opts.Notifier == nil {
		opts.Notifier = logNotifier{}
	}
	if opts.Settings == nil {
		opts.Settings = generate.NewSettings(generate.Options{}, "", nil)
	}

	s := &Session{
		store:      opts.Store,
		renderer:   opts.Renderer,
		events:     opts.Events,
		notifier:   opts.Notifier,
		backend:    opts.Backend,
		settings:   opts.Settings,
		preset:     opts.Preset,
		menu:       opts.Menu,
		userName:   opts.UserName,
		charName:   opts.CharName,
		clip:       opts.Clipboard,
		resolver:   resolve.Resolver{Matcher: opts.Matcher},
		containers: make(map[string]*resolve.Container),
	}
	s.applicator = &edit.Applicator{Store: opts.Store, Events: opts.Events, Matcher: opts.Matcher}
	s.ledger = history.NewLedger(opts.HistoryCapacity, s.applicator, opts.Events)
	s.applicator.Ledger = s.ledger

	s.subs = append(s.subs,
		s.events.Subscribe(event.TypeChatChanged, func(event.Event) bool {
			s.reset()
			return false
		}),
		s.events.Subscribe(event.TypeMessageEdited, func(e event.Event) bool {
			if data, ok := e.Data.(event.MessageData); ok {
				s.MessageEdited(data.MessageID)
			}
			return false
		}),
	)
	logger.DebugTagf("session", "Session created for chat %q (matcher %s)", s.ChatID(), opts.Matcher)
	return s
}

// Close cancels any running generation and detaches from the event bus.
func (s *Session) Close() {
	s.Cancel()
	s.debouncer.Stop()
	for _, sub := range s.subs {
		s.events.Unsubscribe(sub)
	}
	s.subs = nil
}

// ChatID returns the active chat id.
func (s *Session) ChatID() string { return s.store.ChatID() }

// Events returns the event bus the session dispatches on.
func (s *Session) Events() *event.Manager { return s.events }

// Ledger exposes the undo ledger.
func (s *Session) Ledger() *history.Ledger { return s.ledger }

func (s *Session) renderContext(id string) render.Context {
	return render.MacroContext(id, s.userName, s.charName)
}

// Render renders a message for display and remembers the result as the
// message's live container.
func (s *Session) Render(ctx context.Context, id string) (render.Document, error) {
	msg, err := s.store.Message(id)
	if err != nil {
		return render.Document{}, err
	}
	doc, err := s.renderer.Render(ctx, msg.Raw, s.renderContext(id))
	if err != nil {
		return render.Document{}, fmt.Errorf("render message %s: %w", id, err)
	}
	s.mu.Lock()
	s.containers[id] = doc.Container(id)
	s.mu.Unlock()
	return doc, nil
}

// containerFor returns the live container of a message, rendering the raw
// text when none is shown.
func (s *Session) containerFor(ctx context.Context, id string) (*resolve.Container, error) {
	s.mu.Lock()
	c, ok := s.containers[id]
	s.mu.Unlock()
	if ok {
		return c, nil
	}
	logger.DebugTagf("session", "No live container for message %s; rendering raw text", id)
	msg, err := s.store.Message(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.renderer.Render(ctx, msg.Raw, s.renderContext(id))
	if err != nil {
		return nil, err
	}
	return doc.Container(id), nil
}

// Select captures a range as the current selection and returns the menu
// to offer for it. An unusable range clears the selection.
func (s *Session) Select(r resolve.Range, swipeID *int) (Menu, error) {
	sel, err := resolve.Capture(r, swipeID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil || s.store.ChatID() == "" {
		s.selection = nil
		if err == nil {
			err = ErrNoChat
		}
		return Menu{}, err
	}
	s.selection = &sel
	logger.DebugTagf("session", "Selected %q in message %s (%d-%d)", sel.Text, sel.MessageID, sel.Start, sel.End)
	return s.menuLocked(), nil
}

// QueueSelection processes a range after SelectionDelay, replacing any
// range queued before. done runs on the timer goroutine.
func (s *Session) QueueSelection(r resolve.Range, swipeID *int, done func(Menu, error)) {
	s.debouncer.Debounce(SelectionDelay, func() {
		m, err := s.Select(r, swipeID)
		if done != nil {
			done(m, err)
		}
	})
}

// ClearSelection forgets the current selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selection = nil
	s.mu.Unlock()
}

// Selection returns the current selection.
func (s *Session) Selection() (resolve.Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return resolve.Selection{}, false
	}
	return *s.selection, true
}

// Menu returns the actions offered for the current selection.
func (s *Session) Menu() Menu {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menuLocked()
}

func (s *Session) menuLocked() Menu {
	if s.selection == nil {
		return Menu{}
	}
	m := s.menu
	m.Generate = m.Generate && s.backend != nil
	return m
}

// resolve maps a selection onto the current raw text of its message.
func (s *Session) resolve(ctx context.Context, sel resolve.Selection) (resolve.Result, error) {
	msg, err := s.store.Message(sel.MessageID)
	if err != nil {
		return resolve.Result{}, err
	}
	c, err := s.containerFor(ctx, sel.MessageID)
	if err != nil {
		return resolve.Result{}, err
	}
	return s.resolver.Resolve(msg.Raw, c.Text(), sel)
}

// edit resolves the current selection and applies one edit to it.
func (s *Session) edit(ctx context.Context, kind edit.Kind, replacement string) (edit.Outcome, error) {
	sel, ok := s.Selection()
	if !ok {
		return edit.Outcome{}, ErrNoSelection
	}
	res, err := s.resolve(ctx, sel)
	if err != nil {
		return edit.Outcome{}, s.fail(kind, err)
	}
	return s.apply(ctx, kind, sel, res, replacement)
}

func (s *Session) apply(ctx context.Context, kind edit.Kind, sel resolve.Selection, res resolve.Result, replacement string) (edit.Outcome, error) {
	out, err := s.applicator.Apply(ctx, edit.Request{
		Kind:        kind,
		MessageID:   sel.MessageID,
		SwipeID:     sel.SwipeID,
		Resolved:    res,
		Replacement: replacement,
	})
	if err != nil {
		return edit.Outcome{}, s.fail(kind, err)
	}

	s.mu.Lock()
	delete(s.containers, sel.MessageID)
	s.selection = nil
	s.mu.Unlock()
	if out.NoOp {
		s.notifier.Notify(LevelWarn, fmt.Sprintf("The %s left message %s unchanged", kind, sel.MessageID))
	}
	return out, nil
}

// fail logs an edit failure and tells the user when it is worth knowing.
func (s *Session) fail(kind edit.Kind, err error) error {
	var genErr *generate.Error
	switch {
	case errors.Is(err, resolve.ErrResolution):
		logger.DebugTagf("session", "%s aborted: %v", kind, err)
	case errors.Is(err, generate.ErrCancelled):
		logger.DebugTagf("session", "%s cancelled", kind)
	case errors.As(err, &genErr):
		s.notifier.Notify(LevelError, genErr.Error())
	default:
		logger.Errorf("Session: %s failed: %v", kind, err)
		s.notifier.Notify(LevelError, fmt.Sprintf("Could not %s the selection: %v", kind, err))
	}
	return err
}

// Delete removes the selected text.
func (s *Session) Delete(ctx context.Context) (edit.Outcome, error) {
	return s.edit(ctx, edit.KindDelete, "")
}

// Rewrite replaces the selected text with text, verbatim. Empty and
// whitespace-only text are valid replacements.
func (s *Session) Rewrite(ctx context.Context, text string) (edit.Outcome, error) {
	return s.edit(ctx, edit.KindRewrite, text)
}

// RewriteFromClipboard replaces the selected text with the clipboard
// contents.
func (s *Session) RewriteFromClipboard(ctx context.Context) (edit.Outcome, error) {
	if s.clip == nil {
		return edit.Outcome{}, fmt.Errorf("no clipboard configured")
	}
	text, err := s.clip.Read()
	if err != nil {
		s.notifier.Notify(LevelWarn, fmt.Sprintf("Nothing to paste: %v", err))
		return edit.Outcome{}, err
	}
	return s.Rewrite(ctx, text)
}

// Generate replaces the selected text with text produced by the back-end.
// onChunk, when set, receives streamed progress. The selection is resolved
// before the request is sent. Cancel aborts the request; nothing is edited
// for a cancelled or failed generation.
func (s *Session) Generate(ctx context.Context, onChunk func(string)) (edit.Outcome, error) {
	if s.backend == nil {
		return edit.Outcome{}, s.fail(edit.KindGenerate, ErrNoBackend)
	}
	sel, ok := s.Selection()
	if !ok {
		return edit.Outcome{}, ErrNoSelection
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return edit.Outcome{}, ErrBusy
	}
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	var finishErr error
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.done = nil
		s.mu.Unlock()
		s.events.Dispatch(event.TypeGenerationFinished, event.GenerationData{MessageID: sel.MessageID, Err: finishErr})
		close(done)
	}()

	restore, err := s.settings.Swap(s.preset)
	defer restore()
	if err != nil {
		finishErr = err
		return edit.Outcome{}, s.fail(edit.KindGenerate, err)
	}

	res, err := s.resolve(ctx, sel)
	if err != nil {
		finishErr = err
		return edit.Outcome{}, s.fail(edit.KindGenerate, err)
	}

	opts, tmpl := s.settings.Current()
	prompt := generate.BuildPrompt(tmpl, res.SelectedRaw, res.Raw)
	s.events.Dispatch(event.TypeGenerationStarted, event.GenerationData{MessageID: sel.MessageID})
	logger.InfoTagf("session", "Generating rewrite for message %s with %s (%d words selected)",
		sel.MessageID, s.backend.Name(), generate.WordCount(res.SelectedRaw))

	result, err := s.backend.Generate(ctx, generate.Request{Prompt: prompt, Options: opts})
	if err != nil && ctx.Err() != nil {
		err = generate.ErrCancelled
	}
	if err != nil {
		finishErr = err
		return edit.Outcome{}, s.fail(edit.KindGenerate, err)
	}
	text, err := generate.Collect(ctx, s.backend.Name(), result, func(acc string) {
		if onChunk != nil {
			onChunk(acc)
		}
		s.events.Dispatch(event.TypeGenerationChunk, event.GenerationData{MessageID: sel.MessageID, Text: acc})
	})
	if err != nil {
		finishErr = err
		return edit.Outcome{}, s.fail(edit.KindGenerate, err)
	}

	// A cancel that lands after the text arrived still discards it.
	if ctx.Err() != nil {
		finishErr = generate.ErrCancelled
		return edit.Outcome{}, s.fail(edit.KindGenerate, generate.ErrCancelled)
	}
	out, err := s.apply(ctx, edit.KindGenerate, sel, res, text)
	finishErr = err
	return out, err
}

// Busy reports whether a generation is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Cancel aborts the running generation, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		logger.DebugTagf("session", "Cancelling generation")
		cancel()
	}
}

// stopGeneration cancels the running generation and waits for it to
// finish, so it cannot apply text to a message of another chat.
func (s *Session) stopGeneration(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	logger.DebugTagf("session", "Waiting for generation to stop")
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Undo reverts the newest edit of a message. It reports false when the
// message has nothing to undo.
func (s *Session) Undo(ctx context.Context, id string) (history.Change, bool, error) {
	c, ok, err := s.ledger.Undo(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUndoTargetMissing) {
			logger.Warnf("Session: undo target %s missing: %v", id, err)
		} else {
			s.notifier.Notify(LevelError, fmt.Sprintf("Undo failed: %v", err))
		}
		return c, false, err
	}
	if ok {
		s.mu.Lock()
		delete(s.containers, id)
		s.mu.Unlock()
	}
	return c, ok, nil
}

// UndoMarkers returns the ids of messages that can be undone.
func (s *Session) UndoMarkers() []string { return s.ledger.MessageIDs() }

// MessageEdited drops the undo entries of a message changed through some
// other path, so undo never overwrites an edit it does not know about.
func (s *Session) MessageEdited(id string) {
	if n := s.ledger.Invalidate(id); n > 0 {
		logger.DebugTagf("session", "Message %s edited elsewhere; dropped %d undo entries", id, n)
	}
	s.mu.Lock()
	delete(s.containers, id)
	if s.selection != nil && s.selection.MessageID == id {
		s.selection = nil
	}
	s.mu.Unlock()
}

// SwitchChat loads another chat when the store holds several and clears
// all per-chat state.
func (s *Session) SwitchChat(ctx context.Context, chatID string) error {
	sw, ok := s.store.(chat.Switcher)
	if !ok {
		return fmt.Errorf("store cannot switch chats")
	}
	if err := s.stopGeneration(ctx); err != nil {
		return err
	}
	if err := sw.Switch(ctx, chatID); err != nil {
		return err
	}
	s.events.Dispatch(event.TypeChatChanged, event.ChatData{ChatID: chatID})
	return nil
}

// reset clears the ledger, selection and live containers.
func (s *Session) reset() {
	s.ledger.Reset()
	s.mu.Lock()
	s.selection = nil
	s.containers = make(map[string]*resolve.Container)
	s.mu.Unlock()
	logger.DebugTagf("session", "Per-chat state reset")
}
