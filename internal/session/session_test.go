package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bethropolis/spanedit/internal/chat"
	"github.com/bethropolis/spanedit/internal/clipboard"
	"github.com/bethropolis/spanedit/internal/core/resolve"
	"github.com/bethropolis/spanedit/internal/event"
	"github.com/bethropolis/spanedit/internal/generate"
	"github.com/bethropolis/spanedit/internal/render"
)

type fakeBackend struct {
	mu      sync.Mutex
	prompts []string
	models  []string
	reply   string
	err     error
	started chan struct{}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Generate(ctx context.Context, req generate.Request) (generate.Result, error) {
	b.mu.Lock()
	b.prompts = append(b.prompts, req.Prompt)
	b.models = append(b.models, req.Options.Model)
	b.mu.Unlock()

	if b.started != nil {
		close(b.started)
		<-ctx.Done()
		return generate.Result{}, ctx.Err()
	}
	if b.err != nil {
		return generate.Result{}, b.err
	}
	return generate.Completed(b.reply), nil
}

type note struct {
	level Level
	msg   string
}

type recorder struct {
	mu    sync.Mutex
	notes []note
}

func (r *recorder) Notify(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{level, msg})
}

func (r *recorder) levels() []Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Level
	for _, n := range r.notes {
		out = append(out, n.level)
	}
	return out
}

type fixture struct {
	store   *chat.Memory
	session *Session
	notes   *recorder
	backend *fakeBackend
}

func newFixture(t *testing.T, msgs ...chat.Message) *fixture {
	t.Helper()
	f := &fixture{
		store:   chat.NewMemory("chat", msgs),
		notes:   &recorder{},
		backend: &fakeBackend{reply: "dog\n"},
	}
	temp := 0.2
	f.session = New(Options{
		Store:    f.store,
		Renderer: render.Plain{},
		Notifier: f.notes,
		Backend:  f.backend,
		Settings: generate.NewSettings(generate.Options{Model: "base"}, "", map[string]generate.Preset{
			"rewrite": {Model: "rewriter", Temperature: &temp},
		}),
		Preset: "rewrite",
		Menu:   Menu{Delete: true, Rewrite: true, Generate: true},
	})
	t.Cleanup(f.session.Close)
	return f
}

func (f *fixture) selectText(t *testing.T, id string, start, end int) {
	t.Helper()
	doc, err := f.session.Render(context.Background(), id)
	require.NoError(t, err)
	m, err := f.session.Select(resolve.RangeIn(doc.Container(id), start, end), nil)
	require.NoError(t, err)
	require.True(t, m.Any())
}

func (f *fixture) raw(t *testing.T, id string) string {
	t.Helper()
	msg, err := f.store.Message(id)
	require.NoError(t, err)
	return msg.Raw
}

func TestDeleteThenUndo(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "Hello *brave* new world"})
	f.selectText(t, "0", 6, 11)

	out, err := f.session.Delete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello  new world", f.raw(t, "0"))
	assert.Equal(t, "Hello *brave* new world", out.Change.Original)
	assert.Equal(t, []string{"0"}, f.session.UndoMarkers())

	_, ok := f.session.Selection()
	assert.False(t, ok, "selection is consumed by the edit")

	c, ok, err := f.session.Undo(context.Background(), "0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Hello  new world", c.Updated)
	assert.Equal(t, "Hello *brave* new world", f.raw(t, "0"))
	assert.Empty(t, f.session.UndoMarkers())

	_, ok, err = f.session.Undo(context.Background(), "0")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRewriteVerbatim(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "The cat sat."})
	f.selectText(t, "0", 4, 7)

	_, err := f.session.Rewrite(context.Background(), "  **dog**")
	require.NoError(t, err)
	assert.Equal(t, "The   **dog** sat.", f.raw(t, "0"))
}

func TestRewriteWhitespaceIsVerbatim(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "one two three"})
	f.selectText(t, "0", 3, 8)

	out, err := f.session.Rewrite(context.Background(), " ")
	require.NoError(t, err)
	assert.Equal(t, "one three", f.raw(t, "0"))
	assert.False(t, out.NoOp)
	assert.Equal(t, []string{"0"}, f.session.UndoMarkers())

	f.selectText(t, "0", 3, 4)
	_, err = f.session.Rewrite(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "onethree", f.raw(t, "0"))
	assert.Empty(t, f.notes.levels())
}

func TestEditWithoutSelection(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "text"})
	_, err := f.session.Delete(context.Background())
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Equal(t, Menu{}, f.session.Menu())
}

func TestGenerateSwapsPreset(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "The cat sat."})
	f.selectText(t, "0", 4, 7)

	var finished []event.GenerationData
	f.session.Events().Subscribe(event.TypeGenerationFinished, func(e event.Event) bool {
		finished = append(finished, e.Data.(event.GenerationData))
		return false
	})

	out, err := f.session.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "The dog sat.", f.raw(t, "0"))
	assert.Equal(t, "dog", out.Change.Updated[4:7])

	require.Len(t, f.backend.prompts, 1)
	assert.Contains(t, f.backend.prompts[0], "cat")
	assert.Contains(t, f.backend.prompts[0], "The cat sat.")
	assert.Equal(t, []string{"rewriter"}, f.backend.models)
	assert.Equal(t, "", f.session.settings.Active(), "preset restored")

	require.Len(t, finished, 1)
	assert.NoError(t, finished[0].Err)
	assert.False(t, f.session.Busy())
}

func TestGenerateCancel(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "The cat sat."})
	f.backend.started = make(chan struct{})
	f.selectText(t, "0", 4, 7)

	errc := make(chan error, 1)
	go func() {
		_, err := f.session.Generate(context.Background(), nil)
		errc <- err
	}()

	select {
	case <-f.backend.started:
	case <-time.After(2 * time.Second):
		t.Fatal("generation never started")
	}
	assert.True(t, f.session.Busy())

	_, err := f.session.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBusy)

	f.session.Cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, generate.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("generation not cancelled")
	}

	assert.Equal(t, "The cat sat.", f.raw(t, "0"))
	assert.False(t, f.session.Busy())
	assert.Empty(t, f.notes.levels(), "cancellation is silent")
	assert.Equal(t, "", f.session.settings.Active())
}

func TestGenerateFailureNotifies(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "The cat sat."})
	f.backend.err = &generate.Error{Kind: generate.KindRequest, Backend: "fake", Err: errors.New("boom")}
	f.selectText(t, "0", 4, 7)

	_, err := f.session.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, []Level{LevelError}, f.notes.levels())
	assert.Equal(t, "The cat sat.", f.raw(t, "0"))
	assert.Empty(t, f.session.UndoMarkers())
}

func TestGenerateMissingPreset(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "The cat sat."})
	f.session.preset = "missing"
	f.selectText(t, "0", 4, 7)

	_, err := f.session.Generate(context.Background(), nil)
	var genErr *generate.Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, generate.KindPreset, genErr.Kind)
	assert.Empty(t, f.backend.prompts)
}

func TestMenuWithoutBackend(t *testing.T) {
	s := New(Options{
		Store:    chat.NewMemory("chat", []chat.Message{{Raw: "abc def"}}),
		Renderer: render.Plain{},
		Menu:     Menu{Delete: true, Rewrite: true, Generate: true},
	})
	defer s.Close()

	c := resolve.NewContainer("0", "abc def")
	m, err := s.Select(resolve.RangeIn(c, 0, 3), nil)
	require.NoError(t, err)
	assert.Equal(t, Menu{Delete: true, Rewrite: true}, m)

	_, err = s.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestSelectRejectsWhitespace(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "a   b"})
	c := resolve.NewContainer("0", "a   b")
	m, err := f.session.Select(resolve.RangeIn(c, 1, 4), nil)
	assert.ErrorIs(t, err, resolve.ErrEmptySelection)
	assert.False(t, m.Any())
}

func TestQueueSelection(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "one two three"})
	c := resolve.NewContainer("0", "one two three")

	done := make(chan Menu, 2)
	f.session.QueueSelection(resolve.RangeIn(c, 0, 3), nil, func(m Menu, err error) { done <- m })
	f.session.QueueSelection(resolve.RangeIn(c, 4, 7), nil, func(m Menu, err error) { done <- m })

	select {
	case m := <-done:
		assert.True(t, m.Delete)
	case <-time.After(2 * time.Second):
		t.Fatal("selection never processed")
	}
	sel, ok := f.session.Selection()
	require.True(t, ok)
	assert.Equal(t, "two", sel.Text)
}

func TestExternalEditDropsUndo(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "keep this text"}, chat.Message{Raw: "other words"})
	f.selectText(t, "0", 5, 10)
	_, err := f.session.Delete(context.Background())
	require.NoError(t, err)
	f.selectText(t, "1", 0, 5)
	_, err = f.session.Delete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, f.session.UndoMarkers())

	f.session.Events().Dispatch(event.TypeMessageEdited, event.MessageData{MessageID: "0"})
	assert.Equal(t, []string{"1"}, f.session.UndoMarkers())
}

func TestUndoMissingTarget(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "keep this text"})
	f.selectText(t, "0", 5, 10)
	_, err := f.session.Delete(context.Background())
	require.NoError(t, err)

	f.store.Replace("chat", nil)
	_, ok, err := f.session.Undo(context.Background(), "0")
	assert.ErrorIs(t, err, ErrUndoTargetMissing)
	assert.False(t, ok)
}

type switchStore struct {
	*chat.Memory
	chats map[string][]chat.Message
}

func (s *switchStore) Chats(context.Context) ([]string, error) {
	return []string{"a", "b"}, nil
}

func (s *switchStore) Switch(_ context.Context, id string) error {
	msgs, ok := s.chats[id]
	if !ok {
		return chat.ErrNoChats
	}
	s.Memory.Replace(id, msgs)
	return nil
}

func TestSwitchChatResets(t *testing.T) {
	store := &switchStore{
		Memory: chat.NewMemory("a", []chat.Message{{Raw: "first chat text"}}),
		chats:  map[string][]chat.Message{"b": {{Raw: "second chat"}}},
	}
	s := New(Options{Store: store, Renderer: render.Plain{}, Menu: Menu{Delete: true}})
	defer s.Close()

	c := resolve.NewContainer("0", "first chat text")
	_, err := s.Select(resolve.RangeIn(c, 0, 6), nil)
	require.NoError(t, err)
	_, err = s.Delete(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"0"}, s.UndoMarkers())

	_, err = s.Select(resolve.RangeIn(c, 0, 5), nil)
	require.NoError(t, err)

	require.NoError(t, s.SwitchChat(context.Background(), "b"))
	assert.Equal(t, "b", s.ChatID())
	assert.Empty(t, s.UndoMarkers())
	_, ok := s.Selection()
	assert.False(t, ok)

	assert.ErrorIs(t, s.SwitchChat(context.Background(), "zzz"), chat.ErrNoChats)
}

// lateBackend returns its text only after the request was cancelled.
type lateBackend struct {
	started chan struct{}
}

func (b *lateBackend) Name() string { return "late" }

func (b *lateBackend) Generate(ctx context.Context, req generate.Request) (generate.Result, error) {
	close(b.started)
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)
	return generate.Completed("dog"), nil
}

func TestSwitchChatStopsGeneration(t *testing.T) {
	store := &switchStore{
		Memory: chat.NewMemory("a", []chat.Message{{Raw: "The cat sat."}}),
		chats:  map[string][]chat.Message{"b": {{Raw: "The cow ran."}}},
	}
	backend := &lateBackend{started: make(chan struct{})}
	s := New(Options{
		Store:    store,
		Renderer: render.Plain{},
		Backend:  backend,
		Notifier: &recorder{},
		Menu:     Menu{Generate: true},
	})
	defer s.Close()

	c := resolve.NewContainer("0", "The cat sat.")
	_, err := s.Select(resolve.RangeIn(c, 4, 7), nil)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background(), nil)
		errc <- err
	}()
	select {
	case <-backend.started:
	case <-time.After(2 * time.Second):
		t.Fatal("generation never started")
	}

	require.NoError(t, s.SwitchChat(context.Background(), "b"))
	assert.False(t, s.Busy(), "switch returns only after the generation stopped")

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, generate.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("generation did not return")
	}
	msg, err := store.Message("0")
	require.NoError(t, err)
	assert.Equal(t, "The cow ran.", msg.Raw)
	assert.Empty(t, s.UndoMarkers())
}

func TestSwitchChatUnsupported(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "x"})
	assert.Error(t, f.session.SwitchChat(context.Background(), "other"))
}

func TestRewriteFromClipboard(t *testing.T) {
	clip := clipboard.NewManager(false)
	s := New(Options{
		Store:     chat.NewMemory("chat", []chat.Message{{Raw: "The cat sat."}}),
		Renderer:  render.Plain{},
		Clipboard: clip,
		Notifier:  &recorder{},
	})
	defer s.Close()

	c := resolve.NewContainer("0", "The cat sat.")
	_, err := s.Select(resolve.RangeIn(c, 4, 7), nil)
	require.NoError(t, err)

	_, err = s.RewriteFromClipboard(context.Background())
	assert.ErrorIs(t, err, clipboard.ErrEmpty)

	clip.Write("owl")
	_, err = s.RewriteFromClipboard(context.Background())
	require.NoError(t, err)
	msg, err := s.store.Message("0")
	require.NoError(t, err)
	assert.Equal(t, "The owl sat.", msg.Raw)
}
