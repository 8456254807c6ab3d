package edit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bethropolis/spanedit/internal/chat"
	"github.com/bethropolis/spanedit/internal/core/align"
	"github.com/bethropolis/spanedit/internal/core/history"
	"github.com/bethropolis/spanedit/internal/core/resolve"
	"github.com/bethropolis/spanedit/internal/event"
)

type fixture struct {
	store   *chat.Memory
	ledger  *history.Ledger
	events  *event.Manager
	app     *Applicator
	updated []string
}

func newFixture(t *testing.T, msgs ...chat.Message) *fixture {
	t.Helper()
	f := &fixture{store: chat.NewMemory("chat", msgs), events: event.NewManager()}
	f.app = &Applicator{
		Store:  f.store,
		Events: f.events,
		Now:    func() time.Time { return time.Unix(1700000000, 0) },
	}
	f.ledger = history.NewLedger(0, f.app, f.events)
	f.app.Ledger = f.ledger
	f.events.Subscribe(event.TypeMessageUpdated, func(e event.Event) bool {
		f.updated = append(f.updated, e.Data.(event.MessageData).MessageID)
		return false
	})
	return f
}

// resolveText selects the formatted range [start, end) of a single-node
// rendering of formatted and resolves it against the stored message.
func (f *fixture) resolveText(t *testing.T, id, formatted string, start, end int) resolve.Result {
	t.Helper()
	msg, err := f.store.Message(id)
	require.NoError(t, err)
	c := resolve.NewContainer(id, formatted)
	sel, err := resolve.Capture(resolve.RangeIn(c, start, end), nil)
	require.NoError(t, err)
	res, err := resolve.Resolver{}.Resolve(msg.Raw, c.Text(), sel)
	require.NoError(t, err)
	return res
}

func (f *fixture) raw(t *testing.T, id string) string {
	t.Helper()
	msg, err := f.store.Message(id)
	require.NoError(t, err)
	return msg.Raw
}

func TestSplice(t *testing.T) {
	assert.Equal(t, "a X c", Splice("a b c", align.Span{Start: 2, End: 3}, "X"))
	assert.Equal(t, "größe!", Splice("grüße!", align.Span{Start: 2, End: 3}, "ö"))
	assert.Equal(t, "abcZ", Splice("abc", align.Span{Start: 7, End: 9}, "Z"))
	assert.Equal(t, "Zabc", Splice("abc", align.Span{Start: -2, End: -1}, "Z"))
}

func TestDeleteAndUndo(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "a *bold-ish* b"})
	res := f.resolveText(t, "0", "a bold-ish b", 2, 10)

	out, err := f.app.Apply(context.Background(), Request{Kind: KindDelete, MessageID: "0", Resolved: res, Replacement: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "a  b", f.raw(t, "0"))
	assert.False(t, out.NoOp)
	assert.Equal(t, "a *bold-ish* b", out.Change.Original)
	assert.Equal(t, []string{"0"}, f.ledger.MessageIDs())
	assert.Equal(t, []string{"0"}, f.updated)

	_, ok, err := f.ledger.Undo(context.Background(), "0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a *bold-ish* b", f.raw(t, "0"))
	assert.Empty(t, f.ledger.MessageIDs())
	assert.Equal(t, []string{"0", "0"}, f.updated)
}

func TestRewriteUpdatesSwipe(t *testing.T) {
	f := newFixture(t,
		chat.Message{Raw: "hello"},
		chat.Message{Raw: "The cat sat.", Swipes: []string{"first", "The cat sat."}, SwipeID: 1},
	)
	res := f.resolveText(t, "1", "The cat sat.", 4, 7)

	out, err := f.app.Apply(context.Background(), Request{Kind: KindRewrite, MessageID: "1", Resolved: res, Replacement: "dog"})
	require.NoError(t, err)
	require.NotNil(t, out.Change.SwipeID)
	assert.Equal(t, 1, *out.Change.SwipeID)

	msg, err := f.store.Message("1")
	require.NoError(t, err)
	assert.Equal(t, "The dog sat.", msg.Raw)
	assert.Equal(t, []string{"first", "The dog sat."}, msg.Swipes)

	_, _, err = f.ledger.Undo(context.Background(), "1")
	require.NoError(t, err)
	msg, _ = f.store.Message("1")
	assert.Equal(t, "The cat sat.", msg.Raw)
	assert.Equal(t, []string{"first", "The cat sat."}, msg.Swipes)
}

func TestPersistFailureRollsBack(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "keep me", Swipes: []string{"keep me"}})
	boom := errors.New("disk full")
	f.store.PersistFunc = func(context.Context, []chat.Message) error { return boom }

	res := f.resolveText(t, "0", "keep me", 0, 4)
	_, err := f.app.Apply(context.Background(), Request{Kind: KindDelete, MessageID: "0", Resolved: res})
	assert.ErrorIs(t, err, boom)

	msg, _ := f.store.Message("0")
	assert.Equal(t, "keep me", msg.Raw)
	assert.Equal(t, []string{"keep me"}, msg.Swipes)
	assert.Zero(t, f.ledger.Len())
	assert.Empty(t, f.updated)
}

func TestNoOpRetriesWithLooseMatch(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "one two three"})
	res := resolve.Result{
		Span:        align.Span{Start: 4, End: 4},
		Raw:         "one two three",
		SelectedRaw: "two",
	}

	out, err := f.app.Apply(context.Background(), Request{Kind: KindDelete, MessageID: "0", Resolved: res})
	require.NoError(t, err)
	assert.True(t, out.Retried)
	assert.False(t, out.NoOp)
	assert.Equal(t, align.Span{Start: 4, End: 7}, out.Span)
	assert.Equal(t, "one  three", f.raw(t, "0"))
}

func TestSecondNoOpIsRecorded(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "same text"})
	res := f.resolveText(t, "0", "same text", 0, 4)

	out, err := f.app.Apply(context.Background(), Request{Kind: KindRewrite, MessageID: "0", Resolved: res, Replacement: "same"})
	require.NoError(t, err)
	assert.True(t, out.NoOp)
	assert.Equal(t, "same text", f.raw(t, "0"))
	assert.Equal(t, 1, f.ledger.Len())
}

func TestStaleResolution(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "alpha beta gamma"})
	res := f.resolveText(t, "0", "alpha beta gamma", 6, 10)

	require.NoError(t, f.store.SetMessage("0", "PREFIX alpha beta gamma"))
	_, err := f.app.Apply(context.Background(), Request{Kind: KindRewrite, MessageID: "0", Resolved: res, Replacement: "BETA"})
	require.NoError(t, err)
	assert.Equal(t, "PREFIX alpha BETA gamma", f.raw(t, "0"))

	require.NoError(t, f.store.SetMessage("0", "entirely different"))
	_, err = f.app.Apply(context.Background(), Request{Kind: KindDelete, MessageID: "0", Resolved: res})
	assert.ErrorIs(t, err, ErrStale)
}

func TestMissingMessage(t *testing.T) {
	f := newFixture(t, chat.Message{Raw: "x"})
	_, err := f.app.Apply(context.Background(), Request{MessageID: "9"})
	assert.ErrorIs(t, err, ErrTargetMissing)

	err = f.app.Restore(context.Background(), history.Change{MessageID: "9"})
	assert.ErrorIs(t, err, ErrTargetMissing)
}

func TestDeleteInsertRoundTrip(t *testing.T) {
	raws := []string{
		"a *bold-ish* b",
		"Hello   world,\n\nhow are you?",
		"x **strong** and _soft_ y",
		"naïve café crème",
	}
	for _, raw := range raws {
		f := newFixture(t, chat.Message{Raw: raw})
		res := f.resolveText(t, "0", raw, 2, 6)

		deleted := Splice(raw, res.Span, "")
		restored := Splice(deleted, align.Span{Start: res.Span.Start, End: res.Span.Start}, res.SelectedRaw)
		assert.Equal(t, raw, restored, "round trip of %q", raw)

		out, err := f.app.Apply(context.Background(), Request{Kind: KindRewrite, MessageID: "0", Resolved: res, Replacement: "<<X>>"})
		require.NoError(t, err)
		assert.Equal(t, 1, countOf(f.raw(t, "0"), "<<X>>"))
		assert.Equal(t, res.Span, out.Span)
	}
}

func countOf(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "generate", KindGenerate.String())
}
