// Package edit splices replacement text into a resolved span of a message
// and commits the result to the store and the undo ledger as one step.
package edit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bethropolis/spanedit/internal/chat"
	"github.com/bethropolis/spanedit/internal/core/align"
	"github.com/bethropolis/spanedit/internal/core/history"
	"github.com/bethropolis/spanedit/internal/core/loose"
	"github.com/bethropolis/spanedit/internal/core/resolve"
	"github.com/bethropolis/spanedit/internal/event"
	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/utils"
)

var (
	// ErrTargetMissing is returned when the message to edit or restore is gone.
	ErrTargetMissing = errors.New("message no longer exists")
	// ErrStale is returned when the message changed since the selection was
	// resolved and the selected text can no longer be found in it.
	ErrStale = errors.New("selected text is no longer in the message")
)

// Kind names the edit action.
type Kind int

const (
	KindDelete Kind = iota
	KindRewrite
	KindGenerate
)

func (k Kind) String() string {
	switch k {
	case KindDelete:
		return "delete"
	case KindRewrite:
		return "rewrite"
	case KindGenerate:
		return "generate"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Request is one edit of a resolved selection.
type Request struct {
	Kind        Kind
	MessageID   string
	SwipeID     *int
	Resolved    resolve.Result
	Replacement string // ignored for deletes
}

// Outcome describes a committed edit.
type Outcome struct {
	Change  history.Change
	Span    align.Span // span that was replaced, in the pre-edit raw text
	Retried bool       // the span came from the loose matcher after a no-op
	NoOp    bool       // the edit left the text unchanged
}

// Applicator commits edits and undos.
type Applicator struct {
	Store   chat.Store
	Ledger  *history.Ledger
	Events  *event.Manager
	Matcher loose.Matcher
	Now     func() time.Time
}

// Splice replaces the rune span s of raw with replacement. The span is
// clamped to raw.
func Splice(raw string, s align.Span, replacement string) string {
	n := len([]rune(raw))
	start := utils.Clamp(s.Start, 0, n)
	end := utils.Clamp(s.End, start, n)
	bs := utils.RuneIndexToByteOffset(raw, start)
	be := utils.RuneIndexToByteOffset(raw, end)
	return raw[:bs] + replacement + raw[be:]
}

func (a *Applicator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// fragment returns the text to search for when the span cannot be trusted.
func fragment(r resolve.Result) string {
	if f := strings.TrimSpace(r.SelectedRaw); f != "" {
		return f
	}
	return strings.TrimSpace(r.SelectionText)
}

// Apply splices the replacement into the message. When the splice leaves
// the text unchanged it is retried once with a span from the loose matcher;
// a second no-op is committed and reported through Outcome.NoOp.
func (a *Applicator) Apply(ctx context.Context, req Request) (Outcome, error) {
	msg, err := a.Store.Message(req.MessageID)
	if err != nil {
		if errors.Is(err, chat.ErrMessageNotFound) {
			return Outcome{}, fmt.Errorf("%w: %s", ErrTargetMissing, req.MessageID)
		}
		return Outcome{}, err
	}

	replacement := req.Replacement
	if req.Kind == KindDelete {
		replacement = ""
	}

	raw := msg.Raw
	span := req.Resolved.Span
	if raw != req.Resolved.Raw {
		// The message changed after the selection was resolved.
		s, _, ok := a.Matcher.Find(raw, fragment(req.Resolved))
		if !ok {
			return Outcome{}, ErrStale
		}
		logger.DebugTagf("edit", "Message %s changed since resolution; span %v -> %v", req.MessageID, span, s)
		span = s
	}

	out := Outcome{Span: span}
	updated := Splice(raw, span, replacement)
	if updated == raw {
		if s, _, ok := a.Matcher.Find(raw, fragment(req.Resolved)); ok {
			out.Span, out.Retried = s, true
			updated = Splice(raw, s, replacement)
		}
		if updated == raw {
			out.NoOp = true
			logger.Warnf("Edit: %s of message %s left the text unchanged", req.Kind, req.MessageID)
		}
	}

	swipe := req.SwipeID
	if swipe == nil {
		swipe = msg.ActiveSwipe()
	}
	if err := a.commit(ctx, msg, swipe, updated); err != nil {
		return Outcome{}, err
	}

	out.Change = history.Change{
		MessageID: req.MessageID,
		SwipeID:   swipe,
		Original:  raw,
		Updated:   updated,
		Timestamp: a.now(),
	}
	if a.Ledger != nil {
		a.Ledger.Record(out.Change)
	}
	logger.Infof("Edit: %s of message %s committed (%s)", req.Kind, req.MessageID, out.Change.Summary())
	return out, nil
}

// Restore implements history.Target: the message and its recorded swipe
// slot get their original text back.
func (a *Applicator) Restore(ctx context.Context, c history.Change) error {
	msg, err := a.Store.Message(c.MessageID)
	if err != nil {
		if errors.Is(err, chat.ErrMessageNotFound) {
			return fmt.Errorf("%w: %s", ErrTargetMissing, c.MessageID)
		}
		return err
	}
	swipe := c.SwipeID
	if swipe != nil && *swipe >= len(msg.Swipes) {
		return fmt.Errorf("%w: %s swipe %d", ErrTargetMissing, c.MessageID, *swipe)
	}
	return a.commit(ctx, msg, swipe, c.Original)
}

// commit writes text into the message (and swipe slot), persists, and
// signals a re-render. A failure puts the previous text back.
func (a *Applicator) commit(ctx context.Context, msg chat.Message, swipe *int, text string) error {
	rollback := func() {
		if err := a.Store.SetMessage(msg.ID, msg.Raw); err != nil {
			logger.Errorf("Edit: rollback of message %s failed: %v", msg.ID, err)
		}
		if swipe != nil && *swipe < len(msg.Swipes) {
			if err := a.Store.SetSwipe(msg.ID, *swipe, msg.Swipes[*swipe]); err != nil {
				logger.Errorf("Edit: rollback of message %s swipe %d failed: %v", msg.ID, *swipe, err)
			}
		}
	}

	if err := a.Store.SetMessage(msg.ID, text); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if swipe != nil {
		if err := a.Store.SetSwipe(msg.ID, *swipe, text); err != nil {
			rollback()
			return fmt.Errorf("update swipe: %w", err)
		}
	}
	if err := a.Store.Persist(ctx); err != nil {
		rollback()
		return fmt.Errorf("persist chat: %w", err)
	}

	if a.Events != nil {
		a.Events.Dispatch(event.TypeMessageUpdated, event.MessageData{MessageID: msg.ID, SwipeID: swipe})
	}
	return nil
}
