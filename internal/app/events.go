package app

import (
	"errors"

	"github.com/bethropolis/spanedit/internal/core/edit"
	"github.com/bethropolis/spanedit/internal/core/resolve"
	"github.com/bethropolis/spanedit/internal/event"
	"github.com/bethropolis/spanedit/internal/generate"
	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/session"
)

// Interrupt payloads posted to the event loop.
type (
	redrawRequest struct{}
	quitRequest   struct{}
	chatReloaded  struct{}

	messageChanged struct{ id string }

	menuUpdate struct {
		menu session.Menu
		err  error
	}

	generationProgress struct{ text string }

	generationDone struct {
		out edit.Outcome
		err error
	}
)

// onMessageEvent re-renders a message changed by an edit, an undo or an
// outside program.
func (a *App) onMessageEvent(e event.Event) bool {
	if data, ok := e.Data.(event.MessageData); ok {
		a.post(messageChanged{id: data.MessageID})
	}
	return false
}

func (a *App) handleInterrupt(data interface{}) {
	switch d := data.(type) {
	case redrawRequest:
	case chatReloaded:
		a.resetView()
	case messageChanged:
		a.refreshMessage(d.id)
	case menuUpdate:
		a.showMenu(d.menu, d.err)
	case generationProgress:
		a.statusBar.SetHint("Generating: " + tail(d.text, 200))
	case generationDone:
		a.statusBar.SetBusy(false)
		a.statusBar.SetHint("")
		a.finishGeneration(d.out, d.err)
	default:
		logger.Warnf("App: unexpected interrupt %T", data)
	}
}

func (a *App) finishGeneration(out edit.Outcome, err error) {
	switch {
	case err == nil:
		a.anchor = nil
		a.refreshMessage(out.Change.MessageID)
		a.statusBar.SetTemporaryMessage("Generated into message #%s (%s)", out.Change.MessageID, describe(out))
	case errors.Is(err, generate.ErrCancelled):
		a.statusBar.SetTemporaryMessage("Generation cancelled")
	case errors.Is(err, resolve.ErrResolution):
		a.statusBar.SetError("Could not find the selection in the message")
	}
}

// showMenu turns the actions offered for the selection into the hint line.
func (a *App) showMenu(m session.Menu, err error) {
	if a.anchor == nil {
		a.statusBar.SetHint("")
		return
	}
	if errors.Is(err, resolve.ErrCrossContainer) {
		a.statusBar.SetHint("")
		a.statusBar.SetTemporaryMessage("Selection spans messages")
		return
	}
	a.statusBar.SetHint(menuText(m))
}

func menuText(m session.Menu) string {
	var s string
	add := func(item string) {
		if s != "" {
			s += "  "
		}
		s += item
	}
	if m.Delete {
		add("[d] delete")
	}
	if m.Rewrite {
		add("[r] rewrite")
		add("[p] paste")
	}
	if m.Generate {
		add("[g] generate")
	}
	return s
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n:])
}

// selectionError reports a selection the session refused.
func (a *App) selectionError(err error) {
	switch {
	case errors.Is(err, resolve.ErrCrossContainer):
		a.statusBar.SetError("Selection spans messages")
	case errors.Is(err, session.ErrNoChat):
		a.statusBar.SetError("No chat is open")
	default:
		a.statusBar.SetTemporaryMessage("Nothing selected")
	}
}

// editError reports a failed edit that the session left to the caller.
func (a *App) editError(kind edit.Kind, err error) {
	switch {
	case errors.Is(err, generate.ErrCancelled):
		a.statusBar.SetTemporaryMessage("%s cancelled", kind)
	case errors.Is(err, resolve.ErrResolution):
		a.statusBar.SetError("Could not find the selection in the message")
	case errors.Is(err, resolve.ErrCrossContainer):
		a.statusBar.SetError("Selection spans messages")
	case errors.Is(err, session.ErrNoSelection), errors.Is(err, resolve.ErrEmptySelection):
		a.statusBar.SetTemporaryMessage("Nothing selected")
	default:
		logger.DebugTagf("app", "%s failed: %v", kind, err)
	}
}

func (a *App) deletedText(out edit.Outcome) string {
	r := []rune(out.Change.Original)
	s := out.Span
	if s.Start < 0 || s.End > len(r) || s.Start > s.End {
		return ""
	}
	return string(r[s.Start:s.End])
}

func describe(out edit.Outcome) string {
	if out.NoOp {
		return "unchanged"
	}
	return out.Change.Summary()
}
