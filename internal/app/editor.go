package app

import (
	"errors"

	"github.com/bethropolis/spanedit/internal/chat"
	"github.com/bethropolis/spanedit/internal/core/edit"
	"github.com/bethropolis/spanedit/internal/core/resolve"
	"github.com/bethropolis/spanedit/internal/input"
	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/modehandler"
	"github.com/bethropolis/spanedit/internal/session"
	"github.com/bethropolis/spanedit/internal/tui"
)

var _ modehandler.Editor = (*App)(nil)

// MoveCursor implements modehandler.Editor.
func (a *App) MoveCursor(action input.Action, extend bool) {
	if len(a.messages) == 0 {
		return
	}
	if extend && a.anchor == nil {
		anchor := a.cursor
		a.anchor = &anchor
	}
	if !extend && a.anchor != nil {
		a.ClearSelection()
	}

	a.cursor = a.clamp(a.move(a.cursor, action))

	if extend {
		a.queueSelection()
	}
}

// move returns p moved by one step of action.
func (a *App) move(p tui.Position, action input.Action) tui.Position {
	switch action {
	case input.ActionMoveLeft, input.ActionSelectLeft:
		if p.Off > 0 {
			p.Off--
		} else if p.Msg > 0 {
			p.Msg--
			p.Off = a.messages[p.Msg].Doc.Len()
		}
	case input.ActionMoveRight, input.ActionSelectRight:
		if p.Off < a.messages[p.Msg].Doc.Len() {
			p.Off++
		} else if p.Msg < len(a.messages)-1 {
			p = tui.Position{Msg: p.Msg + 1}
		}
	case input.ActionMoveUp, input.ActionSelectUp:
		p = tui.Vertical(a.lines, p, -1)
	case input.ActionMoveDown, input.ActionSelectDown:
		p = tui.Vertical(a.lines, p, 1)
	case input.ActionMoveHome, input.ActionSelectHome:
		if i := tui.LineOf(a.lines, p); i >= 0 {
			p.Off = a.lines[i].Start
		}
	case input.ActionMoveEnd, input.ActionSelectEnd:
		if i := tui.LineOf(a.lines, p); i >= 0 {
			p.Off = a.lines[i].End
		}
	case input.ActionNextMessage:
		if p.Msg < len(a.messages)-1 {
			p = tui.Position{Msg: p.Msg + 1}
		}
	case input.ActionPrevMessage:
		if p.Msg > 0 {
			p = tui.Position{Msg: p.Msg - 1}
		}
	}
	return p
}

// selectionBounds returns the ordered selection ends.
func (a *App) selectionBounds() (tui.Position, tui.Position) {
	start, end := *a.anchor, a.cursor
	if end.Less(start) {
		start, end = end, start
	}
	return start, end
}

// selectionRange builds the range the session captures, together with
// the swipe shown for the selected message.
func (a *App) selectionRange() (resolve.Range, *int) {
	start, end := a.selectionBounds()
	sc := a.messages[start.Msg].Doc.Container(a.messages[start.Msg].ID)
	ec := sc
	if end.Msg != start.Msg {
		ec = a.messages[end.Msg].Doc.Container(a.messages[end.Msg].ID)
	}
	r := resolve.Range{Start: sc.BoundaryAt(start.Off), End: ec.BoundaryAt(end.Off)}

	var swipe *int
	if msg, err := a.store.Message(a.messages[start.Msg].ID); err == nil {
		swipe = msg.ActiveSwipe()
	}
	return r, swipe
}

// queueSelection hands the selection to the session once the cursor rests.
func (a *App) queueSelection() {
	if !a.HasSelection() {
		a.session.ClearSelection()
		a.statusBar.SetHint("")
		return
	}
	r, swipe := a.selectionRange()
	a.session.QueueSelection(r, swipe, func(m session.Menu, err error) {
		a.post(menuUpdate{menu: m, err: err})
	})
}

// flushSelection captures the selection now, ahead of an edit.
func (a *App) flushSelection() bool {
	if !a.HasSelection() {
		return false
	}
	r, swipe := a.selectionRange()
	if _, err := a.session.Select(r, swipe); err != nil {
		a.selectionError(err)
		return false
	}
	return true
}

// ClearSelection implements modehandler.Editor.
func (a *App) ClearSelection() {
	a.anchor = nil
	a.session.ClearSelection()
	a.statusBar.SetHint("")
}

// HasSelection implements modehandler.Editor.
func (a *App) HasSelection() bool {
	return a.anchor != nil && *a.anchor != a.cursor
}

// Busy implements modehandler.Editor.
func (a *App) Busy() bool { return a.session.Busy() }

// Delete removes the selected text and yanks it to the clipboard.
func (a *App) Delete() {
	if !a.flushSelection() {
		return
	}
	out, err := a.session.Delete(a.ctx)
	if err != nil {
		a.editError(edit.KindDelete, err)
		return
	}
	if removed := a.deletedText(out); removed != "" && a.clip != nil {
		a.clip.Write(removed)
	}
	a.afterEdit(out)
	a.statusBar.SetTemporaryMessage("Deleted from message #%s (%s)", out.Change.MessageID, describe(out))
}

// Rewrite replaces the selected text with text.
func (a *App) Rewrite(text string) {
	if !a.flushSelection() {
		return
	}
	out, err := a.session.Rewrite(a.ctx, text)
	if err != nil {
		a.editError(edit.KindRewrite, err)
		return
	}
	a.afterEdit(out)
	a.statusBar.SetTemporaryMessage("Rewrote message #%s (%s)", out.Change.MessageID, describe(out))
}

// RewriteFromClipboard replaces the selected text with the clipboard.
func (a *App) RewriteFromClipboard() {
	if !a.flushSelection() {
		return
	}
	out, err := a.session.RewriteFromClipboard(a.ctx)
	if err != nil {
		a.editError(edit.KindRewrite, err)
		return
	}
	a.afterEdit(out)
	a.statusBar.SetTemporaryMessage("Pasted into message #%s (%s)", out.Change.MessageID, describe(out))
}

// Generate starts a generated rewrite of the selection in the background.
func (a *App) Generate() {
	if !a.flushSelection() {
		return
	}
	if !a.session.Menu().Generate {
		a.statusBar.SetTemporaryMessage("Generation is not configured")
		return
	}
	a.statusBar.SetBusy(true)
	a.statusBar.SetHint("Generating...")
	ctx := a.ctx
	go func() {
		out, err := a.session.Generate(ctx, func(text string) {
			a.post(generationProgress{text: text})
		})
		a.post(generationDone{out: out, err: err})
	}()
}

// CancelGeneration implements modehandler.Editor.
func (a *App) CancelGeneration() bool {
	if !a.session.Busy() {
		return false
	}
	a.session.Cancel()
	return true
}

// Undo reverts the newest edit of the message under the cursor.
func (a *App) Undo() {
	if len(a.messages) == 0 {
		return
	}
	id := a.messages[a.cursor.Msg].ID
	c, ok, err := a.session.Undo(a.ctx, id)
	switch {
	case err != nil:
		if errors.Is(err, edit.ErrTargetMissing) {
			a.statusBar.SetError("Message #%s no longer exists", id)
			a.loadMessages()
		}
	case !ok:
		a.statusBar.SetTemporaryMessage("Nothing to undo for message #%s", id)
	default:
		a.ClearSelection()
		a.refreshMessage(c.MessageID)
		a.statusBar.SetTemporaryMessage("Undid edit of message #%s", c.MessageID)
	}
}

// afterEdit drops the selection and shows the new text.
func (a *App) afterEdit(out edit.Outcome) {
	if a.anchor != nil {
		a.cursor, _ = a.selectionBounds()
	}
	a.ClearSelection()
	a.refreshMessage(out.Change.MessageID)
	logger.DebugTagf("app", "Applied %s", out.Change)
}

// SwitchChat opens the chat delta places away in the store's chat list.
func (a *App) SwitchChat(delta int) {
	sw, ok := a.store.(chat.Switcher)
	if !ok {
		a.statusBar.SetTemporaryMessage("This chat file holds a single chat")
		return
	}
	ids, err := sw.Chats(a.ctx)
	if err != nil {
		a.statusBar.SetError("Could not list chats: %v", err)
		return
	}
	if len(ids) < 2 {
		a.statusBar.SetTemporaryMessage("No other chats")
		return
	}
	cur := indexOfChat(ids, a.store.ChatID())
	if cur < 0 {
		cur = 0
	}
	n := ((cur+delta)%len(ids) + len(ids)) % len(ids)
	next := ids[n]

	if err := a.session.SwitchChat(a.ctx, next); err != nil {
		a.statusBar.SetError("Could not open chat %s: %v", next, err)
		return
	}
	a.resetView()
	a.statusBar.SetTemporaryMessage("Opened chat %s (%d/%d)", next, n+1, len(ids))
}

func indexOfChat(ids []string, id string) int {
	for i, c := range ids {
		if c == id {
			return i
		}
	}
	return -1
}

// resetView shows the current chat from its first message.
func (a *App) resetView() {
	a.anchor = nil
	a.cursor = tui.Position{}
	a.top = 0
	a.statusBar.SetHint("")
	a.loadMessages()
}
