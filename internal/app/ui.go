package app

import (
	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/modehandler"
	"github.com/bethropolis/spanedit/internal/statusbar"
	"github.com/bethropolis/spanedit/internal/tui"
)

// loadMessages renders every message of the current chat.
func (a *App) loadMessages() {
	msgs := a.store.Messages()
	a.messages = a.messages[:0]
	for _, m := range msgs {
		doc, err := a.session.Render(a.ctx, m.ID)
		if err != nil {
			logger.Warnf("App: failed to render message #%s: %v", m.ID, err)
		}
		name := m.Name
		if name == "" {
			name = "System"
		}
		a.messages = append(a.messages, tui.Message{ID: m.ID, Name: name, IsUser: m.IsUser, Doc: doc})
	}
	logger.DebugTagf("app", "Loaded %d messages of chat %q", len(a.messages), a.store.ChatID())
	a.relayout()
}

// refreshMessage re-renders one message after its raw text changed.
func (a *App) refreshMessage(id string) {
	i := a.indexOf(id)
	if i < 0 {
		// Message set changed underneath us.
		a.loadMessages()
		return
	}
	doc, err := a.session.Render(a.ctx, id)
	if err != nil {
		logger.Warnf("App: failed to render message #%s: %v", id, err)
		return
	}
	a.messages[i].Doc = doc
	if a.cursor.Msg == i {
		a.anchor = nil
	}
	a.relayout()
}

func (a *App) indexOf(id string) int {
	for i, m := range a.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// relayout wraps the messages to the screen width and keeps the cursor in
// bounds.
func (a *App) relayout() {
	a.width, _ = a.tuiManager.Size()
	a.lines = tui.Layout(a.messages, a.width)
	a.cursor = a.clamp(a.cursor)
	if a.anchor != nil {
		p := a.clamp(*a.anchor)
		a.anchor = &p
	}
}

func (a *App) clamp(p tui.Position) tui.Position {
	if len(a.messages) == 0 {
		return tui.Position{}
	}
	if p.Msg < 0 {
		p.Msg = 0
	}
	if p.Msg >= len(a.messages) {
		p.Msg = len(a.messages) - 1
	}
	n := a.messages[p.Msg].Doc.Len()
	if p.Off < 0 {
		p.Off = 0
	}
	if p.Off > n {
		p.Off = n
	}
	return p
}

// view builds the drawable chat state.
func (a *App) view() tui.View {
	v := tui.View{
		Messages: a.messages,
		Lines:    a.lines,
		Top:      a.top,
		Cursor:   a.cursor,
		Undoable: make(map[string]bool),
	}
	if a.HasSelection() {
		v.SelStart, v.SelEnd = a.selectionBounds()
		v.HasSelection = true
	}
	for _, id := range a.session.UndoMarkers() {
		v.Undoable[id] = true
	}
	return v
}

// drawEditor clears the screen and redraws all components.
func (a *App) drawEditor() {
	width, height := a.tuiManager.Size()
	if width != a.width {
		a.relayout()
	}
	a.updateStatusBarContent()

	viewHeight := height - a.statusBar.Height()
	if viewHeight < 0 {
		viewHeight = 0
	}
	a.top = tui.ScrollTop(a.top, tui.LineOf(a.lines, a.cursor), viewHeight)
	// Keep the header of the first message visible at the top.
	if a.cursor.Msg == 0 && a.top == 1 {
		a.top = 0
	}

	v := a.view()
	a.tuiManager.Clear()
	tui.DrawChat(a.tuiManager, v, a.activeTheme, viewHeight)
	a.statusBar.Draw(a.tuiManager.GetScreen(), width, height, a.activeTheme)
	if a.modeHandler.GetCurrentMode() == modehandler.ModeNormal {
		tui.DrawCursor(a.tuiManager, v, viewHeight)
	} else {
		a.tuiManager.GetScreen().HideCursor()
	}
	a.tuiManager.Show()
}

// updateStatusBarContent pushes chat and cursor state to the status bar.
func (a *App) updateStatusBarContent() {
	a.statusBar.SetChatInfo(a.store.ChatID(), len(a.session.UndoMarkers()))
	if len(a.messages) > 0 {
		a.statusBar.SetCursorInfo(a.messages[a.cursor.Msg].ID, a.cursor.Off)
	}
	a.statusBar.SetEditorMode(a.modeHandler.GetCurrentModeString())
	a.statusBar.SetBusy(a.session.Busy())
}

// StatusBar exposes the status bar for inspection.
func (a *App) StatusBar() *statusbar.StatusBar { return a.statusBar }
