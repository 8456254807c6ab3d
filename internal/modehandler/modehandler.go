// internal/modehandler/modehandler.go
package modehandler

import (
	"github.com/gdamore/tcell/v2"

	"github.com/bethropolis/spanedit/internal/input"
	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/statusbar"
)

// InputMode defines the different states for user input.
type InputMode int

const (
	ModeNormal InputMode = iota
	ModePrompt
)

func (m InputMode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModePrompt:
		return "REWRITE"
	}
	return "UNKNOWN"
}

// Editor is the chat view the handler drives.
type Editor interface {
	// MoveCursor applies a movement action, extending the selection when
	// extend is set and clearing it otherwise.
	MoveCursor(action input.Action, extend bool)
	ClearSelection()
	HasSelection() bool
	Busy() bool

	Delete()
	Rewrite(text string)
	RewriteFromClipboard()
	Generate()
	Undo()
	// SwitchChat opens the next (delta 1) or previous (delta -1) chat of
	// the store.
	SwitchChat(delta int)
	// CancelGeneration aborts a running generation and reports whether one ran.
	CancelGeneration() bool
}

// ModeHandler manages input modes and the rewrite prompt.
type ModeHandler struct {
	editor         Editor
	inputProcessor *input.InputProcessor
	statusBar      *statusbar.StatusBar
	quitSignal     chan<- struct{}

	currentMode InputMode
	prompt      []rune
	quitting    bool
}

// Config holds dependencies for the ModeHandler.
type Config struct {
	Editor         Editor
	InputProcessor *input.InputProcessor
	StatusBar      *statusbar.StatusBar
	QuitSignal     chan<- struct{}
}

// New creates a new ModeHandler.
func New(cfg Config) *ModeHandler {
	if cfg.Editor == nil || cfg.InputProcessor == nil || cfg.StatusBar == nil || cfg.QuitSignal == nil {
		panic("modehandler.New: Missing required dependencies in Config")
	}
	return &ModeHandler{
		editor:         cfg.Editor,
		inputProcessor: cfg.InputProcessor,
		statusBar:      cfg.StatusBar,
		quitSignal:     cfg.QuitSignal,
		currentMode:    ModeNormal,
	}
}

// HandleKeyEvent decides what to do based on current mode and key event.
// Returns true if the event resulted in an action requiring redraw.
func (mh *ModeHandler) HandleKeyEvent(ev *tcell.EventKey) bool {
	actionEvent := mh.inputProcessor.ProcessEvent(ev)

	switch mh.currentMode {
	case ModeNormal:
		return mh.handleActionNormal(actionEvent)
	case ModePrompt:
		return mh.handleActionPrompt(actionEvent)
	default:
		logger.Debugf("Warning: Unknown input mode: %v", mh.currentMode)
		return false
	}
}

func (mh *ModeHandler) handleActionNormal(actionEvent input.ActionEvent) bool {
	action := actionEvent.Action

	switch {
	case action.IsMovement():
		mh.editor.MoveCursor(action, false)
		return true
	case action.IsSelection():
		mh.editor.MoveCursor(action, true)
		return true
	}

	switch action {
	case input.ActionQuit:
		mh.quit()
		return false

	case input.ActionCancel:
		if mh.editor.CancelGeneration() {
			mh.statusBar.SetTemporaryMessage("Generation cancelled")
			return true
		}
		mh.editor.ClearSelection()

	case input.ActionDelete, input.ActionRewrite, input.ActionPaste, input.ActionGenerate:
		if mh.editor.Busy() {
			mh.statusBar.SetTemporaryMessage("Generation in progress (esc to cancel)")
			return true
		}
		if !mh.editor.HasSelection() {
			mh.statusBar.SetTemporaryMessage("Nothing selected")
			return true
		}
		mh.runEdit(action)

	case input.ActionUndo:
		mh.editor.Undo()

	case input.ActionNextChat:
		mh.editor.SwitchChat(1)
	case input.ActionPrevChat:
		mh.editor.SwitchChat(-1)

	default:
		return false
	}
	return true
}

func (mh *ModeHandler) runEdit(action input.Action) {
	switch action {
	case input.ActionDelete:
		mh.editor.Delete()
	case input.ActionRewrite:
		mh.currentMode = ModePrompt
		mh.prompt = mh.prompt[:0]
		mh.statusBar.SetPrompt("Rewrite: ", "")
		logger.DebugTagf("input", "Entering rewrite prompt")
	case input.ActionPaste:
		mh.editor.RewriteFromClipboard()
	case input.ActionGenerate:
		mh.editor.Generate()
	}
}

func (mh *ModeHandler) quit() {
	if mh.quitting {
		return
	}
	mh.quitting = true
	close(mh.quitSignal)
}

// GetCurrentMode returns the current input mode.
func (mh *ModeHandler) GetCurrentMode() InputMode {
	return mh.currentMode
}

// GetCurrentModeString returns the mode name for the status bar.
func (mh *ModeHandler) GetCurrentModeString() string {
	return mh.currentMode.String()
}
