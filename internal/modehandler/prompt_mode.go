package modehandler

import (
	"github.com/bethropolis/spanedit/internal/input"
	"github.com/bethropolis/spanedit/internal/logger"
)

// handleActionPrompt edits the rewrite prompt. Enter submits the text
// verbatim; Esc cancels without editing.
func (mh *ModeHandler) handleActionPrompt(actionEvent input.ActionEvent) bool {
	switch {
	case actionEvent.Rune != 0:
		mh.prompt = append(mh.prompt, actionEvent.Rune)

	case actionEvent.Action == input.ActionDeleteCharBackward:
		if len(mh.prompt) > 0 {
			mh.prompt = mh.prompt[:len(mh.prompt)-1]
		}

	case actionEvent.Action == input.ActionSubmit:
		text := string(mh.prompt)
		mh.leavePrompt()
		mh.editor.Rewrite(text)
		return true

	case actionEvent.Action == input.ActionCancel:
		mh.leavePrompt()
		logger.DebugTagf("input", "Rewrite prompt cancelled")
		return true

	case actionEvent.Action == input.ActionQuit:
		mh.leavePrompt()
		mh.quit()
		return false

	default:
		return false
	}
	mh.statusBar.SetPrompt("Rewrite: ", string(mh.prompt))
	return true
}

func (mh *ModeHandler) leavePrompt() {
	mh.currentMode = ModeNormal
	mh.prompt = mh.prompt[:0]
	mh.statusBar.ClearPrompt()
}

// GetPromptBuffer returns the text typed into the rewrite prompt.
func (mh *ModeHandler) GetPromptBuffer() string {
	if mh.currentMode == ModePrompt {
		return string(mh.prompt)
	}
	return ""
}
