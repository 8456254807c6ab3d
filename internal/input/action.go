// internal/input/action.go
package input

// Action represents a command or operation to be performed by the editor.
type Action int

const (
	// --- Meta Actions ---
	ActionUnknown Action = iota
	ActionQuit
	ActionCancel // Esc: cancel generation, prompt or selection

	// --- Cursor Movement ---
	ActionMoveUp
	ActionMoveDown
	ActionMoveLeft
	ActionMoveRight
	ActionMoveHome
	ActionMoveEnd
	ActionNextMessage
	ActionPrevMessage

	// --- Selection (shift + movement) ---
	ActionSelectUp
	ActionSelectDown
	ActionSelectLeft
	ActionSelectRight
	ActionSelectHome
	ActionSelectEnd

	// --- Edits ---
	ActionDelete
	ActionRewrite // opens the rewrite prompt
	ActionPaste   // rewrite from clipboard
	ActionGenerate
	ActionUndo

	// --- Chats ---
	ActionNextChat
	ActionPrevChat

	// --- Prompt ---
	ActionInsertRune
	ActionDeleteCharBackward
	ActionSubmit
)

// ActionEvent represents a decoded input event resulting in an action.
type ActionEvent struct {
	Action Action
	Rune   rune // set for every printable key, bound or not
}

// IsMovement reports whether a is a cursor movement.
func (a Action) IsMovement() bool {
	return a >= ActionMoveUp && a <= ActionPrevMessage
}

// IsSelection reports whether a extends the selection.
func (a Action) IsSelection() bool {
	return a >= ActionSelectUp && a <= ActionSelectEnd
}
