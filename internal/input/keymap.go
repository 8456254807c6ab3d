// internal/input/keymap.go
package input

import (
	"github.com/gdamore/tcell/v2"
)

// Keymap maps specific key events to editor actions.
type Keymap map[tcell.Key]Action        // For special keys (Enter, Arrows, etc.)
type RuneKeymap map[rune]Action         // For single-letter commands
type ModKeymap map[tcell.ModMask]Keymap // For keys combined with modifiers (Ctrl, Alt, Shift)

// InputProcessor translates tcell events into ActionEvents.
type InputProcessor struct {
	keymap     Keymap
	runeKeymap RuneKeymap
	modKeymap  ModKeymap
}

// NewInputProcessor creates a processor with default keybindings.
func NewInputProcessor() *InputProcessor {
	p := &InputProcessor{
		keymap:     make(Keymap),
		runeKeymap: make(RuneKeymap),
		modKeymap:  make(ModKeymap),
	}
	p.loadDefaultBindings()
	return p
}

func (p *InputProcessor) loadDefaultBindings() {
	// --- Simple Keys ---
	p.keymap[tcell.KeyUp] = ActionMoveUp
	p.keymap[tcell.KeyDown] = ActionMoveDown
	p.keymap[tcell.KeyLeft] = ActionMoveLeft
	p.keymap[tcell.KeyRight] = ActionMoveRight
	p.keymap[tcell.KeyHome] = ActionMoveHome
	p.keymap[tcell.KeyEnd] = ActionMoveEnd
	p.keymap[tcell.KeyTab] = ActionNextMessage
	p.keymap[tcell.KeyBacktab] = ActionPrevMessage
	p.keymap[tcell.KeyBackspace] = ActionDeleteCharBackward
	p.keymap[tcell.KeyBackspace2] = ActionDeleteCharBackward
	p.keymap[tcell.KeyEnter] = ActionSubmit
	p.keymap[tcell.KeyEscape] = ActionCancel
	p.keymap[tcell.KeyCtrlC] = ActionQuit

	// --- Shift + movement selects ---
	shiftMap := make(Keymap)
	shiftMap[tcell.KeyUp] = ActionSelectUp
	shiftMap[tcell.KeyDown] = ActionSelectDown
	shiftMap[tcell.KeyLeft] = ActionSelectLeft
	shiftMap[tcell.KeyRight] = ActionSelectRight
	shiftMap[tcell.KeyHome] = ActionSelectHome
	shiftMap[tcell.KeyEnd] = ActionSelectEnd
	p.modKeymap[tcell.ModShift] = shiftMap

	ctrlMap := make(Keymap)
	ctrlMap[tcell.KeyCtrlZ] = ActionUndo
	p.modKeymap[tcell.ModCtrl] = ctrlMap

	// --- Letter commands ---
	p.runeKeymap['d'] = ActionDelete
	p.runeKeymap['r'] = ActionRewrite
	p.runeKeymap['p'] = ActionPaste
	p.runeKeymap['g'] = ActionGenerate
	p.runeKeymap['u'] = ActionUndo
	p.runeKeymap['q'] = ActionQuit
	p.runeKeymap['j'] = ActionNextMessage
	p.runeKeymap['k'] = ActionPrevMessage
	p.runeKeymap[']'] = ActionNextChat
	p.runeKeymap['['] = ActionPrevChat
}

// ProcessEvent takes a tcell key event and returns the corresponding ActionEvent.
// Modes are not handled here; a prompt treats any event with a Rune as text.
func (p *InputProcessor) ProcessEvent(ev *tcell.EventKey) ActionEvent {
	key := ev.Key()
	mod := ev.Modifiers()
	runeVal := ev.Rune()

	// Keys like KeyCtrlZ already imply Ctrl.
	if key >= tcell.KeyCtrlA && key <= tcell.KeyCtrlZ {
		if action, ok := p.modKeymap[tcell.ModCtrl][key]; ok {
			return ActionEvent{Action: action}
		}
		mod &^= tcell.ModCtrl
	}

	if key == tcell.KeyRune {
		if mod&^tcell.ModShift != tcell.ModNone {
			return ActionEvent{Action: ActionUnknown}
		}
		if action, ok := p.runeKeymap[runeVal]; ok && mod == tcell.ModNone {
			return ActionEvent{Action: action, Rune: runeVal}
		}
		return ActionEvent{Action: ActionInsertRune, Rune: runeVal}
	}

	if modKeyMap, ok := p.modKeymap[mod]; ok {
		if action, ok := modKeyMap[key]; ok {
			return ActionEvent{Action: action}
		}
	}

	if mod == tcell.ModNone {
		if action, ok := p.keymap[key]; ok {
			return ActionEvent{Action: action}
		}
	}
	return ActionEvent{Action: ActionUnknown}
}
