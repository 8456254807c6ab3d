// internal/statusbar/statusbar.go
package statusbar

import (
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/bethropolis/spanedit/internal/theme"
)

// Config defines the behavior of the status bar.
type Config struct {
	MessageTimeout time.Duration
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{MessageTimeout: 4 * time.Second}
}

// StatusBar is the bottom status line plus an optional hint line above it
// holding the action menu or generation progress.
type StatusBar struct {
	config Config
	mu     sync.RWMutex

	chatID     string
	messageID  string
	offset     int
	undoable   int
	editorMode string
	busy       bool

	hint string

	promptLabel string
	promptText  string
	prompting   bool

	tempMessage     string
	tempMessageTime time.Time
	tempIsError     bool

	now func() time.Time
}

// New creates a new StatusBar with the given configuration.
func New(config Config) *StatusBar {
	return &StatusBar{config: config, now: time.Now}
}

// SetChatInfo updates the chat shown in the status bar.
func (sb *StatusBar) SetChatInfo(chatID string, undoable int) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.chatID = chatID
	sb.undoable = undoable
}

// SetCursorInfo updates the cursor location shown.
func (sb *StatusBar) SetCursorInfo(messageID string, offset int) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.messageID = messageID
	sb.offset = offset
}

// SetEditorMode updates the displayed editor mode.
func (sb *StatusBar) SetEditorMode(mode string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.editorMode = mode
}

// SetBusy marks a generation as running.
func (sb *StatusBar) SetBusy(busy bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.busy = busy
}

// SetHint sets the line drawn above the status line. Empty hides it.
func (sb *StatusBar) SetHint(hint string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.hint = hint
}

// Hint returns the current hint line.
func (sb *StatusBar) Hint() string {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.hint
}

// Height returns the number of rows the status bar occupies.
func (sb *StatusBar) Height() int {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	if sb.hint != "" {
		return 2
	}
	return 1
}

// SetPrompt shows an input prompt in place of the status line.
func (sb *StatusBar) SetPrompt(label, text string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.promptLabel = label
	sb.promptText = text
	sb.prompting = true
}

// ClearPrompt hides the input prompt.
func (sb *StatusBar) ClearPrompt() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.promptLabel, sb.promptText = "", ""
	sb.prompting = false
}

// SetTemporaryMessage displays a message for a configured duration.
func (sb *StatusBar) SetTemporaryMessage(format string, args ...interface{}) {
	sb.setMessage(false, format, args...)
}

// SetError displays an error message for a configured duration.
func (sb *StatusBar) SetError(format string, args ...interface{}) {
	sb.setMessage(true, format, args...)
}

func (sb *StatusBar) setMessage(isErr bool, format string, args ...interface{}) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.tempMessage = fmt.Sprintf(format, args...)
	sb.tempMessageTime = sb.now()
	sb.tempIsError = isErr
}

// ResetTemporaryMessage clears any temporary message being displayed
func (sb *StatusBar) ResetTemporaryMessage() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.tempMessage = ""
	sb.tempMessageTime = time.Time{}
}

// getDefaultDisplayText builds the default status line text. The caller
// holds the lock.
func (sb *StatusBar) getDefaultDisplayText() string {
	chat := sb.chatID
	if chat == "" {
		chat = "[No Chat]"
	}
	text := chat
	if sb.messageID != "" {
		text += fmt.Sprintf(" -- Message #%s, Col: %d", sb.messageID, sb.offset+1)
	}
	if sb.undoable > 0 {
		text += fmt.Sprintf(" -- %d undoable", sb.undoable)
	}
	if sb.busy {
		text += " -- generating"
	}
	if sb.editorMode != "" {
		text += fmt.Sprintf(" -- %s", sb.editorMode)
	}
	return text
}

// Text returns the status line as it would be drawn now, with the style
// name to draw it in.
func (sb *StatusBar) Text() (string, string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.prompting {
		return sb.promptLabel + sb.promptText, theme.StyleStatusBarPrompt
	}

	active := !sb.tempMessageTime.IsZero() && sb.now().Sub(sb.tempMessageTime) <= sb.config.MessageTimeout
	if !sb.tempMessageTime.IsZero() && !active {
		sb.tempMessage = ""
		sb.tempMessageTime = time.Time{}
	}
	if active {
		if sb.tempIsError {
			return sb.tempMessage, theme.StyleStatusBarError
		}
		return sb.tempMessage, theme.StyleStatusBarMessage
	}
	return sb.getDefaultDisplayText(), theme.StyleStatusBar
}

// Draw renders the status bar onto the bottom rows of the screen.
func (sb *StatusBar) Draw(screen tcell.Screen, width, height int, th *theme.Theme) {
	if height <= 0 || width <= 0 {
		return
	}
	if th == nil {
		th = theme.GetCurrentTheme()
	}

	text, styleName := sb.Text()
	drawLine(screen, height-1, width, text, th.GetStyle(styleName))

	if hint := sb.Hint(); hint != "" && height > 1 {
		drawLine(screen, height-2, width, hint, th.GetStyle(theme.StyleMenu))
	}
}

func drawLine(screen tcell.Screen, y, width int, text string, style tcell.Style) {
	for x := 0; x < width; x++ {
		screen.SetContent(x, y, ' ', nil, style)
	}

	gr := uniseg.NewGraphemes(text)
	currentX := 0
	for gr.Next() {
		clusterWidth := gr.Width()
		if currentX+clusterWidth > width {
			break
		}
		runes := gr.Runes()
		if len(runes) > 0 {
			screen.SetContent(currentX, y, runes[0], runes[1:], style)
		}
		currentX += clusterWidth
	}
}
