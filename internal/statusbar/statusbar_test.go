package statusbar

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bethropolis/spanedit/internal/theme"
)

func TestDefaultText(t *testing.T) {
	sb := New(DefaultConfig())
	text, style := sb.Text()
	assert.Equal(t, "[No Chat]", text)
	assert.Equal(t, theme.StyleStatusBar, style)

	sb.SetChatInfo("story", 2)
	sb.SetCursorInfo("3", 4)
	sb.SetBusy(true)
	sb.SetEditorMode("NORMAL")
	text, _ = sb.Text()
	assert.Equal(t, "story -- Message #3, Col: 5 -- 2 undoable -- generating -- NORMAL", text)
}

func TestTemporaryMessageExpires(t *testing.T) {
	now := time.Unix(100, 0)
	sb := New(Config{MessageTimeout: time.Second})
	sb.now = func() time.Time { return now }
	sb.SetChatInfo("c", 0)

	sb.SetError("failed: %s", "boom")
	text, style := sb.Text()
	assert.Equal(t, "failed: boom", text)
	assert.Equal(t, theme.StyleStatusBarError, style)

	now = now.Add(2 * time.Second)
	text, style = sb.Text()
	assert.Equal(t, "c", text)
	assert.Equal(t, theme.StyleStatusBar, style)
}

func TestPromptWins(t *testing.T) {
	sb := New(DefaultConfig())
	sb.SetTemporaryMessage("hello")
	sb.SetPrompt("Rewrite: ", "new")
	text, style := sb.Text()
	assert.Equal(t, "Rewrite: new", text)
	assert.Equal(t, theme.StyleStatusBarPrompt, style)

	sb.ClearPrompt()
	text, _ = sb.Text()
	assert.Equal(t, "hello", text)
}

func TestDrawWithHint(t *testing.T) {
	s := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, s.Init())
	defer s.Fini()
	s.SetSize(12, 4)

	sb := New(DefaultConfig())
	sb.SetChatInfo("abc", 0)
	assert.Equal(t, 1, sb.Height())
	sb.SetHint("[d] delete")
	assert.Equal(t, 2, sb.Height())

	sb.Draw(s, 12, 4, &theme.DevComfortDark)
	r, _, style, _ := s.GetContent(0, 3)
	assert.Equal(t, 'a', r)
	assert.Equal(t, theme.DevComfortDark.GetStyle(theme.StyleStatusBar), style)
	r, _, style, _ = s.GetContent(1, 2)
	assert.Equal(t, 'd', r)
	assert.Equal(t, theme.DevComfortDark.GetStyle(theme.StyleMenu), style)
}
