// internal/theme/theme.go
package theme

import (
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/bethropolis/spanedit/internal/logger"
)

// Style names used by the chat view.
const (
	StyleDefault          = "Default"
	StyleSelection        = "Selection"
	StyleItalic           = "Text.Italic"
	StyleBold             = "Text.Bold"
	StyleCode             = "Text.Code"
	StyleLink             = "Text.Link"
	StyleHeader           = "Header"
	StyleHeaderUser       = "Header.User"
	StyleUndoMarker       = "UndoMarker"
	StyleMenu             = "Menu"
	StyleStatusBar        = "StatusBar"
	StyleStatusBarMessage = "StatusBarMessage"
	StyleStatusBarError   = "StatusBarError"
	StyleStatusBarPrompt  = "StatusBarPrompt"
)

// Theme maps style names to tcell styles.
type Theme struct {
	Name   string
	IsDark bool
	Styles map[string]tcell.Style
}

// GetStyle returns the named style, falling back to the part before the
// first dot and then to "Default".
func (t *Theme) GetStyle(name string) tcell.Style {
	if style, ok := t.Styles[name]; ok {
		return style
	}

	if dotIndex := strings.Index(name, "."); dotIndex != -1 {
		baseName := name[:dotIndex]
		if style, ok := t.Styles[baseName]; ok {
			logger.Debugf("Theme '%s': Style '%s' not found, using base '%s'", t.Name, name, baseName)
			return style
		}
	}

	if defStyle, ok := t.Styles[StyleDefault]; ok {
		if name != StyleDefault {
			logger.Debugf("Theme '%s': Style '%s' not found, falling back to 'Default'", t.Name, name)
		}
		return defStyle
	}

	logger.Warnf("Theme '%s': Style '%s' and 'Default' style not found, using tcell default.", t.Name, name)
	return tcell.StyleDefault
}

// --- DevComfort Dark Theme Definition ---

var DevComfortDark Theme

func init() {
	dcBackground := tcell.NewHexColor(0x2a2f38)
	dcForeground := tcell.NewHexColor(0xc5cdd9)
	dcComment := tcell.NewHexColor(0x5c6370)
	dcOrange := tcell.NewHexColor(0xd19a66)
	dcYellow := tcell.NewHexColor(0xe5c07b)
	dcGreen := tcell.NewHexColor(0x98c379)
	dcCyan := tcell.NewHexColor(0x56b6c2)
	dcBlue := tcell.NewHexColor(0x61afef)
	dcRed := tcell.NewHexColor(0xe06c75)

	baseStyle := tcell.StyleDefault.Background(tcell.ColorReset).Foreground(dcForeground)

	DevComfortDark = Theme{
		Name:   "DevComfort Dark",
		IsDark: true,
		Styles: map[string]tcell.Style{
			StyleDefault:   baseStyle,
			StyleSelection: baseStyle.Reverse(true),

			// Rendered message text
			StyleItalic: baseStyle.Italic(true),
			StyleBold:   baseStyle.Bold(true),
			StyleCode:   baseStyle.Foreground(dcGreen),
			StyleLink:   baseStyle.Foreground(dcBlue).Underline(true),

			// Message headers
			StyleHeader:     baseStyle.Foreground(dcCyan).Bold(true),
			StyleHeaderUser: baseStyle.Foreground(dcYellow).Bold(true),
			StyleUndoMarker: baseStyle.Foreground(dcOrange).Bold(true),
			StyleMenu:       tcell.StyleDefault.Background(dcComment).Foreground(dcForeground),

			StyleStatusBar:        tcell.StyleDefault.Background(dcBackground).Foreground(dcForeground),
			StyleStatusBarMessage: tcell.StyleDefault.Background(dcBackground).Foreground(dcForeground).Bold(true),
			StyleStatusBarError:   tcell.StyleDefault.Background(dcBackground).Foreground(dcRed).Bold(true),
			StyleStatusBarPrompt:  tcell.StyleDefault.Background(dcBackground).Foreground(dcGreen).Bold(true),
		},
	}

	CurrentTheme = &DevComfortDark
}

var CurrentTheme *Theme

func GetCurrentTheme() *Theme {
	if CurrentTheme == nil {
		CurrentTheme = &DevComfortDark
	}
	return CurrentTheme
}

func SetCurrentTheme(theme *Theme) {
	if theme != nil {
		CurrentTheme = theme
		logger.Infof("Theme switched to: %s", theme.Name)
	}
}
