// Package clipboard reads and writes rewrite text through the system
// clipboard, falling back to an in-process buffer when none is available.
package clipboard

import (
	"errors"
	"sync"

	"github.com/atotto/clipboard"

	"github.com/bethropolis/spanedit/internal/logger"
)

// ErrEmpty is returned when neither clipboard holds text.
var ErrEmpty = errors.New("clipboard is empty")

// Manager handles clipboard operations
type Manager struct {
	mu       sync.Mutex
	internal string
	system   bool

	readAll  func() (string, error)
	writeAll func(string) error
}

// NewManager creates a manager. When useSystem is false, or the platform
// has no clipboard utility, only the internal buffer is used.
func NewManager(useSystem bool) *Manager {
	return &Manager{
		system:   useSystem && !clipboard.Unsupported,
		readAll:  clipboard.ReadAll,
		writeAll: clipboard.WriteAll,
	}
}

// System reports whether the system clipboard is in use.
func (m *Manager) System() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.system
}

// Write stores text in the internal buffer and, if enabled, the system
// clipboard. A system failure is logged and otherwise ignored.
func (m *Manager) Write(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.internal = text
	if !m.system {
		return
	}
	if err := m.writeAll(text); err != nil {
		logger.Warnf("Clipboard: system write failed, keeping text internally: %v", err)
	}
}

// Read returns the clipboard text. The system clipboard wins when it holds
// text; otherwise the internal buffer is used.
func (m *Manager) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.system {
		text, err := m.readAll()
		switch {
		case err != nil:
			logger.Warnf("Clipboard: system read failed: %v", err)
		case text != "":
			return text, nil
		}
	}
	if m.internal == "" {
		return "", ErrEmpty
	}
	logger.Debugf("Clipboard: using internal buffer (%d bytes)", len(m.internal))
	return m.internal, nil
}
