package session

import (
	"fmt"

	"github.com/bethropolis/spanedit/internal/logger"
)

// Level is the severity of a user notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warning"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Notifier shows short messages to the user. Calls must not block.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }

// logNotifier writes notifications to the log only.
type logNotifier struct{}

func (logNotifier) Notify(level Level, message string) {
	switch level {
	case LevelError:
		logger.Errorf("%s", message)
	case LevelWarn:
		logger.Warnf("%s", message)
	default:
		logger.Infof("%s", message)
	}
}
