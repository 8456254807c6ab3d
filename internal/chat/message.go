// Package chat holds chat messages and the stores that load and persist them.
package chat

import (
	"errors"
	"strconv"
)

var (
	// ErrMessageNotFound is returned for an unknown message id.
	ErrMessageNotFound = errors.New("message not found")
	// ErrSwipeOutOfRange is returned when a swipe index does not exist.
	ErrSwipeOutOfRange = errors.New("swipe index out of range")
)

// Message is one chat message. Raw is the unrendered text; Swipes holds
// alternate texts and SwipeID selects the one shown.
type Message struct {
	ID       string
	Name     string
	IsUser   bool
	IsSystem bool
	Raw      string
	Swipes   []string
	SwipeID  int
}

// HasSwipes reports whether the message carries alternate texts.
func (m Message) HasSwipes() bool { return len(m.Swipes) > 0 }

// ActiveSwipe returns the index of the shown swipe, or nil when the message
// has no swipes.
func (m Message) ActiveSwipe() *int {
	if !m.HasSwipes() || m.SwipeID < 0 || m.SwipeID >= len(m.Swipes) {
		return nil
	}
	id := m.SwipeID
	return &id
}

// Clone returns a deep copy.
func (m Message) Clone() Message {
	if m.Swipes != nil {
		m.Swipes = append([]string(nil), m.Swipes...)
	}
	return m
}

func (m Message) sameContent(o Message) bool {
	if m.Raw != o.Raw || m.SwipeID != o.SwipeID || len(m.Swipes) != len(o.Swipes) {
		return false
	}
	for i := range m.Swipes {
		if m.Swipes[i] != o.Swipes[i] {
			return false
		}
	}
	return true
}

// IndexID is the id given to the message at position i of a chat.
func IndexID(i int) string { return strconv.Itoa(i) }
