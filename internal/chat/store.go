package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/bethropolis/spanedit/internal/logger"
)

// Store is the message store the editor works against.
type Store interface {
	ChatID() string
	Messages() []Message
	Message(id string) (Message, error)
	SetMessage(id, raw string) error
	SetSwipe(id string, index int, raw string) error
	Persist(ctx context.Context) error
}

// Switcher is implemented by stores holding more than one chat.
type Switcher interface {
	Chats(ctx context.Context) ([]string, error)
	Switch(ctx context.Context, chatID string) error
}

// Reloadable is implemented by file-backed stores that can pick up changes
// made by other programs.
type Reloadable interface {
	Path() string
	// Reload re-reads the backing file and returns the ids of messages whose
	// content changed.
	Reload() ([]string, error)
	// OwnWrite reports whether data is what the store itself last wrote.
	OwnWrite(data []byte) bool
}

// Memory is an in-memory store. The file and database stores build on it.
type Memory struct {
	mu       sync.RWMutex
	chatID   string
	messages []Message
	index    map[string]int
	dirty    map[string]struct{}

	// PersistFunc, when set, is called by Persist with the dirty messages.
	PersistFunc func(ctx context.Context, dirty []Message) error
}

// NewMemory creates a store holding copies of msgs. Messages without an id
// get their position as id.
func NewMemory(chatID string, msgs []Message) *Memory {
	m := &Memory{chatID: chatID}
	m.load(chatID, msgs)
	return m
}

func (m *Memory) load(chatID string, msgs []Message) {
	m.chatID = chatID
	m.messages = make([]Message, len(msgs))
	m.index = make(map[string]int, len(msgs))
	m.dirty = make(map[string]struct{})
	for i, msg := range msgs {
		msg = msg.Clone()
		if msg.ID == "" {
			msg.ID = IndexID(i)
		}
		m.messages[i] = msg
		m.index[msg.ID] = i
	}
}

// ChatID returns the id of the loaded chat.
func (m *Memory) ChatID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chatID
}

// Messages returns copies of all messages in chat order.
func (m *Memory) Messages() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Message, len(m.messages))
	for i, msg := range m.messages {
		out[i] = msg.Clone()
	}
	return out
}

// Message returns a copy of the message with the given id.
func (m *Memory) Message(id string) (Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	return m.messages[i].Clone(), nil
}

// SetMessage replaces the raw text of a message.
func (m *Memory) SetMessage(id, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	m.messages[i].Raw = raw
	m.dirty[id] = struct{}{}
	return nil
}

// SetSwipe replaces the text of one swipe slot.
func (m *Memory) SetSwipe(id string, index int, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	if index < 0 || index >= len(m.messages[i].Swipes) {
		return fmt.Errorf("%w: message %s swipe %d", ErrSwipeOutOfRange, id, index)
	}
	m.messages[i].Swipes[index] = raw
	m.dirty[id] = struct{}{}
	return nil
}

// Append adds a message at the end of the chat and returns its id.
func (m *Memory) Append(msg Message) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg = msg.Clone()
	if msg.ID == "" {
		msg.ID = IndexID(len(m.messages))
	}
	m.index[msg.ID] = len(m.messages)
	m.messages = append(m.messages, msg)
	m.dirty[msg.ID] = struct{}{}
	return msg.ID
}

// Dirty returns the ids changed since the last successful Persist.
func (m *Memory) Dirty() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.dirty))
	for _, msg := range m.messages {
		if _, ok := m.dirty[msg.ID]; ok {
			ids = append(ids, msg.ID)
		}
	}
	return ids
}

// Persist hands dirty messages to PersistFunc and marks them clean.
func (m *Memory) Persist(ctx context.Context) error {
	m.mu.RLock()
	var dirty []Message
	for _, msg := range m.messages {
		if _, ok := m.dirty[msg.ID]; ok {
			dirty = append(dirty, msg.Clone())
		}
	}
	m.mu.RUnlock()

	if m.PersistFunc != nil {
		if err := m.PersistFunc(ctx, dirty); err != nil {
			return err
		}
	}

	m.mu.Lock()
	for _, msg := range dirty {
		delete(m.dirty, msg.ID)
	}
	m.mu.Unlock()
	logger.DebugTagf("chat", "Persisted %d message(s) of chat %s", len(dirty), m.ChatID())
	return nil
}

// Replace swaps in a freshly loaded message list and reports which ids
// differ from the current content.
func (m *Memory) Replace(chatID string, msgs []Message) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.index
	oldMsgs := m.messages
	m.load(chatID, msgs)

	var changed []string
	for _, msg := range m.messages {
		i, ok := old[msg.ID]
		if !ok || !oldMsgs[i].sameContent(msg) {
			changed = append(changed, msg.ID)
		}
	}
	return changed
}
