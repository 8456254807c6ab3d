// Package event is a small synchronous event bus connecting the session,
// the chat store and the UI.
package event

import "fmt"

// Type identifies the kind of event.
type Type int

const (
	TypeUnknown Type = iota

	// Chat lifecycle
	TypeChatLoaded  // A chat was opened
	TypeChatChanged // The active chat switched; history is no longer valid

	// Message events
	TypeMessageUpdated // A span edit or undo changed a message; re-render it
	TypeMessageEdited  // A message changed through some other path (external edit)

	// History
	TypeHistoryChanged // Ledger contents changed; carries the ids with entries

	// Generation
	TypeGenerationStarted
	TypeGenerationChunk
	TypeGenerationFinished

	// Application lifecycle
	TypeAppReady
	TypeAppQuit
)

var typeNames = map[Type]string{
	TypeUnknown:            "unknown",
	TypeChatLoaded:         "chat-loaded",
	TypeChatChanged:        "chat-changed",
	TypeMessageUpdated:     "message-updated",
	TypeMessageEdited:      "message-edited",
	TypeHistoryChanged:     "history-changed",
	TypeGenerationStarted:  "generation-started",
	TypeGenerationChunk:    "generation-chunk",
	TypeGenerationFinished: "generation-finished",
	TypeAppReady:           "app-ready",
	TypeAppQuit:            "app-quit",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Event is the structure passed through the event bus.
type Event struct {
	Type Type
	Data interface{}
}

// ChatData identifies a chat.
type ChatData struct {
	ChatID string
	Path   string
}

// MessageData identifies a message and, when the edit targeted one, a swipe.
type MessageData struct {
	MessageID string
	SwipeID   *int
}

// HistoryChangedData lists the message ids that currently have undo entries.
type HistoryChangedData struct {
	MessageIDs []string
}

// GenerationData describes a generation request for a message.
type GenerationData struct {
	MessageID string
	Text      string // chunk text or final text
	Err       error  // set on a failed or cancelled finish
}
