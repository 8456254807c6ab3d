package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchOrderAndConsume(t *testing.T) {
	m := NewManager()
	var got []string

	m.Subscribe(TypeHistoryChanged, func(e Event) bool {
		data := e.Data.(HistoryChangedData)
		got = append(got, "first:"+data.MessageIDs[0])
		return false
	})
	m.Subscribe(TypeHistoryChanged, func(e Event) bool {
		got = append(got, "second")
		return true
	})
	m.Subscribe(TypeHistoryChanged, func(e Event) bool {
		got = append(got, "third")
		return false
	})

	m.Dispatch(TypeHistoryChanged, HistoryChangedData{MessageIDs: []string{"5"}})
	assert.Equal(t, []string{"first:5", "second"}, got)
}

func TestUnsubscribe(t *testing.T) {
	m := NewManager()
	calls := 0
	sub := m.Subscribe(TypeChatChanged, func(Event) bool { calls++; return false })
	other := m.Subscribe(TypeChatChanged, func(Event) bool { calls += 10; return false })

	m.Dispatch(TypeChatChanged, ChatData{ChatID: "a"})
	m.Unsubscribe(sub)
	m.Dispatch(TypeChatChanged, ChatData{ChatID: "b"})
	m.Unsubscribe(other)
	m.Unsubscribe(other)
	m.Dispatch(TypeChatChanged, ChatData{ChatID: "c"})

	assert.Equal(t, 21, calls)
}

func TestDispatchWithoutHandlers(t *testing.T) {
	assert.NotPanics(t, func() {
		NewManager().Dispatch(TypeAppQuit, nil)
	})
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "message-edited", TypeMessageEdited.String())
	assert.Equal(t, "event(99)", Type(99).String())
}
