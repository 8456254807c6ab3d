package history

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bethropolis/spanedit/internal/event"
	"github.com/bethropolis/spanedit/internal/logger"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted.
const DefaultCapacity = 15

// Target restores a message to the state recorded in a change.
type Target interface {
	Restore(ctx context.Context, c Change) error
}

// Ledger is a fixed-size ring of changes in insertion order. Undo is per
// message: it reverts the newest entry for that message regardless of what
// was recorded for other messages since.
type Ledger struct {
	mu     sync.Mutex
	target Target
	events *event.Manager

	ring  []Change
	head  int // index of the oldest entry
	count int
}

// NewLedger creates a ledger. A capacity of zero or less uses DefaultCapacity.
// events may be nil.
func NewLedger(capacity int, target Target, events *event.Manager) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		target: target,
		events: events,
		ring:   make([]Change, capacity),
	}
}

// Capacity returns the maximum number of entries.
func (l *Ledger) Capacity() int { return len(l.ring) }

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *Ledger) at(i int) int { return (l.head + i) % len(l.ring) }

// Record appends a change, evicting the oldest entry when full.
func (l *Ledger) Record(c Change) {
	l.mu.Lock()
	if l.count == len(l.ring) {
		evicted := l.ring[l.head]
		l.ring[l.head] = Change{}
		l.head = l.at(1)
		l.count--
		logger.DebugTagf("history", "Evicted oldest change for %s", evicted.MessageID)
	}
	l.ring[l.at(l.count)] = c
	l.count++
	logger.DebugTagf("history", "Recorded %v. Count: %d/%d", c, l.count, len(l.ring))
	l.mu.Unlock()

	l.notify()
}

// Last returns the newest entry for a message without removing it.
func (l *Ledger) Last(messageID string) (Change, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.find(messageID); i >= 0 {
		return l.ring[l.at(i)], true
	}
	return Change{}, false
}

// find scans from newest to oldest and returns the logical index of the
// newest entry for messageID, or -1.
func (l *Ledger) find(messageID string) int {
	for i := l.count - 1; i >= 0; i-- {
		if l.ring[l.at(i)].MessageID == messageID {
			return i
		}
	}
	return -1
}

// removeAt drops the entry at logical index i, closing the gap.
func (l *Ledger) removeAt(i int) {
	for j := i; j < l.count-1; j++ {
		l.ring[l.at(j)] = l.ring[l.at(j+1)]
	}
	l.ring[l.at(l.count-1)] = Change{}
	l.count--
}

// Undo reverts the newest change recorded for messageID through the target
// and removes exactly that entry. It reports false with no error when the
// message has no entries. If the target fails the ledger is left unchanged.
func (l *Ledger) Undo(ctx context.Context, messageID string) (Change, bool, error) {
	l.mu.Lock()
	i := l.find(messageID)
	if i < 0 {
		l.mu.Unlock()
		logger.DebugTagf("history", "Nothing to undo for message %s", messageID)
		return Change{}, false, nil
	}
	c := l.ring[l.at(i)]
	l.mu.Unlock()

	if l.target != nil {
		if err := l.target.Restore(ctx, c); err != nil {
			logger.Errorf("History: undo of %v failed: %v", c, err)
			return c, false, fmt.Errorf("undo failed: %w", err)
		}
	}

	l.mu.Lock()
	// The entry may have moved if something was recorded during Restore.
	if i = l.indexOf(c); i >= 0 {
		l.removeAt(i)
	}
	logger.DebugTagf("history", "Undid %v. Count: %d", c, l.count)
	l.mu.Unlock()

	l.notify()
	return c, true, nil
}

func (l *Ledger) indexOf(c Change) int {
	for i := l.count - 1; i >= 0; i-- {
		e := l.ring[l.at(i)]
		if e.MessageID == c.MessageID && e.Timestamp.Equal(c.Timestamp) &&
			e.Original == c.Original && e.Updated == c.Updated {
			return i
		}
	}
	return -1
}

// Invalidate removes every entry for messageID and returns how many were dropped.
func (l *Ledger) Invalidate(messageID string) int {
	l.mu.Lock()
	kept := make([]Change, 0, l.count)
	for i := 0; i < l.count; i++ {
		if c := l.ring[l.at(i)]; c.MessageID != messageID {
			kept = append(kept, c)
		}
	}
	dropped := l.count - len(kept)
	l.load(kept)
	l.mu.Unlock()

	if dropped > 0 {
		logger.DebugTagf("history", "Invalidated %d change(s) for message %s", dropped, messageID)
		l.notify()
	}
	return dropped
}

// Reset clears all entries.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.load(nil)
	l.mu.Unlock()
	logger.DebugTagf("history", "Cleared")
	l.notify()
}

func (l *Ledger) load(entries []Change) {
	for i := range l.ring {
		l.ring[i] = Change{}
	}
	copy(l.ring, entries)
	l.head = 0
	l.count = len(entries)
}

// Entries returns the entries from oldest to newest.
func (l *Ledger) Entries() []Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Change, l.count)
	for i := range out {
		out[i] = l.ring[l.at(i)]
	}
	return out
}

// MessageIDs returns the sorted ids of messages with at least one entry.
func (l *Ledger) MessageIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.messageIDs()
}

func (l *Ledger) messageIDs() []string {
	seen := make(map[string]struct{}, l.count)
	ids := make([]string, 0, l.count)
	for i := 0; i < l.count; i++ {
		id := l.ring[l.at(i)].MessageID
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// CanUndo reports whether messageID has an entry.
func (l *Ledger) CanUndo(messageID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.find(messageID) >= 0
}

func (l *Ledger) notify() {
	if l.events == nil {
		return
	}
	l.events.Dispatch(event.TypeHistoryChanged, event.HistoryChangedData{MessageIDs: l.MessageIDs()})
}
