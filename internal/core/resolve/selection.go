package resolve

import (
	"fmt"
	"strings"
)

// Selection is an immutable snapshot of a range, taken before any call that
// may suspend. Start and End are character offsets into the formatted text.
type Selection struct {
	MessageID string
	SwipeID   *int
	Start     int
	End       int
	Text      string // rendered selection text as the user saw it
}

// Capture snapshots a range. The range must be non-empty after trimming and
// lie inside a single message container.
func Capture(r Range, swipeID *int) (Selection, error) {
	if !r.SameContainer() {
		return Selection{}, ErrCrossContainer
	}
	c := r.Start.Container

	start, err := c.Offset(r.Start)
	if err != nil {
		return Selection{}, fmt.Errorf("start boundary: %w", err)
	}
	end, err := c.Offset(r.End)
	if err != nil {
		return Selection{}, fmt.Errorf("end boundary: %w", err)
	}
	if end < start {
		start, end = end, start
	}

	text := string([]rune(c.Text())[start:end])
	if strings.TrimSpace(text) == "" {
		return Selection{}, ErrEmptySelection
	}

	var swipe *int
	if swipeID != nil {
		v := *swipeID
		swipe = &v
	}
	return Selection{
		MessageID: c.MessageID,
		SwipeID:   swipe,
		Start:     start,
		End:       end,
		Text:      text,
	}, nil
}

// Len returns the number of formatted characters selected.
func (s Selection) Len() int { return s.End - s.Start }
