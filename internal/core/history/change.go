// Package history keeps a bounded ledger of span edits so each message can
// be reverted to the text it had before its most recent edit.
package history

import (
	"fmt"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Change records one applied edit of a message.
type Change struct {
	MessageID string
	SwipeID   *int   // swipe slot that was edited, nil when the message has none
	Original  string // raw text before the edit
	Updated   string // raw text after the edit
	Timestamp time.Time
}

// Summary describes the size of the edit, e.g. "-12 +30 chars".
func (c Change) Summary() string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(c.Original, c.Updated, false)

	var ins, del int
	for _, d := range diffs {
		n := len([]rune(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			ins += n
		case diffmatchpatch.DiffDelete:
			del += n
		}
	}
	return fmt.Sprintf("-%d +%d chars", del, ins)
}

func (c Change) String() string {
	if c.SwipeID != nil {
		return fmt.Sprintf("message %s swipe %d (%s)", c.MessageID, *c.SwipeID, c.Summary())
	}
	return fmt.Sprintf("message %s (%s)", c.MessageID, c.Summary())
}
