// Package queue implements the ordered review queue of flagged predictions.
package queue

import (
	"errors"

	"github.com/hsdd/triage/internal/model"
)

// Boundary conditions reported by navigation and removal. These are terminal
// positions of a valid queue, not failures; callers branch with errors.Is and
// decide whether "queue exhausted" means anything to them.
var (
	// ErrEmptyQueue is reported by any cursor operation on an empty queue.
	ErrEmptyQueue = errors.New("queue is empty")
	// ErrAtStart is reported by Retreat when the cursor is on the first item.
	ErrAtStart = errors.New("already at first item")
	// ErrAtEnd is reported by Advance when the cursor is on the last item.
	ErrAtEnd = errors.New("already at last item")
)

// Queue holds flagged items in the portal's triage order with a movable
// cursor. The order is never recomputed locally; Seed replaces everything.
//
// A Queue is owned by exactly one review session and is not safe for
// concurrent use.
type Queue struct {
	items  []model.FlaggedItem
	cursor int
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{cursor: -1}
}

// Seed replaces the entire contents with items, preserving their order, and
// points the cursor at the first item (or nothing if items is empty).
func (q *Queue) Seed(items []model.FlaggedItem) {
	q.items = make([]model.FlaggedItem, len(items))
	copy(q.items, items)

	if len(q.items) == 0 {
		q.cursor = -1
		return
	}
	q.cursor = 0
}

// Len returns the number of items currently in the queue.
func (q *Queue) Len() int {
	return len(q.items)
}

// Position returns the cursor index and total count. The index is -1 when the
// queue is empty.
func (q *Queue) Position() (index, total int) {
	return q.cursor, len(q.items)
}

// Current returns the item under the cursor. The second return is false when
// the queue is empty.
func (q *Queue) Current() (model.FlaggedItem, bool) {
	if q.cursor < 0 {
		return model.FlaggedItem{}, false
	}
	return q.items[q.cursor], true
}

// Advance moves the cursor to the next item. It reports ErrAtEnd (cursor
// unchanged) on the last item and ErrEmptyQueue on an empty queue.
func (q *Queue) Advance() error {
	if q.cursor < 0 {
		return ErrEmptyQueue
	}
	if q.cursor >= len(q.items)-1 {
		return ErrAtEnd
	}
	q.cursor++
	return nil
}

// Retreat moves the cursor to the previous item. It reports ErrAtStart
// (cursor unchanged) on the first item and ErrEmptyQueue on an empty queue.
func (q *Queue) Retreat() error {
	if q.cursor < 0 {
		return ErrEmptyQueue
	}
	if q.cursor == 0 {
		return ErrAtStart
	}
	q.cursor--
	return nil
}

// RemoveCurrent removes the item under the cursor as one atomic
// remove-and-advance: the cursor keeps its numeric index, which now addresses
// the item that followed the removed one, except when the last item was
// removed, in which case the cursor clamps to the new last index. An emptied
// queue has no cursor.
func (q *Queue) RemoveCurrent() error {
	if q.cursor < 0 {
		return ErrEmptyQueue
	}

	q.items = append(q.items[:q.cursor], q.items[q.cursor+1:]...)

	if len(q.items) == 0 {
		q.cursor = -1
		return nil
	}
	if q.cursor > len(q.items)-1 {
		q.cursor = len(q.items) - 1
	}
	return nil
}

// UpdateCurrentStatus mutates the status of the item under the cursor in
// place. The item stays in the queue and the cursor does not move.
func (q *Queue) UpdateCurrentStatus(status model.ReviewStatus) error {
	if q.cursor < 0 {
		return ErrEmptyQueue
	}
	q.items[q.cursor].Status = status
	return nil
}

// Items returns a copy of the queue contents in order.
func (q *Queue) Items() []model.FlaggedItem {
	out := make([]model.FlaggedItem, len(q.items))
	copy(out, q.items)
	return out
}
