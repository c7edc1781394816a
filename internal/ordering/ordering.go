// Package ordering maintains the custom display order of a user's tasks.
//
// Every task carries an integer sort key. New tasks receive a key derived
// from the wall clock so they land at the end of the list without touching
// existing rows; a reorder replaces the keys of the listed tasks with their
// zero-based positions.
package ordering

import (
	"sync"
	"time"
)

// Sequencer hands out initial sort keys in milliseconds since the epoch.
// Keys are strictly increasing for the lifetime of the Sequencer even when
// the clock stalls or steps backwards.
type Sequencer struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewSequencer returns a Sequencer reading the given clock. A nil clock
// falls back to time.Now.
func NewSequencer(now func() time.Time) *Sequencer {
	if now == nil {
		now = time.Now
	}
	return &Sequencer{now: now}
}

// Next returns the key for a task created now.
func (s *Sequencer) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.now().UnixMilli()
	if key <= s.last {
		key = s.last + 1
	}
	s.last = key
	return key
}

// Placement is the sort key a reorder assigns to one task.
type Placement struct {
	TaskID string
	Key    int64
}

// Placements maps an ordered id list to sort keys equal to each id's index.
// Duplicate ids are kept; the later position wins once applied in order.
func Placements(orderedIDs []string) []Placement {
	out := make([]Placement, 0, len(orderedIDs))
	for i, id := range orderedIDs {
		out = append(out, Placement{TaskID: id, Key: int64(i)})
	}
	return out
}
