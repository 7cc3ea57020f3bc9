// Package ticklog implements the step log of §4.1: an append-only ordered
// sequence of (TickId, item) pairs where consecutive entries' tick ids
// differ by exactly one.
package ticklog

import (
	"github.com/tickline/lockstep/internal/errs"
)

// TickId is a monotonic 32-bit tick counter (§3). Sessions are assumed
// shorter than 2^32 ticks, so ordinary addition is used: the counter
// neither saturates nor handles wraparound.
type TickId uint32

// Log is an ordered sequence of (TickId, T) with a private read cursor.
// Pushing assigns the next tick id automatically; popping requires the
// front entry's tick to equal the read cursor, which guards against silent
// gaps (§4.1).
type Log[T any] struct {
	entries []entry[T]
	// nextTick is the tick id the next Push will assign.
	nextTick TickId
	// readCursor is the tick id Pop next expects at the front.
	readCursor TickId
	hasCursor  bool
}

type entry[T any] struct {
	tick TickId
	item T
}

// New creates an empty log whose first pushed entry is assigned frontTick.
func New[T any](frontTick TickId) *Log[T] {
	return &Log[T]{nextTick: frontTick}
}

// Push appends item, assigning it the next tick id, and returns that id.
func (l *Log[T]) Push(item T) TickId {
	tick := l.nextTick
	l.entries = append(l.entries, entry[T]{tick: tick, item: item})
	l.nextTick++
	if !l.hasCursor {
		l.readCursor = tick
		l.hasCursor = true
	}
	return tick
}

// Len returns the number of entries currently held.
func (l *Log[T]) Len() int { return len(l.entries) }

// FrontTickId returns the tick id of the first entry in the log.
func (l *Log[T]) FrontTickId() (TickId, bool) {
	if len(l.entries) == 0 {
		return 0, false
	}
	return l.entries[0].tick, true
}

// BackTickId returns the tick id of the last entry in the log, or the
// last-assigned tick if the log has since been drained but at least one
// entry was ever pushed.
func (l *Log[T]) BackTickId() (TickId, bool) {
	if len(l.entries) == 0 {
		if !l.hasCursor {
			return 0, false
		}
		return l.nextTick - 1, true
	}
	return l.entries[len(l.entries)-1].tick, true
}

// NextTickId returns the tick id that the next Push will assign.
func (l *Log[T]) NextTickId() TickId { return l.nextTick }

// Pop removes and returns the front entry. It fails if the log is empty, or
// (defensively) if the front entry's tick does not equal the expected read
// cursor — this should never happen given Push's invariant, but guards
// against silent gaps per §4.1.
func (l *Log[T]) Pop() (TickId, T, error) {
	var zero T
	if len(l.entries) == 0 {
		return 0, zero, errs.New(errs.Critical, "ticklog: pop on empty log")
	}
	front := l.entries[0]
	if l.hasCursor && front.tick != l.readCursor {
		return 0, zero, errs.New(errs.Critical, "ticklog: gap at tick %d, expected %d", front.tick, l.readCursor)
	}
	l.entries = l.entries[1:]
	l.readCursor = front.tick + 1
	l.hasCursor = true
	return front.tick, front.item, nil
}

// SkipOne advances past the current front entry if present (dropping it
// without requiring it to match any wire-supplied tick), or past the next
// tick to be assigned if the log is currently empty. Used by the combinator
// to force-advance a participant's input log past a tick nobody supplied.
func (l *Log[T]) SkipOne() {
	if len(l.entries) > 0 {
		l.entries = l.entries[1:]
	} else {
		l.nextTick++
	}
	if !l.hasCursor {
		l.hasCursor = true
		l.readCursor = l.nextTick - 1
	}
	l.readCursor++
}

// DropUpTo removes every entry with tick strictly less than tick. Idempotent.
func (l *Log[T]) DropUpTo(tick TickId) {
	i := 0
	for i < len(l.entries) && l.entries[i].tick < tick {
		i++
	}
	l.entries = l.entries[i:]
}

// IterFromIndex yields (TickId, *T) pairs starting at slice index i without
// consuming them.
func (l *Log[T]) IterFromIndex(i int) func(yield func(TickId, *T) bool) {
	return func(yield func(TickId, *T) bool) {
		for ; i < len(l.entries); i++ {
			if !yield(l.entries[i].tick, &l.entries[i].item) {
				return
			}
		}
	}
}

// All yields every (TickId, *T) pair in order.
func (l *Log[T]) All() func(yield func(TickId, *T) bool) {
	return l.IterFromIndex(0)
}
