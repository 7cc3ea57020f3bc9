// Package combinator implements the host-side step combinator (§4.2): one
// per-participant input log, combined into a single AuthoritativeStep per
// tick once every joined participant has supplied (or been substituted)
// input for that tick.
package combinator

import (
	"sort"

	"github.com/tickline/lockstep/internal/errs"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
)

// horizon bounds how far ahead of the combinator's next authoritative tick a
// participant's submitted step may be before it's rejected outright, rather
// than silently discarded as stale or out-of-order.
const horizon = ticklog.TickId(512)

type participant[T any] struct {
	log                  *ticklog.Log[steps.Step[T]]
	waitingForReconnect bool
}

// Combinator owns one input log per joined participant and produces
// authoritative combined steps in lockstep across all of them.
type Combinator[T any] struct {
	participants          map[steps.ParticipantId]*participant[T]
	nextAuthoritativeTick ticklog.TickId
	// leaving holds ids removed since the last Produce: each contributes one
	// Left entry to the next produced combined step, then is forgotten.
	leaving []steps.ParticipantId
}

// New creates a Combinator whose first produced tick is startTick.
func New[T any](startTick ticklog.TickId) *Combinator[T] {
	return &Combinator[T]{
		participants:          make(map[steps.ParticipantId]*participant[T]),
		nextAuthoritativeTick: startTick,
	}
}

// NextAuthoritativeTick reports the tick Produce will attempt next.
func (c *Combinator[T]) NextAuthoritativeTick() ticklog.TickId {
	return c.nextAuthoritativeTick
}

// AddParticipant inserts an empty log for id, starting at the combinator's
// current tick.
func (c *Combinator[T]) AddParticipant(id steps.ParticipantId) {
	c.participants[id] = &participant[T]{
		log: ticklog.New[steps.Step[T]](c.nextAuthoritativeTick),
	}
}

// RemoveParticipant erases id's log. The next produced combined step
// contributes Left for id; after that, id is forgotten entirely.
func (c *Combinator[T]) RemoveParticipant(id steps.ParticipantId) {
	if _, ok := c.participants[id]; !ok {
		return
	}
	delete(c.participants, id)
	c.leaving = append(c.leaving, id)
}

// SetWaitingForReconnect toggles id's substitution policy: while true,
// Produce emits WaitingForReconnect for id instead of waiting on its log.
func (c *Combinator[T]) SetWaitingForReconnect(id steps.ParticipantId, waiting bool) {
	if p, ok := c.participants[id]; ok {
		p.waitingForReconnect = waiting
	}
}

// Receive inserts step into participant's log if tickId is exactly the tick
// that participant's log currently expects. Steps arriving out of order or
// for already-produced ticks are discarded, not an error. Steps too far in
// the future are rejected.
func (c *Combinator[T]) Receive(id steps.ParticipantId, tickId ticklog.TickId, step steps.Step[T]) error {
	p, ok := c.participants[id]
	if !ok {
		return nil
	}
	expected := p.log.NextTickId()
	if tickId > expected+horizon {
		return errs.New(errs.Warning, "combinator: participant %d submitted tick %d, too far ahead of expected %d", id, tickId, expected)
	}
	if tickId != expected {
		return nil
	}
	p.log.Push(step)
	return nil
}

// Produce returns a combined step for NextAuthoritativeTick once every
// currently-joined participant's log has a front entry at that tick (or is
// waiting-for-reconnect, substituted with WaitingForReconnect). If
// forceAdvance is true and some participants still haven't supplied input,
// those participants are substituted with Forced and their log's front (if
// any happens to be present) is dropped, to keep their log's own tick
// counter in lockstep with the combinator's.
func (c *Combinator[T]) Produce(forceAdvance bool) (steps.AuthoritativeStep[T], bool) {
	ids := make([]steps.ParticipantId, 0, len(c.participants))
	for id := range c.participants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	target := c.nextAuthoritativeTick
	if !forceAdvance {
		for _, id := range ids {
			p := c.participants[id]
			if p.waitingForReconnect {
				continue
			}
			front, ok := p.log.FrontTickId()
			if !ok || front != target {
				return nil, false
			}
		}
	}

	combined := make(steps.AuthoritativeStep[T], len(ids))
	for _, id := range ids {
		p := c.participants[id]
		switch {
		case p.waitingForReconnect:
			combined[id] = steps.WaitingForReconnect[T]()
		default:
			front, ok := p.log.FrontTickId()
			if ok && front == target {
				_, step, err := p.log.Pop()
				if err != nil {
					combined[id] = steps.Forced[T]()
					p.log.SkipOne()
					continue
				}
				combined[id] = step
			} else {
				combined[id] = steps.Forced[T]()
				p.log.SkipOne()
			}
		}
	}

	for _, id := range c.leaving {
		combined[id] = steps.Left[T]()
	}
	c.leaving = nil

	c.nextAuthoritativeTick++
	return combined, true
}
