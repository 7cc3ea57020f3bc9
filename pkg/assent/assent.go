// Package assent implements the authoritative simulation head (§4.3): it
// consumes authoritative combined steps strictly in order, driving the
// simulation callback.
package assent

import (
	"github.com/tickline/lockstep/internal/errs"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
)

// Assent holds an ordered queue of AuthoritativeStep items awaiting
// application. Never fails on Update — gaps are prevented upstream by
// Push's caller (Rectify.PushAuthoritativeWithCheck).
type Assent[T any] struct {
	log *ticklog.Log[steps.AuthoritativeStep[T]]
}

// New creates an Assent whose first Push will be assigned startTick. Callers
// that know the real tick a client joined or downloaded its snapshot at
// (§4.11) must pass it here rather than always seeding at 0, so that
// EndTickId/NextTickId track the true protocol tick instead of a per-Assent
// counter that silently diverges from it.
func New[T any](startTick ticklog.TickId) *Assent[T] {
	return &Assent[T]{log: ticklog.New[steps.AuthoritativeStep[T]](startTick)}
}

// Push enqueues one authoritative step, assigning it the next tick id.
func (a *Assent[T]) Push(step steps.AuthoritativeStep[T]) ticklog.TickId {
	return a.log.Push(step)
}

// EndTickId reports the last tick pushed, or false if nothing has ever been
// pushed.
func (a *Assent[T]) EndTickId() (ticklog.TickId, bool) {
	return a.log.BackTickId()
}

// NextTickId reports the tick id the next Push will assign. Unlike
// EndTickId, this is always well-defined once Assent has been constructed
// with its real starting tick, even before anything has been pushed.
func (a *Assent[T]) NextTickId() ticklog.TickId {
	return a.log.NextTickId()
}

// QueueLen reports how many authoritative steps are currently queued,
// awaiting Update.
func (a *Assent[T]) QueueLen() int { return a.log.Len() }

// Update invokes game.OnPreTicks, then game.OnTick for every queued item in
// order, then game.OnPostTicks, then clears the queue. Called unconditionally
// even when nothing is queued, matching the authoritative head's contract
// that every queued step has always been fully consumed by the time Update
// returns.
func (a *Assent[T]) Update(game steps.Game[T]) error {
	game.OnPreTicks()
	for a.log.Len() > 0 {
		_, step, err := a.log.Pop()
		if err != nil {
			return errs.Classify(errs.Critical, err)
		}
		game.OnTick(step)
	}
	game.OnPostTicks()
	return nil
}
