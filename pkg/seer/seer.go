// Package seer implements the predictive simulation head (§4.4): it
// re-executes queued predicted combined steps each frame on top of the
// authoritative state snapshot.
package seer

import (
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
)

// Seer holds an ordered queue of predicted AuthoritativeSteps. Unlike
// Assent, Update does not clear the queue — predicted steps persist until an
// authoritative step acknowledges them.
type Seer[T any] struct {
	log *ticklog.Log[steps.AuthoritativeStep[T]]
}

// New creates an empty Seer whose first Push will be assigned startTick.
// Seer's counter must track Assent's: both are seeded from the same real
// protocol tick so ReceivedAuthoritative's trimming stays meaningful.
func New[T any](startTick ticklog.TickId) *Seer[T] {
	return &Seer[T]{log: ticklog.New[steps.AuthoritativeStep[T]](startTick)}
}

// ReceivedAuthoritative drops all queued entries with tick <= tick: once the
// authoritative head has confirmed a tick, any predicted guess for it is
// obsolete.
func (s *Seer[T]) ReceivedAuthoritative(tick ticklog.TickId) {
	s.log.DropUpTo(tick + 1)
}

// Push appends a predicted step.
func (s *Seer[T]) Push(step steps.AuthoritativeStep[T]) ticklog.TickId {
	return s.log.Push(step)
}

// Len reports how many predicted steps are currently queued.
func (s *Seer[T]) Len() int { return s.log.Len() }

// Update invokes game.OnPreTicks, game.OnTick for every queued entry in
// order, then game.OnPostTicks. Called unconditionally, even with an empty
// queue. The queue is left intact.
func (s *Seer[T]) Update(game steps.Game[T]) {
	game.OnPreTicks()
	for _, step := range s.log.All() {
		game.OnTick(*step)
	}
	game.OnPostTicks()
}
