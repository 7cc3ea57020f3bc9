// Package rectify couples one Assent and one Seer (§4.5): on new
// authoritative steps it advances Assent, signals the callback to copy
// authoritative state into predicted state, then replays Seer on top.
package rectify

import (
	"github.com/tickline/lockstep/internal/errs"
	"github.com/tickline/lockstep/pkg/assent"
	"github.com/tickline/lockstep/pkg/seer"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
)

// Rectify owns exactly one Assent and one Seer. The game callback is never
// stored — it is borrowed for the duration of a single Update call, which
// avoids the ownership cycle between "game owns rectify" and "rectify
// references game" (§9).
type Rectify[T any] struct {
	assent *assent.Assent[T]
	seer   *seer.Seer[T]
}

// New creates a Rectify whose Assent and Seer both start at startTick: the
// real protocol tick the caller has already confirmed (e.g. the tick id of
// the state snapshot a client just downloaded, per `pkg/combinator`'s
// AddParticipant seeding its own per-participant log with the combinator's
// current tick). The first authoritative push must then land exactly at
// startTick; nothing is left unconstrained.
func New[T any](startTick ticklog.TickId) *Rectify[T] {
	return &Rectify[T]{
		assent: assent.New[T](startTick),
		seer:   seer.New[T](startTick),
	}
}

// Assent exposes the authoritative head for read-only inspection (e.g. by
// client logic building outgoing Steps commands).
func (r *Rectify[T]) Assent() *assent.Assent[T] { return r.assent }

// Seer exposes the predictive head for read-only inspection.
func (r *Rectify[T]) Seer() *seer.Seer[T] { return r.seer }

// WaitingForAuthoritativeTickId returns the next tick Assent expects to be
// pushed. Always well-defined, since Assent is seeded with its real starting
// tick at construction (New's startTick) rather than only learning a tick
// once something has been pushed.
func (r *Rectify[T]) WaitingForAuthoritativeTickId() ticklog.TickId {
	return r.assent.NextTickId()
}

// PushPredicted trims the Seer to Assent's current knowledge, then appends
// a freshly predicted step.
func (r *Rectify[T]) PushPredicted(step steps.AuthoritativeStep[T]) {
	if end, ok := r.assent.EndTickId(); ok {
		r.seer.ReceivedAuthoritative(end)
	}
	r.seer.Push(step)
}

// PushAuthoritative appends a confirmed authoritative step unconditionally,
// without checking its tick id against Assent's expectations.
func (r *Rectify[T]) PushAuthoritative(step steps.AuthoritativeStep[T]) {
	r.assent.Push(step)
	end, _ := r.assent.EndTickId()
	r.seer.ReceivedAuthoritative(end)
}

// PushAuthoritativeWithCheck appends a confirmed authoritative step, failing
// if tickId isn't exactly the tick Assent expects next (§4.3 invariant 1).
// Since Assent always knows its expected next tick from construction
// onward, even the very first push is checked against it.
func (r *Rectify[T]) PushAuthoritativeWithCheck(tickId ticklog.TickId, step steps.AuthoritativeStep[T]) error {
	if want := r.WaitingForAuthoritativeTickId(); tickId != want {
		return errs.New(errs.Critical, "rectify: authoritative tick %d out of order, wanted %d", tickId, want)
	}
	r.assent.Push(step)
	end, _ := r.assent.EndTickId()
	r.seer.ReceivedAuthoritative(end)
	return nil
}

// Update runs Assent.Update, then signals game.OnCopyFromAuthoritative so
// the caller's predicted state is resynchronized onto the now-current
// authoritative state, then runs Seer.Update to replay any still-pending
// predictions on top of it (§4.5 invariant).
func (r *Rectify[T]) Update(game steps.Game[T]) error {
	if err := r.assent.Update(game); err != nil {
		return err
	}
	game.OnCopyFromAuthoritative()
	r.seer.Update(game)
	return nil
}
