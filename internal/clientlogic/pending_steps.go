package clientlogic

import (
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
)

// pendingStepWindow bounds how many predicted ticks a disconnected or
// badly-lagging client keeps retransmitting before the oldest is dropped.
const pendingStepWindow = 128

// pendingStepInfo pairs one tick's predicted per-local-index steps with the
// tick id they were predicted for.
type pendingStepInfo[T any] struct {
	tickID   ticklog.TickId
	perLocal map[steps.LocalIndex]steps.Step[T]
}

// pendingSteps tracks which locally predicted ticks are still
// unacknowledged by the host, so the outgoing Steps command always carries
// exactly the unconfirmed range. Modeled on `crates/steps/src/
// pending_steps.rs`'s DiscoidBuffer-backed ring, generalized to a capped
// slice since Go has no equivalent fixed-capacity circular buffer in the
// pack's dependency surface: push beyond pendingStepWindow drops the
// oldest entry rather than growing unboundedly.
type pendingSteps[T any] struct {
	entries []pendingStepInfo[T]
}

func newPendingSteps[T any]() *pendingSteps[T] {
	return &pendingSteps[T]{}
}

// push appends a freshly predicted tick, discarding the oldest entry if the
// window is full.
func (p *pendingSteps[T]) push(tickID ticklog.TickId, perLocal map[steps.LocalIndex]steps.Step[T]) {
	p.entries = append(p.entries, pendingStepInfo[T]{tickID: tickID, perLocal: perLocal})
	if len(p.entries) > pendingStepWindow {
		p.entries = p.entries[len(p.entries)-pendingStepWindow:]
	}
}

// discardUpTo drops every entry at or before upTo, once the host has
// confirmed an authoritative step for that tick.
func (p *pendingSteps[T]) discardUpTo(upTo ticklog.TickId) {
	i := 0
	for ; i < len(p.entries); i++ {
		if p.entries[i].tickID > upTo {
			break
		}
	}
	p.entries = p.entries[i:]
}

// isEmpty reports whether no predicted tick is currently unconfirmed.
func (p *pendingSteps[T]) isEmpty() bool { return len(p.entries) == 0 }

// frontTickID returns the oldest still-unconfirmed tick id, if any.
func (p *pendingSteps[T]) frontTickID() (ticklog.TickId, bool) {
	if len(p.entries) == 0 {
		return 0, false
	}
	return p.entries[0].tickID, true
}

// len reports how many predicted ticks are currently pending.
func (p *pendingSteps[T]) len() int { return len(p.entries) }

// entryAt returns the i'th pending entry, for callers building a wire batch
// over the whole window.
func (p *pendingSteps[T]) entryAt(i int) pendingStepInfo[T] { return p.entries[i] }
