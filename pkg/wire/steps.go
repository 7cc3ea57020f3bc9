package wire

import (
	"github.com/tickline/lockstep/internal/errs"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
)

// stepTag is the wire-format discriminant for steps.Kind. It is NOT the same
// as steps.Kind's Go iota values (which are an internal implementation
// detail) — the wire byte values are fixed by the protocol and must be
// mapped explicitly both ways.
type stepTag uint8

const (
	stepTagForced              stepTag = 0x01
	stepTagWaitingForReconnect stepTag = 0x02
	stepTagJoined              stepTag = 0x03
	stepTagLeft                stepTag = 0x04
	stepTagCustom              stepTag = 0x05
)

// StepCodec lets the wire layer encode/decode a game's opaque Custom step
// payload without the core ever interpreting it (§9 design note: "forbidden
// to bake a concrete game type into the core").
type StepCodec[T any] interface {
	EncodeCustom(w *Writer, v T)
	DecodeCustom(r *Reader) (T, error)
}

// EncodeStep writes one Step[T] in tagged form.
func EncodeStep[T any](w *Writer, codec StepCodec[T], s steps.Step[T]) error {
	switch s.Kind {
	case steps.KindForced:
		w.U8(uint8(stepTagForced))
	case steps.KindWaitingForReconnect:
		w.U8(uint8(stepTagWaitingForReconnect))
	case steps.KindJoined:
		w.U8(uint8(stepTagJoined))
		w.U32(s.JoinedTick)
	case steps.KindLeft:
		w.U8(uint8(stepTagLeft))
	case steps.KindCustom:
		w.U8(uint8(stepTagCustom))
		codec.EncodeCustom(w, s.Custom)
	default:
		return errs.New(errs.Critical, "wire: unknown step kind %d", s.Kind)
	}
	return nil
}

// DecodeStep reads one tagged Step[T].
func DecodeStep[T any](r *Reader, codec StepCodec[T]) (steps.Step[T], error) {
	tag, err := r.U8()
	if err != nil {
		return steps.Step[T]{}, err
	}
	switch stepTag(tag) {
	case stepTagForced:
		return steps.Forced[T](), nil
	case stepTagWaitingForReconnect:
		return steps.WaitingForReconnect[T](), nil
	case stepTagJoined:
		tick, err := r.U32()
		if err != nil {
			return steps.Step[T]{}, err
		}
		return steps.Joined[T](tick), nil
	case stepTagLeft:
		return steps.Left[T](), nil
	case stepTagCustom:
		v, err := codec.DecodeCustom(r)
		if err != nil {
			return steps.Step[T]{}, err
		}
		return steps.Custom(v), nil
	default:
		return steps.Step[T]{}, errs.New(errs.Critical, "wire: unknown step tag 0x%02x", tag)
	}
}

// ParticipantRun is one participant's contiguous run of steps within a
// single range (§4.13).
type ParticipantRun[T any] struct {
	DeltaTickWithinRange uint32
	Steps                []steps.Step[T]
}

// AuthoritativeStepRange is one compressed run of combined steps (§4.13).
type AuthoritativeStepRange[T any] struct {
	DeltaStepsFromPrevious uint32
	Participants           map[steps.ParticipantId]ParticipantRun[T]
}

// CompileRanges packs a contiguous slice of combined AuthoritativeSteps
// into a single range covering the whole slice, with one run per
// participant present anywhere in it; a participant missing from some tick
// gets Forced in that slot. This core only ever produces
// combined steps where every joined participant is present at every tick
// (substituted with Forced/WaitingForReconnect/Left as needed, per
// combinator.Produce), so in practice one range covering the whole slice
// suffices; multi-range input (e.g. hand-built by tests) is still decoded
// correctly by ExpandRanges.
func CompileRanges[T any](combined []steps.AuthoritativeStep[T]) []AuthoritativeStepRange[T] {
	if len(combined) == 0 {
		return nil
	}
	participants := make(map[steps.ParticipantId]ParticipantRun[T])
	for _, step := range combined {
		for id := range step {
			if _, ok := participants[id]; !ok {
				participants[id] = ParticipantRun[T]{DeltaTickWithinRange: 0}
			}
		}
	}
	for id, run := range participants {
		run.Steps = make([]steps.Step[T], len(combined))
		for i, step := range combined {
			if s, ok := step[id]; ok {
				run.Steps[i] = s
			} else {
				run.Steps[i] = steps.Forced[T]()
			}
		}
		participants[id] = run
	}
	return []AuthoritativeStepRange[T]{{DeltaStepsFromPrevious: 0, Participants: participants}}
}

// ExpandRanges reconstructs the flat per-tick combined-step slice starting
// at rootTick, per §4.13's decoding algorithm: advance a tick cursor by each
// range's DeltaStepsFromPrevious, size the range as the longest participant
// run within it, and default any slot a participant's run doesn't cover to
// Forced.
func ExpandRanges[T any](rootTick ticklog.TickId, ranges []AuthoritativeStepRange[T]) ([]steps.AuthoritativeStep[T], error) {
	var out []steps.AuthoritativeStep[T]
	cursor := rootTick
	for _, rng := range ranges {
		cursor += ticklog.TickId(rng.DeltaStepsFromPrevious)
		length := 0
		for _, run := range rng.Participants {
			if len(run.Steps) > length {
				length = len(run.Steps)
			}
		}
		rangeStart := len(out)
		for i := 0; i < length; i++ {
			out = append(out, steps.AuthoritativeStep[T]{})
		}
		for id, run := range rng.Participants {
			base := int(run.DeltaTickWithinRange)
			for i, s := range run.Steps {
				slot := base + i
				if slot >= length {
					return nil, errs.New(errs.Critical, "wire: participant %d step references tick %d beyond range length %d", id, slot, length)
				}
				out[rangeStart+slot][id] = s
			}
		}
		for i := rangeStart; i < len(out); i++ {
			for id := range rng.Participants {
				if _, ok := out[i][id]; !ok {
					out[i][id] = steps.Forced[T]()
				}
			}
		}
		cursor += ticklog.TickId(length)
	}
	return out, nil
}

// EncodeAuthoritativeStepRanges writes rootTick followed by every range.
func EncodeAuthoritativeStepRanges[T any](w *Writer, codec StepCodec[T], rootTick ticklog.TickId, ranges []AuthoritativeStepRange[T]) error {
	w.U32(uint32(rootTick))
	w.U16(uint16(len(ranges)))
	for _, rng := range ranges {
		w.U32(rng.DeltaStepsFromPrevious)
		w.U8(uint8(len(rng.Participants)))
		for id, run := range rng.Participants {
			w.U8(uint8(id))
			w.U32(run.DeltaTickWithinRange)
			w.U16(uint16(len(run.Steps)))
			for _, s := range run.Steps {
				if err := EncodeStep(w, codec, s); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// DecodeAuthoritativeStepRanges reads back what EncodeAuthoritativeStepRanges
// wrote.
func DecodeAuthoritativeStepRanges[T any](r *Reader, codec StepCodec[T]) (ticklog.TickId, []AuthoritativeStepRange[T], error) {
	root, err := r.U32()
	if err != nil {
		return 0, nil, err
	}
	rangeCount, err := r.U16()
	if err != nil {
		return 0, nil, err
	}
	ranges := make([]AuthoritativeStepRange[T], rangeCount)
	for i := range ranges {
		delta, err := r.U32()
		if err != nil {
			return 0, nil, err
		}
		participantCount, err := r.U8()
		if err != nil {
			return 0, nil, err
		}
		participants := make(map[steps.ParticipantId]ParticipantRun[T], participantCount)
		for p := uint8(0); p < participantCount; p++ {
			id, err := r.U8()
			if err != nil {
				return 0, nil, err
			}
			deltaTick, err := r.U32()
			if err != nil {
				return 0, nil, err
			}
			stepCount, err := r.U16()
			if err != nil {
				return 0, nil, err
			}
			runSteps := make([]steps.Step[T], stepCount)
			for s := range runSteps {
				decoded, err := DecodeStep(r, codec)
				if err != nil {
					return 0, nil, err
				}
				runSteps[s] = decoded
			}
			participants[steps.ParticipantId(id)] = ParticipantRun[T]{DeltaTickWithinRange: deltaTick, Steps: runSteps}
		}
		ranges[i] = AuthoritativeStepRange[T]{DeltaStepsFromPrevious: delta, Participants: participants}
	}
	return ticklog.TickId(root), ranges, nil
}

// PredictedStepsBlock is the client's outgoing predicted-steps payload
// within a Steps command (§4.11): the first tick id and, per tick, each
// local player's predicted step.
type PredictedStepsBlock[T any] struct {
	FirstTickID ticklog.TickId
	// PerTick[i][localIndex] is local player localIndex's predicted step for
	// tick FirstTickID+i.
	PerTick []map[steps.LocalIndex]steps.Step[T]
}

// StepsCommand is the client→host Steps command (§4.11).
type StepsCommand[T any] struct {
	WaitingForTickID ticklog.TickId
	LostStepsMask    uint64 // reserved, always 0 (§9 open question)
	Predicted        PredictedStepsBlock[T]
}

// Encode writes a StepsCommand.
func (s StepsCommand[T]) Encode(w *Writer, codec StepCodec[T]) error {
	w.U32(uint32(s.WaitingForTickID))
	w.U64(s.LostStepsMask)
	w.U32(uint32(s.Predicted.FirstTickID))
	w.U16(uint16(len(s.Predicted.PerTick)))
	for _, tick := range s.Predicted.PerTick {
		w.U8(uint8(len(tick)))
		for localIndex, step := range tick {
			w.U8(uint8(localIndex))
			if err := EncodeStep(w, codec, step); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeStepsCommand reads back what StepsCommand.Encode wrote.
func DecodeStepsCommand[T any](r *Reader, codec StepCodec[T]) (StepsCommand[T], error) {
	var s StepsCommand[T]
	waiting, err := r.U32()
	if err != nil {
		return s, err
	}
	s.WaitingForTickID = ticklog.TickId(waiting)
	if s.LostStepsMask, err = r.U64(); err != nil {
		return s, err
	}
	first, err := r.U32()
	if err != nil {
		return s, err
	}
	s.Predicted.FirstTickID = ticklog.TickId(first)
	tickCount, err := r.U16()
	if err != nil {
		return s, err
	}
	s.Predicted.PerTick = make([]map[steps.LocalIndex]steps.Step[T], tickCount)
	for i := range s.Predicted.PerTick {
		playerCount, err := r.U8()
		if err != nil {
			return s, err
		}
		tick := make(map[steps.LocalIndex]steps.Step[T], playerCount)
		for p := uint8(0); p < playerCount; p++ {
			localIndex, err := r.U8()
			if err != nil {
				return s, err
			}
			step, err := DecodeStep(r, codec)
			if err != nil {
				return s, err
			}
			tick[steps.LocalIndex(localIndex)] = step
		}
		s.Predicted.PerTick[i] = tick
	}
	return s, nil
}

// GameStepResponse is the host→client reply to Steps, carrying a compressed
// run of authoritative combined steps starting at the requester's
// waiting_for_tick_id (§4.12).
type GameStepResponse[T any] struct {
	RootTickID ticklog.TickId
	Ranges     []AuthoritativeStepRange[T]
}

// Encode writes a GameStepResponse.
func (g GameStepResponse[T]) Encode(w *Writer, codec StepCodec[T]) error {
	return EncodeAuthoritativeStepRanges(w, codec, g.RootTickID, g.Ranges)
}

// DecodeGameStepResponse reads back what GameStepResponse.Encode wrote.
func DecodeGameStepResponse[T any](r *Reader, codec StepCodec[T]) (GameStepResponse[T], error) {
	root, ranges, err := DecodeAuthoritativeStepRanges(r, codec)
	if err != nil {
		return GameStepResponse[T]{}, err
	}
	return GameStepResponse[T]{RootTickID: root, Ranges: ranges}, nil
}
