// Package clientlogic implements the client-side state machine (§4.11):
// RequestDownloadState → DownloadingState → SendPredictedSteps, dispatching
// inbound host commands into Rectify and the blob-stream receiver and
// producing the client's outbound command batch each send tick.
package clientlogic

import (
	"time"

	"github.com/tickline/lockstep/internal/errs"
	"github.com/tickline/lockstep/internal/snapshotcodec"
	"github.com/tickline/lockstep/pkg/blobstream"
	"github.com/tickline/lockstep/pkg/rectify"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
	"github.com/tickline/lockstep/pkg/wire"
)

// Phase discriminates ClientLogicPhase (§4.11).
type Phase uint8

const (
	PhaseRequestDownloadState Phase = iota
	PhaseDownloadingState
	PhaseSendPredictedSteps
)

// JoinRequest is the pending join the client wants to send once connected.
type JoinRequest struct {
	RequestID uint64
	Players   []wire.JoinPlayerRequest
}

// OutgoingKind discriminates OutgoingCommand.
type OutgoingKind uint8

const (
	OutgoingJoinGame OutgoingKind = iota
	OutgoingDownloadGameStateRequest
	OutgoingBlobStreamChannel
	OutgoingSteps
)

// OutgoingCommand is one command the client wants to send this tick,
// tagged so the transport layer knows which wire encoder to invoke.
type OutgoingCommand[T any] struct {
	Kind                     OutgoingKind
	JoinGame                 wire.JoinGame
	DownloadGameStateRequest wire.DownloadGameStateRequest
	BlobCommand              *BlobUpCommand
	Steps                    wire.StepsCommand[T]
}

// BlobUpCommand is a receiver→sender blob-stream command the client sends
// upstream (an ack for a chunk, or an ack for a started transfer).
type BlobUpCommand struct {
	AckStart wire.AckStart
	AckChunk wire.AckChunkWire
	IsStart  bool
}

// ClientLogic drives one client connection's phase transitions (§4.11).
type ClientLogic[T any] struct {
	joiningPlayer *JoinRequest

	// tickID is the next authoritative tick this client is waiting for:
	// the value buildStepsCommand puts on the wire, tracked independently
	// of Rectify/Assent's own internal tick counter.
	tickID ticklog.TickId

	rectify       *rectify.Rectify[T]
	blobReceiver  *blobstream.ReceiverFront
	phase         Phase
	requestDownloadStateID uint64

	outgoingPredicted *pendingSteps[T]
}

// New creates a ClientLogic starting in PhaseRequestDownloadState. Rectify
// is seeded at tick 0 here as a placeholder — it gets re-seeded at the real
// snapshot tick in FinishDownload, before any authoritative step can
// possibly reach it.
func New[T any]() *ClientLogic[T] {
	return &ClientLogic[T]{
		rectify:                rectify.New[T](0),
		blobReceiver:           blobstream.NewReceiverFront(),
		phase:                  PhaseRequestDownloadState,
		requestDownloadStateID: 0x99,
		outgoingPredicted:      newPendingSteps[T](),
	}
}

// Phase reports the current state machine phase.
func (c *ClientLogic[T]) Phase() Phase { return c.phase }

// Rectify exposes the underlying reconciliation coordinator for the game
// callback loop.
func (c *ClientLogic[T]) Rectify() *rectify.Rectify[T] { return c.rectify }

// SetJoiningPlayer queues a JoinGame request to be sent on the next Send.
func (c *ClientLogic[T]) SetJoiningPlayer(req JoinRequest) { c.joiningPlayer = &req }

// AddPredictedStep pushes one tick's predicted steps for every local player
// into Rectify's Seer (as one combined step) and retains them for the
// outgoing Steps command, until the authoritative head advances past them.
func (c *ClientLogic[T]) AddPredictedStep(tickID ticklog.TickId, perLocal map[steps.LocalIndex]steps.Step[T]) {
	combined := make(steps.AuthoritativeStep[T], len(perLocal))
	for local, step := range perLocal {
		combined[steps.ParticipantId(local)] = step
	}
	c.rectify.PushPredicted(combined)
	c.outgoingPredicted.push(tickID, perLocal)
}

// Update drives Rectify.Update, applying new authoritative ticks and
// replaying the predicted queue.
func (c *ClientLogic[T]) Update(game steps.Game[T]) error {
	return c.rectify.Update(game)
}

// Send produces this tick's outbound command batch, per phase (§4.11).
func (c *ClientLogic[T]) Send(now time.Time) []OutgoingCommand[T] {
	var out []OutgoingCommand[T]

	switch c.phase {
	case PhaseRequestDownloadState:
		out = append(out, OutgoingCommand[T]{
			Kind:                     OutgoingDownloadGameStateRequest,
			DownloadGameStateRequest: wire.DownloadGameStateRequest{RequestID: c.requestDownloadStateID},
		})
		if cmd := c.blobSendCommand(now); cmd != nil {
			out = append(out, *cmd)
		}
	case PhaseDownloadingState:
		if cmd := c.blobSendCommand(now); cmd != nil {
			out = append(out, *cmd)
		}
	case PhaseSendPredictedSteps:
		out = append(out, c.buildStepsCommand())
	}

	if c.joiningPlayer != nil {
		out = append(out, OutgoingCommand[T]{
			Kind: OutgoingJoinGame,
			JoinGame: wire.JoinGame{
				RequestID: c.joiningPlayer.RequestID,
				Players:   c.joiningPlayer.Players,
			},
		})
		c.joiningPlayer = nil
	}

	return out
}

func (c *ClientLogic[T]) blobSendCommand(now time.Time) *OutgoingCommand[T] {
	id, ack, ok := c.blobReceiver.Ack()
	if !ok {
		return nil
	}
	return &OutgoingCommand[T]{
		Kind: OutgoingBlobStreamChannel,
		BlobCommand: &BlobUpCommand{
			IsStart: false,
			AckChunk: wire.AckChunkWire{
				TransferID:           uint16(id),
				WaitingForChunkIndex: uint32(ack.WaitingForChunkIndex),
				ReceiveMaskAfterLast: ack.ReceiveMaskAfterLast,
			},
		},
	}
}

func (c *ClientLogic[T]) buildStepsCommand() OutgoingCommand[T] {
	// c.tickID is client-logic's own tracked wire tick (set from the
	// snapshot's tick in ReceiveDownloadStateResponse, then advanced in
	// ReceiveGameStep): it is what goes on the wire directly, never
	// Rectify/Assent's internal counter.
	waiting := c.tickID

	firstTick, _ := c.outgoingPredicted.frontTickID()
	perTick := make([]map[steps.LocalIndex]steps.Step[T], c.outgoingPredicted.len())
	for i := range perTick {
		perTick[i] = c.outgoingPredicted.entryAt(i).perLocal
	}

	return OutgoingCommand[T]{
		Kind: OutgoingSteps,
		Steps: wire.StepsCommand[T]{
			WaitingForTickID: waiting,
			LostStepsMask:    0, // reserved, see DESIGN.md Open Question #2
			Predicted: wire.PredictedStepsBlock[T]{
				FirstTickID: firstTick,
				PerTick:     perTick,
			},
		},
	}
}

// ReceiveDownloadStateResponse handles a DownloadGameStateResponse (§4.11).
// A request-id mismatch, or arriving outside PhaseRequestDownloadState, is a
// Warning, not Critical — it's either a stale reply or an unexpected one,
// either way the current phase is left untouched.
func (c *ClientLogic[T]) ReceiveDownloadStateResponse(resp wire.DownloadGameStateResponse) error {
	if c.phase != PhaseRequestDownloadState {
		return errs.New(errs.Warning, "clientlogic: download state response received outside RequestDownloadState")
	}
	if resp.ClientRequestID != c.requestDownloadStateID {
		return errs.New(errs.Warning, "clientlogic: download state response for request %d, expected %d", resp.ClientRequestID, c.requestDownloadStateID)
	}
	c.phase = PhaseDownloadingState
	c.tickID = ticklog.TickId(resp.TickID)
	return nil
}

// ReceiveBlobStreamStart handles a StartTransfer from the host, only valid
// in PhaseDownloadingState.
func (c *ClientLogic[T]) ReceiveBlobStreamStart(cmd wire.StartTransfer) error {
	if c.phase != PhaseDownloadingState {
		return errs.New(errs.Warning, "clientlogic: unexpected blob channel command outside DownloadingState")
	}
	return c.blobReceiver.StartTransfer(blobstream.TransferId(cmd.TransferID), cmd.TotalOctetSize, uint32(cmd.ChunkSize))
}

// ReceiveBlobStreamChunk applies an inbound SetChunk, only valid in
// PhaseDownloadingState. Once the blob completes, the caller is responsible
// for calling FinishDownload with the deserialized game state.
func (c *ClientLogic[T]) ReceiveBlobStreamChunk(cmd wire.SetChunkData) error {
	if c.phase != PhaseDownloadingState {
		return errs.New(errs.Warning, "clientlogic: unexpected blob channel command outside DownloadingState")
	}
	return c.blobReceiver.SetChunk(blobstream.TransferId(cmd.TransferID), blobstream.ChunkIndex(cmd.ChunkIndex), cmd.Payload)
}

// BlobComplete reports whether the current download's blob has fully
// arrived.
func (c *ClientLogic[T]) BlobComplete() bool { return c.blobReceiver.IsComplete() }

// BlobBytes returns the assembled snapshot bytes, once complete.
func (c *ClientLogic[T]) BlobBytes() ([]byte, bool) { return c.blobReceiver.Blob() }

// FinishDownload applies the now-complete snapshot to game, seeds Rectify's
// Assent at the tick id the snapshot was taken at, and transitions to
// PhaseSendPredictedSteps.
func (c *ClientLogic[T]) FinishDownload(game steps.Game[T]) error {
	blob, ok := c.blobReceiver.Blob()
	if !ok {
		return errs.New(errs.Critical, "clientlogic: FinishDownload called before blob is complete")
	}
	snapshot, err := snapshotcodec.Decompress(blob)
	if err != nil {
		return err
	}
	if err := game.Deserialize(snapshot); err != nil {
		return errs.Classify(errs.Critical, err)
	}
	// c.tickID (set in ReceiveDownloadStateResponse) reflects the snapshot's
	// tick. Rectify was only ever seeded at the placeholder tick 0 from
	// New, so it is re-seeded here at the real tick: the first authoritative
	// push must land exactly at c.tickID, not at Rectify's internal counter.
	c.rectify = rectify.New[T](c.tickID)
	c.phase = PhaseSendPredictedSteps
	return nil
}

// ReceiveGameStep applies an inbound GameStepResponse's authoritative step
// range to Rectify, in tick order, and trims any outgoing predicted entries
// now superseded.
func (c *ClientLogic[T]) ReceiveGameStep(resp wire.GameStepResponse[T]) error {
	expanded, err := wire.ExpandRanges(resp.RootTickID, resp.Ranges)
	if err != nil {
		return err
	}
	tick := resp.RootTickID
	for _, combined := range expanded {
		if err := c.rectify.PushAuthoritativeWithCheck(tick, combined); err != nil {
			return err
		}
		tick++
	}
	if len(expanded) > 0 {
		// tick is now the next tick the client is waiting for; c.tickID
		// always holds that value directly (it's what buildStepsCommand
		// puts on the wire), while discardUpTo needs the last confirmed
		// tick, one behind it.
		c.outgoingPredicted.discardUpTo(tick - 1)
		c.tickID = tick
	}
	return nil
}
