// Package hostlogic implements the host side of the protocol (§4.12): per-
// connection participant binding over a free-list of ParticipantIds, the
// Combinator producing authoritative steps, outgoing blob-stream senders
// for state downloads, and a free-list of ConnectionIds.
package hostlogic

import (
	"time"

	"github.com/tickline/lockstep/internal/errs"
	"github.com/tickline/lockstep/internal/snapshotcodec"
	"github.com/tickline/lockstep/pkg/blobstream"
	"github.com/tickline/lockstep/pkg/combinator"
	"github.com/tickline/lockstep/pkg/freelist"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
	"github.com/tickline/lockstep/pkg/wire"
)

const (
	downloadChunkSize      = 1024
	downloadResendDuration = 96 * time.Millisecond
	// maxGameStepRangeTicks bounds how far a single GameStepResponse extends
	// past the requester's waiting_for_tick_id (§4.12: "capped at a
	// configurable window").
	maxGameStepRangeTicks = 64
)

// ConnectionId identifies one host-side connection slot, allocated from a
// 0..=255 free-list distinct from ParticipantId's.
type ConnectionId uint8

// Connection holds one client's per-connection state: its local-index to
// ParticipantId bindings, and its outgoing blob sender if a state download
// is in flight.
type Connection struct {
	participants map[uint8]steps.ParticipantId
	blobSender   *blobstream.SenderFront
	debugCounter uint64
}

func newConnection() *Connection {
	return &Connection{participants: make(map[uint8]steps.ParticipantId)}
}

// HostLogic owns the connection free-list, participant free-list, the
// Combinator, and every active connection's state.
type HostLogic[T any] struct {
	connections    map[ConnectionId]*Connection
	connectionIDs  *freelist.FreeList
	participantIDs *freelist.FreeList
	combinator     *combinator.Combinator[T]
}

// New creates a HostLogic whose combinator starts producing at startTick
// (typically the tick id of the authoritative state snapshot at startup).
func New[T any](startTick ticklog.TickId) *HostLogic[T] {
	return &HostLogic[T]{
		connections:    make(map[ConnectionId]*Connection),
		connectionIDs:  freelist.New(),
		participantIDs: freelist.New(),
		combinator:     combinator.New[T](startTick),
	}
}

// CreateConnection allocates a new ConnectionId.
func (h *HostLogic[T]) CreateConnection() (ConnectionId, error) {
	id, err := h.connectionIDs.Alloc()
	if err != nil {
		return 0, err
	}
	h.connections[ConnectionId(id)] = newConnection()
	return ConnectionId(id), nil
}

// DestroyConnection frees connectionID's slot, removing every ParticipantId
// it owned from the Combinator.
func (h *HostLogic[T]) DestroyConnection(connectionID ConnectionId) error {
	conn, ok := h.connections[connectionID]
	if !ok {
		return errs.New(errs.Critical, "hostlogic: unknown connection %d", connectionID)
	}
	for _, pid := range conn.participants {
		h.combinator.RemoveParticipant(pid)
		_ = h.participantIDs.Free(uint8(pid))
	}
	delete(h.connections, connectionID)
	return h.connectionIDs.Free(uint8(connectionID))
}

// IncrementDebugCounter bumps connectionID's per-connection datagram
// counter (§4.12's per-connection debug state) and returns its new value,
// for callers that want to surface it (telemetry, logging) without keeping
// their own tally.
func (h *HostLogic[T]) IncrementDebugCounter(connectionID ConnectionId) (uint64, error) {
	conn, ok := h.connections[connectionID]
	if !ok {
		return 0, errs.New(errs.Critical, "hostlogic: unknown connection %d", connectionID)
	}
	conn.debugCounter++
	return conn.debugCounter, nil
}

// OnJoinGame allocates one ParticipantId per requested local player slot,
// binds them into connectionID's lookup table, and adds each to the
// Combinator. Fails NoFreeParticipantIds if the free-list is exhausted.
func (h *HostLogic[T]) OnJoinGame(connectionID ConnectionId, req wire.JoinGame) (wire.JoinGameAccepted, error) {
	conn, ok := h.connections[connectionID]
	if !ok {
		return wire.JoinGameAccepted{}, errs.New(errs.Critical, "hostlogic: unknown connection %d", connectionID)
	}

	bindings := make([]wire.ParticipantBinding, 0, len(req.Players))
	for _, p := range req.Players {
		id, err := h.participantIDs.Alloc()
		if err != nil {
			return wire.JoinGameAccepted{}, errs.Classify(errs.Critical, err)
		}
		pid := steps.ParticipantId(id)
		conn.participants[p.LocalIndex] = pid
		h.combinator.AddParticipant(pid)
		bindings = append(bindings, wire.ParticipantBinding{LocalIndex: p.LocalIndex, ParticipantID: id})
	}

	return wire.JoinGameAccepted{
		RequestID:     req.RequestID,
		SessionSecret: 0,
		PartyID:       0,
		Participants:  bindings,
	}, nil
}

// OnSteps feeds connectionID's predicted steps into the Combinator, then
// builds the GameStepResponse range starting at cmd.WaitingForTickID,
// extending as far as the Combinator has produced (capped at
// maxGameStepRangeTicks).
func (h *HostLogic[T]) OnSteps(connectionID ConnectionId, cmd wire.StepsCommand[T], buffered []steps.AuthoritativeStep[T]) (wire.GameStepResponse[T], error) {
	conn, ok := h.connections[connectionID]
	if !ok {
		return wire.GameStepResponse[T]{}, errs.New(errs.Critical, "hostlogic: unknown connection %d", connectionID)
	}

	for i, tickSteps := range cmd.Predicted.PerTick {
		tickID := cmd.Predicted.FirstTickID + ticklog.TickId(i)
		for localIndex, step := range tickSteps {
			pid, ok := conn.participants[uint8(localIndex)]
			if !ok {
				return wire.GameStepResponse[T]{}, errs.New(errs.Critical, "hostlogic: unknown local index %d on connection %d", localIndex, connectionID)
			}
			if err := h.combinator.Receive(pid, tickID, step); err != nil {
				return wire.GameStepResponse[T]{}, err
			}
		}
	}

	end := int(cmd.WaitingForTickID) + maxGameStepRangeTicks
	if end > len(buffered) {
		end = len(buffered)
	}
	var window []steps.AuthoritativeStep[T]
	if int(cmd.WaitingForTickID) < end {
		window = buffered[cmd.WaitingForTickID:end]
	}

	return wire.GameStepResponse[T]{
		RootTickID: cmd.WaitingForTickID,
		Ranges:     wire.CompileRanges(window),
	}, nil
}

// Produce runs the Combinator once, returning the newly produced
// authoritative step if one was ready.
func (h *HostLogic[T]) Produce(forceAdvance bool) (steps.AuthoritativeStep[T], bool) {
	return h.combinator.Produce(forceAdvance)
}

// OnDownloadGameStateRequest starts a fresh outgoing blob transfer of
// snapshot over connectionID's blob sender, replying with the response the
// host should send back (§4.12).
func (h *HostLogic[T]) OnDownloadGameStateRequest(connectionID ConnectionId, req wire.DownloadGameStateRequest, tickID ticklog.TickId, snapshot []byte) (wire.DownloadGameStateResponse, error) {
	conn, ok := h.connections[connectionID]
	if !ok {
		return wire.DownloadGameStateResponse{}, errs.New(errs.Critical, "hostlogic: unknown connection %d", connectionID)
	}
	if conn.blobSender == nil {
		conn.blobSender = blobstream.NewSenderFront()
	}
	compressed, err := snapshotcodec.Compress(snapshot)
	if err != nil {
		return wire.DownloadGameStateResponse{}, err
	}
	transferID, err := conn.blobSender.StartTransfer(compressed, downloadChunkSize, downloadResendDuration)
	if err != nil {
		return wire.DownloadGameStateResponse{}, err
	}
	return wire.DownloadGameStateResponse{
		ClientRequestID:   req.RequestID,
		TickID:            uint32(tickID),
		BlobStreamChannel: uint16(transferID),
	}, nil
}

// OnBlobStreamAck routes an inbound AckChunkWire/AckStart to connectionID's
// outgoing blob sender.
func (h *HostLogic[T]) OnBlobStreamAck(connectionID ConnectionId, transferID uint16, ack blobstream.AckChunkData) error {
	conn, ok := h.connections[connectionID]
	if !ok || conn.blobSender == nil {
		return errs.New(errs.Warning, "hostlogic: blob ack for connection %d with no active sender", connectionID)
	}
	return conn.blobSender.ReceiveAck(blobstream.TransferId(transferID), ack)
}

// SendBlobChunks returns up to ten SetChunkData commands due for (re)send
// on connectionID's outgoing transfer (§4.12: "up to ten SetChunk commands
// per tick"), or nil if no transfer is active.
func (h *HostLogic[T]) SendBlobChunks(connectionID ConnectionId, now time.Time) []wire.SetChunkData {
	const maxChunksPerTick = 10
	conn, ok := h.connections[connectionID]
	if !ok || conn.blobSender == nil {
		return nil
	}
	transferID, indices := conn.blobSender.Send(now, maxChunksPerTick)
	if len(indices) == 0 {
		return nil
	}
	out := make([]wire.SetChunkData, len(indices))
	for i, idx := range indices {
		out[i] = wire.SetChunkData{
			TransferID: uint16(transferID),
			ChunkIndex: uint32(idx),
			Payload:    conn.blobSender.ChunkPayload(idx),
		}
	}
	return out
}
