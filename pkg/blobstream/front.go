// Package blobstream (front.go) adds TransferId-scoped session management
// (§4.8) on top of Sender/Receiver: a side can only have one transfer active
// at a time, identified by a TransferId that every subsequent chunk/ack must
// reference, with stale-id traffic logged and ignored rather than rejected.
package blobstream

import (
	"time"

	"github.com/tickline/lockstep/internal/errs"
)

// TransferId identifies one blob transfer. A fresh ReceiverFront/SenderFront
// starts with no active transfer; one is established by StartTransfer.
type TransferId uint16

// ReceiverFront wraps a Receiver with transfer-id bookkeeping: chunks tagged
// with a transfer id other than the currently active one are ignored rather
// than applied, since they belong to a transfer the other side already gave
// up on or restarted.
type ReceiverFront struct {
	transferID TransferId
	active     bool
	receiver   *Receiver
}

// NewReceiverFront creates a ReceiverFront with no active transfer.
func NewReceiverFront() *ReceiverFront {
	return &ReceiverFront{}
}

// StartTransfer begins a new transfer under id, discarding any prior
// transfer's state (partial blobs are never merged across transfer ids).
func (f *ReceiverFront) StartTransfer(id TransferId, totalSize, chunkSize uint32) error {
	if chunkSize == 0 {
		return errs.New(errs.Critical, "blobstream: chunk size must be nonzero")
	}
	f.transferID = id
	f.active = true
	f.receiver = NewReceiver(totalSize, chunkSize)
	return nil
}

// TransferID returns the currently active transfer id, or false if none.
func (f *ReceiverFront) TransferID() (TransferId, bool) { return f.transferID, f.active }

// SetChunk applies payload for chunk index under id. A mismatched id returns
// an Info-severity error and leaves the active transfer untouched, since it's
// expected after a transfer restarts and stale chunks from the old transfer
// keep arriving in flight.
func (f *ReceiverFront) SetChunk(id TransferId, index ChunkIndex, payload []byte) error {
	if !f.active {
		return errs.New(errs.Warning, "blobstream: chunk for transfer %d received with no active transfer", id)
	}
	if id != f.transferID {
		return errs.New(errs.Info, "blobstream: chunk for stale transfer %d, active is %d", id, f.transferID)
	}
	return f.receiver.SetChunk(index, payload)
}

// Ack returns the active transfer's id and current ack data, or false if no
// transfer is active.
func (f *ReceiverFront) Ack() (TransferId, AckChunkData, bool) {
	if !f.active {
		return 0, AckChunkData{}, false
	}
	return f.transferID, f.receiver.Ack(), true
}

// Blob returns the active transfer's assembled bytes once complete.
func (f *ReceiverFront) Blob() ([]byte, bool) {
	if !f.active {
		return nil, false
	}
	return f.receiver.Blob(), f.receiver.IsComplete()
}

// IsComplete reports whether the active transfer has received every chunk.
func (f *ReceiverFront) IsComplete() bool {
	return f.active && f.receiver.IsComplete()
}

// SenderFront wraps a Sender with transfer-id bookkeeping on the offering
// side: StartTransfer assigns the next transfer id and resets chunk-send
// state, so a restarted transfer never mixes acks meant for the old one into
// the new sender's bookkeeping.
type SenderFront struct {
	transferID TransferId
	active     bool
	sender     *Sender
}

// NewSenderFront creates a SenderFront with no active transfer.
func NewSenderFront() *SenderFront {
	return &SenderFront{}
}

// StartTransfer begins offering blob under a new transfer id, one greater
// than the previous transfer's (wrapping at TransferId's range), split into
// chunkSize-byte chunks resent no more often than resendDuration.
func (f *SenderFront) StartTransfer(blob []byte, chunkSize uint32, resendDuration time.Duration) (TransferId, error) {
	if chunkSize == 0 {
		return 0, errs.New(errs.Critical, "blobstream: chunk size must be nonzero")
	}
	if f.active {
		f.transferID++
	}
	f.active = true
	f.sender = NewSender(blob, chunkSize, resendDuration)
	return f.transferID, nil
}

// TransferID returns the currently active transfer id, or false if none.
func (f *SenderFront) TransferID() (TransferId, bool) { return f.transferID, f.active }

// Send returns up to maxCount chunk indices due for (re)sending, tagged with
// the active transfer id.
func (f *SenderFront) Send(now time.Time, maxCount int) (TransferId, []ChunkIndex) {
	if !f.active {
		return 0, nil
	}
	return f.transferID, f.sender.Send(now, maxCount)
}

// ChunkPayload returns the bytes for chunk index of the active transfer.
func (f *SenderFront) ChunkPayload(index ChunkIndex) []byte { return f.sender.ChunkPayload(index) }

// ReceiveAck applies an AckChunkData reported for id. An ack for any id other
// than the active transfer is ignored, since it refers to a transfer this
// side has already moved past.
func (f *SenderFront) ReceiveAck(id TransferId, ack AckChunkData) error {
	if !f.active || id != f.transferID {
		return nil
	}
	return f.sender.SetWaitingForChunkIndex(ack.WaitingForChunkIndex, ack.ReceiveMaskAfterLast)
}

// IsComplete reports whether the active transfer has been fully acked by the
// remote side.
func (f *SenderFront) IsComplete() bool {
	return f.active && f.sender.IsReceivedByRemote()
}
