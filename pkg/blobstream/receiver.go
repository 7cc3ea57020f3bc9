// Package blobstream implements the reliable-but-chunked blob transfer
// core (§4.6, §4.7): a sender that hands out resend-eligible chunk indices
// over an unreliable transport, and a receiver that reassembles them into a
// full byte buffer, acking progress with a 64-bit receive mask.
package blobstream

import (
	"bytes"

	"github.com/bits-and-blooms/bitset"
	"github.com/tickline/lockstep/internal/errs"
	"github.com/tickline/lockstep/pkg/bitset64"
)

// ChunkIndex identifies one fixed-size chunk of a transferred blob.
type ChunkIndex uint32

// AckChunkData is the receiver's progress report: the lowest chunk index
// not yet received in sequence, and a 64-bit mask of the chunks after it.
type AckChunkData struct {
	WaitingForChunkIndex ChunkIndex
	ReceiveMaskAfterLast uint64
}

// Receiver reassembles a blob from chunks arriving in any order.
type Receiver struct {
	blob       []byte
	received   *bitset.BitSet
	chunkSize  uint32
	totalSize  uint32
	chunkCount uint32
}

// NewReceiver creates a Receiver expecting totalSize bytes split into
// chunkSize-byte chunks (the last chunk may be shorter).
func NewReceiver(totalSize, chunkSize uint32) *Receiver {
	chunkCount := (totalSize + chunkSize - 1) / chunkSize
	if totalSize == 0 {
		chunkCount = 0
	}
	return &Receiver{
		blob:       make([]byte, totalSize),
		received:   bitset.New(uint(chunkCount)),
		chunkSize:  chunkSize,
		totalSize:  totalSize,
		chunkCount: chunkCount,
	}
}

// ChunkCount returns the total number of expected chunks.
func (r *Receiver) ChunkCount() uint32 { return r.chunkCount }

// ChunkCountReceived returns how many chunks have been received so far.
func (r *Receiver) ChunkCountReceived() uint32 { return uint32(r.received.Count()) }

// IsComplete reports whether every chunk has been received.
func (r *Receiver) IsComplete() bool {
	return uint32(r.received.Count()) == r.chunkCount
}

// Blob returns the assembled bytes, only once every chunk has been received.
func (r *Receiver) Blob() ([]byte, bool) {
	if !r.IsComplete() {
		return nil, false
	}
	return r.blob, true
}

func (r *Receiver) expectedChunkSize(index uint32) uint32 {
	if index != r.chunkCount-1 {
		return r.chunkSize
	}
	rem := r.totalSize % r.chunkSize
	if rem == 0 {
		return r.chunkSize
	}
	return rem
}

// SetChunk applies one received chunk. Setting an already-received chunk is
// idempotent if the payload is identical, and a Critical error
// (RedundantContentDiffers) if it isn't — a reused chunk index whose
// content has changed indicates content divergence.
func (r *Receiver) SetChunk(index ChunkIndex, payload []byte) error {
	idx := uint32(index)
	if idx >= r.chunkCount {
		return errs.New(errs.Warning, "blobstream: invalid chunk index %d, chunk count %d", idx, r.chunkCount)
	}

	expected := r.expectedChunkSize(idx)
	if uint32(len(payload)) != expected {
		return errs.New(errs.Warning, "blobstream: unexpected chunk size for index %d: got %d, want %d", idx, len(payload), expected)
	}

	offset := idx * r.chunkSize
	if r.received.Test(uint(idx)) {
		if bytes.Equal(r.blob[offset:offset+expected], payload) {
			return nil
		}
		return errs.New(errs.Critical, "blobstream: content diverges for already-received chunk %d", idx)
	}

	copy(r.blob[offset:offset+expected], payload)
	r.received.Set(uint(idx))
	return nil
}

// Ack produces an AckChunkData reflecting current receive progress. Bit k of
// ReceiveMaskAfterLast reports whether chunk (WaitingForChunkIndex + k) has
// been received; bit 0 is always 0 since WaitingForChunkIndex is itself the
// lowest unreceived chunk.
func (r *Receiver) Ack() AckChunkData {
	waiting := r.firstUnsetBit()
	mask := bitset64.AtomFromIndex(waiting, func(i uint32) bool {
		if i >= r.chunkCount {
			return false
		}
		return r.received.Test(uint(i))
	})
	return AckChunkData{WaitingForChunkIndex: ChunkIndex(waiting), ReceiveMaskAfterLast: mask}
}

func (r *Receiver) firstUnsetBit() uint32 {
	for i := uint32(0); i < r.chunkCount; i++ {
		if !r.received.Test(uint(i)) {
			return i
		}
	}
	return r.chunkCount
}
