package blobstream

import (
	"time"

	"github.com/tickline/lockstep/internal/errs"
)

// Sender hands out resend-eligible chunk indices for a fixed blob, tracking
// per-chunk last-send time and the receiver's reported progress (§4.6).
type Sender struct {
	blob           []byte
	chunkSize      uint32
	chunkCount     uint32
	resendDuration time.Duration

	lastSentAt       []time.Time // zero value means never sent
	startIndexToSend ChunkIndex
	fillCursor       ChunkIndex
	received         []bool
}

// NewSender creates a Sender for blob, split into chunkSize-byte chunks,
// resending any chunk not re-acked within resendDuration.
func NewSender(blob []byte, chunkSize uint32, resendDuration time.Duration) *Sender {
	chunkCount := uint32(0)
	if len(blob) > 0 {
		chunkCount = (uint32(len(blob)) + chunkSize - 1) / chunkSize
	}
	return &Sender{
		blob:           blob,
		chunkSize:      chunkSize,
		chunkCount:     chunkCount,
		resendDuration: resendDuration,
		lastSentAt:     make([]time.Time, chunkCount),
		received:       make([]bool, chunkCount),
	}
}

// ChunkCount returns the total number of chunks.
func (s *Sender) ChunkCount() uint32 { return s.chunkCount }

// ChunkPayload returns the bytes for chunk index.
func (s *Sender) ChunkPayload(index ChunkIndex) []byte {
	start := uint32(index) * s.chunkSize
	end := start + s.chunkSize
	if end > uint32(len(s.blob)) {
		end = uint32(len(s.blob))
	}
	return s.blob[start:end]
}

// IsReceivedByRemote reports whether the receiver has confirmed every
// chunk, per the last SetWaitingForChunkIndex call.
func (s *Sender) IsReceivedByRemote() bool {
	return uint32(s.startIndexToSend) >= s.chunkCount
}

// Send returns up to maxCount chunk indices to (re)send as of now. Chunks
// the receiver has reported as received are never selected.
// Selection: starting from startIndexToSend, take indices whose
// lastSentAt is zero or older than resendDuration before now. If fewer than
// maxCount are selected this way, fill with additional indices starting
// from fillCursor, skipping duplicates (whether or not their resend
// duration has elapsed), wrapping at chunkCount, and advancing fillCursor
// past the last additional index chosen. Every selected index has
// lastSentAt set to now.
func (s *Sender) Send(now time.Time, maxCount int) []ChunkIndex {
	if s.chunkCount == 0 {
		return nil
	}
	selected := make([]ChunkIndex, 0, maxCount)
	seen := make(map[ChunkIndex]bool, maxCount)

	for i := s.startIndexToSend; i < ChunkIndex(s.chunkCount) && len(selected) < maxCount; i++ {
		if s.dueToSend(i, now) {
			selected = append(selected, i)
			seen[i] = true
		}
	}

	if len(selected) < maxCount && s.chunkCount > 0 {
		start := s.fillCursor
		for count := uint32(0); count < s.chunkCount && len(selected) < maxCount; count++ {
			idx := ChunkIndex((uint32(start) + count) % s.chunkCount)
			if !seen[idx] && !s.received[idx] {
				selected = append(selected, idx)
				seen[idx] = true
			}
			s.fillCursor = ChunkIndex((uint32(idx) + 1) % s.chunkCount)
		}
	}

	for _, idx := range selected {
		s.lastSentAt[idx] = now
	}
	return selected
}

func (s *Sender) dueToSend(index ChunkIndex, now time.Time) bool {
	if s.received[index] {
		return false
	}
	last := s.lastSentAt[index]
	return last.IsZero() || now.Sub(last) >= s.resendDuration
}

// SetWaitingForChunkIndex records receiver progress: every chunk strictly
// before index is marked received, and the mask's bits mark chunks starting
// at index per the receiver's Ack bit layout (bit 0 = index itself, always
// unreceived by construction, bits 1..63 = index+1..index+63).
func (s *Sender) SetWaitingForChunkIndex(index ChunkIndex, mask uint64) error {
	if uint32(index) > s.chunkCount {
		return errs.New(errs.Warning, "blobstream: waiting-for index %d exceeds chunk count %d", index, s.chunkCount)
	}
	if index > s.startIndexToSend {
		for i := s.startIndexToSend; i < index; i++ {
			s.received[i] = true
		}
		s.startIndexToSend = index
	}
	for bit := uint(0); bit < 64; bit++ {
		abs := uint32(index) + uint32(bit)
		if abs >= s.chunkCount {
			break
		}
		if mask&(1<<bit) != 0 {
			s.received[abs] = true
		}
	}
	return nil
}
