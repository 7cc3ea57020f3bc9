package blobstream

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tickline/lockstep/internal/errs"
)

func TestScenarioS1ChunkedUploadCompletesOutOfOrder(t *testing.T) {
	r := NewReceiver(9, 4)

	require.NoError(t, r.SetChunk(1, []byte{0xff, 0xfe, 0xfd, 0xfc}))
	ack := r.Ack()
	require.Equal(t, ChunkIndex(0), ack.WaitingForChunkIndex)
	require.Equal(t, uint64(0b10), ack.ReceiveMaskAfterLast)

	require.NoError(t, r.SetChunk(0, []byte{0x31, 0x32, 0x33, 0x34}))
	ack = r.Ack()
	require.Equal(t, ChunkIndex(2), ack.WaitingForChunkIndex)
	require.Equal(t, uint64(0), ack.ReceiveMaskAfterLast)

	require.NoError(t, r.SetChunk(2, []byte{0x42}))
	ack = r.Ack()
	require.Equal(t, ChunkIndex(3), ack.WaitingForChunkIndex)
	require.Equal(t, uint64(0), ack.ReceiveMaskAfterLast)

	blob, ok := r.Blob()
	require.True(t, ok)
	require.Equal(t, []byte{0x31, 0x32, 0x33, 0x34, 0xff, 0xfe, 0xfd, 0xfc, 0x42}, blob)
}

func TestSetChunkRejectsInvalidIndex(t *testing.T) {
	r := NewReceiver(9, 4)
	require.Error(t, r.SetChunk(3, []byte{0x01}))
}

func TestSetChunkRejectsWrongSize(t *testing.T) {
	r := NewReceiver(9, 4)
	require.Error(t, r.SetChunk(0, []byte{0x01, 0x02}))
}

func TestSetChunkIsIdempotentOnIdenticalReplay(t *testing.T) {
	r := NewReceiver(9, 4)
	payload := []byte{0x31, 0x32, 0x33, 0x34}
	require.NoError(t, r.SetChunk(0, payload))
	require.NoError(t, r.SetChunk(0, payload))
}

func TestSetChunkFailsOnContentDivergence(t *testing.T) {
	r := NewReceiver(9, 4)
	require.NoError(t, r.SetChunk(0, []byte{0x31, 0x32, 0x33, 0x34}))
	err := r.SetChunk(0, []byte{0x00, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestScenarioS6RedundantContentDiffersIsSurfacedCritical(t *testing.T) {
	r := NewReceiver(28, 4)
	payloadA := []byte{0x01, 0x02, 0x03, 0x04}
	payloadB := []byte{0x05, 0x06, 0x07, 0x08}

	require.NoError(t, r.SetChunk(5, payloadA))
	err := r.SetChunk(5, payloadB)
	require.Error(t, err)
	require.True(t, errs.IsCritical(err), "content divergence on an already-received chunk must be Critical so the caller can terminate the transfer")
}
