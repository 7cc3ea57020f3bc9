package clientlogic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tickline/lockstep/internal/snapshotcodec"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
	"github.com/tickline/lockstep/pkg/wire"
)

type fakeGame struct {
	deserialized []byte
	ticks        []steps.AuthoritativeStep[int]
}

func (g *fakeGame) OnPreTicks()  {}
func (g *fakeGame) OnPostTicks() {}
func (g *fakeGame) OnTick(s steps.AuthoritativeStep[int]) {
	g.ticks = append(g.ticks, s)
}
func (g *fakeGame) OnCopyFromAuthoritative()    {}
func (g *fakeGame) Serialize() ([]byte, error)  { return nil, nil }
func (g *fakeGame) Deserialize(b []byte) error  { g.deserialized = b; return nil }

func TestRequestDownloadStateSendsDownloadRequest(t *testing.T) {
	c := New[int]()
	require.Equal(t, PhaseRequestDownloadState, c.Phase())

	cmds := c.Send(time.Unix(0, 0))
	require.Len(t, cmds, 1)
	require.Equal(t, OutgoingDownloadGameStateRequest, cmds[0].Kind)
}

func TestDownloadStateResponseMismatchIsIgnored(t *testing.T) {
	c := New[int]()
	err := c.ReceiveDownloadStateResponse(wire.DownloadGameStateResponse{ClientRequestID: 0x01, TickID: 5})
	require.Error(t, err)
	require.Equal(t, PhaseRequestDownloadState, c.Phase())
}

func TestDownloadStateResponseTransitionsToDownloading(t *testing.T) {
	c := New[int]()
	err := c.ReceiveDownloadStateResponse(wire.DownloadGameStateResponse{ClientRequestID: 0x99, TickID: 5, BlobStreamChannel: 1})
	require.NoError(t, err)
	require.Equal(t, PhaseDownloadingState, c.Phase())
}

func TestFullDownloadTransitionsToSendPredictedSteps(t *testing.T) {
	c := New[int]()
	require.NoError(t, c.ReceiveDownloadStateResponse(wire.DownloadGameStateResponse{ClientRequestID: 0x99, TickID: 5, BlobStreamChannel: 1}))

	raw := []byte{1, 2, 3, 4}
	compressed, err := snapshotcodec.Compress(raw)
	require.NoError(t, err)

	require.NoError(t, c.ReceiveBlobStreamStart(wire.StartTransfer{TransferID: 1, TotalOctetSize: uint32(len(compressed)), ChunkSize: uint16(len(compressed))}))
	require.False(t, c.BlobComplete())
	require.NoError(t, c.ReceiveBlobStreamChunk(wire.SetChunkData{TransferID: 1, ChunkIndex: 0, Payload: compressed}))
	require.True(t, c.BlobComplete())

	g := &fakeGame{}
	require.NoError(t, c.FinishDownload(g))
	require.Equal(t, PhaseSendPredictedSteps, c.Phase())
	require.Equal(t, raw, g.deserialized)
}

// TestBuildStepsCommandUsesRealTickForMidSessionJoin mirrors a client
// joining a session that has already produced steps (per
// cmd/lockstephost/server.go, tickID := ticklog.TickId(len(s.buffered)) is
// nonzero once the host has been running). The outgoing Steps command's
// WaitingForTickID must track the real protocol tick the client downloaded
// at and later confirmed, never Rectify/Assent's own internal counter
// (which always starts at 0 regardless of where the client actually joined).
func TestBuildStepsCommandUsesRealTickForMidSessionJoin(t *testing.T) {
	c := New[int]()
	require.NoError(t, c.ReceiveDownloadStateResponse(wire.DownloadGameStateResponse{ClientRequestID: 0x99, TickID: 500, BlobStreamChannel: 1}))

	compressed, err := snapshotcodec.Compress([]byte{9})
	require.NoError(t, err)
	require.NoError(t, c.ReceiveBlobStreamStart(wire.StartTransfer{TransferID: 1, TotalOctetSize: uint32(len(compressed)), ChunkSize: uint16(len(compressed))}))
	require.NoError(t, c.ReceiveBlobStreamChunk(wire.SetChunkData{TransferID: 1, ChunkIndex: 0, Payload: compressed}))
	g := &fakeGame{}
	require.NoError(t, c.FinishDownload(g))

	cmds := c.Send(time.Unix(0, 0))
	require.Len(t, cmds, 1)
	require.Equal(t, ticklog.TickId(500), cmds[0].Steps.WaitingForTickID)

	ranges := wire.CompileRanges([]steps.AuthoritativeStep[int]{
		{0: steps.Custom(1)},
		{0: steps.Custom(2)},
	})
	require.NoError(t, c.ReceiveGameStep(wire.GameStepResponse[int]{RootTickID: 500, Ranges: ranges}))

	cmds = c.Send(time.Unix(0, 0))
	require.Len(t, cmds, 1)
	require.Equal(t, ticklog.TickId(502), cmds[0].Steps.WaitingForTickID)
}

func TestReceiveGameStepAppliesRangeAndTrimsPredicted(t *testing.T) {
	c := New[int]()
	require.NoError(t, c.ReceiveDownloadStateResponse(wire.DownloadGameStateResponse{ClientRequestID: 0x99, TickID: 1, BlobStreamChannel: 1}))

	compressed, err := snapshotcodec.Compress([]byte{0})
	require.NoError(t, err)
	require.NoError(t, c.ReceiveBlobStreamStart(wire.StartTransfer{TransferID: 1, TotalOctetSize: uint32(len(compressed)), ChunkSize: uint16(len(compressed))}))
	require.NoError(t, c.ReceiveBlobStreamChunk(wire.SetChunkData{TransferID: 1, ChunkIndex: 0, Payload: compressed}))
	g := &fakeGame{}
	require.NoError(t, c.FinishDownload(g))

	c.AddPredictedStep(ticklog.TickId(1), map[steps.LocalIndex]steps.Step[int]{0: steps.Custom(7)})
	c.AddPredictedStep(ticklog.TickId(2), map[steps.LocalIndex]steps.Step[int]{0: steps.Custom(8)})
	require.Equal(t, 2, c.outgoingPredicted.len())

	ranges := wire.CompileRanges([]steps.AuthoritativeStep[int]{
		{0: steps.Custom(7)},
	})
	require.NoError(t, c.ReceiveGameStep(wire.GameStepResponse[int]{RootTickID: 1, Ranges: ranges}))

	require.Equal(t, 1, c.outgoingPredicted.len())
	front, ok := c.outgoingPredicted.frontTickID()
	require.True(t, ok)
	require.Equal(t, ticklog.TickId(2), front)
}
