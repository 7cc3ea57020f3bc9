package connlayer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tickline/lockstep/pkg/wire"
)

func TestScenarioS4HandshakeAcceptsMatchingResponseOnly(t *testing.T) {
	c := NewClientSession()
	c.BeginHandshake(0x0001020304050607, [3]uint16{1, 0, 0}, [3]uint16{1, 0, 0}, false)
	require.Equal(t, StateHandshakeSent, c.State())

	err := c.HandleConnectionAccepted(5, wire.ConnectionAccepted{
		ResponseToRequestID: 0x0999,
		HostAssignedSecret:  42,
	})
	require.Error(t, err)
	require.Equal(t, StateHandshakeSent, c.State())

	err = c.HandleConnectionAccepted(5, wire.ConnectionAccepted{
		ResponseToRequestID: 0x0001020304050607,
		HostAssignedSecret:  0x00000000CAFEBABE,
	})
	require.NoError(t, err)
	require.Equal(t, StateConnected, c.State())
	require.Equal(t, uint8(5), c.ConnectionID())
}

func TestFrameOutboundRequiresConnectedState(t *testing.T) {
	c := NewClientSession()
	_, err := c.FrameOutbound(0, []byte{0x01})
	require.Error(t, err)
}

func TestHostSessionAcceptsMatchingHashAndSuccessorSequence(t *testing.T) {
	c := NewClientSession()
	c.BeginHandshake(1, [3]uint16{}, [3]uint16{}, false)
	require.NoError(t, c.HandleConnectionAccepted(7, wire.ConnectionAccepted{
		ResponseToRequestID: 1,
		HostAssignedSecret:  0xABCD,
	}))

	h := NewHostSession(7, ConnectionSecretSeed(0xABCD))

	framed, err := c.FrameOutbound(100, []byte{0xAA, 0xBB})
	require.NoError(t, err)

	body := framed[1:] // strip connection id byte, as the host transport layer would
	commands, err := h.AcceptInbound(time.Unix(0, 0), body)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, commands)
}

func TestHostSessionRejectsBadHash(t *testing.T) {
	h := NewHostSession(7, ConnectionSecretSeed(0xABCD))
	w := wire.NewWriter()
	w.U32(0xFFFFFFFF)
	w.U16(1)
	w.U16(0)
	w.Raw([]byte{0xAA})
	_, err := h.AcceptInbound(time.Unix(0, 0), w.Bytes())
	require.Error(t, err)
}

func TestHostSessionFrameOutboundAcceptedByClient(t *testing.T) {
	c := NewClientSession()
	c.BeginHandshake(1, [3]uint16{}, [3]uint16{}, false)
	require.NoError(t, c.HandleConnectionAccepted(7, wire.ConnectionAccepted{
		ResponseToRequestID: 1,
		HostAssignedSecret:  0xABCD,
	}))

	h := NewHostSession(7, ConnectionSecretSeed(0xABCD))
	framed := h.FrameOutbound(50, []byte{0x09, 0x01})

	commands, err := c.AcceptInbound(time.Unix(0, 0), framed[1:])
	require.NoError(t, err)
	require.Equal(t, []byte{0x09, 0x01}, commands)
}

func TestClientSessionAcceptInboundRequiresConnectedState(t *testing.T) {
	c := NewClientSession()
	_, err := c.AcceptInbound(time.Unix(0, 0), []byte{0x00})
	require.Error(t, err)
}

func TestClientSessionAcceptInboundDropsNonSuccessorSequenceID(t *testing.T) {
	c := NewClientSession()
	c.BeginHandshake(1, [3]uint16{}, [3]uint16{}, false)
	require.NoError(t, c.HandleConnectionAccepted(7, wire.ConnectionAccepted{
		ResponseToRequestID: 1,
		HostAssignedSecret:  0xABCD,
	}))
	h := NewHostSession(7, ConnectionSecretSeed(0xABCD))

	framed := h.FrameOutbound(0, []byte{0x01})
	_, err := c.AcceptInbound(time.Unix(0, 0), framed[1:])
	require.NoError(t, err)

	_, err = c.AcceptInbound(time.Unix(0, 0), framed[1:])
	require.Error(t, err)
}

func TestHostSessionDropsNonSuccessorSequenceID(t *testing.T) {
	c := NewClientSession()
	c.BeginHandshake(1, [3]uint16{}, [3]uint16{}, false)
	require.NoError(t, c.HandleConnectionAccepted(7, wire.ConnectionAccepted{
		ResponseToRequestID: 1,
		HostAssignedSecret:  0xABCD,
	}))
	h := NewHostSession(7, ConnectionSecretSeed(0xABCD))

	framed, _ := c.FrameOutbound(0, []byte{0x01})
	_, err := h.AcceptInbound(time.Unix(0, 0), framed[1:])
	require.NoError(t, err)

	// Replay the same datagram: sequence id repeats, not a valid successor.
	_, err = h.AcceptInbound(time.Unix(0, 0), framed[1:])
	require.Error(t, err)
}
