package connlayer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPingerDueRespectsInterval(t *testing.T) {
	p := NewPinger(100 * time.Millisecond)
	start := time.Unix(0, 0)
	require.True(t, p.Due(start))

	p.Send(start)
	p.ReceivePong(start.Add(10 * time.Millisecond))
	require.False(t, p.Due(start.Add(50*time.Millisecond)))
	require.True(t, p.Due(start.Add(100*time.Millisecond)))
}

func TestPingerWaitsForPongBeforeNextSend(t *testing.T) {
	p := NewPinger(10 * time.Millisecond)
	start := time.Unix(0, 0)
	p.Send(start)
	require.False(t, p.Due(start.Add(time.Hour)), "must not re-ping while a reply is in flight")

	p.ReceivePong(start.Add(20 * time.Millisecond))
	require.True(t, p.Due(start.Add(time.Hour)))
}

func TestPingerRTTMeasuresRoundTrip(t *testing.T) {
	p := NewPinger(time.Second)
	start := time.Unix(0, 0)
	p.Send(start)
	p.ReceivePong(start.Add(37 * time.Millisecond))
	require.Equal(t, 37*time.Millisecond, p.RTT())
}

func TestPingerReceivePongWithoutSendIsNoop(t *testing.T) {
	p := NewPinger(time.Second)
	p.ReceivePong(time.Unix(0, 0))
	require.Zero(t, p.RTT())
}
