package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tickline/lockstep/internal/transporttest"
	"github.com/tickline/lockstep/internal/transporttest/packetconnmock"
)

func TestRunDispatchesInboundDatagramsToHandler(t *testing.T) {
	conn := transporttest.New()
	tr := New(conn, nil)

	var mu sync.Mutex
	var received []byte
	done := make(chan struct{})
	tr.SetHandler(func(in Inbound) {
		mu.Lock()
		received = in.Data
		mu.Unlock()
		close(done)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	conn.Deliver([]byte{0xAA, 0xBB}, transporttest.FakeAddr("client"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []byte{0xAA, 0xBB}, received)
}

func TestSendWritesToUnderlyingConn(t *testing.T) {
	conn := transporttest.New()
	tr := New(conn, nil)

	addr := transporttest.FakeAddr("host")
	require.NoError(t, tr.Send(addr, []byte{1, 2, 3}))

	sent := conn.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, []byte{1, 2, 3}, sent[0].Data)
	require.Equal(t, addr, sent[0].Addr)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	conn := transporttest.New()
	tr := New(conn, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- tr.Run(ctx) }()

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRunContinuesAfterTransientReadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := packetconnmock.NewPacketConn(ctrl)

	first := conn.EXPECT().ReadFrom(gomock.Any()).Return(0, nil, errors.New("transient")).Times(1)
	conn.EXPECT().ReadFrom(gomock.Any()).DoAndReturn(func(p []byte) (int, net.Addr, error) {
		n := copy(p, []byte{0x01})
		return n, transporttest.FakeAddr("client"), nil
	}).After(first)
	conn.EXPECT().ReadFrom(gomock.Any()).Return(0, nil, errors.New("blocked")).AnyTimes()
	conn.EXPECT().Close().Return(nil).AnyTimes()

	tr := New(conn, nil)
	done := make(chan struct{})
	tr.SetHandler(func(in Inbound) { close(done) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked after a transient read error")
	}
}
