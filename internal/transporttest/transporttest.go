// Package transporttest provides an in-memory net.PacketConn fake so
// internal/transport's read/write loop can be exercised without a real
// socket, in the spirit of the pack's go.uber.org/mock-generated mocks but
// hand-written for the simple datagram-queue shape actually needed here.
package transporttest

import (
	"errors"
	"net"
	"sync"
	"time"
)

// FakeAddr is a trivial net.Addr for use with PacketConn.
type FakeAddr string

func (a FakeAddr) Network() string { return "fake" }
func (a FakeAddr) String() string  { return string(a) }

type datagram struct {
	data []byte
	addr net.Addr
}

// PacketConn is an in-memory net.PacketConn: WriteTo records each datagram
// for inspection via Sent, Deliver queues a datagram for the next ReadFrom,
// and reads block on an internal channel instead of touching a real socket.
type PacketConn struct {
	mu     sync.Mutex
	inbox  chan datagram
	sent   []datagram
	closed chan struct{}
	once   sync.Once
}

var _ net.PacketConn = (*PacketConn)(nil)

// New creates a PacketConn with no pending inbound datagrams.
func New() *PacketConn {
	return &PacketConn{
		inbox:  make(chan datagram, 256),
		closed: make(chan struct{}),
	}
}

// Deliver enqueues a datagram as if it had arrived from addr, to be
// returned by the next ReadFrom.
func (c *PacketConn) Deliver(data []byte, addr net.Addr) {
	select {
	case c.inbox <- datagram{data: data, addr: addr}:
	case <-c.closed:
	}
}

// ReadFrom blocks until a datagram is delivered or the conn is closed.
func (c *PacketConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case d := <-c.inbox:
		n := copy(p, d.data)
		return n, d.addr, nil
	case <-c.closed:
		return 0, nil, errors.New("transporttest: conn closed")
	}
}

// WriteTo records the datagram for later inspection via Sent.
func (c *PacketConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	select {
	case <-c.closed:
		return 0, errors.New("transporttest: conn closed")
	default:
	}
	c.mu.Lock()
	cp := make([]byte, len(p))
	copy(cp, p)
	c.sent = append(c.sent, datagram{data: cp, addr: addr})
	c.mu.Unlock()
	return len(p), nil
}

// Sent returns every datagram written so far, in order.
func (c *PacketConn) Sent() []struct {
	Data []byte
	Addr net.Addr
} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]struct {
		Data []byte
		Addr net.Addr
	}, len(c.sent))
	for i, d := range c.sent {
		out[i] = struct {
			Data []byte
			Addr net.Addr
		}{Data: d.data, Addr: d.addr}
	}
	return out
}

func (c *PacketConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *PacketConn) LocalAddr() net.Addr               { return FakeAddr("local") }
func (c *PacketConn) SetDeadline(t time.Time) error     { return nil }
func (c *PacketConn) SetReadDeadline(t time.Time) error { return nil }
func (c *PacketConn) SetWriteDeadline(t time.Time) error { return nil }
