// Package transport owns the UDP socket and the datagram read/write loop,
// generalizing the teacher's Server.listen()/conn.ReadFromUDP loop
// (source/server/server.go) from a *net.UDPConn to any net.PacketConn so
// the same glue drives a real socket in production and an in-memory fake in
// tests (internal/transporttest).
package transport

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/tickline/lockstep/internal/errs"
	"github.com/tickline/lockstep/internal/telemetry"
)

// maxDatagramSize bounds one read; datagrams larger than this are truncated
// by the kernel before transport ever sees them, same as the teacher's
// fixed 2048-byte buffer.
const maxDatagramSize = 2048

// Inbound is one datagram read off the socket, tagged with its sender so
// the caller can reply to the right address.
type Inbound struct {
	Data []byte
	Addr net.Addr
}

// Handler processes one Inbound datagram. It returns nothing: any error is
// the handler's own to log, and transport never tears down the socket itself
// on a single bad datagram, matching §7's "per-connection" error scoping.
type Handler func(Inbound)

// Transport wraps a net.PacketConn with a read loop dispatching to a
// Handler, and a Send method for outbound datagrams.
type Transport struct {
	conn    net.PacketConn
	tel     *telemetry.Telemetry
	handler Handler
}

// New creates a Transport over conn. SetHandler must be called before Run.
func New(conn net.PacketConn, tel *telemetry.Telemetry) *Transport {
	return &Transport{conn: conn, tel: tel}
}

// SetHandler installs the datagram handler invoked by Run.
func (t *Transport) SetHandler(h Handler) { t.handler = h }

// Send writes data to addr on the underlying socket.
func (t *Transport) Send(addr net.Addr, data []byte) error {
	_, err := t.conn.WriteTo(data, addr)
	if err != nil {
		return errs.Classify(errs.Critical, err)
	}
	return nil
}

// Run reads datagrams until ctx is cancelled or the socket closes, handing
// each to the installed Handler on its own goroutine, matching the
// teacher's `go s.raknet.HandlePacket(data, addr)` per-packet dispatch.
func (t *Transport) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		t.conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if t.tel != nil {
				t.tel.Warn("transport: read error", zap.Error(err))
			}
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if t.handler != nil {
			go t.handler(Inbound{Data: data, Addr: addr})
		}
	}
}

// Close shuts down the underlying socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}
