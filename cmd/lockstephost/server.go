package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tickline/lockstep/internal/config"
	"github.com/tickline/lockstep/internal/demogame"
	"github.com/tickline/lockstep/internal/errs"
	"github.com/tickline/lockstep/internal/hostlogic"
	"github.com/tickline/lockstep/internal/telemetry"
	"github.com/tickline/lockstep/internal/transport"
	"github.com/tickline/lockstep/pkg/blobstream"
	"github.com/tickline/lockstep/pkg/connlayer"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
	"github.com/tickline/lockstep/pkg/wire"
)

// connectionIdleTimeout closes a connection that hasn't sent an accepted
// in-band datagram in this long, the same "REAL timeout" staleness sweep
// the teacher's sessionCleanupLoop runs, generalized from a server-wide
// ticker to a check folded into the existing tick loop.
const connectionIdleTimeout = 30 * time.Second

// hostConnection is one client's framing session plus the hostlogic id it
// was assigned, looked up either by its UDP address (out-of-band traffic,
// which carries no connection id yet) or by its connection id (in-band
// traffic, per §4.9's framing).
type hostConnection struct {
	addr    net.Addr
	session *connlayer.HostSession
	id      hostlogic.ConnectionId
	secret  uint64
}

// hostServer wires hostlogic's per-connection game logic to the wire
// protocol and the transport socket, owning every connection's framing
// session and the host's own copy of the authoritative game state.
type hostServer struct {
	cfg   config.Host
	tel   *telemetry.Telemetry
	tr    *transport.Transport
	logic *hostlogic.HostLogic[demogame.Command]
	game  *demogame.Game
	codec demogame.Codec

	mu          sync.Mutex
	connsByAddr map[string]*hostConnection
	connsByID   map[hostlogic.ConnectionId]*hostConnection
	buffered    []steps.AuthoritativeStep[demogame.Command]
}

func newHostServer(cfg config.Host, tel *telemetry.Telemetry, tr *transport.Transport) *hostServer {
	return &hostServer{
		cfg:         cfg,
		tel:         tel,
		tr:          tr,
		logic:       hostlogic.New[demogame.Command](0),
		game:        demogame.New(),
		connsByAddr: make(map[string]*hostConnection),
		connsByID:   make(map[hostlogic.ConnectionId]*hostConnection),
	}
}

// tickLoop advances the combinator at cfg.TickDuration, forcing authoritative
// advancement every tick (the host never stalls waiting on a slow client, per
// §5's "externally driven" cooperative model) and resending any due blob
// chunks to every connection with an active download.
func (s *hostServer) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *hostServer) tick(now time.Time) {
	s.mu.Lock()
	combined, ok := s.logic.Produce(true)
	if ok {
		s.buffered = append(s.buffered, combined)
		s.game.OnTick(combined)
	}
	conns := make([]*hostConnection, 0, len(s.connsByID))
	var stale []hostlogic.ConnectionId
	for _, c := range s.connsByID {
		conns = append(conns, c)
		if last := c.session.LastReceivedAt(); !last.IsZero() && now.Sub(last) > connectionIdleTimeout {
			stale = append(stale, c.id)
		}
	}
	s.mu.Unlock()

	if ok {
		s.tel.Metrics.AuthoritativeTicksProduced.Inc()
	}

	for _, id := range stale {
		s.tel.Info("closing idle connection", zap.Uint8("id", uint8(id)))
		s.destroyConnection(id)
	}

	for _, conn := range conns {
		s.sendBlobChunks(conn, now)
	}
}

func (s *hostServer) sendBlobChunks(conn *hostConnection, now time.Time) {
	s.mu.Lock()
	chunks := s.logic.SendBlobChunks(conn.id, now)
	s.mu.Unlock()
	for _, chunk := range chunks {
		s.sendCommand(conn, wire.TagBlobStreamChannelDown, func(w *wire.Writer) {
			w.U8(uint8(wire.BlobSubTagSetChunk))
			chunk.Encode(w)
		})
		s.tel.Metrics.BlobChunksResent.Inc()
	}
}

// handleDatagram is the transport.Handler installed on the Transport: byte 0
// of every datagram is the connection id, 0 meaning out-of-band (§6).
func (s *hostServer) handleDatagram(in transport.Inbound) {
	if len(in.Data) == 0 {
		return
	}
	if in.Data[0] == 0 {
		s.handleOutOfBand(in.Addr, in.Data[1:])
		return
	}
	s.handleInBand(in.Addr, hostlogic.ConnectionId(in.Data[0]), in.Data[1:])
}

func (s *hostServer) handleOutOfBand(addr net.Addr, body []byte) {
	r := wire.NewReader(body)
	tag, err := r.U8()
	if err != nil {
		s.tel.Info("oob: empty datagram")
		return
	}
	if wire.Tag(tag) != wire.TagConnectRequest {
		s.tel.Warn("oob: unexpected tag", zap.Uint8("tag", tag))
		return
	}
	req, err := wire.DecodeConnectRequest(r)
	if err != nil {
		s.tel.Warn("oob: malformed ConnectRequest", zap.Error(err))
		return
	}

	conn, err := s.connectionForAddr(addr)
	if err != nil {
		s.tel.Error("oob: could not assign connection", zap.Error(err))
		return
	}

	reply := wire.ConnectionAccepted{
		Flags:               0,
		ResponseToRequestID: req.ClientRequestID,
		HostAssignedSecret:  conn.secret,
	}
	// The reply's leading byte carries the newly assigned connection id
	// rather than 0: §4.9 leaves the actual id assignment to "the lower
	// framing layer's own handshake", which here is this same byte-0
	// convention used both ways — 0 on the client's first request (it has
	// no id yet), the host's assignment on the reply.
	w := wire.NewWriter()
	w.U8(uint8(conn.id))
	w.U8(uint8(wire.TagConnectionAccepted))
	reply.Encode(w)
	if err := s.tr.Send(addr, w.Bytes()); err != nil {
		s.tel.Warn("oob: send failed", zap.Error(err))
	}
}

// connectionForAddr returns addr's existing connection, or allocates a fresh
// one (ConnectionId, ConnectionSecretSeed derived from a new secret's low 32
// bits, per §4.9) if this is the first handshake datagram from addr.
func (s *hostServer) connectionForAddr(addr net.Addr) (*hostConnection, error) {
	key := addr.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.connsByAddr[key]; ok {
		return conn, nil
	}

	id, err := s.logic.CreateConnection()
	if err != nil {
		return nil, err
	}
	secret := rand.Uint64()
	seed := connlayer.ConnectionSecretSeed(uint32(secret))
	conn := &hostConnection{
		addr:    addr,
		session: connlayer.NewHostSession(uint8(id), seed),
		id:      id,
		secret:  secret,
	}
	s.connsByAddr[key] = conn
	s.connsByID[id] = conn
	s.tel.Metrics.ConnectionsActive.Inc()
	s.tel.Events.Emit(telemetry.ConnectionEvent{Type: telemetry.EventConnectionEstablished, ConnectionID: uint8(id)})
	return conn, nil
}

func (s *hostServer) handleInBand(addr net.Addr, id hostlogic.ConnectionId, body []byte) {
	s.mu.Lock()
	conn, ok := s.connsByID[id]
	s.mu.Unlock()
	if !ok {
		s.tel.Warn("in-band: unknown connection id", zap.Uint8("id", uint8(id)))
		return
	}

	commands, err := conn.session.AcceptInbound(time.Now(), body)
	if err != nil {
		if errs.IsCritical(err) {
			s.tel.Error("in-band: closing connection on hash failure", zap.Uint8("id", uint8(id)), zap.Error(err))
			s.tel.Events.Emit(telemetry.ConnectionEvent{Type: telemetry.EventDesyncDetected, ConnectionID: uint8(id), Data: err.Error()})
			s.destroyConnection(id)
		} else {
			s.tel.Info("in-band: dropped datagram", zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	count, err := s.logic.IncrementDebugCounter(id)
	s.mu.Unlock()
	if err == nil {
		s.tel.Metrics.ConnectionDebugCounter.WithLabelValues(fmt.Sprint(uint8(id))).Set(float64(count))
	}

	r := wire.NewReader(commands)
	for r.Remaining() > 0 {
		tag, err := r.U8()
		if err != nil {
			s.tel.Warn("in-band: truncated command stream", zap.Error(err))
			return
		}
		if err := s.dispatchCommand(conn, wire.Tag(tag), r); err != nil {
			s.tel.Warn("in-band: command failed", zap.Uint8("tag", tag), zap.Error(err))
			if errs.IsCritical(err) {
				s.destroyConnection(id)
				return
			}
		}
	}
}

func (s *hostServer) dispatchCommand(conn *hostConnection, tag wire.Tag, r *wire.Reader) error {
	switch tag {
	case wire.TagJoinGame:
		return s.onJoinGame(conn, r)
	case wire.TagSteps:
		return s.onSteps(conn, r)
	case wire.TagDownloadGameStateRequest:
		return s.onDownloadGameStateRequest(conn, r)
	case wire.TagBlobStreamChannelUp:
		return s.onBlobStreamUp(conn, r)
	case wire.TagPing:
		return s.onPing(conn, r)
	default:
		return wire.ErrUnknownTag(uint8(tag))
	}
}

func (s *hostServer) onJoinGame(conn *hostConnection, r *wire.Reader) error {
	req, err := wire.DecodeJoinGame(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	resp, err := s.logic.OnJoinGame(conn.id, req)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.sendCommand(conn, wire.TagJoinGameAccepted, func(w *wire.Writer) { resp.Encode(w) })
	return nil
}

func (s *hostServer) onSteps(conn *hostConnection, r *wire.Reader) error {
	cmd, err := wire.DecodeStepsCommand[demogame.Command](r, s.codec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	resp, err := s.logic.OnSteps(conn.id, cmd, s.buffered)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.sendCommand(conn, wire.TagGameStep, func(w *wire.Writer) { resp.Encode(w, s.codec) })
	return nil
}

func (s *hostServer) onDownloadGameStateRequest(conn *hostConnection, r *wire.Reader) error {
	req, err := wire.DecodeDownloadGameStateRequest(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	tickID := ticklog.TickId(len(s.buffered))
	snapshot, err := s.game.Serialize()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	resp, err := s.logic.OnDownloadGameStateRequest(conn.id, req, tickID, snapshot)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.sendCommand(conn, wire.TagDownloadGameStateResponse, func(w *wire.Writer) { resp.Encode(w) })
	return nil
}

func (s *hostServer) onBlobStreamUp(conn *hostConnection, r *wire.Reader) error {
	subTag, err := r.U8()
	if err != nil {
		return err
	}
	switch wire.BlobSubTag(subTag) {
	case wire.BlobSubTagAckStart:
		ack, err := wire.DecodeAckStart(r)
		if err != nil {
			return err
		}
		s.mu.Lock()
		err = s.logic.OnBlobStreamAck(conn.id, ack.TransferID, blobstream.AckChunkData{})
		s.mu.Unlock()
		return err
	case wire.BlobSubTagAckChunk:
		ack, err := wire.DecodeAckChunkWire(r)
		if err != nil {
			return err
		}
		s.mu.Lock()
		err = s.logic.OnBlobStreamAck(conn.id, ack.TransferID, blobstream.AckChunkData{
			WaitingForChunkIndex: blobstream.ChunkIndex(ack.WaitingForChunkIndex),
			ReceiveMaskAfterLast: ack.ReceiveMaskAfterLast,
		})
		s.mu.Unlock()
		return err
	default:
		return wire.ErrUnknownTag(subTag)
	}
}

func (s *hostServer) onPing(conn *hostConnection, r *wire.Reader) error {
	ping, err := wire.DecodePing(r)
	if err != nil {
		return err
	}
	s.sendCommand(conn, wire.TagPong, func(w *wire.Writer) { wire.Pong{ClientTime: ping.ClientTime}.Encode(w) })
	return nil
}

func (s *hostServer) destroyConnection(id hostlogic.ConnectionId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connsByID[id]
	if !ok {
		return
	}
	if err := s.logic.DestroyConnection(id); err != nil {
		s.tel.Warn("destroy connection failed", zap.Uint8("id", uint8(id)), zap.Error(err))
	}
	delete(s.connsByID, id)
	delete(s.connsByAddr, conn.addr.String())
	s.tel.Metrics.ConnectionsActive.Dec()
	s.tel.Metrics.ConnectionDebugCounter.DeleteLabelValues(fmt.Sprint(uint8(id)))
	s.tel.Events.Emit(telemetry.ConnectionEvent{Type: telemetry.EventConnectionClosed, ConnectionID: uint8(id)})
}

// sendCommand frames one outbound command under tag and sends it to conn's
// address, using the connection's own HostSession for the in-band header.
func (s *hostServer) sendCommand(conn *hostConnection, tag wire.Tag, encode func(w *wire.Writer)) {
	inner := wire.NewWriter()
	inner.U8(uint8(tag))
	encode(inner)

	framed := conn.session.FrameOutbound(uint16(time.Now().UnixMilli()), inner.Bytes())
	if err := s.tr.Send(conn.addr, framed); err != nil {
		s.tel.Warn("send failed", zap.Error(err))
	}
}
