// Package connlayer implements connection-id-scoped datagram framing and
// the out-of-band connect handshake (§4.9): a session state machine
// (Unconnected → HandshakeSent → Connected), in-band sequence-id successor
// validation, and the MurmurHash3-based integrity hash over each in-band
// datagram's body.
package connlayer

import (
	"time"

	"github.com/tickline/lockstep/internal/errs"
	"github.com/tickline/lockstep/pkg/murmur3"
	"github.com/tickline/lockstep/pkg/wire"
)

// State is a connection's handshake phase.
type State uint8

const (
	// StateUnconnected has sent no ConnectRequest yet.
	StateUnconnected State = iota
	// StateHandshakeSent is waiting for a ConnectionAccepted matching its
	// outstanding request id.
	StateHandshakeSent
	// StateConnected has a verified ConnectionSecretSeed and assigned
	// connection id, and may exchange in-band datagrams.
	StateConnected
)

// ConnectionSecretSeed seeds the per-connection integrity hash, derived from
// the low 32 bits of the host-assigned session secret (§4.9).
type ConnectionSecretSeed uint32

// ClientSession is the client side of the handshake and in-band framing
// state machine.
type ClientSession struct {
	state              State
	connectionID       uint8
	requestID          uint64
	seed               ConnectionSecretSeed
	outboundSequenceID uint16
	lastSequenceID     uint16
	hasSequenceID      bool
}

// NewClientSession creates a session in StateUnconnected.
func NewClientSession() *ClientSession {
	return &ClientSession{}
}

// State reports the current handshake phase.
func (c *ClientSession) State() State { return c.state }

// BeginHandshake transitions to StateHandshakeSent and returns the
// ConnectRequest to send out-of-band (connection id 0), remembering
// requestID to verify the eventual reply.
func (c *ClientSession) BeginHandshake(requestID uint64, nimbleVersion, appVersion [3]uint16, useDebugStream bool) wire.ConnectRequest {
	c.state = StateHandshakeSent
	c.requestID = requestID
	return wire.ConnectRequest{
		NimbleVersion:   nimbleVersion,
		UseDebugStream:  useDebugStream,
		AppVersion:      appVersion,
		ClientRequestID: requestID,
	}
}

// HandleConnectionAccepted verifies reply.ResponseToRequestID against the
// outstanding request id. A mismatch is Info-level and ignored (stale or
// foreign reply); on match, assigns the connection id and derives the
// integrity seed from the low 32 bits of the secret, transitioning to
// StateConnected (§4.9, testable property S4).
func (c *ClientSession) HandleConnectionAccepted(connectionID uint8, reply wire.ConnectionAccepted) error {
	if c.state != StateHandshakeSent {
		return errs.New(errs.Info, "connlayer: ConnectionAccepted received outside HandshakeSent")
	}
	if reply.ResponseToRequestID != c.requestID {
		return errs.New(errs.Info, "connlayer: ConnectionAccepted for request %d, expected %d", reply.ResponseToRequestID, c.requestID)
	}
	c.connectionID = connectionID
	c.seed = ConnectionSecretSeed(uint32(reply.HostAssignedSecret))
	c.state = StateConnected
	return nil
}

// ConnectionID returns the assigned in-band connection id, valid once
// StateConnected.
func (c *ClientSession) ConnectionID() uint8 { return c.connectionID }

// FrameOutbound wraps commands in the in-band header: connection id, hash,
// sequence id, timestamp (§4.9). Must only be called once StateConnected.
func (c *ClientSession) FrameOutbound(clientTimestamp uint16, commands []byte) ([]byte, error) {
	if c.state != StateConnected {
		return nil, errs.New(errs.Critical, "connlayer: cannot frame outbound datagram before connected")
	}
	c.outboundSequenceID++

	w := wire.NewWriter()
	w.U16(c.outboundSequenceID)
	w.U16(clientTimestamp)
	w.Raw(commands)
	hash := computeHash(c.seed, w.Bytes())

	out := wire.NewWriter()
	out.U8(c.connectionID)
	out.U32(hash)
	out.Raw(w.Bytes())
	return out.Bytes(), nil
}

// AcceptInbound verifies a host→client in-band datagram's hash and sequence
// id, the client-side mirror of HostSession.AcceptInbound. Must only be
// called once StateConnected.
func (c *ClientSession) AcceptInbound(now time.Time, body []byte) ([]byte, error) {
	if c.state != StateConnected {
		return nil, errs.New(errs.Critical, "connlayer: cannot accept inbound datagram before connected")
	}
	r := wire.NewReader(body)
	hash, err := r.U32()
	if err != nil {
		return nil, errs.Classify(errs.Critical, err)
	}
	rest, err := r.Bytes(r.Remaining())
	if err != nil {
		return nil, errs.Classify(errs.Critical, err)
	}

	seqReader := wire.NewReader(rest)
	sequenceID, err := seqReader.U16()
	if err != nil {
		return nil, errs.Classify(errs.Critical, err)
	}
	if _, err := seqReader.U16(); err != nil { // host timestamp, unused here
		return nil, errs.Classify(errs.Critical, err)
	}

	if computeHash(c.seed, rest) != hash {
		return nil, errs.New(errs.Critical, "connlayer: hash mismatch on connection %d", c.connectionID)
	}

	if c.hasSequenceID && !wire.NextSequenceIsSuccessor(c.lastSequenceID, sequenceID) {
		return nil, errs.New(errs.Warning, "connlayer: sequence id %d is not a successor of %d, dropped", sequenceID, c.lastSequenceID)
	}
	c.lastSequenceID = sequenceID
	c.hasSequenceID = true

	commands, err := seqReader.Bytes(seqReader.Remaining())
	if err != nil {
		return nil, errs.Classify(errs.Critical, err)
	}
	return commands, nil
}

func computeHash(seed ConnectionSecretSeed, body []byte) uint32 {
	return murmur3.Sum32(body, uint32(seed))
}

// HostSession is the host side of one connection's framing state: it knows
// the connection's secret seed and the last-seen inbound sequence id.
type HostSession struct {
	seed               ConnectionSecretSeed
	lastSequenceID     uint16
	hasSequenceID      bool
	connectionID       uint8
	lastReceivedAt     time.Time
	outboundSequenceID uint16
}

// NewHostSession creates a host-side session for a freshly assigned
// connection id and seed.
func NewHostSession(connectionID uint8, seed ConnectionSecretSeed) *HostSession {
	return &HostSession{connectionID: connectionID, seed: seed}
}

// ConnectionID returns this session's assigned connection id.
func (h *HostSession) ConnectionID() uint8 { return h.connectionID }

// AcceptInbound verifies an in-band datagram's hash and sequence id,
// returning the commands payload if it passes. Hash mismatch is Critical
// (§7: "hash verification failure on an in-band datagram" closes the
// connection). A non-successor sequence id is dropped silently per §4.9,
// reported here as a Warning error so the caller can choose to log it.
func (h *HostSession) AcceptInbound(now time.Time, body []byte) ([]byte, error) {
	r := wire.NewReader(body)
	hash, err := r.U32()
	if err != nil {
		return nil, errs.Classify(errs.Critical, err)
	}
	rest, err := r.Bytes(r.Remaining())
	if err != nil {
		return nil, errs.Classify(errs.Critical, err)
	}

	seqReader := wire.NewReader(rest)
	sequenceID, err := seqReader.U16()
	if err != nil {
		return nil, errs.Classify(errs.Critical, err)
	}
	if _, err := seqReader.U16(); err != nil { // client timestamp, unused here
		return nil, errs.Classify(errs.Critical, err)
	}

	if computeHash(h.seed, rest) != hash {
		return nil, errs.New(errs.Critical, "connlayer: hash mismatch on connection %d", h.connectionID)
	}

	if h.hasSequenceID && !wire.NextSequenceIsSuccessor(h.lastSequenceID, sequenceID) {
		return nil, errs.New(errs.Warning, "connlayer: sequence id %d is not a successor of %d, dropped", sequenceID, h.lastSequenceID)
	}
	h.lastSequenceID = sequenceID
	h.hasSequenceID = true
	h.lastReceivedAt = now

	commands, err := seqReader.Bytes(seqReader.Remaining())
	if err != nil {
		return nil, errs.Classify(errs.Critical, err)
	}
	return commands, nil
}

// LastReceivedAt reports when the most recent accepted inbound datagram
// arrived, for idle-timeout bookkeeping by the caller.
func (h *HostSession) LastReceivedAt() time.Time { return h.lastReceivedAt }

// FrameOutbound wraps commands in the in-band header for a host→client
// datagram, the host-side mirror of ClientSession.FrameOutbound.
func (h *HostSession) FrameOutbound(hostTimestamp uint16, commands []byte) []byte {
	h.outboundSequenceID++

	w := wire.NewWriter()
	w.U16(h.outboundSequenceID)
	w.U16(hostTimestamp)
	w.Raw(commands)
	hash := computeHash(h.seed, w.Bytes())

	out := wire.NewWriter()
	out.U8(h.connectionID)
	out.U32(hash)
	out.Raw(w.Bytes())
	return out.Bytes()
}
