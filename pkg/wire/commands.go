package wire

import "github.com/tickline/lockstep/internal/errs"

// Tag discriminates one command within a datagram body (§4.10).
type Tag uint8

const (
	TagJoinGame                 Tag = 0x01
	TagSteps                    Tag = 0x02
	TagDownloadGameStateRequest Tag = 0x03
	TagBlobStreamChannelUp      Tag = 0x04 // C→H: receiver→sender commands
	TagConnectRequest           Tag = 0x05 // oob
	TagPing                     Tag = 0x06

	TagGameStep                 Tag = 0x08
	TagJoinGameAccepted         Tag = 0x09
	TagDownloadGameStateResponse Tag = 0x0B
	TagBlobStreamChannelDown    Tag = 0x0C // H→C: sender→receiver commands
	TagConnectionAccepted       Tag = 0x0D // oob
	TagPong                     Tag = 0x0E
)

// Ping is the periodic in-band liveness probe a client sends to keep the
// host's LastReceivedAt fresh and to sample round-trip time; the host
// echoes ClientTime back unchanged in a Pong (`crates/datagram-pinger`).
type Ping struct {
	ClientTime uint16
}

func (p Ping) Encode(w *Writer) { w.U16(p.ClientTime) }

func DecodePing(r *Reader) (Ping, error) {
	t, err := r.U16()
	if err != nil {
		return Ping{}, err
	}
	return Ping{ClientTime: t}, nil
}

// Pong is the host's reply to a Ping, carrying the same ClientTime back so
// the client can compute round-trip time against its own clock.
type Pong struct {
	ClientTime uint16
}

func (p Pong) Encode(w *Writer) { w.U16(p.ClientTime) }

func DecodePong(r *Reader) (Pong, error) {
	t, err := r.U16()
	if err != nil {
		return Pong{}, err
	}
	return Pong{ClientTime: t}, nil
}

// ConnectRequest is the out-of-band handshake request (§6).
type ConnectRequest struct {
	NimbleVersion   [3]uint16
	UseDebugStream  bool
	AppVersion      [3]uint16
	ClientRequestID uint64
}

func (c ConnectRequest) Encode(w *Writer) {
	w.U16(c.NimbleVersion[0])
	w.U16(c.NimbleVersion[1])
	w.U16(c.NimbleVersion[2])
	if c.UseDebugStream {
		w.U8(1)
	} else {
		w.U8(0)
	}
	w.U16(c.AppVersion[0])
	w.U16(c.AppVersion[1])
	w.U16(c.AppVersion[2])
	w.U64(c.ClientRequestID)
}

func DecodeConnectRequest(r *Reader) (ConnectRequest, error) {
	var c ConnectRequest
	var err error
	if c.NimbleVersion[0], err = r.U16(); err != nil {
		return c, err
	}
	if c.NimbleVersion[1], err = r.U16(); err != nil {
		return c, err
	}
	if c.NimbleVersion[2], err = r.U16(); err != nil {
		return c, err
	}
	debug, err := r.U8()
	if err != nil {
		return c, err
	}
	c.UseDebugStream = debug != 0
	if c.AppVersion[0], err = r.U16(); err != nil {
		return c, err
	}
	if c.AppVersion[1], err = r.U16(); err != nil {
		return c, err
	}
	if c.AppVersion[2], err = r.U16(); err != nil {
		return c, err
	}
	if c.ClientRequestID, err = r.U64(); err != nil {
		return c, err
	}
	return c, nil
}

// ConnectionAccepted is the out-of-band handshake reply (§6).
type ConnectionAccepted struct {
	Flags                 uint8
	ResponseToRequestID   uint64
	HostAssignedSecret    uint64
}

func (c ConnectionAccepted) Encode(w *Writer) {
	w.U8(c.Flags)
	w.U64(c.ResponseToRequestID)
	w.U64(c.HostAssignedSecret)
}

func DecodeConnectionAccepted(r *Reader) (ConnectionAccepted, error) {
	var c ConnectionAccepted
	var err error
	if c.Flags, err = r.U8(); err != nil {
		return c, err
	}
	if c.ResponseToRequestID, err = r.U64(); err != nil {
		return c, err
	}
	if c.HostAssignedSecret, err = r.U64(); err != nil {
		return c, err
	}
	return c, nil
}

// JoinPlayerRequest is one requested local player slot within JoinGame.
type JoinPlayerRequest struct {
	LocalIndex uint8
}

// JoinGame is the client's request to join, carrying one or more local
// player slots to bind to host-assigned ParticipantIds.
type JoinGame struct {
	RequestID uint64
	Players   []JoinPlayerRequest
}

func (j JoinGame) Encode(w *Writer) {
	w.U64(j.RequestID)
	w.U8(uint8(len(j.Players)))
	for _, p := range j.Players {
		w.U8(p.LocalIndex)
	}
}

func DecodeJoinGame(r *Reader) (JoinGame, error) {
	var j JoinGame
	var err error
	if j.RequestID, err = r.U64(); err != nil {
		return j, err
	}
	count, err := r.U8()
	if err != nil {
		return j, err
	}
	j.Players = make([]JoinPlayerRequest, count)
	for i := range j.Players {
		li, err := r.U8()
		if err != nil {
			return j, err
		}
		j.Players[i] = JoinPlayerRequest{LocalIndex: li}
	}
	return j, nil
}

// ParticipantBinding pairs a requested local slot with its assigned
// ParticipantId.
type ParticipantBinding struct {
	LocalIndex    uint8
	ParticipantID uint8
}

// JoinGameAccepted is the host's reply to JoinGame.
type JoinGameAccepted struct {
	RequestID     uint64
	SessionSecret uint64
	PartyID       uint8
	Participants  []ParticipantBinding
}

func (j JoinGameAccepted) Encode(w *Writer) {
	w.U64(j.RequestID)
	w.U64(j.SessionSecret)
	w.U8(j.PartyID)
	w.U8(uint8(len(j.Participants)))
	for _, p := range j.Participants {
		w.U8(p.LocalIndex)
		w.U8(p.ParticipantID)
	}
}

func DecodeJoinGameAccepted(r *Reader) (JoinGameAccepted, error) {
	var j JoinGameAccepted
	var err error
	if j.RequestID, err = r.U64(); err != nil {
		return j, err
	}
	if j.SessionSecret, err = r.U64(); err != nil {
		return j, err
	}
	if j.PartyID, err = r.U8(); err != nil {
		return j, err
	}
	count, err := r.U8()
	if err != nil {
		return j, err
	}
	j.Participants = make([]ParticipantBinding, count)
	for i := range j.Participants {
		li, err := r.U8()
		if err != nil {
			return j, err
		}
		pid, err := r.U8()
		if err != nil {
			return j, err
		}
		j.Participants[i] = ParticipantBinding{LocalIndex: li, ParticipantID: pid}
	}
	return j, nil
}

// DownloadGameStateRequest asks the host for a full state snapshot.
type DownloadGameStateRequest struct {
	RequestID uint64
}

func (d DownloadGameStateRequest) Encode(w *Writer) { w.U64(d.RequestID) }

func DecodeDownloadGameStateRequest(r *Reader) (DownloadGameStateRequest, error) {
	id, err := r.U64()
	return DownloadGameStateRequest{RequestID: id}, err
}

// DownloadGameStateResponse carries the tick id the snapshot was taken at
// and the blob-stream channel id the client should read from.
type DownloadGameStateResponse struct {
	ClientRequestID   uint64
	TickID            uint32
	BlobStreamChannel uint16
}

func (d DownloadGameStateResponse) Encode(w *Writer) {
	w.U64(d.ClientRequestID)
	w.U32(d.TickID)
	w.U16(d.BlobStreamChannel)
}

func DecodeDownloadGameStateResponse(r *Reader) (DownloadGameStateResponse, error) {
	var d DownloadGameStateResponse
	var err error
	if d.ClientRequestID, err = r.U64(); err != nil {
		return d, err
	}
	if d.TickID, err = r.U32(); err != nil {
		return d, err
	}
	if d.BlobStreamChannel, err = r.U16(); err != nil {
		return d, err
	}
	return d, nil
}

// BlobSubTag discriminates which of a BlobStreamChannel command's two
// possible message shapes its body carries (§4.8 bundles StartTransfer/
// SetChunk on one direction and AckStart/AckChunk on the other under a
// single outer command tag; this inner byte disambiguates within that).
type BlobSubTag uint8

const (
	BlobSubTagStartTransfer BlobSubTag = 0x01
	BlobSubTagSetChunk      BlobSubTag = 0x02
	BlobSubTagAckStart      BlobSubTag = 0x03
	BlobSubTagAckChunk      BlobSubTag = 0x04
)

// StartTransfer begins a blob-stream session (§4.8, §6).
type StartTransfer struct {
	TransferID      uint16
	TotalOctetSize  uint32
	ChunkSize       uint16
}

func (s StartTransfer) Encode(w *Writer) {
	w.U16(s.TransferID)
	w.U32(s.TotalOctetSize)
	w.U16(s.ChunkSize)
}

func DecodeStartTransfer(r *Reader) (StartTransfer, error) {
	var s StartTransfer
	var err error
	if s.TransferID, err = r.U16(); err != nil {
		return s, err
	}
	if s.TotalOctetSize, err = r.U32(); err != nil {
		return s, err
	}
	if s.ChunkSize, err = r.U16(); err != nil {
		return s, err
	}
	return s, nil
}

// SetChunkData carries one blob chunk's payload (§6).
type SetChunkData struct {
	TransferID uint16
	ChunkIndex uint32
	Payload    []byte
}

func (s SetChunkData) Encode(w *Writer) {
	w.U16(s.TransferID)
	w.U32(s.ChunkIndex)
	w.Bytes16(s.Payload)
}

func DecodeSetChunkData(r *Reader) (SetChunkData, error) {
	var s SetChunkData
	var err error
	if s.TransferID, err = r.U16(); err != nil {
		return s, err
	}
	if s.ChunkIndex, err = r.U32(); err != nil {
		return s, err
	}
	if s.Payload, err = r.Bytes16(); err != nil {
		return s, err
	}
	return s, nil
}

// AckStart confirms a StartTransfer (§6).
type AckStart struct {
	TransferID uint16
}

func (a AckStart) Encode(w *Writer) { w.U16(a.TransferID) }

func DecodeAckStart(r *Reader) (AckStart, error) {
	id, err := r.U16()
	return AckStart{TransferID: id}, err
}

// AckChunkWire is the wire form of blobstream.AckChunkData, scoped to a
// transfer id (§6).
type AckChunkWire struct {
	TransferID           uint16
	WaitingForChunkIndex uint32
	ReceiveMaskAfterLast uint64
}

func (a AckChunkWire) Encode(w *Writer) {
	w.U16(a.TransferID)
	w.U32(a.WaitingForChunkIndex)
	w.U64(a.ReceiveMaskAfterLast)
}

func DecodeAckChunkWire(r *Reader) (AckChunkWire, error) {
	var a AckChunkWire
	var err error
	if a.TransferID, err = r.U16(); err != nil {
		return a, err
	}
	if a.WaitingForChunkIndex, err = r.U32(); err != nil {
		return a, err
	}
	if a.ReceiveMaskAfterLast, err = r.U64(); err != nil {
		return a, err
	}
	return a, nil
}

// Datagram decomposes an in-band datagram's fixed header (§4.9). The
// connection id byte is handled by the caller (it selects which Reader/hash
// seed to use); this covers only the body that follows it.
type Datagram struct {
	Hash            uint32
	SequenceID      uint16
	ClientTimestamp uint16
	Commands        []byte
}

func (d Datagram) Encode(w *Writer) {
	w.U32(d.Hash)
	w.U16(d.SequenceID)
	w.U16(d.ClientTimestamp)
	w.buf = append(w.buf, d.Commands...)
}

func DecodeDatagramHeader(r *Reader) (Datagram, error) {
	var d Datagram
	var err error
	if d.Hash, err = r.U32(); err != nil {
		return d, err
	}
	if d.SequenceID, err = r.U16(); err != nil {
		return d, err
	}
	if d.ClientTimestamp, err = r.U16(); err != nil {
		return d, err
	}
	d.Commands, err = r.Bytes(r.Remaining())
	return d, err
}

// NextSequenceIsSuccessor reports whether next is a valid successor of last
// under the 16-bit wraparound window (§4.9): `(next - last) mod 65536` must
// lie in [1, 32767].
func NextSequenceIsSuccessor(last, next uint16) bool {
	delta := uint16(next - last)
	return delta >= 1 && delta <= 32767
}

// ErrUnknownTag reports that a command tag byte wasn't recognized.
func ErrUnknownTag(tag uint8) error {
	return errs.New(errs.Critical, "wire: unknown command tag 0x%02x", tag)
}
