// Package wire implements the bit-exact, big-endian binary encoding for
// every protocol command in §4.9-§4.13 and §6: connect handshake, join,
// steps request/response, download-state, blob-stream channel commands, and
// the authoritative-step-range compression scheme.
package wire

import (
	"encoding/binary"

	"github.com/tickline/lockstep/internal/errs"
)

// Writer accumulates a big-endian encoded command stream.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// U8 appends one byte.
func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

// U16 appends a big-endian uint16.
func (w *Writer) U16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// U32 appends a big-endian uint32.
func (w *Writer) U32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// U64 appends a big-endian uint64.
func (w *Writer) U64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// Raw appends b verbatim, with no length prefix.
func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

// Bytes16 appends a u16 length prefix followed by raw bytes, for blob
// payloads and other variable vectors the spec sizes with u16.
func (w *Writer) Bytes16(b []byte) {
	w.U16(uint16(len(b)))
	w.buf = append(w.buf, b...)
}

// Bytes8 appends a u8 length prefix followed by raw bytes, for vectors the
// spec sizes with u8 (participant lists, short counts).
func (w *Writer) Bytes8(b []byte) {
	w.U8(uint8(len(b)))
	w.buf = append(w.buf, b...)
}

// Reader consumes a big-endian encoded command stream, failing Critical on
// any attempt to read past the end (a truncated or malformed datagram).
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Remaining reports how many bytes are left unconsumed.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return errs.New(errs.Critical, "wire: need %d bytes, have %d", n, r.Remaining())
	}
	return nil
}

// U8 reads one byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// U16 reads a big-endian uint16.
func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// U64 reads a big-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// Bytes reads exactly n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// Bytes16 reads a u16 length prefix followed by that many raw bytes.
func (r *Reader) Bytes16() ([]byte, error) {
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	return r.Bytes(int(n))
}

// Bytes8 reads a u8 length prefix followed by that many raw bytes.
func (r *Reader) Bytes8() ([]byte, error) {
	n, err := r.U8()
	if err != nil {
		return nil, err
	}
	return r.Bytes(int(n))
}
