// Package codec implements the canonical binary encoding shared by entity
// leaf hashing, event-log persistence, and commitment serialization.
//
// There is exactly one wire format in this system: big-endian fixed-width
// scalars, u32-length-prefixed byte strings, and explicit field ordering.
// Nothing here is JSON or gob; those are fine for operational bookkeeping
// (see pkg/storage) but never for anything that feeds a hash.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Writer accumulates a canonical byte stream. The zero value is ready to use.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

// Finish returns the accumulated byte stream.
func (w *Writer) Finish() []byte { return w.buf }

func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) U64(v uint64) *Writer {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// U64LE writes a little-endian u64. Only OrderPriceLevel's key uses this
// (the entity table in the spec calls for `price_le` specifically); every
// other committed integer is big-endian.
func (w *Writer) U64LE(v uint64) *Writer {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// Raw32 writes exactly 32 raw bytes with no length prefix (used for H256
// values and other fixed-size digests).
func (w *Writer) Raw32(v [32]byte) *Writer {
	w.buf = append(w.buf, v[:]...)
	return w
}

// RawBytes writes raw bytes with no length prefix, for the tail field of a
// structure or for byte strings whose length is implied by context.
func (w *Writer) RawBytes(v []byte) *Writer {
	w.buf = append(w.buf, v...)
	return w
}

// Bytes writes a u32-length-prefixed byte string.
func (w *Writer) Bytes(v []byte) *Writer {
	w.U32(uint32(len(v)))
	w.buf = append(w.buf, v...)
	return w
}

// String writes a u32-length-prefixed UTF-8 string.
func (w *Writer) String(v string) *Writer {
	return w.Bytes([]byte(v))
}

// Reader consumes a canonical byte stream produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("codec: short read: need %d bytes, have %d", n, r.Remaining())
	}
	return nil
}

func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) U64LE() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) Raw32() ([32]byte, error) {
	var out [32]byte
	if err := r.need(32); err != nil {
		return out, err
	}
	copy(out[:], r.buf[r.pos:r.pos+32])
	r.pos += 32
	return out, nil
}

func (r *Reader) RawBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	return r.RawBytes(int(n))
}

func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
