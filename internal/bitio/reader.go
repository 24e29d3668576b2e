// Package bitio provides bit-level reading from a byte buffer.
//
// ATSC 3.0 L1 signaling is a bit-packed big-endian stream: fields are
// anywhere from 1 to 32 bits wide and rarely byte-aligned, so every field
// extraction in the L1 decoder goes through a Reader.
package bitio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBufferExhausted is returned when a read would pass the end of the
// buffer. The reader does not advance on a failed read.
var ErrBufferExhausted = errors.New("bitio: buffer exhausted")

// Reader reads unsigned integers of arbitrary bit width from a byte slice.
// Bits are consumed MSB-first within each byte: bit 0 of the stream is the
// most significant bit of byte 0.
//
// A Reader is owned by a single decode pass and is not safe for concurrent
// use.
type Reader struct {
	buf []byte
	pos int // current bit offset
}

// NewReader returns a Reader positioned at bit 0 of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// ReadBits reads n bits (0 <= n <= 64) and returns them right-aligned in a
// uint64. On ErrBufferExhausted the offset is left unchanged.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("bitio: invalid bit count %d", n)
	}
	if n == 0 {
		return 0, nil
	}
	end := r.pos + n
	if end > len(r.buf)*8 {
		return 0, fmt.Errorf("%w: read %d bits at offset %d of %d-byte buffer",
			ErrBufferExhausted, n, r.pos, len(r.buf))
	}

	// Fast path for byte-aligned reads of whole-byte widths.
	if r.pos%8 == 0 {
		off := r.pos / 8
		switch n {
		case 8:
			r.pos = end
			return uint64(r.buf[off]), nil
		case 16:
			r.pos = end
			return uint64(binary.BigEndian.Uint16(r.buf[off:])), nil
		case 32:
			r.pos = end
			return uint64(binary.BigEndian.Uint32(r.buf[off:])), nil
		case 64:
			r.pos = end
			return binary.BigEndian.Uint64(r.buf[off:]), nil
		}
	}

	var v uint64
	for i := r.pos; i < end; i++ {
		bit := (r.buf[i/8] >> (7 - i%8)) & 1
		v = v<<1 | uint64(bit)
	}
	r.pos = end
	return v, nil
}

// Skip discards n bits without extracting a value. Used for reserved fields.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return fmt.Errorf("bitio: invalid bit count %d", n)
	}
	if r.pos+n > len(r.buf)*8 {
		return fmt.Errorf("%w: skip %d bits at offset %d of %d-byte buffer",
			ErrBufferExhausted, n, r.pos, len(r.buf))
	}
	r.pos += n
	return nil
}

// Offset returns the current bit offset from the start of the buffer.
func (r *Reader) Offset() int { return r.pos }

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int { return len(r.buf)*8 - r.pos }
