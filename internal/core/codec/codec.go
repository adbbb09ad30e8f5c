// Package codec implements the primitive encoding shared by every message:
// fixed-width little endian numbers and varint length-prefixed strings and arrays.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxLength bounds any length prefix read from the wire so that a corrupt
// prefix can't trigger a huge allocation.
const MaxLength = 1 << 16

var (
	ErrShortBuffer = errors.New("codec: buffer too short")
	ErrTooLong     = errors.New("codec: length prefix too long")
)

// Writer appends encoded values to a growing buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Bytes returns the encoded contents.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) PutUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) PutBool(v bool) {
	if v {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
}

func (w *Writer) PutUint16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *Writer) PutUint32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) PutInt32(v int32)   { w.PutUint32(uint32(v)) }
func (w *Writer) PutFloat32(v float32) {
	w.PutUint32(math.Float32bits(v))
}
func (w *Writer) PutFloat64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// PutLength writes an array or string length as a varint.
func (w *Writer) PutLength(n int) { w.buf = protowire.AppendVarint(w.buf, uint64(n)) }

func (w *Writer) PutString(s string) {
	w.buf = protowire.AppendString(w.buf, s)
}

func (w *Writer) PutBytes(b []byte) {
	w.buf = protowire.AppendBytes(w.buf, b)
}

// Reader consumes values from a buffer. The first failure is sticky: every
// later read returns a zero value and Err reports the original problem, so
// decoders can read a whole payload and check once at the end.
type Reader struct {
	data []byte
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered while reading.
func (r *Reader) Err() error { return r.err }

// Fail records err as the reader's error unless one is already set.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
		r.data = nil
	}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data) < n {
		r.err = fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, len(r.data))
		r.data = nil
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool { return r.Uint8() != 0 }

func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

func (r *Reader) Float32() float32 { return math.Float32frombits(r.Uint32()) }

func (r *Reader) Float64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// Length reads a varint length and checks it against MaxLength.
func (r *Reader) Length() int {
	if r.err != nil {
		return 0
	}
	v, n := protowire.ConsumeVarint(r.data)
	if n < 0 {
		r.err = fmt.Errorf("codec: reading length: %w", protowire.ParseError(n))
		r.data = nil
		return 0
	}
	r.data = r.data[n:]
	if v > MaxLength {
		r.err = fmt.Errorf("%w: %d", ErrTooLong, v)
		r.data = nil
		return 0
	}
	return int(v)
}

func (r *Reader) Str() string {
	return string(r.bytes())
}

// Bytes returns a copy of a length-prefixed byte string.
func (r *Reader) Bytes() []byte {
	b := r.bytes()
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *Reader) bytes() []byte {
	n := r.Length()
	if r.err != nil {
		return nil
	}
	return r.take(n)
}
