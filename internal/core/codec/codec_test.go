package codec

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriterReader(t *testing.T) {
	w := NewWriter()
	w.PutUint8(7)
	w.PutBool(true)
	w.PutUint16(0xBEEF)
	w.PutInt32(-42)
	w.PutFloat32(1.5)
	w.PutFloat64(-3.25)
	w.PutString("Südbahnhof")
	w.PutBytes([]byte{1, 2, 3})
	w.PutLength(300)

	r := NewReader(w.Bytes())
	type decoded struct {
		U8   uint8
		B    bool
		U16  uint16
		I32  int32
		F32  float32
		F64  float64
		S    string
		Raw  []byte
		Size int
	}
	got := decoded{
		U8:   r.Uint8(),
		B:    r.Bool(),
		U16:  r.Uint16(),
		I32:  r.Int32(),
		F32:  r.Float32(),
		F64:  r.Float64(),
		S:    r.Str(),
		Raw:  r.Bytes(),
		Size: r.Length(),
	}
	want := decoded{7, true, 0xBEEF, -42, 1.5, -3.25, "Südbahnhof", []byte{1, 2, 3}, 300}

	if err := r.Err(); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded values did not match; diff:\n%s", diff)
	}
	if r.Remaining() != 0 {
		t.Errorf("expected the reader to be drained, %d bytes left", r.Remaining())
	}
}

func TestReader_ShortBufferIsSticky(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})
	_ = r.Uint32()
	if !errors.Is(r.Err(), ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", r.Err())
	}
	if v := r.Uint8(); v != 0 {
		t.Errorf("reads after a failure should return zero values, got %d", v)
	}
	if !errors.Is(r.Err(), ErrShortBuffer) {
		t.Errorf("first error should be kept, got %v", r.Err())
	}
}

func TestReader_StringLengthPastEnd(t *testing.T) {
	w := NewWriter()
	w.PutLength(10)
	w.PutUint8('a')

	r := NewReader(w.Bytes())
	if s := r.Str(); s != "" {
		t.Errorf("expected empty string, got %q", s)
	}
	if !errors.Is(r.Err(), ErrShortBuffer) {
		t.Errorf("expected ErrShortBuffer, got %v", r.Err())
	}
}

func TestReader_LengthTooLong(t *testing.T) {
	w := NewWriter()
	w.PutLength(MaxLength + 1)

	r := NewReader(w.Bytes())
	_ = r.Length()
	if !errors.Is(r.Err(), ErrTooLong) {
		t.Errorf("expected ErrTooLong, got %v", r.Err())
	}
}

func TestReader_TruncatedVarint(t *testing.T) {
	r := NewReader([]byte{0x80})
	_ = r.Length()
	if r.Err() == nil {
		t.Error("expected an error for a truncated varint")
	}
}
