package client

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// PeerID identifies a connection for as long as it is open. It travels as a
// single byte so at most 256 peers can be connected at once; ids are reused
// after a disconnect.
type PeerID uint8

// DeliveryClass is the guarantee attached to an outbound message.
type DeliveryClass uint8

const (
	Unreliable DeliveryClass = iota
	Sequenced
	ReliableOrdered
	ReliableUnordered
)

func (d DeliveryClass) String() string {
	switch d {
	case Unreliable:
		return "unreliable"
	case Sequenced:
		return "sequenced"
	case ReliableOrdered:
		return "reliable-ordered"
	case ReliableUnordered:
		return "reliable-unordered"
	default:
		return fmt.Sprintf("delivery(%d)", uint8(d))
	}
}

// Reliable reports whether a message of this class may never be dropped.
func (d DeliveryClass) Reliable() bool {
	return d == ReliableOrdered || d == ReliableUnordered
}

// FrameKind distinguishes transport control frames from message frames.
type FrameKind uint8

const (
	// FrameRequest carries the login payload of a connection that has not been accepted.
	FrameRequest FrameKind = iota + 1
	// FrameAccept tells the client its connection was accepted; body is the peer id.
	FrameAccept
	// FrameReject carries the denial payload. The connection is closed after it is sent.
	FrameReject
	// FrameMessage carries one encoded message.
	FrameMessage
	// FramePing and FramePong carry an opaque timestamp used for latency measurement.
	FramePing
	FramePong
)

const (
	frameHeaderSize = 2
	// MaxFrameSize bounds a single frame body.
	MaxFrameSize = 1 << 20
)

var ErrFrameTooLarge = errors.New("frame too large")

// Frame is the unit exchanged with a transport.
type Frame struct {
	Kind     FrameKind
	Delivery DeliveryClass
	Body     []byte
}

// marshal encodes a frame without its length prefix.
func (f Frame) marshal() []byte {
	b := make([]byte, frameHeaderSize+len(f.Body))
	b[0] = byte(f.Kind)
	b[1] = byte(f.Delivery)
	copy(b[frameHeaderSize:], f.Body)
	return b
}

func unmarshalFrame(b []byte) (Frame, error) {
	if len(b) < frameHeaderSize {
		return Frame{}, fmt.Errorf("frame of %d bytes is shorter than its header", len(b))
	}
	return Frame{
		Kind:     FrameKind(b[0]),
		Delivery: DeliveryClass(b[1]),
		Body:     b[frameHeaderSize:],
	}, nil
}

// writeStreamFrame writes a frame prefixed by its length for stream transports.
func writeStreamFrame(w io.Writer, f Frame) error {
	data := f.marshal()
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	_, err := w.Write(buf)
	return err
}

// readStreamFrame reads one length-prefixed frame.
func readStreamFrame(r io.Reader) (Frame, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return Frame{}, err
	}
	n := binary.LittleEndian.Uint32(size[:])
	if n > MaxFrameSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return Frame{}, err
	}
	return unmarshalFrame(data)
}

// SplitFrames decodes every complete length-prefixed frame at the start of
// buf and returns them along with the bytes of any trailing partial frame.
// It's used to read frames out of captured stream data.
func SplitFrames(buf []byte) ([]Frame, []byte, error) {
	var frames []Frame
	for len(buf) >= 4 {
		n := binary.LittleEndian.Uint32(buf)
		if n > MaxFrameSize {
			return frames, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
		}
		if uint32(len(buf)-4) < n {
			break
		}
		f, err := unmarshalFrame(buf[4 : 4+n])
		if err != nil {
			return frames, nil, err
		}
		frames = append(frames, f)
		buf = buf[4+n:]
	}
	return frames, buf, nil
}
