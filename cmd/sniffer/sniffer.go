package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/gopacket"

	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/core/debug"
	"github.com/dcrodman/railyard/internal/packets"
)

type sniffer struct {
	Writer io.Writer

	serverPort uint16
	truncate   int
	// Bytes of partially received frames, keyed by the flow they were read from.
	streams map[string][]byte
}

func newSniffer(w io.Writer, serverPort uint16) *sniffer {
	return &sniffer{
		Writer:     w,
		serverPort: serverPort,
		streams:    make(map[string][]byte),
	}
}

func (s *sniffer) startReading(packetChan chan gopacket.Packet) {
	for packet := range packetChan {
		transport, app := packet.TransportLayer(), packet.ApplicationLayer()
		if transport == nil || app == nil {
			continue
		}
		flow := transport.TransportFlow()
		dstPort := binary.BigEndian.Uint16(flow.Dst().Raw())

		key := fmt.Sprintf("%v:%v->%v", packet.NetworkLayer().NetworkFlow().Src(), flow.Src(), flow.Dst())
		s.handlePacket(key, dstPort == s.serverPort, app.Payload())
	}
}

// handlePacket appends data to the stream it was read from and prints every
// frame that is now complete.
func (s *sniffer) handlePacket(stream string, clientPacket bool, data []byte) {
	buf := append(s.streams[stream], data...)

	frames, rest, err := client.SplitFrames(buf)
	for _, f := range frames {
		s.printFrame(stream, clientPacket, f)
	}
	if err != nil {
		// Nothing after a bad length prefix can be trusted, start over with the next segment.
		fmt.Fprintf(s.Writer, "[%s] discarding stream: %v\n", stream, err)
		delete(s.streams, stream)
		return
	}
	if len(rest) == 0 {
		delete(s.streams, stream)
		return
	}
	s.streams[stream] = append([]byte(nil), rest...)
}

func (s *sniffer) printFrame(stream string, clientPacket bool, f client.Frame) {
	sender := "server"
	if clientPacket {
		sender = "client"
	}
	fmt.Fprintf(s.Writer, "[%s] %s %s (%s, %d bytes)\n", stream, sender, frameName(f.Kind), f.Delivery, len(f.Body))

	switch f.Kind {
	case client.FrameRequest, client.FrameReject, client.FrameMessage:
	default:
		return
	}
	m, err := packets.Unmarshal(f.Body)
	if err != nil {
		fmt.Fprintf(s.Writer, "  undecodable: %v\n%s", err, hex.Dump(s.truncated(f.Body)))
		return
	}
	fmt.Fprintf(s.Writer, "  %s %s", m.Type(), debug.DumpMessage(m))
}

func (s *sniffer) truncated(b []byte) []byte {
	if s.truncate > 0 && len(b) > s.truncate {
		return b[:s.truncate]
	}
	return b
}

func frameName(k client.FrameKind) string {
	switch k {
	case client.FrameRequest:
		return "request"
	case client.FrameAccept:
		return "accept"
	case client.FrameReject:
		return "reject"
	case client.FrameMessage:
		return "message"
	case client.FramePing:
		return "ping"
	case client.FramePong:
		return "pong"
	default:
		return fmt.Sprintf("frame(%d)", uint8(k))
	}
}
