package client

import (
	"bufio"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport moves whole frames over an underlying connection.
type Transport interface {
	ReadFrame() (Frame, error)
	WriteFrame(f Frame) error
	RemoteAddr() string
	Close() error
}

type streamTransport struct {
	conn   net.Conn
	reader *bufio.Reader
}

// NewStreamTransport frames messages over a byte stream such as a TCP connection.
func NewStreamTransport(conn net.Conn) Transport {
	return &streamTransport{conn: conn, reader: bufio.NewReader(conn)}
}

func (t *streamTransport) ReadFrame() (Frame, error) { return readStreamFrame(t.reader) }
func (t *streamTransport) WriteFrame(f Frame) error  { return writeStreamFrame(t.conn, f) }
func (t *streamTransport) RemoteAddr() string        { return t.conn.RemoteAddr().String() }
func (t *streamTransport) Close() error              { return t.conn.Close() }

type websocketTransport struct {
	conn *websocket.Conn
	// gorilla connections support one concurrent writer; Close may race the write loop.
	writeMu sync.Mutex
}

// NewWebsocketTransport carries one frame per binary WebSocket message.
func NewWebsocketTransport(conn *websocket.Conn) Transport {
	conn.SetReadLimit(MaxFrameSize)
	return &websocketTransport{conn: conn}
}

func (t *websocketTransport) ReadFrame() (Frame, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return Frame{}, err
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		return unmarshalFrame(data)
	}
}

func (t *websocketTransport) WriteFrame(f Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, f.marshal())
}

func (t *websocketTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

func (t *websocketTransport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	return t.conn.Close()
}
