package client

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

// maxReliableBacklog is the number of queued frames after which a peer that
// isn't reading is considered dead and disconnected.
const maxReliableBacklog = 1 << 14

var (
	ErrClosed  = errors.New("client closed")
	ErrDropped = errors.New("send queue full, message dropped")
	ErrBacklog = errors.New("send backlog exceeded, client disconnected")
)

// Client represents one remote connection through any Transport. Writes are
// handed to a queue drained by Run so that senders never block on the network.
type Client struct {
	transport Transport
	addr      string
	queueSize int

	mu              sync.Mutex
	pending         []Frame
	closed          bool
	closeAfterFlush bool
	accepted        bool
	id              PeerID
	pingSent        time.Time

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps a transport. Unreliable and sequenced messages are dropped
// once queueSize frames are waiting to be written.
func NewClient(t Transport, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Client{
		transport: t,
		addr:      t.RemoteAddr(),
		queueSize: queueSize,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (c *Client) Addr() string { return c.addr }

// ID returns the peer id assigned by Accept.
func (c *Client) ID() PeerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Accepted reports whether the connection made it past the login request.
func (c *Client) Accepted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepted
}

// Connected reports whether the connection is still open.
func (c *Client) Connected() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Done is closed once the connection is closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// ReadFrame blocks until the next frame arrives from the remote end.
func (c *Client) ReadFrame() (Frame, error) {
	return c.transport.ReadFrame()
}

// Accept assigns the peer id and notifies the client that its login succeeded.
func (c *Client) Accept(id PeerID) error {
	c.mu.Lock()
	c.id = id
	c.accepted = true
	c.mu.Unlock()
	return c.enqueue(Frame{Kind: FrameAccept, Delivery: ReliableOrdered, Body: []byte{byte(id)}}, false)
}

// Reject sends the denial payload and closes the connection once it's written.
func (c *Client) Reject(body []byte) error {
	return c.enqueue(Frame{Kind: FrameReject, Delivery: ReliableOrdered, Body: body}, true)
}

// Send queues an encoded message with the given delivery guarantee.
func (c *Client) Send(class DeliveryClass, data []byte) error {
	return c.enqueue(Frame{Kind: FrameMessage, Delivery: class, Body: data}, false)
}

// Ping queues a latency ping stamped with now.
func (c *Client) Ping(now time.Time) error {
	body := make([]byte, 8)
	binary.LittleEndian.PutUint64(body, uint64(now.UnixNano()))

	c.mu.Lock()
	c.pingSent = now
	c.mu.Unlock()
	return c.enqueue(Frame{Kind: FramePing, Delivery: Unreliable, Body: body}, false)
}

// Latency turns a pong body into a one-way latency estimate. Pongs that don't
// answer the most recent ping are ignored.
func (c *Client) Latency(pong []byte, now time.Time) (time.Duration, bool) {
	if len(pong) != 8 {
		return 0, false
	}
	sent := time.Unix(0, int64(binary.LittleEndian.Uint64(pong)))

	c.mu.Lock()
	defer c.mu.Unlock()
	if !sent.Equal(c.pingSent) {
		return 0, false
	}
	return now.Sub(sent) / 2, true
}

func (c *Client) enqueue(f Frame, closeAfter bool) error {
	c.mu.Lock()
	if c.closed || c.closeAfterFlush {
		c.mu.Unlock()
		return ErrClosed
	}
	if f.Kind == FrameMessage && !f.Delivery.Reliable() && len(c.pending) >= c.queueSize {
		c.mu.Unlock()
		return ErrDropped
	}
	if len(c.pending) >= maxReliableBacklog {
		c.mu.Unlock()
		_ = c.Close()
		return ErrBacklog
	}
	c.pending = append(c.pending, f)
	if closeAfter {
		c.closeAfterFlush = true
	}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run drains the send queue until the client is closed.
func (c *Client) Run() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}

		for {
			c.mu.Lock()
			batch := c.pending
			c.pending = nil
			closeAfter := c.closeAfterFlush
			c.mu.Unlock()

			if len(batch) == 0 {
				if closeAfter {
					_ = c.Close()
					return
				}
				break
			}
			for _, f := range batch {
				if err := c.transport.WriteFrame(f); err != nil {
					_ = c.Close()
					return
				}
			}
		}
	}
}

// Close the underlying connection. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.pending = nil
		c.mu.Unlock()

		close(c.done)
		err = c.transport.Close()
	})
	return err
}
