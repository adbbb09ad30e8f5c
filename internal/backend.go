package internal

import (
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/session"
)

// Backend receives the connection events produced by a frontend. Frontends
// call it from one goroutine per connection.
type Backend interface {
	// Identifier returns a uniquely identifying string.
	Identifier() string

	// ConnectionRequested is called with the login payload of a new connection.
	ConnectionRequested(c *client.Client, payload []byte)

	// Received is called for every message from an accepted connection.
	Received(c *client.Client, data []byte)

	// LatencyUpdated is called whenever a new latency measurement is available.
	LatencyUpdated(c *client.Client, ms int32)

	// Disconnected is called exactly once per connection after it closes.
	Disconnected(c *client.Client)
}

// sessionBackend hands every event to the session server through its event
// loop so that the server only ever runs on the loop's goroutine.
type sessionBackend struct {
	name   string
	loop   *session.Loop
	server *session.Server
	logger *logrus.Logger
}

func (b *sessionBackend) Identifier() string { return b.name }

func (b *sessionBackend) ConnectionRequested(c *client.Client, payload []byte) {
	b.post(c, "connection request", func() { b.server.OnConnectionRequest(c, payload) })
}

func (b *sessionBackend) Received(c *client.Client, data []byte) {
	b.post(c, "message", func() { b.server.OnMessage(c, data) })
}

func (b *sessionBackend) LatencyUpdated(c *client.Client, ms int32) {
	b.post(c, "latency update", func() { b.server.OnLatency(c, ms) })
}

func (b *sessionBackend) Disconnected(c *client.Client) {
	b.post(c, "disconnect", func() { b.server.OnPeerDisconnected(c) })
}

// post queues an event. Events that arrive after the loop has stopped are
// dropped since nothing will run them.
func (b *sessionBackend) post(c *client.Client, event string, fn func()) {
	if err := b.loop.Post(fn); err != nil {
		b.logger.WithFields(logrus.Fields{
			"backend": b.name,
			"address": c.Addr(),
		}).Debugf("dropping %s: %v", event, err)
	}
}
