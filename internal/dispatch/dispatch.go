// Package dispatch routes decoded messages to the handler registered for
// their type.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/packets"
)

const instrumentationName = "github.com/dcrodman/railyard/internal/dispatch"

// ErrNoHandler is returned for a known message type that the server doesn't
// accept, such as a server-to-client message sent by a client.
var ErrNoHandler = errors.New("no handler registered")

// Origin describes where a message came from.
type Origin struct {
	Peer client.PeerID
	// Raw is the undecoded message, tag included, for handlers that forward
	// it without re-encoding.
	Raw []byte
}

// Handler reacts to one decoded message.
type Handler func(m packets.Message, origin Origin)

// Dispatcher holds a fixed table of handlers. All registration happens
// before the first call to Dispatch.
type Dispatcher struct {
	handlers map[packets.Type]Handler
	sealed   bool

	decoded   metric.Int64Counter
	unknown   metric.Int64Counter
	malformed metric.Int64Counter
}

// New creates an empty Dispatcher. Metrics go to the global OTel meter
// provider, which is a no-op unless one is installed.
func New() (*Dispatcher, error) {
	m := otel.Meter(instrumentationName)
	d := &Dispatcher{handlers: make(map[packets.Type]Handler)}

	var err error
	d.decoded, err = m.Int64Counter(
		"dispatch.messages.decoded",
		metric.WithDescription("Messages decoded and handed to a handler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating decoded counter: %w", err)
	}
	d.unknown, err = m.Int64Counter(
		"dispatch.messages.unknown",
		metric.WithDescription("Messages dropped because of an unknown or unhandled type"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unknown counter: %w", err)
	}
	d.malformed, err = m.Int64Counter(
		"dispatch.messages.malformed",
		metric.WithDescription("Messages dropped because their payload failed to decode"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating malformed counter: %w", err)
	}
	return d, nil
}

// Register binds h to t. It panics if t is not a known type, already has a
// handler, or if Dispatch has already been called.
func (d *Dispatcher) Register(t packets.Type, h Handler) {
	if d.sealed {
		panic(fmt.Sprintf("dispatch: Register(%v) after the first Dispatch", t))
	}
	if !t.Known() {
		panic(fmt.Sprintf("dispatch: Register of unknown type 0x%02x", uint8(t)))
	}
	if _, ok := d.handlers[t]; ok {
		panic(fmt.Sprintf("dispatch: duplicate handler for %v", t))
	}
	d.handlers[t] = h
}

// On registers a handler that receives the concrete message type M.
func On[M packets.Message](d *Dispatcher, fn func(m M, origin Origin)) {
	var zero M
	d.Register(zero.Type(), func(m packets.Message, origin Origin) {
		fn(m.(M), origin)
	})
}

// Handles reports whether a handler is registered for t.
func (d *Dispatcher) Handles(t packets.Type) bool {
	_, ok := d.handlers[t]
	return ok
}

// Dispatch decodes data and calls the matching handler. Errors only ever
// describe this one message; the caller logs them and carries on.
func (d *Dispatcher) Dispatch(data []byte, origin Origin) error {
	d.sealed = true
	ctx := context.Background()

	t, err := packets.PeekType(data)
	if err != nil {
		d.malformed.Add(ctx, 1)
		return err
	}
	typeAttr := metric.WithAttributes(attribute.String("type", t.String()))

	h, ok := d.handlers[t]
	if !ok {
		d.unknown.Add(ctx, 1, typeAttr)
		if !t.Known() {
			return fmt.Errorf("%w: 0x%02x", packets.ErrUnknownType, uint8(t))
		}
		return fmt.Errorf("%w: %v", ErrNoHandler, t)
	}

	m, err := packets.Unmarshal(data)
	if err != nil {
		d.malformed.Add(ctx, 1, typeAttr)
		return err
	}
	d.decoded.Add(ctx, 1, typeAttr)

	origin.Raw = data
	h(m, origin)
	return nil
}
