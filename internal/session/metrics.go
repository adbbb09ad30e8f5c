package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dcrodman/railyard/internal/packets"
)

const instrumentationName = "github.com/dcrodman/railyard/internal/session"

type serverMetrics struct {
	logins  metric.Int64Counter
	relayed metric.Int64Counter
	active  metric.Int64UpDownCounter
}

func newServerMetrics() (*serverMetrics, error) {
	m := otel.Meter(instrumentationName)
	sm := &serverMetrics{}

	var err error
	sm.logins, err = m.Int64Counter(
		"session.logins",
		metric.WithDescription("Login attempts by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating logins counter: %w", err)
	}
	sm.relayed, err = m.Int64Counter(
		"session.messages.relayed",
		metric.WithDescription("Player commands relayed to other players"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating relayed counter: %w", err)
	}
	sm.active, err = m.Int64UpDownCounter(
		"session.players.active",
		metric.WithDescription("Players that have completed the join handshake"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating active players counter: %w", err)
	}
	return sm, nil
}

func (sm *serverMetrics) login(outcome string) {
	sm.logins.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (sm *serverMetrics) relay(t packets.Type) {
	sm.relayed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", t.String())))
}

func (sm *serverMetrics) activePlayers(delta int64) {
	sm.active.Add(context.Background(), delta)
}
