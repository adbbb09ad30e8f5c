package internal

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/railyard/internal/core"
	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/packets"
	"github.com/dcrodman/railyard/internal/session"
	"github.com/dcrodman/railyard/internal/world"
)

type testServer struct {
	backend *sessionBackend
	loop    *session.Loop
	server  *session.Server
	cfg     *core.Config
	logger  *logrus.Logger
	ctx     context.Context
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &core.Config{Password: "pw", BuildMajorVersion: 97, MaxPlayers: 4}
	cfg.Transport.SendQueueSize = 64
	cfg.World.TickRate = 24

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mem := world.NewMemory(world.Options{Junctions: 2})
	mem.SetLoaded(true)

	server := &session.Server{Config: cfg, Logger: logger, World: mem, Mirror: mem}
	if err := server.Init(); err != nil {
		t.Fatalf("Init() returned an unexpected error: %v", err)
	}
	loop := session.NewLoop(logger, 64)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	return &testServer{
		backend: &sessionBackend{name: "TEST", loop: loop, server: server, logger: logger},
		loop:    loop,
		server:  server,
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
	}
}

// dial connects a simulated game client through an in-memory pipe.
func (s *testServer) dial(t *testing.T) (client.Transport, <-chan struct{}) {
	t.Helper()
	serverSide, remoteSide := net.Pipe()
	c := client.NewClient(client.NewStreamTransport(serverSide), s.cfg.Transport.SendQueueSize)

	done := make(chan struct{})
	go func() {
		serveClient(s.ctx, c, s.backend, s.cfg, s.logger)
		close(done)
	}()

	remote := client.NewStreamTransport(remoteSide)
	t.Cleanup(func() { _ = remote.Close() })
	return remote, done
}

func readFrame(t *testing.T, tr client.Transport) client.Frame {
	t.Helper()
	type result struct {
		f   client.Frame
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := tr.ReadFrame()
		ch <- result{f, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("error reading frame: %v", r.err)
		}
		return r.f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return client.Frame{}
}

func readMessage(t *testing.T, tr client.Transport) packets.Type {
	t.Helper()
	f := readFrame(t, tr)
	if f.Kind != client.FrameMessage {
		t.Fatalf("expected a message frame, got kind %d", f.Kind)
	}
	m, err := packets.Unmarshal(f.Body)
	if err != nil {
		t.Fatalf("error decoding message: %v", err)
	}
	return m.Type()
}

func login(t *testing.T, remote client.Transport, password string) {
	t.Helper()
	req := &packets.LoginRequest{Password: password, BuildMajorVersion: 97, Username: "alice"}
	if err := remote.WriteFrame(client.Frame{Kind: client.FrameRequest, Body: packets.Marshal(req)}); err != nil {
		t.Fatalf("error sending login request: %v", err)
	}
}

func TestServeClient_JoinAndLeave(t *testing.T) {
	s := newTestServer(t)
	remote, done := s.dial(t)

	login(t, remote, "pw")
	accept := readFrame(t, remote)
	if accept.Kind != client.FrameAccept || len(accept.Body) != 1 {
		t.Fatalf("expected an accept frame, got %+v", accept)
	}
	if got := readMessage(t, remote); got != packets.GameParamsType {
		t.Fatalf("expected GameParams, got %v", got)
	}

	ready := client.Frame{Kind: client.FrameMessage, Delivery: client.ReliableOrdered, Body: packets.Marshal(&packets.ClientReady{})}
	if err := remote.WriteFrame(ready); err != nil {
		t.Fatalf("error sending ready: %v", err)
	}
	var got []packets.Type
	for len(got) == 0 || got[len(got)-1] != packets.RemoveLoadingScreenType {
		got = append(got, readMessage(t, remote))
	}
	want := []packets.Type{
		packets.BeginWorldSyncType,
		packets.WeatherStateType,
		packets.JunctionsStateType,
		packets.TurntablesStateType,
		packets.RemoveLoadingScreenType,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("join sequence did not match expected; diff:\n%s", diff)
	}

	_ = remote.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serveClient did not return after the remote closed")
	}

	var players int
	if err := s.loop.Call(context.Background(), func() { players = s.server.Registry().Len() }); err != nil {
		t.Fatalf("Call() returned an unexpected error: %v", err)
	}
	if players != 0 {
		t.Errorf("player was not removed after disconnecting, %d left", players)
	}
}

func TestServeClient_Rejected(t *testing.T) {
	s := newTestServer(t)
	remote, done := s.dial(t)

	login(t, remote, "wrong")
	f := readFrame(t, remote)
	if f.Kind != client.FrameReject {
		t.Fatalf("expected a reject frame, got %+v", f)
	}
	m, err := packets.Unmarshal(f.Body)
	if err != nil {
		t.Fatalf("error decoding rejection: %v", err)
	}
	if reason := m.(*packets.LoginDeny).Reason; reason != session.ReasonInvalidPassword {
		t.Errorf("rejection reason want = %q, got = %q", session.ReasonInvalidPassword, reason)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not closed after the rejection")
	}
}

func TestServeClient_RequiresRequestFirst(t *testing.T) {
	s := newTestServer(t)
	remote, done := s.dial(t)

	msg := client.Frame{Kind: client.FrameMessage, Body: packets.Marshal(&packets.ClientReady{})}
	if err := remote.WriteFrame(msg); err != nil {
		t.Fatalf("error sending frame: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection without a login request was not closed")
	}
}
