package session

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/railyard/internal/core"
	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/packets"
	"github.com/dcrodman/railyard/internal/world"
)

const testBuild = 97

// sentMessage is one message a fakeConn was asked to deliver.
type sentMessage struct {
	class client.DeliveryClass
	msg   packets.Message
	raw   []byte
}

// fakeConn records what the server does with a connection. Sends are also
// appended to a journal shared with the test world so the relative order of
// sends and world calls can be checked.
type fakeConn struct {
	t         *testing.T
	id        client.PeerID
	addr      string
	accepted  bool
	connected bool
	denial    *packets.LoginDeny
	sent      []sentMessage
	journal   *[]string
}

func (c *fakeConn) ID() client.PeerID { return c.id }
func (c *fakeConn) Addr() string      { return c.addr }
func (c *fakeConn) Connected() bool   { return c.connected }

func (c *fakeConn) Accept(id client.PeerID) error {
	c.id = id
	c.accepted = true
	return nil
}

func (c *fakeConn) Reject(body []byte) error {
	m, err := packets.Unmarshal(body)
	if err != nil {
		c.t.Fatalf("server sent an undecodable rejection: %v", err)
	}
	c.denial = m.(*packets.LoginDeny)
	c.connected = false
	return nil
}

func (c *fakeConn) Send(class client.DeliveryClass, data []byte) error {
	if !c.connected {
		return client.ErrClosed
	}
	m, err := packets.Unmarshal(data)
	if err != nil {
		c.t.Fatalf("server sent an undecodable message: %v", err)
	}
	raw := append([]byte(nil), data...)
	c.sent = append(c.sent, sentMessage{class: class, msg: m, raw: raw})
	*c.journal = append(*c.journal, fmt.Sprintf("send %d %v", c.id, m.Type()))
	return nil
}

// types returns the types of everything sent to c, in order.
func (c *fakeConn) types() []packets.Type {
	out := make([]packets.Type, len(c.sent))
	for i, s := range c.sent {
		out[i] = s.msg.Type()
	}
	return out
}

// received returns the messages of type t sent to c.
func (c *fakeConn) received(t packets.Type) []sentMessage {
	var out []sentMessage
	for _, s := range c.sent {
		if s.msg.Type() == t {
			out = append(out, s)
		}
	}
	return out
}

func (c *fakeConn) reset() { c.sent = nil }

// journalWorld records the world calls whose ordering matters.
type journalWorld struct {
	*world.Memory
	journal *[]string
}

func (w *journalWorld) MarkDirty(id world.VehicleID) {
	*w.journal = append(*w.journal, fmt.Sprintf("dirty %d", id))
	w.Memory.MarkDirty(id)
}

func (w *journalWorld) Resume() {
	*w.journal = append(*w.journal, "resume")
	w.Memory.Resume()
}

type harness struct {
	t       *testing.T
	srv     *Server
	world   *world.Memory
	journal *[]string
	addrs   int
}

func testConfig() *core.Config {
	cfg := &core.Config{
		Password:          "hunter2",
		BuildMajorVersion: testBuild,
		MaxPlayers:        8,
		HostUsername:      "Host",
		Mods:              []core.Mod{{Name: "A", Version: "1"}, {Name: "B", Version: "2"}},
	}
	cfg.Transport.TCPPort = 7777
	cfg.World.TickRate = 24
	return cfg
}

func newHarness(t *testing.T, modify func(cfg *core.Config)) *harness {
	t.Helper()
	cfg := testConfig()
	if modify != nil {
		modify(cfg)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mem := world.NewMemory(world.Options{
		Junctions:  3,
		Turntables: 2,
		Weather:    world.Weather{Preset: "clear", Temperature: 20},
		GameParams: world.GameParams{TimeScale: 1, MaxSpeedKmh: 120},
	})
	mem.SetLoaded(true)

	journal := &[]string{}
	srv := &Server{
		Config: cfg,
		Logger: logger,
		World:  &journalWorld{Memory: mem, journal: journal},
		Mirror: mem,
		Store:  mem,
		now:    func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	if err := srv.Init(); err != nil {
		t.Fatalf("Init() returned an unexpected error: %v", err)
	}
	return &harness{t: t, srv: srv, world: mem, journal: journal}
}

func (h *harness) newConn() *fakeConn {
	h.addrs++
	return &fakeConn{
		t:         h.t,
		id:        0xFF,
		addr:      fmt.Sprintf("10.0.0.%d:4000", h.addrs),
		connected: true,
		journal:   h.journal,
	}
}

func (h *harness) loginRequest(username string) *packets.LoginRequest {
	return &packets.LoginRequest{
		Password:          h.srv.Config.Password,
		BuildMajorVersion: int32(h.srv.Config.BuildMajorVersion),
		Username:          username,
		Mods:              []packets.ModInfo{{Name: "B", Version: "2"}, {Name: "A", Version: "1"}},
	}
}

// attempt sends a login request on a fresh connection.
func (h *harness) attempt(req *packets.LoginRequest) *fakeConn {
	c := h.newConn()
	h.srv.OnConnectionRequest(c, packets.Marshal(req))
	return c
}

// connect logs a player in and fails the test if it isn't accepted.
func (h *harness) connect(username string) *fakeConn {
	h.t.Helper()
	c := h.attempt(h.loginRequest(username))
	if !c.accepted {
		h.t.Fatalf("login for %s was rejected: %+v", username, c.denial)
	}
	return c
}

func (h *harness) ready(c *fakeConn) {
	h.srv.OnMessage(c, packets.Marshal(&packets.ClientReady{}))
}

// join logs a player in and activates it.
func (h *harness) join(username string) *fakeConn {
	h.t.Helper()
	c := h.connect(username)
	h.ready(c)
	if !h.srv.IsActive(c.id) {
		h.t.Fatalf("%s was not activated", username)
	}
	return c
}

func (h *harness) resetAll(conns ...*fakeConn) {
	for _, c := range conns {
		c.reset()
	}
	*h.journal = nil
}
