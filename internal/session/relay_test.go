package session

import (
	"bytes"
	"testing"

	"github.com/go-test/deep"
	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/packets"
	"github.com/dcrodman/railyard/internal/world"
)

func TestRelay_Commands(t *testing.T) {
	commands := []packets.Message{
		&packets.JunctionSwitched{Index: 2, Branch: 1, Mode: 3},
		&packets.TurntableRotation{Index: 1, Rotation: 45},
		&packets.TimeAdvance{Seconds: 3600},
		&packets.TrainCoupled{Connection: packets.Connection{CarID: 1, OtherCarID: 2, PlayAudio: true}},
		&packets.TrainUncoupled{Disconnection: packets.Disconnection{CarID: 1}, DueToBrokenCouple: true},
		&packets.HoseConnected{Connection: packets.Connection{CarID: 1, OtherCarID: 2}},
		&packets.HoseDisconnected{Disconnection: packets.Disconnection{CarID: 1, IsFront: true}},
		&packets.MUConnected{Connection: packets.Connection{CarID: 3, OtherCarID: 4}},
		&packets.MUDisconnected{Disconnection: packets.Disconnection{CarID: 3}},
		&packets.CockState{CarID: 1, IsFront: true, IsOpen: true},
		&packets.BrakeCylinderReleased{CarID: 7},
		&packets.HandbrakePosition{CarID: 7, Position: 0.75},
		&packets.SimFlow{CarID: 7, PortID: "fuel", Value: 2},
	}
	for _, cmd := range commands {
		t.Run(cmd.Type().String(), func(t *testing.T) {
			h := newHarness(t, nil)
			a := h.join("alice")
			b := h.join("bob")
			c := h.join("carol")
			h.resetAll(a, b, c)

			raw := packets.Marshal(cmd)
			h.srv.OnMessage(a, raw)

			if len(a.sent) != 0 {
				t.Errorf("command was echoed to its sender: %v", a.types())
			}
			for _, conn := range []*fakeConn{b, c} {
				if len(conn.sent) != 1 {
					t.Fatalf("peer %d received %v, want the relayed command", conn.id, conn.types())
				}
				got := conn.sent[0]
				if !bytes.Equal(got.raw, raw) {
					t.Errorf("peer %d received % x, want % x", conn.id, got.raw, raw)
				}
				if got.class != client.ReliableOrdered {
					t.Errorf("command relayed as %v", got.class)
				}
			}
		})
	}
}

func TestRelay_MirrorsWorld(t *testing.T) {
	h := newHarness(t, nil)
	a := h.join("alice")

	h.srv.OnMessage(a, packets.Marshal(&packets.JunctionSwitched{Index: 2, Branch: 1}))
	h.srv.OnMessage(a, packets.Marshal(&packets.TurntableRotation{Index: 1, Rotation: 270}))
	h.srv.OnMessage(a, packets.Marshal(&packets.TimeAdvance{Seconds: 60}))
	// Out of range indexes are still relayed, just not mirrored.
	h.srv.OnMessage(a, packets.Marshal(&packets.JunctionSwitched{Index: 40, Branch: 1}))

	if diff := cmp.Diff([]uint8{0, 0, 1}, h.world.Junctions()); diff != "" {
		t.Errorf("junctions did not match expected; diff:\n%s", diff)
	}
	if diff := cmp.Diff([]float32{0, 270}, h.world.Turntables()); diff != "" {
		t.Errorf("turntables did not match expected; diff:\n%s", diff)
	}
	if got := h.world.TimeOfDay(); got != 60 {
		t.Errorf("TimeOfDay() want = 60, got = %v", got)
	}

	// A later joiner sees the switched junction.
	b := h.join("bob")
	states := b.received(packets.JunctionsStateType)
	if len(states) != 1 {
		t.Fatalf("expected one JunctionsState, got %d", len(states))
	}
	if diff := deep.Equal(states[0].msg.(*packets.JunctionsState).Selections, []uint8{0, 0, 1}); diff != nil {
		t.Error(diff)
	}
}

func TestRelay_InactivePeers(t *testing.T) {
	h := newHarness(t, nil)
	a := h.join("alice")
	pending := h.connect("pending")
	h.resetAll(a, pending)

	// Commands from a peer that hasn't finished joining are dropped.
	h.srv.OnMessage(pending, packets.Marshal(&packets.JunctionSwitched{Index: 0, Branch: 1}))
	if len(a.sent) != 0 {
		t.Errorf("command from an inactive peer was relayed: %v", a.types())
	}
	if h.world.Junctions()[0] != 0 {
		t.Error("command from an inactive peer changed the world")
	}

	// And an inactive peer never receives relayed traffic.
	h.srv.OnMessage(a, packets.Marshal(&packets.JunctionSwitched{Index: 0, Branch: 1}))
	h.srv.OnMessage(a, packets.Marshal(&packets.PlayerPositionUpdate{}))
	if len(pending.sent) != 0 {
		t.Errorf("inactive peer received %v", pending.types())
	}
}

func TestRelay_PositionUpdate(t *testing.T) {
	h := newHarness(t, nil)
	a := h.join("alice")
	b := h.join("bob")
	h.resetAll(a, b)

	move := packets.Movement{
		Position:  world.Vector3{X: 10, Y: 1, Z: -4},
		MoveDirX:  1,
		RotationY: 180,
		Flags:     packets.FlagOnCar,
	}
	h.srv.OnMessage(a, packets.Marshal(&packets.PlayerPositionUpdate{Movement: move}))

	if p, _ := h.srv.Registry().Lookup(a.id); p.Position != move.Position {
		t.Errorf("registry position want = %v, got = %v", move.Position, p.Position)
	}
	if len(a.sent) != 0 {
		t.Errorf("position was echoed to its sender: %v", a.types())
	}
	if len(b.sent) != 1 {
		t.Fatalf("other player received %v, want one PlayerPosition", b.types())
	}
	if b.sent[0].class != client.Sequenced {
		t.Errorf("position relayed as %v, want sequenced", b.sent[0].class)
	}
	if diff := deep.Equal(b.sent[0].msg, &packets.PlayerPosition{ID: a.id, Movement: move}); diff != nil {
		t.Error(diff)
	}
}

func TestRelay_CarUpdate(t *testing.T) {
	h := newHarness(t, nil)
	h.world.PutVehicle(world.Vehicle{ID: 5, Visible: true})
	a := h.join("alice")
	b := h.join("bob")
	h.resetAll(a, b)

	// Unknown vehicles are ignored entirely.
	h.srv.OnMessage(a, packets.Marshal(&packets.PlayerCarUpdate{CarID: 77}))
	if p, _ := h.srv.Registry().Lookup(a.id); p.Car != world.NoVehicle {
		t.Errorf("unknown vehicle was stored: %d", p.Car)
	}
	if len(b.sent) != 0 {
		t.Errorf("unknown vehicle was relayed: %v", b.types())
	}

	h.srv.OnMessage(a, packets.Marshal(&packets.PlayerCarUpdate{CarID: 5}))
	h.srv.OnMessage(a, packets.Marshal(&packets.PlayerCarUpdate{CarID: world.NoVehicle}))

	var got []packets.Message
	for _, m := range b.sent {
		got = append(got, m.msg)
		if m.class != client.ReliableOrdered {
			t.Errorf("car update relayed as %v", m.class)
		}
	}
	want := []packets.Message{
		&packets.PlayerCar{ID: a.id, CarID: 5},
		&packets.PlayerCar{ID: a.id, CarID: world.NoVehicle},
	}
	if diff := deep.Equal(got, want); diff != nil {
		t.Error(diff)
	}
	if p, _ := h.srv.Registry().Lookup(a.id); p.Car != world.NoVehicle {
		t.Errorf("registry car want = NoVehicle, got = %d", p.Car)
	}
}

func TestRelay_MalformedMessage(t *testing.T) {
	h := newHarness(t, nil)
	a := h.join("alice")
	b := h.join("bob")
	h.resetAll(a, b)

	h.srv.OnMessage(a, []byte{byte(packets.JunctionSwitchedType), 1})
	h.srv.OnMessage(a, []byte{0xEE, 1, 2, 3})
	h.srv.OnMessage(a, packets.Marshal(&packets.SpawnVehicle{ID: 1}))
	h.srv.OnMessage(a, nil)

	if len(b.sent) != 0 || len(a.sent) != 0 {
		t.Errorf("bad messages produced traffic: a=%v b=%v", a.types(), b.types())
	}
	if !h.srv.IsActive(a.id) || !h.srv.IsActive(b.id) {
		t.Error("bad messages removed a player")
	}

	// Normal traffic still flows afterwards.
	h.srv.OnMessage(a, packets.Marshal(&packets.BrakeCylinderReleased{CarID: 1}))
	if len(b.sent) != 1 {
		t.Errorf("relay stopped working after bad messages: %v", b.types())
	}
}

func TestReplication_ExcludesHost(t *testing.T) {
	h := newHarness(t, nil)
	host := h.join("host")
	b := h.join("bob")
	c := h.join("carol")
	h.resetAll(host, b, c)

	v := world.Vehicle{ID: 3, Livery: "Caboose", Visible: true, Speed: 4, Health: 0.9, Cargo: world.Cargo{Type: 1, Amount: 1}}
	if !h.srv.SpawnVehicle(v) {
		t.Fatal("SpawnVehicle() refused a new vehicle")
	}
	if !h.srv.DestroyVehicle(3) {
		t.Fatal("DestroyVehicle() refused an existing vehicle")
	}
	if !h.srv.SpawnVehicle(world.Vehicle{ID: 4, Visible: false}) {
		t.Fatal("SpawnVehicle() refused a hidden vehicle")
	}

	if len(host.sent) != 0 {
		t.Errorf("host received its own replication: %v", host.types())
	}
	for _, conn := range []*fakeConn{b, c} {
		if diff := cmp.Diff([]packets.Type{packets.SpawnVehicleType, packets.DestroyVehicleType}, conn.types()); diff != "" {
			t.Errorf("peer %d messages did not match expected; diff:\n%s", conn.id, diff)
		}
		if spawn := conn.received(packets.SpawnVehicleType); len(spawn) == 1 && spawn[0].msg.(*packets.SpawnVehicle).Existing {
			t.Error("a new vehicle was spawned as existing")
		}
	}

	if _, ok := h.world.Vehicle(3); ok {
		t.Error("destroyed vehicle is still in the world")
	}
	if _, ok := h.world.Vehicle(4); !ok {
		t.Error("hidden vehicle was not added to the world")
	}
	if h.srv.DestroyVehicle(3) {
		t.Error("DestroyVehicle() succeeded twice")
	}
	if h.srv.SpawnVehicle(world.Vehicle{ID: world.NoVehicle, Visible: true}) {
		t.Error("SpawnVehicle() accepted the NoVehicle sentinel")
	}
}

func TestUpdateVehicle(t *testing.T) {
	h := newHarness(t, nil)
	h.world.PutVehicle(world.Vehicle{ID: 5, Visible: true, Speed: 1})
	a := h.join("alice")
	h.resetAll(a)

	if h.srv.UpdateVehicle(world.Vehicle{ID: 6, Visible: true}) {
		t.Error("UpdateVehicle() accepted an unknown vehicle")
	}
	// Spawning an existing vehicle updates it instead of announcing it again.
	if !h.srv.SpawnVehicle(world.Vehicle{ID: 5, Visible: true, Speed: 20}) {
		t.Fatal("SpawnVehicle() of an existing vehicle failed")
	}
	if len(a.sent) != 0 {
		t.Errorf("update was sent before the tick: %v", a.types())
	}
	if v, _ := h.world.Vehicle(5); v.Speed != 20 {
		t.Errorf("vehicle speed want = 20, got = %v", v.Speed)
	}

	h.srv.OnTick()
	want := []packets.Type{packets.VehiclePhysicsType, packets.CargoStateType, packets.VehicleHealthType}
	if diff := cmp.Diff(want, a.types()); diff != "" {
		t.Errorf("tick messages did not match expected; diff:\n%s", diff)
	}

	// Hiding and showing a vehicle removes and recreates it on the clients.
	a.reset()
	h.srv.UpdateVehicle(world.Vehicle{ID: 5, Visible: false})
	h.srv.UpdateVehicle(world.Vehicle{ID: 5, Visible: true})
	h.srv.OnTick()
	want = []packets.Type{packets.DestroyVehicleType, packets.SpawnVehicleType}
	if diff := cmp.Diff(want, a.types()); diff != "" {
		t.Errorf("visibility messages did not match expected; diff:\n%s", diff)
	}
}

func TestChangeWeather(t *testing.T) {
	h := newHarness(t, nil)
	a := h.join("alice")
	pending := h.connect("pending")
	h.resetAll(a, pending)

	storm := world.Weather{Preset: "storm", Rain: 1, Clouds: 1}
	h.srv.ChangeWeather(storm)

	if got := h.world.Weather(); got != storm {
		t.Errorf("world weather want = %+v, got = %+v", storm, got)
	}
	if len(a.sent) != 1 {
		t.Fatalf("active player received %v, want a single WeatherState", a.types())
	}
	if diff := deep.Equal(a.sent[0].msg, &packets.WeatherState{Weather: storm}); diff != nil {
		t.Error(diff)
	}
	if len(pending.sent) != 0 {
		t.Errorf("inactive peer received %v", pending.types())
	}
}

func TestOnTick_FlushesDirtyVehicles(t *testing.T) {
	h := newHarness(t, nil)
	h.world.PutVehicle(world.Vehicle{
		ID:      5,
		Visible: true,
		Speed:   12,
		Health:  0.8,
		Front:   world.Bogie{Track: 1, Position: 10},
		Rear:    world.Bogie{Track: 1, Position: 2},
		Cargo:   world.Cargo{Loading: true, Type: 3, Amount: 0.5, Origin: "SM"},
	})
	a := h.join("alice")
	h.world.AdvanceTick()
	h.world.AdvanceTick()
	b := h.join("bob")
	h.resetAll(a, b)

	h.srv.OnTick()

	want := []packets.Message{
		&packets.VehiclePhysics{ID: 5, Tick: 2, Speed: 12, Bogies: []world.Bogie{{Track: 1, Position: 10}, {Track: 1, Position: 2}}},
		&packets.CargoState{ID: 5, Cargo: world.Cargo{Loading: true, Type: 3, Amount: 0.5, Origin: "SM"}},
		&packets.VehicleHealth{ID: 5, Health: 0.8},
	}
	for _, conn := range []*fakeConn{a, b} {
		var got []packets.Message
		for _, m := range conn.sent {
			got = append(got, m.msg)
		}
		if diff := deep.Equal(got, want); diff != nil {
			t.Errorf("peer %d: %v", conn.id, diff)
		}
	}

	// Nothing is dirty any more.
	h.resetAll(a, b)
	h.srv.OnTick()
	if len(a.sent) != 0 || len(b.sent) != 0 {
		t.Error("second tick resent vehicle details")
	}
}
