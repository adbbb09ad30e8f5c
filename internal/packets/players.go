package packets

import (
	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/core/codec"
	"github.com/dcrodman/railyard/internal/world"
)

// Bits of PlayerPosition.Flags.
const (
	FlagJumping uint8 = 1 << iota
	FlagOnCar
)

type PlayerJoined struct {
	ID       client.PeerID
	Username string
}

func (*PlayerJoined) Type() Type { return PlayerJoinedType }

func (p *PlayerJoined) encode(w *codec.Writer) {
	putPeer(w, p.ID)
	w.PutString(p.Username)
}

func (p *PlayerJoined) decode(r *codec.Reader) {
	p.ID = readPeer(r)
	p.Username = r.Str()
}

type PlayerDisconnected struct {
	ID client.PeerID
}

func (*PlayerDisconnected) Type() Type              { return PlayerDisconnectedType }
func (p *PlayerDisconnected) encode(w *codec.Writer) { putPeer(w, p.ID) }
func (p *PlayerDisconnected) decode(r *codec.Reader) { p.ID = readPeer(r) }

// Movement is the part of a position report shared by both directions.
type Movement struct {
	Position  world.Vector3
	MoveDirX  float32
	MoveDirZ  float32
	RotationY float32
	Flags     uint8
}

func (m *Movement) encode(w *codec.Writer) {
	putVector3(w, m.Position)
	w.PutFloat32(m.MoveDirX)
	w.PutFloat32(m.MoveDirZ)
	w.PutFloat32(m.RotationY)
	w.PutUint8(m.Flags)
}

func (m *Movement) decode(r *codec.Reader) {
	m.Position = readVector3(r)
	m.MoveDirX = r.Float32()
	m.MoveDirZ = r.Float32()
	m.RotationY = r.Float32()
	m.Flags = r.Uint8()
}

// PlayerPositionUpdate is a client reporting its own position.
type PlayerPositionUpdate struct {
	Movement
}

func (*PlayerPositionUpdate) Type() Type { return PlayerPositionUpdateType }

// PlayerPosition forwards one player's position to the others.
type PlayerPosition struct {
	ID client.PeerID
	Movement
}

func (*PlayerPosition) Type() Type { return PlayerPositionType }

func (p *PlayerPosition) encode(w *codec.Writer) {
	putPeer(w, p.ID)
	p.Movement.encode(w)
}

func (p *PlayerPosition) decode(r *codec.Reader) {
	p.ID = readPeer(r)
	p.Movement.decode(r)
}

// PlayerCarUpdate is a client reporting the vehicle it is in, or world.NoVehicle.
type PlayerCarUpdate struct {
	CarID world.VehicleID
}

func (*PlayerCarUpdate) Type() Type              { return PlayerCarUpdateType }
func (p *PlayerCarUpdate) encode(w *codec.Writer) { putVehicle(w, p.CarID) }
func (p *PlayerCarUpdate) decode(r *codec.Reader) { p.CarID = readVehicle(r) }

type PlayerCar struct {
	ID    client.PeerID
	CarID world.VehicleID
}

func (*PlayerCar) Type() Type { return PlayerCarType }

func (p *PlayerCar) encode(w *codec.Writer) {
	putPeer(w, p.ID)
	putVehicle(w, p.CarID)
}

func (p *PlayerCar) decode(r *codec.Reader) {
	p.ID = readPeer(r)
	p.CarID = readVehicle(r)
}

type PingUpdate struct {
	ID client.PeerID
	// Ping in milliseconds.
	Ping int32
}

func (*PingUpdate) Type() Type { return PingUpdateType }

func (p *PingUpdate) encode(w *codec.Writer) {
	putPeer(w, p.ID)
	w.PutInt32(p.Ping)
}

func (p *PingUpdate) decode(r *codec.Reader) {
	p.ID = readPeer(r)
	p.Ping = r.Int32()
}

type TickSync struct {
	Tick      uint32
	TimeOfDay float64
}

func (*TickSync) Type() Type { return TickSyncType }

func (p *TickSync) encode(w *codec.Writer) {
	w.PutUint32(p.Tick)
	w.PutFloat64(p.TimeOfDay)
}

func (p *TickSync) decode(r *codec.Reader) {
	p.Tick = r.Uint32()
	p.TimeOfDay = r.Float64()
}
