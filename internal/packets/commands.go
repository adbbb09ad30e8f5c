package packets

import (
	"github.com/dcrodman/railyard/internal/core/codec"
	"github.com/dcrodman/railyard/internal/world"
)

// Relayed reports whether messages of type t are commands that the server
// forwards unchanged from one client to every other active client.
func (t Type) Relayed() bool {
	return t >= TimeAdvanceType && t <= SimFlowType
}

type JunctionSwitched struct {
	Index  uint16
	Branch uint8
	// Mode records how the junction was switched (lever, remote, etc). The
	// server doesn't interpret it.
	Mode uint8
}

func (*JunctionSwitched) Type() Type { return JunctionSwitchedType }

func (p *JunctionSwitched) encode(w *codec.Writer) {
	w.PutUint16(p.Index)
	w.PutUint8(p.Branch)
	w.PutUint8(p.Mode)
}

func (p *JunctionSwitched) decode(r *codec.Reader) {
	p.Index = r.Uint16()
	p.Branch = r.Uint8()
	p.Mode = r.Uint8()
}

type TurntableRotation struct {
	Index    uint16
	Rotation float32
}

func (*TurntableRotation) Type() Type { return TurntableRotationType }

func (p *TurntableRotation) encode(w *codec.Writer) {
	w.PutUint16(p.Index)
	w.PutFloat32(p.Rotation)
}

func (p *TurntableRotation) decode(r *codec.Reader) {
	p.Index = r.Uint16()
	p.Rotation = r.Float32()
}

// Connection describes two vehicle ends being joined by a coupler, an air
// hose or a multiple-unit cable.
type Connection struct {
	CarID        world.VehicleID
	IsFront      bool
	OtherCarID   world.VehicleID
	OtherIsFront bool
	PlayAudio    bool
}

func (c *Connection) encode(w *codec.Writer) {
	putVehicle(w, c.CarID)
	w.PutBool(c.IsFront)
	putVehicle(w, c.OtherCarID)
	w.PutBool(c.OtherIsFront)
	w.PutBool(c.PlayAudio)
}

func (c *Connection) decode(r *codec.Reader) {
	c.CarID = readVehicle(r)
	c.IsFront = r.Bool()
	c.OtherCarID = readVehicle(r)
	c.OtherIsFront = r.Bool()
	c.PlayAudio = r.Bool()
}

// Disconnection describes one vehicle end being separated.
type Disconnection struct {
	CarID     world.VehicleID
	IsFront   bool
	PlayAudio bool
}

func (d *Disconnection) encode(w *codec.Writer) {
	putVehicle(w, d.CarID)
	w.PutBool(d.IsFront)
	w.PutBool(d.PlayAudio)
}

func (d *Disconnection) decode(r *codec.Reader) {
	d.CarID = readVehicle(r)
	d.IsFront = r.Bool()
	d.PlayAudio = r.Bool()
}

type TrainCoupled struct{ Connection }

func (*TrainCoupled) Type() Type { return TrainCoupledType }

type TrainUncoupled struct {
	Disconnection
	DueToBrokenCouple bool
}

func (*TrainUncoupled) Type() Type { return TrainUncoupledType }

func (p *TrainUncoupled) encode(w *codec.Writer) {
	p.Disconnection.encode(w)
	w.PutBool(p.DueToBrokenCouple)
}

func (p *TrainUncoupled) decode(r *codec.Reader) {
	p.Disconnection.decode(r)
	p.DueToBrokenCouple = r.Bool()
}

type HoseConnected struct{ Connection }

func (*HoseConnected) Type() Type { return HoseConnectedType }

type HoseDisconnected struct{ Disconnection }

func (*HoseDisconnected) Type() Type { return HoseDisconnectedType }

type MUConnected struct{ Connection }

func (*MUConnected) Type() Type { return MUConnectedType }

type MUDisconnected struct{ Disconnection }

func (*MUDisconnected) Type() Type { return MUDisconnectedType }

// CockState opens or closes the angle cock at one end of a vehicle.
type CockState struct {
	CarID   world.VehicleID
	IsFront bool
	IsOpen  bool
}

func (*CockState) Type() Type { return CockStateType }

func (p *CockState) encode(w *codec.Writer) {
	putVehicle(w, p.CarID)
	w.PutBool(p.IsFront)
	w.PutBool(p.IsOpen)
}

func (p *CockState) decode(r *codec.Reader) {
	p.CarID = readVehicle(r)
	p.IsFront = r.Bool()
	p.IsOpen = r.Bool()
}

type BrakeCylinderReleased struct {
	CarID world.VehicleID
}

func (*BrakeCylinderReleased) Type() Type              { return BrakeCylinderReleasedType }
func (p *BrakeCylinderReleased) encode(w *codec.Writer) { putVehicle(w, p.CarID) }
func (p *BrakeCylinderReleased) decode(r *codec.Reader) { p.CarID = readVehicle(r) }

type HandbrakePosition struct {
	CarID    world.VehicleID
	Position float32
}

func (*HandbrakePosition) Type() Type { return HandbrakePositionType }

func (p *HandbrakePosition) encode(w *codec.Writer) {
	putVehicle(w, p.CarID)
	w.PutFloat32(p.Position)
}

func (p *HandbrakePosition) decode(r *codec.Reader) {
	p.CarID = readVehicle(r)
	p.Position = r.Float32()
}

// SimFlow carries a value for one port of a vehicle's simulation graph.
type SimFlow struct {
	CarID  world.VehicleID
	PortID string
	Value  float32
}

func (*SimFlow) Type() Type { return SimFlowType }

func (p *SimFlow) encode(w *codec.Writer) {
	putVehicle(w, p.CarID)
	w.PutString(p.PortID)
	w.PutFloat32(p.Value)
}

func (p *SimFlow) decode(r *codec.Reader) {
	p.CarID = readVehicle(r)
	p.PortID = r.Str()
	p.Value = r.Float32()
}
