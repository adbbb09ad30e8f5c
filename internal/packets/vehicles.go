package packets

import (
	"github.com/dcrodman/railyard/internal/core/codec"
	"github.com/dcrodman/railyard/internal/world"
)

// SpawnVehicle creates a vehicle on the client. Existing is set when the
// vehicle was already in the world and is being sent as part of a snapshot
// rather than having just been created.
type SpawnVehicle struct {
	ID        world.VehicleID
	Livery    string
	Position  world.Vector3
	Rotation  world.Quaternion
	Front     world.Bogie
	Rear      world.Bogie
	Handbrake float32
	Existing  bool
}

// NewSpawnVehicle builds a spawn message from the vehicle's current state.
func NewSpawnVehicle(v world.Vehicle, existing bool) *SpawnVehicle {
	return &SpawnVehicle{
		ID:        v.ID,
		Livery:    v.Livery,
		Position:  v.Position,
		Rotation:  v.Rotation,
		Front:     v.Front,
		Rear:      v.Rear,
		Handbrake: v.Handbrake,
		Existing:  existing,
	}
}

func (*SpawnVehicle) Type() Type { return SpawnVehicleType }

func (p *SpawnVehicle) encode(w *codec.Writer) {
	putVehicle(w, p.ID)
	w.PutString(p.Livery)
	putVector3(w, p.Position)
	putQuaternion(w, p.Rotation)
	putBogie(w, p.Front)
	putBogie(w, p.Rear)
	w.PutFloat32(p.Handbrake)
	w.PutBool(p.Existing)
}

func (p *SpawnVehicle) decode(r *codec.Reader) {
	p.ID = readVehicle(r)
	p.Livery = r.Str()
	p.Position = readVector3(r)
	p.Rotation = readQuaternion(r)
	p.Front = readBogie(r)
	p.Rear = readBogie(r)
	p.Handbrake = r.Float32()
	p.Existing = r.Bool()
}

type DestroyVehicle struct {
	ID world.VehicleID
}

func (*DestroyVehicle) Type() Type              { return DestroyVehicleType }
func (p *DestroyVehicle) encode(w *codec.Writer) { putVehicle(w, p.ID) }
func (p *DestroyVehicle) decode(r *codec.Reader) { p.ID = readVehicle(r) }

// VehiclePhysics is one tick of movement for a vehicle.
type VehiclePhysics struct {
	ID     world.VehicleID
	Tick   uint32
	Speed  float32
	Bogies []world.Bogie
}

func (*VehiclePhysics) Type() Type { return VehiclePhysicsType }

func (p *VehiclePhysics) encode(w *codec.Writer) {
	putVehicle(w, p.ID)
	w.PutUint32(p.Tick)
	w.PutFloat32(p.Speed)
	w.PutLength(len(p.Bogies))
	for _, b := range p.Bogies {
		putBogie(w, b)
	}
}

func (p *VehiclePhysics) decode(r *codec.Reader) {
	p.ID = readVehicle(r)
	p.Tick = r.Uint32()
	p.Speed = r.Float32()
	n := readCount(r, 11)
	if n == 0 {
		return
	}
	p.Bogies = make([]world.Bogie, n)
	for i := range p.Bogies {
		p.Bogies[i] = readBogie(r)
	}
}

type CargoState struct {
	ID    world.VehicleID
	Cargo world.Cargo
}

func (*CargoState) Type() Type { return CargoStateType }

func (p *CargoState) encode(w *codec.Writer) {
	putVehicle(w, p.ID)
	w.PutBool(p.Cargo.Loading)
	w.PutUint16(p.Cargo.Type)
	w.PutFloat32(p.Cargo.Amount)
	w.PutString(p.Cargo.Origin)
}

func (p *CargoState) decode(r *codec.Reader) {
	p.ID = readVehicle(r)
	p.Cargo = world.Cargo{
		Loading: r.Bool(),
		Type:    r.Uint16(),
		Amount:  r.Float32(),
		Origin:  r.Str(),
	}
}

type VehicleHealth struct {
	ID     world.VehicleID
	Health float32
}

func (*VehicleHealth) Type() Type { return VehicleHealthType }

func (p *VehicleHealth) encode(w *codec.Writer) {
	putVehicle(w, p.ID)
	w.PutFloat32(p.Health)
}

func (p *VehicleHealth) decode(r *codec.Reader) {
	p.ID = readVehicle(r)
	p.Health = r.Float32()
}
