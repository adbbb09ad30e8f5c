// Package world describes the authoritative simulation state the server
// replicates. The simulation itself lives elsewhere; the server only reads it
// through a Provider.
package world

// Vector3 is a world-space position or direction.
type Vector3 struct {
	X, Y, Z float32
}

type Quaternion struct {
	X, Y, Z, W float32
}

// VehicleID is the network id of a vehicle. Players hold these instead of
// vehicle values since vehicles are created and destroyed by the simulation.
type VehicleID uint16

// NoVehicle is the sentinel for "not in any vehicle".
const NoVehicle VehicleID = 0

// Bogie is the track placement of one axle group.
type Bogie struct {
	Track    uint16
	Position float64
	Derailed bool
}

type Cargo struct {
	Loading bool
	Type    uint16
	Amount  float32
	Origin  string
}

type Vehicle struct {
	ID     VehicleID
	Livery string
	// Hidden vehicles exist in the simulation but aren't streamed to clients.
	Visible   bool
	Position  Vector3
	Rotation  Quaternion
	Front     Bogie
	Rear      Bogie
	Speed     float32
	Health    float32
	Handbrake float32
	Cargo     Cargo
}

type Weather struct {
	Preset      string
	Rain        float32
	Clouds      float32
	Fog         float32
	Wetness     float32
	Temperature float32
}

// GameParams is the subset of simulation settings a client needs before any
// other traffic.
type GameParams struct {
	TimeScale          float32
	DerailmentEnabled  bool
	DerailStress       float32
	MaxSpeedKmh        float32
	ResourcesUnlimited bool
}

// Provider is a read handle on the simulation. Junctions and turntables are
// returned in the simulation's canonical order so indexes can be used as ids.
type Provider interface {
	// Loaded reports whether the world has finished streaming in.
	Loaded() bool
	// Paused reports whether the simulation is waiting for players.
	Paused() bool
	Pause()
	Resume()
	Tick() uint32
	// TimeOfDay is the world clock in seconds since midnight.
	TimeOfDay() float64
	GameParams() GameParams
	Weather() Weather
	Junctions() []uint8
	Turntables() []float32
	Vehicles() []Vehicle
	Vehicle(id VehicleID) (Vehicle, bool)
	// MarkDirty flags a vehicle's detailed state for a forced update on the next tick.
	MarkDirty(id VehicleID)
	// TakeDirty returns and clears the vehicles flagged by MarkDirty.
	TakeDirty() []Vehicle
}

// Mirror applies relayed player commands to a world the server keeps itself.
type Mirror interface {
	SwitchJunction(index int, branch uint8) bool
	RotateTurntable(index int, rotation float32) bool
	AdvanceTime(seconds float32)
}

// Store lets the server add, change and remove the vehicles and weather of a
// world it keeps itself.
type Store interface {
	PutVehicle(v Vehicle) bool
	RemoveVehicle(id VehicleID) bool
	SetWeather(w Weather)
}
