package world

import (
	"sort"
	"sync"
)

// Options seeds a Memory world.
type Options struct {
	Junctions  int
	Turntables int
	Weather    Weather
	GameParams GameParams
	// Paused starts the simulation paused until the first player joins.
	Paused bool
}

// Memory is a Provider backed by plain in-process state. It stands in for the
// simulation when the server runs on its own and mirrors the commands players
// relay so that late joiners see current junction and turntable positions.
type Memory struct {
	mu sync.RWMutex

	loaded     bool
	paused     bool
	tick       uint32
	timeOfDay  float64
	params     GameParams
	weather    Weather
	junctions  []uint8
	turntables []float32
	vehicles   map[VehicleID]Vehicle
	dirty      map[VehicleID]bool
}

func NewMemory(opts Options) *Memory {
	return &Memory{
		paused:     opts.Paused,
		params:     opts.GameParams,
		weather:    opts.Weather,
		junctions:  make([]uint8, opts.Junctions),
		turntables: make([]float32, opts.Turntables),
		vehicles:   make(map[VehicleID]Vehicle),
		dirty:      make(map[VehicleID]bool),
	}
}

func (m *Memory) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

func (m *Memory) SetLoaded(loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = loaded
}

func (m *Memory) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

func (m *Memory) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

func (m *Memory) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

func (m *Memory) Tick() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tick
}

// AdvanceTick moves the simulation forward one tick unless it is paused and
// returns the current tick.
func (m *Memory) AdvanceTick() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.paused {
		m.tick++
	}
	return m.tick
}

func (m *Memory) GameParams() GameParams {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params
}

func (m *Memory) Weather() Weather {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.weather
}

func (m *Memory) SetWeather(w Weather) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weather = w
}

func (m *Memory) Junctions() []uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uint8, len(m.junctions))
	copy(out, m.junctions)
	return out
}

func (m *Memory) Turntables() []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]float32, len(m.turntables))
	copy(out, m.turntables)
	return out
}

// Vehicles returns every vehicle ordered by id.
func (m *Memory) Vehicles() []Vehicle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Vehicle(id VehicleID) (Vehicle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	return v, ok
}

// PutVehicle adds or replaces a vehicle. NoVehicle is reserved and ignored.
func (m *Memory) PutVehicle(v Vehicle) bool {
	if v.ID == NoVehicle {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v
	return true
}

func (m *Memory) RemoveVehicle(id VehicleID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[id]; !ok {
		return false
	}
	delete(m.vehicles, id)
	delete(m.dirty, id)
	return true
}

func (m *Memory) MarkDirty(id VehicleID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[id]; ok {
		m.dirty[id] = true
	}
}

func (m *Memory) TakeDirty() []Vehicle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Vehicle, 0, len(m.dirty))
	for id := range m.dirty {
		if v, ok := m.vehicles[id]; ok {
			out = append(out, v)
		}
	}
	m.dirty = make(map[VehicleID]bool)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) SwitchJunction(index int, branch uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.junctions) {
		return false
	}
	m.junctions[index] = branch
	return true
}

func (m *Memory) RotateTurntable(index int, rotation float32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.turntables) {
		return false
	}
	m.turntables[index] = rotation
	return true
}

const secondsPerDay = 24 * 60 * 60

func (m *Memory) AdvanceTime(seconds float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeOfDay += float64(seconds)
	for m.timeOfDay >= secondsPerDay {
		m.timeOfDay -= secondsPerDay
	}
}

// TimeOfDay returns the world clock in seconds since midnight.
func (m *Memory) TimeOfDay() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeOfDay
}
