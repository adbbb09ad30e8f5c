package session

import (
	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/packets"
	"github.com/dcrodman/railyard/internal/world"
)

// The replicate methods push server-side vehicle changes to every active
// peer except the host, whose simulation produced them.

func (s *Server) replicate(m packets.Message) {
	var exclude []client.PeerID
	if id, ok := s.localPeer(); ok {
		exclude = append(exclude, id)
	}
	s.broadcast(packets.Marshal(m), client.ReliableOrdered, exclude...)
}

// SpawnVehicle adds a new vehicle to the world and announces it. Calling it
// for a vehicle that already exists is the same as UpdateVehicle.
func (s *Server) SpawnVehicle(v world.Vehicle) bool {
	if s.Store == nil {
		return false
	}
	if _, exists := s.World.Vehicle(v.ID); exists {
		return s.UpdateVehicle(v)
	}
	if !s.Store.PutVehicle(v) {
		return false
	}
	if v.Visible {
		s.replicate(packets.NewSpawnVehicle(v, false))
	}
	return true
}

// UpdateVehicle replaces the state of an existing vehicle. Its details are
// sent to everyone on the next tick. A vehicle that becomes visible or hidden
// is spawned or destroyed on the clients instead.
func (s *Server) UpdateVehicle(v world.Vehicle) bool {
	if s.Store == nil {
		return false
	}
	prev, exists := s.World.Vehicle(v.ID)
	if !exists {
		return false
	}
	s.Store.PutVehicle(v)
	switch {
	case v.Visible && !prev.Visible:
		s.replicate(packets.NewSpawnVehicle(v, false))
	case !v.Visible && prev.Visible:
		s.replicate(&packets.DestroyVehicle{ID: v.ID})
	default:
		s.World.MarkDirty(v.ID)
	}
	return true
}

// DestroyVehicle removes a vehicle from the world. Players still assigned to
// it are reported as on foot from then on.
func (s *Server) DestroyVehicle(id world.VehicleID) bool {
	if s.Store == nil || !s.Store.RemoveVehicle(id) {
		return false
	}
	s.replicate(&packets.DestroyVehicle{ID: id})
	return true
}

// ChangeWeather replaces the current weather and sends it to every active peer.
func (s *Server) ChangeWeather(w world.Weather) {
	if s.Store == nil {
		return
	}
	s.Store.SetWeather(w)
	s.broadcast(packets.Marshal(&packets.WeatherState{Weather: w}), client.ReliableOrdered)
}

func (s *Server) replicatePhysics(v world.Vehicle) {
	s.replicate(&packets.VehiclePhysics{
		ID:     v.ID,
		Tick:   s.World.Tick(),
		Speed:  v.Speed,
		Bogies: []world.Bogie{v.Front, v.Rear},
	})
}

func (s *Server) replicateCargo(v world.Vehicle) {
	s.replicate(&packets.CargoState{ID: v.ID, Cargo: v.Cargo})
}

func (s *Server) replicateHealth(v world.Vehicle) {
	s.replicate(&packets.VehicleHealth{ID: v.ID, Health: v.Health})
}

// OnTick sends the full detail of every vehicle marked dirty since the last tick.
func (s *Server) OnTick() {
	for _, v := range s.World.TakeDirty() {
		if !v.Visible {
			continue
		}
		s.replicatePhysics(v)
		s.replicateCargo(v)
		s.replicateHealth(v)
	}
}
