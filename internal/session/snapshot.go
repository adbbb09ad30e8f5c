package session

import (
	"github.com/dcrodman/railyard/internal/packets"
	"github.com/dcrodman/railyard/internal/world"
)

// sendSnapshot brings a joining peer up to date with the world. Every
// vehicle is spawned before any of them is marked dirty so that the detail
// updates sent on the next tick always refer to vehicles the peer has.
func (s *Server) sendSnapshot(sess *session) {
	self := sess.player.ID
	s.send(sess, &packets.BeginWorldSync{})

	for _, id := range s.ActivePeers() {
		if id == self {
			continue
		}
		other, ok := s.registry.Lookup(id)
		if !ok {
			continue
		}
		s.send(sess, &packets.PlayerJoined{ID: id, Username: other.Username})
		s.send(sess, &packets.PlayerCar{ID: id, CarID: s.resolveVehicle(other.Car)})
	}

	s.send(sess, &packets.WeatherState{Weather: s.World.Weather()})
	s.send(sess, &packets.JunctionsState{Selections: s.World.Junctions()})
	s.send(sess, &packets.TurntablesState{Rotations: s.World.Turntables()})

	var spawned []world.VehicleID
	for _, v := range s.World.Vehicles() {
		if !v.Visible {
			continue
		}
		s.send(sess, packets.NewSpawnVehicle(v, true))
		spawned = append(spawned, v.ID)
	}
	for _, id := range spawned {
		s.World.MarkDirty(id)
	}

	s.Logger.WithFields(sess.fields()).Debugf("sent world snapshot with %d vehicles", len(spawned))
}

// resolveVehicle returns id if the vehicle still exists, otherwise NoVehicle.
func (s *Server) resolveVehicle(id world.VehicleID) world.VehicleID {
	if id == world.NoVehicle {
		return id
	}
	if _, ok := s.World.Vehicle(id); !ok {
		return world.NoVehicle
	}
	return id
}
