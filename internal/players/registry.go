// Package players keeps track of everyone connected to the server.
package players

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/world"
)

var ErrPlayerExists = errors.New("peer id already registered")

// ServerPlayer is the server's view of one connected player.
type ServerPlayer struct {
	ID       client.PeerID
	Username string
	Position world.Vector3
	// Car is the vehicle the player is in, or world.NoVehicle. It's only an
	// id; the vehicle itself belongs to the world and may be gone by the
	// time anyone looks it up.
	Car world.VehicleID
	// Ping in milliseconds.
	Ping int32
}

// Registry maps peer ids to players. It is not safe for concurrent use and
// is only ever touched from the session event loop.
type Registry struct {
	players map[client.PeerID]*ServerPlayer
}

func NewRegistry() *Registry {
	return &Registry{players: make(map[client.PeerID]*ServerPlayer)}
}

// Register creates the player for id.
func (r *Registry) Register(id client.PeerID, username string) (*ServerPlayer, error) {
	if _, ok := r.players[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrPlayerExists, id)
	}
	p := &ServerPlayer{ID: id, Username: username, Car: world.NoVehicle}
	r.players[id] = p
	return p, nil
}

func (r *Registry) Lookup(id client.PeerID) (*ServerPlayer, bool) {
	p, ok := r.players[id]
	return p, ok
}

// Remove deletes the player and reports whether it was registered.
func (r *Registry) Remove(id client.PeerID) bool {
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	return true
}

// The Update methods quietly ignore ids that aren't registered, since
// updates can trail a disconnect.

func (r *Registry) UpdatePosition(id client.PeerID, pos world.Vector3) {
	if p, ok := r.players[id]; ok {
		p.Position = pos
	}
}

func (r *Registry) UpdateVehicle(id client.PeerID, car world.VehicleID) {
	if p, ok := r.players[id]; ok {
		p.Car = car
	}
}

func (r *Registry) UpdatePing(id client.PeerID, ms int32) {
	if p, ok := r.players[id]; ok {
		p.Ping = ms
	}
}

func (r *Registry) Len() int { return len(r.players) }

// Players returns every registered player ordered by id.
func (r *Registry) Players() []*ServerPlayer {
	out := make([]*ServerPlayer, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
