// Package session runs the server side of the replication protocol: login
// validation, the join handshake, world snapshots for new players and the
// relay of everything players send each other.
//
// A Server is not safe for concurrent use. Every method is meant to be called
// from a single goroutine, normally through a Loop.
package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/railyard/internal/core"
	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/dispatch"
	"github.com/dcrodman/railyard/internal/players"
	"github.com/dcrodman/railyard/internal/world"
)

// Conn is the server's handle on one transport connection. *client.Client
// implements it.
type Conn interface {
	ID() client.PeerID
	Addr() string
	Connected() bool
	Accept(id client.PeerID) error
	Reject(body []byte) error
	Send(class client.DeliveryClass, data []byte) error
}

// Auditor receives a record of session events. Implementations must not block.
type Auditor interface {
	LoginAccepted(sessionID, username, addr string, peer uint8, at time.Time)
	LoginRejected(sessionID, username, addr, reason string, at time.Time)
	Activated(sessionID string, at time.Time)
	Disconnected(sessionID string, at time.Time)
}

type nopAuditor struct{}

func (nopAuditor) LoginAccepted(string, string, string, uint8, time.Time)  {}
func (nopAuditor) LoginRejected(string, string, string, string, time.Time) {}
func (nopAuditor) Activated(string, time.Time)                              {}
func (nopAuditor) Disconnected(string, time.Time)                           {}

// State is where a peer is in the join handshake.
type State int

const (
	StateConnecting State = iota
	StateLoginValidated
	StateQueued
	StateActivating
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLoginValidated:
		return "login-validated"
	case StateQueued:
		return "queued"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// session is one accepted connection. Pointers to it are compared to tell a
// peer apart from a later one that was given the same id.
type session struct {
	id          uuid.UUID
	conn        Conn
	player      *players.ServerPlayer
	state       State
	connectedAt time.Time
}

func (s *session) fields() logrus.Fields {
	return logrus.Fields{
		"peer":     s.player.ID,
		"username": s.player.Username,
		"session":  s.id.String(),
	}
}

// Server holds the state of every connected peer.
type Server struct {
	Config *core.Config
	Logger *logrus.Logger
	// World is read for snapshots and game parameters.
	World world.Provider
	// Mirror, if set, has relayed junction, turntable and time commands
	// applied to it so later joiners see their effect.
	Mirror world.Mirror
	// Store, if set, backs SpawnVehicle, UpdateVehicle, DestroyVehicle and
	// ChangeWeather for a world the server keeps itself.
	Store world.Store
	// Local identifies the hosting player, who never gets a snapshot or
	// server-originated vehicle updates.
	Local LocalPeer
	// Audit, if set, is told about every login attempt and session.
	Audit Auditor

	now        func() time.Time
	dispatcher *dispatch.Dispatcher
	registry   *players.Registry
	sessions   map[client.PeerID]*session
	active     map[client.PeerID]bool
	joinQueue  []*session
	mods       ModDescriptor
	attempts   *attemptTracker
	metrics    *serverMetrics
}

// Init prepares the server to accept connections. It must be called once
// before any other method.
func (s *Server) Init() error {
	mods, err := NewModDescriptor(s.Config.Mods)
	if err != nil {
		return err
	}
	s.mods = mods

	if s.dispatcher, err = dispatch.New(); err != nil {
		return fmt.Errorf("error creating dispatcher: %w", err)
	}
	if s.metrics, err = newServerMetrics(); err != nil {
		return fmt.Errorf("error creating metrics: %w", err)
	}
	s.registerHandlers()

	if s.Audit == nil {
		s.Audit = nopAuditor{}
	}
	if s.Local == nil {
		s.Local = HostUsername(s.Config.HostUsername)
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.registry = players.NewRegistry()
	s.sessions = make(map[client.PeerID]*session)
	s.active = make(map[client.PeerID]bool)
	s.attempts = newAttemptTracker(rejectionWindow)
	return nil
}

// Registry exposes the player registry for read-only inspection.
func (s *Server) Registry() *players.Registry { return s.registry }

// State reports the handshake state of id, or StateDisconnected if the id
// isn't in use.
func (s *Server) State(id client.PeerID) State {
	if sess, ok := s.sessions[id]; ok {
		return sess.state
	}
	return StateDisconnected
}

// IsActive reports whether id has completed the join handshake.
func (s *Server) IsActive(id client.PeerID) bool { return s.active[id] }

// ActivePeers returns the active peer ids in ascending order.
func (s *Server) ActivePeers() []client.PeerID {
	ids := make([]client.PeerID, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// current returns the session of conn if conn is still the connection
// registered under its id.
func (s *Server) current(conn Conn) (*session, bool) {
	sess, ok := s.sessions[conn.ID()]
	if !ok || sess.conn != conn {
		return nil, false
	}
	return sess, true
}

// localPeer returns the id of the hosting player if they are active.
func (s *Server) localPeer() (client.PeerID, bool) {
	for _, id := range s.ActivePeers() {
		if s.Local.IsLocal(s.sessions[id].player) {
			return id, true
		}
	}
	return 0, false
}
