package session

import (
	"errors"

	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/core/debug"
	"github.com/dcrodman/railyard/internal/dispatch"
	"github.com/dcrodman/railyard/internal/packets"
	"github.com/dcrodman/railyard/internal/world"
)

// relayedCommands are forwarded to every other active peer exactly as they
// were received.
var relayedCommands = []packets.Type{
	packets.TimeAdvanceType,
	packets.JunctionSwitchedType,
	packets.TurntableRotationType,
	packets.TrainCoupledType,
	packets.TrainUncoupledType,
	packets.HoseConnectedType,
	packets.HoseDisconnectedType,
	packets.MUConnectedType,
	packets.MUDisconnectedType,
	packets.CockStateType,
	packets.BrakeCylinderReleasedType,
	packets.HandbrakePositionType,
	packets.SimFlowType,
}

func (s *Server) registerHandlers() {
	dispatch.On(s.dispatcher, s.handleClientReady)
	dispatch.On(s.dispatcher, s.handlePositionUpdate)
	dispatch.On(s.dispatcher, s.handleCarUpdate)
	for _, t := range relayedCommands {
		s.dispatcher.Register(t, s.handleCommand)
	}
}

// OnMessage decodes one message from conn and handles it. Messages from
// connections that are no longer current are dropped.
func (s *Server) OnMessage(conn Conn, data []byte) {
	sess, ok := s.current(conn)
	if !ok {
		return
	}
	if s.Config.Debugging.PacketLoggingEnabled {
		if m, err := packets.Unmarshal(data); err == nil {
			debug.LogMessage(s.Logger, "recv", sess.player.ID, m)
		}
	}
	if err := s.dispatcher.Dispatch(data, dispatch.Origin{Peer: sess.player.ID}); err != nil {
		s.Logger.WithFields(sess.fields()).Debugf("dropping message: %v", err)
	}
}

func (s *Server) handlePositionUpdate(m *packets.PlayerPositionUpdate, origin dispatch.Origin) {
	s.registry.UpdatePosition(origin.Peer, m.Position)
	if !s.active[origin.Peer] {
		return
	}
	out := &packets.PlayerPosition{ID: origin.Peer, Movement: m.Movement}
	s.broadcast(packets.Marshal(out), client.Sequenced, origin.Peer)
}

func (s *Server) handleCarUpdate(m *packets.PlayerCarUpdate, origin dispatch.Origin) {
	if m.CarID != world.NoVehicle {
		if _, ok := s.World.Vehicle(m.CarID); !ok {
			return
		}
	}
	s.registry.UpdateVehicle(origin.Peer, m.CarID)
	if !s.active[origin.Peer] {
		return
	}
	out := &packets.PlayerCar{ID: origin.Peer, CarID: m.CarID}
	s.broadcast(packets.Marshal(out), client.ReliableOrdered, origin.Peer)
}

// handleCommand forwards a player command unchanged. The server trusts the
// sender's simulation and only mirrors the commands that change state it
// hands to later joiners.
func (s *Server) handleCommand(m packets.Message, origin dispatch.Origin) {
	if !s.active[origin.Peer] {
		s.Logger.WithField("peer", origin.Peer).Debugf("dropping %v from inactive peer", m.Type())
		return
	}

	if s.Mirror != nil {
		switch c := m.(type) {
		case *packets.JunctionSwitched:
			if !s.Mirror.SwitchJunction(int(c.Index), c.Branch) {
				s.Logger.Debugf("junction %d switched by peer %d is not in the world", c.Index, origin.Peer)
			}
		case *packets.TurntableRotation:
			if !s.Mirror.RotateTurntable(int(c.Index), c.Rotation) {
				s.Logger.Debugf("turntable %d rotated by peer %d is not in the world", c.Index, origin.Peer)
			}
		case *packets.TimeAdvance:
			s.Mirror.AdvanceTime(c.Seconds)
		}
	}

	s.metrics.relay(m.Type())
	s.broadcast(origin.Raw, client.ReliableOrdered, origin.Peer)
}

// send delivers a message to a single peer, reliable and ordered.
func (s *Server) send(sess *session, m packets.Message) {
	if s.Config.Debugging.PacketLoggingEnabled {
		debug.LogMessage(s.Logger, "send", sess.player.ID, m)
	}
	if err := sess.conn.Send(client.ReliableOrdered, packets.Marshal(m)); err != nil {
		s.Logger.WithFields(sess.fields()).Debugf("error sending %v: %v", m.Type(), err)
	}
}

// broadcast sends an encoded message to every active peer except those in
// exclude. Failures only affect the peer they happen on.
func (s *Server) broadcast(data []byte, class client.DeliveryClass, exclude ...client.PeerID) {
	for _, id := range s.ActivePeers() {
		if excluded(id, exclude) {
			continue
		}
		sess := s.sessions[id]
		if err := sess.conn.Send(class, data); err != nil && !errors.Is(err, client.ErrDropped) {
			s.Logger.WithFields(sess.fields()).Debugf("error broadcasting: %v", err)
		}
	}
}

func excluded(id client.PeerID, exclude []client.PeerID) bool {
	for _, e := range exclude {
		if e == id {
			return true
		}
	}
	return false
}
