package session

import (
	"net"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/railyard/internal/core"
	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/core/data"
	"github.com/dcrodman/railyard/internal/dispatch"
	"github.com/dcrodman/railyard/internal/packets"
)

// OnConnectionRequest handles the login payload of a connection that hasn't
// been accepted yet. The connection is either accepted and registered, or
// rejected with a reason.
func (s *Server) OnConnectionRequest(conn Conn, payload []byte) {
	sessionID := uuid.New()
	log := s.Logger.WithFields(logrus.Fields{"addr": conn.Addr(), "session": sessionID.String()})

	m, err := packets.Unmarshal(payload)
	req, ok := m.(*packets.LoginRequest)
	if err != nil || !ok {
		log.Warnf("rejecting malformed login request: %v", err)
		s.reject(conn, sessionID, "", &packets.LoginDeny{Reason: ReasonBadRequest})
		return
	}
	log = log.WithField("username", req.Username)

	if deny := s.validateLogin(req); deny != nil {
		log.Infof("rejected login: %s", deny.Reason)
		s.reject(conn, sessionID, req.Username, deny)
		return
	}

	id, ok := s.allocatePeerID()
	if !ok {
		log.Warn("rejected login: no free peer ids")
		s.reject(conn, sessionID, req.Username, &packets.LoginDeny{Reason: ReasonServerFull})
		return
	}

	player, err := s.registry.Register(id, req.Username)
	if err != nil {
		// Unreachable as long as sessions and the registry agree.
		log.Errorf("error registering player: %v", err)
		s.reject(conn, sessionID, req.Username, &packets.LoginDeny{Reason: ReasonServerFull})
		return
	}
	if err := conn.Accept(id); err != nil {
		log.Warnf("error accepting connection: %v", err)
		s.registry.Remove(id)
		return
	}

	sess := &session{
		id:          sessionID,
		conn:        conn,
		player:      player,
		state:       StateLoginValidated,
		connectedAt: s.now(),
	}
	s.sessions[id] = sess
	s.metrics.login(data.OutcomeAccepted)
	s.Audit.LoginAccepted(sessionID.String(), req.Username, conn.Addr(), uint8(id), sess.connectedAt)
	log.WithField("peer", id).Info("accepted login")

	s.send(sess, &packets.GameParams{Params: s.World.GameParams(), TimeOfDay: s.World.TimeOfDay()})
}

func (s *Server) reject(conn Conn, sessionID uuid.UUID, username string, deny *packets.LoginDeny) {
	if err := conn.Reject(packets.Marshal(deny)); err != nil {
		s.Logger.Debugf("error sending rejection to %s: %v", conn.Addr(), err)
	}
	s.metrics.login(data.OutcomeRejected)
	s.Audit.LoginRejected(sessionID.String(), username, conn.Addr(), deny.Reason, s.now())

	host := conn.Addr()
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if n := s.attempts.reject(host); n >= rejectionWarnThreshold {
		s.Logger.Warnf("%d rejected logins from %s in the last %v", n, host, rejectionWindow)
	}
}

// allocatePeerID returns the lowest id not held by a connected peer.
func (s *Server) allocatePeerID() (client.PeerID, bool) {
	for i := 0; i < core.MaxPeers; i++ {
		if _, taken := s.sessions[client.PeerID(i)]; !taken {
			return client.PeerID(i), true
		}
	}
	return 0, false
}

func (s *Server) handleClientReady(_ *packets.ClientReady, origin dispatch.Origin) {
	if sess, ok := s.sessions[origin.Peer]; ok {
		s.ready(sess)
	}
}

// ready moves a validated peer towards activation, parking it in the join
// queue while the world is still loading.
func (s *Server) ready(sess *session) {
	log := s.Logger.WithFields(sess.fields())
	if sess.state != StateLoginValidated {
		log.Debugf("ignoring ready signal in state %v", sess.state)
		return
	}
	// Peers still waiting in the queue go first, even if the world finished
	// loading before the queue was drained.
	if !s.World.Loaded() || len(s.joinQueue) > 0 {
		sess.state = StateQueued
		s.joinQueue = append(s.joinQueue, sess)
		log.Info("world still loading, queued join")
		s.send(sess, &packets.ServerLoading{})
		return
	}
	s.activate(sess)
}

// OnWorldLoaded activates every peer that became ready while the world was
// loading, in the order they became ready. Peers that have since left are
// skipped.
func (s *Server) OnWorldLoaded() {
	queue := s.joinQueue
	s.joinQueue = nil
	s.Logger.Infof("world loaded, activating %d queued players", len(queue))

	for _, sess := range queue {
		if s.sessions[sess.player.ID] != sess || !sess.conn.Connected() || sess.state != StateQueued {
			continue
		}
		s.activate(sess)
	}
}

func (s *Server) activate(sess *session) {
	id := sess.player.ID
	log := s.Logger.WithFields(sess.fields())
	sess.state = StateActivating

	if s.World.Paused() {
		log.Info("resuming simulation")
		s.World.Resume()
	}

	s.active[id] = true
	s.metrics.activePlayers(1)
	s.broadcast(packets.Marshal(&packets.PlayerJoined{ID: id, Username: sess.player.Username}), client.ReliableOrdered, id)

	if s.Local.IsLocal(sess.player) {
		log.Info("host joined, skipping world snapshot")
	} else {
		s.sendSnapshot(sess)
	}
	s.send(sess, &packets.RemoveLoadingScreen{})

	sess.state = StateActive
	s.Audit.Activated(sess.id.String(), s.now())
	log.Info("player is active")
}

// OnPeerDisconnected cleans up after a connection. Calling it again for the
// same connection, or for a connection that was never accepted, does nothing.
func (s *Server) OnPeerDisconnected(conn Conn) {
	sess, ok := s.current(conn)
	if !ok {
		return
	}
	id := sess.player.ID

	wasActive := s.active[id]
	delete(s.sessions, id)
	s.registry.Remove(id)
	if wasActive {
		delete(s.active, id)
		s.metrics.activePlayers(-1)
	}
	sess.state = StateDisconnected
	s.Audit.Disconnected(sess.id.String(), s.now())
	log := s.Logger.WithFields(sess.fields())
	log.Info("player disconnected")

	// Nobody else was told about a peer that never activated.
	if !wasActive {
		return
	}
	s.broadcast(packets.Marshal(&packets.PlayerDisconnected{ID: id}), client.ReliableOrdered)

	if len(s.active) == 0 && s.Config.World.PausedUntilPlayers && !s.World.Paused() {
		log.Info("last player left, pausing simulation")
		s.World.Pause()
	}
}

// OnLatency records a new latency measurement for conn and shares it.
func (s *Server) OnLatency(conn Conn, ms int32) {
	sess, ok := s.current(conn)
	if !ok {
		return
	}
	id := sess.player.ID
	s.registry.UpdatePing(id, ms)

	if !s.active[id] {
		return
	}
	s.broadcast(packets.Marshal(&packets.PingUpdate{ID: id, Ping: ms}), client.ReliableOrdered, id)
	s.send(sess, &packets.TickSync{Tick: s.World.Tick(), TimeOfDay: s.World.TimeOfDay()})
}
