package session

import (
	"fmt"

	"github.com/dcrodman/railyard/internal/packets"
)

// Rejection reasons shown to the player.
const (
	ReasonInvalidPassword = "Invalid password!"
	ReasonServerFull      = "The server is full!"
	ReasonModMismatch     = "Mod mismatch!"
	ReasonBadRequest      = "Malformed login request!"
)

func versionMismatch(server, client int32) string {
	return fmt.Sprintf("Game version mismatch! Server: %d, Client: %d", server, client)
}

// validateLogin runs the login checks in order and returns the denial for
// the first one that fails, or nil if the request is acceptable.
func (s *Server) validateLogin(req *packets.LoginRequest) *packets.LoginDeny {
	if req.Password != s.Config.Password {
		return &packets.LoginDeny{Reason: ReasonInvalidPassword}
	}
	if want := int32(s.Config.BuildMajorVersion); req.BuildMajorVersion != want {
		return &packets.LoginDeny{Reason: versionMismatch(want, req.BuildMajorVersion)}
	}
	if len(s.sessions) >= s.Config.MaxPlayers {
		return &packets.LoginDeny{Reason: ReasonServerFull}
	}
	if missing, extra := s.mods.Diff(req.Mods); len(missing) > 0 || len(extra) > 0 {
		return &packets.LoginDeny{Reason: ReasonModMismatch, Missing: missing, Extra: extra}
	}
	return nil
}
