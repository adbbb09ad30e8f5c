package session

import (
	"golang.org/x/text/cases"

	"github.com/dcrodman/railyard/internal/players"
)

// LocalPeer identifies the player hosting the world, if any.
type LocalPeer interface {
	IsLocal(p *players.ServerPlayer) bool
}

type hostUsername struct {
	folded string
	caser  cases.Caser
}

// HostUsername treats the player with this username as the host. Usernames
// are compared case-insensitively. A blank username means nobody is the host.
func HostUsername(username string) LocalPeer {
	c := cases.Fold()
	return &hostUsername{folded: c.String(username), caser: c}
}

func (h *hostUsername) IsLocal(p *players.ServerPlayer) bool {
	if h.folded == "" || p == nil {
		return false
	}
	return h.caser.String(p.Username) == h.folded
}
