package session

import (
	"fmt"

	"github.com/dcrodman/railyard/internal/core"
	"github.com/dcrodman/railyard/internal/packets"
)

// ModDescriptor is the server's list of loaded extensions. Two descriptors
// match when they contain the same (name, version) pairs in any order.
type ModDescriptor []packets.ModInfo

// NewModDescriptor builds a descriptor from config, rejecting duplicates.
func NewModDescriptor(mods []core.Mod) (ModDescriptor, error) {
	seen := make(map[packets.ModInfo]bool, len(mods))
	d := make(ModDescriptor, 0, len(mods))
	for _, m := range mods {
		info := packets.ModInfo{Name: m.Name, Version: m.Version}
		if seen[info] {
			return nil, fmt.Errorf("%w: mod %s listed twice", core.ErrInvalidConfig, info)
		}
		seen[info] = true
		d = append(d, info)
	}
	return d, nil
}

// Diff compares a client's mods against the descriptor. Missing holds mods
// the server has and the client lacks, in server order. Extra holds mods
// the client has that the server doesn't, in client order; a mod the client
// lists twice counts as extra the second time.
func (d ModDescriptor) Diff(clientMods []packets.ModInfo) (missing, extra []packets.ModInfo) {
	server := make(map[packets.ModInfo]bool, len(d))
	for _, m := range d {
		server[m] = true
	}

	seen := make(map[packets.ModInfo]bool, len(clientMods))
	for _, m := range clientMods {
		if !server[m] || seen[m] {
			extra = append(extra, m)
		}
		seen[m] = true
	}
	for _, m := range d {
		if !seen[m] {
			missing = append(missing, m)
		}
	}
	return missing, extra
}
