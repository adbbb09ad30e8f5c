package packets

import (
	"github.com/dcrodman/railyard/internal/core/codec"
	"github.com/dcrodman/railyard/internal/world"
)

// ModInfo identifies one loaded extension.
type ModInfo struct {
	Name    string
	Version string
}

func (m ModInfo) String() string { return m.Name + " " + m.Version }

func putMods(w *codec.Writer, mods []ModInfo) {
	w.PutLength(len(mods))
	for _, m := range mods {
		w.PutString(m.Name)
		w.PutString(m.Version)
	}
}

func readMods(r *codec.Reader) []ModInfo {
	n := readCount(r, 2)
	if n == 0 {
		return nil
	}
	mods := make([]ModInfo, n)
	for i := range mods {
		mods[i] = ModInfo{Name: r.Str(), Version: r.Str()}
	}
	return mods
}

// LoginRequest is the payload of a connection request, sent before the
// connection is accepted.
type LoginRequest struct {
	Password          string
	BuildMajorVersion int32
	Username          string
	Mods              []ModInfo
}

func (*LoginRequest) Type() Type { return LoginRequestType }

func (p *LoginRequest) encode(w *codec.Writer) {
	w.PutString(p.Password)
	w.PutInt32(p.BuildMajorVersion)
	w.PutString(p.Username)
	putMods(w, p.Mods)
}

func (p *LoginRequest) decode(r *codec.Reader) {
	p.Password = r.Str()
	p.BuildMajorVersion = r.Int32()
	p.Username = r.Str()
	p.Mods = readMods(r)
}

// LoginDeny is the rejection payload. Missing and Extra are only set when
// the mod lists didn't match.
type LoginDeny struct {
	Reason  string
	Missing []ModInfo
	Extra   []ModInfo
}

func (*LoginDeny) Type() Type { return LoginDenyType }

func (p *LoginDeny) encode(w *codec.Writer) {
	w.PutString(p.Reason)
	putMods(w, p.Missing)
	putMods(w, p.Extra)
}

func (p *LoginDeny) decode(r *codec.Reader) {
	p.Reason = r.Str()
	p.Missing = readMods(r)
	p.Extra = readMods(r)
}

// ClientReady signals the client finished loading and wants to join the world.
type ClientReady struct{}

func (*ClientReady) Type() Type            { return ClientReadyType }
func (*ClientReady) encode(*codec.Writer) {}
func (*ClientReady) decode(*codec.Reader) {}

// ServerLoading tells a ready client that it has to wait for the world to load.
type ServerLoading struct{}

func (*ServerLoading) Type() Type            { return ServerLoadingType }
func (*ServerLoading) encode(*codec.Writer) {}
func (*ServerLoading) decode(*codec.Reader) {}

// GameParams carries the simulation settings a client needs before anything else.
type GameParams struct {
	Params world.GameParams
	// TimeOfDay is the world clock in seconds since midnight.
	TimeOfDay float64
}

func (*GameParams) Type() Type { return GameParamsType }

func (p *GameParams) encode(w *codec.Writer) {
	w.PutFloat32(p.Params.TimeScale)
	w.PutBool(p.Params.DerailmentEnabled)
	w.PutFloat32(p.Params.DerailStress)
	w.PutFloat32(p.Params.MaxSpeedKmh)
	w.PutBool(p.Params.ResourcesUnlimited)
	w.PutFloat64(p.TimeOfDay)
}

func (p *GameParams) decode(r *codec.Reader) {
	p.Params = world.GameParams{
		TimeScale:          r.Float32(),
		DerailmentEnabled:  r.Bool(),
		DerailStress:       r.Float32(),
		MaxSpeedKmh:        r.Float32(),
		ResourcesUnlimited: r.Bool(),
	}
	p.TimeOfDay = r.Float64()
}
