package packets

import (
	"github.com/dcrodman/railyard/internal/core/codec"
	"github.com/dcrodman/railyard/internal/world"
)

// BeginWorldSync marks the start of the world snapshot sent to a joining client.
type BeginWorldSync struct{}

func (*BeginWorldSync) Type() Type            { return BeginWorldSyncType }
func (*BeginWorldSync) encode(*codec.Writer) {}
func (*BeginWorldSync) decode(*codec.Reader) {}

// RemoveLoadingScreen is the last message of the join sequence. Once it
// arrives the client may fully participate.
type RemoveLoadingScreen struct{}

func (*RemoveLoadingScreen) Type() Type            { return RemoveLoadingScreenType }
func (*RemoveLoadingScreen) encode(*codec.Writer) {}
func (*RemoveLoadingScreen) decode(*codec.Reader) {}

type WeatherState struct {
	Weather world.Weather
}

func (*WeatherState) Type() Type { return WeatherStateType }

func (p *WeatherState) encode(w *codec.Writer) {
	w.PutString(p.Weather.Preset)
	w.PutFloat32(p.Weather.Rain)
	w.PutFloat32(p.Weather.Clouds)
	w.PutFloat32(p.Weather.Fog)
	w.PutFloat32(p.Weather.Wetness)
	w.PutFloat32(p.Weather.Temperature)
}

func (p *WeatherState) decode(r *codec.Reader) {
	p.Weather = world.Weather{
		Preset:      r.Str(),
		Rain:        r.Float32(),
		Clouds:      r.Float32(),
		Fog:         r.Float32(),
		Wetness:     r.Float32(),
		Temperature: r.Float32(),
	}
}

// JunctionsState holds the selected branch of every junction, indexed the
// same way as the world's junction list.
type JunctionsState struct {
	Selections []uint8
}

func (*JunctionsState) Type() Type              { return JunctionsStateType }
func (p *JunctionsState) encode(w *codec.Writer) { w.PutBytes(p.Selections) }
func (p *JunctionsState) decode(r *codec.Reader) { p.Selections = r.Bytes() }

// TurntablesState holds every turntable's rotation in degrees, indexed the
// same way as the world's turntable list.
type TurntablesState struct {
	Rotations []float32
}

func (*TurntablesState) Type() Type { return TurntablesStateType }

func (p *TurntablesState) encode(w *codec.Writer) {
	w.PutLength(len(p.Rotations))
	for _, rot := range p.Rotations {
		w.PutFloat32(rot)
	}
}

func (p *TurntablesState) decode(r *codec.Reader) {
	n := readCount(r, 4)
	if n == 0 {
		return
	}
	p.Rotations = make([]float32, n)
	for i := range p.Rotations {
		p.Rotations[i] = r.Float32()
	}
}

// TimeAdvance skips the world clock forward.
type TimeAdvance struct {
	Seconds float32
}

func (*TimeAdvance) Type() Type              { return TimeAdvanceType }
func (p *TimeAdvance) encode(w *codec.Writer) { w.PutFloat32(p.Seconds) }
func (p *TimeAdvance) decode(r *codec.Reader) { p.Seconds = r.Float32() }
