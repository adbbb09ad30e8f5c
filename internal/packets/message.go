// Package packets defines every message exchanged between the server and
// game clients. The set of messages is closed: each Type maps to exactly one
// payload struct, encoded as a one byte tag followed by the payload.
package packets

import (
	"errors"
	"fmt"

	"github.com/dcrodman/railyard/internal/core/codec"
)

// Type is the tag at the start of every encoded message.
type Type uint8

// Messages sent by the client.
const (
	LoginRequestType Type = iota + 0x01
	ClientReadyType
	PlayerPositionUpdateType
	PlayerCarUpdateType
)

// Messages sent by the server.
const (
	LoginDenyType Type = iota + 0x10
	ServerLoadingType
	GameParamsType
	PlayerJoinedType
	PlayerDisconnectedType
	PlayerPositionType
	PlayerCarType
	PingUpdateType
	TickSyncType
	BeginWorldSyncType
	RemoveLoadingScreenType
	WeatherStateType
	JunctionsStateType
	TurntablesStateType
	SpawnVehicleType
	DestroyVehicleType
	VehiclePhysicsType
	CargoStateType
	VehicleHealthType
)

// Commands sent by one client and relayed unchanged to every other client.
const (
	TimeAdvanceType Type = iota + 0x40
	JunctionSwitchedType
	TurntableRotationType
	TrainCoupledType
	TrainUncoupledType
	HoseConnectedType
	HoseDisconnectedType
	MUConnectedType
	MUDisconnectedType
	CockStateType
	BrakeCylinderReleasedType
	HandbrakePositionType
	SimFlowType
)

var (
	ErrEmpty          = errors.New("empty message")
	ErrUnknownType    = errors.New("unknown message type")
	ErrTrailingBytes  = errors.New("trailing bytes after payload")
	ErrMalformedInput = errors.New("malformed payload")
)

// Message is implemented by every payload in this package.
type Message interface {
	Type() Type
	encode(w *codec.Writer)
	decode(r *codec.Reader)
}

var catalog = map[Type]struct {
	name string
	new  func() Message
}{
	LoginRequestType:         {"LoginRequest", func() Message { return &LoginRequest{} }},
	ClientReadyType:          {"ClientReady", func() Message { return &ClientReady{} }},
	PlayerPositionUpdateType: {"PlayerPositionUpdate", func() Message { return &PlayerPositionUpdate{} }},
	PlayerCarUpdateType:      {"PlayerCarUpdate", func() Message { return &PlayerCarUpdate{} }},

	LoginDenyType:           {"LoginDeny", func() Message { return &LoginDeny{} }},
	ServerLoadingType:       {"ServerLoading", func() Message { return &ServerLoading{} }},
	GameParamsType:          {"GameParams", func() Message { return &GameParams{} }},
	PlayerJoinedType:        {"PlayerJoined", func() Message { return &PlayerJoined{} }},
	PlayerDisconnectedType:  {"PlayerDisconnected", func() Message { return &PlayerDisconnected{} }},
	PlayerPositionType:      {"PlayerPosition", func() Message { return &PlayerPosition{} }},
	PlayerCarType:           {"PlayerCar", func() Message { return &PlayerCar{} }},
	PingUpdateType:          {"PingUpdate", func() Message { return &PingUpdate{} }},
	TickSyncType:            {"TickSync", func() Message { return &TickSync{} }},
	BeginWorldSyncType:      {"BeginWorldSync", func() Message { return &BeginWorldSync{} }},
	RemoveLoadingScreenType: {"RemoveLoadingScreen", func() Message { return &RemoveLoadingScreen{} }},
	WeatherStateType:        {"WeatherState", func() Message { return &WeatherState{} }},
	JunctionsStateType:      {"JunctionsState", func() Message { return &JunctionsState{} }},
	TurntablesStateType:     {"TurntablesState", func() Message { return &TurntablesState{} }},
	SpawnVehicleType:        {"SpawnVehicle", func() Message { return &SpawnVehicle{} }},
	DestroyVehicleType:      {"DestroyVehicle", func() Message { return &DestroyVehicle{} }},
	VehiclePhysicsType:      {"VehiclePhysics", func() Message { return &VehiclePhysics{} }},
	CargoStateType:          {"CargoState", func() Message { return &CargoState{} }},
	VehicleHealthType:       {"VehicleHealth", func() Message { return &VehicleHealth{} }},

	TimeAdvanceType:           {"TimeAdvance", func() Message { return &TimeAdvance{} }},
	JunctionSwitchedType:      {"JunctionSwitched", func() Message { return &JunctionSwitched{} }},
	TurntableRotationType:     {"TurntableRotation", func() Message { return &TurntableRotation{} }},
	TrainCoupledType:          {"TrainCoupled", func() Message { return &TrainCoupled{} }},
	TrainUncoupledType:        {"TrainUncoupled", func() Message { return &TrainUncoupled{} }},
	HoseConnectedType:         {"HoseConnected", func() Message { return &HoseConnected{} }},
	HoseDisconnectedType:      {"HoseDisconnected", func() Message { return &HoseDisconnected{} }},
	MUConnectedType:           {"MUConnected", func() Message { return &MUConnected{} }},
	MUDisconnectedType:        {"MUDisconnected", func() Message { return &MUDisconnected{} }},
	CockStateType:             {"CockState", func() Message { return &CockState{} }},
	BrakeCylinderReleasedType: {"BrakeCylinderReleased", func() Message { return &BrakeCylinderReleased{} }},
	HandbrakePositionType:     {"HandbrakePosition", func() Message { return &HandbrakePosition{} }},
	SimFlowType:               {"SimFlow", func() Message { return &SimFlow{} }},
}

func (t Type) String() string {
	if entry, ok := catalog[t]; ok {
		return entry.name
	}
	return fmt.Sprintf("Type(0x%02x)", uint8(t))
}

// Known reports whether t is part of the message catalog.
func (t Type) Known() bool {
	_, ok := catalog[t]
	return ok
}

// New returns an empty payload for t.
func New(t Type) (Message, bool) {
	entry, ok := catalog[t]
	if !ok {
		return nil, false
	}
	return entry.new(), true
}

// Marshal encodes a message with its tag. It has no side effects and always
// produces the same bytes for the same message.
func Marshal(m Message) []byte {
	w := codec.NewWriter()
	w.PutUint8(uint8(m.Type()))
	m.encode(w)
	return w.Bytes()
}

// PeekType returns the tag of an encoded message without decoding it.
func PeekType(data []byte) (Type, error) {
	if len(data) == 0 {
		return 0, ErrEmpty
	}
	return Type(data[0]), nil
}

// Unmarshal decodes a tagged message. Malformed input only ever produces an
// error, never a panic.
func Unmarshal(data []byte) (Message, error) {
	t, err := PeekType(data)
	if err != nil {
		return nil, err
	}
	m, ok := New(t)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownType, uint8(t))
	}

	r := codec.NewReader(data[1:])
	m.decode(r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: decoding %v: %v", ErrMalformedInput, t, err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %v has %d extra bytes", ErrTrailingBytes, t, r.Remaining())
	}
	return m, nil
}
