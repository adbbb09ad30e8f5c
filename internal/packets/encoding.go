package packets

import (
	"fmt"

	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/core/codec"
	"github.com/dcrodman/railyard/internal/world"
)

func putVector3(w *codec.Writer, v world.Vector3) {
	w.PutFloat32(v.X)
	w.PutFloat32(v.Y)
	w.PutFloat32(v.Z)
}

func readVector3(r *codec.Reader) world.Vector3 {
	return world.Vector3{X: r.Float32(), Y: r.Float32(), Z: r.Float32()}
}

func putQuaternion(w *codec.Writer, q world.Quaternion) {
	w.PutFloat32(q.X)
	w.PutFloat32(q.Y)
	w.PutFloat32(q.Z)
	w.PutFloat32(q.W)
}

func readQuaternion(r *codec.Reader) world.Quaternion {
	return world.Quaternion{X: r.Float32(), Y: r.Float32(), Z: r.Float32(), W: r.Float32()}
}

func putBogie(w *codec.Writer, b world.Bogie) {
	w.PutUint16(b.Track)
	w.PutFloat64(b.Position)
	w.PutBool(b.Derailed)
}

func readBogie(r *codec.Reader) world.Bogie {
	return world.Bogie{Track: r.Uint16(), Position: r.Float64(), Derailed: r.Bool()}
}

func putPeer(w *codec.Writer, id client.PeerID) { w.PutUint8(uint8(id)) }
func readPeer(r *codec.Reader) client.PeerID   { return client.PeerID(r.Uint8()) }

func putVehicle(w *codec.Writer, id world.VehicleID) { w.PutUint16(uint16(id)) }
func readVehicle(r *codec.Reader) world.VehicleID   { return world.VehicleID(r.Uint16()) }

// readCount reads an array length and stops early if the array couldn't
// possibly fit in what's left of the payload.
func readCount(r *codec.Reader, elemSize int) int {
	n := r.Length()
	if r.Err() != nil {
		return 0
	}
	if n*elemSize > r.Remaining() {
		r.Fail(fmt.Errorf("%w: %d elements in %d bytes", codec.ErrShortBuffer, n, r.Remaining()))
		return 0
	}
	return n
}
