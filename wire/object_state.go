// Package wire implements the bit-packed codec for ObjectState, FrameState,
// and SentState (spec.md §4.2, §6). It is the only place that knows the
// wire layout; bitio is the only thing it is built on.
package wire

import (
	"github.com/pkg/errors"

	"github.com/orbitalnet/zonerep/bitio"
	"github.com/orbitalnet/zonerep/cmn"
)

// ErrEmptyNetworkID is returned by EncodeObjectState when asked to
// serialize a state whose NetworkID is the reserved "empty" sentinel 0
// (spec.md §3 invariant).
var ErrEmptyNetworkID = errors.New("wire: cannot encode ObjectState with networkId == 0")

// ZoneRemoved is the literal ZoneID value meaning "removed" (spec.md §3).
const ZoneRemoved uint32 = 0

// ObjectState is a wire-level snapshot or delta (spec.md §3). Absent
// fields carry Has*=false and imply "same as baseline" when this is a
// delta.
type ObjectState struct {
	NetworkID uint16

	HasZoneID bool
	ZoneID    uint32

	HasRealID bool
	RealID    uint64

	HasParentID bool
	ParentID    uint64

	HasPosition bool
	Position    uint64 // opaque quantized bit field, protocol.PositionBits wide

	HasRotation bool
	Rotation    uint64 // opaque quantized bit field, protocol.RotationBits wide
}

// EncodeObjectState writes s to w per spec.md §6's ObjectState bitstream.
func EncodeObjectState(w *bitio.Writer, proto cmn.ProtocolConfig, s *ObjectState) error {
	if s.NetworkID == 0 {
		return ErrEmptyNetworkID
	}
	if err := w.WriteBits(uint32(s.NetworkID), 16); err != nil {
		return err
	}
	if err := writeOptional(w, s.HasZoneID, uint64(s.ZoneID), proto.ZoneIDBitSize); err != nil {
		return err
	}
	if err := writeOptional(w, s.HasRealID, s.RealID, proto.IDBitSize); err != nil {
		return err
	}
	if err := writeOptional(w, s.HasParentID, s.ParentID, proto.IDBitSize); err != nil {
		return err
	}
	if err := writeOptional(w, s.HasPosition, s.Position, proto.PositionBits); err != nil {
		return err
	}
	if err := writeOptional(w, s.HasRotation, s.Rotation, proto.RotationBits); err != nil {
		return err
	}
	return nil
}

func writeOptional(w *bitio.Writer, has bool, val uint64, width int) error {
	if err := w.WriteBit(has); err != nil {
		return err
	}
	if !has {
		return nil
	}
	return w.WriteLongBits(val, width)
}

// DecodeObjectState reads one ObjectState from r. A NetworkID of 0 signals
// "no state" and is reported by returning (nil, nil) rather than an error,
// matching spec.md §6's "0 ⇒ no state, stop" note.
func DecodeObjectState(r *bitio.Reader, proto cmn.ProtocolConfig) (*ObjectState, error) {
	networkID, err := r.ReadBits(16)
	if err != nil {
		return nil, err
	}
	if networkID == 0 {
		return nil, nil
	}
	s := &ObjectState{NetworkID: uint16(networkID)}
	if s.HasZoneID, s.ZoneID, err = readOptional32(r, proto.ZoneIDBitSize); err != nil {
		return nil, err
	}
	if s.HasRealID, s.RealID, err = readOptional64(r, proto.IDBitSize); err != nil {
		return nil, err
	}
	if s.HasParentID, s.ParentID, err = readOptional64(r, proto.IDBitSize); err != nil {
		return nil, err
	}
	if s.HasPosition, s.Position, err = readOptional64(r, proto.PositionBits); err != nil {
		return nil, err
	}
	if s.HasRotation, s.Rotation, err = readOptional64(r, proto.RotationBits); err != nil {
		return nil, err
	}
	return s, nil
}

func readOptional64(r *bitio.Reader, width int) (bool, uint64, error) {
	has, err := r.ReadBit()
	if err != nil || !has {
		return false, 0, err
	}
	v, err := r.ReadLongBits(width)
	return true, v, err
}

func readOptional32(r *bitio.Reader, width int) (bool, uint32, error) {
	has, v, err := readOptional64(r, width)
	return has, uint32(v), err
}

// BitSize returns the exact number of bits EncodeObjectState would emit
// for s, used by the splitter (spec.md §4.2 requires estimate == true size).
func (s *ObjectState) BitSize(proto cmn.ProtocolConfig) int {
	n := 16
	n += optionalBitSize(s.HasZoneID, proto.ZoneIDBitSize)
	n += optionalBitSize(s.HasRealID, proto.IDBitSize)
	n += optionalBitSize(s.HasParentID, proto.IDBitSize)
	n += optionalBitSize(s.HasPosition, proto.PositionBits)
	n += optionalBitSize(s.HasRotation, proto.RotationBits)
	return n
}

func optionalBitSize(has bool, width int) int {
	if has {
		return 1 + width
	}
	return 1
}
