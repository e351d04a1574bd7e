package wire

import (
	"github.com/pkg/errors"

	"github.com/orbitalnet/zonerep/bitio"
	"github.com/orbitalnet/zonerep/cmn"
)

// ErrSplitImpossible is returned by FrameState.Split when the frame cannot
// be divided to fit the requested bit budget — per spec.md §4.8 this
// indicates a misconfigured MTU relative to the ack-header overhead, not a
// transient condition.
var ErrSplitImpossible = errors.New("wire: frame cannot be split to fit the configured buffer")

// FrameState is a per-zone per-frame record (spec.md §3).
type FrameState struct {
	Time           uint64
	LegacySequence uint64
	ColumnID       uint64
	States         []*ObjectState
}

const frameStateHeaderBits = 64 + 64 + 64 + 16

// EncodeFrameState writes f per spec.md §6's FrameState bitstream.
func EncodeFrameState(w *bitio.Writer, proto cmn.ProtocolConfig, f *FrameState) error {
	if err := w.WriteLongBits(f.Time, 64); err != nil {
		return err
	}
	if err := w.WriteLongBits(f.LegacySequence, 64); err != nil {
		return err
	}
	if err := w.WriteLongBits(f.ColumnID, 64); err != nil {
		return err
	}
	if err := w.WriteBits(uint32(len(f.States)), 16); err != nil {
		return err
	}
	for _, s := range f.States {
		if err := EncodeObjectState(w, proto, s); err != nil {
			return err
		}
	}
	return nil
}

// DecodeFrameState reads one FrameState from r.
func DecodeFrameState(r *bitio.Reader, proto cmn.ProtocolConfig) (*FrameState, error) {
	f := &FrameState{}
	var err error
	if f.Time, err = r.ReadLongBits(64); err != nil {
		return nil, err
	}
	if f.LegacySequence, err = r.ReadLongBits(64); err != nil {
		return nil, err
	}
	if f.ColumnID, err = r.ReadLongBits(64); err != nil {
		return nil, err
	}
	count, err := r.ReadBits(16)
	if err != nil {
		return nil, err
	}
	f.States = make([]*ObjectState, 0, count)
	for i := uint32(0); i < count; i++ {
		s, err := DecodeObjectState(r, proto)
		if err != nil {
			return nil, err
		}
		f.States = append(f.States, s)
	}
	return f, nil
}

// BitSize returns the exact bit length EncodeFrameState would emit for f.
func (f *FrameState) BitSize(proto cmn.ProtocolConfig) int {
	n := frameStateHeaderBits
	for _, s := range f.States {
		n += s.BitSize(proto)
	}
	return n
}

// Split walks f's ObjectStates accumulating sizes until adding the next one
// would exceed limit bits. The frame header counts against limit; the
// continuation marker does not, since the caller has already reserved it.
// It mutates f in place to the head portion and returns a new FrameState
// holding the tail (same Time/ColumnID, LegacySequence+1), or nil if the
// whole frame already fits. A split point of 0 (not even the first state
// fits after the header) is a pathological misconfiguration and returns
// ErrSplitImpossible.
func (f *FrameState) Split(proto cmn.ProtocolConfig, limit int) (*FrameState, error) {
	used := frameStateHeaderBits
	cut := -1
	for i, s := range f.States {
		sz := s.BitSize(proto)
		if used+sz > limit {
			cut = i
			break
		}
		used += sz
	}
	if cut == -1 {
		return nil, nil // everything fits
	}
	if cut == 0 {
		return nil, ErrSplitImpossible
	}
	tail := &FrameState{
		Time:           f.Time,
		LegacySequence: f.LegacySequence + 1,
		ColumnID:       f.ColumnID,
		States:         append([]*ObjectState(nil), f.States[cut:]...),
	}
	f.States = f.States[:cut]
	return tail, nil
}
