package wire

import (
	"github.com/pkg/errors"

	"github.com/orbitalnet/zonerep/bitio"
	"github.com/orbitalnet/zonerep/cmn"
	"github.com/orbitalnet/zonerep/cmn/cos"
)

// MaxAckRanges is the largest ack-range count the wire format can encode
// (an 8-bit count prefix); exceeding it is a protocol-overflow fault
// (spec.md §4.8, §7).
const MaxAckRanges = 255

// ErrTooManyAckRanges is returned when a SentState's AckRanges would not
// fit the 8-bit count prefix.
var ErrTooManyAckRanges = errors.New("wire: more than 255 ack ranges, cannot encode")

// SentState is one outbound datagram's logical payload: acks plus frames
// (spec.md §3). The messageId itself travels in the transport message
// header (spec.md §6), not in this payload.
type SentState struct {
	AckRanges []cos.IDRange
	Frames    []*FrameState
}

// EncodeSentState writes s per spec.md §6's SentState bitstream.
func EncodeSentState(w *bitio.Writer, proto cmn.ProtocolConfig, s *SentState) error {
	if len(s.AckRanges) > MaxAckRanges {
		return ErrTooManyAckRanges
	}
	if err := w.WriteBits(uint32(len(s.AckRanges)), 8); err != nil {
		return err
	}
	for _, rg := range s.AckRanges {
		if err := w.WriteBits(uint32(rg.Min), 16); err != nil {
			return err
		}
		if err := w.WriteBits(uint32(rg.Max), 16); err != nil {
			return err
		}
	}
	for _, f := range s.Frames {
		if err := w.WriteBit(true); err != nil { // "another frame" marker
			return err
		}
		if err := EncodeFrameState(w, proto, f); err != nil {
			return err
		}
	}
	return w.WriteBit(false) // terminator
}

// DecodeSentState reads a SentState from r.
func DecodeSentState(r *bitio.Reader, proto cmn.ProtocolConfig) (*SentState, error) {
	count, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	s := &SentState{AckRanges: make([]cos.IDRange, 0, count)}
	for i := uint32(0); i < count; i++ {
		min, err := r.ReadBits(16)
		if err != nil {
			return nil, err
		}
		max, err := r.ReadBits(16)
		if err != nil {
			return nil, err
		}
		s.AckRanges = append(s.AckRanges, cos.IDRange{Min: uint16(min), Max: uint16(max)})
	}
	for {
		more, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		f, err := DecodeFrameState(r, proto)
		if err != nil {
			return nil, err
		}
		s.Frames = append(s.Frames, f)
	}
	return s, nil
}

// HeaderBitSize returns the bit size of the ack-range prefix alone (8 bits
// count + 32 bits per range), used by the writer to check header overhead
// against the configured buffer size (spec.md §4.8 watchdog).
func (s *SentState) HeaderBitSize() int {
	return 8 + len(s.AckRanges)*32
}

// BitSize returns the exact bit length EncodeSentState would emit for s.
func (s *SentState) BitSize(proto cmn.ProtocolConfig) int {
	n := s.HeaderBitSize()
	for _, f := range s.Frames {
		n += 1 + f.BitSize(proto)
	}
	n++ // terminator bit
	return n
}
