package shared

import "github.com/orbitalnet/zonerep/wire"

// Space is SharedObjectSpace (spec.md §3, §4.10): the per-participant
// table of Objects keyed by network id. It is the exclusive owner of the
// current/baseline relationship; Object itself never reaches back into
// its Space.
type Space struct {
	objects map[uint16]*Object
}

// NewSpace builds an empty Space.
func NewSpace() *Space {
	return &Space{objects: make(map[uint16]*Object)}
}

// GetOrCreate returns the existing Object for networkID, creating one on
// first observation (spec.md §4 lifecycle note).
func (s *Space) GetOrCreate(networkID uint16) *Object {
	o, ok := s.objects[networkID]
	if !ok {
		o = newObject(networkID)
		s.objects[networkID] = o
	}
	return o
}

// Get looks up an existing Object without creating one (spec.md §4.7's
// "look up the shared object (no allocation)" for removals).
func (s *Space) Get(networkID uint16) (*Object, bool) {
	o, ok := s.objects[networkID]
	return o, ok
}

// Evict removes an object fully, e.g. once IsFullyRemoved() holds.
func (s *Space) Evict(networkID uint16) {
	delete(s.objects, networkID)
}

// All returns every object currently tracked, for per-frame enumeration
// (spec.md §4.7 step 3, §4.9 step 5). Order is unspecified.
func (s *Space) All() []*Object {
	out := make([]*Object, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	return out
}

// BeginFrame marks the start of applying one inbound frame's worth of
// ObjectStates (spec.md §4.9 step 5); currently a bookkeeping hook with no
// required side effect of its own, kept distinct from EndFrame so future
// batched-notification logic has a natural home.
func (s *Space) BeginFrame(t uint64) {}

// EndFrame marks the end of one inbound frame (spec.md §4.9 step 5).
func (s *Space) EndFrame() {}

// PromoteFrames promotes every ObjectState carried by frames into the
// matching tracked object's baseline, at sequence seq (spec.md §4.8/§4.9
// "space.updateBaseline(...)" calls triggered by a confirmed ACK).
func (s *Space) PromoteFrames(seq uint64, frames []*wire.FrameState) {
	for _, f := range frames {
		for _, state := range f.States {
			o, ok := s.objects[state.NetworkID]
			if !ok {
				continue
			}
			o.UpdateBaseline(seq, state)
		}
	}
}
