package zone

// ZoneBlock pairs a committed StateBlock with the zone key it came from,
// as delivered to collector listeners.
type ZoneBlock struct {
	Key   Key
	Block *StateBlock
}

// StateFrame is the per-global-frame merge of every zone's StateBlock at
// one historical time (spec.md §4.5 purgeState). Zones may have sparse
// history relative to the global frame sequence.
type StateFrame struct {
	Time   uint64
	Blocks []ZoneBlock
}

// Merge appends a zone's block into this frame.
func (f *StateFrame) Merge(k Key, b *StateBlock) {
	f.Blocks = append(f.Blocks, ZoneBlock{Key: k, Block: b})
}
