package zone

// Update is one entity's pose change recorded into an open StateBlock
// (spec.md §4.4).
type Update struct {
	ID        uint64
	HasParent bool
	ParentID  uint64
	Pos       [3]float64
	Rot       [4]float64
}

// Warp is an instantaneous position discontinuity signalled separately
// from normal motion (spec.md glossary, §4.4, §9).
type Warp struct {
	ID        uint64
	HasParent bool
	ParentID  uint64
}

// StateBlock is a single cell's record at one frame time: optional lists
// of updates, removes, and warps (spec.md §3).
type StateBlock struct {
	Time    uint64
	Updates []Update
	Removes []uint64
	Warps   []Warp
}

// Empty reports whether the block carries nothing at all.
func (b *StateBlock) Empty() bool {
	return b == nil || (len(b.Updates) == 0 && len(b.Removes) == 0 && len(b.Warps) == 0)
}

// Zone is per-cell mutable state: the set of resident child entity ids, the
// current open StateBlock, and a fixed-size ring of committed StateBlocks
// as history (spec.md §3, §4.4).
type Zone struct {
	Key      Key
	children map[uint64]struct{}
	current  *StateBlock
	ring     []*StateBlock
	head     int
	count    int
}

// NewZone allocates a Zone with a ring history of the given backlog
// capacity.
func NewZone(key Key, backlog int) *Zone {
	if backlog < 1 {
		backlog = 1
	}
	return &Zone{Key: key, children: make(map[uint64]struct{}), ring: make([]*StateBlock, backlog)}
}

// BeginUpdate opens a new block for time t (spec.md §4.4).
func (z *Zone) BeginUpdate(t uint64) {
	z.current = &StateBlock{Time: t}
}

// Update appends a pose update to the open block.
func (z *Zone) Update(parentID uint64, hasParent bool, id uint64, pos [3]float64, rot [4]float64) {
	z.ensureOpen()
	z.current.Updates = append(z.current.Updates, Update{ID: id, HasParent: hasParent, ParentID: parentID, Pos: pos, Rot: rot})
}

// RemoveEntity appends a removal to the open block.
func (z *Zone) RemoveEntity(id uint64) {
	z.ensureOpen()
	z.current.Removes = append(z.current.Removes, id)
}

// AddWarp appends a warp marker to the open block.
func (z *Zone) AddWarp(parentID uint64, hasParent bool, id uint64) {
	z.ensureOpen()
	z.current.Warps = append(z.current.Warps, Warp{ID: id, HasParent: hasParent, ParentID: parentID})
}

func (z *Zone) ensureOpen() {
	if z.current == nil {
		z.current = &StateBlock{}
	}
}

// AddChild registers id as resident in this cell.
func (z *Zone) AddChild(id uint64) { z.children[id] = struct{}{} }

// RemoveChild unregisters id and pushes a remove event into the open
// block, per spec.md §4.4.
func (z *Zone) RemoveChild(id uint64) {
	delete(z.children, id)
	z.RemoveEntity(id)
}

// ChildCount reports how many entities currently reside in this cell.
func (z *Zone) ChildCount() int { return len(z.children) }

// CommitUpdate pushes the open block into history unless both the open
// block is empty and history is empty, in which case the zone is idle and
// CommitUpdate reports so (spec.md §4.4) — the caller is then free to
// evict the zone if it is also childless.
func (z *Zone) CommitUpdate() (idle bool) {
	open := z.current
	z.current = nil
	if open.Empty() && z.count == 0 {
		return true
	}
	if !open.Empty() {
		z.push(open)
	}
	return false
}

func (z *Zone) push(b *StateBlock) {
	cap := len(z.ring)
	z.ring[z.head%cap] = b
	z.head++
	if z.count < cap {
		z.count++
	}
}

// PurgeHistory snapshots the ring oldest-first and clears it (spec.md
// §4.4).
func (z *Zone) PurgeHistory() []*StateBlock {
	if z.count == 0 {
		return nil
	}
	cap := len(z.ring)
	out := make([]*StateBlock, z.count)
	start := ((z.head-z.count)%cap + cap) % cap
	for i := 0; i < z.count; i++ {
		out[i] = z.ring[(start+i)%cap]
	}
	for i := range z.ring {
		z.ring[i] = nil
	}
	z.head, z.count = 0, 0
	return out
}

// Idle reports whether the zone has no history, no open state, and no
// children — eligible for eviction from the manager's zones map.
func (z *Zone) Idle() bool {
	return z.count == 0 && len(z.children) == 0 && z.current.Empty()
}
