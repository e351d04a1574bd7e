package zone

// LocalZoneIndex is a per-client window: a (2*r+1)^3 box of zone keys
// around a center, with a reverse map assigning each contained key a small
// dense zoneId starting at 1 (spec.md §3 LocalZoneIndex). zoneId stays
// stable for the lifetime of a window but changes meaning whenever the
// center moves (SetCenter assigns fresh ids).
type LocalZoneIndex struct {
	Grid   *Grid
	Radius int

	center    Key
	hasCenter bool
	keys      []Key
	toZoneID  map[int64]uint16
	toKey     map[uint16]Key
}

// NewLocalZoneIndex builds an empty window of the given radius; call
// SetCenter to populate it.
func NewLocalZoneIndex(grid *Grid, radius int) *LocalZoneIndex {
	return &LocalZoneIndex{
		Grid:     grid,
		Radius:   radius,
		toZoneID: make(map[int64]uint16),
		toKey:    make(map[uint16]Key),
	}
}

// Center returns the current center key and whether one has been set yet.
func (l *LocalZoneIndex) Center() (Key, bool) { return l.center, l.hasCenter }

// SetCenter recomputes the window around a new center, returning the
// symmetric difference of the old and new window cells as (entered,
// exited) — spec.md §8's testable property.
func (l *LocalZoneIndex) SetCenter(center Key) (entered, exited []Key) {
	oldKeys := make(map[int64]Key, len(l.keys))
	for _, k := range l.keys {
		oldKeys[k.LongID()] = k
	}

	newKeys := make([]Key, 0, boxSize(l.Radius))
	newSet := make(map[int64]Key, boxSize(l.Radius))
	r := int32(l.Radius)
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				k := l.Grid.KeyAt(center.X+dx, center.Y+dy, center.Z+dz)
				newKeys = append(newKeys, k)
				newSet[k.LongID()] = k
			}
		}
	}

	for lid, k := range newSet {
		if _, ok := oldKeys[lid]; !ok {
			entered = append(entered, k)
		}
	}
	for lid, k := range oldKeys {
		if _, ok := newSet[lid]; !ok {
			exited = append(exited, k)
		}
	}

	l.center = center
	l.hasCenter = true
	l.keys = newKeys
	l.toZoneID = make(map[int64]uint16, len(newKeys))
	l.toKey = make(map[uint16]Key, len(newKeys))
	var next uint16 = 1
	for _, k := range newKeys {
		l.toZoneID[k.LongID()] = next
		l.toKey[next] = k
		next++
	}
	return entered, exited
}

func boxSize(radius int) int {
	side := 2*radius + 1
	return side * side * side
}

// ZoneID returns the dense local id assigned to k in the current window.
func (l *LocalZoneIndex) ZoneID(k Key) (uint16, bool) {
	id, ok := l.toZoneID[k.LongID()]
	return id, ok
}

// KeyForZoneID is the reverse of ZoneID.
func (l *LocalZoneIndex) KeyForZoneID(id uint16) (Key, bool) {
	k, ok := l.toKey[id]
	return k, ok
}

// Contains reports whether k is currently within the window.
func (l *LocalZoneIndex) Contains(k Key) bool {
	_, ok := l.toZoneID[k.LongID()]
	return ok
}

// Keys returns the zone keys currently in the window.
func (l *LocalZoneIndex) Keys() []Key { return l.keys }
