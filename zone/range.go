package zone

import (
	"github.com/orbitalnet/zonerep/cmn"
	"github.com/orbitalnet/zonerep/cmn/nlog"
)

// Range is the axis-aligned box of zone coordinates an object currently
// intersects (spec.md §4.5 ZoneRange). Two implementations exist, modeled
// as a sum type per design note §9: Range is the common interface, OctRange
// and DynamicRange are its two variants.
type Range interface {
	Bounds() (min, max [3]int32)
	// Zones enumerates every cell the range covers on the given grid.
	Zones(grid *Grid) []Key
}

// OctRange is the compact 2x2x2 variant: it limits object extents to at
// most two cells per axis (spec.md §4.5). Bounds exceeding that are
// clamped and reported via the EntityResolver (if any) plus a log line,
// rather than rejected outright — replication continues, degraded.
type OctRange struct {
	min, max [3]int32
}

// NewOctRange builds the compact range, clamping any axis whose span
// exceeds two cells.
func NewOctRange(min, max [3]int32, entityID uint64, resolver cmn.EntityResolver) *OctRange {
	clamped := false
	for i := 0; i < 3; i++ {
		if max[i]-min[i] > 1 {
			max[i] = min[i] + 1
			clamped = true
		}
	}
	if clamped {
		if resolver != nil {
			resolver.ReportOversizedBounds(entityID, toI64(min), toI64(max))
		}
		nlog.Warningf("zone: entity %d exceeds oct range's 2-cell-per-axis limit, clamping", entityID)
	}
	return &OctRange{min: min, max: max}
}

func (r *OctRange) Bounds() ([3]int32, [3]int32) { return r.min, r.max }

func (r *OctRange) Zones(grid *Grid) []Key {
	return enumerate(grid, r.min, r.max)
}

// DynamicRange supports any extent (spec.md §4.5), selectable by
// configuration; it subsumes OctRange's behavior (no clamping).
type DynamicRange struct {
	min, max [3]int32
}

// NewDynamicRange builds an unclamped range.
func NewDynamicRange(min, max [3]int32) *DynamicRange {
	return &DynamicRange{min: min, max: max}
}

func (r *DynamicRange) Bounds() ([3]int32, [3]int32) { return r.min, r.max }

func (r *DynamicRange) Zones(grid *Grid) []Key {
	return enumerate(grid, r.min, r.max)
}

func enumerate(grid *Grid, min, max [3]int32) []Key {
	nx := int(max[0]-min[0]) + 1
	ny := int(max[1]-min[1]) + 1
	nz := int(max[2]-min[2]) + 1
	keys := make([]Key, 0, nx*ny*nz)
	for x := min[0]; x <= max[0]; x++ {
		for y := min[1]; y <= max[1]; y++ {
			for z := min[2]; z <= max[2]; z++ {
				keys = append(keys, grid.KeyAt(x, y, z))
			}
		}
	}
	return keys
}

func toI64(v [3]int32) [3]int64 {
	return [3]int64{int64(v[0]), int64(v[1]), int64(v[2])}
}

// NewRange picks OctRange or DynamicRange per cfg.RangeKind.
func NewRange(kind cmn.RangeKind, min, max [3]int32, entityID uint64, resolver cmn.EntityResolver) Range {
	if kind == cmn.RangeDynamic {
		return NewDynamicRange(min, max)
	}
	return NewOctRange(min, max, entityID, resolver)
}

// SameBounds reports whether two ranges cover the same box.
func SameBounds(a, b Range) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	amin, amax := a.Bounds()
	bmin, bmax := b.Bounds()
	return amin == bmin && amax == bmax
}
