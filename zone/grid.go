// Package zone implements the spatial partitioning and per-cell history
// pipeline (spec.md §3, §4.3–§4.5): the zone grid and key, the per-cell
// frame buffer, the cross-cell zone manager, and the per-client local
// window index.
package zone

import "math"

// Grid is an immutable description of how world space is partitioned into
// cells (spec.md §3 ZoneGrid). A cell size of 0 on any axis flattens that
// axis (worldToZone always yields 0 on it).
type Grid struct {
	CellX, CellY, CellZ int
}

// NewGrid builds a Grid with the given per-axis cell sizes.
func NewGrid(cellX, cellY, cellZ int) *Grid {
	return &Grid{CellX: cellX, CellY: cellY, CellZ: cellZ}
}

// WorldToZone maps a single world-space coordinate to its integer cell
// index along an axis of the given size (spec.md §4.3): floor(d/size),
// with size == 0 defined as always yielding 0 (a flattened axis).
func (g *Grid) WorldToZone(d float64, size int) int32 {
	if size == 0 {
		return 0
	}
	return int32(math.Floor(d / float64(size)))
}

// Classify maps a world position to the (x,y,z) cell coordinates
// containing it.
func (g *Grid) Classify(pos [3]float64) (x, y, z int32) {
	x = g.WorldToZone(pos[0], g.CellX)
	y = g.WorldToZone(pos[1], g.CellY)
	z = g.WorldToZone(pos[2], g.CellZ)
	return
}

// CellOrigin returns the world-space origin (minimum corner) of the given
// cell; worldToZone and zoneToWorld round-trip on cell origins by
// construction (spec.md §3 invariant).
func (g *Grid) CellOrigin(x, y, z int32) [3]float64 {
	return [3]float64{
		float64(x) * float64(g.CellX),
		float64(y) * float64(g.CellY),
		float64(z) * float64(g.CellZ),
	}
}
