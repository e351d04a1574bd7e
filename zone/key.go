package zone

// Key identifies a specific cell (spec.md §3 ZoneKey). Equality is by grid
// identity and coordinates; Origin is precomputed at construction so
// ToLocal/ToWorld never recompute it.
type Key struct {
	Grid   *Grid
	X, Y, Z int32
	Origin  [3]float64
}

// KeyAt builds the Key for explicit cell coordinates.
func (g *Grid) KeyAt(x, y, z int32) Key {
	return Key{Grid: g, X: x, Y: y, Z: z, Origin: g.CellOrigin(x, y, z)}
}

// KeyForPoint builds the Key for the cell containing a world position.
func (g *Grid) KeyForPoint(pos [3]float64) Key {
	x, y, z := g.Classify(pos)
	return g.KeyAt(x, y, z)
}

// Equal reports whether two keys name the same cell of the same grid.
func (k Key) Equal(o Key) bool {
	return k.Grid == o.Grid && k.X == o.X && k.Y == o.Y && k.Z == o.Z
}

// ToLocal subtracts the zone's world origin, yielding the coordinate that
// the protocol's position packer quantizes into positionBits (spec.md
// §4.3).
func (k Key) ToLocal(world [3]float64) [3]float64 {
	return [3]float64{world[0] - k.Origin[0], world[1] - k.Origin[1], world[2] - k.Origin[2]}
}

// ToWorld is the inverse of ToLocal.
func (k Key) ToWorld(local [3]float64) [3]float64 {
	return [3]float64{local[0] + k.Origin[0], local[1] + k.Origin[1], local[2] + k.Origin[2]}
}

const (
	coordBits = 21
	coordMask = int64(1)<<coordBits - 1
	signBit   = int64(1) << (coordBits - 1)
)

// LongID encodes the key as a 63-bit id: three sign-extended 21-bit fields
// packed x<<42 | y<<21 | z (spec.md §3, §6).
func (k Key) LongID() int64 {
	return ((int64(k.X) & coordMask) << 42) |
		((int64(k.Y) & coordMask) << 21) |
		(int64(k.Z) & coordMask)
}

// FromLongID decodes a long id produced by LongID back into a Key on the
// given grid, sign-extending each 21-bit field.
func (g *Grid) FromLongID(id int64) Key {
	x := signExtend21(id >> 42)
	y := signExtend21(id >> 21)
	z := signExtend21(id)
	return g.KeyAt(int32(x), int32(y), int32(z))
}

func signExtend21(v int64) int64 {
	v &= coordMask
	if v&signBit != 0 {
		v |= ^coordMask
	}
	return v
}
