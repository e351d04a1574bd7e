package zone

import "testing"

func TestWorldToZoneFlattensZeroSizeAxis(t *testing.T) {
	g := NewGrid(10, 0, 10)
	if got := g.WorldToZone(123.4, g.CellY); got != 0 {
		t.Fatalf("WorldToZone on a zero-size axis = %d, want 0", got)
	}
}

func TestWorldToZoneFloorsTowardNegativeInfinity(t *testing.T) {
	g := NewGrid(10, 10, 10)
	if got := g.WorldToZone(-0.5, g.CellX); got != -1 {
		t.Fatalf("WorldToZone(-0.5) = %d, want -1", got)
	}
	if got := g.WorldToZone(9.99, g.CellX); got != 0 {
		t.Fatalf("WorldToZone(9.99) = %d, want 0", got)
	}
}

func TestClassifyMatchesPerAxisWorldToZone(t *testing.T) {
	g := NewGrid(5, 5, 5)
	x, y, z := g.Classify([3]float64{12, -3, 7})
	if x != g.WorldToZone(12, g.CellX) || y != g.WorldToZone(-3, g.CellY) || z != g.WorldToZone(7, g.CellZ) {
		t.Fatalf("Classify disagreed with per-axis WorldToZone")
	}
}
