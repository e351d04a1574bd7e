package zone

import "testing"

func TestToWorldToLocalRoundTrips(t *testing.T) {
	g := NewGrid(10, 10, 10)
	k := g.KeyAt(3, -2, 7)
	world := [3]float64{34.5, -12.25, 71.0}

	local := k.ToLocal(world)
	got := k.ToWorld(local)
	if got != world {
		t.Fatalf("ToWorld(ToLocal(p)) = %v, want %v", got, world)
	}
}

func TestLongIDRoundTrips(t *testing.T) {
	g := NewGrid(10, 10, 10)
	cases := []Key{
		g.KeyAt(0, 0, 0),
		g.KeyAt(5, -5, 5),
		g.KeyAt(-1000, 1000, -1000),
		g.KeyAt(-1, -1, -1),
	}
	for _, k := range cases {
		got := g.FromLongID(k.LongID())
		if !got.Equal(k) {
			t.Fatalf("FromLongID(LongID(%v)) = %v, want equal", k, got)
		}
	}
}

func TestKeyAtOriginMatchesCellOrigin(t *testing.T) {
	g := NewGrid(4, 8, 16)
	k := g.KeyAt(2, 3, -1)
	want := g.CellOrigin(2, 3, -1)
	if k.Origin != want {
		t.Fatalf("Origin = %v, want %v", k.Origin, want)
	}
}

func TestEqualIgnoresOrigin(t *testing.T) {
	g := NewGrid(10, 10, 10)
	a := g.KeyAt(1, 1, 1)
	b := g.KeyAt(1, 1, 1)
	b.Origin = [3]float64{-1, -1, -1} // differs from a.Origin
	if !a.Equal(b) {
		t.Fatalf("expected keys built from the same coordinates to be equal")
	}
}
