package zone

import (
	"testing"

	"github.com/orbitalnet/zonerep/cmn"
)

type fakeResolver struct {
	calls int
}

func (r *fakeResolver) ReportOversizedBounds(entityID uint64, minBound, maxBound [3]int64) {
	r.calls++
}

func TestOctRangeClampsToTwoCellsPerAxis(t *testing.T) {
	r := NewOctRange([3]int32{0, 0, 0}, [3]int32{5, 0, 0}, 1, nil)
	min, max := r.Bounds()
	if max[0]-min[0] != 1 {
		t.Fatalf("expected x span clamped to 1, got %d", max[0]-min[0])
	}
}

func TestOctRangeReportsClampingToResolver(t *testing.T) {
	resolver := &fakeResolver{}
	NewOctRange([3]int32{0, 0, 0}, [3]int32{5, 5, 5}, 1, resolver)
	if resolver.calls != 1 {
		t.Fatalf("expected resolver to be notified once, got %d calls", resolver.calls)
	}
}

func TestOctRangeWithinLimitsDoesNotReport(t *testing.T) {
	resolver := &fakeResolver{}
	NewOctRange([3]int32{0, 0, 0}, [3]int32{1, 1, 1}, 1, resolver)
	if resolver.calls != 0 {
		t.Fatalf("expected no resolver call for an in-limit range, got %d", resolver.calls)
	}
}

func TestDynamicRangeNeverClamps(t *testing.T) {
	r := NewDynamicRange([3]int32{0, 0, 0}, [3]int32{50, 50, 50})
	min, max := r.Bounds()
	if max[0]-min[0] != 50 {
		t.Fatalf("expected dynamic range to keep its full span, got %d", max[0]-min[0])
	}
}

func TestZonesEnumeratesEveryCellInBounds(t *testing.T) {
	g := NewGrid(1, 1, 1)
	r := NewDynamicRange([3]int32{0, 0, 0}, [3]int32{1, 1, 1})
	keys := r.Zones(g)
	if len(keys) != 8 {
		t.Fatalf("expected 8 cells for a 2x2x2 box, got %d", len(keys))
	}
}

func TestSameBoundsComparesBoxesAcrossImplementations(t *testing.T) {
	oct := NewOctRange([3]int32{0, 0, 0}, [3]int32{1, 1, 1}, 1, nil)
	dyn := NewDynamicRange([3]int32{0, 0, 0}, [3]int32{1, 1, 1})
	if !SameBounds(oct, dyn) {
		t.Fatalf("expected equal boxes to compare equal across Range implementations")
	}
	other := NewDynamicRange([3]int32{0, 0, 0}, [3]int32{2, 1, 1})
	if SameBounds(oct, other) {
		t.Fatalf("expected differing boxes to compare unequal")
	}
}

func TestSameBoundsHandlesNil(t *testing.T) {
	if !SameBounds(nil, nil) {
		t.Fatalf("expected two nil ranges to compare equal")
	}
	dyn := NewDynamicRange([3]int32{0, 0, 0}, [3]int32{1, 1, 1})
	if SameBounds(nil, dyn) {
		t.Fatalf("expected nil and non-nil to compare unequal")
	}
}

func TestNewRangePicksImplementationByKind(t *testing.T) {
	dyn := NewRange(cmn.RangeDynamic, [3]int32{0, 0, 0}, [3]int32{9, 9, 9}, 1, nil)
	if _, ok := dyn.(*DynamicRange); !ok {
		t.Fatalf("expected RangeDynamic to produce a *DynamicRange")
	}
	oct := NewRange(cmn.RangeOct, [3]int32{0, 0, 0}, [3]int32{9, 9, 9}, 1, nil)
	if _, ok := oct.(*OctRange); !ok {
		t.Fatalf("expected RangeOct to produce a *OctRange")
	}
}
