package idindex

import "testing"

func TestAllocateIsStableAndBidirectional(t *testing.T) {
	x := New()
	id, err := x.Allocate(42)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if id == 0 {
		t.Fatalf("allocated id must be nonzero")
	}
	again, err := x.Allocate(42)
	if err != nil {
		t.Fatalf("re-allocate: %v", err)
	}
	if again != id {
		t.Fatalf("allocate not stable: got %d then %d", id, again)
	}
	app, ok := x.LookupApp(id)
	if !ok || app != 42 {
		t.Fatalf("LookupApp(%d) = %d, %v, want 42, true", id, app, ok)
	}
}

func TestRetireFreesIdForReuse(t *testing.T) {
	x := New()
	id, _ := x.Allocate(1)
	x.Retire(id)
	if _, ok := x.LookupApp(id); ok {
		t.Fatalf("retired id still resolves to an app id")
	}
	if _, ok := x.RetirementTag(id); !ok {
		t.Fatalf("expected a retirement tag to be recorded")
	}
	id2, err := x.Allocate(2)
	if err != nil {
		t.Fatalf("allocate after retire: %v", err)
	}
	if id2 == 0 {
		t.Fatalf("allocated id must be nonzero")
	}
}

func TestAllocateSkipsLiveIdsOnWraparound(t *testing.T) {
	x := New()
	// Occupy ids 1 and 2 explicitly, then force next to wrap past them.
	a, _ := x.Allocate(100)
	b, _ := x.Allocate(101)
	x.next = a
	c, err := x.Allocate(102)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if c == a || c == b {
		t.Fatalf("allocate returned a live id: %d (live: %d, %d)", c, a, b)
	}
}

func TestZeroIsNeverAllocated(t *testing.T) {
	x := New()
	for i := 0; i < 10; i++ {
		id, err := x.Allocate(uint64(i + 1))
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if id == 0 {
			t.Fatalf("network id 0 must never be allocated")
		}
	}
}
