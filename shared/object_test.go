package shared

import (
	"testing"

	"github.com/orbitalnet/zonerep/wire"
)

func TestDeltaSuppressesUnchangedFields(t *testing.T) {
	s := NewSpace()
	o := s.GetOrCreate(1)
	o.UpdateState(100, 5, false, 0, 111, 222)
	o.BindRealID(7)
	o.UpdateBaseline(1, o.Delta())

	// Second frame, no change.
	o.UpdateState(150, 5, false, 0, 111, 222)
	d := o.Delta()
	if d.HasZoneID || d.HasRealID || d.HasParentID || d.HasPosition || d.HasRotation {
		t.Fatalf("expected fully-suppressed delta, got %+v", d)
	}
}

func TestDeltaCarriesChangedFieldsOnly(t *testing.T) {
	s := NewSpace()
	o := s.GetOrCreate(1)
	o.UpdateState(100, 5, false, 0, 111, 222)
	o.UpdateBaseline(1, o.Delta())

	o.UpdateState(150, 5, false, 0, 999, 222)
	d := o.Delta()
	if !d.HasPosition || d.Position != 999 {
		t.Fatalf("expected position delta, got %+v", d)
	}
	if d.HasRotation {
		t.Fatalf("expected rotation suppressed, got %+v", d)
	}
}

func TestRemovalRequiresMutualBaselineConfirmation(t *testing.T) {
	s := NewSpace()
	o := s.GetOrCreate(1)
	o.UpdateState(100, 5, false, 0, 111, 222)
	o.UpdateBaseline(1, o.Delta())

	o.MarkRemoved(200)
	if !o.IsRemoved() {
		t.Fatalf("expected IsRemoved after MarkRemoved")
	}
	if o.IsFullyRemoved() {
		t.Fatalf("should not be fully removed before baseline also confirms removal")
	}
	o.UpdateBaseline(2, o.Delta())
	if !o.IsFullyRemoved() {
		t.Fatalf("expected fully removed once baseline also carries the sentinel")
	}
}

func TestApplyDeltaLeavesAbsentFieldsUntouched(t *testing.T) {
	o := newObject(1)
	o.UpdateState(10, 3, true, 77, 1, 2)
	delta := &wire.ObjectState{NetworkID: 1, HasPosition: true, Position: 555}
	o.ApplyDelta(delta)
	if o.Current.ZoneID != 3 || !o.Current.HasParentID || o.Current.ParentID != 77 {
		t.Fatalf("unrelated fields should be untouched: %+v", o.Current)
	}
	if o.Current.Position != 555 {
		t.Fatalf("position should have been applied: %+v", o.Current)
	}
}

// TestUpdateBaselineTracksAckDomainSeparatelyFromFrameTime pins down the
// real call-site shape: Version is a frame time that routinely exceeds the
// 16-bit range seq (an ack id) lives in. UpdateBaseline must compare seq
// against BaselineVersion, never against Version.
func TestUpdateBaselineTracksAckDomainSeparatelyFromFrameTime(t *testing.T) {
	o := newObject(1)
	o.Version = 1 << 20 // far outside a uint16's range

	o.UpdateBaseline(5, &wire.ObjectState{NetworkID: 1, HasPosition: true, Position: 1})
	if o.Baseline == nil || o.BaselineVersion != 5 {
		t.Fatalf("expected the first UpdateBaseline to clone regardless of Version, got baseline=%v baselineVersion=%d", o.Baseline, o.BaselineVersion)
	}

	o.UpdateBaseline(6, &wire.ObjectState{NetworkID: 1, HasPosition: true, Position: 2})
	if o.Baseline.Position != 2 || o.BaselineVersion != 6 {
		t.Fatalf("expected baseline to advance on seq 6 despite Version=%d, got position=%d baselineVersion=%d", o.Version, o.Baseline.Position, o.BaselineVersion)
	}
}

// TestUpdateBaselineHandlesAckIDWraparound exercises the 16-bit wraparound
// rule directly on BaselineVersion (spec.md §6): a small seq following a
// seq near 65535 is "after", not "before".
func TestUpdateBaselineHandlesAckIDWraparound(t *testing.T) {
	o := newObject(1)
	o.UpdateBaseline(65530, &wire.ObjectState{NetworkID: 1, HasPosition: true, Position: 1})
	o.UpdateBaseline(10, &wire.ObjectState{NetworkID: 1, HasPosition: true, Position: 2})
	if o.Baseline.Position != 2 || o.BaselineVersion != 10 {
		t.Fatalf("expected baseline to advance across the ack id wraparound, got position=%d baselineVersion=%d", o.Baseline.Position, o.BaselineVersion)
	}
}

// TestUpdateBaselineIgnoresStaleAck confirms a superseded, late-arriving ack
// id does not regress the baseline.
func TestUpdateBaselineIgnoresStaleAck(t *testing.T) {
	o := newObject(1)
	o.UpdateBaseline(10, &wire.ObjectState{NetworkID: 1, HasPosition: true, Position: 2})
	o.UpdateBaseline(3, &wire.ObjectState{NetworkID: 1, HasPosition: true, Position: 999})
	if o.Baseline.Position != 2 || o.BaselineVersion != 10 {
		t.Fatalf("expected stale ack id 3 to be ignored, got position=%d baselineVersion=%d", o.Baseline.Position, o.BaselineVersion)
	}
}
