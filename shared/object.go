// Package shared implements SharedObject and SharedObjectSpace (spec.md
// §3, §4.10): the per-participant object table that tracks, for every
// network id, what the other side is known to have (current) versus what
// it has mutually confirmed (baseline), and computes deltas between them.
//
// Per design note §9, SharedObjectSpace is the exclusive owner of this
// relationship — Object never calls back into its Space, avoiding the
// cyclic-ownership issue spec.md flags under Open Questions.
package shared

import (
	"github.com/orbitalnet/zonerep/cmn/cos"
	"github.com/orbitalnet/zonerep/cmn/nlog"
	"github.com/orbitalnet/zonerep/wire"
)

// Object is one entity's view as known to one participant (spec.md
// §4.10). Current is the latest applied state; Baseline is the last state
// mutually confirmed by both sides; Version is the server-side frame time
// or the client-side sequence id depending on which end owns the Space.
// BaselineVersion is a distinct domain from Version (spec.md §4.10): it is
// always a 16-bit wrapping message/ack id, the only kind of sequence number
// UpdateBaseline's callers (PromoteFrames, fed from a confirmed ACK id) ever
// actually have. It must not be compared against Version, which is an
// unrelated, much larger frame-time clock.
type Object struct {
	NetworkID       uint16
	Current         wire.ObjectState
	Baseline        *wire.ObjectState
	Version         uint64
	BaselineVersion uint16
	RemovedNotified bool
}

func newObject(networkID uint16) *Object {
	return &Object{NetworkID: networkID, Current: wire.ObjectState{NetworkID: networkID}}
}

// UpdateState advances the object's current view if time is newer than its
// current version, storing pos/rot in whatever frame (zone-local or
// parent-relative) the caller already resolved them to (spec.md §4.7).
func (o *Object) UpdateState(time uint64, zoneID uint32, hasParent bool, parentID uint64, pos, rot uint64) bool {
	if time <= o.Version && o.Version != 0 {
		return false
	}
	o.Version = time
	o.Current.HasZoneID = true
	o.Current.ZoneID = zoneID
	o.Current.HasParentID = hasParent
	o.Current.ParentID = parentID
	o.Current.HasPosition = true
	o.Current.Position = pos
	o.Current.HasRotation = true
	o.Current.Rotation = rot
	return true
}

// BindRealID records the application entity id the first time it is
// observed for this network id (spec.md §4.9 step 5).
func (o *Object) BindRealID(realID uint64) {
	if !o.Current.HasRealID {
		o.Current.HasRealID = true
		o.Current.RealID = realID
	}
}

// MarkRemoved sets the removal sentinel on the current view if time
// advances the object (spec.md §4.10).
func (o *Object) MarkRemoved(time uint64) bool {
	if time <= o.Version && o.Version != 0 {
		return false
	}
	o.Version = time
	o.Current.HasZoneID = true
	o.Current.ZoneID = wire.ZoneRemoved
	return true
}

// IsRemoved reports whether the current view carries the removal
// sentinel.
func (o *Object) IsRemoved() bool {
	return o.Current.HasZoneID && o.Current.ZoneID == wire.ZoneRemoved
}

// IsFullyRemoved requires both the current view and the baseline to carry
// the removal sentinel — an object's removal is never acted on (evicted,
// id retired) until the peer has mutually acknowledged it (spec.md §4.10).
func (o *Object) IsFullyRemoved() bool {
	if !o.IsRemoved() {
		return false
	}
	return o.Baseline != nil && o.Baseline.HasZoneID && o.Baseline.ZoneID == wire.ZoneRemoved
}

// Delta builds an ObjectState carrying only the fields that differ from
// the baseline (spec.md §4.10 getDelta); with no baseline yet, every
// present field in Current is emitted.
func (o *Object) Delta() *wire.ObjectState {
	d := &wire.ObjectState{NetworkID: o.NetworkID}
	b := o.Baseline
	cur := &o.Current

	if b == nil || b.HasZoneID != cur.HasZoneID || b.ZoneID != cur.ZoneID {
		d.HasZoneID, d.ZoneID = cur.HasZoneID, cur.ZoneID
	}
	if b == nil || b.HasRealID != cur.HasRealID || b.RealID != cur.RealID {
		d.HasRealID, d.RealID = cur.HasRealID, cur.RealID
	}
	if b == nil || b.HasParentID != cur.HasParentID || b.ParentID != cur.ParentID {
		d.HasParentID, d.ParentID = cur.HasParentID, cur.ParentID
	}
	if b == nil || b.HasPosition != cur.HasPosition || b.Position != cur.Position {
		d.HasPosition, d.Position = cur.HasPosition, cur.Position
	}
	if b == nil || b.HasRotation != cur.HasRotation || b.Rotation != cur.Rotation {
		d.HasRotation, d.Rotation = cur.HasRotation, cur.Rotation
	}
	return d
}

// ApplyDelta copies only the present fields of delta onto Current (spec.md
// §4.10 applyDelta); absent fields mean "same as baseline" and are left
// untouched.
func (o *Object) ApplyDelta(delta *wire.ObjectState) {
	applyDeltaFields(&o.Current, delta)
}

func applyDeltaFields(dst, delta *wire.ObjectState) {
	if delta.HasZoneID {
		dst.HasZoneID, dst.ZoneID = true, delta.ZoneID
	}
	if delta.HasRealID {
		dst.HasRealID, dst.RealID = true, delta.RealID
	}
	if delta.HasParentID {
		dst.HasParentID, dst.ParentID = true, delta.ParentID
	}
	if delta.HasPosition {
		dst.HasPosition, dst.Position = true, delta.Position
	}
	if delta.HasRotation {
		dst.HasRotation, dst.Rotation = true, delta.Rotation
	}
}

// UpdateBaseline promotes state to the baseline once seq mutually
// confirms it (spec.md §4.10): with no existing baseline, state is cloned
// wholesale, falling back to the object's already-known RealID if state
// itself carries none (observed under severe ACK lag); otherwise the
// baseline only advances if seq is not older than BaselineVersion, using
// the 16-bit wraparound comparison rule (spec.md §6) since seq is always a
// wrapping ack id, never the frame-time Version.
func (o *Object) UpdateBaseline(seq uint64, state *wire.ObjectState) {
	s := uint16(seq)
	if o.Baseline == nil {
		clone := *state
		if !clone.HasRealID && o.Current.HasRealID {
			// Diagnosed workaround, not known to cover every case: copy the
			// realId from Current and warn so the condition stays visible.
			nlog.Warningf("shared: initial baseline for network id %d has no realId, using current realId %d", o.NetworkID, o.Current.RealID)
			clone.HasRealID, clone.RealID = true, o.Current.RealID
		}
		o.Baseline = &clone
		o.BaselineVersion = s
		return
	}
	if !cos.SeqAfterOrEqual(s, o.BaselineVersion) {
		return
	}
	o.BaselineVersion = s
	applyDeltaFields(o.Baseline, state)
}
