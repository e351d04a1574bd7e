// Package idindex implements IdIndex: the bidirectional mapping between a
// dense 16-bit wire network id space and opaque 64-bit application entity
// ids (spec.md §3/§4.9), with wraparound allocation that skips currently
// live ids and a retirement generation tag so a stale late-arriving network
// id can be told apart from a reused one.
package idindex

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
	"github.com/pkg/errors"

	"github.com/orbitalnet/zonerep/cmn/cos"
)

// ErrExhausted is returned by Allocate when every value in the 16-bit
// network id space (minus the reserved zero sentinel) is currently live.
var ErrExhausted = errors.New("idindex: network id space exhausted")

// Index is a bidirectional map between 16-bit network ids (1..65535; 0 is
// the reserved "absent" sentinel per spec.md §3) and 64-bit application
// ids, plus a live-set bitset used to skip allocated ids on wraparound.
type Index struct {
	toApp map[uint16]uint64
	toNet map[uint64]uint16
	live  *cos.BitSet
	next  uint16
	gen   map[uint16]uint64
}

// New builds an empty Index.
func New() *Index {
	return &Index{
		toApp: make(map[uint16]uint64),
		toNet: make(map[uint64]uint16),
		live:  cos.NewBitSet(1 << 16),
		next:  1,
		gen:   make(map[uint16]uint64),
	}
}

// Lookup returns the network id already bound to appID, if any.
func (x *Index) Lookup(appID uint64) (uint16, bool) {
	id, ok := x.toNet[appID]
	return id, ok
}

// LookupApp is the reverse of Lookup.
func (x *Index) LookupApp(netID uint16) (uint64, bool) {
	id, ok := x.toApp[netID]
	return id, ok
}

// Allocate returns the existing binding for appID or creates a new one,
// scanning forward from the last-allocated id and wrapping around 1..65535
// while skipping ids that are still live (spec.md §3 "wrap-around
// allocation that skips live ids").
func (x *Index) Allocate(appID uint64) (uint16, error) {
	if id, ok := x.toNet[appID]; ok {
		return id, nil
	}
	if x.live.Count() >= 1<<16-1 {
		return 0, ErrExhausted
	}
	for i := 0; i < 1<<16; i++ {
		candidate := x.next
		x.next++
		if x.next == 0 {
			x.next = 1
		}
		if candidate == 0 {
			continue
		}
		if x.live.Test(int(candidate)) {
			continue
		}
		x.live.Set(int(candidate))
		x.toApp[candidate] = appID
		x.toNet[appID] = candidate
		return candidate, nil
	}
	return 0, ErrExhausted
}

// Retire releases a network id back to the pool, tagging it with a
// retirement generation derived from xxhash of (netID, appID) so a
// late-arriving message referencing a just-retired, possibly-reused id can
// be recognized as stale in debug logs.
func (x *Index) Retire(netID uint16) {
	appID, ok := x.toApp[netID]
	if !ok {
		return
	}
	x.gen[netID] = retirementTag(netID, appID)
	delete(x.toApp, netID)
	delete(x.toNet, appID)
	x.live.Clear(int(netID))
}

// RetirementTag returns the tag recorded the last time netID was retired,
// if any — used only for diagnostics, never for correctness.
func (x *Index) RetirementTag(netID uint16) (uint64, bool) {
	g, ok := x.gen[netID]
	return g, ok
}

func retirementTag(netID uint16, appID uint64) uint64 {
	var buf [10]byte
	binary.BigEndian.PutUint16(buf[0:2], netID)
	binary.BigEndian.PutUint64(buf[2:10], appID)
	return xxhash.Checksum64(buf[:])
}
