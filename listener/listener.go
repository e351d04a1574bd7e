// Package listener implements NetworkStateListener (spec.md §4.7): the
// server-side per-client replication engine that bridges the zone
// manager's committed StateBlocks to one client's outbound ACK'd stream.
package listener

import (
	"fmt"
	"sync/atomic"

	"github.com/teris-io/shortid"

	"github.com/orbitalnet/zonerep/cmn"
	"github.com/orbitalnet/zonerep/cmn/nlog"
	"github.com/orbitalnet/zonerep/idindex"
	"github.com/orbitalnet/zonerep/shared"
	"github.com/orbitalnet/zonerep/transport"
	"github.com/orbitalnet/zonerep/writer"
	"github.com/orbitalnet/zonerep/zone"
)

// ackMsg is one inbound ClientStateMessage queued for processing on
// EndFrame (spec.md §4.7 "lock-free queue of inbound ACK messages").
type ackMsg struct {
	ackID uint16
}

// Listener is NetworkStateListener (spec.md §4.7).
type Listener struct {
	tag string // "lst[<shortid>]", grounded on transport/bundle's sb.lid convention

	proto  cmn.ProtocolConfig
	grid   *zone.Grid
	zones  *zone.LocalZoneIndex
	ids    *idindex.Index
	space  *shared.Space
	writer *writer.Writer
	stats  cmn.StatsUpdater

	selfEntityID uint64
	selfPosition [3]float64

	ackQueue chan ackMsg

	pendingEntered []zone.Key
	pendingExited  []zone.Key

	activeIDs atomic.Pointer[[]uint16] // double-buffered snapshot (spec.md §5)
}

// New builds a Listener for one connected client.
func New(grid *zone.Grid, radius int, proto cmn.ProtocolConfig, wcfg cmn.WriterConfig, clock cmn.Clock, sender transport.Sender, selfEntityID uint64, stats cmn.StatsUpdater) *Listener {
	if stats == nil {
		stats = cmn.NopStats{}
	}
	sid, err := shortid.Generate()
	if err != nil {
		sid = "?"
	}
	l := &Listener{
		tag:          fmt.Sprintf("lst[%s]", sid),
		proto:        proto,
		grid:         grid,
		zones:        zone.NewLocalZoneIndex(grid, radius),
		ids:          idindex.New(),
		space:        shared.NewSpace(),
		writer:       writer.New(wcfg, proto, clock, sender, stats),
		stats:        stats,
		selfEntityID: selfEntityID,
		ackQueue:     make(chan ackMsg, 256),
	}
	empty := []uint16{}
	l.activeIDs.Store(&empty)
	return l
}

func (l *Listener) String() string { return l.tag }

// QueueAck enqueues an inbound ClientStateMessage ack id for processing on
// the next EndFrame (spec.md §4.7: transport ingress threads deliver
// inbound ACKs via a lock-free queue, never blocking the collector).
func (l *Listener) QueueAck(ackID uint16) {
	select {
	case l.ackQueue <- ackMsg{ackID: ackID}:
	default:
		nlog.Warningf("%s: ack queue full, dropping ack for message %d", l.tag, ackID)
		l.stats.Inc("zonerep.listener.ack.dropped.n")
	}
}

// StateChanged applies one zone StateBlock the collector delivered
// (spec.md §4.7 "On each stateChanged(block)").
func (l *Listener) StateChanged(zoneID uint32, block *zone.StateBlock) {
	if block == nil {
		return
	}
	for _, u := range block.Updates {
		netID, err := l.ids.Allocate(u.ID)
		if err != nil {
			nlog.Warningf("%s: cannot allocate network id for entity %d: %v", l.tag, u.ID, err)
			continue
		}
		obj := l.space.GetOrCreate(netID)
		obj.BindRealID(u.ID)
		p := u.Pos
		if !u.HasParent {
			if k, ok := l.zones.KeyForZoneID(uint16(zoneID)); ok {
				p = k.ToLocal(u.Pos)
			}
		}
		pos := quantizeVec3(p, l.proto.PositionBits)
		rot := quantizeVec3([3]float64{u.Rot[0], u.Rot[1], u.Rot[2]}, l.proto.RotationBits)
		obj.UpdateState(block.Time, zoneID, u.HasParent, u.ParentID, pos, rot)

		if u.ID == l.selfEntityID {
			l.selfPosition = u.Pos
		}
	}
	for _, id := range block.Removes {
		netID, ok := l.ids.Lookup(id)
		if !ok {
			continue
		}
		if obj, ok := l.space.Get(netID); ok {
			obj.MarkRemoved(block.Time)
		}
	}
}

// quantizeVec3 packs a 3-component float vector into a single opaque bit
// field no wider than totalBits, splitting the budget evenly across axes
// (spec.md §3: positionBits/rotationBits are "opaque quantized bit
// fields" — the wire layer never interprets them). Position is expected
// already zone- or parent-relative per spec.md §4.7; rotation callers
// pass the quaternion's x/y/z, dropping w. Nothing in this module
// reconstructs w: the receiver stores the packed bits as they arrive (see
// DESIGN.md's Open Question note on this scheme).
func quantizeVec3(v [3]float64, totalBits int) uint64 {
	if totalBits <= 0 {
		return 0
	}
	perAxis := totalBits / 3
	if perAxis < 1 {
		perAxis = 1
	}
	mask := uint64(1)<<uint(perAxis) - 1
	half := float64(int64(1) << (perAxis - 1))
	var out uint64
	for i := 0; i < 3; i++ {
		q := int64(v[i]*half) & int64(mask)
		out = out<<uint(perAxis) | (uint64(q) & mask)
	}
	return out
}

// ZoneTransitions implements collector.Listener.
func (l *Listener) ZoneTransitions() (entered, exited []zone.Key) {
	entered, l.pendingEntered = l.pendingEntered, nil
	exited, l.pendingExited = l.pendingExited, nil
	return entered, exited
}

// BeginFrame implements collector.Listener.
func (l *Listener) BeginFrame(t uint64) {}

// Deliver implements collector.Listener: routes one zone's committed
// block into StateChanged, tagging it with the zone's local zoneId. A block
// for a zone that is not in the current window is dropped.
func (l *Listener) Deliver(k zone.Key, block *zone.StateBlock) {
	zoneID, ok := l.zones.ZoneID(k)
	if !ok {
		return
	}
	l.StateChanged(uint32(zoneID), block)
}

// EndFrame implements collector.Listener: processes queued acks, opens
// the writer's frame, enumerates shared objects emitting deltas, evicts
// fully-removed objects, and recenters the window (spec.md §4.7 steps
// 1-5).
func (l *Listener) EndFrame(t uint64) {
	l.processAcks()

	center, hasCenter := l.zones.Center()
	var centerID uint64
	if hasCenter {
		centerID = uint64(center.LongID())
	}
	if err := l.writer.StartFrame(t, centerID); err != nil {
		nlog.Warningf("%s: StartFrame: %v", l.tag, err)
		return
	}

	for _, obj := range l.space.All() {
		if !obj.IsRemoved() && obj.Version < t {
			obj.MarkRemoved(t)
		}
		delta := obj.Delta()
		if err := l.writer.AddState(delta); err != nil {
			nlog.Warningf("%s: AddState: %v", l.tag, err)
		}
		if obj.IsFullyRemoved() {
			l.space.Evict(obj.NetworkID)
			l.ids.Retire(obj.NetworkID)
		}
	}

	if err := l.writer.EndFrame(); err != nil {
		nlog.Warningf("%s: EndFrame: %v", l.tag, err)
	}

	l.recenterIfMoved()
	l.commitActiveIDs()
}

// recenterIfMoved implements spec.md §4.7 step 4: if selfPosition moved
// into a new center zone, recompute the window and stash the resulting
// entered/exited zones for ZoneTransitions to report on the next
// publishFrame.
func (l *Listener) recenterIfMoved() {
	newCenter := l.grid.KeyForPoint(l.selfPosition)
	if cur, has := l.zones.Center(); has && cur.Equal(newCenter) {
		return
	}
	entered, exited := l.zones.SetCenter(newCenter)
	l.pendingEntered = append(l.pendingEntered, entered...)
	l.pendingExited = append(l.pendingExited, exited...)
}

func (l *Listener) commitActiveIDs() {
	ids := make([]uint16, 0, len(l.space.All()))
	for _, obj := range l.space.All() {
		ids = append(ids, obj.NetworkID)
	}
	l.activeIDs.Store(&ids)
}

// ActiveIDs returns the last-committed snapshot of live network ids
// (spec.md §5's double-buffered commit-on-writer / snapshot-on-reader
// pattern). Safe to call from any goroutine.
func (l *Listener) ActiveIDs() []uint16 {
	p := l.activeIDs.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (l *Listener) processAcks() {
	for {
		select {
		case msg := <-l.ackQueue:
			sent := l.writer.AckSentState(msg.ackID)
			if sent != nil {
				l.space.PromoteFrames(uint64(msg.ackID), sent.Frames)
			}
		default:
			return
		}
	}
}

// BeginFrameBlock implements collector.Listener.
func (l *Listener) BeginFrameBlock() {}

// EndFrameBlock implements collector.Listener (spec.md §4.6: "writer.flush()").
func (l *Listener) EndFrameBlock() {
	if err := l.writer.Flush(); err != nil {
		nlog.Warningf("%s: Flush: %v", l.tag, err)
	}
}
