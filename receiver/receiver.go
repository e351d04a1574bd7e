package receiver

import (
	"sort"

	"github.com/orbitalnet/zonerep/bitio"
	"github.com/orbitalnet/zonerep/cmn"
	"github.com/orbitalnet/zonerep/cmn/cos"
	"github.com/orbitalnet/zonerep/cmn/nlog"
	"github.com/orbitalnet/zonerep/shared"
	"github.com/orbitalnet/zonerep/transport"
	"github.com/orbitalnet/zonerep/wire"
	"github.com/orbitalnet/zonerep/zone"
)

// Listener receives entity-level notifications as the receiver applies
// inbound frames (spec.md §4.9 "fire updated-vs-removed notifications").
type Listener interface {
	OnObjectUpdated(networkID uint16, obj *shared.Object)
	OnObjectRemoved(networkID uint16)
}

type receivedEntry struct {
	messageID uint16
	state     *wire.SentState
}

// Receiver is StateReceiver (spec.md §4.9).
type Receiver struct {
	proto  cmn.ProtocolConfig
	clock  *RemoteClock
	ping   *PingTracker
	sender transport.Sender
	space  *shared.Space
	zones  *zone.LocalZoneIndex
	grid   *zone.Grid
	stats  cmn.StatsUpdater
	l      Listener

	received      []receivedEntry
	lastFrameTime uint64
}

// New builds a Receiver. grid and radius size the LocalZoneIndex the
// receiver recenters on each frame's columnId (spec.md §4.9 step 5).
func New(proto cmn.ProtocolConfig, grid *zone.Grid, radius int, local cmn.Clock, clockOffsetNanos int64, sender transport.Sender, l Listener, stats cmn.StatsUpdater) *Receiver {
	if stats == nil {
		stats = cmn.NopStats{}
	}
	return &Receiver{
		proto:  proto,
		clock:  NewRemoteClock(local, clockOffsetNanos),
		ping:   NewPingTracker(local),
		sender: sender,
		space:  shared.NewSpace(),
		zones:  zone.NewLocalZoneIndex(grid, radius),
		grid:   grid,
		stats:  stats,
		l:      l,
	}
}

// RemoteClock exposes the receiver's estimate of the server clock.
func (r *Receiver) RemoteClock() *RemoteClock { return r.clock }

// OnDatagram processes one inbound ObjectStateMessage envelope (spec.md
// §4.9 steps 1-5): it updates the remote clock, immediately ACKs, then
// deserializes, records, and applies the SentState.
func (r *Receiver) OnDatagram(buf []byte) error {
	msg, err := transport.DecodeEnvelope(buf)
	if err != nil {
		return err
	}
	if msg.Class != transport.ClassObjectState {
		return nil // not ours; e.g. a loopback of our own ClientStateMessage
	}
	p := msg.ObjectState

	r.clock.Observe(p.Time)
	if err := r.sendAck(p.ID, p.Time); err != nil {
		nlog.Warningf("receiver: ack send for message %d failed: %v", p.ID, err)
	}

	br := bitio.NewReader(p.Payload)
	state, err := wire.DecodeSentState(br, r.proto)
	if err != nil {
		return err
	}
	r.insertSorted(p.ID, state)
	r.processDoubleAcks(state)
	r.applyFrames(state)
	r.stats.Inc("zonerep.receiver.messages.n")
	return nil
}

func (r *Receiver) sendAck(id uint16, time uint64) error {
	if r.sender == nil {
		return nil
	}
	return r.sender.Send(&transport.Message{
		Class:       transport.ClassClientState,
		ClientState: &transport.ClientStatePayload{AckID: id, Time: time},
	})
}

func (r *Receiver) insertSorted(id uint16, state *wire.SentState) {
	i := sort.Search(len(r.received), func(i int) bool {
		return !cos.SeqBefore(r.received[i].messageID, id)
	})
	r.received = append(r.received, receivedEntry{})
	copy(r.received[i+1:], r.received[i:])
	r.received[i] = receivedEntry{messageID: id, state: state}
}

// processDoubleAcks walks every ack range the inbound SentState carries
// and, for each id in range, calls ackReceivedState, promoting any matched
// entry's frames to the space's baseline (spec.md §4.9 step 4).
func (r *Receiver) processDoubleAcks(state *wire.SentState) {
	for _, rg := range state.AckRanges {
		id := rg.Min
		for {
			if entry := r.ackReceivedState(id); entry != nil {
				r.space.PromoteFrames(uint64(id), entry.state.Frames)
			}
			if id == rg.Max {
				break
			}
			id++
		}
	}
}

// ackReceivedState implements spec.md §4.9's ackReceivedState: entries
// strictly older than target are dropped as superseded; a match is
// removed and returned; if the next surviving entry is already past
// target, the id was already processed and nil is returned.
func (r *Receiver) ackReceivedState(target uint16) *receivedEntry {
	i := 0
	for i < len(r.received) && cos.SeqBefore(r.received[i].messageID, target) {
		i++
	}
	r.received = r.received[i:]
	if len(r.received) == 0 || r.received[0].messageID != target {
		return nil
	}
	entry := r.received[0]
	r.received = r.received[1:]
	return &entry
}

// applyFrames applies every FrameState in state, in time order, to the
// SharedObjectSpace (spec.md §4.9 step 5).
func (r *Receiver) applyFrames(state *wire.SentState) {
	for _, f := range state.Frames {
		if f.Time < r.lastFrameTime {
			continue
		}
		r.lastFrameTime = f.Time
		r.space.BeginFrame(f.Time)
		center := r.grid.FromLongID(int64(f.ColumnID))
		r.zones.SetCenter(center)
		for _, os := range f.States {
			r.applyNetworkState(f.Time, os)
		}
		r.space.EndFrame()
	}
}

// applyNetworkState merges one ObjectState delta into its shared object
// and fires an updated/removed notification exactly once per transition
// (spec.md §4.9 "Merge semantics").
func (r *Receiver) applyNetworkState(frameTime uint64, state *wire.ObjectState) {
	obj, existed := r.space.Get(state.NetworkID)
	if !existed {
		obj = r.space.GetOrCreate(state.NetworkID)
	}
	if state.HasRealID {
		obj.BindRealID(state.RealID)
	}
	if obj.Version != 0 && frameTime < obj.Version {
		return // stale relative to what we've already applied
	}
	if obj.Baseline != nil {
		obj.Current = *obj.Baseline
	}
	obj.Version = frameTime
	obj.ApplyDelta(state)

	removed := obj.IsRemoved()
	if removed && !obj.RemovedNotified {
		obj.RemovedNotified = true
		if r.l != nil {
			r.l.OnObjectRemoved(obj.NetworkID)
		}
		if obj.IsFullyRemoved() {
			r.space.Evict(obj.NetworkID)
		}
		return
	}
	if !removed && obj.RemovedNotified {
		obj.RemovedNotified = false
	}
	if r.l != nil {
		r.l.OnObjectUpdated(obj.NetworkID, obj)
	}
}
