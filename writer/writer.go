// Package writer implements StateWriter (spec.md §4.8): per-listener
// packetization of FrameStates into MTU-sized SentStates, and the sender
// side of the double-ACK protocol.
package writer

import (
	"github.com/pkg/errors"

	"github.com/orbitalnet/zonerep/bitio"
	"github.com/orbitalnet/zonerep/cmn"
	"github.com/orbitalnet/zonerep/cmn/cos"
	"github.com/orbitalnet/zonerep/cmn/nlog"
	"github.com/orbitalnet/zonerep/transport"
	"github.com/orbitalnet/zonerep/wire"
)

// ErrProtocolOverflow is raised when the fragmented ack-range count
// exceeds what the wire format's 8-bit count prefix can encode (spec.md
// §4.8 watchdog).
var ErrProtocolOverflow = errors.New("writer: ack range fragmentation exceeds protocol limit")

// ErrNoOpenMessage is returned by AddState/EndFrame when called before
// StartFrame opened a message.
var ErrNoOpenMessage = errors.New("writer: no open frame/message")

// sentRecord is one entry in the sentStates history: the assigned message
// id plus the SentState that was actually transmitted under it.
type sentRecord struct {
	messageID uint16
	state     *wire.SentState
}

// Writer is StateWriter (spec.md §4.8).
type Writer struct {
	proto  cmn.ProtocolConfig
	buffer int // bufferSize in bytes, per cmn.WriterConfig.BufferSize()
	stats  cmn.StatsUpdater
	clock  cmn.Clock
	sender transport.Sender

	sentStates   []sentRecord
	receivedAcks []cos.IDRange
	nextMsgID    uint16

	outbound      *wire.SentState
	outboundBits  int
	currentFrame  *wire.FrameState
	frameTime     uint64
	centerZoneID  uint64
	haveOpenFrame bool
}

// New builds a Writer for one listener's outbound stream. EndMessage hands
// each finished SentState to sender directly (spec.md §4.8: "hands it to
// the transport as an opaque message").
func New(cfg cmn.WriterConfig, proto cmn.ProtocolConfig, clock cmn.Clock, sender transport.Sender, stats cmn.StatsUpdater) *Writer {
	if stats == nil {
		stats = cmn.NopStats{}
	}
	return &Writer{proto: proto, buffer: cfg.BufferSize(), stats: stats, clock: clock, sender: sender, nextMsgID: 1}
}

func (w *Writer) bitsRemaining() int {
	return w.buffer*8 - w.outboundBits
}

func (w *Writer) ensureOpenMessage() {
	if w.outbound == nil {
		w.outbound = &wire.SentState{AckRanges: append([]cos.IDRange(nil), w.receivedAcks...)}
		w.outboundBits = w.outbound.HeaderBitSize() + 1 // + terminator bit reserved
	}
}

// StartFrame closes any currently open frame and opens a new message if
// none is open (spec.md §4.8).
func (w *Writer) StartFrame(time uint64, centerZoneID uint64) error {
	if w.haveOpenFrame {
		if err := w.EndFrame(); err != nil {
			return err
		}
	}
	w.ensureOpenMessage()
	w.frameTime = time
	w.centerZoneID = centerZoneID
	w.currentFrame = nil
	w.haveOpenFrame = true
	return nil
}

// AddState lazily creates the current frame and appends state to it.
func (w *Writer) AddState(state *wire.ObjectState) error {
	if !w.haveOpenFrame {
		return ErrNoOpenMessage
	}
	if w.currentFrame == nil {
		w.currentFrame = &wire.FrameState{Time: w.frameTime, ColumnID: w.centerZoneID}
	}
	w.currentFrame.States = append(w.currentFrame.States, state)
	return nil
}

// EndFrame is the splitter (spec.md §4.8): it appends the accumulated
// frame to the outbound message, opening new messages and splitting the
// frame as many times as necessary to respect the configured buffer size.
func (w *Writer) EndFrame() error {
	if !w.haveOpenFrame {
		return ErrNoOpenMessage
	}
	w.haveOpenFrame = false
	frame := w.currentFrame
	w.currentFrame = nil
	if frame == nil {
		return nil
	}

	for {
		size := frame.BitSize(w.proto) + 1 // + continuation marker
		if size < w.bitsRemaining() {
			w.outbound.Frames = append(w.outbound.Frames, frame)
			w.outboundBits += size
			return nil
		}
		if len(w.outbound.Frames) > 0 {
			if _, err := w.EndMessage(); err != nil {
				return err
			}
			w.ensureOpenMessage()
		}
		limit := w.bitsRemaining() - 1 // reserve the continuation marker
		tail, err := frame.Split(w.proto, limit)
		if err != nil {
			return err
		}
		w.outbound.Frames = append(w.outbound.Frames, frame)
		w.outboundBits += frame.BitSize(w.proto) + 1
		if tail == nil {
			return nil
		}
		frame = tail
	}
}

// EndMessage stamps the open outbound SentState with a fresh message id and
// the current time, serializes it, records it in sentStates, and hands it
// to the transport as an opaque ObjectStateMessage (spec.md §4.8).
func (w *Writer) EndMessage() (uint16, error) {
	if w.outbound == nil {
		return 0, ErrNoOpenMessage
	}
	if len(w.outbound.AckRanges) > wire.MaxAckRanges {
		return 0, ErrProtocolOverflow
	}

	bw := bitio.NewWriterSize(w.buffer)
	if err := wire.EncodeSentState(bw, w.proto, w.outbound); err != nil {
		return 0, err
	}
	buf := bw.Close()

	id := w.nextMsgID
	w.nextMsgID++
	if w.nextMsgID == 0 {
		w.nextMsgID = 1
	}
	sent := w.outbound
	w.sentStates = append(w.sentStates, sentRecord{messageID: id, state: sent})
	w.outbound = nil
	w.outboundBits = 0

	var now uint64
	if w.clock != nil {
		now = uint64(w.clock.NanoTime())
	}
	if w.sender != nil {
		err := w.sender.Send(&transport.Message{
			Class:       transport.ClassObjectState,
			ObjectState: &transport.ObjectStatePayload{ID: id, Time: now, Payload: buf},
		})
		if err != nil {
			nlog.Warningf("writer: send of message %d dropped: %v", id, err)
		}
	}

	w.stats.Add("zonerep.writer.sent.size", int64(len(buf)))
	w.stats.Inc("zonerep.writer.sent.n")
	return id, nil
}

// Flush closes any still-open outbound message with at least one frame
// (spec.md §4.6 "writer.flush()" on endFrameBlock). It is a no-op if there
// is nothing pending.
func (w *Writer) Flush() error {
	if w.outbound == nil || len(w.outbound.Frames) == 0 {
		return nil
	}
	_, err := w.EndMessage()
	return err
}

// AckSentState implements spec.md §4.8's ackSentState: walks sentStates
// from the head looking for messageID.
func (w *Writer) AckSentState(messageID uint16) *wire.SentState {
	for i := 0; i < len(w.sentStates); i++ {
		rec := w.sentStates[i]
		if rec.messageID == messageID {
			for _, rg := range rec.state.AckRanges {
				w.removeAckRange(rg)
			}
			w.addReceivedAck(messageID)
			// drop the match together with every older entry before it.
			w.sentStates = w.sentStates[i+1:]
			w.checkWatchdogs()
			return rec.state
		}
		if cos.SeqBefore(messageID, rec.messageID) {
			// encountered a newer entry first: our ack is stale/out of order.
			return nil
		}
		// older entries are superseded; they are dropped either with the
		// match above or below once the loop exhausts without a match.
	}
	// no entry matched and none is newer than messageID (or the list was
	// empty): every remaining entry is older and is dropped as superseded.
	w.pruneOlderThan(messageID)
	return nil
}

func (w *Writer) pruneOlderThan(messageID uint16) {
	kept := w.sentStates[:0]
	for _, rec := range w.sentStates {
		if cos.SeqBefore(rec.messageID, messageID) {
			continue
		}
		kept = append(kept, rec)
	}
	w.sentStates = kept
}

func (w *Writer) addReceivedAck(id uint16) {
	for i, rg := range w.receivedAcks {
		if rg.Max+1 == id {
			w.receivedAcks[i].Max = id
			return
		}
		if rg.Min == id+1 {
			w.receivedAcks[i].Min = id
			return
		}
	}
	w.receivedAcks = append(w.receivedAcks, cos.IDRange{Min: id, Max: id})
}

func (w *Writer) removeAckRange(target cos.IDRange) {
	out := w.receivedAcks[:0]
	for _, rg := range w.receivedAcks {
		switch {
		case rg.Max < target.Min || rg.Min > target.Max:
			out = append(out, rg)
		case rg.Min >= target.Min && rg.Max <= target.Max:
			// fully covered, drop entirely
		case rg.Min < target.Min && rg.Max > target.Max:
			out = append(out, cos.IDRange{Min: rg.Min, Max: target.Min - 1})
			out = append(out, cos.IDRange{Min: target.Max + 1, Max: rg.Max})
		case rg.Min < target.Min:
			out = append(out, cos.IDRange{Min: rg.Min, Max: target.Min - 1})
		default:
			out = append(out, cos.IDRange{Min: target.Max + 1, Max: rg.Max})
		}
	}
	w.receivedAcks = out
}

func (w *Writer) checkWatchdogs() {
	if len(w.receivedAcks) > wire.MaxAckRanges {
		nlog.Errorf("writer: fragmented ack range count %d exceeds protocol limit", len(w.receivedAcks))
		w.stats.Inc("zonerep.writer.ack.overflow.n")
	}
	span := 0
	for _, rg := range w.receivedAcks {
		span += int(rg.Max-rg.Min) + 1
	}
	if span > 128 {
		nlog.Warningf("writer: receivedAcks spans %d ids, beyond the healthy 128 threshold", span)
	}
	if w.outbound != nil {
		if w.outbound.HeaderBitSize() > w.buffer*8 {
			nlog.Errorf("writer: ack header alone (%d bits) exceeds buffer size (%d bytes)", w.outbound.HeaderBitSize(), w.buffer)
		}
	}
}
