package listener

import (
	"testing"

	"github.com/orbitalnet/zonerep/cmn"
	"github.com/orbitalnet/zonerep/transport"
	"github.com/orbitalnet/zonerep/zone"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NanoTime() int64 { return f.t }

type fakeSender struct{ sent []*transport.Message }

func (s *fakeSender) Send(m *transport.Message) error {
	s.sent = append(s.sent, m)
	return nil
}

func TestListenerDeliversObjectIntoWriterOutput(t *testing.T) {
	grid := zone.NewGrid(32, 32, 32)
	proto := cmn.ProtocolConfig{IDBitSize: 64, ZoneIDBitSize: 8, PositionBits: 24, RotationBits: 12}
	wcfg := cmn.WriterConfig{MTU: 1500, UDPOverhead: 50, FrameOverhead: 5}
	sender := &fakeSender{}

	l := New(grid, 1, proto, wcfg, &fakeClock{}, sender, 7, nil)

	k := grid.KeyAt(0, 0, 0)
	entered, _ := l.zones.SetCenter(k)
	_ = entered

	block := &zone.StateBlock{
		Time: 1000,
		Updates: []zone.Update{
			{ID: 7, Pos: [3]float64{5, 0, 5}, Rot: [4]float64{0, 0, 0, 1}},
		},
	}
	zoneID, ok := l.zones.ZoneID(k)
	if !ok {
		t.Fatalf("expected key to be in window")
	}
	l.StateChanged(uint32(zoneID), block)

	l.EndFrame(1000)
	l.EndFrameBlock()

	if len(sender.sent) == 0 {
		t.Fatalf("expected at least one message sent")
	}
	msg := sender.sent[0]
	if msg.Class != transport.ClassObjectState {
		t.Fatalf("expected ClassObjectState message, got %v", msg.Class)
	}
}

func TestListenerIgnoresBlocksForUnwatchedZones(t *testing.T) {
	grid := zone.NewGrid(32, 32, 32)
	proto := cmn.ProtocolConfig{IDBitSize: 64, ZoneIDBitSize: 8, PositionBits: 24, RotationBits: 12}
	wcfg := cmn.WriterConfig{MTU: 1500, UDPOverhead: 50, FrameOverhead: 5}
	sender := &fakeSender{}
	l := New(grid, 1, proto, wcfg, &fakeClock{}, sender, 7, nil)

	// Never set a center, so ZoneID lookups fail and Deliver is a no-op.
	far := grid.KeyAt(100, 100, 100)
	block := &zone.StateBlock{Time: 1000, Updates: []zone.Update{{ID: 7, Pos: [3]float64{1, 1, 1}}}}
	l.Deliver(far, block)

	l.EndFrame(1000)
	l.EndFrameBlock()

	if len(sender.sent) != 0 {
		t.Fatalf("expected no messages for an object never observed, got %d", len(sender.sent))
	}
}
