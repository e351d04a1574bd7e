package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/orbitalnet/zonerep/cmn"
	"github.com/orbitalnet/zonerep/zone"
)

type fakeListener struct {
	mu       sync.Mutex
	watching map[int64]zone.Key
	pending  []zone.Key
	delivers int
	frames   int
}

func newFakeListener() *fakeListener {
	return &fakeListener{watching: make(map[int64]zone.Key)}
}

func (f *fakeListener) Watch(k zone.Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.watching[k.LongID()]; !ok {
		f.watching[k.LongID()] = k
		f.pending = append(f.pending, k)
	}
}

func (f *fakeListener) ZoneTransitions() (entered, exited []zone.Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entered = f.pending
	f.pending = nil
	return entered, nil
}

func (f *fakeListener) BeginFrame(uint64)      {}
func (f *fakeListener) EndFrame(uint64) {
	f.mu.Lock()
	f.frames++
	f.mu.Unlock()
}
func (f *fakeListener) BeginFrameBlock() {}
func (f *fakeListener) EndFrameBlock()   {}

func (f *fakeListener) Deliver(k zone.Key, b *zone.StateBlock) {
	f.mu.Lock()
	f.delivers++
	f.mu.Unlock()
}

func TestCollectorDeliversOnlyToWatchingListeners(t *testing.T) {
	grid := zone.NewGrid(32, 32, 32)
	mgr := zone.New(grid, cmn.ZoneConfig{RangeKind: cmn.RangeOct}, 8, nil, nil)

	cfg := cmn.CollectorConfig{PeriodMillis: 10, HistoryBacklog: 8}
	c := New(mgr, cfg, nil)

	l := newFakeListener()
	k := grid.KeyAt(0, 0, 0)
	l.Watch(k)
	c.RegisterListener(l)

	mgr.EnableHistoryCollection(true)
	mgr.BeginUpdate(1000)
	mgr.UpdateEntity(7, [3]float64{5, 0, 5}, [4]float64{}, false, 0, [3]float64{0, 0, 0}, [3]float64{10, 10, 10})
	mgr.EndUpdate()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.delivers != 1 {
		t.Fatalf("expected 1 delivery to the watching listener, got %d", l.delivers)
	}
	if l.frames != 1 {
		t.Fatalf("expected 1 EndFrame call, got %d", l.frames)
	}
}

func TestCollectorSkipsListenersNotWatching(t *testing.T) {
	grid := zone.NewGrid(32, 32, 32)
	mgr := zone.New(grid, cmn.ZoneConfig{RangeKind: cmn.RangeOct}, 8, nil, nil)
	cfg := cmn.CollectorConfig{PeriodMillis: 10, HistoryBacklog: 8}
	c := New(mgr, cfg, nil)

	l := newFakeListener() // watches nothing
	c.RegisterListener(l)

	mgr.EnableHistoryCollection(true)
	mgr.BeginUpdate(1000)
	mgr.UpdateEntity(7, [3]float64{5, 0, 5}, [4]float64{}, false, 0, [3]float64{0, 0, 0}, [3]float64{10, 10, 10})
	mgr.EndUpdate()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.delivers != 0 {
		t.Fatalf("expected no deliveries, got %d", l.delivers)
	}
}
