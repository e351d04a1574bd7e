// Package collector implements StateCollector (spec.md §4.6): a
// single-threaded ticker that periodically purges the zone manager's
// history and fans each resulting StateFrame out to the listeners
// watching the zones it touches.
//
// Grounded on the teacher's hk package doc comment ("mechanism for
// registering cleanup functions invoked at specified intervals") and its
// Run()/WaitStarted() shape; only hk's test file survived retrieval so the
// tick loop body below is written fresh against spec.md §4.6.
package collector

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orbitalnet/zonerep/cmn"
	"github.com/orbitalnet/zonerep/zone"
)

// Listener is the collector's delivery target (spec.md §4.6/§4.7). The
// server-side per-client replication engine implements it.
type Listener interface {
	// ZoneTransitions reports the zones this listener entered/exited since
	// its last call, so the collector can update its zoneKey->listeners
	// index before delivering the next frame.
	ZoneTransitions() (entered, exited []zone.Key)
	BeginFrame(t uint64)
	Deliver(k zone.Key, block *zone.StateBlock)
	EndFrame(t uint64)
	BeginFrameBlock()
	EndFrameBlock()
}

// ListenerID identifies a registered Listener for later removal.
type ListenerID uint64

// Collector is StateCollector: a ticker over a zone.Manager (spec.md
// §4.6).
type Collector struct {
	manager *zone.Manager
	period  time.Duration
	idle    time.Duration
	workers int
	stats   cmn.StatsUpdater

	mu        sync.Mutex
	listeners map[ListenerID]Listener
	zoneIdx   map[int64]map[ListenerID]struct{}
	removed   []ListenerID
	nextID    ListenerID

	started chan struct{}
	once    sync.Once
}

// New builds a Collector over manager using cfg's period/idle-sleep/fanout
// settings (spec.md §4.6, cmn.CollectorConfig).
func New(manager *zone.Manager, cfg cmn.CollectorConfig, stats cmn.StatsUpdater) *Collector {
	if stats == nil {
		stats = cmn.NopStats{}
	}
	idle := time.Duration(cfg.IdleSleepMillis) * time.Millisecond
	return &Collector{
		manager:   manager,
		period:    cfg.Period(),
		idle:      idle,
		workers:   cfg.FanoutWorkers,
		stats:     stats,
		listeners: make(map[ListenerID]Listener),
		zoneIdx:   make(map[int64]map[ListenerID]struct{}),
		started:   make(chan struct{}),
	}
}

// RegisterListener adds l to the fan-out set.
func (c *Collector) RegisterListener(l Listener) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = l
	return id
}

// RemoveListener queues l for removal; it is unwatched from every zone on
// the next tick (spec.md §4.6 "drains the removed-listener queue").
func (c *Collector) RemoveListener(id ListenerID) {
	c.mu.Lock()
	c.removed = append(c.removed, id)
	c.mu.Unlock()
}

// WaitStarted blocks until Run has entered its loop.
func (c *Collector) WaitStarted() { <-c.started }

// Run enables history collection, then ticks at the configured period
// until ctx is cancelled, at which point it disables history collection
// and returns (spec.md §4.6 startup/shutdown).
func (c *Collector) Run(ctx context.Context) error {
	c.manager.EnableHistoryCollection(true)
	defer c.manager.EnableHistoryCollection(false)

	c.once.Do(func() { close(c.started) })

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.tick(ctx); err != nil {
				return err
			}
			if c.idle > 0 {
				time.Sleep(c.idle)
			}
		}
	}
}

func (c *Collector) tick(ctx context.Context) error {
	c.drainRemoved()

	frames := c.manager.PurgeState()
	if len(frames) == 0 {
		return nil
	}

	c.mu.Lock()
	all := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		all = append(all, l)
	}
	c.mu.Unlock()

	for _, l := range all {
		l.BeginFrameBlock()
	}
	for _, f := range frames {
		if err := c.publishFrame(ctx, f); err != nil {
			return err
		}
	}
	for _, l := range all {
		l.EndFrameBlock()
	}
	return nil
}

func (c *Collector) drainRemoved() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.removed) == 0 {
		return
	}
	for _, id := range c.removed {
		delete(c.listeners, id)
		for lid, set := range c.zoneIdx {
			delete(set, id)
			if len(set) == 0 {
				delete(c.zoneIdx, lid)
			}
		}
	}
	c.removed = nil
}

func (c *Collector) publishFrame(ctx context.Context, frame *zone.StateFrame) error {
	c.mu.Lock()
	for id, l := range c.listeners {
		entered, exited := l.ZoneTransitions()
		for _, k := range entered {
			lid := k.LongID()
			set, ok := c.zoneIdx[lid]
			if !ok {
				set = make(map[ListenerID]struct{})
				c.zoneIdx[lid] = set
			}
			set[id] = struct{}{}
		}
		for _, k := range exited {
			lid := k.LongID()
			if set, ok := c.zoneIdx[lid]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(c.zoneIdx, lid)
				}
			}
		}
	}
	all := make([]Listener, 0, len(c.listeners))
	byID := make(map[ListenerID]Listener, len(c.listeners))
	for id, l := range c.listeners {
		all = append(all, l)
		byID[id] = l
	}
	zoneIdx := c.zoneIdx
	c.mu.Unlock()

	for _, l := range all {
		l.BeginFrame(frame.Time)
	}

	// Partition this frame's blocks by listener, not by zone: a listener
	// whose window spans multiple active zones in the same frame must see
	// its Deliver calls run sequentially on one goroutine, since Deliver
	// mutates state (idindex, shared space, self position) with no lock of
	// its own (spec.md §5: "partitioning listeners, not zones, across
	// workers").
	perListener := make(map[ListenerID][]zone.ZoneBlock, len(byID))
	for _, block := range frame.Blocks {
		set, ok := zoneIdx[block.Key.LongID()]
		if !ok {
			continue
		}
		for id := range set {
			perListener[id] = append(perListener[id], block)
		}
	}

	workers := c.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for id, blocks := range perListener {
		l, ok := byID[id]
		if !ok {
			continue
		}
		l, blocks := l, blocks
		g.Go(func() error {
			for _, b := range blocks {
				l.Deliver(b.Key, b.Block)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.stats.Inc("zonerep.collector.frames.n")

	for _, l := range all {
		l.EndFrame(frame.Time)
	}
	return nil
}
