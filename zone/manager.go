package zone

import (
	"sync"

	"github.com/orbitalnet/zonerep/cmn"
	"github.com/orbitalnet/zonerep/cmn/nlog"
)

type poseRecord struct {
	Pos       [3]float64
	Rot       [4]float64
	HasParent bool
	ParentID  uint64
}

// Manager maintains the set of live zones and, per object id, the ZoneRange
// it currently intersects; it drives the per-frame ingest/commit/purge
// lifecycle (spec.md §4.5). Its zones map and history are protected by a
// single mutex shared by every mutating call — a conservative superset of
// spec.md §5's narrower "endUpdate and purgeState share a lock" statement,
// chosen so updateEntity's zone-map inserts on the game thread can never
// race the collector thread's purgeState (see DESIGN.md).
type Manager struct {
	mu sync.Mutex

	grid      *Grid
	backlog   int
	rangeKind cmn.RangeKind
	resolver  cmn.EntityResolver
	stats     cmn.StatsUpdater

	zones  map[int64]*Zone
	ranges map[uint64]Range
	pose   map[uint64]poseRecord

	noUpdate       map[uint64]struct{}
	pendingRemoves []uint64
	inFrame        bool
	collecting     bool
	updateTime     uint64

	historyIndex []uint64
	historySize  int
}

// New builds a Manager over grid with the given zone/collector
// configuration.
func New(grid *Grid, zcfg cmn.ZoneConfig, backlog int, resolver cmn.EntityResolver, stats cmn.StatsUpdater) *Manager {
	if stats == nil {
		stats = cmn.NopStats{}
	}
	if backlog < 1 {
		backlog = 1
	}
	return &Manager{
		grid:         grid,
		backlog:      backlog,
		rangeKind:    zcfg.RangeKind,
		resolver:     resolver,
		stats:        stats,
		zones:        make(map[int64]*Zone),
		ranges:       make(map[uint64]Range),
		pose:         make(map[uint64]poseRecord),
		noUpdate:     make(map[uint64]struct{}),
		historyIndex: make([]uint64, backlog),
	}
}

// EnableHistoryCollection turns history accumulation on/off; the state
// collector enables it on startup and disables it on shutdown (spec.md
// §4.6).
func (m *Manager) EnableHistoryCollection(on bool) {
	m.mu.Lock()
	m.collecting = on
	m.mu.Unlock()
}

// BeginUpdate starts a new frame at time t (spec.md §4.5).
func (m *Manager) BeginUpdate(t uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateTime = t
	m.inFrame = true

	pending := make(map[uint64]struct{}, len(m.pendingRemoves))
	for _, id := range m.pendingRemoves {
		pending[id] = struct{}{}
	}
	m.noUpdate = make(map[uint64]struct{}, len(m.pose))
	for id := range m.pose {
		if _, skip := pending[id]; !skip {
			m.noUpdate[id] = struct{}{}
		}
	}

	for _, z := range m.zones {
		z.BeginUpdate(t)
	}

	deferred := m.pendingRemoves
	m.pendingRemoves = nil
	for _, id := range deferred {
		m.removeEntityLocked(id)
	}
}

// UpdateEntity classifies id's new bounds into zones, emits enter/leave
// events for zones its range changed into/out of, appends an update to
// every zone it now intersects, and records its last-known pose for later
// no-change replay (spec.md §4.5).
func (m *Manager) UpdateEntity(id uint64, pos [3]float64, rot [4]float64, hasParent bool, parentID uint64, boundsMin, boundsMax [3]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	minX, minY, minZ := m.grid.Classify(boundsMin)
	maxX, maxY, maxZ := m.grid.Classify(boundsMax)
	newRange := NewRange(m.rangeKind, [3]int32{minX, minY, minZ}, [3]int32{maxX, maxY, maxZ}, id, m.resolver)

	oldRange, hadOld := m.ranges[id]
	m.ranges[id] = newRange

	if !hadOld || !SameBounds(oldRange, newRange) {
		oldKeys := map[int64]Key{}
		if hadOld {
			for _, k := range oldRange.Zones(m.grid) {
				oldKeys[k.LongID()] = k
			}
		}
		newKeys := map[int64]Key{}
		for _, k := range newRange.Zones(m.grid) {
			newKeys[k.LongID()] = k
		}
		for lid, k := range newKeys {
			if _, ok := oldKeys[lid]; !ok {
				m.ensureZoneLocked(k).AddChild(id)
			}
		}
		for lid, k := range oldKeys {
			if _, ok := newKeys[lid]; !ok {
				if z, ok := m.zones[lid]; ok {
					z.RemoveChild(id)
				}
			}
		}
	}

	for _, k := range newRange.Zones(m.grid) {
		m.ensureZoneLocked(k).Update(parentID, hasParent, id, pos, rot)
	}

	delete(m.noUpdate, id)
	m.pose[id] = poseRecord{Pos: pos, Rot: rot, HasParent: hasParent, ParentID: parentID}
}

func (m *Manager) ensureZoneLocked(k Key) *Zone {
	lid := k.LongID()
	z, ok := m.zones[lid]
	if !ok {
		z = NewZone(k, m.backlog)
		// a zone never appears in a StateFrame at time T without having
		// received beginUpdate(T) (spec.md §4.5 invariant) — satisfy that
		// even for a zone created mid-frame, after beginUpdate(T) already
		// ran for the zones that existed at the time.
		z.BeginUpdate(m.updateTime)
		m.zones[lid] = z
	}
	return z
}

// EndUpdate closes the frame. When history collection is enabled (spec.md
// §4.5) it replays no-change heartbeats for every id that received no
// update this frame, advances the history index, commits every zone's open
// block, and evicts zones left both historyless and childless.
func (m *Manager) EndUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.collecting {
		m.inFrame = false
		return
	}

	for id := range m.noUpdate {
		pr, ok := m.pose[id]
		if !ok {
			continue
		}
		rng, ok := m.ranges[id]
		if !ok {
			continue
		}
		for _, k := range rng.Zones(m.grid) {
			m.ensureZoneLocked(k).Update(pr.ParentID, pr.HasParent, id, pr.Pos, pr.Rot)
		}
	}

	if m.historySize+1 >= m.backlog {
		nlog.Warningf("zone manager: history backlog full (size=%d) at time %d, dropping frame", m.backlog, m.updateTime)
		m.stats.Inc("zonerep.manager.history.dropped.n")
	} else {
		m.historyIndex[m.historySize] = m.updateTime
		m.historySize++
	}

	for lid, z := range m.zones {
		idle := z.CommitUpdate()
		if idle && z.ChildCount() == 0 {
			delete(m.zones, lid)
		}
	}

	m.inFrame = false
}

// PurgeState snapshots and clears every zone's history, merging blocks into
// one StateFrame per distinct historical time (spec.md §4.5).
func (m *Manager) PurgeState() []*StateFrame {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.historySize == 0 {
		return nil
	}
	frames := make([]*StateFrame, m.historySize)
	for i := 0; i < m.historySize; i++ {
		frames[i] = &StateFrame{Time: m.historyIndex[i]}
	}

	for _, z := range m.zones {
		blocks := z.PurgeHistory()
		h := 0
		for _, b := range blocks {
			for h < m.historySize && m.historyIndex[h] != b.Time {
				h++
			}
			if h >= m.historySize {
				break
			}
			frames[h].Merge(z.Key, b)
		}
	}

	m.historySize = 0
	return frames
}

// RemoveEntity removes an entity. If called while a frame is open it is
// applied immediately; otherwise it is deferred to the next BeginUpdate
// (spec.md §4.5).
func (m *Manager) RemoveEntity(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inFrame {
		m.pendingRemoves = append(m.pendingRemoves, id)
		return
	}
	m.removeEntityLocked(id)
}

func (m *Manager) removeEntityLocked(id uint64) {
	if rng, ok := m.ranges[id]; ok {
		for _, k := range rng.Zones(m.grid) {
			if z, exists := m.zones[k.LongID()]; exists {
				z.RemoveChild(id)
			}
		}
	}
	delete(m.ranges, id)
	delete(m.pose, id)
	delete(m.noUpdate, id)
}

// ZoneCount reports the number of currently live zones (diagnostics).
func (m *Manager) ZoneCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.zones)
}
