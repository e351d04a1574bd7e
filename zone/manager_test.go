package zone_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/orbitalnet/zonerep/cmn"
	"github.com/orbitalnet/zonerep/zone"
)

var _ = Describe("Manager frame lifecycle", func() {
	var (
		grid *zone.Grid
		m    *zone.Manager
		zcfg cmn.ZoneConfig
	)

	BeforeEach(func() {
		grid = zone.NewGrid(10, 10, 10)
		zcfg = cmn.ZoneConfig{RangeKind: cmn.RangeOct}
		m = zone.New(grid, zcfg, 8, nil, nil)
		m.EnableHistoryCollection(true)
	})

	Describe("a single entity moving through one frame", func() {
		It("produces exactly one StateFrame per committed frame", func() {
			m.BeginUpdate(100)
			m.UpdateEntity(1, [3]float64{1, 1, 1}, [4]float64{0, 0, 0, 1}, false, 0,
				[3]float64{1, 1, 1}, [3]float64{1, 1, 1})
			m.EndUpdate()

			frames := m.PurgeState()
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Time).To(Equal(uint64(100)))
			Expect(frames[0].Blocks).NotTo(BeEmpty())
		})

		It("returns nothing a second time until another frame commits", func() {
			m.BeginUpdate(100)
			m.UpdateEntity(1, [3]float64{1, 1, 1}, [4]float64{0, 0, 0, 1}, false, 0,
				[3]float64{1, 1, 1}, [3]float64{1, 1, 1})
			m.EndUpdate()
			m.PurgeState()

			Expect(m.PurgeState()).To(BeEmpty())
		})
	})

	Describe("multiple frames accumulate in order", func() {
		It("purges one StateFrame per historical time, oldest first", func() {
			for i, t := range []uint64{100, 150, 200} {
				m.BeginUpdate(t)
				m.UpdateEntity(1, [3]float64{float64(i), 0, 0}, [4]float64{0, 0, 0, 1}, false, 0,
					[3]float64{0, 0, 0}, [3]float64{0, 0, 0})
				m.EndUpdate()
			}

			frames := m.PurgeState()
			Expect(frames).To(HaveLen(3))
			Expect(frames[0].Time).To(Equal(uint64(100)))
			Expect(frames[1].Time).To(Equal(uint64(150)))
			Expect(frames[2].Time).To(Equal(uint64(200)))
		})
	})

	Describe("no-change heartbeat replay", func() {
		It("keeps replaying the last known pose for an entity that receives no update", func() {
			m.BeginUpdate(100)
			m.UpdateEntity(1, [3]float64{5, 5, 5}, [4]float64{0, 0, 0, 1}, false, 0,
				[3]float64{5, 5, 5}, [3]float64{5, 5, 5})
			m.EndUpdate()

			// A second frame in which entity 1 receives no UpdateEntity call at all.
			m.BeginUpdate(150)
			m.EndUpdate()

			frames := m.PurgeState()
			Expect(frames).To(HaveLen(2))
			Expect(frames[1].Blocks).NotTo(BeEmpty())

			found := false
			for _, b := range frames[1].Blocks {
				for _, u := range b.Block.Updates {
					if u.ID == 1 {
						found = true
						Expect(u.Pos).To(Equal([3]float64{5, 5, 5}))
					}
				}
			}
			Expect(found).To(BeTrue(), "expected the heartbeat frame to replay entity 1's last pose")
		})
	})

	Describe("zone eviction", func() {
		It("evicts a zone once it is both idle and childless", func() {
			m.BeginUpdate(100)
			m.UpdateEntity(1, [3]float64{1, 1, 1}, [4]float64{0, 0, 0, 1}, false, 0,
				[3]float64{1, 1, 1}, [3]float64{1, 1, 1})
			m.EndUpdate()
			Expect(m.ZoneCount()).To(BeNumerically(">", 0))

			m.BeginUpdate(150)
			m.RemoveEntity(1)
			m.EndUpdate()

			// One more empty frame lets the now-childless zone's open block
			// (the removal itself) drain out of history and the zone evict.
			m.PurgeState()
			m.BeginUpdate(200)
			m.EndUpdate()

			Expect(m.ZoneCount()).To(Equal(0))
		})

		It("keeps a zone alive while it still has children, even with no pose changes", func() {
			m.BeginUpdate(100)
			m.UpdateEntity(1, [3]float64{1, 1, 1}, [4]float64{0, 0, 0, 1}, false, 0,
				[3]float64{1, 1, 1}, [3]float64{1, 1, 1})
			m.EndUpdate()

			before := m.ZoneCount()
			m.BeginUpdate(150)
			m.EndUpdate()
			Expect(m.ZoneCount()).To(Equal(before))
		})
	})

	Describe("history collection disabled", func() {
		It("never accumulates frames for PurgeState to return", func() {
			m.EnableHistoryCollection(false)
			m.BeginUpdate(100)
			m.UpdateEntity(1, [3]float64{1, 1, 1}, [4]float64{0, 0, 0, 1}, false, 0,
				[3]float64{1, 1, 1}, [3]float64{1, 1, 1})
			m.EndUpdate()

			Expect(m.PurgeState()).To(BeEmpty())
		})
	})

	Describe("RemoveEntity while no frame is open", func() {
		It("defers the removal to the next BeginUpdate", func() {
			m.BeginUpdate(100)
			m.UpdateEntity(1, [3]float64{1, 1, 1}, [4]float64{0, 0, 0, 1}, false, 0,
				[3]float64{1, 1, 1}, [3]float64{1, 1, 1})
			m.EndUpdate()
			m.PurgeState()

			m.RemoveEntity(1) // no frame open right now

			m.BeginUpdate(150)
			m.EndUpdate()

			frames := m.PurgeState()
			Expect(frames).NotTo(BeEmpty())
			removed := false
			for _, f := range frames {
				for _, b := range f.Blocks {
					for _, r := range b.Block.Removes {
						if r == 1 {
							removed = true
						}
					}
				}
			}
			Expect(removed).To(BeTrue(), "expected the deferred removal to surface in the next frame's blocks")
		})
	})
})
