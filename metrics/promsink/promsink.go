// Package promsink adapts cmn.StatsUpdater onto
// github.com/prometheus/client_golang, following the counter/latency/size
// naming convention documented in the teacher's stats package
// ("*.n" - counter, "*.size" - bytes, "*.ns" - latency in nanoseconds).
package promsink

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/orbitalnet/zonerep/cmn"
)

// Sink is a cmn.StatsUpdater backed by lazily-created, cached prometheus
// vectors, one per distinct stat name suffix class (".n", ".size", ".ns",
// or a plain counter/gauge fallback).
type Sink struct {
	reg  prometheus.Registerer
	ns   string
	cnt  map[string]prometheus.Counter
	hist map[string]prometheus.Histogram
}

// New builds a Sink registering metrics under namespace ns into reg.
func New(reg prometheus.Registerer, ns string) *Sink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Sink{
		reg:  reg,
		ns:   ns,
		cnt:  make(map[string]prometheus.Counter),
		hist: make(map[string]prometheus.Histogram),
	}
}

// Inc implements cmn.StatsUpdater.
func (s *Sink) Inc(name string) { s.Add(name, 1) }

// Add implements cmn.StatsUpdater: names ending in ".ns" are recorded as
// histogram observations (nanoseconds), everything else as a monotonic
// counter.
func (s *Sink) Add(name string, val int64) {
	if strings.HasSuffix(name, ".ns") {
		s.histogramFor(name).Observe(float64(val))
		return
	}
	s.counterFor(name).Add(float64(val))
}

// AddLatency implements cmn.StatsUpdater, recording d directly into the
// name's histogram regardless of suffix.
func (s *Sink) AddLatency(name string, d int64) {
	s.histogramFor(name).Observe(float64(d))
}

func (s *Sink) counterFor(name string) prometheus.Counter {
	if c, ok := s.cnt[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: s.ns,
		Name:      metricName(name),
		Help:      "zonerep counter " + name,
	})
	s.reg.MustRegister(c)
	s.cnt[name] = c
	return c
}

func (s *Sink) histogramFor(name string) prometheus.Histogram {
	if h, ok := s.hist[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: s.ns,
		Name:      metricName(name),
		Help:      "zonerep latency " + name,
		Buckets:   prometheus.ExponentialBuckets(1000, 4, 12), // ns, up to ~67ms
	})
	s.reg.MustRegister(h)
	s.hist[name] = h
	return h
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_").Replace(name)
}

var _ cmn.StatsUpdater = (*Sink)(nil)
