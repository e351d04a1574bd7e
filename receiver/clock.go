// Package receiver implements StateReceiver (spec.md §4.9): the client
// side of the ACK protocol, plus RemoteClock (spec.md §4.11).
package receiver

import "github.com/orbitalnet/zonerep/cmn"

const maxDriftSamples = 100

// RemoteClock estimates the server's clock from the high-water time
// carried by inbound messages (spec.md §4.11). GetTime returns
// nanoTime()+drift+offset, clamped to never decrease across calls.
type RemoteClock struct {
	local  cmn.Clock
	offset int64 // user-chosen negative bias, e.g. -100ms in nanoseconds

	drift   int64
	samples int

	lastSent     int64 // last observed message send-side high-water time
	lastGetTime  int64
	haveGetTime  bool
	lastPingSent int64
}

// NewRemoteClock builds a RemoteClock reading wall time from local and
// applying offsetNanos as the interpolation-window bias (spec.md §4.11;
// default -100ms per cmn.WriterConfig.ClockOffsetMS).
func NewRemoteClock(local cmn.Clock, offsetNanos int64) *RemoteClock {
	return &RemoteClock{local: local, offset: offsetNanos}
}

// Observe folds a new high-water server time into the running drift average
// (spec.md §4.11: "updated as a running average over up to 100 samples");
// a time not above the previous high-water mark is ignored.
func (c *RemoteClock) Observe(serverTime uint64) {
	if c.samples > 0 && int64(serverTime) <= c.lastSent {
		return
	}
	c.lastSent = int64(serverTime)
	now := c.local.NanoTime()
	sample := int64(serverTime) - now
	if c.samples == 0 {
		c.drift = sample
		c.samples = 1
		return
	}
	n := c.samples
	if n < maxDriftSamples {
		n++
	}
	c.drift += (sample - c.drift) / int64(n)
	c.samples = n
}

// GetTime returns the estimated remote time, monotonically clamped so it
// never decreases across calls (spec.md §4.11).
func (c *RemoteClock) GetTime() int64 {
	t := c.local.NanoTime() + c.drift + c.offset
	if c.haveGetTime && t < c.lastGetTime {
		t = c.lastGetTime
	}
	c.lastGetTime = t
	c.haveGetTime = true
	return t
}

// PingTracker estimates round-trip time from the last ping exchange, in
// nanoseconds; RTT is zero if no ping has completed yet. PingSent/PingEchoed
// bracket one exchange (the receiver's ACK echoes the server's send
// time — spec.md §4.9 step 2 — giving the server a round-trip sample
// once it sees the echo come back).
type PingTracker struct {
	local cmn.Clock
	sent  int64
	have  bool
	rtt   int64
}

// NewPingTracker builds a PingTracker reading wall time from local.
func NewPingTracker(local cmn.Clock) *PingTracker {
	return &PingTracker{local: local}
}

// PingSent records that a message was just sent, starting an RTT sample.
func (p *PingTracker) PingSent() {
	p.sent = p.local.NanoTime()
	p.have = true
}

// PingEchoed completes the RTT sample when the corresponding ack arrives.
func (p *PingTracker) PingEchoed() {
	if !p.have {
		return
	}
	p.rtt = p.local.NanoTime() - p.sent
	p.have = false
}

// RTT returns the last completed round-trip sample.
func (p *PingTracker) RTT() int64 { return p.rtt }
