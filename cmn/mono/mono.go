// Package mono provides the monotonic nanosecond clock assumed by the
// replication engine (spec.md §1 lists the time source as an external
// collaborator; this is the reference implementation of it).
package mono

import "time"

var start = time.Now()

// NanoTime returns nanoseconds elapsed since process start. It never goes
// backwards: it is derived from time.Since, which uses the runtime's
// monotonic clock reading and is immune to wall-clock adjustments.
func NanoTime() int64 {
	return int64(time.Since(start))
}
