package cos

// IDRange is an inclusive [Min, Max] range of 16-bit message/ack ids, used
// to represent the SentState ack array and the receiver/writer's
// superseded-range bookkeeping compactly (spec.md §3, §4.8, §4.9).
type IDRange struct {
	Min, Max uint16
}

// Contains reports whether id falls within the inclusive range.
func (r IDRange) Contains(id uint16) bool { return id >= r.Min && id <= r.Max }

// SeqBefore implements the 16-bit wraparound "is a before b" rule from
// spec.md §6: if |a-b| > 32000 the smaller value is considered later
// (it wrapped around).
func SeqBefore(a, b uint16) bool {
	d := int32(a) - int32(b)
	if d < 0 {
		d = -d
	}
	if d > 32000 {
		return a > b
	}
	return a < b
}

// SeqAfterOrEqual is the complement used by ack-matching loops.
func SeqAfterOrEqual(a, b uint16) bool {
	return a == b || !SeqBefore(a, b)
}
