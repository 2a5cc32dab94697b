package tracker

// StepMap describes one document change as replaced ranges in the coordinates
// of the document before the change. Ranges are sorted and do not overlap.
type StepMap struct {
	ranges []stepRange
}

type stepRange struct {
	start   int
	oldSize int
	newSize int
}

// NewStepMap describes replacing oldSize positions at start with newSize.
func NewStepMap(start, oldSize, newSize int) StepMap {
	if oldSize == 0 && newSize == 0 {
		return StepMap{}
	}
	return StepMap{ranges: []stepRange{{start: start, oldSize: oldSize, newSize: newSize}}}
}

// Empty reports whether the step changed nothing.
func (m StepMap) Empty() bool {
	return len(m.ranges) == 0
}

// Map moves pos across the change. assoc decides which side a position at
// the edge of a replaced range sticks to: negative keeps it before inserted
// content, positive moves it after.
func (m StepMap) Map(pos, assoc int) int {
	diff := 0
	for _, r := range m.ranges {
		if r.start > pos {
			break
		}
		end := r.start + r.oldSize
		if pos <= end {
			side := assoc
			if r.oldSize > 0 {
				if pos == r.start {
					side = -1
				} else if pos == end {
					side = 1
				}
			}
			if side < 0 {
				return r.start + diff
			}
			return r.start + diff + r.newSize
		}
		diff += r.newSize - r.oldSize
	}
	return pos + diff
}

// Touches reports whether the change alters anything strictly inside
// [from, to). Insertions exactly at either edge do not count.
func (m StepMap) Touches(from, to int) bool {
	for _, r := range m.ranges {
		end := r.start + r.oldSize
		if r.oldSize == 0 {
			if r.start > from && r.start < to {
				return true
			}
			continue
		}
		if r.start < to && end > from {
			return true
		}
	}
	return false
}

// Mapping is a sequence of step maps applied in order.
type Mapping []StepMap

// Map moves pos through every step.
func (m Mapping) Map(pos, assoc int) int {
	for _, step := range m {
		pos = step.Map(pos, assoc)
	}
	return pos
}

// mapSpan maps [from, to) through every step. With invalidate set, a step
// touching the span's interior makes ok false.
func (m Mapping) mapSpan(from, to int, invalidate bool) (int, int, bool) {
	for _, step := range m {
		if invalidate && step.Touches(from, to) {
			return 0, 0, false
		}
		from = step.Map(from, 1)
		to = step.Map(to, -1)
	}
	return from, to, true
}
