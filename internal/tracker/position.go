package tracker

import (
	"fmt"
	"sort"
)

// PositionMap maps every rune index of the plain-text projection to its
// position in the document. Positions are strictly increasing.
type PositionMap struct {
	positions []int
	end       int
}

// NewPositionMap builds a map from per-character positions and the position
// just after the last character.
func NewPositionMap(positions []int, end int) PositionMap {
	return PositionMap{positions: positions, end: end}
}

// IdentityMap is the map of a plain-text document of n runes.
func IdentityMap(n int) PositionMap {
	positions := make([]int, n)
	for i := range positions {
		positions[i] = i
	}
	return PositionMap{positions: positions, end: n}
}

// Len returns the plain-text length in runes.
func (m PositionMap) Len() int {
	return len(m.positions)
}

// At returns the document position of the character at index i.
func (m PositionMap) At(i int) int {
	return m.positions[i]
}

// End returns the document position after the last character.
func (m PositionMap) End() int {
	return m.end
}

// Range resolves the non-empty plain-text range [offset, offset+length) to
// document positions. ok is false when the range is empty or out of bounds.
func (m PositionMap) Range(offset, length int) (from, to int, ok bool) {
	if offset < 0 || length <= 0 || offset+length > len(m.positions) {
		return 0, 0, false
	}
	return m.positions[offset], m.positions[offset+length-1] + 1, true
}

// EditRange resolves a plain-text edit range, which may be empty (an
// insertion point) and may start at the end of the text.
func (m PositionMap) EditRange(offset, length int) (from, to int, err error) {
	if offset < 0 || length < 0 || offset+length > len(m.positions) {
		return 0, 0, fmt.Errorf("%w: offset=%d length=%d size=%d", ErrInvalidRange, offset, length, len(m.positions))
	}
	if length > 0 {
		from, to, _ = m.Range(offset, length)
		return from, to, nil
	}
	if offset == len(m.positions) {
		return m.end, m.end, nil
	}
	return m.positions[offset], m.positions[offset], nil
}

// Offset returns the index of the first character at or after pos.
func (m PositionMap) Offset(pos int) int {
	return sort.SearchInts(m.positions, pos)
}
