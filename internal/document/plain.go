package document

import (
	"fmt"
	"unicode/utf8"

	"penwise/internal/tracker"
)

// Plain is a flat text document whose positions equal rune offsets.
type Plain struct {
	runes []rune
}

func NewPlain(text string) *Plain {
	return &Plain{runes: []rune(text)}
}

func (p *Plain) PlainText() string {
	return string(p.runes)
}

func (p *Plain) PositionMap() tracker.PositionMap {
	return tracker.IdentityMap(len(p.runes))
}

func (p *Plain) Replace(from, to int, text string) (tracker.StepMap, error) {
	if from < 0 || to < from || to > len(p.runes) {
		return tracker.StepMap{}, fmt.Errorf("%w: [%d,%d) size=%d", ErrOutOfRange, from, to, len(p.runes))
	}
	inserted := []rune(text)
	next := make([]rune, 0, len(p.runes)-(to-from)+len(inserted))
	next = append(next, p.runes[:from]...)
	next = append(next, inserted...)
	next = append(next, p.runes[to:]...)
	p.runes = next
	return tracker.NewStepMap(from, to-from, utf8.RuneCountInString(text)), nil
}

func (p *Plain) OffsetRange(offset, length int) (int, int, error) {
	return p.PositionMap().EditRange(offset, length)
}
