package document

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"penwise/internal/tracker"
)

// Doc is a mutable ProseMirror document. Text blocks are joined by "\n" in
// the plain-text projection and a hardBreak projects to "\n" as well.
type Doc struct {
	root *Node
	proj *projection
}

type projection struct {
	text      string
	positions []int
	end       int
}

func New(root *Node) *Doc {
	return &Doc{root: root}
}

func (d *Doc) Root() *Node {
	return d.root
}

// Size is the content size of the document in positions.
func (d *Doc) Size() int {
	return contentSize(d.root.Content)
}

func (d *Doc) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.root)
}

// PlainText returns the flat projection used as the analysis coordinate space.
func (d *Doc) PlainText() string {
	return d.project().text
}

// PositionMap maps projection indexes to document positions.
func (d *Doc) PositionMap() tracker.PositionMap {
	p := d.project()
	return tracker.NewPositionMap(p.positions, p.end)
}

func (d *Doc) project() *projection {
	if d.proj != nil {
		return d.proj
	}
	w := &projector{}
	w.walk(d.root.Content, 0)
	d.proj = &projection{
		text:      w.text.String(),
		positions: w.positions,
		end:       w.lastBlockEnd,
	}
	return d.proj
}

type projector struct {
	text         strings.Builder
	positions    []int
	blocks       int
	lastBlockEnd int
}

func (p *projector) emit(r rune, pos int) {
	p.text.WriteRune(r)
	p.positions = append(p.positions, pos)
}

// walk projects nodes whose content starts at pos and returns the position
// after them.
func (p *projector) walk(nodes []*Node, pos int) int {
	for _, n := range nodes {
		switch {
		case n.isText():
			for _, r := range n.Text {
				p.emit(r, pos)
				pos++
			}
		case n.isLeaf():
			if n.Type == "hardBreak" {
				p.emit('\n', pos)
			}
			pos++
		case n.isTextblock():
			if p.blocks > 0 {
				p.emit('\n', p.lastBlockEnd)
			}
			end := p.walk(n.Content, pos+1)
			p.blocks++
			p.lastBlockEnd = end
			pos = end + 1
		default:
			pos = p.walk(n.Content, pos+1) + 1
		}
	}
	return pos
}

// Replace writes text over [from, to). Both positions must lie inside the
// content of the same text block. Inserted text takes the marks of the
// first replaced character, or of the character before an insertion point;
// newlines become hard breaks.
func (d *Doc) Replace(from, to int, text string) (tracker.StepMap, error) {
	if from < 0 || to < from || to > d.Size() {
		return tracker.StepMap{}, fmt.Errorf("%w: [%d,%d) size=%d", ErrOutOfRange, from, to, d.Size())
	}
	block, start := findTextblock(d.root.Content, 0, from, to)
	if block == nil {
		return tracker.StepMap{}, fmt.Errorf("%w: [%d,%d)", ErrUnsupportedRange, from, to)
	}

	block.Content = spliceInline(block.Content, start, from, to, text)
	d.proj = nil
	return tracker.NewStepMap(from, to-from, utf8.RuneCountInString(text)), nil
}

// findTextblock returns the text block whose content range contains both
// from and to, with the position its content starts at.
func findTextblock(nodes []*Node, pos, from, to int) (*Node, int) {
	for _, n := range nodes {
		size := n.size()
		if n.isText() || n.isLeaf() {
			pos += size
			continue
		}
		start, end := pos+1, pos+size-1
		if from >= start && to <= end {
			if n.isTextblock() {
				return n, start
			}
			if found, at := findTextblock(n.Content, start, from, to); found != nil {
				return found, at
			}
		}
		pos += size
	}
	return nil, 0
}

func spliceInline(children []*Node, start, from, to int, text string) []*Node {
	var before, after []*Node
	var marks []Mark
	marksFound := false
	pos := start
	for _, child := range children {
		size := child.size()
		cStart, cEnd := pos, pos+size
		pos = cEnd

		if child.isText() && !marksFound {
			if (from < to && cStart <= from && from < cEnd) || (from == to && cStart < from && from <= cEnd) {
				marks = child.Marks
				marksFound = true
			}
		}

		if !child.isText() {
			switch {
			case cEnd <= from:
				before = append(before, child)
			case cStart >= to:
				after = append(after, child)
			}
			continue
		}

		runes := []rune(child.Text)
		if cStart < from {
			cut := min(from, cEnd) - cStart
			before = append(before, &Node{Type: "text", Text: string(runes[:cut]), Marks: copyMarks(child.Marks)})
		}
		if cEnd > to {
			cut := max(to, cStart) - cStart
			after = append(after, &Node{Type: "text", Text: string(runes[cut:]), Marks: copyMarks(child.Marks)})
		}
	}

	out := make([]*Node, 0, len(before)+len(after)+1)
	out = append(out, before...)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out = append(out, &Node{Type: "hardBreak"})
		}
		if line != "" {
			out = append(out, &Node{Type: "text", Text: line, Marks: copyMarks(marks)})
		}
	}
	out = append(out, after...)
	return mergeText(out)
}

func mergeText(nodes []*Node) []*Node {
	merged := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.isText() && n.Text == "" {
			continue
		}
		if len(merged) > 0 {
			last := merged[len(merged)-1]
			if last.isText() && n.isText() && sameMarks(last.Marks, n.Marks) {
				last.Text += n.Text
				continue
			}
		}
		merged = append(merged, n)
	}
	return merged
}

// OffsetRange translates a plain-text edit range into document positions.
func (d *Doc) OffsetRange(offset, length int) (int, int, error) {
	return d.PositionMap().EditRange(offset, length)
}
