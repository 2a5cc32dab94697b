// Package document models ProseMirror JSON documents as the editing surface
// for suggestion tracking: a plain-text projection, its position map and
// in-place text replacement.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"
)

// Node represents a node in the ProseMirror document tree
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark represents a text mark (formatting)
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

var (
	ErrInvalidDocument  = errors.New("invalid document")
	ErrUnsupportedRange = errors.New("range spans more than one text block")
	ErrOutOfRange       = errors.New("position out of range")
)

var leafTypes = map[string]struct{}{
	"hardBreak":      {},
	"image":          {},
	"horizontalRule": {},
}

var textblockTypes = map[string]struct{}{
	"paragraph": {},
	"heading":   {},
	"codeBlock": {},
}

func (n *Node) isText() bool {
	return n.Type == "text"
}

func (n *Node) isLeaf() bool {
	_, ok := leafTypes[n.Type]
	return ok
}

func (n *Node) isTextblock() bool {
	_, ok := textblockTypes[n.Type]
	return ok
}

// size is the number of positions the node occupies in its parent.
func (n *Node) size() int {
	switch {
	case n.isText():
		return utf8.RuneCountInString(n.Text)
	case n.isLeaf():
		return 1
	}
	return 2 + contentSize(n.Content)
}

func contentSize(nodes []*Node) int {
	total := 0
	for _, child := range nodes {
		total += child.size()
	}
	return total
}

func sameMarks(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type {
			return false
		}
		if len(a[i].Attrs) == 0 && len(b[i].Attrs) == 0 {
			continue
		}
		if !reflect.DeepEqual(a[i].Attrs, b[i].Attrs) {
			return false
		}
	}
	return true
}

func copyMarks(marks []Mark) []Mark {
	if len(marks) == 0 {
		return nil
	}
	return append([]Mark(nil), marks...)
}

// Parse decodes ProseMirror JSON. An empty payload yields a document with a
// single empty paragraph.
func Parse(data []byte) (*Doc, error) {
	if len(strings.TrimSpace(string(data))) == 0 || string(data) == "null" {
		return FromText(""), nil
	}
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if root.Type != "doc" {
		return nil, fmt.Errorf("%w: root type %q", ErrInvalidDocument, root.Type)
	}
	if err := validate(root.Content); err != nil {
		return nil, err
	}
	return New(&root), nil
}

func validate(nodes []*Node) error {
	for _, n := range nodes {
		if n == nil || n.Type == "" {
			return fmt.Errorf("%w: node without type", ErrInvalidDocument)
		}
		if n.isText() && n.Text == "" {
			return fmt.Errorf("%w: empty text node", ErrInvalidDocument)
		}
		if err := validate(n.Content); err != nil {
			return err
		}
	}
	return nil
}

// FromText builds a document with one paragraph per line.
func FromText(text string) *Doc {
	lines := strings.Split(text, "\n")
	content := make([]*Node, 0, len(lines))
	for _, line := range lines {
		p := &Node{Type: "paragraph"}
		if line != "" {
			p.Content = []*Node{{Type: "text", Text: line}}
		}
		content = append(content, p)
	}
	return New(&Node{Type: "doc", Content: content})
}
