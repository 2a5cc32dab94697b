package document

import (
	"fmt"
	"html"
	"strings"

	"penwise/internal/tracker"
)

// ToHTML renders the document to HTML. Characters covered by a decoration
// are wrapped in <mark class="pw-<category>">.
func ToHTML(d *Doc, decorations []tracker.DisplaySpan) string {
	r := &htmlRenderer{labels: make(map[int]tracker.Category)}
	for _, span := range decorations {
		for pos := span.From; pos < span.To; pos++ {
			r.labels[pos] = span.Category
		}
	}
	var b strings.Builder
	r.renderContent(&b, d.root.Content, 0)
	return b.String()
}

type htmlRenderer struct {
	labels map[int]tracker.Category
}

func (r *htmlRenderer) renderContent(b *strings.Builder, nodes []*Node, pos int) {
	for _, n := range nodes {
		r.renderNode(b, n, pos)
		pos += n.size()
	}
}

// renderNode writes one node whose opening position is pos.
func (r *htmlRenderer) renderNode(b *strings.Builder, n *Node, pos int) {
	inner := func() string {
		var sub strings.Builder
		r.renderContent(&sub, n.Content, pos+1)
		return sub.String()
	}

	switch n.Type {
	case "paragraph":
		fmt.Fprintf(b, "<p>%s</p>\n", inner())
	case "heading":
		level := 1
		if lvl, ok := n.Attrs["level"].(float64); ok && lvl >= 1 && lvl <= 6 {
			level = int(lvl)
		}
		fmt.Fprintf(b, "<h%d>%s</h%d>\n", level, inner(), level)
	case "bulletList":
		fmt.Fprintf(b, "<ul>\n%s</ul>\n", inner())
	case "orderedList":
		fmt.Fprintf(b, "<ol>\n%s</ol>\n", inner())
	case "listItem":
		fmt.Fprintf(b, "<li>%s</li>\n", inner())
	case "blockquote":
		fmt.Fprintf(b, "<blockquote>\n%s</blockquote>\n", inner())
	case "codeBlock":
		fmt.Fprintf(b, "<pre><code>%s</code></pre>\n", inner())
	case "text":
		b.WriteString(r.renderText(n, pos))
	case "hardBreak":
		b.WriteString("<br>")
	case "horizontalRule":
		b.WriteString("<hr>\n")
	case "image":
		src, _ := n.Attrs["src"].(string)
		alt, _ := n.Attrs["alt"].(string)
		fmt.Fprintf(b, `<img src="%s" alt="%s">`, html.EscapeString(src), html.EscapeString(alt))
	case "table":
		fmt.Fprintf(b, "<table>\n%s</table>\n", inner())
	case "tableRow":
		fmt.Fprintf(b, "<tr>\n%s</tr>\n", inner())
	case "tableCell":
		fmt.Fprintf(b, "<td>%s</td>\n", inner())
	case "tableHeader":
		fmt.Fprintf(b, "<th>%s</th>\n", inner())
	default:
		// Unknown node type - render content if any
		b.WriteString(inner())
	}
}

// renderText splits a text node into decorated runs and applies its marks
// around the whole node.
func (r *htmlRenderer) renderText(n *Node, pos int) string {
	var body strings.Builder
	var run strings.Builder
	var current tracker.Category
	flush := func() {
		if run.Len() == 0 {
			return
		}
		escaped := html.EscapeString(run.String())
		if current != "" {
			fmt.Fprintf(&body, `<mark class="pw-%s">%s</mark>`, current, escaped)
		} else {
			body.WriteString(escaped)
		}
		run.Reset()
	}
	for _, ch := range n.Text {
		label := r.labels[pos]
		if label != current {
			flush()
			current = label
		}
		run.WriteRune(ch)
		pos++
	}
	flush()
	return wrapMarks(body.String(), n.Marks)
}

// wrapMarks applies marks from outside in
func wrapMarks(text string, marks []Mark) string {
	for i := len(marks) - 1; i >= 0; i-- {
		switch marks[i].Type {
		case "bold":
			text = fmt.Sprintf("<strong>%s</strong>", text)
		case "italic":
			text = fmt.Sprintf("<em>%s</em>", text)
		case "code":
			text = fmt.Sprintf("<code>%s</code>", text)
		case "link":
			href, _ := marks[i].Attrs["href"].(string)
			text = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), text)
		case "strike":
			text = fmt.Sprintf("<s>%s</s>", text)
		case "underline":
			text = fmt.Sprintf("<u>%s</u>", text)
		case "subscript":
			text = fmt.Sprintf("<sub>%s</sub>", text)
		case "superscript":
			text = fmt.Sprintf("<sup>%s</sup>", text)
		}
	}
	return text
}
