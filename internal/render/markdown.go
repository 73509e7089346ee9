package render

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"propdraft/internal/assembly"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Markdown renders the snapshot as Markdown. Section HTML is converted
// structurally: headings, paragraphs, lists, emphasis and links survive;
// other markup is reduced to its text.
func Markdown(snap assembly.DocumentSnapshot) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n## Table of Contents\n\n", documentTitle(snap))
	for _, sec := range snap.Sections {
		fmt.Fprintf(&sb, "- %s\n", sectionTitle(sec))
	}

	for _, sec := range snap.Sections {
		fmt.Fprintf(&sb, "\n## %s\n\n", sectionTitle(sec))
		if strings.TrimSpace(sec.HTML) == "" {
			sb.WriteString("_Section not yet drafted_\n")
			continue
		}
		body, err := htmlToMarkdown(sec.HTML)
		if err != nil {
			return "", fmt.Errorf("section %q: %w", sec.ID, err)
		}
		sb.WriteString(body)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n", nil
}

func htmlToMarkdown(fragment string) (string, error) {
	parent := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return "", err
	}
	w := &mdWriter{}
	for _, n := range nodes {
		w.block(n)
	}
	out := blankRuns.ReplaceAllString(w.sb.String(), "\n\n")
	return strings.TrimSpace(out), nil
}

type mdWriter struct {
	sb    strings.Builder
	lists []listState
}

type listState struct {
	ordered bool
	n       int
}

func (w *mdWriter) block(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(collapseSpace(n.Data)); text != "" {
			w.sb.WriteString(text)
		}
		return
	case html.ElementNode:
	default:
		w.children(n)
		return
	}

	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		// Section headings already use level 2, so body headings start at 3.
		level := min(max(int(n.Data[1]-'0')+1, 3), 6)
		w.sb.WriteString("\n\n" + strings.Repeat("#", level) + " " + strings.TrimSpace(w.inline(n)) + "\n\n")
	case atom.P:
		w.sb.WriteString("\n\n" + strings.TrimSpace(w.inline(n)) + "\n\n")
	case atom.Div, atom.Section, atom.Article:
		w.sb.WriteString("\n\n")
		w.children(n)
		w.sb.WriteString("\n\n")
	case atom.Br:
		w.sb.WriteString("  \n")
	case atom.Ul, atom.Ol:
		w.lists = append(w.lists, listState{ordered: n.DataAtom == atom.Ol})
		w.sb.WriteString("\n\n")
		w.children(n)
		w.sb.WriteString("\n\n")
		w.lists = w.lists[:len(w.lists)-1]
	case atom.Li:
		w.listItem(n)
	case atom.Blockquote:
		text := strings.TrimSpace(w.inline(n))
		w.sb.WriteString("\n\n> " + strings.ReplaceAll(text, "\n", "\n> ") + "\n\n")
	case atom.Script, atom.Style:
	default:
		w.sb.WriteString(w.inline(n))
	}
}

func (w *mdWriter) listItem(n *html.Node) {
	depth := len(w.lists)
	marker := "- "
	if depth > 0 {
		top := &w.lists[depth-1]
		if top.ordered {
			top.n++
			marker = fmt.Sprintf("%d. ", top.n)
		}
	}
	indent := strings.Repeat("  ", max(depth-1, 0))

	var text strings.Builder
	var nested []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
			nested = append(nested, c)
			continue
		}
		text.WriteString(w.inlineNode(c))
	}
	w.sb.WriteString(indent + marker + strings.TrimSpace(text.String()) + "\n")
	for _, c := range nested {
		w.lists = append(w.lists, listState{ordered: c.DataAtom == atom.Ol})
		w.children(c)
		w.lists = w.lists[:len(w.lists)-1]
	}
}

func (w *mdWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.block(c)
	}
}

func (w *mdWriter) inline(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(w.inlineNode(c))
	}
	return sb.String()
}

func (w *mdWriter) inlineNode(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return collapseSpace(n.Data)
	case html.ElementNode:
	default:
		return ""
	}

	inner := w.inline(n)
	switch n.DataAtom {
	case atom.Strong, atom.B:
		return wrap(inner, "**")
	case atom.Em, atom.I:
		return wrap(inner, "_")
	case atom.Code:
		return wrap(inner, "`")
	case atom.A:
		href := attr(n, "href")
		if href == "" || strings.TrimSpace(inner) == "" {
			return inner
		}
		return "[" + strings.TrimSpace(inner) + "](" + href + ")"
	case atom.Br:
		return "  \n"
	case atom.Script, atom.Style:
		return ""
	default:
		return inner
	}
}

func wrap(s, mark string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return s
	}
	lead := s[:len(s)-len(strings.TrimLeft(s, " "))]
	trail := s[len(strings.TrimRight(s, " ")):]
	return lead + mark + t + mark + trail
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	if strings.TrimSpace(s) == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	out := strings.Join(strings.Fields(s), " ")
	if first := s[0]; first == ' ' || first == '\n' || first == '\t' {
		out = " " + out
	}
	if last := s[len(s)-1]; last == ' ' || last == '\n' || last == '\t' {
		out += " "
	}
	return out
}
