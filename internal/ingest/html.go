package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type htmlParser struct{}

func (htmlParser) CanParse(p Probe) bool {
	switch p.Ext() {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return p.Is("text/html")
}

// Parse takes the first <table> with at least two rows. Pages without one
// fall back to their visible text, which goes through the tokenizer.
func (htmlParser) Parse(_ Probe, _ Options, content []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if recs := firstTable(root); len(recs) >= 2 {
		return &Document{Format: "html", Records: recs}, nil
	}
	return &Document{Format: "html", Text: visibleText(root)}, nil
}

func firstTable(n *html.Node) [][]string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Table {
		var recs [][]string
		collectRows(n, &recs)
		if len(recs) >= 2 {
			return recs
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if recs := firstTable(c); recs != nil {
			return recs
		}
	}
	return nil
}

// collectRows gathers <tr> rows of one table without descending into nested tables.
func collectRows(n *html.Node, recs *[][]string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Table:
			continue
		case atom.Tr:
			var row []string
			for td := c.FirstChild; td != nil; td = td.NextSibling {
				if td.Type == html.ElementNode && (td.DataAtom == atom.Td || td.DataAtom == atom.Th) {
					row = append(row, strings.Join(strings.Fields(nodeText(td)), " "))
				}
			}
			if len(row) > 0 {
				*recs = append(*recs, row)
			}
		default:
			collectRows(c, recs)
		}
	}
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Table: true, atom.Pre: true,
}

// visibleText renders body text with one line per block element. Text inside
// <pre> keeps its own line structure.
func visibleText(root *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node, pre bool)
	walk = func(n *html.Node, pre bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Head, atom.Template:
				return
			case atom.Pre:
				pre = true
			}
		case html.TextNode:
			if pre {
				b.WriteString(n.Data)
			} else if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				b.WriteString(s)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, pre)
		}
		if n.Type == html.ElementNode && blockAtoms[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(root, false)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, strings.TrimRight(l, " "))
		}
	}
	return strings.Join(out, "\n")
}
