package srt

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	resultFormID         = "result-form"
	confirmationID       = "isFalseGotoMain"
	signedInMarker       = "환영합니다"
	seatColumn           = 7
	waitlistColumn       = 8
	maxPageBytes   int64 = 4 << 20
)

// resultRow holds the cells of one train in the search result table.
type resultRow struct {
	cells []*html.Node
}

func (r resultRow) cell(column int) *html.Node {
	if column < 1 || column > len(r.cells) {
		return nil
	}
	return r.cells[column-1]
}

// resultRows finds the body rows of the table inside the result form. ok is
// false when the page has no such table.
func resultRows(doc *html.Node) (rows []resultRow, ok bool) {
	form := findByID(doc, resultFormID)
	if form == nil {
		return nil, false
	}
	tbody := findFirst(form, atom.Tbody)
	if tbody == nil {
		return nil, false
	}
	for tr := tbody.FirstChild; tr != nil; tr = tr.NextSibling {
		if tr.Type != html.ElementNode || tr.DataAtom != atom.Tr {
			continue
		}
		var row resultRow
		for td := tr.FirstChild; td != nil; td = td.NextSibling {
			if td.Type == html.ElementNode && (td.DataAtom == atom.Td || td.DataAtom == atom.Th) {
				row.cells = append(row.cells, td)
			}
		}
		rows = append(rows, row)
	}
	return rows, true
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		if v, ok := attr(n, "id"); ok && v == id {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// textContent is the whitespace-collapsed text of n and its children.
func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
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
	return strings.Join(strings.Fields(b.String()), " ")
}
