// Package parser implements label-adjacency extraction over tracker pages.
//
// The tracker renders every field as a label cell followed by a value cell.
// Extraction is therefore positional: locate the cell whose text equals the
// label, then read the next cell in document order. The site's markup is the
// source of truth; no structural validation happens beyond "next cell exists".
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// FieldMapping binds a page label to an output column name. Mappings are
// applied in order and the first matching cell wins.
type FieldMapping struct {
	Label string
	Key   string
}

// Extract applies a label-to-key mapping to a document. Keys whose label
// cell is missing, whose value cell is missing, or whose value is empty
// after trimming are omitted entirely.
func Extract(doc *goquery.Document, mappings []FieldMapping) map[string]string {
	cells := cellNodes(doc)
	out := make(map[string]string, len(mappings))
	for _, m := range mappings {
		value, ok := labelValueIn(cells, m.Label)
		if ok && value != "" {
			out[m.Key] = value
		}
	}
	return out
}

// ExtractIndicators reads checkbox-style indicator fields. For each name it
// locates the cell with that exact text, then the nearest checkbox input
// preceding it in document order; a "checked" attribute maps to "Yes",
// otherwise "No". Names without a label cell are omitted, which is distinct
// from "No".
func ExtractIndicators(doc *goquery.Document, names []string) map[string]string {
	nodes := documentOrder(docRoot(doc))
	out := make(map[string]string, len(names))
	for _, name := range names {
		idx := -1
		for i, n := range nodes {
			if isCell(n) && strings.EqualFold(CleanText(nodeText(n)), CleanText(name)) {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		out[name] = "No"
		for i := idx - 1; i >= 0; i-- {
			if !isCheckbox(nodes[i]) {
				continue
			}
			if hasAttr(nodes[i], "checked") {
				out[name] = "Yes"
			}
			break
		}
	}
	return out
}

// LabelValue returns the trimmed text of the cell following the first cell
// whose text equals label, case-insensitively. The second return reports
// whether such a label/value cell pair exists at all.
func LabelValue(doc *goquery.Document, label string) (string, bool) {
	return labelValueIn(cellNodes(doc), label)
}

func labelValueIn(cells []*html.Node, label string) (string, bool) {
	want := CleanText(label)
	for i, cell := range cells {
		if !strings.EqualFold(CleanText(nodeText(cell)), want) {
			continue
		}
		if i+1 >= len(cells) {
			return "", false
		}
		return CleanText(nodeText(cells[i+1])), true
	}
	return "", false
}

func docRoot(doc *goquery.Document) *html.Node {
	if len(doc.Nodes) == 0 {
		return nil
	}
	return doc.Nodes[0]
}

// documentOrder returns every node under root in pre-order, which matches
// the order cells and inputs appear in the page source.
func documentOrder(root *html.Node) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		nodes = append(nodes, n)
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return nodes
}

func cellNodes(doc *goquery.Document) []*html.Node {
	var cells []*html.Node
	for _, n := range documentOrder(docRoot(doc)) {
		if isCell(n) {
			cells = append(cells, n)
		}
	}
	return cells
}

// textNodesInOrder returns all non-empty text contents in document order,
// used by the certification pattern fallback.
func textNodesInOrder(doc *goquery.Document) []string {
	var texts []string
	for _, n := range documentOrder(docRoot(doc)) {
		if n.Type != html.TextNode {
			continue
		}
		if t := CleanText(n.Data); t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

// CleanText trims a string and collapses internal whitespace, including
// the non-breaking spaces the tracker pads its cells with.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}

func isCell(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "td"
}

func isCheckbox(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "input" {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "type" && strings.EqualFold(a.Val, "checkbox") {
			return true
		}
	}
	return false
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
