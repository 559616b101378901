package scl

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Parse reads an SCL document into an xmlquery tree.
func Parse(r io.Reader) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SCL: %w", err)
	}

	root := RootElement(doc)
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	if root.Data != "SCL" {
		return nil, fmt.Errorf("unexpected root element %q, want SCL", root.Data)
	}

	return doc, nil
}

// Attr returns the value of an unqualified attribute and whether it is set.
func Attr(el *xmlquery.Node, name string) (string, bool) {
	if el == nil {
		return "", false
	}
	for _, a := range el.Attr {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value, or "" when the attribute is missing.
func AttrOr(el *xmlquery.Node, name string) string {
	v, _ := Attr(el, name)
	return v
}

func HasAttr(el *xmlquery.Node, name string) bool {
	_, ok := Attr(el, name)
	return ok
}

// IsElement reports whether n is an element with one of the given tags.
func IsElement(n *xmlquery.Node, tags ...string) bool {
	if n == nil || n.Type != xmlquery.ElementNode {
		return false
	}
	for _, tag := range tags {
		if n.Data == tag {
			return true
		}
	}
	return false
}

// Closest returns n or the nearest ancestor element matching one of tags.
func Closest(n *xmlquery.Node, tags ...string) *xmlquery.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if IsElement(cur, tags...) {
			return cur
		}
	}
	return nil
}

// InPrivate reports whether n sits inside a Private section.
func InPrivate(n *xmlquery.Node) bool {
	return Closest(n, "Private") != nil
}

// Document returns the top node of the tree n belongs to.
func Document(n *xmlquery.Node) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// RootElement returns the document element (the SCL element).
func RootElement(n *xmlquery.Node) *xmlquery.Node {
	doc := Document(n)
	if doc == nil {
		return nil
	}
	if doc.Type == xmlquery.ElementNode {
		return doc
	}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

// Children returns the direct element children of n with the given tag.
func Children(n *xmlquery.Node, tag string) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c, tag) {
			out = append(out, c)
		}
	}
	return out
}

// Descendants returns every element below n (n excluded) with one of the
// given tags, in document order.
func Descendants(n *xmlquery.Node, tags ...string) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	var out []*xmlquery.Node
	var walk func(*xmlquery.Node)
	walk = func(p *xmlquery.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.ElementNode {
				continue
			}
			if IsElement(c, tags...) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// Path renders an absolute positional XPath for el, e.g.
// /SCL[1]/IED[2]/AccessPoint[1]. The result can be fed back to Select.
func Path(el *xmlquery.Node) string {
	if el == nil || el.Type != xmlquery.ElementNode {
		return ""
	}

	var parts []string
	for cur := el; cur != nil && cur.Type == xmlquery.ElementNode; cur = cur.Parent {
		pos := 1
		for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == xmlquery.ElementNode && s.Data == cur.Data {
				pos++
			}
		}
		parts = append(parts, fmt.Sprintf("%s[%d]", cur.Data, pos))
	}

	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(parts[i])
	}
	return b.String()
}

// Select evaluates an XPath selector against the document and returns the
// first matching element.
func Select(doc *xmlquery.Node, expr string) (*xmlquery.Node, error) {
	if doc == nil {
		return nil, fmt.Errorf("no document")
	}
	nodes, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", expr, err)
	}
	for _, n := range nodes {
		if n.Type == xmlquery.ElementNode {
			return n, nil
		}
	}
	return nil, ErrNotFound
}
