package scl

import "github.com/antchfx/xmlquery"

// ElementRef is the JSON view of an element handed to API clients.
type ElementRef struct {
	Tag        string            `json:"tag"`
	Path       string            `json:"path"`
	Title      string            `json:"title,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Ref describes el for API consumers; nil in, nil out.
func Ref(el *xmlquery.Node) *ElementRef {
	if el == nil || el.Type != xmlquery.ElementNode {
		return nil
	}

	ref := &ElementRef{
		Tag:  el.Data,
		Path: Path(el),
	}
	if len(el.Attr) > 0 {
		ref.Attributes = make(map[string]string, len(el.Attr))
		for _, a := range el.Attr {
			if a.Name.Space == "" {
				ref.Attributes[a.Name.Local] = a.Value
			}
		}
	}

	switch el.Data {
	case "FCDA", "ExtRef":
		ref.Title = FcdaOrExtRefTitle(el)
	case "IED", "GSEControl", "SampledValueControl", "ReportControl", "DataSet":
		ref.Title = AttrOr(el, "name")
	case "LN", "LN0":
		ref.Title = AttrOr(el, "prefix") + AttrOr(el, "lnClass") + AttrOr(el, "inst")
	}

	return ref
}

// Refs maps Ref over els, never returning nil.
func Refs(els []*xmlquery.Node) []*ElementRef {
	out := make([]*ElementRef, 0, len(els))
	for _, el := range els {
		if r := Ref(el); r != nil {
			out = append(out, r)
		}
	}
	return out
}
