package scl

import (
	"sort"

	"github.com/antchfx/xmlquery"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var controlBlockTags = []string{"GSEControl", "SampledValueControl", "ReportControl"}

// OrderedIeds returns the top level IED elements sorted by name using
// locale aware collation.
func OrderedIeds(doc *xmlquery.Node) []*xmlquery.Node {
	if doc == nil {
		return []*xmlquery.Node{}
	}

	ieds := Children(RootElement(doc), "IED")
	if ieds == nil {
		return []*xmlquery.Node{}
	}

	// Collators keep internal buffers and must not be shared.
	col := collate.New(language.Und)
	sort.SliceStable(ieds, func(i, j int) bool {
		return col.CompareString(AttrOr(ieds[i], "name"), AttrOr(ieds[j], "name")) < 0
	})
	return ieds
}

// ControlBlocks returns every GSEControl, SampledValueControl and
// ReportControl outside Private sections, in document order. A non-empty
// serviceType restricts the result to control blocks of that type.
func ControlBlocks(doc *xmlquery.Node, serviceType string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for _, cb := range Descendants(RootElement(doc), controlBlockTags...) {
		if InPrivate(cb) {
			continue
		}
		if serviceType != "" && ServiceType(cb) != serviceType {
			continue
		}
		out = append(out, cb)
	}
	return out
}

// FindControlBlocks returns the control blocks of the IED named by the
// ExtRef's iedName that its src attributes point at.
func FindControlBlocks(extRef *xmlquery.Node) []*xmlquery.Node {
	iedName, ok := Attr(extRef, "iedName")
	if !ok {
		return nil
	}

	var out []*xmlquery.Node
	for _, ied := range Children(RootElement(extRef), "IED") {
		if AttrOr(ied, "name") != iedName {
			continue
		}
		for _, cb := range Descendants(ied, controlBlockTags...) {
			if !InPrivate(cb) && MatchSrcAttributes(extRef, cb) {
				out = append(out, cb)
			}
		}
	}
	return out
}
