package scl

import "github.com/antchfx/xmlquery"

// FcdaElements returns the FCDA elements of the data set a control block
// publishes. The data set is looked up next to the control block.
func FcdaElements(control *xmlquery.Node) []*xmlquery.Node {
	if control == nil || control.Parent == nil {
		return nil
	}

	datSet, ok := Attr(control, "datSet")
	if !ok {
		return nil
	}

	var out []*xmlquery.Node
	for _, ds := range Children(control.Parent, "DataSet") {
		if AttrOr(ds, "name") == datSet {
			out = append(out, Children(ds, "FCDA")...)
		}
	}
	return out
}

// FindFCDA locates the FCDA an ExtRef was configured from, within the data
// set of the given control block. Elements inside Private sections are
// ignored. Returns nil when nothing matches.
func FindFCDA(extRef, control *xmlquery.Node) *xmlquery.Node {
	if !IsElement(extRef, "ExtRef") || InPrivate(extRef) || control == nil {
		return nil
	}

	iedName, ok := Attr(extRef, "iedName")
	if !ok {
		return nil
	}
	dataSetRef, ok := Attr(control, "datSet")
	if !ok {
		return nil
	}

	var ied *xmlquery.Node
	for _, candidate := range Descendants(Document(extRef), "IED") {
		if name, ok := Attr(candidate, "name"); ok && name == iedName && !InPrivate(candidate) {
			ied = candidate
			break
		}
	}
	if ied == nil {
		return nil
	}

	for _, fcda := range Descendants(ied, "FCDA") {
		if InPrivate(fcda) || !MatchDataAttributes(extRef, fcda) {
			continue
		}
		if name, ok := Attr(fcda.Parent, "name"); ok && name == dataSetRef {
			return fcda
		}
	}
	return nil
}
