package scl

import (
	"strings"

	"github.com/antchfx/xmlquery"
)

type supervisionKind struct {
	lnClass string
	doName  string
}

var (
	gooseSupervision = supervisionKind{lnClass: "LGOS", doName: "GoCBRef"}
	smvSupervision   = supervisionKind{lnClass: "LSVS", doName: "SvCBRef"}
)

func supervisionFor(serviceType string) supervisionKind {
	if serviceType == "GOOSE" {
		return gooseSupervision
	}
	return smvSupervision
}

// SupervisionLNClass returns the supervision LN class for a service type:
// LGOS for GOOSE, LSVS for everything else.
func SupervisionLNClass(serviceType string) string {
	return supervisionFor(serviceType).lnClass
}

// supervisionValues collects the setSrcRef Val elements of every supervision
// LN of the given kind in ied, following
// IED > AccessPoint > Server > LDevice > LN > DOI > DAI > Val.
func supervisionValues(ied *xmlquery.Node, kind supervisionKind) []*xmlquery.Node {
	var vals []*xmlquery.Node
	for _, ap := range Children(ied, "AccessPoint") {
		for _, server := range Children(ap, "Server") {
			for _, ld := range Children(server, "LDevice") {
				for _, ln := range Children(ld, "LN") {
					if AttrOr(ln, "lnClass") != kind.lnClass {
						continue
					}
					for _, doi := range Children(ln, "DOI") {
						if AttrOr(doi, "name") != kind.doName {
							continue
						}
						for _, dai := range Children(doi, "DAI") {
							if AttrOr(dai, "name") != "setSrcRef" {
								continue
							}
							vals = append(vals, Children(dai, "Val")...)
						}
					}
				}
			}
		}
	}
	return vals
}

// ExistingSupervision returns the supervision LN inside the ExtRef's own IED
// whose setSrcRef points at the control block the ExtRef subscribes to, or
// nil when there is none.
func ExistingSupervision(extRef *xmlquery.Node) *xmlquery.Node {
	if extRef == nil {
		return nil
	}

	iedName, ok := Attr(Closest(extRef, "IED"), "name")
	if !ok {
		return nil
	}

	var ied *xmlquery.Node
	for _, candidate := range Children(RootElement(extRef), "IED") {
		if AttrOr(candidate, "name") == iedName {
			ied = candidate
			break
		}
	}
	if ied == nil {
		return nil
	}

	cbRef := CbReference(extRef)
	kind := supervisionFor(AttrOr(extRef, "serviceType"))
	for _, val := range supervisionValues(ied, kind) {
		if val.InnerText() == cbRef {
			return Closest(val, "LN")
		}
	}
	return nil
}

// UsedSupervisionInstances returns the supervision LNs of the given service
// type that already reference a control block, one entry per non-empty
// setSrcRef value.
func UsedSupervisionInstances(doc *xmlquery.Node, serviceType string) []*xmlquery.Node {
	if doc == nil {
		return nil
	}

	kind := supervisionFor(serviceType)
	var out []*xmlquery.Node
	for _, ied := range Children(RootElement(doc), "IED") {
		for _, val := range supervisionValues(ied, kind) {
			if val.InnerText() == "" {
				continue
			}
			out = append(out, Closest(val, "LN"))
		}
	}
	return out
}

// SupervisionReference returns the trimmed setSrcRef value of a supervision
// LN, or "" when the LN has none.
func SupervisionReference(ln *xmlquery.Node) string {
	if !IsElement(ln, "LN") {
		return ""
	}
	for _, doi := range Children(ln, "DOI") {
		name := AttrOr(doi, "name")
		if name != gooseSupervision.doName && name != smvSupervision.doName {
			continue
		}
		for _, dai := range Children(doi, "DAI") {
			if AttrOr(dai, "name") != "setSrcRef" {
				continue
			}
			for _, val := range Children(dai, "Val") {
				return strings.TrimSpace(val.InnerText())
			}
		}
	}
	return ""
}
