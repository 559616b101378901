package scl

import "github.com/antchfx/xmlquery"

var dataAttributes = []string{"ldInst", "prefix", "lnClass", "lnInst", "doName", "daName"}

var serviceTypes = map[string]string{
	"ReportControl":       "Report",
	"GSEControl":          "GOOSE",
	"SampledValueControl": "SMV",
}

// ServiceType maps a control block element to the ExtRef serviceType it
// publishes with. Unknown elements yield "".
func ServiceType(control *xmlquery.Node) string {
	if control == nil {
		return ""
	}
	return serviceTypes[control.Data]
}

// MatchDataAttributes reports whether the data reference attributes of an
// ExtRef equal those of an FCDA (or any element carrying the same set).
// A missing attribute compares equal to an empty one.
func MatchDataAttributes(extRef, data *xmlquery.Node) bool {
	for _, name := range dataAttributes {
		if AttrOr(extRef, name) != AttrOr(data, name) {
			return false
		}
	}
	return true
}

// MatchSrcAttributes reports whether the src* attributes and serviceType of
// an ExtRef point at the given control block.
func MatchSrcAttributes(extRef, control *xmlquery.Node) bool {
	if extRef == nil || control == nil {
		return false
	}

	cbName, _ := Attr(control, "name")
	srcCBName, ok := Attr(extRef, "srcCBName")
	if !ok || srcCBName != cbName {
		return false
	}

	ldInst := AttrOr(Closest(control, "LDevice"), "inst")
	srcLDInst := AttrOr(extRef, "srcLDInst")
	if srcLDInst == "" {
		srcLDInst = AttrOr(extRef, "ldInst")
	}
	if srcLDInst != ldInst {
		return false
	}

	ln := Closest(control, "LN0", "LN")
	if AttrOr(extRef, "srcPrefix") != AttrOr(ln, "prefix") {
		return false
	}
	if AttrOr(extRef, "srcLNInst") != AttrOr(ln, "inst") {
		return false
	}

	srcLNClass := AttrOr(extRef, "srcLNClass")
	if srcLNClass == "" {
		srcLNClass = "LLN0"
	}
	if srcLNClass != AttrOr(ln, "lnClass") {
		return false
	}

	want := ServiceType(control)
	serviceType, ok := Attr(extRef, "serviceType")
	return ok && want != "" && serviceType == want
}

// IsSubscribedTo reports whether extRef receives fcda through control: the
// ExtRef names the FCDA's IED, carries the FCDA data attributes and points at
// the control block.
func IsSubscribedTo(control, fcda, extRef *xmlquery.Node) bool {
	if control == nil || fcda == nil || extRef == nil {
		return false
	}

	iedName, ok := Attr(extRef, "iedName")
	if !ok {
		return false
	}
	name, ok := Attr(Closest(fcda, "IED"), "name")
	if !ok || name != iedName {
		return false
	}

	return MatchDataAttributes(extRef, fcda) && MatchSrcAttributes(extRef, control)
}
