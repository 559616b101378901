package scl

import "github.com/antchfx/xmlquery"

var subscriptionAttributes = []string{"iedName", "ldInst", "lnClass", "lnInst", "doName"}

var partialConfigAttributes = []string{
	"iedName",
	"ldInst",
	"prefix",
	"lnClass",
	"lnInst",
	"doName",
	"daName",
	"srcLDInst",
	"srcPrefix",
	"srcLNClass",
	"srcLNInst",
	"srcCBName",
}

// ExtRefElements returns the ExtRef elements below root that are candidates
// for subscribing to fcda. With includeLaterBinding only later binding
// ExtRefs (those carrying intAddr) are returned, otherwise only those
// without intAddr. ExtRefs of the IED publishing fcda are excluded; a nil
// fcda disables that filter.
func ExtRefElements(root, fcda *xmlquery.Node, includeLaterBinding bool) []*xmlquery.Node {
	var publisher *xmlquery.Node
	if fcda != nil {
		publisher = Closest(fcda, "IED")
	}

	var out []*xmlquery.Node
	for _, extRef := range Descendants(root, "ExtRef") {
		if HasAttr(extRef, "intAddr") != includeLaterBinding {
			continue
		}
		if fcda != nil && Closest(extRef, "IED") == publisher {
			continue
		}
		out = append(out, extRef)
	}
	return out
}

// SubscribedExtRefElements returns the candidate ExtRefs below root that
// already subscribe to fcda through control.
func SubscribedExtRefElements(root, fcda, control *xmlquery.Node, includeLaterBinding bool) []*xmlquery.Node {
	var out []*xmlquery.Node
	for _, extRef := range ExtRefElements(root, fcda, includeLaterBinding) {
		if IsSubscribedTo(control, fcda, extRef) {
			out = append(out, extRef)
		}
	}
	return out
}

// IsSubscribed reports whether the ExtRef carries a complete data reference.
func IsSubscribed(extRef *xmlquery.Node) bool {
	if extRef == nil {
		return false
	}
	for _, name := range subscriptionAttributes {
		if !HasAttr(extRef, name) {
			return false
		}
	}
	return true
}

// IsPartiallyConfigured reports whether the ExtRef has some subscription
// attributes set without being fully subscribed.
func IsPartiallyConfigured(extRef *xmlquery.Node) bool {
	if extRef == nil {
		return false
	}
	for _, name := range partialConfigAttributes {
		if HasAttr(extRef, name) {
			return !IsSubscribed(extRef)
		}
	}
	return false
}
