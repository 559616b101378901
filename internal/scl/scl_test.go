package scl_test

import (
	"os"
	"strings"
	"testing"

	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"github.com/antchfx/xmlquery"
	"gotest.tools/assert"
)

func loadDoc(t *testing.T) *xmlquery.Node {
	t.Helper()
	f, err := os.Open("testdata/subscription.scd")
	assert.NilError(t, err)
	defer f.Close()

	doc, err := scl.Parse(f)
	assert.NilError(t, err)
	return doc
}

// find returns the first non-Private element with tag whose attributes
// match the given name/value pairs.
func find(t *testing.T, doc *xmlquery.Node, tag string, attrs ...string) *xmlquery.Node {
	t.Helper()
	for _, el := range scl.Descendants(doc, tag) {
		if scl.InPrivate(el) {
			continue
		}
		ok := true
		for i := 0; i+1 < len(attrs); i += 2 {
			if v, has := scl.Attr(el, attrs[i]); !has || v != attrs[i+1] {
				ok = false
				break
			}
		}
		if ok {
			return el
		}
	}
	t.Fatalf("no %s element with %v", tag, attrs)
	return nil
}

func extRef(t *testing.T, doc *xmlquery.Node, desc string) *xmlquery.Node {
	t.Helper()
	return find(t, doc, "ExtRef", "desc", desc)
}

func descs(els []*xmlquery.Node) []string {
	out := make([]string, 0, len(els))
	for _, el := range els {
		out = append(out, scl.AttrOr(el, "desc"))
	}
	return out
}

func TestParseRejectsForeignRoot(t *testing.T) {
	f, err := os.Open("testdata/not-scl.xml")
	assert.NilError(t, err)
	defer f.Close()

	_, err = scl.Parse(f)
	assert.ErrorContains(t, err, "unexpected root element")
}

func TestFcdaOrExtRefTitle(t *testing.T) {
	doc := loadDoc(t)

	cases := []struct {
		name string
		el   *xmlquery.Node
		want string
	}{
		{"fcda with daName", find(t, doc, "FCDA", "daName", "stVal"), "CircuitBreaker_CB1 / XCBR 1 Pos.stVal"},
		{"fcda with prefix", find(t, doc, "FCDA", "lnClass", "TCTR"), "CircuitBreaker_CB1 / I TCTR 1 Amp"},
		{"extref", extRef(t, doc, "bound-q"), "CircuitBreaker_CB1 / XCBR 1 Pos.q"},
		{"unbound extref", extRef(t, doc, "unbound"), "    "},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, scl.FcdaOrExtRefTitle(c.el), c.want)
		})
	}
}

func TestExtRefControlBlockPath(t *testing.T) {
	doc := loadDoc(t)

	assert.Equal(t, scl.ExtRefControlBlockPath(extRef(t, doc, "bound-stVal")), "CircuitBreaker_CB1 / LLN0 GCB")
	assert.Equal(t, scl.ExtRefControlBlockPath(extRef(t, doc, "bound-q")), " /  GCB")
}

func TestCbReference(t *testing.T) {
	doc := loadDoc(t)

	assert.Equal(t, scl.CbReference(extRef(t, doc, "bound-stVal")), "PublisherCircuitBreaker_CB1/LLN0.GCB")
	// srcLDInst and srcLNClass missing: fall back to ldInst and LLN0
	assert.Equal(t, scl.CbReference(extRef(t, doc, "bound-q")), "PublisherCircuitBreaker_CB1/LLN0.GCB")
	assert.Equal(t, scl.CbReference(extRef(t, doc, "bound-amp")), "PublisherCircuitBreaker_CB1/LLN0.MSVCB01")
}

func TestExtRefElements(t *testing.T) {
	doc := loadDoc(t)
	fcda := find(t, doc, "FCDA", "daName", "stVal")

	assert.DeepEqual(t, descs(scl.ExtRefElements(doc, fcda, true)),
		[]string{"bound-stVal", "bound-q", "unbound", "partial", "bound-amp"})
	assert.DeepEqual(t, descs(scl.ExtRefElements(doc, fcda, false)),
		[]string{"fixed-stVal", "report-stVal"})

	// without an FCDA the publishing IED is not filtered out
	assert.DeepEqual(t, descs(scl.ExtRefElements(doc, nil, true)),
		[]string{"loopback", "bound-stVal", "bound-q", "unbound", "partial", "bound-amp"})
}

func TestSubscribedExtRefElements(t *testing.T) {
	doc := loadDoc(t)
	stVal := find(t, doc, "FCDA", "daName", "stVal")
	q := find(t, doc, "FCDA", "daName", "q")
	amp := find(t, doc, "FCDA", "lnClass", "TCTR")
	gcb := find(t, doc, "GSEControl", "name", "GCB")
	rcb := find(t, doc, "ReportControl", "name", "RCB")
	svcb := find(t, doc, "SampledValueControl", "name", "MSVCB01")

	cases := []struct {
		name         string
		fcda         *xmlquery.Node
		control      *xmlquery.Node
		laterBinding bool
		want         []string
	}{
		{"goose later binding", stVal, gcb, true, []string{"bound-stVal"}},
		{"goose quality", q, gcb, true, []string{"bound-q"}},
		{"goose fixed binding", stVal, gcb, false, []string{"fixed-stVal"}},
		{"report", stVal, rcb, false, []string{"report-stVal"}},
		{"smv", amp, svcb, true, []string{"bound-amp"}},
		{"wrong control", amp, gcb, true, []string{}},
		{"no control", stVal, nil, true, []string{}},
		{"no fcda", nil, gcb, true, []string{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := scl.SubscribedExtRefElements(doc, c.fcda, c.control, c.laterBinding)
			assert.DeepEqual(t, descs(got), c.want)
		})
	}
}

func TestMatchSrcAttributesServiceType(t *testing.T) {
	doc := loadDoc(t)
	gcb := find(t, doc, "GSEControl", "name", "GCB")
	rcb := find(t, doc, "ReportControl", "name", "RCB")

	assert.Assert(t, scl.MatchSrcAttributes(extRef(t, doc, "bound-stVal"), gcb))
	assert.Assert(t, !scl.MatchSrcAttributes(extRef(t, doc, "partial"), gcb))
	assert.Assert(t, !scl.MatchSrcAttributes(extRef(t, doc, "report-stVal"), gcb))
	assert.Assert(t, scl.MatchSrcAttributes(extRef(t, doc, "report-stVal"), rcb))
}

func TestMatchRequiresNames(t *testing.T) {
	doc, err := scl.Parse(strings.NewReader(`<SCL>
	<IED>
		<AccessPoint><Server><LDevice inst="LD1"><LN0 lnClass="LLN0" inst="">
			<DataSet name="DS"><FCDA ldInst="LD1" lnClass="XCBR" lnInst="1" doName="Pos" daName="stVal" fc="ST"/></DataSet>
			<GSEControl datSet="DS"/>
			<Inputs><ExtRef serviceType="GOOSE" ldInst="LD1" lnClass="XCBR" lnInst="1" doName="Pos" daName="stVal"/></Inputs>
		</LN0></LDevice></Server></AccessPoint>
	</IED>
</SCL>`))
	assert.NilError(t, err)

	gcb := scl.Descendants(doc, "GSEControl")[0]
	fcda := scl.Descendants(doc, "FCDA")[0]
	ref := scl.Descendants(doc, "ExtRef")[0]

	// neither side carries a name, so nothing is referenced
	assert.Assert(t, scl.MatchDataAttributes(ref, fcda))
	assert.Assert(t, !scl.MatchSrcAttributes(ref, gcb))
	assert.Assert(t, !scl.IsSubscribedTo(gcb, fcda, ref))
}

func TestIsSubscribed(t *testing.T) {
	doc := loadDoc(t)

	assert.Assert(t, scl.IsSubscribed(extRef(t, doc, "bound-stVal")))
	assert.Assert(t, scl.IsSubscribed(extRef(t, doc, "fixed-stVal")))
	assert.Assert(t, !scl.IsSubscribed(extRef(t, doc, "unbound")))
	assert.Assert(t, !scl.IsSubscribed(extRef(t, doc, "partial")))
	assert.Assert(t, !scl.IsSubscribed(nil))
}

func TestIsPartiallyConfigured(t *testing.T) {
	doc := loadDoc(t)

	assert.Assert(t, scl.IsPartiallyConfigured(extRef(t, doc, "partial")))
	assert.Assert(t, !scl.IsPartiallyConfigured(extRef(t, doc, "unbound")))
	assert.Assert(t, !scl.IsPartiallyConfigured(extRef(t, doc, "bound-stVal")))
}

func TestExistingSupervision(t *testing.T) {
	doc := loadDoc(t)

	lgos := scl.ExistingSupervision(extRef(t, doc, "bound-stVal"))
	assert.Assert(t, lgos != nil)
	assert.Equal(t, scl.AttrOr(lgos, "lnClass"), "LGOS")
	assert.Equal(t, scl.AttrOr(lgos, "inst"), "1")
	assert.Equal(t, scl.AttrOr(scl.Closest(lgos, "IED"), "name"), "Subscriber1")

	assert.Equal(t, scl.ExistingSupervision(extRef(t, doc, "bound-q")), lgos)

	// alpha_IED supervises the same control block but is not searched
	var other *xmlquery.Node
	for _, ln := range scl.Descendants(doc, "LN") {
		if scl.AttrOr(ln, "lnClass") == "LGOS" && scl.AttrOr(scl.Closest(ln, "IED"), "name") == "alpha_IED" {
			other = ln
		}
	}
	assert.Assert(t, other != nil)
	assert.Equal(t, scl.SupervisionReference(other), scl.SupervisionReference(lgos))
	assert.Assert(t, scl.ExistingSupervision(extRef(t, doc, "loopback")) == nil)

	lsvs := scl.ExistingSupervision(extRef(t, doc, "bound-amp"))
	assert.Assert(t, lsvs != nil)
	assert.Equal(t, scl.AttrOr(lsvs, "lnClass"), "LSVS")

	assert.Assert(t, scl.ExistingSupervision(extRef(t, doc, "unbound")) == nil)
	assert.Assert(t, scl.ExistingSupervision(extRef(t, doc, "report-stVal")) == nil)
	assert.Assert(t, scl.ExistingSupervision(nil) == nil)
}

func TestUsedSupervisionInstances(t *testing.T) {
	doc := loadDoc(t)

	goose := scl.UsedSupervisionInstances(doc, "GOOSE")
	assert.Equal(t, len(goose), 2)
	for _, ln := range goose {
		assert.Equal(t, scl.AttrOr(ln, "inst"), "1")
		assert.Equal(t, scl.SupervisionReference(ln), "PublisherCircuitBreaker_CB1/LLN0.GCB")
	}
	assert.Equal(t, scl.AttrOr(scl.Closest(goose[0], "IED"), "name"), "Subscriber1")
	assert.Equal(t, scl.AttrOr(scl.Closest(goose[1], "IED"), "name"), "alpha_IED")

	smv := scl.UsedSupervisionInstances(doc, "SMV")
	assert.Equal(t, len(smv), 1)
	assert.Equal(t, scl.AttrOr(smv[0], "lnClass"), "LSVS")

	assert.Equal(t, len(scl.UsedSupervisionInstances(nil, "GOOSE")), 0)
}

func TestFcdaElements(t *testing.T) {
	doc := loadDoc(t)

	fcdas := scl.FcdaElements(find(t, doc, "GSEControl", "name", "GCB"))
	assert.Equal(t, len(fcdas), 2)
	for _, fcda := range fcdas {
		assert.Assert(t, !scl.InPrivate(fcda))
	}

	assert.Equal(t, len(scl.FcdaElements(find(t, doc, "SampledValueControl", "name", "MSVCB01"))), 1)
	assert.Equal(t, len(scl.FcdaElements(nil)), 0)
}

func TestFindFCDA(t *testing.T) {
	doc := loadDoc(t)
	gcb := find(t, doc, "GSEControl", "name", "GCB")
	svcb := find(t, doc, "SampledValueControl", "name", "MSVCB01")

	fcda := scl.FindFCDA(extRef(t, doc, "bound-stVal"), gcb)
	assert.Assert(t, fcda != nil)
	assert.Assert(t, !scl.InPrivate(fcda))
	assert.Equal(t, fcda, find(t, doc, "FCDA", "daName", "stVal"))
	publisher := scl.Closest(fcda, "IED")
	assert.Equal(t, publisher.Parent, scl.RootElement(doc))

	// an archived copy of the publisher precedes it in the document
	archived := scl.Descendants(doc, "IED")[0]
	assert.Assert(t, scl.InPrivate(archived))
	assert.Equal(t, scl.AttrOr(archived, "name"), "Publisher")
	assert.Equal(t, len(scl.Descendants(archived, "FCDA")), 1)

	amp := scl.FindFCDA(extRef(t, doc, "bound-amp"), svcb)
	assert.Equal(t, amp, find(t, doc, "FCDA", "lnClass", "TCTR"))

	assert.Assert(t, scl.FindFCDA(extRef(t, doc, "bound-stVal"), svcb) == nil)
	assert.Assert(t, scl.FindFCDA(extRef(t, doc, "unbound"), gcb) == nil)
	assert.Assert(t, scl.FindFCDA(fcda, gcb) == nil)
}

func TestOrderedIeds(t *testing.T) {
	doc := loadDoc(t)

	var names []string
	for _, ied := range scl.OrderedIeds(doc) {
		names = append(names, scl.AttrOr(ied, "name"))
	}
	assert.DeepEqual(t, names, []string{"alpha_IED", "Publisher", "Subscriber1"})
	assert.Equal(t, len(scl.OrderedIeds(nil)), 0)
}

func TestControlBlocks(t *testing.T) {
	doc := loadDoc(t)

	assert.Equal(t, len(scl.ControlBlocks(doc, "")), 3)

	goose := scl.ControlBlocks(doc, "GOOSE")
	assert.Equal(t, len(goose), 1)
	assert.Equal(t, scl.AttrOr(goose[0], "name"), "GCB")

	cbs := scl.FindControlBlocks(extRef(t, doc, "bound-q"))
	assert.Equal(t, len(cbs), 1)
	assert.Equal(t, cbs[0], goose[0])
}

func TestPathRoundTrip(t *testing.T) {
	doc := loadDoc(t)
	fcda := find(t, doc, "FCDA", "daName", "q")

	path := scl.Path(fcda)
	assert.Equal(t, path, "/SCL[1]/IED[1]/AccessPoint[1]/Server[1]/LDevice[1]/LN0[1]/DataSet[1]/FCDA[2]")

	el, err := scl.Select(doc, path)
	assert.NilError(t, err)
	assert.Equal(t, el, fcda)

	_, err = scl.Select(doc, "//GSEControl[@name='missing']")
	assert.Equal(t, err, scl.ErrNotFound)

	_, err = scl.Select(doc, "//[")
	assert.ErrorContains(t, err, "invalid selector")
}
