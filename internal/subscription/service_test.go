package subscription_test

import (
	"errors"
	"os"
	"testing"

	"github.com/KevinKickass/OpenSCLCore/internal/documents"
	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"github.com/KevinKickass/OpenSCLCore/internal/subscription"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gotest.tools/assert"
)

const (
	gcbSel     = "//IED[@name='Publisher']//LN0/GSEControl[@name='GCB']"
	rcbSel     = "//IED[@name='Publisher']//LN0/ReportControl[@name='RCB']"
	stValSel   = "//IED[@name='Publisher']//LN0/DataSet[@name='GooseDataSet1']/FCDA[@daName='stVal']"
	boundSel   = "//ExtRef[@desc='bound-stVal']"
	partialSel = "//ExtRef[@desc='partial']"
)

func newService(t *testing.T) (*subscription.Service, uuid.UUID) {
	t.Helper()

	content, err := os.ReadFile("../scl/testdata/subscription.scd")
	assert.NilError(t, err)

	docs := documents.NewManager(nil, nil, zap.NewNop())
	doc, err := docs.Add("station", "", documents.SourceUpload, content)
	assert.NilError(t, err)

	return subscription.NewService(docs, zap.NewNop()), doc.ID
}

func titles(refs []*scl.ElementRef) []string {
	out := []string{}
	for _, r := range refs {
		out = append(out, r.Attributes["desc"])
	}
	return out
}

func TestSubscribedExtRefs(t *testing.T) {
	svc, id := newService(t)

	refs, err := svc.SubscribedExtRefs(id, stValSel, gcbSel, true)
	assert.NilError(t, err)
	assert.DeepEqual(t, titles(refs), []string{"bound-stVal"})

	refs, err = svc.SubscribedExtRefs(id, stValSel, rcbSel, false)
	assert.NilError(t, err)
	assert.DeepEqual(t, titles(refs), []string{"report-stVal"})
}

func TestSubscribedExtRefsErrors(t *testing.T) {
	svc, id := newService(t)

	_, err := svc.SubscribedExtRefs(uuid.New(), stValSel, gcbSel, true)
	assert.Assert(t, errors.Is(err, subscription.ErrDocumentNotFound))

	_, err = svc.SubscribedExtRefs(id, "", gcbSel, true)
	assert.ErrorContains(t, err, "fcda selector is required")

	_, err = svc.SubscribedExtRefs(id, gcbSel, gcbSel, true)
	assert.Assert(t, errors.Is(err, subscription.ErrWrongElement))

	_, err = svc.SubscribedExtRefs(id, "//FCDA[@daName='nope']", gcbSel, true)
	assert.Assert(t, errors.Is(err, scl.ErrNotFound))

	_, err = svc.SubscribedExtRefs(id, "//FCDA[", gcbSel, true)
	assert.ErrorContains(t, err, "invalid selector")
}

func TestCandidatesWithoutFcda(t *testing.T) {
	svc, id := newService(t)

	all, err := svc.Candidates(id, "", true)
	assert.NilError(t, err)

	filtered, err := svc.Candidates(id, stValSel, true)
	assert.NilError(t, err)
	assert.Assert(t, len(filtered) <= len(all))
	assert.Assert(t, len(all) > 0)
}

func TestExtRefStatus(t *testing.T) {
	svc, id := newService(t)

	status, err := svc.ExtRefStatus(id, boundSel)
	assert.NilError(t, err)
	assert.Assert(t, status.Subscribed)
	assert.Assert(t, !status.Partial)
	assert.Equal(t, status.CbReference, "PublisherCircuitBreaker_CB1/LLN0.GCB")
	assert.Assert(t, status.Supervision != nil)
	assert.Equal(t, status.Supervision.Attributes["lnClass"], "LGOS")
	assert.Equal(t, len(status.ControlBlocks), 1)

	status, err = svc.ExtRefStatus(id, partialSel)
	assert.NilError(t, err)
	assert.Assert(t, !status.Subscribed)
	assert.Assert(t, status.Partial)
}

func TestUsedSupervisions(t *testing.T) {
	svc, id := newService(t)

	used, err := svc.UsedSupervisions(id, "GOOSE")
	assert.NilError(t, err)
	assert.Equal(t, len(used), 2)
	for _, u := range used {
		assert.Equal(t, u.Reference, "PublisherCircuitBreaker_CB1/LLN0.GCB")
	}
}

func TestFindFCDA(t *testing.T) {
	svc, id := newService(t)

	fcda, err := svc.FindFCDA(id, boundSel, gcbSel)
	assert.NilError(t, err)
	assert.Assert(t, fcda != nil)
	assert.Equal(t, fcda.Attributes["daName"], "stVal")

	// Control block looked up from the ExtRef
	fcda, err = svc.FindFCDA(id, boundSel, "")
	assert.NilError(t, err)
	assert.Assert(t, fcda != nil)

	fcda, err = svc.FindFCDA(id, "//ExtRef[@desc='unbound']", "")
	assert.NilError(t, err)
	assert.Assert(t, fcda == nil)
}

func TestControlBlocks(t *testing.T) {
	svc, id := newService(t)

	cbs, err := svc.ControlBlocks(id, "GOOSE")
	assert.NilError(t, err)
	assert.Equal(t, len(cbs), 1)
	assert.Equal(t, cbs[0].IED, "Publisher")
	assert.Equal(t, cbs[0].ServiceType, "GOOSE")
	assert.Equal(t, len(cbs[0].FCDAs), 2)
}

func TestIeds(t *testing.T) {
	svc, id := newService(t)

	ieds, err := svc.Ieds(id)
	assert.NilError(t, err)
	names := []string{}
	for _, ied := range ieds {
		names = append(names, ied.Title)
	}
	assert.DeepEqual(t, names, []string{"alpha_IED", "Publisher", "Subscriber1"})
}

func TestEvent(t *testing.T) {
	svc, id := newService(t)

	ev, err := svc.Event(id, scl.EventFcdaSelect, gcbSel, stValSel, "")
	assert.NilError(t, err)
	detail, ok := ev.Detail.(scl.FcdaSelectDetail)
	assert.Assert(t, ok)
	assert.Equal(t, scl.AttrOr(detail.Control, "name"), "GCB")

	ev, err = svc.Event(id, scl.EventExtRefSelectionChanged, "", "", "")
	assert.NilError(t, err)
	assert.Assert(t, ev.Detail.(scl.ExtRefSelectionChangedDetail).ExtRef == nil)

	_, err = svc.Event(id, scl.EventType("bogus"), "", "", "")
	assert.ErrorContains(t, err, "unknown event type")
}

func TestFcdaElements(t *testing.T) {
	svc, id := newService(t)

	fcdas, err := svc.FcdaElements(id, gcbSel)
	assert.NilError(t, err)
	assert.Equal(t, len(fcdas), 2)
	assert.Equal(t, fcdas[1].Attributes["daName"], "q")

	_, err = svc.FcdaElements(id, stValSel)
	assert.Assert(t, errors.Is(err, subscription.ErrWrongElement))
}
