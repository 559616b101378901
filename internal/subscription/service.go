package subscription

import (
	"errors"
	"fmt"

	"github.com/KevinKickass/OpenSCLCore/internal/documents"
	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrWrongElement     = errors.New("selector matched an unexpected element")
)

var controlTags = []string{"GSEControl", "SampledValueControl", "ReportControl"}

// Service answers subscription queries against the registered documents.
// Elements are addressed by XPath selectors.
type Service struct {
	docs   *documents.Manager
	logger *zap.Logger
}

func NewService(docs *documents.Manager, logger *zap.Logger) *Service {
	return &Service{docs: docs, logger: logger}
}

func (s *Service) Documents() *documents.Manager {
	return s.docs
}

func (s *Service) document(id uuid.UUID) (*documents.Document, error) {
	doc, ok := s.docs.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, nil
}

// Resolve evaluates selector in the document and checks that the element
// has one of the expected tags. An empty selector resolves to nil.
func (s *Service) Resolve(doc *documents.Document, selector string, tags ...string) (*xmlquery.Node, error) {
	if selector == "" {
		return nil, nil
	}

	el, err := scl.Select(doc.Root, selector)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 && !scl.IsElement(el, tags...) {
		return nil, fmt.Errorf("%w: %s is %s, want one of %v", ErrWrongElement, selector, el.Data, tags)
	}
	return el, nil
}

func (s *Service) resolveRequired(doc *documents.Document, what, selector string, tags ...string) (*xmlquery.Node, error) {
	if selector == "" {
		return nil, fmt.Errorf("%s selector is required", what)
	}
	return s.Resolve(doc, selector, tags...)
}

// SubscribedExtRefs lists the ExtRefs subscribing to the FCDA through the
// control block.
func (s *Service) SubscribedExtRefs(docID uuid.UUID, fcdaSel, controlSel string, laterBinding bool) ([]*scl.ElementRef, error) {
	doc, err := s.document(docID)
	if err != nil {
		return nil, err
	}
	fcda, err := s.resolveRequired(doc, "fcda", fcdaSel, "FCDA")
	if err != nil {
		return nil, err
	}
	control, err := s.resolveRequired(doc, "control", controlSel, controlTags...)
	if err != nil {
		return nil, err
	}

	extRefs := scl.SubscribedExtRefElements(doc.Root, fcda, control, laterBinding)
	s.logger.Debug("Subscribed ExtRefs resolved",
		zap.String("document", doc.Name),
		zap.String("fcda", scl.FcdaOrExtRefTitle(fcda)),
		zap.String("control", scl.AttrOr(control, "name")),
		zap.Int("count", len(extRefs)))

	return scl.Refs(extRefs), nil
}

// Candidates lists the ExtRefs that could subscribe to the FCDA. An empty
// FCDA selector lists every ExtRef of the requested binding type.
func (s *Service) Candidates(docID uuid.UUID, fcdaSel string, laterBinding bool) ([]*scl.ElementRef, error) {
	doc, err := s.document(docID)
	if err != nil {
		return nil, err
	}
	fcda, err := s.Resolve(doc, fcdaSel, "FCDA")
	if err != nil {
		return nil, err
	}
	return scl.Refs(scl.ExtRefElements(doc.Root, fcda, laterBinding)), nil
}

// ExtRefStatus describes an ExtRef and its subscription state.
type ExtRefStatus struct {
	ExtRef           *scl.ElementRef   `json:"extRef"`
	Subscribed       bool              `json:"subscribed"`
	Partial          bool              `json:"partiallyConfigured"`
	ControlBlockPath string            `json:"controlBlockPath"`
	CbReference      string            `json:"cbReference"`
	ControlBlocks    []*scl.ElementRef `json:"controlBlocks"`
	Supervision      *scl.ElementRef   `json:"supervision"`
}

func (s *Service) ExtRefStatus(docID uuid.UUID, extRefSel string) (*ExtRefStatus, error) {
	doc, err := s.document(docID)
	if err != nil {
		return nil, err
	}
	extRef, err := s.resolveRequired(doc, "extRef", extRefSel, "ExtRef")
	if err != nil {
		return nil, err
	}

	return &ExtRefStatus{
		ExtRef:           scl.Ref(extRef),
		Subscribed:       scl.IsSubscribed(extRef),
		Partial:          scl.IsPartiallyConfigured(extRef),
		ControlBlockPath: scl.ExtRefControlBlockPath(extRef),
		CbReference:      scl.CbReference(extRef),
		ControlBlocks:    scl.Refs(scl.FindControlBlocks(extRef)),
		Supervision:      scl.Ref(scl.ExistingSupervision(extRef)),
	}, nil
}

// Supervision returns the supervision LN monitoring the ExtRef's control
// block, nil when there is none.
func (s *Service) Supervision(docID uuid.UUID, extRefSel string) (*scl.ElementRef, error) {
	doc, err := s.document(docID)
	if err != nil {
		return nil, err
	}
	extRef, err := s.resolveRequired(doc, "extRef", extRefSel, "ExtRef")
	if err != nil {
		return nil, err
	}
	return scl.Ref(scl.ExistingSupervision(extRef)), nil
}

// UsedSupervision describes a supervision LN already bound to a control block.
type UsedSupervision struct {
	LN        *scl.ElementRef `json:"ln"`
	Reference string          `json:"reference"`
}

func (s *Service) UsedSupervisions(docID uuid.UUID, serviceType string) ([]UsedSupervision, error) {
	doc, err := s.document(docID)
	if err != nil {
		return nil, err
	}

	lns := scl.UsedSupervisionInstances(doc.Root, serviceType)
	out := make([]UsedSupervision, 0, len(lns))
	for _, ln := range lns {
		out = append(out, UsedSupervision{LN: scl.Ref(ln), Reference: scl.SupervisionReference(ln)})
	}
	return out, nil
}

// FindFCDA maps an ExtRef back to the FCDA of the control block's data set.
// Without a control selector the control blocks the ExtRef points at are
// tried in document order.
func (s *Service) FindFCDA(docID uuid.UUID, extRefSel, controlSel string) (*scl.ElementRef, error) {
	doc, err := s.document(docID)
	if err != nil {
		return nil, err
	}
	extRef, err := s.resolveRequired(doc, "extRef", extRefSel, "ExtRef")
	if err != nil {
		return nil, err
	}
	control, err := s.Resolve(doc, controlSel, controlTags...)
	if err != nil {
		return nil, err
	}

	if control != nil {
		return scl.Ref(scl.FindFCDA(extRef, control)), nil
	}
	for _, cb := range scl.FindControlBlocks(extRef) {
		if fcda := scl.FindFCDA(extRef, cb); fcda != nil {
			return scl.Ref(fcda), nil
		}
	}
	return nil, nil
}

// ControlBlock is a control block with the FCDAs of its data set.
type ControlBlock struct {
	Control     *scl.ElementRef   `json:"control"`
	ServiceType string            `json:"serviceType"`
	IED         string            `json:"ied"`
	FCDAs       []*scl.ElementRef `json:"fcdas"`
}

func (s *Service) ControlBlocks(docID uuid.UUID, serviceType string) ([]ControlBlock, error) {
	doc, err := s.document(docID)
	if err != nil {
		return nil, err
	}

	cbs := scl.ControlBlocks(doc.Root, serviceType)
	out := make([]ControlBlock, 0, len(cbs))
	for _, cb := range cbs {
		out = append(out, ControlBlock{
			Control:     scl.Ref(cb),
			ServiceType: scl.ServiceType(cb),
			IED:         scl.AttrOr(scl.Closest(cb, "IED"), "name"),
			FCDAs:       scl.Refs(scl.FcdaElements(cb)),
		})
	}
	return out, nil
}

// FcdaElements lists the FCDAs of the data set referenced by the control block.
func (s *Service) FcdaElements(docID uuid.UUID, controlSel string) ([]*scl.ElementRef, error) {
	doc, err := s.document(docID)
	if err != nil {
		return nil, err
	}
	control, err := s.resolveRequired(doc, "control", controlSel, controlTags...)
	if err != nil {
		return nil, err
	}
	return scl.Refs(scl.FcdaElements(control)), nil
}

func (s *Service) Ieds(docID uuid.UUID) ([]*scl.ElementRef, error) {
	doc, err := s.document(docID)
	if err != nil {
		return nil, err
	}
	return scl.Refs(scl.OrderedIeds(doc.Root)), nil
}

// Event resolves the element selectors of an editor event.
func (s *Service) Event(docID uuid.UUID, typ scl.EventType, controlSel, fcdaSel, extRefSel string) (scl.Event, error) {
	doc, err := s.document(docID)
	if err != nil {
		return scl.Event{}, err
	}

	switch typ {
	case scl.EventExtRefSelectionChanged:
		extRef, err := s.Resolve(doc, extRefSel, "ExtRef")
		if err != nil {
			return scl.Event{}, err
		}
		return scl.NewExtRefSelectionChangedEvent(extRef), nil

	case scl.EventSubscriptionChanged, scl.EventFcdaSelect:
		control, err := s.Resolve(doc, controlSel, controlTags...)
		if err != nil {
			return scl.Event{}, err
		}
		fcda, err := s.Resolve(doc, fcdaSel, "FCDA")
		if err != nil {
			return scl.Event{}, err
		}
		if typ == scl.EventFcdaSelect {
			return scl.NewFcdaSelectEvent(control, fcda), nil
		}
		return scl.NewSubscriptionChangedEvent(control, fcda), nil
	}

	return scl.Event{}, fmt.Errorf("unknown event type %q", typ)
}
