package scl

import (
	"encoding/json"

	"github.com/antchfx/xmlquery"
)

// EventType names the editor events exchanged with subscription views.
type EventType string

const (
	EventSubscriptionChanged    EventType = "subscription-changed"
	EventExtRefSelectionChanged EventType = "extref-selection-changed"
	EventFcdaSelect             EventType = "fcda-select"
)

// SubscriptionChangedDetail is sent after an ExtRef was (un)subscribed from
// an FCDA of a control block.
type SubscriptionChangedDetail struct {
	Control *xmlquery.Node
	Fcda    *xmlquery.Node
}

// ExtRefSelectionChangedDetail carries the ExtRef picked in a subscriber view.
type ExtRefSelectionChangedDetail struct {
	ExtRef *xmlquery.Node
}

// FcdaSelectDetail carries the FCDA picked in a publisher view together with
// the control block it was picked under.
type FcdaSelectDetail struct {
	Control *xmlquery.Node
	Fcda    *xmlquery.Node
}

type Event struct {
	Type   EventType
	Detail any
}

func NewSubscriptionChangedEvent(control, fcda *xmlquery.Node) Event {
	return Event{
		Type:   EventSubscriptionChanged,
		Detail: SubscriptionChangedDetail{Control: control, Fcda: fcda},
	}
}

func NewExtRefSelectionChangedEvent(extRef *xmlquery.Node) Event {
	return Event{
		Type:   EventExtRefSelectionChanged,
		Detail: ExtRefSelectionChangedDetail{ExtRef: extRef},
	}
}

func NewFcdaSelectEvent(control, fcda *xmlquery.Node) Event {
	return Event{
		Type:   EventFcdaSelect,
		Detail: FcdaSelectDetail{Control: control, Fcda: fcda},
	}
}

func (d SubscriptionChangedDetail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Control *ElementRef `json:"control"`
		Fcda    *ElementRef `json:"fcda"`
	}{Ref(d.Control), Ref(d.Fcda)})
}

func (d ExtRefSelectionChangedDetail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ExtRef *ElementRef `json:"extRefElement"`
	}{Ref(d.ExtRef)})
}

func (d FcdaSelectDetail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Control *ElementRef `json:"control"`
		Fcda    *ElementRef `json:"fcda"`
	}{Ref(d.Control), Ref(d.Fcda)})
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   EventType `json:"type"`
		Detail any       `json:"detail"`
	}{e.Type, e.Detail})
}
