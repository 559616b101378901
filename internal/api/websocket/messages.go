package websocket

import (
	"time"

	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"github.com/google/uuid"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Connection messages
	MessageTypeAuthSuccess MessageType = "auth_success"
	MessageTypeAuthFailed  MessageType = "auth_failed"
	MessageTypeError       MessageType = "error"

	// Editor events relayed between subscription views
	MessageTypeEditorEvent MessageType = "editor_event"

	// Reply to fcda-select with the ExtRefs subscribed to the FCDA
	MessageTypeSubscribedExtRefs MessageType = "subscribed_extrefs"

	// Document registry changes
	MessageTypeDocumentLoaded  MessageType = "document_loaded"
	MessageTypeDocumentRemoved MessageType = "document_removed"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// EventRequest is an inbound editor event. Element fields hold XPath
// selectors into the document.
type EventRequest struct {
	Type         string        `json:"type"`
	Event        scl.EventType `json:"event"`
	DocumentID   uuid.UUID     `json:"document_id"`
	Control      string        `json:"control,omitempty"`
	Fcda         string        `json:"fcda,omitempty"`
	ExtRef       string        `json:"extref,omitempty"`
	LaterBinding *bool         `json:"later_binding,omitempty"`
}

// EditorEventData wraps a resolved editor event with its document.
type EditorEventData struct {
	DocumentID uuid.UUID `json:"document_id"`
	Sender     string    `json:"sender,omitempty"`
	Event      scl.Event `json:"event"`
}

type SubscribedExtRefsData struct {
	DocumentID   uuid.UUID         `json:"document_id"`
	Control      string            `json:"control"`
	Fcda         string            `json:"fcda"`
	LaterBinding bool              `json:"later_binding"`
	ExtRefs      []*scl.ElementRef `json:"extRefs"`
}

type DocumentData struct {
	DocumentID uuid.UUID `json:"document_id"`
	Name       string    `json:"name"`
}

type ErrorData struct {
	Reason string `json:"reason"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewEditorEventMessage(docID uuid.UUID, sender string, event scl.Event) Message {
	return NewMessage(MessageTypeEditorEvent, EditorEventData{
		DocumentID: docID,
		Sender:     sender,
		Event:      event,
	})
}

func NewDocumentMessage(msgType MessageType, docID uuid.UUID, name string) Message {
	return NewMessage(msgType, DocumentData{DocumentID: docID, Name: name})
}

func NewErrorMessage(reason string) Message {
	return NewMessage(MessageTypeError, ErrorData{Reason: reason})
}
