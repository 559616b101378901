package websocket

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/editor-event-v1.json
var editorEventSchemaJSON string

// Validator checks inbound editor event messages against the embedded schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("editor-event-v1.json",
		strings.NewReader(editorEventSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("editor-event-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateEvent validates raw and decodes it into an EventRequest.
func (v *Validator) ValidateEvent(raw []byte) (*EventRequest, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var req EventRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid event message: %w", err)
	}
	return &req, nil
}

// Validate checks an event built outside a WebSocket connection against the
// same schema.
func (v *Validator) Validate(req EventRequest) error {
	req.Type = "event"
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("invalid event message: %w", err)
	}
	_, err = v.ValidateEvent(raw)
	return err
}
