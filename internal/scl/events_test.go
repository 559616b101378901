package scl_test

import (
	"encoding/json"
	"testing"

	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"gotest.tools/assert"
)

func TestEventJSON(t *testing.T) {
	doc := loadDoc(t)
	gcb := find(t, doc, "GSEControl", "name", "GCB")
	fcda := find(t, doc, "FCDA", "daName", "stVal")

	data, err := json.Marshal(scl.NewFcdaSelectEvent(gcb, fcda))
	assert.NilError(t, err)

	var out struct {
		Type   string `json:"type"`
		Detail struct {
			Control scl.ElementRef `json:"control"`
			Fcda    scl.ElementRef `json:"fcda"`
		} `json:"detail"`
	}
	assert.NilError(t, json.Unmarshal(data, &out))
	assert.Equal(t, out.Type, "fcda-select")
	assert.Equal(t, out.Detail.Control.Tag, "GSEControl")
	assert.Equal(t, out.Detail.Control.Title, "GCB")
	assert.Equal(t, out.Detail.Fcda.Title, "CircuitBreaker_CB1 / XCBR 1 Pos.stVal")
	assert.Equal(t, out.Detail.Fcda.Path, scl.Path(fcda))
}

func TestExtRefSelectionChangedWithoutElement(t *testing.T) {
	data, err := json.Marshal(scl.NewExtRefSelectionChangedEvent(nil))
	assert.NilError(t, err)
	assert.Equal(t, string(data), `{"type":"extref-selection-changed","detail":{"extRefElement":null}}`)
}
