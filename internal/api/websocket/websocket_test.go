package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/OpenSCLCore/internal/auth"
	"github.com/KevinKickass/OpenSCLCore/internal/config"
	"github.com/KevinKickass/OpenSCLCore/internal/documents"
	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"github.com/KevinKickass/OpenSCLCore/internal/subscription"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gotest.tools/assert"
)

const (
	gcbSel   = "//IED[@name='Publisher']//LN0/GSEControl[@name='GCB']"
	stValSel = "//IED[@name='Publisher']//LN0/DataSet[@name='GooseDataSet1']/FCDA[@daName='stVal']"
)

type staticTokens map[string][]auth.Permission

func (s staticTokens) ValidateToken(token string) (*auth.JWTClaims, []auth.Permission, error) {
	perms, ok := s[token]
	if !ok {
		return nil, nil, errors.New("invalid token")
	}
	return &auth.JWTClaims{Username: token}, perms, nil
}

func TestValidateEvent(t *testing.T) {
	v, err := NewValidator()
	assert.NilError(t, err)

	id := uuid.New().String()
	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"fcda select", `{"type":"event","event":"fcda-select","document_id":"` + id + `","control":"//GSEControl","fcda":"//FCDA"}`, true},
		{"fcda select cleared", `{"type":"event","event":"fcda-select","document_id":"` + id + `"}`, true},
		{"extref selection", `{"type":"event","event":"extref-selection-changed","document_id":"` + id + `","extref":"//ExtRef"}`, true},
		{"subscription changed without fcda", `{"type":"event","event":"subscription-changed","document_id":"` + id + `","control":"//GSEControl"}`, false},
		{"extref selection with control", `{"type":"event","event":"extref-selection-changed","document_id":"` + id + `","control":"//GSEControl"}`, false},
		{"unknown event", `{"type":"event","event":"reload","document_id":"` + id + `"}`, false},
		{"bad document id", `{"type":"event","event":"fcda-select","document_id":"42"}`, false},
		{"unknown field", `{"type":"event","event":"fcda-select","document_id":"` + id + `","foo":1}`, false},
		{"not json", `{`, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req, err := v.ValidateEvent([]byte(c.raw))
			if c.ok {
				assert.NilError(t, err)
				assert.Equal(t, req.DocumentID.String(), id)
			} else {
				assert.Assert(t, err != nil)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	v, err := NewValidator()
	assert.NilError(t, err)
	id := uuid.New()

	assert.NilError(t, v.Validate(EventRequest{Event: scl.EventSubscriptionChanged, DocumentID: id, Control: "//GSEControl", Fcda: "//FCDA"}))
	assert.NilError(t, v.Validate(EventRequest{Event: scl.EventExtRefSelectionChanged, DocumentID: id, ExtRef: "//ExtRef"}))

	assert.Assert(t, v.Validate(EventRequest{Event: scl.EventSubscriptionChanged, DocumentID: id, Control: "//GSEControl"}) != nil)
	assert.Assert(t, v.Validate(EventRequest{Event: scl.EventExtRefSelectionChanged, DocumentID: id, Fcda: "//FCDA"}) != nil)
	assert.Assert(t, v.Validate(EventRequest{Event: scl.EventFcdaSelect, DocumentID: id, ExtRef: "//ExtRef"}) != nil)
}

type testServer struct {
	hub   *Hub
	url   string
	docID uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	content, err := os.ReadFile("../../scl/testdata/subscription.scd")
	assert.NilError(t, err)
	docs := documents.NewManager(nil, nil, zap.NewNop())
	doc, err := docs.Add("station", "", documents.SourceUpload, content)
	assert.NilError(t, err)

	tokens := staticTokens{
		"viewer":   {auth.PermRead},
		"engineer": {auth.PermRead, auth.PermWrite},
	}
	hub, err := NewHub(zap.NewNop(), tokens, subscription.NewService(docs, zap.NewNop()),
		config.EventsConfig{BroadcastBuffer: 16, IncludeLaterBinding: true})
	assert.NilError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return &testServer{hub: hub, url: "ws" + strings.TrimPrefix(srv.URL, "http"), docID: doc.ID}
}

func (s *testServer) dial(t *testing.T) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(s.url, nil)
	assert.NilError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type received struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readMessage(t *testing.T, conn *gorilla.Conn) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg received
	assert.NilError(t, conn.ReadJSON(&msg))
	return msg
}

func (s *testServer) login(t *testing.T, token string) *gorilla.Conn {
	t.Helper()
	before := s.hub.GetClientCount()

	conn := s.dial(t)
	assert.NilError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": token}))
	assert.Equal(t, readMessage(t, conn).Type, MessageTypeAuthSuccess)

	deadline := time.Now().Add(5 * time.Second)
	for s.hub.GetClientCount() == before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, s.hub.GetClientCount(), before+1)
	return conn
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	conn := s.dial(t)
	assert.NilError(t, conn.WriteJSON(map[string]string{"type": "event"}))
	assert.Equal(t, readMessage(t, conn).Type, MessageTypeAuthFailed)

	conn = s.dial(t)
	assert.NilError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "forged"}))
	assert.Equal(t, readMessage(t, conn).Type, MessageTypeAuthFailed)

	assert.Equal(t, s.hub.GetClientCount(), 0)
}

func TestFcdaSelectBroadcastAndReply(t *testing.T) {
	s := newTestServer(t)
	sender := s.login(t, "viewer")
	other := s.login(t, "engineer")

	assert.NilError(t, sender.WriteJSON(map[string]any{
		"type":        "event",
		"event":       "fcda-select",
		"document_id": s.docID,
		"control":     gcbSel,
		"fcda":        stValSel,
	}))

	// Broadcast and direct reply travel on separate hub channels
	got := map[MessageType]json.RawMessage{}
	for i := 0; i < 2; i++ {
		msg := readMessage(t, sender)
		got[msg.Type] = msg.Data
	}

	var event struct {
		Sender string `json:"sender"`
		Event  struct {
			Type   string `json:"type"`
			Detail struct {
				Control struct {
					Title string `json:"title"`
				} `json:"control"`
			} `json:"detail"`
		} `json:"event"`
	}
	assert.NilError(t, json.Unmarshal(got[MessageTypeEditorEvent], &event))
	assert.Equal(t, event.Sender, "viewer")
	assert.Equal(t, event.Event.Type, "fcda-select")
	assert.Equal(t, event.Event.Detail.Control.Title, "GCB")

	var reply SubscribedExtRefsData
	assert.NilError(t, json.Unmarshal(got[MessageTypeSubscribedExtRefs], &reply))
	assert.Assert(t, reply.LaterBinding)
	assert.Equal(t, len(reply.ExtRefs), 1)
	assert.Equal(t, reply.ExtRefs[0].Attributes["desc"], "bound-stVal")

	msg := readMessage(t, other)
	assert.Equal(t, msg.Type, MessageTypeEditorEvent)
}

func TestSubscriptionChangedNeedsWrite(t *testing.T) {
	s := newTestServer(t)
	conn := s.login(t, "viewer")

	assert.NilError(t, conn.WriteJSON(map[string]any{
		"type":        "event",
		"event":       "subscription-changed",
		"document_id": s.docID,
		"control":     gcbSel,
		"fcda":        stValSel,
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, msg.Type, MessageTypeError)
	var data ErrorData
	assert.NilError(t, json.Unmarshal(msg.Data, &data))
	assert.Assert(t, strings.Contains(data.Reason, "insufficient permissions"))
}

func TestUnresolvableSelector(t *testing.T) {
	s := newTestServer(t)
	conn := s.login(t, "engineer")

	assert.NilError(t, conn.WriteJSON(map[string]any{
		"type":        "event",
		"event":       "extref-selection-changed",
		"document_id": s.docID,
		"extref":      "//ExtRef[@desc='missing']",
	}))
	assert.Equal(t, readMessage(t, conn).Type, MessageTypeError)
}

func TestBroadcastDocumentLoaded(t *testing.T) {
	s := newTestServer(t)
	conn := s.login(t, "viewer")

	s.hub.Broadcast(NewDocumentMessage(MessageTypeDocumentLoaded, s.docID, "station"))

	msg := readMessage(t, conn)
	assert.Equal(t, msg.Type, MessageTypeDocumentLoaded)
	var data DocumentData
	assert.NilError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, data.Name, "station")
}
