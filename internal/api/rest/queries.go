package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/KevinKickass/OpenSCLCore/internal/api/websocket"
	"github.com/KevinKickass/OpenSCLCore/internal/auth"
	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"github.com/KevinKickass/OpenSCLCore/internal/subscription"
	"github.com/KevinKickass/OpenSCLCore/internal/types"
	"github.com/gin-gonic/gin"
)

// queryError maps subscription query failures onto the error envelope.
func queryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, subscription.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeDocumentNotFound, "Document not found", err.Error()))
	case errors.Is(err, scl.ErrNotFound):
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeElementNotFound, "Element not found", err.Error()))
	case errors.Is(err, subscription.ErrWrongElement):
		c.JSON(http.StatusUnprocessableEntity, types.NewErrorResponse(types.CodeElementMismatch, "Unexpected element", err.Error()))
	default:
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeQueryBadRequest, "Invalid query", err.Error()))
	}
}

// laterBinding reads the later_binding query flag, falling back to the
// configured default.
func (s *Server) laterBinding(c *gin.Context) (bool, bool) {
	raw := c.Query("later_binding")
	if raw == "" {
		return s.cfg.Events.IncludeLaterBinding, true
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeQueryBadRequest, "Invalid later_binding flag", err.Error()))
		return false, false
	}
	return v, true
}

// GET /api/v1/documents/:id/ieds
func (s *Server) listIeds(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	ieds, err := s.queries.Ieds(id)
	if err != nil {
		queryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ieds": ieds, "count": len(ieds)})
}

// GET /api/v1/documents/:id/control-blocks?service_type=GOOSE
func (s *Server) listControlBlocks(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	cbs, err := s.queries.ControlBlocks(id, c.Query("service_type"))
	if err != nil {
		queryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"control_blocks": cbs, "count": len(cbs)})
}

// GET /api/v1/documents/:id/fcdas?control=
func (s *Server) listFcdas(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	fcdas, err := s.queries.FcdaElements(id, c.Query("control"))
	if err != nil {
		queryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fcdas": fcdas, "count": len(fcdas)})
}

// GET /api/v1/documents/:id/subscriptions?fcda=&control=&later_binding=
func (s *Server) listSubscribedExtRefs(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}
	laterBinding, ok := s.laterBinding(c)
	if !ok {
		return
	}

	extRefs, err := s.queries.SubscribedExtRefs(id, c.Query("fcda"), c.Query("control"), laterBinding)
	if err != nil {
		queryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"extRefs":       extRefs,
		"count":         len(extRefs),
		"later_binding": laterBinding,
	})
}

// GET /api/v1/documents/:id/extrefs?fcda=&later_binding=
func (s *Server) listExtRefCandidates(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}
	laterBinding, ok := s.laterBinding(c)
	if !ok {
		return
	}

	extRefs, err := s.queries.Candidates(id, c.Query("fcda"), laterBinding)
	if err != nil {
		queryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"extRefs":       extRefs,
		"count":         len(extRefs),
		"later_binding": laterBinding,
	})
}

// GET /api/v1/documents/:id/extrefs/status?extref=
func (s *Server) getExtRefStatus(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	status, err := s.queries.ExtRefStatus(id, c.Query("extref"))
	if err != nil {
		queryError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GET /api/v1/documents/:id/supervision?extref=
func (s *Server) getSupervision(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	ln, err := s.queries.Supervision(id, c.Query("extref"))
	if err != nil {
		queryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"supervision": ln})
}

// GET /api/v1/documents/:id/supervisions/used?service_type=GOOSE
func (s *Server) listUsedSupervisions(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	serviceType := c.DefaultQuery("service_type", "GOOSE")
	used, err := s.queries.UsedSupervisions(id, serviceType)
	if err != nil {
		queryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"service_type": serviceType,
		"ln_class":     scl.SupervisionLNClass(serviceType),
		"supervisions": used,
		"count":        len(used),
	})
}

// GET /api/v1/documents/:id/fcda?extref=&control=
func (s *Server) findFcda(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	fcda, err := s.queries.FindFCDA(id, c.Query("extref"), c.Query("control"))
	if err != nil {
		queryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fcda": fcda})
}

type PublishEventRequest struct {
	Event   scl.EventType `json:"event" binding:"required,oneof=subscription-changed extref-selection-changed fcda-select"`
	Control string        `json:"control"`
	Fcda    string        `json:"fcda"`
	ExtRef  string        `json:"extref"`
}

// POST /api/v1/documents/:id/events
// Resolves the selectors and relays the event to all WebSocket clients.
func (s *Server) publishEvent(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	var req PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeQueryBadRequest, "Invalid request body", err.Error()))
		return
	}

	if err := s.wsHub.ValidateEvent(websocket.EventRequest{
		Event:      req.Event,
		DocumentID: id,
		Control:    req.Control,
		Fcda:       req.Fcda,
		ExtRef:     req.ExtRef,
	}); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeQueryBadRequest, "Invalid event", err.Error()))
		return
	}

	if req.Event == scl.EventSubscriptionChanged {
		perms, _ := c.Get(auth.ContextPermissions)
		granted, _ := perms.([]auth.Permission)
		if !auth.HasPermission(granted, auth.PermWrite) {
			c.JSON(http.StatusForbidden, types.NewErrorResponse(types.CodeAuthUnauthorized, "insufficient permissions",
				gin.H{"required": string(auth.PermWrite)}))
			return
		}
	}

	event, err := s.queries.Event(id, req.Event, req.Control, req.Fcda, req.ExtRef)
	if err != nil {
		queryError(c, err)
		return
	}

	s.wsHub.PublishEvent(id, c.GetString(auth.ContextUsername), event)

	c.JSON(http.StatusAccepted, event)
}
