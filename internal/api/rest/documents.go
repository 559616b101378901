package rest

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/KevinKickass/OpenSCLCore/internal/api/websocket"
	"github.com/KevinKickass/OpenSCLCore/internal/documents"
	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"github.com/KevinKickass/OpenSCLCore/internal/storage"
	"github.com/KevinKickass/OpenSCLCore/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Server) documentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeDocumentBadRequest, "Invalid document ID", err.Error()))
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/v1/documents
func (s *Server) listDocuments(c *gin.Context) {
	docs := s.lm.Documents().List()

	response := make([]documents.Info, 0, len(docs))
	for _, doc := range docs {
		response = append(response, doc.Info())
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": response,
		"count":     len(response),
	})
}

// GET /api/v1/documents/:id
func (s *Server) getDocument(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	doc, exists := s.lm.Documents().Get(id)
	if !exists {
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeDocumentNotFound, "Document not found", nil))
		return
	}

	root := scl.RootElement(doc.Root)
	c.JSON(http.StatusOK, gin.H{
		"document": doc.Info(),
		"version":  scl.AttrOr(root, "version"),
		"revision": scl.AttrOr(root, "revision"),
		"ieds":     len(scl.Children(root, "IED")),
	})
}

// GET /api/v1/documents/:id/content
func (s *Server) getDocumentContent(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	doc, exists := s.lm.Documents().Get(id)
	if !exists {
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeDocumentNotFound, "Document not found", nil))
		return
	}

	// Stored documents are served as uploaded
	if store := s.lm.DocumentStore(); store != nil && doc.Source != documents.SourceFile {
		stored, err := store.GetDocument(c.Request.Context(), id)
		switch {
		case err == nil:
			c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(stored.Content))
			return
		case !errors.Is(err, storage.ErrDocumentNotFound):
			s.logger.Error("Failed to load stored document", zap.String("id", id.String()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeDocumentInternal, "Failed to load document", err.Error()))
			return
		}
	}

	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(doc.Root.OutputXML(true)))
}

// POST /api/v1/documents
// Accepts a multipart form with a "file" field or the raw XML as body.
func (s *Server) uploadDocument(c *gin.Context) {
	maxSize := s.cfg.Server.MaxDocumentSize
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)

	name := c.Query("name")
	description := c.Query("description")

	var content []byte
	var err error
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		content, name, description, err = readMultipartDocument(c, name, description)
	} else {
		content, err = io.ReadAll(c.Request.Body)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, types.NewErrorResponse(types.CodeDocumentTooLarge,
				"Document exceeds size limit", gin.H{"max_bytes": maxSize}))
			return
		}
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeDocumentBadRequest, "Failed to read document", err.Error()))
		return
	}

	name = strings.TrimSpace(name)
	if name == "" {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeDocumentBadRequest, "Document name is required", nil))
		return
	}
	if len(content) == 0 {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeDocumentBadRequest, "Document is empty", nil))
		return
	}

	// Reject invalid content before it reaches the database
	if _, err := scl.Parse(bytes.NewReader(content)); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeDocumentBadRequest, "Invalid SCL document", err.Error()))
		return
	}

	docs := s.lm.Documents()
	id := uuid.New()
	if existing, ok := docs.GetByName(name); ok {
		if existing.Source == documents.SourceFile {
			c.JSON(http.StatusConflict, types.NewErrorResponse(types.CodeDocumentConflict,
				"Document name is taken by a search path file", gin.H{"name": name, "path": existing.Path}))
			return
		}
		id = existing.ID
	}

	if store := s.lm.DocumentStore(); store != nil {
		id, err = store.SaveOrUpdateDocument(c.Request.Context(), storage.SCLDocument{
			ID:          id,
			Name:        name,
			Description: description,
			Content:     string(content),
		})
		if err != nil {
			s.logger.Error("Failed to save document", zap.String("name", name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeDocumentInternal, "Failed to save document", err.Error()))
			return
		}
	}

	doc, err := docs.AddWithID(id, name, description, documents.SourceUpload, content)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeDocumentBadRequest, "Invalid SCL document", err.Error()))
		return
	}

	s.wsHub.Broadcast(websocket.NewDocumentMessage(websocket.MessageTypeDocumentLoaded, doc.ID, doc.Name))

	c.JSON(http.StatusCreated, doc.Info())
}

func readMultipartDocument(c *gin.Context, name, description string) ([]byte, string, string, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, "", "", err
	}

	if name == "" {
		name = c.PostForm("name")
	}
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	if description == "" {
		description = c.PostForm("description")
	}

	f, err := header.Open()
	if err != nil {
		return nil, "", "", err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	return content, name, description, err
}

// DELETE /api/v1/documents/:id
func (s *Server) deleteDocument(c *gin.Context) {
	id, ok := s.documentID(c)
	if !ok {
		return
	}

	docs := s.lm.Documents()
	doc, exists := docs.Get(id)
	if !exists {
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeDocumentNotFound, "Document not found", nil))
		return
	}

	// Documents from the search paths are not stored
	if store := s.lm.DocumentStore(); store != nil && doc.Source != documents.SourceFile {
		if err := store.DeleteDocument(c.Request.Context(), id); err != nil && !errors.Is(err, storage.ErrDocumentNotFound) {
			c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeDocumentInternal, "Failed to delete document", err.Error()))
			return
		}
	}

	docs.Remove(id)
	s.wsHub.Broadcast(websocket.NewDocumentMessage(websocket.MessageTypeDocumentRemoved, doc.ID, doc.Name))

	c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
}

// POST /api/v1/documents/reload
func (s *Server) reloadDocuments(c *gin.Context) {
	loaded, err := s.lm.Documents().Reload()
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeDocumentInternal, "Failed to scan search paths", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loaded": loaded,
		"total":  s.lm.Documents().Count(),
	})
}
