package interfaces

import (
	"context"

	"github.com/KevinKickass/OpenSCLCore/internal/config"
	"github.com/KevinKickass/OpenSCLCore/internal/documents"
	"github.com/KevinKickass/OpenSCLCore/internal/storage"
	"github.com/google/uuid"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State            string `json:"state"`
	DocumentCount    int    `json:"document_count"`
	ConnectedClients int    `json:"connected_clients"`
	Persistent       bool   `json:"persistent"`
}

// DocumentStore persists uploaded SCL documents.
type DocumentStore interface {
	SaveOrUpdateDocument(ctx context.Context, doc storage.SCLDocument) (uuid.UUID, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*storage.SCLDocument, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
}

type LifecycleManager interface {
	Config() *config.Config
	Documents() *documents.Manager

	// DocumentStore is nil when running without a database
	DocumentStore() DocumentStore

	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
