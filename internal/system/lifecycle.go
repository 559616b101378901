package system

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/KevinKickass/OpenSCLCore/internal/api/rest"
	"github.com/KevinKickass/OpenSCLCore/internal/api/websocket"
	"github.com/KevinKickass/OpenSCLCore/internal/auth"
	"github.com/KevinKickass/OpenSCLCore/internal/config"
	"github.com/KevinKickass/OpenSCLCore/internal/documents"
	"github.com/KevinKickass/OpenSCLCore/internal/interfaces"
	"github.com/KevinKickass/OpenSCLCore/internal/storage"
	"github.com/KevinKickass/OpenSCLCore/internal/subscription"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type LifecycleManager struct {
	config      *config.Config
	storage     *storage.PostgresClient
	documents   *documents.Manager
	queries     *subscription.Service
	authService *auth.AuthService
	logger      *zap.Logger

	wsHub      *websocket.Hub
	stopHub    context.CancelFunc
	restServer *rest.Server
	grpcServer *grpc.Server
	health     *health.Server

	stateMu      sync.RWMutex
	currentState SystemState

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// NewLifecycleManager wires the services. store may be nil, documents then
// live in memory only.
func NewLifecycleManager(store *storage.PostgresClient, cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	docs := documents.NewManager(cfg.Documents.SearchPaths, cfg.Documents.Extensions, logger)
	queries := subscription.NewService(docs, logger)

	var users auth.UserStore
	if store != nil {
		users = store
	}
	authService := auth.NewAuthService(users, cfg.Auth, logger)

	hub, err := websocket.NewHub(logger, authService, queries, cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("failed to create websocket hub: %w", err)
	}

	lm := &LifecycleManager{
		config:       cfg,
		storage:      store,
		documents:    docs,
		queries:      queries,
		authService:  authService,
		logger:       logger,
		wsHub:        hub,
		health:       health.NewServer(),
		currentState: StateInitializing,
		shutdownChan: make(chan struct{}),
	}
	hub.SetStatusProvider(lm)

	return lm, nil
}

func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}

func (lm *LifecycleManager) Documents() *documents.Manager {
	return lm.documents
}

func (lm *LifecycleManager) DocumentStore() interfaces.DocumentStore {
	if lm.storage == nil {
		return nil
	}
	return lm.storage
}

// Done is closed once Shutdown has finished.
func (lm *LifecycleManager) Done() <-chan struct{} {
	return lm.shutdownChan
}

// Start starts the entire system
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.logger.Info("Starting OpenSCLCore")

	if lm.storage != nil {
		if err := lm.storage.EnsureSchema(ctx); err != nil {
			lm.setError(err)
			return err
		}
		if err := lm.authService.Bootstrap(ctx, lm.config.Auth); err != nil {
			lm.logger.Warn("Failed to bootstrap admin account", zap.Error(err))
		}
	}

	if err := lm.loadDocuments(ctx); err != nil {
		lm.logger.Warn("Failed to load documents", zap.Error(err))
		// Continue anyway, documents can be uploaded later
	}

	hubCtx, cancel := context.WithCancel(context.Background())
	lm.stopHub = cancel
	go lm.wsHub.Run(hubCtx)

	if err := lm.startGRPCServer(); err != nil {
		lm.setError(fmt.Errorf("failed to start gRPC: %w", err))
		return err
	}

	if err := lm.startRESTServer(); err != nil {
		lm.setError(fmt.Errorf("failed to start REST API: %w", err))
		return err
	}

	lm.setState(StateRunning)
	lm.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	lm.broadcastStatus()

	lm.logger.Info("System started successfully",
		zap.Int("grpc_port", lm.config.Server.GRPCPort),
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Int("documents", lm.documents.Count()))

	return nil
}

// loadDocuments registers stored uploads first, then the search path files.
func (lm *LifecycleManager) loadDocuments(ctx context.Context) error {
	if lm.storage != nil {
		stored, err := lm.storage.LoadAllDocuments(ctx)
		if err != nil {
			return fmt.Errorf("failed to load stored documents: %w", err)
		}

		lm.logger.Info("Loading documents from database", zap.Int("count", len(stored)))

		for _, doc := range stored {
			if _, err := lm.documents.AddWithID(doc.ID, doc.Name, doc.Description, documents.SourceDatabase, []byte(doc.Content)); err != nil {
				lm.logger.Error("Failed to load stored document",
					zap.String("name", doc.Name),
					zap.Error(err))
			}
		}
	}

	if _, err := lm.documents.LoadSearchPaths(); err != nil {
		return fmt.Errorf("failed to scan search paths: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping)
		lm.health.Shutdown()
		lm.broadcastStatus()

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
		close(lm.shutdownChan)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// REST API Server graceful shutdown
	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	// gRPC Server graceful stop
	if lm.grpcServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lm.logger.Info("Stopping gRPC server")
			lm.grpcServer.GracefulStop()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		lm.logger.Info("Graceful shutdown completed")
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		if lm.grpcServer != nil {
			lm.grpcServer.Stop()
		}
		err = fmt.Errorf("shutdown timeout exceeded")
	case err = <-errChan:
	}

	// Disconnect WebSocket clients last so they see the final status
	if lm.stopHub != nil {
		lm.stopHub()
	}
	return err
}

func (lm *LifecycleManager) startGRPCServer() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", lm.config.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	lm.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(lm.grpcServer, lm.health)
	lm.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	go func() {
		lm.logger.Info("gRPC server listening",
			zap.Int("port", lm.config.Server.GRPCPort),
			zap.String("services", "grpc.health.v1.Health"))
		if err := lm.grpcServer.Serve(lis); err != nil {
			lm.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()

	return nil
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(lm.config, lm, lm.logger, lm.wsHub, lm.authService, lm.queries)
	return lm.restServer.Start()
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("Unexpected state transition", zap.Error(err))
	}
	lm.currentState = state
}

func (lm *LifecycleManager) setError(err error) {
	lm.logger.Error("System error", zap.Error(err))
	lm.setState(StateError)
}

func (lm *LifecycleManager) broadcastStatus() {
	lm.wsHub.Broadcast(websocket.NewMessage(websocket.MessageTypeSystemStatus, lm.GetCurrentStatus()))
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	return interfaces.SystemStatus{
		State:            lm.currentState.String(),
		DocumentCount:    lm.documents.Count(),
		ConnectedClients: lm.wsHub.GetClientCount(),
		Persistent:       lm.storage != nil,
	}
}
