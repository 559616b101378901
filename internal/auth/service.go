package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KevinKickass/OpenSCLCore/internal/config"
	"github.com/KevinKickass/OpenSCLCore/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Permission string

const (
	PermRead  Permission = "read"
	PermWrite Permission = "write"
	PermAdmin Permission = "admin"
)

const (
	RoleViewer   = "viewer"
	RoleEngineer = "engineer"
	RoleAdmin    = "admin"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrNoUserStore        = errors.New("no user store configured")
)

// UserStore is the part of the storage layer the auth service needs.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*storage.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error)
	CreateUser(ctx context.Context, username, passwordHash, role string) (*storage.User, error)
	CountUsers(ctx context.Context) (int, error)
	RecordLogin(ctx context.Context, userID uuid.UUID) error
	IncrementFailedLoginAttempts(ctx context.Context, userID uuid.UUID) error
}

type AuthService struct {
	store          UserStore
	jwtHandler     *JWTHandler
	passwordHasher *PasswordHasher
	logger         *zap.Logger
}

func NewAuthService(store UserStore, cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	if !cfg.IsProductionReady() {
		logger.Warn("JWT secret not configured, using development secret",
			zap.String("env", cfg.JWTSecretEnv))
	}

	return &AuthService{
		store:          store,
		jwtHandler:     NewJWTHandler(cfg.GetJWTSecret(), cfg.AccessTokenTTL),
		passwordHasher: NewPasswordHasher(),
		logger:         logger,
	}
}

// WithPasswordHasher replaces the hasher, used to lower the Argon2 cost in tests.
func (a *AuthService) WithPasswordHasher(h *PasswordHasher) *AuthService {
	a.passwordHasher = h
	return a
}

// LoginUser authenticates a user and returns a signed access token
func (a *AuthService) LoginUser(ctx context.Context, username, password, ipAddress string) (string, error) {
	if a.store == nil {
		return "", ErrInvalidCredentials
	}

	user, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		a.logger.Info("Login failed", zap.String("username", username),
			zap.String("ip", ipAddress), zap.String("reason", "user not found"))
		return "", ErrInvalidCredentials
	}

	if user.LockedUntil != nil && time.Now().Before(*user.LockedUntil) {
		return "", fmt.Errorf("%w until %v", ErrAccountLocked, user.LockedUntil)
	}

	valid, err := a.passwordHasher.VerifyPassword(password, user.PasswordHash)
	if err != nil || !valid {
		if err := a.store.IncrementFailedLoginAttempts(ctx, user.ID); err != nil {
			a.logger.Error("Failed to record failed login", zap.Error(err))
		}
		a.logger.Info("Login failed", zap.String("username", username),
			zap.String("ip", ipAddress), zap.String("reason", "invalid password"))
		return "", ErrInvalidCredentials
	}

	if err := a.store.RecordLogin(ctx, user.ID); err != nil {
		a.logger.Error("Failed to record login", zap.Error(err))
	}

	accessToken, err := a.jwtHandler.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	a.logger.Info("User logged in", zap.String("username", username), zap.String("ip", ipAddress))
	return accessToken, nil
}

// ValidateToken validates an access token and returns the granted permissions
func (a *AuthService) ValidateToken(token string) (*JWTClaims, []Permission, error) {
	claims, err := a.jwtHandler.ValidateAccessToken(token)
	if err != nil {
		return nil, nil, err
	}
	return claims, a.roleToPermissions(claims.Role), nil
}

func (a *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error) {
	if a.store == nil {
		return nil, ErrNoUserStore
	}
	return a.store.GetUserByID(ctx, userID)
}

// CreateUser hashes the password and stores a new user
func (a *AuthService) CreateUser(ctx context.Context, username, password, role string) (*storage.User, error) {
	if a.store == nil {
		return nil, ErrNoUserStore
	}
	if !validRole(role) {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	hash, err := a.passwordHasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return a.store.CreateUser(ctx, username, hash, role)
}

// Bootstrap creates the configured admin account if no user exists yet.
func (a *AuthService) Bootstrap(ctx context.Context, cfg config.AuthConfig) error {
	if cfg.BootstrapAdmin == "" || a.store == nil {
		return nil
	}

	n, err := a.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password := cfg.BootstrapPassword()
	if password == "" {
		return fmt.Errorf("bootstrap admin %q configured but %s is empty", cfg.BootstrapAdmin, cfg.BootstrapPasswordEnv)
	}

	if _, err := a.CreateUser(ctx, cfg.BootstrapAdmin, password, RoleAdmin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	a.logger.Info("Bootstrap admin created", zap.String("username", cfg.BootstrapAdmin))
	return nil
}

func (a *AuthService) AccessTokenTTL() time.Duration {
	return a.jwtHandler.AccessTokenTTL()
}

func (a *AuthService) roleToPermissions(role string) []Permission {
	switch role {
	case RoleAdmin:
		return []Permission{PermRead, PermWrite, PermAdmin}
	case RoleEngineer:
		return []Permission{PermRead, PermWrite}
	case RoleViewer:
		return []Permission{PermRead}
	default:
		return []Permission{}
	}
}

func validRole(role string) bool {
	return role == RoleViewer || role == RoleEngineer || role == RoleAdmin
}
