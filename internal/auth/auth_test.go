package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/KevinKickass/OpenSCLCore/internal/config"
	"github.com/KevinKickass/OpenSCLCore/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gotest.tools/assert"
)

type memoryUsers struct {
	mu     sync.Mutex
	users  map[string]*storage.User
	failed map[uuid.UUID]int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]*storage.User{}, failed: map[uuid.UUID]int{}}
}

func (m *memoryUsers) GetUserByUsername(_ context.Context, username string) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) GetUserByID(_ context.Context, id uuid.UUID) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *memoryUsers) CreateUser(_ context.Context, username, hash, role string) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &storage.User{ID: uuid.New(), Username: username, PasswordHash: hash, Role: role, CreatedAt: time.Now()}
	m.users[username] = u
	return u, nil
}

func (m *memoryUsers) CountUsers(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *memoryUsers) RecordLogin(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id] = 0
	return nil
}

func (m *memoryUsers) IncrementFailedLoginAttempts(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id]++
	return nil
}

func newTestService(t *testing.T) (*AuthService, *memoryUsers) {
	t.Helper()
	store := newMemoryUsers()
	cfg := config.AuthConfig{JWTSecretEnv: "OSC_TEST_UNSET_SECRET", AccessTokenTTL: time.Minute}
	svc := NewAuthService(store, cfg, zap.NewNop()).WithPasswordHasher(NewPasswordHasherWithCost(64, 1))
	return svc, store
}

func TestPasswordHashRoundTrip(t *testing.T) {
	h := NewPasswordHasherWithCost(64, 1)

	hash, err := h.HashPassword("s3cret-passw0rd")
	assert.NilError(t, err)

	ok, err := h.VerifyPassword("s3cret-passw0rd", hash)
	assert.NilError(t, err)
	assert.Assert(t, ok)

	ok, err = h.VerifyPassword("wrong", hash)
	assert.NilError(t, err)
	assert.Assert(t, !ok)

	_, err = h.VerifyPassword("x", "$bcrypt$nope")
	assert.ErrorContains(t, err, "invalid hash format")
}

func TestLoginAndValidate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "engineer", "password123", RoleEngineer)
	assert.NilError(t, err)

	_, err = svc.LoginUser(ctx, "engineer", "bad", "127.0.0.1")
	assert.Equal(t, err, ErrInvalidCredentials)
	assert.Equal(t, store.failed[user.ID], 1)

	token, err := svc.LoginUser(ctx, "engineer", "password123", "127.0.0.1")
	assert.NilError(t, err)
	assert.Equal(t, store.failed[user.ID], 0)

	claims, perms, err := svc.ValidateToken(token)
	assert.NilError(t, err)
	assert.Equal(t, claims.Username, "engineer")
	assert.DeepEqual(t, perms, []Permission{PermRead, PermWrite})

	_, _, err = svc.ValidateToken(token + "x")
	assert.ErrorContains(t, err, "failed to parse token")
}

func TestLockedAccount(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "viewer", "password123", RoleViewer)
	assert.NilError(t, err)
	until := time.Now().Add(time.Minute)
	store.users["viewer"].LockedUntil = &until

	_, err = svc.LoginUser(ctx, user.Username, "password123", "")
	assert.Assert(t, errors.Is(err, ErrAccountLocked))
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateUser(context.Background(), "x", "password123", "root")
	assert.ErrorContains(t, err, "unknown role")
}

func TestBootstrap(t *testing.T) {
	svc, store := newTestService(t)
	cfg := config.AuthConfig{BootstrapAdmin: "admin", BootstrapPasswordEnv: "OSC_TEST_ADMIN_PASSWORD"}

	err := svc.Bootstrap(context.Background(), cfg)
	assert.ErrorContains(t, err, "OSC_TEST_ADMIN_PASSWORD is empty")

	t.Setenv("OSC_TEST_ADMIN_PASSWORD", "password123")
	assert.NilError(t, svc.Bootstrap(context.Background(), cfg))
	assert.Equal(t, store.users["admin"].Role, RoleAdmin)

	// second run is a no-op
	assert.NilError(t, svc.Bootstrap(context.Background(), cfg))
	assert.Equal(t, len(store.users), 1)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "viewer", "password123", RoleViewer)
	assert.NilError(t, err)
	token, err := svc.LoginUser(ctx, "viewer", "password123", "")
	assert.NilError(t, err)

	r := gin.New()
	r.GET("/read", svc.AuthMiddleware(), RequirePermission(PermRead), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/write", svc.AuthMiddleware(), RequirePermission(PermWrite), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	cases := []struct {
		path   string
		header string
		want   int
	}{
		{"/read", "", http.StatusUnauthorized},
		{"/read", "Token " + token, http.StatusUnauthorized},
		{"/read", "Bearer garbage", http.StatusUnauthorized},
		{"/read", "Bearer " + token, http.StatusNoContent},
		{"/write", "Bearer " + token, http.StatusForbidden},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, c.path, nil)
		if c.header != "" {
			req.Header.Set("Authorization", c.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, w.Code, c.want, "%s %q", c.path, c.header)
	}
}

func TestServiceWithoutStore(t *testing.T) {
	svc := NewAuthService(nil, config.AuthConfig{AccessTokenTTL: time.Minute}, zap.NewNop())

	_, err := svc.LoginUser(context.Background(), "admin", "secret", "127.0.0.1")
	assert.Assert(t, errors.Is(err, ErrInvalidCredentials))

	_, err = svc.CreateUser(context.Background(), "admin", "secret", RoleAdmin)
	assert.Assert(t, errors.Is(err, ErrNoUserStore))

	assert.NilError(t, svc.Bootstrap(context.Background(), config.AuthConfig{BootstrapAdmin: "admin"}))
}
