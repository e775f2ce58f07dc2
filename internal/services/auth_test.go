package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lessonlab-backend/internal/middleware"
	"lessonlab-backend/internal/models"
)

type stubUserStore struct {
	byEmail map[string]*models.User
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{byEmail: make(map[string]*models.User)}
}

func (s *stubUserStore) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	user.IsActive = true
	user.CreatedAt = time.Now()
	s.byEmail[user.Email] = user
	return nil
}

func (s *stubUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUserStore) UpdateLastLogin(ctx context.Context, id uuid.UUID) error { return nil }

type memTokenStore struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memTokenStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memTokenStore) Take(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrTokenNotFound
	}
	delete(m.values, key)
	return v, nil
}

func (m *memTokenStore) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func newTestAuthService() (*AuthService, *stubUserStore, *memTokenStore) {
	users := newStubUserStore()
	tokens := &memTokenStore{values: make(map[string]string)}
	jwtAuth := middleware.NewJWTAuth("test-secret", "authenticated")
	return NewAuthService(users, tokens, jwtAuth), users, tokens
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestAuthService()

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "not-an-email", Password: "short"})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "email")
	assert.Contains(t, vErr.Fields, "password")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuthService()
	req := models.RegisterRequest{Email: "Teacher@School.org", Password: "lessons123", FullName: "Ms. Frizzle"}

	user, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "teacher@school.org", user.Email)
	assert.NotEqual(t, "lessons123", user.PasswordHash)

	_, err = svc.Register(context.Background(), req)
	var cErr *ConflictError
	assert.ErrorAs(t, err, &cErr)
}

func TestLogin_RefreshRotation(t *testing.T) {
	svc, _, tokens := newTestAuthService()
	ctx := context.Background()
	_, err := svc.Register(ctx, models.RegisterRequest{Email: "t@school.org", Password: "lessons123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "t@school.org", Password: "wrong-pass1"})
	var uErr *UnauthorizedError
	require.ErrorAs(t, err, &uErr)

	first, err := svc.Login(ctx, models.LoginRequest{Email: "t@school.org", Password: "lessons123"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.AccessToken)
	assert.Equal(t, 900, first.ExpiresIn)
	assert.Contains(t, tokens.values, "refresh:"+first.RefreshToken)

	second, err := svc.RefreshToken(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotContains(t, tokens.values, "refresh:"+first.RefreshToken, "old refresh token revoked")

	_, err = svc.RefreshToken(ctx, first.RefreshToken)
	assert.ErrorAs(t, err, &uErr)

	require.NoError(t, svc.Logout(ctx, second.RefreshToken))
	assert.Empty(t, tokens.values)
}

func TestRefreshToken_ConcurrentUseRotatesOnce(t *testing.T) {
	svc, _, _ := newTestAuthService()
	ctx := context.Background()
	_, err := svc.Register(ctx, models.RegisterRequest{Email: "t@school.org", Password: "lessons123"})
	require.NoError(t, err)
	tokens, err := svc.Login(ctx, models.LoginRequest{Email: "t@school.org", Password: "lessons123"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RefreshToken(ctx, tokens.RefreshToken); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
}

func TestLogin_AccessTokenCarriesUser(t *testing.T) {
	svc, _, _ := newTestAuthService()
	ctx := context.Background()
	user, err := svc.Register(ctx, models.RegisterRequest{Email: "t@school.org", Password: "lessons123"})
	require.NoError(t, err)

	tokens, err := svc.Login(ctx, models.LoginRequest{Email: "t@school.org", Password: "lessons123"})
	require.NoError(t, err)

	sub, err := middleware.NewJWTAuth("test-secret", "authenticated").ParseAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sub)
}
