package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lessonlab-backend/internal/models"
	"lessonlab-backend/internal/services"
)

type stubAuthService struct {
	user       *models.User
	tokens     *models.AuthTokens
	err        error
	loggedOut  string
	refreshed  string
	registered models.RegisterRequest
}

func (s *stubAuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	s.registered = req
	return s.user, s.err
}

func (s *stubAuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthTokens, error) {
	return s.tokens, s.err
}

func (s *stubAuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	s.refreshed = refreshToken
	return s.tokens, s.err
}

func (s *stubAuthService) Logout(ctx context.Context, refreshToken string) error {
	s.loggedOut = refreshToken
	return s.err
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthHandler_Register(t *testing.T) {
	svc := &stubAuthService{user: &models.User{ID: uuid.New(), Email: "t@school.org", PasswordHash: "secret-hash"}}
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Register(rr, jsonRequest(http.MethodPost, "/api/auth/register",
		map[string]string{"email": "t@school.org", "password": "lessons123", "full_name": "T"}))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "T", svc.registered.FullName)
	assert.NotContains(t, rr.Body.String(), "secret-hash")
}

func TestAuthHandler_Register_Conflict(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{err: &services.ConflictError{Message: "Email already in use"}})

	rr := httptest.NewRecorder()
	h.Register(rr, jsonRequest(http.MethodPost, "/api/auth/register", map[string]string{"email": "t@school.org"}))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Email already in use", decodeError(t, rr).Detail)
}

func TestAuthHandler_Login(t *testing.T) {
	svc := &stubAuthService{tokens: &models.AuthTokens{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900}}
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Login(rr, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{"email": "t@school.org", "password": "x"}))

	require.Equal(t, http.StatusOK, rr.Code)
	var got models.AuthTokens
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, "a", got.AccessToken)
	assert.Equal(t, 900, got.ExpiresIn)
}

func TestAuthHandler_Login_Unauthorized(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{err: &services.UnauthorizedError{Message: "Invalid email or password"}})

	rr := httptest.NewRecorder()
	h.Login(rr, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{"email": "t@school.org"}))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid email or password", decodeError(t, rr).Detail)
}

func TestAuthHandler_RefreshAndLogout(t *testing.T) {
	svc := &stubAuthService{tokens: &models.AuthTokens{AccessToken: "a2", RefreshToken: "r2"}}
	h := NewAuthHandler(svc)

	rr := httptest.NewRecorder()
	h.Refresh(rr, jsonRequest(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": "r1"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "r1", svc.refreshed)

	rr = httptest.NewRecorder()
	h.Logout(rr, jsonRequest(http.MethodPost, "/api/auth/logout", map[string]string{"refresh_token": "r2"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "r2", svc.loggedOut)
}
