// Package client talks to the lesson API over HTTP. Pages and the CLI use it;
// nothing else in the process issues lesson requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"lessonlab-backend/internal/config"
	"lessonlab-backend/internal/models"
)

// ErrNotAuthenticated is returned before any network I/O when no bearer
// token is available.
var ErrNotAuthenticated = errors.New("not authenticated")

// TokenSource hands out a bearer token for the current user.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// APIError is a non-2xx answer. Detail is the server's message, meant to be
// shown to users as is.
type APIError struct {
	Status int
	Code   string
	Detail string
}

func (e *APIError) Error() string { return e.Detail }

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
}

func New(baseURL string, tokens TokenSource) *Client {
	if baseURL == "" {
		baseURL = config.DefaultLessonAPIURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			// Generation runs three LLM calls back to back.
			Timeout: 2 * time.Minute,
		},
		Tokens: tokens,
	}
}

// WithTokens returns a shallow copy that authenticates with tokens.
func (c *Client) WithTokens(tokens TokenSource) *Client {
	cp := *c
	cp.Tokens = tokens
	return &cp
}

// ─── Lessons ───

func (c *Client) Generate(ctx context.Context, req models.GenerateLessonRequest) (*models.LessonPlan, error) {
	var lesson models.LessonPlan
	if err := c.authed(ctx, http.MethodPost, "/api/lessons/generate", req, &lesson); err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (c *Client) Rate(ctx context.Context, id uuid.UUID, rating bool) (*models.RatingAck, error) {
	var ack models.RatingAck
	body := models.RateLessonRequest{Rating: &rating}
	if err := c.authed(ctx, http.MethodPut, "/api/lessons/"+id.String()+"/rating", body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *Client) Revise(ctx context.Context, id uuid.UUID, feedback string) (*models.LessonPlan, error) {
	var lesson models.LessonPlan
	body := models.ReviseLessonRequest{Feedback: feedback}
	if err := c.authed(ctx, http.MethodPost, "/api/lessons/"+id.String()+"/revise", body, &lesson); err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (c *Client) List(ctx context.Context) ([]*models.LessonPlan, error) {
	lessons := []*models.LessonPlan{}
	if err := c.authed(ctx, http.MethodGet, "/api/lessons/", nil, &lessons); err != nil {
		return nil, err
	}
	return lessons, nil
}

func (c *Client) Get(ctx context.Context, id uuid.UUID) (*models.LessonPlan, error) {
	var lesson models.LessonPlan
	if err := c.authed(ctx, http.MethodGet, "/api/lessons/"+id.String(), nil, &lesson); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ─── Auth ───

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthTokens, error) {
	var tokens models.AuthTokens
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", req, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	var tokens models.AuthTokens
	req := models.RefreshRequest{RefreshToken: refreshToken}
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", "", req, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	req := models.RefreshRequest{RefreshToken: refreshToken}
	return c.do(ctx, http.MethodPost, "/api/auth/logout", "", req, nil)
}

// ─── Transport ───

type clientIPKey struct{}

// WithClientIP marks requests made with ctx as acting for the end user at ip,
// sent as X-Real-IP. The web pages use it so the API limits each browser on
// its own.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func (c *Client) authed(ctx context.Context, method, path string, body, out interface{}) error {
	if c.Tokens == nil {
		return ErrNotAuthenticated
	}
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if token == "" {
		return ErrNotAuthenticated
	}
	return c.do(ctx, method, path, token, body, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		req.Header.Set("X-Real-IP", ip)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed models.ErrorResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err == nil && parsed.Detail != "" {
		apiErr.Detail = parsed.Detail
		apiErr.Code = parsed.Code
		return apiErr
	}

	apiErr.Detail = http.StatusText(resp.StatusCode)
	if apiErr.Detail == "" {
		apiErr.Detail = fmt.Sprintf("Request failed with status %d", resp.StatusCode)
	}
	return apiErr
}

// StaticToken is a TokenSource for an already known bearer token.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) {
	if t == "" {
		return "", ErrNotAuthenticated
	}
	return string(t), nil
}
