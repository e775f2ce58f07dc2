// Package session holds the signed-in user's credentials on the client side.
// A Provider is created per browser session (web) or per process (CLI) and
// passed explicitly to whatever needs a bearer token.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"lessonlab-backend/internal/client"
	"lessonlab-backend/internal/models"
)

// refreshLeeway is how close to expiry a token may get before Token refreshes it.
const refreshLeeway = 30 * time.Second

var ErrNoSession = errors.New("no active session")

type StatusKind int

const (
	Loading StatusKind = iota
	Authenticated
	Unauthenticated
)

func (k StatusKind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

type Status struct {
	Kind StatusKind
	User *models.User
}

// AuthAPI is the part of the API client the provider needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*models.AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
}

type Provider struct {
	api   AuthAPI
	store Store
	now   func() time.Time

	// refreshMu serialises refreshes so concurrent callers share one rotation.
	refreshMu sync.Mutex

	mu     sync.RWMutex
	status StatusKind
	snap   Snapshot
}

// NewProvider starts in the loading state. Call Restore (or SignIn) to settle it.
func NewProvider(api AuthAPI, store Store) *Provider {
	return &Provider{api: api, store: store, now: time.Now, status: Loading}
}

// Restore loads a persisted session if the store has one. Without a store,
// or with an empty one, the provider becomes unauthenticated.
func (p *Provider) Restore() error {
	var snap *Snapshot
	var err error
	if p.store != nil {
		snap, err = p.store.Load()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil || snap == nil || snap.RefreshToken == "" {
		p.status = Unauthenticated
		p.snap = Snapshot{}
		return err
	}
	p.snap = *snap
	p.status = Authenticated
	return nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	tokens, err := p.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := p.apply(tokens, nil); err != nil {
		return nil, err
	}
	return tokens.User, nil
}

// Token returns a bearer token, refreshing it when it is about to expire.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	p.mu.RLock()
	status, snap := p.status, p.snap
	p.mu.RUnlock()

	if status != Authenticated || snap.RefreshToken == "" {
		return "", ErrNoSession
	}
	if snap.AccessToken != "" && p.now().Add(refreshLeeway).Before(snap.ExpiresAt) {
		return snap.AccessToken, nil
	}

	tokens, err := p.api.Refresh(ctx, snap.RefreshToken)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			p.clear()
			return "", ErrNoSession
		}
		return "", fmt.Errorf("failed to refresh session: %w", err)
	}
	if err := p.apply(tokens, snap.User); err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

// SignOut revokes the refresh token and forgets the session. The local state
// is cleared even when the revoke call fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	p.mu.RLock()
	refresh := p.snap.RefreshToken
	p.mu.RUnlock()

	var err error
	if refresh != "" {
		err = p.api.Logout(ctx, refresh)
	}
	p.clear()
	return err
}

func (p *Provider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Status{Kind: p.status, User: p.snap.User}
}

func (p *Provider) apply(tokens *models.AuthTokens, fallbackUser *models.User) error {
	user := tokens.User
	if user == nil {
		user = fallbackUser
	}
	snap := Snapshot{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    p.now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
		User:         user,
	}

	p.mu.Lock()
	p.snap = snap
	p.status = Authenticated
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.Save(&snap); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}
	}
	return nil
}

func (p *Provider) clear() {
	p.mu.Lock()
	p.snap = Snapshot{}
	p.status = Unauthenticated
	p.mu.Unlock()

	if p.store != nil {
		p.store.Clear()
	}
}
