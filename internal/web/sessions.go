package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"lessonlab-backend/internal/client"
	"lessonlab-backend/internal/session"
	"lessonlab-backend/internal/ui"
)

const (
	sessionCookie = "ll_session"
	sessionIdle   = 12 * time.Hour

	// guardCookie marks that an anonymous browser was already sent to sign in.
	guardCookie = "ll_guard"
)

// BrowserSession is the per-browser state behind the cookie.
type BrowserSession struct {
	ID       string
	Auth     *session.Provider
	Guard    *ui.RouteGuard
	Generate *ui.GenerationPage
	Library  *ui.LibraryPage

	lastSeen time.Time
}

func (s *BrowserSession) close() {
	s.Generate.Close()
	s.Library.Close()
}

// StoreFactory returns the credential store backing one browser session.
// A nil factory keeps credentials in memory only.
type StoreFactory func(id string) session.Store

type Sessions struct {
	api      *client.Client
	fallback string
	stores   StoreFactory
	idle     time.Duration
	now      func() time.Time

	mu    sync.Mutex
	items map[string]*BrowserSession
}

func NewSessions(api *client.Client, fallbackPath string, stores StoreFactory) *Sessions {
	return &Sessions{
		api:      api,
		fallback: fallbackPath,
		stores:   stores,
		idle:     sessionIdle,
		now:      time.Now,
		items:    make(map[string]*BrowserSession),
	}
}

// Get returns the signed-in session named by the request cookie, or nil.
// An id unknown to this process is rebuilt only when its credential store
// still holds a snapshot, so anonymous and forged cookies allocate nothing.
func (s *Sessions) Get(r *http.Request) *BrowserSession {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	if bs := s.lookup(c.Value); bs != nil {
		return bs
	}
	if s.stores == nil {
		return nil
	}

	store := s.stores(c.Value)
	if snap, err := store.Load(); err != nil || snap == nil || snap.RefreshToken == "" {
		return nil
	}
	bs := s.build(c.Value, store)
	// Errors leave the provider unauthenticated, which is what the guard wants.
	bs.Auth.Restore()
	if bs.Auth.Status().Kind != session.Authenticated {
		bs.close()
		return nil
	}
	return s.add(bs)
}

// Start prepares a session under a new id for sign-in. It is not stored
// until Keep is called, so an id minted before authentication never
// carries credentials.
func (s *Sessions) Start() *BrowserSession {
	id := newSessionID()
	var store session.Store
	if s.stores != nil {
		store = s.stores(id)
	}
	return s.build(id, store)
}

// Keep stores a signed-in session and points the browser at it.
func (s *Sessions) Keep(w http.ResponseWriter, r *http.Request, bs *BrowserSession) {
	s.add(bs)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    bs.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

func (s *Sessions) lookup(id string) *BrowserSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	bs, ok := s.items[id]
	if !ok {
		return nil
	}
	bs.lastSeen = s.now()
	return bs
}

func (s *Sessions) build(id string, store session.Store) *BrowserSession {
	auth := session.NewProvider(s.api, store)
	api := s.api.WithTokens(auth)
	return &BrowserSession{
		ID:       id,
		Auth:     auth,
		Guard:    ui.NewRouteGuard(s.fallback),
		Generate: ui.NewGenerationPage(api),
		Library:  ui.NewLibraryPage(api),
		lastSeen: s.now(),
	}
}

func (s *Sessions) add(bs *BrowserSession) *BrowserSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[bs.ID]; ok {
		if existing != bs {
			bs.close()
		}
		return existing
	}
	bs.lastSeen = s.now()
	s.items[bs.ID] = bs
	return bs
}

// Remove drops the session and cancels its pages.
func (s *Sessions) Remove(id string) {
	s.mu.Lock()
	bs, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if ok {
		bs.close()
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// StartCleanup drops idle sessions every interval until ctx is done.
func (s *Sessions) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Sessions) sweep() {
	cutoff := s.now().Add(-s.idle)

	s.mu.Lock()
	var expired []*BrowserSession
	for id, bs := range s.items {
		if bs.lastSeen.Before(cutoff) {
			expired = append(expired, bs)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	for _, bs := range expired {
		bs.close()
	}
}

func newSessionID() string {
	b := make([]byte, 24)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
