package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lessonlab-backend/internal/client"
	"lessonlab-backend/internal/models"
	"lessonlab-backend/internal/session"
)

type memStore struct{ snap *session.Snapshot }

func (m *memStore) Load() (*session.Snapshot, error) { return m.snap, nil }
func (m *memStore) Save(s *session.Snapshot) error   { m.snap = s; return nil }
func (m *memStore) Clear() error                     { m.snap = nil; return nil }

func TestSessions_KeepSetsCookie(t *testing.T) {
	s := NewSessions(client.New("http://api.invalid", nil), "/login", nil)

	assert.Nil(t, s.Get(httptest.NewRequest(http.MethodGet, "/", nil)))

	bs := s.Start()
	assert.Zero(t, s.Len(), "started sessions are not stored")

	rec := httptest.NewRecorder()
	s.Keep(rec, httptest.NewRequest(http.MethodPost, "/login", nil), bs)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.Equal(t, bs.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	assert.Same(t, bs, s.Get(req))
}

func TestSessions_UnknownIDs(t *testing.T) {
	stores := map[string]*memStore{
		"known": {snap: &session.Snapshot{RefreshToken: "rt", User: &models.User{Email: "t@school.org"}}},
	}
	var loads int
	s := NewSessions(client.New("http://api.invalid", nil), "/login", func(id string) session.Store {
		loads++
		if st, ok := stores[id]; ok {
			return st
		}
		return &memStore{}
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "forged"})
	assert.Nil(t, s.Get(req))
	assert.Zero(t, s.Len())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "known"})
	bs := s.Get(req)
	require.NotNil(t, bs)
	assert.Equal(t, 1, s.Len())

	st := bs.Auth.Status()
	assert.Equal(t, session.Authenticated, st.Kind)
	assert.Equal(t, "t@school.org", st.User.Email)

	assert.Same(t, bs, s.Get(req))
	assert.Equal(t, 2, loads, "a stored session is not reloaded")
}

func TestSessions_SweepDropsIdle(t *testing.T) {
	s := NewSessions(client.New("http://api.invalid", nil), "/login", nil)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	stale := s.Start()
	s.Keep(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil), stale)
	now = now.Add(s.idle - time.Minute)
	fresh := s.Start()
	s.Keep(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil), fresh)
	require.Equal(t, 2, s.Len())

	now = now.Add(2 * time.Minute)
	s.sweep()

	assert.Equal(t, 1, s.Len())
	assert.Nil(t, s.lookup(stale.ID))
	assert.NotNil(t, s.lookup(fresh.ID))

	// Closed pages drop their results.
	stale.Library.Load(context.Background())
	assert.False(t, stale.Library.State().Loaded)
}

func TestNewSessionID(t *testing.T) {
	a, b := newSessionID(), newSessionID()
	assert.Len(t, a, 48)
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToLower(a), a)
}

func TestMarkdown_Sanitises(t *testing.T) {
	md := NewMarkdown()

	out := string(md.Render("Use **fraction strips** and [this sheet](https://example.com/sheet)"))
	assert.Contains(t, out, "<strong>fraction strips</strong>")
	assert.Contains(t, out, "nofollow")

	out = string(md.Render(`<img src=x onerror="alert(1)"> Intro`))
	assert.NotContains(t, out, "onerror")
	assert.Contains(t, out, "Intro")
}
