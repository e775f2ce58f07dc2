package web

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lessonlab-backend/internal/client"
	"lessonlab-backend/internal/logger"
	"lessonlab-backend/internal/models"
)

// fakeAPI stands in for the lesson API the pages call over HTTP.
type fakeAPI struct {
	mu       sync.Mutex
	lessons  []*models.LessonPlan
	ratings  []bool
	logouts  int
	loginIPs []string
}

func (f *fakeAPI) handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.loginIPs = append(f.loginIPs, r.Header.Get("X-Real-IP"))
		f.mu.Unlock()
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(models.ErrorResponse{Detail: "Invalid email or password", Code: "INVALID_CREDENTIALS"})
			return
		}
		json.NewEncoder(w).Encode(models.AuthTokens{
			AccessToken: "at", RefreshToken: "rt", ExpiresIn: 900,
			User: &models.User{ID: uuid.New(), Email: req.Email},
		})
	})
	r.Post("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logouts++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/api/lessons/generate", func(w http.ResponseWriter, r *http.Request) {
		var req models.GenerateLessonRequest
		json.NewDecoder(r.Body).Decode(&req)
		lesson := &models.LessonPlan{
			ID: uuid.New(), Topic: req.Topic, Grade: req.Grade, Duration: req.Duration, CreatedAt: time.Now(),
			PlanJSON: models.PlanContent{
				Title:      "Lesson Plan: " + req.Topic,
				Objectives: []string{"Explain **light** energy", "Describe leaves <script>alert(1)</script>"},
				Structure:  models.LessonStructure{Introduction: "Warm-up", MainActivity: "Experiment", Assessment: "Exit ticket", Timing: "45 minutes total"},
			},
		}
		f.mu.Lock()
		f.lessons = append(f.lessons, lesson)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(lesson)
	})
	r.Get("/api/lessons/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(f.lessons)
	})
	r.Put("/api/lessons/{id}/rating", func(w http.ResponseWriter, r *http.Request) {
		var req models.RateLessonRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.ratings = append(f.ratings, *req.Rating)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(models.RatingAck{ID: uuid.MustParse(chi.URLParam(r, "id")), UserRating: req.Rating, Message: "Rating saved"})
	})
	r.Post("/api/lessons/{id}/revise", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, l := range f.lessons {
			if l.ID.String() == chi.URLParam(r, "id") {
				revised := l.PlanJSON
				revised.Objectives = []string{"Revised objective"}
				l.RevisedPlanJSON = &revised
				json.NewEncoder(w).Encode(l)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	return r
}

type harness struct {
	api      *fakeAPI
	sessions *Sessions
	web      *httptest.Server
	client   *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := &fakeAPI{}
	apiSrv := httptest.NewServer(api.handler())
	t.Cleanup(apiSrv.Close)

	sessions := NewSessions(client.New(apiSrv.URL, nil), "/login", nil)
	srv, err := New(sessions, logger.Nop())
	require.NoError(t, err)
	r := chi.NewRouter()
	srv.Routes(r)
	webSrv := httptest.NewServer(r)
	t.Cleanup(webSrv.Close)

	jar, _ := cookiejar.New(nil)
	return &harness{
		api:      api,
		sessions: sessions,
		web:      webSrv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *harness) get(t *testing.T, path string) (*http.Response, *goquery.Document) {
	t.Helper()
	resp, err := h.client.Get(h.web.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return resp, doc
}

func (h *harness) post(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := h.client.PostForm(h.web.URL+path, form)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	resp := h.post(t, "/login", url.Values{"email": {"t@school.org"}, "password": {"secret"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestProtectedPage_RedirectsOnce(t *testing.T) {
	h := newHarness(t)

	resp, doc := h.get(t, "/library")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?redirect=%2Flibrary", resp.Header.Get("Location"))
	assert.Contains(t, doc.Find("main").Text(), "Redirecting…")

	// The guard already scheduled the navigation; later renders only show
	// the interim page.
	resp, doc = h.get(t, "/library")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Location"))
	refresh, ok := doc.Find(`meta[http-equiv="refresh"]`).Attr("content")
	require.True(t, ok)
	assert.Contains(t, refresh, "/login?redirect=%2Flibrary")
}

func TestLogin_ReturnsToRequestedPage(t *testing.T) {
	h := newHarness(t)

	resp, doc := h.get(t, "/login?redirect=%2Flibrary")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	val, _ := doc.Find(`input[name="redirect"]`).Attr("value")
	assert.Equal(t, "/library", val)

	resp = h.post(t, "/login", url.Values{"email": {"t@school.org"}, "password": {"secret"}, "redirect": {"/library"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/library", resp.Header.Get("Location"))

	resp, doc = h.get(t, "/library")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "t@school.org", doc.Find(".nav-user").Text())
	assert.Contains(t, doc.Find(".empty").Text(), "No lesson plans yet")
	assert.True(t, doc.Find(`.nav-links a[href="/library"]`).HasClass("active"))
}

func TestLogin_ForwardsBrowserAddress(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	assert.Equal(t, []string{"127.0.0.1"}, h.api.loginIPs)
}

func TestAnonymousTrafficHoldsNoSessions(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 20; i++ {
		req, err := http.NewRequest(http.MethodGet, h.web.URL+"/", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: uuid.NewString()})
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		resp, err = http.Get(h.web.URL + "/library")
		require.NoError(t, err)
		resp.Body.Close()
	}
	h.post(t, "/login", url.Values{"email": {"t@school.org"}, "password": {"nope"}})
	assert.Zero(t, h.sessions.Len())

	h.signIn(t)
	assert.Equal(t, 1, h.sessions.Len())
	h.signIn(t)
	assert.Equal(t, 1, h.sessions.Len(), "signing in again replaces the old session")
}

func TestLogin_RejectsForeignRedirect(t *testing.T) {
	h := newHarness(t)
	resp := h.post(t, "/login", url.Values{"email": {"t@school.org"}, "password": {"secret"}, "redirect": {"https://evil.example"}})
	assert.Equal(t, "/generate", resp.Header.Get("Location"))
}

func TestLogin_ShowsAPIError(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.PostForm(h.web.URL+"/login", url.Values{"email": {"t@school.org"}, "password": {"nope"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", strings.TrimSpace(doc.Find(".alert.error").Text()))
	val, _ := doc.Find(`input[name="email"]`).Attr("value")
	assert.Equal(t, "t@school.org", val)
}

func TestGenerateRateRevise(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	resp := h.post(t, "/generate", url.Values{"topic": {"Photosynthesis"}, "grade": {"5"}, "duration": {"45"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, doc := h.get(t, "/generate")
	assert.Equal(t, "Lesson Plan: Photosynthesis", doc.Find("#plan h2").Text())
	assert.Equal(t, 1, doc.Find(".objectives strong").Length(), "markdown is rendered")
	assert.Equal(t, 0, doc.Find(".objectives script").Length(), "generator html is sanitised")
	assert.Contains(t, doc.Find(".objectives").Text(), "Describe leaves")
	assert.Equal(t, "Was this helpful?", doc.Find(".rating-label").Text())
	assert.Equal(t, 0, doc.Find(".toggle").Length())

	h.post(t, "/generate/rate", url.Values{"helpful": {"true"}})
	_, doc = h.get(t, "/generate")
	assert.Equal(t, "Thanks for your feedback!", doc.Find("#rating .alert.success").Text())
	assert.True(t, doc.Find(`#rating button[value="true"]`).HasClass("active"))

	h.post(t, "/generate/rate", url.Values{"stars": {"2"}})
	assert.Equal(t, []bool{true, false}, h.api.ratings)

	h.post(t, "/generate/revise", url.Values{"feedback": {"Shorter intro"}})
	_, doc = h.get(t, "/generate")
	assert.Equal(t, "Revised objective", strings.TrimSpace(doc.Find(".objectives li").First().Text()))
	assert.True(t, doc.Find(`.toggle button[value="revision"]`).HasClass("active"))

	h.post(t, "/generate/view", url.Values{"view": {"original"}})
	_, doc = h.get(t, "/generate")
	assert.Equal(t, 2, doc.Find(".objectives li").Length())
}

func TestGenerate_ValidationStaysLocal(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	h.post(t, "/generate", url.Values{"topic": {"Fractions"}, "grade": {"5"}, "duration": {"5"}})
	_, doc := h.get(t, "/generate")
	assert.Contains(t, doc.Find(".alert.warning").Text(), "Duration must be between 15 and 180 minutes.")
	assert.Empty(t, h.api.lessons)
	val, _ := doc.Find(`input[name="topic"]`).Attr("value")
	assert.Equal(t, "Fractions", val)
}

func TestLibrary_OverlayAndClose(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.post(t, "/generate", url.Values{"topic": {"Volcanoes"}, "grade": {"K"}, "duration": {"30"}})

	_, doc := h.get(t, "/library")
	card := doc.Find(".lesson-card")
	require.Equal(t, 1, card.Length())
	assert.Contains(t, card.Find(".meta").Text(), "Kindergarten")
	assert.Equal(t, 0, card.Find(".star.active").Length())

	id, _ := card.Attr("data-lesson-id")
	resp, doc := h.get(t, "/library/"+id)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Lesson Plan: Volcanoes", doc.Find("#overlay-title").Text())

	// Coming back through the nav bar shows the grid alone.
	_, doc = h.get(t, "/library")
	assert.Equal(t, 0, doc.Find(".overlay").Length())
	assert.Equal(t, 1, doc.Find(".lesson-card").Length())

	h.get(t, "/library/"+id)
	resp = h.post(t, "/library/close", nil)
	assert.Equal(t, "/library", resp.Header.Get("Location"))

	resp, doc = h.get(t, "/library/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, doc.Find(".overlay").Length())
}

func TestLogout_ClearsSession(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	resp := h.post(t, "/logout", nil)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, 1, h.api.logouts)

	resp, _ = h.get(t, "/generate")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLanding_RendersPreviewAndSignIn(t *testing.T) {
	h := newHarness(t)
	resp, doc := h.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	ws, _ := doc.Find("#typing-preview").Attr("data-ws")
	assert.Equal(t, "/ws/preview", ws)
	href, _ := doc.Find(".nav-auth a").Attr("href")
	assert.Equal(t, "/login", href)
}
