// Package web serves the teacher-facing pages. Every page keeps its state in
// a ui state machine owned by the browser session and talks to the lesson
// API over HTTP like any other client.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"lessonlab-backend/internal/client"
	"lessonlab-backend/internal/logger"
	"lessonlab-backend/internal/middleware"
	"lessonlab-backend/internal/models"
	"lessonlab-backend/internal/session"
	"lessonlab-backend/internal/ui"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageFiles = []string{"landing", "login", "loading", "redirecting", "generate", "library"}

type ctxKey struct{}

type Server struct {
	sessions *Sessions
	markdown *Markdown
	pages    map[string]*template.Template
	log      *logger.Logger
}

type pageData struct {
	Title string
	Nav   ui.NavBar
	User  *models.User
	Body  any
}

func New(sessions *Sessions, log *logger.Logger) (*Server, error) {
	s := &Server{
		sessions: sessions,
		markdown: NewMarkdown(),
		pages:    make(map[string]*template.Template, len(pageFiles)),
		log:      log,
	}

	funcs := template.FuncMap{
		"markdown":   s.markdown.Render,
		"gradeLabel": ui.GradeLabel,
		"percent":    func(score float64) int { return int(score*100 + 0.5) },
		"date":       func(t time.Time) string { return t.Local().Format("Jan 2, 2006") },
		"stars":      starsView,
	}
	for _, name := range pageFiles {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/plan.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		s.pages[name] = tmpl
	}
	return s, nil
}

// Routes registers the pages on r.
func (s *Server) Routes(r chi.Router) {
	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Group(func(r chi.Router) {
		r.Use(forwardClientIP)

		r.Get("/", s.landing)
		r.Get("/login", s.loginForm)
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Get("/generate", s.generatePage)
			r.Post("/generate", s.generate)
			r.Post("/generate/rate", s.rate)
			r.Post("/generate/revise", s.revise)
			r.Post("/generate/view", s.switchView)

			r.Get("/library", s.libraryPage)
			r.Get("/library/{id}", s.libraryItem)
			r.Post("/library/close", s.closeOverlay)
		})
	})
}

// forwardClientIP makes API calls made for this request carry the browser's
// address, so per-address limits apply to the browser and not to us.
func forwardClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := client.WithClientIP(r.Context(), middleware.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func browserSession(ctx context.Context) *BrowserSession {
	bs, _ := ctx.Value(ctxKey{}).(*BrowserSession)
	return bs
}

// requireSession runs the route guard for protected pages. Anonymous
// browsers get a guard rebuilt per request; the cookie remembers that the
// redirect was already issued.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bs := s.sessions.Get(r)
		var d ui.Decision
		if bs != nil {
			d = bs.Guard.Decide(bs.Auth.Status(), returnTarget(r))
		} else {
			guard := ui.NewRouteGuard(s.sessions.fallback)
			if _, err := r.Cookie(guardCookie); err == nil {
				guard.MarkRedirected()
			}
			d = guard.Decide(session.Status{Kind: session.Unauthenticated}, returnTarget(r))
			if d.Navigate {
				http.SetCookie(w, &http.Cookie{
					Name:     guardCookie,
					Value:    "1",
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					Secure:   r.TLS != nil,
				})
			}
		}

		switch d.Kind {
		case ui.ShowLoading:
			s.render(w, r, bs, http.StatusOK, "loading", "Loading", nil)
		case ui.Redirecting:
			status := http.StatusOK
			if d.Navigate {
				w.Header().Set("Location", d.Location)
				status = http.StatusSeeOther
			}
			s.render(w, r, bs, status, "redirecting", "Redirecting", struct{ Location string }{d.Location})
		default:
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, bs)))
		}
	})
}

// returnTarget is where sign-in should send the user back to. Form posts go
// back to the page that owns the form.
func returnTarget(r *http.Request) string {
	if r.Method == http.MethodGet {
		return r.URL.RequestURI()
	}
	path := strings.TrimPrefix(r.URL.Path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return "/" + path
}

// render draws page inside the layout. bs is nil for anonymous browsers.
func (s *Server) render(w http.ResponseWriter, r *http.Request, bs *BrowserSession, status int, page, title string, body any) {
	st := session.Status{Kind: session.Unauthenticated}
	if bs != nil {
		st = bs.Auth.Status()
	}
	data := pageData{
		Title: title,
		Nav:   ui.BuildNavBar(r.URL.Path, st.Kind == session.Authenticated),
		User:  st.User,
		Body:  body,
	}

	var buf bytes.Buffer
	if err := s.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.Error("Failed to render page", "page", page, "error", err)
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) landing(w http.ResponseWriter, r *http.Request) {
	bs := s.sessions.Get(r)
	frame := ui.NewTypingPreview(ui.DefaultScripts, ui.DefaultPreviewDelays()).Current()
	s.render(w, r, bs, http.StatusOK, "landing", "Home", frame)
}

type loginView struct {
	Email    string
	Redirect string
	Error    string
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	bs := s.sessions.Get(r)
	redirect := r.URL.Query().Get("redirect")
	if bs != nil && bs.Auth.Status().Kind == session.Authenticated {
		http.Redirect(w, r, ui.SafeReturnPath(redirect, "/generate"), http.StatusSeeOther)
		return
	}
	s.render(w, r, bs, http.StatusOK, "login", "Sign in", loginView{Redirect: redirect})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	view := loginView{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Redirect: r.PostForm.Get("redirect"),
	}
	password := r.PostForm.Get("password")

	if view.Email == "" || password == "" {
		view.Error = "Please enter your email and password."
		s.render(w, r, s.sessions.Get(r), http.StatusUnprocessableEntity, "login", "Sign in", view)
		return
	}

	previous := s.sessions.Get(r)

	bs := s.sessions.Start()
	user, err := bs.Auth.SignIn(r.Context(), view.Email, password)
	if err != nil {
		bs.close()
		view.Error = errorText(err)
		s.render(w, r, previous, http.StatusUnauthorized, "login", "Sign in", view)
		return
	}
	if previous != nil {
		s.sessions.Remove(previous.ID)
	}
	s.sessions.Keep(w, r, bs)
	clearCookie(w, guardCookie)

	s.log.Info("User signed in", "user_id", user.ID)
	http.Redirect(w, r, ui.SafeReturnPath(view.Redirect, "/generate"), http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if bs := s.sessions.Get(r); bs != nil {
		if err := bs.Auth.SignOut(r.Context()); err != nil {
			s.log.Warn("Failed to revoke refresh token", "error", err)
		}
		s.sessions.Remove(bs.ID)
	}
	clearCookie(w, sessionCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func errorText(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return "Sign in failed. Please try again."
}
