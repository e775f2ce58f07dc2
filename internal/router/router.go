package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"lessonlab-backend/internal/handlers"
	"lessonlab-backend/internal/middleware"
	"lessonlab-backend/internal/web"
	"lessonlab-backend/internal/websocket"
)

type Deps struct {
	JWTAuth         *middleware.JWTAuth
	AuthHandler     *handlers.AuthHandler
	LessonHandler   *handlers.LessonHandler
	GenerateLimiter *middleware.RateLimiter
	AuthLimiter     *middleware.RateLimiter
	Preview         *websocket.PreviewHub
	Web             *web.Server
	FrontendURL     string
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)

	if d.AuthLimiter == nil {
		d.AuthLimiter = middleware.NewRateLimiter(10, time.Minute)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(d.FrontendURL))

		r.Get("/healthz", handlers.Health)

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(d.AuthLimiter.Middleware)
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
			r.Post("/refresh", d.AuthHandler.Refresh)
			r.Post("/logout", d.AuthHandler.Logout)
		})

		// ──── Lesson Routes ────
		r.Route("/lessons", func(r chi.Router) {
			r.Use(d.JWTAuth.Middleware)

			r.With(limit(d.GenerateLimiter)).Post("/generate", d.LessonHandler.Generate)
			r.Get("/", d.LessonHandler.List)
			r.Get("/{id}", d.LessonHandler.Get)
			r.Put("/{id}/rating", d.LessonHandler.Rate)
			r.Post("/{id}/revise", d.LessonHandler.Revise)
		})
	})

	if d.Preview != nil {
		r.Get("/ws/preview", d.Preview.HandleWebSocket)
	}
	if d.Web != nil {
		d.Web.Routes(r)
	}

	return r
}

func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.KeyedMiddleware(middleware.ByUser)
}
