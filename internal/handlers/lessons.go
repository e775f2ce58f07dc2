package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lessonlab-backend/internal/logger"
	"lessonlab-backend/internal/middleware"
	"lessonlab-backend/internal/models"
)

type lessonService interface {
	Generate(ctx context.Context, userID uuid.UUID, req models.GenerateLessonRequest) (*models.LessonPlan, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.LessonPlan, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.LessonPlan, error)
	Rate(ctx context.Context, userID, id uuid.UUID, rating *bool) (*models.RatingAck, error)
	Revise(ctx context.Context, userID, id uuid.UUID, feedback string) (*models.LessonPlan, error)
}

type LessonHandler struct {
	lessons lessonService
	log     *logger.Logger
}

func NewLessonHandler(lessons lessonService, log *logger.Logger) *LessonHandler {
	return &LessonHandler{lessons: lessons, log: log}
}

func (h *LessonHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	lesson, err := h.lessons.Generate(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.logFailure(r, "generate", err)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lesson)
}

func (h *LessonHandler) List(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.lessons.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.logFailure(r, "list", err)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lessons)
}

func (h *LessonHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := lessonID(w, r)
	if !ok {
		return
	}

	lesson, err := h.lessons.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lesson)
}

func (h *LessonHandler) Rate(w http.ResponseWriter, r *http.Request) {
	id, ok := lessonID(w, r)
	if !ok {
		return
	}

	var req models.RateLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	ack, err := h.lessons.Rate(r.Context(), middleware.GetUserID(r.Context()), id, req.Rating)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ack)
}

func (h *LessonHandler) Revise(w http.ResponseWriter, r *http.Request) {
	id, ok := lessonID(w, r)
	if !ok {
		return
	}

	var req models.ReviseLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	lesson, err := h.lessons.Revise(r.Context(), middleware.GetUserID(r.Context()), id, req.Feedback)
	if err != nil {
		h.logFailure(r, "revise", err)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lesson)
}

func lessonID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid lesson ID", r))
		return uuid.Nil, false
	}
	return id, true
}

func (h *LessonHandler) logFailure(r *http.Request, op string, err error) {
	if h.log == nil {
		return
	}
	h.log.Warn("lesson request failed",
		"op", op,
		"request_id", r.Header.Get(middleware.RequestIDHeader),
		"error", err.Error(),
	)
}

// Health reports liveness for load balancers.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "lesson-lab-2.0-api"})
}
