package ui

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lessonlab-backend/internal/models"
)

type LibraryAPI interface {
	List(ctx context.Context) ([]*models.LessonPlan, error)
}

// LessonSummary is one card in the library grid.
type LessonSummary struct {
	ID             uuid.UUID
	Title          string
	Topic          string
	Grade          string
	Duration       int
	CreatedAt      time.Time
	ObjectiveCount int
	Rating         *bool
	Revised        bool
}

type LibraryState struct {
	Loading   bool
	Loaded    bool
	Error     string
	Summaries []LessonSummary
	Selected  *models.LessonPlan
}

type LibraryPage struct {
	api  LibraryAPI
	life lifetime

	mu       sync.Mutex
	loading  bool
	loaded   bool
	err      string
	lessons  []*models.LessonPlan
	selected *models.LessonPlan
}

func NewLibraryPage(api LibraryAPI) *LibraryPage {
	return &LibraryPage{api: api, life: newLifetime()}
}

func (p *LibraryPage) Close() { p.life.cancel() }

// Load fetches every plan the user owns, newest first.
func (p *LibraryPage) Load(ctx context.Context) {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return
	}
	p.loading = true
	p.err = ""
	p.mu.Unlock()

	reqCtx, done := p.life.derive(ctx)
	defer done()

	lessons, err := p.api.List(reqCtx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if p.life.closed() {
		return
	}
	if err != nil {
		p.err = errorMessage(err)
		return
	}

	SortNewestFirst(lessons)
	p.lessons = lessons
	p.loaded = true
	if p.selected != nil {
		p.selected = p.find(p.selected.ID)
	}
}

// SortNewestFirst orders plans by created_at descending, keeping ties in
// input order.
func SortNewestFirst(lessons []*models.LessonPlan) {
	sort.SliceStable(lessons, func(i, j int) bool {
		return lessons[i].CreatedAt.After(lessons[j].CreatedAt)
	})
}

// Select opens the overlay for id. It reports whether the plan was found.
func (p *LibraryPage) Select(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.find(id)
	if l == nil {
		return false
	}
	p.selected = l
	return true
}

func (p *LibraryPage) CloseOverlay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selected = nil
}

func (p *LibraryPage) find(id uuid.UUID) *models.LessonPlan {
	for _, l := range p.lessons {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (p *LibraryPage) State() LibraryState {
	p.mu.Lock()
	defer p.mu.Unlock()

	summaries := make([]LessonSummary, 0, len(p.lessons))
	for _, l := range p.lessons {
		summaries = append(summaries, Summarize(l))
	}
	return LibraryState{
		Loading:   p.loading,
		Loaded:    p.loaded,
		Error:     p.err,
		Summaries: summaries,
		Selected:  p.selected,
	}
}

func Summarize(l *models.LessonPlan) LessonSummary {
	return LessonSummary{
		ID:             l.ID,
		Title:          l.DisplayTitle(),
		Topic:          l.Topic,
		Grade:          l.Grade,
		Duration:       l.Duration,
		CreatedAt:      l.CreatedAt,
		ObjectiveCount: len(l.PlanJSON.Objectives),
		Rating:         l.UserRating,
		Revised:        l.HasRevision(),
	}
}
