package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"lessonlab-backend/internal/models"
)

// LessonAPI is what the generation page needs from the lesson API client.
type LessonAPI interface {
	Generate(ctx context.Context, req models.GenerateLessonRequest) (*models.LessonPlan, error)
	Rate(ctx context.Context, id uuid.UUID, rating bool) (*models.RatingAck, error)
	Revise(ctx context.Context, id uuid.UUID, feedback string) (*models.LessonPlan, error)
}

type PagePhase string

const (
	PageIdle       PagePhase = "idle"
	PageSubmitting PagePhase = "submitting"
	PageSuccess    PagePhase = "success"
	PageError      PagePhase = "error"
)

type PlanView string

const (
	ViewOriginal PlanView = "original"
	ViewRevision PlanView = "revision"
)

type RatingPhase string

const (
	RatingIdle       RatingPhase = "idle"
	RatingSubmitting RatingPhase = "submitting"
	RatingDone       RatingPhase = "done"
)

type RevisionPhase string

const (
	RevisionIdle       RevisionPhase = "idle"
	RevisionSubmitting RevisionPhase = "submitting"
	RevisionApplied    RevisionPhase = "applied"
)

const RatingThanks = "Thanks for your feedback!"

type Form struct {
	Topic        string
	Grade        string
	Duration     int
	ShowThoughts bool
	Feedback     string
}

// Form field names accepted by SetField.
const (
	FieldTopic        = "topic"
	FieldGrade        = "grade"
	FieldDuration     = "duration"
	FieldShowThoughts = "show_agent_thoughts"
	FieldFeedback     = "feedback"
)

// Intent is a user action dispatched to a GenerationPage.
type Intent interface{ intent() }

type SetField struct {
	Field string
	Value string
}

type GenerateIntent struct{}

type RateIntent struct{ Helpful bool }

type ReviseIntent struct{}

type ShowOriginal struct{}

type ShowRevision struct{}

func (SetField) intent()       {}
func (GenerateIntent) intent() {}
func (RateIntent) intent()     {}
func (ReviseIntent) intent()   {}
func (ShowOriginal) intent()   {}
func (ShowRevision) intent()   {}

// GenerationState is a point-in-time copy of the page for rendering.
type GenerationState struct {
	Form            Form
	Phase           PagePhase
	Plan            *models.LessonPlan
	View            PlanView
	RatingPhase     RatingPhase
	RevisionPhase   RevisionPhase
	Error           string
	ValidationError string
	RatingMessage   string
}

// CurrentPlan is the plan content selected by View.
func (s GenerationState) CurrentPlan() *models.PlanContent {
	if s.Plan == nil {
		return nil
	}
	if s.View == ViewRevision && s.Plan.RevisedPlanJSON != nil {
		return s.Plan.RevisedPlanJSON
	}
	return &s.Plan.PlanJSON
}

func (s GenerationState) GenerateDisabled() bool { return s.Phase == PageSubmitting }

func (s GenerationState) RatingDisabled() bool {
	return s.Plan == nil || s.RatingPhase == RatingSubmitting
}

func (s GenerationState) ReviseDisabled() bool {
	return s.Plan == nil || s.RevisionPhase == RevisionSubmitting
}

// GenerationPage owns the generate, rate and revise flows of one page. The
// mutex is never held across a network call.
type GenerationPage struct {
	api  LessonAPI
	life lifetime

	mu    sync.Mutex
	state GenerationState
}

func NewGenerationPage(api LessonAPI) *GenerationPage {
	return &GenerationPage{
		api:  api,
		life: newLifetime(),
		state: GenerationState{
			Form:          Form{Duration: 45},
			Phase:         PageIdle,
			View:          ViewOriginal,
			RatingPhase:   RatingIdle,
			RevisionPhase: RevisionIdle,
		},
	}
}

func (p *GenerationPage) State() GenerationState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close cancels outstanding requests; their results are dropped.
func (p *GenerationPage) Close() { p.life.cancel() }

func (p *GenerationPage) Dispatch(ctx context.Context, in Intent) {
	switch in := in.(type) {
	case SetField:
		p.setField(in.Field, in.Value)
	case GenerateIntent:
		p.generate(ctx)
	case RateIntent:
		p.rate(ctx, in.Helpful)
	case ReviseIntent:
		p.revise(ctx)
	case ShowOriginal:
		p.setView(ViewOriginal)
	case ShowRevision:
		p.setView(ViewRevision)
	}
}

func (p *GenerationPage) setField(field, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := &p.state.Form
	switch field {
	case FieldTopic:
		f.Topic = value
	case FieldGrade:
		f.Grade = value
	case FieldDuration:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			n = 0
		}
		f.Duration = n
	case FieldShowThoughts:
		f.ShowThoughts = value == "true" || value == "on" || value == "1"
	case FieldFeedback:
		f.Feedback = value
	}
}

func (p *GenerationPage) setView(v PlanView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v == ViewRevision && (p.state.Plan == nil || !p.state.Plan.HasRevision()) {
		return
	}
	p.state.View = v
}

// ValidateForm returns the first problem with f, or "" when it can be sent.
func ValidateForm(f Form) string {
	switch {
	case strings.TrimSpace(f.Topic) == "":
		return "Please enter a topic."
	case strings.TrimSpace(f.Grade) == "":
		return "Please select a grade."
	case !models.ValidGrade(strings.ToUpper(strings.TrimSpace(f.Grade))):
		return "Please select a grade from K to 12."
	case !models.ValidDuration(f.Duration):
		return fmt.Sprintf("Duration must be between %d and %d minutes.", models.MinDuration, models.MaxDuration)
	}
	return ""
}

func (p *GenerationPage) generate(ctx context.Context) {
	p.mu.Lock()
	if p.state.Phase == PageSubmitting {
		p.mu.Unlock()
		return
	}
	p.state.Error = ""
	p.state.ValidationError = ""
	form := p.state.Form
	if msg := ValidateForm(form); msg != "" {
		p.state.ValidationError = msg
		p.mu.Unlock()
		return
	}
	prevPhase := p.state.Phase
	p.state.Phase = PageSubmitting
	p.mu.Unlock()

	reqCtx, done := p.life.derive(ctx)
	defer done()

	lesson, err := p.api.Generate(reqCtx, models.GenerateLessonRequest{
		Topic:             strings.TrimSpace(form.Topic),
		Grade:             strings.ToUpper(strings.TrimSpace(form.Grade)),
		Duration:          form.Duration,
		ShowAgentThoughts: form.ShowThoughts,
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.life.closed() {
		p.state.Phase = prevPhase
		return
	}
	if err != nil {
		p.state.Phase = PageError
		p.state.Error = errorMessage(err)
		return
	}

	p.state.Phase = PageSuccess
	p.state.Plan = lesson
	p.state.View = ViewOriginal
	p.state.RatingPhase = RatingIdle
	p.state.RevisionPhase = RevisionIdle
	p.state.RatingMessage = ""
}

func (p *GenerationPage) rate(ctx context.Context, helpful bool) {
	p.mu.Lock()
	if p.state.Plan == nil || p.state.RatingPhase == RatingSubmitting {
		p.mu.Unlock()
		return
	}
	p.state.Error = ""
	p.state.ValidationError = ""
	id := p.state.Plan.ID
	prevPhase := p.state.RatingPhase
	p.state.RatingPhase = RatingSubmitting
	p.mu.Unlock()

	reqCtx, done := p.life.derive(ctx)
	defer done()

	ack, err := p.api.Rate(reqCtx, id, helpful)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.life.closed() {
		p.state.RatingPhase = prevPhase
		return
	}
	if err != nil {
		p.state.RatingPhase = prevPhase
		p.state.Error = errorMessage(err)
		return
	}

	if p.state.Plan != nil && p.state.Plan.ID == ack.ID {
		updated := *p.state.Plan
		updated.UserRating = ack.UserRating
		p.state.Plan = &updated
	}
	p.state.RatingPhase = RatingDone
	p.state.RatingMessage = RatingThanks
}

func (p *GenerationPage) revise(ctx context.Context) {
	p.mu.Lock()
	if p.state.Plan == nil || p.state.RevisionPhase == RevisionSubmitting {
		p.mu.Unlock()
		return
	}
	p.state.Error = ""
	p.state.ValidationError = ""
	feedback := strings.TrimSpace(p.state.Form.Feedback)
	if feedback == "" {
		p.state.ValidationError = "Please describe what should change before requesting a revision."
		p.mu.Unlock()
		return
	}
	id := p.state.Plan.ID
	prevPhase := p.state.RevisionPhase
	p.state.RevisionPhase = RevisionSubmitting
	p.mu.Unlock()

	reqCtx, done := p.life.derive(ctx)
	defer done()

	lesson, err := p.api.Revise(reqCtx, id, feedback)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.life.closed() {
		p.state.RevisionPhase = prevPhase
		return
	}
	if err != nil {
		p.state.RevisionPhase = prevPhase
		p.state.Error = errorMessage(err)
		return
	}

	p.state.Plan = lesson
	p.state.View = ViewRevision
	p.state.Form.Feedback = ""
	p.state.RevisionPhase = RevisionApplied
}

// GradeOption is one entry of the grade select.
type GradeOption struct {
	Value string
	Label string
}

func GradeOptions() []GradeOption {
	opts := make([]GradeOption, 0, len(models.Grades))
	for _, g := range models.Grades {
		opts = append(opts, GradeOption{Value: g, Label: GradeLabel(g)})
	}
	return opts
}

func GradeLabel(grade string) string {
	if grade == "K" {
		return "Kindergarten"
	}
	return "Grade " + grade
}
