package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lessonlab-backend/internal/logger"
	"lessonlab-backend/internal/models"
	"lessonlab-backend/internal/repository"
)

const (
	minObjectives = 1
	maxObjectives = 5
	maxResources  = 5
)

var (
	defaultMaterials       = []string{"Whiteboard", "Handouts", "Computer/Projector"}
	defaultDifferentiation = "Provide visual aids for visual learners, allow verbal responses for auditory learners"
)

type lessonStore interface {
	Create(ctx context.Context, l *models.LessonPlan) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.LessonPlan, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.LessonPlan, error)
	UpdateRating(ctx context.Context, id, userID uuid.UUID, rating bool) error
	UpdateRevision(ctx context.Context, id, userID uuid.UUID, revised models.PlanContent, feedback string) (*models.LessonPlan, error)
}

type LessonService struct {
	lessons lessonStore
	llm     TextGenerator
	log     *logger.Logger
}

func NewLessonService(lessons lessonStore, llm TextGenerator, log *logger.Logger) *LessonService {
	return &LessonService{lessons: lessons, llm: llm, log: log}
}

// ValidateGenerateRequest normalises req in place and reports every bad field.
func ValidateGenerateRequest(req *models.GenerateLessonRequest) error {
	req.Topic = strings.TrimSpace(req.Topic)
	req.Grade = strings.ToUpper(strings.TrimSpace(req.Grade))

	fields := make(map[string]string)
	if req.Topic == "" {
		fields["topic"] = "Topic is required"
	}
	if req.Grade == "" {
		fields["grade"] = "Grade is required"
	} else if !models.ValidGrade(req.Grade) {
		fields["grade"] = "Grade must be K or 1-12"
	}
	if !models.ValidDuration(req.Duration) {
		fields["duration"] = fmt.Sprintf("Duration must be between %d and %d minutes", models.MinDuration, models.MaxDuration)
	}

	if len(fields) > 0 {
		return &ValidationError{Message: firstFieldMessage(fields), Fields: fields}
	}
	return nil
}

func firstFieldMessage(fields map[string]string) string {
	for _, key := range []string{"topic", "grade", "duration", "feedback", "rating"} {
		if msg, ok := fields[key]; ok {
			return msg
		}
	}
	return "Validation failed"
}

// Generate runs the objectives → (structure ∥ resources) → assemble pipeline
// and stores the result for userID.
func (s *LessonService) Generate(ctx context.Context, userID uuid.UUID, req models.GenerateLessonRequest) (*models.LessonPlan, error) {
	if err := ValidateGenerateRequest(&req); err != nil {
		return nil, err
	}

	log := s.log.With("user_id", userID.String(), "topic", req.Topic, "grade", req.Grade)

	objectives, err := s.generateObjectives(ctx, req.Topic, req.Grade)
	if err != nil {
		return nil, err
	}

	var (
		structure structureDraft
		resources []models.Resource
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		structure, err = s.createStructure(gctx, req.Topic, req.Grade, objectives, req.Duration)
		return err
	})
	g.Go(func() error {
		resources = s.findResources(gctx, req.Topic, req.Grade, log)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lesson := &models.LessonPlan{
		UserID:   userID,
		Title:    req.Title,
		Topic:    req.Topic,
		Grade:    req.Grade,
		Duration: req.Duration,
		PlanJSON: assemblePlan(req.Topic, objectives, structure, resources),
	}

	if req.ShowAgentThoughts {
		lesson.AgentThoughts = &models.AgentThoughts{
			ObjectivesReasoning: fmt.Sprintf("Generated %d learning objectives based on %s for %s", len(objectives), req.Topic, gradeLabel(req.Grade)),
			StructureReasoning:  fmt.Sprintf("Created %d-minute lesson with intro, main activity, and assessment", req.Duration),
			ResourcesReasoning:  fmt.Sprintf("Found %d relevant resources and scored them for age-appropriateness", len(resources)),
		}
	}

	if err := s.lessons.Create(ctx, lesson); err != nil {
		return nil, fmt.Errorf("failed to save lesson: %w", err)
	}

	log.Info("lesson generated", "lesson_id", lesson.ID.String(), "objectives", len(objectives), "resources", len(resources))
	return lesson, nil
}

func (s *LessonService) generateObjectives(ctx context.Context, topic, grade string) ([]string, error) {
	raw, err := s.llm.GenerateContent(ctx, buildObjectivesPrompt(topic, grade))
	if err != nil {
		return nil, &GenerationError{Message: "Failed to generate learning objectives", Err: err}
	}

	var parsed struct {
		Objectives []string `json:"objectives"`
	}
	objectives := []string{}
	if decodeJSON(raw, &parsed) == nil {
		objectives = parsed.Objectives
	} else {
		objectives = splitLines(raw)
	}

	objectives = cleanStrings(objectives)
	if len(objectives) < minObjectives {
		return nil, &GenerationError{Message: "The model did not return any learning objectives", Err: errors.New("empty objectives")}
	}
	if len(objectives) > maxObjectives {
		objectives = objectives[:maxObjectives]
	}
	return objectives, nil
}

type structureDraft struct {
	models.LessonStructure
	MaterialsNeeded []string `json:"materials_needed"`
	Differentiation string   `json:"differentiation"`
}

func (s *LessonService) createStructure(ctx context.Context, topic, grade string, objectives []string, duration int) (structureDraft, error) {
	raw, err := s.llm.GenerateContent(ctx, buildStructurePrompt(topic, grade, objectives, duration))
	if err != nil {
		return structureDraft{}, &GenerationError{Message: "Failed to create the lesson structure", Err: err}
	}

	var draft structureDraft
	if decodeJSON(raw, &draft) != nil {
		// Unstructured answer: keep it all as the main activity.
		draft = structureDraft{}
		draft.MainActivity = strings.TrimSpace(raw)
	}

	if draft.Introduction == "" {
		draft.Introduction = "Engage students with topic overview"
	}
	if draft.MainActivity == "" {
		draft.MainActivity = fmt.Sprintf("Guided practice on %s", topic)
	}
	if draft.Assessment == "" {
		draft.Assessment = "Quick formative assessment"
	}
	if draft.Timing == "" {
		draft.Timing = fmt.Sprintf("%d minutes total", duration)
	}
	return draft, nil
}

// findResources never fails the pipeline; a broken answer falls back to
// generic suggestions.
func (s *LessonService) findResources(ctx context.Context, topic, grade string, log *logger.Logger) []models.Resource {
	raw, err := s.llm.GenerateContent(ctx, buildResourcesPrompt(topic, grade))
	if err != nil {
		log.Warn("resource search failed, using fallback", "error", err.Error())
		return fallbackResources(topic, grade)
	}

	var parsed struct {
		Resources []models.Resource `json:"resources"`
	}
	if err := decodeJSON(raw, &parsed); err != nil {
		log.Warn("resource answer not parseable, using fallback", "error", err.Error())
		return fallbackResources(topic, grade)
	}

	resources := normalizeResources(parsed.Resources)
	if len(resources) == 0 {
		return fallbackResources(topic, grade)
	}
	return resources
}

func normalizeResources(in []models.Resource) []models.Resource {
	out := make([]models.Resource, 0, len(in))
	for _, r := range in {
		r.Title = strings.TrimSpace(r.Title)
		if r.Title == "" {
			continue
		}
		if r.Type == "" {
			r.Type = "article"
		}
		r.Score = clampScore(r.Score)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxResources {
		out = out[:maxResources]
	}
	return out
}

func clampScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

func fallbackResources(topic, grade string) []models.Resource {
	return []models.Resource{
		{
			Title:     fmt.Sprintf("Educational video about %s", topic),
			Type:      "video",
			URL:       "https://www.youtube.com/results?search_query=" + strings.ReplaceAll(topic, " ", "+"),
			Score:     0.9,
			Reasoning: fmt.Sprintf("Highly relevant to %s, appropriate for %s", topic, gradeLabel(grade)),
		},
		{
			Title:     fmt.Sprintf("Interactive worksheet on %s", topic),
			Type:      "worksheet",
			URL:       "https://www.google.com/search?q=" + strings.ReplaceAll(topic+" worksheet", " ", "+"),
			Score:     0.8,
			Reasoning: "Good practice material with clear instructions",
		},
	}
}

func assemblePlan(topic string, objectives []string, draft structureDraft, resources []models.Resource) models.PlanContent {
	title := "Lesson Plan: " + topic
	if len(objectives) > 0 {
		title = "Lesson Plan: " + objectives[0]
	}

	materials := cleanStrings(draft.MaterialsNeeded)
	if len(materials) == 0 {
		materials = append([]string(nil), defaultMaterials...)
	}
	differentiation := strings.TrimSpace(draft.Differentiation)
	if differentiation == "" {
		differentiation = defaultDifferentiation
	}

	return models.PlanContent{
		Title:           title,
		Objectives:      objectives,
		Structure:       draft.LessonStructure,
		Resources:       resources,
		MaterialsNeeded: materials,
		Differentiation: differentiation,
	}
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (s *LessonService) List(ctx context.Context, userID uuid.UUID) ([]*models.LessonPlan, error) {
	return s.lessons.ListByUser(ctx, userID)
}

func (s *LessonService) Get(ctx context.Context, userID, id uuid.UUID) (*models.LessonPlan, error) {
	lesson, err := s.lessons.GetByID(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Lesson not found"}
	}
	return lesson, err
}

func (s *LessonService) Rate(ctx context.Context, userID, id uuid.UUID, rating *bool) (*models.RatingAck, error) {
	if rating == nil {
		return nil, &ValidationError{Message: "Rating is required", Fields: map[string]string{"rating": "Rating is required"}}
	}

	err := s.lessons.UpdateRating(ctx, id, userID, *rating)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Lesson not found"}
	}
	if err != nil {
		return nil, err
	}

	value := *rating
	return &models.RatingAck{ID: id, UserRating: &value, Message: "Rating saved"}, nil
}

// Revise produces a new version from feedback. The latest revision, if any,
// is what gets revised; the original plan_json never changes.
func (s *LessonService) Revise(ctx context.Context, userID, id uuid.UUID, feedback string) (*models.LessonPlan, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, &ValidationError{Message: "Feedback is required", Fields: map[string]string{"feedback": "Feedback is required"}}
	}

	lesson, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	current := lesson.PlanJSON
	if lesson.RevisedPlanJSON != nil {
		current = *lesson.RevisedPlanJSON
	}

	raw, err := s.llm.GenerateContent(ctx, buildRevisionPrompt(lesson, current, feedback))
	if err != nil {
		return nil, &GenerationError{Message: "Failed to revise the lesson plan", Err: err}
	}

	var revised models.PlanContent
	if err := decodeJSON(raw, &revised); err != nil {
		return nil, &GenerationError{Message: "The model returned an unreadable revision", Err: err}
	}
	revised.Objectives = cleanStrings(revised.Objectives)
	if len(revised.Objectives) == 0 {
		revised.Objectives = current.Objectives
	}
	if revised.Title == "" {
		revised.Title = current.Title
	}
	revised.Resources = normalizeResources(revised.Resources)
	revised.MaterialsNeeded = cleanStrings(revised.MaterialsNeeded)

	updated, err := s.lessons.UpdateRevision(ctx, id, userID, revised, feedback)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Lesson not found"}
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("lesson revised", "lesson_id", id.String(), "user_id", userID.String())
	return updated, nil
}
