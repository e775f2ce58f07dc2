package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	MinDuration = 15
	MaxDuration = 180
)

// Grades lists the accepted grade values, kindergarten first.
var Grades = []string{"K", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}

func ValidGrade(grade string) bool {
	for _, g := range Grades {
		if g == grade {
			return true
		}
	}
	return false
}

func ValidDuration(minutes int) bool {
	return minutes >= MinDuration && minutes <= MaxDuration
}

type LessonPlan struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	Title            *string        `json:"title"`
	Topic            string         `json:"topic"`
	Grade            string         `json:"grade"`
	Duration         int            `json:"duration"`
	PlanJSON         PlanContent    `json:"plan_json"`
	AgentThoughts    *AgentThoughts `json:"agent_thoughts,omitempty"`
	RevisedPlanJSON  *PlanContent   `json:"revised_plan_json,omitempty"`
	RevisionFeedback *string        `json:"revision_feedback,omitempty"`
	UserRating       *bool          `json:"user_rating"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// DisplayTitle falls back to the plan title and then the topic.
func (l *LessonPlan) DisplayTitle() string {
	if l.Title != nil && *l.Title != "" {
		return *l.Title
	}
	if l.PlanJSON.Title != "" {
		return l.PlanJSON.Title
	}
	return l.Topic
}

func (l *LessonPlan) HasRevision() bool {
	return l.RevisedPlanJSON != nil
}

type PlanContent struct {
	Title           string          `json:"title,omitempty"`
	Objectives      []string        `json:"objectives"`
	Structure       LessonStructure `json:"structure"`
	Resources       []Resource      `json:"resources"`
	MaterialsNeeded []string        `json:"materials_needed"`
	Differentiation string          `json:"differentiation"`
}

type LessonStructure struct {
	Introduction string `json:"introduction"`
	MainActivity string `json:"main_activity"`
	Assessment   string `json:"assessment"`
	Timing       string `json:"timing"`
}

type Resource struct {
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	URL       string  `json:"url"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// AgentThoughts carries the generator's rationale per plan section. Older
// clients wrote *_rationale keys; both spellings decode into the same fields.
type AgentThoughts struct {
	ObjectivesReasoning string `json:"objectives_reasoning"`
	StructureReasoning  string `json:"structure_reasoning"`
	ResourcesReasoning  string `json:"resources_reasoning"`
}

func (a *AgentThoughts) UnmarshalJSON(data []byte) error {
	var raw struct {
		ObjectivesReasoning string `json:"objectives_reasoning"`
		StructureReasoning  string `json:"structure_reasoning"`
		ResourcesReasoning  string `json:"resources_reasoning"`
		ObjectivesRationale string `json:"objectives_rationale"`
		StructureRationale  string `json:"structure_rationale"`
		ResourcesRationale  string `json:"resources_rationale"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.ObjectivesReasoning = firstNonEmpty(raw.ObjectivesReasoning, raw.ObjectivesRationale)
	a.StructureReasoning = firstNonEmpty(raw.StructureReasoning, raw.StructureRationale)
	a.ResourcesReasoning = firstNonEmpty(raw.ResourcesReasoning, raw.ResourcesRationale)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type GenerateLessonRequest struct {
	Topic             string  `json:"topic"`
	Grade             string  `json:"grade"`
	Duration          int     `json:"duration"`
	Title             *string `json:"title,omitempty"`
	ShowAgentThoughts bool    `json:"show_agent_thoughts"`
}

type RateLessonRequest struct {
	Rating *bool `json:"rating"`
}

// RatingAck is what the rating endpoint returns; clients merge UserRating
// into their copy of the plan.
type RatingAck struct {
	ID         uuid.UUID `json:"id"`
	UserRating *bool     `json:"user_rating"`
	Message    string    `json:"message"`
}

type ReviseLessonRequest struct {
	Feedback string `json:"feedback"`
}

// API Error response. Detail is the human readable message clients show as is.
type ErrorResponse struct {
	Detail    string            `json:"detail"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}
