package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"lessonlab-backend/internal/models"
)

func gradeLabel(grade string) string {
	if grade == "K" {
		return "kindergarten"
	}
	return "grade " + grade
}

func buildObjectivesPrompt(topic, grade string) string {
	var b strings.Builder

	b.WriteString("You are an experienced curriculum designer.\n\n")
	b.WriteString(fmt.Sprintf("Create 3-5 specific, measurable learning objectives for a %s lesson on %q.\n\n", gradeLabel(grade), topic))
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks.\n")
	b.WriteString(`JSON schema: {"objectives": ["string"]}` + "\n")

	return b.String()
}

func buildStructurePrompt(topic, grade string, objectives []string, duration int) string {
	var b strings.Builder

	b.WriteString("You are an experienced classroom teacher planning a lesson.\n\n")
	b.WriteString(fmt.Sprintf("Create a %d-minute lesson structure on %q for %s with these objectives:\n", duration, topic, gradeLabel(grade)))
	for _, obj := range objectives {
		b.WriteString("- " + obj + "\n")
	}
	b.WriteString("\nInclude an introduction (5-10 min), a main activity, an assessment, and timing for each section. ")
	b.WriteString("The main activity may use short markdown lists.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no backticks.\n")
	b.WriteString(`JSON schema: {"introduction": "string", "main_activity": "string", "assessment": "string", "timing": "string", "materials_needed": ["string"], "differentiation": "string"}` + "\n")

	return b.String()
}

func buildResourcesPrompt(topic, grade string) string {
	var b strings.Builder

	b.WriteString("You are a school librarian who vets teaching resources.\n\n")
	b.WriteString(fmt.Sprintf("Suggest 2-5 well-known, freely available resources (videos, worksheets, interactive sites) for teaching %q to %s.\n", topic, gradeLabel(grade)))
	b.WriteString("Score each from 0.0 to 1.0 for relevance and age-appropriateness and explain the score in one sentence.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks.\n")
	b.WriteString(`JSON schema: {"resources": [{"title": "string", "type": "video"|"worksheet"|"interactive"|"article", "url": "string", "score": number, "reasoning": "string"}]}` + "\n")

	return b.String()
}

func buildRevisionPrompt(lesson *models.LessonPlan, current models.PlanContent, feedback string) string {
	planBytes, _ := json.MarshalIndent(current, "", "  ")

	var b strings.Builder

	b.WriteString("You are an experienced curriculum designer revising a lesson plan based on teacher feedback.\n\n")
	b.WriteString(fmt.Sprintf("Lesson: %q for %s, %d minutes.\n\n", lesson.Topic, gradeLabel(lesson.Grade), lesson.Duration))
	b.WriteString("---CURRENT PLAN---\n")
	b.Write(planBytes)
	b.WriteString("\n---END---\n\n")
	b.WriteString("---TEACHER FEEDBACK---\n")
	b.WriteString(feedback)
	b.WriteString("\n---END---\n\n")
	b.WriteString("Apply the feedback and keep everything else that still fits. Keep resource scores between 0.0 and 1.0.\n")
	b.WriteString("CRITICAL: Return ONLY the complete revised plan as a valid JSON object with the same schema as the current plan.\n")

	return b.String()
}

// decodeJSON strips code fences and tolerates leading or trailing chatter
// around a single JSON object.
func decodeJSON(raw string, v interface{}) error {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err2 := json.Unmarshal([]byte(text[start:end+1]), v); err2 == nil {
			return nil
		}
	}
	return fmt.Errorf("model output is not valid JSON: %w", err)
}

// splitLines is the fallback for objectives that did not come back as JSON.
func splitLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "{") || strings.HasPrefix(line, "}") || strings.HasPrefix(line, "```") {
			continue
		}
		out = append(out, line)
	}
	return out
}
