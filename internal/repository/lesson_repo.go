package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lessonlab-backend/internal/models"
)

// ErrNotFound is returned when a lesson does not exist or belongs to someone else.
var ErrNotFound = errors.New("lesson not found")

type LessonRepo struct {
	pool *pgxpool.Pool
}

func NewLessonRepo(pool *pgxpool.Pool) *LessonRepo {
	return &LessonRepo{pool: pool}
}

const lessonColumns = `id, user_id, title, topic, grade, duration, plan_json, agent_thoughts,
	revised_plan_json, revision_feedback, user_rating, created_at, updated_at`

func (r *LessonRepo) Create(ctx context.Context, l *models.LessonPlan) error {
	l.ID = uuid.New()

	planBytes, err := json.Marshal(l.PlanJSON)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	thoughtBytes, err := nullableJSON(l.AgentThoughts)
	if err != nil {
		return fmt.Errorf("failed to encode agent thoughts: %w", err)
	}

	query := `INSERT INTO lesson_plans (id, user_id, title, topic, grade, duration, plan_json, agent_thoughts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		l.ID, l.UserID, l.Title, l.Topic, l.Grade, l.Duration, planBytes, thoughtBytes,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
}

// GetByID only returns the row when it is owned by userID.
func (r *LessonRepo) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.LessonPlan, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+lessonColumns+" FROM lesson_plans WHERE id = $1 AND user_id = $2", id, userID)

	l, err := scanLesson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

func (r *LessonRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.LessonPlan, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+lessonColumns+" FROM lesson_plans WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lessons := []*models.LessonPlan{}
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}

	return lessons, rows.Err()
}

func (r *LessonRepo) UpdateRating(ctx context.Context, id, userID uuid.UUID, rating bool) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE lesson_plans SET user_rating = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3",
		rating, id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRevision writes the revised plan and its feedback together.
func (r *LessonRepo) UpdateRevision(ctx context.Context, id, userID uuid.UUID, revised models.PlanContent, feedback string) (*models.LessonPlan, error) {
	revisedBytes, err := json.Marshal(revised)
	if err != nil {
		return nil, fmt.Errorf("failed to encode revised plan: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE lesson_plans SET revised_plan_json = $1, revision_feedback = $2, updated_at = NOW()
		 WHERE id = $3 AND user_id = $4 RETURNING `+lessonColumns,
		revisedBytes, feedback, id, userID,
	)

	l, err := scanLesson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

func scanLesson(row pgx.Row) (*models.LessonPlan, error) {
	l := &models.LessonPlan{}
	var planBytes, thoughtBytes, revisedBytes []byte

	err := row.Scan(
		&l.ID, &l.UserID, &l.Title, &l.Topic, &l.Grade, &l.Duration,
		&planBytes, &thoughtBytes, &revisedBytes, &l.RevisionFeedback, &l.UserRating,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(planBytes, &l.PlanJSON); err != nil {
		return nil, fmt.Errorf("failed to decode plan_json for %s: %w", l.ID, err)
	}
	if len(thoughtBytes) > 0 {
		l.AgentThoughts = &models.AgentThoughts{}
		if err := json.Unmarshal(thoughtBytes, l.AgentThoughts); err != nil {
			return nil, fmt.Errorf("failed to decode agent_thoughts for %s: %w", l.ID, err)
		}
	}
	if len(revisedBytes) > 0 {
		l.RevisedPlanJSON = &models.PlanContent{}
		if err := json.Unmarshal(revisedBytes, l.RevisedPlanJSON); err != nil {
			return nil, fmt.Errorf("failed to decode revised_plan_json for %s: %w", l.ID, err)
		}
	}

	return l, nil
}

func nullableJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
