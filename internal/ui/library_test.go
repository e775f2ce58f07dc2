package ui

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lessonlab-backend/internal/client"
	"lessonlab-backend/internal/models"
)

type fakeLibraryAPI struct {
	lessons []*models.LessonPlan
	err     error
	calls   int
}

func (f *fakeLibraryAPI) List(ctx context.Context) ([]*models.LessonPlan, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.LessonPlan, len(f.lessons))
	copy(out, f.lessons)
	return out, nil
}

func lessonAt(topic string, at time.Time) *models.LessonPlan {
	return &models.LessonPlan{ID: uuid.New(), Topic: topic, Grade: "3", Duration: 30, CreatedAt: at,
		PlanJSON: models.PlanContent{Objectives: []string{"a", "b", "c"}}}
}

func TestLibrary_SortsNewestFirst(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	orders := [][]string{{"T1", "T2", "T3"}, {"T3", "T1", "T2"}, {"T2", "T3", "T1"}}
	at := map[string]time.Time{"T1": t1, "T2": t2, "T3": t3}

	for _, order := range orders {
		api := &fakeLibraryAPI{}
		for _, name := range order {
			api.lessons = append(api.lessons, lessonAt(name, at[name]))
		}
		p := NewLibraryPage(api)
		p.Load(context.Background())

		s := p.State()
		require.Len(t, s.Summaries, 3)
		assert.Equal(t, []string{"T3", "T2", "T1"},
			[]string{s.Summaries[0].Topic, s.Summaries[1].Topic, s.Summaries[2].Topic}, "input %v", order)
	}
}

func TestLibrary_SortIsStable(t *testing.T) {
	same := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	lessons := []*models.LessonPlan{lessonAt("first", same), lessonAt("second", same), lessonAt("newest", same.Add(time.Minute))}

	SortNewestFirst(lessons)
	assert.Equal(t, "newest", lessons[0].Topic)
	assert.Equal(t, "first", lessons[1].Topic)
	assert.Equal(t, "second", lessons[2].Topic)
}

func TestLibrary_SelectAndClose(t *testing.T) {
	target := lessonAt("Volcanoes", time.Now())
	api := &fakeLibraryAPI{lessons: []*models.LessonPlan{lessonAt("Fractions", time.Now().Add(-time.Hour)), target}}
	p := NewLibraryPage(api)
	p.Load(context.Background())

	assert.False(t, p.Select(uuid.New()))
	assert.Nil(t, p.State().Selected)

	require.True(t, p.Select(target.ID))
	assert.Same(t, target, p.State().Selected)

	p.CloseOverlay()
	assert.Nil(t, p.State().Selected)
	assert.Equal(t, 1, api.calls, "no refetch on select")
}

func TestLibrary_Summary(t *testing.T) {
	title := "Volcano day"
	helpful := true
	l := lessonAt("Volcanoes", time.Now())
	l.Title = &title
	l.UserRating = &helpful
	l.RevisedPlanJSON = &models.PlanContent{}

	s := Summarize(l)
	assert.Equal(t, "Volcano day", s.Title)
	assert.Equal(t, 3, s.ObjectiveCount)
	assert.True(t, s.Revised)
	require.NotNil(t, s.Rating)
	assert.True(t, *s.Rating)
}

func TestLibrary_LoadError(t *testing.T) {
	p := NewLibraryPage(&fakeLibraryAPI{err: client.ErrNotAuthenticated})
	p.Load(context.Background())

	s := p.State()
	assert.Equal(t, msgNotSignedIn, s.Error)
	assert.False(t, s.Loaded)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Summaries)
}

func TestLibrary_ClosedPageIgnoresResult(t *testing.T) {
	api := &fakeLibraryAPI{lessons: []*models.LessonPlan{lessonAt("Fractions", time.Now())}}
	p := NewLibraryPage(api)
	p.Close()

	p.Load(context.Background())
	assert.Empty(t, p.State().Summaries)
}
