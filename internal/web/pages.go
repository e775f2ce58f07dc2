package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lessonlab-backend/internal/models"
	"lessonlab-backend/internal/ui"
)

type generateView struct {
	State       ui.GenerationState
	Plan        *models.PlanContent
	Grades      []ui.GradeOption
	Thumbs      ui.RatingView
	MinDuration int
	MaxDuration int
}

func (s *Server) generatePage(w http.ResponseWriter, r *http.Request) {
	bs := browserSession(r.Context())
	state := bs.Generate.State()

	var current *bool
	if state.Plan != nil {
		current = state.Plan.UserRating
	}
	thumbs := ui.NewThumbsRating(ui.RatingProps[bool]{
		ReadOnly:  state.RatingDisabled(),
		Size:      ui.SizeMedium,
		ShowLabel: true,
	})

	s.render(w, r, bs, http.StatusOK, "generate", "Generate", generateView{
		State:       state,
		Plan:        state.CurrentPlan(),
		Grades:      ui.GradeOptions(),
		Thumbs:      thumbs.View(current),
		MinDuration: models.MinDuration,
		MaxDuration: models.MaxDuration,
	})
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	bs := browserSession(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	page := bs.Generate
	for _, field := range []string{ui.FieldTopic, ui.FieldGrade, ui.FieldDuration} {
		page.Dispatch(r.Context(), ui.SetField{Field: field, Value: r.PostForm.Get(field)})
	}
	// Unchecked boxes are not submitted.
	page.Dispatch(r.Context(), ui.SetField{Field: ui.FieldShowThoughts, Value: strconv.FormatBool(r.PostForm.Get(ui.FieldShowThoughts) != "")})
	page.Dispatch(r.Context(), ui.GenerateIntent{})

	if st := page.State(); st.Phase == ui.PageError {
		s.log.Warn("Lesson generation failed", "error", st.Error)
	}
	http.Redirect(w, r, "/generate", http.StatusSeeOther)
}

// rate accepts either a helpful flag from the thumbs control or a star count.
func (s *Server) rate(w http.ResponseWriter, r *http.Request) {
	bs := browserSession(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	page := bs.Generate
	readOnly := page.State().RatingDisabled()
	commit := func(helpful bool) { page.Dispatch(r.Context(), ui.RateIntent{Helpful: helpful}) }

	if raw := r.PostForm.Get("stars"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid rating", http.StatusBadRequest)
			return
		}
		stars := ui.NewStarRating(ui.RatingProps[int]{
			ReadOnly: readOnly,
			OnChange: func(n int) { commit(ui.StarsToHelpful(n)) },
		})
		stars.Click(n)
	} else {
		helpful, err := strconv.ParseBool(r.PostForm.Get("helpful"))
		if err != nil {
			http.Error(w, "Invalid rating", http.StatusBadRequest)
			return
		}
		thumbs := ui.NewThumbsRating(ui.RatingProps[bool]{ReadOnly: readOnly, OnChange: commit})
		thumbs.Click(helpful)
	}

	http.Redirect(w, r, "/generate#rating", http.StatusSeeOther)
}

func (s *Server) revise(w http.ResponseWriter, r *http.Request) {
	bs := browserSession(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	page := bs.Generate
	page.Dispatch(r.Context(), ui.SetField{Field: ui.FieldFeedback, Value: r.PostForm.Get(ui.FieldFeedback)})
	page.Dispatch(r.Context(), ui.ReviseIntent{})

	http.Redirect(w, r, "/generate#plan", http.StatusSeeOther)
}

func (s *Server) switchView(w http.ResponseWriter, r *http.Request) {
	bs := browserSession(r.Context())
	switch r.FormValue("view") {
	case string(ui.ViewRevision):
		bs.Generate.Dispatch(r.Context(), ui.ShowRevision{})
	default:
		bs.Generate.Dispatch(r.Context(), ui.ShowOriginal{})
	}
	http.Redirect(w, r, "/generate#plan", http.StatusSeeOther)
}

type libraryView struct {
	State ui.LibraryState
	Plan  *models.PlanContent
}

func (s *Server) libraryPage(w http.ResponseWriter, r *http.Request) {
	bs := browserSession(r.Context())
	// Arriving at the grid starts without an overlay; /library/{id} opens one.
	bs.Library.CloseOverlay()
	bs.Library.Load(r.Context())
	s.renderLibrary(w, r, bs, http.StatusOK)
}

func (s *Server) libraryItem(w http.ResponseWriter, r *http.Request) {
	bs := browserSession(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Redirect(w, r, "/library", http.StatusSeeOther)
		return
	}

	lib := bs.Library
	if !lib.State().Loaded || !lib.Select(id) {
		lib.Load(r.Context())
		if !lib.Select(id) {
			s.renderLibrary(w, r, bs, http.StatusNotFound)
			return
		}
	}
	s.renderLibrary(w, r, bs, http.StatusOK)
}

func (s *Server) closeOverlay(w http.ResponseWriter, r *http.Request) {
	browserSession(r.Context()).Library.CloseOverlay()
	http.Redirect(w, r, "/library", http.StatusSeeOther)
}

func (s *Server) renderLibrary(w http.ResponseWriter, r *http.Request, bs *BrowserSession, status int) {
	state := bs.Library.State()
	view := libraryView{State: state}
	if l := state.Selected; l != nil {
		view.Plan = &l.PlanJSON
		if l.RevisedPlanJSON != nil {
			view.Plan = l.RevisedPlanJSON
		}
	}
	s.render(w, r, bs, status, "library", "Library", view)
}

// starsView shows a stored helpful flag as a read-only star row.
func starsView(helpful *bool) ui.RatingView {
	stars := ui.NewStarRating(ui.RatingProps[int]{ReadOnly: true, Size: ui.SizeSmall})
	return stars.View(ui.HelpfulToStars(helpful))
}
