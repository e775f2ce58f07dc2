// Package ui holds the presentation state machines behind the web pages.
// Nothing in here does I/O except through the interfaces pages are given.
package ui

import "strconv"

type Size string

const (
	SizeSmall  Size = "sm"
	SizeMedium Size = "md"
	SizeLarge  Size = "lg"
)

func (s Size) class() string {
	switch s {
	case SizeSmall, SizeLarge:
		return "rating-" + string(s)
	default:
		return "rating-md"
	}
}

// RatingProps configure a rating widget. The committed value is never stored
// by the widget; callers pass it to every Label or View call.
type RatingProps[T any] struct {
	OnChange  func(T)
	ReadOnly  bool
	Size      Size
	ShowLabel bool
}

type RatingOption struct {
	Value   string
	Label   string
	Active  bool
	Hovered bool
}

// RatingView is the render model templates consume.
type RatingView struct {
	Options   []RatingOption
	SizeClass string
	Label     string
	ShowLabel bool
	Disabled  bool
}

var thumbLabels = map[bool]string{true: "Helpful", false: "Not helpful"}

const thumbsUnset = "Was this helpful?"

// ThumbsRating is the binary helpful / not helpful control.
type ThumbsRating struct {
	Props RatingProps[bool]
	hover *bool
}

func NewThumbsRating(props RatingProps[bool]) *ThumbsRating {
	return &ThumbsRating{Props: props}
}

func (t *ThumbsRating) Hover(v bool) {
	if t.Props.ReadOnly {
		return
	}
	t.hover = &v
}

func (t *ThumbsRating) Leave() { t.hover = nil }

// Click reports v through OnChange. It reports whether the callback ran.
func (t *ThumbsRating) Click(v bool) bool {
	if t.Props.ReadOnly || t.Props.OnChange == nil {
		return false
	}
	t.Props.OnChange(v)
	return true
}

func (t *ThumbsRating) display(current *bool) *bool {
	if t.hover != nil {
		return t.hover
	}
	return current
}

func (t *ThumbsRating) Label(current *bool) string {
	if v := t.display(current); v != nil {
		return thumbLabels[*v]
	}
	return thumbsUnset
}

func (t *ThumbsRating) View(current *bool) RatingView {
	shown := t.display(current)
	opts := make([]RatingOption, 0, 2)
	for _, v := range []bool{true, false} {
		opts = append(opts, RatingOption{
			Value:   strconv.FormatBool(v),
			Label:   thumbLabels[v],
			Active:  shown != nil && *shown == v,
			Hovered: t.hover != nil && *t.hover == v,
		})
	}
	return RatingView{
		Options:   opts,
		SizeClass: t.Props.Size.class(),
		Label:     t.Label(current),
		ShowLabel: t.Props.ShowLabel,
		Disabled:  t.Props.ReadOnly,
	}
}

const (
	MinStars = 1
	MaxStars = 5
)

var starLabels = map[int]string{1: "Poor", 2: "Fair", 3: "Good", 4: "Very good", 5: "Excellent"}

const starsUnset = "Rate this plan"

// StarRating is the 1 to 5 star control.
type StarRating struct {
	Props RatingProps[int]
	hover int
}

func NewStarRating(props RatingProps[int]) *StarRating {
	return &StarRating{Props: props}
}

func (s *StarRating) Hover(n int) {
	if s.Props.ReadOnly || n < MinStars || n > MaxStars {
		return
	}
	s.hover = n
}

func (s *StarRating) Leave() { s.hover = 0 }

func (s *StarRating) Click(n int) bool {
	if s.Props.ReadOnly || s.Props.OnChange == nil || n < MinStars || n > MaxStars {
		return false
	}
	s.Props.OnChange(n)
	return true
}

func (s *StarRating) display(current *int) int {
	if s.hover != 0 {
		return s.hover
	}
	if current != nil {
		return *current
	}
	return 0
}

func (s *StarRating) Label(current *int) string {
	if l, ok := starLabels[s.display(current)]; ok {
		return l
	}
	return starsUnset
}

func (s *StarRating) View(current *int) RatingView {
	shown := s.display(current)
	opts := make([]RatingOption, 0, MaxStars)
	for n := MinStars; n <= MaxStars; n++ {
		opts = append(opts, RatingOption{
			Value:   strconv.Itoa(n),
			Label:   starLabels[n],
			Active:  n <= shown,
			Hovered: s.hover != 0 && n <= s.hover,
		})
	}
	return RatingView{
		Options:   opts,
		SizeClass: s.Props.Size.class(),
		Label:     s.Label(current),
		ShowLabel: s.Props.ShowLabel,
		Disabled:  s.Props.ReadOnly,
	}
}

// StarsToHelpful maps a star rating onto the stored helpful flag.
func StarsToHelpful(n int) bool { return n >= 3 }

// HelpfulToStars is the inverse used to display a stored flag as stars.
func HelpfulToStars(helpful *bool) *int {
	if helpful == nil {
		return nil
	}
	n := MinStars
	if *helpful {
		n = MaxStars
	}
	return &n
}
