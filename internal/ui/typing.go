package ui

import (
	"context"
	"time"
)

type PreviewPhase string

const (
	PhaseTyping      PreviewPhase = "typing"
	PhasePauseBefore PreviewPhase = "pause-before-preview"
	PhaseRevealing   PreviewPhase = "revealing"
	PhasePauseAfter  PreviewPhase = "pause-after-preview"
	PhaseDeleting    PreviewPhase = "deleting"
)

const (
	defaultTypeDelay   = 80 * time.Millisecond
	defaultDeleteDelay = 40 * time.Millisecond
	defaultRevealDelay = 400 * time.Millisecond
	defaultPauseBefore = 1200 * time.Millisecond
	defaultPauseAfter  = 2000 * time.Millisecond
)

type PreviewScript struct {
	Topic string
	Lines []string
}

// DefaultScripts is the landing page cycle.
var DefaultScripts = []PreviewScript{
	{
		Topic: "Photosynthesis for grade 5",
		Lines: []string{
			"Objective: explain how plants turn light into food",
			"Intro: leaf scavenger hunt (10 min)",
			"Activity: sunlight vs. shade experiment",
			"Assessment: label the photosynthesis diagram",
		},
	},
	{
		Topic: "Fractions for grade 4",
		Lines: []string{
			"Objective: compare fractions with unlike denominators",
			"Intro: pizza slice warm-up (5 min)",
			"Activity: fraction strips in pairs",
			"Assessment: exit ticket with three comparisons",
		},
	},
	{
		Topic: "The water cycle for grade 2",
		Lines: []string{
			"Objective: name the four stages of the water cycle",
			"Intro: cloud in a jar demo (10 min)",
			"Activity: act out evaporation and rain",
			"Assessment: draw and label the cycle",
		},
	},
}

type PreviewDelays struct {
	Type        time.Duration
	Delete      time.Duration
	RevealLine  time.Duration
	PauseBefore time.Duration
	PauseAfter  time.Duration
}

func DefaultPreviewDelays() PreviewDelays {
	return PreviewDelays{
		Type:        defaultTypeDelay,
		Delete:      defaultDeleteDelay,
		RevealLine:  defaultRevealDelay,
		PauseBefore: defaultPauseBefore,
		PauseAfter:  defaultPauseAfter,
	}
}

// Frame is what the widget shows after one tick.
type Frame struct {
	Index int          `json:"index"`
	Topic string       `json:"topic"`
	Lines []string     `json:"lines"`
	Phase PreviewPhase `json:"phase"`
}

// TypingPreview is a deterministic animation over a fixed list of scripts.
// It is not safe for concurrent use; each viewer gets its own.
type TypingPreview struct {
	scripts  []PreviewScript
	delays   PreviewDelays
	index    int
	typed    int
	revealed int
	phase    PreviewPhase
}

func NewTypingPreview(scripts []PreviewScript, delays PreviewDelays) *TypingPreview {
	if len(scripts) == 0 {
		scripts = DefaultScripts
	}
	return &TypingPreview{scripts: scripts, delays: delays, phase: PhaseTyping}
}

func (p *TypingPreview) topic() []rune { return []rune(p.scripts[p.index].Topic) }

// Current returns the frame without advancing.
func (p *TypingPreview) Current() Frame {
	lines := p.scripts[p.index].Lines[:p.revealed]
	return Frame{
		Index: p.index,
		Topic: string(p.topic()[:p.typed]),
		Lines: append([]string{}, lines...),
		Phase: p.phase,
	}
}

// Step advances one tick and returns the new frame and the delay before the
// following tick.
func (p *TypingPreview) Step() (Frame, time.Duration) {
	var delay time.Duration
	script := p.scripts[p.index]
	topicLen := len(p.topic())

	switch p.phase {
	case PhaseTyping:
		if p.typed < topicLen {
			p.typed++
		}
		delay = p.delays.Type
		if p.typed == topicLen {
			p.phase = PhasePauseBefore
			delay = p.delays.PauseBefore
		}

	case PhasePauseBefore, PhaseRevealing:
		if p.revealed < len(script.Lines) {
			p.revealed++
		}
		p.phase = PhaseRevealing
		delay = p.delays.RevealLine
		if p.revealed == len(script.Lines) {
			p.phase = PhasePauseAfter
			delay = p.delays.PauseAfter
		}

	case PhasePauseAfter:
		p.revealed = 0
		p.phase = PhaseDeleting
		fallthrough

	case PhaseDeleting:
		if p.typed > 0 {
			p.typed--
		}
		delay = p.delays.Delete
		if p.typed == 0 {
			p.index = (p.index + 1) % len(p.scripts)
			p.phase = PhaseTyping
			delay = p.delays.Type
		}
	}

	return p.Current(), delay
}

// Run emits the current frame and then one frame per tick until ctx is done
// or emit fails.
func (p *TypingPreview) Run(ctx context.Context, emit func(Frame) error) error {
	if err := emit(p.Current()); err != nil {
		return err
	}

	timer := time.NewTimer(p.delays.Type)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		frame, delay := p.Step()
		if err := emit(frame); err != nil {
			return err
		}
		timer.Reset(delay)
	}
}
