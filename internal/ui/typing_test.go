package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScripts = []PreviewScript{
	{Topic: "Ab", Lines: []string{"one", "two"}},
	{Topic: "C", Lines: []string{"three"}},
}

func TestTypingPreview_FullCycle(t *testing.T) {
	d := DefaultPreviewDelays()
	p := NewTypingPreview(testScripts, d)

	type step struct {
		topic string
		lines int
		phase PreviewPhase
		delay time.Duration
		index int
	}
	want := []step{
		{"A", 0, PhaseTyping, d.Type, 0},
		{"Ab", 0, PhasePauseBefore, d.PauseBefore, 0},
		{"Ab", 1, PhaseRevealing, d.RevealLine, 0},
		{"Ab", 2, PhasePauseAfter, d.PauseAfter, 0},
		{"A", 0, PhaseDeleting, d.Delete, 0},
		{"", 0, PhaseTyping, d.Type, 1},
		{"C", 0, PhasePauseBefore, d.PauseBefore, 1},
		{"C", 1, PhasePauseAfter, d.PauseAfter, 1},
		{"", 0, PhaseTyping, d.Type, 0},
	}

	for i, w := range want {
		frame, delay := p.Step()
		assert.Equal(t, w.topic, frame.Topic, "step %d topic", i)
		assert.Len(t, frame.Lines, w.lines, "step %d lines", i)
		assert.Equal(t, w.phase, frame.Phase, "step %d phase", i)
		assert.Equal(t, w.delay, delay, "step %d delay", i)
		assert.Equal(t, w.index, frame.Index, "step %d index", i)
	}
}

func TestTypingPreview_Deterministic(t *testing.T) {
	a := NewTypingPreview(nil, DefaultPreviewDelays())
	b := NewTypingPreview(nil, DefaultPreviewDelays())

	for i := 0; i < 500; i++ {
		fa, da := a.Step()
		fb, db := b.Step()
		require.Equal(t, fa, fb)
		require.Equal(t, da, db)
	}
}

func TestTypingPreview_MultibyteTopic(t *testing.T) {
	p := NewTypingPreview([]PreviewScript{{Topic: "Ñú", Lines: nil}}, DefaultPreviewDelays())

	f, _ := p.Step()
	assert.Equal(t, "Ñ", f.Topic)
	f, _ = p.Step()
	assert.Equal(t, "Ñú", f.Topic)
}

func TestTypingPreview_RunStopsOnCancel(t *testing.T) {
	delays := PreviewDelays{Type: time.Millisecond, Delete: time.Millisecond, RevealLine: time.Millisecond, PauseBefore: time.Millisecond, PauseAfter: time.Millisecond}
	p := NewTypingPreview(testScripts, delays)

	ctx, cancel := context.WithCancel(context.Background())
	var frames []Frame
	err := p.Run(ctx, func(f Frame) error {
		frames = append(frames, f)
		if len(frames) == 5 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, frames, 5)
	assert.Equal(t, "", frames[0].Topic)
	assert.Equal(t, "A", frames[1].Topic)
}

func TestTypingPreview_RunStopsOnEmitError(t *testing.T) {
	p := NewTypingPreview(testScripts, DefaultPreviewDelays())
	boom := errors.New("client gone")

	err := p.Run(context.Background(), func(Frame) error { return boom })
	assert.ErrorIs(t, err, boom)
}
