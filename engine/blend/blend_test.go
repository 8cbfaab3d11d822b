package blend

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-blend/common"
	"github.com/Carmen-Shannon/oxy-blend/engine/clock"
	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
	"github.com/Carmen-Shannon/oxy-blend/engine/weight"
)

// newBoundChannel returns a channel whose graph has already produced a frame.
func newBoundChannel(t *testing.T, initial float32) weight.Channel {
	t.Helper()
	r := graph.NewMemoryRuntime()
	g, err := r.Instantiate(graph.NewClip("clip", 10, graph.WrapHold))
	if err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}
	ch := weight.NewChannel(g, initial)
	g.Play()
	r.Evaluate(0)
	if !ch.Bound() {
		t.Fatal("channel not bound after first frame")
	}
	return ch
}

func step(c *clock.Manual, s Scheduler, dt float32, n int) {
	for i := 0; i < n; i++ {
		c.Advance(dt)
		s.Step()
	}
}

func TestStartBlend_Ramps(t *testing.T) {
	c := clock.NewManual()
	s := NewScheduler(c)
	ch := newBoundChannel(t, 0)

	completed := 0
	s.StartBlend(ch, 1, 1, func() { completed++ })

	step(c, s, 0.25, 1)
	if got := ch.Weight(); !common.ApproxEqual(got, 0.25, common.WeightEpsilon) {
		t.Errorf("Weight() after 0.25s = %v, want 0.25", got)
	}
	step(c, s, 0.25, 1)
	if got := ch.Weight(); !common.ApproxEqual(got, 0.5, common.WeightEpsilon) {
		t.Errorf("Weight() after 0.5s = %v, want 0.5", got)
	}
	if completed != 0 || !s.Active(ch) {
		t.Fatalf("blend finished early: completed=%d active=%v", completed, s.Active(ch))
	}

	step(c, s, 0.3, 2)
	if ch.Weight() != 1 {
		t.Errorf("Weight() = %v, want exactly 1", ch.Weight())
	}
	if completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}
	if s.Active(ch) || s.Pending() != 0 {
		t.Errorf("task still live after completion: active=%v pending=%d", s.Active(ch), s.Pending())
	}

	step(c, s, 0.3, 3)
	if completed != 1 {
		t.Errorf("completion fired again: completed = %d", completed)
	}
}

func TestStartBlend_CapturesStartWeightAtCall(t *testing.T) {
	c := clock.NewManual()
	s := NewScheduler(c)
	ch := newBoundChannel(t, 0.8)

	s.StartBlend(ch, 0, 1, nil)
	// a change after the call must not move the start of the ramp
	ch.SetWeight(0.2)

	step(c, s, 0.5, 1)
	if got := ch.Weight(); !common.ApproxEqual(got, 0.4, common.WeightEpsilon) {
		t.Errorf("Weight() = %v, want 0.4", got)
	}
}

func TestStartBlend_ZeroDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration float32
		dt       float32
	}{
		{"zero duration", 0, 0.016},
		{"negative duration", -1, 0.016},
		{"zero duration with zero delta", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewManual()
			s := NewScheduler(c)
			ch := newBoundChannel(t, 0)

			done := false
			s.StartBlend(ch, 0.6, tt.duration, func() { done = true })
			if ch.Weight() != 0 {
				t.Fatalf("weight changed before Step: %v", ch.Weight())
			}

			step(c, s, tt.dt, 1)
			if ch.Weight() != 0.6 || !done {
				t.Errorf("Weight() = %v, done = %v, want 0.6, true", ch.Weight(), done)
			}
		})
	}
}

func TestStartBlend_ReplacesRunningTask(t *testing.T) {
	c := clock.NewManual()
	s := NewScheduler(c)
	ch := newBoundChannel(t, 0)

	firstFired := false
	first := s.StartBlend(ch, 1, 1, func() { firstFired = true })
	step(c, s, 0.5, 1)

	secondFired := false
	second := s.StartBlend(ch, 0, 0.5, func() { secondFired = true })
	if first == second {
		t.Fatal("StartBlend() reused a handle")
	}
	if !s.Active(ch) {
		t.Error("Active() = false after replacing the task")
	}
	if s.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", s.Pending())
	}

	step(c, s, 0.25, 4)
	if firstFired {
		t.Error("cancelled task ran its completion callback")
	}
	if !secondFired || ch.Weight() != 0 {
		t.Errorf("second blend: fired=%v weight=%v", secondFired, ch.Weight())
	}
}

func TestCancel(t *testing.T) {
	c := clock.NewManual()
	s := NewScheduler(c)
	ch := newBoundChannel(t, 0)

	fired := false
	s.StartBlend(ch, 1, 1, func() { fired = true })
	step(c, s, 0.5, 1)

	if !s.Cancel(ch) {
		t.Fatal("Cancel() = false, want true")
	}
	if s.Cancel(ch) {
		t.Error("second Cancel() = true, want false")
	}

	w := ch.Weight()
	step(c, s, 0.5, 4)
	if fired {
		t.Error("cancelled task completed")
	}
	if ch.Weight() != w {
		t.Errorf("cancelled task still moved weight: %v -> %v", w, ch.Weight())
	}
}

func TestStep_CallbackMayStartBlends(t *testing.T) {
	c := clock.NewManual()
	s := NewScheduler(c)
	a := newBoundChannel(t, 0)
	b := newBoundChannel(t, 1)

	bDone := false
	s.StartBlend(a, 1, 0, func() {
		// a follow-up started inside a callback begins on the next step
		s.StartBlend(b, 0, 0, func() { bDone = true })
		s.StartBlend(a, 0.5, 0, nil)
	})

	step(c, s, 0.1, 1)
	if a.Weight() != 1 || b.Weight() != 1 || bDone {
		t.Fatalf("after first step: a=%v b=%v bDone=%v", a.Weight(), b.Weight(), bDone)
	}
	if s.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", s.Pending())
	}

	step(c, s, 0.1, 1)
	if a.Weight() != 0.5 || b.Weight() != 0 || !bDone {
		t.Errorf("after second step: a=%v b=%v bDone=%v", a.Weight(), b.Weight(), bDone)
	}
}

func TestStep_CallbackMayCancelLaterTask(t *testing.T) {
	c := clock.NewManual()
	s := NewScheduler(c)
	a := newBoundChannel(t, 0)
	b := newBoundChannel(t, 0)

	bFired := false
	s.StartBlend(a, 1, 0, func() { s.Cancel(b) })
	s.StartBlend(b, 1, 0, func() { bFired = true })

	step(c, s, 0.1, 1)
	if bFired || b.Weight() != 0 {
		t.Errorf("task cancelled during the step still ran: fired=%v weight=%v", bFired, b.Weight())
	}
}

func TestNewScheduler_NilSourcePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewScheduler(nil) did not panic")
		}
	}()
	NewScheduler(nil)
}
