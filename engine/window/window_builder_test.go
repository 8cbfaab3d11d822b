package window

import "testing"

func TestBuilderOptions(t *testing.T) {
	w := &engineWindow{title: "oxyblend", width: 640, height: 240, pollTimeout: 1.0 / 60}

	for _, opt := range []WindowBuilderOption{
		WithTitle("rigs"),
		WithWidth(800),
		WithHeight(-1),
		WithPollTimeout(0),
	} {
		opt(w)
	}
	if w.title != "rigs" || w.width != 800 {
		t.Errorf("title/width = %q/%d, want rigs/800", w.title, w.width)
	}
	if w.height != 240 {
		t.Errorf("height = %d, want the default kept for a non-positive value", w.height)
	}
	if w.pollTimeout != 1.0/60 {
		t.Errorf("pollTimeout = %v, want the default kept for 0", w.pollTimeout)
	}

	WithPollTimeout(0.25)(w)
	if w.pollTimeout != 0.25 {
		t.Errorf("pollTimeout = %v, want 0.25", w.pollTimeout)
	}
}
