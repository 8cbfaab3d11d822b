package crossfade

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-blend/engine/blend"
	"github.com/Carmen-Shannon/oxy-blend/engine/clock"
	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
	"github.com/Carmen-Shannon/oxy-blend/engine/weight"
)

const tolerance = 1e-3

// harness wires a controller the way a rig does and steps it with virtual time.
type harness struct {
	clock      *clock.Manual
	runtime    graph.Runtime
	scheduler  blend.Scheduler
	base       weight.Channel
	controller Controller
	now        float32
}

func newHarness(t *testing.T, options ...ControllerBuilderOption) *harness {
	t.Helper()
	c := clock.NewManual()
	rt := graph.NewMemoryRuntime()
	s := blend.NewScheduler(c)

	baseGraph, err := rt.Instantiate(graph.NewClip("locomotion", 1, graph.WrapLoop))
	if err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}
	target := graph.NewTarget("hero")
	baseGraph.Bind(target)
	base := weight.NewChannel(baseGraph, 1)
	baseGraph.Play()
	rt.Evaluate(0)

	h := &harness{
		clock:      c,
		runtime:    rt,
		scheduler:  s,
		base:       base,
		controller: NewController(s, rt, base, target, options...),
	}
	return h
}

// tick runs one frame in rig order: blends, monitor, graph evaluation.
func (h *harness) tick(dt float32) {
	h.clock.Advance(dt)
	h.scheduler.Step()
	h.controller.Update()
	h.runtime.Evaluate(dt)
	h.now += dt
}

func (h *harness) run(seconds, dt float32) {
	for elapsed := float32(0); elapsed < seconds; elapsed += dt {
		h.tick(dt)
	}
}

func near(a, b float32) bool {
	d := a - b
	return d <= tolerance && d >= -tolerance
}

func TestPlay_ConvergesToMaxWeight(t *testing.T) {
	tests := []struct {
		name      string
		maxWeight float32
		fadeIn    float32
		fadeOut   float32
	}{
		{"full weight", 1, 0.5, 0.5},
		{"partial weight", 0.6, 0.25, 0.5},
		{"instant fade-in", 0.8, 0, 0.2},
		{"long fade-in", 0.5, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			wave := graph.NewClip("wave", 30, graph.WrapHold)

			h.controller.Play(wave, tt.maxWeight, tt.fadeIn, tt.fadeOut)
			// the base layer takes twice the fade-in to yield
			h.run(2*tt.fadeIn+0.1, 1.0/60)

			w, ok := h.controller.LayerWeight(wave)
			if !ok {
				t.Fatal("LayerWeight() found no layer")
			}
			if !near(w, tt.maxWeight) {
				t.Errorf("layer weight = %v, want %v", w, tt.maxWeight)
			}
			if got := h.controller.BaseWeight(); !near(got, 1-tt.maxWeight) {
				t.Errorf("base weight = %v, want %v", got, 1-tt.maxWeight)
			}
			if h.controller.BaseState() != BaseYielding {
				t.Errorf("BaseState() = %v, want yielding", h.controller.BaseState())
			}
		})
	}
}

func TestPlay_SameSequenceKeepsOneLayer(t *testing.T) {
	h := newHarness(t)
	wave := graph.NewClip("wave", 5, graph.WrapHold)

	h.controller.Play(wave, 1, 0.2, 0.2)
	h.run(1, 0.05)
	first := h.controller.Layers()[0]
	if first.Graph().Time() < 0.9 {
		t.Fatalf("graph time = %v, want about 1", first.Graph().Time())
	}

	// identity is the asset id, not the Sequence value
	h.controller.Play(graph.NewClip("wave", 5, graph.WrapHold), 1, 0.2, 0.4)
	if h.controller.LayerCount() != 1 {
		t.Fatalf("LayerCount() = %d, want 1", h.controller.LayerCount())
	}
	again := h.controller.Layers()[0]
	if again != first {
		t.Error("restart replaced the layer instead of reusing it")
	}
	if again.Graph().Time() != 0 {
		t.Errorf("restart did not rewind: time = %v", again.Graph().Time())
	}
	if again.FadeOut() != 0.4 {
		t.Errorf("FadeOut() = %v, want 0.4", again.FadeOut())
	}
	if h.runtime.Live() != 2 {
		t.Errorf("Live() = %d, want 2 (base + one overlay)", h.runtime.Live())
	}
}

func TestPlay_RestartRescuesFadingLayer(t *testing.T) {
	h := newHarness(t)
	wave := graph.NewClip("wave", 5, graph.WrapHold)

	h.controller.Play(wave, 1, 0.1, 0.5)
	h.run(0.5, 0.05)
	if !h.controller.FadeOut(wave, UseDefault) {
		t.Fatal("FadeOut() = false, want true")
	}
	h.run(0.2, 0.05)

	h.controller.Play(wave, 1, 0.1, 0.5)
	h.run(1, 0.05)
	w, ok := h.controller.LayerWeight(wave)
	if !ok || !near(w, 1) {
		t.Errorf("LayerWeight() = (%v, %v), want (1, true)", w, ok)
	}
}

func TestPlay_InvalidSequenceIsIgnored(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := newHarness(t, WithLogger(logger))

	var nilClip *graph.Clip
	h.controller.Play(nil, 1, 0.1, 0.1)
	h.controller.Play(nilClip, 1, 0.1, 0.1)
	h.controller.PlayDefault(graph.NewClip("", 1, graph.WrapHold))

	if h.controller.LayerCount() != 0 || h.runtime.Live() != 1 {
		t.Errorf("invalid play changed state: layers=%d live=%d", h.controller.LayerCount(), h.runtime.Live())
	}
	if h.controller.BaseState() != BaseFull || h.scheduler.Pending() != 0 {
		t.Errorf("invalid play touched the base layer: state=%v pending=%d", h.controller.BaseState(), h.scheduler.Pending())
	}
	if got := strings.Count(buf.String(), "play ignored"); got != 3 {
		t.Errorf("logged %d warnings, want 3", got)
	}
}

func TestPlay_DefaultsForNegativeFades(t *testing.T) {
	h := newHarness(t, WithDefaultFadeIn(0.4), WithDefaultFadeOut(0.7))
	wave := graph.NewClip("wave", 5, graph.WrapHold)

	h.controller.Play(wave, 1, -5, UseDefault)
	l := h.controller.Layers()[0]
	if l.FadeOut() != 0.7 {
		t.Errorf("FadeOut() = %v, want 0.7", l.FadeOut())
	}

	h.run(0.2, 0.05)
	w, _ := h.controller.LayerWeight(wave)
	if w <= 0.3 || w >= 0.7 {
		t.Errorf("weight after half the default fade-in = %v, want about 0.5", w)
	}
}

func TestPlay_SupersedesOtherLayers(t *testing.T) {
	h := newHarness(t)
	a := graph.NewClip("a", 10, graph.WrapHold)
	b := graph.NewClip("b", 10, graph.WrapHold)

	h.controller.Play(a, 1, 0.5, 0.5)
	h.run(0.2, 0.02)
	aLayer := h.controller.Layers()[0]
	aBefore := aLayer.Weight()

	h.controller.Play(b, 1, 0.5, 0.5)
	if !h.scheduler.Active(aLayer.Channel()) {
		t.Fatal("superseded layer has no fade-out blend")
	}

	reclaimed := false
	for h.now < 1.8 {
		h.tick(0.02)
		if h.controller.BaseState() == BaseReclaiming {
			reclaimed = true
		}
		if !aLayer.Removed() && aLayer.Weight() > aBefore+tolerance {
			t.Fatalf("superseded layer weight rose to %v", aLayer.Weight())
		}
	}

	if reclaimed {
		t.Error("base layer reclaimed while an overlay was still dominant")
	}
	if !aLayer.Removed() {
		t.Error("superseded layer was not torn down after its fade-out")
	}
	if w, ok := h.controller.LayerWeight(b); !ok || !near(w, 1) {
		t.Errorf("LayerWeight(b) = (%v, %v), want (1, true)", w, ok)
	}
	if got := h.controller.BaseWeight(); !near(got, 0) {
		t.Errorf("base weight = %v, want 0", got)
	}
	if h.controller.LayerCount() != 1 || h.runtime.Live() != 2 {
		t.Errorf("LayerCount() = %d, Live() = %d, want 1, 2", h.controller.LayerCount(), h.runtime.Live())
	}
}

func TestUpdate_ReclaimsAfterNaturalEnd(t *testing.T) {
	tests := []struct {
		name           string
		defaultFadeOut float32
		layerFadeOut   float32
		wantReclaim    float32
	}{
		{"default is shorter", 0.3, 0.5, 0.3},
		{"layer is shorter", 1, 0.2, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, WithDefaultFadeOut(tt.defaultFadeOut))
			a := graph.NewClip("a", 2, graph.WrapHold)
			h.controller.Play(a, 1, 0.5, tt.layerFadeOut)
			aLayer := h.controller.Layers()[0]

			const dt = 0.01
			var reclaimStart, fullAt float32 = -1, -1
			for h.now < 3 {
				h.tick(dt)
				switch {
				case reclaimStart < 0 && h.controller.BaseState() == BaseReclaiming:
					reclaimStart = h.now
				case reclaimStart >= 0 && fullAt < 0 && h.controller.BaseState() == BaseFull:
					fullAt = h.now
				}
			}

			if reclaimStart < 0 || fullAt < 0 {
				t.Fatalf("base layer never reclaimed: start=%v full=%v", reclaimStart, fullAt)
			}
			// the window opens fadeOut seconds before the end of the sequence
			if want := 2 - tt.layerFadeOut; reclaimStart < want || reclaimStart > want+0.05 {
				t.Errorf("reclaim started at %v, want about %v", reclaimStart, want)
			}
			if d := fullAt - reclaimStart; d < tt.wantReclaim-2*dt || d > tt.wantReclaim+2*dt {
				t.Errorf("reclaim took %v, want %v", d, tt.wantReclaim)
			}
			if h.controller.BaseWeight() != 1 {
				t.Errorf("base weight = %v, want exactly 1", h.controller.BaseWeight())
			}
			if !aLayer.Removed() || h.controller.LayerCount() != 0 || h.runtime.Live() != 1 {
				t.Errorf("layer not torn down: removed=%v layers=%d live=%d",
					aLayer.Removed(), h.controller.LayerCount(), h.runtime.Live())
			}
		})
	}
}

func TestUpdate_IdleWhileBaseHoldsWeight(t *testing.T) {
	h := newHarness(t)
	h.run(1, 0.1)
	if h.controller.BaseState() != BaseFull || h.scheduler.Pending() != 0 {
		t.Errorf("monitor acted without overlays: state=%v pending=%d", h.controller.BaseState(), h.scheduler.Pending())
	}

	// a faint overlay keeps the base layer above the threshold while it plays
	faint := graph.NewClip("faint", 1, graph.WrapHold)
	h.controller.Play(faint, 0.05, 0.1, 0.1)
	h.run(0.5, 0.05)
	if h.controller.BaseState() == BaseReclaiming {
		t.Error("reclaimed while the base layer still held weight")
	}
}

func TestUpdate_ReclaimsFaintOverlayAfterEnd(t *testing.T) {
	tests := []struct {
		name   string
		mode   graph.WrapMode
		weight float32
	}{
		{"hold", graph.WrapHold, 0.05},
		{"none", graph.WrapNone, 0.05},
		{"zero weight", graph.WrapHold, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			faint := graph.NewClip("faint", 1, tt.mode)
			h.controller.Play(faint, tt.weight, 0.1, 0.1)

			h.run(0.5, 0.02)
			if h.controller.LayerCount() != 1 || h.controller.BaseState() != BaseYielding {
				t.Fatalf("mid-clip: layers=%d state=%v, want 1 layer yielding",
					h.controller.LayerCount(), h.controller.BaseState())
			}
			if got := h.controller.BaseWeight(); !near(got, 1-tt.weight) {
				t.Errorf("mid-clip base weight = %v, want %v", got, 1-tt.weight)
			}

			h.run(2, 0.02)
			if n := h.controller.LayerCount(); n != 0 {
				t.Errorf("LayerCount() = %d, want 0", n)
			}
			if n := h.runtime.Live(); n != 1 {
				t.Errorf("Live() = %d, want only the base graph", n)
			}
			if got := h.controller.BaseWeight(); !near(got, 1) {
				t.Errorf("BaseWeight() = %v, want 1", got)
			}
			if h.controller.BaseState() != BaseFull {
				t.Errorf("BaseState() = %v, want full", h.controller.BaseState())
			}
		})
	}
}

func TestPlay_CancelsReclaim(t *testing.T) {
	h := newHarness(t, WithDefaultFadeOut(1))
	a := graph.NewClip("a", 1, graph.WrapHold)
	h.controller.Play(a, 1, 0.1, 1)

	for h.controller.BaseState() != BaseReclaiming && h.now < 2 {
		h.tick(0.02)
	}
	if h.controller.BaseState() != BaseReclaiming {
		t.Fatal("base layer never started reclaiming")
	}

	b := graph.NewClip("b", 5, graph.WrapHold)
	h.controller.Play(b, 1, 0.1, 0.1)
	if h.controller.BaseState() != BaseYielding {
		t.Errorf("BaseState() = %v, want yielding", h.controller.BaseState())
	}
	h.run(0.5, 0.02)
	if got := h.controller.BaseWeight(); !near(got, 0) {
		t.Errorf("base weight = %v, want 0", got)
	}
}

func TestStopAllTimelines_MidBlend(t *testing.T) {
	h := newHarness(t)
	a := graph.NewClip("a", 5, graph.WrapHold)
	b := graph.NewClip("b", 5, graph.WrapHold)
	h.controller.Play(a, 1, 0.5, 0.5)
	h.run(0.1, 0.02)
	h.controller.Play(b, 0.7, 0.5, 0.5)
	h.run(0.1, 0.02)
	layers := h.controller.Layers()

	h.controller.StopAllTimelines()

	if h.controller.LayerCount() != 0 {
		t.Errorf("LayerCount() = %d, want 0", h.controller.LayerCount())
	}
	if h.runtime.Live() != 1 {
		t.Errorf("Live() = %d, want 1", h.runtime.Live())
	}
	for _, l := range layers {
		if !l.Removed() || !l.Graph().Destroyed() {
			t.Errorf("layer %s: removed=%v destroyed=%v", l.Sequence().ID(), l.Removed(), l.Graph().Destroyed())
		}
	}
	if h.base.Desired() != 1 || h.controller.BaseWeight() != 1 {
		t.Errorf("base weight = %v (desired %v), want exactly 1", h.controller.BaseWeight(), h.base.Desired())
	}
	if h.scheduler.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", h.scheduler.Pending())
	}
	if h.controller.BaseState() != BaseFull {
		t.Errorf("BaseState() = %v, want full", h.controller.BaseState())
	}

	h.run(1, 0.02)
	if h.controller.BaseWeight() != 1 || h.runtime.Live() != 1 {
		t.Errorf("state changed after StopAllTimelines: base=%v live=%d", h.controller.BaseWeight(), h.runtime.Live())
	}
}

func TestShutdown(t *testing.T) {
	h := newHarness(t)
	h.controller.Play(graph.NewClip("a", 5, graph.WrapHold), 1, 0.2, 0.2)
	h.run(0.5, 0.05)

	h.controller.Shutdown()
	if h.controller.LayerCount() != 0 || h.runtime.Live() != 1 {
		t.Errorf("Shutdown(): layers=%d live=%d", h.controller.LayerCount(), h.runtime.Live())
	}
	if h.base.Bound() {
		t.Error("base channel still bound after Shutdown")
	}
}

func TestFadeOut_UnknownSequence(t *testing.T) {
	h := newHarness(t)
	if h.controller.FadeOut(graph.NewClip("ghost", 1, graph.WrapHold), 0.1) {
		t.Error("FadeOut() = true for a sequence with no layer")
	}
}

func TestInstantiateFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	h.controller.Play(graph.NewClip("broken", -1, graph.WrapHold), 1, 0.1, 0.1)
	if h.controller.LayerCount() != 0 {
		t.Errorf("LayerCount() = %d, want 0", h.controller.LayerCount())
	}
	if !strings.Contains(buf.String(), "play failed") {
		t.Errorf("log = %q, want an instantiate failure", buf.String())
	}
}

func TestSettingsOptions(t *testing.T) {
	h := newHarness(t, WithSettings(Settings{DefaultFadeIn: -1, DefaultFadeOut: 0.2, ReclaimThreshold: 3}))
	got := h.controller.Settings()
	want := Settings{DefaultFadeIn: 0, DefaultFadeOut: 0.2, ReclaimThreshold: 1}
	if got != want {
		t.Errorf("Settings() = %+v, want %+v", got, want)
	}
}

func TestNewController_PanicsOnNilCollaborators(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewController(nil, ...) did not panic")
		}
	}()
	NewController(nil, nil, nil, nil)
}
