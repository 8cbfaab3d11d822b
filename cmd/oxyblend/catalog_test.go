package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-blend/engine/clock"
	"github.com/Carmen-Shannon/oxy-blend/engine/config"
	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
	"github.com/Carmen-Shannon/oxy-blend/engine/loader"
	"github.com/Carmen-Shannon/oxy-blend/engine/trigger"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func testLoader() loader.Loader {
	return loader.NewLoader(loader.BackendTypeGLTF,
		loader.WithLogger(quietLogger()),
		loader.WithSequences("hero.glb",
			graph.NewClip("wave", 2, graph.WrapHold),
			graph.NewClip("jump", 1, graph.WrapHold),
		),
	)
}

func TestBuildCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Assets = []config.AssetConfig{{Path: "hero.glb", Wrap: "none"}}

	catalog, err := buildCatalog(cfg, testLoader())
	if err != nil {
		t.Fatalf("buildCatalog() error = %v", err)
	}
	if len(catalog) != 3 {
		t.Fatalf("len(catalog) = %d, want 3", len(catalog))
	}
	if catalog["jump"].Wrap() != graph.WrapNone {
		t.Errorf("jump wrap = %v, want none", catalog["jump"].Wrap())
	}
	if catalog["locomotion"].Wrap() != graph.WrapLoop {
		t.Errorf("locomotion wrap = %v, want loop", catalog["locomotion"].Wrap())
	}
}

func TestBuildCatalog_Errors(t *testing.T) {
	tests := []struct {
		name   string
		assets []config.AssetConfig
		seqs   []config.SequenceConfig
		want   string
	}{
		{
			name:   "asset redefines a declared sequence",
			assets: []config.AssetConfig{{Path: "hero.glb"}},
			seqs:   []config.SequenceConfig{{ID: "wave", Duration: 1}},
			want:   `sequence "wave" is already defined`,
		},
		{
			name:   "unsupported asset",
			assets: []config.AssetConfig{{Path: "hero.fbx"}},
			want:   "unsupported asset format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Assets = tt.assets
			if tt.seqs != nil {
				cfg.Sequences = tt.seqs
			}
			_, err := buildCatalog(cfg, testLoader())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("buildCatalog() error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestBuildRigs(t *testing.T) {
	cfg := config.Default()
	cfg.Assets = []config.AssetConfig{{Path: "hero.glb"}}
	cfg.Rigs = []config.RigConfig{
		{Name: "hero", Base: "locomotion"},
		{Name: "sidekick", Base: "locomotion", Sequences: []string{"jump"}},
	}
	catalog, err := buildCatalog(cfg, testLoader())
	if err != nil {
		t.Fatalf("buildCatalog() error = %v", err)
	}

	c := clock.NewManual()
	c.SetStep(0.05)
	bus := trigger.NewBus(trigger.WithLogger(quietLogger()))
	rigs, err := buildRigs(cfg, catalog, c, bus, quietLogger())
	if err != nil {
		t.Fatalf("buildRigs() error = %v", err)
	}
	if len(rigs) != 2 {
		t.Fatalf("len(rigs) = %d, want 2", len(rigs))
	}
	defer func() {
		for _, r := range rigs {
			r.Close()
		}
	}()

	if n := bus.Publish(trigger.New("wave")); n != 2 {
		t.Fatalf("Publish() delivered to %d queues, want 2", n)
	}
	c.Tick()
	for _, r := range rigs {
		r.Tick()
	}

	if s := rigs[0].Stats(); s.Played != 1 || s.Layers != 1 {
		t.Errorf("hero stats = %+v, want one played layer", s)
	}
	// wave is outside the sidekick catalog
	if s := rigs[1].Stats(); s.Rejected != 1 || s.Layers != 0 {
		t.Errorf("sidekick stats = %+v, want one rejected trigger", s)
	}
}

func TestBuildRigs_UnknownSequence(t *testing.T) {
	cfg := config.Default()
	catalog, err := buildCatalog(cfg, testLoader())
	if err != nil {
		t.Fatalf("buildCatalog() error = %v", err)
	}
	bus := trigger.NewBus(trigger.WithLogger(quietLogger()))

	cfg.Rigs = []config.RigConfig{{Name: "hero", Base: "sprint"}}
	if _, err := buildRigs(cfg, catalog, clock.NewManual(), bus, quietLogger()); err == nil || !strings.Contains(err.Error(), "unknown base") {
		t.Errorf("buildRigs() error = %v, want unknown base", err)
	}

	cfg.Rigs = []config.RigConfig{{Name: "hero", Base: "locomotion"}, {Name: "other", Base: "locomotion", Sequences: []string{"sprint"}}}
	if _, err := buildRigs(cfg, catalog, clock.NewManual(), bus, quietLogger()); err == nil || !strings.Contains(err.Error(), `unknown sequence "sprint"`) {
		t.Errorf("buildRigs() error = %v, want unknown sequence", err)
	}
}
