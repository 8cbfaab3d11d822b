package main

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-blend/engine/clock"
	"github.com/Carmen-Shannon/oxy-blend/engine/config"
	"github.com/Carmen-Shannon/oxy-blend/engine/crossfade"
	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
	"github.com/Carmen-Shannon/oxy-blend/engine/loader"
	"github.com/Carmen-Shannon/oxy-blend/engine/rig"
	"github.com/Carmen-Shannon/oxy-blend/engine/trigger"
)

// buildCatalog collects the declared sequences and every animation of the configured assets,
// keyed by sequence id. An id may only be defined once.
func buildCatalog(cfg *config.Config, ld loader.Loader) (map[string]graph.Sequence, error) {
	catalog := make(map[string]graph.Sequence)
	add := func(origin string, c *graph.Clip) error {
		if _, dup := catalog[c.ID()]; dup {
			return fmt.Errorf("%s: sequence %q is already defined", origin, c.ID())
		}
		catalog[c.ID()] = c
		return nil
	}

	for _, c := range cfg.Clips() {
		if err := add("sequences", c); err != nil {
			return nil, err
		}
	}
	for _, a := range cfg.Assets {
		clips, err := ld.Load(a.Path)
		if err != nil {
			return nil, err
		}
		for _, c := range clips {
			if a.Wrap != "" {
				c.Mode = graph.ParseWrapMode(a.Wrap)
			}
			if err := add(a.Path, c); err != nil {
				return nil, err
			}
		}
	}
	return catalog, nil
}

// buildRigs creates one rig per rig section, each subscribed to bus under its own name.
// Rigs already created are closed if a later one fails.
func buildRigs(cfg *config.Config, catalog map[string]graph.Sequence, src clock.Source, bus trigger.Bus, logger *slog.Logger) ([]rig.Rig, error) {
	var rigs []rig.Rig
	fail := func(err error) ([]rig.Rig, error) {
		for _, r := range rigs {
			r.Close()
		}
		return nil, err
	}

	for _, rc := range cfg.Rigs {
		base, ok := catalog[rc.Base]
		if !ok {
			return fail(fmt.Errorf("rig %q: unknown base sequence %q", rc.Name, rc.Base))
		}

		var seqs []graph.Sequence
		if len(rc.Sequences) == 0 {
			for _, s := range catalog {
				seqs = append(seqs, s)
			}
		}
		for _, id := range rc.Sequences {
			s, ok := catalog[id]
			if !ok {
				return fail(fmt.Errorf("rig %q: unknown sequence %q", rc.Name, id))
			}
			seqs = append(seqs, s)
		}

		r, err := rig.NewRig(rc.Name, base, src,
			rig.WithCatalog(seqs...),
			rig.WithTriggers(bus.Subscribe(rc.Name)),
			rig.WithLogger(logger),
			rig.WithCrossfadeOptions(crossfade.WithSettings(cfg.CrossfadeSettings())),
		)
		if err != nil {
			return fail(err)
		}
		rigs = append(rigs, r)
	}
	return rigs, nil
}
