package rig

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-blend/engine/crossfade"
	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
	"github.com/Carmen-Shannon/oxy-blend/engine/trigger"
)

// RigBuilderOption is a functional option for configuring a Rig during construction.
type RigBuilderOption func(*rig)

// WithCatalog adds sequences the rig can play, keyed by their ids.
// Nil or unnamed sequences are skipped.
//
// Parameters:
//   - sequences: the playable sequences
//
// Returns:
//   - RigBuilderOption: a function that applies the catalog to a rig
func WithCatalog(sequences ...graph.Sequence) RigBuilderOption {
	return func(r *rig) {
		for _, seq := range sequences {
			if graph.Valid(seq) {
				r.catalog[seq.ID()] = seq
			}
		}
	}
}

// WithTriggers sets the queue drained at the start of every tick.
//
// Parameters:
//   - q: the trigger queue
//
// Returns:
//   - RigBuilderOption: a function that applies the queue to a rig
func WithTriggers(q trigger.Queue) RigBuilderOption {
	return func(r *rig) {
		r.triggers = q
	}
}

// WithRuntime replaces the default in-memory graph runtime.
//
// Parameters:
//   - rt: the runtime; it must not be shared with another rig
//
// Returns:
//   - RigBuilderOption: a function that applies the runtime to a rig
func WithRuntime(rt graph.Runtime) RigBuilderOption {
	return func(r *rig) {
		r.runtime = rt
	}
}

// WithLogger sets the logger used by the rig and everything it creates.
//
// Parameters:
//   - logger: the logger; nil keeps slog.Default()
//
// Returns:
//   - RigBuilderOption: a function that applies the logger to a rig
func WithLogger(logger *slog.Logger) RigBuilderOption {
	return func(r *rig) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCrossfadeOptions forwards options to the rig's cross-fade controller.
//
// Parameters:
//   - options: the controller options
//
// Returns:
//   - RigBuilderOption: a function that applies the options to a rig
func WithCrossfadeOptions(options ...crossfade.ControllerBuilderOption) RigBuilderOption {
	return func(r *rig) {
		r.controllerOptions = append(r.controllerOptions, options...)
	}
}
