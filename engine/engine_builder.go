package engine

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-blend/engine/clock"
	"github.com/Carmen-Shannon/oxy-blend/engine/rig"
	"github.com/Carmen-Shannon/oxy-blend/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickInterval(fps)
	}
}

// WithWindow sets a window whose message loop Run pumps. Without one the engine runs headless.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithClock replaces the default wall clock, for example with a window clock or a virtual clock.
//
// Parameters:
//   - c: the frame clock
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithClock(c clock.Ticker) EngineBuilderOption {
	return func(e *engine) {
		e.clock = c
	}
}

// WithWorkers sets the number of pool workers that tick rigs in parallel.
// Values <= 1 tick every rig on the frame goroutine.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.workers = max(n, 1)
	}
}

// WithRig registers a rig during engine construction. A rig whose name is taken is ignored.
//
// Parameters:
//   - r: the rig to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRig(r rig.Rig) EngineBuilderOption {
	return func(e *engine) {
		if _, ok := e.rigs[r.Name()]; !ok {
			e.rigs[r.Name()] = r
		}
	}
}

// WithLogger sets the logger used for engine and profiler output.
//
// Parameters:
//   - logger: the logger; nil keeps slog.Default()
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
