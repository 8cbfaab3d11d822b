package graph

import "log/slog"

// RuntimeBuilderOption is a functional option for configuring a memory Runtime during construction.
type RuntimeBuilderOption func(*memoryRuntime)

// WithLogger sets the logger used for graph lifecycle messages.
//
// Parameters:
//   - logger: the logger; nil keeps slog.Default()
//
// Returns:
//   - RuntimeBuilderOption: a function that applies the logger to a runtime
func WithLogger(logger *slog.Logger) RuntimeBuilderOption {
	return func(r *memoryRuntime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// namedTarget is a Target identified only by name.
type namedTarget string

func (t namedTarget) Name() string { return string(t) }

// NewTarget creates a Target with the given name.
//
// Parameters:
//   - name: the target name
//
// Returns:
//   - Target: the new target
func NewTarget(name string) Target {
	return namedTarget(name)
}
