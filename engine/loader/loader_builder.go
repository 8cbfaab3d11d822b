package loader

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithWrapMode is an option builder that sets the wrap mode assigned to imported sequences.
//
// Parameters:
//   - mode: the wrap mode, WrapHold by default
//
// Returns:
//   - LoaderBuilderOption: a function that applies the wrap mode to a loader
func WithWrapMode(mode graph.WrapMode) LoaderBuilderOption {
	return func(l *loader) {
		l.mode = mode
	}
}

// WithSequences is an option builder that pre-populates the cache with sequences.
//
// Parameters:
//   - key: the cache key for the sequences
//   - clips: the sequences to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the sequences to a loader
func WithSequences(key string, clips ...*graph.Clip) LoaderBuilderOption {
	return func(l *loader) {
		l.cache[key] = clips
	}
}

// WithLogger is an option builder that sets the logger used for import messages.
//
// Parameters:
//   - logger: the logger; nil keeps slog.Default()
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger to a loader
func WithLogger(logger *slog.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}
