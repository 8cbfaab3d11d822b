package trigger

import "log/slog"

// BusBuilderOption is a functional option for configuring a Bus during construction.
type BusBuilderOption func(*bus)

// WithLogger sets the logger used for delivery warnings.
//
// Parameters:
//   - logger: the logger; nil keeps slog.Default()
//
// Returns:
//   - BusBuilderOption: a function that applies the logger to a bus
func WithLogger(logger *slog.Logger) BusBuilderOption {
	return func(b *bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithQueueCapacity sets the capacity of queues created by Subscribe.
//
// Parameters:
//   - capacity: the number of buffered triggers; values <= 0 use DefaultQueueCapacity
//
// Returns:
//   - BusBuilderOption: a function that applies the capacity to a bus
func WithQueueCapacity(capacity int) BusBuilderOption {
	return func(b *bus) {
		if capacity <= 0 {
			capacity = DefaultQueueCapacity
		}
		b.capacity = capacity
	}
}
