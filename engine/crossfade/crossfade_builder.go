package crossfade

import "log/slog"

// ControllerBuilderOption is a functional option for configuring a Controller during construction.
type ControllerBuilderOption func(*controller)

// WithLogger sets the logger used by the controller and its layer registry.
//
// Parameters:
//   - logger: the logger; nil keeps slog.Default()
//
// Returns:
//   - ControllerBuilderOption: a function that applies the logger to a controller
func WithLogger(logger *slog.Logger) ControllerBuilderOption {
	return func(c *controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSettings replaces all controller tunables at once.
//
// Parameters:
//   - s: the settings to apply
//
// Returns:
//   - ControllerBuilderOption: a function that applies the settings to a controller
func WithSettings(s Settings) ControllerBuilderOption {
	return func(c *controller) {
		WithDefaultFadeIn(s.DefaultFadeIn)(c)
		WithDefaultFadeOut(s.DefaultFadeOut)(c)
		WithReclaimThreshold(s.ReclaimThreshold)(c)
	}
}

// WithDefaultFadeIn sets the fade-in used when Play receives UseDefault.
//
// Parameters:
//   - seconds: the default fade-in; negative values become 0
//
// Returns:
//   - ControllerBuilderOption: a function that applies the fade-in to a controller
func WithDefaultFadeIn(seconds float32) ControllerBuilderOption {
	return func(c *controller) {
		c.settings.DefaultFadeIn = max(seconds, 0)
	}
}

// WithDefaultFadeOut sets the fade-out used when Play receives UseDefault.
//
// Parameters:
//   - seconds: the default fade-out; negative values become 0
//
// Returns:
//   - ControllerBuilderOption: a function that applies the fade-out to a controller
func WithDefaultFadeOut(seconds float32) ControllerBuilderOption {
	return func(c *controller) {
		c.settings.DefaultFadeOut = max(seconds, 0)
	}
}

// WithReclaimThreshold sets the overlay weight at or below which the base layer reclaims.
//
// Parameters:
//   - threshold: the weight fraction, clamped to [0, 1]
//
// Returns:
//   - ControllerBuilderOption: a function that applies the threshold to a controller
func WithReclaimThreshold(threshold float32) ControllerBuilderOption {
	return func(c *controller) {
		c.settings.ReclaimThreshold = min(max(threshold, 0), 1)
	}
}
