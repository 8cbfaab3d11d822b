package window

// WindowBuilderOption is a functional option for configuring an engineWindow.
// Use the With* functions to create options.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the base title. Hosts usually append rig status to it through SetTitle.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithWidth sets the initial width of the preview window. Values <= 0 keep the default.
//
// Parameters:
//   - width: initial width in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithWidth(width int) WindowBuilderOption {
	return func(w *engineWindow) {
		if width > 0 {
			w.width = width
		}
	}
}

// WithHeight sets the initial height of the preview window. Values <= 0 keep the default.
//
// Parameters:
//   - height: initial height in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithHeight(height int) WindowBuilderOption {
	return func(w *engineWindow) {
		if height > 0 {
			w.height = height
		}
	}
}

// WithPollTimeout sets how long each message loop iteration waits for a key event before calling
// the update callback. Values <= 0 keep the default of one 60Hz frame.
//
// Parameters:
//   - seconds: the wait bound in seconds
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithPollTimeout(seconds float64) WindowBuilderOption {
	return func(w *engineWindow) {
		if seconds > 0 {
			w.pollTimeout = seconds
		}
	}
}
