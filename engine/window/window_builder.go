package window

import "go.uber.org/zap"

// WindowBuilderOption is a functional option for configuring a previewWindow.
// Use the With* functions to create options.
type WindowBuilderOption func(w *previewWindow)

// WithLogger sets the logger window lifecycle events are written to.
//
// Parameters:
//   - logger: the zap logger; nil is ignored
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) WindowBuilderOption {
	return func(w *previewWindow) {
		if logger != nil {
			w.logger = logger.Named("window")
		}
	}
}

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *previewWindow) {
		w.title = title
	}
}

// WithSizeLimits sets the minimum and maximum window size.
//
// Parameters:
//   - minWidth, minHeight: minimum size in pixels
//   - maxWidth, maxHeight: maximum size in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSizeLimits(minWidth, minHeight, maxWidth, maxHeight int) WindowBuilderOption {
	return func(w *previewWindow) {
		w.minWidth = minWidth
		w.minHeight = minHeight
		w.maxWidth = maxWidth
		w.maxHeight = maxHeight
	}
}

// WithSize sets the initial window size.
//
// Parameters:
//   - width: initial width in pixels
//   - height: initial height in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *previewWindow) {
		w.width = width
		w.height = height
	}
}
