package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// Window is an on-screen preview target for compute output.
// It satisfies renderer.Surface, so a WebGPU context can present into it.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the GLFW key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still open.
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: if the window was never opened or is already closed
	Close() error

	// ProcessMessages runs the window message loop.
	// Blocks until the window is closed. Calls the update callback each iteration.
	ProcessMessages()

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

// previewWindow is the implementation of the Window interface.
type previewWindow struct {
	logger *zap.Logger

	title     string
	maxWidth  int
	maxHeight int
	minWidth  int
	minHeight int
	width     int
	height    int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow *glfwWindow

	onUpdate  func()
	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
}

var _ Window = &previewWindow{}

// NewWindow opens a window with the specified options.
// Applies default values first, then each option in order.
// The calling goroutine is locked to its OS thread, as GLFW requires.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: if GLFW cannot be initialized or the window cannot be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &previewWindow{
		logger:    zap.NewNop(),
		title:     "oxy-compute",
		maxWidth:  4096,
		maxHeight: 4096,
		minWidth:  64,
		minHeight: 64,
		width:     512,
		height:    512,
	}
	for _, opt := range options {
		opt(w)
	}
	if w.minWidth > w.maxWidth || w.minHeight > w.maxHeight {
		return nil, fmt.Errorf("window: min size %dx%d exceeds max size %dx%d", w.minWidth, w.minHeight, w.maxWidth, w.maxHeight)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	w.logger.Info("window opened", zap.String("title", w.title), zap.Int("width", w.width), zap.Int("height", w.height))
	return w, nil
}

func (w *previewWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *previewWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *previewWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *previewWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *previewWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *previewWindow) Close() error {
	if err := platformCloseWindow(w); err != nil {
		return err
	}
	w.logger.Info("window closed", zap.String("title", w.title))
	return nil
}

func (w *previewWindow) ProcessMessages() {
	for w.IsRunning() {
		if succ := platformProcessMessages(w); !succ {
			break
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}

func (w *previewWindow) Width() int {
	return w.width
}

func (w *previewWindow) Height() int {
	return w.height
}

// resized records a new framebuffer size, clamped to the configured limits, and notifies the resize callback.
// Zero sizes are ignored; GLFW reports them while the window is minimized.
func (w *previewWindow) resized(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	w.width = min(max(width, w.minWidth), w.maxWidth)
	w.height = min(max(height, w.minHeight), w.maxHeight)
	if w.onResize != nil {
		w.onResize(w.width, w.height)
	}
}
