package compute

import "errors"

var (
	// ErrNilCommand is returned by Execute when no command is given.
	ErrNilCommand = errors.New("compute: command is nil")

	// ErrEngineDestroyed is returned by Execute after Destroy.
	ErrEngineDestroyed = errors.New("compute: engine is destroyed")

	// ErrConcurrentExecute is returned when Execute is called while another call is in flight.
	ErrConcurrentExecute = errors.New("compute: execute is already in flight")

	// ErrMissingShader is returned for a command with neither a shader program nor a fragment shader source.
	ErrMissingShader = errors.New("compute: shader program or fragment shader source is required")

	// ErrMissingOutputTexture is returned for a texture-output command without an output texture.
	ErrMissingOutputTexture = errors.New("compute: output texture is required")

	// ErrQueueClosed is returned by Queue.Submit after Close.
	ErrQueueClosed = errors.New("compute: queue is closed")
)
