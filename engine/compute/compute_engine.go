package compute

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/profiler"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ComputeEngine runs compute commands on a graphics context, one at a time.
// Each command becomes an optional clear followed by exactly one draw.
type ComputeEngine interface {
	// Execute runs cmd to completion. Texture commands clear and draw into cmd.OutputTexture;
	// transform feedback commands draw into cmd.TransformFeedbackBuffers without clearing.
	// Resources the command supplies are never destroyed.
	//
	// Parameters:
	//   - cmd: the command to run
	//
	// Returns:
	//   - error: a precondition error, ErrConcurrentExecute, or the context's error unchanged
	Execute(cmd *Command) error

	// IsDestroyed reports whether Destroy has been called.
	//
	// Returns:
	//   - bool: true once the engine is unusable
	IsDestroyed() bool

	// Destroy marks the engine unusable and releases the programs kept alive for persisting commands.
	// The context is not destroyed.
	//
	// Returns:
	//   - error: ErrEngineDestroyed on a second call, or errors from releasing kept programs
	Destroy() error

	// Context returns the graphics context the engine draws with.
	//
	// Returns:
	//   - renderer.Context: the context passed to NewComputeEngine
	Context() renderer.Context
}

// computeEngine is the implementation of the ComputeEngine interface.
type computeEngine struct {
	ctx renderer.Context

	logger   *zap.Logger
	metrics  *Metrics
	profiler *profiler.Profiler

	// inFlight is held for the whole of Execute and Destroy; the scratch fields below are only
	// touched while it is set.
	inFlight  atomic.Bool
	destroyed atomic.Bool

	drawCommand  *renderer.DrawCommand
	clearCommand *renderer.ClearCommand

	// renderState is the state last fetched from the context's cache for renderStateDescriptor.
	renderState           *renderer.RenderState
	renderStateDescriptor renderer.RenderStateDescriptor

	mu *sync.Mutex

	// persisted holds the programs built for persisting commands, by shader cache key.
	persisted map[string]renderer.ShaderProgram
}

var _ ComputeEngine = &computeEngine{}

// NewComputeEngine creates an engine drawing with ctx.
//
// Parameters:
//   - ctx: the graphics context; the engine never destroys it
//   - options: a variadic list of ComputeEngineBuilderOption functions
//
// Returns:
//   - ComputeEngine: the new engine
func NewComputeEngine(ctx renderer.Context, options ...ComputeEngineBuilderOption) ComputeEngine {
	e := &computeEngine{
		ctx:          ctx,
		logger:       zap.NewNop(),
		drawCommand:  renderer.NewDrawCommand(renderer.PrimitiveTypeTriangles),
		clearCommand: renderer.NewClearCommand(mgl32.Vec4{0, 0, 0, 0}),
		mu:           &sync.Mutex{},
		persisted:    make(map[string]renderer.ShaderProgram),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *computeEngine) Context() renderer.Context {
	return e.ctx
}

func (e *computeEngine) IsDestroyed() bool {
	return e.destroyed.Load()
}

func (e *computeEngine) Execute(cmd *Command) error {
	if cmd == nil {
		return ErrNilCommand
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrConcurrentExecute
	}
	defer e.inFlight.Store(false)
	// Destroy also holds inFlight, so this check cannot interleave with it.
	if e.destroyed.Load() {
		return ErrEngineDestroyed
	}

	start := time.Now()
	e.metrics.executionStarted()

	if cmd.PreExecute != nil {
		cmd.PreExecute(cmd)
	}

	kind := cmd.Kind()
	if err := cmd.validate(); err != nil {
		e.metrics.executionFinished(kind, resultInvalid, time.Since(start))
		return err
	}

	out, err := e.run(cmd, kind)
	if err != nil {
		e.metrics.executionFinished(kind, resultError, time.Since(start))
		e.logger.Debug("compute command failed", zap.String("id", cmd.ID), zap.Stringer("kind", kind), zap.Error(err))
		return err
	}

	elapsed := time.Since(start)
	e.metrics.executionFinished(kind, resultOK, elapsed)
	e.profiler.Tick()
	e.logger.Debug("compute command executed",
		zap.String("id", cmd.ID),
		zap.Stringer("kind", kind),
		zap.Stringer("pass", cmd.Pass),
		zap.Duration("elapsed", elapsed),
	)

	if cmd.PostExecute != nil {
		cmd.PostExecute(out)
	}
	return nil
}

// run resolves the command's resources, clears and draws, then releases what it created.
func (e *computeEngine) run(cmd *Command, kind CommandKind) (Output, error) {
	vertexArray := cmd.VertexArray
	if vertexArray == nil {
		vertexArray = e.ctx.ViewportQuadVertexArray()
	}

	program, created, err := e.shaderProgram(cmd)
	if err != nil {
		return Output{}, err
	}
	if created {
		defer e.destroy(resourceShaderProgram, cmd.ID, program)
	}

	var width, height int
	if kind == CommandKindTransformFeedback {
		width, height = e.ctx.DrawingBufferSize()
	} else {
		width, height = cmd.OutputTexture.Width(), cmd.OutputTexture.Height()
	}
	renderState := e.renderStateFor(width, height)

	defer e.drawCommand.Reset()
	draw := e.drawCommand
	draw.VertexArray = vertexArray
	draw.RenderState = renderState
	draw.ShaderProgram = program
	draw.UniformMap = cmd.UniformMap

	switch kind {
	case CommandKindTransformFeedback:
		program.SetTransformFeedbackVaryings(renderer.Varyings(cmd.TransformFeedbackBuffers))
		draw.PrimitiveType = cmd.PrimitiveType
		draw.TransformFeedbackBuffers = cmd.TransformFeedbackBuffers

	default:
		framebuffer, err := e.ctx.CreateFramebuffer(renderer.FramebufferDescriptor{
			ColorTextures:      []renderer.Texture{cmd.OutputTexture},
			DestroyAttachments: false,
		})
		if err != nil {
			return Output{}, err
		}
		e.metrics.resource(resourceFramebuffer, eventCreated)
		defer e.destroy(resourceFramebuffer, cmd.ID, framebuffer)

		defer e.clearCommand.Reset()
		e.clearCommand.Framebuffer = framebuffer
		e.clearCommand.RenderState = renderState
		if err := e.clearCommand.Execute(e.ctx); err != nil {
			return Output{}, err
		}

		draw.PrimitiveType = renderer.PrimitiveTypeTriangles
		draw.Framebuffer = framebuffer
	}

	if err := draw.Execute(e.ctx); err != nil {
		return Output{}, err
	}
	return cmd.Output(), nil
}

// shaderProgram returns the program to draw cmd with and whether this execution owns it.
// Programs built for persisting commands are owned by the engine until Destroy.
func (e *computeEngine) shaderProgram(cmd *Command) (renderer.ShaderProgram, bool, error) {
	if cmd.ShaderProgram != nil {
		return cmd.ShaderProgram, false, nil
	}

	desc := renderer.ShaderProgramDescriptor{
		VertexShaderSource:   renderer.ViewportQuadVS,
		FragmentShaderSource: cmd.FragmentShaderSource,
		AttributeLocations:   renderer.ViewportQuadAttributeLocations(),
	}

	if !cmd.Persists {
		program, err := e.ctx.ShaderProgramFromCache(desc)
		if err != nil {
			return nil, false, err
		}
		e.metrics.resource(resourceShaderProgram, eventCreated)
		return program, true, nil
	}

	key := renderer.ShaderCacheKey(desc)
	e.mu.Lock()
	defer e.mu.Unlock()
	if program, ok := e.persisted[key]; ok && !program.IsDestroyed() {
		return program, false, nil
	}
	program, err := e.ctx.ShaderProgramFromCache(desc)
	if err != nil {
		return nil, false, err
	}
	e.metrics.resource(resourceShaderProgram, eventCreated)
	e.persisted[key] = program
	return program, false, nil
}

// renderStateFor returns the cached render state for a width x height viewport, reusing the
// scratch slot while the size is unchanged.
func (e *computeEngine) renderStateFor(width, height int) *renderer.RenderState {
	desc := renderer.RenderStateDescriptor{Viewport: common.NewViewport(width, height)}
	if e.renderState != nil && e.renderStateDescriptor == desc {
		return e.renderState
	}

	cache := e.ctx.RenderStates()
	if e.renderState != nil {
		cache.RemoveFromCache(e.renderStateDescriptor)
	}
	e.renderState = cache.FromCache(desc)
	e.renderStateDescriptor = desc
	return e.renderState
}

// destroy releases a resource this execution created. Failures are logged, not returned,
// so they never mask the result of the draw.
func (e *computeEngine) destroy(resource, id string, d renderer.Destroyable) {
	if err := d.Destroy(); err != nil {
		e.metrics.resource(resource, eventFailed)
		e.logger.Warn("failed to destroy compute resource", zap.String("id", id), zap.String("resource", resource), zap.Error(err))
		return
	}
	e.metrics.resource(resource, eventDestroyed)
}

func (e *computeEngine) Destroy() error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrConcurrentExecute
	}
	defer e.inFlight.Store(false)

	if !e.destroyed.CompareAndSwap(false, true) {
		return ErrEngineDestroyed
	}

	if e.renderState != nil {
		e.ctx.RenderStates().RemoveFromCache(e.renderStateDescriptor)
		e.renderState = nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for key, program := range e.persisted {
		if !program.IsDestroyed() {
			if err := program.Destroy(); err != nil {
				errs = append(errs, err)
			} else {
				e.metrics.resource(resourceShaderProgram, eventDestroyed)
			}
		}
		delete(e.persisted, key)
	}

	e.logger.Info("compute engine destroyed")
	return errors.Join(errs...)
}
