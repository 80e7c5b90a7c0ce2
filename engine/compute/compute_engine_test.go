package compute

import (
	"errors"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const invertFS = `
@group(0) @binding(0) var inputTexture: texture_2d<f32>;
@group(0) @binding(1) var inputSampler: sampler;

@fragment
fn main(@location(0) uv: vec2f) -> @location(0) vec4f {
    return vec4f(1.0) - textureSample(inputTexture, inputSampler, uv);
}
`

func TestExecute_Preconditions(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)

	assert.ErrorIs(t, engine.Execute(nil), ErrNilCommand)

	err := engine.Execute(NewComputeCommand(WithOutputTexture(&fakeTexture{width: 4, height: 4})))
	assert.ErrorIs(t, err, ErrMissingShader)

	err = engine.Execute(NewComputeCommand(WithFragmentShaderSource(invertFS)))
	assert.ErrorIs(t, err, ErrMissingOutputTexture)

	err = engine.Execute(NewTransformFeedbackCommand())
	assert.ErrorIs(t, err, ErrMissingShader)

	assert.Empty(t, ctx.calls, "no resource may be created before validation passes")
}

func TestExecute_PreExecuteRunsBeforeValidation(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)
	texture := &fakeTexture{width: 8, height: 8}

	cmd := NewComputeCommand(
		WithFragmentShaderSource(invertFS),
		WithPreExecute(func(c *Command) {
			c.OutputTexture = texture
		}),
	)
	require.NoError(t, engine.Execute(cmd))
	require.Len(t, ctx.framebuffers, 1)
	assert.Same(t, texture, ctx.framebuffers[0].desc.ColorTextures[0])
}

func TestExecute_TextureClearsThenDraws(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)
	texture := &fakeTexture{width: 64, height: 32}
	uniforms := renderer.UniformMap{"radius": func() any { return float32(2) }}

	require.NoError(t, engine.Execute(NewComputeCommand(
		WithFragmentShaderSource(invertFS),
		WithOutputTexture(texture),
		WithUniformMap(uniforms),
	)))

	assert.Equal(t, []string{"compile", "framebuffer", "clear", "draw"}, ctx.calls)

	require.Len(t, ctx.clears, 1)
	cleared := ctx.clears[0]
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 0}, cleared.Color)
	assert.Same(t, ctx.framebuffers[0], cleared.Framebuffer)
	assert.Equal(t, common.NewViewport(64, 32), cleared.RenderState.Viewport())

	require.Len(t, ctx.draws, 1)
	draw := ctx.draws[0]
	assert.Equal(t, renderer.PrimitiveTypeTriangles, draw.PrimitiveType)
	assert.Same(t, ctx.quad, draw.VertexArray)
	assert.Same(t, ctx.programs[0], draw.ShaderProgram)
	assert.Same(t, ctx.framebuffers[0], draw.Framebuffer)
	assert.Same(t, cleared.RenderState, draw.RenderState)
	assert.Nil(t, draw.TransformFeedbackBuffers)
	assert.Contains(t, draw.UniformMap, "radius")

	program := ctx.programs[0]
	assert.Equal(t, renderer.ViewportQuadVS, program.desc.VertexShaderSource)
	assert.Equal(t, invertFS, program.desc.FragmentShaderSource)
	assert.Equal(t, map[string]int{"position": 0, "textureCoordinates": 1}, program.desc.AttributeLocations)

	fb := ctx.framebuffers[0]
	assert.False(t, fb.desc.DestroyAttachments)
	assert.True(t, fb.IsDestroyed(), "the framebuffer is transient")
	assert.False(t, texture.IsDestroyed())
	assert.False(t, ctx.quad.IsDestroyed(), "the shared quad belongs to the context")
}

func TestExecute_TransformFeedbackNeverClears(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)
	program := &fakeProgram{}
	vertices := &fakeVertexArray{vertices: 1024}
	position := &fakeBuffer{size: 16 * 1024}
	velocity := &fakeBuffer{size: 16 * 1024}

	require.NoError(t, engine.Execute(NewTransformFeedbackCommand(
		WithShaderProgram(program),
		WithVertexArray(vertices),
		WithTransformFeedbackBuffer("position", position),
		WithTransformFeedbackBuffer("velocity", velocity),
	)))

	assert.Equal(t, []string{"draw"}, ctx.calls)
	assert.Empty(t, ctx.clears)
	assert.Empty(t, ctx.framebuffers)

	draw := ctx.draws[0]
	assert.Equal(t, renderer.PrimitiveTypePoints, draw.PrimitiveType)
	assert.Same(t, vertices, draw.VertexArray)
	assert.Nil(t, draw.Framebuffer)
	assert.Equal(t, common.NewViewport(300, 150), draw.RenderState.Viewport(), "sized to the drawing buffer")
	assert.Equal(t, []string{"position", "velocity"}, program.TransformFeedbackVaryings())

	buf, ok := draw.TransformFeedbackBuffers.ValueByKeyTry("position")
	require.True(t, ok)
	assert.Same(t, position, buf)
}

func TestExecute_TransformFeedbackPrimitiveOverride(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)

	require.NoError(t, engine.Execute(NewTransformFeedbackCommand(
		WithShaderProgram(&fakeProgram{}),
		WithTransformFeedbackBuffer("out", &fakeBuffer{size: 4}),
		WithPrimitiveType(renderer.PrimitiveTypeLines),
	)))
	assert.Equal(t, renderer.PrimitiveTypeLines, ctx.draws[0].PrimitiveType)
}

func TestExecute_TransformFeedbackComputeCommandDrawsPoints(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)

	require.NoError(t, engine.Execute(NewComputeCommand(
		WithShaderProgram(&fakeProgram{}),
		WithTransformFeedbackBuffer("out", &fakeBuffer{size: 4}),
	)))
	require.Len(t, ctx.draws, 1)
	assert.Equal(t, renderer.PrimitiveTypePoints, ctx.draws[0].PrimitiveType)
	assert.Nil(t, ctx.draws[0].Framebuffer)
	assert.Empty(t, ctx.clears)
}

func TestExecute_CallerResourcesAreNeverDestroyed(t *testing.T) {
	for _, persists := range []bool{false, true} {
		ctx := newFakeContext()
		engine := NewComputeEngine(ctx)
		program := &fakeProgram{}
		vertices := &fakeVertexArray{vertices: 3}
		texture := &fakeTexture{width: 2, height: 2}

		require.NoError(t, engine.Execute(NewComputeCommand(
			WithShaderProgram(program),
			WithVertexArray(vertices),
			WithOutputTexture(texture),
			WithPersists(persists),
		)))

		assert.Zero(t, program.destroys, "persists=%v", persists)
		assert.Zero(t, vertices.destroys, "persists=%v", persists)
		assert.Zero(t, texture.destroys, "persists=%v", persists)
		assert.Empty(t, ctx.programs, "no program is built when one is supplied")
	}
}

func TestExecute_NonPersistingProgramIsDestroyed(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)

	require.NoError(t, engine.Execute(NewComputeCommand(
		WithFragmentShaderSource(invertFS),
		WithOutputTexture(&fakeTexture{width: 4, height: 4}),
	)))
	require.Len(t, ctx.programs, 1)
	assert.True(t, ctx.programs[0].IsDestroyed())
}

func TestExecute_PersistingProgramIsKept(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)
	texture := &fakeTexture{width: 4, height: 4}

	for range 3 {
		require.NoError(t, engine.Execute(NewComputeCommand(
			WithFragmentShaderSource(invertFS),
			WithOutputTexture(texture),
			WithPersists(true),
		)))
	}
	require.Len(t, ctx.programs, 1, "the kept program is reused")
	program := ctx.programs[0]
	assert.False(t, program.IsDestroyed())
	for _, draw := range ctx.draws {
		assert.Same(t, program, draw.ShaderProgram)
	}

	require.NoError(t, engine.Destroy())
	assert.True(t, program.IsDestroyed(), "kept programs are released with the engine")
}

func TestExecute_PersistingProgramRebuiltAfterExternalDestroy(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)
	cmd := NewComputeCommand(
		WithFragmentShaderSource(invertFS),
		WithOutputTexture(&fakeTexture{width: 4, height: 4}),
		WithPersists(true),
	)

	require.NoError(t, engine.Execute(cmd))
	require.NoError(t, ctx.programs[0].Destroy())
	require.NoError(t, engine.Execute(cmd))
	require.Len(t, ctx.programs, 2)
	assert.Same(t, ctx.programs[1], ctx.draws[1].ShaderProgram)
}

func TestExecute_RenderStateReuse(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)
	run := func(w, h int) *renderer.RenderState {
		require.NoError(t, engine.Execute(NewComputeCommand(
			WithShaderProgram(&fakeProgram{}),
			WithOutputTexture(&fakeTexture{width: w, height: h}),
		)))
		return ctx.draws[len(ctx.draws)-1].RenderState
	}

	first := run(64, 64)
	second := run(64, 64)
	third := run(128, 64)

	assert.Same(t, first, second)
	assert.NotSame(t, first, third)
	assert.Equal(t, common.NewViewport(128, 64), third.Viewport())
	assert.Equal(t, 2, ctx.renderStates.lookups)
	assert.Equal(t, 1, ctx.renderStates.removals, "the previous size is released")
	assert.Equal(t, 1, ctx.renderStates.Len())

	require.NoError(t, engine.Destroy())
	assert.Zero(t, ctx.renderStates.Len())
}

func TestExecute_PostExecuteReceivesSameReferences(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)
	texture := &fakeTexture{width: 64, height: 64}

	var outputs []Output
	var framebufferDestroyed bool
	require.NoError(t, engine.Execute(NewComputeCommand(
		WithFragmentShaderSource(invertFS),
		WithOutputTexture(texture),
		WithPostExecute(func(out Output) {
			outputs = append(outputs, out)
			framebufferDestroyed = ctx.framebuffers[0].IsDestroyed()
		}),
	)))
	require.Len(t, outputs, 1)
	assert.Same(t, texture, outputs[0].Texture)
	assert.Nil(t, outputs[0].Buffers)
	assert.True(t, framebufferDestroyed)

	buffers := renderer.NewTransformFeedbackBuffers()
	buffers.Add("out", &fakeBuffer{size: 4})
	program := &fakeProgram{}
	var tfOut Output
	require.NoError(t, engine.Execute(NewTransformFeedbackCommand(
		WithShaderProgram(program),
		WithTransformFeedbackBuffers(buffers),
		WithPersists(false),
		WithPostExecute(func(out Output) { tfOut = out }),
	)))
	assert.Same(t, buffers, tfOut.Buffers)
	assert.Nil(t, tfOut.Texture)
	assert.False(t, program.IsDestroyed())
}

func TestExecute_ContextErrorsPropagateAfterCleanup(t *testing.T) {
	ctx := newFakeContext()
	ctx.drawErr = errors.New("device lost")
	engine := NewComputeEngine(ctx)
	called := false

	err := engine.Execute(NewComputeCommand(
		WithFragmentShaderSource(invertFS),
		WithOutputTexture(&fakeTexture{width: 4, height: 4}),
		WithPostExecute(func(Output) { called = true }),
	))
	assert.Same(t, ctx.drawErr, err)
	assert.False(t, called)
	assert.True(t, ctx.framebuffers[0].IsDestroyed())
	assert.True(t, ctx.programs[0].IsDestroyed())

	ctx = newFakeContext()
	ctx.compileErr = errors.New("bad wgsl")
	engine = NewComputeEngine(ctx)
	err = engine.Execute(NewComputeCommand(
		WithFragmentShaderSource("nonsense"),
		WithOutputTexture(&fakeTexture{width: 4, height: 4}),
	))
	assert.Same(t, ctx.compileErr, err)
	assert.Empty(t, ctx.framebuffers)
}

func TestExecute_CleanupFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx := newFakeContext()
	ctx.framebufferDestroyErr = errors.New("already released")
	engine := NewComputeEngine(ctx, WithLogger(zap.New(core)))
	called := false

	require.NoError(t, engine.Execute(NewComputeCommand(
		WithShaderProgram(&fakeProgram{}),
		WithOutputTexture(&fakeTexture{width: 4, height: 4}),
		WithPostExecute(func(Output) { called = true }),
	)), "a failed release does not fail the execution")
	assert.True(t, called)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "compute", entry.LoggerName)
	assert.Equal(t, "framebuffer", entry.ContextMap()["resource"])
}

func TestExecute_Reentrancy(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)

	var nested error
	require.NoError(t, engine.Execute(NewComputeCommand(
		WithShaderProgram(&fakeProgram{}),
		WithOutputTexture(&fakeTexture{width: 1, height: 1}),
		WithPreExecute(func(*Command) {
			nested = engine.Execute(NewComputeCommand())
		}),
		WithPostExecute(func(Output) {
			assert.ErrorIs(t, engine.Destroy(), ErrConcurrentExecute)
		}),
	)))
	assert.ErrorIs(t, nested, ErrConcurrentExecute)
	assert.False(t, engine.IsDestroyed())
}

func TestExecute_ScratchCommandsAreReset(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx).(*computeEngine)

	require.NoError(t, engine.Execute(NewComputeCommand(
		WithShaderProgram(&fakeProgram{}),
		WithOutputTexture(&fakeTexture{width: 2, height: 2}),
	)))
	assert.Equal(t, renderer.DrawCommand{PrimitiveType: renderer.PrimitiveTypeTriangles}, *engine.drawCommand)
	assert.Nil(t, engine.clearCommand.Framebuffer)
	assert.Nil(t, engine.clearCommand.RenderState)
}

func TestComputeEngine_Destroy(t *testing.T) {
	ctx := newFakeContext()
	engine := NewComputeEngine(ctx)
	assert.Same(t, ctx, engine.Context())
	assert.False(t, engine.IsDestroyed())

	require.NoError(t, engine.Destroy())
	assert.True(t, engine.IsDestroyed())
	assert.ErrorIs(t, engine.Destroy(), ErrEngineDestroyed)

	err := engine.Execute(NewComputeCommand(
		WithShaderProgram(&fakeProgram{}),
		WithOutputTexture(&fakeTexture{width: 1, height: 1}),
	))
	assert.ErrorIs(t, err, ErrEngineDestroyed)
	assert.Empty(t, ctx.calls)
}

func TestComputeEngine_DestroyRacingExecute(t *testing.T) {
	for range 200 {
		ctx := newFakeContext()
		engine := NewComputeEngine(ctx).(*computeEngine)

		var (
			wg         sync.WaitGroup
			destroyErr error
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			destroyErr = engine.Destroy()
		}()
		execErr := engine.Execute(NewComputeCommand(
			WithFragmentShaderSource(invertFS),
			WithOutputTexture(&fakeTexture{width: 2, height: 2}),
			WithPersists(true),
		))
		wg.Wait()

		if destroyErr != nil {
			require.ErrorIs(t, destroyErr, ErrConcurrentExecute)
			require.NoError(t, execErr)
			continue
		}
		if execErr != nil {
			require.True(t, errors.Is(execErr, ErrConcurrentExecute) || errors.Is(execErr, ErrEngineDestroyed), execErr.Error())
		}
		require.True(t, engine.IsDestroyed())
		require.Empty(t, engine.persisted, "nothing is kept once destroyed")
		require.Nil(t, engine.renderState)
		for _, program := range ctx.programs {
			require.True(t, program.IsDestroyed())
		}
	}
}
