package renderer

import (
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

const (
	defaultDrawingBufferWidth  = 300
	defaultDrawingBufferHeight = 150

	// copyBytesPerRowAlignment is the row pitch alignment WebGPU requires for texture to buffer copies.
	copyBytesPerRowAlignment = 256
)

// Surface is a presentable drawing target, such as a window.
type Surface interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// WGPUContext is a Context backed by a WebGPU device.
type WGPUContext interface {
	Context

	Device() *wgpu.Device
	Queue() *wgpu.Queue

	// TextureFormat returns the format of the default drawing buffer and of textures created without one.
	TextureFormat() wgpu.TextureFormat

	// ReadBuffer copies the contents of a buffer back to the host. It blocks until the GPU is done.
	//
	// Parameters:
	//   - b: a buffer created by this context
	//
	// Returns:
	//   - []byte: the buffer contents
	//   - error: ErrForeignResource, ErrResourceDestroyed or a mapping failure
	ReadBuffer(b Buffer) ([]byte, error)

	// ReadTexture copies the pixels of a 4-byte-per-pixel texture back to the host, tightly packed
	// row by row. It blocks until the GPU is done.
	//
	// Parameters:
	//   - t: a texture created by this context
	//
	// Returns:
	//   - []byte: width*height*4 bytes of pixel data
	//   - error: ErrForeignResource, ErrResourceDestroyed or a mapping failure
	ReadTexture(t Texture) ([]byte, error)

	// Resize changes the size of the default drawing buffer, reconfiguring the surface if there is one.
	Resize(width, height int) error
}

type wgpuContext struct {
	mu     *sync.Mutex
	logger *zap.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	window               Surface
	surface              *wgpu.Surface
	forceFallbackAdapter bool
	textureFormat        wgpu.TextureFormat
	width, height        int

	// drawingBuffer is the default render target when there is no surface.
	drawingBuffer *wgpuTexture

	samplerData  common.SamplerStagingData
	sampler      *wgpu.Sampler
	viewportQuad *wgpuVertexArray
	renderStates RenderStateCache
	shaders      *ShaderCache[*wgpuShaderProgram]

	destroyed bool
}

var _ WGPUContext = &wgpuContext{}

// NewWGPUContext creates a WebGPU device and the shared objects every compute command relies on:
// the viewport quad, the render state cache, the shader program cache and a linear sampler.
// Without WithWindow the context is headless and draws into an offscreen drawing buffer.
//
// Parameters:
//   - options: a variadic list of WGPUContextBuilderOption functions
//
// Returns:
//   - WGPUContext: the ready context
//   - error: if no adapter or device is available, or a shared object cannot be created
func NewWGPUContext(options ...WGPUContextBuilderOption) (WGPUContext, error) {
	c := &wgpuContext{
		mu:            &sync.Mutex{},
		logger:        zap.NewNop(),
		textureFormat: wgpu.TextureFormatRGBA8Unorm,
		width:         defaultDrawingBufferWidth,
		height:        defaultDrawingBufferHeight,
		renderStates:  NewRenderStateCache(),
	}
	for _, opt := range options {
		opt(c)
	}
	c.shaders = NewShaderCache(c.compileProgram)

	if err := c.init(); err != nil {
		c.release()
		return nil, err
	}
	c.logger.Info("wgpu context created",
		zap.Bool("headless", c.surface == nil),
		zap.Int("width", c.width),
		zap.Int("height", c.height),
		zap.Any("format", c.textureFormat),
	)
	return c, nil
}

func (c *wgpuContext) init() error {
	c.instance = wgpu.CreateInstance(nil)

	if c.window != nil {
		// glfw surfaces must be driven from the thread that created the window.
		runtime.LockOSThread()
		c.surface = c.instance.CreateSurface(c.window.SurfaceDescriptor())
		c.width, c.height = c.window.Width(), c.window.Height()
	}

	adapter, err := c.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: c.forceFallbackAdapter,
		CompatibleSurface:    c.surface,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	c.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-compute device",
	})
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	c.device = device
	c.queue = device.GetQueue()

	if err := c.configureDrawingBuffer(c.width, c.height); err != nil {
		return err
	}

	c.sampler, err = c.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "oxy-compute sampler",
		AddressModeU:  common.Coalesce(c.samplerData.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(c.samplerData.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(c.samplerData.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(c.samplerData.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(c.samplerData.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(c.samplerData.MipmapFilter, wgpu.MipmapFilterModeNearest),
		LodMinClamp:   c.samplerData.LodMinClamp,
		LodMaxClamp:   common.Coalesce(c.samplerData.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(c.samplerData.MaxAnisotropy, 1),
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}

	quad, err := c.createVertexArray(VertexArrayDescriptor{
		Label:       "viewport quad",
		Vertices:    viewportQuadVertices(),
		VertexCount: 4,
		Indices:     viewportQuadIndices,
	})
	if err != nil {
		return fmt.Errorf("create viewport quad: %w", err)
	}
	quad.shared = true
	c.viewportQuad = quad
	return nil
}

// configureDrawingBuffer sizes the surface, or recreates the offscreen drawing buffer when headless.
func (c *wgpuContext) configureDrawingBuffer(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("drawing buffer %dx%d: %w", width, height, ErrInvalidDescriptor)
	}
	c.width, c.height = width, height

	if c.surface != nil {
		capabilities := c.surface.GetCapabilities(c.adapter)
		c.textureFormat = capabilities.Formats[0]
		c.surface.Configure(c.adapter, c.device, &wgpu.SurfaceConfiguration{
			Usage:       wgpu.TextureUsageRenderAttachment,
			Format:      c.textureFormat,
			Width:       uint32(width),
			Height:      uint32(height),
			PresentMode: wgpu.PresentModeFifo,
			AlphaMode:   capabilities.AlphaModes[0],
		})
		return nil
	}

	if c.drawingBuffer != nil {
		c.drawingBuffer.texture.Release()
		c.drawingBuffer = nil
	}
	tex, err := c.createTexture(TextureDescriptor{
		Label:  "drawing buffer",
		Data:   common.TextureStagingData{Width: uint32(width), Height: uint32(height)},
		Format: c.textureFormat,
	})
	if err != nil {
		return fmt.Errorf("create drawing buffer: %w", err)
	}
	c.drawingBuffer = tex
	return nil
}

func (c *wgpuContext) Device() *wgpu.Device {
	return c.device
}

func (c *wgpuContext) Queue() *wgpu.Queue {
	return c.queue
}

func (c *wgpuContext) TextureFormat() wgpu.TextureFormat {
	return c.textureFormat
}

func (c *wgpuContext) ViewportQuadVertexArray() VertexArray {
	return c.viewportQuad
}

func (c *wgpuContext) ShaderProgramFromCache(desc ShaderProgramDescriptor) (ShaderProgram, error) {
	if c.IsDestroyed() {
		return nil, ErrContextDestroyed
	}
	return c.shaders.FromCache(desc)
}

func (c *wgpuContext) RenderStates() RenderStateCache {
	return c.renderStates
}

func (c *wgpuContext) DrawingBufferSize() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *wgpuContext) Resize(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrContextDestroyed
	}
	return c.configureDrawingBuffer(width, height)
}

func (c *wgpuContext) CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrContextDestroyed
	}
	if len(desc.ColorTextures) == 0 {
		return nil, fmt.Errorf("framebuffer without color textures: %w", ErrInvalidDescriptor)
	}

	fb := &wgpuFramebuffer{
		ctx:                c,
		colorTextures:      slices.Clone(desc.ColorTextures),
		destroyAttachments: desc.DestroyAttachments,
	}
	for i, t := range desc.ColorTextures {
		tex, err := unwrapTexture(c, t)
		if err != nil {
			releaseViews(fb.views)
			return nil, fmt.Errorf("color attachment %d: %w", i, err)
		}
		view, err := tex.texture.CreateView(nil)
		if err != nil {
			releaseViews(fb.views)
			return nil, fmt.Errorf("color attachment %d view: %w", i, err)
		}
		fb.views = append(fb.views, view)
	}
	c.logger.Debug("framebuffer created", zap.Int("attachments", len(fb.views)))
	return fb, nil
}

func (c *wgpuContext) CreateTexture(desc TextureDescriptor) (Texture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrContextDestroyed
	}
	return c.createTexture(desc)
}

func (c *wgpuContext) createTexture(desc TextureDescriptor) (*wgpuTexture, error) {
	if desc.Data.Width == 0 || desc.Data.Height == 0 {
		return nil, fmt.Errorf("texture %q is %dx%d: %w", desc.Label, desc.Data.Width, desc.Data.Height, ErrInvalidDescriptor)
	}
	format := common.Coalesce(desc.Format, c.textureFormat)
	size := wgpu.Extent3D{
		Width:              desc.Data.Width,
		Height:             desc.Data.Height,
		DepthOrArrayLayers: 1,
	}

	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Usage: wgpu.TextureUsageRenderAttachment |
			wgpu.TextureUsageTextureBinding |
			wgpu.TextureUsageCopySrc |
			wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	if len(desc.Data.Pixels) > 0 {
		c.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			desc.Data.Pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  desc.Data.Width * 4,
				RowsPerImage: desc.Data.Height,
			},
			&size,
		)
	}

	return &wgpuTexture{
		ctx:     c,
		texture: tex,
		width:   int(desc.Data.Width),
		height:  int(desc.Data.Height),
		format:  format,
	}, nil
}

func (c *wgpuContext) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrContextDestroyed
	}

	size := common.AlignUp(4, max(desc.Size, uint64(len(desc.Data))))
	if size == 0 {
		return nil, fmt.Errorf("buffer %q has no size: %w", desc.Label, ErrInvalidDescriptor)
	}
	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: wgpu.BufferUsageStorage |
			wgpu.BufferUsageVertex |
			wgpu.BufferUsageCopySrc |
			wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	if len(desc.Data) > 0 {
		c.queue.WriteBuffer(buf, 0, padTo4(desc.Data))
	}
	return &wgpuBuffer{ctx: c, buffer: buf, size: size}, nil
}

func (c *wgpuContext) CreateVertexArray(desc VertexArrayDescriptor) (VertexArray, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrContextDestroyed
	}
	return c.createVertexArray(desc)
}

// createVertexArray uploads vertex data usable both as a vertex buffer and as a read-only
// storage buffer, so the same array can feed a draw or a transform feedback dispatch.
func (c *wgpuContext) createVertexArray(desc VertexArrayDescriptor) (*wgpuVertexArray, error) {
	if len(desc.Vertices) == 0 || desc.VertexCount <= 0 {
		return nil, fmt.Errorf("vertex array %q has no vertices: %w", desc.Label, ErrInvalidDescriptor)
	}

	va := &wgpuVertexArray{
		ctx:         c,
		vertexCount: desc.VertexCount,
		indexCount:  len(desc.Indices),
	}
	vertices := padTo4(desc.Vertices)
	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label + " Vertex Buffer",
		Size:  uint64(len(vertices)),
		Usage: wgpu.BufferUsageVertex |
			wgpu.BufferUsageStorage |
			wgpu.BufferUsageCopySrc |
			wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	c.queue.WriteBuffer(buf, 0, vertices)
	va.vertexBuffer = buf

	if len(desc.Indices) > 0 {
		indices := padTo4(common.SliceToBytes(desc.Indices))
		buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: desc.Label + " Index Buffer",
			Size:  uint64(len(indices)),
			Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			va.release()
			return nil, err
		}
		c.queue.WriteBuffer(buf, 0, indices)
		va.indexBuffer = buf
	}
	return va, nil
}

func (c *wgpuContext) Clear(cmd *ClearCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrContextDestroyed
	}

	target, err := c.renderTarget(cmd.Framebuffer)
	if err != nil {
		return err
	}
	defer target.release()

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	attachments := make([]wgpu.RenderPassColorAttachment, len(target.views))
	for i, v := range target.views {
		attachments[i] = wgpu.RenderPassColorAttachment{
			View:    v,
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(cmd.Color[0]),
				G: float64(cmd.Color[1]),
				B: float64(cmd.Color[2]),
				A: float64(cmd.Color[3]),
			},
		}
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            "clear",
		ColorAttachments: attachments,
	})
	pass.End()
	pass.Release()

	return c.submit(encoder, target)
}

func (c *wgpuContext) Draw(cmd *DrawCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrContextDestroyed
	}
	if cmd.ShaderProgram == nil || cmd.VertexArray == nil {
		return fmt.Errorf("draw without shader program or vertex array: %w", ErrInvalidDescriptor)
	}

	program, err := unwrapProgram(c, cmd.ShaderProgram)
	if err != nil {
		return err
	}
	va, err := unwrapVertexArray(c, cmd.VertexArray)
	if err != nil {
		return err
	}

	if cmd.TransformFeedbackBuffers != nil {
		if cmd.Framebuffer != nil {
			return fmt.Errorf("transform feedback into a framebuffer: %w", ErrUnsupportedDrawTarget)
		}
		return c.dispatchTransformFeedback(cmd, program, va)
	}
	return c.drawRaster(cmd, program, va)
}

func (c *wgpuContext) drawRaster(cmd *DrawCommand, program *wgpuShaderProgram, va *wgpuVertexArray) error {
	if !program.canRender() {
		return fmt.Errorf("program %s has no vertex and fragment entry points: %w", program.key, ErrUnsupportedDrawTarget)
	}
	topology, ok := cmd.PrimitiveType.Topology()
	if !ok {
		return fmt.Errorf("primitive type %s: %w", cmd.PrimitiveType, ErrUnsupportedDrawTarget)
	}

	target, err := c.renderTarget(cmd.Framebuffer)
	if err != nil {
		return err
	}
	defer target.release()

	blend := cmd.RenderState != nil && cmd.RenderState.BlendingEnabled()
	p, err := c.renderPipeline(program, target.format, topology, blend)
	if err != nil {
		return err
	}

	providers, err := c.bindResources(program, pipeline.PipelineTypeRender, p, cmd.UniformMap, nil)
	defer releaseProviders(providers)
	if err != nil {
		return err
	}

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	attachments := make([]wgpu.RenderPassColorAttachment, len(target.views))
	for i, v := range target.views {
		attachments[i] = wgpu.RenderPassColorAttachment{
			View:    v,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            program.key,
		ColorAttachments: attachments,
	})

	viewport := common.NewViewport(target.width, target.height)
	if cmd.RenderState != nil && !cmd.RenderState.Viewport().Empty() {
		viewport = clampViewport(cmd.RenderState.Viewport(), target.width, target.height)
	}
	pass.SetViewport(float32(viewport.X), float32(viewport.Y), float32(viewport.Width), float32(viewport.Height), 0, 1)
	pass.SetPipeline(p.Pipeline().(*wgpu.RenderPipeline))
	for _, provider := range providers {
		pass.SetBindGroup(uint32(provider.Group()), provider.BindGroup(), nil)
	}
	pass.SetVertexBuffer(0, va.vertexBuffer, 0, wgpu.WholeSize)

	if va.indexBuffer != nil {
		count := drawCount(cmd.Count, va.indexCount)
		pass.SetIndexBuffer(va.indexBuffer, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
		pass.DrawIndexed(uint32(count), 1, 0, 0, 0)
	} else {
		count := drawCount(cmd.Count, va.vertexCount)
		pass.Draw(uint32(count), 1, 0, 0)
	}
	pass.End()
	pass.Release()

	return c.submit(encoder, target)
}

// dispatchTransformFeedback runs the @compute entry point of the program's vertex source once per vertex.
func (c *wgpuContext) dispatchTransformFeedback(cmd *DrawCommand, program *wgpuShaderProgram, va *wgpuVertexArray) error {
	if program.computeModule == nil {
		return fmt.Errorf("program %s has no @compute entry point for transform feedback: %w", program.key, ErrUnsupportedDrawTarget)
	}

	storage := make(map[string]*wgpu.Buffer)
	for _, name := range cmd.ShaderProgram.TransformFeedbackVaryings() {
		b, ok := cmd.TransformFeedbackBuffers.ValueByKeyTry(name)
		if !ok {
			return fmt.Errorf("varying %s has no buffer: %w", name, ErrInvalidDescriptor)
		}
		buf, err := unwrapBuffer(c, b)
		if err != nil {
			return fmt.Errorf("varying %s: %w", name, err)
		}
		storage[name] = buf.buffer
	}
	if input, ok := program.vertexInputBinding(); ok {
		storage[input.Name] = va.vertexBuffer
	}

	p, err := c.computePipeline(program)
	if err != nil {
		return err
	}
	providers, err := c.bindResources(program, pipeline.PipelineTypeCompute, p, cmd.UniformMap, storage)
	defer releaseProviders(providers)
	if err != nil {
		return err
	}

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: program.key})
	pass.SetPipeline(p.Pipeline().(*wgpu.ComputePipeline))
	for _, provider := range providers {
		pass.SetBindGroup(uint32(provider.Group()), provider.BindGroup(), nil)
	}
	count := drawCount(cmd.Count, va.vertexCount)
	pass.DispatchWorkgroups(common.DivCeil(uint32(count), program.computeModule.WorkgroupSize()[0]), 1, 1)
	pass.End()
	pass.Release()

	return c.submit(encoder, nil)
}

// bindResources builds one bind group per group of the pipeline layout. Uniform buffers are packed from
// the uniform map, texture bindings take the Texture uniform of the same name, samplers take the
// shared sampler and storage bindings take the buffer of the same name from storage.
func (c *wgpuContext) bindResources(
	program *wgpuShaderProgram,
	pipelineType pipeline.PipelineType,
	p pipeline.Pipeline,
	uniforms UniformMap,
	storage map[string]*wgpu.Buffer,
) ([]bind_group_provider.BindGroupProvider, error) {
	groups := program.bindingsByGroup(pipelineType)
	providers := make([]bind_group_provider.BindGroupProvider, 0, len(p.BindGroupLayouts()))

	// Every group of the layout needs a bind group, including groups the shader skips.
	for group := range len(p.BindGroupLayouts()) {
		provider := bind_group_provider.NewBindGroupProvider(
			fmt.Sprintf("%s group %d", program.key, group),
			bind_group_provider.WithGroup(group),
		)
		providers = append(providers, provider)

		var writes []bind_group_provider.BufferWrite
		var entries []wgpu.BindGroupLayoutEntry
		for _, b := range groups[group] {
			entries = append(entries, b.Entry)

			switch {
			case b.IsUniformBuffer():
				data, err := PackUniformBuffer(b, uniforms)
				if err != nil {
					return providers, err
				}
				buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
					Label: provider.Label() + " " + b.Name,
					Size:  uint64(len(data)),
					Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
				})
				if err != nil {
					return providers, err
				}
				provider.SetBuffer(b.Binding, buf)
				writes = append(writes, bind_group_provider.BufferWrite{
					Provider: provider,
					Binding:  b.Binding,
					Data:     data,
				})
			case b.IsTexture():
				v, _ := uniforms.Value(b.Name)
				t, ok := v.(Texture)
				if !ok {
					return providers, fmt.Errorf("texture binding %s needs a Texture uniform: %w", b.Name, ErrInvalidDescriptor)
				}
				tex, err := unwrapTexture(c, t)
				if err != nil {
					return providers, fmt.Errorf("texture binding %s: %w", b.Name, err)
				}
				view, err := tex.texture.CreateView(nil)
				if err != nil {
					return providers, err
				}
				provider.SetTextureView(b.Binding, view)
			case b.IsSampler():
				provider.BorrowSampler(b.Binding, c.sampler)
			default:
				buf, ok := storage[b.Name]
				if !ok {
					return providers, fmt.Errorf("storage binding %s has no buffer: %w", b.Name, ErrInvalidDescriptor)
				}
				provider.BorrowBuffer(b.Binding, buf)
			}
		}

		c.writeBuffers(writes)

		layout := p.BindGroupLayout(group)
		if layout == nil {
			return providers, fmt.Errorf("pipeline %s has no layout for group %d: %w", p.PipelineKey(), group, ErrInvalidDescriptor)
		}
		bindGroupEntries, err := provider.Entries(wgpu.BindGroupLayoutDescriptor{Entries: entries})
		if err != nil {
			return providers, err
		}
		bindGroup, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   provider.Label() + " Bind Group",
			Layout:  layout,
			Entries: bindGroupEntries,
		})
		if err != nil {
			return providers, err
		}
		provider.SetBindGroup(bindGroup)
	}
	return providers, nil
}

func (c *wgpuContext) writeBuffers(writes []bind_group_provider.BufferWrite) {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		c.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
}

func (c *wgpuContext) submit(encoder *wgpu.CommandEncoder, target *renderTarget) error {
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()
	c.queue.Submit(commandBuffer)

	if target != nil && target.surfaceTexture != nil {
		c.surface.Present()
	}
	return nil
}

func (c *wgpuContext) ReadBuffer(b Buffer) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrContextDestroyed
	}
	buf, err := unwrapBuffer(c, b)
	if err != nil {
		return nil, err
	}

	return c.readback(buf.size, func(encoder *wgpu.CommandEncoder, staging *wgpu.Buffer) error {
		return encoder.CopyBufferToBuffer(buf.buffer, 0, staging, 0, buf.size)
	})
}

func (c *wgpuContext) ReadTexture(t Texture) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrContextDestroyed
	}
	tex, err := unwrapTexture(c, t)
	if err != nil {
		return nil, err
	}

	width, height := uint32(tex.width), uint32(tex.height)
	bytesPerRow := uint32(common.AlignUp(copyBytesPerRowAlignment, uint64(width)*4))
	padded, err := c.readback(uint64(bytesPerRow)*uint64(height), func(encoder *wgpu.CommandEncoder, staging *wgpu.Buffer) error {
		return encoder.CopyTextureToBuffer(
			&wgpu.ImageCopyTexture{
				Texture:  tex.texture,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			&wgpu.ImageCopyBuffer{
				Buffer: staging,
				Layout: wgpu.TextureDataLayout{
					Offset:       0,
					BytesPerRow:  bytesPerRow,
					RowsPerImage: height,
				},
			},
			&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		)
	})
	if err != nil {
		return nil, err
	}

	pixels := make([]byte, 0, width*height*4)
	for row := range height {
		start := row * bytesPerRow
		pixels = append(pixels, padded[start:start+width*4]...)
	}
	return pixels, nil
}

// readback copies size bytes into a mappable staging buffer with encode, waits for the device and
// returns a host copy of the mapped range.
func (c *wgpuContext) readback(size uint64, encode func(*wgpu.CommandEncoder, *wgpu.Buffer) error) ([]byte, error) {
	staging, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()
	if err := encode(encoder, staging); err != nil {
		return nil, err
	}
	if err := c.submit(encoder, nil); err != nil {
		return nil, err
	}

	var status wgpu.BufferMapAsyncStatus
	if err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, err
	}
	c.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("readback map status %d", status)
	}
	defer staging.Unmap()

	return slices.Clone(staging.GetMappedRange(0, uint(size))), nil
}

func (c *wgpuContext) IsDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// Destroy releases the shader programs, the shared objects and the device. Resources created
// through the context and not yet destroyed by their owners are left to the driver.
func (c *wgpuContext) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrContextDestroyed
	}
	c.destroyed = true
	c.mu.Unlock()

	err := c.shaders.Destroy()
	c.release()
	c.logger.Info("wgpu context destroyed")
	return err
}

func (c *wgpuContext) release() {
	if c.viewportQuad != nil {
		c.viewportQuad.release()
		c.viewportQuad = nil
	}
	if c.sampler != nil {
		c.sampler.Release()
		c.sampler = nil
	}
	if c.drawingBuffer != nil {
		c.drawingBuffer.texture.Release()
		c.drawingBuffer = nil
	}
	if c.surface != nil {
		c.surface.Release()
		c.surface = nil
	}
	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}

func (c *wgpuContext) resourceDestroyed(kind string) {
	c.logger.Debug("resource destroyed", zap.String("kind", kind))
}

// renderTarget is the set of color views one pass renders into.
type renderTarget struct {
	views         []*wgpu.TextureView
	format        wgpu.TextureFormat
	width, height int

	// ownedViews are released after the pass; framebuffer views belong to the framebuffer.
	ownedViews     []*wgpu.TextureView
	surfaceTexture *wgpu.Texture
}

func (t *renderTarget) release() {
	releaseViews(t.ownedViews)
	if t.surfaceTexture != nil {
		t.surfaceTexture.Release()
	}
}

// renderTarget resolves the views of fb, or of the default drawing buffer when fb is nil.
func (c *wgpuContext) renderTarget(fb Framebuffer) (*renderTarget, error) {
	if fb != nil {
		framebuffer, err := unwrapFramebuffer(c, fb)
		if err != nil {
			return nil, err
		}
		first := framebuffer.colorTextures[0]
		return &renderTarget{
			views:  framebuffer.views,
			format: first.PixelFormat(),
			width:  first.Width(),
			height: first.Height(),
		}, nil
	}

	if c.surface != nil {
		surfaceTexture, err := c.surface.GetCurrentTexture()
		if err != nil {
			return nil, err
		}
		view, err := surfaceTexture.CreateView(nil)
		if err != nil {
			surfaceTexture.Release()
			return nil, err
		}
		return &renderTarget{
			views:          []*wgpu.TextureView{view},
			ownedViews:     []*wgpu.TextureView{view},
			surfaceTexture: surfaceTexture,
			format:         c.textureFormat,
			width:          c.width,
			height:         c.height,
		}, nil
	}

	view, err := c.drawingBuffer.texture.CreateView(nil)
	if err != nil {
		return nil, err
	}
	return &renderTarget{
		views:      []*wgpu.TextureView{view},
		ownedViews: []*wgpu.TextureView{view},
		format:     c.drawingBuffer.format,
		width:      c.drawingBuffer.width,
		height:     c.drawingBuffer.height,
	}, nil
}

// vertexVisible reports whether a binding may be visible to the vertex stage. WebGPU forbids
// writable storage buffers and storage textures there.
func vertexVisible(b shader.Binding) bool {
	if storage, writable := b.IsStorageBuffer(); storage && writable {
		return false
	}
	return b.Entry.StorageTexture.Format == wgpu.TextureFormatUndefined
}

func clampViewport(vp common.BoundingRectangle, width, height int) common.BoundingRectangle {
	vp.X = min(max(vp.X, 0), width)
	vp.Y = min(max(vp.Y, 0), height)
	vp.Width = min(vp.Width, width-vp.X)
	vp.Height = min(vp.Height, height-vp.Y)
	return vp
}

func drawCount(requested, available int) int {
	if requested > 0 && requested < available {
		return requested
	}
	return available
}

func padTo4(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	padded := make([]byte, common.AlignUp(4, uint64(len(data))))
	copy(padded, data)
	return padded
}

func releaseViews(views []*wgpu.TextureView) {
	for _, v := range views {
		v.Release()
	}
}

func releaseProviders(providers []bind_group_provider.BindGroupProvider) {
	for _, p := range providers {
		p.Release()
	}
}
