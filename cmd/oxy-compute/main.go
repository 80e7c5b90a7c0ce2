package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/config"
	"github.com/Carmen-Shannon/oxy-compute/engine/compute"
	"github.com/Carmen-Shannon/oxy-compute/engine/profiler"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer"
	"github.com/Carmen-Shannon/oxy-compute/engine/window"
	"github.com/cespare/xxhash/v2"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("oxy-compute failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

func run(cfg config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := compute.NewMetrics(reg)
	if cfg.Metrics.Address != "" {
		serveMetrics(cfg.Metrics, reg, logger)
	}

	options := []renderer.WGPUContextBuilderOption{
		renderer.WithLogger(logger),
		renderer.WithDrawingBufferSize(cfg.Renderer.Width, cfg.Renderer.Height),
		renderer.WithForceSoftwareRenderer(cfg.Renderer.ForceSoftwareRenderer),
	}
	var win window.Window
	if cfg.Window.Enabled {
		w, err := window.NewWindow(
			window.WithLogger(logger),
			window.WithTitle(cfg.Window.Title),
			window.WithSize(cfg.Renderer.Width, cfg.Renderer.Height),
		)
		if err != nil {
			return err
		}
		defer w.Close()
		win = w
		options = append(options, renderer.WithWindow(win))
	}

	gpu, err := renderer.NewWGPUContext(options...)
	if err != nil {
		return err
	}
	defer gpu.Destroy()

	prof := profiler.NewProfiler(
		profiler.WithLogger(logger),
		profiler.WithUpdateInterval(time.Duration(cfg.Compute.ProfileSeconds)*time.Second),
	)
	engine := compute.NewComputeEngine(gpu,
		compute.WithLogger(logger),
		compute.WithMetrics(metrics),
		compute.WithProfiler(prof),
	)
	defer engine.Destroy()

	queue := compute.NewQueue(engine, cfg.Compute.QueueSize)
	defer queue.Close()

	texture, err := gpu.CreateTexture(renderer.TextureDescriptor{
		Label: "plasma",
		Data: common.TextureStagingData{
			Width:  uint32(cfg.Renderer.Width),
			Height: uint32(cfg.Renderer.Height),
		},
		Format: wgpu.TextureFormatRGBA8Unorm,
	})
	if err != nil {
		return err
	}
	defer texture.Destroy()

	if err := runPlasma(cfg, logger, gpu, queue, texture); err != nil {
		return err
	}
	if err := runParticles(cfg, logger, gpu, queue); err != nil {
		return err
	}

	if win != nil {
		return present(logger, gpu, queue, win, texture, cfg.Compute.Persist)
	}
	return nil
}

func serveMetrics(cfg config.MetricsConfig, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	go func() {
		logger.Info("serving metrics", zap.String("address", cfg.Address), zap.String("path", cfg.Path))
		if err := http.ListenAndServe(cfg.Address, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}

// plasmaCommand renders the plasma pattern at time t into texture.
func plasmaCommand(texture renderer.Texture, t float32, persist bool, post func(compute.Output)) *compute.Command {
	return compute.NewComputeCommand(
		compute.WithFragmentShaderSource(plasmaFS),
		compute.WithOutputTexture(texture),
		compute.WithPersists(persist),
		compute.WithUniformMap(renderer.UniformMap{
			"time":  func() any { return t },
			"scale": func() any { return float32(12) },
		}),
		compute.WithPostExecute(post),
	)
}

func runPlasma(cfg config.Config, logger *zap.Logger, gpu renderer.WGPUContext, queue *compute.Queue, texture renderer.Texture) error {
	for i := range cfg.Compute.Iterations {
		var digest uint64
		var readErr error
		cmd := plasmaCommand(texture, float32(i)*0.25, cfg.Compute.Persist, func(out compute.Output) {
			pixels, err := gpu.ReadTexture(out.Texture)
			if err != nil {
				readErr = err
				return
			}
			digest = xxhash.Sum64(pixels)
		})
		if err := queue.Submit(context.Background(), cmd); err != nil {
			return fmt.Errorf("plasma %d: %w", i, err)
		}
		if readErr != nil {
			return fmt.Errorf("plasma %d readback: %w", i, readErr)
		}
		logger.Info("plasma computed",
			zap.Int("iteration", i),
			zap.Int("width", texture.Width()),
			zap.Int("height", texture.Height()),
			zap.String("digest", fmt.Sprintf("%016x", digest)),
		)
	}
	return nil
}

func runParticles(cfg config.Config, logger *zap.Logger, gpu renderer.WGPUContext, queue *compute.Queue) error {
	count := cfg.Particles.Count
	particles := make([]byte, count*32)
	for i := range count {
		angle := float64(i) / float64(count) * 2 * math.Pi
		putVec4(particles[i*32:], 0, 0, 0, 1)
		putVec4(particles[i*32+16:], float32(math.Cos(angle)), 5, float32(math.Sin(angle)), 0)
	}

	vertices, err := gpu.CreateVertexArray(renderer.VertexArrayDescriptor{
		Label:       "particles",
		Vertices:    particles,
		VertexCount: count,
	})
	if err != nil {
		return err
	}
	defer vertices.Destroy()

	position, err := gpu.CreateBuffer(renderer.BufferDescriptor{Label: "position", Size: uint64(count * 16)})
	if err != nil {
		return err
	}
	defer position.Destroy()
	velocity, err := gpu.CreateBuffer(renderer.BufferDescriptor{Label: "velocity", Size: uint64(count * 16)})
	if err != nil {
		return err
	}
	defer velocity.Destroy()

	program, err := gpu.ShaderProgramFromCache(renderer.ShaderProgramDescriptor{VertexShaderSource: particleVS})
	if err != nil {
		return err
	}
	defer program.Destroy()

	var first []byte
	cmd := compute.NewTransformFeedbackCommand(
		compute.WithShaderProgram(program),
		compute.WithVertexArray(vertices),
		compute.WithTransformFeedbackBuffer("position", position),
		compute.WithTransformFeedbackBuffer("velocity", velocity),
		compute.WithUniformMap(renderer.UniformMap{
			"dt":    func() any { return cfg.Particles.Step },
			"count": func() any { return uint32(count) },
		}),
		compute.WithPostExecute(func(out compute.Output) {
			buf, ok := out.Buffers.ValueByKeyTry("position")
			if !ok {
				return
			}
			data, err := gpu.ReadBuffer(buf)
			if err != nil {
				logger.Warn("particle readback failed", zap.Error(err))
				return
			}
			first = data[:16]
		}),
	)
	if err := queue.Submit(context.Background(), cmd); err != nil {
		return fmt.Errorf("particles: %w", err)
	}
	if first != nil {
		logger.Info("particles integrated",
			zap.Int("count", count),
			zap.Float32s("first_position", []float32{vec4At(first, 0), vec4At(first, 1), vec4At(first, 2)}),
		)
	}
	return nil
}

// present animates the plasma in the window until it is closed.
func present(logger *zap.Logger, gpu renderer.WGPUContext, queue *compute.Queue, win window.Window, texture renderer.Texture, persist bool) error {
	program, err := gpu.ShaderProgramFromCache(renderer.ShaderProgramDescriptor{
		VertexShaderSource:   renderer.ViewportQuadVS,
		FragmentShaderSource: presentFS,
		AttributeLocations:   renderer.ViewportQuadAttributeLocations(),
	})
	if err != nil {
		return err
	}
	defer program.Destroy()

	win.SetResizeCallback(func(width, height int) {
		if err := gpu.Resize(width, height); err != nil {
			logger.Warn("resize failed", zap.Error(err))
		}
	})

	draw := renderer.NewDrawCommand(renderer.PrimitiveTypeTriangles)
	start := time.Now()
	var loopErr error
	win.SetUpdateCallback(func() {
		if loopErr != nil {
			return
		}
		t := float32(time.Since(start).Seconds())
		if err := queue.Submit(context.Background(), plasmaCommand(texture, t, persist, nil)); err != nil {
			loopErr = err
			win.Close()
			return
		}

		width, height := gpu.DrawingBufferSize()
		states := gpu.RenderStates()
		desc := renderer.RenderStateDescriptor{Viewport: common.NewViewport(width, height)}
		draw.VertexArray = gpu.ViewportQuadVertexArray()
		draw.ShaderProgram = program
		draw.RenderState = states.FromCache(desc)
		draw.UniformMap = renderer.UniformMap{"inputTexture": func() any { return texture }}
		err := draw.Execute(gpu)
		states.RemoveFromCache(desc)
		draw.Reset()
		if err != nil {
			loopErr = err
			win.Close()
		}
	})
	win.ProcessMessages()
	return loopErr
}

func putVec4(dst []byte, x, y, z, w float32) {
	for i, v := range []float32{x, y, z, w} {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func vec4At(data []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
}
