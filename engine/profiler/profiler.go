package profiler

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Profiler tracks execution rate and memory statistics for performance monitoring.
// Outputs stats to its logger at a configurable interval.
type Profiler struct {
	mu             *sync.Mutex
	logger         *zap.Logger
	executionCount int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// ProfilerBuilderOption is a functional option for configuring a Profiler during construction.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the logger stats are written to, under the "profiler" name.
func WithLogger(logger *zap.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger.Named("profiler")
		}
	}
}

// WithUpdateInterval sets how often stats are logged. Zero logs on every tick.
func WithUpdateInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = interval
	}
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second and the logger to a no-op logger.
//
// Parameters:
//   - options: a variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		logger:         zap.NewNop(),
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Tick should be called once per executed command.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: executions/sec, heap usage, allocation rate, GC count/pause times, total memory.
// A nil profiler does nothing.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.executionCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	seconds := elapsed.Seconds()
	if seconds <= 0 {
		seconds = time.Nanosecond.Seconds()
	}
	rate := float64(p.executionCount) / seconds

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	// TotalAlloc only grows, so the delta is the churn since the last report
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / seconds

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	p.logger.Info("profile",
		zap.Float64("executions_per_sec", rate),
		zap.Float64("heap_mb", allocMB),
		zap.Float64("alloc_rate_mb_per_sec", allocRateMB),
		zap.Uint32("gc_count", gcCount),
		zap.Uint64("gc_last_pause_us", lastPauseUs),
		zap.Uint64("gc_max_pause_us", maxPauseUs),
		zap.Float64("sys_mb", sysMB),
	)

	p.executionCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
