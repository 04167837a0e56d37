// Package profiler reports frame rate, memory and per-pass timings.
package profiler

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/loov/hrtime"
	"go.uber.org/zap"
)

// PassStats is the timing of one render pass over the last reporting interval.
type PassStats struct {
	Name  string
	Count int
	Total time.Duration
	Max   time.Duration
}

// Mean returns the average duration of the pass.
func (s PassStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Report is what the profiler logs at the end of each interval.
type Report struct {
	FPS         float64
	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	Passes      []PassStats
}

// Profiler tracks frame rate, memory statistics and pass durations for performance monitoring.
// Outputs stats to the log at a configurable interval. It implements pass.Timer.
type Profiler struct {
	mu *sync.Mutex

	frameCount     int
	lastTime       time.Duration
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	passes map[string]*PassStats
	last   Report
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		mu:             &sync.Mutex{},
		lastTime:       hrtime.Now(),
		updateInterval: time.Second,
		passes:         make(map[string]*PassStats),
	}
}

// SetInterval changes how often statistics are reported. Values <= 0 are ignored.
func (p *Profiler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateInterval = d
}

// RecordPass accumulates the duration of a render pass.
//
// Parameters:
//   - name: the pass name
//   - d: how long the pass took
func (p *Profiler) RecordPass(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.passes[name]
	if !ok {
		s = &PassStats{Name: name}
		p.passes[name] = s
	}
	s.Count++
	s.Total += d
	s.Max = max(s.Max, d)
}

// Last returns the most recent report.
func (p *Profiler) Last() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory and
// the mean and max duration of every pass.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	now := hrtime.Now()
	elapsed := now - p.lastTime
	if elapsed < p.updateInterval {
		return false
	}

	r := Report{FPS: float64(p.frameCount) / elapsed.Seconds()}

	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap, TotalAlloc only grows and tracks churn, Sys is the process footprint.
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	r.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	r.GCCount = p.memStats.NumGC
	if r.GCCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		r.LastPauseUs = p.memStats.PauseNs[(r.GCCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if r.GCCount-startIdx > 256 {
			startIdx = r.GCCount - 256
		}
		for i := startIdx; i < r.GCCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	for _, s := range p.passes {
		r.Passes = append(r.Passes, *s)
	}
	sort.Slice(r.Passes, func(i, j int) bool { return r.Passes[i].Name < r.Passes[j].Name })

	fields := []zap.Field{
		zap.Float64("fps", r.FPS),
		zap.Float64("heapMB", r.HeapMB),
		zap.Float64("allocRateMBs", r.AllocRateMB),
		zap.Uint32("gc", r.GCCount),
		zap.Uint64("lastPauseUs", r.LastPauseUs),
		zap.Uint64("maxPauseUs", r.MaxPauseUs),
		zap.Float64("sysMB", r.SysMB),
	}
	for _, s := range r.Passes {
		fields = append(fields,
			zap.Duration(s.Name+".mean", s.Mean()),
			zap.Duration(s.Name+".max", s.Max),
		)
	}
	logger.Named("profiler").Info("frame stats", fields...)

	p.last = r
	p.frameCount = 0
	p.lastTime = now
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	clear(p.passes)
	return true
}
