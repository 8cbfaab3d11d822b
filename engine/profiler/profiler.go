package profiler

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-blend/engine/rig"
)

// Profiler tracks frame rate, memory and blend statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	logger         *slog.Logger
	now            func() time.Time
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Report
}

// Report is the aggregate of one profiling interval.
type Report struct {
	FPS           float64
	HeapMB        float64
	AllocRateMB   float64
	GCCount       uint32
	Rigs          int
	Layers        int
	PendingBlends int
	LiveGraphs    int
	Played        uint64
	Rejected      uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - logger: destination for the stats line; nil uses slog.Default()
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{
		logger:         logger,
		now:            time.Now,
		lastTime:       time.Now(),
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
	}
}

// SetInterval changes how often stats are logged. Values <= 0 are ignored.
func (p *Profiler) SetInterval(d time.Duration) {
	if d > 0 {
		p.updateInterval = d
	}
}

// Last returns the most recently logged report.
func (p *Profiler) Last() Report {
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed. The collect function is only
// invoked on those frames, so rig stats are not gathered every frame.
//
// Parameters:
//   - collect: returns the current stats of every rig; may be nil
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(collect func() []rig.Stats) bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	report := Report{FPS: float64(p.frameCount) / elapsed.Seconds()}

	runtime.ReadMemStats(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// TotalAlloc: Cumulative bytes allocated for heap objects (tracks churn)
	report.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	report.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	report.GCCount = gcCount
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	if collect != nil {
		for _, s := range collect() {
			report.Rigs++
			report.Layers += s.Layers
			report.PendingBlends += s.PendingBlends
			report.LiveGraphs += s.LiveGraphs
			report.Played += s.Played
			report.Rejected += s.Rejected
		}
	}

	p.logger.Info("profiler",
		"fps", report.FPS,
		"heap_mb", report.HeapMB,
		"alloc_rate_mb", report.AllocRateMB,
		"gc", gcCount,
		"gc_last_us", lastPauseUs,
		"gc_max_us", maxPauseUs,
		"rigs", report.Rigs,
		"layers", report.Layers,
		"pending_blends", report.PendingBlends,
		"live_graphs", report.LiveGraphs,
		"played", report.Played,
		"rejected", report.Rejected,
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.last = report
	return true
}
