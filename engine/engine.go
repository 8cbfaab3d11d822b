package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-blend/engine/clock"
	"github.com/Carmen-Shannon/oxy-blend/engine/profiler"
	"github.com/Carmen-Shannon/oxy-blend/engine/rig"
	"github.com/Carmen-Shannon/oxy-blend/engine/window"
)

// ErrDuplicateRig is returned when a rig is added under a name that is already registered.
var ErrDuplicateRig = errors.New("engine: rig name already registered")

// engine implements the Engine interface.
// Coordinates the frame loop, the rig worker pool and the optional window thread.
type engine struct {
	mu *sync.RWMutex

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	logger *slog.Logger
	window window.Window
	clock  clock.Ticker

	workers      int
	pool         worker.DynamicWorkerPool
	lastDispatch time.Time

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)

	rigs   map[string]rig.Rig
	frames uint64
}

// Engine is the main entry point for the engine.
// It owns the frame clock and ticks every registered rig once per frame.
type Engine interface {
	// Window returns the underlying window, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Clock returns the frame clock. Rigs created for this engine must read deltas from it.
	//
	// Returns:
	//   - clock.Ticker: the frame clock
	Clock() clock.Ticker

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called after the rigs have ticked each frame.
	//
	// Parameters:
	//   - callback: function receiving the frame delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// AddRig registers r under its name.
	//
	// Parameters:
	//   - r: the rig to register
	//
	// Returns:
	//   - error: ErrDuplicateRig if the name is taken
	AddRig(r rig.Rig) error

	// RemoveRig unregisters and closes the rig with the given name.
	//
	// Parameters:
	//   - name: the rig name
	//
	// Returns:
	//   - bool: true if a rig was removed
	RemoveRig(name string) bool

	// Rig retrieves a registered rig. Returns nil if not found.
	//
	// Parameters:
	//   - name: the rig name
	//
	// Returns:
	//   - rig.Rig: the rig, or nil
	Rig(name string) rig.Rig

	// Rigs returns a copy of all registered rigs keyed by name.
	//
	// Returns:
	//   - map[string]rig.Rig: a copy of the rigs map
	Rigs() map[string]rig.Rig

	// Step runs one frame synchronously: it advances the clock, ticks every rig and then calls
	// the tick callback. Hosts that drive their own loop call Step instead of Run.
	//
	// Returns:
	//   - float32: the frame delta in seconds
	Step() float32

	// Frames returns the number of frames stepped so far.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64

	// Run starts the frame loop and blocks until Quit is called or the window closes.
	Run()

	// Quit signals the frame loop to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Close stops the loop, closes every rig and releases the worker pool and window.
	// Call it from the goroutine that created the window.
	Close()
}

// NewEngine creates a new Engine instance with the provided options.
// The frame clock defaults to the wall clock; rigs are ticked on a worker pool sized by WithWorkers.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:               &sync.RWMutex{},
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		logger:           slog.Default(),
		rigs:             make(map[string]rig.Rig),
		workers:          1,
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.clock == nil {
		e.clock = clock.NewWall()
	}
	e.pool = newRigPool(e.workers)
	e.profiler = profiler.NewProfiler(e.logger)

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Clock() clock.Ticker {
	return e.clock
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.handleEngine()

	if e.window != nil {
		// the window must be pumped from the thread that created it
		e.window.ProcessMessages()
		e.Quit()
	}
	e.wg.Wait()

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
		if e.window != nil {
			e.window.RequestClose()
		}
	})
}

func (e *engine) Close() {
	e.Quit()
	e.wg.Wait()

	e.mu.Lock()
	rigs := e.rigs
	e.rigs = make(map[string]rig.Rig)
	e.mu.Unlock()

	for _, r := range rigs {
		r.Close()
	}
	e.pool.Stop()
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			e.logger.Warn("closing window", "error", err)
		}
	}
	e.logger.Info("engine closed", "frames", e.Frames())
}

// handleEngine runs the fixed-rate frame loop in its own goroutine.
// Steps a frame at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine goroutine recovered from panic", "panic", fmt.Sprint(r))
			e.Quit()
		}
	}()

	e.mu.RLock()
	rate := e.engineTickRate
	e.mu.RUnlock()

	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	// the first Step measures from loop start, not from construction
	e.clock.Tick()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			e.Step()
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.mu.Lock()
			e.engineTickRate = newRate
			e.mu.Unlock()
		}
	}
}

func (e *engine) Step() float32 {
	dt := e.clock.Tick()

	e.mu.RLock()
	rigs := slices.Collect(maps.Values(e.rigs))
	callback := e.tickCallback
	profiling := e.profilingEnabled
	e.mu.RUnlock()

	e.tickRigs(rigs)

	if callback != nil {
		callback(dt)
	}

	e.mu.Lock()
	e.frames++
	e.mu.Unlock()

	if profiling {
		e.profiler.Tick(func() []rig.Stats {
			stats := make([]rig.Stats, len(rigs))
			for i, r := range rigs {
				stats[i] = r.Stats()
			}
			return stats
		})
	}
	return dt
}

// tickRigs ticks every rig once. With more than one rig and more than one worker the rigs are
// submitted to the worker pool, and a WaitGroup provides the per-frame barrier.
func (e *engine) tickRigs(rigs []rig.Rig) {
	if len(rigs) <= 1 || e.workers <= 1 {
		for _, r := range rigs {
			r.Tick()
		}
		return
	}

	// Idle workers exit on their own and the pool only respawns them under a full queue,
	// so a pool left unused for too long is replaced before dispatch.
	if !e.lastDispatch.IsZero() && time.Since(e.lastDispatch) > poolIdleTimeout/2 {
		e.pool.Stop()
		e.pool = newRigPool(e.workers)
	}
	e.lastDispatch = time.Now()

	var wg sync.WaitGroup
	for id, r := range rigs {
		wg.Add(1)
		rCap := r
		e.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				rCap.Tick()
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.mu.Lock()
	e.profilingEnabled = true
	e.mu.Unlock()
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.mu.Lock()
	e.profilingEnabled = false
	e.mu.Unlock()
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	newRate := tickInterval(fps)

	e.mu.Lock()
	running := e.running
	if !running {
		e.engineTickRate = newRate
	}
	e.mu.Unlock()
	if !running {
		return
	}

	// Non-blocking send - if channel is full, replace the pending value
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	e.tickCallback = callback
	e.mu.Unlock()
}

func (e *engine) AddRig(r rig.Rig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rigs[r.Name()]; ok {
		return fmt.Errorf("adding %q: %w", r.Name(), ErrDuplicateRig)
	}
	e.rigs[r.Name()] = r
	return nil
}

func (e *engine) RemoveRig(name string) bool {
	e.mu.Lock()
	r, ok := e.rigs[name]
	delete(e.rigs, name)
	e.mu.Unlock()
	if ok {
		r.Close()
	}
	return ok
}

func (e *engine) Rig(name string) rig.Rig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rigs[name]
}

func (e *engine) Rigs() map[string]rig.Rig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.rigs)
}

func (e *engine) Frames() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.frames
}

// poolIdleTimeout is how long a rig worker may wait for a task before exiting.
const poolIdleTimeout = 30 * time.Second

// newRigPool sizes the task queue at 256 to accommodate typical rig counts with headroom.
func newRigPool(workers int) worker.DynamicWorkerPool {
	return worker.NewDynamicWorkerPool(workers, 256, poolIdleTimeout)
}

// tickInterval converts a tick rate to a ticker period, treating rates <= 0 as 60Hz.
func tickInterval(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}
