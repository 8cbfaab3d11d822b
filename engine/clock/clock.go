package clock

import (
	"sync"
	"time"
)

// Source exposes the time elapsed during the current frame.
// Blend schedulers and graph runtimes read from a Source instead of a process-wide frame timer,
// so tests can drive virtual time.
type Source interface {
	// DeltaTime returns the seconds elapsed between the previous frame and the current one.
	//
	// Returns:
	//   - float32: the frame delta in seconds, never negative
	DeltaTime() float32
}

// Ticker is a Source the host advances once per frame.
type Ticker interface {
	Source

	// Tick samples the underlying time base and makes the elapsed time since the previous Tick
	// the current frame delta.
	//
	// Returns:
	//   - float32: the new frame delta in seconds
	Tick() float32

	// Now returns the accumulated time in seconds since the ticker was created.
	//
	// Returns:
	//   - float64: seconds since creation
	Now() float64
}

// Manual is a virtual Ticker whose deltas are supplied by the caller.
// It is safe for concurrent readers while a single goroutine advances it.
type Manual struct {
	mu    *sync.RWMutex
	delta float32
	next  float32
	now   float64
}

var _ Ticker = &Manual{}

// NewManual creates a Manual clock with a zero delta.
//
// Returns:
//   - *Manual: the new virtual clock
func NewManual() *Manual {
	return &Manual{mu: &sync.RWMutex{}}
}

// SetStep sets the delta the next calls to Tick will produce.
//
// Parameters:
//   - dt: the per-tick delta in seconds; negative values are treated as 0
func (m *Manual) SetStep(dt float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = max(dt, 0)
}

// Advance makes dt the current frame delta immediately.
//
// Parameters:
//   - dt: the frame delta in seconds; negative values are treated as 0
func (m *Manual) Advance(dt float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delta = max(dt, 0)
	m.now += float64(m.delta)
}

func (m *Manual) Tick() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delta = m.next
	m.now += float64(m.delta)
	return m.delta
}

func (m *Manual) DeltaTime() float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delta
}

func (m *Manual) Now() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Wall is a Ticker backed by the monotonic system clock.
type Wall struct {
	mu    *sync.RWMutex
	start time.Time
	last  time.Time
	delta float32
}

var _ Ticker = &Wall{}

// NewWall creates a Wall clock whose first Tick measures from the moment of creation.
//
// Returns:
//   - *Wall: the new wall clock
func NewWall() *Wall {
	now := time.Now()
	return &Wall{mu: &sync.RWMutex{}, start: now, last: now}
}

func (w *Wall) Tick() float32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.delta = float32(now.Sub(w.last).Seconds())
	w.last = now
	return w.delta
}

func (w *Wall) DeltaTime() float32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.delta
}

func (w *Wall) Now() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last.Sub(w.start).Seconds()
}

// Func adapts a function returning absolute seconds (for example a windowing library's timer)
// into a Ticker.
type Func struct {
	mu    *sync.RWMutex
	now   func() float64
	start float64
	last  float64
	delta float32
}

var _ Ticker = &Func{}

// NewFunc creates a Ticker that samples now on every Tick.
//
// Parameters:
//   - now: returns the current time in seconds from an arbitrary epoch
//
// Returns:
//   - *Func: the new ticker
func NewFunc(now func() float64) *Func {
	t := now()
	return &Func{mu: &sync.RWMutex{}, now: now, start: t, last: t}
}

func (f *Func) Tick() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.now()
	f.delta = float32(max(t-f.last, 0))
	f.last = t
	return f.delta
}

func (f *Func) DeltaTime() float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.delta
}

func (f *Func) Now() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.last - f.start
}
