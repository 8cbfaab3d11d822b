package rig

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-blend/engine/blend"
	"github.com/Carmen-Shannon/oxy-blend/engine/clock"
	"github.com/Carmen-Shannon/oxy-blend/engine/crossfade"
	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
	"github.com/Carmen-Shannon/oxy-blend/engine/trigger"
	"github.com/Carmen-Shannon/oxy-blend/engine/weight"
)

// ErrClosed is returned by operations on a rig after Close.
var ErrClosed = errors.New("rig: closed")

// Stats is a snapshot of one rig taken between frames.
type Stats struct {
	Rig           string
	Layers        int
	PendingBlends int
	LiveGraphs    int
	BaseWeight    float32
	BaseState     crossfade.BaseState
	Played        uint64
	Rejected      uint64
}

// rig is the implementation of the Rig interface.
type rig struct {
	mu *sync.Mutex

	name   string
	logger *slog.Logger

	src       clock.Source
	runtime   graph.Runtime
	scheduler blend.Scheduler
	control   crossfade.Controller
	base      graph.Graph

	catalog  map[string]graph.Sequence
	triggers trigger.Queue

	controllerOptions []crossfade.ControllerBuilderOption

	played, rejected uint64
	closed           bool
}

// Rig composes everything that animates one character: a graph runtime, a base layer graph,
// a blend scheduler, a cross-fade controller, the catalog of playable sequences and the
// trigger queue that feeds it.
//
// Each frame Tick drains pending triggers, steps the blend scheduler, runs the controller's
// base layer check and evaluates the runtime, in that order. Rig methods may be called from
// any goroutine; a rig never ticks concurrently with itself.
type Rig interface {
	// Name returns the rig name, which is also the name of its animated target.
	//
	// Returns:
	//   - string: the rig name
	Name() string

	// Controller returns the cross-fade controller of the rig.
	// The controller must only be used from within the frame (see Do).
	//
	// Returns:
	//   - crossfade.Controller: the controller
	Controller() crossfade.Controller

	// Runtime returns the graph runtime owned by the rig.
	//
	// Returns:
	//   - graph.Runtime: the runtime
	Runtime() graph.Runtime

	// Play resolves t against the catalog and plays it.
	// Unknown sequence ids are logged and ignored.
	//
	// Parameters:
	//   - t: the trigger to play
	//
	// Returns:
	//   - bool: true if the sequence was found and played
	Play(t trigger.Trigger) bool

	// Do runs fn with the controller while holding the rig lock.
	//
	// Parameters:
	//   - fn: the function to run
	//
	// Returns:
	//   - error: ErrClosed if the rig has been closed
	Do(fn func(c crossfade.Controller)) error

	// Tick runs one frame using the clock source's current delta.
	Tick()

	// Stats returns a snapshot of the rig.
	//
	// Returns:
	//   - Stats: the snapshot
	Stats() Stats

	// Close stops every layer and destroys the base graph. Closing twice is a no-op.
	Close()
}

var _ Rig = &rig{}

// NewRig creates a Rig named name that plays base as its base layer and reads frame deltas
// from src. The base graph is primed with one zero-length frame so it holds full weight
// before the first trigger arrives. Panics if src is nil.
//
// Parameters:
//   - name: the rig and target name
//   - base: the base (locomotion) sequence, normally looping
//   - src: the frame clock shared with the host loop
//   - options: functional options to configure the rig
//
// Returns:
//   - Rig: the new rig
//   - error: error if the base sequence cannot be instantiated
func NewRig(name string, base graph.Sequence, src clock.Source, options ...RigBuilderOption) (Rig, error) {
	if src == nil {
		panic("rig: NewRig requires a non-nil clock source")
	}

	r := &rig{
		mu:      &sync.Mutex{},
		name:    name,
		logger:  slog.Default(),
		src:     src,
		catalog: make(map[string]graph.Sequence),
	}
	for _, opt := range options {
		opt(r)
	}
	r.logger = r.logger.With("rig", name)
	if r.runtime == nil {
		r.runtime = graph.NewMemoryRuntime(graph.WithLogger(r.logger))
	}

	g, err := r.runtime.Instantiate(base)
	if err != nil {
		return nil, fmt.Errorf("rig %q: instantiating base sequence: %w", name, err)
	}
	target := graph.NewTarget(name)
	g.Bind(target)
	g.Rebuild()
	baseChannel := weight.NewChannel(g, 1)
	g.Play()
	r.runtime.Evaluate(0)
	r.base = g

	r.scheduler = blend.NewScheduler(src)
	opts := append([]crossfade.ControllerBuilderOption{crossfade.WithLogger(r.logger)}, r.controllerOptions...)
	r.control = crossfade.NewController(r.scheduler, r.runtime, baseChannel, target, opts...)

	r.logger.Info("rig ready", "base", base.ID(), "sequences", len(r.catalog))
	return r, nil
}

func (r *rig) Name() string { return r.name }

func (r *rig) Controller() crossfade.Controller { return r.control }

func (r *rig) Runtime() graph.Runtime { return r.runtime }

func (r *rig) Play(t trigger.Trigger) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	return r.play(t)
}

func (r *rig) play(t trigger.Trigger) bool {
	seq, ok := r.catalog[t.Sequence]
	if !ok {
		r.rejected++
		r.logger.Warn("trigger ignored: unknown sequence", "sequence", t.Sequence, "source", t.Source)
		return false
	}
	r.played++
	r.control.Play(seq, t.MaxWeight, t.FadeIn, t.FadeOut)
	return true
}

func (r *rig) Do(fn func(c crossfade.Controller)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	fn(r.control)
	return nil
}

func (r *rig) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	if r.triggers != nil {
		for _, t := range r.triggers.Drain() {
			r.play(t)
		}
	}
	r.scheduler.Step()
	r.control.Update()
	r.runtime.Evaluate(r.src.DeltaTime())
}

func (r *rig) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Rig:           r.name,
		Layers:        r.control.LayerCount(),
		PendingBlends: r.scheduler.Pending(),
		LiveGraphs:    r.runtime.Live(),
		BaseWeight:    r.control.BaseWeight(),
		BaseState:     r.control.BaseState(),
		Played:        r.played,
		Rejected:      r.rejected,
	}
}

func (r *rig) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.control.Shutdown()
	r.runtime.Destroy(r.base, true)
	r.logger.Info("rig closed", "played", r.played, "rejected", r.rejected)
}
