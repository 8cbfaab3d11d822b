package layer

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Carmen-Shannon/oxy-blend/engine/blend"
	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
)

var (
	// ErrDuplicateSequence is returned when a layer is added for a sequence that already has one.
	ErrDuplicateSequence = errors.New("layer: sequence already has an active layer")

	// ErrNilLayer is returned when Add is called with a nil layer.
	ErrNilLayer = errors.New("layer: layer is nil")
)

// registry is the implementation of the Registry interface.
type registry struct {
	logger *slog.Logger

	scheduler blend.Scheduler
	runtime   graph.Runtime

	layers []*Layer
}

// Registry tracks the active overlay layers of one controller, keyed by sequence identity.
//
// Teardown stops the layer's graph, cancels any blend on its channel, releases the channel and
// destroys the graph through the runtime. Tearing down a layer that was already removed is a no-op.
// The registry is single-threaded, like the scheduler it shares.
type Registry interface {
	// Find returns the layer playing seq.
	//
	// Parameters:
	//   - seq: the sequence to look up
	//
	// Returns:
	//   - *Layer: the layer, or nil
	//   - bool: true if a layer exists for seq
	Find(seq graph.Sequence) (*Layer, bool)

	// Add registers l.
	//
	// Parameters:
	//   - l: the layer to add
	//
	// Returns:
	//   - error: ErrDuplicateSequence if a layer for the same sequence exists, ErrNilLayer if l is nil
	Add(l *Layer) error

	// Remove tears l down and drops it from the active set. With immediate set the graph is destroyed
	// synchronously, otherwise at the end of the runtime's next frame.
	//
	// Parameters:
	//   - l: the layer to remove
	//   - immediate: destroy the graph synchronously
	//
	// Returns:
	//   - bool: true if the layer was active and has been removed
	Remove(l *Layer, immediate bool) bool

	// Clear removes every layer.
	//
	// Parameters:
	//   - immediate: destroy the graphs synchronously
	Clear(immediate bool)

	// Layers returns a snapshot of the active layers in insertion order.
	//
	// Returns:
	//   - []*Layer: the active layers
	Layers() []*Layer

	// Len returns the number of active layers.
	//
	// Returns:
	//   - int: the active layer count
	Len() int
}

var _ Registry = &registry{}

// NewRegistry creates an empty Registry that cancels blends on s and destroys graphs through rt.
// Panics if either collaborator is nil.
//
// Parameters:
//   - s: the scheduler driving the layers' channels
//   - rt: the runtime owning the layers' graphs
//   - logger: the logger for lifecycle messages; nil uses slog.Default()
//
// Returns:
//   - Registry: the new registry
func NewRegistry(s blend.Scheduler, rt graph.Runtime, logger *slog.Logger) Registry {
	if s == nil || rt == nil {
		panic("layer: NewRegistry requires a non-nil scheduler and runtime")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &registry{logger: logger, scheduler: s, runtime: rt}
}

func (r *registry) Find(seq graph.Sequence) (*Layer, bool) {
	if !graph.Valid(seq) {
		return nil, false
	}
	id := seq.ID()
	for _, l := range r.layers {
		if l.Sequence().ID() == id {
			return l, true
		}
	}
	return nil, false
}

func (r *registry) Add(l *Layer) error {
	if l == nil {
		return ErrNilLayer
	}
	if _, ok := r.Find(l.Sequence()); ok {
		return fmt.Errorf("adding %q: %w", l.Sequence().ID(), ErrDuplicateSequence)
	}
	r.layers = append(r.layers, l)
	return nil
}

func (r *registry) Remove(l *Layer, immediate bool) bool {
	if l == nil || l.removed {
		return false
	}
	i := slices.Index(r.layers, l)
	if i < 0 {
		return false
	}
	r.layers = slices.Delete(r.layers, i, i+1)
	r.teardown(l, immediate)
	return true
}

func (r *registry) Clear(immediate bool) {
	layers := r.layers
	r.layers = nil
	for _, l := range layers {
		r.teardown(l, immediate)
	}
}

func (r *registry) Layers() []*Layer {
	return slices.Clone(r.layers)
}

func (r *registry) Len() int {
	return len(r.layers)
}

// teardown releases everything the layer owns exactly once.
func (r *registry) teardown(l *Layer, immediate bool) {
	if l.removed {
		return
	}
	l.removed = true

	l.graph.Stop()
	r.scheduler.Cancel(l.channel)
	l.channel.Release()
	r.runtime.Destroy(l.graph, immediate)

	r.logger.Debug("layer removed",
		"sequence", l.Sequence().ID(),
		"layer", l.id.String(),
		"immediate", immediate,
	)
}
