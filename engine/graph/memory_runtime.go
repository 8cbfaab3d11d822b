package graph

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
)

// memoryOutput is an Output held entirely in memory. base is the weight contributed by the
// runtime itself; weight is what the output composes with during the current frame.
type memoryOutput struct {
	kind   OutputKind
	slot   int
	base   float32
	weight float32
}

func (o *memoryOutput) Kind() OutputKind    { return o.kind }
func (o *memoryOutput) Slot() int           { return o.slot }
func (o *memoryOutput) Weight() float32     { return o.weight }
func (o *memoryOutput) SetWeight(w float32) { o.weight = w }
func (o *memoryOutput) reset()              { o.weight = o.base }

// memoryGraph is the Graph implementation used by the memory runtime.
type memoryGraph struct {
	seq    Sequence
	state  PlayState
	time   float32
	target Target

	outputs    []Output
	processors []Processor

	built, valid, destroyed bool
}

var _ Graph = &memoryGraph{}

func (g *memoryGraph) Sequence() Sequence { return g.seq }

func (g *memoryGraph) Play() {
	if g.destroyed {
		return
	}
	g.state = Playing
}

func (g *memoryGraph) Pause() {
	if g.destroyed || g.state == Stopped {
		return
	}
	g.state = Paused
}

func (g *memoryGraph) Stop() {
	if g.state == Stopped {
		return
	}
	g.state = Stopped
	for _, p := range slices.Clone(g.processors) {
		p.Stopped()
	}
}

func (g *memoryGraph) State() PlayState { return g.state }

func (g *memoryGraph) Time() float32 { return g.time }

func (g *memoryGraph) SetTime(t float32) {
	g.time = min(max(t, 0), g.Duration())
}

func (g *memoryGraph) Duration() float32 { return g.seq.Duration() }

func (g *memoryGraph) Outputs() []Output { return g.outputs }

func (g *memoryGraph) Bind(target Target) { g.target = target }

func (g *memoryGraph) Target() Target { return g.target }

func (g *memoryGraph) Rebuild() {
	if g.destroyed {
		return
	}
	tracks := g.seq.Tracks()
	g.outputs = make([]Output, len(tracks))
	for i, kind := range tracks {
		g.outputs[i] = &memoryOutput{kind: kind, slot: i, base: 1, weight: 1}
	}
	g.built = true
}

func (g *memoryGraph) Built() bool { return g.built }

func (g *memoryGraph) Valid() bool { return g.valid }

func (g *memoryGraph) AddProcessor(p Processor) {
	if p == nil || slices.Contains(g.processors, p) {
		return
	}
	g.processors = append(g.processors, p)
}

func (g *memoryGraph) RemoveProcessor(p Processor) {
	if i := slices.Index(g.processors, p); i >= 0 {
		g.processors = slices.Delete(g.processors, i, i+1)
	}
}

func (g *memoryGraph) Destroyed() bool { return g.destroyed }

// advance moves the playback head by dt and applies the wrap mode.
func (g *memoryGraph) advance(dt float32) {
	if g.state != Playing {
		return
	}
	g.time += dt
	dur := g.Duration()
	if g.time < dur {
		return
	}
	switch g.seq.Wrap() {
	case WrapLoop:
		if dur > 0 {
			g.time = float32(math.Mod(float64(g.time), float64(dur)))
		} else {
			g.time = 0
		}
	case WrapNone:
		g.time = dur
		g.Stop()
	default:
		g.time = dur
	}
}

// evaluate produces one frame of output and hands it to the processors.
func (g *memoryGraph) evaluate() {
	if g.state == Stopped {
		return
	}
	if !g.built {
		g.Rebuild()
	}
	for _, o := range g.outputs {
		o.(*memoryOutput).reset()
	}
	g.valid = true
	for _, p := range slices.Clone(g.processors) {
		p.ProcessFrame(g.outputs)
	}
}

func (g *memoryGraph) destroy() {
	if g.destroyed {
		return
	}
	g.Stop()
	g.processors = nil
	g.outputs = nil
	g.valid = false
	g.destroyed = true
}

// memoryRuntime is a Runtime that evaluates graphs without producing any pose data.
// It is owned by a single rig and is not safe for concurrent use.
type memoryRuntime struct {
	logger  *slog.Logger
	graphs  []*memoryGraph
	pending []*memoryGraph
	frames  uint64
}

var _ Runtime = &memoryRuntime{}

// NewMemoryRuntime creates a Runtime that keeps all graph state in memory.
//
// Parameters:
//   - options: functional options to configure the runtime
//
// Returns:
//   - Runtime: the new runtime
func NewMemoryRuntime(options ...RuntimeBuilderOption) Runtime {
	r := &memoryRuntime{logger: slog.Default()}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *memoryRuntime) Instantiate(seq Sequence) (Graph, error) {
	if !Valid(seq) {
		return nil, ErrNilSequence
	}
	if seq.Duration() < 0 {
		return nil, fmt.Errorf("instantiating %q: negative duration %v", seq.ID(), seq.Duration())
	}
	g := &memoryGraph{seq: seq}
	r.graphs = append(r.graphs, g)
	r.logger.Debug("graph instantiated", "sequence", seq.ID())
	return g, nil
}

func (r *memoryRuntime) Destroy(g Graph, immediate bool) {
	mg, ok := g.(*memoryGraph)
	if !ok || mg == nil || mg.destroyed {
		return
	}
	if immediate {
		r.release(mg)
		return
	}
	if !slices.Contains(r.pending, mg) {
		r.pending = append(r.pending, mg)
	}
}

func (r *memoryRuntime) Evaluate(deltaTime float32) {
	dt := max(deltaTime, 0)
	for _, g := range slices.Clone(r.graphs) {
		if g.destroyed {
			continue
		}
		g.advance(dt)
		g.evaluate()
	}
	r.frames++

	pending := r.pending
	r.pending = nil
	for _, g := range pending {
		r.release(g)
	}
}

func (r *memoryRuntime) Live() int {
	return len(r.graphs)
}

// release destroys g and drops it from the live set.
func (r *memoryRuntime) release(g *memoryGraph) {
	if g.destroyed {
		return
	}
	g.destroy()
	if i := slices.Index(r.graphs, g); i >= 0 {
		r.graphs = slices.Delete(r.graphs, i, i+1)
	}
	if i := slices.Index(r.pending, g); i >= 0 {
		r.pending = slices.Delete(r.pending, i, i+1)
	}
	r.logger.Debug("graph destroyed", "sequence", g.seq.ID(), "frame", r.frames)
}
