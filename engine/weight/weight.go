package weight

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-blend/common"
	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
)

// channel is the implementation of the Channel interface.
type channel struct {
	mu *sync.RWMutex

	g       graph.Graph
	desired float32
	bound   bool

	released bool
}

// Channel drives the aggregate animation weight of one graph.
//
// The channel stores a desired weight and forwards it to every animation output of its graph on each
// evaluated frame, multiplied with the weight the runtime already assigned to that output. Binding is
// lazy: the channel attaches on the first frame its graph evaluates and detaches when the graph stops.
// While detached, Weight reads 0 and SetWeight only updates the desired value.
type Channel interface {
	graph.Processor

	// SetWeight stores the desired weight. It takes effect on the graph's next evaluated frame.
	//
	// Parameters:
	//   - w: the desired weight, clamped to [0, 1]
	SetWeight(w float32)

	// Weight returns the weight currently applied to the graph, or 0 while the channel is not bound.
	//
	// Returns:
	//   - float32: the applied weight
	Weight() float32

	// Desired returns the stored desired weight regardless of binding.
	//
	// Returns:
	//   - float32: the desired weight
	Desired() float32

	// Bound reports whether the graph has produced output since it last started playing.
	//
	// Returns:
	//   - bool: true if bound
	Bound() bool

	// Graph returns the graph this channel drives.
	//
	// Returns:
	//   - graph.Graph: the bound graph
	Graph() graph.Graph

	// Release unregisters the channel from its graph. Subsequent frames are not observed and
	// Weight reads 0. Releasing twice is a no-op.
	Release()
}

var _ Channel = &channel{}

// NewChannel creates a Channel for g with the given desired weight and registers it with the graph.
// Panics if g is nil.
//
// Parameters:
//   - g: the graph whose animation outputs the channel drives
//   - initial: the initial desired weight, clamped to [0, 1]
//
// Returns:
//   - Channel: the new channel
func NewChannel(g graph.Graph, initial float32) Channel {
	if g == nil {
		panic("weight: NewChannel requires a non-nil graph")
	}
	c := &channel{
		mu:      &sync.RWMutex{},
		g:       g,
		desired: common.Clamp01(initial),
	}
	g.AddProcessor(c)
	return c
}

func (c *channel) SetWeight(w float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.desired = common.Clamp01(w)
}

func (c *channel) Weight() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.bound {
		return 0
	}
	return c.desired
}

func (c *channel) Desired() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.desired
}

func (c *channel) Bound() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bound
}

func (c *channel) Graph() graph.Graph {
	return c.g
}

// ProcessFrame binds the channel and scales every animation output by the desired weight.
func (c *channel) ProcessFrame(outputs []graph.Output) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	c.bound = true
	for _, out := range outputs {
		switch out.Kind() {
		case graph.OutputAnimation:
			out.SetWeight(out.Weight() * c.desired)
		case graph.OutputAudio, graph.OutputSignal:
			// not weighted
		}
	}
}

// Stopped detaches the channel until the graph produces output again.
func (c *channel) Stopped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bound = false
}

func (c *channel) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.bound = false
	c.mu.Unlock()

	c.g.RemoveProcessor(c)
}
