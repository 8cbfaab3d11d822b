package layer

import (
	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
	"github.com/Carmen-Shannon/oxy-blend/engine/weight"
	"github.com/google/uuid"
)

// Layer pairs one playing overlay sequence with the channel that weights it.
// A Layer is owned by the Registry it was added to.
type Layer struct {
	id      uuid.UUID
	graph   graph.Graph
	channel weight.Channel
	fadeOut float32

	removed bool
}

// New creates a Layer for g driven by ch.
//
// Parameters:
//   - g: the graph instantiated for the overlay sequence
//   - ch: the weight channel bound to g
//   - fadeOut: the fade-out duration in seconds used when the layer is retired; negative values become 0
//
// Returns:
//   - *Layer: the new layer
func New(g graph.Graph, ch weight.Channel, fadeOut float32) *Layer {
	return &Layer{
		id:      uuid.New(),
		graph:   g,
		channel: ch,
		fadeOut: max(fadeOut, 0),
	}
}

// ID returns the instance id of the layer, unique across restarts of the same sequence.
func (l *Layer) ID() uuid.UUID { return l.id }

// Sequence returns the asset the layer plays.
func (l *Layer) Sequence() graph.Sequence { return l.graph.Sequence() }

// Graph returns the backing graph.
func (l *Layer) Graph() graph.Graph { return l.graph }

// Channel returns the weight channel of the layer.
func (l *Layer) Channel() weight.Channel { return l.channel }

// FadeOut returns the configured fade-out duration in seconds.
func (l *Layer) FadeOut() float32 { return l.fadeOut }

// SetFadeOut replaces the fade-out duration. Negative values become 0.
func (l *Layer) SetFadeOut(d float32) { l.fadeOut = max(d, 0) }

// Weight returns the weight currently applied to the layer.
func (l *Layer) Weight() float32 { return l.channel.Weight() }

// Removed reports whether the layer has been torn down.
func (l *Layer) Removed() bool { return l.removed }

// EnteringFadeOut reports whether the layer is inside its own fade-out window: its sequence has
// finished, or the time left is no longer than its fade-out duration.
//
// Returns:
//   - bool: true if the layer should no longer count as an active contributor
func (l *Layer) EnteringFadeOut() bool {
	elapsed, duration := l.graph.Time(), l.graph.Duration()
	return elapsed >= duration || duration-elapsed <= l.fadeOut
}

// Contributing reports whether the layer is playing and not yet inside its fade-out window.
//
// Returns:
//   - bool: true if the layer counts toward the overlay weight
func (l *Layer) Contributing() bool {
	return l.graph.State() == graph.Playing && !l.EnteringFadeOut()
}
