package crossfade

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-blend/common"
	"github.com/Carmen-Shannon/oxy-blend/engine/blend"
	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
	"github.com/Carmen-Shannon/oxy-blend/engine/layer"
	"github.com/Carmen-Shannon/oxy-blend/engine/weight"
)

// UseDefault selects the configured default for a fade duration passed to Play.
// Any negative duration has the same effect.
const UseDefault float32 = -1

// BaseState is the lifecycle state of the base (locomotion) layer.
type BaseState int

const (
	// BaseFull means the base layer holds full weight.
	BaseFull BaseState = iota

	// BaseYielding means overlays have been started and the base layer has given up weight.
	BaseYielding

	// BaseReclaiming means the base layer is ramping back to full weight.
	BaseReclaiming
)

func (s BaseState) String() string {
	switch s {
	case BaseYielding:
		return "yielding"
	case BaseReclaiming:
		return "reclaiming"
	default:
		return "full"
	}
}

// Settings holds the tunables of a Controller.
type Settings struct {
	// DefaultFadeIn is used when Play receives a negative fade-in, in seconds.
	DefaultFadeIn float32
	// DefaultFadeOut is used when Play receives a negative fade-out, in seconds. It also caps the
	// duration of the base layer's reclaim.
	DefaultFadeOut float32
	// ReclaimThreshold is the overlay weight at or below which the base layer reclaims full weight.
	// The base layer is only checked once it has yielded more than this amount.
	ReclaimThreshold float32
}

// DefaultSettings returns the Settings used when no options are supplied.
//
// Returns:
//   - Settings: 0.3s fades and a 0.1 reclaim threshold
func DefaultSettings() Settings {
	return Settings{
		DefaultFadeIn:    0.3,
		DefaultFadeOut:   0.3,
		ReclaimThreshold: 0.1,
	}
}

// controller is the implementation of the Controller interface.
type controller struct {
	logger *slog.Logger

	scheduler blend.Scheduler
	runtime   graph.Runtime
	target    graph.Target
	registry  layer.Registry

	base      weight.Channel
	baseState BaseState

	settings Settings
}

// Controller layers overlay sequences on top of a persistent base layer and cross-fades between them.
//
// Play starts (or restarts) an overlay and fades out every other overlay. Update, called once per frame
// after the scheduler has stepped, watches the overlay weight and hands full weight back to the base
// layer when overlays stop contributing. Layers that finish fading out are torn down automatically.
//
// The controller is single-threaded: all calls must come from the goroutine that steps its scheduler.
// Calls after Shutdown are not supported.
type Controller interface {
	// Play starts seq as an overlay layer, or restarts it in place if it is already active.
	// A nil or unnamed sequence is logged and ignored.
	//
	// Parameters:
	//   - seq: the sequence to play
	//   - maxWeight: the weight the overlay ramps to, clamped to [0, 1]; the base layer ramps to 1 - maxWeight
	//   - fadeIn: the overlay ramp-up duration in seconds, or UseDefault
	//   - fadeOut: the duration used when this overlay is later faded out, or UseDefault
	Play(seq graph.Sequence, maxWeight, fadeIn, fadeOut float32)

	// PlayDefault plays seq at full weight with the default fades.
	//
	// Parameters:
	//   - seq: the sequence to play
	PlayDefault(seq graph.Sequence)

	// FadeOut ramps the layer playing seq to zero and tears it down when the ramp completes.
	//
	// Parameters:
	//   - seq: the sequence to fade out
	//   - duration: the ramp length in seconds, or UseDefault for the layer's own fade-out
	//
	// Returns:
	//   - bool: true if a layer for seq was active
	FadeOut(seq graph.Sequence, duration float32) bool

	// Update runs the per-frame base layer check. It does nothing while the base layer holds (nearly)
	// full weight or is already reclaiming.
	Update()

	// StopAllTimelines tears every overlay down synchronously and forces the base layer to full weight.
	StopAllTimelines()

	// Shutdown stops every overlay like StopAllTimelines and detaches the base layer channel.
	Shutdown()

	// BaseWeight returns the weight applied to the base layer.
	//
	// Returns:
	//   - float32: the base layer weight, 0 until the base graph has produced a frame
	BaseWeight() float32

	// BaseState returns the lifecycle state of the base layer.
	//
	// Returns:
	//   - BaseState: the current state
	BaseState() BaseState

	// LayerWeight returns the weight applied to the overlay playing seq.
	//
	// Parameters:
	//   - seq: the sequence to look up
	//
	// Returns:
	//   - float32: the overlay weight
	//   - bool: true if a layer for seq is active
	LayerWeight(seq graph.Sequence) (float32, bool)

	// Layers returns a snapshot of the active overlay layers.
	//
	// Returns:
	//   - []*layer.Layer: the active layers in start order
	Layers() []*layer.Layer

	// LayerCount returns the number of active overlay layers.
	//
	// Returns:
	//   - int: the active layer count
	LayerCount() int

	// Settings returns the controller tunables.
	//
	// Returns:
	//   - Settings: the current settings
	Settings() Settings
}

var _ Controller = &controller{}

// NewController creates a Controller that drives base as the base layer and instantiates overlays
// through rt, binding them to target. Panics if any collaborator is nil.
//
// Parameters:
//   - s: the scheduler stepping every blend of this controller
//   - rt: the graph runtime
//   - base: the weight channel of the base layer graph
//   - target: the animated target shared by every graph
//   - options: functional options to configure the controller
//
// Returns:
//   - Controller: the new controller
func NewController(s blend.Scheduler, rt graph.Runtime, base weight.Channel, target graph.Target, options ...ControllerBuilderOption) Controller {
	if s == nil {
		panic("crossfade: NewController requires a non-nil Scheduler")
	}
	if rt == nil {
		panic("crossfade: NewController requires a non-nil Runtime")
	}
	if base == nil {
		panic("crossfade: NewController requires a non-nil base Channel")
	}
	if target == nil {
		panic("crossfade: NewController requires a non-nil Target")
	}

	c := &controller{
		logger:    slog.Default(),
		scheduler: s,
		runtime:   rt,
		target:    target,
		base:      base,
		baseState: BaseFull,
		settings:  DefaultSettings(),
	}
	for _, opt := range options {
		opt(c)
	}
	c.registry = layer.NewRegistry(s, rt, c.logger)
	return c
}

func (c *controller) Play(seq graph.Sequence, maxWeight, fadeIn, fadeOut float32) {
	if !graph.Valid(seq) {
		c.logger.Warn("play ignored: sequence is not set")
		return
	}

	fadeIn = resolve(fadeIn, c.settings.DefaultFadeIn)
	fadeOut = resolve(fadeOut, c.settings.DefaultFadeOut)
	maxWeight = common.Clamp01(maxWeight)

	if l, ok := c.registry.Find(seq); ok {
		c.restart(l, maxWeight, fadeIn, fadeOut)
		return
	}

	g, err := c.runtime.Instantiate(seq)
	if err != nil {
		c.logger.Error("play failed: instantiating sequence", "sequence", seq.ID(), "error", err)
		return
	}
	g.Bind(c.target)
	g.Rebuild()

	ch := weight.NewChannel(g, 0)
	g.Play()

	l := layer.New(g, ch, fadeOut)
	if err := c.registry.Add(l); err != nil {
		c.logger.Error("play failed: registering layer", "sequence", seq.ID(), "error", err)
		ch.Release()
		c.runtime.Destroy(g, true)
		return
	}

	c.scheduler.StartBlend(ch, maxWeight, fadeIn, nil)
	c.yieldBase(maxWeight, 2*fadeIn)

	for _, other := range c.registry.Layers() {
		if other != l {
			c.startFadeOut(other, other.FadeOut())
		}
	}

	c.logger.Debug("layer started",
		"sequence", seq.ID(),
		"layer", l.ID().String(),
		"max_weight", maxWeight,
		"fade_in", fadeIn,
		"fade_out", fadeOut,
	)
}

func (c *controller) PlayDefault(seq graph.Sequence) {
	c.Play(seq, 1, UseDefault, UseDefault)
}

// restart rewinds an active layer and ramps it back up, reusing its graph.
func (c *controller) restart(l *layer.Layer, maxWeight, fadeIn, fadeOut float32) {
	g := l.Graph()
	g.SetTime(0)
	g.Play()
	l.SetFadeOut(fadeOut)

	c.scheduler.StartBlend(l.Channel(), maxWeight, fadeIn, nil)
	c.yieldBase(maxWeight, 2*fadeIn)

	c.logger.Debug("layer restarted", "sequence", l.Sequence().ID(), "layer", l.ID().String())
}

// yieldBase ramps the base layer down to make room for an overlay at maxWeight.
func (c *controller) yieldBase(maxWeight, duration float32) {
	target := 1 - maxWeight
	c.baseState = BaseYielding
	c.scheduler.StartBlend(c.base, target, duration, func() {
		if common.ApproxEqual(target, 1, common.WeightEpsilon) && !c.anyContributing() {
			c.baseState = BaseFull
		}
	})
}

func (c *controller) FadeOut(seq graph.Sequence, duration float32) bool {
	l, ok := c.registry.Find(seq)
	if !ok {
		return false
	}
	c.startFadeOut(l, resolve(duration, l.FadeOut()))
	return true
}

// startFadeOut replaces any blend on the layer with a ramp to zero that tears the layer down on completion.
func (c *controller) startFadeOut(l *layer.Layer, duration float32) {
	if l.Removed() {
		return
	}
	c.scheduler.StartBlend(l.Channel(), 0, duration, func() {
		c.registry.Remove(l, false)
	})
}

func (c *controller) Update() {
	if c.baseState == BaseReclaiming || !c.base.Bound() {
		return
	}
	// a faint overlay leaves the base above the threshold; it is reclaimed once nothing contributes
	if c.base.Weight() >= 1-c.settings.ReclaimThreshold && (c.baseState != BaseYielding || c.anyContributing()) {
		return
	}
	c.checkBaseNeeded()
}

func (c *controller) anyContributing() bool {
	for _, l := range c.registry.Layers() {
		if l.Contributing() {
			return true
		}
	}
	return false
}

// checkBaseNeeded reclaims the base layer once the overlays that are still playing, and not yet inside
// their own fade-out window, no longer carry more than the reclaim threshold.
func (c *controller) checkBaseNeeded() {
	layers := c.registry.Layers()

	var overlayWeight float32
	anyPlaying := false
	for _, l := range layers {
		if l.Contributing() {
			// a layer started this frame has not been evaluated yet and still reads 0
			overlayWeight += l.Channel().Desired()
			anyPlaying = true
		}
	}
	if anyPlaying && overlayWeight > c.settings.ReclaimThreshold {
		return
	}

	minFade := c.settings.DefaultFadeOut
	for _, l := range layers {
		c.startFadeOut(l, l.FadeOut())
		minFade = min(minFade, l.FadeOut())
	}

	c.scheduler.Cancel(c.base)
	c.baseState = BaseReclaiming
	c.scheduler.StartBlend(c.base, 1, minFade, func() {
		c.baseState = BaseFull
	})

	c.logger.Debug("base layer reclaiming",
		"overlay_weight", overlayWeight,
		"layers", len(layers),
		"duration", minFade,
	)
}

func (c *controller) StopAllTimelines() {
	for _, l := range c.registry.Layers() {
		c.scheduler.Cancel(l.Channel())
		l.Channel().SetWeight(0)
	}
	c.registry.Clear(true)

	c.scheduler.Cancel(c.base)
	c.base.SetWeight(1)
	c.baseState = BaseFull
}

func (c *controller) Shutdown() {
	c.StopAllTimelines()
	c.base.Release()
	c.logger.Debug("crossfade controller shut down")
}

func (c *controller) BaseWeight() float32 {
	return c.base.Weight()
}

func (c *controller) BaseState() BaseState {
	return c.baseState
}

func (c *controller) LayerWeight(seq graph.Sequence) (float32, bool) {
	l, ok := c.registry.Find(seq)
	if !ok {
		return 0, false
	}
	return l.Weight(), true
}

func (c *controller) Layers() []*layer.Layer {
	return c.registry.Layers()
}

func (c *controller) LayerCount() int {
	return c.registry.Len()
}

func (c *controller) Settings() Settings {
	return c.settings
}

// resolve returns fallback for negative (sentinel) durations.
func resolve(d, fallback float32) float32 {
	if d < 0 {
		return max(fallback, 0)
	}
	return d
}
