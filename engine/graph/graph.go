package graph

import "errors"

// ErrNilSequence is returned when a graph is requested for a nil or unnamed sequence.
var ErrNilSequence = errors.New("graph: sequence is nil or has no id")

// PlayState is the playback state of a Graph.
type PlayState int

const (
	// Stopped graphs are not evaluated and do not contribute to the target pose.
	Stopped PlayState = iota

	// Playing graphs advance their time and are evaluated every frame.
	Playing

	// Paused graphs are evaluated every frame but their time does not advance.
	Paused
)

func (s PlayState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// WrapMode controls what a graph does when its time reaches the sequence duration.
type WrapMode int

const (
	// WrapHold keeps the graph Playing with its time clamped at the duration.
	WrapHold WrapMode = iota

	// WrapNone stops the graph when its time reaches the duration.
	WrapNone

	// WrapLoop wraps the time back to the start.
	WrapLoop
)

// ParseWrapMode converts a configuration string into a WrapMode. Unknown values yield WrapHold.
//
// Parameters:
//   - s: one of "hold", "none", "loop"
//
// Returns:
//   - WrapMode: the parsed mode
func ParseWrapMode(s string) WrapMode {
	switch s {
	case "none":
		return WrapNone
	case "loop":
		return WrapLoop
	default:
		return WrapHold
	}
}

// OutputKind enumerates the kinds of outputs a graph can expose.
// Consumers switch on the kind explicitly rather than probing output types.
type OutputKind int

const (
	// OutputAnimation writes a weighted pose into the animated target.
	OutputAnimation OutputKind = iota

	// OutputAudio plays sound and carries no pose weight.
	OutputAudio

	// OutputSignal emits notifications (markers, events) and carries no pose weight.
	OutputSignal
)

func (k OutputKind) String() string {
	switch k {
	case OutputAnimation:
		return "animation"
	case OutputAudio:
		return "audio"
	case OutputSignal:
		return "signal"
	default:
		return "unknown"
	}
}

// Sequence is a playable asset definition. Its ID is the asset identity used to key layers.
type Sequence interface {
	// ID returns the asset identity. An empty ID means the sequence is unset.
	ID() string

	// Duration returns the sequence length in seconds.
	Duration() float32

	// Wrap returns the behaviour at the end of the sequence.
	Wrap() WrapMode

	// Tracks returns the kind of each output the sequence produces, in slot order.
	Tracks() []OutputKind
}

// Valid reports whether seq is non-nil and carries an identity.
//
// Parameters:
//   - seq: the sequence to check
//
// Returns:
//   - bool: true if seq can be instantiated
func Valid(seq Sequence) bool {
	return seq != nil && seq.ID() != ""
}

// Clip is the concrete Sequence used by configuration and tests. Its methods are nil-safe.
type Clip struct {
	Name   string
	Length float32
	Mode   WrapMode
	Kinds  []OutputKind
}

var _ Sequence = &Clip{}

// NewClip creates a Clip with a single animation track.
//
// Parameters:
//   - name: the asset identity
//   - length: the duration in seconds
//   - mode: the wrap mode
//
// Returns:
//   - *Clip: the new clip
func NewClip(name string, length float32, mode WrapMode) *Clip {
	return &Clip{Name: name, Length: length, Mode: mode, Kinds: []OutputKind{OutputAnimation}}
}

func (c *Clip) ID() string {
	if c == nil {
		return ""
	}
	return c.Name
}

func (c *Clip) Duration() float32 {
	if c == nil {
		return 0
	}
	return c.Length
}

func (c *Clip) Wrap() WrapMode {
	if c == nil {
		return WrapHold
	}
	return c.Mode
}

func (c *Clip) Tracks() []OutputKind {
	if c == nil {
		return nil
	}
	return c.Kinds
}

// Target is the shared animated object every graph writes its pose into.
type Target interface {
	// Name identifies the target in logs.
	Name() string
}

// Output is one output slot of an evaluated graph.
type Output interface {
	// Kind returns the output kind.
	Kind() OutputKind

	// Slot returns the output index inside its graph.
	Slot() int

	// Weight returns the weight the output will be composed with this frame.
	Weight() float32

	// SetWeight overrides the weight for the current frame. The runtime restores the output's own
	// weight before the next evaluation, so processors compose rather than accumulate.
	//
	// Parameters:
	//   - w: the new weight
	SetWeight(w float32)
}

// Processor observes the evaluated frames of a graph.
type Processor interface {
	// ProcessFrame is called after every evaluated frame while the graph is Playing or Paused.
	//
	// Parameters:
	//   - outputs: the outputs of the graph, in slot order
	ProcessFrame(outputs []Output)

	// Stopped is called once each time the graph leaves Playing or Paused for Stopped,
	// including when it is destroyed.
	Stopped()
}

// Graph is one instantiated, playable sequence.
type Graph interface {
	// Sequence returns the asset the graph was instantiated from.
	Sequence() Sequence

	// Play starts or resumes playback.
	Play()

	// Pause freezes the graph time while keeping it evaluated.
	Pause()

	// Stop halts playback and notifies processors.
	Stop()

	// State returns the current PlayState.
	State() PlayState

	// Time returns the elapsed playback time in seconds.
	Time() float32

	// SetTime moves the playback head.
	//
	// Parameters:
	//   - t: the new time in seconds, clamped to [0, Duration]
	SetTime(t float32)

	// Duration returns the length of the sequence in seconds.
	Duration() float32

	// Outputs returns the graph outputs in slot order. Empty until the graph is built.
	Outputs() []Output

	// Bind routes every output of the graph into target.
	//
	// Parameters:
	//   - target: the shared animated target
	Bind(target Target)

	// Target returns the bound target, or nil.
	Target() Target

	// Rebuild creates the outputs immediately instead of waiting for the first evaluation.
	Rebuild()

	// Built reports whether the outputs exist.
	Built() bool

	// Valid reports whether the graph has produced at least one evaluated frame.
	Valid() bool

	// AddProcessor registers p to observe evaluated frames. Adding the same processor twice is a no-op.
	//
	// Parameters:
	//   - p: the processor
	AddProcessor(p Processor)

	// RemoveProcessor unregisters p. Unknown processors are ignored.
	//
	// Parameters:
	//   - p: the processor
	RemoveProcessor(p Processor)

	// Destroyed reports whether the runtime has released the graph.
	Destroyed() bool
}

// Runtime instantiates, evaluates and destroys graphs.
type Runtime interface {
	// Instantiate creates a stopped graph for seq.
	//
	// Parameters:
	//   - seq: the sequence to instantiate
	//
	// Returns:
	//   - Graph: the new graph
	//   - error: ErrNilSequence if seq is nil or unnamed
	Instantiate(seq Sequence) (Graph, error)

	// Destroy releases g. With immediate set the graph is released before Destroy returns, otherwise
	// at the end of the next Evaluate. Destroying a graph twice is a no-op.
	//
	// Parameters:
	//   - g: the graph to destroy
	//   - immediate: release synchronously
	Destroy(g Graph, immediate bool)

	// Evaluate advances every playing graph by deltaTime, runs processors, and flushes deferred
	// destruction.
	//
	// Parameters:
	//   - deltaTime: the frame delta in seconds
	Evaluate(deltaTime float32)

	// Live returns the number of graphs that have not been destroyed.
	//
	// Returns:
	//   - int: the live graph count
	Live() int
}
