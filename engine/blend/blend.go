package blend

import (
	"github.com/Carmen-Shannon/oxy-blend/common"
	"github.com/Carmen-Shannon/oxy-blend/engine/clock"
	"github.com/Carmen-Shannon/oxy-blend/engine/weight"
)

// Handle identifies one blend task. The zero Handle never refers to a task.
type Handle uint64

// task is the state of one linear weight ramp.
type task struct {
	id      Handle
	channel weight.Channel

	start, target     float32
	duration, elapsed float32

	onComplete func()
	done       bool
}

// scheduler is the implementation of the Scheduler interface.
type scheduler struct {
	src clock.Source

	tasks     []*task
	byChannel map[weight.Channel]*task
	nextID    Handle
}

// Scheduler ramps weight channels toward target weights, one step per frame.
//
// Each channel has at most one live task. Starting a blend on a channel that already has one cancels
// the old task without running its completion callback. The scheduler is cooperative and
// single-threaded: Step must be called once per frame from the goroutine that owns the channels,
// and completion callbacks run inside Step.
type Scheduler interface {
	// StartBlend ramps ch from its current weight to target over duration seconds. The start weight is
	// sampled from ch.Weight() at the time of the call. A duration of 0 or less resolves on the next Step.
	//
	// Parameters:
	//   - ch: the channel to drive
	//   - target: the weight to reach, clamped to [0, 1]
	//   - duration: the ramp length in seconds
	//   - onComplete: called exactly once on the Step that reaches target; may be nil
	//
	// Returns:
	//   - Handle: the handle of the new task
	StartBlend(ch weight.Channel, target, duration float32, onComplete func()) Handle

	// Cancel stops the live task on ch without running its completion callback.
	//
	// Parameters:
	//   - ch: the channel whose task should stop
	//
	// Returns:
	//   - bool: true if a task was cancelled
	Cancel(ch weight.Channel) bool

	// Active reports whether ch has a live task.
	//
	// Parameters:
	//   - ch: the channel to check
	//
	// Returns:
	//   - bool: true if a blend is running on ch
	Active(ch weight.Channel) bool

	// Pending returns the number of live tasks.
	//
	// Returns:
	//   - int: the live task count
	Pending() int

	// Step advances every task that was live when the step began by the source's frame delta.
	Step()
}

var _ Scheduler = &scheduler{}

// NewScheduler creates a Scheduler that reads frame deltas from src. Panics if src is nil.
//
// Parameters:
//   - src: the frame clock
//
// Returns:
//   - Scheduler: the new scheduler
func NewScheduler(src clock.Source) Scheduler {
	if src == nil {
		panic("blend: NewScheduler requires a non-nil clock source")
	}
	return &scheduler{
		src:       src,
		byChannel: make(map[weight.Channel]*task),
	}
}

func (s *scheduler) StartBlend(ch weight.Channel, target, duration float32, onComplete func()) Handle {
	s.Cancel(ch)

	s.nextID++
	t := &task{
		id:         s.nextID,
		channel:    ch,
		start:      ch.Weight(),
		target:     common.Clamp01(target),
		duration:   duration,
		onComplete: onComplete,
	}
	s.tasks = append(s.tasks, t)
	s.byChannel[ch] = t
	return t.id
}

func (s *scheduler) Cancel(ch weight.Channel) bool {
	t, ok := s.byChannel[ch]
	if !ok {
		return false
	}
	t.done = true
	delete(s.byChannel, ch)
	return true
}

func (s *scheduler) Active(ch weight.Channel) bool {
	_, ok := s.byChannel[ch]
	return ok
}

func (s *scheduler) Pending() int {
	return len(s.byChannel)
}

func (s *scheduler) Step() {
	dt := s.src.DeltaTime()

	live := len(s.tasks)
	for i := 0; i < live; i++ {
		t := s.tasks[i]
		if t.done {
			continue
		}
		t.elapsed += dt

		if t.duration <= 0 || t.elapsed >= t.duration {
			t.channel.SetWeight(t.target)
			t.done = true
			delete(s.byChannel, t.channel)
			if t.onComplete != nil {
				t.onComplete()
			}
			continue
		}

		t.channel.SetWeight(common.Lerp(t.start, t.target, common.Clamp01(t.elapsed/t.duration)))
	}

	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.done {
			kept = append(kept, t)
		}
	}
	clear(s.tasks[len(kept):])
	s.tasks = kept
}
