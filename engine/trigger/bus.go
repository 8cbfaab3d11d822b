package trigger

import (
	"log/slog"
	"slices"
	"sync"
)

// DefaultQueueCapacity is the number of undrained triggers a queue holds before it drops the oldest.
const DefaultQueueCapacity = 64

// queue is the implementation of the Queue interface.
type queue struct {
	mu *sync.Mutex

	name     string
	capacity int
	items    []Trigger
	dropped  uint64
}

// Queue buffers the triggers addressed to one subscriber until its frame drains them.
// Queues are safe for concurrent use: producers push from input and network goroutines
// while the owning rig drains on its own tick.
type Queue interface {
	// Name returns the subscriber name the queue was created for.
	//
	// Returns:
	//   - string: the subscriber name
	Name() string

	// Drain removes and returns every buffered trigger in arrival order.
	//
	// Returns:
	//   - []Trigger: the buffered triggers, nil if none
	Drain() []Trigger

	// Len returns the number of buffered triggers.
	//
	// Returns:
	//   - int: the buffered trigger count
	Len() int

	// Dropped returns how many triggers were discarded because the queue was full.
	//
	// Returns:
	//   - uint64: the dropped trigger count
	Dropped() uint64
}

var _ Queue = &queue{}

func newQueue(name string, capacity int) *queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &queue{mu: &sync.Mutex{}, name: name, capacity: capacity}
}

func (q *queue) Name() string { return q.name }

func (q *queue) Drain() []Trigger {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	items := q.items
	q.items = nil
	return items
}

func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// push appends t, discarding the oldest trigger when the queue is full.
func (q *queue) push(t Trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	full := len(q.items) >= q.capacity
	if full {
		q.items = slices.Delete(q.items, 0, 1)
		q.dropped++
	}
	q.items = append(q.items, t)
	return !full
}

// bus is the implementation of the Bus interface.
type bus struct {
	mu *sync.RWMutex

	logger   *slog.Logger
	capacity int
	queues   []*queue
}

// Bus fans triggers out to subscriber queues. A trigger with an empty Rig reaches every
// queue; otherwise only the queues subscribed under that name.
type Bus interface {
	// Subscribe creates a queue for name.
	//
	// Parameters:
	//   - name: the subscriber name matched against Trigger.Rig
	//
	// Returns:
	//   - Queue: the new queue
	Subscribe(name string) Queue

	// Unsubscribe stops delivery to q. Buffered triggers stay drainable.
	//
	// Parameters:
	//   - q: the queue to detach
	Unsubscribe(q Queue)

	// Publish delivers t to every matching queue.
	//
	// Parameters:
	//   - t: the trigger to deliver
	//
	// Returns:
	//   - int: the number of queues that received t
	Publish(t Trigger) int
}

var _ Bus = &bus{}

// NewBus creates an empty Bus.
//
// Parameters:
//   - options: functional options to configure the bus
//
// Returns:
//   - Bus: the new bus
func NewBus(options ...BusBuilderOption) Bus {
	b := &bus{
		mu:       &sync.RWMutex{},
		logger:   slog.Default(),
		capacity: DefaultQueueCapacity,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *bus) Subscribe(name string) Queue {
	q := newQueue(name, b.capacity)
	b.mu.Lock()
	b.queues = append(b.queues, q)
	b.mu.Unlock()
	return q
}

func (b *bus) Unsubscribe(q Queue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues = slices.DeleteFunc(b.queues, func(other *queue) bool { return Queue(other) == q })
}

func (b *bus) Publish(t Trigger) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, q := range b.queues {
		if t.Rig != "" && t.Rig != q.name {
			continue
		}
		if !q.push(t) {
			b.logger.Warn("trigger queue full, dropped oldest", "rig", q.name, "sequence", t.Sequence)
		}
		delivered++
	}
	if delivered == 0 {
		b.logger.Warn("trigger has no subscriber", "rig", t.Rig, "sequence", t.Sequence, "source", t.Source)
	}
	return delivered
}
