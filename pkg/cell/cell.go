package cell

import "sync"

// Readable exposes the current value and change notifications.
type Readable[T any] interface {
	Read() T
	Subscribe(fn func(T)) Unsubscribe
}

// Writable is a Readable whose value can be replaced.
type Writable[T any] interface {
	Readable[T]
	Write(value T)
	Update(fn func(T) T)
}

// Unsubscribe detaches a subscriber. Calling it more than once is a no-op.
type Unsubscribe func()

type subscriber[T any] struct {
	fn     func(T)
	active bool
}

type delivery[T any] struct {
	sub   *subscriber[T]
	value T
}

// Cell is the default Writable implementation.
type Cell[T any] struct {
	mu          sync.Mutex
	value       T
	subscribers []*subscriber[T]
	queue       []delivery[T]
	dispatching bool
}

var _ Writable[int] = (*Cell[int])(nil)

// New returns a cell holding initial.
func New[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Read returns the current value.
func (c *Cell[T]) Read() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Write replaces the value and notifies subscribers. Equal values still notify.
func (c *Cell[T]) Write(value T) {
	c.mu.Lock()
	c.store(value)
}

// Update writes the result of fn applied to the current value. The read and
// the write happen under one lock, so concurrent updates are not lost; fn
// must not call back into the cell.
func (c *Cell[T]) Update(fn func(T) T) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.store(fn(c.value))
}

// store sets the value and queues deliveries. It is called with c.mu held
// and releases it before draining.
func (c *Cell[T]) store(value T) {
	c.value = value
	for _, sub := range c.subscribers {
		c.queue = append(c.queue, delivery[T]{sub: sub, value: value})
	}
	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true
	c.mu.Unlock()

	c.drain()
}

// Subscribe registers fn, calls it once with the current value, and returns a
// handle that removes the subscription.
func (c *Cell[T]) Subscribe(fn func(T)) Unsubscribe {
	if fn == nil {
		return func() {}
	}
	sub := &subscriber[T]{fn: fn, active: true}

	c.mu.Lock()
	c.subscribers = append(c.subscribers, sub)
	current := c.value
	c.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() { c.remove(sub) })
	}
}

// Subscribers reports the number of active subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}

func (c *Cell[T]) remove(target *subscriber[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target.active = false
	next := make([]*subscriber[T], 0, len(c.subscribers))
	for _, sub := range c.subscribers {
		if sub != target {
			next = append(next, sub)
		}
	}
	c.subscribers = next
}

func (c *Cell[T]) drain() {
	defer func() {
		if r := recover(); r != nil {
			c.mu.Lock()
			c.queue = nil
			c.dispatching = false
			c.mu.Unlock()
			panic(r)
		}
	}()

	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.queue = nil
			c.dispatching = false
			c.mu.Unlock()
			return
		}
		next := c.queue[0]
		c.queue[0] = delivery[T]{}
		c.queue = c.queue[1:]
		active := next.sub.active
		c.mu.Unlock()

		if active {
			next.sub.fn(next.value)
		}
	}
}
