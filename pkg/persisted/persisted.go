package persisted

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-chatstate/pkg/activity"
	"github.com/goliatone/go-chatstate/pkg/cell"
	"github.com/goliatone/go-chatstate/pkg/codec"
	"github.com/goliatone/go-chatstate/pkg/storage"
)

// Source reports how a cell obtained its initial value.
type Source int

const (
	SourceDefault Source = iota
	SourceStorage
	SourceCorrupt
	SourceRejected
)

func (s Source) String() string {
	switch s {
	case SourceStorage:
		return "storage"
	case SourceCorrupt:
		return "corrupt"
	case SourceRejected:
		return "rejected"
	default:
		return "default"
	}
}

// Guard checks a value before it is accepted from storage or through Set.
type Guard[T any] func(T) error

// Option configures a persisted Cell.
type Option[T any] func(*Cell[T])

// WithGuards appends guards run against hydrated values and Set calls.
func WithGuards[T any](guards ...Guard[T]) Option[T] {
	return func(c *Cell[T]) {
		for _, guard := range guards {
			if guard != nil {
				c.guards = append(c.guards, guard)
			}
		}
	}
}

// WithEmitter reports hydration and persistence outcomes as activity events.
func WithEmitter[T any](emitter *activity.Emitter) Option[T] {
	return func(c *Cell[T]) {
		c.emitter = emitter
	}
}

// WithContext sets the context passed to activity hooks.
func WithContext[T any](ctx context.Context) Option[T] {
	return func(c *Cell[T]) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// WithOrigin labels emitted events with the storage origin.
func WithOrigin[T any](origin string) Option[T] {
	return func(c *Cell[T]) {
		c.origin = origin
	}
}

// Cell is a reactive cell mirrored to a storage key.
type Cell[T any] struct {
	*cell.Cell[T]

	key     string
	adapter storage.Adapter
	codec   codec.Codec[T]
	guards  []Guard[T]
	emitter *activity.Emitter
	ctx     context.Context
	origin  string
	source  Source

	mu  sync.Mutex
	err error
}

var _ cell.Writable[int] = (*Cell[int])(nil)

// New hydrates a cell for key from adapter, falling back to defaultValue. A
// nil adapter yields a session-only cell; a nil codec selects codec.JSON.
func New[T any](key string, defaultValue T, adapter storage.Adapter, c codec.Codec[T], opts ...Option[T]) *Cell[T] {
	if c == nil {
		c = codec.JSON[T]()
	}
	p := &Cell[T]{
		key:     key,
		adapter: adapter,
		codec:   c,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	initial, source := p.hydrate(defaultValue)
	p.Cell = cell.New(initial)
	p.source = source

	primed := false
	p.Cell.Subscribe(func(value T) {
		if !primed {
			primed = true
			return
		}
		p.persist(value)
	})
	return p
}

// Key returns the storage key.
func (p *Cell[T]) Key() string {
	return p.key
}

// Source reports how the initial value was obtained.
func (p *Cell[T]) Source() Source {
	return p.source
}

// Err returns the error from the most recent persistence attempt, or nil.
func (p *Cell[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Set runs the guards against value and writes it when all pass. On failure
// the current value is left unchanged and a rejected event is emitted.
func (p *Cell[T]) Set(value T) error {
	if err := p.check(value); err != nil {
		err = fmt.Errorf("persisted: %q: %w", p.key, err)
		p.emit(activity.VerbRejected, 0, err)
		return err
	}
	p.Write(value)
	return nil
}

// Check runs the guards against value without writing it.
func (p *Cell[T]) Check(value T) error {
	if err := p.check(value); err != nil {
		return fmt.Errorf("persisted: %q: %w", p.key, err)
	}
	return nil
}

func (p *Cell[T]) check(value T) error {
	for _, guard := range p.guards {
		if err := guard(value); err != nil {
			return err
		}
	}
	return nil
}

func (p *Cell[T]) hydrate(defaultValue T) (T, Source) {
	if p.adapter == nil {
		return defaultValue, SourceDefault
	}

	raw, ok, err := p.adapter.Get(p.key)
	if err != nil {
		p.emit(activity.VerbDefaulted, 0, fmt.Errorf("persisted: read %q: %w", p.key, err))
		return defaultValue, SourceDefault
	}
	if !ok {
		p.emit(activity.VerbDefaulted, 0, nil)
		return defaultValue, SourceDefault
	}

	value, err := p.codec.Decode(raw)
	if err != nil {
		p.discard()
		p.emit(activity.VerbCorrupt, len(raw), err)
		return defaultValue, SourceCorrupt
	}
	if err := p.check(value); err != nil {
		p.discard()
		p.emit(activity.VerbRejected, len(raw), err)
		return defaultValue, SourceRejected
	}

	p.emit(activity.VerbHydrated, len(raw), nil)
	return value, SourceStorage
}

func (p *Cell[T]) persist(value T) {
	if p.adapter == nil {
		return
	}

	raw, err := p.codec.Encode(value)
	if err == nil {
		err = p.adapter.Set(p.key, raw)
	}
	if err != nil {
		err = fmt.Errorf("persisted: write %q: %w", p.key, err)
	}

	p.mu.Lock()
	p.err = err
	p.mu.Unlock()

	if err != nil {
		p.emit(activity.VerbPersistFailed, len(raw), err)
		return
	}
	p.emit(activity.VerbPersisted, len(raw), nil)
}

// discard drops an unusable stored value so the next session starts clean.
func (p *Cell[T]) discard() {
	_ = p.adapter.Remove(p.key)
}

func (p *Cell[T]) emit(verb string, size int, err error) {
	if !p.emitter.Enabled() {
		return
	}
	_ = p.emitter.Emit(p.ctx, activity.BuildCellEvent(verb, activity.CellEventInput{
		Key:    p.key,
		Origin: p.origin,
		Bytes:  size,
		Err:    err,
	}))
}
