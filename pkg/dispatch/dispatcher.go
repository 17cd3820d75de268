package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xpanvictor/hearken/pkg/Logger"
)

// Order selects which surviving element a worker takes next.
type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

// ParseOrder maps the config spelling ("oldest" / "newest") to an Order.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "oldest":
		return OldestFirst, nil
	case "newest":
		return NewestFirst, nil
	}
	return OldestFirst, fmt.Errorf("unknown queue order %q", s)
}

// Handler processes one item. Returning an error does not stop the worker.
type Handler[T any] func(ctx context.Context, item T) error

// Hooks observe queue activity. They run outside the queue lock, OnEvict on the
// producer's goroutine and the rest on the worker's, so they must stay cheap.
type Hooks[T any] struct {
	OnEvict   func(item T)
	OnDepth   func(depth int)
	OnSuccess func(item T, took time.Duration)
	OnError   func(item T, err error)
}

type Stats struct {
	Name           string `json:"name"`
	Capacity       int    `json:"capacity"`
	Depth          int    `json:"depth"`
	Active         bool   `json:"active"`
	Closed         bool   `json:"closed"`
	Enqueued       uint64 `json:"enqueued"`
	Evicted        uint64 `json:"evicted"`
	Rejected       uint64 `json:"rejected"`
	Processed      uint64 `json:"processed"`
	Failed         uint64 `json:"failed"`
	WorkersStarted uint64 `json:"workersStarted"`
	MaxRunning     int64  `json:"maxRunning"`
}

// Dispatcher owns a BoundedQueue and at most one worker goroutine. The queue,
// the active flag and the closed flag share one mutex, so "push and maybe spawn"
// and "pop or retire" are atomic with respect to each other.
type Dispatcher[T any] struct {
	name        string
	handler     Handler[T]
	logger      *Logger.Logger
	order       Order
	itemTimeout time.Duration
	hooks       Hooks[T]
	baseCtx     context.Context

	mu     sync.Mutex
	queue  *BoundedQueue[T]
	active bool
	closed bool
	wg     sync.WaitGroup

	enqueued   atomic.Uint64
	evicted    atomic.Uint64
	rejected   atomic.Uint64
	processed  atomic.Uint64
	failed     atomic.Uint64
	started    atomic.Uint64
	running    atomic.Int64
	maxRunning atomic.Int64
}

type Option[T any] func(*Dispatcher[T])

func WithOrder[T any](o Order) Option[T] {
	return func(d *Dispatcher[T]) { d.order = o }
}

func WithLogger[T any](l *Logger.Logger) Option[T] {
	return func(d *Dispatcher[T]) { d.logger = l }
}

// WithItemTimeout bounds each handler call. Zero means no deadline.
func WithItemTimeout[T any](timeout time.Duration) Option[T] {
	return func(d *Dispatcher[T]) { d.itemTimeout = timeout }
}

func WithHooks[T any](h Hooks[T]) Option[T] {
	return func(d *Dispatcher[T]) { d.hooks = h }
}

// WithContext sets the parent context handed to the handler. Shutdown does not
// cancel it; in-flight items run to completion.
func WithContext[T any](ctx context.Context) Option[T] {
	return func(d *Dispatcher[T]) { d.baseCtx = ctx }
}

func New[T any](name string, capacity int, handler Handler[T], opts ...Option[T]) *Dispatcher[T] {
	d := &Dispatcher[T]{
		name:    name,
		handler: handler,
		logger:  Logger.Nop(),
		order:   OldestFirst,
		baseCtx: context.Background(),
		queue:   NewBoundedQueue[T](capacity),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue never blocks. A full queue loses its oldest element; a closed
// dispatcher rejects the item and returns false.
func (d *Dispatcher[T]) Enqueue(item T) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.rejected.Add(1)
		return false
	}
	old, evicted := d.queue.Push(item)
	depth := d.queue.Len()
	spawn := !d.active
	if spawn {
		d.active = true
		d.wg.Add(1)
	}
	d.mu.Unlock()

	d.enqueued.Add(1)
	if evicted {
		d.evicted.Add(1)
		if d.hooks.OnEvict != nil {
			d.hooks.OnEvict(old)
		}
	}
	if d.hooks.OnDepth != nil {
		d.hooks.OnDepth(depth)
	}
	if spawn {
		d.started.Add(1)
		go d.work()
	}
	return true
}

func (d *Dispatcher[T]) work() {
	defer d.wg.Done()
	for {
		item, depth, ok := d.next()
		if !ok {
			return
		}
		if d.hooks.OnDepth != nil {
			d.hooks.OnDepth(depth)
		}
		d.process(item)
	}
}

// next pops the following item, or retires the worker when the queue is empty
// or the dispatcher is closed.
func (d *Dispatcher[T]) next() (T, int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var item T
	if d.closed || d.queue.Len() == 0 {
		d.active = false
		return item, d.queue.Len(), false
	}
	if d.order == NewestFirst {
		item, _ = d.queue.PopNewest()
	} else {
		item, _ = d.queue.PopOldest()
	}
	return item, d.queue.Len(), true
}

func (d *Dispatcher[T]) process(item T) {
	n := d.running.Add(1)
	defer d.running.Add(-1)
	for {
		m := d.maxRunning.Load()
		if n <= m || d.maxRunning.CompareAndSwap(m, n) {
			break
		}
	}

	ctx := d.baseCtx
	if d.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.itemTimeout)
		defer cancel()
	}

	start := time.Now()
	err := d.safeCall(ctx, item)
	took := time.Since(start)

	if err != nil {
		d.failed.Add(1)
		d.logger.Errorf("%s: item failed after %s: %v", d.name, took, err)
		if d.hooks.OnError != nil {
			d.hooks.OnError(item, err)
		}
		return
	}
	d.processed.Add(1)
	d.logger.Debugf("%s: item done in %s", d.name, took)
	if d.hooks.OnSuccess != nil {
		d.hooks.OnSuccess(item, took)
	}
}

func (d *Dispatcher[T]) safeCall(ctx context.Context, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: handler panic: %v\n%s", d.name, r, debug.Stack())
		}
	}()
	return d.handler(ctx, item)
}

// Close stops the dispatcher from accepting items and from starting queued
// ones. The item currently being handled, if any, is allowed to finish.
func (d *Dispatcher[T]) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Wait blocks until the worker has exited or ctx is done.
func (d *Dispatcher[T]) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: waiting for worker: %w", d.name, ctx.Err())
	}
}

// Pending returns the queued items, oldest first.
func (d *Dispatcher[T]) Pending() []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Snapshot()
}

func (d *Dispatcher[T]) Stats() Stats {
	d.mu.Lock()
	depth, capacity, active, closed := d.queue.Len(), d.queue.Cap(), d.active, d.closed
	d.mu.Unlock()

	return Stats{
		Name:           d.name,
		Capacity:       capacity,
		Depth:          depth,
		Active:         active,
		Closed:         closed,
		Enqueued:       d.enqueued.Load(),
		Evicted:        d.evicted.Load(),
		Rejected:       d.rejected.Load(),
		Processed:      d.processed.Load(),
		Failed:         d.failed.Load(),
		WorkersStarted: d.started.Load(),
		MaxRunning:     d.maxRunning.Load(),
	}
}
