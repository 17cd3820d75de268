package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gate blocks the handler on its first item until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) hold() {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
}

func waitIdle[T any](t *testing.T, d *Dispatcher[T]) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := d.Stats()
		return !s.Active && s.Depth == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcherKeepsTenMostRecentUnderBurst(t *testing.T) {
	g := newGate()
	var mu sync.Mutex
	var handled []int
	d := New("stt", 10, func(ctx context.Context, item int) error {
		g.hold()
		mu.Lock()
		handled = append(handled, item)
		mu.Unlock()
		return nil
	})

	require.True(t, d.Enqueue(0))
	<-g.entered

	for i := 1; i <= 15; i++ {
		require.True(t, d.Enqueue(i))
	}
	assert.Equal(t, []int{6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, d.Pending())
	assert.Equal(t, uint64(5), d.Stats().Evicted)

	close(g.release)
	waitIdle(t, d)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, handled)
}

func TestDispatcherNewestFirst(t *testing.T) {
	g := newGate()
	var mu sync.Mutex
	var handled []int
	d := New("tts", 5, func(ctx context.Context, item int) error {
		g.hold()
		mu.Lock()
		handled = append(handled, item)
		mu.Unlock()
		return nil
	}, WithOrder[int](NewestFirst))

	d.Enqueue(0)
	<-g.entered
	for i := 1; i <= 3; i++ {
		d.Enqueue(i)
	}
	close(g.release)
	waitIdle(t, d)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 3, 2, 1}, handled)
}

func TestDispatcherSingleActiveWorker(t *testing.T) {
	var inHandler atomic.Int64
	var overlap atomic.Bool
	d := New("stt", 4, func(ctx context.Context, item int) error {
		if inHandler.Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(200 * time.Microsecond)
		inHandler.Add(-1)
		return nil
	})

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				d.Enqueue(p*100 + i)
				if i%7 == 0 {
					time.Sleep(100 * time.Microsecond)
				}
			}
		}(p)
	}
	wg.Wait()
	waitIdle(t, d)

	s := d.Stats()
	assert.False(t, overlap.Load())
	assert.Equal(t, int64(1), s.MaxRunning)
	assert.Equal(t, uint64(400), s.Enqueued)
	assert.Equal(t, s.Enqueued, s.Processed+s.Evicted)
	assert.GreaterOrEqual(t, s.WorkersStarted, uint64(1))
}

func TestDispatcherSurvivesFailuresAndPanics(t *testing.T) {
	var failures []error
	var mu sync.Mutex
	var ok atomic.Int64
	d := New("stt", 10, func(ctx context.Context, item int) error {
		switch item {
		case 1:
			return errors.New("engine offline")
		case 2:
			panic("boom")
		}
		ok.Add(1)
		return nil
	}, WithHooks(Hooks[int]{
		OnError: func(item int, err error) {
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
		},
	}))

	for i := 0; i < 4; i++ {
		d.Enqueue(i)
	}
	waitIdle(t, d)

	s := d.Stats()
	assert.Equal(t, uint64(2), s.Failed)
	assert.Equal(t, uint64(2), s.Processed)
	assert.Equal(t, int64(2), ok.Load())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 2)
	assert.EqualError(t, failures[0], "engine offline")
	assert.Contains(t, failures[1].Error(), "handler panic: boom")
}

func TestDispatcherCloseFinishesInFlightOnly(t *testing.T) {
	g := newGate()
	var handled atomic.Int64
	d := New("tts", 10, func(ctx context.Context, item int) error {
		g.hold()
		handled.Add(1)
		return nil
	})

	d.Enqueue(1)
	<-g.entered
	d.Enqueue(2)
	d.Enqueue(3)

	d.Close()
	assert.False(t, d.Enqueue(4))

	close(g.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))

	s := d.Stats()
	assert.Equal(t, int64(1), handled.Load())
	assert.Equal(t, 2, s.Depth)
	assert.Equal(t, uint64(1), s.Rejected)
	assert.True(t, s.Closed)
	assert.False(t, s.Active)
}

func TestDispatcherWaitHonoursContext(t *testing.T) {
	g := newGate()
	d := New("stt", 1, func(ctx context.Context, item int) error { g.hold(); return nil })
	d.Enqueue(1)
	<-g.entered
	d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(g.release)
	require.NoError(t, d.Wait(context.Background()))
}

func TestDispatcherItemTimeout(t *testing.T) {
	errCh := make(chan error, 1)
	d := New("tts", 1, func(ctx context.Context, item int) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithItemTimeout[int](10*time.Millisecond), WithHooks(Hooks[int]{
		OnError: func(item int, err error) { errCh <- err },
	}))

	d.Enqueue(1)
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never timed out")
	}
}

func TestDispatcherRestartsWorkerAfterDrain(t *testing.T) {
	var handled atomic.Int64
	d := New("stt", 2, func(ctx context.Context, item int) error {
		handled.Add(1)
		return nil
	})

	d.Enqueue(1)
	waitIdle(t, d)
	d.Enqueue(2)
	waitIdle(t, d)

	assert.Equal(t, int64(2), handled.Load())
	assert.Equal(t, uint64(2), d.Stats().WorkersStarted)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("newest")
	require.NoError(t, err)
	assert.Equal(t, NewestFirst, o)

	o, err = ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OldestFirst, o)

	_, err = ParseOrder("random")
	assert.Error(t, err)
}
