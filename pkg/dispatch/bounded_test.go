package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBoundedQueueKeepsMostRecent(t *testing.T) {
	q := NewBoundedQueue[int](10)
	evictions := 0
	for i := 0; i < 15; i++ {
		if _, evicted := q.Push(i); evicted {
			evictions++
		}
	}

	assert.Equal(t, 5, evictions)
	assert.Equal(t, 10, q.Len())
	assert.Equal(t, []int{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, q.Snapshot())
}

func TestBoundedQueueEvictsOldestExactlyOnce(t *testing.T) {
	q := NewBoundedQueue[string](2)
	_, evicted := q.Push("a")
	require.False(t, evicted)
	_, evicted = q.Push("b")
	require.False(t, evicted)

	old, evicted := q.Push("c")
	require.True(t, evicted)
	assert.Equal(t, "a", old)
	assert.Equal(t, []string{"b", "c"}, q.Snapshot())
}

func TestBoundedQueuePopOrders(t *testing.T) {
	q := NewBoundedQueue[int](4)
	for i := 1; i <= 4; i++ {
		q.Push(i)
	}

	v, ok := q.PopOldest()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.PopNewest()
	require.True(t, ok)
	assert.Equal(t, 4, v)

	assert.Equal(t, []int{2, 3}, q.Snapshot())

	q.Clear()
	_, ok = q.PopOldest()
	assert.False(t, ok)
	_, ok = q.PopNewest()
	assert.False(t, ok)
}

func TestBoundedQueueZeroCapacityIsClamped(t *testing.T) {
	q := NewBoundedQueue[int](0)
	assert.Equal(t, 1, q.Cap())
	q.Push(1)
	q.Push(2)
	assert.Equal(t, []int{2}, q.Snapshot())
}

// The queue behaves like a slice truncated to its newest cap elements.
func TestBoundedQueueMatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 16).Draw(t, "capacity")
		q := NewBoundedQueue[int](capacity)
		var model []int

		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 200).Draw(t, "ops")
		for i, op := range ops {
			switch op {
			case 0:
				before := len(model)
				_, evicted := q.Push(i)
				model = append(model, i)
				if len(model) > capacity {
					model = model[1:]
				}
				if evicted != (before == capacity) {
					t.Fatalf("evicted=%v with %d/%d elements", evicted, before, capacity)
				}
			case 1:
				got, ok := q.PopOldest()
				if ok != (len(model) > 0) {
					t.Fatalf("PopOldest ok=%v, model len %d", ok, len(model))
				}
				if ok {
					if got != model[0] {
						t.Fatalf("PopOldest=%d want %d", got, model[0])
					}
					model = model[1:]
				}
			case 2:
				got, ok := q.PopNewest()
				if ok != (len(model) > 0) {
					t.Fatalf("PopNewest ok=%v, model len %d", ok, len(model))
				}
				if ok {
					if got != model[len(model)-1] {
						t.Fatalf("PopNewest=%d want %d", got, model[len(model)-1])
					}
					model = model[:len(model)-1]
				}
			}
			if q.Len() > capacity {
				t.Fatalf("len %d exceeds capacity %d", q.Len(), capacity)
			}
			if q.Len() != len(model) {
				t.Fatalf("len %d, model %d", q.Len(), len(model))
			}
		}
		snap := q.Snapshot()
		for i := range model {
			if snap[i] != model[i] {
				t.Fatalf("snapshot %v, model %v", snap, model)
			}
		}
	})
}
