package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/hearken/pkg/dispatch"
	"github.com/xpanvictor/hearken/pkg/io/stt/vad"
)

func TestObserveFrame(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveFrame(vad.Decision{Voice: true, SNR: 12, Threshold: 7.5}, true)
	m.ObserveFrame(vad.Decision{SNR: -3, Threshold: 8}, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VoiceFrames))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.VADThreshold))
	assert.Equal(t, -3.0, testutil.ToFloat64(m.VADSNR))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Recording))
}

func TestQueueHooks(t *testing.T) {
	m := New(prometheus.NewRegistry())
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	d := dispatch.New("stt", 2, func(_ context.Context, item int) error {
		started <- struct{}{}
		<-release
		if item < 0 {
			return errors.New("bad item")
		}
		return nil
	}, dispatch.WithHooks(QueueHooks[int](m, "stt")))

	d.Enqueue(1)
	<-started
	// 1 is in flight; -1 is evicted by 3
	for _, item := range []int{-1, -2, 3} {
		d.Enqueue(item)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueueDepth.WithLabelValues("stt")))
	close(release)

	require.Eventually(t, func() bool {
		st := d.Stats()
		return st.Processed+st.Failed == 3 && !st.Active
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueueEvictions.WithLabelValues("stt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemFailures.WithLabelValues("stt")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.QueueDepth.WithLabelValues("stt")))

	d.Close()
	require.NoError(t, d.Wait(context.Background()))
}

func TestRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
