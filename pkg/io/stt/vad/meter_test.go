package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMeter(t *testing.T) {
	d := Decision{Recording: true, SNR: 5, MinSNR: 0, MaxSNR: 10, Mean: 2, Threshold: 7}
	assert.Equal(t, "+||==m==--t--||", RenderMeter(d, 10))

	d.Recording = false
	d.SNR = 10
	assert.Equal(t, "-||==m====t==||", RenderMeter(d, 10))
}

func TestRenderMeterZeroRange(t *testing.T) {
	d := Decision{SNR: 3, MinSNR: 3, MaxSNR: 3, Mean: 3, Threshold: 3}
	assert.Equal(t, "-||----||", RenderMeter(d, 4))
}

func TestRenderMeterOutOfRangeSNR(t *testing.T) {
	d := Decision{SNR: 50, MinSNR: 0, MaxSNR: 10, Mean: 20, Threshold: -5}
	assert.Equal(t, "-||=====||", RenderMeter(d, 5))
}
