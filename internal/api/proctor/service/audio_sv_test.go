package proctorService

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func loudWindow() []byte {
	window := make([]byte, audioWindowSize)
	for i := range window {
		if i%2 == 0 {
			window[i] = 128 + 64
		} else {
			window[i] = 128 - 64
		}
	}
	return window
}

func quietWindow() []byte {
	window := make([]byte, audioWindowSize)
	for i := range window {
		window[i] = 128
	}
	return window
}

func TestRMSLevel(t *testing.T) {
	assert.Zero(t, rmsLevel(nil))
	assert.Zero(t, rmsLevel(quietWindow()))
	assert.InDelta(t, 0.5, rmsLevel(loudWindow()), 0.001)
}

func TestAudioMonitorFiresAfterSustainedNoise(t *testing.T) {
	a := newAudioMonitor()

	for i := 0; i < noiseCycleThreshold-1; i++ {
		assert.False(t, a.Evaluate(loudWindow()), "cycle %d should not fire yet", i+1)
		assert.False(t, a.IsNoisy(), "flag stays down until the noise is sustained")
	}
	assert.True(t, a.Evaluate(loudWindow()))
	assert.True(t, a.IsNoisy())
}

func TestAudioMonitorNoisyFlagIsLatched(t *testing.T) {
	a := newAudioMonitor()

	a.Evaluate(loudWindow())
	assert.False(t, a.IsNoisy(), "one loud window is not sustained noise")

	for i := 0; i < noiseCycleThreshold-1; i++ {
		a.Evaluate(loudWindow())
	}
	assert.True(t, a.IsNoisy(), "flag latches when the violation fires")

	a.Evaluate(loudWindow())
	assert.True(t, a.IsNoisy(), "flag holds while the counter is above zero")

	a.Evaluate(quietWindow())
	assert.False(t, a.IsNoisy(), "flag releases once the counter drains to zero")
}

func TestAudioMonitorResetsAfterFiring(t *testing.T) {
	a := newAudioMonitor()

	for i := 0; i < noiseCycleThreshold; i++ {
		a.Evaluate(loudWindow())
	}

	// Counter went back to zero, a full run is needed again.
	for i := 0; i < noiseCycleThreshold-1; i++ {
		assert.False(t, a.Evaluate(loudWindow()))
	}
	assert.True(t, a.Evaluate(loudWindow()))
}

func TestAudioMonitorHysteresis(t *testing.T) {
	a := newAudioMonitor()

	for i := 0; i < 4; i++ {
		a.Evaluate(loudWindow())
	}
	for i := 0; i < 2; i++ {
		assert.False(t, a.Evaluate(quietWindow()))
		assert.False(t, a.IsNoisy())
	}

	// Counter sits at 2; six more loud cycles reach the threshold.
	fired := false
	for i := 0; i < 6; i++ {
		if a.Evaluate(loudWindow()) {
			fired = true
			assert.Equal(t, 5, i, "should fire exactly on the sixth loud cycle")
		}
	}
	assert.True(t, fired)
}

func TestAudioMonitorQuietNeverFires(t *testing.T) {
	a := newAudioMonitor()

	for i := 0; i < noiseCycleThreshold*3; i++ {
		assert.False(t, a.Evaluate(quietWindow()))
	}
}
