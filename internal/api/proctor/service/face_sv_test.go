package proctorService

import (
	"ProctorEngine/internal/entity"
	"ProctorEngine/pkg/geometry"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func centeredFace() []entity.FaceLandmark {
	landmarks := make([]entity.FaceLandmark, geometry.MinLandmarks)
	for i := range landmarks {
		landmarks[i] = entity.FaceLandmark{X: 0.5, Y: 0.5}
	}
	landmarks[geometry.NoseTip] = entity.FaceLandmark{X: 0.5, Y: 0.5}
	landmarks[geometry.Forehead] = entity.FaceLandmark{X: 0.5, Y: 0.35}
	landmarks[geometry.Chin] = entity.FaceLandmark{X: 0.5, Y: 0.65}
	landmarks[geometry.LeftCheek] = entity.FaceLandmark{X: 0.3, Y: 0.5}
	landmarks[geometry.RightCheek] = entity.FaceLandmark{X: 0.7, Y: 0.5}
	return landmarks
}

func turnedFace() []entity.FaceLandmark {
	landmarks := centeredFace()
	landmarks[geometry.NoseTip] = entity.FaceLandmark{X: 0.65, Y: 0.5}
	return landmarks
}

func TestFaceMonitorNoFaceDebounce(t *testing.T) {
	clock := newFakeClock()
	f := newFaceMonitor(clock.Now)

	for i := 0; i < noFaceCycleThreshold-1; i++ {
		_, fired := f.Evaluate(nil)
		assert.False(t, fired, "cycle %d should not fire yet", i+1)
	}

	obs, fired := f.Evaluate(nil)
	require.True(t, fired)
	assert.Equal(t, entity.ViolationNoFace, obs.Violation)
	assert.Equal(t, 0, f.FaceCount())
}

func TestFaceMonitorNoFaceReAlerts(t *testing.T) {
	clock := newFakeClock()
	f := newFaceMonitor(clock.Now)

	fires := 0
	for i := 0; i < noFaceCycleThreshold*2; i++ {
		if _, fired := f.Evaluate(nil); fired {
			fires++
		}
	}
	assert.Equal(t, 2, fires, "counter resets after firing so the condition re-alerts")
}

func TestFaceMonitorPresentFaceResetsCounter(t *testing.T) {
	clock := newFakeClock()
	f := newFaceMonitor(clock.Now)

	for i := 0; i < noFaceCycleThreshold-1; i++ {
		f.Evaluate(nil)
	}
	_, fired := f.Evaluate([][]entity.FaceLandmark{centeredFace()})
	assert.False(t, fired)

	// Back to zero: another partial run must not fire.
	for i := 0; i < noFaceCycleThreshold-1; i++ {
		_, fired := f.Evaluate(nil)
		assert.False(t, fired)
	}
}

func TestFaceMonitorMultipleFacesImmediate(t *testing.T) {
	clock := newFakeClock()
	f := newFaceMonitor(clock.Now)

	obs, fired := f.Evaluate([][]entity.FaceLandmark{centeredFace(), centeredFace()})
	require.True(t, fired, "a second face fires without debounce")
	assert.Equal(t, entity.ViolationMultipleFaces, obs.Violation)
	assert.Equal(t, 2, f.FaceCount())
}

func TestFaceMonitorLookingAwayDebounce(t *testing.T) {
	clock := newFakeClock()
	f := newFaceMonitor(clock.Now)

	turned := [][]entity.FaceLandmark{turnedFace()}
	for i := 0; i < awayCycleThreshold-1; i++ {
		_, fired := f.Evaluate(turned)
		assert.False(t, fired, "cycle %d should not fire yet", i+1)
		assert.True(t, f.IsLookingAway(), "away state starts on the first turned frame")
	}

	obs, fired := f.Evaluate(turned)
	require.True(t, fired)
	assert.Equal(t, entity.ViolationLookingAway, obs.Violation)
	assert.True(t, f.IsLookingAway())
}

func TestFaceMonitorAwayClockStartsOnFirstTurnedFrame(t *testing.T) {
	clock := newFakeClock()
	f := newFaceMonitor(clock.Now)

	turned := [][]entity.FaceLandmark{turnedFace()}
	_, fired := f.Evaluate(turned)
	assert.False(t, fired)
	require.True(t, f.IsLookingAway())

	clock.Advance(sustainedAwayDuration)
	f.Evaluate(turned)
	assert.GreaterOrEqual(t, f.AwayDuration(), sustainedAwayDuration,
		"sustained-away time counts from the first turned frame, not from the violation")
}

func TestFaceMonitorStraightFrameClearsAway(t *testing.T) {
	clock := newFakeClock()
	f := newFaceMonitor(clock.Now)

	turned := [][]entity.FaceLandmark{turnedFace()}
	for i := 0; i < awayCycleThreshold; i++ {
		f.Evaluate(turned)
	}
	require.True(t, f.IsLookingAway())

	_, fired := f.Evaluate([][]entity.FaceLandmark{centeredFace()})
	assert.False(t, fired)
	assert.False(t, f.IsLookingAway())
	assert.Zero(t, f.AwayDuration())
}

func TestFaceMonitorAwayDuration(t *testing.T) {
	clock := newFakeClock()
	f := newFaceMonitor(clock.Now)

	turned := [][]entity.FaceLandmark{turnedFace()}
	for i := 0; i < awayCycleThreshold; i++ {
		f.Evaluate(turned)
	}
	require.True(t, f.IsLookingAway())

	clock.Advance(6 * time.Second)
	assert.Equal(t, 6*time.Second, f.AwayDuration())

	f.RestartAwayClock()
	assert.Zero(t, f.AwayDuration())
	assert.True(t, f.IsLookingAway(), "restarting the clock keeps the away state")
}
