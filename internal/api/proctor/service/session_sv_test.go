package proctorService

import (
	"ProctorEngine/internal/entity"
	"ProctorEngine/pkg/media"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(fake *fakeInference, clock *fakeClock) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:          "01TESTSESSION",
		log:         testLogger(),
		frames:      media.NewFrameBuffer(frameStaleness),
		audio:       media.NewSampleBuffer(audioRingCapacity),
		faces:       newFaceMonitor(clock.Now),
		audioMon:    newAudioMonitor(),
		escalator:   newEscalator(testLogger(), nil, nil, nil, nil, nil, clock.Now),
		detector:    newObjectEngine(testLogger(), fake),
		landmarker:  fake,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[chan entity.Violation]struct{}),
	}
	s.monitor = newMonitor(clock.Now, func(violation entity.Violation, stats entity.ProctorStats) {
		s.broadcast(violation)
	})
	return s
}

func TestSessionStopIsIdempotent(t *testing.T) {
	fake := &fakeInference{connected: true}
	s := newTestSession(fake, newFakeClock())
	s.run()

	events, unsubscribe := s.subscribe()

	s.stop()
	s.stop()

	_, open := <-events
	assert.False(t, open, "subscriber channels close on teardown")
	assert.Equal(t, 1, fake.closes, "model connections are released exactly once")
	assert.False(t, s.monitor.Record(entity.ViolationTabSwitch, "late report"),
		"monitor refuses work after teardown")

	unsubscribe()

	late, _ := s.subscribe()
	_, open = <-late
	assert.False(t, open, "subscribing after teardown yields a closed channel")
}

func TestSessionFaceCycleSurvivesInferenceErrors(t *testing.T) {
	fake := &fakeInference{landmarkErr: errors.New("landmark socket closed")}
	s := newTestSession(fake, newFakeClock())
	defer s.stop()

	s.frames.Put([]byte("frame"))
	for i := 0; i < 10; i++ {
		s.faceCycle()
	}
	assert.Empty(t, s.monitor.Violations(), "a failed cycle costs nothing but the cycle")

	// Once the model recovers the empty frames start counting again.
	fake.landmarkErr = nil
	for i := 0; i < noFaceCycleThreshold; i++ {
		s.faceCycle()
	}
	violations := s.monitor.Violations()
	require.Len(t, violations, 1)
	assert.Equal(t, entity.ViolationNoFace, violations[0].Type)
}

func TestSessionObjectCycleWaitsForFrames(t *testing.T) {
	fake := &fakeInference{}
	s := newTestSession(fake, newFakeClock())
	defer s.stop()

	s.objectCycle()
	assert.Zero(t, fake.probes, "no model load before the client streams")
	assert.Equal(t, string(detectorUnloaded), s.detector.State())

	s.frames.Put([]byte("frame"))
	s.objectCycle()
	assert.Equal(t, string(detectorLoaded), s.detector.State())
}

func TestSessionObjectCycleRetriesFailedLoad(t *testing.T) {
	fake := &fakeInference{probeErr: errors.New("connection refused")}
	s := newTestSession(fake, newFakeClock())
	defer s.stop()

	s.frames.Put([]byte("frame"))
	for i := 0; i < 3; i++ {
		s.objectCycle()
	}
	assert.Equal(t, string(detectorError), s.detector.State())
	assert.Equal(t, 3, fake.probes, "load is retried every cycle")

	fake.probeErr = nil
	s.objectCycle()
	assert.Equal(t, string(detectorLoaded), s.detector.State())
}
