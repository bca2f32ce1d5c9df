package proctorService

import (
	"ProctorEngine/internal/entity"
	"ProctorEngine/pkg/geometry"
	"sync"
	"time"
)

const (
	noFaceCycleThreshold = 5
	awayCycleThreshold   = 6
)

type faceObservation struct {
	Violation entity.ViolationType
	Message   string
}

// faceMonitor turns raw landmark results into debounced face violations.
// An empty frame or a turned head only fires after enough consecutive
// cycles, so a blink or a glance at the keyboard stays silent. A second
// face fires immediately; there is no innocent reading of that.
type faceMonitor struct {
	mu sync.Mutex

	now func() time.Time

	noFaceCycles int
	awayCycles   int

	faceCount   int
	lookingAway bool
	awaySince   time.Time
}

func newFaceMonitor(now func() time.Time) *faceMonitor {
	return &faceMonitor{now: now}
}

// Evaluate processes one detection cycle and returns the violation it
// produced, if any. Counters reset after firing so a persisting condition
// re-alerts after another full debounce run.
func (f *faceMonitor) Evaluate(faces [][]entity.FaceLandmark) (faceObservation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.faceCount = len(faces)

	switch {
	case len(faces) == 0:
		f.noFaceCycles++
		f.awayCycles = 0
		f.clearAwayLocked()

		if f.noFaceCycles >= noFaceCycleThreshold {
			f.noFaceCycles = 0
			return faceObservation{
				Violation: entity.ViolationNoFace,
				Message:   "No face detected in frame",
			}, true
		}
		return faceObservation{}, false

	case len(faces) > 1:
		f.noFaceCycles = 0
		f.awayCycles = 0
		f.clearAwayLocked()

		return faceObservation{
			Violation: entity.ViolationMultipleFaces,
			Message:   "Multiple faces detected in frame",
		}, true

	default:
		f.noFaceCycles = 0

		if !geometry.IsHeadTurned(faces[0]) {
			f.awayCycles = 0
			f.clearAwayLocked()
			return faceObservation{}, false
		}

		// The away flag and its clock start on the first turned frame; the
		// violation itself still waits out the debounce.
		if !f.lookingAway {
			f.lookingAway = true
			f.awaySince = f.now()
		}

		f.awayCycles++
		if f.awayCycles < awayCycleThreshold {
			return faceObservation{}, false
		}

		f.awayCycles = 0
		return faceObservation{
			Violation: entity.ViolationLookingAway,
			Message:   "Candidate looking away from screen",
		}, true
	}
}

func (f *faceMonitor) clearAwayLocked() {
	f.lookingAway = false
	f.awaySince = time.Time{}
}

func (f *faceMonitor) FaceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faceCount
}

func (f *faceMonitor) IsLookingAway() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookingAway
}

// AwayDuration reports how long the candidate has been continuously looking
// away, zero when they are not.
func (f *faceMonitor) AwayDuration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.lookingAway || f.awaySince.IsZero() {
		return 0
	}
	return f.now().Sub(f.awaySince)
}

// RestartAwayClock restarts the sustained looking-away measurement, called
// after an escalation fired so the next one needs a fresh interval.
func (f *faceMonitor) RestartAwayClock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookingAway {
		f.awaySince = f.now()
	}
}
