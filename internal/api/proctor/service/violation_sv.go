package proctorService

import (
	"ProctorEngine/internal/entity"
	"sync"
	"time"
)

const (
	violationDedupeWindow = 3 * time.Second
	warningDisplayTime    = 3 * time.Second
	trustPenalty          = 2
)

// monitor is the per-session violation state machine. It owns the append-only
// violation history, the per-type counters, the trust score and the transient
// warning banner. A violation matching the immediately preceding accepted one
// inside the dedupe window is dropped so a sustained condition reads as one
// event, not a flood; an intervening violation of another type resets that
// comparison.
type monitor struct {
	mu sync.Mutex

	now        func() time.Time
	violations []entity.Violation
	stats      entity.ProctorStats
	lastType   entity.ViolationType
	lastTime   time.Time
	stopped    bool

	warning      string
	warningTimer *time.Timer

	onAccept func(entity.Violation, entity.ProctorStats)
}

func newMonitor(now func() time.Time, onAccept func(entity.Violation, entity.ProctorStats)) *monitor {
	return &monitor{
		now:        now,
		violations: make([]entity.Violation, 0),
		stats:      entity.ProctorStats{TrustScore: 100},
		onAccept:   onAccept,
	}
}

// Record applies one violation. Returns false when the dedupe window dropped
// it. Accepted violations lower the trust score by a fixed penalty, floored
// at zero, and arm the warning banner for a fresh display window.
func (m *monitor) Record(vtype entity.ViolationType, message string) bool {
	m.mu.Lock()

	if m.stopped {
		m.mu.Unlock()
		return false
	}

	ts := m.now()
	if m.lastType == vtype && !m.lastTime.IsZero() && ts.Sub(m.lastTime) < violationDedupeWindow {
		m.mu.Unlock()
		return false
	}
	m.lastType = vtype
	m.lastTime = ts

	violation := entity.Violation{
		Type:      vtype,
		Timestamp: ts,
		Message:   message,
	}
	m.violations = append(m.violations, violation)

	m.stats.TotalViolations++
	switch vtype {
	case entity.ViolationNoFace:
		m.stats.NoFaceCount++
	case entity.ViolationMultipleFaces:
		m.stats.MultipleFacesCount++
	case entity.ViolationLookingAway:
		m.stats.LookingAwayCount++
	case entity.ViolationBackgroundNoise:
		m.stats.BackgroundNoiseCount++
	case entity.ViolationTabSwitch:
		m.stats.TabSwitchCount++
	case entity.ViolationFullscreenExit:
		m.stats.FullscreenExitCount++
	case entity.ViolationWebcamDisconnect:
		m.stats.WebcamDisconnectCount++
	}

	score := 100 - m.stats.TotalViolations*trustPenalty
	if score < 0 {
		score = 0
	}
	m.stats.TrustScore = score

	m.warning = message
	if m.warningTimer != nil {
		m.warningTimer.Stop()
	}
	m.warningTimer = time.AfterFunc(warningDisplayTime, func() {
		m.mu.Lock()
		m.warning = ""
		m.mu.Unlock()
	})

	stats := m.stats
	onAccept := m.onAccept
	m.mu.Unlock()

	if onAccept != nil {
		onAccept(violation, stats)
	}
	return true
}

func (m *monitor) Stats() entity.ProctorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *monitor) Violations() []entity.Violation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Violation, len(m.violations))
	copy(out, m.violations)
	return out
}

func (m *monitor) Warning() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warning
}

// Stop tears the monitor down. Later Record calls are dropped so a straggling
// report cannot re-arm the warning timer after teardown.
func (m *monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.warningTimer != nil {
		m.warningTimer.Stop()
		m.warningTimer = nil
	}
	m.warning = ""
}
