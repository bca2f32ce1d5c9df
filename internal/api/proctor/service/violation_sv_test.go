package proctorService

import (
	"ProctorEngine/internal/entity"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestMonitorDedupeWindow(t *testing.T) {
	clock := newFakeClock()
	m := newMonitor(clock.Now, nil)

	assert.True(t, m.Record(entity.ViolationNoFace, "no face"))
	assert.False(t, m.Record(entity.ViolationNoFace, "no face"), "same type inside window should be dropped")

	clock.Advance(2 * time.Second)
	assert.False(t, m.Record(entity.ViolationNoFace, "no face"))

	clock.Advance(1 * time.Second)
	assert.True(t, m.Record(entity.ViolationNoFace, "no face"), "window elapsed, should accept again")

	assert.Equal(t, 2, m.Stats().NoFaceCount)
	assert.Len(t, m.Violations(), 2)
}

func TestMonitorDedupeComparesPreviousViolationOnly(t *testing.T) {
	clock := newFakeClock()
	m := newMonitor(clock.Now, nil)

	assert.True(t, m.Record(entity.ViolationNoFace, "no face"))
	clock.Advance(1 * time.Second)
	assert.True(t, m.Record(entity.ViolationTabSwitch, "tab switch"), "different type is not deduped")
	clock.Advance(1 * time.Second)
	assert.True(t, m.Record(entity.ViolationNoFace, "no face"),
		"an intervening violation of another type resets the dedupe comparison")

	stats := m.Stats()
	assert.Equal(t, 3, stats.TotalViolations)
	assert.Equal(t, 2, stats.NoFaceCount)
	assert.Equal(t, 1, stats.TabSwitchCount)
}

func TestMonitorRecordAfterStopIsDropped(t *testing.T) {
	clock := newFakeClock()

	accepted := 0
	m := newMonitor(clock.Now, func(entity.Violation, entity.ProctorStats) {
		accepted++
	})

	require.True(t, m.Record(entity.ViolationNoFace, "no face"))
	m.Stop()

	clock.Advance(10 * time.Second)
	assert.False(t, m.Record(entity.ViolationTabSwitch, "tab switch"))
	assert.Equal(t, 1, accepted, "a report arriving after teardown must not be accepted")
	assert.Empty(t, m.Warning())
	assert.Nil(t, m.warningTimer, "a late report must not re-arm the warning timer")
}

func TestMonitorTrustScore(t *testing.T) {
	clock := newFakeClock()
	m := newMonitor(clock.Now, nil)

	assert.Equal(t, 100, m.Stats().TrustScore)

	m.Record(entity.ViolationLookingAway, "away")
	assert.Equal(t, 98, m.Stats().TrustScore)

	clock.Advance(5 * time.Second)
	m.Record(entity.ViolationLookingAway, "away")
	assert.Equal(t, 96, m.Stats().TrustScore)
}

func TestMonitorTrustScoreFloor(t *testing.T) {
	clock := newFakeClock()
	m := newMonitor(clock.Now, nil)

	for i := 0; i < 60; i++ {
		m.Record(entity.ViolationNoFace, "no face")
		clock.Advance(4 * time.Second)
	}

	stats := m.Stats()
	assert.Equal(t, 60, stats.TotalViolations)
	assert.Equal(t, 0, stats.TrustScore, "trust score never goes negative")
}

func TestMonitorWarningAndCallback(t *testing.T) {
	clock := newFakeClock()

	var got []entity.Violation
	var gotStats entity.ProctorStats
	m := newMonitor(clock.Now, func(v entity.Violation, stats entity.ProctorStats) {
		got = append(got, v)
		gotStats = stats
	})

	require.True(t, m.Record(entity.ViolationMultipleFaces, "two faces"))
	assert.Equal(t, "two faces", m.Warning())

	require.Len(t, got, 1)
	assert.Equal(t, entity.ViolationMultipleFaces, got[0].Type)
	assert.Equal(t, clock.Now(), got[0].Timestamp)
	assert.Equal(t, 98, gotStats.TrustScore)

	assert.False(t, m.Record(entity.ViolationMultipleFaces, "two faces"))
	assert.Len(t, got, 1, "dropped violation must not reach the callback")

	m.Stop()
	assert.Empty(t, m.Warning())
}

func TestMonitorViolationsReturnsCopy(t *testing.T) {
	clock := newFakeClock()
	m := newMonitor(clock.Now, nil)
	m.Record(entity.ViolationNoFace, "no face")

	first := m.Violations()
	first[0].Message = "mutated"

	assert.Equal(t, "no face", m.Violations()[0].Message)
}
