package proctorService

import (
	"ProctorEngine/internal/entity"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEscalator(clock *fakeClock) *escalator {
	return newEscalator(testLogger(), nil, nil, nil, nil, nil, clock.Now)
}

func TestShouldAlarmOnObjects(t *testing.T) {
	clock := newFakeClock()
	e := testEscalator(clock)

	t.Run("no detections", func(t *testing.T) {
		_, alarm := e.ShouldAlarmOnObjects(nil)
		assert.False(t, alarm)
	})

	t.Run("benign class never alarms", func(t *testing.T) {
		_, alarm := e.ShouldAlarmOnObjects([]entity.Detection{
			{Class: "laptop", Confidence: 0.95},
			{Class: "hand_gesture", Confidence: 0.9},
		})
		assert.False(t, alarm)
	})

	t.Run("suspicious class below threshold", func(t *testing.T) {
		_, alarm := e.ShouldAlarmOnObjects([]entity.Detection{
			{Class: "mobile_phone", Confidence: 0.55},
		})
		assert.False(t, alarm)
	})

	t.Run("picks the highest confidence hit", func(t *testing.T) {
		hit, alarm := e.ShouldAlarmOnObjects([]entity.Detection{
			{Class: "book", Confidence: 0.65},
			{Class: "mobile_phone", Confidence: 0.8},
		})
		require.True(t, alarm)
		assert.Equal(t, "mobile_phone", hit.Class)
	})

	t.Run("cooldown suppresses repeats", func(t *testing.T) {
		detections := []entity.Detection{{Class: "mobile_phone", Confidence: 0.9}}

		clock.Advance(5 * time.Second)
		_, alarm := e.ShouldAlarmOnObjects(detections)
		assert.False(t, alarm, "inside the cooldown")

		clock.Advance(objectAlarmCooldown)
		_, alarm = e.ShouldAlarmOnObjects(detections)
		assert.True(t, alarm, "cooldown elapsed")
	})
}

func TestParseVisionVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    entity.VisionAnalysisResult
		wantErr bool
	}{
		{
			name: "bare json",
			raw:  `{"violation": true, "reason": "phone visible", "confidence": 0.92, "flag_type": "mobile_phone"}`,
			want: entity.VisionAnalysisResult{Violation: true, Reason: "phone visible", Confidence: 0.92, FlagType: "mobile_phone"},
		},
		{
			name: "markdown fenced",
			raw:  "```json\n{\"violation\": false, \"reason\": \"nothing suspicious\", \"confidence\": 0.8}\n```",
			want: entity.VisionAnalysisResult{Violation: false, Reason: "nothing suspicious", Confidence: 0.8},
		},
		{
			name: "prose wrapped",
			raw:  `Here is my assessment: {"violation": true, "reason": "second person", "confidence": 0.7, "flag_type": "extra_person"} I hope that helps.`,
			want: entity.VisionAnalysisResult{Violation: true, Reason: "second person", Confidence: 0.7, FlagType: "extra_person"},
		},
		{
			name:    "no json at all",
			raw:     "I cannot analyze this image.",
			wantErr: true,
		},
		{
			name:    "malformed json",
			raw:     `{"violation": maybe}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVisionVerdict(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyzeDropsWhenInFlight(t *testing.T) {
	clock := newFakeClock()
	e := testEscalator(clock)

	e.mu.Lock()
	e.inFlight = true
	e.mu.Unlock()

	assert.False(t, e.Analyze(context.Background(), "session-1", []byte("jpeg"), "spot_check"))
}

func TestAnalyzeClearsInFlight(t *testing.T) {
	clock := newFakeClock()
	e := testEscalator(clock)

	// No vision model configured: analysis fails but the flag must clear.
	assert.True(t, e.Analyze(context.Background(), "session-1", []byte("jpeg"), "spot_check"))
	assert.False(t, e.InFlight())
}

func TestNextSpotCheckDelayBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := nextSpotCheckDelay()
		assert.GreaterOrEqual(t, d, spotCheckMinInterval)
		assert.Less(t, d, spotCheckMaxInterval)
	}
}
