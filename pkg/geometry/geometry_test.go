package geometry

import (
	"testing"

	"ProctorEngine/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x, y, w, h float64) entity.BoundingBox {
	return entity.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func TestIntersectionOverUnion(t *testing.T) {
	tests := []struct {
		name string
		a    entity.BoundingBox
		b    entity.BoundingBox
		want float64
	}{
		{
			name: "identical boxes",
			a:    box(0.5, 0.5, 0.2, 0.2),
			b:    box(0.5, 0.5, 0.2, 0.2),
			want: 1,
		},
		{
			name: "disjoint boxes",
			a:    box(0.2, 0.2, 0.1, 0.1),
			b:    box(0.8, 0.8, 0.1, 0.1),
			want: 0,
		},
		{
			name: "touching edges count as disjoint",
			a:    box(0.25, 0.5, 0.5, 0.5),
			b:    box(0.75, 0.5, 0.5, 0.5),
			want: 0,
		},
		{
			name: "half overlap",
			a:    box(0.25, 0.25, 0.5, 0.5),
			b:    box(0.5, 0.25, 0.5, 0.5),
			want: 0.25 / 0.75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IntersectionOverUnion(tt.a, tt.b), 1e-9)
			assert.Equal(t, IntersectionOverUnion(tt.a, tt.b), IntersectionOverUnion(tt.b, tt.a))
		})
	}
}

func TestNonMaxSuppression(t *testing.T) {
	dets := []entity.Detection{
		{Class: "mobile_phone", Confidence: 0.7, BBox: box(0.5, 0.5, 0.2, 0.2)},
		{Class: "mobile_phone", Confidence: 0.9, BBox: box(0.51, 0.5, 0.2, 0.2)},
		{Class: "book", Confidence: 0.8, BBox: box(0.1, 0.1, 0.1, 0.1)},
	}

	kept := NonMaxSuppression(dets, 0.45)

	require.Len(t, kept, 2)
	assert.Equal(t, 0.9, kept[0].Confidence)
	assert.Equal(t, "book", kept[1].Class)

	// No surviving pair may overlap past the threshold.
	for i := range kept {
		for j := i + 1; j < len(kept); j++ {
			assert.LessOrEqual(t, IntersectionOverUnion(kept[i].BBox, kept[j].BBox), 0.45)
		}
	}
}

func TestNonMaxSuppressionNeverGrows(t *testing.T) {
	dets := []entity.Detection{
		{Confidence: 0.6, BBox: box(0.5, 0.5, 0.3, 0.3)},
		{Confidence: 0.6, BBox: box(0.5, 0.5, 0.3, 0.3)},
		{Confidence: 0.6, BBox: box(0.5, 0.5, 0.3, 0.3)},
	}

	kept := NonMaxSuppression(dets, 0.5)
	assert.LessOrEqual(t, len(kept), len(dets))
	assert.Len(t, kept, 1)

	assert.Empty(t, NonMaxSuppression(nil, 0.5))
}

func TestNonMaxSuppressionDeterministicTies(t *testing.T) {
	dets := []entity.Detection{
		{ClassIndex: 0, Confidence: 0.8, BBox: box(0.5, 0.5, 0.2, 0.2)},
		{ClassIndex: 1, Confidence: 0.8, BBox: box(0.5, 0.5, 0.2, 0.2)},
	}

	for i := 0; i < 10; i++ {
		kept := NonMaxSuppression(dets, 0.45)
		require.Len(t, kept, 1)
		assert.Equal(t, 0, kept[0].ClassIndex)
	}
}

// centeredFace builds a full landmark set describing a face looking straight
// at the camera. Individual points are then nudged per test case.
func centeredFace() []entity.FaceLandmark {
	lm := make([]entity.FaceLandmark, MinLandmarks)
	for i := range lm {
		lm[i] = entity.FaceLandmark{X: 0.5, Y: 0.5}
	}
	lm[NoseTip] = entity.FaceLandmark{X: 0.5, Y: 0.5}
	lm[Forehead] = entity.FaceLandmark{X: 0.5, Y: 0.3}
	lm[Chin] = entity.FaceLandmark{X: 0.5, Y: 0.7}
	lm[LeftCheek] = entity.FaceLandmark{X: 0.4, Y: 0.5}
	lm[RightCheek] = entity.FaceLandmark{X: 0.6, Y: 0.5}
	return lm
}

func TestIsHeadTurned(t *testing.T) {
	t.Run("too few landmarks cannot judge", func(t *testing.T) {
		assert.False(t, IsHeadTurned(make([]entity.FaceLandmark, 100)))
	})

	t.Run("centered face is attentive", func(t *testing.T) {
		assert.False(t, IsHeadTurned(centeredFace()))
	})

	t.Run("horizontal asymmetry alone triggers", func(t *testing.T) {
		lm := centeredFace()
		lm[NoseTip] = entity.FaceLandmark{X: 0.43, Y: 0.5}
		assert.True(t, IsHeadTurned(lm))
	})

	t.Run("vertical offset alone triggers", func(t *testing.T) {
		lm := centeredFace()
		lm[NoseTip] = entity.FaceLandmark{X: 0.5, Y: 0.66}
		assert.True(t, IsHeadTurned(lm))
	})

	t.Run("cheek depth asymmetry alone triggers", func(t *testing.T) {
		lm := centeredFace()
		lm[LeftCheek] = entity.FaceLandmark{X: 0.4, Y: 0.5, Z: 0.08}
		assert.True(t, IsHeadTurned(lm))
	})

	t.Run("degenerate zero-width face is attentive", func(t *testing.T) {
		lm := centeredFace()
		lm[LeftCheek] = lm[RightCheek]
		assert.False(t, IsHeadTurned(lm))
	})
}
