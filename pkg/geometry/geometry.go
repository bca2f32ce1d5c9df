package geometry

import (
	"math"
	"sort"

	"ProctorEngine/internal/entity"
)

// Face landmark indices used for head pose estimation. The landmark model
// emits 468 normalized 3D points per face.
const (
	NoseTip    = 1
	Forehead   = 10
	Chin       = 152
	LeftCheek  = 234
	RightCheek = 454

	MinLandmarks = 468
)

const (
	horizontalTurnThreshold = 0.25
	verticalTiltThreshold   = 0.35
	depthTurnThreshold      = 0.06
)

// IntersectionOverUnion computes the overlap ratio of two center-form boxes.
// Returns 0 for disjoint boxes and 1 for identical boxes.
func IntersectionOverUnion(a, b entity.BoundingBox) float64 {
	aLeft := a.X - a.Width/2
	aRight := a.X + a.Width/2
	aTop := a.Y - a.Height/2
	aBottom := a.Y + a.Height/2

	bLeft := b.X - b.Width/2
	bRight := b.X + b.Width/2
	bTop := b.Y - b.Height/2
	bBottom := b.Y + b.Height/2

	interLeft := math.Max(aLeft, bLeft)
	interRight := math.Min(aRight, bRight)
	interTop := math.Max(aTop, bTop)
	interBottom := math.Min(aBottom, bBottom)

	if interRight <= interLeft || interBottom <= interTop {
		return 0
	}

	interArea := (interRight - interLeft) * (interBottom - interTop)
	aArea := a.Width * a.Height
	bArea := b.Width * b.Height

	return interArea / (aArea + bArea - interArea)
}

// NonMaxSuppression keeps the highest-confidence detection of every
// overlapping cluster. The sort is stable so ties keep their input order,
// making the result deterministic for a fixed input.
func NonMaxSuppression(detections []entity.Detection, iouThreshold float64) []entity.Detection {
	if len(detections) == 0 {
		return []entity.Detection{}
	}

	sorted := make([]entity.Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]entity.Detection, 0, len(sorted))
	suppressed := make([]bool, len(sorted))

	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])

		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] {
				continue
			}
			if IntersectionOverUnion(sorted[i].BBox, sorted[j].BBox) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return kept
}

// IsHeadTurned estimates whether a face is oriented away from the camera.
// Three independent cues are checked, each normalized against facial scale so
// the thresholds hold regardless of camera distance or resolution. Any single
// strong cue is enough.
func IsHeadTurned(landmarks []entity.FaceLandmark) bool {
	if len(landmarks) < MinLandmarks {
		return false
	}

	noseTip := landmarks[NoseTip]
	forehead := landmarks[Forehead]
	chin := landmarks[Chin]
	leftCheek := landmarks[LeftCheek]
	rightCheek := landmarks[RightCheek]

	faceWidth := distance2D(leftCheek, rightCheek)
	if faceWidth == 0 {
		return false
	}

	noseToLeft := distance2D(noseTip, leftCheek)
	noseToRight := distance2D(noseTip, rightCheek)
	horizontalRatio := math.Abs(noseToLeft-noseToRight) / faceWidth

	faceMidY := (forehead.Y + chin.Y) / 2
	faceHeight := distance2D(forehead, chin)
	verticalOffset := 0.0
	if faceHeight > 0 {
		verticalOffset = math.Abs(noseTip.Y-faceMidY) / faceHeight
	}

	depthDiff := math.Abs(leftCheek.Z - rightCheek.Z)

	return horizontalRatio > horizontalTurnThreshold ||
		verticalOffset > verticalTiltThreshold ||
		depthDiff > depthTurnThreshold
}

func distance2D(a, b entity.FaceLandmark) float64 {
	return math.Sqrt((a.X-b.X)*(a.X-b.X) + (a.Y-b.Y)*(a.Y-b.Y))
}
