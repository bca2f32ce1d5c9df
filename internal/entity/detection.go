package entity

// BoundingBox is in center form, every coordinate normalized to [0,1].
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Detection struct {
	Class      string      `json:"class"`
	ClassIndex int         `json:"class_index"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// FaceLandmark is one normalized 3D point from the face landmark model.
type FaceLandmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type VisionAnalysisResult struct {
	Violation  bool    `json:"violation"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
	FlagType   string  `json:"flag_type,omitempty"`
}
