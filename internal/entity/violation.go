package entity

import "time"

type ViolationType string

const (
	ViolationNoFace           ViolationType = "no_face"
	ViolationMultipleFaces    ViolationType = "multiple_faces"
	ViolationLookingAway      ViolationType = "looking_away"
	ViolationBackgroundNoise  ViolationType = "background_noise"
	ViolationTabSwitch        ViolationType = "tab_switch"
	ViolationFullscreenExit   ViolationType = "fullscreen_exit"
	ViolationWebcamDisconnect ViolationType = "webcam_disconnect"
)

// ClientReportedViolations lists the violation types the interview client is
// allowed to report itself. Everything else originates inside the engine.
var ClientReportedViolations = map[ViolationType]bool{
	ViolationTabSwitch:        true,
	ViolationFullscreenExit:   true,
	ViolationWebcamDisconnect: true,
}

type Violation struct {
	Type      ViolationType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"`
}

type ProctorStats struct {
	TotalViolations       int `json:"total_violations"`
	NoFaceCount           int `json:"no_face_count"`
	MultipleFacesCount    int `json:"multiple_faces_count"`
	LookingAwayCount      int `json:"looking_away_count"`
	BackgroundNoiseCount  int `json:"background_noise_count"`
	TabSwitchCount        int `json:"tab_switch_count"`
	FullscreenExitCount   int `json:"fullscreen_exit_count"`
	WebcamDisconnectCount int `json:"webcam_disconnect_count"`
	TrustScore            int `json:"trust_score"`
}
