package proctor

import (
	"ProctorEngine/internal/entity"
	"time"
)

type StartSessionRequest struct {
	InterviewID string `json:"interview_id" validate:"required"`
	ReportEmail string `json:"report_email" validate:"omitempty,email"`
}

type StartSessionResponse struct {
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	ObjectEngine string `json:"object_engine"`
}

type ReportViolationRequest struct {
	Type    string `json:"type" validate:"required"`
	Message string `json:"message" validate:"required,max=255"`
}

type StatsResponse struct {
	SessionID        string                       `json:"session_id"`
	Stats            entity.ProctorStats          `json:"stats"`
	FaceCount        int                          `json:"face_count"`
	IsLookingAway    bool                         `json:"is_looking_away"`
	IsNoiseDetected  bool                         `json:"is_noise_detected"`
	CurrentWarning   string                       `json:"current_warning,omitempty"`
	ObjectEngine     string                       `json:"object_engine"`
	LastVisionResult *entity.VisionAnalysisResult `json:"last_vision_result,omitempty"`
}

type ViolationsResponse struct {
	SessionID  string             `json:"session_id"`
	Violations []entity.Violation `json:"violations"`
}

type ScreenshotResponse struct {
	ImageBase64 string `json:"image_base64"`
}

// FlagDetail is one persisted proctoring flag. ScreenshotURL is a short-lived
// presigned link to the archived frame, empty when no screenshot was stored.
type FlagDetail struct {
	ID            string    `json:"id"`
	FlagType      string    `json:"flag_type"`
	Confidence    float64   `json:"confidence"`
	Source        string    `json:"source"`
	Details       string    `json:"details"`
	CreatedAt     time.Time `json:"created_at"`
	ScreenshotURL string    `json:"screenshot_url,omitempty"`
}

type FlagsResponse struct {
	SessionID string       `json:"session_id"`
	Status    string       `json:"status"`
	Flags     []FlagDetail `json:"flags"`
}

// DetectRequest optionally carries an explicit image; when absent the
// detection runs on the session's latest webcam frame.
type DetectRequest struct {
	ImageBase64 string `json:"image_base64" validate:"omitempty"`
}

type DetectResponse struct {
	Detections []entity.Detection `json:"detections"`
}
