package proctorService

import (
	proctorRepository "ProctorEngine/internal/api/proctor/repository"
	"ProctorEngine/internal/entity"
	"ProctorEngine/pkg/gemini"
	openaiPkg "ProctorEngine/pkg/openai"
	"ProctorEngine/pkg/s3"
	"ProctorEngine/pkg/utils"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	sustainedAwayDuration = 5 * time.Second
	objectAlarmThreshold  = 0.6
	objectAlarmCooldown   = 10 * time.Second
	spotCheckMinInterval  = 180 * time.Second
	spotCheckMaxInterval  = 300 * time.Second
)

// suspiciousClasses are the detected objects that justify burning a vision
// model call for confirmation.
var suspiciousClasses = map[string]bool{
	"mobile_phone":     true,
	"book":             true,
	"notes":            true,
	"earphone":         true,
	"extra_person":     true,
	"secondary_screen": true,
}

const visionPrompt = `You are reviewing a single webcam frame from a remote job interview.
Decide whether the candidate is violating interview integrity rules: another person present,
a phone or second device in use, written notes or books visible, earphones worn, or the
candidate clearly reading from somewhere off-screen.
Respond with JSON only: {"violation": boolean, "reason": string, "confidence": number between 0 and 1, "flag_type": string}.
Use an empty flag_type when there is no violation.`

// escalator owns deep-analysis escalation for one session: when a trigger
// fires it sends the current frame through the vision model chain, parses the
// verdict, and on a confirmed violation persists a flag with the screenshot
// archived to object storage. At most one analysis runs at a time; triggers
// that arrive mid-flight are dropped, not queued.
type escalator struct {
	log      *logrus.Logger
	gemini   gemini.IGemini
	vision   openaiPkg.IVision
	repo     proctorRepository.Repository
	s3Client s3.ItfS3
	utils    utils.IUtils

	now func() time.Time

	mu              sync.Mutex
	inFlight        bool
	lastObjectAlarm time.Time
	lastResult      *entity.VisionAnalysisResult
}

func newEscalator(
	log *logrus.Logger,
	geminiClient gemini.IGemini,
	vision openaiPkg.IVision,
	repo proctorRepository.Repository,
	s3Client s3.ItfS3,
	utilsPkg utils.IUtils,
	now func() time.Time,
) *escalator {
	return &escalator{
		log:      log,
		gemini:   geminiClient,
		vision:   vision,
		repo:     repo,
		s3Client: s3Client,
		utils:    utilsPkg,
		now:      now,
	}
}

// ShouldAlarmOnObjects reports whether a detection batch warrants escalation:
// any suspicious class at high confidence, rate-limited by a cooldown so one
// phone on the desk does not trigger an analysis every detection cycle.
func (e *escalator) ShouldAlarmOnObjects(detections []entity.Detection) (entity.Detection, bool) {
	var hit entity.Detection
	found := false
	for _, d := range detections {
		if suspiciousClasses[d.Class] && d.Confidence >= objectAlarmThreshold {
			if !found || d.Confidence > hit.Confidence {
				hit = d
				found = true
			}
		}
	}
	if !found {
		return entity.Detection{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.now().Sub(e.lastObjectAlarm) < objectAlarmCooldown {
		return entity.Detection{}, false
	}
	e.lastObjectAlarm = e.now()
	return hit, true
}

// nextSpotCheckDelay draws the interval to the next random spot check.
func nextSpotCheckDelay() time.Duration {
	spread := spotCheckMaxInterval - spotCheckMinInterval
	return spotCheckMinInterval + time.Duration(rand.Int63n(int64(spread)))
}

// Analyze runs the deep analysis for one trigger. Returns false without doing
// anything when another analysis is already in flight.
func (e *escalator) Analyze(ctx context.Context, sessionID string, frame []byte, trigger string) bool {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return false
	}
	e.inFlight = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	encoded := base64.StdEncoding.EncodeToString(frame)

	raw, source, err := e.analyzeWithFallback(ctx, encoded)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"trigger":    trigger,
			"error":      err.Error(),
		}).Warn("Deep analysis failed")
		return true
	}

	result, err := parseVisionVerdict(raw)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"trigger":    trigger,
			"error":      err.Error(),
		}).Warn("Unparseable vision verdict")
		return true
	}

	e.mu.Lock()
	e.lastResult = &result
	e.mu.Unlock()

	if !result.Violation {
		return true
	}

	e.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"trigger":    trigger,
		"flag_type":  result.FlagType,
		"confidence": result.Confidence,
	}).Warn("Vision model confirmed violation")

	if err := e.persistFlag(ctx, sessionID, frame, trigger, source, result); err != nil {
		e.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		}).Error("Failed to persist proctoring flag")
	}

	return true
}

// InFlight reports whether an analysis is currently running; spot checks skip
// their slot instead of piling up behind a slow model call.
func (e *escalator) InFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

func (e *escalator) LastResult() *entity.VisionAnalysisResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastResult == nil {
		return nil
	}
	out := *e.lastResult
	return &out
}

// analyzeWithFallback tries Gemini first and falls back to the OpenAI-style
// vision endpoint when Gemini is unconfigured or errors.
func (e *escalator) analyzeWithFallback(ctx context.Context, base64Image string) (string, string, error) {
	if e.gemini != nil {
		raw, err := e.gemini.AnalyzeImage(ctx, base64Image, visionPrompt)
		if err == nil {
			return raw, "gemini", nil
		}
		e.log.WithField("error", err.Error()).Debug("Gemini analysis failed, trying fallback")
	}

	if e.vision != nil {
		raw, err := e.vision.AnalyzeImage(ctx, base64Image, visionPrompt)
		if err == nil {
			return raw, "openai", nil
		}
		return "", "", err
	}

	return "", "", errors.New("no vision model configured")
}

// parseVisionVerdict extracts the JSON object from a model reply that may be
// wrapped in markdown fences or prose.
func parseVisionVerdict(raw string) (entity.VisionAnalysisResult, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return entity.VisionAnalysisResult{}, fmt.Errorf("no JSON object in reply: %q", raw)
	}

	var result entity.VisionAnalysisResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err != nil {
		return entity.VisionAnalysisResult{}, err
	}
	return result, nil
}

func (e *escalator) persistFlag(ctx context.Context, sessionID string, frame []byte, trigger, source string, result entity.VisionAnalysisResult) error {
	flagID, err := e.utils.NewULIDFromTimestamp(e.now())
	if err != nil {
		return err
	}

	details := result.Reason
	if trigger != "" {
		details = fmt.Sprintf("[%s] %s", trigger, result.Reason)
	}

	var archiveKey string
	if e.s3Client != nil {
		key := fmt.Sprintf("sessions/%s/flags/%s.jpg", sessionID, flagID)
		if _, err := e.s3Client.UploadBytes(key, frame, "image/jpeg"); err != nil {
			e.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"error":      err.Error(),
			}).Warn("Failed to archive flag screenshot")
		} else {
			archiveKey = key
		}
	}

	flagType := result.FlagType
	if flagType == "" {
		flagType = trigger
	}

	client, err := e.repo.NewClient(false)
	if err != nil {
		return err
	}

	if err := client.Flags.CreateFlag(ctx, entity.ProctorFlag{
		ID:         flagID,
		SessionID:  sessionID,
		FlagType:   flagType,
		Confidence: result.Confidence,
		Source:     source,
		Details:    details,
		CreatedAt:  e.now(),
	}); err != nil {
		// Don't leave a screenshot behind when its flag row never landed.
		if archiveKey != "" {
			if delErr := e.s3Client.DeleteFile(archiveKey); delErr != nil {
				e.log.WithFields(logrus.Fields{
					"session_id": sessionID,
					"key":        archiveKey,
					"error":      delErr.Error(),
				}).Warn("Failed to remove orphaned flag screenshot")
			}
		}
		return err
	}
	return nil
}
