package proctorService

import (
	"ProctorEngine/internal/api/proctor"
	"ProctorEngine/internal/entity"
	contextPkg "ProctorEngine/pkg/context"
	"ProctorEngine/pkg/inference"
	"ProctorEngine/pkg/media"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const statsCacheTTL = 1 * time.Hour

func (s *proctorService) StartSession(ctx context.Context, userID string, req proctor.StartSessionRequest) (proctor.StartSessionResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	s.mu.RLock()
	_, exists := s.byInterview[req.InterviewID]
	s.mu.RUnlock()
	if exists {
		return proctor.StartSessionResponse{}, proctor.ErrSessionAlreadyActive
	}

	landmarker := s.newInference()
	if err := landmarker.Probe(ctx, inference.FaceLandmarker); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Face landmark model unreachable")
		return proctor.StartSessionResponse{}, proctor.ErrProctorUnavailable
	}

	sessionID, err := s.utils.NewULIDFromTimestamp(s.now())
	if err != nil {
		return proctor.StartSessionResponse{}, err
	}

	record := entity.ProctorSession{
		ID:          sessionID,
		InterviewID: req.InterviewID,
		UserID:      userID,
		Status:      entity.SessionActive,
		StartTime:   s.now(),
	}

	client, err := s.repo.NewClient(false)
	if err != nil {
		return proctor.StartSessionResponse{}, err
	}
	if err := client.Sessions.CreateSession(ctx, record); err != nil {
		return proctor.StartSessionResponse{}, err
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	session := &Session{
		ID:          sessionID,
		InterviewID: req.InterviewID,
		UserID:      userID,
		ReportEmail: req.ReportEmail,
		StartTime:   record.StartTime,
		log:         s.log,
		frames:      media.NewFrameBuffer(frameStaleness),
		audio:       media.NewSampleBuffer(audioRingCapacity),
		faces:       newFaceMonitor(s.now),
		audioMon:    newAudioMonitor(),
		escalator:   newEscalator(s.log, s.gemini, s.vision, s.repo, s.s3Client, s.utils, s.now),
		detector:    s.detector,
		landmarker:  landmarker,
		ctx:         sessionCtx,
		cancel:      cancel,
		subscribers: make(map[chan entity.Violation]struct{}),
	}
	session.monitor = newMonitor(s.now, func(violation entity.Violation, stats entity.ProctorStats) {
		session.broadcast(violation)

		go func() {
			pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pubCancel()
			s.redisServer.PublishViolation(pubCtx, sessionID, violation)
			s.redisServer.SetSessionStats(pubCtx, sessionID, stats, statsCacheTTL)
			s.persistViolationFlag(pubCtx, sessionID, violation)
		}()
	})

	s.mu.Lock()
	if _, raced := s.byInterview[req.InterviewID]; raced {
		s.mu.Unlock()
		cancel()
		landmarker.CloseConnections()
		return proctor.StartSessionResponse{}, proctor.ErrSessionAlreadyActive
	}
	s.sessions[sessionID] = session
	s.byInterview[req.InterviewID] = sessionID
	s.mu.Unlock()

	go func() {
		loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer loadCancel()
		s.detector.EnsureLoaded(loadCtx)
	}()

	session.run()

	s.log.WithFields(logrus.Fields{
		"request_id":   requestID,
		"session_id":   sessionID,
		"interview_id": req.InterviewID,
	}).Info("Proctoring session started")

	return proctor.StartSessionResponse{
		SessionID:    sessionID,
		Status:       string(entity.SessionActive),
		ObjectEngine: s.detector.State(),
	}, nil
}

// persistViolationFlag records an accepted violation in the durable flag
// trail alongside the escalation-confirmed ones.
func (s *proctorService) persistViolationFlag(ctx context.Context, sessionID string, violation entity.Violation) {
	flagID, err := s.utils.NewULIDFromTimestamp(violation.Timestamp)
	if err != nil {
		return
	}

	client, err := s.repo.NewClient(false)
	if err != nil {
		return
	}

	if err := client.Flags.CreateFlag(ctx, entity.ProctorFlag{
		ID:         flagID,
		SessionID:  sessionID,
		FlagType:   string(violation.Type),
		Confidence: 1,
		Source:     "monitor",
		Details:    violation.Message,
		CreatedAt:  violation.Timestamp,
	}); err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		}).Error("Failed to persist violation flag")
	}
}

func (s *proctorService) StopSession(ctx context.Context, sessionID string) error {
	requestID := contextPkg.GetRequestID(ctx)

	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
		delete(s.byInterview, session.InterviewID)
	}
	s.mu.Unlock()

	if !ok {
		return proctor.ErrSessionNotFound
	}

	session.stop()

	stats := session.monitor.Stats()
	violations := session.monitor.Violations()

	client, err := s.repo.NewClient(false)
	if err != nil {
		return err
	}
	if err := client.Sessions.CompleteSession(ctx, sessionID); err != nil {
		return err
	}

	s.redisServer.SetSessionStats(ctx, sessionID, stats, statsCacheTTL)

	if session.ReportEmail != "" {
		go func() {
			if err := s.mailer.SendSessionReport(session.ReportEmail, sessionID, stats, violations); err != nil {
				s.log.WithFields(logrus.Fields{
					"session_id": sessionID,
					"error":      err.Error(),
				}).Error("Failed to send session report email")
			}
		}()
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"session_id":  sessionID,
		"trust_score": stats.TrustScore,
	}).Info("Proctoring session stopped")

	return nil
}

func (s *proctorService) GetStats(ctx context.Context, sessionID string) (proctor.StatsResponse, error) {
	if session, ok := s.getSession(sessionID); ok {
		return proctor.StatsResponse{
			SessionID:        sessionID,
			Stats:            session.monitor.Stats(),
			FaceCount:        session.faces.FaceCount(),
			IsLookingAway:    session.faces.IsLookingAway(),
			IsNoiseDetected:  session.audioMon.IsNoisy(),
			CurrentWarning:   session.monitor.Warning(),
			ObjectEngine:     session.detector.State(),
			LastVisionResult: session.escalator.LastResult(),
		}, nil
	}

	// Completed sessions keep their final snapshot in the cache for a while.
	stats, err := s.redisServer.GetSessionStats(ctx, sessionID)
	if err != nil {
		return proctor.StatsResponse{}, proctor.ErrSessionNotFound
	}

	return proctor.StatsResponse{
		SessionID: sessionID,
		Stats:     stats,
	}, nil
}

func (s *proctorService) GetViolations(ctx context.Context, sessionID string) (proctor.ViolationsResponse, error) {
	session, ok := s.getSession(sessionID)
	if !ok {
		return proctor.ViolationsResponse{}, proctor.ErrSessionNotFound
	}

	return proctor.ViolationsResponse{
		SessionID:  sessionID,
		Violations: session.monitor.Violations(),
	}, nil
}

// GetFlags returns the durable flag trail for a session, live or completed,
// with presigned screenshot links where an archive exists.
func (s *proctorService) GetFlags(ctx context.Context, sessionID string) (proctor.FlagsResponse, error) {
	client, err := s.repo.NewClient(false)
	if err != nil {
		return proctor.FlagsResponse{}, err
	}

	record, err := client.Sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		return proctor.FlagsResponse{}, err
	}

	flags, err := client.Flags.GetFlagsBySessionID(ctx, sessionID)
	if err != nil {
		return proctor.FlagsResponse{}, err
	}

	out := make([]proctor.FlagDetail, 0, len(flags))
	for _, flag := range flags {
		detail := proctor.FlagDetail{
			ID:         flag.ID,
			FlagType:   flag.FlagType,
			Confidence: flag.Confidence,
			Source:     flag.Source,
			Details:    flag.Details,
			CreatedAt:  flag.CreatedAt,
		}

		// Monitor-sourced flags carry no screenshot; only escalations do.
		if s.s3Client != nil && flag.Source != "monitor" {
			key := fmt.Sprintf("sessions/%s/flags/%s.jpg", sessionID, flag.ID)
			url, err := s.s3Client.PresignUrl(key)
			if err != nil {
				s.log.WithFields(logrus.Fields{
					"session_id": sessionID,
					"flag_id":    flag.ID,
					"error":      err.Error(),
				}).Warn("Failed to presign flag screenshot")
			} else {
				detail.ScreenshotURL = url
			}
		}

		out = append(out, detail)
	}

	return proctor.FlagsResponse{
		SessionID: sessionID,
		Status:    string(record.Status),
		Flags:     out,
	}, nil
}

func (s *proctorService) GetScreenshot(ctx context.Context, sessionID string) (proctor.ScreenshotResponse, error) {
	session, ok := s.getSession(sessionID)
	if !ok {
		return proctor.ScreenshotResponse{}, proctor.ErrSessionNotFound
	}

	frame, ok := session.frames.Latest()
	if !ok {
		return proctor.ScreenshotResponse{}, proctor.ErrFrameNotReady
	}

	return proctor.ScreenshotResponse{
		ImageBase64: base64.StdEncoding.EncodeToString(frame),
	}, nil
}

func (s *proctorService) ReportViolation(ctx context.Context, sessionID string, req proctor.ReportViolationRequest) error {
	session, ok := s.getSession(sessionID)
	if !ok {
		return proctor.ErrSessionNotFound
	}

	vtype := entity.ViolationType(req.Type)
	if !entity.ClientReportedViolations[vtype] {
		return proctor.ErrInvalidViolationType
	}

	session.monitor.Record(vtype, req.Message)
	return nil
}

func (s *proctorService) Detect(ctx context.Context, sessionID string, req proctor.DetectRequest) (proctor.DetectResponse, error) {
	session, ok := s.getSession(sessionID)
	if !ok {
		return proctor.DetectResponse{}, proctor.ErrSessionNotFound
	}

	var frame []byte
	if req.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return proctor.DetectResponse{}, proctor.ErrBadRequest
		}
		frame = decoded
	} else {
		latest, ok := session.frames.Latest()
		if !ok {
			return proctor.DetectResponse{}, proctor.ErrFrameNotReady
		}
		frame = latest
	}

	if err := s.detector.EnsureLoaded(ctx); err != nil {
		return proctor.DetectResponse{}, proctor.ErrDetectorNotLoaded
	}

	detections, err := s.detector.Detect(frame)
	if err != nil {
		return proctor.DetectResponse{}, err
	}

	return proctor.DetectResponse{Detections: detections}, nil
}

func (s *proctorService) PushFrame(sessionID string, frame []byte) error {
	session, ok := s.getSession(sessionID)
	if !ok {
		return proctor.ErrSessionNotFound
	}
	session.frames.Put(frame)
	return nil
}

func (s *proctorService) PushAudio(sessionID string, chunk []byte) error {
	session, ok := s.getSession(sessionID)
	if !ok {
		return proctor.ErrSessionNotFound
	}
	session.audio.Write(chunk)
	return nil
}

func (s *proctorService) Subscribe(sessionID string) (<-chan entity.Violation, func(), error) {
	session, ok := s.getSession(sessionID)
	if !ok {
		return nil, nil, proctor.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}
