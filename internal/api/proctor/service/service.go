package proctorService

import (
	"ProctorEngine/internal/api/proctor"
	proctorRepository "ProctorEngine/internal/api/proctor/repository"
	"ProctorEngine/internal/entity"
	"ProctorEngine/pkg/gemini"
	"ProctorEngine/pkg/inference"
	openaiPkg "ProctorEngine/pkg/openai"
	"ProctorEngine/pkg/redis"
	"ProctorEngine/pkg/s3"
	"ProctorEngine/pkg/smtp"
	"ProctorEngine/pkg/utils"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type IProctorService interface {
	StartSession(ctx context.Context, userID string, req proctor.StartSessionRequest) (proctor.StartSessionResponse, error)
	StopSession(ctx context.Context, sessionID string) error
	GetStats(ctx context.Context, sessionID string) (proctor.StatsResponse, error)
	GetViolations(ctx context.Context, sessionID string) (proctor.ViolationsResponse, error)
	GetFlags(ctx context.Context, sessionID string) (proctor.FlagsResponse, error)
	GetScreenshot(ctx context.Context, sessionID string) (proctor.ScreenshotResponse, error)
	ReportViolation(ctx context.Context, sessionID string, req proctor.ReportViolationRequest) error
	Detect(ctx context.Context, sessionID string, req proctor.DetectRequest) (proctor.DetectResponse, error)

	PushFrame(sessionID string, frame []byte) error
	PushAudio(sessionID string, chunk []byte) error
	Subscribe(sessionID string) (<-chan entity.Violation, func(), error)

	Shutdown()
}

type proctorService struct {
	log          *logrus.Logger
	repo         proctorRepository.Repository
	redisServer  redis.IRedis
	gemini       gemini.IGemini
	vision       openaiPkg.IVision
	s3Client     s3.ItfS3
	mailer       smtp.ItfSmtp
	utils        utils.IUtils
	newInference func() inference.IInference

	detector *objectEngine

	mu          sync.RWMutex
	sessions    map[string]*Session
	byInterview map[string]string

	now func() time.Time
}

func New(
	log *logrus.Logger,
	repo proctorRepository.Repository,
	redisServer redis.IRedis,
	geminiClient gemini.IGemini,
	vision openaiPkg.IVision,
	s3Client s3.ItfS3,
	mailer smtp.ItfSmtp,
	utilsPkg utils.IUtils,
	newInference func() inference.IInference,
) IProctorService {
	return &proctorService{
		log:          log,
		repo:         repo,
		redisServer:  redisServer,
		gemini:       geminiClient,
		vision:       vision,
		s3Client:     s3Client,
		mailer:       mailer,
		utils:        utilsPkg,
		newInference: newInference,
		detector:     newObjectEngine(log, newInference()),
		sessions:     make(map[string]*Session),
		byInterview:  make(map[string]string),
		now:          time.Now,
	}
}

func (s *proctorService) getSession(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

// Shutdown stops every live session without completing its database record,
// used on server teardown.
func (s *proctorService) Shutdown() {
	s.mu.Lock()
	live := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		live = append(live, session)
	}
	s.sessions = make(map[string]*Session)
	s.byInterview = make(map[string]string)
	s.mu.Unlock()

	for _, session := range live {
		session.stop()
	}
	s.detector.Close()
}
