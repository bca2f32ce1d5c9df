package config

import (
	"ProctorEngine/database/postgres"
	proctorHandler "ProctorEngine/internal/api/proctor/handler"
	proctorRepository "ProctorEngine/internal/api/proctor/repository"
	proctorService "ProctorEngine/internal/api/proctor/service"
	"ProctorEngine/internal/middleware"
	"ProctorEngine/pkg/gemini"
	"ProctorEngine/pkg/inference"
	openaiPkg "ProctorEngine/pkg/openai"
	"ProctorEngine/pkg/redis"
	"ProctorEngine/pkg/s3"
	"ProctorEngine/pkg/smtp"
	"ProctorEngine/pkg/utils"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	db           *sqlx.DB
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	redisServer  redis.IRedis
	smtpMailer   smtp.ItfSmtp
	geminiClient gemini.IGemini
	visionClient openaiPkg.IVision
	s3Client     s3.ItfS3
	newInference func() inference.IInference

	proctorServices proctorService.IProctorService
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.newInference == nil {
		server.newInference = inference.New
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithSMTPMailer(smtpMailer smtp.ItfSmtp) ServerOption {
	return func(s *Server) error {
		s.smtpMailer = smtpMailer
		return nil
	}
}

func WithInferenceFactory(factory func() inference.IInference) ServerOption {
	return func(s *Server) error {
		s.newInference = factory
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithGeminiClient() ServerOption {
	return func(s *Server) error {
		client, err := gemini.NewGeminiClient()
		if err != nil {
			// Gemini is the primary vision model but the engine can run on
			// the fallback alone.
			if s.log != nil {
				s.log.Warnf("Gemini client not available: %v", err)
			}
			return nil
		}
		s.geminiClient = client
		return nil
	}
}

func WithVisionFallback() ServerOption {
	return func(s *Server) error {
		s.visionClient = openaiPkg.NewVision()
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	proctorRepo := proctorRepository.New(s.db, s.log)
	s.proctorServices = proctorService.New(
		s.log,
		proctorRepo,
		s.redisServer,
		s.geminiClient,
		s.visionClient,
		s.s3Client,
		s.smtpMailer,
		s.utils,
		s.newInference,
	)
	proctorHandlers := proctorHandler.New(s.log, s.validator, s.middleware, s.proctorServices, s.utils)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, proctorHandlers)
}

func (s *Server) Run() error {
	router := s.engine.Group("/api/v1")
	s.engine.Use(s.middleware.NewRequestIDMiddleware())

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops the live proctoring sessions and the HTTP listener.
func (s *Server) Shutdown() {
	if s.proctorServices != nil {
		s.proctorServices.Shutdown()
	}
	if s.geminiClient != nil {
		s.geminiClient.Close()
	}
	if err := s.engine.Shutdown(); err != nil {
		s.log.Errorf("Error shutting down fiber: %v", err)
	}
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
