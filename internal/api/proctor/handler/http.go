package proctorHandler

import (
	proctorService "ProctorEngine/internal/api/proctor/service"
	"ProctorEngine/internal/middleware"
	"ProctorEngine/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type ProctorHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	proctorService proctorService.IProctorService
	utils          utils.IUtils
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	ps proctorService.IProctorService,
	utils utils.IUtils,
) *ProctorHandler {
	return &ProctorHandler{
		log:            log,
		validator:      validate,
		middleware:     middleware,
		proctorService: ps,
		utils:          utils,
	}
}

func (h *ProctorHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	sessions := srv.Group("/proctor/sessions")
	sessions.Post("/", h.middleware.NewTokenMiddleware, h.StartSession)
	sessions.Delete("/:session_id", h.middleware.NewTokenMiddleware, h.StopSession)
	sessions.Get("/:session_id/stats", h.middleware.NewTokenMiddleware, h.GetStats)
	sessions.Get("/:session_id/violations", h.middleware.NewTokenMiddleware, h.GetViolations)
	sessions.Get("/:session_id/screenshot", h.middleware.NewTokenMiddleware, h.GetScreenshot)
	sessions.Get("/:session_id/flags", h.middleware.NewTokenMiddleware, h.GetFlags)
	sessions.Post("/:session_id/violations", h.middleware.NewTokenMiddleware, h.ReportViolation)

	sessions.Post("/:session_id/detect", h.middleware.NewRateLimiter, h.middleware.NewTokenMiddleware, h.Detect)

	sessions.Use("/:session_id/video/ws", wsMiddleware)
	sessions.Get("/:session_id/video/ws", websocket.New(h.handleVideoWebSocket))
	sessions.Use("/:session_id/audio/ws", wsMiddleware)
	sessions.Get("/:session_id/audio/ws", websocket.New(h.handleAudioWebSocket))
	sessions.Use("/:session_id/events/ws", wsMiddleware)
	sessions.Get("/:session_id/events/ws", websocket.New(h.handleEventsWebSocket))
}
