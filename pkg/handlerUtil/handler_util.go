package handlerUtil

import (
	"errors"

	"ProctorEngine/internal/api/proctor"
	"ProctorEngine/pkg/log"
	"ProctorEngine/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       path,
			"operation":  operation,
		}).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(fiber.Map{"error": err.Error()})
	}

	// Proctor domain errors
	if errors.Is(err, proctor.ErrSessionNotFound) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Proctoring session not found")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Proctoring session not found",
			"code":    "SESSION_NOT_FOUND",
		})
	}

	if errors.Is(err, proctor.ErrSessionAlreadyActive) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Session already active for interview")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "A proctoring session is already active for this interview",
			"code":    "SESSION_ALREADY_ACTIVE",
		})
	}

	if errors.Is(err, proctor.ErrProctorUnavailable) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Error("Proctoring unavailable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Camera monitoring could not be started. The face analysis service is unreachable.",
			"code":    "PROCTOR_UNAVAILABLE",
		})
	}

	if errors.Is(err, proctor.ErrInvalidViolationType) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Invalid violation type")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Violation type cannot be reported by the client",
			"code":    "INVALID_VIOLATION_TYPE",
		})
	}

	if errors.Is(err, proctor.ErrFrameNotReady) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("No webcam frame available")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "No recent webcam frame available for this session",
			"code":    "FRAME_NOT_READY",
		})
	}

	if errors.Is(err, proctor.ErrDetectorNotLoaded) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Object detector not loaded")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Object detection is not available for this session",
			"code":    "DETECTOR_NOT_LOADED",
		})
	}

	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}).Error("Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "An unexpected error occurred",
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Validation failed: " + err.Error(),
		"code":  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": message,
		"code":  "UNAUTHORIZED",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
