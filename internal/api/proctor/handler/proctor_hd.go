package proctorHandler

import (
	"ProctorEngine/internal/api/proctor"
	"ProctorEngine/internal/entity"
	contextPkg "ProctorEngine/pkg/context"
	"ProctorEngine/pkg/handlerUtil"
	"ProctorEngine/pkg/log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"
)

func (h *ProctorHandler) StartSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 15*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	user, ok := ctx.Locals("user").(entity.UserLoginData)
	if !ok {
		return errHandler.HandleUnauthorized(ctx, requestID, "Missing user credentials")
	}

	var req proctor.StartSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	res, err := h.proctorService.StartSession(c, user.ID, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "start_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id":   requestID,
			"session_id":   res.SessionID,
			"interview_id": req.InterviewID,
		}).Info("Proctoring session created")
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, res)
	}
}

func (h *ProctorHandler) StopSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 15*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	sessionID := ctx.Params("session_id")

	if err := h.proctorService.StopSession(c, sessionID); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "stop_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, fiber.Map{
			"session_id": sessionID,
			"status":     "completed",
		})
	}
}

func (h *ProctorHandler) GetStats(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	res, err := h.proctorService.GetStats(c, ctx.Params("session_id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_stats")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *ProctorHandler) GetViolations(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	res, err := h.proctorService.GetViolations(c, ctx.Params("session_id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_violations")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

// GetFlags serves the durable flag trail, which outlives the in-memory
// session; reviewers pull it after the interview completed.
func (h *ProctorHandler) GetFlags(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	res, err := h.proctorService.GetFlags(c, ctx.Params("session_id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_flags")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *ProctorHandler) GetScreenshot(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	res, err := h.proctorService.GetScreenshot(c, ctx.Params("session_id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_screenshot")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *ProctorHandler) ReportViolation(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req proctor.ReportViolationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.proctorService.ReportViolation(c, ctx.Params("session_id"), req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "report_violation")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusAccepted, nil)
}

func (h *ProctorHandler) Detect(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req proctor.DetectRequest

	file, err := ctx.FormFile("image")
	if err == nil {
		if err := h.utils.ValidateImageFile(file); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
		}

		fileContent, err := file.Open()
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_file")
		}
		defer fileContent.Close()

		req.ImageBase64, err = h.utils.ConvertFileToBase64(fileContent)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "convert_to_base64")
		}
	} else if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
		}

		if err := h.validator.Struct(req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}
	}

	res, err := h.proctorService.Detect(c, ctx.Params("session_id"), req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_objects")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}

// handleVideoWebSocket ingests the candidate's webcam stream. Each binary
// message is one JPEG frame; only the latest matters, so there is no reply
// and no backpressure toward the monitoring loops.
func (h *ProctorHandler) handleVideoWebSocket(c *websocket.Conn) {
	sessionID := c.Params("session_id")
	h.log.WithFields(log.Fields{"session_id": sessionID}).Info("Video stream connected")
	defer h.log.WithFields(log.Fields{"session_id": sessionID}).Info("Video stream disconnected")

	c.SetPingHandler(func(data string) error {
		return c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithFields(log.Fields{
					"session_id": sessionID,
					"error":      err.Error(),
				}).Warn("Video stream read error")
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		if err := h.proctorService.PushFrame(sessionID, message); err != nil {
			c.WriteJSON(map[string]string{"error": err.Error()})
			break
		}
	}
}

// handleAudioWebSocket ingests the candidate's microphone stream as raw
// unsigned 8-bit PCM chunks.
func (h *ProctorHandler) handleAudioWebSocket(c *websocket.Conn) {
	sessionID := c.Params("session_id")
	h.log.WithFields(log.Fields{"session_id": sessionID}).Info("Audio stream connected")
	defer h.log.WithFields(log.Fields{"session_id": sessionID}).Info("Audio stream disconnected")

	c.SetPingHandler(func(data string) error {
		return c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			break
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		if err := h.proctorService.PushAudio(sessionID, message); err != nil {
			c.WriteJSON(map[string]string{"error": err.Error()})
			break
		}
	}
}

// handleEventsWebSocket pushes accepted violations to the interviewer UI as
// they happen.
func (h *ProctorHandler) handleEventsWebSocket(c *websocket.Conn) {
	sessionID := c.Params("session_id")

	events, unsubscribe, err := h.proctorService.Subscribe(sessionID)
	if err != nil {
		c.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer unsubscribe()

	h.log.WithFields(log.Fields{"session_id": sessionID}).Info("Events stream connected")
	defer h.log.WithFields(log.Fields{"session_id": sessionID}).Info("Events stream disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case violation, ok := <-events:
			if !ok {
				c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(5*time.Second))
				return
			}

			if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				return
			}
			if err := c.WriteJSON(violation); err != nil {
				return
			}
		}
	}
}
