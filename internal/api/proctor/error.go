package proctor

import (
	"ProctorEngine/pkg/response"
	"net/http"
)

var (
	ErrSessionNotFound      = response.NewError(http.StatusNotFound, "proctoring session not found")
	ErrSessionAlreadyActive = response.NewError(http.StatusConflict, "proctoring session already active")
	ErrProctorUnavailable   = response.NewError(http.StatusServiceUnavailable, "face analysis service unreachable")
	ErrInvalidViolationType = response.NewError(http.StatusBadRequest, "violation type not reportable by client")
	ErrFrameNotReady        = response.NewError(http.StatusConflict, "no recent webcam frame available")
	ErrDetectorNotLoaded    = response.NewError(http.StatusConflict, "object detector not loaded")
	ErrInternalServerError  = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrBadRequest           = response.NewError(http.StatusBadRequest, "bad request")
)
