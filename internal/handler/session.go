package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/session"

	"github.com/labstack/echo/v4"
)

// GET /api/status
func (h *Handler) GetStatus(c echo.Context) error {
	return SuccessResponse(c, http.StatusOK, "Session status", h.Session.Status())
}

// POST /api/connect
func (h *Handler) Connect(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Minute)
	defer cancel()

	connected, err := h.Session.Connect(ctx)
	if err != nil {
		return sessionError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, connectMessage(connected), map[string]any{
		"connected": connected,
		"status":    h.Session.Status(),
	})
}

// POST /api/reconnect
func (h *Handler) Reconnect(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Minute)
	defer cancel()

	connected, err := h.Session.Reconnect(ctx)
	if err != nil {
		return sessionError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, connectMessage(connected), map[string]any{
		"connected": connected,
		"status":    h.Session.Status(),
	})
}

func connectMessage(connected bool) string {
	if connected {
		return "Connected"
	}
	return "Waiting for QR scan"
}

// POST /api/logout
func (h *Handler) Logout(c echo.Context) error {
	if err := h.Session.Disconnect(c.Request().Context()); err != nil {
		return sessionError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Logged out", h.Session.Status())
}

// GET /api/qrcode
func (h *Handler) GetQR(c echo.Context) error {
	qr, err := h.Session.GetQRCode(c.Request().Context())
	if errors.Is(err, session.ErrNoQRNeeded) {
		return SuccessResponse(c, http.StatusOK, "Already connected", map[string]any{
			"status": "already_connected",
			"qr":     nil,
		})
	}
	if err != nil {
		return sessionError(c, err)
	}

	image, err := helper.QRDataURL(qr, 256)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to render QR code", "QR_RENDER_FAILED", err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Scan the QR code with WhatsApp", map[string]any{
		"qr":    qr,
		"image": image,
	})
}

func sessionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		return ErrorResponse(c, http.StatusConflict, "Session is not connected", "NOT_CONNECTED", "Connect and scan the QR code first")
	case errors.Is(err, session.ErrRetriesExhausted):
		return ErrorResponse(c, http.StatusServiceUnavailable, "Reconnect attempts exhausted", "RETRIES_EXHAUSTED", err.Error())
	case errors.Is(err, session.ErrQRTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(c, http.StatusGatewayTimeout, "Timed out waiting for WhatsApp", "TIMEOUT", err.Error())
	case errors.Is(err, session.ErrQRUnavailable):
		return ErrorResponse(c, http.StatusConflict, "No QR code available", "QR_UNAVAILABLE", err.Error())
	case session.IsAuthInvalid(err):
		return ErrorResponse(c, http.StatusConflict, "Re-scan required", "RESCAN_REQUIRED", err.Error())
	case errors.Is(err, session.ErrClosed):
		return ErrorResponse(c, http.StatusServiceUnavailable, "Server is shutting down", "SHUTTING_DOWN", "")
	default:
		return ErrorResponse(c, http.StatusInternalServerError, "Session error", "SESSION_ERROR", err.Error())
	}
}
