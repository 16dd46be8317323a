package handler

import (
	"errors"
	"net/http"

	"gowa-broadcast/internal/service"

	"github.com/labstack/echo/v4"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /login
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if req.Username == "" || req.Password == "" {
		return ErrorResponse(c, http.StatusBadRequest, "Username and password are required", "VALIDATION_ERROR", "")
	}

	token, expires, err := h.Auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		h.Log.Warn().Str("username", req.Username).Str("ip", c.RealIP()).Msg("failed login")
		return ErrorResponse(c, http.StatusUnauthorized, "Invalid username or password", "INVALID_CREDENTIALS", "")
	case errors.Is(err, service.ErrLoginDisabled):
		return ErrorResponse(c, http.StatusServiceUnavailable, "Login is not configured", "LOGIN_DISABLED", err.Error())
	case err != nil:
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to issue token", "TOKEN_ERROR", err.Error())
	}

	return SuccessResponse(c, http.StatusOK, "Login successful", map[string]any{
		"accessToken": token,
		"tokenType":   "Bearer",
		"expiresAt":   expires.UTC(),
	})
}
