package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type ErrorDetail struct {
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

func SuccessResponse(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func ErrorResponse(c echo.Context, status int, message, code, details string) error {
	return c.JSON(status, Response{
		Success: false,
		Message: message,
		Error:   &ErrorDetail{Code: code, Details: details},
	})
}

// HTTPErrorHandler keeps framework errors in the response envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Internal Server Error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprintf("%v", he.Message)
	}

	errCode := "INTERNAL_ERROR"
	switch code {
	case http.StatusUnauthorized:
		message = "Authentication required. Please login first."
		errCode = "UNAUTHORIZED"
	case http.StatusMethodNotAllowed:
		message = "Method not allowed for this endpoint"
		errCode = "METHOD_NOT_ALLOWED"
	case http.StatusNotFound:
		message = "Endpoint not found"
		errCode = "NOT_FOUND"
	case http.StatusTooManyRequests:
		errCode = "RATE_LIMITED"
	}

	_ = ErrorResponse(c, code, message, errCode, "")
}
