package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// retryAfterSeconds is advertised on 409 responses.
const retryAfterSeconds = "5"

// ResponseError is the body of every error response.
type ResponseError struct {
	Message string `json:"message"`
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var he *echo.HTTPError
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrAnalysisInProgress):
		return http.StatusConflict
	case common.IsValidation(err), errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(he.Code)
		}
	}

	switch {
	case code >= http.StatusInternalServerError:
		slog.Error("Request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err)
		if code == http.StatusInternalServerError {
			msg = "internal server error"
		}
	case code == http.StatusConflict:
		c.Response().Header().Set("Retry-After", retryAfterSeconds)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ResponseError{Message: msg})
	}
	if err != nil {
		slog.Debug("Failed to write error response", "error", err)
	}
}
