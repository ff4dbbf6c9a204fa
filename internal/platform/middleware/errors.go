package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/asilo/asilo/internal/platform/apierr"
)

type errorBody struct {
	Error string `json:"error"`
}

// StatusOf is the status the error handler will answer with for err.
func StatusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return apierr.Status(err)
}

func messageOf(err error, status int) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok && msg != "" {
			return msg
		}
		return http.StatusText(he.Code)
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return MsgBodyTooLarge
	}
	if status >= http.StatusInternalServerError {
		return apierr.MsgInternal
	}
	return apierr.Message(err)
}

// ErrorHandler renders every failure as {"error": "<message>"}. Server-side
// failures are logged with the request id and answered with a generic
// message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := StatusOf(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, errorBody{Error: messageOf(err, status)})
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}
