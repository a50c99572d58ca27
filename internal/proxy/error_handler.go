package proxy

import (
	"errors"
	"net/http"

	"github.com/codearena/portal-gateway/internal/classify"
	"github.com/labstack/echo/v4"
)

type errorPayload struct {
	Kind    classify.Kind `json:"kind"`
	Message string        `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var kindStatus = map[classify.Kind]int{
	classify.Network:      http.StatusBadGateway,
	classify.Timeout:      http.StatusGatewayTimeout,
	classify.Cancelled:    http.StatusRequestTimeout,
	classify.Unauthorized: http.StatusUnauthorized,
	classify.Forbidden:    http.StatusForbidden,
	classify.NotFound:     http.StatusNotFound,
	classify.RateLimited:  http.StatusTooManyRequests,
	classify.ServerError:  http.StatusBadGateway,
	classify.ClientError:  http.StatusBadRequest,
	classify.Unknown:      http.StatusInternalServerError,
}

// ErrorHandler renders classified pipeline failures as a JSON payload with
// only the human-safe message, everything else falls through to echo's
// default handling.
func ErrorHandler() echo.HTTPErrorHandler {
	defaultHandler := echo.New().DefaultHTTPErrorHandler
	return func(err error, c echo.Context) {
		var apiErr *classify.APIError
		if !errors.As(err, &apiErr) {
			defaultHandler(err, c)
			return
		}
		if c.Response().Committed {
			return
		}
		status, found := kindStatus[apiErr.Kind]
		if !found {
			status = http.StatusInternalServerError
		}
		c.JSON(status, errorResponse{Error: errorPayload{Kind: apiErr.Kind, Message: apiErr.Message}})
	}
}
