package httpapi

import (
	"time"

	"github.com/MrEthical07/voicegrant/internal/logging"
	"github.com/labstack/echo/v4"
)

// corsHeaders sets the same three headers on every response, preflight and
// errors included.
func corsHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set(echo.HeaderAccessControlAllowOrigin, "*")
		h.Set(echo.HeaderAccessControlAllowMethods, "POST, OPTIONS")
		h.Set(echo.HeaderAccessControlAllowHeaders, echo.HeaderContentType)
		return next(c)
	}
}

// requestLogger records one line per request. Bodies and tokens are never
// logged.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		res := c.Response()
		logger := logging.WithTrace(req.Context(), s.logger)
		event := logger.Info()
		if res.Status >= 500 {
			event = logger.Warn()
		}
		event.
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", res.Status).
			Dur("latency", time.Since(start)).
			Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
			Msg("request")

		return nil
	}
}
