package middleware

import (
	"time"

	"github.com/bookclub/backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := logger.GenerateRequestID()
		c.Locals(logger.RequestIDKey, requestID)
		c.Set("X-Request-ID", requestID)

		err := c.Next()

		statusCode := c.Response().StatusCode()
		readerID := logger.GetReaderIDFromContext(c)

		details := map[string]interface{}{
			"method":        c.Method(),
			"path":          c.Path(),
			"status_code":   statusCode,
			"latency_ms":    time.Since(start).Milliseconds(),
			"user_agent":    c.Get("User-Agent"),
			"ip":            c.IP(),
			"request_body":  logger.GetRequestBodySummary(c),
			"response_body": logger.GetResponseSizeSummary(c),
			"request_id":    requestID,
		}

		switch {
		case readerID != nil && statusCode >= 500:
			logger.ErrorWithUser(*readerID, "http_request", err, details)
		case readerID != nil && statusCode >= 400:
			logger.WarnWithUser(*readerID, "http_request", details)
		case readerID != nil:
			logger.InfoWithUser(*readerID, "http_request", details)
		case statusCode >= 500:
			logger.Error("http_request", err, details)
		case statusCode >= 400:
			logger.Warn("http_request", details)
		default:
			logger.Info("http_request", details)
		}

		return err
	}
}

// SecurityLogger records rejected credentials, denied actions and lookups of
// clubs or members that do not exist.
func SecurityLogger() fiber.Handler {
	reasons := map[int]string{
		fiber.StatusUnauthorized: "unauthenticated",
		fiber.StatusForbidden:    "access_denied",
		fiber.StatusNotFound:     "not_found",
	}

	return func(c *fiber.Ctx) error {
		err := c.Next()

		reason, ok := reasons[c.Response().StatusCode()]
		if !ok {
			return err
		}

		readerID := logger.GetReaderIDFromContext(c)
		details := map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
			"ip":     c.IP(),
			"reason": reason,
		}
		if readerID != nil {
			logger.WarnWithUser(*readerID, reason, details)
		} else {
			logger.Warn(reason+"_anonymous", details)
		}
		return err
	}
}
