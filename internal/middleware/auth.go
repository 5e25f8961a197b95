package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/services"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const currentReaderKey = "currentReader"

// CallerResolver is implemented by services.AuthService.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, sessionToken string) (*models.Reader, error)
}

type AuthMiddleware struct {
	resolver CallerResolver
}

func NewAuthMiddleware(resolver CallerResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("jwt_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "missing authorization header")
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader || tokenString == "" {
		logger.Warn("jwt_invalid_format", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid authorization format")
	}

	reader, err := a.resolver.ResolveCaller(c.UserContext(), tokenString)
	if err != nil {
		var typed *services.Error
		if errors.As(err, &typed) && typed.Kind == services.KindTransient {
			logger.Error("jwt_caller_lookup_failed", err, map[string]interface{}{
				"path": c.Path(),
			})
			return utils.Error(c, fiber.StatusServiceUnavailable, typed.PublicMessage())
		}

		logger.Warn("jwt_validation_failed", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		message := "invalid or expired token"
		if typed != nil {
			message = typed.PublicMessage()
		}
		return utils.Error(c, fiber.StatusUnauthorized, message)
	}

	c.Locals(currentReaderKey, reader)
	c.Locals(logger.ReaderIDKey, reader.ID.String())
	return c.Next()
}

func GetCurrentReader(c *fiber.Ctx) *models.Reader {
	reader, ok := c.Locals(currentReaderKey).(*models.Reader)
	if !ok {
		return nil
	}
	return reader
}
