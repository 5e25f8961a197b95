package handlers

import (
	"errors"
	"strings"

	"github.com/bookclub/backend/internal/services"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func statusForError(err error) int {
	switch services.KindOf(err) {
	case services.KindUnauthenticated, services.KindExpiredCredential:
		return fiber.StatusUnauthorized
	case services.KindUnauthorized:
		return fiber.StatusForbidden
	case services.KindGroupNotFound, services.KindMembershipNotFound, services.KindRequestNotFound:
		return fiber.StatusNotFound
	case services.KindBadAction, services.KindPageSizeTooSmall, services.KindPageSizeTooLarge:
		return fiber.StatusBadRequest
	case services.KindTransient:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes the envelope for an engine failure. Untyped errors are
// logged and reported without detail.
func respondError(c *fiber.Ctx, action string, err error) error {
	var typed *services.Error
	if !errors.As(err, &typed) {
		logger.Error(action, err, map[string]interface{}{"path": c.Path()})
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}
	if typed.Kind == services.KindTransient {
		logger.Error(action, err, map[string]interface{}{"path": c.Path()})
	}
	return utils.Error(c, statusForError(err), typed.PublicMessage())
}

func paginated[T any](c *fiber.Ctx, page *services.Page[T]) error {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	return utils.Paginated(c, items, page.Page, page.PageSize, page.Total)
}

func clubName(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Params("name"))
}
