package handlers

import (
	"github.com/bookclub/backend/internal/middleware"
	"github.com/bookclub/backend/internal/services"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type NotificationsHandler struct {
	notifications *services.NotificationService
}

func NewNotificationsHandler(notifications *services.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	p, err := utils.ParsePagination(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	unreadOnly := c.QueryBool("unread", false)

	page, err := h.notifications.List(c.UserContext(), middleware.GetCurrentReader(c), unreadOnly, p.Page, p.Limit)
	if err != nil {
		return respondError(c, "notification_list_failed", err)
	}
	return paginated(c, page)
}

func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	count, err := h.notifications.UnreadCount(c.UserContext(), middleware.GetCurrentReader(c))
	if err != nil {
		return respondError(c, "notification_count_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"count": count})
}

func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid notification id")
	}

	if err := h.notifications.MarkViewed(c.UserContext(), middleware.GetCurrentReader(c), id); err != nil {
		return respondError(c, "notification_mark_read_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"id": id})
}

func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	marked, err := h.notifications.MarkAllViewed(c.UserContext(), middleware.GetCurrentReader(c))
	if err != nil {
		return respondError(c, "notification_mark_all_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"marked": marked})
}
