package handlers

import (
	"strings"

	"github.com/bookclub/backend/internal/middleware"
	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/services"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type RequestsHandler struct {
	requests *services.MembershipRequestService
}

func NewRequestsHandler(requests *services.MembershipRequestService) *RequestsHandler {
	return &RequestsHandler{requests: requests}
}

type submitRequestBody struct {
	Message string `json:"message"`
}

func (h *RequestsHandler) Submit(c *fiber.Ctx) error {
	var req submitRequestBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	request, err := h.requests.Submit(c.UserContext(), middleware.GetCurrentReader(c), clubName(c), req.Message)
	if err != nil {
		return respondError(c, "membership_request_submit_failed", err)
	}
	return utils.Success(c, fiber.StatusCreated, request)
}

func (h *RequestsHandler) ListOpen(c *fiber.Ctx) error {
	p, err := utils.ParsePagination(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	page, err := h.requests.ListOpen(c.UserContext(), middleware.GetCurrentReader(c), clubName(c), p.Page, p.Limit)
	if err != nil {
		return respondError(c, "membership_request_list_failed", err)
	}
	return paginated(c, page)
}

func (h *RequestsHandler) Pending(c *fiber.Ctx) error {
	pending, err := h.requests.HasPendingRequest(c.UserContext(), middleware.GetCurrentReader(c), clubName(c))
	if err != nil {
		return respondError(c, "membership_request_pending_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"pending": pending})
}

type reviewRequestBody struct {
	Decision string `json:"decision"`
}

func parseDecision(value string) (models.RequestStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "approve", "approved":
		return models.RequestApproved, true
	case "decline", "declined":
		return models.RequestDeclined, true
	default:
		return "", false
	}
}

func (h *RequestsHandler) Review(c *fiber.Ctx) error {
	requestID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request id")
	}

	var req reviewRequestBody
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	decision, ok := parseDecision(req.Decision)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "decision must be approve or decline")
	}

	request, err := h.requests.Review(c.UserContext(), middleware.GetCurrentReader(c), clubName(c), requestID, decision)
	if err != nil {
		return respondError(c, "membership_request_review_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, request)
}
