package handlers

import (
	"github.com/bookclub/backend/internal/middleware"
	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/services"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type ClubsHandler struct {
	clubs   *services.ClubService
	members *services.MembershipService
}

func NewClubsHandler(clubs *services.ClubService, members *services.MembershipService) *ClubsHandler {
	return &ClubsHandler{clubs: clubs, members: members}
}

type createClubRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      *bool  `json:"public"`
}

func (h *ClubsHandler) Create(c *fiber.Ctx) error {
	var req createClubRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	public := true
	if req.Public != nil {
		public = *req.Public
	}

	club, err := h.clubs.Create(c.UserContext(), middleware.GetCurrentReader(c), services.CreateClubInput{
		Name:        req.Name,
		Description: req.Description,
		Public:      public,
	})
	if err != nil {
		return respondError(c, "club_create_failed", err)
	}
	return utils.Success(c, fiber.StatusCreated, club)
}

func (h *ClubsHandler) ListPublic(c *fiber.Ctx) error {
	p, err := utils.ParsePagination(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	page, err := h.clubs.ListPublic(c.UserContext(), middleware.GetCurrentReader(c), p.Page, p.Limit)
	if err != nil {
		return respondError(c, "club_list_failed", err)
	}
	return paginated(c, page)
}

func (h *ClubsHandler) ListMine(c *fiber.Ctx) error {
	p, err := utils.ParsePagination(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	page, err := h.members.ListMine(c.UserContext(), middleware.GetCurrentReader(c), p.Page, p.Limit)
	if err != nil {
		return respondError(c, "membership_list_mine_failed", err)
	}
	return paginated(c, page)
}

// Get returns the caller's standing in the club, including for non-members.
func (h *ClubsHandler) Get(c *fiber.Ctx) error {
	view, err := h.members.GetMembership(c.UserContext(), middleware.GetCurrentReader(c), clubName(c))
	if err != nil {
		return respondError(c, "membership_get_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, view)
}

func (h *ClubsHandler) Disband(c *fiber.Ctx) error {
	club, err := h.clubs.Disband(c.UserContext(), middleware.GetCurrentReader(c), clubName(c))
	if err != nil {
		return respondError(c, "club_disband_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, club)
}

func (h *ClubsHandler) Role(c *fiber.Ctx) error {
	role, err := h.members.GetRole(c.UserContext(), middleware.GetCurrentReader(c), clubName(c))
	if err != nil {
		return respondError(c, "membership_role_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"role": role})
}

func (h *ClubsHandler) ListMembers(c *fiber.Ctx) error {
	p, err := utils.ParsePagination(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	page, err := h.members.ListMembers(c.UserContext(), middleware.GetCurrentReader(c), clubName(c), p.Page, p.Limit)
	if err != nil {
		return respondError(c, "membership_list_failed", err)
	}
	return paginated(c, page)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (h *ClubsHandler) UpdateRole(c *fiber.Ctx) error {
	targetID, err := parseUUID(c.Params("readerId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid reader id")
	}

	var req updateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	membership, err := h.members.UpdateRole(c.UserContext(), middleware.GetCurrentReader(c), clubName(c), targetID, role)
	if err != nil {
		return respondError(c, "membership_role_update_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, membership)
}

func (h *ClubsHandler) RemoveMember(c *fiber.Ctx) error {
	targetID, err := parseUUID(c.Params("readerId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid reader id")
	}

	membership, err := h.members.RemoveMembership(c.UserContext(), middleware.GetCurrentReader(c), clubName(c), targetID)
	if err != nil {
		return respondError(c, "membership_remove_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, membership)
}

func (h *ClubsHandler) Leave(c *fiber.Ctx) error {
	membership, err := h.members.Leave(c.UserContext(), middleware.GetCurrentReader(c), clubName(c))
	if err != nil {
		return respondError(c, "membership_leave_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, membership)
}

type transferRequest struct {
	NewOwnerID string `json:"newOwnerId"`
}

func (h *ClubsHandler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	newOwnerID, err := parseUUID(req.NewOwnerID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid newOwnerId")
	}

	ok, err := h.members.TransferOwnership(c.UserContext(), middleware.GetCurrentReader(c), clubName(c), newOwnerID)
	if err != nil {
		return respondError(c, "ownership_transfer_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"transferred": ok})
}
