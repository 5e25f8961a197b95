package handlers

import (
	"github.com/bookclub/backend/internal/middleware"
	"github.com/bookclub/backend/internal/services"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.auth.Register(c.UserContext(), services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return respondError(c, "register_failed", err)
	}
	return utils.Success(c, fiber.StatusCreated, result)
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Login == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "login and password are required")
	}

	result, err := h.auth.Login(c.UserContext(), req.Login, req.Password)
	if err != nil {
		return respondError(c, "login_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.RefreshToken == "" {
		return utils.Error(c, fiber.StatusBadRequest, "refreshToken is required")
	}

	result, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return respondError(c, "refresh_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, result)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	revoked, err := h.auth.Logout(c.UserContext(), middleware.GetCurrentReader(c))
	if err != nil {
		return respondError(c, "logout_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"revoked": revoked})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	reader := middleware.GetCurrentReader(c)
	if reader == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, reader)
}
