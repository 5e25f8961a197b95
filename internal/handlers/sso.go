package handlers

import (
	"errors"
	"net/url"
	"time"

	"github.com/bookclub/backend/internal/services"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const oauthNonceCookie = "bookclub_oauth_nonce"

type SSOHandler struct {
	providers    *services.OAuthProviderService
	auth         *services.AuthService
	frontendURL  string
	autoRegister bool
	secureCookie bool
}

func NewSSOHandler(providers *services.OAuthProviderService, auth *services.AuthService, frontendURL string, autoRegister bool) *SSOHandler {
	u, err := url.Parse(frontendURL)
	return &SSOHandler{
		providers:    providers,
		auth:         auth,
		frontendURL:  frontendURL,
		autoRegister: autoRegister,
		secureCookie: err == nil && u.Scheme == "https",
	}
}

func (h *SSOHandler) ListProviders(c *fiber.Ctx) error {
	providers := make([]fiber.Map, 0)
	for _, kind := range h.providers.Enabled() {
		providers = append(providers, fiber.Map{
			"name":        kind.String(),
			"displayName": kind.DisplayName(),
			"type":        "oauth",
		})
	}
	return utils.Success(c, fiber.StatusOK, providers)
}

// GetLoginRedirect returns the provider's consent URL. The state nonce is
// pinned to the browser with a short-lived cookie.
func (h *SSOHandler) GetLoginRedirect(c *fiber.Ctx) error {
	kind, err := services.ParseProviderKind(c.Params("provider"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	state, err := h.providers.GenerateState(kind)
	if err != nil {
		logger.Error("oauth_state_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to start sign in")
	}
	authURL, err := h.providers.AuthCodeURL(kind, state.Encode())
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	c.Cookie(&fiber.Cookie{
		Name:     oauthNonceCookie,
		Value:    state.Nonce,
		Path:     "/api/auth/sso",
		Expires:  state.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": authURL})
}

func (h *SSOHandler) failRedirect(c *fiber.Ctx, message string) error {
	return c.Redirect(h.frontendURL + "/login?error=" + url.QueryEscape(message))
}

func (h *SSOHandler) HandleOAuthCallback(c *fiber.Ctx) error {
	kind, err := services.ParseProviderKind(c.Params("provider"))
	if err != nil {
		return h.failRedirect(c, err.Error())
	}
	if providerErr := c.Query("error"); providerErr != "" {
		return h.failRedirect(c, providerErr)
	}

	code := c.Query("code")
	if code == "" {
		return h.failRedirect(c, "authorization code is required")
	}

	nonce := c.Cookies(oauthNonceCookie)
	c.ClearCookie(oauthNonceCookie)
	if err := services.CheckState(c.Query("state"), kind, nonce, time.Now()); err != nil {
		logger.Warn("oauth_state_rejected", map[string]interface{}{
			"provider": kind.String(),
			"ip":       c.IP(),
			"error":    err.Error(),
		})
		return h.failRedirect(c, "sign in expired, please try again")
	}

	profile, err := h.providers.Resolve(c.UserContext(), kind, code)
	if err != nil {
		return h.failRedirect(c, err.Error())
	}

	result, err := h.auth.LoginExternal(c.UserContext(), profile, h.autoRegister)
	if err != nil {
		message := "sign in failed"
		var typed *services.Error
		if errors.As(err, &typed) {
			message = typed.PublicMessage()
		}
		return h.failRedirect(c, message)
	}

	fragment := url.Values{}
	fragment.Set("accessToken", result.AccessToken)
	fragment.Set("refreshToken", result.RefreshToken)
	return c.Redirect(h.frontendURL + "/auth/callback#" + fragment.Encode())
}
