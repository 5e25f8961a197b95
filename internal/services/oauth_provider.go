package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bookclub/backend/internal/config"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const oauthStateTTL = 10 * time.Minute

// ProviderKind is the closed set of external identity providers.
type ProviderKind int

const (
	ProviderGoogle ProviderKind = iota + 1
	ProviderGitHub
	ProviderOIDC
)

var providerNames = map[ProviderKind]string{
	ProviderGoogle: "google",
	ProviderGitHub: "github",
	ProviderOIDC:   "oidc",
}

var providerDisplayNames = map[ProviderKind]string{
	ProviderGoogle: "Google",
	ProviderGitHub: "GitHub",
	ProviderOIDC:   "OpenID Connect",
}

func (k ProviderKind) String() string {
	if name, ok := providerNames[k]; ok {
		return name
	}
	return "unknown"
}

func (k ProviderKind) DisplayName() string {
	return providerDisplayNames[k]
}

func ParseProviderKind(value string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "google":
		return ProviderGoogle, nil
	case "github":
		return ProviderGitHub, nil
	case "oidc":
		return ProviderOIDC, nil
	default:
		return 0, fmt.Errorf("unknown oauth provider: %s", value)
	}
}

// ExternalProfile is the identity a provider vouched for.
type ExternalProfile struct {
	Provider  ProviderKind
	Subject   string
	Email     string
	Username  string
	FirstName string
	LastName  string
	// EmailVerified is set only when the provider asserts the reader owns Email.
	EmailVerified bool
}

type profileParser func(ctx context.Context, p *oauthProvider, token *oauth2.Token) (*ExternalProfile, error)

// oauthProvider is one enabled provider, fully resolved at startup.
type oauthProvider struct {
	kind        ProviderKind
	config      *oauth2.Config
	userInfoURL string
	emailsURL   string
	oidc        *oidc.Provider
	verifier    *oidc.IDTokenVerifier
	parse       profileParser
}

type OAuthProviderService struct {
	providers map[ProviderKind]*oauthProvider
}

// NewOAuthProviderService resolves every enabled provider. OIDC discovery
// contacts the issuer, so a misconfigured issuer fails startup.
func NewOAuthProviderService(ctx context.Context, cfg config.SSOConfig) (*OAuthProviderService, error) {
	s := &OAuthProviderService{providers: map[ProviderKind]*oauthProvider{}}

	if cfg.Google.Enabled {
		s.providers[ProviderGoogle] = &oauthProvider{
			kind:        ProviderGoogle,
			config:      oauthConfig(cfg.Google, google.Endpoint),
			userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
			parse:       parseGoogleProfile,
		}
	}

	if cfg.GitHub.Enabled {
		s.providers[ProviderGitHub] = &oauthProvider{
			kind:        ProviderGitHub,
			config:      oauthConfig(cfg.GitHub, github.Endpoint),
			userInfoURL: "https://api.github.com/user",
			emailsURL:   "https://api.github.com/user/emails",
			parse:       parseGitHubProfile,
		}
	}

	if cfg.OIDC.Enabled {
		if cfg.OIDC.IssuerURL == "" {
			return nil, errors.New("oidc issuer url is required")
		}
		provider, err := oidc.NewProvider(ctx, cfg.OIDC.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery: %w", err)
		}
		s.providers[ProviderOIDC] = &oauthProvider{
			kind:     ProviderOIDC,
			config:   oauthConfig(cfg.OIDC.OAuthProviderConfig, provider.Endpoint()),
			oidc:     provider,
			verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OIDC.ClientID}),
			parse:    parseOIDCProfile,
		}
	}

	return s, nil
}

func oauthConfig(cfg config.OAuthProviderConfig, endpoint oauth2.Endpoint) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint:     endpoint,
	}
}

// Enabled lists the configured providers in a stable order.
func (s *OAuthProviderService) Enabled() []ProviderKind {
	kinds := make([]ProviderKind, 0, len(s.providers))
	for kind := range s.providers {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (s *OAuthProviderService) provider(kind ProviderKind) (*oauthProvider, error) {
	p, ok := s.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%s oauth is not enabled", kind)
	}
	return p, nil
}

type OAuthState struct {
	Provider  string    `json:"provider"`
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *OAuthProviderService) GenerateState(kind ProviderKind) (*OAuthState, error) {
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, err
	}

	return &OAuthState{
		Provider:  kind.String(),
		Nonce:     base64.RawURLEncoding.EncodeToString(nonceBytes),
		ExpiresAt: time.Now().Add(oauthStateTTL),
	}, nil
}

func (st *OAuthState) Encode() string {
	raw, _ := json.Marshal(st)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// CheckState decodes the state echoed back by the provider and verifies it
// belongs to this login attempt.
func CheckState(encoded string, kind ProviderKind, nonce string, now time.Time) error {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return errors.New("invalid oauth state")
	}
	var state OAuthState
	if err := json.Unmarshal(raw, &state); err != nil {
		return errors.New("invalid oauth state")
	}
	if state.Provider != kind.String() {
		return errors.New("oauth state was issued for another provider")
	}
	if !now.Before(state.ExpiresAt) {
		return errors.New("oauth state expired")
	}
	if nonce == "" || subtle.ConstantTimeCompare([]byte(state.Nonce), []byte(nonce)) != 1 {
		return errors.New("oauth state mismatch")
	}
	return nil
}

func (s *OAuthProviderService) AuthCodeURL(kind ProviderKind, state string) (string, error) {
	p, err := s.provider(kind)
	if err != nil {
		return "", err
	}
	return p.config.AuthCodeURL(state), nil
}

// Resolve exchanges the authorization code and reads the caller's profile.
func (s *OAuthProviderService) Resolve(ctx context.Context, kind ProviderKind, code string) (*ExternalProfile, error) {
	p, err := s.provider(kind)
	if err != nil {
		return nil, err
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		logger.Warn("oauth_exchange_failed", map[string]interface{}{
			"provider": kind.String(),
			"error":    err.Error(),
		})
		return nil, errors.New("failed to exchange code for token")
	}

	profile, err := p.parse(ctx, p, token)
	if err != nil {
		return nil, err
	}
	if profile.Subject == "" {
		return nil, fmt.Errorf("%s: subject is required", kind)
	}
	return profile, nil
}

func fetchJSON(ctx context.Context, p *oauthProvider, token *oauth2.Token, url string, into interface{}) error {
	client := p.config.Client(ctx, token)

	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", p.kind, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

func splitName(name string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(name), " ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func parseGoogleProfile(ctx context.Context, p *oauthProvider, token *oauth2.Token) (*ExternalProfile, error) {
	var data struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := fetchJSON(ctx, p, token, p.userInfoURL, &data); err != nil {
		return nil, err
	}
	if !data.VerifiedEmail {
		return nil, errors.New("google email is not verified")
	}

	return &ExternalProfile{
		Provider:      ProviderGoogle,
		Subject:       data.ID,
		Email:         data.Email,
		FirstName:     data.GivenName,
		LastName:      data.FamilyName,
		EmailVerified: true,
	}, nil
}

func parseGitHubProfile(ctx context.Context, p *oauthProvider, token *oauth2.Token) (*ExternalProfile, error) {
	var data struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := fetchJSON(ctx, p, token, p.userInfoURL, &data); err != nil {
		return nil, err
	}

	if data.Email == "" && p.emailsURL != "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := fetchJSON(ctx, p, token, p.emailsURL, &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					data.Email = e.Email
					break
				}
			}
		}
	}
	if data.Email == "" {
		return nil, errors.New("github email not available")
	}

	// GitHub only publishes verified addresses on the profile.
	firstName, lastName := splitName(data.Name)
	return &ExternalProfile{
		Provider:      ProviderGitHub,
		Subject:       fmt.Sprintf("%d", data.ID),
		Email:         data.Email,
		Username:      data.Login,
		FirstName:     firstName,
		LastName:      lastName,
		EmailVerified: true,
	}, nil
}

type oidcClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	PreferredUsername string `json:"preferred_username"`
	EmailVerified     bool   `json:"email_verified"`
}

// parseOIDCProfile prefers the verified ID token and falls back to the
// userinfo endpoint when the provider sent none.
func parseOIDCProfile(ctx context.Context, p *oauthProvider, token *oauth2.Token) (*ExternalProfile, error) {
	var claims oidcClaims

	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("oidc: invalid id token: %w", err)
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("oidc: decode claims: %w", err)
		}
	} else {
		info, err := p.oidc.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			return nil, fmt.Errorf("oidc userinfo: %w", err)
		}
		if err := info.Claims(&claims); err != nil {
			return nil, fmt.Errorf("oidc: decode userinfo: %w", err)
		}
	}

	if claims.Subject == "" {
		return nil, errors.New("oidc: subject claim is required")
	}

	firstName, lastName := claims.GivenName, claims.FamilyName
	if firstName == "" && claims.Name != "" {
		firstName, lastName = splitName(claims.Name)
	}
	return &ExternalProfile{
		Provider:      ProviderOIDC,
		Subject:       claims.Subject,
		Email:         claims.Email,
		Username:      claims.PreferredUsername,
		FirstName:     firstName,
		LastName:      lastName,
		EmailVerified: claims.EmailVerified && claims.Email != "",
	}, nil
}
