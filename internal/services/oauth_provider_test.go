package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bookclub/backend/internal/config"
	"golang.org/x/oauth2"
)

func TestParseProviderKind(t *testing.T) {
	tests := []struct {
		input   string
		want    ProviderKind
		wantErr bool
	}{
		{"google", ProviderGoogle, false},
		{" GitHub ", ProviderGitHub, false},
		{"oidc", ProviderOIDC, false},
		{"saml", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProviderKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestOAuthState(t *testing.T) {
	svc := &OAuthProviderService{providers: map[ProviderKind]*oauthProvider{}}

	state, err := svc.GenerateState(ProviderGitHub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Nonce == "" {
		t.Fatal("expected non-empty nonce")
	}
	other, _ := svc.GenerateState(ProviderGitHub)
	if other.Nonce == state.Nonce {
		t.Fatal("expected unique nonces")
	}

	encoded := state.Encode()
	now := time.Now()

	t.Run("valid", func(t *testing.T) {
		if err := CheckState(encoded, ProviderGitHub, state.Nonce, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		if err := CheckState(encoded, ProviderGitHub, other.Nonce, now); err == nil {
			t.Fatal("expected mismatch error")
		}
		if err := CheckState(encoded, ProviderGitHub, "", now); err == nil {
			t.Fatal("expected error for missing nonce")
		}
	})

	t.Run("other provider", func(t *testing.T) {
		if err := CheckState(encoded, ProviderGoogle, state.Nonce, now); err == nil {
			t.Fatal("expected provider error")
		}
	})

	t.Run("expired", func(t *testing.T) {
		if err := CheckState(encoded, ProviderGitHub, state.Nonce, now.Add(oauthStateTTL+time.Second)); err == nil {
			t.Fatal("expected expiry error")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if err := CheckState("%%%", ProviderGitHub, state.Nonce, now); err == nil {
			t.Fatal("expected decode error")
		}
	})
}

func TestEnabledProviders(t *testing.T) {
	svc, err := NewOAuthProviderService(context.Background(), config.SSOConfig{
		Google: config.OAuthProviderConfig{Enabled: true, ClientID: "g"},
		GitHub: config.OAuthProviderConfig{Enabled: true, ClientID: "gh"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := svc.Enabled()
	if len(kinds) != 2 || kinds[0] != ProviderGoogle || kinds[1] != ProviderGitHub {
		t.Fatalf("expected google then github, got %v", kinds)
	}

	url, err := svc.AuthCodeURL(ProviderGitHub, "state-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(url, "client_id=gh") || !strings.Contains(url, "state=state-1") {
		t.Fatalf("unexpected auth url %s", url)
	}

	if _, err := svc.AuthCodeURL(ProviderOIDC, "state-1"); err == nil {
		t.Fatal("expected error for disabled provider")
	}

	_, err = NewOAuthProviderService(context.Background(), config.SSOConfig{
		OIDC: config.OIDCConfig{OAuthProviderConfig: config.OAuthProviderConfig{Enabled: true}},
	})
	if err == nil {
		t.Fatal("expected error when oidc issuer is missing")
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestResolveGoogleProfile(t *testing.T) {
	verified := true
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]interface{}{"access_token": "access-1", "token_type": "Bearer"})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]interface{}{
			"id":             "g-123",
			"email":          "alice@example.com",
			"given_name":     "Alice",
			"family_name":    "Liddell",
			"verified_email": verified,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc := &OAuthProviderService{providers: map[ProviderKind]*oauthProvider{
		ProviderGoogle: {
			kind: ProviderGoogle,
			config: &oauth2.Config{
				ClientID: "g",
				Endpoint: oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
			},
			userInfoURL: srv.URL + "/userinfo",
			parse:       parseGoogleProfile,
		},
	}}

	profile, err := svc.Resolve(context.Background(), ProviderGoogle, "good-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.Subject != "g-123" || profile.Email != "alice@example.com" || profile.FirstName != "Alice" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if _, err := svc.Resolve(context.Background(), ProviderGoogle, "bad-code"); err == nil {
		t.Fatal("expected exchange failure")
	}

	verified = false
	if _, err := svc.Resolve(context.Background(), ProviderGoogle, "good-code"); err == nil {
		t.Fatal("expected unverified email to be rejected")
	}
}

func TestParseGitHubProfileFallsBackToEmails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"id": 42, "login": "octo", "name": "Octo Cat", "email": ""})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]interface{}{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "octo@example.com", "primary": true, "verified": true},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := &oauthProvider{
		kind:        ProviderGitHub,
		config:      &oauth2.Config{},
		userInfoURL: srv.URL + "/user",
		emailsURL:   srv.URL + "/user/emails",
	}
	profile, err := parseGitHubProfile(context.Background(), p, &oauth2.Token{AccessToken: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.Subject != "42" || profile.Email != "octo@example.com" || profile.Username != "octo" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if profile.FirstName != "Octo" || profile.LastName != "Cat" {
		t.Fatalf("expected split name, got %q %q", profile.FirstName, profile.LastName)
	}
}

func newOIDCUserInfoProvider(t *testing.T, userinfo map[string]interface{}) *oauthProvider {
	t.Helper()

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/auth",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/keys",
			"userinfo_endpoint":      srv.URL + "/userinfo",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, userinfo)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := NewOAuthProviderService(context.Background(), config.SSOConfig{
		OIDC: config.OIDCConfig{
			OAuthProviderConfig: config.OAuthProviderConfig{Enabled: true, ClientID: "bookclub"},
			IssuerURL:           srv.URL,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc.providers[ProviderOIDC]
}

func TestOIDCUserInfoFallback(t *testing.T) {
	p := newOIDCUserInfoProvider(t, map[string]interface{}{
		"sub":                "oidc-7",
		"email":              "carol@example.com",
		"email_verified":     true,
		"name":               "Carol Ann",
		"preferred_username": "carol",
	})

	profile, err := parseOIDCProfile(context.Background(), p, &oauth2.Token{AccessToken: "x", TokenType: "Bearer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.Subject != "oidc-7" || profile.Username != "carol" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if profile.FirstName != "Carol" || profile.LastName != "Ann" {
		t.Fatalf("expected name split, got %q %q", profile.FirstName, profile.LastName)
	}
	if !profile.EmailVerified {
		t.Fatal("expected verified email")
	}
}

func TestOIDCUnverifiedEmailCannotTakeOverReader(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	victim := env.createReader(t, "victim")

	for name, claims := range map[string]map[string]interface{}{
		"explicitly unverified": {"sub": "outsider-1", "email": victim.Email, "email_verified": false},
		"claim missing":         {"sub": "outsider-2", "email": victim.Email},
	} {
		t.Run(name, func(t *testing.T) {
			p := newOIDCUserInfoProvider(t, claims)
			profile, err := parseOIDCProfile(ctx, p, &oauth2.Token{AccessToken: "x", TokenType: "Bearer"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if profile.EmailVerified {
				t.Fatal("expected email to be unverified")
			}

			result, err := env.auth.LoginExternal(ctx, profile, true)
			assertKind(t, err, ErrUnauthenticated)
			if result != nil {
				t.Fatalf("expected no session, got one for %s", result.Reader.ID)
			}
		})
	}
}
