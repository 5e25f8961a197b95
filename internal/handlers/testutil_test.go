package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bookclub/backend/internal/config"
	"github.com/bookclub/backend/internal/database"
	"github.com/bookclub/backend/internal/metrics"
	"github.com/bookclub/backend/internal/repository"
	"github.com/bookclub/backend/internal/services"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.SetOutput(io.Discard)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating: %v", err)
	}

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:     "test-secret",
			SessionTTL: time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		Server: config.ServerConfig{
			FrontendURL:    "http://localhost:3000",
			AllowedOrigins: "http://localhost:3000",
		},
		RateLimit: config.RateLimitConfig{
			AuthPerMinute:    6000,
			AuthBurst:        100,
			RequestPerMinute: 6000,
			RequestBurst:     100,
		},
		SSO: config.SSOConfig{
			GitHub:       config.OAuthProviderConfig{Enabled: true, ClientID: "github-client"},
			AutoRegister: true,
		},
	}

	store := repository.NewGormStore(db, 5*time.Second)
	signer, err := utils.NewJWTSigner(cfg.JWT.Secret)
	if err != nil {
		t.Fatalf("failed creating signer: %v", err)
	}
	collector := metrics.NewCollector(prometheus.NewRegistry())
	opts := []services.Option{services.WithMetrics(collector)}

	tokens := services.NewTokenService(store, signer, cfg.JWT, opts...)
	notifications := services.NewNotificationService(store, nil, opts...)
	providers, err := services.NewOAuthProviderService(context.Background(), cfg.SSO)
	if err != nil {
		t.Fatalf("failed creating oauth providers: %v", err)
	}

	app := NewApp(cfg)
	Register(app, cfg, Services{
		Auth:          services.NewAuthService(store, tokens, opts...),
		Providers:     providers,
		Clubs:         services.NewClubService(store, opts...),
		Memberships:   services.NewMembershipService(store, notifications, opts...),
		Requests:      services.NewMembershipRequestService(store, notifications, opts...),
		Notifications: notifications,
		Metrics:       collector,
	})

	return &testEnv{app: app, db: db, cfg: cfg}
}

type testReader struct {
	ID           string
	Token        string
	RefreshToken string
}

func registerReader(t *testing.T, env *testEnv, username string) testReader {
	t.Helper()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	}, nil)
	assertStatus(t, resp, fiber.StatusCreated)

	data := decodeJSONMap(t, resp)["data"].(map[string]any)
	reader := data["reader"].(map[string]any)
	return testReader{
		ID:           reader["id"].(string),
		Token:        data["accessToken"].(string),
		RefreshToken: data["refreshToken"].(string),
	}
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}
