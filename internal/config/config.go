package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB        DBConfig
	JWT       JWTConfig
	Server    ServerConfig
	MinIO     MinIOConfig
	Redis     RedisConfig
	Audit     AuditConfig
	Scheduler SchedulerConfig
	RateLimit RateLimitConfig
	SSO       SSOConfig
}

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	QueryTimeout time.Duration
}

type JWTConfig struct {
	Secret     string
	SessionTTL time.Duration
	RefreshTTL time.Duration
}

type ServerConfig struct {
	Port           string
	FrontendURL    string
	AllowedOrigins string
}

type MinIOConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type RedisConfig struct {
	Enabled       bool
	URL           string
	ChannelPrefix string
	QueueSize     int
}

type AuditConfig struct {
	ExportInterval time.Duration
}

type SchedulerConfig struct {
	TokenPurgeSpec string
}

type RateLimitConfig struct {
	AuthPerMinute    float64
	AuthBurst        int
	RequestPerMinute float64
	RequestBurst     int
}

type OAuthProviderConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

type OIDCConfig struct {
	OAuthProviderConfig
	IssuerURL string
}

type SSOConfig struct {
	Google       OAuthProviderConfig
	GitHub       OAuthProviderConfig
	OIDC         OIDCConfig
	AutoRegister bool
}

// Load reads configuration from the environment, after applying a .env file
// from the working directory when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DB: DBConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "bookclub"),
			Password:     getEnv("DB_PASSWORD", "bookclub_secret"),
			Name:         getEnv("DB_NAME", "bookclub"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			QueryTimeout: getEnvAsDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "change-me-in-production"),
			SessionTTL: getEnvAsDuration("JWT_SESSION_TTL", 60*time.Minute),
			RefreshTTL: getEnvAsDuration("JWT_REFRESH_TTL", 24*time.Hour),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		MinIO: MinIOConfig{
			Enabled:   getEnvAsBool("MINIO_ENABLED", false),
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "bookclub"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "bookclub_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "bookclub-audit"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Enabled:       getEnvAsBool("REDIS_ENABLED", false),
			URL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
			ChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "bookclub:notifications"),
			QueueSize:     getEnvAsInt("REDIS_QUEUE_SIZE", 1000),
		},
		Audit: AuditConfig{
			ExportInterval: getEnvAsDuration("AUDIT_EXPORT_INTERVAL", 1*time.Hour),
		},
		Scheduler: SchedulerConfig{
			TokenPurgeSpec: getEnv("TOKEN_PURGE_SCHEDULE", "@every 1h"),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute:    getEnvAsFloat("RATE_LIMIT_AUTH_PER_MINUTE", 10),
			AuthBurst:        getEnvAsInt("RATE_LIMIT_AUTH_BURST", 5),
			RequestPerMinute: getEnvAsFloat("RATE_LIMIT_REQUESTS_PER_MINUTE", 6),
			RequestBurst:     getEnvAsInt("RATE_LIMIT_REQUESTS_BURST", 3),
		},
		SSO: SSOConfig{
			Google: OAuthProviderConfig{
				Enabled:      getEnvAsBool("SSO_GOOGLE_ENABLED", false),
				ClientID:     getEnv("SSO_GOOGLE_CLIENT_ID", ""),
				ClientSecret: getEnv("SSO_GOOGLE_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("SSO_GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/sso/oauth/google/callback"),
				Scopes:       getEnvAsList("SSO_GOOGLE_SCOPES", []string{"openid", "email", "profile"}),
			},
			GitHub: OAuthProviderConfig{
				Enabled:      getEnvAsBool("SSO_GITHUB_ENABLED", false),
				ClientID:     getEnv("SSO_GITHUB_CLIENT_ID", ""),
				ClientSecret: getEnv("SSO_GITHUB_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("SSO_GITHUB_REDIRECT_URL", "http://localhost:8080/api/auth/sso/oauth/github/callback"),
				Scopes:       getEnvAsList("SSO_GITHUB_SCOPES", []string{"read:user", "user:email"}),
			},
			OIDC: OIDCConfig{
				OAuthProviderConfig: OAuthProviderConfig{
					Enabled:      getEnvAsBool("SSO_OIDC_ENABLED", false),
					ClientID:     getEnv("SSO_OIDC_CLIENT_ID", ""),
					ClientSecret: getEnv("SSO_OIDC_CLIENT_SECRET", ""),
					RedirectURL:  getEnv("SSO_OIDC_REDIRECT_URL", "http://localhost:8080/api/auth/sso/oauth/oidc/callback"),
					Scopes:       getEnvAsList("SSO_OIDC_SCOPES", []string{"openid", "email", "profile"}),
				},
				IssuerURL: getEnv("SSO_OIDC_ISSUER_URL", ""),
			},
			AutoRegister: getEnvAsBool("SSO_AUTO_REGISTER", true),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
