package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	JWTSecret        string
	PlanConfigPath   string
	GeoIPDBPath      string
	GeminiAPIKey     string
	GeminiModel      string
	GeminiBaseURL    string
	VeoModel         string
	QwenAPIKey       string
	QwenModel        string
	QwenBaseURL      string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	OpenAIOrg        string
	SyntheticBaseURL string
	AllowedOrigins   []string
	AutoMigrate      bool
	Workers          int
	QueueSize        int
	JobTimeout       time.Duration
	SweepInterval    time.Duration
	RequeueAfter     time.Duration
	RetryMaxAttempts int
	DBMaxConns       int
	DBMinConns       int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		PlanConfigPath:   os.Getenv("PLAN_CONFIG_PATH"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VeoModel:         getEnv("VEO_MODEL", "veo-3.0-generate"),
		QwenAPIKey:       os.Getenv("QWEN_API_KEY"),
		QwenModel:        getEnv("QWEN_MODEL", "wanx2.1-t2i-turbo"),
		QwenBaseURL:      getEnv("QWEN_BASE_URL", "https://dashscope.aliyuncs.com/api/v1"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:        os.Getenv("OPENAI_ORG"),
		SyntheticBaseURL: getEnv("SYNTHETIC_BASE_URL", "https://cdn.invalid/synthetic"),
		AllowedOrigins:   splitCSV(os.Getenv("ALLOWED_ORIGINS")),
		AutoMigrate:      getEnvBool("AUTO_MIGRATE", false),
		Workers:          getEnvInt("JOB_WORKERS", 4),
		QueueSize:        getEnvInt("JOB_QUEUE_SIZE", 100),
		JobTimeout:       time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 600)),
		SweepInterval:    time.Second * time.Duration(getEnvInt("RECONCILE_INTERVAL_SECONDS", 60)),
		RequeueAfter:     time.Second * time.Duration(getEnvInt("RECONCILE_REQUEUE_AFTER_SECONDS", 120)),
		RetryMaxAttempts: getEnvInt("PROVIDER_RETRY_MAX", 3),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:       getEnvInt("DB_MIN_CONNS", 1),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// Production must run against Postgres; development falls back to the
	// in-memory stores when DATABASE_URL is absent.
	if cfg.DatabaseURL == "" && cfg.AppEnv != "development" {
		return nil, fmt.Errorf("DATABASE_URL is required outside development")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
