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
	AppEnv          string
	Port            string
	DatabaseURL     string
	ServiceToken    string
	StoragePath     string
	GeoIPDBPath     string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	ImageModel      string
	ImageBaseURL    string
	ImageAPIKey     string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3Region        string
	S3UseSSL        bool
	RedisAddr       string
	RedisChannel    string
	PromptCacheTTL  time.Duration
	WorkerPoll      time.Duration
	HTTPReadTimeout time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout time.Duration
	RateLimitPerMin int
	APIVersion      string
	AllowedOrigins  []string
	DefaultLocale   string
	DevFixtureJobID string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		ServiceToken:     os.Getenv("SERVICE_TOKEN"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		ImageModel:       getEnv("IMAGE_MODEL", "gemini-2.5-flash"),
		ImageBaseURL:     getEnv("IMAGE_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ImageAPIKey:      os.Getenv("IMAGE_API_KEY"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
		S3Bucket:         getEnv("S3_BUCKET", "adcraft"),
		S3Region:         os.Getenv("S3_REGION"),
		S3UseSSL:         getEnvBool("S3_USE_SSL", false),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisChannel:     getEnv("REDIS_CHANNEL", "adcraft.jobs"),
		PromptCacheTTL:   time.Second * time.Duration(getEnvInt("PROMPT_CACHE_TTL_SECONDS", 300)),
		WorkerPoll:       time.Second * time.Duration(getEnvInt("WORKER_POLL_SECONDS", 2)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		APIVersion:       getEnv("API_VERSION", "v1"),
		AllowedOrigins:   splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
		DevFixtureJobID:  getEnv("DEV_FIXTURE_JOB_ID", "fixture"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
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

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
