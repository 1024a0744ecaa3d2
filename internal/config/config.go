package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultKeySecret is the signing secret shared by every game page and the hub.
// It ships with the client, so it only deters casual edits of a key.
const DefaultKeySecret = "CV_PLATFORM_SECRET_KEY_2025"

// Config holds application configuration
type Config struct {
	ServerPort      string
	DatabaseType    string
	DatabasePath    string
	DatabaseURL     string
	CatalogPath     string
	MigrationsPath  string
	KeySecret       string
	ExportSecret    string
	CSRFSecret      string
	PlatformBaseURL string
	Environment     string
	Debug           bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	AWSRegion    string
	SESFromEmail string
	SESFromName  string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	keySecret := getEnv("KEY_SECRET", DefaultKeySecret)

	return &Config{
		ServerPort:        getEnv("PORT", "8080"),
		DatabaseType:      strings.ToLower(getEnv("DB_TYPE", "sqlite")),
		DatabasePath:      getEnv("DB_PATH", "./cvquest.db"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		CatalogPath:       getEnv("CATALOG_PATH", ""),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", ""),
		KeySecret:         keySecret,
		ExportSecret:      getEnv("EXPORT_SECRET", keySecret),
		CSRFSecret:        getEnv("CSRF_SECRET", keySecret+":csrf"),
		PlatformBaseURL:   strings.TrimSuffix(getEnv("PLATFORM_BASE_URL", "http://localhost:8080"), "/"),
		Environment:       getEnv("APP_ENV", "development"),
		Debug:             getEnvBool("DEBUG", false) || getEnvBool("DEBUG_MODE", false),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		RateLimitRequests: 30,
		RateLimitWindow:   time.Minute,
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "CV Quest"),
	}
}

// IsProduction reports whether the app runs with production logging.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}
