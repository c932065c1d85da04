package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DBDriver    string // mysql, postgres or sqlite
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	RedisURL       string
	SendRateLimit  int
	SendRateWindow time.Duration
	CORSOrigins    []string
	WSPingInterval time.Duration
	WSPongTimeout  time.Duration

	MediaDriver         string // local or cloudinary
	MediaDir            string
	MediaBaseURL        string
	CloudinaryCloud     string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
}

// Load reads configuration from environment variables, loading a .env
// file first when one is present. Missing required values panic in
// production.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8082"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBDriver:    getEnv("DB_DRIVER", "sqlite"),
		DatabaseURL: getEnv("DATABASE_URL", "direct-chat.db"),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTTTL:    getDuration("JWT_TTL", 7*24*time.Hour),

		RedisURL:       os.Getenv("REDIS_URL"),
		SendRateLimit:  getInt("SEND_RATE_LIMIT", 30),
		SendRateWindow: getDuration("SEND_RATE_WINDOW", time.Minute),
		CORSOrigins:    getList("CORS_ORIGINS", []string{"*"}),
		WSPingInterval: getDuration("WS_PING_INTERVAL", 10*time.Second),
		WSPongTimeout:  getDuration("WS_PONG_TIMEOUT", 15*time.Second),

		MediaDriver:         getEnv("MEDIA_DRIVER", "local"),
		MediaDir:            getEnv("MEDIA_DIR", "./uploads"),
		MediaBaseURL:        getEnv("MEDIA_BASE_URL", "/uploads"),
		CloudinaryCloud:     os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryFolder:    os.Getenv("CLOUDINARY_FOLDER"),
	}

	if cfg.Env == "production" {
		if os.Getenv("JWT_SECRET") == "" {
			panic("JWT_SECRET is required in production")
		}
		if os.Getenv("DATABASE_URL") == "" {
			panic("DATABASE_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// getList parses a comma-separated value, dropping empty entries.
func getList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
