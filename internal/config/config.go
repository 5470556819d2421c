package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver    string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ServerPort string
	GinMode    string
	JWTSecret  string

	AdminUsername string
	AdminPassword string
	AdminEmail    string

	GameAPIBaseURL  string
	UpstreamTimeout time.Duration
	UpstreamRPS     float64
	UpstreamBurst   int

	Timezone     string
	DailyLikeCap int

	TokenSweepInterval time.Duration
	TokenRefreshMargin time.Duration
	RefreshConcurrency int

	DispatchWorkers   int
	ActivityRetention int

	LikeRPS   float64
	LikeBurst int
}

var AppConfig *Config

func Load() error {
	_ = godotenv.Load()

	serverPort := getEnv("PORT", "")
	if serverPort == "" {
		serverPort = getEnv("SERVER_PORT", "5000")
	}

	AppConfig = &Config{
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "ff_like"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),
		SQLitePath:  getEnv("SQLITE_PATH", "ff_like.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ServerPort: serverPort,
		GinMode:    getEnv("GIN_MODE", "debug"),
		JWTSecret:  getEnv("JWT_SECRET", "ff-like-panel-secret-key"),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@ff-like.local"),

		GameAPIBaseURL:  strings.TrimRight(getEnv("GAME_API_BASE_URL", "http://localhost:8081"), "/"),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		UpstreamRPS:     getEnvFloat("UPSTREAM_RPS", 5),
		UpstreamBurst:   getEnvInt("UPSTREAM_BURST", 5),

		Timezone:     getEnv("TIMEZONE", "Asia/Kolkata"),
		DailyLikeCap: getEnvInt("DAILY_LIKE_CAP", 100),

		TokenSweepInterval: getEnvDuration("TOKEN_SWEEP_INTERVAL", time.Minute),
		TokenRefreshMargin: getEnvDuration("TOKEN_REFRESH_MARGIN", 5*time.Minute),
		RefreshConcurrency: getEnvInt("REFRESH_CONCURRENCY", 5),

		DispatchWorkers:   getEnvInt("DISPATCH_WORKERS", 8),
		ActivityRetention: getEnvInt("ACTIVITY_RETENTION", 1000),

		LikeRPS:   getEnvFloat("LIKE_RPS", 1),
		LikeBurst: getEnvInt("LIKE_BURST", 5),
	}

	return AppConfig.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.DailyLikeCap <= 0 {
		return fmt.Errorf("DAILY_LIKE_CAP must be positive, got %d", c.DailyLikeCap)
	}
	if c.DispatchWorkers <= 0 {
		c.DispatchWorkers = 1
	}
	if c.RefreshConcurrency <= 0 {
		c.RefreshConcurrency = 1
	}
	return nil
}

// Location returns the time zone that defines the quota day.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func (c *Config) GetDSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// RefreshFromDB overlays engine tunables stored in system_configs.
// lookup returns the stored value for a key, or "" when unset.
func (c *Config) RefreshFromDB(lookup func(key string) string) {
	if v, err := strconv.Atoi(lookup("daily_like_cap")); err == nil && v > 0 {
		c.DailyLikeCap = v
	}
	if v, err := strconv.Atoi(lookup("activity_retention")); err == nil && v > 0 {
		c.ActivityRetention = v
	}
	if d, err := time.ParseDuration(lookup("token_refresh_margin")); err == nil && d > 0 {
		c.TokenRefreshMargin = d
	}
	if d, err := time.ParseDuration(lookup("token_sweep_interval")); err == nil && d > 0 {
		c.TokenSweepInterval = d
	}
}
