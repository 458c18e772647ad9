package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Engine    EngineConfig
	Fetch     FetchConfig
	Browser   BrowserConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type EngineConfig struct {
	Workers     int
	MaxPages    int
	CacheSize   int
	CacheWindow time.Duration
	CatalogPath string
}

type FetchConfig struct {
	Timeout      time.Duration
	UserAgent    string
	WaitTimeout  time.Duration
	PollInterval time.Duration
	RateLimitMin time.Duration
	RateLimitMax time.Duration
}

type BrowserConfig struct {
	Headless bool
	Timeout  time.Duration
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Missing .env is fine, the environment may carry everything.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Engine: EngineConfig{
			Workers:     getIntOrDefault("ENGINE_WORKERS", 5),
			MaxPages:    getIntOrDefault("ENGINE_MAX_PAGES", 2),
			CacheSize:   getIntOrDefault("ENGINE_CACHE_SIZE", 256),
			CacheWindow: getDurationOrDefault("ENGINE_CACHE_WINDOW", time.Hour),
			CatalogPath: getEnvOrDefault("ENGINE_CATALOG_PATH", ""),
		},
		Fetch: FetchConfig{
			Timeout:      getDurationOrDefault("FETCH_TIMEOUT", 5*time.Second),
			UserAgent:    getEnvOrDefault("FETCH_USER_AGENT", ""),
			WaitTimeout:  getDurationOrDefault("FETCH_WAIT_TIMEOUT", 10*time.Second),
			PollInterval: getDurationOrDefault("FETCH_POLL_INTERVAL", 250*time.Millisecond),
			RateLimitMin: getDurationOrDefault("FETCH_RATE_LIMIT_MIN", time.Second),
			RateLimitMax: getDurationOrDefault("FETCH_RATE_LIMIT_MAX", 3*time.Second),
		},
		Browser: BrowserConfig{
			Headless: getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:  getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:        getEnvOrDefault("DB_HOST", "localhost"),
			Port:        getIntOrDefault("DB_PORT", 5432),
			User:        getEnvOrDefault("DB_USER", "postgres"),
			Password:    getEnvOrDefault("DB_PASSWORD", ""),
			DBName:      getEnvOrDefault("DB_NAME", "pricescout"),
			MaxConns:    int32(getIntOrDefault("DB_MAX_CONNS", 10)),
			MinConns:    int32(getIntOrDefault("DB_MIN_CONNS", 2)),
			MaxConnLife: getDurationOrDefault("DB_MAX_CONN_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnvOrDefault("JWT_SECRET", ""),
			TokenTTL:   getDurationOrDefault("JWT_TOKEN_TTL", 24*time.Hour),
			BcryptCost: getIntOrDefault("BCRYPT_COST", 10),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getBoolOrDefault("SCHEDULER_ENABLED", true),
			Interval: getDurationOrDefault("SCHEDULER_INTERVAL", time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Engine.Workers < 1 {
		return fmt.Errorf("ENGINE_WORKERS must be at least 1")
	}

	if c.Engine.MaxPages < 1 {
		return fmt.Errorf("ENGINE_MAX_PAGES must be at least 1")
	}

	if c.Fetch.RateLimitMin > c.Fetch.RateLimitMax {
		return fmt.Errorf("FETCH_RATE_LIMIT_MIN cannot be greater than FETCH_RATE_LIMIT_MAX")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}

	if c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("SCHEDULER_INTERVAL must be at least 1m")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
