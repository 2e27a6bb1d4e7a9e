// Package config reads runtime settings from the environment. A .env file
// in the working directory is loaded first when present.
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
	Port           string
	FrontendOrigin string
	JWTSecret      string
	AuthRequired   bool
	UploadDir      string
	LogFile        string
	Debug          bool

	DB     DBConfig
	Redis  RedisConfig
	Gemini GeminiConfig
	Google GoogleConfig

	RewardTablePath     string
	AssignmentsYear     int
	ConfidenceThreshold float64
	CacheTTL            time.Duration
	ChatRateLimit       int
	ChatRateWindow      time.Duration
}

type DBConfig struct {
	Driver     string // postgres or sqlite
	URL        string // full DSN, e.g. a Supabase connection string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

// DSN returns the Postgres connection string.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled bool
	Host    string
	Port    string
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type GeminiConfig struct {
	APIKey    string
	Model     string
	Endpoint  string
	TimeoutMs int
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Configured reports whether the OAuth client is set up.
func (c GoogleConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

func Default() Config {
	return Config{
		Port:           "8080",
		FrontendOrigin: "http://localhost:5173",
		JWTSecret:      "change-me",
		UploadDir:      "./uploads",
		LogFile:        "./logs/app.log",
		DB: DBConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       "5432",
			User:       "postgres",
			Password:   "postgres",
			Name:       "lifequest",
			SSLMode:    "disable",
			SQLitePath: "./lifequest.db",
		},
		Redis: RedisConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    "6379",
		},
		Gemini: GeminiConfig{
			Model:     "gemini-1.5-flash",
			Endpoint:  "https://generativelanguage.googleapis.com/v1beta",
			TimeoutMs: 30000,
		},
		AssignmentsYear:     2025,
		ConfidenceThreshold: 0.5,
		CacheTTL:            time.Minute,
		ChatRateLimit:       30,
		ChatRateWindow:      time.Minute,
	}
}

// Load reads .env (if any) and then the process environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables over Default.
func FromEnv() Config {
	cfg := Default()

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.FrontendOrigin = getEnv("FRONTEND_ORIGIN", cfg.FrontendOrigin)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.AuthRequired = getBool("AUTH_REQUIRED", cfg.AuthRequired)
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.Debug = getBool("DEBUG", cfg.Debug)

	cfg.DB.Driver = strings.ToLower(getEnv("DB_DRIVER", cfg.DB.Driver))
	cfg.DB.URL = getEnv("SUPABASE_DB_URL", getEnv("DATABASE_URL", ""))
	cfg.DB.Host = getEnv("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnv("DB_PORT", cfg.DB.Port)
	cfg.DB.User = getEnv("DB_USER", cfg.DB.User)
	cfg.DB.Password = getEnv("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = getEnv("DB_NAME", cfg.DB.Name)
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", cfg.DB.SSLMode)
	cfg.DB.SQLitePath = getEnv("SQLITE_PATH", cfg.DB.SQLitePath)

	cfg.Redis.Enabled = getBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = getEnv("REDIS_PORT", cfg.Redis.Port)

	cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	cfg.Gemini.Model = getEnv("GEMINI_MODEL", cfg.Gemini.Model)
	cfg.Gemini.Endpoint = strings.TrimRight(getEnv("GEMINI_ENDPOINT", cfg.Gemini.Endpoint), "/")
	if n := getInt("GEMINI_TIMEOUT_MS", 0); n > 0 {
		cfg.Gemini.TimeoutMs = n
	}

	cfg.Google.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.Google.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.Google.RedirectURI = os.Getenv("GOOGLE_REDIRECT_URI")

	cfg.RewardTablePath = os.Getenv("REWARD_TABLE_PATH")
	if n := getInt("ASSIGNMENTS_YEAR", 0); n > 0 {
		cfg.AssignmentsYear = n
	}
	if v := os.Getenv("ROUTER_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CacheTTL = d
		}
	}
	if n := getInt("CHAT_RATE_LIMIT", 0); n > 0 {
		cfg.ChatRateLimit = n
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}
