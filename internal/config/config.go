package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	Server   ServerConfig
	CORS     CORSConfig
	Billing  BillingConfig
	Log      LogConfig
	Audit    AuditConfig
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret      string
	AccessTokenExpiry time.Duration
	Issuer            string
}

type ServerConfig struct {
	Port    string
	GinMode string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// BillingConfig points the discharge gate at the billing service.
// An empty BaseURL makes the gate read unpaid bill items from the shared database.
type BillingConfig struct {
	BaseURL         string
	Timeout         time.Duration
	BreakerTimeout  time.Duration
	BreakerFailures uint32
	BreakerHalfOpen uint32
	BreakerInterval time.Duration
}

type LogConfig struct {
	Level string
}

type AuditConfig struct {
	Async bool
}

func LoadConfig() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "3306"),
			User:            getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "hospital_inpatient"),
			MaxIdleConns:    parseInt(getEnv("DB_MAX_IDLE_CONNS", "10"), 10),
			MaxOpenConns:    parseInt(getEnv("DB_MAX_OPEN_CONNS", "100"), 100),
			ConnMaxLifetime: parseDuration(getEnv("DB_CONN_MAX_LIFETIME", "1h"), time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret:      getEnv("JWT_ACCESS_SECRET", "your-access-secret-key"),
			AccessTokenExpiry: parseDuration(getEnv("ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			Issuer:            getEnv("JWT_ISSUER", "hospital-identity"),
		},
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		},
		Billing: BillingConfig{
			BaseURL:         strings.TrimRight(getEnv("BILLING_URL", ""), "/"),
			Timeout:         parseDuration(getEnv("BILLING_TIMEOUT", "5s"), 5*time.Second),
			BreakerTimeout:  parseDuration(getEnv("BILLING_BREAKER_TIMEOUT", "30s"), 30*time.Second),
			BreakerFailures: uint32(parseInt(getEnv("BILLING_BREAKER_FAILURES", "5"), 5)),
			BreakerHalfOpen: uint32(parseInt(getEnv("BILLING_BREAKER_HALF_OPEN", "1"), 1)),
			BreakerInterval: parseDuration(getEnv("BILLING_BREAKER_INTERVAL", "60s"), time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Audit: AuditConfig{
			Async: parseBool(getEnv("AUDIT_ASYNC", "true"), true),
		},
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Warn().Str("value", s).Dur("default", fallback).Msg("invalid duration format, using default")
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		log.Warn().Str("value", s).Int("default", fallback).Msg("invalid integer, using default")
		return fallback
	}
	return n
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func parseOrigins(s string) []string {
	origins := []string{}
	for _, origin := range strings.Split(s, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
