package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

// Insecure defaults that must never reach production
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"internal-service-secret":              true,
	"":                                     true,
}

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	JWT            JWTConfig
	Quota          QuotaConfig
	Alloc          AllocConfig
	Reservation    ReservationConfig
	Services       ServicesConfig
	InternalSecret string
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

type QuotaConfig struct {
	RegionLimit      int
	HostLimit        int
	WarningThreshold float64 // usage percent, informational only
}

type AllocConfig struct {
	MaxConflictRetries int
}

type ReservationConfig struct {
	DefaultTTLMinutes int
	MaxTTLMinutes     int
}

type ServicesConfig struct {
	NotifierURL string // empty disables HTTP event publishing
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8006"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "saas_user"),
			Password: getEnv("DB_PASSWORD", "saas_pass"),
			DBName:   getEnv("DB_NAME", "saas_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Quota: QuotaConfig{
			RegionLimit:      getEnvInt("QUOTA_REGION_LIMIT", 10),
			HostLimit:        getEnvInt("QUOTA_HOST_LIMIT", 500),
			WarningThreshold: getEnvFloat("QUOTA_WARNING_THRESHOLD", 80),
		},
		Alloc: AllocConfig{
			MaxConflictRetries: getEnvInt("ALLOC_MAX_CONFLICT_RETRIES", 5),
		},
		Reservation: ReservationConfig{
			DefaultTTLMinutes: getEnvInt("RESERVATION_DEFAULT_TTL_MINUTES", 30),
			MaxTTLMinutes:     getEnvInt("RESERVATION_MAX_TTL_MINUTES", 1440),
		},
		Services: ServicesConfig{
			NotifierURL: getEnv("NOTIFIER_SERVICE_URL", ""),
		},
		InternalSecret: getEnv("INTERNAL_SECRET", ""),
	}

	// Never log secrets
	log.Printf("[config] IPAM Service loaded: port=%s db=%s/%s quota=%d/%d retries=%d",
		cfg.Server.Port, cfg.Database.Host, cfg.Database.DBName,
		cfg.Quota.RegionLimit, cfg.Quota.HostLimit, cfg.Alloc.MaxConflictRetries)

	return cfg
}

// Validate checks that production secrets are set to secure values.
func (c *Config) Validate() error {
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.InternalSecret) < 32 {
		return fmt.Errorf("INTERNAL_SECRET must be at least 32 characters long")
	}

	if c.Quota.RegionLimit < 1 || c.Quota.HostLimit < 1 {
		return fmt.Errorf("quota limits must be positive")
	}
	if c.Quota.WarningThreshold <= 0 || c.Quota.WarningThreshold > 100 {
		return fmt.Errorf("QUOTA_WARNING_THRESHOLD must be in (0,100]")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
