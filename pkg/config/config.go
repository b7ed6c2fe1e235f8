package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	OTEL      OTELConfig
	Selection SelectionConfig
}

// AppConfig holds process-level configuration
type AppConfig struct {
	Environment string
	ServiceName string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Enabled  bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// SelectionConfig exposes the calibrated selection constants as overridable
// values. The defaults encode tuning against known regression packets; change
// them only with fixture evidence.
type SelectionConfig struct {
	LargePacketPages    int
	CollapseThreshold   int
	HardCapPerPatient   int
	UtilityEpsilon      float64
	LowUtilityStreak    int
	SubstanceWeight     float64
	BucketWeight        float64
	TemporalWeight      float64
	NoveltyWeight       float64
	RedundancyWeight    float64
	NoiseWeight         float64
	UnflaggedLabPenalty float64
}

// DefaultSelection returns the calibrated selection constants.
func DefaultSelection() SelectionConfig {
	return SelectionConfig{
		LargePacketPages:    300,
		CollapseThreshold:   100,
		HardCapPerPatient:   250,
		UtilityEpsilon:      0.03,
		LowUtilityStreak:    8,
		SubstanceWeight:     0.45,
		BucketWeight:        0.25,
		TemporalWeight:      0.20,
		NoveltyWeight:       0.20,
		RedundancyWeight:    0.20,
		NoiseWeight:         0.20,
		UnflaggedLabPenalty: 0.40,
	}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	sel := DefaultSelection()
	sel.LargePacketPages = getEnvAsInt("SELECTION_LARGE_PACKET_PAGES", sel.LargePacketPages)
	sel.CollapseThreshold = getEnvAsInt("SELECTION_COLLAPSE_THRESHOLD", sel.CollapseThreshold)
	sel.HardCapPerPatient = getEnvAsInt("SELECTION_HARD_CAP", sel.HardCapPerPatient)
	sel.UtilityEpsilon = getEnvAsFloat("SELECTION_UTILITY_EPSILON", sel.UtilityEpsilon)
	sel.LowUtilityStreak = getEnvAsInt("SELECTION_LOW_UTILITY_STREAK", sel.LowUtilityStreak)
	sel.SubstanceWeight = getEnvAsFloat("SELECTION_SUBSTANCE_WEIGHT", sel.SubstanceWeight)
	sel.BucketWeight = getEnvAsFloat("SELECTION_BUCKET_WEIGHT", sel.BucketWeight)
	sel.TemporalWeight = getEnvAsFloat("SELECTION_TEMPORAL_WEIGHT", sel.TemporalWeight)
	sel.NoveltyWeight = getEnvAsFloat("SELECTION_NOVELTY_WEIGHT", sel.NoveltyWeight)
	sel.RedundancyWeight = getEnvAsFloat("SELECTION_REDUNDANCY_WEIGHT", sel.RedundancyWeight)
	sel.NoiseWeight = getEnvAsFloat("SELECTION_NOISE_WEIGHT", sel.NoiseWeight)
	sel.UnflaggedLabPenalty = getEnvAsFloat("SELECTION_UNFLAGGED_LAB_PENALTY", sel.UnflaggedLabPenalty)

	return &Config{
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			ServiceName: getEnv("APP_SERVICE_NAME", "citeline-chronology"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "citeline"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Enabled:  getEnvAsBool("DB_ENABLED", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "citeline-chronology"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Selection: sel,
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
