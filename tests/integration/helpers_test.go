//go:build integration

package integration

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/casevault/citeline/internal/infrastructure/clients/redis"
	"github.com/casevault/citeline/pkg/config"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	cfg := &config.RedisConfig{
		Host:     getEnv("TEST_REDIS_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_REDIS_PORT", 6379),
		Password: getEnv("TEST_REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("TEST_REDIS_DB", 1),
	}

	client, err := redis.NewClient(context.Background(), cfg)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	return client
}
