package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv pins every variable Load reads so the host environment cannot
// leak into the assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "HTTP_ADDR", "STORAGE_MODE", "MONGO_URI", "MONGO_DB",
		"KAFKA_BROKERS", "KAFKA_TOPIC_PREFIX", "REDIS_ADDR", "REDIS_PASSWORD",
		"RATE_LIMIT_RPM", "RATE_LIMIT_BURST", "PAYMENT_GATEWAY_URL",
		"PAYMENT_GATEWAY_SECRET", "PAYMENT_GATEWAY_TIMEOUT", "CHECKOUT_RETURN_URL",
		"WEBHOOK_SECRET", "S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY",
		"S3_BUCKET", "S3_USE_SSL", "IDEMP_TTL", "OUTBOX_POLL_INTERVAL", "RETRY_BACKOFF",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorageMongo, cfg.StorageMode)
	assert.Equal(t, "staybook", cfg.MongoDB)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 120, cfg.RateLimitRPM)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 168*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
}

func TestLoadMemoryModeNeedsNoMongo(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_MODE", "Memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageMode)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown storage mode",
			env:     map[string]string{"STORAGE_MODE": "postgres"},
			wantErr: "invalid STORAGE_MODE",
		},
		{
			name:    "mongo mode requires uri",
			env:     map[string]string{"STORAGE_MODE": "mongo"},
			wantErr: "MONGO_URI is required",
		},
		{
			name:    "webhook secret mandatory outside dev",
			env:     map[string]string{"APP_ENV": "prod", "STORAGE_MODE": "memory"},
			wantErr: "WEBHOOK_SECRET is required",
		},
		{
			name:    "bad duration",
			env:     map[string]string{"STORAGE_MODE": "memory", "IDEMP_TTL": "soon"},
			wantErr: "invalid IDEMP_TTL",
		},
		{
			name:    "bad backoff component",
			env:     map[string]string{"STORAGE_MODE": "memory", "RETRY_BACKOFF": "1s,eventually"},
			wantErr: "invalid RETRY_BACKOFF",
		},
		{
			name:    "bad rate limit",
			env:     map[string]string{"STORAGE_MODE": "memory", "RATE_LIMIT_RPM": "many"},
			wantErr: "invalid RATE_LIMIT_RPM",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadParsesLists(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_MODE", "memory")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("RETRY_BACKOFF", "250ms, 1s")
	t.Setenv("S3_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, time.Second}, cfg.RetryBackoff)
	assert.True(t, cfg.S3UseSSL)
}
