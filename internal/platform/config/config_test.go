package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Server.ClaimTTL)
	assert.Equal(t, "kyc.events", cfg.Kafka.Topic)
	assert.Equal(t, "https://regtech.identitymind.store", cfg.Provider.Origin)
	assert.Equal(t, 30*time.Second, cfg.Whitelist.Timeout)
	assert.Equal(t, 1024, cfg.Kafka.BufferSize)
	assert.Empty(t, cfg.Server.TrustedProxies)
	assert.Empty(t, cfg.Tracing.Endpoint)
	assert.Equal(t, "presale-kyc", cfg.Tracing.ServiceName)
	assert.InDelta(t, 1.0, cfg.Tracing.SampleRatio, 0)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("KYC_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("ADMIN_USERS", "ops:$2a$10$abc,vip_desk:$2a$10$def")
	t.Setenv("WHITELIST_TIMEOUT", "5s")
	t.Setenv("OTEL_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")
	t.Setenv("KYC_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.1")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, map[string]string{"ops": "$2a$10$abc", "vip_desk": "$2a$10$def"}, cfg.Admin.Users)
	assert.Equal(t, 5*time.Second, cfg.Whitelist.Timeout)
	assert.Equal(t, "http://collector:4318", cfg.Tracing.Endpoint)
	assert.InDelta(t, 0.25, cfg.Tracing.SampleRatio, 1e-9)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.TrustedProxies)
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("WHITELIST_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
}
