package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presale/internal/platform/config"
)

func TestNewWithoutURL(t *testing.T) {
	c, err := New(context.Background(), config.Redis{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.Redis{URL: "http://not-redis"})
	require.Error(t, err)
}

func TestApplyPoolKeepsLibraryDefaultsForZeroValues(t *testing.T) {
	opts := &redis.Options{PoolSize: 42, DialTimeout: time.Second}
	applyPool(opts, config.Redis{MinIdleConns: 2, ReadTimeout: 3 * time.Second})

	assert.Equal(t, 42, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)
	assert.Equal(t, 2, opts.MinIdleConns)
	assert.Equal(t, 3*time.Second, opts.ReadTimeout)
}
