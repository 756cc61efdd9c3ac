package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofid/internal/platform/config"
)

func TestOptions(t *testing.T) {
	t.Run("requires a url", func(t *testing.T) {
		_, err := Options(config.RedisConfig{})
		assert.ErrorIs(t, err, ErrNoURL)
	})

	t.Run("rejects malformed urls", func(t *testing.T) {
		_, err := Options(config.RedisConfig{URL: "http://localhost:6379"})
		assert.Error(t, err)
	})

	t.Run("applies pool settings over the url", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{
			URL:         "redis://localhost:6380/2",
			PoolSize:    20,
			DialTimeout: 2 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "localhost:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 20, opts.PoolSize)
		assert.Equal(t, 2*time.Second, opts.DialTimeout)
	})

	t.Run("keeps go-redis defaults for zero settings", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{URL: "redis://localhost:6379"})
		require.NoError(t, err)
		assert.Zero(t, opts.PoolSize)
		assert.Zero(t, opts.MinIdleConns)
	})
}
