package cache

import (
	"context"
	"testing"

	"github.com/freelance/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// unreachableRedis points at a port nothing listens on
var unreachableRedis = config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

func TestIdempotencyStoreFactory_CreateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("redis disabled uses in-memory store", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false})

		store, err := f.CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unreachable redis falls back with a warning", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		f := NewIdempotencyStoreFactory(unreachableRedis, WithLogger(zap.New(core)))

		store, err := f.CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(unreachableRedis, WithInMemoryFallback(false))

		store, err := f.CreateStore(ctx)
		require.Error(t, err)
		assert.Nil(t, store)
		assert.Contains(t, err.Error(), "redis required")
	})
}

func TestNewRedisIdempotencyStoreWithClient_DefaultPrefix(t *testing.T) {
	store := NewRedisIdempotencyStoreWithClient(nil, "")
	assert.Equal(t, DefaultKeyPrefix, store.keyPrefix)

	store = NewRedisIdempotencyStoreWithClient(nil, "custom:")
	assert.Equal(t, "custom:", store.keyPrefix)
}
