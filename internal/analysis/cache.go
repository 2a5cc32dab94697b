package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	"penwise/internal/cache"
)

// Cache stores provider matches by key. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]Match, bool)
	Set(ctx context.Context, key string, matches []Match)
}

// CacheKey identifies the result of one provider on one text.
func CacheKey(provider, text string) string {
	sum := sha256.Sum256([]byte(text))
	return provider + ":" + hex.EncodeToString(sum[:])
}

// StoreCache keeps msgpack-encoded matches in a byte store.
type StoreCache struct {
	store  cache.Store
	logger *zap.SugaredLogger
}

func NewStoreCache(store cache.Store, logger *zap.SugaredLogger) *StoreCache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &StoreCache{store: store, logger: logger}
}

func (c *StoreCache) Get(ctx context.Context, key string) ([]Match, bool) {
	return cache.Load[[]Match](ctx, c.store, key)
}

func (c *StoreCache) Set(ctx context.Context, key string, matches []Match) {
	if err := cache.Save(ctx, c.store, key, matches); err != nil {
		c.logger.Warnw("analysis cache encode failed", "key", key, "error", err)
	}
}
