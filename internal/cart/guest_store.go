package cart

import (
	"context"
	"encoding/json"

	"shopper-service/internal/localstore"
	"shopper-service/internal/models"
	"shopper-service/internal/util"

	"go.uber.org/zap"
)

// GuestStore is the durable local representation of an unauthenticated
// shopper's cart. Storage failures are swallowed so a broken store never
// blocks the shopping flow.
type GuestStore struct {
	kv     localstore.KV
	key    string
	logger *zap.Logger
}

// NewGuestStore creates a guest cart store bound to one storage key
func NewGuestStore(kv localstore.KV, key string) *GuestStore {
	return &GuestStore{
		kv:     kv,
		key:    key,
		logger: util.GetLogger(),
	}
}

// Load reads the persisted guest cart. A missing, unreadable, or corrupt
// snapshot reads as an empty cart. Invalid entries are dropped.
func (g *GuestStore) Load(ctx context.Context) []models.CartLine {
	raw, ok, err := g.kv.Get(ctx, g.key)
	if err != nil {
		g.logger.Warn("Failed to load guest cart, treating as empty",
			zap.String("key", g.key), zap.Error(err))
		return []models.CartLine{}
	}
	if !ok {
		return []models.CartLine{}
	}

	var lines []models.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		g.logger.Warn("Corrupt guest cart snapshot, treating as empty",
			zap.String("key", g.key), zap.Error(err))
		return []models.CartLine{}
	}
	return models.SanitizeLines(lines)
}

// Save persists the full cart snapshot, best-effort.
func (g *GuestStore) Save(ctx context.Context, lines []models.CartLine) {
	raw, err := json.Marshal(lines)
	if err != nil {
		g.logger.Error("Failed to serialize guest cart", zap.Error(err))
		util.GuestCartSaveFailuresTotal.Inc()
		return
	}
	if err := g.kv.Set(ctx, g.key, string(raw)); err != nil {
		g.logger.Warn("Failed to persist guest cart",
			zap.String("key", g.key), zap.Error(err))
		util.GuestCartSaveFailuresTotal.Inc()
	}
}

// Clear removes the persisted guest cart, best-effort.
func (g *GuestStore) Clear(ctx context.Context) {
	if err := g.kv.Delete(ctx, g.key); err != nil {
		g.logger.Warn("Failed to clear guest cart",
			zap.String("key", g.key), zap.Error(err))
	}
}
