package worker

import (
	"context"
	"log"
	"strconv"
	"time"

	"shopper-service/internal/broker"
	"shopper-service/internal/localstore"
	"shopper-service/internal/models"
	"shopper-service/internal/store"
	"shopper-service/internal/util"

	"go.uber.org/zap"
)

const trendingScoreSet = "trending:view-scores"

// TrendingWorker accumulates product view scores from the behavior event
// stream and periodically promotes the top-scored products to trending in
// the catalog. The trending flag feeds the recommendation builder's primary
// ordering key.
type TrendingWorker struct {
	consumer *broker.Consumer
	redis    *localstore.Client
	store    *store.Store
	interval time.Duration
	size     int
	logger   *zap.Logger
}

// NewTrendingWorker creates a new trending worker
func NewTrendingWorker(
	consumer *broker.Consumer,
	redis *localstore.Client,
	st *store.Store,
	interval time.Duration,
	size int,
) *TrendingWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if size <= 0 {
		size = 12
	}
	return &TrendingWorker{
		consumer: consumer,
		redis:    redis,
		store:    st,
		interval: interval,
		size:     size,
		logger:   util.GetLogger(),
	}
}

// Start consumes view events and runs the periodic promotion loop until the
// context is cancelled.
func (w *TrendingWorker) Start(ctx context.Context) error {
	log.Println("Starting trending worker...")

	go w.promoteLoop(ctx)

	eventHandler := broker.NewEventHandler()
	eventHandler.OnProductViewed(w.handleProductViewed)

	return w.consumer.StartConsuming(ctx, eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *TrendingWorker) Stop() error {
	log.Println("Stopping trending worker...")
	return w.consumer.Close()
}

func (w *TrendingWorker) handleProductViewed(ctx context.Context, event *models.ProductViewedEvent) error {
	member := strconv.FormatInt(event.ProductID, 10)
	if err := w.redis.IncrScore(ctx, trendingScoreSet, member, 1); err != nil {
		// Scores are advisory; a failed increment only costs one view.
		w.logger.Warn("Failed to bump trending score",
			zap.Int64("product_id", event.ProductID), zap.Error(err))
	}
	return nil
}

func (w *TrendingWorker) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.promote(ctx)
		}
	}
}

// promote flips the trending flag to the current top-scored products and
// resets the score window.
func (w *TrendingWorker) promote(ctx context.Context) {
	members, err := w.redis.TopScores(ctx, trendingScoreSet, int64(w.size))
	if err != nil {
		w.logger.Warn("Failed to read trending scores", zap.Error(err))
		return
	}
	if len(members) == 0 {
		return
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	if err := w.store.SetTrending(ctx, ids); err != nil {
		w.logger.Error("Failed to promote trending products", zap.Error(err))
		return
	}

	if err := w.redis.ResetScores(ctx, trendingScoreSet); err != nil {
		w.logger.Warn("Failed to reset trending score window", zap.Error(err))
	}

	util.TrendingPromotionsTotal.Inc()
	w.logger.Info("Trending products promoted", zap.Int("count", len(ids)))
}
