package prefs

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"shopper-service/internal/localstore"
	"shopper-service/internal/models"
	"shopper-service/internal/util"

	"go.uber.org/zap"
)

const (
	maxViewedProducts = 50
	maxSearchHistory  = 20
)

// counterSet is one preference mapping. Counts are monotonic; order records
// first insertion so ranking ties resolve by first-seen key.
type counterSet struct {
	Counts map[string]int `json:"counts"`
	Order  []string       `json:"order"`
}

func newCounterSet() counterSet {
	return counterSet{Counts: make(map[string]int)}
}

func (c *counterSet) increment(key string) {
	if c.Counts == nil {
		c.Counts = make(map[string]int)
	}
	if _, seen := c.Counts[key]; !seen {
		c.Order = append(c.Order, key)
	}
	c.Counts[key]++
}

func (c *counterSet) top(limit int) []string {
	keys := make([]string, 0, len(c.Order))
	for _, k := range c.Order {
		if _, ok := c.Counts[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return c.Counts[keys[i]] > c.Counts[keys[j]]
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// state is the full serialized preference snapshot for one client context.
type state struct {
	Scent    counterSet             `json:"scent"`
	Brand    counterSet             `json:"brand"`
	Occasion counterSet             `json:"occasion"`
	Mood     counterSet             `json:"mood"`
	Viewed   []models.ViewedProduct `json:"viewed"`
	Searches []string               `json:"searches"`
}

func emptyState() state {
	return state{
		Scent:    newCounterSet(),
		Brand:    newCounterSet(),
		Occasion: newCounterSet(),
		Mood:     newCounterSet(),
	}
}

// Tracker converts discrete shopper signals into durable preference weights
// and short-term history. Every mutation persists the full state before
// returning; persistence failures are logged and swallowed so tracking never
// blocks the caller.
type Tracker struct {
	mu     sync.Mutex
	kv     localstore.KV
	key    string
	state  state
	logger *zap.Logger
	now    func() time.Time
}

// NewTracker loads the persisted preference state for the given storage key.
// A missing or corrupt snapshot reads as empty.
func NewTracker(ctx context.Context, kv localstore.KV, key string) *Tracker {
	t := &Tracker{
		kv:     kv,
		key:    key,
		state:  emptyState(),
		logger: util.GetLogger(),
		now:    time.Now,
	}

	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		t.logger.Warn("Failed to load preference state, starting empty",
			zap.String("key", key), zap.Error(err))
		return t
	}
	if !ok {
		return t
	}

	var loaded state
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		t.logger.Warn("Corrupt preference snapshot, starting empty",
			zap.String("key", key), zap.Error(err))
		return t
	}
	if loaded.Scent.Counts == nil {
		loaded.Scent.Counts = make(map[string]int)
	}
	if loaded.Brand.Counts == nil {
		loaded.Brand.Counts = make(map[string]int)
	}
	if loaded.Occasion.Counts == nil {
		loaded.Occasion.Counts = make(map[string]int)
	}
	if loaded.Mood.Counts == nil {
		loaded.Mood.Counts = make(map[string]int)
	}
	t.state = loaded
	return t
}

// TrackProductView records a product page view: the recency list is
// de-duplicated by product id and capped, the scent-family and brand
// counters each gain one count.
func (t *Tracker) TrackProductView(ctx context.Context, rec models.ViewedProduct) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec.ViewedAt = t.now()

	viewed := make([]models.ViewedProduct, 0, len(t.state.Viewed)+1)
	viewed = append(viewed, rec)
	for _, v := range t.state.Viewed {
		if v.ProductID == rec.ProductID {
			continue
		}
		viewed = append(viewed, v)
	}
	if len(viewed) > maxViewedProducts {
		viewed = viewed[:maxViewedProducts]
	}
	t.state.Viewed = viewed

	for _, family := range rec.ScentFamily {
		family = strings.ToLower(strings.TrimSpace(family))
		if family == "" {
			continue
		}
		t.state.Scent.increment(family)
	}
	if brand := strings.ToLower(strings.TrimSpace(rec.Brand)); brand != "" {
		t.state.Brand.increment(brand)
	}

	util.PreferenceEventsTotal.WithLabelValues("view").Inc()
	t.persist(ctx)
}

// TrackSearch records a submitted query, de-duplicating case-insensitively
// and keeping the most recent casing at the front.
func (t *Tracker) TrackSearch(ctx context.Context, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	lowered := strings.ToLower(query)
	searches := make([]string, 0, len(t.state.Searches)+1)
	searches = append(searches, query)
	for _, q := range t.state.Searches {
		if strings.ToLower(q) == lowered {
			continue
		}
		searches = append(searches, q)
	}
	if len(searches) > maxSearchHistory {
		searches = searches[:maxSearchHistory]
	}
	t.state.Searches = searches

	util.PreferenceEventsTotal.WithLabelValues("search").Inc()
	t.persist(ctx)
}

// TrackPreference increments the counter for value under the given kind.
// Unknown kinds are ignored.
func (t *Tracker) TrackPreference(ctx context.Context, kind models.PreferenceKind, value string) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || !models.ValidPreferenceKind(kind) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch kind {
	case models.PreferenceScent:
		t.state.Scent.increment(value)
	case models.PreferenceBrand:
		t.state.Brand.increment(value)
	case models.PreferenceOccasion:
		t.state.Occasion.increment(value)
	case models.PreferenceMood:
		t.state.Mood.increment(value)
	}

	util.PreferenceEventsTotal.WithLabelValues(string(kind)).Inc()
	t.persist(ctx)
}

// TopPreferences returns up to limit keys for the given kind, highest count
// first. Ties resolve by first-seen order.
func (t *Tracker) TopPreferences(kind models.PreferenceKind, limit int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 {
		limit = 5
	}
	switch kind {
	case models.PreferenceScent:
		return t.state.Scent.top(limit)
	case models.PreferenceBrand:
		return t.state.Brand.top(limit)
	case models.PreferenceOccasion:
		return t.state.Occasion.top(limit)
	case models.PreferenceMood:
		return t.state.Mood.top(limit)
	}
	return nil
}

// RecentSearches returns up to limit queries, most recent first.
func (t *Tracker) RecentSearches(limit int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 {
		limit = 5
	}
	if limit > len(t.state.Searches) {
		limit = len(t.state.Searches)
	}
	out := make([]string, limit)
	copy(out, t.state.Searches[:limit])
	return out
}

// RecentlyViewed returns up to limit viewed-product records, most recent first.
func (t *Tracker) RecentlyViewed(limit int) []models.ViewedProduct {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	if limit > len(t.state.Viewed) {
		limit = len(t.state.Viewed)
	}
	out := make([]models.ViewedProduct, limit)
	copy(out, t.state.Viewed[:limit])
	return out
}

// ClearHistory resets all counters and both history lists. Idempotent.
func (t *Tracker) ClearHistory(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = emptyState()
	t.persist(ctx)
}

// persist serializes the full state to the KV. Caller holds the mutex, so
// snapshots reach the store in mutation order (last writer wins).
func (t *Tracker) persist(ctx context.Context) {
	raw, err := json.Marshal(t.state)
	if err != nil {
		t.logger.Error("Failed to serialize preference state", zap.Error(err))
		util.PreferenceSaveFailuresTotal.Inc()
		return
	}
	if err := t.kv.Set(ctx, t.key, string(raw)); err != nil {
		t.logger.Warn("Failed to persist preference state",
			zap.String("key", t.key), zap.Error(err))
		util.PreferenceSaveFailuresTotal.Inc()
	}
}
