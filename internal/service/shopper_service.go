package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shopper-service/internal/broker"
	"shopper-service/internal/cart"
	"shopper-service/internal/localstore"
	"shopper-service/internal/models"
	"shopper-service/internal/prefs"
	"shopper-service/internal/recommend"
	"shopper-service/internal/store"
	"shopper-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ShopperService owns the per-session cart engines and preference trackers
// and binds them to the durable local store, the account cart store, the
// recommendation builder, and the behavior event stream.
type ShopperService struct {
	kv        localstore.KV
	store     *store.Store
	publisher *broker.EventPublisher
	recs      *recommend.Builder

	mergeTimeout time.Duration
	syncTimeout  time.Duration

	mu       sync.Mutex
	sessions map[string]*session

	logger *zap.Logger
}

// session bundles the per-client-context state: one reconciliation engine,
// one preference tracker, and the account binding once authenticated.
type session struct {
	engine  *cart.Engine
	tracker *prefs.Tracker
	account *accountCartRef
}

// NewShopperService creates a new shopper service
func NewShopperService(
	kv localstore.KV,
	st *store.Store,
	publisher *broker.EventPublisher,
	recs *recommend.Builder,
	mergeTimeout, syncTimeout time.Duration,
) *ShopperService {
	return &ShopperService{
		kv:           kv,
		store:        st,
		publisher:    publisher,
		recs:         recs,
		mergeTimeout: mergeTimeout,
		syncTimeout:  syncTimeout,
		sessions:     make(map[string]*session),
		logger:       util.GetLogger(),
	}
}

func guestCartKey(sessionID string) string { return "session:" + sessionID + ":guestcart" }
func prefsKey(sessionID string) string     { return "session:" + sessionID + ":prefs" }

// session returns the state for a session id, constructing it on first use.
// Construction reads the persisted preference snapshot, so it happens outside
// the registry lock; when two requests race the first registered wins.
func (s *ShopperService) session(ctx context.Context, sessionID string) *session {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		return sess
	}
	s.mu.Unlock()

	account := &accountCartRef{store: s.store}
	guest := cart.NewGuestStore(s.kv, guestCartKey(sessionID))
	sess := &session{
		engine:  cart.NewEngine(guest, account, s.mergeTimeout, s.syncTimeout),
		tracker: prefs.NewTracker(ctx, s.kv, prefsKey(sessionID)),
		account: account,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok {
		return existing
	}
	s.sessions[sessionID] = sess
	return sess
}

// HandleAuthTransition feeds an observed auth status change into the
// session's cart engine. userID binds the account cart and is required when
// status is authenticated.
func (s *ShopperService) HandleAuthTransition(ctx context.Context, sessionID string, status models.AuthStatus, userID int64) {
	ctx, span := util.StartSpan(ctx, "ShopperService.HandleAuthTransition")
	defer span.End()

	sess := s.session(ctx, sessionID)

	switch status {
	case models.AuthAuthenticated:
		if userID <= 0 {
			s.logger.Warn("Authenticated transition without user id, ignoring",
				zap.String("session_id", sessionID))
			return
		}
		sess.account.bind(userID)
	case models.AuthUnauthenticated:
		sess.account.unbind()
	}

	result := sess.engine.HandleAuthTransition(ctx, status)
	if result != nil && !result.Failed && result.GuestLines > 0 {
		s.publishCartMerged(ctx, sessionID, userID, result)
	}
}

// CartSummary is the derived cart view served to the storefront.
type CartSummary struct {
	Lines          []models.CartLine `json:"lines"`
	ItemCount      int               `json:"item_count"`
	Subtotal       int64             `json:"subtotal"`
	State          string            `json:"state"`
	LastSyncFailed bool              `json:"last_sync_failed"`
}

// Summary returns the derived cart view for a session.
func (s *ShopperService) Summary(ctx context.Context, sessionID string) CartSummary {
	engine := s.session(ctx, sessionID).engine
	lines := engine.Lines()
	return CartSummary{
		Lines:          lines,
		ItemCount:      models.ItemCount(lines),
		Subtotal:       models.Subtotal(lines),
		State:          engine.State().String(),
		LastSyncFailed: engine.LastSyncFailed(),
	}
}

// AddItem adds a line to the session's active cart.
func (s *ShopperService) AddItem(ctx context.Context, sessionID string, item models.CartLine) {
	s.session(ctx, sessionID).engine.AddItem(ctx, item)
}

// UpdateQuantity sets a line's quantity; below one removes the line.
func (s *ShopperService) UpdateQuantity(ctx context.Context, sessionID string, productID int64, quantity int) {
	s.session(ctx, sessionID).engine.UpdateQuantity(ctx, productID, quantity)
}

// RemoveItem deletes a line from the session's active cart.
func (s *ShopperService) RemoveItem(ctx context.Context, sessionID string, productID int64) {
	s.session(ctx, sessionID).engine.RemoveItem(ctx, productID)
}

// ClearCart empties the session's cart everywhere it is persisted.
func (s *ShopperService) ClearCart(ctx context.Context, sessionID string) {
	sess := s.session(ctx, sessionID)
	sess.engine.ClearCart(ctx)

	if s.publisher == nil {
		return
	}
	event := &models.CartClearedEvent{
		BaseEvent: baseEvent(models.EventTypeCartCleared),
		SessionID: sessionID,
		UserID:    sess.account.current(),
	}
	if err := s.publisher.PublishCartCleared(ctx, event); err != nil {
		s.logger.Warn("Failed to publish CartCleared event", zap.Error(err))
	}
}

// RefreshCart re-derives the session's cart from its current backing store.
func (s *ShopperService) RefreshCart(ctx context.Context, sessionID string) {
	s.session(ctx, sessionID).engine.RefreshCart(ctx)
}

// TrackView records a product page view and feeds the trending pipeline.
func (s *ShopperService) TrackView(ctx context.Context, sessionID string, rec models.ViewedProduct) {
	s.session(ctx, sessionID).tracker.TrackProductView(ctx, rec)

	if s.publisher == nil {
		return
	}
	event := &models.ProductViewedEvent{
		BaseEvent:   baseEvent(models.EventTypeProductViewed),
		SessionID:   sessionID,
		ProductID:   rec.ProductID,
		Brand:       rec.Brand,
		ScentFamily: rec.ScentFamily,
	}
	if err := s.publisher.PublishProductViewed(ctx, event); err != nil {
		s.logger.Warn("Failed to publish ProductViewed event", zap.Error(err))
	}
}

// TrackSearch records a submitted search query.
func (s *ShopperService) TrackSearch(ctx context.Context, sessionID, query string) {
	s.session(ctx, sessionID).tracker.TrackSearch(ctx, query)

	if s.publisher == nil {
		return
	}
	event := &models.SearchSubmittedEvent{
		BaseEvent: baseEvent(models.EventTypeSearchSubmitted),
		SessionID: sessionID,
		Query:     query,
	}
	if err := s.publisher.PublishSearchSubmitted(ctx, event); err != nil {
		s.logger.Warn("Failed to publish SearchSubmitted event", zap.Error(err))
	}
}

// TrackPreference increments a preference counter for the session.
func (s *ShopperService) TrackPreference(ctx context.Context, sessionID string, kind models.PreferenceKind, value string) {
	s.session(ctx, sessionID).tracker.TrackPreference(ctx, kind, value)
}

// ClearHistory wipes the session's preference state.
func (s *ShopperService) ClearHistory(ctx context.Context, sessionID string) {
	s.session(ctx, sessionID).tracker.ClearHistory(ctx)
}

// TopPreferences returns the highest-counted keys for a preference kind.
func (s *ShopperService) TopPreferences(ctx context.Context, sessionID string, kind models.PreferenceKind, limit int) []string {
	return s.session(ctx, sessionID).tracker.TopPreferences(kind, limit)
}

// RecentSearches returns the session's most recent queries.
func (s *ShopperService) RecentSearches(ctx context.Context, sessionID string, limit int) []string {
	return s.session(ctx, sessionID).tracker.RecentSearches(limit)
}

// RecentlyViewed returns the session's most recently viewed products.
func (s *ShopperService) RecentlyViewed(ctx context.Context, sessionID string, limit int) []models.ViewedProduct {
	return s.session(ctx, sessionID).tracker.RecentlyViewed(limit)
}

// RecommendForMood returns products for a mood tag.
func (s *ShopperService) RecommendForMood(ctx context.Context, mood string, limit int) []models.Product {
	return s.recs.ForMood(ctx, mood, limit)
}

// RecommendForSeason returns products for a season tag.
func (s *ShopperService) RecommendForSeason(ctx context.Context, season string, limit int) []models.Product {
	return s.recs.ForSeason(ctx, season, limit)
}

func (s *ShopperService) publishCartMerged(ctx context.Context, sessionID string, userID int64, result *cart.MergeResult) {
	if s.publisher == nil {
		return
	}
	event := &models.CartMergedEvent{
		BaseEvent:  baseEvent(models.EventTypeCartMerged),
		SessionID:  sessionID,
		UserID:     userID,
		GuestLines: result.GuestLines,
		MergedInto: result.MergedLines,
	}
	if err := s.publisher.PublishCartMerged(ctx, event); err != nil {
		s.logger.Warn("Failed to publish CartMerged event", zap.Error(err))
	}
}

func baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// accountCartRef gives the engine a stable ServerCart whose user binding is
// settable at sign-in time. While bound it delegates to a store.AccountCart
// for that user; unbound calls error.
type accountCartRef struct {
	mu     sync.Mutex
	store  *store.Store
	cart   *store.AccountCart
	userID int64
}

func (r *accountCartRef) bind(userID int64) {
	r.mu.Lock()
	r.userID = userID
	r.cart = r.store.NewAccountCart(userID)
	r.mu.Unlock()
}

func (r *accountCartRef) unbind() {
	r.mu.Lock()
	r.userID = 0
	r.cart = nil
	r.mu.Unlock()
}

func (r *accountCartRef) current() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID
}

func (r *accountCartRef) bound() (*store.AccountCart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cart == nil {
		return nil, fmt.Errorf("no authenticated user bound to session")
	}
	return r.cart, nil
}

func (r *accountCartRef) Fetch(ctx context.Context) ([]models.CartLine, error) {
	ac, err := r.bound()
	if err != nil {
		return nil, err
	}
	return ac.Fetch(ctx)
}

func (r *accountCartRef) Sync(ctx context.Context, lines []models.CartLine) error {
	ac, err := r.bound()
	if err != nil {
		return err
	}
	return ac.Sync(ctx, lines)
}

func (r *accountCartRef) Merge(ctx context.Context, guestLines []models.CartLine) ([]models.CartLine, error) {
	ac, err := r.bound()
	if err != nil {
		return nil, err
	}
	return ac.Merge(ctx, guestLines)
}
