package cart

import (
	"context"
	"sync"
	"time"

	"shopper-service/internal/models"
	"shopper-service/internal/util"

	"go.uber.org/zap"
)

// ServerCart is the authoritative account-cart collaborator. Fetch and Sync
// carry the full line list; Merge accepts the guest lines and returns the
// merged, authoritative list. The merge conflict policy lives behind this
// interface, not in the engine.
type ServerCart interface {
	Fetch(ctx context.Context) ([]models.CartLine, error)
	Sync(ctx context.Context, lines []models.CartLine) error
	Merge(ctx context.Context, guestLines []models.CartLine) ([]models.CartLine, error)
}

// State is the engine's position in the auth-driven cart lifecycle.
type State int

const (
	Uninitialized State = iota
	GuestActive
	AuthenticatedActive
)

func (s State) String() string {
	switch s {
	case GuestActive:
		return "guest_active"
	case AuthenticatedActive:
		return "authenticated_active"
	}
	return "uninitialized"
}

// MergeResult summarizes a merge executed during an auth transition, for the
// caller to publish or surface. Nil when no merge ran.
type MergeResult struct {
	GuestLines  int
	MergedLines int
	Failed      bool
}

// Engine keeps a single logical cart reachable across sign-in and sign-out,
// and merges guest-accumulated items into the account cart exactly once per
// sign-in transition. Mutations apply to the in-memory active cart
// synchronously; persistence and server sync are best-effort and never
// surface errors to callers.
type Engine struct {
	mu sync.Mutex

	state      State
	lastStatus models.AuthStatus
	lines      []models.CartLine

	guest  *GuestStore
	server ServerCart

	merged        bool
	mergeInFlight bool
	pending       []func([]models.CartLine) []models.CartLine

	// Persistence writes are stamped with a version taken under mu and
	// serialized per store, so a slow earlier write can never land over a
	// later snapshot.
	guestWriteMu  sync.Mutex
	guestVersion  uint64
	guestWritten  uint64
	serverWriteMu sync.Mutex
	serverVersion uint64
	serverWritten uint64

	lastSyncFailed bool

	mergeTimeout time.Duration
	syncTimeout  time.Duration

	logger *zap.Logger
}

// NewEngine creates a reconciliation engine over a guest store and a server
// cart collaborator.
func NewEngine(guest *GuestStore, server ServerCart, mergeTimeout, syncTimeout time.Duration) *Engine {
	if mergeTimeout <= 0 {
		mergeTimeout = 10 * time.Second
	}
	if syncTimeout <= 0 {
		syncTimeout = 5 * time.Second
	}
	return &Engine{
		state:        Uninitialized,
		lastStatus:   models.AuthLoading,
		lines:        []models.CartLine{},
		guest:        guest,
		server:       server,
		mergeTimeout: mergeTimeout,
		syncTimeout:  syncTimeout,
		logger:       util.GetLogger(),
	}
}

// HandleAuthTransition observes a new auth status and runs the matching
// transition. Loading suspends all transition logic; re-observing an
// unchanged status is a no-op, so an already-merged authenticated session is
// never merged twice. Returns a MergeResult when a merge was executed.
func (e *Engine) HandleAuthTransition(ctx context.Context, status models.AuthStatus) *MergeResult {
	ctx, span := util.StartSpan(ctx, "Engine.HandleAuthTransition")
	defer span.End()

	e.mu.Lock()

	if status == models.AuthLoading || status == e.lastStatus {
		e.mu.Unlock()
		return nil
	}
	prev := e.lastStatus
	e.lastStatus = status

	switch {
	case status == models.AuthUnauthenticated:
		// First observation or sign-out: the guest store is loaded fresh.
		// State from the abandoned account cart must not leak in.
		e.state = GuestActive
		e.merged = false
		e.lines = e.guest.Load(ctx)
		var (
			lines   []models.CartLine
			version uint64
		)
		replayed := len(e.pending) > 0
		if replayed {
			e.replayPendingLocked()
			lines = e.snapshotLocked()
			e.guestVersion++
			version = e.guestVersion
		}
		e.mu.Unlock()
		if replayed {
			e.persistGuest(ctx, lines, version)
		}
		e.logger.Info("Cart engine entered guest state",
			zap.String("previous_status", string(prev)))
		return nil

	case status == models.AuthAuthenticated:
		if e.mergeInFlight {
			// The in-flight merge re-checks the last observed status
			// before adopting its result.
			e.mu.Unlock()
			return nil
		}
		if e.merged {
			e.state = AuthenticatedActive
			e.mu.Unlock()
			return nil
		}
		return e.runMergeLocked(ctx)
	}

	e.mu.Unlock()
	return nil
}

// runMergeLocked executes the merge algorithm. Called with the mutex held;
// releases it around the collaborator call so mutations arriving during the
// merge window queue instead of blocking, and reacquires it to adopt the
// result. Returns with the mutex released.
func (e *Engine) runMergeLocked(ctx context.Context) *MergeResult {
	guestLines := e.guest.Load(ctx)
	e.mergeInFlight = true
	e.mu.Unlock()

	util.CartMergesTotal.Inc()
	start := time.Now()

	var (
		adopted []models.CartLine
		failed  bool
	)

	if len(guestLines) == 0 {
		fetched, err := e.fetchWithTimeout(ctx)
		if err != nil {
			e.logger.Warn("Account cart fetch failed, keeping empty guest cart", zap.Error(err))
			adopted, failed = guestLines, true
		} else {
			adopted = fetched
		}
	} else {
		mctx, cancel := context.WithTimeout(ctx, e.mergeTimeout)
		mergedLines, err := e.server.Merge(mctx, guestLines)
		cancel()
		if err != nil {
			// Never lose a cart item: the guest cart stays authoritative
			// and the guest store is left intact for a later retry.
			e.logger.Warn("Cart merge failed, guest cart stays authoritative",
				zap.Int("guest_lines", len(guestLines)), zap.Error(err))
			adopted, failed = guestLines, true
		} else {
			adopted = models.SanitizeLines(mergedLines)
		}
	}

	util.CartMergeLatency.Observe(time.Since(start).Seconds())
	if failed {
		util.CartMergeFailuresTotal.Inc()
	}

	e.mu.Lock()
	e.mergeInFlight = false
	if e.lastStatus != models.AuthAuthenticated {
		// A sign-out arrived inside the merge window. The later transition
		// wins: the result is discarded, the guest store stays intact, and
		// the merge remains pending for the next sign-in.
		last := e.lastStatus
		e.mu.Unlock()
		e.logger.Info("Discarding merge result superseded by auth transition",
			zap.String("last_status", string(last)))
		return nil
	}
	e.state = AuthenticatedActive
	e.lines = adopted
	hadPending := len(e.pending) > 0
	e.replayPendingLocked()
	var (
		clearVersion uint64
		clearStore   bool
	)
	if !failed {
		e.merged = true
		if len(guestLines) > 0 {
			e.guestVersion++
			clearVersion = e.guestVersion
			clearStore = true
		}
	}
	var (
		lines       []models.CartLine
		syncVersion uint64
	)
	if hadPending {
		lines = e.snapshotLocked()
		e.serverVersion++
		syncVersion = e.serverVersion
	}
	e.mu.Unlock()

	if clearStore {
		e.clearGuest(ctx, clearVersion)
	}
	if hadPending {
		e.syncServer(ctx, lines, syncVersion)
	}

	return &MergeResult{
		GuestLines:  len(guestLines),
		MergedLines: len(adopted),
		Failed:      failed,
	}
}

// AddItem adds a line to the active cart. An existing line for the same
// product accumulates quantity; its first-seen display snapshot wins.
// Invalid items are ignored.
func (e *Engine) AddItem(ctx context.Context, item models.CartLine) {
	if !item.Valid() {
		return
	}
	util.CartMutationsTotal.WithLabelValues("add").Inc()
	e.mutate(ctx, func(lines []models.CartLine) []models.CartLine {
		return applyAdd(lines, item)
	})
}

// UpdateQuantity sets a line's quantity exactly. A quantity below one removes
// the line.
func (e *Engine) UpdateQuantity(ctx context.Context, productID int64, quantity int) {
	util.CartMutationsTotal.WithLabelValues("update").Inc()
	if quantity < 1 {
		e.mutate(ctx, func(lines []models.CartLine) []models.CartLine {
			return applyRemove(lines, productID)
		})
		return
	}
	e.mutate(ctx, func(lines []models.CartLine) []models.CartLine {
		return applySetQuantity(lines, productID, quantity)
	})
}

// RemoveItem deletes the matching line. Absent lines are a no-op, not an error.
func (e *Engine) RemoveItem(ctx context.Context, productID int64) {
	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	e.mutate(ctx, func(lines []models.CartLine) []models.CartLine {
		return applyRemove(lines, productID)
	})
}

// ClearCart empties the active cart and the guest store, and pushes the empty
// list to the account cart when authenticated.
func (e *Engine) ClearCart(ctx context.Context) {
	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	e.mu.Lock()
	e.lines = []models.CartLine{}
	queued := e.state == Uninitialized || e.mergeInFlight
	if queued {
		e.pending = append(e.pending, func([]models.CartLine) []models.CartLine {
			return []models.CartLine{}
		})
	}
	state := e.state
	e.guestVersion++
	guestVersion := e.guestVersion
	var serverVersion uint64
	if !queued && state == AuthenticatedActive {
		e.serverVersion++
		serverVersion = e.serverVersion
	}
	e.mu.Unlock()

	e.clearGuest(ctx, guestVersion)
	if !queued && state == AuthenticatedActive {
		e.syncServer(ctx, []models.CartLine{}, serverVersion)
	}
}

// RefreshCart re-derives the active cart from the current state's backing
// store without running the merge algorithm. Used after external mutations
// (for example, checkout completing in another surface).
func (e *Engine) RefreshCart(ctx context.Context) {
	e.mu.Lock()
	if e.mergeInFlight {
		e.mu.Unlock()
		return
	}
	state := e.state
	e.mu.Unlock()

	switch state {
	case AuthenticatedActive:
		fetched, err := e.fetchWithTimeout(ctx)
		if err != nil {
			e.logger.Warn("Cart refresh fetch failed, keeping current cart", zap.Error(err))
			return
		}
		e.mu.Lock()
		e.lines = fetched
		e.mu.Unlock()
	case GuestActive:
		loaded := e.guest.Load(ctx)
		e.mu.Lock()
		e.lines = loaded
		e.mu.Unlock()
	}
}

// Lines returns a copy of the active cart lines.
func (e *Engine) Lines() []models.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// ItemCount returns the sum of quantities in the active cart.
func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.ItemCount(e.lines)
}

// Subtotal returns the active cart subtotal in minor units.
func (e *Engine) Subtotal() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.Subtotal(e.lines)
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastSyncFailed reports whether the most recent account cart sync failed.
// The in-memory cart remains the session's source of truth either way; the
// flag exists so a UI layer can choose to notify.
func (e *Engine) LastSyncFailed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSyncFailed
}

// mutate applies op to the in-memory cart immediately, then persists or syncs
// according to the current state. Mutations before initialization or during
// an in-flight merge are additionally queued for replay onto the list the
// transition establishes.
func (e *Engine) mutate(ctx context.Context, op func([]models.CartLine) []models.CartLine) {
	e.mu.Lock()
	e.lines = op(e.lines)

	if e.state == Uninitialized || e.mergeInFlight {
		e.pending = append(e.pending, op)
		e.mu.Unlock()
		return
	}

	state := e.state
	lines := e.snapshotLocked()
	var version uint64
	switch state {
	case GuestActive:
		e.guestVersion++
		version = e.guestVersion
	case AuthenticatedActive:
		e.serverVersion++
		version = e.serverVersion
	}
	e.mu.Unlock()

	switch state {
	case GuestActive:
		e.persistGuest(ctx, lines, version)
	case AuthenticatedActive:
		e.syncServer(ctx, lines, version)
	}
}

// persistGuest writes a snapshot to the guest store. Writes are serialized
// and a write whose version is older than one already persisted is skipped,
// so a slow earlier save cannot overwrite a later snapshot.
func (e *Engine) persistGuest(ctx context.Context, lines []models.CartLine, version uint64) {
	e.guestWriteMu.Lock()
	defer e.guestWriteMu.Unlock()
	if version <= e.guestWritten {
		return
	}
	e.guestWritten = version
	e.guest.Save(ctx, lines)
}

// clearGuest is the delete counterpart of persistGuest, under the same
// ordering discipline.
func (e *Engine) clearGuest(ctx context.Context, version uint64) {
	e.guestWriteMu.Lock()
	defer e.guestWriteMu.Unlock()
	if version <= e.guestWritten {
		return
	}
	e.guestWritten = version
	e.guest.Clear(ctx)
}

// syncServer pushes the full line list to the account cart, best-effort, with
// the same versioned write ordering as persistGuest.
func (e *Engine) syncServer(ctx context.Context, lines []models.CartLine, version uint64) {
	e.serverWriteMu.Lock()
	defer e.serverWriteMu.Unlock()
	if version <= e.serverWritten {
		return
	}
	e.serverWritten = version

	sctx, cancel := context.WithTimeout(ctx, e.syncTimeout)
	defer cancel()

	err := e.server.Sync(sctx, lines)

	e.mu.Lock()
	e.lastSyncFailed = err != nil
	e.mu.Unlock()

	if err != nil {
		util.CartSyncFailuresTotal.Inc()
		e.logger.Warn("Account cart sync failed", zap.Error(err))
	}
}

func (e *Engine) fetchWithTimeout(ctx context.Context) ([]models.CartLine, error) {
	fctx, cancel := context.WithTimeout(ctx, e.mergeTimeout)
	defer cancel()

	fetched, err := e.server.Fetch(fctx)
	if err != nil {
		return nil, err
	}
	return models.SanitizeLines(fetched), nil
}

func (e *Engine) replayPendingLocked() {
	for _, op := range e.pending {
		e.lines = op(e.lines)
	}
	e.pending = nil
}

func (e *Engine) snapshotLocked() []models.CartLine {
	out := make([]models.CartLine, len(e.lines))
	copy(out, e.lines)
	return out
}

func applyAdd(lines []models.CartLine, item models.CartLine) []models.CartLine {
	for i := range lines {
		if lines[i].ProductID == item.ProductID {
			lines[i].Quantity += item.Quantity
			return lines
		}
	}
	return append(lines, item)
}

func applySetQuantity(lines []models.CartLine, productID int64, quantity int) []models.CartLine {
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = quantity
			return lines
		}
	}
	return lines
}

func applyRemove(lines []models.CartLine, productID int64) []models.CartLine {
	out := lines[:0]
	for _, l := range lines {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	return out
}
