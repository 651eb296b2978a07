package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"shopper-service/internal/localstore"
	"shopper-service/internal/models"
	"shopper-service/internal/recommend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptySource struct{}

func (emptySource) SearchByScentKeywords(ctx context.Context, keywords []string, limit int) ([]models.Product, error) {
	return []models.Product{}, nil
}

func (emptySource) TrendingActive(ctx context.Context, limit int) ([]models.Product, error) {
	return []models.Product{}, nil
}

// newGuestOnlyService wires a service without database, broker, or tracing
// backends; the guest flow never touches them.
func newGuestOnlyService() *ShopperService {
	return NewShopperService(
		localstore.NewMemory(), nil, nil, recommend.NewBuilder(emptySource{}),
		time.Second, time.Second,
	)
}

func TestSessionStateIsReusedPerSessionID(t *testing.T) {
	ctx := context.Background()
	svc := newGuestOnlyService()

	svc.HandleAuthTransition(ctx, "sess-1", models.AuthUnauthenticated, 0)
	svc.AddItem(ctx, "sess-1", models.CartLine{ProductID: 1, Quantity: 2, UnitPrice: 100})

	summary := svc.Summary(ctx, "sess-1")
	assert.Equal(t, 2, summary.ItemCount)
	assert.Equal(t, int64(200), summary.Subtotal)

	// A different session id sees its own, empty cart.
	other := svc.Summary(ctx, "sess-2")
	assert.Zero(t, other.ItemCount)
}

func TestSummaryDerivesFromLines(t *testing.T) {
	ctx := context.Background()
	svc := newGuestOnlyService()

	svc.HandleAuthTransition(ctx, "s", models.AuthUnauthenticated, 0)
	svc.AddItem(ctx, "s", models.CartLine{ProductID: 1, Quantity: 1, UnitPrice: 100})
	svc.AddItem(ctx, "s", models.CartLine{ProductID: 2, Quantity: 3, UnitPrice: 50})

	summary := svc.Summary(ctx, "s")
	require.Len(t, summary.Lines, 2)
	assert.Equal(t, 4, summary.ItemCount)
	assert.Equal(t, int64(250), summary.Subtotal)
	assert.Equal(t, "guest_active", summary.State)
	assert.False(t, summary.LastSyncFailed)
}

func TestTrackingFlowsThroughSessionTracker(t *testing.T) {
	ctx := context.Background()
	svc := newGuestOnlyService()

	svc.TrackSearch(ctx, "s", "Tom Ford")
	svc.TrackPreference(ctx, "s", models.PreferenceMood, "woody")
	svc.TrackView(ctx, "s", models.ViewedProduct{
		ProductID:   9,
		Brand:       "Le Labo",
		ScentFamily: []string{"woody"},
	})

	assert.Equal(t, []string{"Tom Ford"}, svc.RecentSearches(ctx, "s", 5))
	assert.Equal(t, []string{"woody"}, svc.TopPreferences(ctx, "s", models.PreferenceMood, 5))
	require.Len(t, svc.RecentlyViewed(ctx, "s", 5), 1)

	svc.ClearHistory(ctx, "s")
	assert.Empty(t, svc.RecentSearches(ctx, "s", 5))
}

func TestAuthTransitionWithoutUserIDIsIgnored(t *testing.T) {
	ctx := context.Background()
	svc := newGuestOnlyService()

	svc.HandleAuthTransition(ctx, "s", models.AuthAuthenticated, 0)

	// The engine must not have transitioned against an unbound account.
	assert.Equal(t, "uninitialized", svc.Summary(ctx, "s").State)
}

func TestAccountCartRefErrorsWhenUnbound(t *testing.T) {
	ctx := context.Background()
	ref := &accountCartRef{}

	_, err := ref.Fetch(ctx)
	require.Error(t, err)
	require.Error(t, ref.Sync(ctx, nil))
	_, err = ref.Merge(ctx, nil)
	require.Error(t, err)

	ref.bind(42)
	assert.Equal(t, int64(42), ref.current())

	ref.unbind()
	assert.Zero(t, ref.current())
	_, err = ref.Fetch(ctx)
	assert.Error(t, err)
}

// gateKV blocks the first Get of one key until released, simulating a slow
// preference snapshot read.
type gateKV struct {
	*localstore.Memory
	gateKey string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (k *gateKV) Get(ctx context.Context, key string) (string, bool, error) {
	if key == k.gateKey {
		k.once.Do(func() {
			close(k.entered)
			<-k.release
		})
	}
	return k.Memory.Get(ctx, key)
}

func TestSlowPreferenceLoadDoesNotBlockOtherSessions(t *testing.T) {
	ctx := context.Background()
	kv := &gateKV{
		Memory:  localstore.NewMemory(),
		gateKey: prefsKey("slow"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewShopperService(kv, nil, nil, recommend.NewBuilder(emptySource{}), time.Second, time.Second)

	constructed := make(chan struct{})
	go func() {
		svc.Summary(ctx, "slow")
		close(constructed)
	}()
	<-kv.entered

	done := make(chan struct{})
	go func() {
		svc.Summary(ctx, "fast")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("request for another session blocked behind a slow preference load")
	}

	close(kv.release)
	<-constructed
}

func TestConcurrentSessionConstructionRegistersOne(t *testing.T) {
	ctx := context.Background()
	kv := &gateKV{
		Memory:  localstore.NewMemory(),
		gateKey: prefsKey("dup"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewShopperService(kv, nil, nil, recommend.NewBuilder(emptySource{}), time.Second, time.Second)

	var (
		wg     sync.WaitGroup
		s1, s2 *session
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		s1 = svc.session(ctx, "dup")
	}()
	go func() {
		defer wg.Done()
		s2 = svc.session(ctx, "dup")
	}()

	<-kv.entered
	close(kv.release)
	wg.Wait()

	assert.Same(t, s1, s2, "racing constructions must resolve to one registered session")
}
