package cart

import (
	"context"
	"testing"

	"shopper-service/internal/localstore"
	"shopper-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	store := NewGuestStore(kv, "g:cart")

	lines := []models.CartLine{
		{ProductID: 1, Name: "Aventus", Brand: "Creed", UnitPrice: 32500, Quantity: 1},
		{ProductID: 2, Name: "Sauvage", Brand: "Dior", UnitPrice: 11900, Quantity: 2},
	}
	store.Save(ctx, lines)

	loaded := store.Load(ctx)
	assert.Equal(t, lines, loaded)
}

func TestGuestStoreMissingKeyLoadsEmpty(t *testing.T) {
	store := NewGuestStore(localstore.NewMemory(), "g:cart")
	assert.Empty(t, store.Load(context.Background()))
}

func TestGuestStoreCorruptPayloadLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	require.NoError(t, kv.Set(ctx, "g:cart", "{not json"))

	store := NewGuestStore(kv, "g:cart")
	assert.Empty(t, store.Load(ctx))
}

func TestGuestStoreDropsInvalidLines(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	require.NoError(t, kv.Set(ctx, "g:cart",
		`[{"product_id":0,"quantity":2},{"product_id":3,"quantity":0},{"product_id":4,"quantity":1}]`))

	store := NewGuestStore(kv, "g:cart")
	loaded := store.Load(ctx)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(4), loaded[0].ProductID)
}

func TestGuestStoreSwallowsWriteFailures(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	kv.FailWrites = true

	store := NewGuestStore(kv, "g:cart")

	// Must not panic or surface the error.
	store.Save(ctx, []models.CartLine{{ProductID: 1, Quantity: 1}})
	store.Clear(ctx)
}

func TestGuestStoreSwallowsReadFailures(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	kv.FailReads = true

	store := NewGuestStore(kv, "g:cart")
	assert.Empty(t, store.Load(ctx))
}
