package prefs

import (
	"context"
	"fmt"
	"testing"

	"shopper-service/internal/localstore"
	"shopper-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewed(productID int64, brand string, families ...string) models.ViewedProduct {
	return models.ViewedProduct{
		ProductID:   productID,
		Slug:        fmt.Sprintf("perfume-%d", productID),
		Name:        fmt.Sprintf("Perfume %d", productID),
		Brand:       brand,
		ScentFamily: families,
	}
}

func TestRecentlyViewedCapAndEviction(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, localstore.NewMemory(), "t:prefs")

	for i := int64(1); i <= 51; i++ {
		tracker.TrackProductView(ctx, viewed(i, "brand"))
	}

	all := tracker.RecentlyViewed(100)
	require.Len(t, all, 50)
	assert.Equal(t, int64(51), all[0].ProductID)
	// The first view is the one evicted.
	for _, v := range all {
		assert.NotEqual(t, int64(1), v.ProductID)
	}
}

func TestReViewMovesToFrontWithoutDuplicating(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, localstore.NewMemory(), "t:prefs")

	tracker.TrackProductView(ctx, viewed(1, "creed"))
	tracker.TrackProductView(ctx, viewed(2, "dior"))
	tracker.TrackProductView(ctx, viewed(3, "chanel"))

	tracker.TrackProductView(ctx, viewed(1, "creed"))

	all := tracker.RecentlyViewed(10)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].ProductID)
}

func TestProductViewIncrementsScentAndBrandCounters(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, localstore.NewMemory(), "t:prefs")

	tracker.TrackProductView(ctx, viewed(1, "Creed", "Woody", "amber"))
	tracker.TrackProductView(ctx, viewed(2, "Dior", "woody"))

	assert.Equal(t, []string{"woody", "amber"}, tracker.TopPreferences(models.PreferenceScent, 5))
	assert.ElementsMatch(t, []string{"creed", "dior"}, tracker.TopPreferences(models.PreferenceBrand, 5))
}

func TestEmptyScentFamilyIsNoOpForCounters(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, localstore.NewMemory(), "t:prefs")

	tracker.TrackProductView(ctx, viewed(1, "creed"))

	assert.Empty(t, tracker.TopPreferences(models.PreferenceScent, 5))
	assert.Len(t, tracker.RecentlyViewed(10), 1)
}

func TestPreferenceRanking(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, localstore.NewMemory(), "t:prefs")

	tracker.TrackPreference(ctx, models.PreferenceMood, "fresh")
	tracker.TrackPreference(ctx, models.PreferenceMood, "fresh")
	tracker.TrackPreference(ctx, models.PreferenceMood, "fresh")
	tracker.TrackPreference(ctx, models.PreferenceMood, "bold")

	assert.Equal(t, []string{"fresh", "bold"}, tracker.TopPreferences(models.PreferenceMood, 2))
}

func TestPreferenceRankingTieBreaksByFirstSeen(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, localstore.NewMemory(), "t:prefs")

	tracker.TrackPreference(ctx, models.PreferenceOccasion, "office")
	tracker.TrackPreference(ctx, models.PreferenceOccasion, "date")
	tracker.TrackPreference(ctx, models.PreferenceOccasion, "gym")
	tracker.TrackPreference(ctx, models.PreferenceOccasion, "date")

	assert.Equal(t, []string{"date", "office", "gym"},
		tracker.TopPreferences(models.PreferenceOccasion, 5))
}

func TestSearchHistoryDedupKeepsLatestCasing(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, localstore.NewMemory(), "t:prefs")

	tracker.TrackSearch(ctx, "Dior")
	tracker.TrackSearch(ctx, "dior")

	searches := tracker.RecentSearches(10)
	require.Len(t, searches, 1)
	assert.Equal(t, "dior", searches[0])
}

func TestSearchHistoryCap(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, localstore.NewMemory(), "t:prefs")

	for i := 1; i <= 25; i++ {
		tracker.TrackSearch(ctx, fmt.Sprintf("query %d", i))
	}

	searches := tracker.RecentSearches(100)
	require.Len(t, searches, 20)
	assert.Equal(t, "query 25", searches[0])
}

func TestBlankSearchIsIgnored(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, localstore.NewMemory(), "t:prefs")

	tracker.TrackSearch(ctx, "   ")

	assert.Empty(t, tracker.RecentSearches(10))
}

func TestClearHistoryResetsEverythingAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, localstore.NewMemory(), "t:prefs")

	tracker.TrackProductView(ctx, viewed(1, "creed", "woody"))
	tracker.TrackSearch(ctx, "oud")
	tracker.TrackPreference(ctx, models.PreferenceMood, "bold")

	tracker.ClearHistory(ctx)
	tracker.ClearHistory(ctx)

	assert.Empty(t, tracker.RecentlyViewed(10))
	assert.Empty(t, tracker.RecentSearches(10))
	assert.Empty(t, tracker.TopPreferences(models.PreferenceMood, 5))
	assert.Empty(t, tracker.TopPreferences(models.PreferenceScent, 5))
}

func TestStatePersistsAcrossTrackerInstances(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()

	first := NewTracker(ctx, kv, "t:prefs")
	first.TrackProductView(ctx, viewed(1, "creed", "woody"))
	first.TrackSearch(ctx, "aventus")
	first.TrackPreference(ctx, models.PreferenceMood, "bold")

	second := NewTracker(ctx, kv, "t:prefs")
	assert.Equal(t, []string{"aventus"}, second.RecentSearches(10))
	assert.Equal(t, []string{"bold"}, second.TopPreferences(models.PreferenceMood, 5))
	require.Len(t, second.RecentlyViewed(10), 1)
	assert.Equal(t, int64(1), second.RecentlyViewed(10)[0].ProductID)
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	require.NoError(t, kv.Set(ctx, "t:prefs", "][ nope"))

	tracker := NewTracker(ctx, kv, "t:prefs")
	assert.Empty(t, tracker.RecentSearches(10))
	assert.Empty(t, tracker.RecentlyViewed(10))
}

func TestPersistenceFailureDoesNotBlockTracking(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	kv.FailWrites = true

	tracker := NewTracker(ctx, kv, "t:prefs")
	tracker.TrackSearch(ctx, "vanilla")

	assert.Equal(t, []string{"vanilla"}, tracker.RecentSearches(10))
}
