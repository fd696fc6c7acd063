package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knakatani/kabufolio/internal/common"
	"github.com/knakatani/kabufolio/internal/interfaces"
	"github.com/knakatani/kabufolio/internal/models"
)

func newTestCache(t *testing.T) *FileCache {
	t.Helper()
	cache, err := NewFileCache(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	return cache
}

func TestFileCache_MissOnAbsentKey(t *testing.T) {
	cache := newTestCache(t)

	var out models.CachedPrice
	err := cache.Get("price:AAPL", &out)
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestFileCache_RoundTrip(t *testing.T) {
	cache := newTestCache(t)

	in := models.CachedPrice{Ticker: "AAPL", Price: 160.25, FetchedAt: time.Now().UTC()}
	require.NoError(t, cache.Put("price:AAPL", in))

	var out models.CachedPrice
	require.NoError(t, cache.Get("price:AAPL", &out))
	assert.Equal(t, "AAPL", out.Ticker)
	assert.Equal(t, 160.25, out.Price)
}

func TestFileCache_CorruptEntryIsMiss(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, os.WriteFile(cache.filePath("bad"), []byte("{not json"), 0644))

	var out models.CachedPrice
	assert.ErrorIs(t, cache.Get("bad", &out), interfaces.ErrCacheMiss)
}

func TestFileCache_Delete(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.Put("k", map[string]int{"v": 1}))
	require.NoError(t, cache.Delete("k"))

	var out map[string]int
	assert.ErrorIs(t, cache.Get("k", &out), interfaces.ErrCacheMiss)

	// Absent keys are not an error.
	assert.NoError(t, cache.Delete("k"))
}

func TestFileCache_KeySanitization(t *testing.T) {
	cache := newTestCache(t)

	// Tickers carry dots and cache keys carry colons; neither may escape
	// the cache directory.
	keys := []string{"price:7203.T", "fx:USDJPY", "../../etc/passwd"}
	for _, key := range keys {
		require.NoError(t, cache.Put(key, map[string]string{"k": key}))

		rel, err := filepath.Rel(cache.basePath, cache.filePath(key))
		require.NoError(t, err)
		assert.NotContains(t, rel, "..", "key %q must stay inside the cache dir", key)

		var out map[string]string
		require.NoError(t, cache.Get(key, &out))
		assert.Equal(t, key, out["k"])
	}
}

func newTestStore(t *testing.T) *FilePositionStore {
	t.Helper()
	store, err := NewFilePositionStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	return store
}

func samplePosition(id string) models.RawPosition {
	return models.RawPosition{
		ID:              id,
		TransactionDate: "2023-01-01",
		Ticker:          "AAPL",
		Quantity:        100,
		CostPerUnit:     150,
		TransactionCcy:  "USD",
		StockCcy:        "USD",
	}
}

func TestFilePositionStore_EmptyLedger(t *testing.T) {
	store := newTestStore(t)

	positions, err := store.ListPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestFilePositionStore_AddAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddPosition(ctx, samplePosition("a")))
	require.NoError(t, store.AddPosition(ctx, samplePosition("b")))

	positions, err := store.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "a", positions[0].ID, "recorded order is preserved")
	assert.Equal(t, "b", positions[1].ID)
}

func TestFilePositionStore_DuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddPosition(ctx, samplePosition("a")))
	assert.Error(t, store.AddPosition(ctx, samplePosition("a")))
}

func TestFilePositionStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddPosition(ctx, samplePosition("a")))
	require.NoError(t, store.AddPosition(ctx, samplePosition("b")))

	found, err := store.DeletePosition(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)

	positions, err := store.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "b", positions[0].ID)

	found, err = store.DeletePosition(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFilePositionStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFilePositionStore(common.NewSilentLogger(), dir)
	require.NoError(t, err)
	require.NoError(t, store.AddPosition(ctx, samplePosition("a")))

	reopened, err := NewFilePositionStore(common.NewSilentLogger(), dir)
	require.NoError(t, err)
	positions, err := reopened.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "a", positions[0].ID)
}
