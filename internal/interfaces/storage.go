// Package interfaces defines service contracts for Kabufolio
package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/knakatani/kabufolio/internal/models"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a keyed JSON cache. The market layer owns freshness judgments;
// the cache itself only stores and retrieves, so the valuation core stays
// agnostic to the storage medium.
type Cache interface {
	// Get unmarshals the cached value for key into dest. Returns
	// ErrCacheMiss when the key is absent.
	Get(key string, dest interface{}) error

	// Put stores a value under key, overwriting any previous value.
	Put(key string, value interface{}) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(key string) error
}

// PositionStore persists the raw transaction ledger. RawPositions are
// immutable: corrections are delete + re-add.
type PositionStore interface {
	ListPositions(ctx context.Context) ([]models.RawPosition, error)
	SavePositions(ctx context.Context, positions []models.RawPosition) error
	AddPosition(ctx context.Context, position models.RawPosition) error
	DeletePosition(ctx context.Context, id string) (bool, error)
}

// Clock supplies the current time. Injected wherever "now" matters so
// tests and the rate limiter never depend on ambient timing state.
type Clock interface {
	Now() time.Time
}
