// Package common provides shared utilities for Kabufolio
package common

import "time"

// Freshness TTLs for cached market data
const (
	FreshnessCurrentPrice = 15 * time.Minute
	FreshnessCurrentFX    = 15 * time.Minute
	FreshnessPriceSeries  = 24 * time.Hour       // historical bars only grow at the tail
	FreshnessHistoricalFX = 365 * 24 * time.Hour // a past date's rate never changes
)

// IsFresh returns true if the given timestamp is within the TTL of now.
func IsFresh(updated time.Time, ttl time.Duration, now time.Time) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}
