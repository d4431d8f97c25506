// Package cache defines the key-value cache port used for project reads,
// the cache key layout, and the invalidation protocol that keeps cached
// entries consistent with the store across mutations.
package cache

import (
	"context"
	"errors"
	"time"
)

// Result is the outcome of a cache read.
type Result int

// Possible read outcomes. Unavailable means the backend could not be asked
// at all; callers treat it like a miss but it is reported separately so
// that logs and metrics can tell the two apart.
const (
	Miss Result = iota
	Hit
	Unavailable
)

// String implements fmt.Stringer.
func (r Result) String() string {
	switch r {
	case Hit:
		return "hit"
	case Unavailable:
		return "unavailable"
	default:
		return "miss"
	}
}

// ErrUnavailable is returned by Get and Set when the backend is known to be
// down. Delete and Keys always try the backend.
var ErrUnavailable = errors.New("cache unavailable")

// Cache is a non-authoritative key-value store with per-entry expiry.
// Values are opaque serialized bytes.
type Cache interface {
	// Get reads key. The error is non-nil only alongside Unavailable.
	Get(ctx context.Context, key string) ([]byte, Result, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys. Missing keys are not an error. It is attempted
	// regardless of Available so invalidation reaches a recovered server.
	Delete(ctx context.Context, keys ...string) error

	// Keys enumerates keys matching a glob pattern such as "project:*".
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Available reports the last observed backend health.
	Available() bool
}
