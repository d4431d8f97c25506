package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GetJSON reads key and decodes it into dst. A value that fails to decode
// is reported as a Miss together with the decode error, so the caller falls
// back to the store.
func GetJSON(ctx context.Context, c Cache, key Key, dst any) (Result, error) {
	if c == nil {
		return Unavailable, ErrUnavailable
	}
	raw, res, err := c.Get(ctx, key.String())
	if res != Hit {
		return res, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return Miss, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return Hit, nil
}

// SetJSON encodes value and stores it under key for ttl.
func SetJSON(ctx context.Context, c Cache, key Key, value any, ttl time.Duration) error {
	if c == nil {
		return ErrUnavailable
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s for cache: %w", key, err)
	}
	return c.Set(ctx, key.String(), raw, ttl)
}
