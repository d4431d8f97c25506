package cache

import (
	"context"
	"log/slog"
)

// Invalidator removes cache entries after the store has been mutated.
// Failures are logged and swallowed: the store is authoritative and a
// stale entry disappears on its own when its TTL lapses.
type Invalidator struct {
	cache  Cache
	logger *slog.Logger
}

// NewInvalidator creates an Invalidator. A nil cache yields a no-op
// invalidator, used when the application runs without a cache backend.
func NewInvalidator(c Cache, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{cache: c, logger: logger.With("component", "cache_invalidator")}
}

// Invalidate removes every key. Exact keys are deleted directly; patterns
// are expanded first and the matches removed in one bulk delete.
func (i *Invalidator) Invalidate(ctx context.Context, keys ...Key) {
	if i == nil || i.cache == nil {
		return
	}

	for _, key := range keys {
		if !key.IsPattern() {
			if err := i.cache.Delete(ctx, key.String()); err != nil {
				i.logger.DebugContext(ctx, "cache invalidation failed",
					slog.String("key", key.String()),
					slog.String("error", err.Error()))
			}
			continue
		}

		matches, err := i.cache.Keys(ctx, key.String())
		if err != nil {
			i.logger.DebugContext(ctx, "cache key enumeration failed",
				slog.String("pattern", key.String()),
				slog.String("error", err.Error()))
			continue
		}
		if len(matches) == 0 {
			continue
		}
		if err := i.cache.Delete(ctx, matches...); err != nil {
			i.logger.DebugContext(ctx, "cache bulk invalidation failed",
				slog.String("pattern", key.String()),
				slog.Int("matched", len(matches)),
				slog.String("error", err.Error()))
		}
	}
}
