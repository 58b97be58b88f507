package fees

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-pricing/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Source loads the fee structure of one marketplace.
// Implementations must enforce tenant filtering.
type Source interface {
	FeeStructure(ctx context.Context, tenantID, marketplaceID string) (Structure, error)
}

// Cache is a read-through Redis cache in front of a Source.
//
// Entries are keyed by a per-marketplace generation. Invalidate bumps the generation,
// so a reader that loaded the old structure before a change can only write it under
// a key nobody reads any more.
//
// Redis failures are logged and fall through to the Source; the cache never turns a
// readable store into an error.
type Cache struct {
	rdb  *redis.Client
	next Source
	ttl  time.Duration
}

func NewCache(rdb *redis.Client, next Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, next: next, ttl: ttl}
}

func genKey(tenantID, marketplaceID string) string {
	return fmt.Sprintf("fees:gen:%s:%s", tenantID, marketplaceID)
}

func cacheKey(tenantID, marketplaceID string, gen int64) string {
	return fmt.Sprintf("fees:%s:%s:%d", tenantID, marketplaceID, gen)
}

func (c *Cache) FeeStructure(ctx context.Context, tenantID, marketplaceID string) (Structure, error) {
	if c.next == nil {
		return Structure{}, errors.New("fees: source not configured")
	}
	if c.rdb == nil {
		return c.next.FeeStructure(ctx, tenantID, marketplaceID)
	}

	gen, err := c.rdb.Get(ctx, genKey(tenantID, marketplaceID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.From(ctx).Warn("fee cache generation read failed", "tenant_id", tenantID, "marketplace_id", marketplaceID, "err", err)
		return c.next.FeeStructure(ctx, tenantID, marketplaceID)
	}

	key := cacheKey(tenantID, marketplaceID, gen)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var s Structure
		if jerr := json.Unmarshal(raw, &s); jerr == nil {
			return s, nil
		}
		logger.From(ctx).Warn("fee cache entry unreadable", "key", key)
	case !errors.Is(err, redis.Nil):
		logger.From(ctx).Warn("fee cache read failed", "key", key, "err", err)
	}

	s, err := c.next.FeeStructure(ctx, tenantID, marketplaceID)
	if err != nil {
		return Structure{}, err
	}
	if b, jerr := json.Marshal(s); jerr == nil {
		if serr := c.rdb.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			logger.From(ctx).Warn("fee cache write failed", "key", key, "err", serr)
		}
	}
	return s, nil
}

// Invalidate moves the marketplace to a new cache generation after its configuration
// changed and drops the entry of the previous one.
func (c *Cache) Invalidate(ctx context.Context, tenantID, marketplaceID string) error {
	if c.rdb == nil {
		return nil
	}
	gen, err := c.rdb.Incr(ctx, genKey(tenantID, marketplaceID)).Result()
	if err != nil {
		return err
	}
	return c.rdb.Del(ctx, cacheKey(tenantID, marketplaceID, gen-1)).Err()
}
