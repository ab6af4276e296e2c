package stock

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/slotmarket/slotmarket/internal/settings"
)

// Cache is an advisory read-through cache for storefront stock lookups. It is
// never consulted for allocation or booking decisions; a nil client disables
// caching entirely and every lookup falls through to the database.
type Cache struct {
	client *redis.Client
}

// NewCache wraps an optional redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func stockKey(accountID uint64) string {
	return fmt.Sprintf("stock:%d", accountID)
}

// Get returns the cached stock value for an account when warm.
func (c *Cache) Get(ctx context.Context, accountID uint64) (int, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	raw, errGet := c.client.Get(ctx, stockKey(accountID)).Result()
	if errGet != nil {
		return 0, false
	}
	value, errParse := strconv.Atoi(raw)
	if errParse != nil {
		return 0, false
	}
	return value, true
}

// Set stores a freshly computed stock value with the configured TTL.
func (c *Cache) Set(ctx context.Context, accountID uint64, value int) {
	if c == nil || c.client == nil {
		return
	}
	if errSet := c.client.Set(ctx, stockKey(accountID), strconv.Itoa(value), settings.StockCacheTTL()).Err(); errSet != nil {
		log.WithError(errSet).Debugf("stock cache: set account=%d failed", accountID)
	}
}

// Invalidate drops the cached value after an allocation or booking mutation.
func (c *Cache) Invalidate(ctx context.Context, accountID uint64) {
	if c == nil || c.client == nil {
		return
	}
	if errDel := c.client.Del(ctx, stockKey(accountID)).Err(); errDel != nil {
		log.WithError(errDel).Debugf("stock cache: invalidate account=%d failed", accountID)
	}
}
