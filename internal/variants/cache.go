package variants

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/purchase-configurator/internal/configurator"
	"github.com/angelmondragon/purchase-configurator/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 24 * time.Hour

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	VariantKey(combination string) string
}

// Cache remembers the variant created for each attribute combination so repeated
// configurations of the same combination skip the backend. A cache failure never fails
// the creation itself.
type Cache struct {
	creator configurator.VariantCreator
	store   cacheStore
	ttl     time.Duration
	logg    *logger.Logger
}

func NewCache(creator configurator.VariantCreator, store cacheStore, ttl time.Duration, logg *logger.Logger) (*Cache, error) {
	if creator == nil {
		return nil, errors.New("variant creator required")
	}
	if store == nil {
		return nil, errors.New("cache store required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Cache{creator: creator, store: store, ttl: ttl, logg: logg}, nil
}

func (c *Cache) CreateProductVariant(ctx context.Context, templateID int64, combination []int64) (int64, error) {
	key := c.store.VariantKey(cacheKey(templateID, combination))

	cached, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		if id, convErr := strconv.ParseInt(cached, 10, 64); convErr == nil && id > 0 {
			return id, nil
		}
		c.logg.Warn(ctx, fmt.Sprintf("ignoring malformed cached variant %q", cached))
	case !errors.Is(err, redis.Nil):
		c.logg.Warn(ctx, fmt.Sprintf("variant cache read failed: %v", err))
	}

	id, err := c.creator.CreateProductVariant(ctx, templateID, combination)
	if err != nil {
		return 0, err
	}
	if id > 0 {
		if err := c.store.Set(ctx, key, strconv.FormatInt(id, 10), c.ttl); err != nil {
			c.logg.Warn(ctx, fmt.Sprintf("variant cache write failed: %v", err))
		}
	}
	return id, nil
}

func cacheKey(templateID int64, combination []int64) string {
	parts := make([]string, 0, len(combination))
	for _, id := range combination {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strconv.FormatInt(templateID, 10) + ":" + strings.Join(parts, ",")
}
