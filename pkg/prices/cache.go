package prices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainsafe/solver-middleware/pkg/syncdb/dao"
)

// Store is the persistence surface the cache needs, satisfied by
// syncdb.Store.
type Store interface {
	ListTokenPrices(ctx context.Context) ([]dao.TokenPriceDao, error)
	UpsertTokenPrice(ctx context.Context, price *dao.TokenPriceDao) error
}

// Cache holds one USD price per native-token group. Freshness is tracked per
// group: a refresh fetches only the groups whose price is missing or older
// than the TTL, and every successful fetch is written back to the store so a
// restart does not begin cold.
type Cache struct {
	store  Store
	oracle Oracle
	ttl    time.Duration
	tokens map[string]string // price group -> token contract address
	logger *zap.Logger

	mu          sync.Mutex
	prices      map[string]float64
	lastFetched map[string]time.Time
}

func NewCache(store Store, oracle Oracle, ttl time.Duration, tokens map[string]string, logger *zap.Logger) *Cache {
	prices := make(map[string]float64, len(tokens))
	for group := range tokens {
		prices[group] = 0
	}
	return &Cache{
		store:       store,
		oracle:      oracle,
		ttl:         ttl,
		tokens:      tokens,
		logger:      logger,
		prices:      prices,
		lastFetched: make(map[string]time.Time, len(tokens)),
	}
}

// EnsureFresh refreshes the stale groups. Persisted rows are consulted first,
// so a group fetched within the TTL (possibly by another process) costs no
// oracle call. Concurrent callers serialize; the ones arriving after a
// refresh see it as a no-op. A fetch returning a non-positive price is
// rejected and the previous value kept.
func (c *Cache) EnsureFresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.adoptPersisted(ctx)

	stale := c.staleGroups()
	if len(stale) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var fetchedMu sync.Mutex
	fetched := make(map[string]float64, len(stale))

	for _, group := range stale {
		group, token := group, c.tokens[group]
		g.Go(func() error {
			price, err := c.oracle.TokenPrice(gctx, token)
			if err != nil {
				c.logger.Warn("price fetch failed, keeping previous price",
					zap.String("group", group), zap.Error(err))
				return nil
			}
			if price <= 0 {
				c.logger.Warn("price fetch returned non-positive value, keeping previous price",
					zap.String("group", group), zap.Float64("price", price))
				return nil
			}
			fetchedMu.Lock()
			fetched[group] = price
			fetchedMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := time.Now().UTC()
	for group, price := range fetched {
		c.prices[group] = price
		c.lastFetched[group] = now
		if err := c.store.UpsertTokenPrice(ctx, &dao.TokenPriceDao{
			PriceGroup:  group,
			PriceUSD:    price,
			LastFetched: now,
		}); err != nil {
			c.logger.Warn("failed to persist token price",
				zap.String("group", group), zap.Error(err))
		}
	}

	c.logger.Debug("refreshed token prices",
		zap.Int("stale", len(stale)), zap.Int("fetched", len(fetched)))
	return nil
}

// Price returns the cached USD price for a group. It fails when the group is
// unknown or no price has been obtained yet.
func (c *Cache) Price(group string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	price, ok := c.prices[group]
	if !ok {
		return 0, fmt.Errorf("unknown price group %q", group)
	}
	if price <= 0 {
		return 0, fmt.Errorf("no price available for group %q", group)
	}
	return price, nil
}

// staleGroups lists the groups whose price is missing or past the TTL, in no
// particular order. Callers hold c.mu.
func (c *Cache) staleGroups() []string {
	var stale []string
	for group, price := range c.prices {
		if price <= 0 || time.Since(c.lastFetched[group]) >= c.ttl {
			stale = append(stale, group)
		}
	}
	return stale
}

// adoptPersisted seeds groups from rows whose persisted fetch time is still
// within the TTL and newer than what is cached. Callers hold c.mu.
func (c *Cache) adoptPersisted(ctx context.Context) {
	rows, err := c.store.ListTokenPrices(ctx)
	if err != nil {
		c.logger.Warn("failed to load persisted token prices", zap.Error(err))
		return
	}

	adopted := 0
	for _, row := range rows {
		if _, ok := c.prices[row.PriceGroup]; !ok {
			continue
		}
		if row.PriceUSD <= 0 || time.Since(row.LastFetched) >= c.ttl {
			continue
		}
		if !row.LastFetched.After(c.lastFetched[row.PriceGroup]) {
			continue
		}
		c.prices[row.PriceGroup] = row.PriceUSD
		c.lastFetched[row.PriceGroup] = row.LastFetched
		adopted++
	}
	if adopted > 0 {
		c.logger.Debug("adopted persisted token prices", zap.Int("count", adopted))
	}
}
