package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	cacheVersionKey = "ledger:rows:version"
	// BumpChannel carries row-set invalidations published after imports.
	BumpChannel = "ledger.rows.bump"
)

// Cache keeps entity row sets in Redis under a global version so an import can
// invalidate every entity with one bump.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

func (c *Cache) rowsKey(ctx context.Context, entityID string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ledger:rows:%s:%d", entityID, ver), nil
}

// FetchRows returns the cached rows for the entity or populates them using
// loader.
func (c *Cache) FetchRows(ctx context.Context, entityID string, loader func(context.Context) ([]Row, error)) ([]Row, error) {
	if loader == nil {
		return nil, errors.New("ledger: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key, err := c.rowsKey(ctx, entityID)
	if err != nil {
		return nil, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var rows []Row
		if err := json.Unmarshal(payload, &rows); err != nil {
			return nil, fmt.Errorf("ledger: decode cached rows: %w", err)
		}
		return rows, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, err
	}
	rows, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Bump invalidates every cached row set and notifies listeners.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation follows bump notifications published by other
// processes. Bursts are coalesced by debouncer and only the highest version
// seen is adopted; onBump, when set, runs after each adoption.
func (c *Cache) ListenForInvalidation(ctx context.Context, debouncer *shared.Debouncer, onBump func(version int64)) error {
	if c == nil || c.client == nil {
		return nil
	}
	if debouncer == nil {
		debouncer = shared.NewDebouncer(0)
	}
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("ledger: subscribe %s: %w", BumpChannel, err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		defer debouncer.Stop()
		var latest int64
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil || ver <= latest {
					continue
				}
				latest = ver
				debouncer.Trigger(func() {
					if err := c.adopt(ctx, ver); err != nil {
						return
					}
					if onBump != nil {
						onBump(ver)
					}
				})
			}
		}
	}()
	return nil
}

// adopt raises the stored version to ver without ever lowering it.
func (c *Cache) adopt(ctx context.Context, ver int64) error {
	current, err := c.Version(ctx)
	if err != nil {
		return err
	}
	if current >= ver {
		return nil
	}
	return c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
}
