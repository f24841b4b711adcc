package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeineb-manai/depot-vente/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	availableListingKey = "catalogue:available"
	listingTTL          = 30 * time.Second
	idempotencyTTL      = 24 * time.Hour
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetAvailableListing caches the buyer-facing Available listing. The cache
// is advisory: it expires quickly and every catalogue write invalidates it,
// so a stale read window is bounded by the refresh cadence.
func (c *Client) SetAvailableListing(ctx context.Context, items []models.Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling listing: %w", err)
	}
	return c.rdb.Set(ctx, availableListingKey, data, listingTTL).Err()
}

// GetAvailableListing returns the cached Available listing, reporting
// whether the cache held one.
func (c *Client) GetAvailableListing(ctx context.Context) ([]models.Item, bool, error) {
	data, err := c.rdb.Get(ctx, availableListingKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var items []models.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("unmarshaling listing: %w", err)
	}
	return items, true, nil
}

// InvalidateListing drops the cached listing after a catalogue write.
func (c *Client) InvalidateListing(ctx context.Context) error {
	return c.rdb.Del(ctx, availableListingKey).Err()
}

// SetIdempotencyKey records the receipt produced for an idempotency key.
func (c *Client) SetIdempotencyKey(ctx context.Context, key, receiptID string) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), receiptID, idempotencyTTL).Err()
}

// GetIdempotencyKey returns the receipt id previously recorded for a key,
// reporting whether one existed.
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	receiptID, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return receiptID, true, nil
}
