// Package cache keeps the latest chat context per user so the conversational
// relay can pick it up without reloading assessment history.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a cached context stays valid.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "chatctx:"

// ContextCache stores and retrieves chat contexts. A miss returns (nil, nil).
type ContextCache interface {
	SetContext(ctx context.Context, userID string, c models.ChatContext) error
	GetContext(ctx context.Context, userID string) (*models.ChatContext, error)
}

// RedisContextCache stores contexts as JSON strings with a TTL.
type RedisContextCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ContextCache = (*RedisContextCache)(nil)

// NewRedisContextCache wraps an existing client. A non-positive ttl uses DefaultTTL.
func NewRedisContextCache(client *redis.Client, ttl time.Duration) *RedisContextCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisContextCache{client: client, ttl: ttl}
}

// Connect dials addr and verifies the connection with PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (c *RedisContextCache) SetContext(ctx context.Context, userID string, cc models.ChatContext) error {
	data, err := json.Marshal(cc)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, keyPrefix+userID, data, c.ttl).Err(); err != nil {
		slog.Error("RedisContextCache.SetContext: failed", "error", err, "userID", userID)
		return err
	}
	slog.Debug("RedisContextCache.SetContext: context cached", "userID", userID, "diagnosis", cc.Diagnosis)
	return nil
}

func (c *RedisContextCache) GetContext(ctx context.Context, userID string) (*models.ChatContext, error) {
	data, err := c.client.Get(ctx, keyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisContextCache.GetContext: failed", "error", err, "userID", userID)
		return nil, err
	}
	var cc models.ChatContext
	if err := json.Unmarshal([]byte(data), &cc); err != nil {
		return nil, fmt.Errorf("decode cached context: %w", err)
	}
	return &cc, nil
}

// MemoryContextCache is the in-process fallback used when no Redis address is configured.
type MemoryContextCache struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

type memoryEntry struct {
	value   models.ChatContext
	expires time.Time
}

var _ ContextCache = (*MemoryContextCache)(nil)

// NewMemoryContextCache creates an empty cache. A non-positive ttl uses DefaultTTL.
func NewMemoryContextCache(ttl time.Duration) *MemoryContextCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryContextCache{items: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (c *MemoryContextCache) SetContext(_ context.Context, userID string, cc models.ChatContext) error {
	cc.PreviousRecommendations = append([]string(nil), cc.PreviousRecommendations...)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[userID] = memoryEntry{value: cc, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryContextCache) GetContext(_ context.Context, userID string) (*models.ChatContext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[userID]
	if !ok || !c.now().Before(e.expires) {
		return nil, nil
	}
	cc := e.value
	cc.PreviousRecommendations = append([]string(nil), cc.PreviousRecommendations...)
	return &cc, nil
}
