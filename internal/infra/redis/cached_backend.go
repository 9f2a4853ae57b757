package redis

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"mcq-queue-service/internal/app"
)

// CachedBackend puts a Redis copy of the queue document in front of a slower primary backend
// (Postgres, Mongo, object storage). Reads hit Redis first and fall back to the primary on a miss;
// concurrent misses share one primary load. Saves go to the primary first and then refresh the cache,
// so Redis never holds a document the primary rejected.
type CachedBackend struct {
	client  *redis.Client
	primary app.DocumentBackend
	key     string
	ttl     time.Duration
	logger  *zap.Logger
	sf      singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCachedBackend(client *redis.Client, primary app.DocumentBackend, key string, ttl time.Duration, logger *zap.Logger) *CachedBackend {
	if key == "" {
		key = DefaultKey + ":cache"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedBackend{
		client:  client,
		primary: primary,
		key:     key,
		ttl:     ttl,
		logger:  logger,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CachedBackend) Load(ctx context.Context) ([]byte, error) {
	if data, err := c.client.Get(ctx, c.key).Bytes(); err == nil {
		return data, nil
	}

	v, err, _ := c.sf.Do(c.key, func() (interface{}, error) {
		// Re-check in case another caller filled the cache meanwhile.
		if data, err := c.client.Get(ctx, c.key).Bytes(); err == nil {
			return data, nil
		}
		data, err := c.primary.Load(ctx)
		if err != nil {
			return nil, err
		}
		c.fill(ctx, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *CachedBackend) Save(ctx context.Context, data []byte) error {
	if err := c.primary.Save(ctx, data); err != nil {
		// The cached copy may now be older than what a retry will write; drop it.
		c.invalidate(ctx)
		return err
	}
	c.fill(ctx, data)
	return nil
}

func (c *CachedBackend) fill(ctx context.Context, data []byte) {
	if err := c.client.Set(ctx, c.key, data, c.ttlWithJitter()).Err(); err != nil {
		c.logger.Warn("refresh document cache", zap.String("key", c.key), zap.Error(err))
	}
}

func (c *CachedBackend) invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, c.key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("invalidate document cache", zap.String("key", c.key), zap.Error(err))
	}
}

func (c *CachedBackend) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

var _ app.DocumentBackend = (*CachedBackend)(nil)
