package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seenimoa/cryptoverlay/internal/config"
	"github.com/seenimoa/cryptoverlay/pkg/models"
)

// Redis keeps the latest update and each symbol's latest quote.
type Redis struct {
	client redis.Cmdable
	closer func() error
	ttl    time.Duration
	prefix string
}

// NewRedis connects to the server described by cfg and pings it.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := NewRedisWithClient(client, time.Duration(cfg.TTL)*time.Second, cfg.KeyPrefix)
	r.closer = client.Close
	return r, nil
}

// NewRedisWithClient wraps an existing client. ttl <= 0 stores keys without expiry.
func NewRedisWithClient(client redis.Cmdable, ttl time.Duration, prefix string) *Redis {
	if prefix == "" {
		prefix = "cryptoverlay"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix}
}

// Name implements Sink.
func (r *Redis) Name() string { return "redis" }

func (r *Redis) latestKey() string { return r.prefix + ":latest" }

func (r *Redis) quoteKey(symbol string) string { return r.prefix + ":quote:" + symbol }

// Save stores u under the latest key and each quote under its symbol key
// in one pipeline.
func (r *Redis) Save(ctx context.Context, u models.Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.latestKey(), data, r.ttl)
	for _, q := range u.Ordered() {
		qd, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("failed to marshal quote %s: %w", q.Symbol, err)
		}
		pipe.Set(ctx, r.quoteKey(q.Symbol), qd, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store update in redis: %w", err)
	}
	return nil
}

// Latest returns the most recently stored update.
func (r *Redis) Latest(ctx context.Context) (models.Update, error) {
	var u models.Update
	if err := r.get(ctx, r.latestKey(), &u); err != nil {
		return models.Update{}, err
	}
	return u, nil
}

// Quote returns the most recently stored quote for symbol.
func (r *Redis) Quote(ctx context.Context, symbol string) (models.SymbolQuote, error) {
	var q models.SymbolQuote
	if err := r.get(ctx, r.quoteKey(symbol), &q); err != nil {
		return models.SymbolQuote{}, err
	}
	return q, nil
}

func (r *Redis) get(ctx context.Context, key string, v any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// Close closes the client if this store opened it.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
