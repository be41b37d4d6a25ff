package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-query/internal/query"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// TTL истечения снимка; 0 - без истечения.
	TTL time.Duration
}

// RedisPersister хранит снимок одной строкой под cfg.Key.
type RedisPersister struct {
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisPersister подключается к Redis и проверяет соединение.
func NewRedisPersister(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisPersister, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Key == "" {
		return nil, errors.New("redis persister: empty key")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr))
	return &RedisPersister{rdb: rdb, key: cfg.Key, ttl: cfg.TTL, logger: logger}, nil
}

func (p *RedisPersister) Persist(ctx context.Context, state query.DehydratedState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.rdb.Set(ctx, p.key, raw, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	p.logger.Debug("Snapshot stored", zap.String("key", p.key), zap.Int("queries", len(state.Queries)))
	return nil
}

func (p *RedisPersister) Restore(ctx context.Context) (query.DehydratedState, error) {
	raw, err := p.rdb.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return query.DehydratedState{}, nil
		}
		return query.DehydratedState{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var state query.DehydratedState
	if err := json.Unmarshal(raw, &state); err != nil {
		p.logger.Warn("Discarding unreadable snapshot", zap.String("key", p.key), zap.Error(err))
		return query.DehydratedState{}, nil
	}
	return state, nil
}

func (p *RedisPersister) Close() error {
	return p.rdb.Close()
}
