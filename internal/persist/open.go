package persist

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-query/internal/config"
	"github.com/BuzzLyutic/todo-query/internal/query"
)

// Open выбирает хранилище по конфигу. Для пустого Kind возвращает nil.
// close всегда не nil.
func Open(ctx context.Context, cfg config.PersistConfig, logger *zap.Logger) (query.Persister, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Kind {
	case "", "none":
		return nil, noop, nil
	case "file":
		return NewFilePersister(cfg.Path, logger), noop, nil
	case "redis":
		p, err := NewRedisPersister(ctx, RedisConfig{
			Addr: cfg.RedisAddr,
			Key:  cfg.RedisKey,
			TTL:  cfg.MaxAge,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return p, p.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown persist kind %q", cfg.Kind)
}
