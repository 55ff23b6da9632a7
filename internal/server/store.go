package server

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasks-api/internal/config"
	"github.com/BuzzLyutic/tasks-api/internal/repo"
)

// OpenStore builds the repository selected by cfg.StoreDriver, applies its
// schema and wraps it in the Redis cache when REDIS_ADDR is set. The returned
// func releases every connection that was opened.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.TaskRepository, func(), error) {
	var (
		store   repo.TaskRepository
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL) // Создаем новое соединение к БД
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := pool.Ping(ctx); err != nil { // Пытаемся пингануть БД
			closeAll()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		if err := repo.Migrate(ctx, pool); err != nil {
			closeAll()
			return nil, nil, err
		}
		store = repo.NewTaskRepo(pool)

	case config.StoreSQLite, config.StoreGormPostgres:
		dsn := cfg.DatabaseURL
		if cfg.StoreDriver == config.StoreSQLite {
			dsn = cfg.SQLitePath
		}
		db, err := repo.OpenGorm(cfg.StoreDriver, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.StoreDriver, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { sqlDB.Close() })

		if err := repo.MigrateGorm(db); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("migrate %s: %w", cfg.StoreDriver, err)
		}
		store = repo.NewGormRepo(db)

	case config.StoreMemory:
		store = repo.NewMemoryRepo()

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, func() { client.Close() })

		if err := client.Ping(ctx).Err(); err != nil {
			// кэш необязателен, работаем без него
			logger.Warn("redis unavailable, cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			store = repo.NewCachedRepo(store, client, cfg.CacheTTL, logger)
			logger.Info("task cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
		}
	}

	return store, closeAll, nil
}
