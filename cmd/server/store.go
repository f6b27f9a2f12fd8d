package main

import (
	"fmt"

	"libu-backend/internal/config"
	"libu-backend/internal/database"
	"libu-backend/internal/logger"
	"libu-backend/internal/repository"
)

// openStore connects the backend selected by STORE_DRIVER. The returned func releases it.
func openStore(cfg *config.Config, redisClients *database.RedisClients, log *logger.Logger) (repository.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn("using in-memory session store, data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil

	case config.StoreRedis:
		if redisClients == nil {
			return nil, nil, fmt.Errorf("redis store requires REDIS_URL")
		}
		return repository.NewRedisStore(redisClients.Store), func() {}, nil

	case config.StorePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(pool, cfg.MigrationsDir, log); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		return repository.NewPostgresStore(pool), pool.Close, nil

	case config.StoreSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLiteStore(db), func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
