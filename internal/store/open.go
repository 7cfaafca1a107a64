// Package store picks the catalog backend named in the configuration.
package store

import (
	"context"
	"fmt"

	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"github.com/suPer8Hu/nextile-ai/internal/config"
	"github.com/suPer8Hu/nextile-ai/internal/db"
	"github.com/suPer8Hu/nextile-ai/internal/store/boltstore"
	"github.com/suPer8Hu/nextile-ai/internal/store/memory"
	"github.com/suPer8Hu/nextile-ai/internal/store/redisstore"
	"github.com/suPer8Hu/nextile-ai/internal/store/sqlstore"
)

// DefaultSQLiteDSN is used by the sqlite backend when DB_DSN is unset. It is
// kept apart from STORE_PATH, which names a bbolt file.
const DefaultSQLiteDSN = "file:nextile_storage.sqlite"

// Open returns the configured store and a function releasing its resources.
func Open(ctx context.Context, cfg config.Config) (chat.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.BackendBolt:
		return boltstore.New(cfg.StorePath, cfg.StoreName), noop, nil

	case config.BackendMemory:
		return memory.New(), noop, nil

	case config.BackendRedis:
		rdb, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.New(rdb, cfg.StoreName), rdb.Close, nil

	case config.BackendSQLite, config.BackendMySQL:
		gdb, err := db.Connect(cfg.StoreBackend, sqlDSN(cfg))
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, nil, err
		}
		s, err := sqlstore.New(gdb, cfg.StoreName)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return s, sqlDB.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func sqlDSN(cfg config.Config) string {
	if cfg.DBDSN != "" {
		return cfg.DBDSN
	}
	if cfg.StoreBackend == config.BackendSQLite {
		return DefaultSQLiteDSN
	}
	return ""
}
