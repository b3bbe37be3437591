package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Jabakyo/next-class/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Open builds the backend selected by cfg.Driver. pool is only used by the
// postgres driver and may be nil otherwise.
func Open(cfg config.StoreConfig, lockTimeout time.Duration, pool *pgxpool.Pool, log *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFile(cfg.Dir, lockTimeout, log)
	case "bolt":
		return OpenBolt(cfg.BoltPath, lockTimeout)
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("store driver postgres requires DATABASE_URL")
		}
		return NewPostgres(pool, lockTimeout), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
