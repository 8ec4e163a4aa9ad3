package pgsql

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var (
	poolOnce sync.Once
	pool     *pgxpool.Pool
)

// InitPool creates the shared pgx pool (singleton) and verifies the
// connection with a ping.
func InitPool(ctx context.Context, databaseURL string) error {
	var initErr error
	poolOnce.Do(func() {
		p, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			initErr = errors.Wrap(err, "pgxpool new")
			return
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			p.Close()
			initErr = errors.Wrap(err, "pgxpool ping")
			return
		}
		pool = p
	})
	return initErr
}

// GetPool returns the shared pool; panics when InitPool was not called.
func GetPool() *pgxpool.Pool {
	if pool == nil {
		panic("postgres not initialized, call InitPool first")
	}
	return pool
}

func ClosePool() {
	if pool != nil {
		pool.Close()
	}
}
