// Package app wires the storage, lock and service layers shared by the
// server and scheduler binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/lock"
	"github.com/segyhp/loan-ledger/internal/notify"
	"github.com/segyhp/loan-ledger/internal/repository"
	"github.com/segyhp/loan-ledger/internal/service"
)

type App struct {
	Config  *config.Config
	Log     *zap.Logger
	DB      *sqlx.DB
	Redis   *redis.Client // nil with the local lock backend
	Service *service.LedgerService
}

// New connects to Postgres (and Redis when it backs the loan locks) and
// builds the ledger service.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := initDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	a := &App{Config: cfg, Log: log, DB: db}

	var locker lock.Locker
	switch cfg.Lock.Backend {
	case config.LockBackendLocal:
		log.Warn("using in-process loan locks; run a single instance only")
		locker = lock.NewLocalLocker()
	default:
		a.Redis = initRedis(cfg)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr(), err)
		}
		locker = lock.NewRedisLocker(a.Redis, cfg.GetLockTTL())
	}

	a.Service = service.NewLedgerService(
		repository.NewLoanRepository(db),
		repository.NewPaymentRepository(db),
		locker,
		notify.NewLogNotifier(log),
		domain.SystemClock{Location: cfg.GetLocation()},
		cfg,
		log,
	)
	return a, nil
}

// Close releases the database and redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn("close redis", zap.Error(err))
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Log.Warn("close database", zap.Error(err))
	}
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.GetConnMaxLifetime())

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
