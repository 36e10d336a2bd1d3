package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/close"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Components holds the ledger services shared by the API server and the worker.
type Components struct {
	Repo      *accounting.Repository
	Registry  *accounts.Registry
	Ledger    *accounting.Service
	Hooks     *integration.Hooks
	Documents *integration.Repository
	Closing   *close.Service
	Audit     *shared.AuditLogger
}

// NewComponents wires the services on top of Postgres and Redis. redisClient
// may be nil, in which case closing relies on the database locks alone.
func NewComponents(cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, registerer prometheus.Registerer) *Components {
	repo := accounting.NewRepository(pool)
	audit := shared.NewAuditLogger(pool)

	ledger := accounting.NewService(repo, accounting.NewBalanceCalculator(repo, logger), audit, logger)
	ledger.WithTimeout(cfg.LedgerOperationTimeout)
	ledger.WithMetrics(accounting.NewMetrics(registerer))

	var locker close.Locker
	if redisClient != nil {
		locker = shared.NewRedisLocker(redisClient)
	}
	closing := close.NewService(repo, ledger, locker, audit, logger)
	closing.WithLockTTL(cfg.LedgerCloseLockTTL)
	closing.WithMetrics(close.NewMetrics(registerer))

	return &Components{
		Repo:      repo,
		Registry:  accounts.NewRegistry(accounts.NewRepository(pool), logger),
		Ledger:    ledger,
		Hooks:     integration.NewHooks(repo, ledger, logger),
		Documents: integration.NewRepository(pool),
		Closing:   closing,
		Audit:     audit,
	}
}
