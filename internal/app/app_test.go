package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "LEDGER_OPERATION_TIMEOUT")
	unsetEnv(t, "LEDGER_CLOSE_LOCK_TTL")
	unsetEnv(t, "APP_ENV")
	unsetEnv(t, "APP_ADDR")
	unsetEnv(t, "MIGRATE_ON_START")
	unsetEnv(t, "IDEMPOTENCY_RETENTION")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.LedgerOperationTimeout)
	assert.Equal(t, 2*time.Minute, cfg.LedgerCloseLockTTL)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.MigrateOnStart)
	assert.Equal(t, 168*time.Hour, cfg.IdempotencyRetention)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LEDGER_OPERATION_TIMEOUT", "3s")
	t.Setenv("HTTP_RATE_LIMIT", "10")
	t.Setenv("MIGRATE_ON_START", "true")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3*time.Second, cfg.LedgerOperationTimeout)
	assert.Equal(t, 10, cfg.HTTPRateLimit)
	assert.True(t, cfg.MigrateOnStart)

	t.Setenv("LEDGER_OPERATION_TIMEOUT", "soon")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("account", "1000"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "1000", entry["account"])
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, db Pinger) (http.Handler, *memstore.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	store.SeedAccounts(accounts.DefaultChart()...)
	ledger := accounting.NewService(store, nil, nil, logger)
	router := NewRouter(RouterParams{
		Logger:          logger,
		Config:          &Config{AppEnv: "test", HTTPRateLimit: 1000},
		AccountsHandler: accounts.NewHandler(logger, accounts.NewRegistry(store, logger)),
		LedgerHandler:   accounting.NewHandler(logger, ledger, nil),
		Database:        db,
		Metrics:         observability.NewMetrics(),
	})
	return router, store
}

func TestRouterHealthAndReadiness(t *testing.T) {
	router, _ := newTestRouter(t, fakePinger{err: errors.New("refused")})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ledger_http_requests_total")
}

func TestRouterStampsActorOnPostings(t *testing.T) {
	router, store := newTestRouter(t, fakePinger{})

	body := `{"date":"2024-03-01","description":"owner investment","lines":[
		{"account_code":"1000","debit":"500"},
		{"account_code":"3000","credit":"500"}]}`
	req := httptest.NewRequest(http.MethodPost, "/ledger/journals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorHeader, "bookkeeper-7")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	lines := store.Lines()
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Equal(t, "bookkeeper-7", l.CreatedBy)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ledger/accounts/1000/balance", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"500"`)
}
