package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
)

// MappingWriter persists account mappings.
type MappingWriter interface {
	Upsert(ctx context.Context, m mappings.AccountMapping) error
}

// Seeder installs the chart of accounts and the default module mappings.
type Seeder struct {
	Registry *accounts.Registry
	Mappings MappingWriter
}

// SeedReport summarises a seed run.
type SeedReport struct {
	Accounts accounts.SeedResult
	Mappings int
}

// Seed installs chart (the default chart when empty) and, unless
// skipMappings is set, upserts every default mapping whose account exists.
func (s Seeder) Seed(ctx context.Context, chart []accounts.Account, skipMappings bool) (SeedReport, error) {
	var report SeedReport
	res, err := s.Registry.SeedDefaults(ctx, chart)
	report.Accounts = res
	if err != nil {
		return report, err
	}
	if skipMappings || s.Mappings == nil {
		return report, nil
	}
	for _, m := range mappings.Defaults() {
		if _, err := s.Registry.GetAccountByCode(ctx, m.AccountCode); err != nil {
			continue
		}
		if err := s.Mappings.Upsert(ctx, m); err != nil {
			return report, fmt.Errorf("seed mapping %s/%s: %w", m.Module, m.Key, err)
		}
		report.Mappings++
	}
	return report, nil
}

// ReadChart loads a YAML chart from path. An empty path yields nil so the
// default chart is used.
func ReadChart(path string) ([]accounts.Account, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return accounts.LoadChart(f)
}

// PrintSeedReport writes a human readable summary.
func PrintSeedReport(w io.Writer, report SeedReport) {
	fmt.Fprintf(w, "accounts created: %d, skipped: %d\n", len(report.Accounts.Created), len(report.Accounts.Skipped))
	fmt.Fprintf(w, "mappings upserted: %d\n", report.Mappings)
}
