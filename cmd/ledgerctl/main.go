package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/cmd/ledgerctl/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operator tooling for the ledger: migrations, seeding and jobs",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.AddCommand(migrateCmd(), seedCmd(), jobsCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}
	var steps int
	for _, direction := range []string{"up", "down"} {
		sub := &cobra.Command{
			Use:   direction,
			Short: "Migrate " + direction + " (all steps unless --steps is given)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if err := db.Migrate(cfg.PGDSN, direction, steps); err != nil {
					return err
				}
				version, dirty, err := db.MigrationVersion(cfg.PGDSN)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (dirty=%t)\n", version, dirty)
				return nil
			},
		}
		sub.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply")
		cmd.AddCommand(sub)
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			version, dirty, err := db.MigrationVersion(cfg.PGDSN)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d dirty=%t\n", version, dirty)
			return nil
		},
	})
	return cmd
}

func seedCmd() *cobra.Command {
	var (
		chartPath    string
		skipMappings bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install the chart of accounts and default account mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chart, err := cli.ReadChart(chartPath)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)
			pool, err := db.New(cmd.Context(), db.PoolConfig{DSN: cfg.PGDSN, ConnectTimeout: 5 * time.Second})
			if err != nil {
				return err
			}
			defer pool.Close()
			seeder := cli.Seeder{
				Registry: accounts.NewRegistry(accounts.NewRepository(pool), logger),
				Mappings: mappings.NewRepository(pool),
			}
			report, err := seeder.Seed(cmd.Context(), chart, skipMappings)
			cli.PrintSeedReport(cmd.OutOrStdout(), report)
			return err
		},
	}
	cmd.Flags().StringVar(&chartPath, "chart", "", "YAML chart of accounts (defaults to the built-in chart)")
	cmd.Flags().BoolVar(&skipMappings, "skip-mappings", false, "do not install default account mappings")
	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger background jobs and inspect the queue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a ledger job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs.TaskTypes,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			jc, err := cli.NewJobsCLI(cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer jc.Close()
			info, err := jc.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print default queue counters as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			jc, err := cli.NewJobsCLI(cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer jc.Close()
			stats, err := jc.InspectQueue()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	})
	return cmd
}

