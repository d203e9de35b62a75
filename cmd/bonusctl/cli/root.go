// Package cli implements the bonusctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/compensation/internal/app"
	"github.com/odyssey-erp/compensation/internal/bonus"
	"github.com/odyssey-erp/compensation/internal/bonus/export"
	"github.com/odyssey-erp/compensation/internal/platform/db"
	"github.com/odyssey-erp/compensation/internal/shared"
)

// Runtime carries what every command needs once configuration is loaded.
type Runtime struct {
	Config *app.Config
	Logger *slog.Logger

	pool *pgxpool.Pool
}

// Service connects to PostgreSQL and returns a bonus service without the
// report cache; operator runs always read fresh data.
func (rt *Runtime) Service(ctx context.Context) (*bonus.Service, error) {
	if rt.pool == nil {
		pool, err := db.New(ctx, rt.Config.PGDSN, rt.Config.PGMaxConns)
		if err != nil {
			return nil, err
		}
		rt.pool = pool
	}
	return bonus.NewService(bonus.NewRepository(rt.pool), bonus.ServiceConfig{
		Workers:  rt.Config.BonusWorkers,
		MaxLimit: rt.Config.ReportMaxLimit,
		Audit:    shared.NewAuditLogger(rt.pool),
		Logger:   rt.Logger,
	}), nil
}

// Formatter returns the locale formatter used by spreadsheet output.
func (rt *Runtime) Formatter() export.Formatter {
	return export.NewFormatter(rt.Config.ExportLocale)
}

// Close releases open connections.
func (rt *Runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
}

// NewRootCommand builds the bonusctl command tree. load is invoked before
// any subcommand runs.
func NewRootCommand(load func() (*Runtime, error)) *cobra.Command {
	rt := &Runtime{}
	root := &cobra.Command{
		Use:           "bonusctl",
		Short:         "Operate the vendor compensation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := load()
			if err != nil {
				return err
			}
			*rt = *loaded
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.Close()
		},
	}
	root.AddCommand(
		newCalculateCommand(rt),
		newReportCommand(rt),
		newTokenCommand(rt),
		newSnapshotCommand(rt),
	)
	return root
}

// DefaultRuntime loads configuration from the environment.
func DefaultRuntime() (*Runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &Runtime{Config: cfg, Logger: app.NewLogger(cfg)}, nil
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("--%s is required", flag)
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
