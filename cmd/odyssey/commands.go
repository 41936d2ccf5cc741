package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/odyssey-erp/odyssey-ledger/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
)

const usage = `usage: odyssey [command]

commands:
  serve                          run the HTTP API (default)
  migrate                        apply the ledger schema to the configured backend
  import <entity> <sheet.csv>    replace an entity's rows from an import sheet
  vouchers <entity>              list unbalanced vouchers
  jobs trigger voucher-scan [entity]
  jobs stats
  jobs scheduled [-n size]`

var errUsage = errors.New(usage)

func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	switch args[0] {
	case "migrate":
		if cfg.LedgerBackend == app.BackendSQLite {
			return ledger.MigrateSQLite(cfg.SQLitePath)
		}
		return ledger.MigratePostgres(cfg.PGDSN)
	case "import":
		if len(args) != 3 {
			return errUsage
		}
		return withRows(ctx, cfg, logger, func(rows *cli.RowsCLI) error {
			sheet, err := os.Open(args[2])
			if err != nil {
				return err
			}
			defer sheet.Close()
			n, err := rows.Import(ctx, args[1], sheet)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(stdout, "imported %d rows into %s\n", n, args[1])
			return err
		})
	case "vouchers":
		if len(args) != 2 {
			return errUsage
		}
		return withRows(ctx, cfg, logger, func(rows *cli.RowsCLI) error {
			_, err := rows.CheckVouchers(ctx, args[1], stdout)
			return err
		})
	case "jobs":
		return runJobs(ctx, cfg, args[1:], stdout)
	default:
		return errUsage
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer jobsCLI.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errUsage
		}
		entityID := ""
		if len(args) > 2 {
			entityID = args[2]
		}
		info, err := jobsCLI.Trigger(ctx, args[1], entityID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "enqueued %s as %s\n", info.Type, info.ID)
		return err
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d completed=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Completed)
		return err
	case "scheduled":
		fs := flag.NewFlagSet("scheduled", flag.ContinueOnError)
		size := fs.Int("n", 10, "number of tasks to list")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		tasks, err := jobsCLI.ListScheduled(ctx, *size)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			if _, err := fmt.Fprintf(stdout, "%s\t%s\t%s\n", task.ID, task.Type, task.NextProcessAt.Format("2006-01-02 15:04:05")); err != nil {
				return err
			}
		}
		return nil
	default:
		return errUsage
	}
}

func withRows(ctx context.Context, cfg *app.Config, logger *slog.Logger, fn func(*cli.RowsCLI) error) error {
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	repo, closeRepo, err := app.OpenRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, _ := app.NewLedgerService(cfg, repo, redisClient)
	return fn(cli.NewRowsCLI(svc))
}
