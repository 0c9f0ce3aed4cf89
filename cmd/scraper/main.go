package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridgeline-labs/slope-scraper/internal/aggregator"
	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/engine"
	"github.com/ridgeline-labs/slope-scraper/internal/metrics"
	"github.com/ridgeline-labs/slope-scraper/internal/storage"
	"github.com/ridgeline-labs/slope-scraper/internal/storage/dynamo"
	"github.com/ridgeline-labs/slope-scraper/internal/storage/memstore"
	"github.com/ridgeline-labs/slope-scraper/internal/storage/postgres"
)

var (
	storeKind   string
	postgresDSN string
	dynamoTable string
	batchFlag   int
	mountainID  string
	historyDays int
	retention   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scraper",
		Short: "Mountain status scraping engine",
		Long:  "Scrapes ski resort status pages on a schedule and serves the normalized results from a durable store.",
	}
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "memstore", "storage backend: memstore, postgres, dynamo")
	rootCmd.PersistentFlags().StringVar(&postgresDSN, "postgres-dsn", os.Getenv("SCRAPER_POSTGRES_DSN"), "postgres connection string (store=postgres)")
	rootCmd.PersistentFlags().StringVar(&dynamoTable, "dynamo-table-prefix", "slope-scraper", "DynamoDB table name prefix (store=dynamo)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(cleanupCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("scraper: %v", err)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scraping pass",
		RunE:  runRun,
	}
	cmd.Flags().IntVar(&batchFlag, "batch", 0, "run only configs tagged with this batch number (0 = ignore batch, use --mountain or run everything)")
	cmd.Flags().StringVar(&mountainID, "mountain", "", "run only this mountain id")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	e, closeFn, err := buildEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	var result engine.RunResult
	switch {
	case mountainID != "":
		result, err = e.RunOne(ctx, "cli", mountainID)
	case batchFlag != 0:
		result, err = e.RunBatch(ctx, "cli", batchFlag)
	default:
		result, err = e.RunAll(ctx, "cli")
	}
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	log.Printf("run %s complete: %d/%d succeeded in %dms",
		result.Run.RunID, result.Run.SuccessfulCount, result.Run.TotalMountains, result.Run.DurationMS)
	return printJSON(result.Run)
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [mountain-id]",
		Short: "Print the latest known status, for one mountain or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := buildEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := context.Background()
			if len(args) == 1 {
				s, found, err := e.GetLatest(ctx, args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no recorded status for %q", args[0])
				}
				return printJSON(s)
			}
			statuses, err := e.GetAllLatest(ctx)
			if err != nil {
				return err
			}
			return printJSON(statuses)
		},
	}
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <mountain-id>",
		Short: "Print scraped history for a mountain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := buildEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			history, err := e.GetHistory(context.Background(), args[0], historyDays)
			if err != nil {
				return err
			}
			return printJSON(history)
		},
	}
	cmd.Flags().IntVar(&historyDays, "days", 7, "how many days of history to return")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate storage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := buildEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			s, err := e.Stats(context.Background())
			if err != nil {
				return err
			}
			return printJSON(s)
		},
	}
}

func cleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete status records older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := time.ParseDuration(retention)
			if err != nil {
				return fmt.Errorf("invalid --retention: %w", err)
			}
			e, closeFn, err := buildEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			removed, err := e.Cleanup(context.Background(), window)
			if err != nil {
				return err
			}
			log.Printf("cleanup removed %d records older than %s", removed, window)
			return nil
		},
	}
	cmd.Flags().StringVar(&retention, "retention", "2160h", "retention window, e.g. 2160h for 90 days")
	return cmd
}

// buildEngine wires the Control API together for one CLI invocation: load
// the bundled mountain configs, open the selected store, and build the
// engine with an aggregator whose weather adapters are all nil (the
// external weather adapters are out-of-scope collaborators with no
// CLI-facing implementation).
func buildEngine() (*engine.Engine, func(), error) {
	registry, err := config.LoadEmbedded()
	if err != nil {
		return nil, nil, fmt.Errorf("load mountain configs: %w", err)
	}

	store, storeCloser, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	agg := aggregator.New(registry, store, nil, nil, nil)
	m := metrics.New(nil)
	e := engine.New(registry, store, agg, m)

	return e, func() {
		e.Close()
		storeCloser()
	}, nil
}

func openStore() (storage.StatusStore, func(), error) {
	noop := func() {}
	switch storeKind {
	case "memstore", "":
		return memstore.New(), noop, nil
	case "postgres":
		if postgresDSN == "" {
			return nil, nil, fmt.Errorf("--postgres-dsn (or SCRAPER_POSTGRES_DSN) is required for --store=postgres")
		}
		st, err := postgres.Open(postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return st, func() { st.Close() }, nil
	case "dynamo":
		st, err := dynamo.New(context.Background(), dynamo.Config{
			StatusTable:  dynamoTable + "-statuses",
			RunTable:     dynamoTable + "-runs",
			FailureTable: dynamoTable + "-failures",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open dynamo store: %w", err)
		}
		return st, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown --store %q (want memstore, postgres, or dynamo)", storeKind)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
