package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-payments/adapters/gocommand"
	paymentscommand "github.com/goliatone/go-payments/command"
	"github.com/goliatone/go-payments/core"
	sqlstore "github.com/goliatone/go-payments/store/sql"
	"github.com/goliatone/go-payments/webhooks"
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func serveCmd(flags *rootFlags) *cobra.Command {
	var (
		addr            string
		withWorkers     bool
		shutdownTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the merchant HTTP API",
		Long: `Run the merchant HTTP API.

With --workers the payment, refund, webhook and alert workers, the webhook
retry scheduler and the reconciliation sweeper run in the same process. This
is required when queue.backend is memory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := newApp(ctx, flags, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := a.httpServer()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}

			runners := []namedRunner{{name: "http", run: func(ctx context.Context) error {
				return server.Serve(ctx, addr, shutdownTimeout)
			}}}
			if withWorkers {
				background, err := a.backgroundRunners()
				if err != nil {
					return err
				}
				runners = append(runners, background...)
			}
			return runAll(ctx, a.logger, runners)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, defaults to http.addr")
	cmd.Flags().BoolVar(&withWorkers, "workers", false, "run workers, scheduler and reconciler in process")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown window")
	return cmd
}

func workerCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "worker <payment|refund|webhook|alert>",
		Short:     "Consume one gateway queue",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"payment", "refund", "webhook", "alert"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := newApp(ctx, flags, appOptions{SkipDispatcher: true, DirectWebhookReads: true})
			if err != nil {
				return err
			}
			defer a.Close()

			worker, err := a.worker(strings.ToLower(strings.TrimSpace(args[0])))
			if err != nil {
				return err
			}
			return ignoreCanceled(worker.Run(ctx))
		},
	}
}

func schedulerCmd(flags *rootFlags) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Re-attempt webhook deliveries whose retry time has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := newApp(ctx, flags, appOptions{SkipDispatcher: true, DirectWebhookReads: true})
			if err != nil {
				return err
			}
			defer a.Close()

			scheduler, err := a.scheduler()
			if err != nil {
				return err
			}
			if !once {
				return ignoreCanceled(scheduler.Run(ctx))
			}
			stats, err := scheduler.RunOnce(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{
				"due":       stats.Due,
				"attempted": stats.Attempted,
				"skipped":   stats.Skipped,
				"succeeded": stats.Succeeded,
				"retrying":  stats.Retrying,
				"failed":    stats.Failed,
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and print the stats")
	return cmd
}

func reconcileCmd(flags *rootFlags) *cobra.Command {
	var loop bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Fail payments stuck in processing past the threshold",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := newApp(ctx, flags, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if loop {
				return ignoreCanceled(a.service.Reconciler().Run(ctx))
			}
			stats, err := gocommand.DispatchWithResult[paymentscommand.ReconcileMessage, core.ReconcileStats](
				ctx, paymentscommand.ReconcileMessage{},
			)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{
				"scanned":    stats.Scanned,
				"reconciled": stats.Reconciled,
				"skipped":    stats.Skipped,
				"alerted":    stats.Alerted,
			})
		},
	}
	cmd.Flags().BoolVar(&loop, "loop", false, "sweep every reconciliation.interval_seconds until stopped")
	return cmd
}

func migrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the gateway schema to the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx, flags)
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Store.Driver) == driverMemory {
				return fmt.Errorf("gateway: store.driver memory has no schema")
			}
			client, err := sqlstore.Open(cfg.Store)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := runMigrations(ctx, client, cfg.Store.Driver); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", sqlstore.MigrationDialect(cfg.Store.Driver))
			return nil
		},
	}
}

func seedCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the well-known test merchant if it is missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, appOptions{SkipDispatcher: true})
			if err != nil {
				return err
			}
			defer a.Close()

			merchant, created, err := a.service.SeedTestMerchant(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"id":         merchant.ID,
				"email":      merchant.Email,
				"api_key":    merchant.APIKey,
				"api_secret": merchant.APISecret,
				"created":    created,
			})
		},
	}
}

func purgeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-idempotency",
		Short: "Delete expired idempotency records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := gocommand.DispatchWithResult[paymentscommand.PurgeIdempotencyMessage, int64](
				ctx, paymentscommand.PurgeIdempotencyMessage{},
			)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int64{"removed": removed})
		},
	}
}

func (a *app) scheduler() (*webhooks.Scheduler, error) {
	scheduler, err := webhooks.NewScheduler(a.deliverer, a.cfg.Webhooks)
	if err != nil {
		return nil, err
	}
	scheduler.Logger = a.service.Logger("payments.scheduler")
	return scheduler, nil
}

func (a *app) backgroundRunners() ([]namedRunner, error) {
	runners := []namedRunner{}
	for _, role := range []string{"payment", "refund", "webhook", "alert"} {
		worker, err := a.worker(role)
		if err != nil {
			return nil, err
		}
		runners = append(runners, namedRunner{name: worker.Name, run: worker.Run})
	}
	scheduler, err := a.scheduler()
	if err != nil {
		return nil, err
	}
	runners = append(runners,
		namedRunner{name: "webhook_scheduler", run: scheduler.Run},
		namedRunner{name: "reconciler", run: a.service.Reconciler().Run},
	)
	return runners, nil
}

type namedRunner struct {
	name string
	run  func(ctx context.Context) error
}

// runAll runs every runner until ctx is done or one of them fails, then
// cancels the rest and waits for them.
func runAll(ctx context.Context, logger core.Logger, runners []namedRunner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, r := range runners {
		wg.Add(1)
		go func(r namedRunner) {
			defer wg.Done()
			err := ignoreCanceled(r.run(ctx))
			if err != nil {
				logger.Error("runner stopped", "runner", r.name, "error", err)
				once.Do(func() {
					firstErr = fmt.Errorf("gateway: %s: %w", r.name, err)
					cancel()
				})
			}
		}(r)
	}
	wg.Wait()
	return firstErr
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
