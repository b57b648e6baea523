package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/linkyapp/linky/internal/account"
	"github.com/linkyapp/linky/internal/api"
	"github.com/linkyapp/linky/internal/api/handler"
	"github.com/linkyapp/linky/internal/bookmarks"
	"github.com/linkyapp/linky/internal/cache"
	"github.com/linkyapp/linky/internal/config"
	"github.com/linkyapp/linky/internal/metrics"
	"github.com/linkyapp/linky/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the linky server",
	Long:  `Start the linky API server and its background jobs.`,
	Example: `linky serve --config config.yml
linky serve -c /path/to/config.yml --log-level debug
`,
	Run: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	cfg := loadConfig()

	db := openDatabase(cfg)
	defer db.Close() //nolint:errcheck

	collector := newCollector(cfg)
	tokens := cache.NewTokenCache(cfg.Cache)
	accounts := account.New(db, account.NewBcryptHasher(), tokens, cfg.Auth)

	sched, err := scheduler.New()
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	if err := registerJobs(sched, cfg, accounts, collector); err != nil {
		log.Fatalf("failed to register jobs: %v", err)
	}

	server, err := api.New(cfg, handler.Services{
		Accounts:  accounts,
		Bookmarks: bookmarks.New(db, accounts),
		DB:        db,
		Tokens:    tokens,
		Jobs:      sched,
		Metrics:   collector,
	}, log.GetLevel() == log.DebugLevel)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Run)
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		return sched.Stop()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("linky started successfully", "version", Version)
	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return
	}
	log.Info("linky stopped")
}

func newCollector(cfg *config.Config) *metrics.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.NewCollector(reg)
}

func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, accounts *account.Service, collector *metrics.Collector) error {
	interval := cfg.Scheduler.TokenPurgeInterval
	if interval <= 0 {
		log.Info("Token purge job disabled")
		return nil
	}
	return sched.AddSingletonJob("purge-expired-tokens", "Purge expired API tokens", interval, func(ctx context.Context) error {
		removed, err := accounts.PurgeExpiredTokens(ctx)
		if err != nil {
			return err
		}
		collector.RecordTokensPurged(removed)
		if removed > 0 {
			log.Info("Purged expired API tokens", "count", removed)
		}
		return nil
	})
}
