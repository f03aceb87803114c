package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/leadsync/internal/infra/database"
	"github.com/xavierca1/leadsync/internal/infra/http/handlers"
	"github.com/xavierca1/leadsync/internal/infra/queue"
	"github.com/xavierca1/leadsync/internal/infra/worker"
)

var (
	servePort     int
	serveNoWorker bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, the queue consumer and the scheduled sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, appOptions{withQueue: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := database.Migrate(ctx, a.DB, cfg.Store.Driver); err != nil {
			return err
		}

		router := handlers.NewRouter(handlers.RouterConfig{
			AdminKey:    cfg.Server.AdminKey,
			CORSOrigins: cfg.Server.CORSOrigins,
			TrustProxy:  cfg.Server.TrustProxy,
			Leads: handlers.NewLeadHandler(a.Capture, a.Leads, a.Processor,
				cfg.Server.CaptureRateLimit, cfg.Sync.BatchLimit, cfg.Sync.MaxRetryCount),
			Tokens: handlers.NewTokenHandler(a.Tokens),
			Health: handlers.NewHealthHandler(version, healthChecks(a)),
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if a.RabbitMQ != nil {
			g.Go(func() error {
				return queue.NewWorker(a.RabbitMQ.Ch, a.Processor).Start(gctx, queue.QueueName)
			})
		}

		if !serveNoWorker {
			var opts []worker.Option
			if cfg.Sync.RequeueFailed {
				opts = append(opts, worker.WithRequeue(cfg.Sync.MaxRetryCount))
			}
			g.Go(func() error {
				return worker.NewLeadSyncWorker(a.Processor, cfg.Sync.Schedule, cfg.Sync.BatchLimit, opts...).Start(gctx)
			})
		}

		return g.Wait()
	},
}

func healthChecks(a *app) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": a.DB.PingContext,
		"rabbitmq": nil,
		"redis":    nil,
	}
	if a.RabbitMQ != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if !a.RabbitMQ.Healthy() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoWorker, "no-worker", false, "do not run the scheduled sync in this process")
	rootCmd.AddCommand(serveCmd)
}
