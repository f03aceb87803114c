package main

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/leadsync/internal/config"
	"github.com/xavierca1/leadsync/internal/infra/database"
	"github.com/xavierca1/leadsync/internal/infra/http/middleware"
	"github.com/xavierca1/leadsync/internal/infra/integration/zoho"
	"github.com/xavierca1/leadsync/internal/infra/lock"
	"github.com/xavierca1/leadsync/internal/infra/mail"
	"github.com/xavierca1/leadsync/internal/infra/queue"
	"github.com/xavierca1/leadsync/internal/usecase"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	DB       *sql.DB
	Redis    *redis.Client
	RabbitMQ *queue.RabbitMQ

	Leads     *database.LeadRepository
	Tokens    *usecase.TokenService
	Processor *usecase.BatchProcessor
	Capture   *usecase.CaptureLeadUseCase
}

type appOptions struct {
	withQueue bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	db, err := database.Open(cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &app{DB: db}

	region, err := zoho.ResolveRegion(cfg.Zoho.Region, cfg.Zoho.AccountsURL, cfg.Zoho.APIURL)
	if err != nil {
		a.Close()
		return nil, err
	}

	var locker usecase.Locker = lock.NewLocalLocker()
	if cfg.Redis.URL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = client
		locker = lock.NewRedisLocker(client)
	}

	recorder := middleware.PrometheusRecorder{}
	httpClient := &http.Client{Timeout: cfg.Zoho.Timeout()}

	oauth := zoho.NewOAuthClient(region.AccountsURL, cfg.Zoho.ClientID, cfg.Zoho.ClientSecret,
		cfg.Zoho.RedirectURL, cfg.Zoho.Scopes, httpClient)
	crm := zoho.NewClient(region.APIURL, zoho.WithHTTPClient(httpClient), zoho.WithRateLimit(cfg.Zoho.RateLimitRPS))

	a.Leads = database.NewLeadRepository(db, cfg.Store.Driver)
	a.Tokens = usecase.NewTokenService(database.NewTokenRepository(db, cfg.Store.Driver), oauth, locker,
		usecase.WithClockSkew(cfg.Token.Skew()),
		usecase.WithTokenRecorder(recorder),
	)

	forwarder := usecase.NewLeadForwarder(a.Tokens, crm, usecase.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay(),
		MaxDelay:    cfg.Retry.MaxDelay(),
		Multiplier:  cfg.Retry.Multiplier,
	}, usecase.WithForwarderRecorder(recorder))

	batchOpts := []usecase.BatchOption{
		usecase.WithConcurrency(cfg.Sync.Concurrency),
		usecase.WithBatchRecorder(recorder),
	}
	if cfg.Mail.Host != "" && cfg.Mail.OpsTo != "" {
		batchOpts = append(batchOpts, usecase.WithFailureNotifier(mail.NewEmailSender(
			cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From, cfg.Mail.OpsTo,
		)))
	}
	a.Processor = usecase.NewBatchProcessor(a.Leads, forwarder, locker, batchOpts...)

	var publisher usecase.LeadPublisher
	if opts.withQueue && cfg.RabbitMQ.URL != "" {
		mq, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.RabbitMQ = mq
		publisher = queue.NewProducer(mq.Ch)
	}
	a.Capture = usecase.NewCaptureLeadUseCase(a.Leads, publisher)

	zap.L().Info("dependencies ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("crm_api", region.APIURL),
		zap.Bool("redis_lock", a.Redis != nil),
		zap.Bool("queue", a.RabbitMQ != nil),
	)
	return a, nil
}

func (a *app) Close() {
	if a.RabbitMQ != nil {
		if err := a.RabbitMQ.Close(); err != nil {
			zap.L().Warn("close rabbitmq", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			zap.L().Warn("close redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Warn("close database", zap.Error(eris.Wrap(err, "database close")))
		}
	}
}
