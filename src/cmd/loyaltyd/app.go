package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackyeh168/loyalty_ledger/src/internal/application/commerce"
	customerapp "github.com/jackyeh168/loyalty_ledger/src/internal/application/customer"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/expiry"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/ledger"
	merchantapp "github.com/jackyeh168/loyalty_ledger/src/internal/application/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/application/redemption"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/config"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/events"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/observability"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence/store"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/salla"
	"github.com/jackyeh168/loyalty_ledger/src/internal/interfaces/httpapi"
)

// app 一個進程內的所有元件
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	store   *store.Store

	engine     *ledger.Engine
	redemption *redemption.Service
	dispatcher *redemption.Dispatcher
	commerce   *commerce.Adapter
	merchants  *merchantapp.Service
	stats      *merchantapp.StatsUseCase
	customers  *customerapp.GetCustomerUseCase
	scheduler  *expiry.Scheduler
	auth       *httpapi.Authenticator

	closers []io.Closer
}

// loadConfig 讀取設定並建立日誌
func loadConfig(path string) (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := observability.NewLogger(observability.LogConfig{
		Service:    "loyaltyd",
		Env:        cfg.Env,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, os.Stdout)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	observability.InstallDefault(logger)
	return cfg, logger, closer, nil
}

// openStore 連線資料庫並執行遷移
func openStore(cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	db, err := persistence.Open(persistence.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogSQL:          cfg.Database.LogSQL,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db); err != nil {
		_ = persistence.Close(db)
		return nil, err
	}
	logger.Info("database ready", "driver", cfg.Database.Driver)
	return store.New(db), nil
}

// newApp 組裝所有元件；呼叫者負責 Close
func newApp(configPath string) (*app, error) {
	cfg, logger, logCloser, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		closers: []io.Closer{logCloser},
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, closerFunc(func() error { return persistence.Close(st.DB) }))

	a.engine = ledger.NewEngine(st.Accounts, st.Ledger, st.Tiers, st.TxManager, ledger.Options{
		MaxRetries:   cfg.Engine.MaxRetries,
		RetryBackoff: cfg.Engine.RetryBackoff,
		Logger:       logger,
		Publisher:    events.NewLogPublisher(logger, a.metrics),
	})

	issuer := salla.NewClient(salla.ClientOptions{
		BaseURL:           cfg.Salla.BaseURL,
		HTTPClient:        &http.Client{Timeout: cfg.Salla.Timeout},
		RequestsPerMinute: cfg.Salla.RequestsPerMinute,
		Burst:             cfg.Salla.Burst,
	})
	a.dispatcher = redemption.NewDispatcher(st.Coupons, st.Merchants, issuer, redemption.DispatcherOptions{
		Workers:        cfg.Coupons.Workers,
		QueueSize:      cfg.Coupons.QueueSize,
		MaxAttempts:    cfg.Coupons.MaxAttempts,
		Backoff:        cfg.Coupons.Backoff,
		RescanInterval: cfg.Coupons.RescanInterval,
		Timeout:        cfg.Coupons.ExternalTimeout,
		Logger:         logger,
		Observe:        a.metrics.ObserveCouponDispatch,
	})
	a.redemption = redemption.NewService(a.engine, st.Merchants, st.Coupons, st.TxManager, issuer, redemption.Options{
		ExternalTimeout: cfg.Coupons.ExternalTimeout,
		Logger:          logger,
		Retry:           a.dispatcher,
		Observe:         a.metrics.ObserveCouponExternal,
	})

	a.commerce = commerce.NewAdapter(
		st.Merchants,
		st.TxManager,
		a.engine,
		customerapp.NewRegisterCustomerUseCase(st.Customers, st.TxManager),
		a.redemption,
		commerce.Options{
			Logger: logger,
			Observe: func(eventType commerce.EventType, outcome string) {
				a.metrics.ObserveWebhook(string(eventType), outcome)
			},
			Tiers:        st.Tiers,
			DefaultTiers: tier.DefaultDefinitions(),
		},
	)
	a.merchants = merchantapp.NewService(st.Merchants, st.Tiers, st.TxManager, a.engine, logger)
	a.stats = merchantapp.NewStatsUseCase(st.Accounts, st.Ledger, st.Coupons, st.Tiers, a.engine)
	a.customers = customerapp.NewGetCustomerUseCase(st.Customers)

	sweeper := expiry.NewSweeper(a.engine, st.Ledger, expiry.SweeperOptions{
		BatchSize:  cfg.Expiry.BatchSize,
		MaxEntries: cfg.Expiry.MaxEntries,
		Logger:     logger,
	})
	a.scheduler = expiry.NewScheduler(sweeper, cfg.Expiry.Interval, a.observeSweep, logger)

	a.auth = httpapi.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.ClockSkew, logger)
	return a, nil
}

func (a *app) observeSweep(report *expiry.Report, err error) {
	if report == nil {
		a.metrics.ObserveSweep(observability.SweepStats{}, err)
		return
	}
	a.metrics.ObserveSweep(observability.SweepStats{
		Expired:       report.Expired,
		MarkedOnly:    report.MarkedOnly,
		Skipped:       report.Skipped,
		Failed:        report.Failed,
		PointsExpired: report.PointsExpired,
		Duration:      report.Duration,
	}, err)
}

// router 建立 HTTP 路由
func (a *app) router() http.Handler {
	allowUnsigned := a.cfg.IsDevelopment() && a.cfg.Salla.WebhookSecret == ""
	if allowUnsigned {
		a.logger.Warn("webhook signature verification disabled in development")
	}
	return httpapi.NewRouter(httpapi.Dependencies{
		Engine:         a.engine,
		Redemption:     a.redemption,
		Merchants:      a.merchants,
		Stats:          a.stats,
		Customers:      a.customers,
		Commerce:       a.commerce,
		Sweeper:        a.scheduler,
		Auth:           a.auth,
		WebhookSecret:  a.cfg.Salla.WebhookSecret,
		AllowUnsigned:  allowUnsigned,
		Health:         a.store.Ping,
		Metrics:        a.metrics,
		MetricsHandler: a.metrics.Handler(),
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		Logger:         a.logger,
	})
}

// Close 依建立的反序關閉
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
