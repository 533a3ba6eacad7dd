// Package bootstrap wires configuration, persistence and the billing
// services together for the server and the command line tool.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/freelance/backend/internal/infrastructure/cache"
	"github.com/freelance/backend/internal/infrastructure/config"
	"github.com/freelance/backend/internal/infrastructure/event"
	"github.com/freelance/backend/internal/infrastructure/export"
	"github.com/freelance/backend/internal/infrastructure/logger"
	"github.com/freelance/backend/internal/infrastructure/migration"
	"github.com/freelance/backend/internal/infrastructure/persistence"
	"github.com/freelance/backend/internal/infrastructure/printing"
	"github.com/freelance/backend/internal/infrastructure/storage"
	"github.com/freelance/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// activityCapacity is how many recent events the activity log keeps
const activityCapacity = 200

// App holds the wired services and everything that must be closed
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *persistence.Database
	Bus      *event.InMemoryEventBus
	Activity *event.ActivityLog
	// ActivityDelivery feeds Activity, dropping events it already recorded
	ActivityDelivery *event.IdempotentHandler

	Clients  *billingapp.ClientService
	Projects *billingapp.ProjectService
	Invoices *billingapp.InvoiceService
	Payments *billingapp.PaymentService
	Reports  *billingapp.ReportService

	tracer  *telemetry.TracerProvider
	meters  *telemetry.MeterProvider
	logs    *telemetry.LoggerProvider
	printer *printing.InvoicePrinter
	closers []io.Closer
}

// Options control the optional parts of the wiring
type Options struct {
	// Documents enables storage and, when configured, PDF rendering
	Documents bool
	// Tracing starts the OTLP span, metric and log exporters that the
	// telemetry settings enable
	Tracing bool
	// Clock overrides the wall clock of the services
	Clock shared.Clock
}

// New opens the database, prepares the schema and builds the services.
// Close must be called when New succeeds.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (_ *App, err error) {
	app := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = app.Close(context.WithoutCancel(ctx))
		}
	}()

	if opts.Tracing {
		app.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			SamplingRatio:     cfg.Telemetry.SamplingRatio,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to start tracing: %w", err)
		}
		if err := app.startExporters(ctx); err != nil {
			return nil, err
		}
		log = app.Logger
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithParameterizedQueries(cfg.App.Env == "production"))
	app.DB, err = persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return nil, err
	}
	if err := telemetry.RegisterDBTracing(app.DB.DB, telemetry.DBTracingConfig{
		Enabled:    app.tracer.IsEnabled() && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		DBSystem:   cfg.Database.Driver,
	}, log); err != nil {
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}
	if err := prepareSchema(app.DB, log); err != nil {
		return nil, err
	}

	repos := billingapp.Repositories{
		Clients:  persistence.NewGormClientRepository(app.DB.DB),
		Projects: persistence.NewGormProjectRepository(app.DB.DB),
		Invoices: persistence.NewGormInvoiceRepository(app.DB.DB),
		Payments: persistence.NewGormPaymentRepository(app.DB.DB),
		Tx:       persistence.NewGormTransactionManager(app.DB.DB),
	}

	store, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithKeyPrefix(cfg.Idempotency.KeyPrefix),
	).CreateStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create idempotency store: %w", err)
	}
	app.track(store)

	dedupe := shared.DefaultIdempotencyConfig()
	if cfg.Idempotency.TTL > 0 {
		dedupe.TTL = cfg.Idempotency.TTL
	}
	app.Bus = event.NewInMemoryEventBus(log)
	app.Activity = event.NewActivityLog(log, activityCapacity)
	app.ActivityDelivery = event.NewIdempotentHandler(app.Activity, store, log, event.WithIdempotencyConfig(dedupe))
	app.Bus.Subscribe(app.ActivityDelivery)
	metrics, err := telemetry.NewBillingMetrics(app.Meter("freelance/billing"))
	if err != nil {
		return nil, err
	}
	app.Bus.Subscribe(metrics)
	if err := app.Bus.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start event bus: %w", err)
	}

	serviceOpts := []billingapp.Option{
		billingapp.WithLogger(log),
		billingapp.WithClock(opts.Clock),
		billingapp.WithEventPublisher(app.Bus),
		billingapp.WithInvoiceLocks(billingapp.NewInvoiceLocks()),
		billingapp.WithSettings(billingapp.Settings{
			InvoicePrefix:  cfg.Billing.InvoicePrefix,
			PaymentPrefix:  cfg.Billing.PaymentPrefix,
			DefaultDueDays: cfg.Billing.DefaultDueDays,
			IdempotencyTTL: cfg.Idempotency.TTL,
		}),
	}
	app.Clients = billingapp.NewClientService(repos, serviceOpts...)
	app.Projects = billingapp.NewProjectService(repos, serviceOpts...)
	app.Invoices = billingapp.NewInvoiceService(repos, serviceOpts...)
	app.Payments = billingapp.NewPaymentService(repos, serviceOpts...)
	app.Reports = billingapp.NewReportService(repos, serviceOpts...)

	app.Payments.SetIdempotencyStore(store)

	if opts.Documents {
		if err := app.wireDocuments(ctx); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// startExporters starts metric and log export and tees the logger into
// the log exporter
func (a *App) startExporters(ctx context.Context) error {
	t := a.Config.Telemetry
	var err error
	a.meters, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.MetricsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.MetricsInterval,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to start metrics: %w", err)
	}
	a.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           t.LogsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to start log export: %w", err)
	}
	a.Logger = a.logs.Bridge(a.Logger, t.ServiceName)
	return nil
}

// Meter returns a named meter, a no-op one unless metrics are exported
func (a *App) Meter(name string) metric.Meter {
	return a.meters.Meter(name)
}

// prepareSchema auto-migrates sqlite and applies the versioned migrations
// to postgres
func prepareSchema(db *persistence.Database, log *zap.Logger) error {
	if db.Driver == config.DriverSQLite {
		return db.AutoMigrate()
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		return err
	}
	return m.Up()
}

func (a *App) wireDocuments(ctx context.Context) error {
	cfg := a.Config
	formatter, err := export.NewMoneyFormatter(cfg.Billing.Currency, cfg.Billing.Locale)
	if err != nil {
		return fmt.Errorf("invalid billing currency: %w", err)
	}
	documents, err := storage.New(ctx, &cfg.Storage, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open document storage: %w", err)
	}

	var renderer printing.PDFRenderer
	if cfg.PDF.Enabled {
		chrome, err := printing.NewChromedpRenderer(&printing.ChromedpConfig{
			DefaultTimeout: cfg.PDF.Timeout,
			RemoteURL:      cfg.PDF.RemoteURL,
			NoSandbox:      true,
			Logger:         a.Logger,
		})
		if err != nil {
			return fmt.Errorf("failed to start PDF renderer: %w", err)
		}
		renderer = chrome
	}

	a.printer = printing.NewInvoicePrinter(renderer, formatter, printing.Issuer{
		Name:    cfg.Billing.BusinessName,
		Address: cfg.Billing.BusinessAddress,
		Email:   cfg.Billing.BusinessEmail,
		Phone:   cfg.Billing.BusinessPhone,
	}, printing.WithPrinterLogger(a.Logger))
	a.Invoices.SetDocumentPipeline(a.printer, documents)
	return nil
}

func (a *App) track(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// Close stops the bus, renderer, stores and database, then flushes the
// exporters
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Bus != nil {
		errs = append(errs, a.Bus.Stop(ctx))
	}
	if a.printer != nil {
		errs = append(errs, a.printer.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	errs = append(errs, a.meters.Shutdown(ctx), a.logs.Shutdown(ctx))
	return errors.Join(errs...)
}
