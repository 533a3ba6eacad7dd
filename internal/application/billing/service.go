// Package billing holds the application services of the freelance ledger.
// Services fetch the full scope an operation needs, call the pure domain
// core, persist the result inside one transaction and publish the domain
// events raised along the way once the transaction has committed.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/freelance/backend/internal/infrastructure/export"
	"github.com/freelance/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repositories bundles the persistence ports the services depend on
type Repositories struct {
	Clients  billing.ClientRepository
	Projects billing.ProjectRepository
	Invoices billing.InvoiceRepository
	Payments billing.PaymentRepository
	Tx       billing.TransactionManager
}

// Settings are the numbering and term defaults from configuration
type Settings struct {
	InvoicePrefix  string
	PaymentPrefix  string
	DefaultDueDays int
	IdempotencyTTL time.Duration
}

// DefaultSettings returns the settings used when none are configured
func DefaultSettings() Settings {
	return Settings{
		InvoicePrefix:  "INV",
		PaymentPrefix:  "PAY",
		DefaultDueDays: billing.DefaultDueDays,
		IdempotencyTTL: shared.DefaultIdempotencyConfig().TTL,
	}
}

// Option configures a service
type Option func(*serviceBase)

// WithClock sets the time source used for as-of dates
func WithClock(clock shared.Clock) Option {
	return func(b *serviceBase) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithEventPublisher sets where domain events go after commit
func WithEventPublisher(publisher shared.EventPublisher) Option {
	return func(b *serviceBase) {
		b.events = publisher
	}
}

// WithLogger sets the base logger
func WithLogger(l *zap.Logger) Option {
	return func(b *serviceBase) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSettings overrides numbering prefixes and payment terms
func WithSettings(settings Settings) Option {
	return func(b *serviceBase) {
		if settings.InvoicePrefix != "" {
			b.settings.InvoicePrefix = settings.InvoicePrefix
		}
		if settings.PaymentPrefix != "" {
			b.settings.PaymentPrefix = settings.PaymentPrefix
		}
		if settings.DefaultDueDays > 0 {
			b.settings.DefaultDueDays = settings.DefaultDueDays
		}
		if settings.IdempotencyTTL > 0 {
			b.settings.IdempotencyTTL = settings.IdempotencyTTL
		}
	}
}

// WithInvoiceLocks shares one lock table between services that write
// allocations. Services without it get a private table.
func WithInvoiceLocks(locks *InvoiceLocks) Option {
	return func(b *serviceBase) {
		if locks != nil {
			b.locks = locks
		}
	}
}

type serviceBase struct {
	repos    Repositories
	clock    shared.Clock
	events   shared.EventPublisher
	logger   *zap.Logger
	settings Settings
	locks    *InvoiceLocks
}

func newServiceBase(repos Repositories, opts []Option) serviceBase {
	b := serviceBase{
		repos:    repos,
		clock:    shared.SystemClock{},
		logger:   zap.NewNop(),
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.locks == nil {
		b.locks = NewInvoiceLocks()
	}
	return b
}

func (b *serviceBase) log(ctx context.Context) *zap.Logger {
	return logger.For(ctx, b.logger)
}

// publish drains the pending events of the aggregates and hands them to
// the publisher. Failures are logged; the state change already committed.
func (b *serviceBase) publish(ctx context.Context, aggregates ...shared.EventSource) {
	var events []shared.DomainEvent
	for _, agg := range aggregates {
		events = append(events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
	if b.events == nil || len(events) == 0 {
		return
	}
	if err := b.events.Publish(ctx, events...); err != nil {
		b.log(ctx).Error("failed to publish domain events",
			zap.Int("event_count", len(events)),
			zap.Error(err))
	}
}

// computeViews loads every payment allocating to the invoices and derives
// their views as of now.
func (b *serviceBase) computeViews(ctx context.Context, invoices []billing.Invoice, asOf time.Time) ([]billing.InvoiceView, error) {
	if len(invoices) == 0 {
		return []billing.InvoiceView{}, nil
	}
	ids := make([]uuid.UUID, len(invoices))
	for i := range invoices {
		ids[i] = invoices[i].ID
	}
	payments, err := b.repos.Payments.FindByInvoices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	return billing.ComputeInvoices(invoices, payments, asOf)
}

// computeView derives the view of a single invoice
func (b *serviceBase) computeView(ctx context.Context, inv *billing.Invoice, asOf time.Time) (*billing.InvoiceView, error) {
	views, err := b.computeViews(ctx, []billing.Invoice{*inv}, asOf)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (b *serviceBase) findClient(ctx context.Context, id uuid.UUID) (*billing.Client, error) {
	c, err := b.repos.Clients.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "client %s not found", id)
	}
	return c, nil
}

func (b *serviceBase) findProject(ctx context.Context, id uuid.UUID) (*billing.Project, error) {
	p, err := b.repos.Projects.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "project %s not found", id)
	}
	return p, nil
}

func (b *serviceBase) findInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	inv, err := b.repos.Invoices.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "invoice %s not found", id)
	}
	return inv, nil
}

func (b *serviceBase) findPayment(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	p, err := b.repos.Payments.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "payment %s not found", id)
	}
	return p, nil
}

// clientNames resolves display names of the given clients. Clients that
// no longer exist are left out.
func (b *serviceBase) clientNames(ctx context.Context, ids []uuid.UUID) (export.Names, error) {
	names := make(export.Names, len(ids))
	for _, id := range ids {
		if _, ok := names[id]; ok {
			continue
		}
		c, err := b.repos.Clients.FindByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		names[id] = c.DisplayName()
	}
	return names, nil
}

// notFound gives a repository miss a message naming the record. Other
// errors pass through unchanged.
func notFound(err error, format string, args ...any) error {
	if isNotFound(err) {
		return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

func validationError(format string, args ...any) error {
	return shared.NewDomainError(billing.CodeValidation, fmt.Sprintf(format, args...))
}

// parseDate reads a YYYY-MM-DD date. Empty input yields fallback.
func parseDate(value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, validationError("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// parseOptionalDate reads a YYYY-MM-DD date into a pointer
func parseOptionalDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := parseDate(value, time.Time{})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// endOfDay moves a date to its last nanosecond so inclusive ranges on
// timestamps cover the whole day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func normalizeFilter(f shared.Filter) shared.Filter {
	def := shared.DefaultFilter()
	if f.Page <= 0 {
		f.Page = def.Page
	}
	if f.PageSize <= 0 {
		f.PageSize = def.PageSize
	}
	if f.OrderBy == "" {
		f.OrderBy = def.OrderBy
	}
	if f.OrderDir == "" {
		f.OrderDir = def.OrderDir
	}
	return f
}
