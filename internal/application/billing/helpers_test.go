package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/freelance/backend/internal/domain/shared"
	"github.com/freelance/backend/internal/infrastructure/config"
	"github.com/freelance/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testNow is mid-April; invoices issued on March 1st with 30 day terms
// are overdue by then
var testNow = time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type fixture struct {
	repos     Repositories
	publisher *recordingPublisher
	locks     *InvoiceLocks

	clients  *ClientService
	projects *ProjectService
	invoices *InvoiceService
	payments *PaymentService
	reports  *ReportService
}

// newFixture wires every service to a migrated in-memory sqlite database
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	repos := Repositories{
		Clients:  persistence.NewGormClientRepository(db.DB),
		Projects: persistence.NewGormProjectRepository(db.DB),
		Invoices: persistence.NewGormInvoiceRepository(db.DB),
		Payments: persistence.NewGormPaymentRepository(db.DB),
		Tx:       persistence.NewGormTransactionManager(db.DB),
	}
	f := &fixture{
		repos:     repos,
		publisher: &recordingPublisher{},
		locks:     NewInvoiceLocks(),
	}
	opts := []Option{
		WithClock(shared.FixedClock{At: testNow}),
		WithEventPublisher(f.publisher),
		WithInvoiceLocks(f.locks),
	}
	f.clients = NewClientService(repos, opts...)
	f.projects = NewProjectService(repos, opts...)
	f.invoices = NewInvoiceService(repos, opts...)
	f.payments = NewPaymentService(repos, opts...)
	f.reports = NewReportService(repos, opts...)
	return f
}

func (f *fixture) createClient(t *testing.T, name, email string) *ClientResponse {
	t.Helper()
	c, err := f.clients.Create(t.Context(), CreateClientRequest{Name: name, Email: email})
	require.NoError(t, err)
	return c
}

// createProject creates a project and logs hours at rate
func (f *fixture) createProject(t *testing.T, clientID uuid.UUID, name, hours, rate string) *ProjectResponse {
	t.Helper()
	p, err := f.projects.Create(t.Context(), CreateProjectRequest{
		ClientID:   clientID,
		Name:       name,
		HourlyRate: dec(rate),
	})
	require.NoError(t, err)
	if hours != "" {
		p, err = f.projects.LogHours(t.Context(), p.ID, LogHoursRequest{Description: "Work", Hours: dec(hours)})
		require.NoError(t, err)
	}
	return p
}

// issueInvoice bills a fresh project of hours x rate, issued on issue
func (f *fixture) issueInvoice(t *testing.T, clientID uuid.UUID, hours, rate, issue string) *InvoiceResponse {
	t.Helper()
	p := f.createProject(t, clientID, "Project "+uuid.NewString()[:8], hours, rate)
	inv, err := f.invoices.CreateFromProject(t.Context(), CreateInvoiceFromProjectRequest{
		ProjectID: p.ID,
		IssueDate: issue,
		Issue:     true,
	})
	require.NoError(t, err)
	return inv
}

func (f *fixture) invoiceView(t *testing.T, id uuid.UUID) *InvoiceResponse {
	t.Helper()
	inv, err := f.invoices.Get(t.Context(), id)
	require.NoError(t, err)
	return inv
}

func allocate(id uuid.UUID, amount string) []AllocationInput {
	return []AllocationInput{{InvoiceID: id, Amount: dec(amount)}}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, shared.NewDomainError(code, ""), "got %v", err)
}
