package billing

import (
	"context"
	"fmt"
	"io"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/freelance/backend/internal/infrastructure/export"
	"github.com/freelance/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClientService handles client business operations
type ClientService struct {
	serviceBase
}

// NewClientService creates a new ClientService
func NewClientService(repos Repositories, opts ...Option) *ClientService {
	return &ClientService{serviceBase: newServiceBase(repos, opts)}
}

// Create creates a new client. Emails are unique ignoring case.
func (s *ClientService) Create(ctx context.Context, req CreateClientRequest) (*ClientResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "client", "create")
	defer span.End()

	client, err := billing.NewClient(req.Name, req.Email,
		billing.WithPhone(req.Phone),
		billing.WithCompany(req.Company),
		billing.WithAddress(req.Address))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	exists, err := s.repos.Clients.ExistsByEmail(ctx, client.Email, uuid.Nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists,
			fmt.Sprintf("a client with email %s already exists", client.Email))
	}

	if err := s.repos.Clients.Save(ctx, client); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save client: %w", err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrClientID, client.ID.String())
	telemetry.SetOK(span)
	s.log(ctx).Info("client created",
		zap.String("client_id", client.ID.String()),
		zap.String("email", client.Email))

	resp := ToClientResponse(client)
	return &resp, nil
}

// Update changes a client's contact details
func (s *ClientService) Update(ctx context.Context, id uuid.UUID, req UpdateClientRequest) (*ClientResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "client", "update", telemetry.SpanAttrClientID, id.String())
	defer span.End()

	client, err := s.findClient(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	name, email, phone, company, address := client.Name, client.Email, client.Phone, client.Company, client.Address
	if req.Name != nil {
		name = *req.Name
	}
	if req.Email != nil {
		email = *req.Email
	}
	if req.Phone != nil {
		phone = *req.Phone
	}
	if req.Company != nil {
		company = *req.Company
	}
	if req.Address != nil {
		address = *req.Address
	}

	if err := client.Update(name, email, phone, company, address); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	exists, err := s.repos.Clients.ExistsByEmail(ctx, client.Email, client.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists,
			fmt.Sprintf("a client with email %s already exists", client.Email))
	}

	if err := s.repos.Clients.SaveWithLock(ctx, client); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	s.log(ctx).Info("client updated", zap.String("client_id", client.ID.String()))
	resp := ToClientResponse(client)
	return &resp, nil
}

// Delete removes a client that owes nothing and has no projects left
func (s *ClientService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "client", "delete", telemetry.SpanAttrClientID, id.String())
	defer span.End()

	client, err := s.findClient(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	invoices, err := s.repos.Invoices.FindAll(ctx, billing.InvoiceFilter{ClientID: &client.ID})
	if err != nil {
		return fmt.Errorf("failed to load invoices: %w", err)
	}
	views, err := s.computeViews(ctx, invoices, s.clock.Now())
	if err != nil {
		return err
	}
	unpaid := 0
	for _, v := range views {
		if v.Status.AcceptsPayment() && v.Balance.IsPositive() {
			unpaid++
		}
	}
	if unpaid > 0 {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("client %s has %d unpaid invoice(s)", client.DisplayName(), unpaid))
	}

	projects, err := s.repos.Projects.CountByClient(ctx, client.ID)
	if err != nil {
		return fmt.Errorf("failed to count projects: %w", err)
	}
	if projects > 0 {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("client %s still has %d project(s)", client.DisplayName(), projects))
	}

	if err := s.repos.Clients.Delete(ctx, client.ID); err != nil {
		telemetry.RecordError(span, err)
		return notFound(err, "client %s not found", id)
	}

	telemetry.SetOK(span)
	s.log(ctx).Info("client deleted", zap.String("client_id", client.ID.String()))
	return nil
}

// Get retrieves a client by ID
func (s *ClientService) Get(ctx context.Context, id uuid.UUID) (*ClientResponse, error) {
	client, err := s.findClient(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToClientResponse(client)
	return &resp, nil
}

// List returns a page of clients. Search matches name, email or company.
func (s *ClientService) List(ctx context.Context, filter ClientListFilter) (*shared.Paginated[ClientResponse], error) {
	f := normalizeFilter(shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
	})

	clients, total, err := s.repos.Clients.FindAll(ctx, billing.ClientFilter{Filter: f})
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	items := make([]ClientResponse, len(clients))
	for i := range clients {
		items[i] = ToClientResponse(&clients[i])
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// Search returns every client matching the term, ordered by name
func (s *ClientService) Search(ctx context.Context, term string) ([]ClientResponse, error) {
	const searchLimit = 100
	page, err := s.List(ctx, ClientListFilter{
		Search:   term,
		Page:     1,
		PageSize: searchLimit,
		OrderBy:  "name",
		OrderDir: "asc",
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// ExportCSV writes every client as CSV, ordered by name
func (s *ClientService) ExportCSV(ctx context.Context, w io.Writer) error {
	clients, _, err := s.repos.Clients.FindAll(ctx, billing.ClientFilter{
		Filter: shared.Filter{OrderBy: "name", OrderDir: "asc"},
	})
	if err != nil {
		return fmt.Errorf("failed to list clients: %w", err)
	}
	return export.WriteClientsCSV(w, clients)
}
