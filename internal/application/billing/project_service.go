package billing

import (
	"context"
	"fmt"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/freelance/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProjectService handles project business operations
type ProjectService struct {
	serviceBase
}

// NewProjectService creates a new ProjectService
func NewProjectService(repos Repositories, opts ...Option) *ProjectService {
	return &ProjectService{serviceBase: newServiceBase(repos, opts)}
}

// Create creates an active project for an existing client
func (s *ProjectService) Create(ctx context.Context, req CreateProjectRequest) (*ProjectResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "project", "create", telemetry.SpanAttrClientID, req.ClientID.String())
	defer span.End()

	if _, err := s.findClient(ctx, req.ClientID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	project, err := billing.NewProject(req.ClientID, req.Name, req.Description, req.HourlyRate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.repos.Projects.Save(ctx, project); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrProjectID, project.ID.String())
	telemetry.SetOK(span)
	s.log(ctx).Info("project created",
		zap.String("project_id", project.ID.String()),
		zap.String("client_id", project.ClientID.String()))

	resp := ToProjectResponse(project)
	return &resp, nil
}

// Update renames a project or changes its rate
func (s *ProjectService) Update(ctx context.Context, id uuid.UUID, req UpdateProjectRequest) (*ProjectResponse, error) {
	return s.mutate(ctx, id, "update", func(p *billing.Project) error {
		if req.Name != nil || req.Description != nil {
			name, description := p.Name, p.Description
			if req.Name != nil {
				name = *req.Name
			}
			if req.Description != nil {
				description = *req.Description
			}
			if err := p.Rename(name, description); err != nil {
				return err
			}
		}
		if req.HourlyRate != nil {
			return p.SetHourlyRate(*req.HourlyRate)
		}
		return nil
	})
}

// LogHours records hours worked at the project's current rate
func (s *ProjectService) LogHours(ctx context.Context, id uuid.UUID, req LogHoursRequest) (*ProjectResponse, error) {
	return s.mutate(ctx, id, "log_hours", func(p *billing.Project) error {
		_, err := p.LogHours(req.Description, req.Hours)
		return err
	})
}

// AddFixedFee adds a flat fee to the project
func (s *ProjectService) AddFixedFee(ctx context.Context, id uuid.UUID, req AddFixedFeeRequest) (*ProjectResponse, error) {
	return s.mutate(ctx, id, "add_fixed_fee", func(p *billing.Project) error {
		_, err := p.AddFixedFee(req.Description, req.Amount)
		return err
	})
}

// Pause puts an active project on hold
func (s *ProjectService) Pause(ctx context.Context, id uuid.UUID) (*ProjectResponse, error) {
	return s.mutate(ctx, id, "pause", (*billing.Project).Pause)
}

// Resume reactivates a project on hold
func (s *ProjectService) Resume(ctx context.Context, id uuid.UUID) (*ProjectResponse, error) {
	return s.mutate(ctx, id, "resume", (*billing.Project).Resume)
}

// Complete marks the work as finished
func (s *ProjectService) Complete(ctx context.Context, id uuid.UUID) (*ProjectResponse, error) {
	return s.mutate(ctx, id, "complete", (*billing.Project).Complete)
}

// Cancel abandons the project
func (s *ProjectService) Cancel(ctx context.Context, id uuid.UUID) (*ProjectResponse, error) {
	return s.mutate(ctx, id, "cancel", (*billing.Project).Cancel)
}

func (s *ProjectService) mutate(ctx context.Context, id uuid.UUID, method string, fn func(*billing.Project) error) (*ProjectResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "project", method, telemetry.SpanAttrProjectID, id.String())
	defer span.End()

	project, err := s.findProject(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := fn(project); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.repos.Projects.SaveWithLock(ctx, project); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	s.log(ctx).Info("project changed",
		zap.String("project_id", project.ID.String()),
		zap.String("operation", method),
		zap.String("status", project.Status.String()))

	resp := ToProjectResponse(project)
	return &resp, nil
}

// Delete removes a project that was never invoiced
func (s *ProjectService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "project", "delete", telemetry.SpanAttrProjectID, id.String())
	defer span.End()

	project, err := s.findProject(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	count, err := s.repos.Invoices.CountByProject(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("failed to count invoices: %w", err)
	}
	if count > 0 {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("project %q has %d invoice(s) and cannot be deleted", project.Name, count))
	}
	if err := s.repos.Projects.Delete(ctx, project.ID); err != nil {
		telemetry.RecordError(span, err)
		return notFound(err, "project %s not found", id)
	}

	telemetry.SetOK(span)
	s.log(ctx).Info("project deleted", zap.String("project_id", project.ID.String()))
	return nil
}

// Get retrieves a project by ID
func (s *ProjectService) Get(ctx context.Context, id uuid.UUID) (*ProjectResponse, error) {
	project, err := s.findProject(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProjectResponse(project)
	return &resp, nil
}

// List returns a page of projects
func (s *ProjectService) List(ctx context.Context, filter ProjectListFilter) (*shared.Paginated[ProjectResponse], error) {
	f := billing.ProjectFilter{
		Filter: normalizeFilter(shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		}),
		ClientID: filter.ClientID,
	}
	if filter.Status != "" {
		status := billing.ProjectStatus(filter.Status)
		if !status.IsValid() {
			return nil, validationError("unknown project status %q", filter.Status)
		}
		f.Status = &status
	}

	projects, total, err := s.repos.Projects.FindAll(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	items := make([]ProjectResponse, len(projects))
	for i := range projects {
		items[i] = ToProjectResponse(&projects[i])
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

// ListByClient returns every project of a client, newest first
func (s *ProjectService) ListByClient(ctx context.Context, clientID uuid.UUID) ([]ProjectResponse, error) {
	if _, err := s.findClient(ctx, clientID); err != nil {
		return nil, err
	}
	projects, _, err := s.repos.Projects.FindAll(ctx, billing.ProjectFilter{
		Filter:   shared.Filter{OrderBy: "created_at", OrderDir: "desc"},
		ClientID: &clientID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	items := make([]ProjectResponse, len(projects))
	for i := range projects {
		items[i] = ToProjectResponse(&projects[i])
	}
	return items, nil
}

// Earnings totals what the project's invoices billed and collected.
// Drafts and void invoices are left out.
func (s *ProjectService) Earnings(ctx context.Context, id uuid.UUID) (*ProjectEarnings, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "project", "earnings", telemetry.SpanAttrProjectID, id.String())
	defer span.End()

	project, err := s.findProject(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	invoices, err := s.repos.Invoices.FindAll(ctx, billing.InvoiceFilter{ProjectID: &project.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	views, err := s.computeViews(ctx, invoices, s.clock.Now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	earnings := &ProjectEarnings{
		ProjectID:   project.ID,
		Billed:      decimal.Zero,
		Collected:   decimal.Zero,
		Outstanding: decimal.Zero,
	}
	for _, v := range views {
		if v.Status == billing.InvoiceStatusDraft || v.Status == billing.InvoiceStatusVoid {
			continue
		}
		earnings.InvoiceCount++
		earnings.Billed = earnings.Billed.Add(v.Total)
		earnings.Collected = earnings.Collected.Add(v.Paid)
		earnings.Outstanding = earnings.Outstanding.Add(v.Balance)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceCount, earnings.InvoiceCount)
	telemetry.SetOK(span)
	return earnings, nil
}
