package billing

import (
	"strings"
	"time"

	"github.com/freelance/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProjectStatus represents where a project is in its lifecycle
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "ACTIVE"
	ProjectStatusOnHold    ProjectStatus = "ON_HOLD"
	ProjectStatusCompleted ProjectStatus = "COMPLETED"
	ProjectStatusCancelled ProjectStatus = "CANCELLED"
)

// IsValid checks if the status is valid
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusOnHold, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s ProjectStatus) String() string {
	return string(s)
}

// Project is billable work for exactly one client. Once invoiced, its rate
// and billables are frozen.
type Project struct {
	shared.BaseAggregateRoot
	ClientID    uuid.UUID
	Name        string
	Description string
	HourlyRate  decimal.Decimal
	Status      ProjectStatus
	Billables   LineItems
	InvoicedAt  *time.Time
}

// NewProject creates an active project. A zero hourly rate is allowed for
// fixed-fee only work.
func NewProject(clientID uuid.UUID, name, description string, hourlyRate decimal.Decimal) (*Project, error) {
	if clientID == uuid.Nil {
		return nil, validationError("project must belong to a client")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("project name is required")
	}
	if hourlyRate.IsNegative() {
		return nil, validationError("hourly rate cannot be negative")
	}
	return &Project{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ClientID:          clientID,
		Name:              name,
		Description:       strings.TrimSpace(description),
		HourlyRate:        hourlyRate,
		Status:            ProjectStatusActive,
		Billables:         LineItems{},
	}, nil
}

// IsInvoiced reports whether an invoice was created from this project
func (p *Project) IsInvoiced() bool {
	return p.InvoicedAt != nil
}

func (p *Project) ensureEditable() error {
	if p.IsInvoiced() {
		return invalidState("project %q has been invoiced and can no longer change", p.Name)
	}
	return nil
}

// Rename updates the name and description
func (p *Project) Rename(name, description string) error {
	if err := p.ensureEditable(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return validationError("project name is required")
	}
	p.Name = name
	p.Description = strings.TrimSpace(description)
	p.Touch()
	return nil
}

// SetHourlyRate changes the rate used for hours logged from now on
func (p *Project) SetHourlyRate(rate decimal.Decimal) error {
	if err := p.ensureEditable(); err != nil {
		return err
	}
	if rate.IsNegative() {
		return validationError("hourly rate cannot be negative")
	}
	p.HourlyRate = rate
	p.Touch()
	return nil
}

// LogHours records hours at the current hourly rate
func (p *Project) LogHours(description string, hours decimal.Decimal) (LineItem, error) {
	if err := p.ensureEditable(); err != nil {
		return LineItem{}, err
	}
	if p.Status != ProjectStatusActive {
		return LineItem{}, invalidState("cannot log hours on a %s project", p.Status)
	}
	if !p.HourlyRate.IsPositive() {
		return LineItem{}, validationError("project %q has no hourly rate", p.Name)
	}
	if !hours.IsPositive() {
		return LineItem{}, validationError("hours must be greater than zero")
	}
	item, err := NewHourlyItem(description, hours, p.HourlyRate)
	if err != nil {
		return LineItem{}, err
	}
	p.Billables = append(p.Billables, item)
	p.Touch()
	return item, nil
}

// AddFixedFee records a flat fee billable
func (p *Project) AddFixedFee(description string, fee decimal.Decimal) (LineItem, error) {
	if err := p.ensureEditable(); err != nil {
		return LineItem{}, err
	}
	if p.Status == ProjectStatusCancelled {
		return LineItem{}, invalidState("cannot bill a cancelled project")
	}
	if !fee.IsPositive() {
		return LineItem{}, validationError("fee must be greater than zero")
	}
	item, err := NewFixedItem(description, fee)
	if err != nil {
		return LineItem{}, err
	}
	p.Billables = append(p.Billables, item)
	p.Touch()
	return item, nil
}

// HoursWorked sums logged hours
func (p *Project) HoursWorked() decimal.Decimal {
	return p.Billables.Hours()
}

// BillableTotal sums the billables
func (p *Project) BillableTotal() (decimal.Decimal, error) {
	return p.Billables.Total()
}

// Pause puts an active project on hold
func (p *Project) Pause() error {
	if p.Status != ProjectStatusActive {
		return invalidState("only active projects can be paused, current status: %s", p.Status)
	}
	p.Status = ProjectStatusOnHold
	p.Touch()
	return nil
}

// Resume reactivates a project on hold
func (p *Project) Resume() error {
	if p.Status != ProjectStatusOnHold {
		return invalidState("only projects on hold can be resumed, current status: %s", p.Status)
	}
	p.Status = ProjectStatusActive
	p.Touch()
	return nil
}

// Complete marks the work as finished
func (p *Project) Complete() error {
	if p.Status == ProjectStatusCompleted || p.Status == ProjectStatusCancelled {
		return invalidState("project is already %s", p.Status)
	}
	p.Status = ProjectStatusCompleted
	p.Touch()
	return nil
}

// Cancel abandons a project that has not been invoiced
func (p *Project) Cancel() error {
	if err := p.ensureEditable(); err != nil {
		return err
	}
	if p.Status == ProjectStatusCancelled {
		return invalidState("project is already cancelled")
	}
	p.Status = ProjectStatusCancelled
	p.Touch()
	return nil
}

// MarkInvoiced freezes the project and returns a snapshot of its billables
// for the invoice.
func (p *Project) MarkInvoiced(at time.Time) (LineItems, error) {
	if err := p.ensureEditable(); err != nil {
		return nil, err
	}
	if p.Status == ProjectStatusCancelled {
		return nil, invalidState("cannot invoice a cancelled project")
	}
	if len(p.Billables) == 0 {
		return nil, validationError("project %q has no billable items", p.Name)
	}
	if _, err := p.Billables.Total(); err != nil {
		return nil, err
	}
	p.InvoicedAt = &at
	p.Touch()
	return p.Billables.Clone(), nil
}
