package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Row levels in a report CSV
const (
	LevelTotal   = "TOTAL"
	LevelClient  = "CLIENT"
	LevelProject = "PROJECT"
)

// Names resolves entity IDs to display names. Unknown IDs print as the ID.
type Names map[uuid.UUID]string

// Of returns the name of id, or the ID itself when unknown
func (n Names) Of(id uuid.UUID) string {
	if name, ok := n[id]; ok {
		return name
	}
	return id.String()
}

// ReportHeader is the first row of WriteReportCSV
var ReportHeader = []string{"Level", "Client", "Project", "Invoices", "Billed", "Collected", "Outstanding"}

// WriteReportCSV writes one row per client, each followed by its project
// rows, and a closing TOTAL row. Rows keep the report's ordering.
func WriteReportCSV(w io.Writer, report *billing.Report, names Names) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeader); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, c := range report.Breakdown {
		if err := cw.Write(totalsRow(LevelClient, names.Of(c.ClientID), "", c.Totals)); err != nil {
			return fmt.Errorf("failed to write client row: %w", err)
		}
		for _, p := range c.Projects {
			if err := cw.Write(totalsRow(LevelProject, names.Of(c.ClientID), names.Of(p.ProjectID), p.Totals)); err != nil {
				return fmt.Errorf("failed to write project row: %w", err)
			}
		}
	}
	if err := cw.Write(totalsRow(LevelTotal, "", "", report.Totals)); err != nil {
		return fmt.Errorf("failed to write total row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

func totalsRow(level, client, project string, t billing.Totals) []string {
	return []string{
		level,
		client,
		project,
		fmt.Sprint(t.InvoiceCount),
		money(t.Billed),
		money(t.Collected),
		money(t.Outstanding),
	}
}

// InvoiceHeader is the first row of WriteInvoicesCSV
var InvoiceHeader = []string{
	"ID", "Invoice Number", "Client ID", "Client Name", "Project ID",
	"Issue Date", "Due Date", "Status", "Total", "Paid", "Balance", "Days Overdue", "Notes",
}

// WriteInvoicesCSV writes one row per computed invoice
func WriteInvoicesCSV(w io.Writer, views []billing.InvoiceView, clients Names) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(InvoiceHeader); err != nil {
		return fmt.Errorf("failed to write invoice header: %w", err)
	}
	for _, v := range views {
		row := []string{
			v.InvoiceID.String(),
			v.Number,
			v.ClientID.String(),
			clients.Of(v.ClientID),
			v.ProjectID.String(),
			v.IssueDate.Format(time.DateOnly),
			v.DueDate.Format(time.DateOnly),
			string(v.Status),
			money(v.Total),
			money(v.Paid),
			money(v.Balance),
			fmt.Sprint(v.DaysOverdue),
			v.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write invoice %s: %w", v.Number, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ClientHeader is the first row of WriteClientsCSV
var ClientHeader = []string{"ID", "Name", "Email", "Phone", "Company", "Address", "Created Date"}

// WriteClientsCSV writes one row per client
func WriteClientsCSV(w io.Writer, clients []billing.Client) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ClientHeader); err != nil {
		return fmt.Errorf("failed to write client header: %w", err)
	}
	for _, c := range clients {
		row := []string{
			c.ID.String(),
			c.Name,
			c.Email,
			c.Phone,
			c.Company,
			c.Address,
			c.CreatedAt.UTC().Format(time.DateTime),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write client %s: %w", c.Email, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
