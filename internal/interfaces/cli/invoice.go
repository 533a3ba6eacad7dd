package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/freelance/backend/internal/bootstrap"
	"github.com/freelance/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newInvoiceCmd(r *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invoice",
		Aliases: []string{"invoices"},
		Short:   "Create, issue and inspect invoices",
	}
	cmd.AddCommand(
		newInvoiceFromProjectCmd(r),
		newInvoiceCreateCmd(r),
		newInvoiceAddItemCmd(r),
		newInvoiceIssueCmd(r),
		newInvoiceVoidCmd(r),
		newInvoiceShowCmd(r),
		newInvoiceListCmd(r),
		newInvoiceOverdueCmd(r),
		newInvoiceSummaryCmd(r),
		newInvoiceExportCmd(r),
		newInvoiceHTMLCmd(r),
		newInvoicePDFCmd(r),
	)
	return cmd
}

func printInvoice(p *printer, inv *billingapp.InvoiceResponse) error {
	overdue := ""
	if inv.DaysOverdue > 0 {
		overdue = count(inv.DaysOverdue)
	}
	if err := p.fields(inv,
		"Number", inv.Number,
		"ID", inv.InvoiceID.String(),
		"Client", inv.ClientID.String(),
		"Project", inv.ProjectID.String(),
		"Status", string(inv.Status),
		"Issued", date(inv.IssueDate),
		"Due", date(inv.DueDate),
		"Days overdue", overdue,
		"Total", money(inv.Total),
		"Paid", money(inv.Paid),
		"Balance", money(inv.Balance),
		"Void reason", inv.VoidReason,
	); err != nil || p.json || len(inv.LineItems) == 0 {
		return err
	}
	p.line("")
	rows := make([][]string, 0, len(inv.LineItems))
	for _, item := range inv.LineItems {
		rows = append(rows, lineItemRow(item))
	}
	return p.table(nil, lineItemHeader, rows)
}

func printInvoiceViews(p *printer, v any, views []billing.InvoiceView) error {
	rows := make([][]string, 0, len(views))
	for _, view := range views {
		rows = append(rows, []string{view.Number, string(view.Status), date(view.DueDate), money(view.Total), money(view.Balance), view.InvoiceID.String()})
	}
	return p.table(v, []string{"NUMBER", "STATUS", "DUE", "TOTAL", "BALANCE", "ID"}, rows)
}

// invoiceRef resolves an invoice ID or number
func invoiceRef(ctx context.Context, app *bootstrap.App, ref string) (*billingapp.InvoiceResponse, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return app.Invoices.Get(ctx, id)
	}
	return app.Invoices.GetByNumber(ctx, ref)
}

// invoiceCmd resolves the invoice named by the first argument, runs fn on
// it and prints the result
func invoiceCmd(r *runtime, fn func(ctx context.Context, app *bootstrap.App, id uuid.UUID) (*billingapp.InvoiceResponse, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
			inv, err := invoiceRef(ctx, app, args[0])
			if err != nil {
				return err
			}
			if fn != nil {
				if inv, err = fn(ctx, app, inv.InvoiceID); err != nil {
					return err
				}
			}
			return printInvoice(r.printer(cmd), inv)
		})
	}
}

func newInvoiceFromProjectCmd(r *runtime) *cobra.Command {
	var req billingapp.CreateInvoiceFromProjectRequest
	cmd := &cobra.Command{
		Use:   "from-project <project-id>",
		Short: "Invoice a project's unbilled work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.ProjectID, err = parseID("project", args[0]); err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				inv, err := app.Invoices.CreateFromProject(ctx, req)
				if err != nil {
					return err
				}
				return printInvoice(r.printer(cmd), inv)
			})
		},
	}
	cmd.Flags().StringVar(&req.IssueDate, "issue-date", "", "Issue date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&req.DueDate, "due-date", "", "Due date, YYYY-MM-DD (default from payment terms)")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Notes printed on the invoice")
	cmd.Flags().BoolVar(&req.Issue, "issue", false, "Issue the invoice right away")
	return cmd
}

// parseItems reads --hourly "description;hours;rate" and --fixed
// "description;amount" flag values
func parseItems(hourly, fixed []string) ([]billingapp.LineItemRequest, error) {
	items := make([]billingapp.LineItemRequest, 0, len(hourly)+len(fixed))
	for _, raw := range hourly {
		parts := strings.Split(raw, ";")
		if len(parts) != 3 {
			return nil, fmt.Errorf("--hourly %q: want description;hours;rate", raw)
		}
		hours, err := parseAmount("hourly", parts[1])
		if err != nil {
			return nil, err
		}
		rate, err := parseAmount("hourly", parts[2])
		if err != nil {
			return nil, err
		}
		items = append(items, billingapp.LineItemRequest{
			Description: strings.TrimSpace(parts[0]),
			Kind:        string(billing.LineItemKindHourly),
			Hours:       hours,
			Rate:        rate,
		})
	}
	for _, raw := range fixed {
		parts := strings.Split(raw, ";")
		if len(parts) != 2 {
			return nil, fmt.Errorf("--fixed %q: want description;amount", raw)
		}
		amount, err := parseAmount("fixed", parts[1])
		if err != nil {
			return nil, err
		}
		items = append(items, billingapp.LineItemRequest{
			Description: strings.TrimSpace(parts[0]),
			Kind:        string(billing.LineItemKindFixed),
			Amount:      amount,
		})
	}
	return items, nil
}

func newInvoiceCreateCmd(r *runtime) *cobra.Command {
	var clientID, projectID string
	var hourly, fixed []string
	var req billingapp.CreateManualInvoiceRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft invoice from explicit line items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.ClientID, err = parseID("client", clientID); err != nil {
				return err
			}
			if req.ProjectID, err = parseID("project", projectID); err != nil {
				return err
			}
			if req.Items, err = parseItems(hourly, fixed); err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				inv, err := app.Invoices.CreateManual(ctx, req)
				if err != nil {
					return err
				}
				return printInvoice(r.printer(cmd), inv)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Client ID (required)")
	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	cmd.Flags().StringArrayVar(&hourly, "hourly", nil, `Hourly line "description;hours;rate", repeatable`)
	cmd.Flags().StringArrayVar(&fixed, "fixed", nil, `Fixed line "description;amount", repeatable`)
	cmd.Flags().StringVar(&req.IssueDate, "issue-date", "", "Issue date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&req.DueDate, "due-date", "", "Due date, YYYY-MM-DD (default from payment terms)")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Notes printed on the invoice")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newInvoiceAddItemCmd(r *runtime) *cobra.Command {
	var hourly, fixed []string
	cmd := &cobra.Command{
		Use:   "add-item <invoice>",
		Short: "Add line items to a draft invoice",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		items, err := parseItems(hourly, fixed)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("give at least one --hourly or --fixed line")
		}
		return invoiceCmd(r, func(ctx context.Context, app *bootstrap.App, id uuid.UUID) (inv *billingapp.InvoiceResponse, err error) {
			for _, item := range items {
				if inv, err = app.Invoices.AddLineItem(ctx, id, item); err != nil {
					return nil, err
				}
			}
			return inv, nil
		})(c, args)
	}
	cmd.Flags().StringArrayVar(&hourly, "hourly", nil, `Hourly line "description;hours;rate", repeatable`)
	cmd.Flags().StringArrayVar(&fixed, "fixed", nil, `Fixed line "description;amount", repeatable`)
	return cmd
}

func newInvoiceIssueCmd(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "issue <invoice>",
		Short: "Issue a draft invoice",
		Args:  cobra.ExactArgs(1),
		RunE: invoiceCmd(r, func(ctx context.Context, app *bootstrap.App, id uuid.UUID) (*billingapp.InvoiceResponse, error) {
			return app.Invoices.Issue(ctx, id)
		}),
	}
}

func newInvoiceVoidCmd(r *runtime) *cobra.Command {
	var req billingapp.VoidInvoiceRequest
	cmd := &cobra.Command{
		Use:   "void <invoice>",
		Short: "Void an invoice without live payments",
		Args:  cobra.ExactArgs(1),
		RunE: invoiceCmd(r, func(ctx context.Context, app *bootstrap.App, id uuid.UUID) (*billingapp.InvoiceResponse, error) {
			return app.Invoices.Void(ctx, id, req)
		}),
	}
	cmd.Flags().StringVar(&req.Reason, "reason", "", "Why the invoice is voided (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newInvoiceShowCmd(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <invoice>",
		Short: "Show an invoice by ID or number",
		Args:  cobra.ExactArgs(1),
		RunE:  invoiceCmd(r, nil),
	}
}

// invoiceFilterFlags binds the shared list filter flags
func invoiceFilterFlags(cmd *cobra.Command, filter *billingapp.InvoiceListFilter, clientID, projectID *string) {
	cmd.Flags().StringVar(clientID, "client", "", "Only invoices of this client")
	cmd.Flags().StringVar(projectID, "project", "", "Only invoices of this project")
	cmd.Flags().StringVar(&filter.Status, "status", "", "DRAFT, ISSUED, PARTIALLY_PAID, PAID, OVERDUE or VOID")
	cmd.Flags().StringVar(&filter.From, "from", "", "Issued on or after, YYYY-MM-DD")
	cmd.Flags().StringVar(&filter.To, "to", "", "Issued on or before, YYYY-MM-DD")
}

func resolveInvoiceFilter(filter *billingapp.InvoiceListFilter, clientID, projectID string) (err error) {
	if filter.ClientID, err = optionalID("client", clientID); err != nil {
		return err
	}
	filter.ProjectID, err = optionalID("project", projectID)
	return err
}

func newInvoiceListCmd(r *runtime) *cobra.Command {
	var clientID, projectID string
	var filter billingapp.InvoiceListFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices with their current status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveInvoiceFilter(&filter, clientID, projectID); err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				invoices, err := app.Invoices.List(ctx, filter)
				if err != nil {
					return err
				}
				views := make([]billing.InvoiceView, len(invoices))
				for i := range invoices {
					views[i] = invoices[i].InvoiceView
				}
				return printInvoiceViews(r.printer(cmd), invoices, views)
			})
		},
	}
	invoiceFilterFlags(cmd, &filter, &clientID, &projectID)
	return cmd
}

func newInvoiceOverdueCmd(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List overdue invoices, most overdue first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				views, err := app.Invoices.Overdue(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.Number, date(v.DueDate), count(v.DaysOverdue), money(v.Balance), v.ClientID.String()})
				}
				return r.printer(cmd).table(views, []string{"NUMBER", "DUE", "DAYS", "BALANCE", "CLIENT"}, rows)
			})
		},
	}
}

func newInvoiceSummaryCmd(r *runtime) *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count invoices by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := optionalID("client", clientID)
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				s, err := app.Invoices.Summary(ctx, client)
				if err != nil {
					return err
				}
				p := r.printer(cmd)
				if p.json {
					return p.value(s)
				}
				rows := make([][]string, 0, len(s.Counts))
				for _, status := range billing.AllInvoiceStatuses() {
					rows = append(rows, []string{string(status), count(s.Counts[status])})
				}
				if err := p.table(nil, []string{"STATUS", "COUNT"}, rows); err != nil {
					return err
				}
				p.line("")
				return p.fields(nil,
					"Billed", money(s.Billed),
					"Collected", money(s.Collected),
					"Outstanding", money(s.Outstanding),
					"Paid in full", s.PaymentRate.StringFixed(2)+"%",
				)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Only invoices of this client")
	return cmd
}

func newInvoiceExportCmd(r *runtime) *cobra.Command {
	var clientID, projectID, out string
	var filter billingapp.InvoiceListFilter
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export invoices as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveInvoiceFilter(&filter, clientID, projectID); err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				return writeTo(cmd.OutOrStdout(), out, func(w io.Writer) error {
					return app.Invoices.ExportCSV(ctx, w, filter)
				})
			})
		},
	}
	invoiceFilterFlags(cmd, &filter, &clientID, &projectID)
	cmd.Flags().StringVarP(&out, "file", "f", "-", "Output file, - for stdout")
	return cmd
}

func newInvoiceHTMLCmd(r *runtime) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "html <invoice>",
		Short: "Render an invoice as HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				inv, err := invoiceRef(ctx, app, args[0])
				if err != nil {
					return err
				}
				html, err := app.Invoices.DocumentHTML(ctx, inv.InvoiceID)
				if err != nil {
					return err
				}
				return writeTo(cmd.OutOrStdout(), out, func(w io.Writer) error {
					_, err := io.WriteString(w, html)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVarP(&out, "file", "f", "-", "Output file, - for stdout")
	return cmd
}

func newInvoicePDFCmd(r *runtime) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pdf <invoice>",
		Short: "Render an invoice to PDF and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				inv, err := invoiceRef(ctx, app, args[0])
				if err != nil {
					return err
				}
				doc, err := app.Invoices.Document(ctx, inv.InvoiceID)
				if err != nil {
					return err
				}
				if out != "" {
					if err := writeFile(out, func(w io.Writer) error {
						_, err := w.Write(doc.PDF)
						return err
					}); err != nil {
						return err
					}
				}
				return r.printer(cmd).fields(doc,
					"Invoice", doc.InvoiceNumber,
					"Stored at", doc.Key,
					"URL", doc.URL,
					"Pages", count(doc.PageCount),
					"Written to", out,
				)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "file", "f", "", "Also write the PDF to this file")
	return cmd
}
