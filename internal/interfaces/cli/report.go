package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/freelance/backend/internal/bootstrap"
	"github.com/spf13/cobra"
)

func newReportCmd(r *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"reports"},
		Short:   "Billed, collected and outstanding totals",
	}
	cmd.AddCommand(
		newReportGenerateCmd(r),
		newReportMonthlyCmd(r),
		newReportClientRevenueCmd(r),
		newReportOutstandingCmd(r),
		newReportExportCmd(r),
	)
	return cmd
}

type reportFlags struct {
	req       billingapp.ReportRequest
	clientID  string
	projectID string
}

func (f *reportFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.req.From, "from", "", "Issued on or after, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.req.To, "to", "", "Issued on or before, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.clientID, "client", "", "Only this client")
	cmd.Flags().StringVar(&f.projectID, "project", "", "Only this project")
	cmd.Flags().StringSliceVar(&f.req.Statuses, "status", nil, "Only these statuses (default all but DRAFT and VOID)")
}

func (f *reportFlags) request() (billingapp.ReportRequest, error) {
	var err error
	if f.req.ClientID, err = optionalID("client", f.clientID); err != nil {
		return f.req, err
	}
	f.req.ProjectID, err = optionalID("project", f.projectID)
	return f.req, err
}

func newReportGenerateCmd(r *runtime) *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Totals per client and project, largest outstanding first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				report, err := app.Reports.Generate(ctx, req)
				if err != nil {
					return err
				}
				p := r.printer(cmd)
				if p.json {
					return p.value(report)
				}
				rows := make([][]string, 0, len(report.Breakdown)+1)
				for _, c := range report.Breakdown {
					rows = append(rows, []string{c.ClientID.String(), "", count(c.InvoiceCount), money(c.Billed), money(c.Collected), money(c.Outstanding)})
					for _, pr := range c.Projects {
						rows = append(rows, []string{"", pr.ProjectID.String(), count(pr.InvoiceCount), money(pr.Billed), money(pr.Collected), money(pr.Outstanding)})
					}
				}
				rows = append(rows, []string{"TOTAL", "", count(report.InvoiceCount), money(report.Billed), money(report.Collected), money(report.Outstanding)})
				return p.table(nil, []string{"CLIENT", "PROJECT", "INVOICES", "BILLED", "COLLECTED", "OUTSTANDING"}, rows)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newReportMonthlyCmd(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "monthly <year> <month>",
		Short: "Invoices issued and payments received in a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return errInvalidArg("year", args[0])
			}
			month, err := strconv.Atoi(args[1])
			if err != nil {
				return errInvalidArg("month", args[1])
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				s, err := app.Reports.Monthly(ctx, year, time.Month(month))
				if err != nil {
					return err
				}
				return r.printer(cmd).fields(s,
					"Month", s.Month.String()+" "+strconv.Itoa(s.Year),
					"Invoices", count(s.InvoiceCount),
					"Paid", count(s.PaidCount),
					"Outstanding", count(s.OutstandingCount),
					"Billed", money(s.Billed),
					"Received", money(s.Received),
					"Collection rate", s.CollectionRate.StringFixed(2)+"%",
				)
			})
		},
	}
}

func newReportClientRevenueCmd(r *runtime) *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "client-revenue",
		Short: "Rank clients by amount collected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				ranked, err := app.Reports.ClientRevenue(ctx, req)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(ranked))
				for i, c := range ranked {
					rows = append(rows, []string{count(i + 1), c.Name, money(c.Collected), money(c.Billed), money(c.Outstanding)})
				}
				return r.printer(cmd).table(ranked, []string{"#", "CLIENT", "COLLECTED", "BILLED", "OUTSTANDING"}, rows)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newReportOutstandingCmd(r *runtime) *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "outstanding",
		Short: "Unpaid balances per client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := optionalID("client", clientID)
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				s, err := app.Reports.Outstanding(ctx, client)
				if err != nil {
					return err
				}
				p := r.printer(cmd)
				if p.json {
					return p.value(s)
				}
				rows := make([][]string, 0, len(s.Clients))
				for _, c := range s.Clients {
					rows = append(rows, []string{c.ClientID.String(), count(c.InvoiceCount), money(c.Outstanding), money(c.Overdue), date(c.OldestDueDate)})
				}
				if err := p.table(nil, []string{"CLIENT", "INVOICES", "OUTSTANDING", "OVERDUE", "OLDEST DUE"}, rows); err != nil {
					return err
				}
				p.line("")
				return p.fields(nil,
					"Total outstanding", money(s.TotalOutstanding),
					"Overdue", money(s.OverdueAmount)+" in "+count(s.OverdueCount)+" invoice(s)",
				)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Only this client")
	return cmd
}

func newReportExportCmd(r *runtime) *cobra.Command {
	var flags reportFlags
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the report breakdown as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				return writeTo(cmd.OutOrStdout(), out, func(w io.Writer) error {
					return app.Reports.ExportCSV(ctx, w, req)
				})
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&out, "file", "f", "-", "Output file, - for stdout")
	return cmd
}

func errInvalidArg(what, raw string) error {
	return fmt.Errorf("invalid %s %q", what, raw)
}
