package cli

import (
	"context"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/bootstrap"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newProjectCmd(r *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Manage projects and their billable work",
	}
	cmd.AddCommand(
		newProjectAddCmd(r),
		newProjectListCmd(r),
		newProjectShowCmd(r),
		newProjectUpdateCmd(r),
		newProjectLogHoursCmd(r),
		newProjectFeeCmd(r),
		newProjectTransitionCmd(r, "pause", "Put a project on hold", (*billingapp.ProjectService).Pause),
		newProjectTransitionCmd(r, "resume", "Resume a project on hold", (*billingapp.ProjectService).Resume),
		newProjectTransitionCmd(r, "complete", "Mark a project completed", (*billingapp.ProjectService).Complete),
		newProjectTransitionCmd(r, "cancel", "Cancel a project", (*billingapp.ProjectService).Cancel),
		newProjectEarningsCmd(r),
		newProjectDeleteCmd(r),
	)
	return cmd
}

func printProject(p *printer, pr *billingapp.ProjectResponse) error {
	if err := p.fields(pr,
		"ID", pr.ID.String(),
		"Client", pr.ClientID.String(),
		"Name", pr.Name,
		"Status", pr.Status,
		"Hourly rate", money(pr.HourlyRate),
		"Hours", pr.HoursWorked.String(),
		"Billable", money(pr.Billable),
	); err != nil || p.json || len(pr.Billables) == 0 {
		return err
	}
	p.line("")
	rows := make([][]string, 0, len(pr.Billables))
	for _, item := range pr.Billables {
		rows = append(rows, lineItemRow(item))
	}
	return p.table(nil, lineItemHeader, rows)
}

var lineItemHeader = []string{"KIND", "DESCRIPTION", "HOURS", "RATE", "AMOUNT"}

func lineItemRow(item billing.LineItem) []string {
	if item.Kind == billing.LineItemKindHourly {
		return []string{string(item.Kind), item.Description, item.Quantity.String(), money(item.Rate), money(item.Amount())}
	}
	return []string{string(item.Kind), item.Description, "", "", money(item.Amount())}
}

func printProjects(p *printer, v any, projects []billingapp.ProjectResponse) error {
	rows := make([][]string, 0, len(projects))
	for _, pr := range projects {
		rows = append(rows, []string{pr.ID.String(), pr.Name, pr.Status, money(pr.HourlyRate), money(pr.Billable)})
	}
	return p.table(v, []string{"ID", "PROJECT", "STATUS", "RATE", "BILLABLE"}, rows)
}

func newProjectAddCmd(r *runtime) *cobra.Command {
	var clientID, rate string
	req := billingapp.CreateProjectRequest{}
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a project for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			req.Name = args[0]
			if req.ClientID, err = parseID("client", clientID); err != nil {
				return err
			}
			if req.HourlyRate, err = parseAmount("rate", rate); err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				project, err := app.Projects.Create(ctx, req)
				if err != nil {
					return err
				}
				return printProject(r.printer(cmd), project)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Client ID (required)")
	cmd.Flags().StringVar(&rate, "rate", "0", "Hourly rate")
	cmd.Flags().StringVar(&req.Description, "description", "", "Project description")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func newProjectListCmd(r *runtime) *cobra.Command {
	var clientID string
	var filter billingapp.ProjectListFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if filter.ClientID, err = optionalID("client", clientID); err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				page, err := app.Projects.List(ctx, filter)
				if err != nil {
					return err
				}
				return printProjects(r.printer(cmd), page, page.Items)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Only projects of this client")
	cmd.Flags().StringVar(&filter.Status, "status", "", "ACTIVE, ON_HOLD, COMPLETED or CANCELLED")
	cmd.Flags().StringVar(&filter.Search, "search", "", "Filter by name")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", 50, "Projects per page")
	return cmd
}

// projectCmd runs fn on the project named by the first argument and
// prints the result
func projectCmd(r *runtime, fn func(ctx context.Context, app *bootstrap.App, id uuid.UUID) (*billingapp.ProjectResponse, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID("project", args[0])
		if err != nil {
			return err
		}
		return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
			project, err := fn(ctx, app, id)
			if err != nil {
				return err
			}
			return printProject(r.printer(cmd), project)
		})
	}
}

func newProjectShowCmd(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project and its unbilled work",
		Args:  cobra.ExactArgs(1),
		RunE: projectCmd(r, func(ctx context.Context, app *bootstrap.App, id uuid.UUID) (*billingapp.ProjectResponse, error) {
			return app.Projects.Get(ctx, id)
		}),
	}
}

func newProjectUpdateCmd(r *runtime) *cobra.Command {
	var name, description, rate string
	cmd := &cobra.Command{
		Use:   "update <project-id>",
		Short: "Rename or reprice a project",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		var req billingapp.UpdateProjectRequest
		flags := c.Flags()
		if flags.Changed("name") {
			req.Name = &name
		}
		if flags.Changed("description") {
			req.Description = &description
		}
		if flags.Changed("rate") {
			d, err := parseAmount("rate", rate)
			if err != nil {
				return err
			}
			req.HourlyRate = &d
		}
		return projectCmd(r, func(ctx context.Context, app *bootstrap.App, id uuid.UUID) (*billingapp.ProjectResponse, error) {
			return app.Projects.Update(ctx, id, req)
		})(c, args)
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&description, "description", "", "Project description")
	cmd.Flags().StringVar(&rate, "rate", "", "Hourly rate for hours logged from now on")
	return cmd
}

func newProjectLogHoursCmd(r *runtime) *cobra.Command {
	var hours string
	var req billingapp.LogHoursRequest
	cmd := &cobra.Command{
		Use:   "log-hours <project-id>",
		Short: "Log hours at the project's rate",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		var err error
		if req.Hours, err = parseAmount("hours", hours); err != nil {
			return err
		}
		return projectCmd(r, func(ctx context.Context, app *bootstrap.App, id uuid.UUID) (*billingapp.ProjectResponse, error) {
			return app.Projects.LogHours(ctx, id, req)
		})(c, args)
	}
	cmd.Flags().StringVar(&hours, "hours", "", "Hours worked (required)")
	cmd.Flags().StringVarP(&req.Description, "description", "d", "", "What the hours were spent on (required)")
	_ = cmd.MarkFlagRequired("hours")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newProjectFeeCmd(r *runtime) *cobra.Command {
	var amount string
	var req billingapp.AddFixedFeeRequest
	cmd := &cobra.Command{
		Use:   "fee <project-id>",
		Short: "Add a fixed fee to a project",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		var err error
		if req.Amount, err = parseAmount("amount", amount); err != nil {
			return err
		}
		return projectCmd(r, func(ctx context.Context, app *bootstrap.App, id uuid.UUID) (*billingapp.ProjectResponse, error) {
			return app.Projects.AddFixedFee(ctx, id, req)
		})(c, args)
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Fee amount (required)")
	cmd.Flags().StringVarP(&req.Description, "description", "d", "", "Fee description (required)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newProjectTransitionCmd(r *runtime, use, short string, fn func(*billingapp.ProjectService, context.Context, uuid.UUID) (*billingapp.ProjectResponse, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <project-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: projectCmd(r, func(ctx context.Context, app *bootstrap.App, id uuid.UUID) (*billingapp.ProjectResponse, error) {
			return fn(app.Projects, ctx, id)
		}),
	}
}

func newProjectEarningsCmd(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "earnings <project-id>",
		Short: "Show what a project has billed and collected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				e, err := app.Projects.Earnings(ctx, id)
				if err != nil {
					return err
				}
				return r.printer(cmd).fields(e,
					"Project", e.ProjectID.String(),
					"Invoices", count(e.InvoiceCount),
					"Billed", money(e.Billed),
					"Collected", money(e.Collected),
					"Outstanding", money(e.Outstanding),
				)
			})
		},
	}
}

func newProjectDeleteCmd(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project that was never invoiced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.Projects.Delete(ctx, id); err != nil {
					return err
				}
				p := r.printer(cmd)
				if p.json {
					return p.value(map[string]string{"deleted": id.String()})
				}
				p.line("Deleted project %s", id)
				return nil
			})
		},
	}
}
