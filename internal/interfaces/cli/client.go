package cli

import (
	"context"
	"io"
	"strconv"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/freelance/backend/internal/bootstrap"
	"github.com/spf13/cobra"
)

func newClientCmd(r *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "client",
		Aliases: []string{"clients"},
		Short:   "Manage clients",
	}
	cmd.AddCommand(
		newClientAddCmd(r),
		newClientListCmd(r),
		newClientSearchCmd(r),
		newClientShowCmd(r),
		newClientUpdateCmd(r),
		newClientDeleteCmd(r),
		newClientExportCmd(r),
	)
	return cmd
}

func printClient(p *printer, c *billingapp.ClientResponse) error {
	return p.fields(c,
		"ID", c.ID.String(),
		"Name", c.Name,
		"Company", c.Company,
		"Email", c.Email,
		"Phone", c.Phone,
		"Address", c.Address,
	)
}

func printClients(p *printer, v any, clients []billingapp.ClientResponse) error {
	rows := make([][]string, 0, len(clients))
	for _, c := range clients {
		rows = append(rows, []string{c.ID.String(), c.DisplayName, c.Email})
	}
	return p.table(v, []string{"ID", "CLIENT", "EMAIL"}, rows)
}

func newClientAddCmd(r *runtime) *cobra.Command {
	var req billingapp.CreateClientRequest
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				client, err := app.Clients.Create(ctx, req)
				if err != nil {
					return err
				}
				return printClient(r.printer(cmd), client)
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Billing email address (required)")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&req.Company, "company", "", "Company name")
	cmd.Flags().StringVar(&req.Address, "address", "", "Postal address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newClientListCmd(r *runtime) *cobra.Command {
	var filter billingapp.ClientListFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				page, err := app.Clients.List(ctx, filter)
				if err != nil {
					return err
				}
				return printClients(r.printer(cmd), page, page.Items)
			})
		},
	}
	cmd.Flags().StringVar(&filter.Search, "search", "", "Filter by name, company or email")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", 50, "Clients per page")
	return cmd
}

func newClientSearchCmd(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search clients by name, company or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				clients, err := app.Clients.Search(ctx, args[0])
				if err != nil {
					return err
				}
				return printClients(r.printer(cmd), clients, clients)
			})
		},
	}
}

func newClientShowCmd(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <client-id>",
		Short: "Show a client and its projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("client", args[0])
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				client, err := app.Clients.Get(ctx, id)
				if err != nil {
					return err
				}
				p := r.printer(cmd)
				if p.json {
					return p.value(client)
				}
				if err := printClient(p, client); err != nil {
					return err
				}
				projects, err := app.Projects.ListByClient(ctx, id)
				if err != nil {
					return err
				}
				if len(projects) == 0 {
					return nil
				}
				p.line("")
				return printProjects(p, projects, projects)
			})
		},
	}
}

func newClientUpdateCmd(r *runtime) *cobra.Command {
	var name, email, phone, company, address string
	cmd := &cobra.Command{
		Use:   "update <client-id>",
		Short: "Change client details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("client", args[0])
			if err != nil {
				return err
			}
			var req billingapp.UpdateClientRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("email") {
				req.Email = &email
			}
			if flags.Changed("phone") {
				req.Phone = &phone
			}
			if flags.Changed("company") {
				req.Company = &company
			}
			if flags.Changed("address") {
				req.Address = &address
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				client, err := app.Clients.Update(ctx, id, req)
				if err != nil {
					return err
				}
				return printClient(r.printer(cmd), client)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Client name")
	cmd.Flags().StringVar(&email, "email", "", "Billing email address")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number, empty to clear")
	cmd.Flags().StringVar(&company, "company", "", "Company name, empty to clear")
	cmd.Flags().StringVar(&address, "address", "", "Postal address, empty to clear")
	return cmd
}

func newClientDeleteCmd(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <client-id>",
		Short: "Delete a client without projects or unpaid invoices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("client", args[0])
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.Clients.Delete(ctx, id); err != nil {
					return err
				}
				p := r.printer(cmd)
				if p.json {
					return p.value(map[string]string{"deleted": id.String()})
				}
				p.line("Deleted client %s", id)
				return nil
			})
		},
	}
}

func newClientExportCmd(r *runtime) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export clients as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				return writeTo(cmd.OutOrStdout(), out, func(w io.Writer) error {
					return app.Clients.ExportCSV(ctx, w)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&out, "file", "f", "-", "Output file, - for stdout")
	return cmd
}

// count renders n for a table cell
func count(n int) string {
	return strconv.Itoa(n)
}
