package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/freelance/backend/internal/bootstrap"
	"github.com/spf13/cobra"
)

func newPaymentCmd(r *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "payment",
		Aliases: []string{"payments"},
		Short:   "Record and allocate payments",
	}
	cmd.AddCommand(
		newPaymentRecordCmd(r),
		newPaymentAllocateCmd(r),
		newPaymentReverseCmd(r),
		newPaymentShowCmd(r),
		newPaymentListCmd(r),
		newPaymentSummaryCmd(r),
	)
	return cmd
}

func printPayment(p *printer, pay *billingapp.PaymentResponse) error {
	reversed := ""
	if pay.Reversed {
		reversed = date(*pay.ReversedAt) + " " + pay.ReversalReason
	}
	if err := p.fields(pay,
		"Number", pay.Number,
		"ID", pay.ID.String(),
		"Client", pay.ClientID.String(),
		"Received", date(pay.ReceivedOn),
		"Method", pay.Method,
		"Reference", pay.Reference,
		"Amount", money(pay.Amount),
		"Fee", money(pay.TransactionFee),
		"Allocated", money(pay.Allocated),
		"Unallocated", money(pay.Unallocated),
		"Reversed", reversed,
	); err != nil || p.json || len(pay.Allocations) == 0 {
		return err
	}
	p.line("")
	rows := make([][]string, 0, len(pay.Allocations))
	for _, a := range pay.Allocations {
		rows = append(rows, []string{a.InvoiceID.String(), money(a.Amount), date(a.AllocatedAt)})
	}
	return p.table(nil, []string{"INVOICE", "AMOUNT", "ALLOCATED"}, rows)
}

func printPaymentResult(p *printer, res *billingapp.PaymentResult) error {
	if p.json {
		return p.value(res)
	}
	if res.Replayed {
		p.line("Already recorded; showing the original result.")
	}
	if err := printPayment(p, &res.Payment); err != nil {
		return err
	}
	if len(res.Invoices) == 0 {
		return nil
	}
	p.line("")
	return printInvoiceViews(p, nil, res.Invoices)
}

func printPayments(p *printer, payments []billingapp.PaymentResponse) error {
	rows := make([][]string, 0, len(payments))
	for _, pay := range payments {
		state := ""
		if pay.Reversed {
			state = "REVERSED"
		}
		rows = append(rows, []string{pay.Number, date(pay.ReceivedOn), pay.Method, money(pay.Amount), money(pay.Unallocated), state, pay.ID.String()})
	}
	return p.table(payments, []string{"NUMBER", "RECEIVED", "METHOD", "AMOUNT", "UNALLOCATED", "STATE", "ID"}, rows)
}

// parseAllocations reads --allocate "invoice-id=amount" flag values
func parseAllocations(raw []string) ([]billingapp.AllocationInput, error) {
	out := make([]billingapp.AllocationInput, 0, len(raw))
	for _, r := range raw {
		id, amount, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("--allocate %q: want invoice-id=amount", r)
		}
		invoiceID, err := parseID("invoice", strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		d, err := parseAmount("allocate", strings.TrimSpace(amount))
		if err != nil {
			return nil, err
		}
		out = append(out, billingapp.AllocationInput{InvoiceID: invoiceID, Amount: d})
	}
	return out, nil
}

func newPaymentRecordCmd(r *runtime) *cobra.Command {
	var clientID, amount, fee string
	var allocations, invoices []string
	var req billingapp.RecordPaymentRequest
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record money received from a client",
		Long: "Record money received from a client. With --allocate the given amounts are applied exactly; " +
			"with --auto the payment settles the oldest open invoices first (only those named by --invoice, when given). " +
			"Without either the payment stays unallocated.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.ClientID, err = parseID("client", clientID); err != nil {
				return err
			}
			if req.Amount, err = parseAmount("amount", amount); err != nil {
				return err
			}
			if req.TransactionFee, err = parseAmount("fee", fee); err != nil {
				return err
			}
			if req.Allocations, err = parseAllocations(allocations); err != nil {
				return err
			}
			if req.InvoiceIDs, err = parseIDs("invoice", invoices); err != nil {
				return err
			}
			if len(req.Allocations) > 0 && req.AutoAllocate {
				return fmt.Errorf("--allocate and --auto cannot be combined")
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				res, err := app.Payments.Record(ctx, req)
				if err != nil {
					return err
				}
				return printPaymentResult(r.printer(cmd), res)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Paying client ID (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount received (required)")
	cmd.Flags().StringVar(&req.Method, "method", "BANK_TRANSFER", "CASH, BANK_TRANSFER, CHEQUE, UPI, CARD or OTHER")
	cmd.Flags().StringVar(&req.ReceivedOn, "received-on", "", "Date received, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&req.Reference, "reference", "", "Bank or cheque reference")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Free text notes")
	cmd.Flags().StringVar(&fee, "fee", "", "Transaction fee withheld by the processor")
	cmd.Flags().StringArrayVar(&allocations, "allocate", nil, `Allocation "invoice-id=amount", repeatable`)
	cmd.Flags().BoolVar(&req.AutoAllocate, "auto", false, "Allocate to the oldest open invoices first")
	cmd.Flags().StringSliceVar(&invoices, "invoice", nil, "Limit --auto to these invoice IDs")
	cmd.Flags().StringVar(&req.IdempotencyKey, "idempotency-key", "", "Key that makes retries of this command safe")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newPaymentAllocateCmd(r *runtime) *cobra.Command {
	var allocations, invoices []string
	cmd := &cobra.Command{
		Use:   "allocate <payment-id>",
		Short: "Allocate what is left of a payment",
		Long:  "Allocate the unallocated remainder of a payment. Without --allocate it settles the oldest open invoices first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("payment", args[0])
			if err != nil {
				return err
			}
			var req billingapp.AllocatePaymentRequest
			if req.Allocations, err = parseAllocations(allocations); err != nil {
				return err
			}
			if req.InvoiceIDs, err = parseIDs("invoice", invoices); err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				res, err := app.Payments.AllocateRemainder(ctx, id, req)
				if err != nil {
					return err
				}
				return printPaymentResult(r.printer(cmd), res)
			})
		},
	}
	cmd.Flags().StringArrayVar(&allocations, "allocate", nil, `Allocation "invoice-id=amount", repeatable`)
	cmd.Flags().StringSliceVar(&invoices, "invoice", nil, "Limit automatic allocation to these invoice IDs")
	return cmd
}

func newPaymentReverseCmd(r *runtime) *cobra.Command {
	var req billingapp.ReversePaymentRequest
	cmd := &cobra.Command{
		Use:   "reverse <payment-id>",
		Short: "Reverse a payment and release its allocations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("payment", args[0])
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				res, err := app.Payments.Reverse(ctx, id, req)
				if err != nil {
					return err
				}
				return printPaymentResult(r.printer(cmd), res)
			})
		},
	}
	cmd.Flags().StringVar(&req.Reason, "reason", "", "Why the payment is reversed (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newPaymentShowCmd(r *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <payment-id>",
		Short: "Show a payment and its allocations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("payment", args[0])
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				pay, err := app.Payments.Get(ctx, id)
				if err != nil {
					return err
				}
				return printPayment(r.printer(cmd), pay)
			})
		},
	}
}

func paymentFilterFlags(cmd *cobra.Command, filter *billingapp.PaymentListFilter, clientID *string) {
	cmd.Flags().StringVar(clientID, "client", "", "Only payments of this client")
	cmd.Flags().StringVar(&filter.From, "from", "", "Received on or after, YYYY-MM-DD")
	cmd.Flags().StringVar(&filter.To, "to", "", "Received on or before, YYYY-MM-DD")
}

func newPaymentListCmd(r *runtime) *cobra.Command {
	var clientID, invoice string
	var filter billingapp.PaymentListFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List payments by received date, or those paying one invoice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if filter.ClientID, err = optionalID("client", clientID); err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				var payments []billingapp.PaymentResponse
				if invoice != "" {
					inv, err := invoiceRef(ctx, app, invoice)
					if err != nil {
						return err
					}
					payments, err = app.Payments.ListByInvoice(ctx, inv.InvoiceID)
					if err != nil {
						return err
					}
				} else if payments, err = app.Payments.ListByDateRange(ctx, filter); err != nil {
					return err
				}
				return printPayments(r.printer(cmd), payments)
			})
		},
	}
	paymentFilterFlags(cmd, &filter, &clientID)
	cmd.Flags().StringVar(&invoice, "invoice", "", "Only payments allocated to this invoice (ID or number)")
	return cmd
}

func newPaymentSummaryCmd(r *runtime) *cobra.Command {
	var clientID string
	var filter billingapp.PaymentListFilter
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Total payments received in a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if filter.ClientID, err = optionalID("client", clientID); err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				s, err := app.Payments.Summary(ctx, filter)
				if err != nil {
					return err
				}
				p := r.printer(cmd)
				if p.json {
					return p.value(s)
				}
				if err := p.fields(nil,
					"Period", date(s.From)+" to "+date(s.To),
					"Payments", count(s.Count),
					"Received", money(s.Received),
					"Fees", money(s.Fees),
					"Net", money(s.Net),
					"Allocated", money(s.Allocated),
					"Reversed", count(s.Reversed),
				); err != nil || len(s.ByMethod) == 0 {
					return err
				}
				methods := make([]string, 0, len(s.ByMethod))
				for m := range s.ByMethod {
					methods = append(methods, m)
				}
				sort.Strings(methods)
				rows := make([][]string, 0, len(methods))
				for _, m := range methods {
					rows = append(rows, []string{m, money(s.ByMethod[m])})
				}
				p.line("")
				return p.table(nil, []string{"METHOD", "RECEIVED"}, rows)
			})
		},
	}
	paymentFilterFlags(cmd, &filter, &clientID)
	return cmd
}
