// Package billing provides the domain model for tracking freelance work
// from billable hours to collected payments.
//
// Key Aggregates:
//   - Client: the party being billed
//   - Project: billable work for one client, priced by hourly rate or fixed fee
//   - Invoice: a frozen snapshot of a project's line items with a due date
//   - Payment: money received, split across invoices by append-only allocations
//
// Invoice status is never stored. ComputeInvoice derives total, balance and
// status from the line item snapshot and the payment ledger on every read.
// The Allocate functions validate a whole allocation request against a
// snapshot before committing it to a copy of the payment, and Aggregate
// summarises invoices into reports grouped by client and project.
package billing
