package billing

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/freelance/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationRequest asks for amount of a payment to go to one invoice
type AllocationRequest struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
}

// Ledger is the full scope the allocator validates against: the target
// invoices and every payment that allocates to them.
type Ledger struct {
	Invoices []Invoice
	Payments []Payment
}

// AllocationResult is the outcome of a committed allocation
type AllocationResult struct {
	Payment        *Payment        // copy of the input payment with the new allocations appended
	Allocations    []Allocation    // only the allocations added by this call
	TotalAllocated decimal.Decimal // sum of Allocations
	Unallocated    decimal.Decimal // payment remainder after this call
	Invoices       []InvoiceView   // recomputed views of every targeted invoice, in request order
}

// Allocate applies the requests to the payment all-or-nothing. Every
// request is validated against a snapshot of the ledger before anything is
// committed; on error the input payment is untouched and the result is nil.
func Allocate(payment *Payment, requests []AllocationRequest, ledger Ledger, asOf time.Time) (*AllocationResult, error) {
	if err := checkPayment(payment); err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, validationError("no allocation requests supplied")
	}

	requested := decimal.Zero
	for _, req := range requests {
		if req.Amount.IsNegative() {
			return nil, validationError("allocation amount for invoice %s cannot be negative", req.InvoiceID)
		}
		if req.Amount.IsZero() {
			return nil, shared.NewDomainError(CodeZeroAmount,
				fmt.Sprintf("allocation amount for invoice %s must be greater than zero", req.InvoiceID))
		}
		requested = requested.Add(req.Amount)
	}
	if unallocated := payment.Unallocated(); requested.GreaterThan(unallocated) {
		return nil, overAllocationError("requested %s exceeds unallocated payment amount %s",
			requested.StringFixed(2), unallocated.StringFixed(2))
	}

	snap, err := newSnapshot(payment, ledger, asOf)
	if err != nil {
		return nil, err
	}

	pending := make(map[uuid.UUID]decimal.Decimal, len(requests))
	for _, req := range requests {
		view, err := snap.target(req.InvoiceID)
		if err != nil {
			return nil, err
		}
		already := pending[req.InvoiceID]
		if req.Amount.Add(already).GreaterThan(view.Balance) {
			return nil, overAllocationError("allocation of %s to invoice %s exceeds its balance %s",
				req.Amount.StringFixed(2), view.Number, view.Balance.Sub(already).StringFixed(2))
		}
		pending[req.InvoiceID] = already.Add(req.Amount)
	}

	return commit(payment, requests, ledger, asOf)
}

// AllocateOldestFirst pays down outstanding invoices by ascending due date,
// then ascending invoice ID, until the payment or the balances run out.
// With no invoiceIDs every outstanding invoice of the payment's client in
// the ledger is a candidate; explicit IDs are validated like Allocate
// targets. A payment with nothing left to allocate, or a scope with nothing
// outstanding, yields an empty result rather than an error.
func AllocateOldestFirst(payment *Payment, invoiceIDs []uuid.UUID, ledger Ledger, asOf time.Time) (*AllocationResult, error) {
	if err := checkPayment(payment); err != nil {
		return nil, err
	}

	snap, err := newSnapshot(payment, ledger, asOf)
	if err != nil {
		return nil, err
	}

	var candidates []InvoiceView
	if len(invoiceIDs) > 0 {
		seen := make(map[uuid.UUID]bool, len(invoiceIDs))
		for _, id := range invoiceIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			view, err := snap.target(id)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, view)
		}
	} else {
		for _, view := range snap.views {
			if view.ClientID == payment.ClientID && view.Status.AcceptsPayment() && view.Balance.IsPositive() {
				candidates = append(candidates, view)
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return dueBefore(candidates[i], candidates[j])
	})

	remaining := payment.Unallocated()
	requests := make([]AllocationRequest, 0, len(candidates))
	for _, view := range candidates {
		if !remaining.IsPositive() {
			break
		}
		if !view.Balance.IsPositive() {
			continue
		}
		amount := decimal.Min(remaining, view.Balance)
		requests = append(requests, AllocationRequest{InvoiceID: view.InvoiceID, Amount: amount})
		remaining = remaining.Sub(amount)
	}

	if len(requests) == 0 {
		return &AllocationResult{
			Payment:        payment.clone(),
			Allocations:    []Allocation{},
			TotalAllocated: decimal.Zero,
			Unallocated:    payment.Unallocated(),
			Invoices:       []InvoiceView{},
		}, nil
	}
	return commit(payment, requests, ledger, asOf)
}

func checkPayment(payment *Payment) error {
	if payment == nil {
		return validationError("payment is required")
	}
	if !payment.Amount.IsPositive() {
		return shared.NewDomainError(CodeZeroAmount,
			fmt.Sprintf("payment %s amount must be greater than zero", payment.Number))
	}
	if payment.IsReversed() {
		return invalidState("payment %s is reversed and cannot be allocated", payment.Number)
	}
	if payment.AllocatedTotal().GreaterThan(payment.Amount) {
		return invariantViolation("payment %s allocates %s of %s", payment.Number,
			payment.AllocatedTotal().StringFixed(2), payment.Amount.StringFixed(2))
	}
	return nil
}

// snapshot holds invoice views computed before any change is applied
type snapshot struct {
	clientID uuid.UUID
	views    []InvoiceView
	byID     map[uuid.UUID]InvoiceView
}

func newSnapshot(payment *Payment, ledger Ledger, asOf time.Time) (*snapshot, error) {
	payments := ledgerPayments(payment, ledger.Payments)
	views, err := ComputeInvoices(ledger.Invoices, payments, asOf)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]InvoiceView, len(views))
	for _, v := range views {
		byID[v.InvoiceID] = v
	}
	return &snapshot{clientID: payment.ClientID, views: views, byID: byID}, nil
}

// target returns the view of an invoice that may receive an allocation
func (s *snapshot) target(id uuid.UUID) (InvoiceView, error) {
	view, ok := s.byID[id]
	if !ok {
		return InvoiceView{}, validationError("invoice %s is not in the allocation scope", id)
	}
	if view.ClientID != s.clientID {
		return InvoiceView{}, validationError("invoice %s belongs to a different client", view.Number)
	}
	switch view.Status {
	case InvoiceStatusVoid:
		return InvoiceView{}, shared.NewDomainError(CodeVoidInvoice,
			fmt.Sprintf("invoice %s is void and cannot receive payments", view.Number))
	case InvoiceStatusDraft:
		return InvoiceView{}, validationError("invoice %s has not been issued", view.Number)
	}
	return view, nil
}

// ledgerPayments replaces the ledger's copy of payment with the caller's
// version so its existing allocations are counted exactly once.
func ledgerPayments(payment *Payment, payments []Payment) []Payment {
	out := make([]Payment, 0, len(payments)+1)
	for _, p := range payments {
		if p.ID != payment.ID {
			out = append(out, p)
		}
	}
	return append(out, *payment)
}

func commit(payment *Payment, requests []AllocationRequest, ledger Ledger, asOf time.Time) (*AllocationResult, error) {
	next := payment.clone()
	added := make([]Allocation, 0, len(requests))
	total := decimal.Zero
	for _, req := range requests {
		a := Allocation{
			ID:          uuid.New(),
			PaymentID:   next.ID,
			InvoiceID:   req.InvoiceID,
			Amount:      req.Amount,
			AllocatedAt: asOf,
		}
		added = append(added, a)
		total = total.Add(a.Amount)
	}
	next.Allocations = append(next.Allocations, added...)
	next.AddDomainEvent(NewPaymentAllocatedEvent(next, added))

	// Recompute targets against the committed payment; any failure here
	// means validation missed a case.
	payments := ledgerPayments(next, ledger.Payments)
	targets := make([]InvoiceView, 0, len(requests))
	seen := make(map[uuid.UUID]bool, len(requests))
	for _, req := range requests {
		if seen[req.InvoiceID] {
			continue
		}
		seen[req.InvoiceID] = true
		for i := range ledger.Invoices {
			if ledger.Invoices[i].ID != req.InvoiceID {
				continue
			}
			view, err := ComputeInvoice(&ledger.Invoices[i], payments, asOf)
			if err != nil {
				return nil, err
			}
			targets = append(targets, *view)
		}
	}

	return &AllocationResult{
		Payment:        next,
		Allocations:    added,
		TotalAllocated: total,
		Unallocated:    next.Unallocated(),
		Invoices:       targets,
	}, nil
}

// dueBefore orders invoices by due day, then number, then ID
func dueBefore(a, b InvoiceView) bool {
	da, db := dateOf(a.DueDate), dateOf(b.DueDate)
	if !da.Equal(db) {
		return da.Before(db)
	}
	if a.Number != b.Number {
		return a.Number < b.Number
	}
	return bytes.Compare(a.InvoiceID[:], b.InvoiceID[:]) < 0
}
