package billing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/freelance/backend/internal/infrastructure/logger"
	"github.com/freelance/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const idempotencyKeyPrefix = "payment:record:"

// PaymentService records payments and allocates them to invoices. Every
// allocating write holds the invoice locks of its targets for the whole
// load-allocate-save sequence.
type PaymentService struct {
	serviceBase
	idempotency shared.IdempotencyStore
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(repos Repositories, opts ...Option) *PaymentService {
	return &PaymentService{serviceBase: newServiceBase(repos, opts)}
}

// SetIdempotencyStore enables Idempotency-Key handling for Record
func (s *PaymentService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// Record stores a payment and applies it to invoices in one transaction.
// Either every allocation is written or none is, and the payment itself is
// only stored when its allocations validate.
func (s *PaymentService) Record(ctx context.Context, req RecordPaymentRequest) (result *PaymentResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record",
		telemetry.SpanAttrClientID, req.ClientID.String(),
		telemetry.SpanAttrAmount, req.Amount)
	defer span.End()
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		}
	}()

	now := s.clock.Now()
	method, err := billing.ParsePaymentMethod(req.Method)
	if err != nil {
		return nil, err
	}
	receivedOn, err := parseDate(req.ReceivedOn, today(now))
	if err != nil {
		return nil, err
	}
	if len(req.Allocations) > 0 && req.AutoAllocate {
		return nil, validationError("give either explicit allocations or auto_allocate, not both")
	}
	if len(req.InvoiceIDs) > 0 && !req.AutoAllocate {
		return nil, validationError("invoice_ids limit auto allocation and require auto_allocate")
	}

	if key := strings.TrimSpace(req.IdempotencyKey); key != "" && s.idempotency != nil {
		ctx = logger.WithIdempotencyKey(ctx, key)
		replayed, replayErr := s.replay(ctx, key)
		if replayErr != nil || replayed != nil {
			return replayed, replayErr
		}
		claimed, claimErr := s.idempotency.MarkProcessed(ctx, idempotencyKeyPrefix+key, s.settings.IdempotencyTTL)
		if claimErr != nil {
			return nil, fmt.Errorf("failed to claim idempotency key: %w", claimErr)
		}
		if !claimed {
			return nil, shared.NewDomainError(shared.CodeConcurrencyConflict,
				"a request with this Idempotency-Key is still being processed")
		}
		defer func() {
			if err == nil {
				s.saveIdempotentResult(ctx, key, result.Payment.ID)
				return
			}
			if releaseErr := s.idempotency.Release(ctx, idempotencyKeyPrefix+key); releaseErr != nil {
				s.log(ctx).Warn("failed to release idempotency key", zap.Error(releaseErr))
			}
		}()
	}

	if req.Reference != "" {
		existing, err := s.repos.Payments.FindByReference(ctx, strings.TrimSpace(req.Reference))
		switch {
		case err == nil:
			return nil, shared.NewDomainError(shared.CodeAlreadyExists,
				fmt.Sprintf("reference %q was already recorded as payment %s", req.Reference, existing.Number))
		case !isNotFound(err):
			return nil, fmt.Errorf("failed to check reference: %w", err)
		}
	}

	client, err := s.findClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	targets, err := s.allocationTargets(ctx, client.ID, req.Allocations, req.AutoAllocate, req.InvoiceIDs)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(targets...)
	defer unlock()

	var (
		recorded *billing.Payment
		stored   *billing.Payment
		views    = []billing.InvoiceView{}
	)
	err = s.repos.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		seq, err := s.repos.Payments.NextSequence(txCtx, s.settings.PaymentPrefix, receivedOn)
		if err != nil {
			return fmt.Errorf("failed to allocate payment number: %w", err)
		}
		recorded, err = billing.NewPayment(
			billing.FormatPaymentNumber(s.settings.PaymentPrefix, receivedOn, seq),
			client.ID, req.Amount, receivedOn, method,
			billing.WithReference(req.Reference),
			billing.WithNotes(req.Notes),
			billing.WithTransactionFee(req.TransactionFee))
		if err != nil {
			return err
		}
		stored = recorded

		if len(targets) > 0 {
			res, err := s.allocate(txCtx, recorded, targets, req.Allocations, req.InvoiceIDs, now)
			if err != nil {
				return err
			}
			stored, views = res.Payment, res.Invoices
		}
		return s.repos.Payments.Create(txCtx, stored)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, recorded, stored)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, stored.ID.String(),
		telemetry.SpanAttrPaymentNumber, stored.Number,
		telemetry.SpanAttrAllocations, len(stored.Allocations))
	telemetry.SetOK(span)
	s.log(ctx).Info("payment recorded",
		zap.String("payment_number", stored.Number),
		zap.String("client_id", client.ID.String()),
		zap.String("amount", stored.Amount.StringFixed(2)),
		zap.String("allocated", stored.AllocatedTotal().StringFixed(2)),
		zap.Int("allocations", len(stored.Allocations)))

	return &PaymentResult{Payment: ToPaymentResponse(stored), Invoices: views}, nil
}

// AllocateRemainder applies the unallocated part of a recorded payment
func (s *PaymentService) AllocateRemainder(ctx context.Context, id uuid.UUID, req AllocatePaymentRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "allocate", telemetry.SpanAttrPaymentID, id.String())
	defer span.End()

	payment, err := s.findPayment(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if len(req.Allocations) > 0 && len(req.InvoiceIDs) > 0 {
		return nil, validationError("give either explicit allocations or invoice_ids, not both")
	}
	auto := len(req.Allocations) == 0
	targets, err := s.allocationTargets(ctx, payment.ClientID, req.Allocations, auto, req.InvoiceIDs)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	unlock := s.locks.Lock(append([]uuid.UUID{id}, targets...)...)
	defer unlock()

	now := s.clock.Now()
	var result *billing.AllocationResult
	err = s.repos.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.findPayment(txCtx, id)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			result = &billing.AllocationResult{
				Payment:        current,
				Allocations:    []billing.Allocation{},
				TotalAllocated: decimal.Zero,
				Unallocated:    current.Unallocated(),
				Invoices:       []billing.InvoiceView{},
			}
			return nil
		}
		result, err = s.allocate(txCtx, current, targets, req.Allocations, req.InvoiceIDs, now)
		if err != nil {
			return err
		}
		return s.repos.Payments.AppendAllocations(txCtx, result.Allocations)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, result.Payment)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAllocations, len(result.Allocations),
		telemetry.SpanAttrAmount, result.TotalAllocated)
	telemetry.SetOK(span)
	s.log(ctx).Info("payment allocated",
		zap.String("payment_number", result.Payment.Number),
		zap.String("allocated", result.TotalAllocated.StringFixed(2)),
		zap.String("unallocated", result.Unallocated.StringFixed(2)))

	return &PaymentResult{Payment: ToPaymentResponse(result.Payment), Invoices: result.Invoices}, nil
}

// Reverse records a compensating reversal; the payment and all its
// allocations stop counting towards invoice balances.
func (s *PaymentService) Reverse(ctx context.Context, id uuid.UUID, req ReversePaymentRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "reverse", telemetry.SpanAttrPaymentID, id.String())
	defer span.End()

	unlock, err := s.lockPayment(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	now := s.clock.Now()
	var (
		payment *billing.Payment
		views   []billing.InvoiceView
	)
	err = s.repos.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		payment, err = s.findPayment(txCtx, id)
		if err != nil {
			return err
		}
		affected := allocatedInvoiceIDs(payment)
		reversal, err := payment.Reverse(req.Reason, now)
		if err != nil {
			return err
		}
		if err := s.repos.Payments.CreateReversal(txCtx, reversal); err != nil {
			return fmt.Errorf("failed to save reversal: %w", err)
		}
		invoices, err := s.repos.Invoices.FindByIDs(txCtx, affected)
		if err != nil {
			return fmt.Errorf("failed to load invoices: %w", err)
		}
		views, err = s.computeViews(txCtx, invoices, now)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, payment)
	telemetry.SetOK(span)
	s.log(ctx).Info("payment reversed",
		zap.String("payment_number", payment.Number),
		zap.String("reason", payment.Reversal.Reason),
		zap.Int("invoices_reopened", len(views)))
	return &PaymentResult{Payment: ToPaymentResponse(payment), Invoices: views}, nil
}

// lockPayment locks a payment together with every invoice it allocates
// to. An allocation added between the read and the lock means locking
// again with the new set.
func (s *PaymentService) lockPayment(ctx context.Context, id uuid.UUID) (func(), error) {
	for {
		payment, err := s.findPayment(ctx, id)
		if err != nil {
			return nil, err
		}
		affected := allocatedInvoiceIDs(payment)
		unlock := s.locks.Lock(append([]uuid.UUID{id}, affected...)...)

		current, err := s.findPayment(ctx, id)
		if err != nil {
			unlock()
			return nil, err
		}
		if containsAll(affected, allocatedInvoiceIDs(current)) {
			return unlock, nil
		}
		unlock()
	}
}

// Get retrieves a payment by ID
func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.findPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// ListByInvoice returns the payments allocating to an invoice
func (s *PaymentService) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]PaymentResponse, error) {
	if _, err := s.findInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	payments, err := s.repos.Payments.FindByInvoices(ctx, []uuid.UUID{invoiceID})
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	return toPaymentResponses(payments), nil
}

// ListByDateRange returns payments received within the inclusive range
func (s *PaymentService) ListByDateRange(ctx context.Context, filter PaymentListFilter) ([]PaymentResponse, error) {
	payments, _, _, err := s.findInRange(ctx, filter)
	if err != nil {
		return nil, err
	}
	return toPaymentResponses(payments), nil
}

// Summary totals payments received within the range, by method
func (s *PaymentService) Summary(ctx context.Context, filter PaymentListFilter) (*PaymentSummary, error) {
	payments, from, to, err := s.findInRange(ctx, filter)
	if err != nil {
		return nil, err
	}
	summary := &PaymentSummary{
		Received:  decimal.Zero,
		Fees:      decimal.Zero,
		Net:       decimal.Zero,
		Allocated: decimal.Zero,
		ByMethod:  make(map[string]decimal.Decimal),
	}
	if from != nil {
		summary.From = *from
	}
	if to != nil {
		summary.To = *to
	}
	for i := range payments {
		p := &payments[i]
		if p.IsReversed() {
			summary.Reversed++
			continue
		}
		summary.Count++
		summary.Received = summary.Received.Add(p.Amount)
		summary.Fees = summary.Fees.Add(p.TransactionFee)
		summary.Net = summary.Net.Add(p.NetAmount())
		summary.Allocated = summary.Allocated.Add(p.AllocatedTotal())
		summary.ByMethod[p.Method.String()] = summary.ByMethod[p.Method.String()].Add(p.Amount)
	}
	return summary, nil
}

func (s *PaymentService) findInRange(ctx context.Context, filter PaymentListFilter) ([]billing.Payment, *time.Time, *time.Time, error) {
	from, err := parseOptionalDate(filter.From)
	if err != nil {
		return nil, nil, nil, err
	}
	to, err := parseOptionalDate(filter.To)
	if err != nil {
		return nil, nil, nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, nil, validationError("date range ends before it starts")
	}

	f := billing.PaymentFilter{ClientID: filter.ClientID, ReceivedFrom: from}
	if to != nil {
		end := endOfDay(*to)
		f.ReceivedTo = &end
	}
	payments, err := s.repos.Payments.FindAll(ctx, f)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, from, to, nil
}

// allocationTargets resolves the invoices an allocation may touch, so they
// can be locked before the transaction reads them
func (s *PaymentService) allocationTargets(ctx context.Context, clientID uuid.UUID, explicit []AllocationInput, auto bool, invoiceIDs []uuid.UUID) ([]uuid.UUID, error) {
	switch {
	case len(explicit) > 0:
		ids := make([]uuid.UUID, len(explicit))
		for i, a := range explicit {
			ids[i] = a.InvoiceID
		}
		return ids, nil
	case !auto:
		return nil, nil
	case len(invoiceIDs) > 0:
		return invoiceIDs, nil
	}

	invoices, err := s.repos.Invoices.FindAll(ctx, billing.InvoiceFilter{ClientID: &clientID})
	if err != nil {
		return nil, fmt.Errorf("failed to load client invoices: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(invoices))
	for i := range invoices {
		if invoices[i].IsIssued() && !invoices[i].IsVoid() {
			ids = append(ids, invoices[i].ID)
		}
	}
	return ids, nil
}

// allocate loads the ledger for targets and runs the allocator. With
// explicit requests the amounts are applied as given; otherwise the
// payment pays down the oldest invoices first.
func (s *PaymentService) allocate(ctx context.Context, payment *billing.Payment, targets []uuid.UUID, explicit []AllocationInput, invoiceIDs []uuid.UUID, asOf time.Time) (*billing.AllocationResult, error) {
	invoices, err := s.repos.Invoices.FindByIDs(ctx, targets)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	if len(explicit) > 0 || len(invoiceIDs) > 0 {
		found := make(map[uuid.UUID]bool, len(invoices))
		for i := range invoices {
			found[invoices[i].ID] = true
		}
		for _, id := range targets {
			if !found[id] {
				return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("invoice %s not found", id))
			}
		}
	}
	payments, err := s.repos.Payments.FindByInvoices(ctx, targets)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	ledger := billing.Ledger{Invoices: invoices, Payments: payments}

	if len(explicit) > 0 {
		requests := make([]billing.AllocationRequest, len(explicit))
		for i, a := range explicit {
			requests[i] = billing.AllocationRequest{InvoiceID: a.InvoiceID, Amount: a.Amount}
		}
		return billing.Allocate(payment, requests, ledger, asOf)
	}
	return billing.AllocateOldestFirst(payment, invoiceIDs, ledger, asOf)
}

// replay returns the stored outcome of an earlier request with the same
// key, or nil when there is none
func (s *PaymentService) replay(ctx context.Context, key string) (*PaymentResult, error) {
	stored, ok, err := s.idempotency.Result(ctx, idempotencyKeyPrefix+key)
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if !ok {
		return nil, nil
	}
	id, err := uuid.Parse(stored)
	if err != nil {
		return nil, fmt.Errorf("corrupt idempotency result for key %q: %w", key, err)
	}
	payment, err := s.findPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	invoices, err := s.repos.Invoices.FindByIDs(ctx, allocatedInvoiceIDs(payment))
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	views, err := s.computeViews(ctx, invoices, s.clock.Now())
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("replaying payment for idempotency key", zap.String("payment_number", payment.Number))
	return &PaymentResult{Payment: ToPaymentResponse(payment), Invoices: views, Replayed: true}, nil
}

func (s *PaymentService) saveIdempotentResult(ctx context.Context, key string, paymentID uuid.UUID) {
	err := s.idempotency.SaveResult(ctx, idempotencyKeyPrefix+key, paymentID.String(), s.settings.IdempotencyTTL)
	if err != nil {
		s.log(ctx).Warn("failed to store idempotency result", zap.Error(err))
	}
}

func containsAll(set, ids []uuid.UUID) bool {
	for _, id := range ids {
		if !slices.Contains(set, id) {
			return false
		}
	}
	return true
}

func allocatedInvoiceIDs(p *billing.Payment) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(p.Allocations))
	ids := make([]uuid.UUID, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		if !seen[a.InvoiceID] {
			seen[a.InvoiceID] = true
			ids = append(ids, a.InvoiceID)
		}
	}
	return ids
}

func toPaymentResponses(payments []billing.Payment) []PaymentResponse {
	items := make([]PaymentResponse, len(payments))
	for i := range payments {
		items[i] = ToPaymentResponse(&payments[i])
	}
	return items
}
