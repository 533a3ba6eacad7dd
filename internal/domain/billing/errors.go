package billing

import (
	"fmt"

	"github.com/freelance/backend/internal/domain/shared"
)

// Error codes raised by the reconciliation core
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeOverAllocation     = "OVER_ALLOCATION"
	CodeVoidInvoice        = "VOID_INVOICE"
	CodeZeroAmount         = "ZERO_AMOUNT"
	CodeInvariantViolation = "INVARIANT_VIOLATION"
)

// Sentinels for errors.Is checks. Errors returned by this package carry a
// specific message but compare equal to these by code.
var (
	ErrValidation         = shared.NewDomainError(CodeValidation, "Validation failed")
	ErrOverAllocation     = shared.NewDomainError(CodeOverAllocation, "Allocation exceeds available amount")
	ErrVoidInvoice        = shared.NewDomainError(CodeVoidInvoice, "Invoice is void")
	ErrZeroAmount         = shared.NewDomainError(CodeZeroAmount, "Amount must be greater than zero")
	ErrInvariantViolation = shared.NewDomainError(CodeInvariantViolation, "Ledger invariant violated")
)

func validationError(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

func overAllocationError(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(CodeOverAllocation, fmt.Sprintf(format, args...))
}

func invariantViolation(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(CodeInvariantViolation, fmt.Sprintf(format, args...))
}

func invalidState(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf(format, args...))
}
