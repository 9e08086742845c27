package errors

import stderrors "errors"

// Kind is the stable, machine-readable name of a business rule rejection.
type Kind string

const (
	KindInvalidTransition   Kind = "INVALID_TRANSITION"
	KindIncompleteDelivery  Kind = "INCOMPLETE_DELIVERY"
	KindCancellationBlocked Kind = "CANCELLATION_BLOCKED"
	KindAdjustmentLocked    Kind = "ADJUSTMENT_LOCKED"
	KindAdjustmentNotFound  Kind = "ADJUSTMENT_NOT_FOUND"
	KindOverDelivery        Kind = "OVER_DELIVERY"
	KindRevertBlockedByLock Kind = "REVERT_BLOCKED_BY_LOCK"
)

// DomainError is returned when an operation would break an order invariant.
// The order is left untouched whenever one is returned.
type DomainError struct {
	Kind    Kind
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(kind Kind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

func IsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasKind reports whether err is a DomainError of the given kind.
func HasKind(err error, kind Kind) bool {
	de, ok := IsDomainError(err)
	return ok && de.Kind == kind
}
