package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/possync/internal/ops"
)

// RuntimeError is an error raised by the engine itself rather than by the
// gateway. Gateway failures never surface this way; they stay on the queued
// operation as Attempts and LastError.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// OpID and OrderID identify the affected operation, when there is one.
	OpID    string
	OrderID string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidOperation rejects an enqueue whose payload is malformed.
	ErrCodeInvalidOperation RuntimeErrorCode = "INVALID_OPERATION"

	// ErrCodeContract marks an operation the engine cannot dispatch. Fatal.
	ErrCodeContract RuntimeErrorCode = "CONTRACT_VIOLATION"

	// ErrCodeLoad means the operation log could not be read at startup.
	ErrCodeLoad RuntimeErrorCode = "LOAD_FAILED"
)

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.OpID != "" {
		msg += fmt.Sprintf(" (op=%s, order=%s)", e.OpID, e.OrderID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsInvalidOperation reports whether err rejected an enqueue.
func IsInvalidOperation(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeInvalidOperation
}

// IsFatal reports whether err must stop the engine.
func IsFatal(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeContract {
		return true
	}
	return ops.IsContractError(err)
}

func newInvalidOperation(orderID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidOperation,
		Message: "operation rejected",
		OrderID: orderID,
		Err:     err,
	}
}

func newContractError(op ops.Operation, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeContract,
		Message: "cannot dispatch operation",
		OpID:    op.ID,
		OrderID: op.OrderID,
		Err:     err,
	}
}
