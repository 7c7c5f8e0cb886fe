package ops

import (
	"errors"
	"fmt"
)

// ContractError reports an operation the system does not know how to
// handle, such as an unknown kind tag. It indicates a defect, not a
// recoverable runtime condition.
type ContractError struct {
	Kind    string
	Message string
}

func (e *ContractError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("contract error: %s (kind=%q)", e.Message, e.Kind)
	}
	return fmt.Sprintf("contract error: %s", e.Message)
}

// NewUnknownKindError returns the ContractError for an unrecognized tag.
func NewUnknownKindError(kind string) *ContractError {
	return &ContractError{Kind: kind, Message: "unknown operation kind"}
}

// IsContractError reports whether err is or wraps a ContractError.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}
