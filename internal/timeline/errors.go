package timeline

import (
	"errors"
	"fmt"
)

// Validation codes surfaced to the editor as transient notices.
const (
	CodeNoSelection     = "NO_SELECTION"
	CodeSplitOutOfRange = "SPLIT_OUT_OF_RANGE"
	CodeInvalidElement  = "INVALID_ELEMENT"
	CodeInvalidValue    = "INVALID_VALUE"
)

// ErrNoSelection is matched by any validation failure caused by a missing or
// stale selection.
var ErrNoSelection = errors.New("no element selected")

// ValidationError reports an edit that was rejected without mutating state.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrNoSelection) match selection failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrNoSelection && e.Code == CodeNoSelection
}

func validationf(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a rejected edit.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
