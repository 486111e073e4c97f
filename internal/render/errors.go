package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a render failure.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindDeployment  ErrorKind = "deployment"
	KindFatalRender ErrorKind = "fatal_render"
	KindTransient   ErrorKind = "transient"
	KindCanceled    ErrorKind = "canceled"
)

var (
	// ErrRenderInProgress is returned when a project already has an active run.
	ErrRenderInProgress = errors.New("render already in progress for project")
	// ErrCanceled marks a run stopped by its owner.
	ErrCanceled = errors.New("render canceled")
	// ErrTimedOut marks a run that outlived its context deadline.
	ErrTimedOut = errors.New("render timed out")
)

// Error is a classified render failure. Messages holds every error the
// backend reported, verbatim.
type Error struct {
	Kind     ErrorKind
	Op       string
	Messages []string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op string, err error, messages ...string) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Messages: messages}
}

// interrupted classifies a failure caused by ctx ending. Only an explicit
// cancel is KindCanceled; a passed deadline is a fatal timeout.
func interrupted(ctx context.Context, op string) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindFatalRender, op, ErrTimedOut, ErrTimedOut.Error())
	}
	return newError(KindCanceled, op, ErrCanceled)
}

// KindOf returns the classification of err, or "" if it is not a render error.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, ErrCanceled) {
		return KindCanceled
	}
	return ""
}

// IsCanceled reports whether err is a cancellation rather than a failure.
func IsCanceled(err error) bool {
	return KindOf(err) == KindCanceled
}

// Retryable reports whether a queue may retry the job that produced err.
// Deployment and fatal render failures are surfaced, never retried.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient:
		return true
	default:
		return false
	}
}

func wrapf(kind ErrorKind, err error, format string, args ...any) *Error {
	return newError(kind, fmt.Sprintf(format, args...), err)
}
