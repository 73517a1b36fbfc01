package mail

import (
	"context"
	"errors"
)

// Error kinds. Match them with errors.Is.
var (
	ErrSystem     = errors.New("system error")
	ErrUserCancel = errors.New("cancelled by user")
	ErrInvalidUID = errors.New("invalid message uid")
	ErrUIDExists  = errors.New("message uid already used")
)

// Error is a failed folder operation.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// SystemError wraps an I/O failure of op.
func SystemError(op string, err error) error {
	return &Error{Kind: ErrSystem, Op: op, Err: err}
}

// InvalidUID reports a uid the folder does not hold.
func InvalidUID(op, uid string) error {
	return &Error{Kind: ErrInvalidUID, Op: op, Err: errors.New(uid)}
}

// IOError classifies err from an interruptible operation: cancellation of
// ctx is a user cancel, anything else a system error.
func IOError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &Error{Kind: ErrUserCancel, Op: op, Err: err}
	}
	return SystemError(op, err)
}
