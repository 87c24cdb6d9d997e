package model

import "errors"

var (
	// ErrNotFound covers both a missing entity and one the caller may not
	// see; the two are deliberately indistinguishable to clients.
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrValidation       = errors.New("validation failed")
)

// OpError pairs one of the sentinel kinds with a message safe to show to
// the client.
type OpError struct {
	Kind error
	Msg  string
}

func (e *OpError) Error() string { return e.Msg }
func (e *OpError) Unwrap() error { return e.Kind }

func NotFound(msg string) error { return &OpError{Kind: ErrNotFound, Msg: msg} }

func InvalidOperation(msg string) error { return &OpError{Kind: ErrInvalidOperation, Msg: msg} }

func Validation(msg string) error { return &OpError{Kind: ErrValidation, Msg: msg} }
