package port

import (
	"errors"
	"fmt"
)

// ErrLeadNotFound is returned by repositories when a lead id matches no row.
var ErrLeadNotFound = errors.New("lead not found")

// ErrorKind classifies a pipeline failure for logging and response mapping.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindStorage      ErrorKind = "storage"
	KindExternal     ErrorKind = "external"
	KindUnclassified ErrorKind = "unclassified"
)

// Error attaches an ErrorKind to a lower-level failure. Components wrap
// failures at the boundary where they occur, so raw driver or HTTP errors
// never cross a layer unclassified.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf builds a validation-kind error (bad input, missing lead).
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

// Storagef builds a storage-kind error (database I/O).
func Storagef(format string, args ...any) error {
	return &Error{Kind: KindStorage, Err: fmt.Errorf(format, args...)}
}

// Externalf builds an external-kind error (embedding or generative model).
func Externalf(format string, args ...any) error {
	return &Error{Kind: KindExternal, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the classification of err, unwrapping as needed.
// Errors that carry no classification are KindUnclassified.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnclassified
}
