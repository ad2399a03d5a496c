package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind sentinels. Callers branch with errors.Is(err, service.ErrNotFound);
// the handler layer maps each kind to an HTTP status.
var (
	ErrValidation          = errors.New("validation")
	ErrNotFound            = errors.New("not_found")
	ErrInsufficientStock   = errors.New("insufficient_stock")
	ErrInsufficientPayment = errors.New("insufficient_payment")
	ErrSessionAlreadyOpen  = errors.New("session_already_open")
	ErrSessionNotOpen      = errors.New("session_not_open")
	ErrAlreadyCancelled    = errors.New("already_cancelled")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnavailable         = errors.New("unavailable")
)

// DomainError pairs a kind with the message shown to the cashier.
type DomainError struct {
	Kind    error
	Message string
	cause   error
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Is(target error) bool { return e.Kind == target }

func (e *DomainError) Unwrap() error { return e.cause }

func newError(kind error, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}

func notFound(format string, args ...interface{}) error {
	return newError(ErrNotFound, format, args...)
}

// unavailable wraps a storage or connectivity failure. The cause is kept for
// logging but never shown to the client.
func unavailable(cause error) error {
	return &DomainError{Kind: ErrUnavailable, Message: "Servicio no disponible, intente nuevamente", cause: cause}
}

// KindOf returns the sentinel kind of err, or nil when err carries none.
func KindOf(err error) error {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return nil
}

// storageErr converts a repository error. Domain errors raised inside a
// transaction pass through untouched; record-not-found becomes notFoundErr
// when one is given; everything else is Unavailable.
func storageErr(err error, notFoundErr error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	if notFoundErr != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return unavailable(err)
}
