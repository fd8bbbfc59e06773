// Package zerrors defines the error taxonomy shared by every CORE
// component (event store, command engine, projection engine, query
// façade). Every error that crosses a component boundary is a *ZError:
// a typed kind, a stable error id for log correlation, an i18n message
// key, and optional structured fields.
package zerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a ZError the way spec.md §7 enumerates them.
type Kind int

const (
	KindUnspecified Kind = iota
	KindValidation
	KindPreconditionFailed
	KindConcurrencyConflict
	KindUniqueConstraintViolation
	KindNotFound
	KindTransientStorage
	KindHandlerFailure
	KindFatal
	KindInternal
	KindAlreadyExists
	KindPermissionDenied
	KindUnauthenticated
	KindCanceled
	KindDeadlineExceeded
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindPreconditionFailed:
		return "PreconditionFailed"
	case KindConcurrencyConflict:
		return "ConcurrencyConflict"
	case KindUniqueConstraintViolation:
		return "UniqueConstraintViolation"
	case KindNotFound:
		return "NotFound"
	case KindTransientStorage:
		return "TransientStorage"
	case KindHandlerFailure:
		return "HandlerFailure"
	case KindFatal:
		return "Fatal"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindCanceled:
		return "Canceled"
	case KindDeadlineExceeded:
		return "DeadlineExceeded"
	case KindInternal:
		return "Internal"
	default:
		return "Unspecified"
	}
}

// ZError is the concrete error type propagated across every CORE
// boundary. ID is a short, grep-able code such as "EVENT-Df2fw" in the
// style the teacher uses; Message is an i18n key such as
// "Errors.Org.NotFound" resolved by the caller's translator.
type ZError struct {
	Parent  error
	ID      string
	Message string
	Kind    Kind
	Fields  map[string]any
}

func (e *ZError) Error() string {
	if e.Parent != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.ID, e.Message, e.Kind, e.Parent)
	}
	return fmt.Sprintf("%s: %s (%s)", e.ID, e.Message, e.Kind)
}

func (e *ZError) Unwrap() error { return e.Parent }

// Is allows errors.Is(err, zerrors.ThrowNotFound(nil, "", "")) style
// comparisons by Kind, matching the teacher's CaosError sentinel
// comparisons.
func (e *ZError) Is(target error) bool {
	var t *ZError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// WithField returns e with an additional structured field, used by
// callers that want to attach the command_id or aggregate identity
// before logging.
func (e *ZError) WithField(key string, value any) *ZError {
	cp := *e
	cp.Fields = make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		cp.Fields[k] = v
	}
	cp.Fields[key] = value
	return &cp
}

func throw(parent error, id, message string, kind Kind) *ZError {
	return &ZError{Parent: parent, ID: id, Message: message, Kind: kind}
}

func ThrowValidation(parent error, id, message string) error {
	return throw(parent, id, message, KindValidation)
}

func ThrowPreconditionFailed(parent error, id, message string) error {
	return throw(parent, id, message, KindPreconditionFailed)
}

func ThrowConcurrencyConflict(parent error, id, message string) error {
	return throw(parent, id, message, KindConcurrencyConflict)
}

func ThrowUniqueConstraintViolation(parent error, id, message string) error {
	return throw(parent, id, message, KindUniqueConstraintViolation)
}

func ThrowNotFound(parent error, id, message string) error {
	return throw(parent, id, message, KindNotFound)
}

func ThrowTransientStorage(parent error, id, message string) error {
	return throw(parent, id, message, KindTransientStorage)
}

func ThrowHandlerFailure(parent error, id, message string) error {
	return throw(parent, id, message, KindHandlerFailure)
}

func ThrowFatal(parent error, id, message string) error {
	return throw(parent, id, message, KindFatal)
}

func ThrowInternal(parent error, id, message string) error {
	return throw(parent, id, message, KindInternal)
}

func ThrowInvalidArgument(parent error, id, message string) error {
	return throw(parent, id, message, KindValidation)
}

func ThrowAlreadyExists(parent error, id, message string) error {
	return throw(parent, id, message, KindAlreadyExists)
}

func ThrowPermissionDenied(parent error, id, message string) error {
	return throw(parent, id, message, KindPermissionDenied)
}

func ThrowDeadlineExceeded(parent error, id, message string) error {
	return throw(parent, id, message, KindDeadlineExceeded)
}

// IsKind reports whether err (or any error it wraps) carries the given
// Kind. Command/projection callers use this instead of type-switching.
func IsKind(err error, kind Kind) bool {
	var z *ZError
	if !errors.As(err, &z) {
		return false
	}
	return z.Kind == kind
}

func IsNotFound(err error) bool             { return IsKind(err, KindNotFound) }
func IsConcurrencyConflict(err error) bool  { return IsKind(err, KindConcurrencyConflict) }
func IsUniqueConstraint(err error) bool     { return IsKind(err, KindUniqueConstraintViolation) }
func IsPreconditionFailed(err error) bool   { return IsKind(err, KindPreconditionFailed) }
func IsTransientStorage(err error) bool     { return IsKind(err, KindTransientStorage) }
