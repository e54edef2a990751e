// Package errors provides structured error types used across the application.
// We prefer these over raw fmt.Errorf strings to enable reliable checks with
// errors.Is / errors.As and to carry minimal context about the failure.
package errors

import (
	"errors"
	"fmt"
)

// ValidationError indicates invalid input/config/state provided by a caller/user.
// Keep fields minimal; add codes when we have real classification needs.
type ValidationError struct {
	Op  string // where it happened (package.Function)
	Msg string // human friendly message (no PII)
	Err error  // underlying cause (optional)
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("validation: %s: %s", e.Op, e.Msg)
}

func (e *ValidationError) Unwrap() error           { return e.Err }
func (e *ValidationError) Operation() string       { return e.Op }
func (e *ValidationError) Message() string         { return e.Msg }
func (e *ValidationError) Context() map[string]any { return map[string]any{"op": e.Op, "msg": e.Msg} }

func NewValidation(op, msg string, err error) error {
	return &ValidationError{Op: op, Msg: msg, Err: err}
}

// NotFoundError indicates the requested entity does not exist or is not
// visible to the caller.
type NotFoundError struct {
	Op  string
	Msg string
	Err error
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("not found: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("not found: %s: %s", e.Op, e.Msg)
}

func (e *NotFoundError) Unwrap() error           { return e.Err }
func (e *NotFoundError) Operation() string       { return e.Op }
func (e *NotFoundError) Message() string         { return e.Msg }
func (e *NotFoundError) Context() map[string]any { return map[string]any{"op": e.Op, "msg": e.Msg} }

func NewNotFound(op, msg string, err error) error {
	return &NotFoundError{Op: op, Msg: msg, Err: err}
}

// UnauthorizedError indicates a role or ownership violation by the acting user.
type UnauthorizedError struct {
	Op  string
	Msg string
	Err error
}

func (e *UnauthorizedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("unauthorized: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("unauthorized: %s: %s", e.Op, e.Msg)
}

func (e *UnauthorizedError) Unwrap() error     { return e.Err }
func (e *UnauthorizedError) Operation() string { return e.Op }
func (e *UnauthorizedError) Message() string   { return e.Msg }
func (e *UnauthorizedError) Context() map[string]any {
	return map[string]any{"op": e.Op, "msg": e.Msg}
}

func NewUnauthorized(op, msg string, err error) error {
	return &UnauthorizedError{Op: op, Msg: msg, Err: err}
}

// ConflictError indicates a violated concurrency or exclusivity constraint:
// overlapping bookings, a confirm while the provider is already locked, or a
// conditional update that matched no document.
type ConflictError struct {
	Op  string
	Msg string
	Err error
}

func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("conflict: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("conflict: %s: %s", e.Op, e.Msg)
}

func (e *ConflictError) Unwrap() error           { return e.Err }
func (e *ConflictError) Operation() string       { return e.Op }
func (e *ConflictError) Message() string         { return e.Msg }
func (e *ConflictError) Context() map[string]any { return map[string]any{"op": e.Op, "msg": e.Msg} }

func NewConflict(op, msg string, err error) error {
	return &ConflictError{Op: op, Msg: msg, Err: err}
}

// UpstreamError represents failures in external services (AI review,
// embeddings, geocoding, broker). Not user-correctable; callers should
// degrade gracefully where a fallback exists.
type UpstreamError struct {
	Op     string
	Msg    string
	Err    error
	System string // optional system name e.g. "openai" / "maps" / "rabbitmq"
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "<nil>"
	}
	sys := e.System
	if sys == "" {
		sys = "upstream"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", sys, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", sys, e.Op, e.Msg)
}

func (e *UpstreamError) Unwrap() error     { return e.Err }
func (e *UpstreamError) Operation() string { return e.Op }
func (e *UpstreamError) Message() string   { return e.Msg }
func (e *UpstreamError) Context() map[string]any {
	return map[string]any{"op": e.Op, "msg": e.Msg, "system": e.System}
}

func NewUpstream(op, system, msg string, err error) error {
	return &UpstreamError{Op: op, System: system, Msg: msg, Err: err}
}

// DBError represents document-store or audit-store access failures.
type DBError struct {
	Op  string
	Msg string
	Err error
}

func (e *DBError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("db: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("db: %s: %s", e.Op, e.Msg)
}

func (e *DBError) Unwrap() error           { return e.Err }
func (e *DBError) Operation() string       { return e.Op }
func (e *DBError) Message() string         { return e.Msg }
func (e *DBError) Context() map[string]any { return map[string]any{"op": e.Op, "msg": e.Msg} }

func NewDB(op, msg string, err error) error { return &DBError{Op: op, Msg: msg, Err: err} }

// IsKind helpers: allow callers to check error kind without type assertions.
// Example: if errors.Is(err, errors.ErrConflict) { ... }
var (
	ErrValidation   = &ValidationError{}
	ErrNotFound     = &NotFoundError{}
	ErrUnauthorized = &UnauthorizedError{}
	ErrConflict     = &ConflictError{}
	ErrUpstream     = &UpstreamError{}
	ErrDB           = &DBError{}
)

// Is enables errors.Is(err, ErrConflict) via errors.As semantics.
// We delegate to errors.As with the zero-value pointer of each type.
func Is(err, target error) bool {
	if err == nil || target == nil {
		return errors.Is(err, target)
	}
	switch target.(type) {
	case *ValidationError:
		var v *ValidationError
		return errors.As(err, &v)
	case *NotFoundError:
		var n *NotFoundError
		return errors.As(err, &n)
	case *UnauthorizedError:
		var u *UnauthorizedError
		return errors.As(err, &u)
	case *ConflictError:
		var c *ConflictError
		return errors.As(err, &c)
	case *UpstreamError:
		var up *UpstreamError
		return errors.As(err, &up)
	case *DBError:
		var d *DBError
		return errors.As(err, &d)
	default:
		return errors.Is(err, target)
	}
}
