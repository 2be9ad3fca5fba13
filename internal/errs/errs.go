// Package errs provides the structured error type used throughout yourdb,
// modeled on the teacher's internal/errors package: every error carries a
// category, a code, a human message, and an optional wrapped cause. The
// taxonomy itself is spec.md §7's.
package errs

import (
	"errors"
	"fmt"
)

// Category classifies an error by the layer that raised it.
type Category string

const (
	CategoryValidation  Category = "VALIDATION"
	CategoryConflict    Category = "CONFLICT"
	CategoryCatalog     Category = "CATALOG"
	CategorySchema      Category = "SCHEMA"
	CategoryIO          Category = "IO"
	CategoryCorruption  Category = "CORRUPTION"
	CategoryInternal    Category = "INTERNAL"
)

const (
	CodeSchemaViolation     = "SCHEMA_VIOLATION"
	CodeKindMismatch        = "KIND_MISMATCH"
	CodeDuplicatePrimaryKey = "DUPLICATE_PRIMARY_KEY"
	CodePrimaryKeyImmutable = "PRIMARY_KEY_IMMUTABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeEntityExists        = "ENTITY_EXISTS"
	CodeEntityNotFound      = "ENTITY_NOT_FOUND"
	CodeInvalidSchema       = "INVALID_SCHEMA"
	CodeUpgradeChainBroken  = "UPGRADE_CHAIN_BROKEN"
	CodeIOError             = "IO_ERROR"
	CodeCorruptFrame        = "CORRUPT_FRAME"
	CodeClosed              = "CLOSED"
	CodeUnexpected          = "UNEXPECTED"
)

// Error is the structured error type returned by every yourdb package.
type Error struct {
	Category Category
	Code     string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on category and code, ignoring message and cause, so callers
// can test for a kind of failure with errors.Is(err, errs.New(category, code, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates an Error with no wrapped cause.
func New(category Category, code, message string) *Error {
	return &Error{Category: category, Code: code, Message: message}
}

// Wrap creates an Error wrapping an existing cause.
func Wrap(category Category, code, message string, cause error) *Error {
	return &Error{Category: category, Code: code, Message: message, Cause: cause}
}

// Fatal reports whether an error (per spec.md §7) is fatal to the operation
// or entity, as opposed to a recoverable validation/conflict failure.
func Fatal(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Category {
	case CategoryIO, CategoryCorruption:
		return true
	default:
		return false
	}
}

// GetCategory extracts the category from an error chain, or "" if err is not
// (and does not wrap) an *Error.
func GetCategory(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// GetCode extracts the code from an error chain, or "" if err is not (and does
// not wrap) an *Error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Convenience constructors for the spec.md §7 error kinds.

func SchemaViolation(message string) *Error {
	return New(CategoryValidation, CodeSchemaViolation, message)
}

func KindMismatch(message string) *Error {
	return New(CategoryValidation, CodeKindMismatch, message)
}

func DuplicatePrimaryKey(pk string) *Error {
	return New(CategoryConflict, CodeDuplicatePrimaryKey, fmt.Sprintf("primary key %q already exists", pk))
}

func PrimaryKeyImmutable(pk string) *Error {
	return New(CategoryConflict, CodePrimaryKeyImmutable, fmt.Sprintf("transform changed primary key %q", pk))
}

func NotFound(pk string) *Error {
	return New(CategoryConflict, CodeNotFound, fmt.Sprintf("primary key %q not found", pk))
}

func EntityExists(name string) *Error {
	return New(CategoryCatalog, CodeEntityExists, fmt.Sprintf("entity %q already exists", name))
}

func EntityNotFound(name string) *Error {
	return New(CategoryCatalog, CodeEntityNotFound, fmt.Sprintf("entity %q not found", name))
}

func InvalidSchema(message string) *Error {
	return New(CategoryCatalog, CodeInvalidSchema, message)
}

func UpgradeChainBroken(fromVersion int) *Error {
	return New(CategorySchema, CodeUpgradeChainBroken, fmt.Sprintf("no upgrade registered from version %d", fromVersion))
}

func IOError(message string, cause error) *Error {
	return Wrap(CategoryIO, CodeIOError, message, cause)
}

func CorruptFrame(message string, cause error) *Error {
	return Wrap(CategoryCorruption, CodeCorruptFrame, message, cause)
}

func Closed(what string) *Error {
	return New(CategoryInternal, CodeClosed, fmt.Sprintf("%s is closed", what))
}
