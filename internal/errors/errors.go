package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Buddy error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"     // 404
	ErrEvictionDeclined  ErrorCode = "EVICTION_DECLINED"  // 409
	ErrItemTooLarge      ErrorCode = "ITEM_TOO_LARGE"     // 413
	ErrCancelled         ErrorCode = "CANCELLED"          // 499
	ErrInternal          ErrorCode = "INTERNAL"           // 500
	ErrPackerFailed      ErrorCode = "PACKER_FAILED"      // 502
	ErrPackerUnavailable ErrorCode = "PACKER_UNAVAILABLE" // 503
	ErrCapacityExceeded  ErrorCode = "CAPACITY_EXCEEDED"  // 507
)

// BuddyError represents a structured error with code, status, and details.
type BuddyError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *BuddyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *BuddyError {
	return &BuddyError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a context item cannot be found.
func NewNotFound(id string) *BuddyError {
	return &BuddyError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("context item not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing file on disk.
func NewFileNotFound(path string) *BuddyError {
	return &BuddyError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewEvictionDeclined creates a 409 error when the caller refused to evict
// older items to make room.
func NewEvictionDeclined(incoming, victims int) *BuddyError {
	return &BuddyError{
		Code:    ErrEvictionDeclined,
		Status:  409,
		Message: fmt.Sprintf("eviction of %d oldest item(s) declined; nothing was added", victims),
		Details: map[string]any{"incoming_tokens": incoming, "victims": victims},
	}
}

// NewItemTooLarge creates a 413 error when a single item cannot fit even in
// an empty collection.
func NewItemTooLarge(size, capacity int) *BuddyError {
	return &BuddyError{
		Code:    ErrItemTooLarge,
		Status:  413,
		Message: fmt.Sprintf("item needs %d tokens but capacity is %d", size, capacity),
		Details: map[string]any{"size": size, "capacity": capacity},
	}
}

// NewCapacityExceeded creates a 507 error when an operation would exceed
// capacity and eviction could not be confirmed.
func NewCapacityExceeded(total, incoming, capacity int) *BuddyError {
	return &BuddyError{
		Code:    ErrCapacityExceeded,
		Status:  507,
		Message: fmt.Sprintf("capacity exceeded: %d + %d tokens > %d and eviction was not confirmed", total, incoming, capacity),
		Details: map[string]any{"total": total, "incoming": incoming, "capacity": capacity},
	}
}

// NewCancelled creates a 499 error for operations interrupted by context cancellation.
func NewCancelled(op string) *BuddyError {
	return &BuddyError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewPackerUnavailable creates a 503 error when the packer binary cannot be run.
func NewPackerUnavailable(command string) *BuddyError {
	return &BuddyError{
		Code:    ErrPackerUnavailable,
		Status:  503,
		Message: fmt.Sprintf("packer %q is not installed or not on PATH (try: npm install -g repomix)", command),
		Details: map[string]any{"command": command},
	}
}

// NewPackerFailed creates a 502 error when the packer ran but did not produce output.
func NewPackerFailed(msg string) *BuddyError {
	return &BuddyError{
		Code:    ErrPackerFailed,
		Status:  502,
		Message: fmt.Sprintf("packer failed: %s", msg),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *BuddyError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &BuddyError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a BuddyError with the given code.
func Is(err error, code ErrorCode) bool {
	var bErr *BuddyError
	if stderrors.As(err, &bErr) {
		return bErr.Code == code
	}
	return false
}

// As extracts a BuddyError from err, wrapping unknown errors as INTERNAL.
func As(err error) *BuddyError {
	var bErr *BuddyError
	if stderrors.As(err, &bErr) {
		return bErr
	}
	return NewInternal(err)
}
