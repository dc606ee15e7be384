package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors for the business-rule failures this app can produce.
// Services return AppErrors wrapping one of these; handlers use errors.Is()
// to map them onto HTTP status codes without knowing the message text.
//
// The first five are generic request failures. The rest are pot-lifecycle
// rules: a pot has a capacity cap, its creator can never leave, and a user
// can hold at most one membership per pot.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("Validation Error")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrOwnerCannotLeave = errors.New("owner cannot leave")
	ErrAlreadyMember    = errors.New("already a member")
	ErrNotAMember       = errors.New("not a member")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized indicates a missing or invalid credential.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// CapacityExceeded is returned by a join attempt against a full pot.
func CapacityExceeded(potID string) *AppError {
	return &AppError{
		Err:     ErrCapacityExceeded,
		Message: fmt.Sprintf("pot %s is already at maximum headcount", potID),
	}
}

// OwnerCannotLeave is returned when a leave would drop the headcount below 1.
// The creator is always counted, so the floor is the creator's seat.
func OwnerCannotLeave(potID string) *AppError {
	return &AppError{
		Err:     ErrOwnerCannotLeave,
		Message: fmt.Sprintf("the owner cannot leave pot %s", potID),
	}
}

// AlreadyMember is returned by a duplicate join for the same (pot, user).
func AlreadyMember(potID, userID string) *AppError {
	return &AppError{
		Err:     ErrAlreadyMember,
		Message: fmt.Sprintf("user %s already joined pot %s", userID, potID),
	}
}

// NotAMember is returned by a leave without a membership row.
func NotAMember(potID, userID string) *AppError {
	return &AppError{
		Err:     ErrNotAMember,
		Message: fmt.Sprintf("user %s is not a member of pot %s", userID, potID),
	}
}
