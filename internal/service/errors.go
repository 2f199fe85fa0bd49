package service

import (
	"context"
	"errors"

	"github.com/splitledger/splitledger/internal/repository"
)

// Error kinds. Every error returned by a service matches one of these with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInternal        = errors.New("internal error")
)

// Error is a classified service error with a message safe to show to callers.
type Error struct {
	Kind    error
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Service errors.
var (
	ErrGroupNotFound        = newError(ErrNotFound, "group not found")
	ErrUserNotFound         = newError(ErrNotFound, "user not found")
	ErrNoValidMembers       = newError(ErrNotFound, "no valid users found for the members list")
	ErrExpenseNotFound      = newError(ErrNotFound, "expense not found")
	ErrNotificationNotFound = newError(ErrNotFound, "notification not found")

	ErrNotMember  = newError(ErrForbidden, "you are not a member of this group")
	ErrNotAdmin   = newError(ErrForbidden, "only an admin can manage members")
	ErrNotInvited = newError(ErrForbidden, "you are not invited to this group")
	ErrNotCreator = newError(ErrForbidden, "only the group creator can delete the group")

	ErrAlreadyMember    = newError(ErrConflict, "user is already a member of this group")
	ErrConcurrentUpdate = newError(ErrConflict, "group is being modified concurrently, try again")

	ErrGroupNameRequired   = newError(ErrInvalidArgument, "group name is required")
	ErrEmailRequired       = newError(ErrInvalidArgument, "email is required")
	ErrInvalidResponse     = newError(ErrInvalidArgument, "status must be accepted or rejected")
	ErrCannotRemoveCreator = newError(ErrInvalidArgument, "the group creator cannot be removed")
	ErrDescriptionRequired = newError(ErrInvalidArgument, "description is required")
	ErrInvalidAmount       = newError(ErrInvalidArgument, "amount must be greater than zero")
	ErrAmountPrecision     = newError(ErrInvalidArgument, "amount must have at most 2 decimal places and be below 1000000000000")
	ErrInvalidShare        = newError(ErrInvalidArgument, "split shares must have at most 2 decimal places and be below 1000000000000")
	ErrPaidByRequired      = newError(ErrInvalidArgument, "paid_by is required")
	ErrInvalidPeriod       = newError(ErrInvalidArgument, "invalid month or year")
)

// internalError hides cause from callers while keeping it for logs.
func internalError(op string, cause error) error {
	return &Error{Kind: ErrInternal, Message: op, cause: cause}
}

// storeError maps persistence errors onto service errors.
func storeError(op string, err error) error {
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return err
	case errors.Is(err, repository.ErrGroupNotFound):
		return ErrGroupNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrNotificationNotFound):
		return ErrNotificationNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		return ErrConcurrentUpdate
	case errors.Is(err, context.DeadlineExceeded):
		return internalError(op+": timed out", err)
	}
	return internalError(op, err)
}
