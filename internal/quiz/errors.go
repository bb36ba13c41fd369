package quiz

import (
	"errors"
	"fmt"
)

// Domain failures. Each maps to one HTTP status in the handler.
var (
	ErrInvalidInput           = errors.New("invalid request")
	ErrRateLimited            = errors.New("too many requests, please wait")
	ErrInvalidQuestion        = errors.New("invalid question, please fetch a new question")
	ErrVersionConflict        = errors.New("state has changed, please refresh and try again")
	ErrConcurrentModification = errors.New("concurrent modification detected, please retry")
	ErrRequestInFlight        = errors.New("a request with this idempotency key is still being processed")
	ErrStateNotFound          = errors.New("user state not found")
	ErrQuestionPoolExhausted  = errors.New("no questions available")
)

// VersionConflictError carries the version the client should refetch.
type VersionConflictError struct {
	Current int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s (current version %d)", ErrVersionConflict, e.Current)
}

func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}
