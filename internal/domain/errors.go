package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates that the request lacks valid authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates that the request is not allowed for the authenticated user.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrStaleState indicates the entity is no longer in the status the caller acted on.
	ErrStaleState = errors.New("stale state")

	// ErrForbiddenRole indicates the actor's role may not perform the action.
	ErrForbiddenRole = errors.New("forbidden role")

	// ErrInFlight indicates another version of the same root is already under review.
	ErrInFlight = errors.New("version already in review")

	// ErrJobFailed indicates an AI job ended in FAILED or CANCELED.
	ErrJobFailed = errors.New("job failed")

	// ErrJobTimeout indicates polling gave up before the job reached a terminal status.
	ErrJobTimeout = errors.New("job timeout")

	// ErrNoLinkedOutcomes indicates a syllabus has no CLOs to analyze.
	ErrNoLinkedOutcomes = errors.New("no linked outcomes")

	// ErrNoResolvablePLOs indicates none of the mapped PLOs could be resolved.
	ErrNoResolvablePLOs = errors.New("no resolvable PLOs")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AlreadyExistsError provides details about a duplicate entity.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// StaleStateError reports that an action was attempted against a status the
// entity is no longer in. Clients should reload and retry.
type StaleStateError struct {
	Entity   string
	ID       string
	Action   Action
	Expected SyllabusStatus
	Actual   SyllabusStatus
}

// Error implements the error interface.
func (e *StaleStateError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("%s %s: %s is not allowed from status %s", e.Entity, e.ID, e.Action, e.Actual)
	}
	return fmt.Sprintf("%s %s: %s requires status %s, found %s", e.Entity, e.ID, e.Action, e.Expected, e.Actual)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *StaleStateError) Unwrap() error {
	return ErrStaleState
}

// ForbiddenRoleError reports that the acting role does not own the action.
type ForbiddenRoleError struct {
	Action   Action
	Role     Role
	Required Role
	Reason   string
}

// Error implements the error interface.
func (e *ForbiddenRoleError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("role %s may not %s: %s", e.Role, e.Action, e.Reason)
	}
	return fmt.Sprintf("role %s may not %s (requires %s)", e.Role, e.Action, e.Required)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ForbiddenRoleError) Unwrap() error {
	return ErrForbiddenRole
}

// InFlightConflictError reports that another version of the root is already
// pending review or approval.
type InFlightConflictError struct {
	RootID    string
	VersionID string
}

// Error implements the error interface.
func (e *InFlightConflictError) Error() string {
	if e.VersionID == "" {
		return fmt.Sprintf("syllabus %s already has a version under review", e.RootID)
	}
	return fmt.Sprintf("syllabus %s already has version %s under review", e.RootID, e.VersionID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InFlightConflictError) Unwrap() error {
	return ErrInFlight
}

// JobFailedError carries the failure message reported by the AI service.
type JobFailedError struct {
	JobID   string
	Status  JobStatus
	Message string
}

// Error implements the error interface.
func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s ended with status %s", e.JobID, e.Status)
	}
	return fmt.Sprintf("job %s ended with status %s: %s", e.JobID, e.Status, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *JobFailedError) Unwrap() error {
	return ErrJobFailed
}

// JobTimeoutError reports that polling stopped before the job finished. The
// job itself keeps running on the AI service.
type JobTimeoutError struct {
	JobID    string
	Elapsed  time.Duration
	Attempts int
}

// Error implements the error interface.
func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("job %s still running after %s (%d status reads)", e.JobID, e.Elapsed, e.Attempts)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *JobTimeoutError) Unwrap() error {
	return ErrJobTimeout
}

// NoLinkedOutcomesError reports a syllabus with an empty CLO list.
type NoLinkedOutcomesError struct {
	SyllabusID string
}

// Error implements the error interface.
func (e *NoLinkedOutcomesError) Error() string {
	return fmt.Sprintf("syllabus %s has no linked CLOs", e.SyllabusID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NoLinkedOutcomesError) Unwrap() error {
	return ErrNoLinkedOutcomes
}

// NoResolvablePLOsError reports that no PLO referenced by the syllabus mappings
// could be fetched.
type NoResolvablePLOsError struct {
	SyllabusID string
	Requested  int
}

// Error implements the error interface.
func (e *NoResolvablePLOsError) Error() string {
	return fmt.Sprintf("syllabus %s: none of %d mapped PLOs could be resolved", e.SyllabusID, e.Requested)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NoResolvablePLOsError) Unwrap() error {
	return ErrNoResolvablePLOs
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
