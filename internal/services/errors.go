package services

import (
	"errors"
	"fmt"
)

// Not-found sentinels, one per entity.
var (
	ErrAssessmentNotFound    = errors.New("assessment not found")
	ErrQuestionNotFound      = errors.New("question not found")
	ErrAnswerNotFound        = errors.New("answer not found")
	ErrAttemptNotFound       = errors.New("attempt not found")
	ErrAttemptAnswerNotFound = errors.New("attempt answer not found")
	ErrUserNotFound          = errors.New("user not found")
)

// Domain rule violations.
var (
	// ErrDuplicateOrder means an explicit question/answer order collided with
	// an existing sibling.
	ErrDuplicateOrder = errors.New("duplicate order for this parent")

	// ErrLessonAlreadyHasAssessment guards the one-assessment-per-lesson rule.
	ErrLessonAlreadyHasAssessment = errors.New("lesson already has an assessment")

	// ErrAttemptLimitExceeded means the user has used every allowed attempt.
	ErrAttemptLimitExceeded = errors.New("maximum attempts exceeded")

	// ErrAttemptCompleted rejects mutations of a finalized attempt.
	ErrAttemptCompleted = errors.New("attempt already completed")

	// ErrAttemptInProgress rejects reads of results that don't exist yet.
	ErrAttemptInProgress = errors.New("attempt not finalized yet")

	// ErrAttemptExpired rejects submissions past the attempt deadline.
	ErrAttemptExpired = errors.New("attempt time limit expired")

	// ErrQuestionNotInAssessment rejects answers to questions of a different
	// assessment than the attempt's.
	ErrQuestionNotInAssessment = errors.New("question does not belong to the attempt's assessment")

	// ErrNotManuallyGradable rejects grade overrides on auto-graded types
	// outside of an instructor correction.
	ErrNotManuallyGradable = errors.New("question type is not manually gradable")

	// ErrLockWaitTimeout is returned when a row-lock wait timed out. The
	// operation did not happen and can be retried.
	ErrLockWaitTimeout = errors.New("timed out waiting for a row lock, retry the operation")
)

// ValidationError reports a request field that failed a domain rule that the
// struct validator cannot express.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// PermissionError reports an action the user is not allowed to perform.
type PermissionError struct {
	UserID   string
	Resource string
	Action   string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s: %s", e.UserID, e.Action, e.Resource, e.Reason)
}

func NewPermissionError(userID, resource, action, reason string) *PermissionError {
	return &PermissionError{UserID: userID, Resource: resource, Action: action, Reason: reason}
}

// IsPermissionError reports whether err is a permission failure.
func IsPermissionError(err error) bool {
	var perr *PermissionError
	return errors.As(err, &perr)
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockWaitTimeout)
}
