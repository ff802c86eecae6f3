package services

import (
	"errors"
	"fmt"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/validator"
)

var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrResultNotFound   = errors.New("result not found")

	// Lifecycle
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrExamNotEditable   = errors.New("exam can no longer be edited")

	// Timing
	ErrExamNotActive    = errors.New("exam is not active")
	ErrDeadlineExceeded = errors.New("attempt deadline exceeded")

	// Idempotency
	ErrDuplicateAttempt = errors.New("attempt already exists for this exam and student")
	ErrAlreadySubmitted = errors.New("attempt already submitted")

	// Grading
	ErrInvalidGrade        = errors.New("invalid grade")
	ErrGradingNotAllowed   = errors.New("question is graded automatically")
	ErrAttemptNotSubmitted = errors.New("attempt has not been submitted")

	ErrAttemptAccessDenied = errors.New("access denied to attempt")
)

type ValidationError = validator.ValidationError
type ValidationErrors = validator.ValidationErrors

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// BusinessRuleError reports a request that is well formed but violates a
// domain rule.
type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// isBenignSubmitError reports errors the deadline reaper and cancellation
// treat as "someone else already closed this attempt".
func isBenignSubmitError(err error) bool {
	return errors.Is(err, ErrAlreadySubmitted)
}
