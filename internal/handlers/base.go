package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/services"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/utils"
)

type ErrorResponse struct {
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message"`
	Code      string      `json:"code,omitempty"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Path      string      `json:"path,omitempty"`
}

type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeValidation       = "VALIDATION_FAILED"
	CodePermission       = "PERMISSION_DENIED"
	CodeNotFound         = "NOT_FOUND"
	CodeDuplicateAttempt = "DUPLICATE_ATTEMPT"
	CodeAlreadySubmitted = "ALREADY_SUBMITTED"
	CodeInvalidState     = "INVALID_STATE"
	CodeDeadlineExceeded = "DEADLINE_EXCEEDED"
	CodeNotActive        = "EXAM_NOT_ACTIVE"
	CodeInvalidGrade     = "INVALID_GRADE"
	CodeBusinessRule     = "BUSINESS_RULE"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInternal         = "INTERNAL_ERROR"
)

// BaseHandler carries what every handler shares: the logger and the error mapping.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Debug(msg, args...)
}

func (h BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err, "path", c.Request.URL.Path)
	utils.GetLogger(c, h.logger).Error(msg, args...)
}

func (h BaseHandler) respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		Details:   details,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	})
}

func (h BaseHandler) respondSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, SuccessResponse{
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// bindJSON decodes the body into req and reports a 400 on failure.
func (h BaseHandler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.respondError(c, http.StatusBadRequest, CodeValidation, "Invalid request payload", err.Error())
		return false
	}
	return true
}

func (h BaseHandler) getUserID(c *gin.Context) string {
	userID, exists := c.Get("user_id")
	if !exists {
		return ""
	}
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// requireUserID returns the caller's id or answers 401.
func (h BaseHandler) requireUserID(c *gin.Context) (string, bool) {
	userID := h.getUserID(c)
	if userID == "" {
		h.respondError(c, http.StatusUnauthorized, CodeUnauthorized, "User not authenticated", nil)
		return "", false
	}
	return userID, true
}

func (h BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		details := "must be a positive integer"
		if err != nil {
			details = err.Error()
		}
		h.respondError(c, http.StatusBadRequest, CodeValidation, "Invalid "+param, details)
		return 0
	}
	return uint(id)
}

func (h BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// handleServiceError maps service errors onto HTTP statuses.
func (h BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.respondError(c, http.StatusBadRequest, CodeValidation, "Validation failed", validationErrors)
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.respondError(c, http.StatusForbidden, CodePermission, "Access denied", map[string]interface{}{
			"resource": permissionError.Resource,
			"action":   permissionError.Action,
			"reason":   permissionError.Reason,
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		h.respondError(c, http.StatusUnprocessableEntity, CodeBusinessRule, businessRuleError.Message, map[string]interface{}{
			"rule":    businessRuleError.Rule,
			"context": businessRuleError.Context,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrExamNotFound),
		errors.Is(err, services.ErrAttemptNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrResultNotFound),
		errors.Is(err, repositories.ErrNotFound):
		h.respondError(c, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, services.ErrAttemptAccessDenied):
		h.respondError(c, http.StatusForbidden, CodePermission, "Access denied to attempt", nil)
	case errors.Is(err, services.ErrDuplicateAttempt):
		h.respondError(c, http.StatusConflict, CodeDuplicateAttempt, "Attempt already exists for this exam", nil)
	case errors.Is(err, services.ErrAlreadySubmitted):
		h.respondError(c, http.StatusConflict, CodeAlreadySubmitted, "Attempt already submitted", nil)
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrExamNotEditable),
		errors.Is(err, services.ErrAttemptNotSubmitted),
		errors.Is(err, repositories.ErrConflict),
		errors.Is(err, repositories.ErrDuplicate):
		h.respondError(c, http.StatusConflict, CodeInvalidState, err.Error(), nil)
	case errors.Is(err, services.ErrDeadlineExceeded):
		h.respondError(c, http.StatusGone, CodeDeadlineExceeded, "Attempt deadline exceeded", nil)
	case errors.Is(err, services.ErrExamNotActive):
		h.respondError(c, http.StatusUnprocessableEntity, CodeNotActive, "Exam is not active", nil)
	case errors.Is(err, services.ErrInvalidGrade):
		h.respondError(c, http.StatusUnprocessableEntity, CodeInvalidGrade, err.Error(), nil)
	case errors.Is(err, services.ErrGradingNotAllowed):
		h.respondError(c, http.StatusUnprocessableEntity, CodeBusinessRule, err.Error(), nil)
	default:
		h.LogError(c, err, "Unexpected service error")
		h.respondError(c, http.StatusInternalServerError, CodeInternal, "Internal server error", nil)
	}
}
