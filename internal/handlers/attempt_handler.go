package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/services"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/utils"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// BeginAttempt starts the caller's attempt at an exam
// @Summary Begin attempt
// @Description Opens the single attempt a student may make at an active exam
// @Tags attempts
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 201 {object} models.AttemptView
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /exams/{id}/attempts [post]
func (h *AttemptHandler) BeginAttempt(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Beginning attempt", "exam_id", examID)
	view, err := h.attemptService.BeginAttempt(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetAttempt returns an attempt with its questions
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.AttemptView
// @Failure 403 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	view, err := h.attemptService.GetAttempt(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SaveAnswer stores the response to one question while the attempt is open
// @Summary Save answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param question_id path uint true "Question ID"
// @Param answer body models.SaveAnswerRequest true "Response"
// @Success 200 {object} models.Answer
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/answers/{question_id} [put]
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	var req models.SaveAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	answer, err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, questionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// RecordTabSwitch counts one tab switch on an open attempt
// @Summary Record tab switch
// @Tags attempts
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse
// @Router /attempts/{id}/tab-switch [post]
func (h *AttemptHandler) RecordTabSwitch(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	count, err := h.attemptService.RecordTabSwitch(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respondSuccess(c, http.StatusOK, "Tab switch recorded", gin.H{"tab_switch_count": count})
}

// SubmitAttempt closes the caller's attempt and returns its result
// @Summary Submit attempt
// @Description Final answers in the body overwrite saved ones. The result is evaluated before the response.
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param attempt body models.SubmitAttemptRequest false "Final answers"
// @Success 200 {object} models.Result
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req models.SubmitAttemptRequest
	// an empty body submits the saved answers as they are
	if c.Request.ContentLength != 0 {
		if !h.bindJSON(c, &req) {
			return
		}
		if err := h.validator.Validate(&req); err != nil {
			h.handleServiceError(c, err)
			return
		}
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", id)
	result, err := h.attemptService.SubmitAttempt(c.Request.Context(), id, userID, &req, models.SubmittedByStudent)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetResult returns the result of a submitted attempt
// @Summary Get attempt result
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.Result
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/result [get]
func (h *AttemptHandler) GetResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
