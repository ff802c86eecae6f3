package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/services"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/utils"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
}

func NewGradingHandler(
	gradingService services.GradingService,
	logger utils.Logger,
) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
	}
}

type gradeAnswerResponse struct {
	Answer *models.Answer `json:"answer"`
	Result *models.Result `json:"result"`
}

// GradeAnswer records a manual grade for a descriptive or coding answer
// @Summary Grade answer
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param question_id path uint true "Question ID"
// @Param grade body models.GradeAnswerRequest true "Grade"
// @Success 200 {object} gradeAnswerResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts/{id}/answers/{question_id}/grade [post]
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	// marks are range-checked against the question by the service
	var req models.GradeAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Grading answer", "attempt_id", attemptID, "question_id", questionID)
	answer, result, err := h.gradingService.GradeAnswer(c.Request.Context(), attemptID, questionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gradeAnswerResponse{Answer: answer, Result: result})
}

// ListPendingAnswers lists answers of an exam still waiting for a grader
// @Summary List pending answers
// @Tags grading
// @Produce json
// @Param id path uint true "Exam ID"
// @Param page query int false "Page number (0-based)"
// @Param size query int false "Page size"
// @Success 200 {object} models.PaginatedResponse
// @Router /exams/{id}/pending-answers [get]
func (h *GradingHandler) ListPendingAnswers(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	page, err := h.gradingService.ListPendingAnswers(c.Request.Context(), examID, h.parseIntQuery(c, "page", 0), h.parseIntQuery(c, "size", 20))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
