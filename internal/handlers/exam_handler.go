package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/services"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/utils"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/validator"
)

type ExamHandler struct {
	BaseHandler
	examService services.ExamService
	validator   *validator.Validator
}

func NewExamHandler(
	examService services.ExamService,
	validator *validator.Validator,
	logger utils.Logger,
) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		examService: examService,
		validator:   validator,
	}
}

// CreateExam creates a standard exam in draft
// @Summary Create exam
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body models.ExamCreateRequest true "Exam data"
// @Success 201 {object} models.Exam
// @Failure 400 {object} ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	h.create(c, h.examService.Create)
}

// CreateCompetition creates a competition awaiting publication
// @Summary Create competition
// @Tags competitions
// @Accept json
// @Produce json
// @Param exam body models.ExamCreateRequest true "Competition data"
// @Success 201 {object} models.Exam
// @Failure 400 {object} ErrorResponse
// @Router /competitions [post]
func (h *ExamHandler) CreateCompetition(c *gin.Context) {
	h.create(c, h.examService.CreateCompetition)
}

type createFunc func(ctx context.Context, req *models.ExamCreateRequest, creatorID string) (*models.Exam, error)

func (h *ExamHandler) create(c *gin.Context, create createFunc) {
	var req models.ExamCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Creating exam", "title", req.Title)
	exam, err := create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exam)
}

// GetExam retrieves an exam by ID
// @Summary Get exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} models.Exam
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, exam)
}

// ListExams lists exams with pagination and filters
// @Summary List exams
// @Tags exams
// @Produce json
// @Param page query int false "Page number (0-based)"
// @Param size query int false "Page size"
// @Param kind query string false "standard or competition"
// @Param status query string false "Stored status"
// @Success 200 {object} models.PaginatedResponse
// @Router /exams [get]
func (h *ExamHandler) ListExams(c *gin.Context) {
	var params models.ListExamsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.respondError(c, http.StatusBadRequest, CodeValidation, "Invalid query parameters", err.Error())
		return
	}

	page, err := h.examService.List(c.Request.Context(), &params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// UpdateExam edits an exam that has not been published yet
// @Summary Update exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param exam body models.ExamUpdateRequest true "Changed fields"
// @Success 200 {object} models.Exam
// @Failure 409 {object} ErrorResponse
// @Router /exams/{id} [put]
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req models.ExamUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, exam)
}

// SetQuestions replaces the exam's question list
// @Summary Set exam questions
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param questions body models.SetExamQuestionsRequest true "Ordered question ids"
// @Success 200 {object} models.Exam
// @Router /exams/{id}/questions [put]
func (h *ExamHandler) SetQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req models.SetExamQuestionsRequest
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

	exam, err := h.examService.SetQuestions(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, exam)
}

// GetExamStatus reports the status derived from the schedule as of now
// @Summary Get exam status
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} models.ExamStatusResponse
// @Router /exams/{id}/status [get]
func (h *ExamHandler) GetExamStatus(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	status, err := h.examService.GetExamStatus(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type transitionFunc func(ctx context.Context, id uint, userID string) (*models.Exam, error)

// transition returns a handler running one lifecycle action.
func (h *ExamHandler) transition(action string, fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := h.parseIDParam(c, "id")
		if id == 0 {
			return
		}
		userID, ok := h.requireUserID(c)
		if !ok {
			return
		}

		h.LogRequest(c, "Exam lifecycle action", "exam_id", id, "action", action)
		exam, err := fn(c.Request.Context(), id, userID)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, exam)
	}
}

// PublishExam moves a draft exam to scheduled
// @Summary Publish exam
// @Tags exams
// @Param id path uint true "Exam ID"
// @Success 200 {object} models.Exam
// @Router /exams/{id}/publish [post]
func (h *ExamHandler) PublishExam() gin.HandlerFunc {
	return h.transition("publish", h.examService.PublishExam)
}

// CancelExam cancels an exam and force-submits its open attempts
// @Summary Cancel exam
// @Tags exams
// @Param id path uint true "Exam ID"
// @Success 200 {object} models.Exam
// @Router /exams/{id}/cancel [post]
func (h *ExamHandler) CancelExam() gin.HandlerFunc {
	return h.transition("cancel", h.examService.CancelExam)
}

// @Router /competitions/{id}/publish [post]
func (h *ExamHandler) PublishCompetition() gin.HandlerFunc {
	return h.transition("publish_competition", h.examService.PublishCompetition)
}

// @Router /competitions/{id}/approve [post]
func (h *ExamHandler) ApproveCompetition() gin.HandlerFunc {
	return h.transition("approve_competition", h.examService.ApproveCompetition)
}

// @Router /competitions/{id}/go-live [post]
func (h *ExamHandler) GoLiveCompetition() gin.HandlerFunc {
	return h.transition("go_live_competition", h.examService.GoLiveCompetition)
}

// @Router /competitions/{id}/cancel [post]
func (h *ExamHandler) CancelCompetition() gin.HandlerFunc {
	return h.transition("cancel_competition", h.examService.CancelCompetition)
}
