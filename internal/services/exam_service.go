package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/clock"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/events"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/validator"
)

// attemptCloser force-submits attempts. The attempt service implements it;
// cancellation uses it so that there is only one submission path.
type attemptCloser interface {
	SubmitAttempt(ctx context.Context, attemptID uint, studentID string, req *models.SubmitAttemptRequest, source models.SubmissionSource) (*models.Result, error)
}

type examService struct {
	repo      repositories.Repository
	clock     clock.Clock
	validator *validator.Validator
	rules     *validator.BusinessValidator
	publisher events.EventPublisher
	logger    *slog.Logger
	closer    attemptCloser
}

func NewExamService(repo repositories.Repository, clk clock.Clock, v *validator.Validator, publisher events.EventPublisher, logger *slog.Logger, closer attemptCloser) ExamService {
	return &examService{
		repo:      repo,
		clock:     clk,
		validator: v,
		rules:     validator.NewBusinessValidator(v),
		publisher: publisher,
		logger:    logger,
		closer:    closer,
	}
}

// ===== AUTHORING =====

func (s *examService) Create(ctx context.Context, req *models.ExamCreateRequest, creatorID string) (*models.Exam, error) {
	return s.create(ctx, req, creatorID, models.ExamKindStandard)
}

// CreateCompetition creates a competition in the pending state. Competitions
// pool students across institutions, so the owning scope is cleared.
func (s *examService) CreateCompetition(ctx context.Context, req *models.ExamCreateRequest, creatorID string) (*models.Exam, error) {
	return s.create(ctx, req, creatorID, models.ExamKindCompetition)
}

func (s *examService) create(ctx context.Context, req *models.ExamCreateRequest, creatorID string, kind models.ExamKind) (*models.Exam, error) {
	s.logger.Info("Creating exam", "title", req.Title, "kind", kind, "creator_id", creatorID)

	if errs := s.rules.ValidateExamCreate(req); len(errs) > 0 {
		return nil, errs
	}
	if err := s.checkQuestionsExist(ctx, req.QuestionIDs); err != nil {
		return nil, err
	}

	exam := &models.Exam{
		Title:                  req.Title,
		Kind:                   kind,
		DepartmentID:           req.DepartmentID,
		CollegeID:              req.CollegeID,
		StartTime:              req.StartTime.UTC(),
		EndTime:                req.EndTime.UTC(),
		DurationMinutes:        req.DurationMinutes,
		TotalMarks:             req.TotalMarks,
		PassingMarks:           req.PassingMarks,
		NegativeMarkingEnabled: req.NegativeMarkingEnabled,
		NegativeMarkPerWrong:   req.NegativeMarkPerWrong,
		IsRandomized:           req.IsRandomized,
		ShowResultsImmediately: true,
		Status:                 initialStatus(kind),
		CreatedBy:              creatorID,
	}
	if req.ShowResultsImmediately != nil {
		exam.ShowResultsImmediately = *req.ShowResultsImmediately
	}
	if kind == models.ExamKindCompetition {
		exam.DepartmentID = nil
		exam.CollegeID = nil
	}
	for i, qid := range req.QuestionIDs {
		exam.Questions = append(exam.Questions, models.ExamQuestion{QuestionID: qid, Position: i + 1})
	}

	if err := s.repo.Exam().Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.Info("Exam created", "exam_id", exam.ID, "status", exam.Status)
	return exam, nil
}

// Update changes schedule, scoring or behaviour of an exam that has not
// started yet.
func (s *examService) Update(ctx context.Context, id uint, req *models.ExamUpdateRequest, userID string) (*models.Exam, error) {
	s.logger.Info("Updating exam", "exam_id", id, "user_id", userID)

	var updated *models.Exam
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		exam, err := loadExam(ctx, tx, id)
		if err != nil {
			return err
		}
		if !isEditable(exam, s.clock.Now()) {
			return fmt.Errorf("%w: exam is %s", ErrExamNotEditable, DeriveStatus(exam, s.clock.Now()))
		}

		applyExamUpdate(exam, req)
		if errs := s.rules.ValidateExamUpdate(req, exam); len(errs) > 0 {
			return errs
		}

		if err := tx.Exam().Update(ctx, exam); err != nil {
			return fmt.Errorf("failed to update exam: %w", err)
		}
		updated = exam
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyExamUpdate(exam *models.Exam, req *models.ExamUpdateRequest) {
	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.StartTime != nil {
		exam.StartTime = req.StartTime.UTC()
	}
	if req.EndTime != nil {
		exam.EndTime = req.EndTime.UTC()
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.TotalMarks != nil {
		exam.TotalMarks = *req.TotalMarks
	}
	if req.PassingMarks != nil {
		exam.PassingMarks = *req.PassingMarks
	}
	if req.NegativeMarkingEnabled != nil {
		exam.NegativeMarkingEnabled = *req.NegativeMarkingEnabled
	}
	if req.NegativeMarkPerWrong != nil {
		exam.NegativeMarkPerWrong = *req.NegativeMarkPerWrong
	}
	if req.IsRandomized != nil {
		exam.IsRandomized = *req.IsRandomized
	}
	if req.ShowResultsImmediately != nil {
		exam.ShowResultsImmediately = *req.ShowResultsImmediately
	}
}

// SetQuestions replaces the ordered question list.
func (s *examService) SetQuestions(ctx context.Context, id uint, req *models.SetExamQuestionsRequest, userID string) (*models.Exam, error) {
	s.logger.Info("Setting exam questions", "exam_id", id, "count", len(req.QuestionIDs), "user_id", userID)

	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}
	if err := s.checkQuestionsExist(ctx, req.QuestionIDs); err != nil {
		return nil, err
	}

	var updated *models.Exam
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		exam, err := loadExam(ctx, tx, id)
		if err != nil {
			return err
		}
		if !isEditable(exam, s.clock.Now()) {
			return fmt.Errorf("%w: exam is %s", ErrExamNotEditable, DeriveStatus(exam, s.clock.Now()))
		}
		if err := tx.Exam().SetQuestions(ctx, id, req.QuestionIDs); err != nil {
			return fmt.Errorf("failed to set exam questions: %w", err)
		}
		updated, err = loadExam(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *examService) checkQuestionsExist(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	questions, err := s.repo.Question().GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}
	found := make(map[uint]bool, len(questions))
	for _, q := range questions {
		found[q.ID] = true
	}
	var errs ValidationErrors
	for i, id := range ids {
		if !found[id] {
			errs = append(errs, *NewValidationError(fmt.Sprintf("question_ids[%d]", i), "question not found", id))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ===== READS =====

func (s *examService) Get(ctx context.Context, id uint) (*models.Exam, error) {
	return loadExam(ctx, s.repo, id)
}

func (s *examService) List(ctx context.Context, params *models.ListExamsParams) (*models.PaginatedResponse, error) {
	if errs := s.validator.Validate(params); errs != nil {
		return nil, errs
	}

	size := params.Size
	if size <= 0 {
		size = 20
	}
	filters := repositories.ExamFilters{
		DepartmentID: params.DepartmentID,
		Limit:        size,
		Offset:       params.Page * size,
		SortBy:       params.SortBy,
		SortOrder:    params.SortDir,
	}
	if params.Kind != "" {
		kind := params.Kind
		filters.Kind = &kind
	}
	if params.Status != "" {
		status := params.Status
		filters.Status = &status
	}

	exams, total, err := s.repo.Exam().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return paginated(exams, total, params.Page, size), nil
}

func (s *examService) GetExamStatus(ctx context.Context, id uint) (*models.ExamStatusResponse, error) {
	exam, err := loadExam(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	return &models.ExamStatusResponse{
		ExamID:  exam.ID,
		Kind:    exam.Kind,
		Status:  DeriveStatus(exam, now),
		Stored:  exam.Status,
		AsOf:    now,
		StartAt: exam.StartTime,
		EndAt:   exam.EndTime,
	}, nil
}

// ===== LIFECYCLE =====

// PublishExam moves a draft exam to scheduled once its schedule, scoring and
// question list are complete. It cannot be undone.
func (s *examService) PublishExam(ctx context.Context, id uint, userID string) (*models.Exam, error) {
	return s.transition(ctx, id, models.ExamKindStandard, actionPublish, userID)
}

func (s *examService) CancelExam(ctx context.Context, id uint, userID string) (*models.Exam, error) {
	return s.transition(ctx, id, models.ExamKindStandard, actionCancel, userID)
}

func (s *examService) PublishCompetition(ctx context.Context, id uint, userID string) (*models.Exam, error) {
	return s.transition(ctx, id, models.ExamKindCompetition, actionPublish, userID)
}

func (s *examService) ApproveCompetition(ctx context.Context, id uint, userID string) (*models.Exam, error) {
	return s.transition(ctx, id, models.ExamKindCompetition, actionApprove, userID)
}

func (s *examService) GoLiveCompetition(ctx context.Context, id uint, userID string) (*models.Exam, error) {
	return s.transition(ctx, id, models.ExamKindCompetition, actionGoLive, userID)
}

func (s *examService) CancelCompetition(ctx context.Context, id uint, userID string) (*models.Exam, error) {
	return s.transition(ctx, id, models.ExamKindCompetition, actionCancel, userID)
}

func (s *examService) transition(ctx context.Context, id uint, kind models.ExamKind, action lifecycleAction, userID string) (*models.Exam, error) {
	now := s.clock.Now()
	s.logger.Info("Exam status transition requested", "exam_id", id, "action", action, "user_id", userID)

	exam, err := loadExam(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if exam.Kind != kind {
		return nil, fmt.Errorf("%w: exam %d is a %s exam", ErrInvalidTransition, id, exam.Kind)
	}

	to, err := nextStatus(exam, action, now)
	if err != nil {
		return nil, err
	}
	if action == actionPublish || action == actionApprove {
		if errs := s.rules.ValidatePublish(exam); len(errs) > 0 {
			return nil, errs
		}
	}

	from := exam.Status
	if err := s.repo.Exam().TransitionStatus(ctx, id, from, to, now); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, fmt.Errorf("%w: exam %d changed concurrently", ErrInvalidTransition, id)
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to update exam status: %w", err)
	}

	s.logger.Info("Exam status changed", "exam_id", id, "from", from, "to", to, "user_id", userID)
	s.publishStatusChanged(ctx, exam, from, to, now)

	if to == models.ExamCancelled {
		s.closeOpenAttempts(ctx, id)
	}

	return loadExam(ctx, s.repo, id)
}

// closeOpenAttempts force-submits every attempt still in progress. Failures
// are left for the deadline reaper, which also sweeps cancelled exams.
func (s *examService) closeOpenAttempts(ctx context.Context, examID uint) {
	open, err := s.repo.Attempt().ListOpenByExam(ctx, examID)
	if err != nil {
		s.logger.Error("Failed to list open attempts of cancelled exam", "exam_id", examID, "error", err)
		return
	}

	closed := 0
	for _, a := range open {
		_, err := s.closer.SubmitAttempt(ctx, a.ID, a.StudentID, nil, models.SubmittedByCancellation)
		switch {
		case err == nil:
			closed++
		case isBenignSubmitError(err):
			s.logger.Debug("Attempt already submitted", "attempt_id", a.ID)
		default:
			s.logger.Error("Failed to force-submit attempt of cancelled exam",
				"exam_id", examID,
				"attempt_id", a.ID,
				"error", err)
		}
	}
	s.logger.Info("Closed open attempts of cancelled exam", "exam_id", examID, "closed", closed, "open", len(open))
}

func (s *examService) publishStatusChanged(ctx context.Context, exam *models.Exam, from, to models.ExamStatus, at time.Time) {
	event := events.NewEvent(events.ExamStatusChanged, at, events.ExamStatusChangedData{
		ExamID: exam.ID,
		Kind:   string(exam.Kind),
		From:   string(from),
		To:     string(to),
		At:     at,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish exam status event", "exam_id", exam.ID, "error", err)
	}
}

// ===== HELPERS =====

func paginated(content interface{}, total int64, page, size int) *models.PaginatedResponse {
	totalPages := 0
	if size > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(size)))
	}
	return &models.PaginatedResponse{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Page:          page,
		First:         page == 0,
		Last:          page >= totalPages-1,
		Empty:         total == 0,
	}
}
