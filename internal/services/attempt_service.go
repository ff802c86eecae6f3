package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/clock"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/events"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	identity  repositories.IdentityRepository
	clock     clock.Clock
	validator *validator.Validator
	publisher events.EventPublisher
	ranking   RankingService
	logger    *slog.Logger
}

func NewAttemptService(repo repositories.Repository, identity repositories.IdentityRepository, clk clock.Clock, v *validator.Validator, publisher events.EventPublisher, ranking RankingService, logger *slog.Logger) AttemptService {
	return &attemptService{
		repo:      repo,
		identity:  identity,
		clock:     clk,
		validator: v,
		publisher: publisher,
		ranking:   ranking,
		logger:    logger,
	}
}

// ===== BEGIN =====

// BeginAttempt opens the student's only attempt at an exam. The exam must be
// ongoing (or live, for competitions).
func (s *attemptService) BeginAttempt(ctx context.Context, examID uint, studentID string) (*models.AttemptView, error) {
	now := s.clock.Now()
	s.logger.Info("Beginning attempt", "exam_id", examID, "student_id", studentID)

	var (
		exam    *models.Exam
		attempt *models.Attempt
	)
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		exam, err = loadExam(ctx, tx, examID)
		if err != nil {
			return err
		}
		if !IsAcceptingAttempts(exam, now) {
			return fmt.Errorf("%w: exam %d is %s", ErrExamNotActive, examID, DeriveStatus(exam, now))
		}

		if _, err := tx.Attempt().GetByExamAndStudent(ctx, examID, studentID); err == nil {
			return ErrDuplicateAttempt
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("failed to check existing attempt: %w", err)
		}

		attempt = &models.Attempt{ExamID: examID, StudentID: studentID, StartedAt: now}
		if err := tx.Attempt().Create(ctx, attempt); err != nil {
			// lost a race with a concurrent begin for the same pair
			if errors.Is(err, repositories.ErrDuplicate) {
				return ErrDuplicateAttempt
			}
			return fmt.Errorf("failed to create attempt: %w", err)
		}

		questionIDs := exam.QuestionIDs()
		if exam.IsRandomized {
			rand.Shuffle(len(questionIDs), func(i, j int) {
				questionIDs[i], questionIDs[j] = questionIDs[j], questionIDs[i]
			})
		}
		answers := make([]*models.Answer, 0, len(questionIDs))
		for i, qid := range questionIDs {
			answers = append(answers, &models.Answer{AttemptID: attempt.ID, QuestionID: qid, Position: i + 1})
		}
		if err := tx.Answer().CreateBatch(ctx, answers); err != nil {
			return fmt.Errorf("failed to create answers: %w", err)
		}
		for _, a := range answers {
			attempt.Answers = append(attempt.Answers, *a)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateAttempt) || errors.Is(err, ErrExamNotActive) {
			s.logger.Warn("Attempt rejected", "exam_id", examID, "student_id", studentID, "reason", err)
		}
		return nil, err
	}

	deadline := exam.AttemptDeadline(attempt.StartedAt)
	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"exam_id", examID,
		"student_id", studentID,
		"deadline", deadline)

	s.publish(ctx, events.NewEvent(events.AttemptStarted, now, events.AttemptStartedData{
		AttemptID: attempt.ID,
		ExamID:    examID,
		StudentID: studentID,
		StartedAt: attempt.StartedAt,
		Deadline:  deadline,
	}))

	return s.buildView(ctx, exam, attempt, false)
}

// ===== IN PROGRESS =====

func (s *attemptService) GetAttempt(ctx context.Context, attemptID uint, userID string) (*models.AttemptView, error) {
	attempt, err := s.loadAttempt(ctx, s.repo, attemptID, true)
	if err != nil {
		return nil, err
	}
	staff, err := s.authorizeRead(ctx, attempt, userID, "read")
	if err != nil {
		return nil, err
	}
	exam, err := loadExam(ctx, s.repo, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	reveal := attempt.IsSubmitted() && (staff || exam.ShowResultsImmediately)
	return s.buildView(ctx, exam, attempt, reveal)
}

// SaveAnswer stores the in-progress response to one question.
func (s *attemptService) SaveAnswer(ctx context.Context, attemptID, questionID uint, req *models.SaveAnswerRequest, studentID string) (*models.Answer, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var saved *models.Answer
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		attempt, err := s.loadAttempt(ctx, tx, attemptID, false)
		if err != nil {
			return err
		}
		if attempt.StudentID != studentID {
			return NewPermissionError(studentID, attemptID, "attempt", "answer", "attempt belongs to another student")
		}
		if attempt.IsSubmitted() {
			return ErrAlreadySubmitted
		}
		exam, err := loadExam(ctx, tx, attempt.ExamID)
		if err != nil {
			return err
		}
		if err := checkStudentDeadline(exam, attempt, now); err != nil {
			return err
		}

		if err := tx.Answer().UpdateResponse(ctx, attemptID, questionID, req.Response); err != nil {
			switch {
			case errors.Is(err, repositories.ErrConflict):
				return ErrAlreadySubmitted
			case errors.Is(err, repositories.ErrNotFound):
				return fmt.Errorf("%w: question %d is not part of attempt %d", ErrQuestionNotFound, questionID, attemptID)
			}
			return fmt.Errorf("failed to save answer: %w", err)
		}
		saved, err = tx.Answer().GetByAttemptAndQuestion(ctx, attemptID, questionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Answer saved", "attempt_id", attemptID, "question_id", questionID)
	return saved, nil
}

// RecordTabSwitch counts one tamper signal from the client.
func (s *attemptService) RecordTabSwitch(ctx context.Context, attemptID uint, studentID string) (int, error) {
	attempt, err := s.loadAttempt(ctx, s.repo, attemptID, false)
	if err != nil {
		return 0, err
	}
	if attempt.StudentID != studentID {
		return 0, NewPermissionError(studentID, attemptID, "attempt", "tab_switch", "attempt belongs to another student")
	}

	count, err := s.repo.Attempt().IncrementTabSwitch(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return 0, ErrAlreadySubmitted
		}
		return 0, fmt.Errorf("failed to record tab switch: %w", err)
	}

	s.logger.Info("Tab switch recorded", "attempt_id", attemptID, "student_id", studentID, "count", count)
	return count, nil
}

// ===== SUBMIT =====

// SubmitAttempt is the single entry point that closes an attempt. The first
// submission wins; every later call gets ErrAlreadySubmitted. Evaluation and
// aggregation run in the same transaction, before returning.
func (s *attemptService) SubmitAttempt(ctx context.Context, attemptID uint, studentID string, req *models.SubmitAttemptRequest, source models.SubmissionSource) (*models.Result, error) {
	now := s.clock.Now()
	s.logger.Info("Submitting attempt", "attempt_id", attemptID, "student_id", studentID, "source", source)

	if req != nil {
		if err := s.validator.Validate(req); err != nil {
			return nil, err
		}
	}

	// scope membership is read before the transaction; it is a remote call
	scope := s.scopeOf(ctx, studentID)

	var (
		exam    *models.Exam
		attempt *models.Attempt
		result  *models.Result
	)
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		attempt, err = s.loadAttempt(ctx, tx, attemptID, false)
		if err != nil {
			return err
		}
		if attempt.StudentID != studentID {
			return NewPermissionError(studentID, attemptID, "attempt", "submit", "attempt belongs to another student")
		}
		if attempt.IsSubmitted() {
			return ErrAlreadySubmitted
		}

		exam, err = loadExam(ctx, tx, attempt.ExamID)
		if err != nil {
			return err
		}
		if source == models.SubmittedByStudent {
			if err := checkStudentDeadline(exam, attempt, now); err != nil {
				return err
			}
		}

		if req != nil {
			for _, a := range req.Answers {
				if err := tx.Answer().UpdateResponse(ctx, attemptID, a.QuestionID, a.Response); err != nil {
					switch {
					case errors.Is(err, repositories.ErrConflict):
						return ErrAlreadySubmitted
					case errors.Is(err, repositories.ErrNotFound):
						return ValidationErrors{*NewValidationError("answers", "question is not part of this attempt", a.QuestionID)}
					}
					return fmt.Errorf("failed to record answer: %w", err)
				}
			}
		}

		if err := tx.Attempt().MarkSubmitted(ctx, attemptID, now, source); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				return ErrAlreadySubmitted
			}
			return fmt.Errorf("failed to mark attempt submitted: %w", err)
		}
		attempt.SubmittedAt = &now
		attempt.SubmissionSource = &source
		attempt.AutoSubmitted = source != models.SubmittedByStudent

		answers, err := s.evaluate(ctx, tx, exam, attemptID)
		if err != nil {
			return err
		}

		result = AggregateResult(exam, attempt, answers, scope, now)
		if err := tx.Result().Upsert(ctx, result); err != nil {
			return fmt.Errorf("failed to save result: %w", err)
		}
		if result.Status == models.ResultEvaluated && exam.IsCompetition() {
			if err := tx.Exam().RecordFinalizedScore(ctx, exam.ID, result.Score); err != nil {
				return fmt.Errorf("failed to update competition aggregates: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if isBenignSubmitError(err) {
			s.logger.Info("Attempt already submitted", "attempt_id", attemptID, "source", source)
		}
		return nil, err
	}

	s.logger.Info("Attempt submitted",
		"attempt_id", attemptID,
		"exam_id", exam.ID,
		"source", source,
		"auto_submitted", attempt.AutoSubmitted,
		"result_status", result.Status,
		"score", result.Score)

	s.publish(ctx, events.NewEvent(events.AttemptSubmitted, now, events.AttemptSubmittedData{
		AttemptID:     attemptID,
		ExamID:        exam.ID,
		StudentID:     attempt.StudentID,
		Source:        string(source),
		AutoSubmitted: attempt.AutoSubmitted,
		SubmittedAt:   now,
		ResultStatus:  string(result.Status),
	}))
	if result.Status == models.ResultEvaluated {
		s.finalized(ctx, result, now)
	}
	return result, nil
}

// evaluate grades every answer of the attempt. One answer that cannot be
// graded never stops the others.
func (s *attemptService) evaluate(ctx context.Context, tx repositories.Repository, exam *models.Exam, attemptID uint) ([]*models.Answer, error) {
	answers, err := tx.Answer().GetByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}

	ids := make([]uint, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.QuestionID)
	}
	questions, err := tx.Question().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	for _, ans := range answers {
		q, ok := byID[ans.QuestionID]
		if !ok {
			s.logger.Warn("Question missing from bank, scoring zero",
				"attempt_id", attemptID,
				"question_id", ans.QuestionID)
			malformed().Apply(ans)
			continue
		}
		EvaluateAnswer(exam, q, ans).Apply(ans)
	}

	if err := tx.Answer().UpdateGrades(ctx, answers); err != nil {
		return nil, fmt.Errorf("failed to save grades: %w", err)
	}
	return answers, nil
}

// ===== RESULTS =====

// GetResult returns the attempt's result with its current exam rank. An
// attempt that has not been submitted reports an in-progress result.
func (s *attemptService) GetResult(ctx context.Context, attemptID uint, userID string) (*models.Result, error) {
	attempt, err := s.loadAttempt(ctx, s.repo, attemptID, false)
	if err != nil {
		return nil, err
	}
	staff, err := s.authorizeRead(ctx, attempt, userID, "view_result")
	if err != nil {
		return nil, err
	}
	exam, err := loadExam(ctx, s.repo, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	if !attempt.IsSubmitted() {
		return &models.Result{
			AttemptID:   attempt.ID,
			ExamID:      attempt.ExamID,
			StudentID:   attempt.StudentID,
			Status:      models.ResultInProgress,
			SubmittedAt: attempt.StartedAt,
		}, nil
	}

	if !staff && !exam.ShowResultsImmediately && !isClosed(exam, s.clock.Now()) {
		return nil, NewBusinessRuleError("results_hidden", "results are released when the exam closes", map[string]interface{}{
			"exam_id":  exam.ID,
			"end_time": exam.EndTime,
		})
	}

	result, err := s.repo.Result().GetByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	if result.Status == models.ResultEvaluated {
		rank, err := s.ranking.ExamRank(ctx, result.ExamID, result.AttemptID)
		if err != nil {
			s.logger.Warn("Falling back to stored rank", "attempt_id", attemptID, "error", err)
		} else {
			result.Rank = rank
		}
	} else {
		result.Rank = nil
	}
	return result, nil
}

// ===== HELPERS =====

// finalized announces a result that reached evaluated and invalidates every
// ranking it takes part in.
func (s *attemptService) finalized(ctx context.Context, result *models.Result, at time.Time) {
	finalizeResult(ctx, s.publisher, s.ranking, s.logger, result, at)
}

func finalizeResult(ctx context.Context, publisher events.EventPublisher, ranking RankingService, logger *slog.Logger, result *models.Result, at time.Time) {
	event := events.NewEvent(events.ResultFinalized, at, events.ResultFinalizedData{
		AttemptID:  result.AttemptID,
		ExamID:     result.ExamID,
		StudentID:  result.StudentID,
		Score:      result.Score,
		Percentage: result.Percentage,
		IsPassed:   result.IsPassed,
	})
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish result event", "attempt_id", result.AttemptID, "error", err)
	}
	ranking.Invalidate(ctx, models.ScopesFor(result)...)
}

func (s *attemptService) publish(ctx context.Context, event *events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

func (s *attemptService) scopeOf(ctx context.Context, studentID string) scopeMembership {
	if s.identity == nil {
		return scopeMembership{}
	}
	user, err := s.identity.GetByID(ctx, studentID)
	if err != nil {
		s.logger.Warn("Scope membership unavailable, ranking by exam and global only",
			"student_id", studentID,
			"error", err)
		return scopeMembership{}
	}
	return scopeMembership{DepartmentID: user.DepartmentID, CollegeID: user.CollegeID}
}

// authorizeRead lets the owning student and staff read an attempt. It reports
// whether the reader is staff.
func (s *attemptService) authorizeRead(ctx context.Context, attempt *models.Attempt, userID, action string) (bool, error) {
	if attempt.StudentID == userID {
		return false, nil
	}
	if s.identity != nil {
		if user, err := s.identity.GetByID(ctx, userID); err == nil && user.IsStaff() {
			return true, nil
		}
	}
	return false, NewPermissionError(userID, attempt.ID, "attempt", action, "attempt belongs to another student")
}

func (s *attemptService) loadAttempt(ctx context.Context, repo repositories.Repository, id uint, withAnswers bool) (*models.Attempt, error) {
	var (
		attempt *models.Attempt
		err     error
	)
	if withAnswers {
		attempt, err = repo.Attempt().GetByIDWithAnswers(ctx, id)
	} else {
		attempt, err = repo.Attempt().GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

// buildView pairs the attempt with its questions in attempt order. Unless
// reveal is set, correctness data is stripped.
func (s *attemptService) buildView(ctx context.Context, exam *models.Exam, attempt *models.Attempt, reveal bool) (*models.AttemptView, error) {
	ids := make([]uint, 0, len(attempt.Answers))
	for _, a := range attempt.Answers {
		ids = append(ids, a.QuestionID)
	}
	questions, err := s.repo.Question().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	view := &models.AttemptView{
		Attempt:   attempt,
		Questions: make([]models.Question, 0, len(ids)),
		Deadline:  exam.AttemptDeadline(attempt.StartedAt),
	}
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			continue
		}
		if reveal {
			view.Questions = append(view.Questions, *q)
		} else {
			view.Questions = append(view.Questions, q.StudentView())
		}
	}
	return view, nil
}

// checkStudentDeadline rejects student writes once the exam is cancelled or
// the attempt's deadline has passed.
func checkStudentDeadline(exam *models.Exam, attempt *models.Attempt, now time.Time) error {
	if exam.Status == models.ExamCancelled {
		return fmt.Errorf("%w: exam %d was cancelled", ErrExamNotActive, exam.ID)
	}
	deadline := exam.AttemptDeadline(attempt.StartedAt)
	if !now.Before(deadline) {
		return fmt.Errorf("%w: deadline was %s", ErrDeadlineExceeded, deadline.Format(time.RFC3339))
	}
	return nil
}

func loadExam(ctx context.Context, repo repositories.Repository, id uint) (*models.Exam, error) {
	exam, err := repo.Exam().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}
