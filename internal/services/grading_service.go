package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/clock"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/events"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	identity  repositories.IdentityRepository
	clock     clock.Clock
	validator *validator.Validator
	publisher events.EventPublisher
	ranking   RankingService
	logger    *slog.Logger
}

func NewGradingService(repo repositories.Repository, identity repositories.IdentityRepository, clk clock.Clock, v *validator.Validator, publisher events.EventPublisher, ranking RankingService, logger *slog.Logger) GradingService {
	return &gradingService{
		repo:      repo,
		identity:  identity,
		clock:     clk,
		validator: v,
		publisher: publisher,
		ranking:   ranking,
		logger:    logger,
	}
}

// ===== MANUAL GRADING =====

// GradeAnswer is the only writer of subjective grades. Marks outside
// 0..question.marks are rejected with ErrInvalidGrade before anything is
// written. The grade and the re-aggregated result commit together.
func (s *gradingService) GradeAnswer(ctx context.Context, attemptID, questionID uint, req *models.GradeAnswerRequest, graderID string) (*models.Answer, *models.Result, error) {
	s.logger.Info("Manually grading answer",
		"attempt_id", attemptID,
		"question_id", questionID,
		"marks", req.MarksAwarded,
		"grader_id", graderID)

	if err := s.validator.Validate(req); err != nil {
		if req.MarksAwarded < 0 {
			return nil, nil, fmt.Errorf("%w: marks must not be negative", ErrInvalidGrade)
		}
		return nil, nil, err
	}
	if err := s.checkGrader(ctx, graderID, attemptID); err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	var (
		graded   *models.Answer
		result   *models.Result
		previous *models.Result
	)
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		attempt, err := tx.Attempt().GetByID(ctx, attemptID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}
		if !attempt.IsSubmitted() {
			return ErrAttemptNotSubmitted
		}

		answer, err := tx.Answer().GetByAttemptAndQuestion(ctx, attemptID, questionID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: question %d is not part of attempt %d", ErrQuestionNotFound, questionID, attemptID)
			}
			return fmt.Errorf("failed to get answer: %w", err)
		}
		question, err := tx.Question().GetByID(ctx, questionID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrQuestionNotFound
			}
			return fmt.Errorf("failed to get question: %w", err)
		}
		if question.Type.IsObjective() {
			return fmt.Errorf("%w: %s questions cannot be graded manually", ErrGradingNotAllowed, question.Type)
		}
		if req.MarksAwarded > question.Marks {
			return fmt.Errorf("%w: %.2f exceeds the question's %.2f marks", ErrInvalidGrade, req.MarksAwarded, question.Marks)
		}

		exam, err := loadExam(ctx, tx, attempt.ExamID)
		if err != nil {
			return err
		}

		grader := graderID
		gradedAt := now
		models.AnswerGrade{
			IsEvaluated:  true,
			IsCorrect:    req.IsCorrect,
			MarksAwarded: req.MarksAwarded,
			Feedback:     req.Feedback,
			GradedBy:     &grader,
			GradedAt:     &gradedAt,
		}.Apply(answer)
		if err := tx.Answer().UpdateGrades(ctx, []*models.Answer{answer}); err != nil {
			return fmt.Errorf("failed to save grade: %w", err)
		}
		graded = answer

		previous, err = tx.Result().GetByAttempt(ctx, attemptID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("failed to get result: %w", err)
		}
		scope := scopeMembership{}
		if previous != nil {
			scope = scopeMembership{DepartmentID: previous.DepartmentID, CollegeID: previous.CollegeID}
		}

		answers, err := tx.Answer().GetByAttempt(ctx, attemptID)
		if err != nil {
			return fmt.Errorf("failed to load answers: %w", err)
		}
		result = AggregateResult(exam, attempt, answers, scope, now)
		if err := tx.Result().Upsert(ctx, result); err != nil {
			return fmt.Errorf("failed to save result: %w", err)
		}

		if !exam.IsCompetition() {
			return nil
		}
		switch {
		case firstFinalization(previous, result):
			if err := tx.Exam().RecordFinalizedScore(ctx, exam.ID, result.Score); err != nil {
				return fmt.Errorf("failed to update competition aggregates: %w", err)
			}
		case previous != nil && previous.Status == models.ResultEvaluated && result.Score != previous.Score:
			if err := tx.Exam().AdjustFinalizedScore(ctx, exam.ID, result.Score-previous.Score); err != nil {
				return fmt.Errorf("failed to update competition aggregates: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidGrade) {
			s.logger.Warn("Grade rejected", "attempt_id", attemptID, "question_id", questionID, "reason", err)
		}
		return nil, nil, err
	}

	s.logger.Info("Answer graded",
		"attempt_id", attemptID,
		"question_id", questionID,
		"marks", graded.MarksAwarded,
		"result_status", result.Status,
		"score", result.Score)

	event := events.NewEvent(events.AnswerGraded, now, events.AnswerGradedData{
		AttemptID:    attemptID,
		QuestionID:   questionID,
		MarksAwarded: graded.MarksAwarded,
		GradedBy:     graderID,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish grade event", "attempt_id", attemptID, "error", err)
	}

	switch {
	case firstFinalization(previous, result):
		finalizeResult(ctx, s.publisher, s.ranking, s.logger, result, now)
	case result.Status == models.ResultEvaluated:
		// a regrade of an evaluated result can move it in every ranking
		s.ranking.Invalidate(ctx, models.ScopesFor(result)...)
	}
	return graded, result, nil
}

func firstFinalization(previous, current *models.Result) bool {
	if current.Status != models.ResultEvaluated {
		return false
	}
	return previous == nil || previous.Status != models.ResultEvaluated
}

// checkGrader requires staff when an identity provider is configured.
func (s *gradingService) checkGrader(ctx context.Context, graderID string, attemptID uint) error {
	if s.identity == nil {
		return nil
	}
	user, err := s.identity.GetByID(ctx, graderID)
	if err != nil {
		return fmt.Errorf("failed to resolve grader: %w", err)
	}
	if !user.IsStaff() {
		return NewPermissionError(graderID, attemptID, "attempt", "grade", "only faculty can grade answers")
	}
	return nil
}

// ListPendingAnswers is the grading queue of an exam: submitted answers that
// still wait for a manual grade.
func (s *gradingService) ListPendingAnswers(ctx context.Context, examID uint, page, size int) (*models.PaginatedResponse, error) {
	if _, err := loadExam(ctx, s.repo, examID); err != nil {
		return nil, err
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	if page < 0 {
		page = 0
	}

	answers, total, err := s.repo.Answer().ListPendingByExam(ctx, examID, size, page*size)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending answers: %w", err)
	}
	return paginated(answers, total, page, size), nil
}
