package postgres

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/cache"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	inTx         bool
}

func NewAttemptPostgreSQL(db *gorm.DB, caches *cache.CacheManager) *AttemptPostgreSQL {
	return &AttemptPostgreSQL{
		db:           db,
		cacheManager: caches,
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.Attempt) error {
	return translateError(a.db.WithContext(ctx).Omit("Answers").Create(attempt).Error)
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	fetch := func() (*models.Attempt, error) {
		var dbAttempt models.Attempt
		if err := a.db.WithContext(ctx).First(&dbAttempt, id).Error; err != nil {
			return nil, translateError(err)
		}
		return &dbAttempt, nil
	}
	if a.inTx {
		return fetch()
	}

	// Only submitted attempts are immutable enough to cache.
	var attempt models.Attempt
	if err := a.cacheManager.Attempt.Get(ctx, cache.IDKey(id), &attempt); err == nil {
		return &attempt, nil
	}
	dbAttempt, err := fetch()
	if err != nil {
		return nil, err
	}
	if dbAttempt.IsSubmitted() {
		if err := a.cacheManager.Attempt.Set(ctx, cache.IDKey(id), dbAttempt); err != nil {
			slog.WarnContext(ctx, "Failed to cache submitted attempt", "error", err, "attempt_id", id)
		}
	}
	return dbAttempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	err := a.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&attempt, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByExamAndStudent(ctx context.Context, examID uint, studentID string) (*models.Attempt, error) {
	var attempt models.Attempt
	err := a.db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&attempt).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) MarkSubmitted(ctx context.Context, id uint, at time.Time, source models.SubmissionSource) error {
	result := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND submitted_at IS NULL", id).
		Updates(map[string]interface{}{
			"submitted_at":      at,
			"submission_source": source,
			"auto_submitted":    source != models.SubmittedByStudent,
			"updated_at":        at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return a.missOrConflict(ctx, id)
	}
	return nil
}

func (a *AttemptPostgreSQL) IncrementTabSwitch(ctx context.Context, id uint) (int, error) {
	var attempt models.Attempt
	result := a.db.WithContext(ctx).
		Model(&attempt).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "tab_switch_count"}}}).
		Where("id = ? AND submitted_at IS NULL", id).
		Update("tab_switch_count", gorm.Expr("tab_switch_count + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, a.missOrConflict(ctx, id)
	}
	return attempt.TabSwitchCount, nil
}

func (a *AttemptPostgreSQL) missOrConflict(ctx context.Context, id uint) error {
	var count int64
	if err := a.db.WithContext(ctx).Model(&models.Attempt{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return repositories.ErrNotFound
	}
	return repositories.ErrConflict
}

// ListOverdue mirrors Exam.AttemptDeadline in SQL: the earlier of the exam end
// and started_at plus the duration.
func (a *AttemptPostgreSQL) ListOverdue(ctx context.Context, now time.Time, limit int) ([]repositories.OverdueAttempt, error) {
	var rows []struct {
		AttemptID uint
		ExamID    uint
		StudentID string
		Status    models.ExamStatus
	}

	query := a.db.WithContext(ctx).
		Table("attempts").
		Select("attempts.id AS attempt_id, attempts.exam_id, attempts.student_id, exams.status").
		Joins("JOIN exams ON exams.id = attempts.exam_id").
		Where("attempts.submitted_at IS NULL").
		Where(`exams.status = ? OR exams.end_time <= ? OR
			(exams.duration_minutes > 0 AND attempts.started_at + exams.duration_minutes * INTERVAL '1 minute' <= ?)`,
			models.ExamCancelled, now, now).
		Order("attempts.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]repositories.OverdueAttempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, repositories.OverdueAttempt{
			AttemptID: r.AttemptID,
			ExamID:    r.ExamID,
			StudentID: r.StudentID,
			Cancelled: r.Status == models.ExamCancelled,
		})
	}
	return out, nil
}

func (a *AttemptPostgreSQL) ListOpenByExam(ctx context.Context, examID uint) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	err := a.db.WithContext(ctx).
		Where("exam_id = ? AND submitted_at IS NULL", examID).
		Order("id ASC").
		Find(&attempts).Error
	return attempts, err
}

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) *AnswerPostgreSQL {
	return &AnswerPostgreSQL{db: db}
}

func (a *AnswerPostgreSQL) CreateBatch(ctx context.Context, answers []*models.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	return translateError(a.db.WithContext(ctx).CreateInBatches(answers, 100).Error)
}

func (a *AnswerPostgreSQL) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.Answer, error) {
	var answers []*models.Answer
	err := a.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("position ASC").
		Find(&answers).Error
	return answers, err
}

func (a *AnswerPostgreSQL) GetByAttemptAndQuestion(ctx context.Context, attemptID, questionID uint) (*models.Answer, error) {
	var answer models.Answer
	err := a.db.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) UpdateResponse(ctx context.Context, attemptID, questionID uint, response []byte) error {
	result := a.db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		Where("EXISTS (SELECT 1 FROM attempts WHERE attempts.id = answers.attempt_id AND attempts.submitted_at IS NULL)").
		Updates(map[string]interface{}{
			"response":   response,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var submitted int64
		if err := a.db.WithContext(ctx).Model(&models.Attempt{}).
			Where("id = ? AND submitted_at IS NOT NULL", attemptID).
			Count(&submitted).Error; err != nil {
			return err
		}
		if submitted > 0 {
			return repositories.ErrConflict
		}
		return repositories.ErrNotFound
	}
	return nil
}

func (a *AnswerPostgreSQL) UpdateGrades(ctx context.Context, answers []*models.Answer) error {
	db := a.db.WithContext(ctx)
	for _, ans := range answers {
		result := db.Model(&models.Answer{}).
			Where("id = ?", ans.ID).
			Select("is_evaluated", "is_correct", "marks_awarded", "feedback", "graded_by", "graded_at", "updated_at").
			Updates(&models.Answer{
				IsEvaluated:  ans.IsEvaluated,
				IsCorrect:    ans.IsCorrect,
				MarksAwarded: ans.MarksAwarded,
				Feedback:     ans.Feedback,
				GradedBy:     ans.GradedBy,
				GradedAt:     ans.GradedAt,
				UpdatedAt:    time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repositories.ErrNotFound
		}
	}
	return nil
}

func (a *AnswerPostgreSQL) ListPendingByExam(ctx context.Context, examID uint, limit, offset int) ([]*models.Answer, int64, error) {
	var answers []*models.Answer
	var total int64

	query := a.db.WithContext(ctx).
		Model(&models.Answer{}).
		Joins("JOIN attempts ON attempts.id = answers.attempt_id").
		Where("attempts.exam_id = ? AND attempts.submitted_at IS NOT NULL AND answers.is_evaluated = ?", examID, false)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("answers.attempt_id ASC, answers.position ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Select("answers.*").Find(&answers).Error; err != nil {
		return nil, 0, err
	}
	return answers, total, nil
}
