package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/cache"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
	inTx         bool

	// exam ids written inside the transaction, dropped from the cache once it commits
	staleExams []uint
}

func NewExamPostgreSQL(db *gorm.DB, caches *cache.CacheManager) *ExamPostgreSQL {
	return &ExamPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: caches,
	}
}

func (e *ExamPostgreSQL) Create(ctx context.Context, exam *models.Exam) error {
	return translateError(e.db.WithContext(ctx).Create(exam).Error)
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	fetch := func() (*models.Exam, error) {
		var exam models.Exam
		err := e.db.WithContext(ctx).
			Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
			First(&exam, id).Error
		if err != nil {
			return nil, translateError(err)
		}
		return &exam, nil
	}

	// Reads inside a transaction must see uncommitted state, never the cache.
	if e.inTx {
		return fetch()
	}

	return cache.ReadThrough(ctx, e.cacheManager.Exam, cache.IDKey(id), fetch)
}

func (e *ExamPostgreSQL) Update(ctx context.Context, exam *models.Exam) error {
	err := e.db.WithContext(ctx).Omit("Questions").Save(exam).Error
	e.invalidate(ctx, exam.ID)
	return translateError(err)
}

func (e *ExamPostgreSQL) List(ctx context.Context, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	var exams []*models.Exam
	var total int64

	query := e.db.WithContext(ctx).Model(&models.Exam{})
	query = e.helpers.ApplyExamFilters(query, filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = e.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, err
	}
	return exams, total, nil
}

func (e *ExamPostgreSQL) TransitionStatus(ctx context.Context, id uint, from, to models.ExamStatus, at time.Time) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	if to == models.ExamCancelled {
		updates["cancelled_at"] = at
	}

	result := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	e.invalidate(ctx, id)

	if result.RowsAffected == 0 {
		var count int64
		if err := e.db.WithContext(ctx).Model(&models.Exam{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return repositories.ErrNotFound
		}
		return repositories.ErrConflict
	}
	return nil
}

func (e *ExamPostgreSQL) SetQuestions(ctx context.Context, examID uint, questionIDs []uint) error {
	db := e.db.WithContext(ctx)
	if err := db.Where("exam_id = ?", examID).Delete(&models.ExamQuestion{}).Error; err != nil {
		return err
	}
	if len(questionIDs) > 0 {
		refs := make([]models.ExamQuestion, 0, len(questionIDs))
		for i, qid := range questionIDs {
			refs = append(refs, models.ExamQuestion{ExamID: examID, QuestionID: qid, Position: i + 1})
		}
		if err := db.Create(&refs).Error; err != nil {
			return translateError(err)
		}
	}
	e.invalidate(ctx, examID)
	return nil
}

func (e *ExamPostgreSQL) ListForNotification(ctx context.Context, now time.Time, limit int) ([]*models.Exam, error) {
	var exams []*models.Exam
	query := e.db.WithContext(ctx).
		Where("status IN ?", []models.ExamStatus{models.ExamScheduled, models.CompetitionApproved, models.CompetitionLive}).
		Where("start_time <= ?", now).
		Where("notified_status IS NULL OR notified_status <> ?", models.ExamCompleted).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&exams).Error; err != nil {
		return nil, err
	}
	return exams, nil
}

func (e *ExamPostgreSQL) MarkNotified(ctx context.Context, id uint, status models.ExamStatus) error {
	return e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Update("notified_status", status).Error
}

func (e *ExamPostgreSQL) RecordFinalizedScore(ctx context.Context, id uint, score float64) error {
	err := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"average_score":  gorm.Expr("(average_score * total_attempts + ?) / (total_attempts + 1)", score),
			"total_attempts": gorm.Expr("total_attempts + 1"),
		}).Error
	e.invalidate(ctx, id)
	return err
}

func (e *ExamPostgreSQL) AdjustFinalizedScore(ctx context.Context, id uint, delta float64) error {
	result := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ? AND total_attempts > 0", id).
		Update("average_score", gorm.Expr("average_score + CAST(? AS NUMERIC) / total_attempts", delta))
	if result.Error != nil {
		return result.Error
	}
	e.invalidate(ctx, id)
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// invalidate drops the cached exam now, or after commit inside a
// transaction so a concurrent read cannot re-cache uncommitted aggregates.
func (e *ExamPostgreSQL) invalidate(ctx context.Context, id uint) {
	if e.inTx {
		e.staleExams = append(e.staleExams, id)
		return
	}
	e.cacheManager.InvalidateExam(ctx, id)
}

func (e *ExamPostgreSQL) flushInvalidations(ctx context.Context) {
	for _, id := range e.staleExams {
		e.cacheManager.InvalidateExam(ctx, id)
	}
	e.staleExams = nil
}

// QuestionPostgreSQL reads the question bank tables. Writes belong to the
// question bank service.
type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, caches *cache.CacheManager) *QuestionPostgreSQL {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: caches,
	}
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	return cache.ReadThrough(ctx, q.cacheManager.Question, cache.IDKey(id), func() (*models.Question, error) {
		var question models.Question
		if err := q.db.WithContext(ctx).First(&question, id).Error; err != nil {
			return nil, translateError(err)
		}
		return &question, nil
	})
}

func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	var questions []*models.Question
	if len(ids) == 0 {
		return questions, nil
	}
	if err := q.db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}
