package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
)

type ResultPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewResultPostgreSQL(db *gorm.DB) *ResultPostgreSQL {
	return &ResultPostgreSQL{db: db, helpers: NewSharedHelpers(db)}
}

// Upsert never touches rank columns; those are owned by UpdateRanks.
func (r *ResultPostgreSQL) Upsert(ctx context.Context, result *models.Result) error {
	err := r.db.WithContext(ctx).
		Omit("rank", "rank_generation").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "attempt_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"exam_id", "student_id", "department_id", "college_id",
				"score", "percentage", "is_passed", "status",
				"total_time_taken_minutes", "submitted_at", "evaluated_at", "updated_at",
			}),
		}).
		Create(result).Error
	return translateError(err)
}

func (r *ResultPostgreSQL) GetByAttempt(ctx context.Context, attemptID uint) (*models.Result, error) {
	var result models.Result
	if err := r.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&result).Error; err != nil {
		return nil, translateError(err)
	}
	return &result, nil
}

func (r *ResultPostgreSQL) ListEvaluatedInScope(ctx context.Context, scope models.RankScope) ([]*models.Result, error) {
	var results []*models.Result
	query := r.db.WithContext(ctx).Where("status = ?", models.ResultEvaluated)
	query = r.helpers.ApplyScope(query, scope)
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateRanks skips rows already ranked by a newer generation.
func (r *ResultPostgreSQL) UpdateRanks(ctx context.Context, ranks map[uint]int, generation int64) error {
	if len(ranks) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for attemptID, rank := range ranks {
			err := tx.Model(&models.Result{}).
				Where("attempt_id = ? AND rank_generation <= ?", attemptID, generation).
				Updates(map[string]interface{}{
					"rank":            rank,
					"rank_generation": generation,
					"updated_at":      now,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

var _ repositories.ResultRepository = (*ResultPostgreSQL)(nil)
