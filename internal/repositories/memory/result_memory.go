package memory

import (
	"context"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
)

type resultRepo struct {
	s    *Store
	inTx bool
}

func (r *resultRepo) Upsert(ctx context.Context, result *models.Result) error {
	defer r.s.lock(r.inTx)()

	now := time.Now().UTC()
	if existing, ok := r.s.data.results[result.AttemptID]; ok {
		result.ID = existing.ID
		result.CreatedAt = existing.CreatedAt
		// rank fields belong to the ranking engine
		result.Rank = existing.Rank
		result.RankGeneration = existing.RankGeneration
	} else {
		result.ID = r.s.data.nextID()
		result.CreatedAt = now
	}
	result.UpdatedAt = now
	r.s.data.results[result.AttemptID] = *result
	return nil
}

func (r *resultRepo) GetByAttempt(ctx context.Context, attemptID uint) (*models.Result, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res, ok := r.s.data.results[attemptID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &res, nil
}

func (r *resultRepo) ListEvaluatedInScope(ctx context.Context, scope models.RankScope) ([]*models.Result, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	examID, isExam := scope.ExamID()
	var out []*models.Result
	for _, res := range r.s.data.results {
		if res.Status != models.ResultEvaluated {
			continue
		}
		switch scope.Type {
		case models.ScopeExam:
			if !isExam || res.ExamID != examID {
				continue
			}
		case models.ScopeDepartment:
			if res.DepartmentID == nil || *res.DepartmentID != scope.ID {
				continue
			}
		case models.ScopeCollege:
			if res.CollegeID == nil || *res.CollegeID != scope.ID {
				continue
			}
		}
		res := res
		out = append(out, &res)
	}
	return out, nil
}

func (r *resultRepo) UpdateRanks(ctx context.Context, ranks map[uint]int, generation int64) error {
	defer r.s.lock(r.inTx)()
	for attemptID, rank := range ranks {
		res, ok := r.s.data.results[attemptID]
		if !ok || res.RankGeneration > generation {
			continue
		}
		rank := rank
		res.Rank = &rank
		res.RankGeneration = generation
		r.s.data.results[attemptID] = res
	}
	return nil
}
