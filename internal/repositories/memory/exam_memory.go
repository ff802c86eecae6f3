package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
)

type examRepo struct {
	s    *Store
	inTx bool
}

func (r *examRepo) Create(ctx context.Context, exam *models.Exam) error {
	defer r.s.lock(r.inTx)()

	exam.ID = r.s.data.nextID()
	exam.CreatedAt = time.Now().UTC()
	exam.UpdatedAt = exam.CreatedAt
	for i := range exam.Questions {
		exam.Questions[i].ExamID = exam.ID
	}
	r.s.data.examQuestions[exam.ID] = append([]models.ExamQuestion(nil), exam.Questions...)
	stored := *exam
	stored.Questions = nil
	r.s.data.exams[exam.ID] = stored
	return nil
}

func (r *examRepo) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.load(id)
}

func (r *examRepo) load(id uint) (*models.Exam, error) {
	exam, ok := r.s.data.exams[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	exam.Questions = append([]models.ExamQuestion(nil), r.s.data.examQuestions[id]...)
	return &exam, nil
}

func (r *examRepo) Update(ctx context.Context, exam *models.Exam) error {
	defer r.s.lock(r.inTx)()
	if _, ok := r.s.data.exams[exam.ID]; !ok {
		return repositories.ErrNotFound
	}
	exam.UpdatedAt = time.Now().UTC()
	stored := *exam
	stored.Questions = nil
	r.s.data.exams[exam.ID] = stored
	return nil
}

func (r *examRepo) List(ctx context.Context, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Exam
	for id, exam := range r.s.data.exams {
		if filters.Kind != nil && exam.Kind != *filters.Kind {
			continue
		}
		if filters.Status != nil && exam.Status != *filters.Status {
			continue
		}
		if filters.DepartmentID != nil && (exam.DepartmentID == nil || *exam.DepartmentID != *filters.DepartmentID) {
			continue
		}
		if filters.CreatedBy != nil && exam.CreatedBy != *filters.CreatedBy {
			continue
		}
		e, _ := r.load(id)
		out = append(out, e)
	}

	desc := strings.ToLower(filters.SortOrder) != "asc"
	less := func(a, b *models.Exam) bool {
		switch filters.SortBy {
		case "start_time":
			return a.StartTime.Before(b.StartTime)
		case "title":
			return a.Title < b.Title
		}
		return a.ID < b.ID
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	total := int64(len(out))
	return paginate(out, filters.Offset, filters.Limit), total, nil
}

func (r *examRepo) TransitionStatus(ctx context.Context, id uint, from, to models.ExamStatus, at time.Time) error {
	defer r.s.lock(r.inTx)()
	exam, ok := r.s.data.exams[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if exam.Status != from {
		return repositories.ErrConflict
	}
	exam.Status = to
	if to == models.ExamCancelled {
		exam.CancelledAt = &at
	}
	exam.UpdatedAt = at
	r.s.data.exams[id] = exam
	return nil
}

func (r *examRepo) SetQuestions(ctx context.Context, examID uint, questionIDs []uint) error {
	defer r.s.lock(r.inTx)()
	if _, ok := r.s.data.exams[examID]; !ok {
		return repositories.ErrNotFound
	}
	refs := make([]models.ExamQuestion, 0, len(questionIDs))
	for i, qid := range questionIDs {
		refs = append(refs, models.ExamQuestion{ExamID: examID, QuestionID: qid, Position: i + 1})
	}
	r.s.data.examQuestions[examID] = refs
	return nil
}

func (r *examRepo) ListForNotification(ctx context.Context, now time.Time, limit int) ([]*models.Exam, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Exam
	for id, exam := range r.s.data.exams {
		switch exam.Status {
		case models.ExamScheduled, models.CompetitionApproved, models.CompetitionLive:
		default:
			continue
		}
		if exam.StartTime.After(now) {
			continue
		}
		if exam.NotifiedStatus != nil && *exam.NotifiedStatus == models.ExamCompleted {
			continue
		}
		e, _ := r.load(id)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, 0, limit), nil
}

func (r *examRepo) MarkNotified(ctx context.Context, id uint, status models.ExamStatus) error {
	defer r.s.lock(r.inTx)()
	exam, ok := r.s.data.exams[id]
	if !ok {
		return repositories.ErrNotFound
	}
	exam.NotifiedStatus = &status
	r.s.data.exams[id] = exam
	return nil
}

func (r *examRepo) RecordFinalizedScore(ctx context.Context, id uint, score float64) error {
	defer r.s.lock(r.inTx)()
	exam, ok := r.s.data.exams[id]
	if !ok {
		return repositories.ErrNotFound
	}
	n := float64(exam.TotalAttempts)
	exam.AverageScore = (exam.AverageScore*n + score) / (n + 1)
	exam.TotalAttempts++
	r.s.data.exams[id] = exam
	return nil
}

func (r *examRepo) AdjustFinalizedScore(ctx context.Context, id uint, delta float64) error {
	defer r.s.lock(r.inTx)()
	exam, ok := r.s.data.exams[id]
	if !ok || exam.TotalAttempts == 0 {
		return repositories.ErrNotFound
	}
	exam.AverageScore += delta / float64(exam.TotalAttempts)
	r.s.data.exams[id] = exam
	return nil
}

type questionRepo struct {
	s    *Store
	inTx bool
}

func (r *questionRepo) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q, ok := r.s.data.questions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &q, nil
}

func (r *questionRepo) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := r.s.data.questions[id]; ok {
			q := q
			out = append(out, &q)
		}
	}
	return out, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
