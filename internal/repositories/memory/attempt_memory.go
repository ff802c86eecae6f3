package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
)

type attemptRepo struct {
	s    *Store
	inTx bool
}

func (r *attemptRepo) Create(ctx context.Context, attempt *models.Attempt) error {
	defer r.s.lock(r.inTx)()

	key := attemptKey(attempt.ExamID, attempt.StudentID)
	if _, exists := r.s.data.attemptKeys[key]; exists {
		return repositories.ErrDuplicate
	}
	attempt.ID = r.s.data.nextID()
	attempt.CreatedAt = time.Now().UTC()
	attempt.UpdatedAt = attempt.CreatedAt
	stored := *attempt
	stored.Answers = nil
	r.s.data.attempts[attempt.ID] = stored
	r.s.data.attemptKeys[key] = attempt.ID
	return nil
}

func (r *attemptRepo) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.data.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (r *attemptRepo) GetByIDWithAnswers(ctx context.Context, id uint) (*models.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.data.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	for _, ans := range answersOf(r.s, id) {
		a.Answers = append(a.Answers, *ans)
	}
	return &a, nil
}

func (r *attemptRepo) GetByExamAndStudent(ctx context.Context, examID uint, studentID string) (*models.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.data.attemptKeys[attemptKey(examID, studentID)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	a := r.s.data.attempts[id]
	return &a, nil
}

func (r *attemptRepo) MarkSubmitted(ctx context.Context, id uint, at time.Time, source models.SubmissionSource) error {
	defer r.s.lock(r.inTx)()
	a, ok := r.s.data.attempts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if a.SubmittedAt != nil {
		return repositories.ErrConflict
	}
	a.SubmittedAt = &at
	a.SubmissionSource = &source
	a.AutoSubmitted = source != models.SubmittedByStudent
	a.UpdatedAt = at
	r.s.data.attempts[id] = a
	return nil
}

func (r *attemptRepo) IncrementTabSwitch(ctx context.Context, id uint) (int, error) {
	defer r.s.lock(r.inTx)()
	a, ok := r.s.data.attempts[id]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	if a.SubmittedAt != nil {
		return 0, repositories.ErrConflict
	}
	a.TabSwitchCount++
	r.s.data.attempts[id] = a
	return a.TabSwitchCount, nil
}

func (r *attemptRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]repositories.OverdueAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []repositories.OverdueAttempt
	for _, a := range r.s.data.attempts {
		if a.SubmittedAt != nil {
			continue
		}
		exam, ok := r.s.data.exams[a.ExamID]
		if !ok {
			continue
		}
		cancelled := exam.Status == models.ExamCancelled
		if !cancelled && now.Before(exam.AttemptDeadline(a.StartedAt)) {
			continue
		}
		out = append(out, repositories.OverdueAttempt{
			AttemptID: a.ID,
			ExamID:    a.ExamID,
			StudentID: a.StudentID,
			Cancelled: cancelled,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptID < out[j].AttemptID })
	return paginate(out, 0, limit), nil
}

func (r *attemptRepo) ListOpenByExam(ctx context.Context, examID uint) ([]*models.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.Attempt
	for _, a := range r.s.data.attempts {
		if a.ExamID == examID && a.SubmittedAt == nil {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type answerRepo struct {
	s    *Store
	inTx bool
}

func answersOf(s *Store, attemptID uint) []*models.Answer {
	var out []*models.Answer
	for _, ans := range s.data.answers {
		if ans.AttemptID == attemptID {
			ans := ans
			out = append(out, &ans)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (r *answerRepo) CreateBatch(ctx context.Context, answers []*models.Answer) error {
	defer r.s.lock(r.inTx)()
	for _, ans := range answers {
		for _, existing := range r.s.data.answers {
			if existing.AttemptID == ans.AttemptID && existing.QuestionID == ans.QuestionID {
				return repositories.ErrDuplicate
			}
		}
		ans.ID = r.s.data.nextID()
		ans.UpdatedAt = time.Now().UTC()
		r.s.data.answers[ans.ID] = *ans
	}
	return nil
}

func (r *answerRepo) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.Answer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return answersOf(r.s, attemptID), nil
}

func (r *answerRepo) GetByAttemptAndQuestion(ctx context.Context, attemptID, questionID uint) (*models.Answer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, ans := range r.s.data.answers {
		if ans.AttemptID == attemptID && ans.QuestionID == questionID {
			return &ans, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *answerRepo) UpdateResponse(ctx context.Context, attemptID, questionID uint, response []byte) error {
	defer r.s.lock(r.inTx)()
	if a, ok := r.s.data.attempts[attemptID]; ok && a.SubmittedAt != nil {
		return repositories.ErrConflict
	}
	for id, ans := range r.s.data.answers {
		if ans.AttemptID == attemptID && ans.QuestionID == questionID {
			ans.Response = append([]byte(nil), response...)
			ans.UpdatedAt = time.Now().UTC()
			r.s.data.answers[id] = ans
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (r *answerRepo) UpdateGrades(ctx context.Context, answers []*models.Answer) error {
	defer r.s.lock(r.inTx)()
	for _, ans := range answers {
		stored, ok := r.s.data.answers[ans.ID]
		if !ok {
			return repositories.ErrNotFound
		}
		stored.IsEvaluated = ans.IsEvaluated
		stored.IsCorrect = ans.IsCorrect
		stored.MarksAwarded = ans.MarksAwarded
		stored.Feedback = ans.Feedback
		stored.GradedBy = ans.GradedBy
		stored.GradedAt = ans.GradedAt
		stored.UpdatedAt = time.Now().UTC()
		r.s.data.answers[ans.ID] = stored
	}
	return nil
}

func (r *answerRepo) ListPendingByExam(ctx context.Context, examID uint, limit, offset int) ([]*models.Answer, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.Answer
	for _, ans := range r.s.data.answers {
		a, ok := r.s.data.attempts[ans.AttemptID]
		if !ok || a.ExamID != examID || a.SubmittedAt == nil || ans.IsEvaluated {
			continue
		}
		ans := ans
		out = append(out, &ans)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AttemptID != out[j].AttemptID {
			return out[i].AttemptID < out[j].AttemptID
		}
		return out[i].Position < out[j].Position
	})
	return paginate(out, offset, limit), int64(len(out)), nil
}
