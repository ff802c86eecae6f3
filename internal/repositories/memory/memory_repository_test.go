package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
)

func newTestRepo(t *testing.T) (*Repository, *models.Exam) {
	t.Helper()
	repo := NewRepository()
	start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	exam := &models.Exam{
		Title:           "Algebra",
		Kind:            models.ExamKindStandard,
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
		DurationMinutes: 60,
		TotalMarks:      10,
		Status:          models.ExamScheduled,
		CreatedBy:       "faculty-1",
	}
	if err := repo.Exam().Create(context.Background(), exam); err != nil {
		t.Fatalf("create exam: %v", err)
	}
	return repo, exam
}

func TestAttemptRepo_UniquePerExamAndStudent(t *testing.T) {
	repo, exam := newTestRepo(t)
	ctx := context.Background()

	first := &models.Attempt{ExamID: exam.ID, StudentID: "s1", StartedAt: exam.StartTime}
	if err := repo.Attempt().Create(ctx, first); err != nil {
		t.Fatalf("first create: %v", err)
	}
	second := &models.Attempt{ExamID: exam.ID, StudentID: "s1", StartedAt: exam.StartTime}
	if err := repo.Attempt().Create(ctx, second); !errors.Is(err, repositories.ErrDuplicate) {
		t.Fatalf("second create error = %v, want ErrDuplicate", err)
	}
}

func TestAttemptRepo_MarkSubmittedOnlyOnce(t *testing.T) {
	repo, exam := newTestRepo(t)
	ctx := context.Background()

	a := &models.Attempt{ExamID: exam.ID, StudentID: "s1", StartedAt: exam.StartTime}
	if err := repo.Attempt().Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	at := exam.StartTime.Add(10 * time.Minute)
	if err := repo.Attempt().MarkSubmitted(ctx, a.ID, at, models.SubmittedByDeadline); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := repo.Attempt().MarkSubmitted(ctx, a.ID, at, models.SubmittedByStudent); !errors.Is(err, repositories.ErrConflict) {
		t.Fatalf("second submit error = %v, want ErrConflict", err)
	}

	got, _ := repo.Attempt().GetByID(ctx, a.ID)
	if !got.AutoSubmitted || *got.SubmissionSource != models.SubmittedByDeadline {
		t.Errorf("attempt = %+v, want auto-submitted by deadline", got)
	}
}

func TestRepository_WithTransactionRollsBack(t *testing.T) {
	repo, exam := newTestRepo(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		a := &models.Attempt{ExamID: exam.ID, StudentID: "s1", StartedAt: exam.StartTime}
		if err := tx.Attempt().Create(ctx, a); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTransaction error = %v, want boom", err)
	}
	if _, err := repo.Attempt().GetByExamAndStudent(ctx, exam.ID, "s1"); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("attempt survived rollback, err = %v", err)
	}
}

func TestAttemptRepo_ListOverdue(t *testing.T) {
	repo, exam := newTestRepo(t)
	ctx := context.Background()

	early := &models.Attempt{ExamID: exam.ID, StudentID: "early", StartedAt: exam.StartTime}
	late := &models.Attempt{ExamID: exam.ID, StudentID: "late", StartedAt: exam.StartTime.Add(90 * time.Minute)}
	for _, a := range []*models.Attempt{early, late} {
		if err := repo.Attempt().Create(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{name: "inside both limits", now: exam.StartTime.Add(30 * time.Minute), want: 0},
		{name: "duration elapsed for early starter", now: exam.StartTime.Add(61 * time.Minute), want: 1},
		{name: "exam window closed", now: exam.EndTime, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Attempt().ListOverdue(ctx, tt.now, 100)
			if err != nil {
				t.Fatalf("ListOverdue: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("overdue = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestExamRepo_RecordFinalizedScore(t *testing.T) {
	repo, exam := newTestRepo(t)
	ctx := context.Background()

	for _, score := range []float64{8, 4, 6} {
		if err := repo.Exam().RecordFinalizedScore(ctx, exam.ID, score); err != nil {
			t.Fatalf("RecordFinalizedScore: %v", err)
		}
	}
	got, _ := repo.Exam().GetByID(ctx, exam.ID)
	if got.TotalAttempts != 3 || got.AverageScore != 6 {
		t.Errorf("aggregates = (%d, %v), want (3, 6)", got.TotalAttempts, got.AverageScore)
	}
}

func TestExamRepo_AdjustFinalizedScore(t *testing.T) {
	repo, exam := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Exam().AdjustFinalizedScore(ctx, exam.ID, 2); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("adjust with no finalized scores: err = %v, want ErrNotFound", err)
	}
	for _, score := range []float64{8, 4} {
		if err := repo.Exam().RecordFinalizedScore(ctx, exam.ID, score); err != nil {
			t.Fatalf("RecordFinalizedScore: %v", err)
		}
	}
	// 4 regraded to 6
	if err := repo.Exam().AdjustFinalizedScore(ctx, exam.ID, 2); err != nil {
		t.Fatalf("AdjustFinalizedScore: %v", err)
	}
	got, _ := repo.Exam().GetByID(ctx, exam.ID)
	if got.TotalAttempts != 2 || got.AverageScore != 7 {
		t.Errorf("aggregates = (%d, %v), want (2, 7)", got.TotalAttempts, got.AverageScore)
	}
}

func TestRepository_RollbackKeepsWritesOutsideTransaction(t *testing.T) {
	repo, exam := newTestRepo(t)
	ctx := context.Background()

	a := &models.Attempt{ExamID: exam.ID, StudentID: "s1", StartedAt: exam.StartTime}
	if err := repo.Attempt().Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	started := make(chan struct{})
	done := make(chan error, 1)
	err := repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		go func() {
			close(started)
			if _, err := repo.Attempt().IncrementTabSwitch(ctx, a.ID); err != nil {
				done <- err
				return
			}
			done <- repo.Exam().TransitionStatus(ctx, exam.ID, models.ExamScheduled, models.ExamCancelled, exam.StartTime)
		}()
		<-started
		// give the outside writer a chance to run while the transaction is open
		time.Sleep(20 * time.Millisecond)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTransaction error = %v, want boom", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("outside write: %v", err)
	}

	got, _ := repo.Attempt().GetByID(ctx, a.ID)
	if got.TabSwitchCount != 1 {
		t.Errorf("TabSwitchCount = %d, want 1", got.TabSwitchCount)
	}
	stored, _ := repo.Exam().GetByID(ctx, exam.ID)
	if stored.Status != models.ExamCancelled {
		t.Errorf("Status = %s, want cancelled", stored.Status)
	}
}
