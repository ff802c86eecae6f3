package services

import (
	"testing"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

func graded(marks float64, evaluated bool) *models.Answer {
	return &models.Answer{MarksAwarded: marks, IsEvaluated: evaluated}
}

func TestAggregateResult(t *testing.T) {
	exam := &models.Exam{ID: 7, TotalMarks: 10, PassingMarks: 5, DurationMinutes: 60}
	started := t0
	submitted := t0.Add(42*time.Minute + 50*time.Second)

	tests := []struct {
		name        string
		answers     []*models.Answer
		auto        bool
		wantScore   float64
		wantPercent float64
		wantPassed  bool
		wantStatus  models.ResultStatus
		wantMinutes int
	}{
		{
			name:        "all correct",
			answers:     []*models.Answer{graded(5, true), graded(5, true)},
			wantScore:   10,
			wantPercent: 100,
			wantPassed:  true,
			wantStatus:  models.ResultEvaluated,
			wantMinutes: 42,
		},
		{
			name:        "negative marking",
			answers:     []*models.Answer{graded(5, true), graded(-1, true)},
			wantScore:   4,
			wantPercent: 40,
			wantPassed:  false,
			wantStatus:  models.ResultEvaluated,
			wantMinutes: 42,
		},
		{
			name:        "clamped at zero",
			answers:     []*models.Answer{graded(-1, true), graded(-1, true)},
			wantScore:   0,
			wantPercent: 0,
			wantStatus:  models.ResultEvaluated,
			wantMinutes: 42,
		},
		{
			name:        "pending subjective answer",
			answers:     []*models.Answer{graded(5, true), graded(0, false)},
			wantScore:   5,
			wantPercent: 50,
			wantPassed:  true,
			wantStatus:  models.ResultPendingEvaluation,
			wantMinutes: 42,
		},
		{
			name:        "auto-submitted uses full duration",
			answers:     []*models.Answer{graded(0, true)},
			auto:        true,
			wantStatus:  models.ResultEvaluated,
			wantMinutes: 60,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt := &models.Attempt{ID: 3, StudentID: "s", StartedAt: started, SubmittedAt: &submitted, AutoSubmitted: tt.auto}
			got := AggregateResult(exam, attempt, tt.answers, scopeMembership{DepartmentID: strPtr("cse")}, submitted)

			assertFloat(t, "Score", got.Score, tt.wantScore)
			assertFloat(t, "Percentage", got.Percentage, tt.wantPercent)
			if got.IsPassed != tt.wantPassed {
				t.Errorf("IsPassed = %v, want %v", got.IsPassed, tt.wantPassed)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", got.Status, tt.wantStatus)
			}
			if got.TotalTimeTakenMinutes != tt.wantMinutes {
				t.Errorf("TotalTimeTakenMinutes = %d, want %d", got.TotalTimeTakenMinutes, tt.wantMinutes)
			}
			if (got.EvaluatedAt != nil) != (tt.wantStatus == models.ResultEvaluated) {
				t.Errorf("EvaluatedAt = %v for status %s", got.EvaluatedAt, got.Status)
			}
			if got.DepartmentID == nil || *got.DepartmentID != "cse" {
				t.Errorf("DepartmentID = %v, want cse", got.DepartmentID)
			}
		})
	}
}

func TestAggregateResult_StatusFollowsAnswers(t *testing.T) {
	exam := &models.Exam{TotalMarks: 10, PassingMarks: 5}
	submitted := t0.Add(time.Minute)
	attempt := &models.Attempt{StartedAt: t0, SubmittedAt: &submitted}
	answers := []*models.Answer{graded(5, true), graded(5, true)}

	if got := AggregateResult(exam, attempt, answers, scopeMembership{}, submitted); got.Status != models.ResultEvaluated {
		t.Fatalf("Status = %s, want evaluated", got.Status)
	}

	// a regrade that reopens one answer flips the result back
	answers[1].IsEvaluated = false
	if got := AggregateResult(exam, attempt, answers, scopeMembership{}, submitted); got.Status != models.ResultPendingEvaluation {
		t.Fatalf("Status = %s, want pending_evaluation", got.Status)
	}
}

func TestAggregateResult_ZeroTotalMarks(t *testing.T) {
	submitted := t0
	got := AggregateResult(&models.Exam{}, &models.Attempt{StartedAt: t0, SubmittedAt: &submitted}, nil, scopeMembership{}, t0)
	if got.Percentage != 0 {
		t.Errorf("Percentage = %v, want 0", got.Percentage)
	}
}
