package services

import (
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

// scopeMembership is the department/college a result is ranked under.
type scopeMembership struct {
	DepartmentID *string
	CollegeID    *string
}

// AggregateResult folds an attempt's answers into a complete Result. Every
// derived field is recomputed; nothing from a previous aggregation is reused
// apart from identity and scope membership.
func AggregateResult(exam *models.Exam, attempt *models.Attempt, answers []*models.Answer, scope scopeMembership, now time.Time) *models.Result {
	result := &models.Result{
		AttemptID:    attempt.ID,
		ExamID:       exam.ID,
		StudentID:    attempt.StudentID,
		DepartmentID: scope.DepartmentID,
		CollegeID:    scope.CollegeID,
	}

	var sum float64
	allEvaluated := true
	for _, ans := range answers {
		sum += ans.MarksAwarded
		if !ans.IsEvaluated {
			allEvaluated = false
		}
	}
	if sum < 0 {
		sum = 0
	}

	result.Score = sum
	if exam.TotalMarks > 0 {
		result.Percentage = 100 * sum / exam.TotalMarks
	}
	result.IsPassed = sum >= exam.PassingMarks

	if attempt.SubmittedAt == nil {
		result.Status = models.ResultInProgress
		result.SubmittedAt = now
		return result
	}

	result.SubmittedAt = *attempt.SubmittedAt
	result.TotalTimeTakenMinutes = timeTakenMinutes(exam, attempt)
	if allEvaluated {
		result.Status = models.ResultEvaluated
		evaluatedAt := now
		result.EvaluatedAt = &evaluatedAt
	} else {
		result.Status = models.ResultPendingEvaluation
	}
	return result
}

func timeTakenMinutes(exam *models.Exam, attempt *models.Attempt) int {
	if attempt.AutoSubmitted {
		return exam.DurationMinutes
	}
	if attempt.SubmittedAt == nil {
		return 0
	}
	elapsed := attempt.SubmittedAt.Sub(attempt.StartedAt)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / time.Minute)
}
