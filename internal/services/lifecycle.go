package services

import (
	"fmt"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

// DeriveStatus computes the externally visible status of an exam from its
// stored status and the current time. It never fails.
//
// Only administrator-controlled states are stored. ongoing, live and
// completed are derived from the schedule so they can never drift from the
// clock.
func DeriveStatus(exam *models.Exam, now time.Time) models.ExamStatus {
	switch exam.Status {
	case models.ExamScheduled, models.CompetitionApproved, models.CompetitionLive:
	default:
		return exam.Status
	}

	switch {
	case !now.Before(exam.EndTime):
		return models.ExamCompleted
	case !now.Before(exam.StartTime):
		if exam.IsCompetition() {
			return models.CompetitionLive
		}
		return models.ExamOngoing
	default:
		return exam.Status
	}
}

// isClosed reports whether an exam will take no further submissions, either
// because its window ended or because it was cancelled.
func isClosed(exam *models.Exam, now time.Time) bool {
	switch DeriveStatus(exam, now) {
	case models.ExamCompleted, models.ExamCancelled:
		return true
	}
	return false
}

// IsAcceptingAttempts reports whether new attempts may begin.
func IsAcceptingAttempts(exam *models.Exam, now time.Time) bool {
	switch DeriveStatus(exam, now) {
	case models.ExamOngoing, models.CompetitionLive:
		return true
	}
	return false
}

type lifecycleAction string

const (
	actionPublish lifecycleAction = "publish"
	actionApprove lifecycleAction = "approve"
	actionGoLive  lifecycleAction = "go_live"
	actionCancel  lifecycleAction = "cancel"
)

type transitionRule struct {
	from []models.ExamStatus
	to   models.ExamStatus
}

var transitions = map[models.ExamKind]map[lifecycleAction]transitionRule{
	models.ExamKindStandard: {
		actionPublish: {from: []models.ExamStatus{models.ExamDraft}, to: models.ExamScheduled},
		actionCancel: {
			from: []models.ExamStatus{models.ExamDraft, models.ExamScheduled},
			to:   models.ExamCancelled,
		},
	},
	models.ExamKindCompetition: {
		actionPublish: {from: []models.ExamStatus{models.CompetitionPending}, to: models.CompetitionPublished},
		actionApprove: {from: []models.ExamStatus{models.CompetitionPublished}, to: models.CompetitionApproved},
		actionGoLive:  {from: []models.ExamStatus{models.CompetitionApproved}, to: models.CompetitionLive},
		actionCancel: {
			from: []models.ExamStatus{
				models.CompetitionPending,
				models.CompetitionPublished,
				models.CompetitionApproved,
				models.CompetitionLive,
			},
			to: models.ExamCancelled,
		},
	},
}

// nextStatus returns the stored status an action moves the exam to, or an
// ErrInvalidTransition wrapping error. It does not mutate the exam.
func nextStatus(exam *models.Exam, action lifecycleAction, now time.Time) (models.ExamStatus, error) {
	rule, ok := transitions[exam.Kind][action]
	if !ok {
		return "", fmt.Errorf("%w: %s is not defined for %s exams", ErrInvalidTransition, action, exam.Kind)
	}

	derived := DeriveStatus(exam, now)
	if derived == models.ExamCompleted {
		return "", fmt.Errorf("%w: cannot %s a completed exam", ErrInvalidTransition, action)
	}

	allowed := false
	for _, s := range rule.from {
		if exam.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, derived)
	}

	if action == actionGoLive && now.Before(exam.StartTime) {
		return "", fmt.Errorf("%w: competition window opens at %s", ErrInvalidTransition, exam.StartTime.Format(time.RFC3339))
	}

	return rule.to, nil
}

// initialStatus is the stored status of a newly created exam.
func initialStatus(kind models.ExamKind) models.ExamStatus {
	if kind == models.ExamKindCompetition {
		return models.CompetitionPending
	}
	return models.ExamDraft
}

// isEditable reports whether schedule, scoring and question set may still change.
func isEditable(exam *models.Exam, now time.Time) bool {
	switch DeriveStatus(exam, now) {
	case models.ExamDraft, models.ExamScheduled, models.CompetitionPending, models.CompetitionPublished:
		return true
	}
	return false
}
