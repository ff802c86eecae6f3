package validator

import (
	"fmt"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

// BusinessValidator checks rules that span more than one field or depend on
// stored state.
type BusinessValidator struct {
	validator *Validator
}

func NewBusinessValidator(v *Validator) *BusinessValidator {
	if v == nil {
		v = New()
	}
	return &BusinessValidator{validator: v}
}

// ValidateExamCreate validates exam creation business rules
func (bv *BusinessValidator) ValidateExamCreate(req *models.ExamCreateRequest) ValidationErrors {
	var errors ValidationErrors

	if err := bv.validator.Validate(req); err != nil {
		if ve, ok := err.(ValidationErrors); ok {
			errors = append(errors, ve...)
		} else {
			errors = append(errors, ValidationError{Field: "request", Message: err.Error()})
		}
	}
	if len(errors) > 0 {
		return errors
	}

	return append(errors, bv.ValidateSchedule(req.StartTime, req.EndTime, req.DurationMinutes, req.TotalMarks, req.PassingMarks)...)
}

// ValidateExamUpdate validates an update against the merged exam
func (bv *BusinessValidator) ValidateExamUpdate(req *models.ExamUpdateRequest, merged *models.Exam) ValidationErrors {
	var errors ValidationErrors

	if err := bv.validator.Validate(req); err != nil {
		if ve, ok := err.(ValidationErrors); ok {
			return append(errors, ve...)
		}
		return append(errors, ValidationError{Field: "request", Message: err.Error()})
	}

	return append(errors, bv.ValidateSchedule(merged.StartTime, merged.EndTime, merged.DurationMinutes, merged.TotalMarks, merged.PassingMarks)...)
}

// ValidateSchedule enforces the exam schedule and scoring invariants.
func (bv *BusinessValidator) ValidateSchedule(start, end time.Time, durationMinutes int, totalMarks, passingMarks float64) ValidationErrors {
	var errors ValidationErrors

	if !end.After(start) {
		errors = append(errors, ValidationError{
			Field:   "end_time",
			Message: "must be after start_time",
			Value:   end,
			Rule:    "schedule",
		})
	} else if window := end.Sub(start); time.Duration(durationMinutes)*time.Minute > window {
		errors = append(errors, ValidationError{
			Field:   "duration_minutes",
			Message: fmt.Sprintf("must not exceed the exam window of %d minutes", int(window.Minutes())),
			Value:   durationMinutes,
			Rule:    "schedule",
		})
	}

	if durationMinutes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "duration_minutes",
			Message: "must be positive",
			Value:   durationMinutes,
			Rule:    "schedule",
		})
	}

	if totalMarks <= 0 {
		errors = append(errors, ValidationError{
			Field:   "total_marks",
			Message: "must be positive",
			Value:   totalMarks,
			Rule:    "scoring",
		})
	}

	if passingMarks < 0 || passingMarks > totalMarks {
		errors = append(errors, ValidationError{
			Field:   "passing_marks",
			Message: "must be between 0 and total_marks",
			Value:   passingMarks,
			Rule:    "scoring",
		})
	}

	return errors
}

// ValidatePublish checks that an exam is complete enough to be published.
func (bv *BusinessValidator) ValidatePublish(exam *models.Exam) ValidationErrors {
	errors := bv.ValidateSchedule(exam.StartTime, exam.EndTime, exam.DurationMinutes, exam.TotalMarks, exam.PassingMarks)

	if len(exam.Questions) == 0 {
		errors = append(errors, ValidationError{
			Field:   "questions",
			Message: "exam must have at least one question before publishing",
			Value:   0,
			Rule:    "publish",
		})
	}

	return errors
}
