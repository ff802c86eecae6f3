package validator

import (
	"errors"
	"testing"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

func validCreate() *models.ExamCreateRequest {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return &models.ExamCreateRequest{
		Title:           "Data Structures Midterm",
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
		DurationMinutes: 90,
		TotalMarks:      50,
		PassingMarks:    20,
	}
}

func TestValidateExamCreate(t *testing.T) {
	bv := NewBusinessValidator(New())

	tests := []struct {
		name      string
		mutate    func(r *models.ExamCreateRequest)
		wantField string
	}{
		{name: "valid", mutate: func(r *models.ExamCreateRequest) {}},
		{name: "blank title", mutate: func(r *models.ExamCreateRequest) { r.Title = "   " }, wantField: "title"},
		{name: "end before start", mutate: func(r *models.ExamCreateRequest) { r.EndTime = r.StartTime.Add(-time.Minute) }, wantField: "end_time"},
		{name: "duration longer than window", mutate: func(r *models.ExamCreateRequest) { r.DurationMinutes = 121 }, wantField: "duration_minutes"},
		{name: "passing above total", mutate: func(r *models.ExamCreateRequest) { r.PassingMarks = 60 }, wantField: "passing_marks"},
		{name: "duplicate questions", mutate: func(r *models.ExamCreateRequest) { r.QuestionIDs = []uint{1, 1} }, wantField: "question_ids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.mutate(req)
			errs := bv.ValidateExamCreate(req)

			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("unexpected errors: %v", errs)
				}
				return
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Fatalf("errors %+v do not mention %s", errs, tt.wantField)
			}
		})
	}
}

func TestValidatePublishRequiresQuestions(t *testing.T) {
	bv := NewBusinessValidator(nil)
	req := validCreate()
	exam := &models.Exam{
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      req.TotalMarks,
		PassingMarks:    req.PassingMarks,
	}

	errs := bv.ValidatePublish(exam)
	if len(errs) != 1 || errs[0].Field != "questions" {
		t.Fatalf("ValidatePublish() = %+v, want questions error", errs)
	}

	exam.Questions = []models.ExamQuestion{{QuestionID: 1, Position: 1}}
	if errs := bv.ValidatePublish(exam); len(errs) != 0 {
		t.Fatalf("ValidatePublish() = %+v, want none", errs)
	}
}

func TestValidateReturnsValidationErrors(t *testing.T) {
	v := New()
	err := v.Validate(&models.ListExamsParams{Kind: "weekly"})

	var ve ValidationErrors
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationErrors", err)
	}
	if ve[0].Field != "kind" || ve[0].Rule != "exam_kind" {
		t.Errorf("got %+v", ve[0])
	}
}
