package models

import (
	"encoding/json"
	"time"
)

type ExamCreateRequest struct {
	Title                  string    `json:"title" validate:"required,exam_title"`
	DepartmentID           *string   `json:"department_id" validate:"omitempty,max=255"`
	CollegeID              *string   `json:"college_id" validate:"omitempty,max=255"`
	StartTime              time.Time `json:"start_time" validate:"required"`
	EndTime                time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	DurationMinutes        int       `json:"duration_minutes" validate:"required,min=1,max=1440"`
	TotalMarks             float64   `json:"total_marks" validate:"required,gt=0"`
	PassingMarks           float64   `json:"passing_marks" validate:"min=0,ltefield=TotalMarks"`
	NegativeMarkingEnabled bool      `json:"negative_marking_enabled"`
	NegativeMarkPerWrong   float64   `json:"negative_mark_per_wrong" validate:"min=0"`
	IsRandomized           bool      `json:"is_randomized"`
	ShowResultsImmediately *bool     `json:"show_results_immediately"`
	QuestionIDs            []uint    `json:"question_ids" validate:"omitempty,unique,dive,required"`
}

type ExamUpdateRequest struct {
	Title                  *string    `json:"title" validate:"omitempty,exam_title"`
	StartTime              *time.Time `json:"start_time"`
	EndTime                *time.Time `json:"end_time"`
	DurationMinutes        *int       `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
	TotalMarks             *float64   `json:"total_marks" validate:"omitempty,gt=0"`
	PassingMarks           *float64   `json:"passing_marks" validate:"omitempty,min=0"`
	NegativeMarkingEnabled *bool      `json:"negative_marking_enabled"`
	NegativeMarkPerWrong   *float64   `json:"negative_mark_per_wrong" validate:"omitempty,min=0"`
	IsRandomized           *bool      `json:"is_randomized"`
	ShowResultsImmediately *bool      `json:"show_results_immediately"`
}

type SetExamQuestionsRequest struct {
	QuestionIDs []uint `json:"question_ids" validate:"required,min=1,unique,dive,required"`
}

type SaveAnswerRequest struct {
	Response json.RawMessage `json:"response" validate:"required"`
}

type AnswerSubmission struct {
	QuestionID uint            `json:"question_id" validate:"required"`
	Response   json.RawMessage `json:"response"`
}

type SubmitAttemptRequest struct {
	Answers []AnswerSubmission `json:"answers" validate:"omitempty,dive"`
}

type GradeAnswerRequest struct {
	MarksAwarded float64 `json:"marks_awarded" validate:"min=0"`
	IsCorrect    *bool   `json:"is_correct"`
	Feedback     *string `json:"feedback" validate:"omitempty,max=4000"`
}

// ===== PAGINATION & FILTERING =====

type ListExamsParams struct {
	Page         int        `form:"page" validate:"min=0"`
	Size         int        `form:"size" validate:"min=0,max=100"`
	Kind         ExamKind   `form:"kind" validate:"omitempty,exam_kind"`
	Status       ExamStatus `form:"status"`
	DepartmentID *string    `form:"department_id"`
	SortBy       string     `form:"sort_by"`
	SortDir      string     `form:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type PaginatedResponse struct {
	Content       interface{} `json:"content"`
	TotalElements int64       `json:"total_elements"`
	TotalPages    int         `json:"total_pages"`
	Size          int         `json:"size"`
	Page          int         `json:"page"`
	First         bool        `json:"first"`
	Last          bool        `json:"last"`
	Empty         bool        `json:"empty"`
}

// ===== RESPONSES =====

type ExamStatusResponse struct {
	ExamID  uint       `json:"exam_id"`
	Kind    ExamKind   `json:"kind"`
	Status  ExamStatus `json:"status"`
	Stored  ExamStatus `json:"stored_status"`
	AsOf    time.Time  `json:"as_of"`
	StartAt time.Time  `json:"start_time"`
	EndAt   time.Time  `json:"end_time"`
}

type AttemptView struct {
	Attempt   *Attempt   `json:"attempt"`
	Questions []Question `json:"questions"`
	Deadline  time.Time  `json:"deadline"`
}

type StudentRankResponse struct {
	Scope    RankScope         `json:"scope"`
	Ranked   bool              `json:"ranked"`
	Entry    *LeaderboardEntry `json:"entry,omitempty"`
	OutOf    int               `json:"out_of"`
	AsOfGen  int64             `json:"generation"`
	Computed time.Time         `json:"computed_at"`
}
