package models

import (
	"time"

	"gorm.io/gorm"
)

type ExamKind string

const (
	ExamKindStandard    ExamKind = "standard"
	ExamKindCompetition ExamKind = "competition"
)

// ExamStatus covers both the stored administrative states and the states
// derived from the schedule (ongoing, live, completed).
type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamScheduled ExamStatus = "scheduled"
	ExamOngoing   ExamStatus = "ongoing"
	ExamCompleted ExamStatus = "completed"
	ExamCancelled ExamStatus = "cancelled"

	// Competition approval workflow
	CompetitionPending   ExamStatus = "pending"
	CompetitionPublished ExamStatus = "published"
	CompetitionApproved  ExamStatus = "approved"
	CompetitionLive      ExamStatus = "live"
)

type Exam struct {
	ID    uint     `json:"id" gorm:"primaryKey"`
	Title string   `json:"title" gorm:"not null;size:200"`
	Kind  ExamKind `json:"kind" gorm:"not null;size:20;default:standard;index"`

	// Owning scope. Competitions are pooled across institutions and leave both empty.
	DepartmentID *string `json:"department_id,omitempty" gorm:"size:255;index"`
	CollegeID    *string `json:"college_id,omitempty" gorm:"size:255;index"`

	// Schedule
	StartTime       time.Time `json:"start_time" gorm:"not null;index"`
	EndTime         time.Time `json:"end_time" gorm:"not null;index"`
	DurationMinutes int       `json:"duration_minutes" gorm:"not null"`

	// Scoring
	TotalMarks             float64 `json:"total_marks" gorm:"not null"`
	PassingMarks           float64 `json:"passing_marks" gorm:"not null"`
	NegativeMarkingEnabled bool    `json:"negative_marking_enabled" gorm:"not null;default:false"`
	NegativeMarkPerWrong   float64 `json:"negative_mark_per_wrong" gorm:"not null;default:0"`

	// Behaviour
	IsRandomized           bool `json:"is_randomized" gorm:"not null;default:false"`
	ShowResultsImmediately bool `json:"show_results_immediately" gorm:"not null;default:true"`

	// Stored status holds only administrator-controlled states.
	Status         ExamStatus  `json:"status" gorm:"not null;size:20;index"`
	NotifiedStatus *ExamStatus `json:"-" gorm:"size:20"`
	CancelledAt    *time.Time  `json:"cancelled_at,omitempty"`

	// Competition aggregates, maintained as results finalize.
	TotalAttempts int     `json:"total_attempts" gorm:"not null;default:0"`
	AverageScore  float64 `json:"average_score" gorm:"not null;default:0"`

	CreatedBy string         `json:"created_by" gorm:"not null;size:255;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []ExamQuestion `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

// ExamQuestion is an ordered reference into the question bank.
type ExamQuestion struct {
	ExamID     uint `json:"exam_id" gorm:"primaryKey"`
	QuestionID uint `json:"question_id" gorm:"primaryKey"`
	Position   int  `json:"position" gorm:"not null"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}

func (e *Exam) IsCompetition() bool {
	return e.Kind == ExamKindCompetition
}

// QuestionIDs returns the referenced question ids in exam order.
func (e *Exam) QuestionIDs() []uint {
	ids := make([]uint, 0, len(e.Questions))
	for _, q := range e.Questions {
		ids = append(ids, q.QuestionID)
	}
	return ids
}

// AttemptDeadline returns the effective deadline for an attempt that started at startedAt.
func (e *Exam) AttemptDeadline(startedAt time.Time) time.Time {
	deadline := e.EndTime
	if e.DurationMinutes > 0 {
		if byDuration := startedAt.Add(time.Duration(e.DurationMinutes) * time.Minute); byDuration.Before(deadline) {
			deadline = byDuration
		}
	}
	return deadline
}
