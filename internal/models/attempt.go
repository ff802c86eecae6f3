package models

import (
	"time"

	"gorm.io/datatypes"
)

type SubmissionSource string

const (
	SubmittedByStudent      SubmissionSource = "student"
	SubmittedByDeadline     SubmissionSource = "deadline"
	SubmittedByCancellation SubmissionSource = "cancellation"
)

// Attempt is one student's instance of taking one exam. The (exam_id, student_id)
// pair is unique.
type Attempt struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ExamID    uint   `json:"exam_id" gorm:"not null;uniqueIndex:idx_attempt_exam_student"`
	StudentID string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_attempt_exam_student"`

	StartedAt        time.Time         `json:"started_at" gorm:"not null"`
	SubmittedAt      *time.Time        `json:"submitted_at" gorm:"index"`
	AutoSubmitted    bool              `json:"auto_submitted" gorm:"not null;default:false"`
	SubmissionSource *SubmissionSource `json:"submission_source,omitempty" gorm:"size:20"`
	TabSwitchCount   int               `json:"tab_switch_count" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func (a *Attempt) IsSubmitted() bool {
	return a.SubmittedAt != nil
}

// Answer holds a student's raw response to one question and, once evaluated,
// its grade.
type Answer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question"`
	Position   int  `json:"position" gorm:"not null"`

	// Raw response, shape depends on the question type. Empty means unanswered.
	Response datatypes.JSON `json:"response" gorm:"type:jsonb"`

	IsEvaluated  bool       `json:"is_evaluated" gorm:"not null;default:false"`
	IsCorrect    *bool      `json:"is_correct"`
	MarksAwarded float64    `json:"marks_awarded" gorm:"not null;default:0"`
	Feedback     *string    `json:"feedback,omitempty" gorm:"type:text"`
	GradedBy     *string    `json:"graded_by,omitempty" gorm:"size:255"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (Answer) TableName() string {
	return "answers"
}

func (a *Answer) IsAnswered() bool {
	s := string(a.Response)
	return s != "" && s != "null" && s != "{}"
}

// AnswerGrade is the evaluation outcome written back onto an Answer.
type AnswerGrade struct {
	IsEvaluated  bool
	IsCorrect    *bool
	MarksAwarded float64
	Feedback     *string
	GradedBy     *string
	GradedAt     *time.Time
}

// Apply copies the grade fields onto the answer.
func (g AnswerGrade) Apply(a *Answer) {
	a.IsEvaluated = g.IsEvaluated
	a.IsCorrect = g.IsCorrect
	a.MarksAwarded = g.MarksAwarded
	a.Feedback = g.Feedback
	a.GradedBy = g.GradedBy
	a.GradedAt = g.GradedAt
}
