// Package events publishes domain events of the exam engine. Events always go
// to an in-process watermill bus and, when configured, to Kafka as well.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultSource = "exam-engine"
	EventVersion  = "1.0"
)

// Event types
const (
	ExamStatusChanged  = "exam.status_changed"
	AttemptStarted     = "attempt.started"
	AttemptSubmitted   = "attempt.submitted"
	AnswerGraded       = "answer.graded"
	ResultFinalized    = "result.finalized"
	LeaderboardUpdated = "leaderboard.updated"
)

// Event is the envelope written to every topic.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType string, at time.Time, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    DefaultSource,
		Version:   EventVersion,
		Timestamp: at,
		Data:      data,
	}
}

// EventPublisher delivers events. Publishing is best effort: callers log the
// error and carry on, the state change has already been committed.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// ===== PAYLOADS =====

type ExamStatusChangedData struct {
	ExamID uint      `json:"exam_id"`
	Kind   string    `json:"kind"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	At     time.Time `json:"at"`
	// Derived is true when the change comes from the schedule rather than an
	// administrative action.
	Derived bool `json:"derived"`
}

type AttemptStartedData struct {
	AttemptID uint      `json:"attempt_id"`
	ExamID    uint      `json:"exam_id"`
	StudentID string    `json:"student_id"`
	StartedAt time.Time `json:"started_at"`
	Deadline  time.Time `json:"deadline"`
}

type AttemptSubmittedData struct {
	AttemptID     uint      `json:"attempt_id"`
	ExamID        uint      `json:"exam_id"`
	StudentID     string    `json:"student_id"`
	Source        string    `json:"source"`
	AutoSubmitted bool      `json:"auto_submitted"`
	SubmittedAt   time.Time `json:"submitted_at"`
	ResultStatus  string    `json:"result_status"`
}

type AnswerGradedData struct {
	AttemptID    uint    `json:"attempt_id"`
	QuestionID   uint    `json:"question_id"`
	MarksAwarded float64 `json:"marks_awarded"`
	GradedBy     string  `json:"graded_by"`
}

type ResultFinalizedData struct {
	AttemptID  uint    `json:"attempt_id"`
	ExamID     uint    `json:"exam_id"`
	StudentID  string  `json:"student_id"`
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
	IsPassed   bool    `json:"is_passed"`
}

type LeaderboardUpdatedData struct {
	Scope      string `json:"scope"`
	Generation int64  `json:"generation"`
	Entries    int    `json:"entries"`
}
