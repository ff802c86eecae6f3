package repositories

import (
	"context"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Kind         *models.ExamKind   `json:"kind"`
	Status       *models.ExamStatus `json:"status"`
	DepartmentID *string            `json:"department_id"`
	CreatedBy    *string            `json:"created_by"`
	Limit        int                `json:"limit"`
	Offset       int                `json:"offset"`
	SortBy       string             `json:"sort_by"`    // "created_at", "start_time", "title"
	SortOrder    string             `json:"sort_order"` // "asc", "desc"
}

// OverdueAttempt pairs an unsubmitted attempt with the reason it must be closed.
type OverdueAttempt struct {
	AttemptID uint
	ExamID    uint
	StudentID string
	Cancelled bool
}

// ===== REPOSITORIES =====

type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	GetByID(ctx context.Context, id uint) (*models.Exam, error)
	Update(ctx context.Context, exam *models.Exam) error
	List(ctx context.Context, filters ExamFilters) ([]*models.Exam, int64, error)

	// TransitionStatus moves the stored status from one value to another and
	// returns ErrConflict when the stored status is no longer `from`.
	TransitionStatus(ctx context.Context, id uint, from, to models.ExamStatus, at time.Time) error
	SetQuestions(ctx context.Context, examID uint, questionIDs []uint) error

	// ListForNotification returns exams whose schedule may have crossed a
	// boundary that has not been announced yet.
	ListForNotification(ctx context.Context, now time.Time, limit int) ([]*models.Exam, error)
	MarkNotified(ctx context.Context, id uint, status models.ExamStatus) error

	// RecordFinalizedScore folds one finalized score into the running aggregates.
	RecordFinalizedScore(ctx context.Context, id uint, score float64) error
	// AdjustFinalizedScore moves the average by delta/total_attempts after a
	// finalized score changes by delta.
	AdjustFinalizedScore(ctx context.Context, id uint, delta float64) error
}

// QuestionRepository is a read-only view of the question bank.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error)
}

type AttemptRepository interface {
	// Create returns ErrDuplicate when the (exam, student) pair already exists.
	Create(ctx context.Context, attempt *models.Attempt) error
	GetByID(ctx context.Context, id uint) (*models.Attempt, error)
	GetByIDWithAnswers(ctx context.Context, id uint) (*models.Attempt, error)
	GetByExamAndStudent(ctx context.Context, examID uint, studentID string) (*models.Attempt, error)

	// MarkSubmitted sets submitted_at only while it is still null and returns
	// ErrConflict when another writer got there first.
	MarkSubmitted(ctx context.Context, id uint, at time.Time, source models.SubmissionSource) error
	IncrementTabSwitch(ctx context.Context, id uint) (int, error)

	ListOverdue(ctx context.Context, now time.Time, limit int) ([]OverdueAttempt, error)
	ListOpenByExam(ctx context.Context, examID uint) ([]*models.Attempt, error)
}

type AnswerRepository interface {
	CreateBatch(ctx context.Context, answers []*models.Answer) error
	GetByAttempt(ctx context.Context, attemptID uint) ([]*models.Answer, error)
	GetByAttemptAndQuestion(ctx context.Context, attemptID, questionID uint) (*models.Answer, error)
	// UpdateResponse returns ErrConflict once the attempt is submitted.
	UpdateResponse(ctx context.Context, attemptID, questionID uint, response []byte) error
	UpdateGrades(ctx context.Context, answers []*models.Answer) error
	ListPendingByExam(ctx context.Context, examID uint, limit, offset int) ([]*models.Answer, int64, error)
}

type ResultRepository interface {
	// Upsert writes every derived field of the result keyed by attempt id.
	Upsert(ctx context.Context, result *models.Result) error
	GetByAttempt(ctx context.Context, attemptID uint) (*models.Result, error)
	ListEvaluatedInScope(ctx context.Context, scope models.RankScope) ([]*models.Result, error)
	UpdateRanks(ctx context.Context, ranks map[uint]int, generation int64) error
}

// IdentityRepository reads users and their scope membership from the
// identity provider. This service never writes user data.
type IdentityRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}
