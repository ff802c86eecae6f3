package services

import (
	"context"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

// ===== SERVICE INTERFACES =====

// ExamService owns exam definitions and their lifecycle, including the
// competition approval workflow.
type ExamService interface {
	Create(ctx context.Context, req *models.ExamCreateRequest, creatorID string) (*models.Exam, error)
	CreateCompetition(ctx context.Context, req *models.ExamCreateRequest, creatorID string) (*models.Exam, error)
	Update(ctx context.Context, id uint, req *models.ExamUpdateRequest, userID string) (*models.Exam, error)
	SetQuestions(ctx context.Context, id uint, req *models.SetExamQuestionsRequest, userID string) (*models.Exam, error)
	Get(ctx context.Context, id uint) (*models.Exam, error)
	List(ctx context.Context, params *models.ListExamsParams) (*models.PaginatedResponse, error)

	// GetExamStatus reports the derived status as of now.
	GetExamStatus(ctx context.Context, id uint) (*models.ExamStatusResponse, error)

	// Standard exam administration
	PublishExam(ctx context.Context, id uint, userID string) (*models.Exam, error)
	CancelExam(ctx context.Context, id uint, userID string) (*models.Exam, error)

	// Competition approval workflow
	PublishCompetition(ctx context.Context, id uint, userID string) (*models.Exam, error)
	ApproveCompetition(ctx context.Context, id uint, userID string) (*models.Exam, error)
	GoLiveCompetition(ctx context.Context, id uint, userID string) (*models.Exam, error)
	CancelCompetition(ctx context.Context, id uint, userID string) (*models.Exam, error)
}

// AttemptService is the submission gatekeeper.
type AttemptService interface {
	BeginAttempt(ctx context.Context, examID uint, studentID string) (*models.AttemptView, error)
	GetAttempt(ctx context.Context, attemptID uint, userID string) (*models.AttemptView, error)
	SaveAnswer(ctx context.Context, attemptID, questionID uint, req *models.SaveAnswerRequest, studentID string) (*models.Answer, error)
	RecordTabSwitch(ctx context.Context, attemptID uint, studentID string) (int, error)

	// SubmitAttempt closes an attempt and evaluates it before returning.
	// Student submissions are subject to the deadline; the deadline reaper and
	// exam cancellation pass their own source and always go through.
	SubmitAttempt(ctx context.Context, attemptID uint, studentID string, req *models.SubmitAttemptRequest, source models.SubmissionSource) (*models.Result, error)

	GetResult(ctx context.Context, attemptID uint, userID string) (*models.Result, error)
}

type GradingService interface {
	// GradeAnswer records a manual grade for a subjective answer and
	// re-aggregates the attempt's result.
	GradeAnswer(ctx context.Context, attemptID, questionID uint, req *models.GradeAnswerRequest, graderID string) (*models.Answer, *models.Result, error)
	ListPendingAnswers(ctx context.Context, examID uint, page, size int) (*models.PaginatedResponse, error)
}

// RankingService maintains per-scope leaderboards. Ranking is eventually
// consistent: readers may see the previous board while a recomputation is
// pending.
type RankingService interface {
	Invalidate(ctx context.Context, scopes ...models.RankScope)
	Recompute(ctx context.Context, scope models.RankScope) (*models.Leaderboard, error)
	Flush(ctx context.Context) error

	GetLeaderboard(ctx context.Context, scope models.RankScope) (*models.Leaderboard, error)
	GetStudentRank(ctx context.Context, scope models.RankScope, studentID string) (*models.StudentRankResponse, error)
	ExamRank(ctx context.Context, examID, attemptID uint) (*int, error)

	Subscribe(scope models.RankScope) (<-chan *models.Leaderboard, func())
	Close() error
}

// ServiceManager wires the services over one repository.
type ServiceManager interface {
	Exam() ExamService
	Attempt() AttemptService
	Grading() GradingService
	Ranking() RankingService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
