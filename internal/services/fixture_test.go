package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/cache"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/clock"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/events"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories/casdoor"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories/memory"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/validator"
)

var t0 = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

const faculty = "faculty-1"

type fixture struct {
	t         *testing.T
	ctx       context.Context
	repo      *memory.Repository
	clock     *clock.Fake
	publisher *events.MockEventPublisher
	board     *cache.MemoryLeaderboardStore

	exams    ExamService
	attempts AttemptService
	grading  GradingService
	ranking  RankingService

	nextQuestionID uint
}

func newFixture(t *testing.T, debounce time.Duration) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.NewRepository()
	identity := casdoor.NewStaticIdentity(
		&models.User{ID: faculty, Role: models.RoleFaculty},
		&models.User{ID: "student-1", Role: models.RoleStudent, DepartmentID: strPtr("cse"), CollegeID: strPtr("north")},
		&models.User{ID: "student-2", Role: models.RoleStudent, DepartmentID: strPtr("cse"), CollegeID: strPtr("north")},
		&models.User{ID: "student-3", Role: models.RoleStudent, DepartmentID: strPtr("ece"), CollegeID: strPtr("north")},
	)
	clk := clock.NewFake(t0)
	pub := events.NewMockEventPublisher(logger)
	board := cache.NewMemoryLeaderboardStore()
	v := validator.New()

	ranking := NewRankingService(repo, board, clk, pub, logger, debounce)
	attempts := NewAttemptService(repo, identity, clk, v, pub, ranking, logger)
	exams := NewExamService(repo, clk, v, pub, logger, attempts)
	grading := NewGradingService(repo, identity, clk, v, pub, ranking, logger)
	t.Cleanup(func() { ranking.Close() })

	return &fixture{
		t:              t,
		ctx:            context.Background(),
		repo:           repo,
		clock:          clk,
		publisher:      pub,
		board:          board,
		exams:          exams,
		attempts:       attempts,
		grading:        grading,
		ranking:        ranking,
		nextQuestionID: 100,
	}
}

func (f *fixture) seed(q models.Question) uint {
	f.t.Helper()
	f.nextQuestionID++
	q.ID = f.nextQuestionID
	f.repo.Store().SeedQuestions(q)
	return q.ID
}

// mcq seeds a question whose option "a" is correct and "b" is wrong.
func (f *fixture) mcq(marks, negative float64) uint {
	return f.seed(models.Question{
		Type:          models.QuestionMCQ,
		Text:          "Pick the right option",
		Marks:         marks,
		NegativeMarks: negative,
		Content: mustJSON(f.t, models.MCQContent{Options: []models.ChoiceOption{
			{ID: "a", Text: "right", IsCorrect: true},
			{ID: "b", Text: "wrong"},
		}}),
	})
}

func (f *fixture) trueFalse(marks float64, correct bool) uint {
	return f.seed(models.Question{
		Type:    models.QuestionTrueFalse,
		Text:    "True or false?",
		Marks:   marks,
		Content: mustJSON(f.t, models.TrueFalseContent{CorrectAnswer: correct}),
	})
}

func (f *fixture) descriptive(marks float64) uint {
	return f.seed(models.Question{
		Type:    models.QuestionDescriptive,
		Text:    "Explain",
		Marks:   marks,
		Content: mustJSON(f.t, models.DescriptiveContent{ReferenceAnswer: "because"}),
	})
}

func examRequest(questionIDs ...uint) *models.ExamCreateRequest {
	return &models.ExamCreateRequest{
		Title:           "Midterm",
		DepartmentID:    strPtr("cse"),
		StartTime:       t0.Add(time.Hour),
		EndTime:         t0.Add(3 * time.Hour),
		DurationMinutes: 60,
		TotalMarks:      10,
		PassingMarks:    5,
		QuestionIDs:     questionIDs,
	}
}

// scheduledExam creates and publishes an exam without moving the clock.
func (f *fixture) scheduledExam(req *models.ExamCreateRequest) *models.Exam {
	f.t.Helper()
	exam, err := f.exams.Create(f.ctx, req, faculty)
	if err != nil {
		f.t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.exams.PublishExam(f.ctx, exam.ID, faculty); err != nil {
		f.t.Fatalf("PublishExam() error = %v", err)
	}
	exam, err = f.exams.Get(f.ctx, exam.ID)
	if err != nil {
		f.t.Fatalf("Get() error = %v", err)
	}
	return exam
}

// ongoingExam publishes the exam and moves the clock to its start.
func (f *fixture) ongoingExam(req *models.ExamCreateRequest) *models.Exam {
	f.t.Helper()
	exam := f.scheduledExam(req)
	f.clock.Set(exam.StartTime)
	return exam
}

func (f *fixture) begin(examID uint, studentID string) *models.Attempt {
	f.t.Helper()
	view, err := f.attempts.BeginAttempt(f.ctx, examID, studentID)
	if err != nil {
		f.t.Fatalf("BeginAttempt(%d, %s) error = %v", examID, studentID, err)
	}
	return view.Attempt
}

func (f *fixture) submit(attemptID uint, studentID string, answers map[uint]string) *models.Result {
	f.t.Helper()
	req := &models.SubmitAttemptRequest{}
	for qid, raw := range answers {
		req.Answers = append(req.Answers, models.AnswerSubmission{QuestionID: qid, Response: json.RawMessage(raw)})
	}
	result, err := f.attempts.SubmitAttempt(f.ctx, attemptID, studentID, req, models.SubmittedByStudent)
	if err != nil {
		f.t.Fatalf("SubmitAttempt(%d) error = %v", attemptID, err)
	}
	return result
}

func choose(option string) string {
	return `{"selected_option":"` + option + `"}`
}

func mustJSON(t *testing.T, v interface{}) datatypes.JSON {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return datatypes.JSON(data)
}

func strPtr(s string) *string { return &s }

func assertFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}
