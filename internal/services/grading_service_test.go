package services

import (
	"errors"
	"testing"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/events"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

// liveCompetition takes a competition through the approval workflow and
// moves the clock to its start.
func (f *fixture) liveCompetition(req *models.ExamCreateRequest) *models.Exam {
	f.t.Helper()
	exam, err := f.exams.CreateCompetition(f.ctx, req, faculty)
	if err != nil {
		f.t.Fatalf("CreateCompetition() error = %v", err)
	}
	if _, err := f.exams.PublishCompetition(f.ctx, exam.ID, faculty); err != nil {
		f.t.Fatalf("PublishCompetition() error = %v", err)
	}
	if _, err := f.exams.ApproveCompetition(f.ctx, exam.ID, faculty); err != nil {
		f.t.Fatalf("ApproveCompetition() error = %v", err)
	}
	f.clock.Set(exam.StartTime)
	exam, err = f.exams.GoLiveCompetition(f.ctx, exam.ID, faculty)
	if err != nil {
		f.t.Fatalf("GoLiveCompetition() error = %v", err)
	}
	return exam
}

func (f *fixture) grade(attemptID, questionID uint, marks float64) *models.Result {
	f.t.Helper()
	_, result, err := f.grading.GradeAnswer(f.ctx, attemptID, questionID, &models.GradeAnswerRequest{MarksAwarded: marks}, faculty)
	if err != nil {
		f.t.Fatalf("GradeAnswer(%d, %d, %v) error = %v", attemptID, questionID, marks, err)
	}
	return result
}

func TestGradeAnswer_DescriptiveFinalizesResult(t *testing.T) {
	f := newFixture(t, 0)
	qid := f.descriptive(10)
	exam := f.ongoingExam(examRequest(qid))
	attempt := f.begin(exam.ID, "student-1")

	result := f.submit(attempt.ID, "student-1", map[uint]string{qid: `{"text":"an answer"}`})
	if result.Status != models.ResultPendingEvaluation {
		t.Fatalf("Status = %s, want pending_evaluation", result.Status)
	}
	assertFloat(t, "Score", result.Score, 0)
	if got := f.publisher.EventsOfType(events.ResultFinalized); len(got) != 0 {
		t.Fatalf("result.finalized published for a pending result")
	}
	pendingView, err := f.attempts.GetResult(f.ctx, attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if pendingView.Rank != nil {
		t.Errorf("pending result has rank %d", *pendingView.Rank)
	}

	result = f.grade(attempt.ID, qid, 8)
	assertFloat(t, "Score", result.Score, 8)
	if result.Status != models.ResultEvaluated {
		t.Errorf("Status = %s, want evaluated", result.Status)
	}
	if !result.IsPassed {
		t.Error("IsPassed = false, want true")
	}
	if got := f.publisher.EventsOfType(events.ResultFinalized); len(got) != 1 {
		t.Errorf("result.finalized events = %d, want 1", len(got))
	}
	if got := f.publisher.EventsOfType(events.AnswerGraded); len(got) != 1 {
		t.Errorf("answer.graded events = %d, want 1", len(got))
	}

	view, err := f.attempts.GetResult(f.ctx, attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if view.Rank == nil || *view.Rank != 1 {
		t.Errorf("Rank = %v, want 1", view.Rank)
	}
}

func TestGradeAnswer_MixedExamWaitsForEveryAnswer(t *testing.T) {
	f := newFixture(t, 0)
	mcq, essay1, essay2 := f.mcq(2, 0), f.descriptive(4), f.descriptive(4)
	exam := f.ongoingExam(examRequest(mcq, essay1, essay2))
	attempt := f.begin(exam.ID, "student-1")
	f.submit(attempt.ID, "student-1", map[uint]string{mcq: choose("a")})

	result := f.grade(attempt.ID, essay1, 3)
	if result.Status != models.ResultPendingEvaluation {
		t.Errorf("Status = %s after one of two grades, want pending_evaluation", result.Status)
	}
	assertFloat(t, "Score", result.Score, 5)

	result = f.grade(attempt.ID, essay2, 1)
	if result.Status != models.ResultEvaluated {
		t.Errorf("Status = %s, want evaluated", result.Status)
	}
	assertFloat(t, "Score", result.Score, 6)
}

func TestGradeAnswer_InvalidGrade(t *testing.T) {
	f := newFixture(t, 0)
	qid := f.descriptive(10)
	exam := f.ongoingExam(examRequest(qid))
	attempt := f.begin(exam.ID, "student-1")
	f.submit(attempt.ID, "student-1", map[uint]string{qid: `{"text":"an answer"}`})

	for _, marks := range []float64{10.5, -1} {
		_, _, err := f.grading.GradeAnswer(f.ctx, attempt.ID, qid, &models.GradeAnswerRequest{MarksAwarded: marks}, faculty)
		if !errors.Is(err, ErrInvalidGrade) {
			t.Errorf("GradeAnswer(%v) error = %v, want ErrInvalidGrade", marks, err)
		}
	}

	ans, err := f.repo.Answer().GetByAttemptAndQuestion(f.ctx, attempt.ID, qid)
	if err != nil {
		t.Fatalf("GetByAttemptAndQuestion() error = %v", err)
	}
	if ans.IsEvaluated || ans.MarksAwarded != 0 {
		t.Errorf("rejected grade was written: %+v", ans)
	}

	// full marks are allowed
	if result := f.grade(attempt.ID, qid, 10); result.Score != 10 {
		t.Errorf("Score = %v, want 10", result.Score)
	}
}

func TestGradeAnswer_Rejections(t *testing.T) {
	f := newFixture(t, 0)
	mcq, essay := f.mcq(5, 0), f.descriptive(5)
	exam := f.ongoingExam(examRequest(mcq, essay))
	open := f.begin(exam.ID, "student-2")
	submitted := f.begin(exam.ID, "student-1")
	f.submit(submitted.ID, "student-1", nil)

	req := &models.GradeAnswerRequest{MarksAwarded: 1}
	var permErr *PermissionError

	tests := []struct {
		name     string
		attempt  uint
		question uint
		grader   string
		check    func(error) bool
	}{
		{"objective question", submitted.ID, mcq, faculty, func(err error) bool { return errors.Is(err, ErrGradingNotAllowed) }},
		{"attempt still open", open.ID, essay, faculty, func(err error) bool { return errors.Is(err, ErrAttemptNotSubmitted) }},
		{"question not in attempt", submitted.ID, 4242, faculty, func(err error) bool { return errors.Is(err, ErrQuestionNotFound) }},
		{"unknown attempt", 9999, essay, faculty, func(err error) bool { return errors.Is(err, ErrAttemptNotFound) }},
		{"student grader", submitted.ID, essay, "student-2", func(err error) bool { return errors.As(err, &permErr) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.grading.GradeAnswer(f.ctx, tt.attempt, tt.question, req, tt.grader)
			if !tt.check(err) {
				t.Errorf("GradeAnswer() error = %v", err)
			}
		})
	}
}

func TestGradeAnswer_CompetitionAggregates(t *testing.T) {
	f := newFixture(t, 0)
	qid := f.descriptive(10)
	exam := f.liveCompetition(examRequest(qid))

	a1 := f.begin(exam.ID, "student-1")
	a2 := f.begin(exam.ID, "student-3")
	f.submit(a1.ID, "student-1", map[uint]string{qid: `{"text":"one"}`})
	f.submit(a2.ID, "student-3", map[uint]string{qid: `{"text":"two"}`})

	f.grade(a1.ID, qid, 8)
	f.grade(a2.ID, qid, 4)

	stored, err := f.exams.Get(f.ctx, exam.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.TotalAttempts != 2 {
		t.Errorf("TotalAttempts = %d, want 2", stored.TotalAttempts)
	}
	assertFloat(t, "AverageScore", stored.AverageScore, 6)

	// a regrade moves the average without counting the attempt twice
	f.grade(a2.ID, qid, 6)
	stored, _ = f.exams.Get(f.ctx, exam.ID)
	if stored.TotalAttempts != 2 {
		t.Errorf("TotalAttempts after regrade = %d, want 2", stored.TotalAttempts)
	}
	assertFloat(t, "AverageScore after regrade", stored.AverageScore, 7)

	// an unchanged regrade leaves it alone
	f.grade(a1.ID, qid, 8)
	stored, _ = f.exams.Get(f.ctx, exam.ID)
	assertFloat(t, "AverageScore after same-mark regrade", stored.AverageScore, 7)
}

func TestListPendingAnswers(t *testing.T) {
	f := newFixture(t, 0)
	mcq, essay := f.mcq(5, 0), f.descriptive(5)
	exam := f.ongoingExam(examRequest(mcq, essay))
	for _, student := range []string{"student-1", "student-2"} {
		a := f.begin(exam.ID, student)
		f.submit(a.ID, student, nil)
	}

	page, err := f.grading.ListPendingAnswers(f.ctx, exam.ID, 0, 20)
	if err != nil {
		t.Fatalf("ListPendingAnswers() error = %v", err)
	}
	if page.TotalElements != 2 {
		t.Fatalf("TotalElements = %d, want 2", page.TotalElements)
	}
	pending := page.Content.([]*models.Answer)
	for _, ans := range pending {
		if ans.QuestionID != essay {
			t.Errorf("objective answer %d in grading queue", ans.QuestionID)
		}
	}

	f.grade(pending[0].AttemptID, essay, 2)
	page, _ = f.grading.ListPendingAnswers(f.ctx, exam.ID, 0, 20)
	if page.TotalElements != 1 {
		t.Errorf("TotalElements after grading = %d, want 1", page.TotalElements)
	}

	if _, err := f.grading.ListPendingAnswers(f.ctx, 9999, 0, 20); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("ListPendingAnswers(unknown) error = %v, want ErrExamNotFound", err)
	}
}
