package services

import (
	"errors"
	"testing"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/events"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

func TestCreateExam_Validation(t *testing.T) {
	f := newFixture(t, 0)
	qid := f.mcq(5, 0)

	tests := []struct {
		name   string
		mutate func(*models.ExamCreateRequest)
		field  string
	}{
		{"end before start", func(r *models.ExamCreateRequest) { r.EndTime = r.StartTime.Add(-time.Hour) }, "end_time"},
		{"duration longer than window", func(r *models.ExamCreateRequest) { r.DurationMinutes = 180 }, "duration_minutes"},
		{"passing above total", func(r *models.ExamCreateRequest) { r.PassingMarks = 11 }, "passing_marks"},
		{"missing title", func(r *models.ExamCreateRequest) { r.Title = "" }, "title"},
		{"unknown question", func(r *models.ExamCreateRequest) { r.QuestionIDs = []uint{qid, 4242} }, "question_ids[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := examRequest(qid)
			tt.mutate(req)
			_, err := f.exams.Create(f.ctx, req, faculty)
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Create() error = %v, want ValidationErrors", err)
			}
			found := false
			for _, ve := range verrs {
				if ve.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %s", verrs, tt.field)
			}
		})
	}
}

func TestCreateExam_Defaults(t *testing.T) {
	f := newFixture(t, 0)
	exam, err := f.exams.Create(f.ctx, examRequest(f.mcq(5, 0)), faculty)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if exam.Status != models.ExamDraft || exam.Kind != models.ExamKindStandard {
		t.Errorf("new exam = %s/%s, want standard/draft", exam.Kind, exam.Status)
	}
	if !exam.ShowResultsImmediately {
		t.Error("ShowResultsImmediately defaults to false")
	}

	comp, err := f.exams.CreateCompetition(f.ctx, examRequest(f.mcq(5, 0)), faculty)
	if err != nil {
		t.Fatalf("CreateCompetition() error = %v", err)
	}
	if comp.Status != models.CompetitionPending || comp.DepartmentID != nil {
		t.Errorf("competition = %s with department %v, want pending and unscoped", comp.Status, comp.DepartmentID)
	}
}

func TestPublishExam(t *testing.T) {
	f := newFixture(t, 0)

	empty, err := f.exams.Create(f.ctx, examRequest(), faculty)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	var verrs ValidationErrors
	if _, err := f.exams.PublishExam(f.ctx, empty.ID, faculty); !errors.As(err, &verrs) {
		t.Fatalf("PublishExam(no questions) error = %v, want ValidationErrors", err)
	}

	exam := f.scheduledExam(examRequest(f.mcq(5, 0)))
	if exam.Status != models.ExamScheduled {
		t.Fatalf("Status = %s, want scheduled", exam.Status)
	}
	if _, err := f.exams.PublishExam(f.ctx, exam.ID, faculty); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second PublishExam() error = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.exams.PublishCompetition(f.ctx, exam.ID, faculty); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("PublishCompetition(standard) error = %v, want ErrInvalidTransition", err)
	}

	changed := f.publisher.EventsOfType(events.ExamStatusChanged)
	if len(changed) != 1 {
		t.Fatalf("exam.status_changed events = %d, want 1", len(changed))
	}
	data := changed[0].Data.(events.ExamStatusChangedData)
	if data.From != string(models.ExamDraft) || data.To != string(models.ExamScheduled) {
		t.Errorf("event = %s -> %s, want draft -> scheduled", data.From, data.To)
	}
}

func TestCancelExam(t *testing.T) {
	f := newFixture(t, 0)

	t.Run("completed exam", func(t *testing.T) {
		exam := f.scheduledExam(examRequest(f.mcq(5, 0)))
		f.clock.Set(exam.EndTime)
		if _, err := f.exams.CancelExam(f.ctx, exam.ID, faculty); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("CancelExam() error = %v, want ErrInvalidTransition", err)
		}
		f.clock.Set(t0)
	})

	t.Run("force-submits open attempts", func(t *testing.T) {
		qid := f.mcq(5, 0)
		exam := f.ongoingExam(examRequest(qid))
		a1 := f.begin(exam.ID, "student-1")
		a2 := f.begin(exam.ID, "student-2")
		f.submit(a2.ID, "student-2", map[uint]string{qid: choose("a")})

		cancelled, err := f.exams.CancelExam(f.ctx, exam.ID, faculty)
		if err != nil {
			t.Fatalf("CancelExam() error = %v", err)
		}
		if cancelled.Status != models.ExamCancelled || cancelled.CancelledAt == nil {
			t.Errorf("exam = %s cancelled at %v", cancelled.Status, cancelled.CancelledAt)
		}

		stored, _ := f.repo.Attempt().GetByID(f.ctx, a1.ID)
		if !stored.IsSubmitted() || !stored.AutoSubmitted {
			t.Fatalf("open attempt not force-submitted: %+v", stored)
		}
		if *stored.SubmissionSource != models.SubmittedByCancellation {
			t.Errorf("SubmissionSource = %s, want cancellation", *stored.SubmissionSource)
		}
		if _, err := f.attempts.BeginAttempt(f.ctx, exam.ID, "student-3"); !errors.Is(err, ErrExamNotActive) {
			t.Errorf("BeginAttempt() on cancelled exam error = %v, want ErrExamNotActive", err)
		}
		if _, err := f.exams.CancelExam(f.ctx, exam.ID, faculty); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("second CancelExam() error = %v, want ErrInvalidTransition", err)
		}
	})
}

func TestCompetitionWorkflow(t *testing.T) {
	f := newFixture(t, 0)
	comp, err := f.exams.CreateCompetition(f.ctx, examRequest(f.mcq(5, 0)), faculty)
	if err != nil {
		t.Fatalf("CreateCompetition() error = %v", err)
	}

	if _, err := f.exams.ApproveCompetition(f.ctx, comp.ID, faculty); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ApproveCompetition(pending) error = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.exams.PublishExam(f.ctx, comp.ID, faculty); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("PublishExam(competition) error = %v, want ErrInvalidTransition", err)
	}

	steps := []struct {
		name string
		run  func() (*models.Exam, error)
		want models.ExamStatus
	}{
		{"publish", func() (*models.Exam, error) { return f.exams.PublishCompetition(f.ctx, comp.ID, faculty) }, models.CompetitionPublished},
		{"approve", func() (*models.Exam, error) { return f.exams.ApproveCompetition(f.ctx, comp.ID, faculty) }, models.CompetitionApproved},
	}
	for _, step := range steps {
		got, err := step.run()
		if err != nil {
			t.Fatalf("%s error = %v", step.name, err)
		}
		if got.Status != step.want {
			t.Fatalf("%s: Status = %s, want %s", step.name, got.Status, step.want)
		}
	}

	if _, err := f.exams.GoLiveCompetition(f.ctx, comp.ID, faculty); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("GoLiveCompetition() before start error = %v, want ErrInvalidTransition", err)
	}

	f.clock.Set(comp.StartTime)
	status, err := f.exams.GetExamStatus(f.ctx, comp.ID)
	if err != nil {
		t.Fatalf("GetExamStatus() error = %v", err)
	}
	if status.Status != models.CompetitionLive || status.Stored != models.CompetitionApproved {
		t.Errorf("status = %s (stored %s), want live (stored approved)", status.Status, status.Stored)
	}

	live, err := f.exams.GoLiveCompetition(f.ctx, comp.ID, faculty)
	if err != nil {
		t.Fatalf("GoLiveCompetition() error = %v", err)
	}
	if live.Status != models.CompetitionLive {
		t.Errorf("Status = %s, want live", live.Status)
	}

	f.clock.Set(comp.EndTime)
	if _, err := f.exams.CancelCompetition(f.ctx, comp.ID, faculty); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("CancelCompetition(completed) error = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateExam(t *testing.T) {
	f := newFixture(t, 0)
	exam := f.scheduledExam(examRequest(f.mcq(5, 0)))

	title := "Final"
	updated, err := f.exams.Update(f.ctx, exam.ID, &models.ExamUpdateRequest{Title: &title}, faculty)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != title {
		t.Errorf("Title = %q, want %q", updated.Title, title)
	}

	tooLong := 500
	var verrs ValidationErrors
	if _, err := f.exams.Update(f.ctx, exam.ID, &models.ExamUpdateRequest{DurationMinutes: &tooLong}, faculty); !errors.As(err, &verrs) {
		t.Errorf("Update(duration beyond window) error = %v, want ValidationErrors", err)
	}

	f.clock.Set(exam.StartTime)
	if _, err := f.exams.Update(f.ctx, exam.ID, &models.ExamUpdateRequest{Title: &title}, faculty); !errors.Is(err, ErrExamNotEditable) {
		t.Errorf("Update(ongoing) error = %v, want ErrExamNotEditable", err)
	}
	if _, err := f.exams.SetQuestions(f.ctx, exam.ID, &models.SetExamQuestionsRequest{QuestionIDs: []uint{f.mcq(1, 0)}}, faculty); !errors.Is(err, ErrExamNotEditable) {
		t.Errorf("SetQuestions(ongoing) error = %v, want ErrExamNotEditable", err)
	}
}

func TestSetQuestions(t *testing.T) {
	f := newFixture(t, 0)
	q1, q2, q3 := f.mcq(5, 0), f.mcq(5, 0), f.trueFalse(1, true)
	exam, err := f.exams.Create(f.ctx, examRequest(q1), faculty)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := f.exams.SetQuestions(f.ctx, exam.ID, &models.SetExamQuestionsRequest{QuestionIDs: []uint{q3, q2}}, faculty)
	if err != nil {
		t.Fatalf("SetQuestions() error = %v", err)
	}
	got := updated.QuestionIDs()
	if len(got) != 2 || got[0] != q3 || got[1] != q2 {
		t.Errorf("QuestionIDs = %v, want [%d %d]", got, q3, q2)
	}

	var verrs ValidationErrors
	if _, err := f.exams.SetQuestions(f.ctx, exam.ID, &models.SetExamQuestionsRequest{QuestionIDs: []uint{q1, q1}}, faculty); !errors.As(err, &verrs) {
		t.Errorf("SetQuestions(duplicates) error = %v, want ValidationErrors", err)
	}
}

func TestListExams(t *testing.T) {
	f := newFixture(t, 0)
	qid := f.mcq(5, 0)
	for i := 0; i < 3; i++ {
		if _, err := f.exams.Create(f.ctx, examRequest(qid), faculty); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if _, err := f.exams.CreateCompetition(f.ctx, examRequest(qid), faculty); err != nil {
		t.Fatalf("CreateCompetition() error = %v", err)
	}

	page, err := f.exams.List(f.ctx, &models.ListExamsParams{Size: 2, Kind: models.ExamKindStandard})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.TotalElements != 3 || page.TotalPages != 2 || !page.First || page.Last {
		t.Errorf("page = %+v, want 3 elements over 2 pages", page)
	}
	if exams := page.Content.([]*models.Exam); len(exams) != 2 {
		t.Errorf("len(Content) = %d, want 2", len(exams))
	}
}
