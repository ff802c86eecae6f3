package services

import (
	"reflect"
	"testing"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/events"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

// rankedExam seeds an exam where a right answer to every question scores 10.
// Answering q3 wrong scores 9, answering q2 and q3 wrong scores 7.
func (f *fixture) rankedExam() (exam *models.Exam, q1, q2, q3 uint) {
	q1, q2, q3 = f.mcq(7, 0), f.mcq(2, 0), f.mcq(1, 0)
	exam = f.ongoingExam(examRequest(q1, q2, q3))
	return exam, q1, q2, q3
}

func (f *fixture) takeExam(examID uint, student string, answers map[uint]string) *models.Result {
	f.t.Helper()
	attempt := f.begin(examID, student)
	return f.submit(attempt.ID, student, answers)
}

func TestRanking_TiedScoresShareRank(t *testing.T) {
	f := newFixture(t, 0)
	exam, q1, q2, q3 := f.rankedExam()

	f.takeExam(exam.ID, "student-1", map[uint]string{q1: choose("a"), q2: choose("a"), q3: choose("b")})
	f.clock.Advance(time.Minute)
	f.takeExam(exam.ID, "student-2", map[uint]string{q1: choose("a"), q2: choose("a"), q3: choose("b")})
	f.takeExam(exam.ID, "student-3", map[uint]string{q1: choose("a"), q2: choose("b"), q3: choose("b")})

	board, err := f.ranking.GetLeaderboard(f.ctx, models.ExamScope(exam.ID))
	if err != nil {
		t.Fatalf("GetLeaderboard() error = %v", err)
	}
	if got := ranksOf(board.Entries); !reflect.DeepEqual(got, []int{1, 1, 3}) {
		t.Fatalf("ranks = %v, want [1 1 3]", got)
	}
	wantOrder := []string{"student-1", "student-2", "student-3"}
	for i, e := range board.Entries {
		if e.StudentID != wantOrder[i] {
			t.Errorf("entry %d = %s, want %s", i, e.StudentID, wantOrder[i])
		}
	}
	assertFloat(t, "Percentage", board.Entries[2].Percentage, 70)

	// stored ranks follow the exam board
	for _, e := range board.Entries {
		stored, err := f.repo.Result().GetByAttempt(f.ctx, e.AttemptID)
		if err != nil {
			t.Fatalf("GetByAttempt() error = %v", err)
		}
		if stored.Rank == nil || *stored.Rank != e.Rank {
			t.Errorf("stored rank of %s = %v, want %d", e.StudentID, stored.Rank, e.Rank)
		}
	}
}

func TestRanking_Scopes(t *testing.T) {
	f := newFixture(t, 0)
	exam, q1, q2, q3 := f.rankedExam()
	f.takeExam(exam.ID, "student-1", map[uint]string{q1: choose("a"), q2: choose("b"), q3: choose("b")})
	f.takeExam(exam.ID, "student-3", map[uint]string{q1: choose("a"), q2: choose("a"), q3: choose("a")})

	tests := []struct {
		scope   models.RankScope
		student string
		ranked  bool
		rank    int
		outOf   int
	}{
		{models.RankScope{Type: models.ScopeDepartment, ID: "cse"}, "student-1", true, 1, 1},
		{models.RankScope{Type: models.ScopeDepartment, ID: "ece"}, "student-1", false, 0, 1},
		{models.RankScope{Type: models.ScopeCollege, ID: "north"}, "student-1", true, 2, 2},
		{models.GlobalScope(), "student-3", true, 1, 2},
		{models.GlobalScope(), "student-2", false, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.scope.String()+"/"+tt.student, func(t *testing.T) {
			got, err := f.ranking.GetStudentRank(f.ctx, tt.scope, tt.student)
			if err != nil {
				t.Fatalf("GetStudentRank() error = %v", err)
			}
			if got.Ranked != tt.ranked || got.OutOf != tt.outOf {
				t.Fatalf("ranked = %v out of %d, want %v out of %d", got.Ranked, got.OutOf, tt.ranked, tt.outOf)
			}
			if tt.ranked && got.Entry.Rank != tt.rank {
				t.Errorf("rank = %d, want %d", got.Entry.Rank, tt.rank)
			}
		})
	}
}

func TestRanking_PendingResultNotRanked(t *testing.T) {
	f := newFixture(t, 0)
	qid := f.descriptive(10)
	exam := f.ongoingExam(examRequest(qid))
	f.takeExam(exam.ID, "student-1", map[uint]string{qid: `{"text":"essay"}`})

	got, err := f.ranking.GetStudentRank(f.ctx, models.ExamScope(exam.ID), "student-1")
	if err != nil {
		t.Fatalf("GetStudentRank() error = %v", err)
	}
	if got.Ranked || got.OutOf != 0 {
		t.Errorf("pending result ranked: %+v", got)
	}
}

func TestRanking_DebounceAdvancesGenerationOncePerBurst(t *testing.T) {
	debounce := 2 * time.Second
	f := newFixture(t, debounce)
	exam, q1, q2, q3 := f.rankedExam()
	scope := models.ExamScope(exam.ID)
	all := map[uint]string{q1: choose("a"), q2: choose("a"), q3: choose("a")}

	f.takeExam(exam.ID, "student-1", all)
	f.clock.Advance(debounce)

	gen, _ := f.board.Generation(f.ctx, scope)
	if gen != 1 {
		t.Fatalf("generation after first burst = %d, want 1", gen)
	}

	// a burst of finalizations inside one debounce window
	f.takeExam(exam.ID, "student-2", all)
	f.takeExam(exam.ID, "student-3", all)

	stale, err := f.ranking.GetLeaderboard(f.ctx, scope)
	if err != nil {
		t.Fatalf("GetLeaderboard() error = %v", err)
	}
	if stale.Generation != 1 || len(stale.Entries) != 1 {
		t.Errorf("board while pending = gen %d with %d entries, want gen 1 with 1", stale.Generation, len(stale.Entries))
	}

	f.clock.Advance(debounce)
	gen, _ = f.board.Generation(f.ctx, scope)
	if gen != 2 {
		t.Errorf("generation after second burst = %d, want 2", gen)
	}
	fresh, err := f.ranking.GetLeaderboard(f.ctx, scope)
	if err != nil {
		t.Fatalf("GetLeaderboard() error = %v", err)
	}
	if len(fresh.Entries) != 3 {
		t.Errorf("entries = %d, want 3", len(fresh.Entries))
	}
	if f.clock.PendingTimers() != 0 {
		t.Errorf("pending timers = %d, want 0", f.clock.PendingTimers())
	}

	updates := 0
	for _, e := range f.publisher.EventsOfType(events.LeaderboardUpdated) {
		if e.Data.(events.LeaderboardUpdatedData).Scope == scope.String() {
			updates++
		}
	}
	if updates != 2 {
		t.Errorf("leaderboard.updated events for %s = %d, want 2", scope, updates)
	}
}

func TestRanking_FlushRunsPendingRecomputations(t *testing.T) {
	f := newFixture(t, time.Hour)
	exam, q1, _, _ := f.rankedExam()
	f.takeExam(exam.ID, "student-1", map[uint]string{q1: choose("a")})

	if f.clock.PendingTimers() == 0 {
		t.Fatal("no recomputation scheduled")
	}
	if err := f.ranking.Flush(f.ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if f.clock.PendingTimers() != 0 {
		t.Errorf("pending timers after flush = %d, want 0", f.clock.PendingTimers())
	}
	gen, _ := f.board.Generation(f.ctx, models.GlobalScope())
	if gen != 1 {
		t.Errorf("global generation = %d, want 1", gen)
	}
}

func TestRanking_Subscribe(t *testing.T) {
	f := newFixture(t, 0)
	exam, q1, _, _ := f.rankedExam()
	scope := models.ExamScope(exam.ID)

	updates, cancel := f.ranking.Subscribe(scope)
	f.takeExam(exam.ID, "student-1", map[uint]string{q1: choose("a")})

	select {
	case board := <-updates:
		if len(board.Entries) != 1 || board.Entries[0].StudentID != "student-1" {
			t.Errorf("board = %+v, want student-1 alone", board.Entries)
		}
	default:
		t.Fatal("no leaderboard delivered")
	}

	cancel()
	cancel()
	if _, ok := <-updates; ok {
		t.Error("channel still open after cancel")
	}
}

func TestRanking_CloseEndsSubscriptions(t *testing.T) {
	f := newFixture(t, time.Second)
	updates, _ := f.ranking.Subscribe(models.GlobalScope())

	if err := f.ranking.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := <-updates; ok {
		t.Error("channel still open after Close")
	}
	f.ranking.Invalidate(f.ctx, models.GlobalScope())
	if f.clock.PendingTimers() != 0 {
		t.Error("closed ranking engine scheduled a recomputation")
	}
}
