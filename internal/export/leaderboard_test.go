package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

func TestWriteLeaderboard(t *testing.T) {
	at := time.Date(2026, time.March, 2, 10, 30, 0, 0, time.UTC)
	board := &models.Leaderboard{
		Scope:      models.ExamScope(12),
		Generation: 3,
		ComputedAt: at,
		Entries: []models.LeaderboardEntry{
			{Rank: 1, StudentID: "s1", AttemptID: 4, ExamID: 12, Score: 9, Percentage: 90, SubmittedAt: at},
			{Rank: 1, StudentID: "s2", AttemptID: 5, ExamID: 12, Score: 9, Percentage: 90, SubmittedAt: at.Add(time.Minute)},
			{Rank: 3, StudentID: "s3", AttemptID: 6, ExamID: 12, Score: 7, Percentage: 70, SubmittedAt: at.Add(2 * time.Minute)},
		},
	}

	var buf bytes.Buffer
	if err := WriteLeaderboard(&buf, board); err != nil {
		t.Fatalf("WriteLeaderboard() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(leaderboardSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) < 4 {
		t.Fatalf("rows = %d, want header plus 3 entries", len(rows))
	}
	if rows[0][0] != "Rank" || rows[0][6] != "Submitted At" {
		t.Errorf("header = %v", rows[0])
	}

	tests := []struct {
		row     int
		rank    string
		student string
	}{
		{1, "1", "s1"},
		{2, "1", "s2"},
		{3, "3", "s3"},
	}
	for _, tt := range tests {
		if got := rows[tt.row]; got[0] != tt.rank || got[1] != tt.student {
			t.Errorf("row %d = %v, want rank %s for %s", tt.row, got, tt.rank, tt.student)
		}
	}

	footer := rows[len(rows)-1]
	if footer[0] != "Scope" || footer[1] != "exam:12" || footer[3] != "3" {
		t.Errorf("footer = %v", footer)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		scope models.RankScope
		want  string
	}{
		{models.ExamScope(7), "leaderboard_exam-7_gen2.xlsx"},
		{models.GlobalScope(), "leaderboard_global_gen2.xlsx"},
		{models.RankScope{Type: models.ScopeDepartment, ID: "cse"}, "leaderboard_department-cse_gen2.xlsx"},
	}
	for _, tt := range tests {
		if got := FileName(&models.Leaderboard{Scope: tt.scope, Generation: 2}); got != tt.want {
			t.Errorf("FileName(%s) = %q, want %q", tt.scope, got, tt.want)
		}
	}
}
