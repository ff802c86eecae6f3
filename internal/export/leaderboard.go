// Package export renders leaderboards as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	leaderboardSheet = "Leaderboard"
)

var leaderboardHeader = []string{"Rank", "Student", "Attempt", "Exam", "Score", "Percentage", "Submitted At"}

// FileName returns the download name for a board, e.g. leaderboard_exam-12_gen3.xlsx.
func FileName(board *models.Leaderboard) string {
	scope := strings.ReplaceAll(board.Scope.String(), ":", "-")
	return fmt.Sprintf("leaderboard_%s_gen%d.xlsx", scope, board.Generation)
}

// WriteLeaderboard writes board as a single-sheet workbook to w.
func WriteLeaderboard(w io.Writer, board *models.Leaderboard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), leaderboardSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DCE6F1"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, 1, toAny(leaderboardHeader)); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(leaderboardHeader), 1)
	if err := f.SetCellStyle(leaderboardSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, e := range board.Entries {
		row := []any{
			e.Rank,
			e.StudentID,
			e.AttemptID,
			e.ExamID,
			e.Score,
			e.Percentage,
			e.SubmittedAt.UTC().Format(time.RFC3339),
		}
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	// footer with the board's provenance
	footer := len(board.Entries) + 3
	if err := writeRow(f, footer, []any{"Scope", board.Scope.String(), "Generation", board.Generation, "Computed At", board.ComputedAt.UTC().Format(time.RFC3339)}); err != nil {
		return err
	}

	if err := f.SetColWidth(leaderboardSheet, "A", "G", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(leaderboardSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(leaderboardSheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
