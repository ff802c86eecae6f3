package services

import (
	"sort"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

// DenseRank orders evaluated results by percentage (highest first), breaking
// ties by earlier submission and then attempt id. Results with an equal
// percentage share a rank; the next distinct percentage takes its 1-based
// position, so 90, 90, 70 ranks as 1, 1, 3. Results that are not evaluated
// are ignored.
func DenseRank(results []*models.Result) []models.LeaderboardEntry {
	ranked := make([]*models.Result, 0, len(results))
	for _, r := range results {
		if r.Status == models.ResultEvaluated {
			ranked = append(ranked, r)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Percentage != b.Percentage {
			return a.Percentage > b.Percentage
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.AttemptID < b.AttemptID
	})

	entries := make([]models.LeaderboardEntry, 0, len(ranked))
	rank := 0
	for i, r := range ranked {
		if i == 0 || r.Percentage != ranked[i-1].Percentage {
			rank = i + 1
		}
		entries = append(entries, models.LeaderboardEntry{
			Rank:        rank,
			StudentID:   r.StudentID,
			AttemptID:   r.AttemptID,
			ExamID:      r.ExamID,
			Percentage:  r.Percentage,
			Score:       r.Score,
			SubmittedAt: r.SubmittedAt,
		})
	}
	return entries
}

// ranksByAttempt indexes leaderboard ranks by attempt id.
func ranksByAttempt(entries []models.LeaderboardEntry) map[uint]int {
	out := make(map[uint]int, len(entries))
	for _, e := range entries {
		out[e.AttemptID] = e.Rank
	}
	return out
}
