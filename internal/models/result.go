package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ResultStatus string

const (
	ResultInProgress        ResultStatus = "in_progress"
	ResultPendingEvaluation ResultStatus = "pending_evaluation"
	ResultEvaluated         ResultStatus = "evaluated"
)

// Result is derived from a submitted Attempt and recomputed whenever one of
// its answer grades changes.
type Result struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	AttemptID uint   `json:"attempt_id" gorm:"not null;uniqueIndex"`
	ExamID    uint   `json:"exam_id" gorm:"not null;index"`
	StudentID string `json:"student_id" gorm:"not null;size:255;index"`

	// Scope membership captured at submission time.
	DepartmentID *string `json:"department_id,omitempty" gorm:"size:255;index"`
	CollegeID    *string `json:"college_id,omitempty" gorm:"size:255;index"`

	Score                 float64      `json:"score"`
	Percentage            float64      `json:"percentage" gorm:"index"`
	IsPassed              bool         `json:"is_passed"`
	Status                ResultStatus `json:"status" gorm:"not null;size:30;index"`
	TotalTimeTakenMinutes int          `json:"total_time_taken_minutes"`

	// Exam-scope rank, written only by the ranking engine.
	Rank           *int  `json:"rank"`
	RankGeneration int64 `json:"-" gorm:"not null;default:0"`

	SubmittedAt time.Time  `json:"submitted_at" gorm:"not null"`
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Result) TableName() string {
	return "results"
}

// ===== RANKING =====

type ScopeType string

const (
	ScopeExam       ScopeType = "exam"
	ScopeDepartment ScopeType = "department"
	ScopeCollege    ScopeType = "college"
	ScopeGlobal     ScopeType = "global"
)

// RankScope is the population a ranking is computed over.
type RankScope struct {
	Type ScopeType `json:"type"`
	ID   string    `json:"id,omitempty"`
}

func ExamScope(examID uint) RankScope {
	return RankScope{Type: ScopeExam, ID: strconv.FormatUint(uint64(examID), 10)}
}

func GlobalScope() RankScope {
	return RankScope{Type: ScopeGlobal}
}

// String renders the scope as "type:id", or "global".
func (s RankScope) String() string {
	if s.Type == ScopeGlobal {
		return string(ScopeGlobal)
	}
	return fmt.Sprintf("%s:%s", s.Type, s.ID)
}

// ParseRankScope parses the String form.
func ParseRankScope(raw string) (RankScope, error) {
	if raw == string(ScopeGlobal) {
		return GlobalScope(), nil
	}
	kind, id, ok := strings.Cut(raw, ":")
	if !ok || id == "" {
		return RankScope{}, fmt.Errorf("invalid scope %q", raw)
	}
	switch ScopeType(kind) {
	case ScopeExam:
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return RankScope{}, fmt.Errorf("invalid exam scope id %q", id)
		}
	case ScopeDepartment, ScopeCollege:
	default:
		return RankScope{}, fmt.Errorf("unknown scope type %q", kind)
	}
	return RankScope{Type: ScopeType(kind), ID: id}, nil
}

// ExamID returns the exam id of an exam scope.
func (s RankScope) ExamID() (uint, bool) {
	if s.Type != ScopeExam {
		return 0, false
	}
	id, err := strconv.ParseUint(s.ID, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// ScopesFor lists every scope a result participates in.
func ScopesFor(r *Result) []RankScope {
	scopes := []RankScope{ExamScope(r.ExamID)}
	if r.DepartmentID != nil && *r.DepartmentID != "" {
		scopes = append(scopes, RankScope{Type: ScopeDepartment, ID: *r.DepartmentID})
	}
	if r.CollegeID != nil && *r.CollegeID != "" {
		scopes = append(scopes, RankScope{Type: ScopeCollege, ID: *r.CollegeID})
	}
	return append(scopes, GlobalScope())
}

type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	StudentID   string    `json:"student_id"`
	AttemptID   uint      `json:"attempt_id"`
	ExamID      uint      `json:"exam_id"`
	Percentage  float64   `json:"percentage"`
	Score       float64   `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Leaderboard is one cached ranking of a scope.
type Leaderboard struct {
	Scope      RankScope          `json:"scope"`
	Generation int64              `json:"generation"`
	Entries    []LeaderboardEntry `json:"entries"`
	ComputedAt time.Time          `json:"computed_at"`
}
