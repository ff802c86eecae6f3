package services

import (
	"encoding/json"
	"strings"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
)

// gradingRule grades one response against one question. Rules are pure: the
// same inputs always give the same grade.
type gradingRule func(q *models.Question, response []byte, penalty float64) models.AnswerGrade

var gradingRules = map[models.QuestionType]gradingRule{
	models.QuestionMCQ:         gradeMCQ,
	models.QuestionTrueFalse:   gradeTrueFalse,
	models.QuestionDescriptive: awaitManualGrade,
	models.QuestionCoding:      awaitManualGrade,
}

// EvaluateAnswer grades ans with the rule registered for the question type.
// An objective answer that is already evaluated keeps its grade, and so does
// a subjective answer a grader has already marked.
func EvaluateAnswer(exam *models.Exam, q *models.Question, ans *models.Answer) models.AnswerGrade {
	if ans.IsEvaluated {
		return gradeOf(ans)
	}
	rule, ok := gradingRules[q.Type]
	if !ok {
		return awaitManualGrade(q, ans.Response, 0)
	}
	return rule(q, ans.Response, penaltyFor(exam, q))
}

// penaltyFor is the deduction for a wrong objective answer. A per-question
// value overrides the exam-wide one.
func penaltyFor(exam *models.Exam, q *models.Question) float64 {
	if !exam.NegativeMarkingEnabled {
		return 0
	}
	if q.NegativeMarks > 0 {
		return q.NegativeMarks
	}
	return exam.NegativeMarkPerWrong
}

func gradeMCQ(q *models.Question, response []byte, penalty float64) models.AnswerGrade {
	if isBlank(response) {
		return unanswered()
	}

	var resp models.MCQResponse
	if err := json.Unmarshal(response, &resp); err != nil {
		return malformed()
	}
	selected := strings.TrimSpace(resp.SelectedOption)
	if selected == "" {
		return unanswered()
	}

	var content models.MCQContent
	if err := json.Unmarshal(q.Content, &content); err != nil {
		return malformed()
	}

	for _, opt := range content.Options {
		if opt.ID == selected {
			return objectiveGrade(opt.IsCorrect, q.Marks, penalty)
		}
	}
	// an option id the question does not offer
	return objectiveGrade(false, q.Marks, penalty)
}

func gradeTrueFalse(q *models.Question, response []byte, penalty float64) models.AnswerGrade {
	if isBlank(response) {
		return unanswered()
	}

	var resp models.TrueFalseResponse
	if err := json.Unmarshal(response, &resp); err != nil {
		return malformed()
	}
	if resp.Value == nil {
		return unanswered()
	}

	var content models.TrueFalseContent
	if err := json.Unmarshal(q.Content, &content); err != nil {
		return malformed()
	}
	return objectiveGrade(*resp.Value == content.CorrectAnswer, q.Marks, penalty)
}

func awaitManualGrade(*models.Question, []byte, float64) models.AnswerGrade {
	return models.AnswerGrade{IsEvaluated: false, MarksAwarded: 0}
}

func objectiveGrade(correct bool, marks, penalty float64) models.AnswerGrade {
	g := models.AnswerGrade{IsEvaluated: true, IsCorrect: boolPtr(correct)}
	if correct {
		g.MarksAwarded = marks
	} else if penalty > 0 {
		g.MarksAwarded = -penalty
	}
	return g
}

func unanswered() models.AnswerGrade {
	return models.AnswerGrade{IsEvaluated: true, IsCorrect: boolPtr(false), MarksAwarded: 0}
}

// malformed responses score zero without a penalty; the student's intent
// cannot be read from them.
func malformed() models.AnswerGrade {
	return models.AnswerGrade{IsEvaluated: true, IsCorrect: boolPtr(false), MarksAwarded: 0}
}

func gradeOf(ans *models.Answer) models.AnswerGrade {
	return models.AnswerGrade{
		IsEvaluated:  ans.IsEvaluated,
		IsCorrect:    ans.IsCorrect,
		MarksAwarded: ans.MarksAwarded,
		Feedback:     ans.Feedback,
		GradedBy:     ans.GradedBy,
		GradedAt:     ans.GradedAt,
	}
}

func isBlank(response []byte) bool {
	s := strings.TrimSpace(string(response))
	return s == "" || s == "null" || s == "{}"
}

func boolPtr(b bool) *bool {
	return &b
}
