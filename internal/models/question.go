package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionTrueFalse   QuestionType = "true_false"
	QuestionDescriptive QuestionType = "descriptive"
	QuestionCoding      QuestionType = "coding"
)

// IsObjective reports whether answers of this type are graded automatically.
func (t QuestionType) IsObjective() bool {
	return t == QuestionMCQ || t == QuestionTrueFalse
}

// Question is owned by the question bank; exams reference it by id.
type Question struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	Type          QuestionType `json:"type" gorm:"not null;size:20;index"`
	Text          string       `json:"text" gorm:"type:text;not null"`
	Marks         float64      `json:"marks" gorm:"not null"`
	NegativeMarks float64      `json:"negative_marks" gorm:"not null;default:0"`

	// Type-specific payload, including correctness data.
	Content datatypes.JSON `json:"content" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// ===== QUESTION CONTENT SCHEMAS =====

type MCQContent struct {
	Options []ChoiceOption `json:"options"`
}

type ChoiceOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type TrueFalseContent struct {
	CorrectAnswer bool `json:"correct_answer"`
}

type DescriptiveContent struct {
	ReferenceAnswer string `json:"reference_answer"`
	MinWords        *int   `json:"min_words,omitempty"`
	MaxWords        *int   `json:"max_words,omitempty"`
}

type CodingContent struct {
	Language  string     `json:"language"`
	Starter   string     `json:"starter,omitempty"`
	TestCases []TestCase `json:"test_cases"`
}

type TestCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Hidden   bool   `json:"hidden"`
}

// ===== ANSWER SCHEMAS =====

type MCQResponse struct {
	SelectedOption string `json:"selected_option"`
}

type TrueFalseResponse struct {
	Value *bool `json:"value"`
}

type DescriptiveResponse struct {
	Text string `json:"text"`
}

type CodingResponse struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

// StudentView returns a copy of the question with correctness data removed.
func (q Question) StudentView() Question {
	view := q
	switch q.Type {
	case QuestionMCQ:
		var content MCQContent
		if err := json.Unmarshal(q.Content, &content); err == nil {
			for i := range content.Options {
				content.Options[i].IsCorrect = false
			}
			view.Content = toJSON(content)
		} else {
			view.Content = nil
		}
	case QuestionTrueFalse:
		view.Content = nil
	case QuestionDescriptive:
		var content DescriptiveContent
		if err := json.Unmarshal(q.Content, &content); err == nil {
			content.ReferenceAnswer = ""
			view.Content = toJSON(content)
		} else {
			view.Content = nil
		}
	case QuestionCoding:
		var content CodingContent
		if err := json.Unmarshal(q.Content, &content); err == nil {
			visible := content.TestCases[:0]
			for _, tc := range content.TestCases {
				if !tc.Hidden {
					visible = append(visible, tc)
				}
			}
			content.TestCases = visible
			view.Content = toJSON(content)
		} else {
			view.Content = nil
		}
	}
	return view
}

func toJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
