package models

import (
	"encoding/json"
	"time"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
	Matching       QuestionType = "matching"
	FillBlank      QuestionType = "fill_blank"
)

// QuestionTypes lists every supported type, in display order.
var QuestionTypes = []QuestionType{
	MultipleChoice, TrueFalse, ShortAnswer, Essay, Matching, FillBlank,
}

// IsValid reports whether t is one of the supported question types.
func (t QuestionType) IsValid() bool {
	switch t {
	case MultipleChoice, TrueFalse, ShortAnswer, Essay, Matching, FillBlank:
		return true
	}
	return false
}

// IsAutoGradable reports whether answers of this type can be scored without
// human judgment. Essay and matching responses wait for manual grading.
func (t QuestionType) IsAutoGradable() bool {
	switch t {
	case MultipleChoice, TrueFalse, ShortAnswer, FillBlank:
		return true
	}
	return false
}

// Question belongs to exactly one Assessment. Order is dense, 1-based and
// unique per assessment; it is assigned under a row lock when the caller does
// not supply one.
type Question struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	AssessmentID uint `json:"assessment_id" gorm:"not null;index;uniqueIndex:idx_assessment_question_order"`

	// QuestionText is the canonical body column. Older clients know the same
	// attribute as "text"; both names are accepted on input and emitted on
	// output, but only this column is stored.
	QuestionText string       `json:"-" gorm:"column:question_text;type:text;not null" validate:"required"`
	Type         QuestionType `json:"type" gorm:"not null;index" validate:"required"`
	Points       int          `json:"points" gorm:"not null;default:1" validate:"min=1"`
	Order        int          `json:"order" gorm:"not null;uniqueIndex:idx_assessment_question_order"`
	Explanation  *string      `json:"explanation,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

// Text returns the question body under its legacy name.
func (q *Question) Text() string {
	return q.QuestionText
}

// SetText writes the question body through the legacy name.
func (q *Question) SetText(s string) {
	q.QuestionText = s
}

// MarshalJSON emits the body under both field names so that readers of either
// generation see the same value.
func (q Question) MarshalJSON() ([]byte, error) {
	type alias Question
	return json.Marshal(struct {
		alias
		QuestionText string `json:"question_text"`
		Text         string `json:"text"`
	}{
		alias:        alias(q),
		QuestionText: q.QuestionText,
		Text:         q.QuestionText,
	})
}

// UnmarshalJSON accepts the body under either field name. When both are
// present the canonical "question_text" wins, mirroring the input precedence
// of the request DTOs.
func (q *Question) UnmarshalJSON(data []byte) error {
	type alias Question
	aux := struct {
		*alias
		QuestionText string `json:"question_text"`
		Text         string `json:"text"`
	}{alias: (*alias)(q)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	q.QuestionText = aux.QuestionText
	if q.QuestionText == "" {
		q.QuestionText = aux.Text
	}
	return nil
}

func (Question) TableName() string {
	return "questions"
}

// Answer is one option of a Question. For multiple_choice at least one answer
// should be correct; for short_answer/fill_blank the correct answer's text is
// the expected response.
type Answer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_question_answer_order"`

	// AnswerText is canonical; "text" is the legacy alias, same contract as
	// Question.QuestionText.
	AnswerText  string  `json:"-" gorm:"column:answer_text;type:text;not null" validate:"required"`
	IsCorrect   bool    `json:"is_correct" gorm:"not null;default:false"`
	Order       int     `json:"order" gorm:"not null;uniqueIndex:idx_question_answer_order"`
	Explanation *string `json:"explanation,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Text returns the answer body under its legacy name.
func (a *Answer) Text() string {
	return a.AnswerText
}

// SetText writes the answer body through the legacy name.
func (a *Answer) SetText(s string) {
	a.AnswerText = s
}

func (a Answer) MarshalJSON() ([]byte, error) {
	type alias Answer
	return json.Marshal(struct {
		alias
		AnswerText string `json:"answer_text"`
		Text       string `json:"text"`
	}{
		alias:      alias(a),
		AnswerText: a.AnswerText,
		Text:       a.AnswerText,
	})
}

// UnmarshalJSON mirrors Question.UnmarshalJSON for the answer body aliases.
func (a *Answer) UnmarshalJSON(data []byte) error {
	type alias Answer
	aux := struct {
		*alias
		AnswerText string `json:"answer_text"`
		Text       string `json:"text"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.AnswerText = aux.AnswerText
	if a.AnswerText == "" {
		a.AnswerText = aux.Text
	}
	return nil
}

func (Answer) TableName() string {
	return "answers"
}
