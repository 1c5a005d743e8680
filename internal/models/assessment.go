package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxAttemptsUnlimited is the sentinel for assessments with no attempt cap.
const MaxAttemptsUnlimited = 0

// TimeLimitUnlimited is the sentinel for assessments with no time limit.
const TimeLimitUnlimited = 0

type Assessment struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	LessonID uint   `json:"lesson_id" gorm:"not null;uniqueIndex"`
	Title    string `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`

	PassingScore int `json:"passing_score" gorm:"not null;default:70" validate:"min=0,max=100"`
	MaxAttempts  int `json:"max_attempts" gorm:"not null;default:3" validate:"min=0"`
	TimeLimit    int `json:"time_limit" gorm:"not null;default:0" validate:"min=0"` // minutes, 0 = unlimited

	RandomizeQuestions bool `json:"randomize_questions" gorm:"not null;default:false"`
	ShowCorrectAnswers bool `json:"show_correct_answers" gorm:"not null;default:true"`
	ShowResults        bool `json:"show_results" gorm:"not null;default:true"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question          `json:"questions,omitempty" gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE"`
	Attempts  []AssessmentAttempt `json:"attempts,omitempty" gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE"`
}

// HasAttemptLimit reports whether MaxAttempts caps the number of attempts.
// MaxAttemptsUnlimited (zero) means no cap.
func (a *Assessment) HasAttemptLimit() bool {
	return a.MaxAttempts > MaxAttemptsUnlimited
}

// HasTimeLimit reports whether attempts against this assessment expire.
func (a *Assessment) HasTimeLimit() bool {
	return a.TimeLimit > TimeLimitUnlimited
}

// Deadline returns the instant an attempt started at the given time expires,
// or nil when the assessment is untimed.
func (a *Assessment) Deadline(startedAt time.Time) *time.Time {
	if !a.HasTimeLimit() {
		return nil
	}
	d := startedAt.Add(time.Duration(a.TimeLimit) * time.Minute)
	return &d
}

func (Assessment) TableName() string {
	return "assessments"
}
