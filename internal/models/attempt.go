package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AttemptEndReasonCompleted = "completed"
	AttemptEndReasonTimeout   = "time_out"
)

// AssessmentAttempt is one user's run through an assessment. AttemptNumber is
// sequential per (user, assessment) and assigned under a row lock; the
// composite unique index backs that up at the storage layer. Once IsCompleted
// is set the attempt is immutable.
type AssessmentAttempt struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	AssessmentID  uint   `json:"assessment_id" gorm:"not null;index;uniqueIndex:idx_user_assessment_attempt"`
	UserID        string `json:"user_id" gorm:"not null;index;size:255;uniqueIndex:idx_user_assessment_attempt"`
	AttemptNumber int    `json:"attempt_number" gorm:"not null;uniqueIndex:idx_user_assessment_attempt"`

	// Timing
	StartedAt        *time.Time `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	TimeTakenSeconds int        `json:"time_taken_seconds"`

	// Scoring, derived at finalization
	Score       int  `json:"score"`
	MaxScore    int  `json:"max_score"`
	IsCompleted bool `json:"is_completed" gorm:"not null;default:false;index"`
	IsPassed    bool `json:"is_passed" gorm:"not null;default:false"`

	// Metadata
	IPAddress *string `json:"ip_address,omitempty" gorm:"size:45"`
	UserAgent *string `json:"user_agent,omitempty" gorm:"type:text"`
	EndReason *string `json:"end_reason,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Assessment Assessment      `json:"assessment,omitempty" gorm:"foreignKey:AssessmentID"`
	Answers    []AttemptAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

// ScorePercentage returns the attempt score as a percentage of MaxScore.
// A zero MaxScore counts as 0% so finalization never divides by zero.
func (a *AssessmentAttempt) ScorePercentage() float64 {
	if a.MaxScore <= 0 {
		return 0
	}
	return float64(a.Score) / float64(a.MaxScore) * 100
}

// ExpiresAt returns the attempt deadline, or nil when untimed or not started.
func (a *AssessmentAttempt) ExpiresAt(assessment *Assessment) *time.Time {
	if a.StartedAt == nil {
		return nil
	}
	return assessment.Deadline(*a.StartedAt)
}

func (AssessmentAttempt) TableName() string {
	return "assessment_attempts"
}

// AttemptAnswer is a user's response to one question of one attempt, at most
// one row per (attempt, question). SelectedAnswerID is a weak reference: the
// answer option may be deleted independently.
type AttemptAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`

	// Response content: a selected option for choice types, free text for
	// open-ended types, or a structured pairing for matching questions.
	SelectedAnswerID *uint          `json:"selected_answer_id,omitempty"`
	TextAnswer       *string        `json:"text_answer,omitempty" gorm:"type:text"`
	MatchingPairs    datatypes.JSON `json:"matching_pairs,omitempty" gorm:"type:jsonb"` // map[left]right

	// Grading. IsCorrect stays nil for types that wait on manual grading.
	IsCorrect      *bool   `json:"is_correct"`
	PointsEarned   int     `json:"points_earned"`
	Feedback       *string `json:"feedback,omitempty" gorm:"type:text"`
	ManuallyGraded bool    `json:"manually_graded" gorm:"not null;default:false"`

	AnsweredAt time.Time `json:"answered_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Relations
	Attempt  AssessmentAttempt `json:"-" gorm:"foreignKey:AttemptID"`
	Question Question          `json:"-" gorm:"foreignKey:QuestionID"`
	Selected *Answer           `json:"-" gorm:"foreignKey:SelectedAnswerID;constraint:OnDelete:SET NULL"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}
