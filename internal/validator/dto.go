package validator

import "github.com/learnforge/assessment-core/internal/models"

// AssessmentCreateRequest carries the instructor-supplied configuration for a
// new assessment.
type AssessmentCreateRequest struct {
	LessonID     uint   `json:"lesson_id" validate:"required"`
	Title        string `json:"title" validate:"required,min=1,max=200"`
	PassingScore int    `json:"passing_score" validate:"min=0,max=100"`
	MaxAttempts  int    `json:"max_attempts" validate:"min=0"`
	TimeLimit    int    `json:"time_limit" validate:"min=0"` // minutes, 0 = unlimited

	RandomizeQuestions bool `json:"randomize_questions"`
	ShowCorrectAnswers bool `json:"show_correct_answers"`
	ShowResults        bool `json:"show_results"`
}

// AssessmentUpdateRequest updates mutable assessment configuration.
type AssessmentUpdateRequest struct {
	Title              *string `json:"title" validate:"omitempty,min=1,max=200"`
	PassingScore       *int    `json:"passing_score" validate:"omitempty,min=0,max=100"`
	MaxAttempts        *int    `json:"max_attempts" validate:"omitempty,min=0"`
	TimeLimit          *int    `json:"time_limit" validate:"omitempty,min=0"`
	RandomizeQuestions *bool   `json:"randomize_questions"`
	ShowCorrectAnswers *bool   `json:"show_correct_answers"`
	ShowResults        *bool   `json:"show_results"`
}

// QuestionCreateRequest accepts the question body under either of its two
// historical names; ResolveText collapses them to the canonical value.
type QuestionCreateRequest struct {
	QuestionText string              `json:"question_text"`
	Text         string              `json:"text"`
	Type         models.QuestionType `json:"type" validate:"required,question_type"`
	Points       int                 `json:"points" validate:"min=1"`
	Order        *int                `json:"order" validate:"omitempty,min=1"` // auto-assigned when nil
	Explanation  *string             `json:"explanation" validate:"omitempty,max=1000"`

	Answers []AnswerCreateRequest `json:"answers" validate:"omitempty,dive"`
}

// ResolveText returns the canonical question body: question_text wins when
// both names are set, otherwise whichever is present.
func (r *QuestionCreateRequest) ResolveText() string {
	if r.QuestionText != "" {
		return r.QuestionText
	}
	return r.Text
}

// AnswerCreateRequest mirrors QuestionCreateRequest for answer options.
type AnswerCreateRequest struct {
	AnswerText  string  `json:"answer_text"`
	Text        string  `json:"text"`
	IsCorrect   bool    `json:"is_correct"`
	Order       *int    `json:"order" validate:"omitempty,min=1"`
	Explanation *string `json:"explanation" validate:"omitempty,max=1000"`
}

// ResolveText returns the canonical answer body, answer_text winning.
func (r *AnswerCreateRequest) ResolveText() string {
	if r.AnswerText != "" {
		return r.AnswerText
	}
	return r.Text
}

// StartAttemptRequest opens a new attempt for the calling user.
type StartAttemptRequest struct {
	AssessmentID uint   `json:"assessment_id" validate:"required"`
	IPAddress    string `json:"ip_address" validate:"omitempty,max=45"`
	UserAgent    string `json:"user_agent"`
}

// SubmitAnswerRequest records (or overwrites) the response to one question.
type SubmitAnswerRequest struct {
	QuestionID       uint              `json:"question_id" validate:"required"`
	SelectedAnswerID *uint             `json:"selected_answer_id"`
	TextAnswer       *string           `json:"text_answer"`
	MatchingPairs    map[string]string `json:"matching_pairs"`
}

// FinalizeAttemptRequest closes an attempt. TimeTakenSeconds is only honored
// when the attempt has no recorded start time; otherwise the server computes
// the duration itself.
type FinalizeAttemptRequest struct {
	TimeTakenSeconds *int `json:"time_taken_seconds" validate:"omitempty,min=0"`
}

// OverrideGradeRequest is the manual-grading path for essay and matching
// responses. It never re-runs automatic grading.
type OverrideGradeRequest struct {
	PointsEarned int     `json:"points_earned" validate:"min=0"`
	IsCorrect    *bool   `json:"is_correct"`
	Feedback     *string `json:"feedback" validate:"omitempty,max=2000"`
}
