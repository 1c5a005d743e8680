package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnforge/assessment-core/internal/models"
)

func TestValidator_QuestionCreateRequest(t *testing.T) {
	v := New()

	t.Run("valid", func(t *testing.T) {
		req := QuestionCreateRequest{
			QuestionText: "What is Go?",
			Type:         models.MultipleChoice,
			Points:       5,
		}
		assert.NoError(t, v.Validate(&req))
	})

	t.Run("unknown question type", func(t *testing.T) {
		req := QuestionCreateRequest{
			QuestionText: "What is Go?",
			Type:         models.QuestionType("ranking"),
			Points:       5,
		}
		err := v.Validate(&req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question_type")
	})

	t.Run("zero points", func(t *testing.T) {
		req := QuestionCreateRequest{
			QuestionText: "What is Go?",
			Type:         models.TrueFalse,
			Points:       0,
		}
		assert.Error(t, v.Validate(&req))
	})
}

func TestValidator_AssessmentCreateRequest(t *testing.T) {
	v := New()

	t.Run("passing score over 100", func(t *testing.T) {
		req := AssessmentCreateRequest{LessonID: 1, Title: "Quiz", PassingScore: 101}
		assert.Error(t, v.Validate(&req))
	})

	t.Run("zero sentinels accepted", func(t *testing.T) {
		req := AssessmentCreateRequest{
			LessonID:    1,
			Title:       "Quiz",
			MaxAttempts: models.MaxAttemptsUnlimited,
			TimeLimit:   models.TimeLimitUnlimited,
		}
		assert.NoError(t, v.Validate(&req))
	})
}

func TestResolveText_Precedence(t *testing.T) {
	t.Run("question canonical wins", func(t *testing.T) {
		req := QuestionCreateRequest{QuestionText: "canonical", Text: "legacy"}
		assert.Equal(t, "canonical", req.ResolveText())
	})
	t.Run("question legacy fallback", func(t *testing.T) {
		req := QuestionCreateRequest{Text: "legacy"}
		assert.Equal(t, "legacy", req.ResolveText())
	})
	t.Run("answer canonical wins", func(t *testing.T) {
		req := AnswerCreateRequest{AnswerText: "canonical", Text: "legacy"}
		assert.Equal(t, "canonical", req.ResolveText())
	})
	t.Run("answer empty", func(t *testing.T) {
		req := AnswerCreateRequest{}
		assert.Equal(t, "", req.ResolveText())
	})
}
