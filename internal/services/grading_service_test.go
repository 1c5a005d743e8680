package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnforge/assessment-core/internal/models"
)

func boolPtr(b bool) *bool { return &b }

// seedEssayAttempt builds an attempt with one graded choice answer and one
// essay response waiting for a manual grade.
func seedEssayAttempt(t *testing.T, env *testEnv) (attemptID uint, essayAnswerID uint) {
	t.Helper()
	ctx := context.Background()
	attempts := env.attemptService()

	assessment := env.seedAssessment(t, &models.Assessment{LessonID: 1, MaxAttempts: 3, PassingScore: 70})
	choice := env.seedChoiceQuestion(t, assessment.ID, 1, 5)

	essay := &models.Question{AssessmentID: assessment.ID, Type: models.Essay, Points: 5, Order: 2}
	essay.SetText("Explain your reasoning")
	require.NoError(t, env.repo.Question().Create(ctx, nil, essay))

	attempt, err := attempts.Start(ctx, &StartAttemptRequest{AssessmentID: assessment.ID}, testStudentID)
	require.NoError(t, err)

	correctID := env.correctOption(t, choice)
	_, err = attempts.SubmitAnswer(ctx, attempt.ID, &SubmitAnswerRequest{QuestionID: choice.ID, SelectedAnswerID: &correctID}, testStudentID)
	require.NoError(t, err)

	text := "Because the invariant holds."
	essayAnswer, err := attempts.SubmitAnswer(ctx, attempt.ID, &SubmitAnswerRequest{QuestionID: essay.ID, TextAnswer: &text}, testStudentID)
	require.NoError(t, err)
	require.Nil(t, essayAnswer.IsCorrect)
	require.Zero(t, essayAnswer.PointsEarned)

	return attempt.ID, essayAnswer.ID
}

func TestGradingService_ListPendingManual(t *testing.T) {
	env := newTestEnv(t)
	grading := env.gradingService()
	ctx := context.Background()

	attemptID, essayAnswerID := seedEssayAttempt(t, env)

	pending, err := grading.ListPendingManual(ctx, attemptID, testInstructorID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, essayAnswerID, pending[0].ID)

	t.Run("students cannot list", func(t *testing.T) {
		_, err := grading.ListPendingManual(ctx, attemptID, testStudentID)
		assert.True(t, IsPermissionError(err))
	})
}

func TestGradingService_OverrideGrade_BeforeFinalize(t *testing.T) {
	env := newTestEnv(t)
	grading := env.gradingService()
	attempts := env.attemptService()
	ctx := context.Background()

	attemptID, essayAnswerID := seedEssayAttempt(t, env)

	feedback := "Well argued."
	graded, err := grading.OverrideGrade(ctx, essayAnswerID, &OverrideGradeRequest{
		PointsEarned: 4,
		IsCorrect:    boolPtr(true),
		Feedback:     &feedback,
	}, testInstructorID)
	require.NoError(t, err)
	assert.Equal(t, 4, graded.PointsEarned)
	assert.True(t, graded.ManuallyGraded)

	// The manual points flow into finalization: 5 + 4 = 9 of 10 passes at 70%.
	result, err := attempts.Finalize(ctx, attemptID, nil, testStudentID)
	require.NoError(t, err)
	assert.Equal(t, 9, result.Attempt.Score)
	assert.True(t, result.Attempt.IsPassed)
	assert.Zero(t, result.PendingManual)
}

func TestGradingService_OverrideGrade_AfterFinalize(t *testing.T) {
	env := newTestEnv(t)
	grading := env.gradingService()
	attempts := env.attemptService()
	ctx := context.Background()

	attemptID, essayAnswerID := seedEssayAttempt(t, env)

	// Finalized with the essay ungraded: 5 of 10 fails at 70%.
	result, err := attempts.Finalize(ctx, attemptID, nil, testStudentID)
	require.NoError(t, err)
	assert.False(t, result.Attempt.IsPassed)
	assert.Equal(t, 1, result.PendingManual)

	// Post-hoc grading recomputes the aggregate without re-running automatic
	// grading.
	_, err = grading.OverrideGrade(ctx, essayAnswerID, &OverrideGradeRequest{
		PointsEarned: 5,
		IsCorrect:    boolPtr(true),
	}, testInstructorID)
	require.NoError(t, err)

	regraded, err := attempts.Result(ctx, attemptID, testStudentID)
	require.NoError(t, err)
	assert.Equal(t, 10, regraded.Attempt.Score)
	assert.True(t, regraded.Attempt.IsPassed)
	assert.Zero(t, regraded.PendingManual)
}

func TestGradingService_OverrideGrade_Guards(t *testing.T) {
	env := newTestEnv(t)
	grading := env.gradingService()
	ctx := context.Background()

	_, essayAnswerID := seedEssayAttempt(t, env)

	t.Run("students cannot grade", func(t *testing.T) {
		_, err := grading.OverrideGrade(ctx, essayAnswerID, &OverrideGradeRequest{PointsEarned: 1}, testStudentID)
		assert.True(t, IsPermissionError(err))
	})

	t.Run("points capped at question worth", func(t *testing.T) {
		_, err := grading.OverrideGrade(ctx, essayAnswerID, &OverrideGradeRequest{PointsEarned: 50}, testInstructorID)
		assert.True(t, IsValidationError(err))
	})

	t.Run("unknown answer", func(t *testing.T) {
		_, err := grading.OverrideGrade(ctx, 9999, &OverrideGradeRequest{PointsEarned: 1}, testInstructorID)
		assert.ErrorIs(t, err, ErrAttemptAnswerNotFound)
	})
}

func TestGradingService_Stats(t *testing.T) {
	env := newTestEnv(t)
	grading := env.gradingService()
	attempts := env.attemptService()
	ctx := context.Background()

	assessment := env.seedAssessment(t, &models.Assessment{LessonID: 1, MaxAttempts: 3, PassingScore: 70})
	question := env.seedChoiceQuestion(t, assessment.ID, 1, 10)

	// One pass, one fail, across two users.
	for _, tc := range []struct {
		user    string
		correct bool
	}{
		{testStudentID, true},
		{testStudent2ID, false},
	} {
		attempt, err := attempts.Start(ctx, &StartAttemptRequest{AssessmentID: assessment.ID}, tc.user)
		require.NoError(t, err)
		optionID := env.wrongOption(t, question)
		if tc.correct {
			optionID = env.correctOption(t, question)
		}
		_, err = attempts.SubmitAnswer(ctx, attempt.ID, &SubmitAnswerRequest{QuestionID: question.ID, SelectedAnswerID: &optionID}, tc.user)
		require.NoError(t, err)
		_, err = attempts.Finalize(ctx, attempt.ID, nil, tc.user)
		require.NoError(t, err)
	}

	stats, err := grading.Stats(ctx, assessment.ID, testInstructorID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAttempts)
	assert.Equal(t, 1, stats.PassedAttempts)
	assert.Equal(t, 2, stats.DistinctUsers)
	assert.Equal(t, 10, stats.HighestScore)
	assert.InDelta(t, 5.0, stats.AverageScore, 0.001)
	assert.InDelta(t, 50.0, stats.PassRatePercent, 0.001)
}

func TestGradingService_OverrideGrade_AutoGradedType(t *testing.T) {
	env := newTestEnv(t)
	grading := env.gradingService()
	attempts := env.attemptService()
	ctx := context.Background()

	assessment := env.seedAssessment(t, &models.Assessment{LessonID: 1, MaxAttempts: 3})
	question := env.seedChoiceQuestion(t, assessment.ID, 1, 5)

	attempt, err := attempts.Start(ctx, &StartAttemptRequest{AssessmentID: assessment.ID}, testStudentID)
	require.NoError(t, err)
	correctID := env.correctOption(t, question)
	answer, err := attempts.SubmitAnswer(ctx, attempt.ID, &SubmitAnswerRequest{QuestionID: question.ID, SelectedAnswerID: &correctID}, testStudentID)
	require.NoError(t, err)

	_, err = grading.OverrideGrade(ctx, answer.ID, &OverrideGradeRequest{PointsEarned: 0}, testInstructorID)
	assert.ErrorIs(t, err, ErrNotManuallyGradable)
}
