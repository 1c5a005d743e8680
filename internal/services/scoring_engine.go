package services

import (
	"encoding/json"
	"strings"

	"github.com/learnforge/assessment-core/internal/models"
)

// GradeResult is the outcome of grading one response. IsCorrect stays nil for
// types that wait on manual grading.
type GradeResult struct {
	IsCorrect    *bool
	PointsEarned int
}

func graded(correct bool, points int) GradeResult {
	earned := 0
	if correct {
		earned = points
	}
	return GradeResult{IsCorrect: &correct, PointsEarned: earned}
}

var pendingManual = GradeResult{}

// GradeQuestion scores one response against its question. Pure: no I/O, the
// question must arrive with its answers loaded. Unanswered auto-gradable
// responses grade as incorrect with zero points.
func GradeQuestion(question *models.Question, answer *models.AttemptAnswer) GradeResult {
	switch question.Type {
	case models.MultipleChoice, models.TrueFalse:
		return gradeChoice(question, answer)
	case models.ShortAnswer, models.FillBlank:
		return gradeText(question, answer)
	case models.Essay, models.Matching:
		// Manual grading decides these; matching pairs have no canonical key
		// stored alongside the question.
		return pendingManual
	default:
		return pendingManual
	}
}

func gradeChoice(question *models.Question, answer *models.AttemptAnswer) GradeResult {
	if answer.SelectedAnswerID == nil {
		return graded(false, question.Points)
	}
	for _, option := range question.Answers {
		if option.ID == *answer.SelectedAnswerID {
			return graded(option.IsCorrect, question.Points)
		}
	}
	// Selected option no longer exists (deleted after submission).
	return graded(false, question.Points)
}

// gradeText matches the response against every correct answer's text,
// case-insensitively and ignoring surrounding whitespace.
func gradeText(question *models.Question, answer *models.AttemptAnswer) GradeResult {
	if answer.TextAnswer == nil {
		return graded(false, question.Points)
	}
	given := normalizeText(*answer.TextAnswer)
	if given == "" {
		return graded(false, question.Points)
	}
	for _, option := range question.Answers {
		if option.IsCorrect && normalizeText(option.Text()) == given {
			return graded(true, question.Points)
		}
	}
	return graded(false, question.Points)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MatchingPairsJSON encodes the submitted pairing for storage.
func MatchingPairsJSON(pairs map[string]string) ([]byte, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	return json.Marshal(pairs)
}
