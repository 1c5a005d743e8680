package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeDelete deletes cache keys, logging instead of propagating failures.
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// SafeInvalidatePattern invalidates a pattern, logging failures.
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// InvalidateAssessmentCache drops everything derived from one assessment's
// configuration: the assessment itself, its question list and its stats.
func InvalidateAssessmentCache(ctx context.Context, cm *CacheManager, assessmentID uint) {
	SafeDelete(ctx, cm.Assessment,
		fmt.Sprintf("id:%d", assessmentID),
		fmt.Sprintf("max_score:%d", assessmentID))
	SafeInvalidatePattern(ctx, cm.Question, fmt.Sprintf("assessment:%d:*", assessmentID))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("assessment:%d:*", assessmentID))
}

// InvalidateQuestionCache drops a question and its parent assessment's
// derived values (question list, max score).
func InvalidateQuestionCache(ctx context.Context, cm *CacheManager, questionID, assessmentID uint) {
	SafeDelete(ctx, cm.Question, fmt.Sprintf("id:%d", questionID))
	SafeDelete(ctx, cm.Assessment, fmt.Sprintf("max_score:%d", assessmentID))
	SafeInvalidatePattern(ctx, cm.Question, fmt.Sprintf("assessment:%d:*", assessmentID))
}

// InvalidateAttemptCache drops one attempt's cached result and the
// assessment stats it feeds.
func InvalidateAttemptCache(ctx context.Context, cm *CacheManager, attemptID, assessmentID uint) {
	SafeDelete(ctx, cm.Attempt, fmt.Sprintf("result:%d", attemptID))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("assessment:%d:*", assessmentID))
}
