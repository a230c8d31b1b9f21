package app

import (
	"context"

	"quiz-room-service/internal/domain"
)

// QuestionRepository loads question sets (from cache/backing store).
type QuestionRepository interface {
	GetQuestionSet(ctx context.Context, quizID string) (domain.QuestionSet, error)
}
