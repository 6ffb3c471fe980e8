package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/quizbot/pkg/models"
)

var ErrGenerationFailed = errors.New("question generation failed")

const promptTemplate = `Сгенерируй %d экзаменационных вопросов для подготовки к ОГЭ по предмету "%s" уровня сложности "%s".

Каждый вопрос - список из 4 элементов:
[
"Вопрос",
{
    "A": "...",
    "B": "...",
    "C": "...",
    "D": "..."
},
"Правильный вариант (A|B|C|D)",
"Подробное объяснение"
]

Ответ: только валидный JSON-список из %d таких списков. Без заголовков, markdown и комментариев.`

// Generator retries a Completer until it produces a well-formed quiz
type Generator struct {
	completer  Completer
	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewGenerator creates a generator with the given attempt budget
func NewGenerator(completer Completer, attempts int, retryDelay time.Duration, logger *slog.Logger) *Generator {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		completer:  completer,
		attempts:   attempts,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// BuildPrompt renders the generation prompt for a subject and level label
func BuildPrompt(subject, level string) string {
	return fmt.Sprintf(promptTemplate, QuestionCount, subject, level, QuestionCount)
}

// Generate returns exactly QuestionCount questions or ErrGenerationFailed once
// every attempt was rejected
func (g *Generator) Generate(ctx context.Context, subject, level string) ([]models.Question, error) {
	prompt := BuildPrompt(subject, level)

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}

		content, err := g.completer.Complete(ctx, prompt)
		if err == nil {
			var questions []models.Question
			questions, err = ParseQuestions(content)
			if err == nil {
				g.logger.Info("quiz generated", "subject", subject, "level", level, "attempt", attempt)
				return questions, nil
			}
		}

		lastErr = err
		g.logger.Warn("generation attempt failed",
			"subject", subject,
			"attempt", attempt,
			"of", g.attempts,
			"error", err,
		)

		var transportErr *TransportError
		if errors.As(err, &transportErr) && attempt < g.attempts {
			if err := sleep(ctx, g.retryDelay); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
			}
		}
	}

	g.logger.Error("no valid quiz after all attempts", "subject", subject, "attempts", g.attempts)
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrGenerationFailed, g.attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
