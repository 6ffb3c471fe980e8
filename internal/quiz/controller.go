// Package quiz drives a single quiz attempt from subject choice to the final score.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/quizbot/internal/session"
	"github.com/example/quizbot/pkg/models"
	"github.com/google/uuid"
)

// QuestionCount is the length of every quiz
const QuestionCount = 10

// StaleNotice is shown when a button belongs to a finished or replaced quiz
const StaleNotice = "⚠️ Викторина уже завершена. Начните новую из меню."

var ErrStale = errors.New("interaction does not match the current quiz")

// Generator produces the questions of a quiz
type Generator interface {
	Generate(ctx context.Context, subject, level string) ([]models.Question, error)
}

// Recorder persists the score of a finished quiz
type Recorder interface {
	Record(ctx context.Context, chatID int64, score int, subject string) error
}

// Catalog lists the subjects offered to the user
type Catalog interface {
	List(ctx context.Context) ([]string, error)
}

// Ref identifies the chat message and callback an interaction came from
type Ref struct {
	ChatID     int64
	MessageID  int
	CallbackID string
}

// Progress is a message refreshed while questions are generated
type Progress interface {
	Update(ctx context.Context, frame int) error
}

// View renders quiz events to the user
type View interface {
	AskSubject(ctx context.Context, chatID int64, subjects []string) error
	AskLevel(ctx context.Context, chatID int64) error
	LevelChosen(ctx context.Context, ref Ref, subject string, level Level) error
	StartProgress(ctx context.Context, chatID int64) (Progress, error)
	ShowQuestion(ctx context.Context, chatID int64, index int, q models.Question) error
	ShowVerdict(ctx context.Context, ref Ref, correct bool, q models.Question) error
	OfferNext(ctx context.Context, chatID int64) error
	ShowResult(ctx context.Context, chatID int64, correct, total int) error
	GenerationFailed(ctx context.Context, chatID int64) error
	Notice(ctx context.Context, ref Ref, text string) error
}

// Controller runs the quiz state machine on top of a session store
type Controller struct {
	sessions         session.Store
	generator        Generator
	recorder         Recorder
	catalog          Catalog
	view             View
	logger           *slog.Logger
	progressInterval time.Duration
	newID            func() string

	locks [64]sync.Mutex
}

// NewController creates a quiz controller
func NewController(
	sessions session.Store,
	generator Generator,
	recorder Recorder,
	catalog Catalog,
	view View,
	progressInterval time.Duration,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if progressInterval <= 0 {
		progressInterval = 300 * time.Millisecond
	}
	return &Controller{
		sessions:         sessions,
		generator:        generator,
		recorder:         recorder,
		catalog:          catalog,
		view:             view,
		logger:           logger,
		progressInterval: progressInterval,
		newID:            uuid.NewString,
	}
}

// lock serializes state changes of one chat. It is never held while
// questions are generated.
func (c *Controller) lock(chatID int64) func() {
	idx := chatID % int64(len(c.locks))
	if idx < 0 {
		idx = -idx
	}
	m := &c.locks[idx]
	m.Lock()
	return m.Unlock
}

// Begin discards any previous quiz of the chat and asks for a subject
func (c *Controller) Begin(ctx context.Context, chatID int64) error {
	unlock := c.lock(chatID)
	defer unlock()

	if err := c.sessions.Put(ctx, chatID, &session.State{Step: session.StepQuizSubject}); err != nil {
		return fmt.Errorf("begin quiz: %w", err)
	}

	subjects, err := c.catalog.List(ctx)
	if err != nil {
		c.logger.Error("failed to list subjects", "chat_id", chatID, "error", err)
	}
	return c.view.AskSubject(ctx, chatID, subjects)
}

// Restart drops the current quiz unconditionally and starts over
func (c *Controller) Restart(ctx context.Context, chatID int64) error {
	if err := c.sessions.Delete(ctx, chatID); err != nil {
		c.logger.Error("failed to clear session", "chat_id", chatID, "error", err)
	}
	return c.Begin(ctx, chatID)
}

// ChooseSubject stores the typed subject, lower-cased, and asks for a level.
// Subjects are not checked against the catalog.
func (c *Controller) ChooseSubject(ctx context.Context, chatID int64, text string) error {
	unlock := c.lock(chatID)
	defer unlock()

	state, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if state == nil || state.Step != session.StepQuizSubject {
		return ErrStale
	}

	subject := strings.ToLower(strings.TrimSpace(text))
	if subject == "" {
		subjects, err := c.catalog.List(ctx)
		if err != nil {
			c.logger.Error("failed to list subjects", "chat_id", chatID, "error", err)
		}
		return c.view.AskSubject(ctx, chatID, subjects)
	}

	state.Step = session.StepQuizLevel
	state.Quiz = &session.Quiz{Subject: subject}
	if err := c.sessions.Put(ctx, chatID, state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return c.view.AskLevel(ctx, chatID)
}

// ChooseLevel starts generation for the chosen level and, once questions
// arrive, presents the first one. It blocks until generation resolves.
func (c *Controller) ChooseLevel(ctx context.Context, ref Ref, data string) error {
	level, ok := ParseLevel(data)
	if !ok {
		return c.view.Notice(ctx, ref, "Некорректный выбор.")
	}

	unlock := c.lock(ref.ChatID)
	state, err := c.sessions.Get(ctx, ref.ChatID)
	if err != nil {
		unlock()
		return fmt.Errorf("load session: %w", err)
	}
	if state == nil || state.Step != session.StepQuizLevel || state.Quiz == nil {
		unlock()
		c.view.Notice(ctx, ref, StaleNotice)
		return ErrStale
	}

	quizID := c.newID()
	subject := state.Quiz.Subject
	state.Step = session.StepQuizGenerating
	state.Quiz.ID = quizID
	state.Quiz.Level = string(level)
	if err := c.sessions.Put(ctx, ref.ChatID, state); err != nil {
		unlock()
		return fmt.Errorf("save session: %w", err)
	}
	unlock()

	if err := c.view.LevelChosen(ctx, ref, subject, level); err != nil {
		c.logger.Warn("failed to confirm level", "chat_id", ref.ChatID, "error", err)
	}

	questions, genErr := c.generate(ctx, ref.ChatID, subject, level)
	return c.generated(ctx, ref.ChatID, quizID, questions, genErr)
}

type generation struct {
	questions []models.Question
	err       error
}

// generate runs the generator in its own goroutine and refreshes the progress
// message until it returns
func (c *Controller) generate(ctx context.Context, chatID int64, subject string, level Level) ([]models.Question, error) {
	done := make(chan generation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generation{err: fmt.Errorf("generator panicked: %v", r)}
			}
		}()
		questions, err := c.generator.Generate(ctx, subject, level.PromptLabel())
		done <- generation{questions: questions, err: err}
	}()

	progress, err := c.view.StartProgress(ctx, chatID)
	if err != nil {
		c.logger.Warn("failed to show progress", "chat_id", chatID, "error", err)
	}

	ticker := time.NewTicker(c.progressInterval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case res := <-done:
			return res.questions, res.err
		case <-ticker.C:
			if progress == nil {
				continue
			}
			frame++
			if err := progress.Update(ctx, frame); err != nil {
				c.logger.Debug("progress update failed", "chat_id", chatID, "error", err)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// generated applies a generation result unless the quiz was replaced meanwhile
func (c *Controller) generated(ctx context.Context, chatID int64, quizID string, questions []models.Question, genErr error) error {
	unlock := c.lock(chatID)
	defer unlock()

	state, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if state == nil || state.Step != session.StepQuizGenerating || state.Quiz == nil || state.Quiz.ID != quizID {
		c.logger.Info("discarding questions of an abandoned quiz", "chat_id", chatID, "quiz_id", quizID)
		return ErrStale
	}

	if genErr == nil && len(questions) != QuestionCount {
		genErr = fmt.Errorf("expected %d questions, got %d", QuestionCount, len(questions))
	}
	if genErr != nil {
		c.logger.Error("quiz generation failed", "chat_id", chatID, "subject", state.Quiz.Subject, "error", genErr)
		if err := c.sessions.Delete(ctx, chatID); err != nil {
			c.logger.Error("failed to clear session", "chat_id", chatID, "error", err)
		}
		return errors.Join(genErr, c.view.GenerationFailed(ctx, chatID))
	}

	state.Step = session.StepQuizQuestion
	state.Quiz.Questions = questions
	state.Quiz.CurrentIndex = 0
	state.Quiz.CorrectCount = 0
	state.Quiz.Answered = false
	if err := c.sessions.Put(ctx, chatID, state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return c.view.ShowQuestion(ctx, chatID, 0, questions[0])
}

// Answer checks the chosen option of question index
func (c *Controller) Answer(ctx context.Context, ref Ref, index int, key string) error {
	unlock := c.lock(ref.ChatID)
	defer unlock()

	state, err := c.sessions.Get(ctx, ref.ChatID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !answerable(state, index) {
		c.view.Notice(ctx, ref, StaleNotice)
		return ErrStale
	}

	q := state.Quiz.Questions[index]
	correct := q.IsCorrect(key)
	if correct {
		state.Quiz.CorrectCount++
	}
	state.Quiz.Answered = true
	if err := c.sessions.Put(ctx, ref.ChatID, state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if err := c.view.ShowVerdict(ctx, ref, correct, q); err != nil {
		c.logger.Warn("failed to show verdict", "chat_id", ref.ChatID, "error", err)
	}

	if index == QuestionCount-1 {
		return c.finish(ctx, ref.ChatID, state)
	}
	return c.view.OfferNext(ctx, ref.ChatID)
}

func answerable(state *session.State, index int) bool {
	if state == nil || state.Step != session.StepQuizQuestion || state.Quiz == nil {
		return false
	}
	q := state.Quiz
	if index < 0 || index >= len(q.Questions) {
		return false
	}
	return index == q.CurrentIndex && !q.Answered
}

// Next presents the question after the answered one, or finishes the quiz
func (c *Controller) Next(ctx context.Context, ref Ref) error {
	unlock := c.lock(ref.ChatID)
	defer unlock()

	state, err := c.sessions.Get(ctx, ref.ChatID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if state == nil || state.Step != session.StepQuizQuestion || state.Quiz == nil || !state.Quiz.Answered {
		c.view.Notice(ctx, ref, StaleNotice)
		return ErrStale
	}

	if state.Quiz.CurrentIndex >= QuestionCount-1 {
		return c.finish(ctx, ref.ChatID, state)
	}

	state.Quiz.CurrentIndex++
	state.Quiz.Answered = false
	if err := c.sessions.Put(ctx, ref.ChatID, state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	i := state.Quiz.CurrentIndex
	return c.view.ShowQuestion(ctx, ref.ChatID, i, state.Quiz.Questions[i])
}

// finish reports the score, records it and discards the session. A recording
// failure is logged and never blocks the result message.
func (c *Controller) finish(ctx context.Context, chatID int64, state *session.State) error {
	q := state.Quiz
	if err := c.view.ShowResult(ctx, chatID, q.CorrectCount, QuestionCount); err != nil {
		c.logger.Warn("failed to show result", "chat_id", chatID, "error", err)
	}

	if err := c.recorder.Record(ctx, chatID, q.CorrectCount, q.Subject); err != nil {
		c.logger.Error("score may be partially lost", "chat_id", chatID, "score", q.CorrectCount, "error", err)
	}

	if err := c.sessions.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
