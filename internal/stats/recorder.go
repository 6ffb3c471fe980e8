package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/quizbot/pkg/models"
)

var ErrPartialRecord = errors.New("quiz result was only partially recorded")

// Store is the persistence needed to record a finished quiz
type Store interface {
	LoadStatistics(ctx context.Context, chatID int64) (models.Statistics, error)
	SaveStatistics(ctx context.Context, chatID int64, stats models.Statistics) error
	LoadRating(ctx context.Context, chatID int64) (*models.Rating, error)
	SaveRating(ctx context.Context, rating models.Rating) error
	IncrementCounter(ctx context.Context, chatID int64, field models.CounterField, delta int) error
}

// Recorder merges finished quiz scores into statistics, rating and admin counters
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder over store
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// Record stores one finished attempt. The rating is only touched once the
// statistics were saved, so both keep the same attempt count. The statistics
// and rating writes are not atomic: a rating failure after a successful
// statistics save leaves the rating one attempt behind.
// Admin counters are updated regardless of the other writes.
func (r *Recorder) Record(ctx context.Context, chatID int64, score int, subject string) error {
	subject = strings.ToLower(strings.TrimSpace(subject))
	var errs []error

	if err := r.recordStatistics(ctx, chatID, score, subject); err != nil {
		errs = append(errs, err)
	}

	if err := r.store.IncrementCounter(ctx, chatID, models.QuizzesTaken, 1); err != nil {
		errs = append(errs, fmt.Errorf("increment %s: %w", models.QuizzesTaken, err))
	}
	if err := r.store.IncrementCounter(ctx, chatID, models.TotalScore, score); err != nil {
		errs = append(errs, fmt.Errorf("increment %s: %w", models.TotalScore, err))
	}

	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", ErrPartialRecord, errors.Join(errs...))
		r.logger.Error("failed to record quiz result", "chat_id", chatID, "subject", subject, "score", score, "error", err)
		return err
	}
	r.logger.Info("quiz result recorded", "chat_id", chatID, "subject", subject, "score", score)
	return nil
}

func (r *Recorder) recordStatistics(ctx context.Context, chatID int64, score int, subject string) error {
	stats, err := r.store.LoadStatistics(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load statistics: %w", err)
	}
	if stats == nil {
		stats = models.Statistics{}
	}
	stats.Add(subject, r.now(), score)
	if err := r.store.SaveStatistics(ctx, chatID, stats); err != nil {
		return fmt.Errorf("save statistics: %w", err)
	}

	rating, err := r.store.LoadRating(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load rating: %w", err)
	}
	if rating == nil {
		rating = &models.Rating{ChatID: chatID}
	}
	rating.Add(score)
	if err := r.store.SaveRating(ctx, *rating); err != nil {
		return fmt.Errorf("save rating: %w", err)
	}
	return nil
}
