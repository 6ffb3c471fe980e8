package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// RatingRepository handles database operations for the rating
type RatingRepository struct {
	db *sqlx.DB
}

// NewRatingRepository creates a new repository instance
func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Get returns the rating of a chat, or nil if it has not finished a quiz yet
func (r *RatingRepository) Get(ctx context.Context, chatID int64) (*models.Rating, error) {
	var rating models.Rating
	query := r.db.Rebind("SELECT chat_id, total_score, attempts, avg_score FROM rating WHERE chat_id = ?")
	err := r.db.GetContext(ctx, &rating, query, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	return &rating, nil
}

// Save inserts or replaces the rating of a chat
func (r *RatingRepository) Save(ctx context.Context, rating models.Rating) error {
	query := r.db.Rebind(`
		INSERT INTO rating (chat_id, total_score, attempts, avg_score) VALUES (?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			total_score = excluded.total_score,
			attempts = excluded.attempts,
			avg_score = excluded.avg_score
	`)
	if _, err := r.db.ExecContext(ctx, query, rating.ChatID, rating.TotalScore, rating.Attempts, rating.AvgScore); err != nil {
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

// Top returns the best registered users by average score
func (r *RatingRepository) Top(ctx context.Context, limit int) ([]models.RatingEntry, error) {
	query := r.db.Rebind(`
		SELECT r.chat_id, u.name, u.last_name, r.attempts, r.avg_score
		FROM rating r
		JOIN users u ON u.chat_id = r.chat_id
		ORDER BY r.avg_score DESC, r.attempts DESC, r.chat_id
		LIMIT ?
	`)
	var entries []models.RatingEntry
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	return entries, nil
}

// GetAll returns every rating row
func (r *RatingRepository) GetAll(ctx context.Context) ([]models.Rating, error) {
	var ratings []models.Rating
	query := "SELECT chat_id, total_score, attempts, avg_score FROM rating ORDER BY chat_id"
	if err := r.db.SelectContext(ctx, &ratings, query); err != nil {
		return nil, fmt.Errorf("failed to get ratings: %w", err)
	}
	return ratings, nil
}
