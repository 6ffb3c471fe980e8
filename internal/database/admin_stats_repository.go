package database

import (
	"context"
	"fmt"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// AdminStatsRepository handles the admin-facing per-chat counters
type AdminStatsRepository struct {
	db *sqlx.DB
}

// NewAdminStatsRepository creates a new repository instance
func NewAdminStatsRepository(db *sqlx.DB) *AdminStatsRepository {
	return &AdminStatsRepository{db: db}
}

// Increment adds delta to one counter of a chat, creating the row on first use
func (r *AdminStatsRepository) Increment(ctx context.Context, chatID int64, field models.CounterField, delta int) error {
	column := field.Column()
	if column == "" {
		return fmt.Errorf("unknown counter field %d", field)
	}

	initial := map[models.CounterField]int{field: delta}
	query := r.db.Rebind(`
		INSERT INTO admin_stats (chat_id, commands_used, quizzes_taken, total_score) VALUES (?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET ` + column + ` = admin_stats.` + column + ` + excluded.` + column)
	_, err := r.db.ExecContext(ctx, query,
		chatID,
		initial[models.CommandsUsed],
		initial[models.QuizzesTaken],
		initial[models.TotalScore],
	)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	return nil
}

// Get returns the counters of a chat, zero-valued when none were recorded
func (r *AdminStatsRepository) Get(ctx context.Context, chatID int64) (models.AdminStats, error) {
	var stats []models.AdminStats
	query := r.db.Rebind("SELECT chat_id, commands_used, quizzes_taken, total_score FROM admin_stats WHERE chat_id = ?")
	if err := r.db.SelectContext(ctx, &stats, query, chatID); err != nil {
		return models.AdminStats{}, fmt.Errorf("failed to get admin stats: %w", err)
	}
	if len(stats) == 0 {
		return models.AdminStats{ChatID: chatID}, nil
	}
	return stats[0], nil
}

// GetAll returns the counters of every chat
func (r *AdminStatsRepository) GetAll(ctx context.Context) ([]models.AdminStats, error) {
	var stats []models.AdminStats
	query := "SELECT chat_id, commands_used, quizzes_taken, total_score FROM admin_stats ORDER BY chat_id"
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get admin stats: %w", err)
	}
	return stats, nil
}
