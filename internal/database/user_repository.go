package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = "id, chat_id, name, last_name, statistics, created_at"

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// IsRegistered checks if a chat has a users row
func (r *UserRepository) IsRegistered(ctx context.Context, chatID int64) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, r.db.Rebind("SELECT COUNT(*) FROM users WHERE chat_id = ?"), chatID)
	if err != nil {
		return false, fmt.Errorf("failed to check registration: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := r.db.Rebind("INSERT INTO users (chat_id, name, last_name) VALUES (?, ?, ?)")
	if _, err := r.db.ExecContext(ctx, query, user.ChatID, user.Name, user.LastName); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByChatID returns a user by chat ID
func (r *UserRepository) GetByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE chat_id = ?")
	err := r.db.GetContext(ctx, &user, query, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetAll returns all users in registration order
func (r *UserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, "SELECT "+userColumns+" FROM users ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

// Delete removes a user by chat ID
func (r *UserRepository) Delete(ctx context.Context, chatID int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM users WHERE chat_id = ?"), chatID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetStatistics loads and parses the nested statistics of a chat. A chat
// without a users row has no statistics.
func (r *UserRepository) GetStatistics(ctx context.Context, chatID int64) (models.Statistics, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw, r.db.Rebind("SELECT statistics FROM users WHERE chat_id = ?"), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Statistics{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	return models.ParseStatistics(raw)
}

// SaveStatistics replaces the stored statistics of a chat
func (r *UserRepository) SaveStatistics(ctx context.Context, chatID int64, stats models.Statistics) error {
	raw, err := stats.Encode()
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, r.db.Rebind("UPDATE users SET statistics = ? WHERE chat_id = ?"), raw, chatID)
	if err != nil {
		return fmt.Errorf("failed to save statistics: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
