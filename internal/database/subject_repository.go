package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var (
	ErrSubjectExists   = errors.New("subject already exists")
	ErrSubjectNotFound = errors.New("subject not found")
)

// SubjectRepository handles the subject catalog
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns all subjects in insertion order
func (r *SubjectRepository) List(ctx context.Context) ([]string, error) {
	var subjects []string
	if err := r.db.SelectContext(ctx, &subjects, "SELECT subject FROM subjects ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to get subjects: %w", err)
	}
	return subjects, nil
}

// Add inserts a lower-cased subject
func (r *SubjectRepository) Add(ctx context.Context, subject string) error {
	subject = normalizeSubject(subject)
	if subject == "" {
		return fmt.Errorf("subject name cannot be empty")
	}
	query := r.db.Rebind("INSERT INTO subjects (subject) VALUES (?) ON CONFLICT (subject) DO NOTHING")
	result, err := r.db.ExecContext(ctx, query, subject)
	if err != nil {
		return fmt.Errorf("failed to add subject: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSubjectExists
	}
	return nil
}

// Delete removes a subject
func (r *SubjectRepository) Delete(ctx context.Context, subject string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM subjects WHERE subject = ?"), normalizeSubject(subject))
	if err != nil {
		return fmt.Errorf("failed to delete subject: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSubjectNotFound
	}
	return nil
}

func normalizeSubject(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
