package database

import (
	"context"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// Store bundles the repositories behind the score recorder persistence contract
type Store struct {
	DB       *sqlx.DB
	Users    *UserRepository
	Ratings  *RatingRepository
	Counters *AdminStatsRepository
	Subjects *SubjectRepository
}

// NewStore creates repositories sharing one connection
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		DB:       db,
		Users:    NewUserRepository(db),
		Ratings:  NewRatingRepository(db),
		Counters: NewAdminStatsRepository(db),
		Subjects: NewSubjectRepository(db),
	}
}

func (s *Store) LoadStatistics(ctx context.Context, chatID int64) (models.Statistics, error) {
	return s.Users.GetStatistics(ctx, chatID)
}

func (s *Store) SaveStatistics(ctx context.Context, chatID int64, stats models.Statistics) error {
	return s.Users.SaveStatistics(ctx, chatID, stats)
}

func (s *Store) LoadRating(ctx context.Context, chatID int64) (*models.Rating, error) {
	return s.Ratings.Get(ctx, chatID)
}

func (s *Store) SaveRating(ctx context.Context, rating models.Rating) error {
	return s.Ratings.Save(ctx, rating)
}

func (s *Store) IncrementCounter(ctx context.Context, chatID int64, field models.CounterField, delta int) error {
	return s.Counters.Increment(ctx, chatID, field, delta)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.DB.Close()
}
