package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxScore is the best possible result of a single quiz
const MaxScore = 10

// TimeKeyLayout formats the per-attempt key inside a day bucket. The key
// carries no date, two attempts with the same key in one day overwrite each
// other.
const TimeKeyLayout = "15:04:05.000000"

var ErrMalformedStatistics = errors.New("malformed statistics")

// DayScores maps a wall-clock time key to the score of the attempt
type DayScores map[string]int

// MonthStats maps a day of month to the scores recorded that day
type MonthStats map[int]DayScores

// SubjectStats maps a month to its days
type SubjectStats map[int]MonthStats

// Statistics is the per-user history: subject -> month -> day -> time -> score.
// Months and days belong to the current year, the year itself is not stored.
type Statistics map[string]SubjectStats

// ParseStatistics decodes the stored JSON and validates its shape. An empty
// string yields empty statistics.
func ParseStatistics(raw string) (Statistics, error) {
	stats := Statistics{}
	if strings.TrimSpace(raw) == "" {
		return stats, nil
	}
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStatistics, err)
	}
	if stats == nil {
		return Statistics{}, nil
	}
	if err := stats.Validate(); err != nil {
		return nil, err
	}
	return stats, nil
}

// Validate checks calendar ranges and score bounds
func (s Statistics) Validate() error {
	for subject, months := range s {
		for month, days := range months {
			if month < 1 || month > 12 {
				return fmt.Errorf("%w: subject %q has month %d", ErrMalformedStatistics, subject, month)
			}
			for day, scores := range days {
				if day < 1 || day > 31 {
					return fmt.Errorf("%w: subject %q has day %d", ErrMalformedStatistics, subject, day)
				}
				for key, score := range scores {
					if score < 0 || score > MaxScore {
						return fmt.Errorf("%w: score %d at %q out of range", ErrMalformedStatistics, score, key)
					}
				}
			}
		}
	}
	return nil
}

// Add appends score under subject/month/day of at. The subject is lower-cased.
func (s Statistics) Add(subject string, at time.Time, score int) {
	subject = strings.ToLower(strings.TrimSpace(subject))
	months, ok := s[subject]
	if !ok {
		months = SubjectStats{}
		s[subject] = months
	}
	month := int(at.Month())
	days, ok := months[month]
	if !ok {
		days = MonthStats{}
		months[month] = days
	}
	scores, ok := days[at.Day()]
	if !ok {
		scores = DayScores{}
		days[at.Day()] = scores
	}
	scores[at.Format(TimeKeyLayout)] = score
}

// Attempts counts every recorded attempt
func (s Statistics) Attempts() int {
	n := 0
	for _, months := range s {
		for _, days := range months {
			for _, scores := range days {
				n += len(scores)
			}
		}
	}
	return n
}

// Encode serializes the statistics for storage
func (s Statistics) Encode() (string, error) {
	if s == nil {
		s = Statistics{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode statistics: %w", err)
	}
	return string(data), nil
}
