// Package stats merges quiz results into the persisted history and flattens
// that history into chartable series.
package stats

import (
	"sort"
	"time"

	"github.com/example/quizbot/pkg/models"
)

// Row is the mean score of one subject on one day
type Row struct {
	Subject string
	Date    time.Time
	Value   float64
}

// Flatten turns the nested history into one row per subject and day, dated in
// year. Days without scores are skipped. Rows are ordered by subject, then date.
func Flatten(s models.Statistics, year int) []Row {
	rows := make([]Row, 0)
	for subject, months := range s {
		for month, days := range months {
			for day, scores := range days {
				if len(scores) == 0 {
					continue
				}
				sum := 0
				for _, score := range scores {
					sum += score
				}
				rows = append(rows, Row{
					Subject: subject,
					Date:    time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
					Value:   float64(sum) / float64(len(scores)),
				})
			}
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Subject != rows[j].Subject {
			return rows[i].Subject < rows[j].Subject
		}
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows
}

// Point is a single dated value of a series
type Point struct {
	Date  time.Time
	Value float64
}

// Series is the chronological history of one subject
type Series struct {
	Subject string
	Points  []Point
}

// Group splits flattened rows into per-subject series, keeping row order
func Group(rows []Row) []Series {
	var series []Series
	for _, row := range rows {
		if len(series) == 0 || series[len(series)-1].Subject != row.Subject {
			series = append(series, Series{Subject: row.Subject})
		}
		last := &series[len(series)-1]
		last.Points = append(last.Points, Point{Date: row.Date, Value: row.Value})
	}
	return series
}
