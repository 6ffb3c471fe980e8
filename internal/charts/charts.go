// Package charts renders score histories as PNG line charts.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/example/quizbot/internal/stats"
	"github.com/example/quizbot/pkg/models"
	"github.com/wcharczuk/go-chart/v2"
)

var ErrNoData = errors.New("no data to plot")

// Render draws one line per subject. The y axis spans the whole score range,
// the x axis starts a day before the first point and leaves ten days of room
// after the last one.
func Render(title string, rows []stats.Row) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	first, last := rows[0].Date, rows[0].Date
	for _, r := range rows {
		if r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}

	graph := chart.Chart{
		Title:  title,
		Width:  1024,
		Height: 600,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Дата",
			ValueFormatter: chart.TimeDateValueFormatter,
			Range: &chart.ContinuousRange{
				Min: chart.TimeToFloat64(first.AddDate(0, 0, -1)),
				Max: chart.TimeToFloat64(last.AddDate(0, 0, 10)),
			},
		},
		YAxis: chart.YAxis{
			Name: "Средний балл",
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: models.MaxScore,
			},
		},
	}

	for _, s := range stats.Group(rows) {
		series := chart.TimeSeries{
			Name: s.Subject,
			Style: chart.Style{
				StrokeWidth: 2,
				DotWidth:    4,
			},
		}
		for _, p := range s.Points {
			series.XValues = append(series.XValues, p.Date)
			series.YValues = append(series.YValues, p.Value)
		}
		graph.Series = append(graph.Series, series)
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// Title returns the caption of a user's chart
func Title(name string, year int) string {
	if name == "" {
		return fmt.Sprintf("Статистика за %d год", year)
	}
	return fmt.Sprintf("Статистика: %s (%d)", name, year)
}

// CurrentYear is the year flattened statistics are dated in
func CurrentYear() int {
	return time.Now().Year()
}
