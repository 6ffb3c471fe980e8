package stats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/quizbot/pkg/models"
)

func TestFlattenExample(t *testing.T) {
	s, err := models.ParseStatistics(`{"математика": {"5": {"10": {"10:00:00": 7, "10:05:00": 9}}}}`)
	if err != nil {
		t.Fatalf("ParseStatistics: %v", err)
	}
	rows := Flatten(s, 2024)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	want := Row{Subject: "математика", Date: time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC), Value: 8}
	if rows[0] != want {
		t.Fatalf("expected %+v, got %+v", want, rows[0])
	}
}

func TestFlattenOrderingAndEmptyDays(t *testing.T) {
	s := models.Statistics{
		"физика": {
			12: {1: {"a": 4}},
			2:  {28: {"a": 10}, 3: {}},
		},
		"биология": {
			7: {15: {"a": 3, "b": 4}},
		},
	}
	rows := Flatten(s, 2023)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %+v", rows)
	}
	if rows[0].Subject != "биология" || rows[0].Value != 3.5 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].Date.Month() != time.February || rows[2].Date.Month() != time.December {
		t.Fatalf("rows not ordered by date: %+v", rows)
	}
	for _, r := range rows {
		if r.Value == 0 {
			t.Fatalf("emitted a row for an empty day: %+v", r)
		}
	}

	again := Flatten(s, 2023)
	for i := range rows {
		if rows[i] != again[i] {
			t.Fatalf("flatten is not deterministic at %d", i)
		}
	}
}

func TestFlattenEmpty(t *testing.T) {
	if rows := Flatten(models.Statistics{}, 2024); len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
	if rows := Flatten(nil, 2024); len(rows) != 0 {
		t.Fatalf("expected no rows for nil, got %+v", rows)
	}
}

func TestGroup(t *testing.T) {
	d := func(m time.Month, day int) time.Time { return time.Date(2024, m, day, 0, 0, 0, 0, time.UTC) }
	series := Group([]Row{
		{"a", d(1, 1), 1}, {"a", d(1, 2), 2}, {"b", d(1, 1), 3},
	})
	if len(series) != 2 || len(series[0].Points) != 2 || series[1].Subject != "b" {
		t.Fatalf("unexpected series %+v", series)
	}
}

type fakeStore struct {
	stats    map[int64]models.Statistics
	ratings  map[int64]models.Rating
	counters map[int64]map[models.CounterField]int

	loadStatsErr  error
	saveStatsErr  error
	saveRatingErr error
	counterErr    error
	ratingSaves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stats:    map[int64]models.Statistics{},
		ratings:  map[int64]models.Rating{},
		counters: map[int64]map[models.CounterField]int{},
	}
}

func (f *fakeStore) LoadStatistics(_ context.Context, chatID int64) (models.Statistics, error) {
	if f.loadStatsErr != nil {
		return nil, f.loadStatsErr
	}
	return f.stats[chatID], nil
}

func (f *fakeStore) SaveStatistics(_ context.Context, chatID int64, s models.Statistics) error {
	if f.saveStatsErr != nil {
		return f.saveStatsErr
	}
	f.stats[chatID] = s
	return nil
}

func (f *fakeStore) LoadRating(_ context.Context, chatID int64) (*models.Rating, error) {
	r, ok := f.ratings[chatID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeStore) SaveRating(_ context.Context, r models.Rating) error {
	f.ratingSaves++
	if f.saveRatingErr != nil {
		return f.saveRatingErr
	}
	f.ratings[r.ChatID] = r
	return nil
}

func (f *fakeStore) IncrementCounter(_ context.Context, chatID int64, field models.CounterField, delta int) error {
	if f.counterErr != nil {
		return f.counterErr
	}
	if f.counters[chatID] == nil {
		f.counters[chatID] = map[models.CounterField]int{}
	}
	f.counters[chatID][field] += delta
	return nil
}

func newTestRecorder(store Store, now time.Time) *Recorder {
	r := NewRecorder(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return now }
	return r
}

func TestRecordCreatesAndUpdates(t *testing.T) {
	store := newFakeStore()
	at := time.Date(2024, time.May, 10, 10, 0, 0, 0, time.UTC)
	r := newTestRecorder(store, at)
	ctx := context.Background()

	if err := r.Record(ctx, 1, 9, "Математика"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	rating := store.ratings[1]
	if rating.Attempts != 1 || rating.TotalScore != 9 || rating.AvgScore != 9 {
		t.Fatalf("unexpected rating after first record %+v", rating)
	}
	if got := store.stats[1]["математика"][5][10][at.Format(models.TimeKeyLayout)]; got != 9 {
		t.Fatalf("expected score under lower-cased subject, got %d", got)
	}

	r.now = func() time.Time { return at.Add(time.Minute) }
	if err := r.Record(ctx, 1, 6, "математика"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	rating = store.ratings[1]
	if rating.Attempts != 2 || rating.TotalScore != 15 || rating.AvgScore != 7.5 {
		t.Fatalf("unexpected rating after second record %+v", rating)
	}
	if store.stats[1].Attempts() != rating.Attempts {
		t.Fatalf("statistics attempts %d differ from rating attempts %d", store.stats[1].Attempts(), rating.Attempts)
	}
	if store.counters[1][models.QuizzesTaken] != 2 || store.counters[1][models.TotalScore] != 15 {
		t.Fatalf("unexpected counters %+v", store.counters[1])
	}

	rows := Flatten(store.stats[1], 2024)
	if len(rows) != 1 || rows[0].Value != 7.5 {
		t.Fatalf("unexpected flattened rows %+v", rows)
	}
}

func TestRecordStatisticsFailureSkipsRating(t *testing.T) {
	store := newFakeStore()
	store.saveStatsErr = errors.New("disk full")
	r := newTestRecorder(store, time.Now())

	err := r.Record(context.Background(), 1, 5, "физика")
	if !errors.Is(err, ErrPartialRecord) || !errors.Is(err, store.saveStatsErr) {
		t.Fatalf("expected partial record error, got %v", err)
	}
	if store.ratingSaves != 0 {
		t.Fatalf("rating must not change when statistics failed")
	}
	if store.counters[1][models.QuizzesTaken] != 1 {
		t.Fatalf("counters should still be updated")
	}
}

func TestRecordMalformedStatistics(t *testing.T) {
	store := newFakeStore()
	store.loadStatsErr = models.ErrMalformedStatistics
	r := newTestRecorder(store, time.Now())

	err := r.Record(context.Background(), 1, 5, "физика")
	if !errors.Is(err, models.ErrMalformedStatistics) {
		t.Fatalf("expected malformed statistics error, got %v", err)
	}
}

func TestRecordCounterFailure(t *testing.T) {
	store := newFakeStore()
	store.counterErr = errors.New("locked")
	r := newTestRecorder(store, time.Now())

	err := r.Record(context.Background(), 1, 3, "история")
	if !errors.Is(err, ErrPartialRecord) {
		t.Fatalf("expected partial record error, got %v", err)
	}
	if store.ratings[1].Attempts != 1 {
		t.Fatalf("rating should be saved despite counter failure")
	}
}
