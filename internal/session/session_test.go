package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/quizbot/pkg/models"
	"github.com/redis/go-redis/v9"
)

func sampleState() *State {
	return &State{
		Step: StepQuizQuestion,
		Quiz: &Quiz{
			ID:      "q1",
			Subject: "физика",
			Level:   "easy",
			Questions: []models.Question{{
				Prompt:     "2+2?",
				Options:    []models.Option{{Key: "A", Text: "4"}, {Key: "B", Text: "5"}},
				CorrectKey: "A",
			}},
			CurrentIndex: 3,
			CorrectCount: 2,
		},
	}
}

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Get(ctx, 1)
	if err != nil || got != nil {
		t.Fatalf("expected no session, got %v, %v", got, err)
	}

	if err := store.Put(ctx, 1, sampleState()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err = store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Step != StepQuizQuestion || got.Quiz == nil || got.Quiz.CurrentIndex != 3 {
		t.Fatalf("unexpected state %+v", got)
	}
	if got.Quiz.Questions[0].Options[0].Text != "4" {
		t.Fatalf("questions not preserved: %+v", got.Quiz.Questions)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("expected UpdatedAt to be set")
	}

	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := store.Get(ctx, 1); got != nil {
		t.Fatalf("expected session removed, got %+v", got)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	state := sampleState()
	store.Put(ctx, 1, state)

	state.Quiz.CorrectCount = 100
	got, _ := store.Get(ctx, 1)
	if got.Quiz.CorrectCount != 2 {
		t.Fatalf("store shares state with caller")
	}

	got.Quiz.Questions[0].Options[0].Text = "changed"
	again, _ := store.Get(ctx, 1)
	if again.Quiz.Questions[0].Options[0].Text != "4" {
		t.Fatalf("store shares options with caller")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Put(ctx, 1, &State{Step: StepRegName})
	now = now.Add(time.Hour)
	store.Put(ctx, 2, &State{Step: StepQuizSubject})
	now = now.Add(30 * time.Minute)

	removed, err := store.Sweep(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 || store.Len() != 1 {
		t.Fatalf("expected one stale session removed, got %d removed, %d left", removed, store.Len())
	}
	if got, _ := store.Get(ctx, 2); got == nil {
		t.Fatalf("fresh session was swept")
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client, time.Hour)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	testStore(t, store)
}

func TestRedisStoreExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	store := NewRedisStore(client, time.Minute)
	store.Put(ctx, 7, &State{Step: StepRegLastName, Name: "Иван"})
	if !mr.Exists(sessionKey(7)) {
		t.Fatalf("expected key %s", sessionKey(7))
	}

	mr.FastForward(2 * time.Minute)
	got, err := store.Get(ctx, 7)
	if err != nil || got != nil {
		t.Fatalf("expected expired session, got %+v, %v", got, err)
	}
}
