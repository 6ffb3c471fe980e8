// Package session keeps the per-chat conversation state between updates.
package session

import (
	"context"
	"time"

	"github.com/example/quizbot/pkg/models"
)

// Step is the position of a chat in the conversation
type Step string

const (
	StepIdle           Step = ""
	StepRegName        Step = "reg_name"
	StepRegLastName    Step = "reg_last_name"
	StepQuizSubject    Step = "quiz_subject"
	StepQuizLevel      Step = "quiz_level"
	StepQuizGenerating Step = "quiz_generating"
	StepQuizQuestion   Step = "quiz_question"
	StepAddSubject     Step = "admin_add_subject"
	StepDeleteSubject  Step = "admin_delete_subject"
	StepImportSubjects Step = "admin_import_subjects"
)

// State is everything remembered about one chat
type State struct {
	Step      Step      `json:"step"`
	Name      string    `json:"name,omitempty"` // first name captured during registration
	Quiz      *Quiz     `json:"quiz,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Quiz is the progress of a running quiz. ID changes on every restart so a
// late generation result can tell it belongs to an abandoned attempt.
type Quiz struct {
	ID           string            `json:"id"`
	Subject      string            `json:"subject"`
	Level        string            `json:"level,omitempty"`
	Questions    []models.Question `json:"questions,omitempty"`
	CurrentIndex int               `json:"current_index"`
	CorrectCount int               `json:"correct_count"`
	Answered     bool              `json:"answered"`
}

// Store persists session state. Get returns nil, nil when the chat has none.
type Store interface {
	Get(ctx context.Context, chatID int64) (*State, error)
	Put(ctx context.Context, chatID int64, state *State) error
	Delete(ctx context.Context, chatID int64) error
}

// Clone returns a deep copy of the state
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	if s.Quiz != nil {
		q := *s.Quiz
		q.Questions = make([]models.Question, len(s.Quiz.Questions))
		for i, question := range s.Quiz.Questions {
			question.Options = append([]models.Option(nil), question.Options...)
			q.Questions[i] = question
		}
		c.Quiz = &q
	}
	return &c
}
