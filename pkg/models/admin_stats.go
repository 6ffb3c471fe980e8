package models

// CounterField is one of the fixed admin-facing counters kept per chat
type CounterField int

const (
	CommandsUsed CounterField = iota
	QuizzesTaken
	TotalScore
)

// Column returns the admin_stats column backing the counter
func (f CounterField) Column() string {
	switch f {
	case CommandsUsed:
		return "commands_used"
	case QuizzesTaken:
		return "quizzes_taken"
	case TotalScore:
		return "total_score"
	}
	return ""
}

func (f CounterField) String() string {
	if c := f.Column(); c != "" {
		return c
	}
	return "unknown"
}

// AdminStats holds the admin counters of a chat
type AdminStats struct {
	ChatID       int64 `json:"chat_id" db:"chat_id"`
	CommandsUsed int   `json:"commands_used" db:"commands_used"`
	QuizzesTaken int   `json:"quizzes_taken" db:"quizzes_taken"`
	TotalScore   int   `json:"total_score" db:"total_score"`
}
