package quiz

import "strings"

// Level is the difficulty of a generated quiz
type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
)

// Levels lists the difficulties in menu order
var Levels = []Level{LevelEasy, LevelMedium, LevelHard}

const levelPrefix = "level_"

// ParseLevel resolves a level callback such as "level_easy"
func ParseLevel(data string) (Level, bool) {
	l := Level(strings.TrimPrefix(data, levelPrefix))
	switch l {
	case LevelEasy, LevelMedium, LevelHard:
		return l, true
	}
	return "", false
}

// Callback returns the inline button payload of the level
func (l Level) Callback() string {
	return levelPrefix + string(l)
}

// Label returns the level as shown to the user
func (l Level) Label() string {
	switch l {
	case LevelEasy:
		return "🔰 Лёгкий"
	case LevelMedium:
		return "⚖️ Средний"
	case LevelHard:
		return "🔥 Сложный"
	}
	return string(l)
}

// PromptLabel returns the level as passed to the question generator
func (l Level) PromptLabel() string {
	switch l {
	case LevelEasy:
		return "лёгкий"
	case LevelMedium:
		return "средний"
	case LevelHard:
		return "сложный"
	}
	return string(l)
}
