package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/quizbot/pkg/models"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// QuestionCount is the exact number of questions a valid quiz carries
const QuestionCount = 10

// OptionCount is the exact number of options of every question
const OptionCount = 4

var (
	ErrEmptyPayload = errors.New("empty model response")
	ErrUnparseable  = errors.New("unparseable model response")
	ErrInvalidShape = errors.New("model response has invalid shape")
)

// ParseQuestions decodes a model answer into questions. The payload must be a
// list of exactly QuestionCount entries, each [prompt, {key: text}, correct key,
// explanation]. Strict JSON is tried first, then JSON5, which accepts the
// single quotes and trailing commas models tend to emit.
func ParseQuestions(content string) ([]models.Question, error) {
	content = stripFences(content)
	if content == "" {
		return nil, ErrEmptyPayload
	}

	var raw []any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		raw = nil
		if err5 := json5.Unmarshal([]byte(content), &raw); err5 != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseable, err5)
		}
	}

	if len(raw) != QuestionCount {
		return nil, fmt.Errorf("%w: expected %d questions, got %d", ErrInvalidShape, QuestionCount, len(raw))
	}

	questions := make([]models.Question, 0, len(raw))
	for i, entry := range raw {
		q, err := parseQuestion(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidShape, i+1, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func parseQuestion(entry any) (models.Question, error) {
	fields, ok := entry.([]any)
	if !ok || len(fields) != 4 {
		return models.Question{}, errors.New("entry is not a list of 4 elements")
	}

	prompt, ok := fields[0].(string)
	if !ok || strings.TrimSpace(prompt) == "" {
		return models.Question{}, errors.New("prompt is not a string")
	}
	options, ok := fields[1].(map[string]any)
	if !ok {
		return models.Question{}, errors.New("options are not a mapping")
	}
	correct, ok := fields[2].(string)
	if !ok {
		return models.Question{}, errors.New("correct key is not a string")
	}
	explanation, ok := fields[3].(string)
	if !ok {
		return models.Question{}, errors.New("explanation is not a string")
	}

	if len(options) != OptionCount {
		return models.Question{}, fmt.Errorf("expected %d options, got %d", OptionCount, len(options))
	}

	q := models.Question{
		Prompt:      strings.TrimSpace(prompt),
		CorrectKey:  strings.TrimSpace(correct),
		Explanation: strings.TrimSpace(explanation),
	}
	for key, value := range options {
		text, ok := value.(string)
		if !ok {
			text = fmt.Sprint(value)
		}
		q.Options = append(q.Options, models.Option{Key: strings.TrimSpace(key), Text: strings.TrimSpace(text)})
	}
	sort.Slice(q.Options, func(a, b int) bool { return q.Options[a].Key < q.Options[b].Key })

	found := false
	for _, o := range q.Options {
		if q.IsCorrect(o.Key) {
			found = true
			break
		}
	}
	if !found {
		return models.Question{}, fmt.Errorf("correct key %q is not among the options", correct)
	}
	return q, nil
}

// stripFences removes a surrounding markdown code block and anything outside
// the outermost list brackets
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if nl := strings.IndexByte(content, '\n'); nl >= 0 {
			content = content[nl+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	start := strings.IndexByte(content, '[')
	end := strings.LastIndexByte(content, ']')
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return strings.TrimSpace(content)
}
