package models

import "strings"

// Option is a single answer choice of a question
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is one generated multiple-choice question
type Question struct {
	Prompt      string   `json:"prompt"`
	Options     []Option `json:"options"`
	CorrectKey  string   `json:"correct_key"`
	Explanation string   `json:"explanation"`
}

// IsCorrect reports whether key names the correct option, ignoring case and
// surrounding spaces
func (q Question) IsCorrect(key string) bool {
	return strings.EqualFold(strings.TrimSpace(q.CorrectKey), strings.TrimSpace(key))
}

// CorrectText returns the text of the correct option, or the bare key if the
// options do not contain it
func (q Question) CorrectText() string {
	for _, o := range q.Options {
		if q.IsCorrect(o.Key) {
			return o.Text
		}
	}
	return q.CorrectKey
}
