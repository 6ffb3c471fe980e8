package models

// Rating is the running score of a user across all completed quizzes
type Rating struct {
	ChatID     int64   `json:"chat_id" db:"chat_id"`
	TotalScore int     `json:"total_score" db:"total_score"`
	Attempts   int     `json:"attempts" db:"attempts"`
	AvgScore   float64 `json:"avg_score" db:"avg_score"`
}

// Add merges one more attempt into the rating and recomputes the average
func (r *Rating) Add(score int) {
	r.TotalScore += score
	r.Attempts++
	r.AvgScore = float64(r.TotalScore) / float64(r.Attempts)
}

// RatingEntry is a row of the public rating list
type RatingEntry struct {
	ChatID   int64   `db:"chat_id"`
	Name     string  `db:"name"`
	LastName string  `db:"last_name"`
	Attempts int     `db:"attempts"`
	AvgScore float64 `db:"avg_score"`
}
