package models

import "time"

// User represents a registered Telegram conversation
type User struct {
	ID         int64     `json:"id" db:"id"`
	ChatID     int64     `json:"chat_id" db:"chat_id"`
	Name       string    `json:"name" db:"name"`
	LastName   string    `json:"last_name" db:"last_name"`
	Statistics string    `json:"statistics" db:"statistics"` // Raw JSON, see ParseStatistics
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// FullName returns the name as shown in admin screens and the rating
func (u User) FullName() string {
	if u.LastName == "" {
		return u.Name
	}
	return u.Name + " " + u.LastName
}
