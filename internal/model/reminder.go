package model

import "time"

// Priority levels for reminders.
const (
	PriorityNone   = "none"
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Reminder struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	IsCompleted bool       `json:"is_completed"`
	Notified    bool       `json:"notified"`
	CategoryID  *int64     `json:"category_id"`
	Priority    string     `json:"priority"`
	RepeatRule  *string    `json:"repeat_rule"`
	AudioURL    *string    `json:"audio_url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Due reports whether the reminder is eligible for notification at t:
// pending, not yet notified, and scheduled at or before t.
func (r *Reminder) Due(t time.Time) bool {
	return !r.IsCompleted && !r.Notified && r.DueDate != nil && !r.DueDate.After(t)
}

type Category struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}
