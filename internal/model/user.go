package model

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile holds per-user preferences. NotificationSound is either a builtin
// sound identifier (e.g. "default", "bell") or a full URL to an uploaded clip.
type Profile struct {
	UserID            int64     `json:"user_id"`
	DisplayName       string    `json:"display_name"`
	NotificationSound string    `json:"notification_sound"`
	CustomSoundName   string    `json:"custom_sound_name"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
