package model

import "time"

// PushSubscription is one web-push endpoint registered by a device.
// A user may have several (one per browser/device); the pair
// (user_id, endpoint) is unique.
type PushSubscription struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}
