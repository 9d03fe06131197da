package store

import (
	"database/sql"
	"fmt"

	"github.com/rowanhale/chime/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileCols = `user_id, display_name, notification_sound, custom_sound_name, created_at, updated_at`

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	err := scanner.Scan(&p.UserID, &p.DisplayName, &p.NotificationSound, &p.CustomSoundName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts an empty profile row for a new user.
func (s *ProfileStore) Create(userID int64, displayName string) (*model.Profile, error) {
	_, err := s.db.Exec(
		`INSERT INTO profiles (user_id, display_name) VALUES (?, ?)`,
		userID, displayName,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.GetByUserID(userID)
}

func (s *ProfileStore) GetByUserID(userID int64) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) UpdateDisplayName(userID int64, displayName string) (*model.Profile, error) {
	_, err := s.db.Exec(
		`UPDATE profiles SET display_name = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
		displayName, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update display name: %w", err)
	}
	return s.GetByUserID(userID)
}

// UpdateNotificationSound sets the sound preference. customName is only
// stored when non-nil, so builtin selections keep any previous custom name.
func (s *ProfileStore) UpdateNotificationSound(userID int64, sound string, customName *string) (*model.Profile, error) {
	var err error
	if customName != nil {
		_, err = s.db.Exec(
			`UPDATE profiles SET notification_sound = ?, custom_sound_name = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
			sound, *customName, userID,
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE profiles SET notification_sound = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
			sound, userID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("update notification sound: %w", err)
	}
	return s.GetByUserID(userID)
}
