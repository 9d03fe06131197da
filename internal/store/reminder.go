package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rowanhale/chime/internal/model"
)

// dueBatchSize bounds one notification sweep so a backlog of overdue
// reminders cannot produce an unbounded scan. Remaining candidates are
// picked up by the next sweep.
const dueBatchSize = 500

type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

const reminderCols = `id, user_id, title, description, due_date, is_completed, notified, category_id, priority, repeat_rule, audio_url, created_at, updated_at`

func scanReminder(scanner interface{ Scan(...any) error }) (*model.Reminder, error) {
	var r model.Reminder
	var dueDate sql.NullTime
	var completed, notified int
	var categoryID sql.NullInt64
	var repeatRule, audioURL sql.NullString

	err := scanner.Scan(
		&r.ID, &r.UserID, &r.Title, &r.Description, &dueDate, &completed,
		&notified, &categoryID, &r.Priority, &repeatRule, &audioURL,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.IsCompleted = completed != 0
	r.Notified = notified != 0
	if dueDate.Valid {
		t := dueDate.Time.UTC()
		r.DueDate = &t
	}
	if categoryID.Valid {
		r.CategoryID = &categoryID.Int64
	}
	if repeatRule.Valid {
		r.RepeatRule = &repeatRule.String
	}
	if audioURL.Valid {
		r.AudioURL = &audioURL.String
	}
	return &r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (s *ReminderStore) Create(userID int64, title, description string, dueDate *time.Time, categoryID *int64, priority string, repeatRule, audioURL *string) (*model.Reminder, error) {
	result, err := s.db.Exec(
		`INSERT INTO reminders (user_id, title, description, due_date, category_id, priority, repeat_rule, audio_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, title, description, nullTime(dueDate), nullInt64(categoryID), priority, nullString(repeatRule), nullString(audioURL),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id, userID)
}

func (s *ReminderStore) GetByID(id, userID int64) (*model.Reminder, error) {
	row := s.db.QueryRow(`SELECT `+reminderCols+` FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

// ListOptions filters List results. Zero values mean "no filter".
type ListOptions struct {
	Query      string // substring match on title
	Status     string // "pending", "completed", or "scheduled"
	CategoryID *int64
}

func (s *ReminderStore) List(userID int64, opts ListOptions) ([]model.Reminder, error) {
	query := `SELECT ` + reminderCols + ` FROM reminders WHERE user_id = ?`
	args := []any{userID}

	if opts.Query != "" {
		query += ` AND title LIKE ?`
		args = append(args, "%"+opts.Query+"%")
	}
	switch opts.Status {
	case "completed":
		query += ` AND is_completed = 1`
	case "pending":
		query += ` AND is_completed = 0`
	case "scheduled":
		query += ` AND is_completed = 0 AND due_date IS NOT NULL`
	}
	if opts.CategoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *opts.CategoryID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (s *ReminderStore) Update(id, userID int64, title, description string, dueDate *time.Time, categoryID *int64, priority string, repeatRule, audioURL *string) (*model.Reminder, error) {
	_, err := s.db.Exec(
		`UPDATE reminders SET title = ?, description = ?, due_date = ?, category_id = ?, priority = ?, repeat_rule = ?, audio_url = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		title, description, nullTime(dueDate), nullInt64(categoryID), priority, nullString(repeatRule), nullString(audioURL), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}
	return s.GetByID(id, userID)
}

// SetCompleted toggles completion. Re-opening a reminder resets the notified
// flag so a still-due reminder gets one fresh notification.
func (s *ReminderStore) SetCompleted(id, userID int64, completed bool) (*model.Reminder, error) {
	var c int
	if completed {
		c = 1
	}
	if completed {
		_, err := s.db.Exec(
			`UPDATE reminders SET is_completed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
			c, id, userID,
		)
		if err != nil {
			return nil, fmt.Errorf("set reminder completed: %w", err)
		}
	} else {
		_, err := s.db.Exec(
			`UPDATE reminders SET is_completed = 0, notified = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
			id, userID,
		)
		if err != nil {
			return nil, fmt.Errorf("set reminder completed: %w", err)
		}
	}
	return s.GetByID(id, userID)
}

func (s *ReminderStore) Delete(id, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}

// ListDue returns notification candidates at the given time: pending,
// not yet notified, with a due date at or before now. Read-only.
func (s *ReminderStore) ListDue(now time.Time) ([]model.Reminder, error) {
	rows, err := s.db.Query(
		`SELECT `+reminderCols+` FROM reminders
		 WHERE is_completed = 0 AND notified = 0 AND due_date IS NOT NULL AND due_date <= ?
		 LIMIT ?`,
		now.UTC(), dueBatchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// MarkNotified records that a notification sweep has processed the reminder.
// Setting an already-set flag is a no-op, so concurrent sweeps are safe.
func (s *ReminderStore) MarkNotified(id int64) error {
	_, err := s.db.Exec(`UPDATE reminders SET notified = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark reminder notified: %w", err)
	}
	return nil
}

func collectReminders(rows *sql.Rows) ([]model.Reminder, error) {
	var reminders []model.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}
