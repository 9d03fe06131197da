package model

import (
	"testing"
	"time"
)

func TestReminderDue(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		r    Reminder
		want bool
	}{
		{"overdue", Reminder{DueDate: &past}, true},
		{"due exactly now", Reminder{DueDate: &now}, true},
		{"future", Reminder{DueDate: &future}, false},
		{"unscheduled", Reminder{}, false},
		{"completed", Reminder{DueDate: &past, IsCompleted: true}, false},
		{"already notified", Reminder{DueDate: &past, Notified: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Due(now); got != tt.want {
				t.Errorf("Due() = %v, want %v", got, tt.want)
			}
		})
	}
}
