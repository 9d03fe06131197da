package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rowanhale/chime/internal/database"
	"github.com/rowanhale/chime/internal/model"
	"github.com/rowanhale/chime/internal/store"
)

type sentPush struct {
	endpoint string
	payload  Payload
}

// stubSender records attempts and returns a configured error per endpoint.
type stubSender struct {
	mu     sync.Mutex
	sent   []sentPush
	errFor map[string]error
}

func (s *stubSender) Send(_ context.Context, sub *model.PushSubscription, payload Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentPush{endpoint: sub.Endpoint, payload: payload})
	return s.errFor[sub.Endpoint]
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type sweepFixture struct {
	sweeper   *Sweeper
	sender    *stubSender
	reminders *store.ReminderStore
	subs      *store.PushStore
	profiles  *store.ProfileStore
	userID    int64
}

const testBaseURL = "https://chime.example.com"

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	result, err := db.Exec("INSERT INTO users (email, password_hash) VALUES ('test@example.com', 'x')")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	userID, _ := result.LastInsertId()

	sender := &stubSender{errFor: map[string]error{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &sweepFixture{
		sender:    sender,
		reminders: store.NewReminderStore(db),
		subs:      store.NewPushStore(db),
		profiles:  store.NewProfileStore(db),
		userID:    userID,
	}
	f.sweeper = NewSweeper(sender, f.reminders, f.subs, f.profiles, nil, testBaseURL, logger)
	return f
}

func (f *sweepFixture) addOverdue(t *testing.T, title string) *model.Reminder {
	t.Helper()
	due := time.Now().UTC().Add(-time.Minute)
	r, err := f.reminders.Create(f.userID, title, "", &due, nil, "medium", nil, nil)
	if err != nil {
		t.Fatalf("create reminder: %v", err)
	}
	return r
}

func (f *sweepFixture) subscribe(t *testing.T, endpoint string) {
	t.Helper()
	if _, err := f.subs.CreateSubscription(f.userID, endpoint, "p256dh", "auth"); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
}

func (f *sweepFixture) sweep(t *testing.T) *Result {
	t.Helper()
	result, err := f.sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	return result
}

func TestSweepSendsAndMarksNotified(t *testing.T) {
	f := newSweepFixture(t)
	r := f.addOverdue(t, "Water the plants")
	f.subscribe(t, "https://push.example.com/sub/1")

	result := f.sweep(t)

	if result.Processed != 1 {
		t.Fatalf("processed = %d, want 1", result.Processed)
	}
	if len(result.Details) != 1 {
		t.Fatalf("details len = %d, want 1", len(result.Details))
	}
	d := result.Details[0]
	if d.ReminderID != r.ID {
		t.Errorf("detail reminder = %d, want %d", d.ReminderID, r.ID)
	}
	if d.Status != StatusSent {
		t.Errorf("status = %q, want %q", d.Status, StatusSent)
	}
	if d.Endpoint != "https://push.example.com/sub/1" {
		t.Errorf("endpoint = %q", d.Endpoint)
	}
	if d.Error != "" {
		t.Errorf("error = %q, want empty", d.Error)
	}

	got, err := f.reminders.GetByID(r.ID, f.userID)
	if err != nil {
		t.Fatalf("get reminder: %v", err)
	}
	if !got.Notified {
		t.Error("reminder not marked notified after sweep")
	}
}

func TestSweepIdempotent(t *testing.T) {
	f := newSweepFixture(t)
	f.addOverdue(t, "Take out bins")
	f.subscribe(t, "https://push.example.com/sub/1")

	first := f.sweep(t)
	if first.Processed != 1 {
		t.Fatalf("first sweep processed = %d, want 1", first.Processed)
	}

	second := f.sweep(t)
	if second.Processed != 0 {
		t.Errorf("second sweep processed = %d, want 0", second.Processed)
	}
	if f.sender.count() != 1 {
		t.Errorf("total send attempts = %d, want 1", f.sender.count())
	}
}

func TestSweepNoSubscriptionsStillMarks(t *testing.T) {
	f := newSweepFixture(t)
	r := f.addOverdue(t, "Silent reminder")

	result := f.sweep(t)

	if result.Processed != 0 {
		t.Errorf("processed = %d, want 0", result.Processed)
	}
	if result.Details == nil || len(result.Details) != 0 {
		t.Errorf("details = %v, want empty slice", result.Details)
	}
	if f.sender.count() != 0 {
		t.Errorf("send attempts = %d, want 0", f.sender.count())
	}

	got, err := f.reminders.GetByID(r.ID, f.userID)
	if err != nil {
		t.Fatalf("get reminder: %v", err)
	}
	if !got.Notified {
		t.Error("reminder with no subscriptions must still be marked notified")
	}
}

func TestSweepExpiredSubscriptionPruned(t *testing.T) {
	f := newSweepFixture(t)
	r := f.addOverdue(t, "Renew passport")
	f.subscribe(t, "https://push.example.com/gone")
	f.sender.errFor["https://push.example.com/gone"] = ErrExpired

	result := f.sweep(t)

	if result.Processed != 1 {
		t.Fatalf("processed = %d, want 1", result.Processed)
	}
	d := result.Details[0]
	if d.Status != StatusFailed {
		t.Errorf("status = %q, want %q", d.Status, StatusFailed)
	}
	if d.Error == "" {
		t.Error("expected error message in failed detail")
	}

	subs, err := f.subs.ListByUser(f.userID)
	if err != nil {
		t.Fatalf("list subscriptions: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("expired subscription not pruned, %d remain", len(subs))
	}

	got, _ := f.reminders.GetByID(r.ID, f.userID)
	if !got.Notified {
		t.Error("reminder must be marked notified even when every attempt failed")
	}
}

func TestSweepTransientFailureKeepsSubscription(t *testing.T) {
	f := newSweepFixture(t)
	f.addOverdue(t, "Call the dentist")
	f.subscribe(t, "https://push.example.com/flaky")
	f.sender.errFor["https://push.example.com/flaky"] = errors.New("push service returned 500")

	result := f.sweep(t)

	if result.Details[0].Status != StatusFailed {
		t.Errorf("status = %q, want %q", result.Details[0].Status, StatusFailed)
	}

	subs, err := f.subs.ListByUser(f.userID)
	if err != nil {
		t.Fatalf("list subscriptions: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("transient failure must not prune the subscription, got %d", len(subs))
	}

	// At-most-once: even the failed reminder is not retried next sweep
	second := f.sweep(t)
	if second.Processed != 0 {
		t.Errorf("second sweep processed = %d, want 0", second.Processed)
	}
}

func TestSweepMixedOutcomes(t *testing.T) {
	f := newSweepFixture(t)
	r := f.addOverdue(t, "Pay rent")
	f.subscribe(t, "https://push.example.com/phone")
	f.subscribe(t, "https://push.example.com/laptop")
	f.sender.errFor["https://push.example.com/laptop"] = ErrExpired

	result := f.sweep(t)

	if result.Processed != 2 {
		t.Fatalf("processed = %d, want 2", result.Processed)
	}

	statuses := map[string]string{}
	for _, d := range result.Details {
		if d.ReminderID != r.ID {
			t.Errorf("detail reminder = %d, want %d", d.ReminderID, r.ID)
		}
		statuses[d.Endpoint] = d.Status
	}
	if statuses["https://push.example.com/phone"] != StatusSent {
		t.Errorf("phone status = %q, want sent", statuses["https://push.example.com/phone"])
	}
	if statuses["https://push.example.com/laptop"] != StatusFailed {
		t.Errorf("laptop status = %q, want failed", statuses["https://push.example.com/laptop"])
	}

	subs, _ := f.subs.ListByUser(f.userID)
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example.com/phone" {
		t.Errorf("expected only the live subscription to remain, got %v", subs)
	}
}

func TestSweepSkipsFutureAndUnscheduled(t *testing.T) {
	f := newSweepFixture(t)
	f.subscribe(t, "https://push.example.com/sub/1")

	future := time.Now().UTC().Add(time.Hour)
	if _, err := f.reminders.Create(f.userID, "Later", "", &future, nil, "low", nil, nil); err != nil {
		t.Fatalf("create reminder: %v", err)
	}
	if _, err := f.reminders.Create(f.userID, "Someday", "", nil, nil, "none", nil, nil); err != nil {
		t.Fatalf("create reminder: %v", err)
	}

	result := f.sweep(t)

	if result.Processed != 0 {
		t.Errorf("processed = %d, want 0", result.Processed)
	}
	if f.sender.count() != 0 {
		t.Errorf("send attempts = %d, want 0", f.sender.count())
	}
}

func TestSweepPayload(t *testing.T) {
	f := newSweepFixture(t)

	due := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	r, err := f.reminders.Create(f.userID, "Feed the cat", "wet food", &due, nil, "high", nil, nil)
	if err != nil {
		t.Fatalf("create reminder: %v", err)
	}
	f.subscribe(t, "https://push.example.com/sub/1")

	if _, err := f.profiles.Create(f.userID, "Rowan"); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if _, err := f.profiles.UpdateNotificationSound(f.userID, "bell", nil); err != nil {
		t.Fatalf("set sound: %v", err)
	}

	f.sweep(t)

	if f.sender.count() != 1 {
		t.Fatalf("send attempts = %d, want 1", f.sender.count())
	}
	p := f.sender.sent[0].payload
	if p.Title != r.Title {
		t.Errorf("title = %q, want %q", p.Title, r.Title)
	}
	wantBody := "Due: " + due.Format("Jan 2, 2006 3:04 PM")
	if p.Body != wantBody {
		t.Errorf("body = %q, want %q", p.Body, wantBody)
	}
	if p.URL != testBaseURL+"/dashboard" {
		t.Errorf("url = %q", p.URL)
	}
	if p.Sound != testBaseURL+"/sounds/bell.mp3" {
		t.Errorf("sound = %q, want templated bell url", p.Sound)
	}
	if p.Icon == "" {
		t.Error("expected icon in payload")
	}
}

func TestSweepDefaultSoundWithoutProfile(t *testing.T) {
	f := newSweepFixture(t)
	f.addOverdue(t, "No profile yet")
	f.subscribe(t, "https://push.example.com/sub/1")

	f.sweep(t)

	if f.sender.count() != 1 {
		t.Fatalf("send attempts = %d, want 1", f.sender.count())
	}
	if got := f.sender.sent[0].payload.Sound; got != testBaseURL+"/sounds/default.mp3" {
		t.Errorf("sound = %q, want default", got)
	}
}

func TestSweepCustomSoundVerbatim(t *testing.T) {
	f := newSweepFixture(t)
	f.addOverdue(t, "Custom clip")
	f.subscribe(t, "https://push.example.com/sub/1")

	if _, err := f.profiles.Create(f.userID, "Rowan"); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	name := "rooster.mp3"
	custom := "https://cdn.example.com/sounds/rooster.mp3"
	if _, err := f.profiles.UpdateNotificationSound(f.userID, custom, &name); err != nil {
		t.Fatalf("set sound: %v", err)
	}

	f.sweep(t)

	if got := f.sender.sent[0].payload.Sound; got != custom {
		t.Errorf("sound = %q, want %q", got, custom)
	}
}

func TestSweepMultipleReminders(t *testing.T) {
	f := newSweepFixture(t)
	f.addOverdue(t, "First")
	f.addOverdue(t, "Second")
	f.subscribe(t, "https://push.example.com/sub/1")

	result := f.sweep(t)

	if result.Processed != 2 {
		t.Errorf("processed = %d, want 2", result.Processed)
	}
	titles := map[string]bool{}
	for _, sp := range f.sender.sent {
		titles[sp.payload.Title] = true
	}
	if !titles["First"] || !titles["Second"] {
		t.Errorf("expected a send per reminder, got %v", titles)
	}
}

func TestSweepStoreErrorAborts(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.Close()

	sender := &stubSender{errFor: map[string]error{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sw := NewSweeper(sender, store.NewReminderStore(db), store.NewPushStore(db), store.NewProfileStore(db), nil, testBaseURL, logger)

	_, err = sw.Sweep(context.Background())
	if err == nil {
		t.Fatal("expected error when the reminder scan fails")
	}
	if !strings.Contains(err.Error(), "scan due reminders") {
		t.Errorf("error = %v, want scan wrap", err)
	}
}

func TestSweeperStartStop(t *testing.T) {
	f := newSweepFixture(t)

	f.sweeper.Start(context.Background())
	// Stop must not hang even if no tick has fired
	done := make(chan struct{})
	go func() {
		f.sweeper.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
