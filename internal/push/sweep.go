package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rowanhale/chime/internal/model"
	"github.com/rowanhale/chime/internal/store"
	ws "github.com/rowanhale/chime/internal/websocket"
)

// Delivery statuses reported per (reminder, subscription) attempt.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Delivery is the outcome of one push attempt.
type Delivery struct {
	ReminderID int64  `json:"reminderId"`
	Status     string `json:"status"`
	Endpoint   string `json:"endpoint,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Result summarizes one sweep. Processed counts delivery attempts, not
// candidate reminders; a reminder whose owner has no subscriptions
// contributes nothing here but is still marked notified.
type Result struct {
	Processed int        `json:"processed"`
	Details   []Delivery `json:"details"`
}

// Sender delivers one payload to one subscription. *Service is the real
// implementation; tests substitute outcomes.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Sweeper finds due reminders and dispatches push notifications for them.
// A sweep is a stateless unit of work: it can be triggered over HTTP, by the
// internal ticker, or both. Overlapping sweeps are tolerated: marking a
// reminder notified is idempotent, so the worst case for a race between two
// sweeps is a duplicate send, never a lost marking. Delivery is at-most-once:
// a reminder is marked notified after its attempts complete whether or not
// any of them succeeded, trading a possibly missed notification for a
// guarantee of no repeat spam on later sweeps.
type Sweeper struct {
	mu        sync.RWMutex
	sender    Sender
	reminders *store.ReminderStore
	subs      *store.PushStore
	profiles  *store.ProfileStore
	hub       *ws.Hub
	baseURL   string
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSweeper creates a sweeper. hub may be nil when no live clients are served.
func NewSweeper(sender Sender, rs *store.ReminderStore, ps *store.PushStore, prs *store.ProfileStore, hub *ws.Hub, baseURL string, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		sender:    sender,
		reminders: rs,
		subs:      ps,
		profiles:  prs,
		hub:       hub,
		baseURL:   baseURL,
		interval:  60 * time.Second,
		timeout:   10 * time.Second,
		logger:    logger,
	}
}

// Start begins the periodic sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result, err := s.Sweep(ctx)
				if err != nil {
					s.logger.Error("sweep failed", "error", err)
					continue
				}
				if result.Processed > 0 {
					s.logger.Info("sweep complete", "processed", result.Processed)
				}
			}
		}
	}()
}

// Stop gracefully stops the sweep loop.
func (s *Sweeper) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Sweep runs one scan-dispatch-outcome cycle at the current time.
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	return s.sweepAt(ctx, time.Now().UTC())
}

func (s *Sweeper) sweepAt(ctx context.Context, now time.Time) (*Result, error) {
	candidates, err := s.reminders.ListDue(now)
	if err != nil {
		return nil, fmt.Errorf("scan due reminders: %w", err)
	}

	result := &Result{Details: []Delivery{}}
	for i := range candidates {
		details, err := s.dispatch(ctx, &candidates[i])
		if err != nil {
			return nil, err
		}
		result.Details = append(result.Details, details...)
	}
	result.Processed = len(result.Details)
	return result, nil
}

// dispatch handles one candidate reminder: fan out to the owner's
// subscriptions, classify each outcome, then mark the reminder notified.
// The notified write happens exactly once, after all attempts, regardless
// of how many succeeded, including when there were no subscriptions at all,
// so the reminder is not rescanned every sweep.
func (s *Sweeper) dispatch(ctx context.Context, r *model.Reminder) ([]Delivery, error) {
	subs, err := s.subs.ListByUser(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for user %d: %w", r.UserID, err)
	}

	var details []Delivery
	if len(subs) > 0 {
		payload, err := s.buildPayload(r)
		if err != nil {
			return nil, err
		}

		for i := range subs {
			details = append(details, s.deliver(ctx, r, &subs[i], payload))
		}
	}

	if err := s.reminders.MarkNotified(r.ID); err != nil {
		return nil, fmt.Errorf("mark reminder %d notified: %w", r.ID, err)
	}

	s.notifyForeground(r)

	return details, nil
}

func (s *Sweeper) buildPayload(r *model.Reminder) (Payload, error) {
	sound, err := s.soundFor(r.UserID)
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Title: r.Title,
		Body:  "Due: " + r.DueDate.Format("Jan 2, 2006 3:04 PM"),
		Icon:  "/static/icon-192x192.png",
		URL:   s.baseURL + "/dashboard",
		Sound: sound,
	}, nil
}

func (s *Sweeper) soundFor(userID int64) (string, error) {
	profile, err := s.profiles.GetByUserID(userID)
	if err != nil {
		return "", fmt.Errorf("get profile for user %d: %w", userID, err)
	}
	pref := ""
	if profile != nil {
		pref = profile.NotificationSound
	}
	return ResolveSoundURL(pref, s.baseURL), nil
}

// deliver attempts one subscription with its own timeout and classifies the
// outcome. A gone endpoint is pruned; the prune itself is best-effort, if it
// fails the subscription just fails again next sweep.
func (s *Sweeper) deliver(ctx context.Context, r *model.Reminder, sub *model.PushSubscription, payload Payload) Delivery {
	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.sender.Send(sendCtx, sub, payload)
	cancel()

	if err == nil {
		return Delivery{ReminderID: r.ID, Status: StatusSent, Endpoint: sub.Endpoint}
	}

	if errors.Is(err, ErrExpired) {
		if delErr := s.subs.DeleteByEndpoint(sub.Endpoint); delErr != nil {
			s.logger.Error("prune expired subscription", "endpoint", sub.Endpoint, "error", delErr)
		}
	} else {
		s.logger.Error("push delivery failed", "reminder", r.ID, "endpoint", sub.Endpoint, "error", err)
	}

	return Delivery{ReminderID: r.ID, Status: StatusFailed, Endpoint: sub.Endpoint, Error: err.Error()}
}

// notifyForeground tells any connected foreground clients to refresh and
// play the reminder sound immediately.
func (s *Sweeper) notifyForeground(r *model.Reminder) {
	if s.hub == nil {
		return
	}
	sound, err := s.soundFor(r.UserID)
	if err != nil {
		sound = ResolveSoundURL("", s.baseURL)
	}
	s.hub.BroadcastToUser(r.UserID, ws.NewMessage("reminder", "due", r.ID, map[string]any{
		"title": r.Title,
		"sound": sound,
	}))
}
