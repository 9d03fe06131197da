package receiver

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeDisplay struct {
	titles []string
	opts   []DisplayOptions
	err    error
}

func (d *fakeDisplay) Show(title string, opts DisplayOptions) error {
	d.titles = append(d.titles, title)
	d.opts = append(d.opts, opts)
	return d.err
}

type fakeWindow struct {
	focused bool
}

func (w *fakeWindow) Focus() error {
	w.focused = true
	return nil
}

type fakeWindows struct {
	open    []*fakeWindow
	opened  []string
	listErr error
}

func (w *fakeWindows) List() ([]Window, error) {
	if w.listErr != nil {
		return nil, w.listErr
	}
	out := make([]Window, len(w.open))
	for i, win := range w.open {
		out[i] = win
	}
	return out, nil
}

func (w *fakeWindows) Open(url string) error {
	w.opened = append(w.opened, url)
	return nil
}

type fakePlayer struct {
	played []string
	err    error
}

func (p *fakePlayer) Play(url string) error {
	p.played = append(p.played, url)
	return p.err
}

func newTestReceiver() (*Receiver, *fakeDisplay, *fakeWindows, *fakePlayer) {
	display := &fakeDisplay{}
	windows := &fakeWindows{}
	player := &fakePlayer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(display, windows, player, logger), display, windows, player
}

func TestHandlePushDisplaysNotification(t *testing.T) {
	r, display, _, _ := newTestReceiver()
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	payload := []byte(`{"title":"Feed the cat","body":"Due: Sep 1, 2026 8:00 AM","icon":"/static/icon-192x192.png","url":"https://chime.example.com/dashboard","sound":"https://chime.example.com/sounds/bell.mp3"}`)
	if err := r.HandlePush(now, payload); err != nil {
		t.Fatalf("handle push: %v", err)
	}

	if len(display.titles) != 1 {
		t.Fatalf("displayed %d notifications, want 1", len(display.titles))
	}
	if display.titles[0] != "Feed the cat" {
		t.Errorf("title = %q", display.titles[0])
	}

	opts := display.opts[0]
	if opts.Body != "Due: Sep 1, 2026 8:00 AM" {
		t.Errorf("body = %q", opts.Body)
	}
	if opts.Badge != opts.Icon {
		t.Errorf("badge = %q, want icon %q", opts.Badge, opts.Icon)
	}
	if want := []int{100, 50, 100}; len(opts.Vibrate) != 3 || opts.Vibrate[0] != want[0] || opts.Vibrate[1] != want[1] || opts.Vibrate[2] != want[2] {
		t.Errorf("vibrate = %v, want %v", opts.Vibrate, want)
	}
	if !opts.Data.DateOfArrival.Equal(now) {
		t.Errorf("dateOfArrival = %v, want %v", opts.Data.DateOfArrival, now)
	}
	if opts.Data.PrimaryKey != "2" {
		t.Errorf("primaryKey = %q, want %q", opts.Data.PrimaryKey, "2")
	}
	if opts.Data.URL != "https://chime.example.com/dashboard" {
		t.Errorf("data url = %q", opts.Data.URL)
	}
	if opts.Data.Sound != "https://chime.example.com/sounds/bell.mp3" {
		t.Errorf("data sound = %q", opts.Data.Sound)
	}
	if len(opts.Actions) != 1 || opts.Actions[0].Action != "view" || opts.Actions[0].Title != "View" {
		t.Errorf("actions = %v", opts.Actions)
	}
}

func TestHandlePushEmptyPayload(t *testing.T) {
	r, display, _, _ := newTestReceiver()

	if err := r.HandlePush(time.Now(), nil); err != nil {
		t.Fatalf("handle push: %v", err)
	}
	if err := r.HandlePush(time.Now(), []byte{}); err != nil {
		t.Fatalf("handle push: %v", err)
	}
	if len(display.titles) != 0 {
		t.Errorf("displayed %d notifications, want 0", len(display.titles))
	}
}

func TestHandlePushMalformedPayload(t *testing.T) {
	r, display, _, _ := newTestReceiver()

	if err := r.HandlePush(time.Now(), []byte("{not json")); err != nil {
		t.Fatalf("malformed payload must not error: %v", err)
	}
	if err := r.HandlePush(time.Now(), []byte(`{"body":"no title"}`)); err != nil {
		t.Fatalf("untitled payload must not error: %v", err)
	}
	if len(display.titles) != 0 {
		t.Errorf("displayed %d notifications, want 0", len(display.titles))
	}
}

func TestHandlePushDisplayError(t *testing.T) {
	r, display, _, _ := newTestReceiver()
	display.err = errors.New("permission revoked")

	err := r.HandlePush(time.Now(), []byte(`{"title":"X"}`))
	if err == nil {
		t.Fatal("expected display error to propagate")
	}
}

func TestHandleClickFocusesExistingWindow(t *testing.T) {
	r, _, windows, _ := newTestReceiver()
	first := &fakeWindow{}
	second := &fakeWindow{}
	windows.open = []*fakeWindow{first, second}

	if err := r.HandleClick(NotificationData{URL: "/dashboard"}); err != nil {
		t.Fatalf("handle click: %v", err)
	}

	if !first.focused {
		t.Error("expected first open window to be focused")
	}
	if second.focused {
		t.Error("only the first window should be focused")
	}
	if len(windows.opened) != 0 {
		t.Errorf("opened %v, want no new windows", windows.opened)
	}
}

func TestHandleClickOpensWhenNoWindow(t *testing.T) {
	r, _, windows, _ := newTestReceiver()

	if err := r.HandleClick(NotificationData{URL: "/dashboard"}); err != nil {
		t.Fatalf("handle click: %v", err)
	}

	if len(windows.opened) != 1 || windows.opened[0] != "/dashboard" {
		t.Errorf("opened = %v, want [/dashboard]", windows.opened)
	}
}

func TestHandleClickDefaultURL(t *testing.T) {
	r, _, windows, _ := newTestReceiver()

	if err := r.HandleClick(NotificationData{}); err != nil {
		t.Fatalf("handle click: %v", err)
	}

	if len(windows.opened) != 1 || windows.opened[0] != "/" {
		t.Errorf("opened = %v, want [/]", windows.opened)
	}
}

func TestHandleClickListError(t *testing.T) {
	r, _, windows, _ := newTestReceiver()
	windows.listErr = errors.New("clients unavailable")

	if err := r.HandleClick(NotificationData{URL: "/x"}); err == nil {
		t.Fatal("expected list error to propagate")
	}
}

func TestHandleMessagePlaySound(t *testing.T) {
	r, _, _, player := newTestReceiver()

	msg := []byte(`{"type":"PLAY_SOUND","sound":"https://chime.example.com/sounds/bell.mp3"}`)
	if err := r.HandleMessage(msg); err != nil {
		t.Fatalf("handle message: %v", err)
	}

	if len(player.played) != 1 || player.played[0] != "https://chime.example.com/sounds/bell.mp3" {
		t.Errorf("played = %v", player.played)
	}
}

func TestHandleMessagePlaybackFailureSwallowed(t *testing.T) {
	r, _, _, player := newTestReceiver()
	player.err = errors.New("autoplay blocked")

	msg := []byte(`{"type":"PLAY_SOUND","sound":"https://x/s.mp3"}`)
	if err := r.HandleMessage(msg); err != nil {
		t.Fatalf("playback failure must be swallowed: %v", err)
	}
}

func TestHandleMessageIgnoresOtherTypes(t *testing.T) {
	r, _, _, player := newTestReceiver()

	for _, msg := range []string{
		`{"type":"REFRESH"}`,
		`{"type":"PLAY_SOUND"}`,
		`{not json`,
		`{}`,
	} {
		if err := r.HandleMessage([]byte(msg)); err != nil {
			t.Fatalf("message %q must not error: %v", msg, err)
		}
	}
	if len(player.played) != 0 {
		t.Errorf("played = %v, want none", player.played)
	}
}
