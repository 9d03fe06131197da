// Package receiver implements the notification-receiving side of the push
// pipeline as plain message handlers. The browser service worker
// (web/static/sw.js) is the production receiver; this package mirrors its
// behavior behind narrow interfaces so the display, window focus, and sound
// logic stays testable on the server side.
package receiver

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rowanhale/chime/internal/push"
)

// PlaySoundType is the foreground message asking the active page to play a
// notification sound immediately.
const PlaySoundType = "PLAY_SOUND"

const defaultClickURL = "/"

// notificationTag groups notifications so a newer one replaces the last.
const notificationTag = "2"

// Action is a button rendered on a displayed notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// NotificationData rides along with a displayed notification and is read
// back when the user clicks it.
type NotificationData struct {
	DateOfArrival time.Time `json:"dateOfArrival"`
	PrimaryKey    string    `json:"primaryKey"`
	URL           string    `json:"url,omitempty"`
	Sound         string    `json:"sound,omitempty"`
}

// DisplayOptions describes how a notification should be shown.
type DisplayOptions struct {
	Body    string
	Icon    string
	Badge   string
	Vibrate []int
	Data    NotificationData
	Actions []Action
}

// Display shows notifications to the user.
type Display interface {
	Show(title string, opts DisplayOptions) error
}

// Window is one open app window.
type Window interface {
	Focus() error
}

// Windows enumerates open app windows and opens new ones.
type Windows interface {
	List() ([]Window, error)
	Open(url string) error
}

// SoundPlayer plays a notification sound in the foreground.
type SoundPlayer interface {
	Play(url string) error
}

// Receiver reacts to push events, notification clicks, and foreground
// messages. Each handler is independent; none of them retains state between
// calls.
type Receiver struct {
	display Display
	windows Windows
	sounds  SoundPlayer
	logger  *slog.Logger
}

func New(display Display, windows Windows, sounds SoundPlayer, logger *slog.Logger) *Receiver {
	return &Receiver{
		display: display,
		windows: windows,
		sounds:  sounds,
		logger:  logger,
	}
}

// HandlePush reacts to an incoming push event. An empty or malformed payload
// is dropped without displaying anything; a push with no readable content is
// worse shown blank than not shown at all.
func (r *Receiver) HandlePush(now time.Time, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var payload push.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.logger.Warn("dropping malformed push payload", "error", err)
		return nil
	}
	if payload.Title == "" {
		return nil
	}

	return r.display.Show(payload.Title, DisplayOptions{
		Body:    payload.Body,
		Icon:    payload.Icon,
		Badge:   payload.Icon,
		Vibrate: []int{100, 50, 100},
		Data: NotificationData{
			DateOfArrival: now,
			PrimaryKey:    notificationTag,
			URL:           payload.URL,
			Sound:         payload.Sound,
		},
		Actions: []Action{
			{Action: "view", Title: "View"},
		},
	})
}

// HandleClick reacts to the user tapping a notification. If an app window is
// already open it is focused; otherwise a new one is opened at the
// notification's URL.
func (r *Receiver) HandleClick(data NotificationData) error {
	url := data.URL
	if url == "" {
		url = defaultClickURL
	}

	windows, err := r.windows.List()
	if err != nil {
		return err
	}
	if len(windows) > 0 {
		return windows[0].Focus()
	}
	return r.windows.Open(url)
}

// HandleMessage reacts to a message from the server or the page, currently
// just PLAY_SOUND. Playback is best-effort; a failure is logged and the
// message is considered handled.
func (r *Receiver) HandleMessage(data []byte) error {
	var msg struct {
		Type  string `json:"type"`
		Sound string `json:"sound"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Warn("dropping malformed message", "error", err)
		return nil
	}

	if msg.Type != PlaySoundType || msg.Sound == "" {
		return nil
	}

	if err := r.sounds.Play(msg.Sound); err != nil {
		r.logger.Warn("sound playback failed", "sound", msg.Sound, "error", err)
	}
	return nil
}
