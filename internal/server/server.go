package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rowanhale/chime/internal/handler"
	"github.com/rowanhale/chime/internal/middleware"
	"github.com/rowanhale/chime/internal/push"
	"github.com/rowanhale/chime/internal/storage"
	"github.com/rowanhale/chime/internal/store"
	ws "github.com/rowanhale/chime/internal/websocket"
)

// Config holds everything the server needs beyond the database handle.
type Config struct {
	BaseURL    string
	SweepToken string
	Push       push.Config
	Storage    storage.Config
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	reminderH    *handler.ReminderHandler
	categoryH    *handler.CategoryHandler
	profileH     *handler.ProfileHandler
	pushH        *handler.PushHandler
	notifyH      *handler.NotifyHandler
	uploadH      *handler.UploadHandler
	sessionStore *store.SessionStore
	pushStore    *store.PushStore
	rateLimiter  *middleware.RateLimiter
	pushService  *push.Service
	sweeper      *push.Sweeper
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	profileStore := store.NewProfileStore(db)
	categoryStore := store.NewCategoryStore(db)
	reminderStore := store.NewReminderStore(db)
	pushStore := store.NewPushStore(db)

	pushLogger := logger.With("component", "push")

	var pushSvc *push.Service
	var sweeper *push.Sweeper
	if cfg.Push.Enabled() {
		pushSvc = push.NewService(cfg.Push)
		sweeper = push.NewSweeper(pushSvc, reminderStore, pushStore, profileStore, hub, cfg.BaseURL, pushLogger)
	}

	audioStore := storage.New(cfg.Storage)

	s := &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, profileStore, sessionStore, logger.With("component", "auth")),
		reminderH:    handler.NewReminderHandler(reminderStore, categoryStore, hub, logger.With("component", "reminder")),
		categoryH:    handler.NewCategoryHandler(categoryStore, logger.With("component", "category")),
		profileH:     handler.NewProfileHandler(profileStore, logger.With("component", "profile")),
		pushH:        handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		uploadH:      handler.NewUploadHandler(audioStore, logger.With("component", "upload")),
		sessionStore: sessionStore,
		pushStore:    pushStore,
		rateLimiter:  middleware.NewRateLimiter(),
		pushService:  pushSvc,
		sweeper:      sweeper,
		logger:       logger,
	}
	if sweeper != nil {
		s.notifyH = handler.NewNotifyHandler(sweeper, cfg.SweepToken, logger.With("component", "notify"))
	}
	return s
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Sweeper returns the due-reminder sweeper, or nil when push is disabled.
func (s *Server) Sweeper() *push.Sweeper {
	return s.sweeper
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	outerMux.Handle("GET /sounds/", http.StripPrefix("/sounds/", http.FileServer(http.Dir("web/static/sounds"))))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// The sweep trigger carries its own token auth so external cron can call it
	if s.notifyH != nil {
		outerMux.HandleFunc("POST /api/notifications/check", s.notifyH.Check)
	}

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/api/", authMiddleware(protectedMux))
	outerMux.Handle("GET /ws", authMiddleware(ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"))))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Reminder API routes
	mux.HandleFunc("POST /api/reminders", s.reminderH.Create)
	mux.HandleFunc("GET /api/reminders", s.reminderH.List)
	mux.HandleFunc("GET /api/reminders/{id}", s.reminderH.Get)
	mux.HandleFunc("PUT /api/reminders/{id}", s.reminderH.Update)
	mux.HandleFunc("PATCH /api/reminders/{id}/complete", s.reminderH.SetCompleted)
	mux.HandleFunc("DELETE /api/reminders/{id}", s.reminderH.Delete)

	// Category API routes
	mux.HandleFunc("POST /api/categories", s.categoryH.Create)
	mux.HandleFunc("GET /api/categories", s.categoryH.List)
	mux.HandleFunc("DELETE /api/categories/{id}", s.categoryH.Delete)

	// Profile API routes
	mux.HandleFunc("GET /api/profile", s.profileH.Get)
	mux.HandleFunc("PUT /api/profile/display-name", s.profileH.UpdateDisplayName)
	mux.HandleFunc("PUT /api/profile/sound", s.profileH.UpdateSound)

	// Push subscription API routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)

	// Audio upload API routes
	mux.HandleFunc("POST /api/uploads/audio", s.uploadH.UploadAudio)
	mux.HandleFunc("GET /api/audio/{key...}", s.uploadH.ServeAudio)
}
