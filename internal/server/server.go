package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/splitweek/internal/archive"
	"github.com/dukerupert/splitweek/internal/auth"
	"github.com/dukerupert/splitweek/internal/config"
	"github.com/dukerupert/splitweek/internal/custody"
	"github.com/dukerupert/splitweek/internal/email"
	"github.com/dukerupert/splitweek/internal/handler"
	"github.com/dukerupert/splitweek/internal/linking"
	"github.com/dukerupert/splitweek/internal/maintenance"
	"github.com/dukerupert/splitweek/internal/middleware"
	"github.com/dukerupert/splitweek/internal/negotiation"
	"github.com/dukerupert/splitweek/internal/notify"
	"github.com/dukerupert/splitweek/internal/push"
	"github.com/dukerupert/splitweek/internal/store"
	ws "github.com/dukerupert/splitweek/internal/websocket"
)

// Invite acceptance is the only unauthenticated-guessable input, so it is
// throttled per caller.
const (
	acceptInviteLimit  = 10
	acceptInviteWindow = time.Minute
)

type Server struct {
	db       *sql.DB
	stores   *store.Stores
	hub      *ws.Hub
	tokens   *auth.TokenService
	notifier *notify.Notifier

	meH             *handler.MeHandler
	childH          *handler.ChildHandler
	scheduleH       *handler.ScheduleHandler
	scheduleChangeH *handler.ScheduleChangeHandler
	notificationH   *handler.NotificationHandler
	pushH           *handler.PushHandler

	rateLimiter *middleware.RateLimiter
	janitor     *maintenance.Janitor
	logger      *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	stores := store.New(db)
	hub := ws.NewHub(logger.With("component", "websocket"))

	// Push is optional; a nil Pusher keeps the notifier to in-app and
	// websocket delivery.
	var pusher notify.Pusher
	pushCfg := push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubscriber,
	}
	if pushCfg.Configured() {
		pusher = push.NewService(pushCfg)
	} else {
		logger.Info("web push disabled, VAPID keys not set")
	}

	notifier := notify.New(stores, hub, pusher, logger.With("component", "notify"))

	var archiver negotiation.Archiver
	if a := archive.New(archive.Config{
		Endpoint:  cfg.S3Endpoint,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Prefix:    cfg.S3Prefix,
	}); a != nil {
		archiver = a
	}

	mailer := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL)
	if !mailer.Configured() {
		logger.Info("invite email disabled, Postmark token not set")
	}

	mgr := custody.NewManager(db, notifier, logger.With("component", "custody"))
	neg := negotiation.New(db, notifier, archiver, logger.With("component", "negotiation"),
		negotiation.Options{EnforceExpiry: cfg.EnforceExpiry})
	linker := linking.NewService(db, mailer, notifier, logger.With("component", "linking"),
		linking.Options{MaxParents: cfg.MaxParents})

	limiter := middleware.NewRateLimiter()

	return &Server{
		db:              db,
		stores:          stores,
		hub:             hub,
		tokens:          auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer),
		notifier:        notifier,
		meH:             handler.NewMeHandler(stores.Users, linker, logger.With("component", "me")),
		childH:          handler.NewChildHandler(linker, logger.With("component", "child")),
		scheduleH:       handler.NewScheduleHandler(mgr, logger.With("component", "schedule")),
		scheduleChangeH: handler.NewScheduleChangeHandler(neg, logger.With("component", "schedule_change")),
		notificationH:   handler.NewNotificationHandler(stores.Notifications, hub, logger.With("component", "notification")),
		pushH:           handler.NewPushHandler(stores.Push, pushCfg.VAPIDPublicKey, logger.With("component", "push")),
		rateLimiter:     limiter,
		janitor:         maintenance.New(db, limiter, logger.With("component", "maintenance"), maintenance.Config{}),
		logger:          logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Janitor returns the periodic cleanup runner. The caller starts and stops it.
func (s *Server) Janitor() *maintenance.Janitor {
	return s.janitor
}

// Notifier returns the notifier so shutdown can wait for in-flight pushes.
func (s *Server) Notifier() *notify.Notifier {
	return s.notifier
}

// Tokens returns the service that issues and verifies bearer tokens.
func (s *Server) Tokens() *auth.TokenService {
	return s.tokens
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /api/health", handler.Health)
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.tokens, s.childIDs, s.logger.With("component", "websocket")))

	// Protected routes, wrapped with RequireBearer
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/api/", middleware.RequireBearer(s.tokens)(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

// childIDs lists the children a websocket client is subscribed to.
func (s *Server) childIDs(userID int64) ([]int64, error) {
	children, err := s.stores.Children.ListForUser(userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.Handler {
	rl := middleware.RateLimit(s.rateLimiter, middleware.UserOrIP, acceptInviteLimit, acceptInviteWindow)
	return rl(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/me", s.meH.Get)

	// Children and linking
	mux.HandleFunc("GET /api/children", s.childH.List)
	mux.HandleFunc("POST /api/children", s.childH.Create)
	mux.Handle("POST /api/children/accept-invite", s.rateLimitedHandler(s.childH.AcceptInvite))
	mux.HandleFunc("GET /api/children/{id}", s.childH.Get)
	mux.HandleFunc("PUT /api/children/{id}", s.childH.Update)
	mux.HandleFunc("GET /api/children/{id}/parents", s.childH.Parents)
	mux.HandleFunc("POST /api/children/{id}/invite", s.childH.Invite)

	// Custody calendar
	mux.HandleFunc("GET /api/children/{id}/schedule", s.scheduleH.Get)
	mux.HandleFunc("POST /api/children/{id}/schedule", s.scheduleH.Create)
	mux.HandleFunc("POST /api/children/{id}/schedule/bulk", s.scheduleH.Bulk)
	mux.HandleFunc("POST /api/children/{id}/schedule/pattern", s.scheduleH.Pattern)
	mux.HandleFunc("PUT /api/children/{id}/schedule/{entryId}", s.scheduleH.Update)
	mux.HandleFunc("POST /api/children/{id}/schedule/{entryId}/confirm-handoff", s.scheduleH.ConfirmHandoff)

	// Change requests
	mux.HandleFunc("GET /api/children/{id}/schedule-changes", s.scheduleChangeH.List)
	mux.HandleFunc("POST /api/children/{id}/schedule-changes", s.scheduleChangeH.Create)
	mux.HandleFunc("GET /api/children/{id}/schedule-changes/history", s.scheduleChangeH.History)
	mux.HandleFunc("GET /api/children/{id}/schedule-changes/export", s.scheduleChangeH.Export)
	mux.HandleFunc("POST /api/children/{id}/schedule-changes/export/archive", s.scheduleChangeH.Archive)
	mux.HandleFunc("GET /api/schedule-changes/{id}/chain", s.scheduleChangeH.Chain)
	mux.HandleFunc("POST /api/schedule-changes/{id}/approve", s.scheduleChangeH.Approve)
	mux.HandleFunc("POST /api/schedule-changes/{id}/decline", s.scheduleChangeH.Decline)
	mux.HandleFunc("POST /api/schedule-changes/{id}/counter", s.scheduleChangeH.Counter)

	// Notifications
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("GET /api/notifications/unread-count", s.notificationH.UnreadCount)
	mux.HandleFunc("POST /api/notifications/read-all", s.notificationH.MarkAllRead)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notificationH.MarkRead)

	// Push
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
}
