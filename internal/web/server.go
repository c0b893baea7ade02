// Package web serves the calendarbot HTTP surface: file uploads, the event
// list and iCalendar feed, dismissals, reminder subscriptions, the
// Telegram code login and Prometheus metrics.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgard/calendarbot/internal/config"
	"github.com/edgard/calendarbot/internal/event"
	"github.com/edgard/calendarbot/internal/logger"
)

const (
	sessionCookie = "tg_user"
	sessionMaxAge = 24 * time.Hour
	codeMaxAge    = 10 * time.Minute

	shutdownTimeout = 10 * time.Second
)

// Uploader runs an uploaded file through the extraction pipeline.
type Uploader interface {
	ProcessUpload(ctx context.Context, filename, path string) (int, error)
}

// EventSource loads the stored events.
type EventSource interface {
	Load(ctx context.Context) ([]event.CalendarEvent, error)
}

// Ledger is a persisted string set.
type Ledger interface {
	Add(key string) error
	Remove(key string) error
	Clear() error
	Set() (map[string]struct{}, error)
}

// LoginStore keeps pending login codes.
type LoginStore interface {
	SaveLoginCode(ctx context.Context, username, code string) error
	ConsumeLoginCode(ctx context.Context, username, code string, maxAge time.Duration) (bool, error)
}

// CodeSender delivers a login code to a Telegram user.
type CodeSender interface {
	SendCode(ctx context.Context, username, code string) error
}

// Pinger reports the health of a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds the collaborators of the HTTP handlers.
type Deps struct {
	Logger      *slog.Logger
	Config      *config.Config
	Uploads     Uploader
	Events      EventSource
	Dismissed   Ledger
	Subscribers Ledger
	Logins      LoginStore
	Codes       CodeSender
	Health      Pinger
	Gatherer    prometheus.Gatherer
}

// Server is the HTTP surface.
type Server struct {
	deps   Deps
	log    *slog.Logger
	engine *gin.Engine
	now    func() time.Time
}

// NewServer builds the router. Callers pick the gin mode.
func NewServer(deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		deps:   deps,
		log:    deps.Logger.With("component", "http"),
		engine: gin.New(),
		now:    time.Now,
	}
	s.engine.Use(gin.Recovery(), logger.GinMiddleware(s.log))
	if origins := deps.Config.HTTP.CORSOrigins; len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
		corsConfig.AllowCredentials = true
		s.engine.Use(cors.New(corsConfig))
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	s.engine.POST("/login/request", s.handleLoginRequest)
	s.engine.POST("/login/verify", s.handleLoginVerify)
	s.engine.POST("/subscribe-reminders", s.handleSubscription(true))
	s.engine.POST("/unsubscribe-reminders", s.handleSubscription(false))

	private := s.engine.Group("/", s.requireLogin())
	private.POST("/upload", s.handleUpload)
	private.POST("/dismiss-event", s.handleDismiss)
	private.POST("/clear-dismissed", s.handleClearDismissed)
	private.GET("/events", s.handleEvents)
	private.GET("/calendar.ics", s.handleCalendar)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.deps.Config.HTTP.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", "listen", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// requireLogin rejects requests without the session cookie of an allowed
// user when login is enabled.
func (s *Server) requireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.deps.Config.HTTP.RequireLogin {
			c.Next()
			return
		}
		user, err := c.Cookie(sessionCookie)
		if err != nil || !s.deps.Config.IsAllowedUsername(user) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Login required"})
			return
		}
		c.Set("user", user)
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) fail(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		_ = c.Error(err)
		s.log.ErrorContext(c.Request.Context(), msg, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}
