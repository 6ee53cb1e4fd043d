package api

import (
	"log/slog"
	"net/http"
	"time"

	"linechat/internal/audit"
	a "linechat/internal/auth"
	"linechat/internal/config"
	"linechat/internal/hub"
	"linechat/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Router wires the admin HTTP API onto the live chat state.
type Router struct {
	ah      *AuthHandlers
	sh      *SessionHandlers
	eh      *EventHandlers
	am      *a.AuthMiddleware
	limiter *middleware.IPRateLimiter
	ws      http.Handler
}

// NewRouter builds the handlers. ws may be nil, in which case /ws is not
// served.
func NewRouter(cfg config.Config, h *hub.Hub, creds a.Authenticator, events *audit.AuditService, ws http.Handler, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	am := a.NewAuthMiddleware(cfg.AdminSecret, 0)
	return &Router{
		ah:      NewAuthHandlers(creds, am, cfg.IsAdmin, logger),
		sh:      NewSessionHandlers(h, events, logger),
		eh:      NewEventHandlers(events),
		am:      am,
		limiter: middleware.NewIPRateLimiter(middleware.LoginRateLimit),
		ws:      ws,
	}
}

func (r *Router) RegisterRoutes(router *gin.Engine) {
	{
		unprotected := router.Group("/")
		unprotected.GET("/hc", HealthCheckHandler)
		unprotected.POST("/login", middleware.RateLimitMiddleware(r.limiter), r.ah.LoginHandler)
		if r.ws != nil {
			unprotected.GET("/ws", gin.WrapH(r.ws))
		}
	}

	{
		protected := router.Group("/api")
		protected.Use(r.am.RequireAuth())
		protected.GET("/rooms", r.sh.RoomsHandler)
		protected.GET("/sessions", r.sh.SessionsHandler)
		protected.POST("/sessions/:username/kick", r.sh.KickHandler)
		protected.GET("/users/:username/subscriptions", r.sh.SubscriptionsHandler)
		protected.GET("/events", r.eh.EventsHandler)
	}
}

// Close stops background work owned by the router.
func (r *Router) Close() {
	r.limiter.Stop()
}

func HealthCheckHandler(c *gin.Context) {
	c.String(200, "Running")
}

// NewEngine returns a gin engine with recovery, request logging and the
// admin routes.
func NewEngine(r *Router, logger *slog.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	r.RegisterRoutes(engine)
	return engine
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("admin request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"remote", c.ClientIP(),
			"took", time.Since(start),
		)
	}
}
