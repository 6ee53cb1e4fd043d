package api

import (
	"log/slog"
	"net/http"

	"linechat/internal/audit"
	"linechat/internal/hub"
	. "linechat/pkg/chat"

	"github.com/gin-gonic/gin"
)

type SessionHandlers struct {
	hub    *hub.Hub
	events *audit.AuditService
	logger *slog.Logger
}

func NewSessionHandlers(h *hub.Hub, events *audit.AuditService, logger *slog.Logger) *SessionHandlers {
	return &SessionHandlers{
		hub:    h,
		events: events,
		logger: logger,
	}
}

type SubscriptionsResponse struct {
	Username      string   `json:"username" example:"bob"`
	Online        bool     `json:"online"`
	Subscriptions []string `json:"subscriptions"`
	Subscribers   []string `json:"subscribers"`
}

// RoomsHandler lists rooms with their members
// @Summary List rooms
// @Tags Chat
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string][]hub.RoomInfo
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /api/rooms [get]
func (h *SessionHandlers) RoomsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.hub.Snapshot().Rooms})
}

// SessionsHandler lists live sessions
// @Summary List sessions
// @Tags Chat
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]any
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /api/sessions [get]
func (h *SessionHandlers) SessionsHandler(c *gin.Context) {
	sessions := h.hub.Snapshot().Sessions
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// SubscriptionsHandler shows both directions of a user's subscription edges
// @Summary User subscriptions
// @Tags Chat
// @Produce json
// @Security CookieAuth
// @Param username path string true "Username"
// @Success 200 {object} SubscriptionsResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /api/users/{username}/subscriptions [get]
func (h *SessionHandlers) SubscriptionsHandler(c *gin.Context) {
	username := c.Param("username")
	subscriptions := h.hub.Subscriptions(username)
	if subscriptions == nil {
		subscriptions = []string{}
	}
	c.JSON(http.StatusOK, SubscriptionsResponse{
		Username:      username,
		Online:        h.hub.Online(username),
		Subscriptions: subscriptions,
		Subscribers:   h.hub.Subscribers(username),
	})
}

// KickHandler disconnects a user's live session
// @Summary Kick a user
// @Tags Chat
// @Produce json
// @Security CookieAuth
// @Param username path string true "Username"
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "User not online"
// @Router /api/sessions/{username}/kick [post]
func (h *SessionHandlers) KickHandler(c *gin.Context) {
	target := c.Param("username")
	admin := c.GetString("username")

	dep, ok := h.hub.Kick(target)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not online"})
		return
	}
	h.hub.Broadcast(dep.Room, LeftNotice(dep.Username, dep.Room), nil)
	h.logger.Info("user kicked", "user", target, "room", dep.Room, "admin", admin)

	if h.events != nil {
		err := h.events.Record(SessionEvent{
			Action:   audit.ActionKick,
			Username: admin,
			Target:   target,
			Room:     dep.Room,
			Remote:   c.ClientIP(),
		})
		if err != nil {
			h.logger.Warn("audit record failed", "action", audit.ActionKick, "err", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "User kicked",
		"username": target,
		"room":     dep.Room,
	})
}
