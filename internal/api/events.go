package api

import (
	"net/http"
	"strconv"

	"linechat/internal/audit"
	. "linechat/pkg/chat"

	"github.com/gin-gonic/gin"
)

type EventHandlers struct {
	service *audit.AuditService
}

func NewEventHandlers(service *audit.AuditService) *EventHandlers {
	return &EventHandlers{service: service}
}

type EventsResponse struct {
	Events []SessionEvent `json:"events"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// EventsHandler pages through the session audit trail
// @Summary Session audit trail
// @Description Newest first; filter by username (actor or target) and action
// @Tags Audit Logs
// @Produce json
// @Security CookieAuth
// @Param username query string false "Username"
// @Param action query string false "Action, e.g. LOGIN or KICK"
// @Param limit query int false "Number of results (default: 50, max: 500)"
// @Param offset query int false "Offset"
// @Success 200 {object} EventsResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 503 {object} ErrorResponse "Audit trail disabled"
// @Router /api/events [get]
func (h *EventHandlers) EventsHandler(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Audit trail disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(audit.DefaultLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	if limit > audit.MaxLimit {
		limit = audit.MaxLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}

	events, total, err := h.service.GetEvents(audit.Filter{
		Username: c.Query("username"),
		Action:   c.Query("action"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
		return
	}
	if events == nil {
		events = []SessionEvent{}
	}

	c.JSON(http.StatusOK, EventsResponse{
		Events: events,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}
