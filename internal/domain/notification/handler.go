package notification

import (
	"context"
	"log/slog"
	"net/http"

	"routecast/internal/common"

	"github.com/gin-gonic/gin"
)

// Broadcaster pushes an announcement to every connected session.
type Broadcaster interface {
	// PushToAll publishes to all sessions and returns the receiver count.
	PushToAll(ctx context.Context, title, message string) (int, error)
}

// Handler handles HTTP requests for the notification domain.
type Handler struct {
	dispatcher  *Dispatcher
	broadcaster Broadcaster // optional
}

// NewHandler creates a new notification handler. broadcaster may be nil.
func NewHandler(dispatcher *Dispatcher, broadcaster Broadcaster) *Handler {
	return &Handler{dispatcher: dispatcher, broadcaster: broadcaster}
}

// Dispatch handles POST /api/v1/notification/:objectKind/:route
// The body is the opaque parameters blob; title, message and channels come
// from the query string. Responds 201 with the created notification ids and
// resolved recipients.
func (h *Handler) Dispatch(c *gin.Context) {
	channels, err := ParseChannels(c.Query("channels"))
	if err != nil {
		common.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		common.Error(c, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	req := &DispatchRequest{
		Route:      c.Param("route"),
		ObjectKind: c.Param("objectKind"),
		Title:      c.Query("title"),
		Message:    c.Query("message"),
		Channels:   channels,
		Parameters: body,
	}

	resp, err := h.dispatcher.Dispatch(c.Request.Context(), req)
	if err != nil {
		slog.Error("dispatch failed",
			"route", req.Route,
			"object_kind", req.ObjectKind,
			"error", err,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, resp)
}

// GetNotification handles GET /api/v1/notifications/:id
func (h *Handler) GetNotification(c *gin.Context) {
	id := c.Param("id")

	n, err := h.dispatcher.GetNotification(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, n)
}

// ListNotifications handles GET /api/v1/notifications
// Supports filtering by user_id, status, route and channel.
func (h *Handler) ListNotifications(c *gin.Context) {
	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	resp, err := h.dispatcher.ListNotifications(c.Request.Context(), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, resp)
}

// ListRoutes handles GET /api/v1/routes
func (h *Handler) ListRoutes(c *gin.Context) {
	common.Success(c, http.StatusOK, h.dispatcher.Routes())
}

// Broadcast handles POST /api/v1/broadcast
// Pushes an operator announcement to all connected sessions. Nothing is
// persisted; this is the pushToAll surface of the real-time channel.
func (h *Handler) Broadcast(c *gin.Context) {
	if h.broadcaster == nil {
		common.Error(c, http.StatusServiceUnavailable, "broadcast channel not configured")
		return
	}

	var req struct {
		Title   string `json:"title" binding:"required"`
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	receivers, err := h.broadcaster.PushToAll(c.Request.Context(), req.Title, req.Message)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"receivers": receivers})
}

// ResendWebhook handles POST /api/v1/webhooks/resend
// Receives delivery status updates from Resend webhooks.
func (h *Handler) ResendWebhook(c *gin.Context) {
	var event struct {
		Type string `json:"type"`
		Data struct {
			EmailID string `json:"email_id"`
		} `json:"data"`
	}

	if err := c.ShouldBindJSON(&event); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid webhook payload: "+err.Error())
		return
	}

	// Map Resend event types to our notification statuses
	var status Status
	switch event.Type {
	case "email.delivered":
		status = StatusDelivered
	case "email.bounced":
		status = StatusBounced
	default:
		// Acknowledge but ignore unhandled event types
		slog.Info("ignoring webhook event", "type", event.Type)
		common.Success(c, http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.dispatcher.HandleWebhookEvent(c.Request.Context(), event.Data.EmailID, status); err != nil {
		slog.Error("webhook processing failed",
			"event_type", event.Type,
			"email_id", event.Data.EmailID,
			"error", err,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"status": "processed"})
}

// RegisterRoutes registers notification routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/notification/:objectKind/:route", h.Dispatch)
	rg.GET("/notifications", h.ListNotifications)
	rg.GET("/notifications/:id", h.GetNotification)
	rg.GET("/routes", h.ListRoutes)
	rg.POST("/broadcast", h.Broadcast)
	rg.POST("/webhooks/resend", h.ResendWebhook)
}
