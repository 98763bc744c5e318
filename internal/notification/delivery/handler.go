package delivery

import (
	"net/http"
	"strconv"

	authdto "codentor-backend/internal/auth/dto"
	"codentor-backend/internal/notification/usecase"
	"codentor-backend/pkg/apperror"
	"codentor-backend/pkg/realtime"
	"codentor-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications *usecase.Service
	push          *usecase.PushService
	sse           *sse.Manager
}

func NewNotificationHandler(notifications *usecase.Service, push *usecase.PushService, sseManager *sse.Manager) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, push: push, sse: sseManager}
}

// List returns the caller's notifications, newest first.
// GET /api/notifications?unread=true&limit=20&offset=0
func (h *NotificationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, total, unread, err := h.notifications.List(c.GetString("userID"), c.Query("unread") == "true", limit, offset)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"total":         total,
		"unread":        unread,
	})
}

// PATCH /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.GetString("userID"), c.Param("id")); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "read": true})
}

// PATCH /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.GetString("userID"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Events streams the caller's realtime channel over SSE.
// GET /api/events
func (h *NotificationHandler) Events(c *gin.Context) {
	h.sse.ServeHTTP(c, realtime.UserChannel(c.GetString("userID")))
}

// GET /api/push/vapid-key
func (h *NotificationHandler) VAPIDKey(c *gin.Context) {
	if !h.push.WebPushEnabled() {
		apperror.Respond(c, apperror.Configuration("web push is not configured"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.push.VAPIDPublicKey()})
}

// POST /api/push/subscriptions
func (h *NotificationHandler) Subscribe(c *gin.Context) {
	var req authdto.PushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.push.Subscribe(c.GetString("userID"), req.Endpoint, req.Keys.P256dh, req.Keys.Auth, c.Request.UserAgent()); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscribed": true})
}

// DELETE /api/push/subscriptions
func (h *NotificationHandler) Unsubscribe(c *gin.Context) {
	var req authdto.PushUnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.push.Unsubscribe(c.GetString("userID"), req.Endpoint); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": false})
}

// POST /api/fcm
func (h *NotificationHandler) RegisterFCMToken(c *gin.Context) {
	var req authdto.FCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.push.RegisterFCMToken(c.GetString("userID"), req.Token, req.DeviceInfo); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"registered": true})
}

// DELETE /api/fcm
func (h *NotificationHandler) UnregisterFCMToken(c *gin.Context) {
	var req authdto.FCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.push.UnregisterFCMToken(c.GetString("userID"), req.Token); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registered": false})
}
