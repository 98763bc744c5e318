package delivery

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"codentor-backend/internal/calendar/usecase"
	"codentor-backend/pkg/apperror"
	"codentor-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type CalendarHandler struct {
	calendar    *usecase.Service
	frontendURL string
}

func NewCalendarHandler(calendar *usecase.Service, frontendURL string) *CalendarHandler {
	return &CalendarHandler{calendar: calendar, frontendURL: frontendURL}
}

// GetAuthURL returns the Google consent URL, or redirects to it with ?redirect=1.
// GET /api/auth/google
func (h *CalendarHandler) GetAuthURL(c *gin.Context) {
	authURL, err := h.calendar.GetAuthURL(c.GetString("userID"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	if c.Query("redirect") == "1" {
		c.Redirect(http.StatusFound, authURL)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": authURL})
}

// Callback finishes the OAuth flow and sends the browser back to the app.
// GET /api/auth/google/callback?code=...&state=...
func (h *CalendarHandler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		h.redirectResult(c, "error", errParam)
		return
	}

	userID, err := h.calendar.ParseState(c.Query("state"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	code := c.Query("code")
	if code == "" {
		apperror.Respond(c, apperror.Validation("code is required"))
		return
	}

	token, err := h.calendar.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		logger.WithContext(c.Request.Context()).WithError(err).WithField("user_id", userID).Warn("[Calendar] Code exchange failed")
		h.redirectResult(c, "error", "exchange_failed")
		return
	}
	if err := h.calendar.SaveTokens(userID, token); err != nil {
		apperror.Respond(c, err)
		return
	}

	logger.WithContext(c.Request.Context()).WithField("user_id", userID).Info("[Calendar] Google Calendar connected")
	h.redirectResult(c, "connected", "")
}

func (h *CalendarHandler) redirectResult(c *gin.Context, status, reason string) {
	q := url.Values{"calendar": {status}}
	if reason != "" {
		q.Set("reason", reason)
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/dashboard?"+q.Encode())
}

// GET /api/calendar/status
func (h *CalendarHandler) Status(c *gin.Context) {
	connected, err := h.calendar.HasTokens(c.GetString("userID"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"configured": h.calendar.Configured(),
		"connected":  connected,
	})
}

// ListEvents returns upcoming events, ?days= ahead (default 30, max 365).
// GET /api/calendar/events
func (h *CalendarHandler) ListEvents(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 || days > 365 {
		apperror.Respond(c, apperror.Validation("days must be between 1 and 365"))
		return
	}

	now := time.Now()
	events, err := h.calendar.ListEvents(c.Request.Context(), c.GetString("userID"), now, now.AddDate(0, 0, days))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// DELETE /api/calendar
func (h *CalendarHandler) Disconnect(c *gin.Context) {
	if err := h.calendar.Disconnect(c.GetString("userID")); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": false})
}
