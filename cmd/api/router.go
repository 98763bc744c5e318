package api

import (
	"net/http"

	"codentor-backend/internal/auth/delivery"
	"codentor-backend/pkg/apperror"
	"codentor-backend/pkg/realtime"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	requireAuth := delivery.AuthMiddleware(h.authUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		api.GET("/status", h.Status)

		// SSE endpoint
		api.GET("/events", requireAuth, h.notificationHandler.Events)

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.authHandler.Register)
			auth.POST("/login", h.authHandler.Login)
			auth.POST("/refresh", h.authHandler.RefreshToken)
			auth.POST("/logout", h.authHandler.Logout)
			auth.POST("/logout-all", requireAuth, h.authHandler.LogoutAll)
			auth.GET("/me", requireAuth, h.authHandler.Me)
			auth.PUT("/telegram", requireAuth, h.authHandler.LinkTelegram)

			// Google Calendar OAuth; the callback is reached by Google's redirect
			// and identifies the user through the signed state.
			auth.GET("/google", requireAuth, h.calendarHandler.GetAuthURL)
			auth.GET("/google/callback", h.calendarHandler.Callback)
		}

		calendar := api.Group("/calendar")
		calendar.Use(requireAuth)
		{
			calendar.GET("/status", h.calendarHandler.Status)
			calendar.GET("/events", h.calendarHandler.ListEvents)
			calendar.DELETE("", h.calendarHandler.Disconnect)
		}

		// The reminder scan is triggered by an external cron with CRON_SECRET,
		// so it sits outside the auth group.
		api.GET("/tasks/reminders", h.taskHandler.RunReminderScan)

		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", h.taskHandler.GetTasks)
			tasks.POST("", h.taskHandler.CreateTask)
			tasks.GET("/upcoming", h.taskHandler.GetUpcoming)
			tasks.GET("/sync", h.taskHandler.ImportFromCalendar)
			tasks.POST("/sync", h.taskHandler.ApplySyncAction)
			tasks.POST("/reminders", h.taskHandler.SendTestReminder)
			tasks.GET("/:id", h.taskHandler.GetTaskByID)
			tasks.PATCH("/:id", h.taskHandler.UpdateTask)
			tasks.DELETE("/:id", h.taskHandler.DeleteTask)
		}

		notifications := api.Group("/notifications")
		notifications.Use(requireAuth)
		{
			notifications.GET("", h.notificationHandler.List)
			notifications.PATCH("/:id/read", h.notificationHandler.MarkRead)
			notifications.POST("/read-all", h.notificationHandler.MarkAllRead)
		}

		push := api.Group("/push")
		push.Use(requireAuth)
		{
			push.GET("/vapid-key", h.notificationHandler.VAPIDKey)
			push.POST("/subscriptions", h.notificationHandler.Subscribe)
			push.DELETE("/subscriptions", h.notificationHandler.Unsubscribe)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(requireAuth)
		{
			fcm.POST("", h.notificationHandler.RegisterFCMToken)
			fcm.DELETE("", h.notificationHandler.UnregisterFCMToken)
		}

		notes := api.Group("/notes")
		notes.Use(requireAuth)
		{
			notes.GET("", h.noteHandler.List)
			notes.POST("", h.noteHandler.Create)
			notes.GET("/:id", h.noteHandler.Get)
			notes.PUT("/:id", h.noteHandler.Update)
			notes.DELETE("/:id", h.noteHandler.Delete)
		}

		api.POST("/voice-agent", requireAuth, h.voiceHandler.Handle)

		coach := api.Group("")
		coach.Use(requireAuth)
		{
			coach.POST("/ai-coach/initialize", h.coachHandler.Initialize)
			coach.POST("/ai-coach/chat", h.coachHandler.Chat)
			coach.GET("/dashboard/ai-suggestions", h.coachHandler.Suggestions)
			coach.POST("/roadmap/generate", h.coachHandler.GenerateRoadmap)
		}

		rooms := api.Group("/rooms/:code")
		rooms.Use(requireAuth)
		{
			rooms.POST("/join", h.roomHandler.Join)
			rooms.POST("/leave", h.roomHandler.Leave)
			rooms.POST("/events", h.roomHandler.Relay)
			rooms.GET("/collaborators", h.roomHandler.Collaborators)
			rooms.GET("/stream", h.RoomStream)
		}

		// Settings routes
		settings := api.Group("/settings")
		settings.Use(requireAuth)
		{
			settings.GET("/ai", h.settings.Get)
			settings.PUT("/ai", h.settings.Update)
			settings.POST("/ai/test", h.settings.Test)
		}
	}
}

// Status reports which optional providers are configured.
// GET /api/status
func (h *Handler) Status(c *gin.Context) {
	missing := h.config.MissingProviders()
	providers := gin.H{}
	for _, name := range []string{"google_calendar", "email", "web_push", "fcm", "pusher", "groq", "youtube", "chroma", "telegram"} {
		_, absent := missing[name]
		providers[name] = !absent
	}
	// Push senders can fail to initialise even with their variables set.
	if h.push != nil {
		providers["web_push"] = h.push.WebPushEnabled()
		providers["fcm"] = h.push.FCMEnabled()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"providers": providers,
		"missing":   missing,
		"scheduler": h.scheduler != nil,
	})
}

// RoomStream serves a room's realtime channel over SSE to a joined member.
// Each keep-alive refreshes the member's presence so passive viewers stay
// listed as collaborators.
// GET /api/rooms/:code/stream
func (h *Handler) RoomStream(c *gin.Context) {
	code := c.Param("code")
	if _, err := h.roomHub.Collaborators(code); err != nil {
		apperror.Respond(c, err)
		return
	}
	userID := c.GetString("userID")
	if !h.roomHub.Touch(code, userID) {
		apperror.Respond(c, apperror.Forbidden("join the room before streaming it"))
		return
	}
	h.sseManager.Stream(c, realtime.RoomChannel(code), func() {
		h.roomHub.Touch(code, userID)
	})
}
