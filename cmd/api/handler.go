package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	authDelivery "codentor-backend/internal/auth/delivery"
	authRepo "codentor-backend/internal/auth/repository"
	authUsecase "codentor-backend/internal/auth/usecase"
	calendarDelivery "codentor-backend/internal/calendar/delivery"
	calendarRepo "codentor-backend/internal/calendar/repository"
	calendarUsecase "codentor-backend/internal/calendar/usecase"
	coachDelivery "codentor-backend/internal/coach/delivery"
	coachUsecase "codentor-backend/internal/coach/usecase"
	noteDelivery "codentor-backend/internal/note/delivery"
	noteRepo "codentor-backend/internal/note/repository"
	noteUsecase "codentor-backend/internal/note/usecase"
	notificationDelivery "codentor-backend/internal/notification/delivery"
	notificationRepo "codentor-backend/internal/notification/repository"
	notificationUsecase "codentor-backend/internal/notification/usecase"
	roomDelivery "codentor-backend/internal/room/delivery"
	roomUsecase "codentor-backend/internal/room/usecase"
	taskDelivery "codentor-backend/internal/task/delivery"
	taskRepo "codentor-backend/internal/task/repository"
	"codentor-backend/internal/task/scheduler"
	taskUsecase "codentor-backend/internal/task/usecase"
	voiceDelivery "codentor-backend/internal/voice/delivery"
	voiceUsecase "codentor-backend/internal/voice/usecase"
	"codentor-backend/pkg/ai"
	"codentor-backend/pkg/chroma"
	"codentor-backend/pkg/config"
	"codentor-backend/pkg/crypto"
	"codentor-backend/pkg/fcm"
	"codentor-backend/pkg/logger"
	"codentor-backend/pkg/mailer"
	"codentor-backend/pkg/realtime"
	"codentor-backend/pkg/sse"
	"codentor-backend/pkg/telegram"
	"codentor-backend/pkg/webpush"
	"codentor-backend/pkg/youtube"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler owns every HTTP handler and the background workers they share.
type Handler struct {
	config      *config.Config
	authUsecase authUsecase.AuthUsecase
	sseManager  *sse.Manager
	pubsub      *realtime.PubSubPublisher
	settings    *SettingsHandler
	roomHub     *roomUsecase.Hub
	push        *notificationUsecase.PushService

	// Scanner is exposed for the scan-reminders command.
	Scanner   *scheduler.Scanner
	scheduler *scheduler.ReminderScheduler

	authHandler         *authDelivery.AuthHandler
	taskHandler         *taskDelivery.TaskHandler
	calendarHandler     *calendarDelivery.CalendarHandler
	notificationHandler *notificationDelivery.NotificationHandler
	noteHandler         *noteDelivery.NoteHandler
	voiceHandler        *voiceDelivery.VoiceHandler
	coachHandler        *coachDelivery.CoachHandler
	roomHandler         *roomDelivery.RoomHandler
}

// NewHandler wires repositories, usecases and optional providers. Providers
// without configuration are left out and their features degrade.
func NewHandler(ctx context.Context, cfg *config.Config, db *gorm.DB) (*Handler, error) {
	log := logger.WithComponent("Bootstrap")

	// Repositories
	userRepository := authRepo.NewUserRepository(db)
	fcmTokenRepository := authRepo.NewFCMTokenRepository(db)
	pushSubRepository := authRepo.NewPushSubscriptionRepository(db)
	taskRepository := taskRepo.NewGormTaskRepository(db)
	notificationRepository := notificationRepo.NewGormNotificationRepository(db)
	noteRepository := noteRepo.NewGormNoteRepository(db)

	var sealer *crypto.Sealer
	if cfg.TokenEncryptionKey != "" {
		s, err := crypto.NewSealer(cfg.TokenEncryptionKey)
		if err != nil {
			return nil, err
		}
		sealer = s
	} else {
		log.Warn("[Bootstrap] TOKEN_ENCRYPTION_KEY not set, Google tokens are stored unencrypted")
	}
	tokenRepository := calendarRepo.NewGormTokenRepository(db, sealer)

	// Realtime: Pusher for browsers, SSE for /api/events. With Pub/Sub
	// configured, SSE is fed from the topic so every instance sees every event.
	sseManager := sse.NewManager()
	publishers := realtime.Multi{}
	if cfg.PusherAppID != "" && cfg.PusherKey != "" && cfg.PusherSecret != "" {
		publishers = append(publishers, realtime.NewPusherPublisher(cfg.PusherAppID, cfg.PusherKey, cfg.PusherSecret, cfg.PusherCluster))
		log.Info("[Bootstrap] Pusher realtime enabled")
	}
	var pubsub *realtime.PubSubPublisher
	if cfg.GoogleProjectID != "" && cfg.NotificationPubSubTopic != "" {
		p, err := realtime.NewPubSubPublisher(ctx, cfg.GoogleProjectID, cfg.NotificationPubSubTopic, cfg.FirebaseCredentials)
		if err != nil {
			log.WithError(err).Warn("[Bootstrap] Pub/Sub unavailable, delivering SSE in-process")
			publishers = append(publishers, sseManager)
		} else {
			pubsub = p
			publishers = append(publishers, p)
			log.Info("[Bootstrap] Pub/Sub realtime mirror enabled")
		}
	} else {
		publishers = append(publishers, sseManager)
	}

	// Push senders
	var webPushSender notificationUsecase.WebPushSender
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		webPushSender = webpush.NewSender(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	}
	var fcmSender notificationUsecase.FCMSender
	if cfg.FirebaseCredentials != "" {
		client, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.WithError(err).Warn("[Bootstrap] FCM disabled")
		} else {
			fcmSender = client
		}
	}

	// Usecases
	authUc := authUsecase.NewAuthUsecase(userRepository, cfg)
	notifications := notificationUsecase.NewService(notificationRepository, publishers)
	pushService := notificationUsecase.NewPushService(pushSubRepository, fcmTokenRepository, webPushSender, fcmSender)

	calendarService := calendarUsecase.NewService(calendarUsecase.Options{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		StateSecret:  cfg.JWTSecret,
	}, tokenRepository)
	var calendarGateway taskUsecase.CalendarGateway
	if calendarService.Configured() {
		calendarGateway = calendarService
	} else {
		log.Warn("[Bootstrap] Google OAuth client not configured, calendar sync disabled")
	}

	taskUc := taskUsecase.NewTaskUsecase(taskRepository, calendarGateway)
	syncUc := taskUsecase.NewSyncUsecase(taskRepository, calendarGateway, taskUsecase.SyncOptions{
		Window:       cfg.SyncWindow,
		DedupEnabled: cfg.SyncDedupEnabled,
		Threshold:    cfg.SyncDedupThreshold,
		Tolerance:    cfg.SyncDedupTolerance,
	})

	scanDeps := scheduler.Deps{
		Tasks:         taskRepository,
		Users:         userRepository,
		Notifications: notifications,
		Push:          pushService,
		Mail:          mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom),
		BaseURL:       cfg.BaseURL,
	}
	if cfg.TelegramBotToken != "" {
		bot, err := telegram.NewNotifier(cfg.TelegramBotToken)
		if err != nil {
			log.WithError(err).Warn("[Bootstrap] Telegram disabled")
		} else {
			scanDeps.Telegram = bot
		}
	}
	scanner := scheduler.NewScanner(scanDeps)

	var noteIndex noteUsecase.VectorIndex
	if cfg.ChromaAPIKey != "" {
		chromaClient, err := chroma.NewChromaClient(ctx, cfg)
		if err != nil {
			log.WithError(err).Warn("[Bootstrap] Chroma unavailable, note search falls back to text matching")
		} else {
			noteIndex = chromaClient
			log.Info("[Bootstrap] Chroma semantic note search enabled")
		}
	}
	noteUc := noteUsecase.NewNoteUsecase(noteRepository, noteIndex)

	settings := NewSettingsHandler(cfg.OllamaBaseURL, cfg.OllamaModel)
	chat, err := ai.NewChatService(ctx, ai.Config{
		Provider:         ai.ProviderType(cfg.AIProvider),
		GroqKeys:         cfg.GroqAPIKeys,
		GroqModel:        cfg.GroqModel,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GeminiModel:      cfg.GeminiModel,
		GetOllamaBaseURL: settings.OllamaBaseURL,
		GetOllamaModel:   settings.OllamaModel,
	})
	if err != nil {
		log.WithError(err).Warn("[Bootstrap] AI provider misconfigured, coach will answer with canned replies")
		chat = ai.NewFallbackService()
	} else {
		log.Infof("[Bootstrap] AI chat providers: %s", chat.Name())
	}
	coach := coachUsecase.NewCoach(chat, taskUc, noteUc, youtube.NewSearcher(cfg.YouTubeAPIKeys))
	hub := roomUsecase.NewHub(publishers)

	h := &Handler{
		config:      cfg,
		authUsecase: authUc,
		sseManager:  sseManager,
		pubsub:      pubsub,
		settings:    settings,
		roomHub:     hub,
		push:        pushService,
		Scanner:     scanner,

		authHandler:         authDelivery.NewAuthHandler(authUc),
		taskHandler:         taskDelivery.NewTaskHandler(taskUc, syncUc, scanner, cfg.CronSecret),
		calendarHandler:     calendarDelivery.NewCalendarHandler(calendarService, cfg.BaseURL),
		notificationHandler: notificationDelivery.NewNotificationHandler(notifications, pushService, sseManager),
		noteHandler:         noteDelivery.NewNoteHandler(noteUc),
		voiceHandler:        voiceDelivery.NewVoiceHandler(voiceUsecase.NewAgent(taskUc)),
		coachHandler:        coachDelivery.NewCoachHandler(coach),
		roomHandler:         roomDelivery.NewRoomHandler(hub, authUc),
	}
	if cfg.ReminderSchedulerEnabled {
		h.scheduler = scheduler.NewReminderScheduler(scanner, cfg.ReminderScanInterval)
	}
	return h, nil
}

// Start serves HTTP until ctx is cancelled, then drains in-flight requests.
func (h *Handler) Start(ctx context.Context, addr string) error {
	log := logger.WithComponent("Server")
	gin.SetMode(h.config.GinMode)

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h)

	if h.pubsub != nil {
		hostname, _ := os.Hostname()
		subName := h.config.NotificationPubSubTopic + "-sse-" + hostname
		go func() {
			if err := h.pubsub.Relay(ctx, subName, h.sseManager); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("[Server] Pub/Sub relay stopped")
			}
		}()
	}

	if h.scheduler != nil {
		if err := h.scheduler.Start(); err != nil {
			return err
		}
		defer h.scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("[Server] Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases provider clients.
func (h *Handler) Close() {
	if h.pubsub != nil {
		if err := h.pubsub.Close(); err != nil {
			logger.WithComponent("Server").WithError(err).Warn("[Server] Failed to close Pub/Sub client")
		}
	}
}
