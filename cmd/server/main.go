// Package main runs the BeBusy HTTP server with WebSocket sync and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bebusy/backend/config"
	"github.com/bebusy/backend/internal/auth"
	"github.com/bebusy/backend/internal/checkins"
	"github.com/bebusy/backend/internal/focusgroups"
	"github.com/bebusy/backend/internal/groups"
	"github.com/bebusy/backend/internal/inbox"
	"github.com/bebusy/backend/internal/middleware"
	"github.com/bebusy/backend/internal/models"
	"github.com/bebusy/backend/internal/profiles"
	"github.com/bebusy/backend/internal/realtime"
	"github.com/bebusy/backend/internal/scheduler"
	"github.com/bebusy/backend/internal/worker"
	"github.com/bebusy/backend/pkg/database"
	"github.com/bebusy/backend/pkg/queue"
	"github.com/bebusy/backend/pkg/redis"
	"github.com/bebusy/backend/pkg/response"
	"github.com/bebusy/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Avatars are optional; a nil interface disables the upload endpoint.
	var avatars profiles.AvatarStorage
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AvatarsBucket:        cfg.AWS.AvatarsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			avatars = s3Client
		}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	bus := realtime.NewBus(logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Profiles, roles and moderation
	profileRepo := profiles.NewRepository(pool)
	resolver := profiles.NewResolver(profileRepo, logger)
	moderator := profiles.NewModerator(profileRepo, logger)
	profileHandler := profiles.NewHandler(profileRepo, moderator, avatars, logger)

	// Group chats and the binding outbox
	groupRepo := groups.NewRepository(pool)
	binder := groups.NewBinder(groupRepo, jobQueue, logger)
	bindingProcessor := worker.NewChatBindingProcessor(groupRepo, jobQueue, logger)

	// Focus groups
	focusRepo := focusgroups.NewRepository(pool)
	focusService := focusgroups.NewService(focusRepo, resolver, binder, bus, logger)
	focusHandler := focusgroups.NewHandler(focusService, logger)

	// Realtime: Postgres NOTIFY -> Redis pub/sub -> per-user sessions
	inboxRepo := inbox.NewRepository(pool)
	var (
		feed realtime.Feed
		sink realtime.Publisher
	)
	if cfg.Realtime.Feed == "memory" {
		mem := realtime.NewMemoryFeed()
		feed, sink = mem, mem
	} else {
		rf := realtime.NewRedisFeed(rdb.Client, logger)
		defer rf.Close()
		feed, sink = rf, rf
	}
	listener := realtime.NewPGListener(pool, sink, logger)
	hub := realtime.NewHub(realtime.SessionDeps{
		Feed:      feed,
		Resolver:  resolver,
		Snapshots: inboxRepo,
		Bus:       bus,
		Logger:    logger,
	}, realtime.SessionConfig{
		RolePollInterval: cfg.Realtime.RolePollInterval,
		Location:         cfg.Realtime.CheckInLocation,
	}, inboxRepo, logger)
	hub.Forward(bgCtx, bus, realtime.TopicCheckInToday, realtime.CheckInRoute)
	hub.Forward(bgCtx, bus, focusgroups.EventTopic, func(p any) (uuid.UUID, bool) {
		ev, ok := p.(focusgroups.MembershipEvent)
		return ev.UserID, ok
	})

	// Inbox and check-ins
	inboxHandler := inbox.NewHandler(inboxRepo, hub, cfg.Realtime.CheckInLocation, logger)
	checkinService := checkins.NewService(checkins.NewRepository(pool), cfg.Realtime.CheckInLocation, logger)
	checkinHandler := checkins.NewHandler(checkinService, logger)

	// Periodic sweeps
	sched, err := scheduler.New(cfg.Scheduler, profileRepo, groupRepo, logger)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT and a live, unbanned profile required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService), middleware.RequireProfile(resolver, logger))
	{
		// Profile
		api.GET("/me", profileHandler.Me)
		api.GET("/me/role", profileHandler.Role)
		api.GET("/me/avatar-url", profileHandler.AvatarURL)
		api.POST("/me/avatar/upload-url", profileHandler.AvatarUploadURL)

		// Moderation (admin only)
		admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		admin.POST("/users/:id/ban", profileHandler.Ban)
		admin.DELETE("/users/:id/ban", profileHandler.Unban)

		// Focus groups
		api.GET("/focus-groups/:id", focusHandler.Get)
		api.GET("/focus-groups/:id/members", focusHandler.ListMembers)
		api.POST("/focus-groups/:id/apply", focusHandler.Apply)
		api.DELETE("/focus-groups/:id/membership", focusHandler.Leave)
		api.GET("/focus-groups/:id/membership", focusHandler.MyMembership)

		// Inbox
		api.GET("/inbox/counters", inboxHandler.Counters)
		api.GET("/messages", inboxHandler.ListMessages)
		api.GET("/notifications", inboxHandler.ListNotifications)
		api.POST("/messages/:id/read", inboxHandler.MarkMessageRead)
		api.POST("/notifications/:id/read", inboxHandler.MarkNotificationRead)
		api.POST("/notifications/read-all", inboxHandler.MarkAllNotificationsRead)

		// Check-ins
		api.POST("/checkins", checkinHandler.CheckIn)
		api.GET("/checkins/streak", checkinHandler.Streak)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, resolver, jwtService.UserIDFromToken, cfg.Server.AllowedOrigins(), logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background: change listener, chat-binding outbox, cron
	go listener.Run(bgCtx)
	go bindingProcessor.Run(bgCtx)
	sched.Start()

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()
	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	hub.Close()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
