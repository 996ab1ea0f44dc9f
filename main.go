package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nyraAPI/handlers"
	"nyraAPI/internal/cache"
	"nyraAPI/internal/config"
	"nyraAPI/internal/db"
	"nyraAPI/internal/inference"
	"nyraAPI/internal/logging"
	"nyraAPI/internal/metrics"
	"nyraAPI/internal/notification"
	"nyraAPI/internal/workers"
	"nyraAPI/middleware"
	"nyraAPI/services"

	_ "net/http/pprof"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	clerk.SetKey(cfg.Clerk.SecretKey)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbPool, err := db.NewPool(startCtx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		logger.Fatal("database unavailable", zap.Error(err))
	}
	if err := db.EnsureSchema(startCtx, dbPool); err != nil {
		cancel()
		logger.Fatal("schema setup failed", zap.Error(err))
	}
	cancel()
	defer func() {
		logger.Info("closing database connection pool")
		dbPool.Close()
	}()
	logger.Info("connected to database")

	locker, err := cache.NewLocker(cache.Config{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal("redis unavailable", zap.Error(err))
	}
	if rl, ok := locker.(*cache.RedisLocker); ok {
		defer rl.Close()
	}

	ids, err := cache.NewIDCache(10000)
	if err != nil {
		logger.Fatal("failed to create id cache", zap.Error(err))
	}

	client, err := newInferenceClient(ctx, cfg.Inference, logger)
	if err != nil {
		logger.Fatal("failed to create inference client", zap.Error(err))
	}
	logger.Info("inference provider ready", zap.String("provider", client.Name()))

	notificationService := services.NewNotificationService(dbPool, logger)
	defer notificationService.Stop()

	fcmService, err := notification.NewFCMService(ctx, cfg.FCM.ServiceAccountJSON, cfg.FCM.CredentialsFile, logger)
	if err != nil {
		logger.Warn("could not initialize FCM, push delivery disabled", zap.Error(err))
	} else {
		notificationService.SetPushProvider(fcmService)
		logger.Info("FCM push provider initialized")
	}

	userService := services.NewUserService(dbPool, ids, cfg.Fuel.SignupGrant, logger)
	progressService := services.NewProgressService(services.NewProgressStore(dbPool), notificationService, logger)
	chatService := services.NewChatService(
		services.NewChatStore(dbPool),
		userService,
		progressService,
		client,
		locker,
		services.ChatConfig{
			HistoryWindow: cfg.Chat.HistoryWindow,
			FuelCost:      cfg.Fuel.CostPerMessage,
			LockTTL:       cfg.Chat.LockTTL,
		},
		logger,
	)
	checkInService := services.NewCheckInService(dbPool, progressService, logger)

	var checkout services.CheckoutProvider
	if cfg.PaymentsEnabled() {
		var paddleClient *paddle.SDK
		if cfg.Paddle.Sandbox {
			paddleClient, err = paddle.New(cfg.Paddle.APIKey, paddle.WithBaseURL(paddle.SandboxBaseURL))
		} else {
			paddleClient, err = paddle.New(cfg.Paddle.APIKey)
		}
		if err != nil {
			logger.Fatal("failed to create paddle client", zap.Error(err))
		}
		checkout = services.NewPaddleService(paddleClient, services.PaddleConfig{
			FullPriceID:   cfg.Paddle.FullPriceID,
			RefillPriceID: cfg.Paddle.RefillPriceID,
			ReturnURL:     cfg.Paddle.CheckoutURL,
			Sandbox:       cfg.Paddle.Sandbox,
		})
	} else {
		logger.Warn("PADDLE_API_KEY not set, fuel checkout disabled")
	}
	fuelService := services.NewFuelService(dbPool, checkout, notificationService, cfg.Fuel.FullAmount, cfg.Fuel.RefillAmount, logger)

	userHandler := handlers.NewUserHandler(userService, logger)
	achievementHandler := handlers.NewAchievementHandler(progressService, userService, logger)
	chatHandler := handlers.NewChatHandler(chatService, logger)
	checkInHandler := handlers.NewCheckInHandler(checkInService, userService, logger)
	fuelHandler := handlers.NewFuelHandler(fuelService, userService, logger)
	notificationHandler := handlers.NewNotificationHandler(notificationService, userService, logger)
	webhookHandler := handlers.NewWebhookHandler(userService, fuelService, cfg.Clerk.WebhookSecret, cfg.Stripe.WebhookSecret, logger)
	paddleHandler := handlers.NewPaddleHandler(nil, fuelService, logger)
	if cfg.Paddle.WebhookSecret != "" {
		paddleHandler = handlers.NewPaddleHandler(paddle.NewWebhookVerifier(cfg.Paddle.WebhookSecret), fuelService, logger)
	}

	middleware.InitPrometheus()
	metrics.Register()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.CleanupVisitors(ctx, time.Minute, 3*time.Minute)

	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()
	standardRouter.Use(middleware.RequestLogger(logger))
	standardRouter.Use(limiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.Metrics.User, cfg.Metrics.Pass)(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret)(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "nyra-api"}`))
	}).Methods("GET")

	standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	standardRouter.HandleFunc("/webhooks/stripe", webhookHandler.HandleStripeWebhook).Methods("POST")
	standardRouter.HandleFunc("/webhooks/paddle", paddleHandler.PaddleWebhookHandler).Methods("POST")
	standardRouter.HandleFunc("/payment-success", fuelHandler.PaymentSuccessPage).Methods("GET")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/achievements/preview", achievementHandler.PreviewAchievements).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware(middleware.ClerkVerifier, logger))

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/achievements", achievementHandler.GetAchievements).Methods("GET")
	protected.HandleFunc("/user/achievements/refresh", achievementHandler.RefreshAchievements).Methods("POST")

	protected.HandleFunc("/chat/messages", chatHandler.GetMessages).Methods("GET")
	protected.HandleFunc("/chat", chatHandler.SendMessage).Methods("POST")
	protected.HandleFunc("/chat/ws", chatHandler.ServeWS).Methods("GET")

	protected.HandleFunc("/checkin", checkInHandler.GetStatus).Methods("GET")
	protected.HandleFunc("/checkin", checkInHandler.CheckIn).Methods("POST")

	protected.HandleFunc("/fuel", fuelHandler.GetFuel).Methods("GET")
	protected.HandleFunc("/fuel/checkout", fuelHandler.CreateCheckout).Methods("POST")

	protected.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)
	recovery := gorilllaHandlers.RecoveryHandler(
		gorilllaHandlers.RecoveryLogger(zap.NewStdLog(logger.Named("recovery"))),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      recovery(corsHandler(r)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sweepDone := workers.StartAchievementSweep(ctx, cfg.Sweep.Interval, progressService, logger)

	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("error starting server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	<-sweepDone

	logger.Info("server shutdown complete")
}

func newInferenceClient(ctx context.Context, cfg config.InferenceConfig, logger *zap.Logger) (inference.Client, error) {
	if cfg.Provider == "gemini" {
		return inference.NewGeminiClient(ctx, inference.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, logger)
	}
	return inference.NewGroqClient(inference.GroqConfig{
		APIKey:      cfg.GroqAPIKey,
		BaseURL:     cfg.GroqBaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}, logger), nil
}
