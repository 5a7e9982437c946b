package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mymmrac/telego"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"anon-relay-bot/docs"
	"anon-relay-bot/internal/bot"
	"anon-relay-bot/internal/common/config"
	"anon-relay-bot/internal/common/logger"
	"anon-relay-bot/internal/common/middleware"
	adminHTTP "anon-relay-bot/internal/features/admin/delivery/http"
	adminService "anon-relay-bot/internal/features/admin/service"
	emojiRepo "anon-relay-bot/internal/features/emoji/repository"
	emojiMemory "anon-relay-bot/internal/features/emoji/repository/memory"
	emojiRedis "anon-relay-bot/internal/features/emoji/repository/redis"
	emojiService "anon-relay-bot/internal/features/emoji/service"
	msgRepo "anon-relay-bot/internal/features/message/repository"
	msgMemory "anon-relay-bot/internal/features/message/repository/memory"
	msgRedis "anon-relay-bot/internal/features/message/repository/redis"
	msgService "anon-relay-bot/internal/features/message/service"
	paymentSQLite "anon-relay-bot/internal/features/payment/repository/sqlite"
	paymentService "anon-relay-bot/internal/features/payment/service"
	"anon-relay-bot/internal/features/ratelimit"
	"anon-relay-bot/internal/features/relay"
	userHTTP "anon-relay-bot/internal/features/user/delivery/http"
	userRepo "anon-relay-bot/internal/features/user/repository"
	userMemory "anon-relay-bot/internal/features/user/repository/memory"
	userRedis "anon-relay-bot/internal/features/user/repository/redis"
	userService "anon-relay-bot/internal/features/user/service"
	"anon-relay-bot/internal/platform/redis"
	"anon-relay-bot/internal/platform/telegram"
	"anon-relay-bot/internal/workers"
)

// @title           Anonymous Relay Bot API
// @version         1.0
// @description     Operator and Mini App API for the anonymous channel relay bot.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name init_data
// @description Telegram Mini App init_data string for authentication

// @securityDefinitions.apikey AdminToken
// @in header
// @name Authorization
// @description Bearer token for operator scripts

// @tag.name users
// @tag.description Mini App user profile

// @tag.name admin
// @tag.description Moderation, premium and emoji administration

type stores struct {
	users    userRepo.UserRepository
	emojis   emojiRepo.ReservationRepository
	messages msgRepo.MessageRepository
	redis    *redis.Client
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	logger.Init(cfg.ServiceName, cfg.Debug)

	adminIDs, _ := cfg.AdminIDs()
	logger.Info().
		Str("storage", cfg.Storage.Driver).
		Str("channel", cfg.Telegram.ChannelID).
		Int("admins", len(adminIDs)).
		Msg("Starting anonymous relay bot")

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	if st.redis != nil {
		defer st.redis.Close()
	}

	registry := emojiService.NewRegistry(st.emojis)
	users := userService.NewUserService(st.users, registry, cfg.Relay.DefaultEmoji)
	ledger := msgService.NewLedger(st.messages)
	limiter := ratelimit.New(
		ratelimit.Window{Duration: cfg.Limits.LongWindow, Cap: cfg.Limits.LongCap},
		ratelimit.Window{Duration: cfg.Limits.BurstWindow, Cap: cfg.Limits.BurstCap},
	)
	gateway := telegram.NewChannelGateway(telegram.NewClient(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken, cfg.Telegram.Timeout))

	coordinator := relay.NewCoordinator(relay.Config{
		Destination:     cfg.Telegram.ChannelID,
		DefaultEmoji:    cfg.Relay.DefaultEmoji,
		DefaultCooldown: cfg.Relay.DefaultCooldown,
		PremiumCooldown: cfg.Relay.PremiumCooldown,
		SessionTTL:      cfg.Relay.SessionTTL,
		GatewayTimeout:  cfg.Telegram.Timeout,
		MaxTextLength:   cfg.Relay.MaxTextLength,
		RiskCost:        cfg.Relay.RiskCost,
		AdminIDs:        adminIDs,
	}, users, registry, ledger, limiter, gateway, relay.WithClassifier(relay.PatternClassifier{}))

	var (
		payments  *paymentService.Service
		paymentDB *gorm.DB
	)
	if cfg.Payments.Enabled {
		paymentDB, err = paymentSQLite.Open(cfg.Payments.DatabasePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Payments.DatabasePath).Msg("Failed to open payments database")
		}
		payments = paymentService.NewPaymentService(paymentSQLite.NewPaymentRepository(paymentDB), users, paymentService.Config{
			PriceStars:  cfg.Payments.PriceStars,
			PremiumDays: cfg.Payments.PremiumDays,
		})
		logger.Info().Int("price_stars", cfg.Payments.PriceStars).Int("days", cfg.Payments.PremiumDays).Msg("Premium purchases enabled")
	}

	var paymentCounter adminService.PaymentCounter
	if payments != nil {
		paymentCounter = payments
	}
	admin := adminService.NewAdminService(users, registry, ledger, coordinator, paymentCounter, cfg.Relay.DefaultEmoji)

	worker := workers.NewMaintenanceWorker(users, registry, limiter, coordinator, cfg.Workers.SweepInterval)
	worker.Start()
	defer worker.Stop()

	api, err := newTelegramBot(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Telegram bot")
	}
	deps := bot.Deps{
		Relay:   coordinator,
		Users:   users,
		Emojis:  registry,
		Posts:   ledger,
		Admin:   admin,
		Channel: cfg.Telegram.ChannelID,
	}
	if payments != nil {
		deps.Payments = payments
	}

	botDone := make(chan error, 1)
	go func() {
		botDone <- bot.NewBot(api, deps).Run(ctx)
	}()

	var server *http.Server
	if cfg.Server.Enabled {
		router := newRouter(cfg, adminIDs, users, registry, admin, st, paymentDB)
		server = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal().Err(err).Msg("Failed to start server")
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-botDone:
		if err != nil {
			logger.Error().Err(err).Msg("Bot exited")
		}
		stop()
	}

	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server forced to shutdown")
		}
	}
	select {
	case <-botDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("Bot did not stop in time")
	}

	logger.Info().Msg("Server exited")
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.Storage.Driver != config.StorageRedis {
		return stores{
			users:    userMemory.NewUserRepository(),
			emojis:   emojiMemory.NewReservationRepository(),
			messages: msgMemory.NewMessageRepository(),
		}, nil
	}

	client, err := redis.Open(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	if err != nil {
		return stores{}, fmt.Errorf("redis: %w", err)
	}
	logger.Info().Str("addr", cfg.RedisAddr()).Msg("Redis connection established")

	return stores{
		users:    userRedis.NewUserRepository(client),
		emojis:   emojiRedis.NewReservationRepository(client),
		messages: msgRedis.NewMessageRepository(client),
		redis:    client,
	}, nil
}

func newTelegramBot(cfg *config.Config) (*telego.Bot, error) {
	var opts []telego.BotOption
	if cfg.Telegram.APIBaseURL != "" && cfg.Telegram.APIBaseURL != telegram.DefaultBaseURL {
		opts = append(opts, telego.WithAPIServer(cfg.Telegram.APIBaseURL))
	}
	if cfg.Telegram.Debug {
		opts = append(opts, telego.WithDefaultDebugLogger())
	}
	return telego.NewBot(cfg.Telegram.BotToken, opts...)
}

func newRouter(cfg *config.Config, adminIDs []int64, users *userService.Service, registry *emojiService.Registry, admin *adminService.Service, st stores, paymentDB *gorm.DB) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Errors())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", middleware.InitDataHeader}
	router.Use(cors.New(corsConfig))

	docs.SwaggerInfo.BasePath = "/api/v1"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")

	miniApp := v1.Group("",
		middleware.TelegramInitData(cfg.Telegram.BotToken, cfg.Admin.InitDataTTL),
		middleware.AutoCreateUser(users),
	)
	userHTTP.NewUserHandler(users, registry).RegisterRoutes(miniApp)

	adminGroup := v1.Group("",
		middleware.RequireAdmin(middleware.AdminAuthConfig{
			Token:       cfg.Admin.Token,
			BotToken:    cfg.Telegram.BotToken,
			InitDataTTL: cfg.Admin.InitDataTTL,
			AdminIDs:    adminIDs,
		}),
		middleware.AutoCreateUser(users),
	)
	adminHTTP.NewAdminHandler(admin).RegisterRoutes(adminGroup)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   cfg.ServiceName,
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if st.redis != nil {
			if err := st.redis.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unready",
					"error":   "redis unavailable",
					"details": err.Error(),
				})
				return
			}
		}

		if paymentDB != nil {
			sqlDB, err := paymentDB.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unready",
					"error":   "payments database unavailable",
					"details": err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   cfg.ServiceName,
		})
	})

	return router
}
