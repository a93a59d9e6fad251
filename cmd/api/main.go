package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/yourusername/spinwheel-api/internal/config"
	"github.com/yourusername/spinwheel-api/internal/handler"
	"github.com/yourusername/spinwheel-api/internal/middleware"
	pgRepo "github.com/yourusername/spinwheel-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/spinwheel-api/internal/repository/redis"
	"github.com/yourusername/spinwheel-api/internal/service"
	"github.com/yourusername/spinwheel-api/internal/service/roundmanager"
	ws "github.com/yourusername/spinwheel-api/internal/websocket"
	"github.com/yourusername/spinwheel-api/pkg/auth"
	"github.com/yourusername/spinwheel-api/pkg/database"
)

func main() {
	// .env удобен для локальной разработки; в проде переменные задает окружение
	if err := godotenv.Load(); err == nil {
		log.Println("Загружены переменные окружения из .env")
	}

	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis с использованием унифицированной конфигурации.
	// Redis не обязателен: без него процесс работает в одиночном режиме —
	// без advisory-блокировок планировщика и без кластеризации WebSocket.
	var cacheRepo *redisRepo.CacheRepo
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Redis недоступен (%v), продолжаем в одиночном режиме", err)
	} else {
		log.Println("Successfully connected to Redis")
		cacheRepo, err = redisRepo.NewCacheRepo(redisClient)
		if err != nil {
			log.Printf("Failed to initialize CacheRepo: %v", err)
			os.Exit(1)
		}
	}

	// Инициализируем репозитории
	userRepo := pgRepo.NewUserRepo(db)
	roundRepo := pgRepo.NewRoundRepo(db)
	txRepo := pgRepo.NewTransactionRepo(db)

	// JWT: токены доступа и короткоживущие тикеты для WebSocket
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs, cfg.JWT.WSTicketExpirySec)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Контекст жизненного цикла фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Инициализация WebSocket ---
	hub := ws.NewHub()
	go hub.Run()

	wsManager := ws.NewManager(hub)
	if cacheRepo != nil {
		// Кластерный учет подписчиков комнат раундов
		wsManager.SetCacheRepo(cacheRepo)
	}

	var clusterRelay *ws.ClusterRelay
	if cfg.WebSocket.Cluster.Enabled {
		log.Println("Инициализация Redis PubSub для кластеризации WebSocket...")
		if redisClient == nil {
			log.Println("Redis недоступен, кластеризация WS будет неактивна")
		} else {
			provider, errProv := ws.NewRedisPubSub(redisClient)
			if errProv != nil {
				log.Printf("Ошибка при создании Redis PubSub провайдера: %v. Кластеризация WS будет неактивна.", errProv)
			} else {
				clusterRelay = ws.NewClusterRelay(hub, cfg.WebSocket.Cluster, provider)
				if err := clusterRelay.Start(ctx); err != nil {
					log.Printf("Ошибка запуска кластерной ретрансляции: %v. Кластеризация WS будет неактивна.", err)
					clusterRelay = nil
				} else {
					wsManager.SetClusterRelay(clusterRelay)
					log.Println("Redis PubSub провайдер успешно инициализирован")
				}
			}
		}
	}
	// --- Конец инициализации WebSocket ---

	// Уведомления победителю: Resend, если задан API-ключ, иначе заглушка
	var mailer service.WinnerNotifier
	if cfg.Email.ResendAPIKey != "" {
		resendMailer, errMail := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if errMail != nil {
			log.Printf("Failed to initialize ResendEmailService: %v", errMail)
			os.Exit(1)
		}
		mailer = resendMailer
		log.Println("Email-уведомления: Resend")
	} else {
		mailer = &service.NoopEmailService{}
		log.Println("Email-уведомления отключены (RESEND_API_KEY не задан)")
	}

	// Инициализируем сервисы
	ledgerService := service.NewLedgerService(userRepo, txRepo)
	roundService := service.NewRoundService(db, roundRepo, userRepo, ledgerService, wsManager, mailer, &cfg.Game)
	authService := service.NewAuthService(userRepo, jwtService, cfg.Game.InitialBalance)
	userService := service.NewUserService(userRepo, txRepo)

	// Планировщик раундов: автостарт по дедлайну, таймеры выбывания,
	// восстановление после рестарта
	schedConfig := roundmanager.DefaultConfig()
	schedConfig.CountdownSeconds = cfg.Game.CountdownSeconds
	schedConfig.InstanceID = cfg.WebSocket.Cluster.InstanceID
	if schedConfig.InstanceID == "" && clusterRelay != nil {
		schedConfig.InstanceID = clusterRelay.InstanceID()
	}
	schedDeps := &roundmanager.Dependencies{
		RoundRepo: roundRepo,
		Engine:    roundService,
		Publisher: wsManager,
	}
	if cacheRepo != nil {
		schedDeps.CacheRepo = cacheRepo
	}
	scheduler := roundmanager.NewScheduler(schedConfig, schedDeps)
	if err := scheduler.Start(ctx); err != nil {
		log.Printf("Failed to start round scheduler: %v", err)
		os.Exit(1)
	}

	// Инициализируем обработчики
	authHandler := handler.NewAuthHandler(authService)
	roundHandler := handler.NewRoundHandler(roundService, userService, scheduler)
	userHandler := handler.NewUserHandler(userService)
	wsHandler := handler.NewWSHandler(wsManager, authService, jwtService, cfg.WebSocket.AllowedOrigins, cfg.WebSocket.ClientSendBuffer)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	// Инициализируем роутер Gin
	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		// Production: не доверять прокси-заголовкам
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		// Development: доверяем localhost
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	corsOrigins := cfg.WebSocket.AllowedOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Аутентификация
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Пользователи
		users := api.Group("/users")
		users.Use(authMiddleware.RequireAuth())
		{
			users.GET("/me", userHandler.GetMe)
			users.GET("/me/balance", userHandler.GetBalance)
			users.GET("/me/transactions", userHandler.ListTransactions)

			// Управление аккаунтами (только админ)
			adminUsers := users.Group("/:id")
			adminUsers.Use(authMiddleware.AdminOnly(), middleware.ExtractUintParam("id", "userID"))
			{
				adminUsers.PUT("/active", userHandler.SetActive)
			}
		}

		// Лидерборд (публичный маршрут)
		api.GET("/leaderboard", userHandler.GetLeaderboard)

		// Раунды
		rounds := api.Group("/rounds")
		{
			rounds.GET("/active", roundHandler.GetActiveRound)
			rounds.GET("/history", roundHandler.ListHistory)

			// Маршруты для аутентифицированных пользователей
			authedRounds := rounds.Group("")
			authedRounds.Use(authMiddleware.RequireAuth())
			{
				authedRounds.GET("/my", roundHandler.ListMyRounds)
			}

			// Группа маршрутов, требующих roundID
			roundWithID := rounds.Group("/:id")
			roundWithID.Use(middleware.ExtractUintParam("id", "roundID"))
			{
				roundWithID.GET("", roundHandler.GetRound)

				authedRound := roundWithID.Group("")
				authedRound.Use(authMiddleware.RequireAuth())
				{
					authedRound.GET("/can-join", roundHandler.CanJoin)
					authedRound.POST("/join", roundHandler.JoinRound)
				}

				adminRound := roundWithID.Group("")
				adminRound.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
				{
					adminRound.POST("/start", roundHandler.StartRound)
					adminRound.POST("/abort", roundHandler.AbortRound)
					adminRound.GET("/export", roundHandler.ExportRoundLedger)
				}
			}

			// Маршрут создания раунда (не требует ID)
			adminCreateRound := rounds.Group("")
			adminCreateRound.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
			{
				adminCreateRound.POST("", roundHandler.CreateRound)
			}
		}

		// Тикет для WebSocket-подключения
		api.GET("/ws/ticket", authMiddleware.RequireAuth(), wsHandler.GetWSTicket)
		api.GET("/ws/metrics", authMiddleware.RequireAuth(), authMiddleware.AdminOnly(), wsHandler.GetMetrics)
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// После получения сигнала SIGINT или SIGTERM вызываем cancel() для завершения горутин
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем планировщик и фоновые горутины
	scheduler.Stop()
	cancel()

	if clusterRelay != nil {
		clusterRelay.Stop()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
