package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"embryo-score-go/internal/client"
	"embryo-score-go/internal/config"
	"embryo-score-go/internal/database"
	"embryo-score-go/internal/detect"
	"embryo-score-go/internal/handler"
	"embryo-score-go/internal/metrics"
	"embryo-score-go/internal/repository"
	"embryo-score-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Получаем конфигурацию из переменных окружения
	cfg := config.LoadConfig()

	// Инициализируем логгер
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.Info("Запуск Embryo Score API Server")

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Неверная конфигурация: %v", err)
	}

	// Инициализируем базу данных
	logger.Info("Подключение к базе данных...")
	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer database.Close(db)

	// Выполняем миграции
	if err := database.Migrate(db, logger); err != nil {
		logger.Fatalf("Ошибка выполнения миграций: %v", err)
	}

	// Создаем папку для статических файлов
	if err := os.MkdirAll(cfg.Server.StaticDir, 0755); err != nil {
		logger.Fatalf("Ошибка создания папки для статических файлов: %v", err)
	}

	// Инициализируем клиенты внешних сервисов
	embeddingClient := client.NewEmbeddingClient(
		cfg.Embedding.BaseURL,
		time.Duration(cfg.Embedding.Timeout)*time.Second,
		cfg.Embedding.Dimension,
		logger,
	)
	reviewClient := client.NewReviewClient(
		cfg.Review.BaseURL,
		time.Duration(cfg.Review.Timeout)*time.Second,
		cfg.Review.Model,
		cfg.Review.MaxRetries,
		logger,
	)
	if embeddingClient.Enabled() {
		logger.Infof("Сервис эмбеддингов: %s, размерность %d", cfg.Embedding.BaseURL, embeddingClient.Dimension())
	} else {
		logger.Warnf("Сервис эмбеддингов не настроен, будут использоваться нулевые векторы размерности %d", embeddingClient.Dimension())
	}
	if !reviewClient.Enabled() {
		logger.Warn("Сервис качественной оценки не настроен, классификация будет отложена")
	}

	// Инициализируем репозитории и сервисы
	collector := metrics.New()
	analysisRepo := repository.NewAnalysisRepository(db)
	analysisService := service.NewAnalysisService(analysisRepo, logger, cfg.Server.StaticDir)
	analyzerService := service.NewAnalyzerService(
		detect.NewDetector(logger),
		embeddingClient,
		reviewClient,
		analysisService,
		collector,
		service.OptionsFromConfig(cfg),
		logger,
	)

	// Инициализируем обработчики
	analysisHandler := handler.NewAnalysisHandler(analyzerService, analysisService, cfg.Server.MaxUploadMB, logger)

	// Настраиваем Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Добавляем middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Обслуживание статических файлов
	router.Static("/static", cfg.Server.StaticDir)

	// Регистрируем маршруты
	analysisHandler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Embryo Score API Server",
			"version": service.Version,
			"status":  "running",
		})
	})

	// Запускаем сервер
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Сервер запущен на %s", serverAddr)
	logger.Infof("API доступно по адресу: http://localhost:%d/api/v1", cfg.Server.Port)

	if err := router.Run(serverAddr); err != nil {
		logger.Fatalf("Ошибка запуска сервера: %v", err)
	}
}

// corsMiddleware добавляет заголовки CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
