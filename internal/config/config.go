package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config структура конфигурации приложения
type Config struct {
	Server struct {
		Port        int
		Host        string
		Environment string
		StaticDir   string // Каталог артефактов анализа
		MaxUploadMB int
	}
	Database struct {
		Host     string
		Port     string
		Name     string
		User     string
		Password string
		SSLMode  string
	}
	Analysis struct {
		KineticFPS       float64 // Частота выборки кадров для кинетики
		MaxFrameHeight   int     // Кадры выше уменьшаются до этой высоты
		MaxSampledFrames int     // Максимум кадров на анализ
		OutputSize       int     // Размер кадрированных изображений
		CropPadding      float64 // Отступ вокруг области при обрезке
		ParallelRegions  bool    // Обновлять области параллельно
	}
	Embedding struct {
		BaseURL   string // Пусто - сервис не настроен
		Timeout   int    // в секундах
		Dimension int
	}
	Review struct {
		BaseURL    string // Пусто - сервис не настроен
		Timeout    int    // в секундах
		Model      string
		MaxRetries int
	}
	Logging struct {
		Level string
	}
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() *Config {
	cfg := &Config{}

	// Конфигурация сервера
	cfg.Server.Port = getEnvInt("SERVER_PORT", 8080)
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.Server.Environment = getEnv("ENVIRONMENT", "development")
	cfg.Server.StaticDir = getEnv("STATIC_DIR", "./static")
	cfg.Server.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", 500)

	// Конфигурация базы данных
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnv("DB_PORT", "5432")
	cfg.Database.Name = getEnv("DB_NAME", "embryo_score")
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres123")
	cfg.Database.SSLMode = getEnv("DB_SSL_MODE", "disable")

	// Параметры анализа
	cfg.Analysis.KineticFPS = getEnvFloat("KINETIC_FPS", 8)
	cfg.Analysis.MaxFrameHeight = getEnvInt("MAX_FRAME_HEIGHT", 720)
	cfg.Analysis.MaxSampledFrames = getEnvInt("MAX_SAMPLED_FRAMES", 120)
	cfg.Analysis.OutputSize = getEnvInt("OUTPUT_SIZE", 400)
	cfg.Analysis.CropPadding = getEnvFloat("CROP_PADDING", 0.20)
	cfg.Analysis.ParallelRegions = getEnvBool("PARALLEL_REGIONS", true)

	// Сервис эмбеддингов
	cfg.Embedding.BaseURL = getEnv("EMBEDDING_API_BASE_URL", "")
	cfg.Embedding.Timeout = getEnvInt("EMBEDDING_API_TIMEOUT_SECONDS", 60)
	cfg.Embedding.Dimension = getEnvInt("EMBEDDING_DIMENSION", 384)

	// Сервис качественной оценки
	cfg.Review.BaseURL = getEnv("REVIEW_API_BASE_URL", "")
	cfg.Review.Timeout = getEnvInt("REVIEW_API_TIMEOUT_SECONDS", 120)
	cfg.Review.Model = getEnv("REVIEW_MODEL", "gemini-2.5-flash")
	cfg.Review.MaxRetries = getEnvInt("REVIEW_MAX_RETRIES", 3)

	// Конфигурация логирования
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	return cfg
}

// Validate проверяет значения, без которых анализ невозможен
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Analysis.KineticFPS <= 0 {
		return fmt.Errorf("kinetic fps must be positive, got %v", c.Analysis.KineticFPS)
	}
	if c.Analysis.MaxFrameHeight <= 0 {
		return fmt.Errorf("max frame height must be positive, got %d", c.Analysis.MaxFrameHeight)
	}
	if c.Analysis.MaxSampledFrames < 2 {
		return fmt.Errorf("max sampled frames must be at least 2, got %d", c.Analysis.MaxSampledFrames)
	}
	if c.Analysis.OutputSize <= 0 {
		return fmt.Errorf("output size must be positive, got %d", c.Analysis.OutputSize)
	}
	if c.Analysis.CropPadding < 0 {
		return fmt.Errorf("crop padding must not be negative, got %v", c.Analysis.CropPadding)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Review.MaxRetries < 1 {
		return fmt.Errorf("review retries must be at least 1, got %d", c.Review.MaxRetries)
	}
	return nil
}

// DSN строка подключения к PostgreSQL
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.Name, c.Database.SSLMode,
	)
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает int значение переменной окружения или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat получает float значение переменной окружения или возвращает значение по умолчанию
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool получает bool значение переменной окружения или возвращает значение по умолчанию
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
