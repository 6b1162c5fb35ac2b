package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"embryo-score-go/internal/model"
	"embryo-score-go/internal/repository"
	"embryo-score-go/internal/service"
	"embryo-score-go/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Analyzer выполняет анализ и детекцию по видео файлу
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error)
	Detect(videoPath string, expectedCount int) (*models.DetectResponse, error)
	CheckHealth(ctx context.Context) *models.HealthResponse
}

// AnalysisStore доступ к сохраненным анализам
type AnalysisStore interface {
	GetAnalysis(analysisID string) (*model.Analysis, error)
	ListAnalyses(page, pageSize int) (*service.ListAnalysesResponse, error)
	DeleteAnalysis(analysisID string) error
}

// AnalysisHandler обрабатывает HTTP запросы анализа видео эмбрионов
type AnalysisHandler struct {
	analyzer       Analyzer
	analyses       AnalysisStore
	maxUploadBytes int64
	logger         *logrus.Logger
}

// NewAnalysisHandler создает новый экземпляр AnalysisHandler
func NewAnalysisHandler(analyzer Analyzer, analyses AnalysisStore, maxUploadMB int, logger *logrus.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer:       analyzer,
		analyses:       analyses,
		maxUploadBytes: int64(maxUploadMB) << 20,
		logger:         logger,
	}
}

// RegisterRoutes регистрирует маршруты API
func (h *AnalysisHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/analyze", h.Analyze)
		api.POST("/detect", h.Detect)
		api.GET("/analyses", h.ListAnalyses)
		api.GET("/analyses/:id", h.GetAnalysis)
		api.DELETE("/analyses/:id", h.DeleteAnalysis)
		api.GET("/health", h.CheckHealth)
	}
}

// Analyze обрабатывает запрос на полный анализ видео
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	h.logger.Info("Получен запрос на анализ видео")

	videoPath, filename, ok := h.receiveVideo(c)
	if !ok {
		return
	}
	defer os.Remove(videoPath)

	expectedCount, err := parseExpectedCount(c.PostForm("expected_count"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var bboxes []models.BoundingBox
	if raw := c.PostForm("bboxes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &bboxes); err != nil {
			h.logger.Errorf("Ошибка парсинга bboxes: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат bboxes"})
			return
		}
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), models.AnalyzeRequest{
		VideoPath:     videoPath,
		VideoFilename: filename,
		ExpectedCount: expectedCount,
		BBoxes:        bboxes,
	})
	if err != nil {
		h.respondError(c, err, "Ошибка анализа видео")
		return
	}

	h.logger.Infof("Анализ %s завершен успешно", result.AnalysisID)
	c.JSON(http.StatusOK, result)
}

// Detect обрабатывает запрос на детекцию без кинетики
func (h *AnalysisHandler) Detect(c *gin.Context) {
	h.logger.Info("Получен запрос на детекцию эмбрионов")

	videoPath, _, ok := h.receiveVideo(c)
	if !ok {
		return
	}
	defer os.Remove(videoPath)

	expectedCount, err := parseExpectedCount(c.PostForm("expected_count"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.analyzer.Detect(videoPath, expectedCount)
	if err != nil {
		h.respondError(c, err, "Ошибка детекции")
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListAnalyses возвращает список анализов с пагинацией
func (h *AnalysisHandler) ListAnalyses(c *gin.Context) {
	h.logger.Info("Получен запрос на получение списка анализов")

	// Получаем параметры пагинации
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size < 1 || size > 100 {
		size = 10
	}

	response, err := h.analyses.ListAnalyses(page, size)
	if err != nil {
		h.logger.Errorf("Ошибка получения списка анализов: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения списка анализов"})
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetAnalysis возвращает анализ по ID
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	h.logger.Infof("Получен запрос на получение анализа с ID: %s", analysisID)

	analysis, err := h.analyses.GetAnalysis(analysisID)
	if err != nil {
		h.respondError(c, err, "Ошибка получения анализа")
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// DeleteAnalysis удаляет анализ по ID
func (h *AnalysisHandler) DeleteAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	h.logger.Infof("Получен запрос на удаление анализа с ID: %s", analysisID)

	if err := h.analyses.DeleteAnalysis(analysisID); err != nil {
		h.respondError(c, err, "Ошибка удаления анализа")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Анализ успешно удален"})
}

// CheckHealth проверяет состояние сервиса; degraded не считается отказом
func (h *AnalysisHandler) CheckHealth(c *gin.Context) {
	health := h.analyzer.CheckHealth(c.Request.Context())

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, health)
}

// receiveVideo сохраняет загруженное видео во временный файл.
// При ошибке ответ уже отправлен и возвращается false.
func (h *AnalysisHandler) receiveVideo(c *gin.Context) (string, string, bool) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	header, err := c.FormFile("video")
	if err != nil {
		h.logger.Errorf("Ошибка получения видео файла: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Видео файл обязателен"})
		return "", "", false
	}

	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".mp4" // По умолчанию
	}

	tmp, err := os.CreateTemp("", "embryo-upload-*"+ext)
	if err != nil {
		h.logger.Errorf("Ошибка создания временного файла: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения видео файла"})
		return "", "", false
	}
	tmp.Close()

	if err := c.SaveUploadedFile(header, tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		h.logger.Errorf("Ошибка сохранения видео файла: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения видео файла"})
		return "", "", false
	}

	h.logger.Infof("Получен видео файл %s (%d байт)", header.Filename, header.Size)
	return tmp.Name(), header.Filename, true
}

// respondError переводит ошибку сервиса в HTTP статус
func (h *AnalysisHandler) respondError(c *gin.Context, err error, message string) {
	h.logger.Errorf("%s: %v", message, err)

	switch {
	case errors.Is(err, service.ErrInvalidRegions):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Анализ не найден"})
	case service.IsVideoError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("Видео непригодно для анализа: %v", err)})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

// parseExpectedCount разбирает необязательное ожидаемое количество эмбрионов
func parseExpectedCount(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("expected_count должен быть неотрицательным целым числом")
	}
	return n, nil
}
