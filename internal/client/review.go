package client

import (
	"context"
	"time"

	"embryo-score-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// ClassificationPending классификация, когда сервис оценки недоступен
const ClassificationPending = "Pending"

// ReviewRequest входные данные качественной оценки одного эмбриона
type ReviewRequest struct {
	CropJPEG    []byte // Самый резкий кадр
	MotionJPEG  []byte // Тепловая карта движения
	MetricsText string // Кинетические метрики в текстовом виде
}

// ReviewClient клиент сервиса качественной оценки
type ReviewClient struct {
	baseClient
	model      string
	maxRetries int
	backoff    time.Duration // Пауза перед второй попыткой, далее удваивается
}

// NewReviewClient создает клиент; пустой baseURL отключает сервис
func NewReviewClient(baseURL string, timeout time.Duration, model string, maxRetries int, logger *logrus.Logger) *ReviewClient {
	return &ReviewClient{
		baseClient: newBaseClient(baseURL, timeout, logger),
		model:      model,
		maxRetries: max(1, maxRetries),
		backoff:    time.Second,
	}
}

// Review выполняет одну попытку качественной оценки
func (c *ReviewClient) Review(ctx context.Context, req ReviewRequest) (*models.ReviewResult, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	files := []formFile{
		{field: "crop", filename: "crop.jpg", data: req.CropJPEG},
		{field: "motion", filename: "motion.jpg", data: req.MotionJPEG},
	}
	fields := map[string]string{
		"metrics": req.MetricsText,
		"model":   c.model,
	}

	var result models.ReviewResult
	if err := c.postMultipart(ctx, "/review", files, fields, &result); err != nil {
		return nil, err
	}
	if result.Classification == "" {
		result.Classification = "Unknown"
	}
	return &result, nil
}

// ReviewWithRetry повторяет оценку с экспоненциальной паузой.
// После исчерпания попыток возвращает отложенную классификацию с низкой уверенностью.
func (c *ReviewClient) ReviewWithRetry(ctx context.Context, req ReviewRequest) *models.ReviewResult {
	if !c.Enabled() {
		return pendingReview("сервис оценки не настроен")
	}

	delay := c.backoff
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		result, err := c.Review(ctx, req)
		if err == nil {
			return result
		}
		c.logger.Warnf("Оценка: попытка %d/%d не удалась: %v", attempt, c.maxRetries, err)

		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return pendingReview("оценка прервана")
		case <-time.After(delay):
		}
		delay *= 2
	}

	return pendingReview("сервис оценки недоступен, повторите позже")
}

func pendingReview(reason string) *models.ReviewResult {
	return &models.ReviewResult{
		Classification: ClassificationPending,
		Reasoning:      reason,
		Confidence:     "low",
	}
}
