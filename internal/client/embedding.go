package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"embryo-score-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// ErrNotConfigured адрес сервиса не задан
var ErrNotConfigured = errors.New("service is not configured")

// EmbeddingClient клиент сервиса визуальных эмбеддингов
type EmbeddingClient struct {
	baseClient
	dimension int
}

// NewEmbeddingClient создает клиент; пустой baseURL отключает сервис
func NewEmbeddingClient(baseURL string, timeout time.Duration, dimension int, logger *logrus.Logger) *EmbeddingClient {
	return &EmbeddingClient{
		baseClient: newBaseClient(baseURL, timeout, logger),
		dimension:  dimension,
	}
}

// Dimension длина вектора эмбеддинга
func (c *EmbeddingClient) Dimension() int { return c.dimension }

// Embed отправляет кадрированное изображение и возвращает вектор фиксированной длины
func (c *EmbeddingClient) Embed(ctx context.Context, cropJPEG []byte) ([]float32, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	var resp models.EmbeddingResponse
	files := []formFile{{field: "image", filename: "crop.jpg", data: cropJPEG}}
	if err := c.postMultipart(ctx, "/embed", files, nil, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embedding) != c.dimension {
		return nil, fmt.Errorf("неверная длина эмбеддинга: %d, ожидалось %d", len(resp.Embedding), c.dimension)
	}
	return resp.Embedding, nil
}

// EmbedOrZero возвращает эмбеддинг или нулевой вектор, если сервис недоступен
func (c *EmbeddingClient) EmbedOrZero(ctx context.Context, cropJPEG []byte) []float32 {
	embedding, err := c.Embed(ctx, cropJPEG)
	if err != nil {
		c.logger.Warnf("Эмбеддинг недоступен, используется нулевой вектор: %v", err)
		return make([]float32, c.Dimension())
	}
	return embedding
}

// CheckHealth проверяет состояние сервиса эмбеддингов
func (c *EmbeddingClient) CheckHealth(ctx context.Context) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	var health map[string]any
	return c.getJSON(ctx, "/health", &health)
}
