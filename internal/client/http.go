// Package client содержит HTTP клиенты внешних сервисов анализа.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// formFile файл multipart формы
type formFile struct {
	field    string
	filename string
	data     []byte
}

// baseClient общий транспорт клиентов
type baseClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func newBaseClient(baseURL string, timeout time.Duration, logger *logrus.Logger) baseClient {
	return baseClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Enabled сообщает, настроен ли адрес сервиса
func (c *baseClient) Enabled() bool {
	return c.baseURL != ""
}

// postMultipart отправляет multipart форму и разбирает JSON ответ в out
func (c *baseClient) postMultipart(ctx context.Context, path string, files []formFile, fields map[string]string, out any) error {
	// Создаем multipart form-data
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		if err != nil {
			return fmt.Errorf("ошибка создания form field %s: %w", f.field, err)
		}
		if _, err := part.Write(f.data); err != nil {
			return fmt.Errorf("ошибка записи данных %s: %w", f.field, err)
		}
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("ошибка записи %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия multipart writer: %w", err)
	}

	// Создаем HTTP запрос
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debugf("Отправка POST запроса на %s", url)
	return c.do(req, out)
}

// getJSON выполняет GET запрос и разбирает JSON ответ в out
func (c *baseClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}
	return c.do(req, out)
}

func (c *baseClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки HTTP запроса: %w", err)
	}
	defer resp.Body.Close()

	// Читаем ответ
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервис вернул ошибку: статус %d, тело: %s", resp.StatusCode, string(respBody))
	}

	// Парсим JSON ответ
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("ошибка парсинга JSON ответа: %w", err)
	}
	return nil
}
