// Команда testclient отправляет видео на локальный сервер и печатает ответ.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "адрес сервера")
	expected := flag.Int("expected", 0, "ожидаемое количество эмбрионов")
	detectOnly := flag.Bool("detect", false, "только детекция, без кинетики")
	flag.Parse()

	// Проверяем health endpoint
	fmt.Println("Проверяем health endpoint...")
	resp, err := http.Get(*baseURL + "/api/v1/health")
	if err != nil {
		fmt.Printf("Ошибка при обращении к health endpoint: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Ошибка чтения ответа: %v\n", err)
		return
	}

	fmt.Printf("Health check ответ (статус %d):\n%s\n\n", resp.StatusCode, string(body))

	if flag.NArg() == 0 {
		fmt.Println("Для тестирования анализа запустите: testclient [-expected N] [-detect] <путь_к_видео>")
		return
	}

	endpoint := "/api/v1/analyze"
	if *detectOnly {
		endpoint = "/api/v1/detect"
	}

	videoPath := flag.Arg(0)
	fmt.Printf("Отправляем видео %s на %s...\n", videoPath, endpoint)
	if err := send(*baseURL+endpoint, videoPath, *expected); err != nil {
		fmt.Printf("Ошибка при тестировании анализа: %v\n", err)
	}
}

func send(url, videoPath string, expected int) error {
	// Читаем видео файл
	videoData, err := os.ReadFile(videoPath)
	if err != nil {
		return fmt.Errorf("ошибка чтения видео файла: %w", err)
	}

	// Создаем multipart form
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	videoWriter, err := writer.CreateFormFile("video", filepath.Base(videoPath))
	if err != nil {
		return fmt.Errorf("ошибка создания form field: %w", err)
	}
	if _, err := videoWriter.Write(videoData); err != nil {
		return fmt.Errorf("ошибка записи видео: %w", err)
	}

	if expected > 0 {
		if err := writer.WriteField("expected_count", strconv.Itoa(expected)); err != nil {
			return fmt.Errorf("ошибка записи expected_count: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия multipart writer: %w", err)
	}

	// Отправляем запрос
	client := &http.Client{Timeout: 10 * time.Minute}
	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	fmt.Printf("Ответ (статус %d):\n%s\n", resp.StatusCode, string(respBody))
	return nil
}
