// Package client - устройство-сторона системы: HTTP клиент API,
// переподключающийся сокет push-канала и связка скрытого триггера с
// записью аудио.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// ErrAuthExpired возвращается на любой 401: токен истек или отозван.
// Реакция (повторный вход) - явное решение слоя UI, никаких скрытых
// редиректов внутри клиента.
var ErrAuthExpired = errors.New("authentication expired")

// SOSRecord - запись вызова в ответах API.
type SOSRecord struct {
	ID          string    `json:"id"`
	DispatchID  string    `json:"dispatch_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Status      string    `json:"status"`
	StatusLabel string    `json:"status_label"`
	StatusColor string    `json:"status_color"`
	AudioURL    *string   `json:"audio_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateSOSResult - подтверждение создания вызова.
type CreateSOSResult struct {
	DispatchID string `json:"dispatch_id"`
	Status     string `json:"status"`
}

// APIClient - HTTP клиент устройства.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateSOS создает вызов и возвращает подтверждение.
// Ответ приходит до начала рассылки оповещений на сервере.
func (c *APIClient) CreateSOS(ctx context.Context, lat, lon float64) (*CreateSOSResult, error) {
	body, err := json.Marshal(map[string]float64{
		"latitude":  lat,
		"longitude": lon,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create request: %w", err)
	}

	var result CreateSOSResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/sos", "application/json", bytes.NewReader(body), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MySOS возвращает вызовы владельца, новые первыми.
func (c *APIClient) MySOS(ctx context.Context) ([]SOSRecord, error) {
	var records []SOSRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/sos/my", "", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// UploadAudio загружает аудиоблоб, привязанный к dispatchId.
func (c *APIClient) UploadAudio(ctx context.Context, dispatchID string, audio []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "sos-audio.webm")
	if err != nil {
		return "", fmt.Errorf("failed to create multipart form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio to form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	var result struct {
		AudioURL string `json:"audio_url"`
	}
	path := "/api/v1/sos/" + dispatchID + "/audio"
	if err := c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf, &result); err != nil {
		return "", err
	}
	return result.AudioURL, nil
}

// do выполняет запрос с bearer-токеном и раскладывает JSON ответ.
func (c *APIClient) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("api error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("api error: unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
