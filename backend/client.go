// Package backend is the HTTP client for the chat backend.
//
// The backend exposes:
//
//	GET    {base}/health
//	POST   {base}/chat                  {"message": "...", "user_id": "..."} -> {"response": "..."}
//	GET    {base}/chat/history/{user}   -> {"history": [{"role": "...", "content": "..."}]}
//	DELETE {base}/chat/history/{user}
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/linanwx/nagowidget/logger"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8000"
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 1 << 20
)

// Config holds client options. Zero values take defaults.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HealthInfo is the parsed health response. Fields are empty when the
// backend returns no JSON body.
type HealthInfo struct {
	Status  string        `json:"status,omitempty" yaml:"status,omitempty"`
	Message string        `json:"message,omitempty" yaml:"message,omitempty"`
	Version string        `json:"version,omitempty" yaml:"version,omitempty"`
	Latency time.Duration `json:"latency" yaml:"latency"`
}

// HistoryEntry is one server-side history record.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to one backend base URL. It is safe for concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a client, filling defaults for zero config values.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: base, timeout: timeout, httpClient: hc}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Health probes the health endpoint. Any 2xx is healthy unless the body
// carries a status other than "healthy" or "ok".
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	start := time.Now()
	body, err := c.do(ctx, http.MethodGet, "/health", "", "health check")
	if err != nil {
		return nil, err
	}

	info := &HealthInfo{Latency: time.Since(start)}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		info.Status = parsed.Get("status").String()
		info.Message = parsed.Get("message").String()
		info.Version = parsed.Get("version").String()
	}

	switch strings.ToLower(info.Status) {
	case "", "healthy", "ok":
		return info, nil
	default:
		return info, &ClientError{
			Type:    ErrTypeUnhealthy,
			Message: fmt.Sprintf("backend reports status %q", info.Status),
		}
	}
}

// Chat sends one message and returns the reply text.
func (c *Client) Chat(ctx context.Context, userID, text string) (string, error) {
	payload, err := sjson.Set("", "message", text)
	if err == nil {
		payload, err = sjson.Set(payload, "user_id", userID)
	}
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/chat", payload, "chat request")
	if err != nil {
		return "", err
	}

	if !gjson.ValidBytes(body) {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "chat response is not JSON"}
	}
	reply := gjson.GetBytes(body, "response")
	if !reply.Exists() || reply.Type != gjson.String {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "chat response lacks a response string"}
	}
	if reply.Str == "" {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "chat response is empty"}
	}
	return reply.Str, nil
}

// History returns the server-side conversation history for userID.
func (c *Client) History(ctx context.Context, userID string) ([]HistoryEntry, error) {
	body, err := c.do(ctx, http.MethodGet, historyPath(userID), "", "history request")
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "history response is not JSON"}
	}

	history := gjson.GetBytes(body, "history")
	if history.Exists() && !history.IsArray() {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "history is not an array"}
	}

	entries := make([]HistoryEntry, 0, len(history.Array()))
	history.ForEach(func(_, item gjson.Result) bool {
		entries = append(entries, HistoryEntry{
			Role:    item.Get("role").String(),
			Content: item.Get("content").String(),
		})
		return true
	})
	return entries, nil
}

// ClearHistory deletes the server-side history for userID and returns the
// backend's confirmation message.
func (c *Client) ClearHistory(ctx context.Context, userID string) (string, error) {
	body, err := c.do(ctx, http.MethodDelete, historyPath(userID), "", "clear history request")
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "message").String(), nil
}

func historyPath(userID string) string {
	return "/chat/history/" + url.PathEscape(userID)
}

// do issues one request bounded by the client timeout and returns the body of
// a 2xx response.
func (c *Client) do(ctx context.Context, method, path, payload, op string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != "" {
		reader = strings.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if payload != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("backend request failed", "method", method, "path", path, "err", err)
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug("backend returned error status", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &ClientError{
			Type:       ErrTypeStatus,
			Message:    op + " returned " + http.StatusText(resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	return body, nil
}
