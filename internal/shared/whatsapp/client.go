package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client is a thin binding to a hosted WAHA (WhatsApp HTTP API) instance.
// The hosted API owns all protocol state; this client only relays calls.
type Client struct {
	baseURL    string
	apiKey     string
	session    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey, session string, logger *zap.Logger) *Client {
	if session == "" {
		session = "default"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		session: session,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SessionStatus current state of the WAHA session (STARTING/SCAN_QR/WORKING/...)
type SessionStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// StartSession asks WAHA to start (or resume) the configured session.
func (c *Client) StartSession(ctx context.Context) error {
	body := map[string]interface{}{
		"name":  c.session,
		"start": true,
	}
	return c.doRequest(ctx, http.MethodPost, "/api/sessions", body, nil)
}

// CheckSessionStatus fetches the session state.
func (c *Client) CheckSessionStatus(ctx context.Context) (*SessionStatus, error) {
	var status SessionStatus
	path := fmt.Sprintf("/api/sessions/%s", c.session)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SendTextMessage sends a plain text message to a chat id (phone@c.us).
func (c *Client) SendTextMessage(ctx context.Context, chatID, text string) error {
	body := map[string]interface{}{
		"session": c.session,
		"chatId":  chatID,
		"text":    text,
	}
	return c.doRequest(ctx, http.MethodPost, "/api/sendText", body, nil)
}

// SendFileMessage sends a file by URL with an optional caption.
func (c *Client) SendFileMessage(ctx context.Context, chatID, fileURL, fileName, caption string) error {
	body := map[string]interface{}{
		"session": c.session,
		"chatId":  chatID,
		"caption": caption,
		"file": map[string]string{
			"url":      fileURL,
			"filename": fileName,
		},
	}
	return c.doRequest(ctx, http.MethodPost, "/api/sendFile", body, nil)
}

// Logout terminates the session on the WAHA side.
func (c *Client) Logout(ctx context.Context) error {
	path := fmt.Sprintf("/api/sessions/%s/logout", c.session)
	return c.doRequest(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("waha request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("WAHA API error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", data))
		return fmt.Errorf("waha API error [%d]: %s", resp.StatusCode, string(data))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// WebhookPayload inbound event relayed by WAHA (message, session status, ...)
type WebhookPayload struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}
