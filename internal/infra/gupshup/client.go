// Package gupshup sends WhatsApp text messages through the Gupshup HTTP API.
package gupshup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"class_reminder_bot/internal/domain/gateway"

	"golang.org/x/time/rate"
)

// ErrUnexpectedStatus is returned for any response other than 200 OK.
var ErrUnexpectedStatus = errors.New("gupshup: unexpected response status")

type Config struct {
	Endpoint          string
	APIKey            string
	SourcePhone       string
	BotName           string
	RequestsPerMinute int // <= 0 disables throttling
	Timeout           time.Duration
}

// Client implements gateway.Client.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	source     string
	botName    string
	limiter    *rate.Limiter
}

func NewClient(cfg Config) *Client {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		source:     cfg.SourcePhone,
		botName:    cfg.BotName,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Send posts one text message. Only HTTP 200 counts as delivered.
func (c *Client) Send(ctx context.Context, msg gateway.Message) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(textMessage{Type: "text", Text: msg.Text})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	form := url.Values{}
	form.Set("channel", "whatsapp")
	form.Set("source", c.source)
	form.Set("destination", msg.Destination)
	form.Set("message", string(payload))
	form.Set("src.name", c.botName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gupshup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
