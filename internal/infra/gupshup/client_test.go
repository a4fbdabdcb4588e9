package gupshup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"class_reminder_bot/internal/domain/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(endpoint string) *Client {
	return NewClient(Config{
		Endpoint:    endpoint,
		APIKey:      "secret-key",
		SourcePhone: "917834811114",
		BotName:     "ClassBot",
		Timeout:     5 * time.Second,
	})
}

func TestClient_Send(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"submitted","messageId":"abc"}`))
	}))
	defer server.Close()

	err := newTestClient(server.URL).Send(context.Background(), gateway.Message{
		Destination: "919876543210",
		Text:        "Hey Parent,\n\n*Aarav's* class is booked",
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "secret-key", got.Header.Get("apikey"))
	assert.Equal(t, "no-cache", got.Header.Get("Cache-Control"))
	assert.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))

	assert.Equal(t, "whatsapp", got.PostForm.Get("channel"))
	assert.Equal(t, "917834811114", got.PostForm.Get("source"))
	assert.Equal(t, "919876543210", got.PostForm.Get("destination"))
	assert.Equal(t, "ClassBot", got.PostForm.Get("src.name"))

	var payload textMessage
	require.NoError(t, json.Unmarshal([]byte(got.PostForm.Get("message")), &payload))
	assert.Equal(t, textMessage{Type: "text", Text: "Hey Parent,\n\n*Aarav's* class is booked"}, payload)
}

func TestClient_Send_NonOKStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "accepted is not ok", status: http.StatusAccepted},
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "server error", status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("rejected"))
			}))
			defer server.Close()

			err := newTestClient(server.URL).Send(context.Background(), gateway.Message{Destination: "1", Text: "x"})
			assert.ErrorIs(t, err, ErrUnexpectedStatus)
			assert.ErrorContains(t, err, "rejected")
		})
	}
}

func TestClient_Send_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := newTestClient(url).Send(context.Background(), gateway.Message{Destination: "1", Text: "x"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedStatus)
}

func TestClient_Send_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(Config{Endpoint: server.URL, RequestsPerMinute: 1, Timeout: time.Second})
	require.NoError(t, c.Send(context.Background(), gateway.Message{Destination: "1", Text: "x"}))

	// The single burst token is spent; the next send would wait a minute.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Send(ctx, gateway.Message{Destination: "1", Text: "x"})
	assert.ErrorContains(t, err, "rate limit wait")
}
