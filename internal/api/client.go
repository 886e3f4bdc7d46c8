// Package api implements the REST client for the AgriGPT backend.
// All endpoints are bearer-token-authenticated JSON or multipart HTTP;
// the backend owns sessions and every AI computation.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/agrigpt/chatclient/internal/model/chat"
)

// ChatResponse is the reply to POST /api/chat. Error carries the
// server's message for non-OK outcomes.
type ChatResponse struct {
	Reply  string `json:"reply"`
	ChatID string `json:"chat_id"`
	Error  string `json:"error,omitempty"`
}

// VoiceResponse is the reply to POST /api/voice.
type VoiceResponse struct {
	UserText string `json:"user_text"`
	AIReply  string `json:"ai_reply"`
	Error    string `json:"error,omitempty"`
}

// HistoryMessage is one stored turn in GET /api/chats/{id}.
type HistoryMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// History is the message history of one session.
type History struct {
	Messages []HistoryMessage `json:"messages"`
}

// TokenSource supplies the current bearer credential, empty when the
// user is not logged in.
type TokenSource func() string

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a client for the given base URL.
func New(baseURL string, token TokenSource, opts ...Option) *Client {
	if token == nil {
		token = func() string { return "" }
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage posts a text message. chatID is empty for the first
// message of a new conversation; the wire value is then null so the
// backend mints a session.
func (c *Client) SendMessage(ctx context.Context, message, chatID string) (*ChatResponse, error) {
	payload := struct {
		Message string  `json:"message"`
		ChatID  *string `json:"chat_id"`
	}{Message: message}
	if chatID != "" {
		payload.ChatID = &chatID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && out.Error == "" {
		out.Error = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	return &out, nil
}

// SendVoice uploads a WAV recording as multipart form data under the
// "audio" field and returns the transcript and reply.
func (c *Client) SendVoice(ctx context.Context, wav []byte) (*VoiceResponse, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("audio", "voice_message.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to build voice upload: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("failed to build voice upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build voice upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/voice", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice request failed: %w", err)
	}
	defer resp.Body.Close()

	var out VoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode voice response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && out.Error == "" {
		out.Error = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	return &out, nil
}

// ListSessions fetches the user's chat session summaries.
func (c *Client) ListSessions(ctx context.Context) ([]chat.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/chats", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sessions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sessions request failed: %s", errorText(resp))
	}

	var sessions []chat.Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}

// GetSession fetches the full message history of one session.
func (c *Client) GetSession(ctx context.Context, id string) (*History, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/chats/"+id, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history request failed: %s", errorText(resp))
	}

	var out History
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return &out, nil
}

// DeleteSession removes a session server-side.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/chats/"+id, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete request failed: %s", errorText(resp))
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// errorText extracts the server's error string from a non-OK response
// body, falling back to the HTTP status.
func errorText(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return payload.Error
		}
	}
	return resp.Status
}
