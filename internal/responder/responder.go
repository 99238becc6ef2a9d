package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookURLSetting is the app-setting name holding the AI pipeline webhook.
const WebhookURLSetting = "chat_webhook_url"

// ReplyRequest carries one visitor message to the AI pipeline.
type ReplyRequest struct {
	SessionID    string `json:"sessionId"`
	AgentName    string `json:"agentName"`
	Message      string `json:"message"`
	SystemPrompt string `json:"systemPrompt"`
}

// Responder produces the automated reply for a visitor message.
type Responder interface {
	Reply(ctx context.Context, req ReplyRequest) (string, error)
}

// WebhookResponder posts messages to an externally managed AI workflow and
// extracts the reply text from its JSON response.
type WebhookResponder struct {
	client   *http.Client
	settings *SettingsCache
}

func NewWebhookResponder(settings *SettingsCache) *WebhookResponder {
	return &WebhookResponder{
		client:   &http.Client{Timeout: 30 * time.Second},
		settings: settings,
	}
}

func (r *WebhookResponder) Reply(ctx context.Context, req ReplyRequest) (string, error) {
	webhookURL, err := r.settings.Get(ctx, WebhookURLSetting)
	if err != nil {
		return "", fmt.Errorf("resolve webhook url: %w", err)
	}
	if webhookURL == "" {
		return "", fmt.Errorf("webhook url not configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal reply request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call webhook: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("webhook returned %d: %s", res.StatusCode, string(body))
	}

	// Different workflow versions name the reply field differently.
	var decoded struct {
		Output   string `json:"output"`
		Response string `json:"response"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode webhook response: %w", err)
	}

	switch {
	case decoded.Output != "":
		return decoded.Output, nil
	case decoded.Response != "":
		return decoded.Response, nil
	case decoded.Message != "":
		return decoded.Message, nil
	}
	return "", fmt.Errorf("webhook response contained no reply text")
}
