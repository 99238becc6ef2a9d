package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"agent-widget-platform/internal/dto"
)

// HTTPBackend talks to a widget-server over its public JSON API.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

func NewHTTPBackend(baseURL string) *HTTPBackend {
	return &HTTPBackend{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (b *HTTPBackend) FetchConfig(ctx context.Context, agentID string) (Config, error) {
	var res dto.WidgetConfigResponse
	query := url.Values{"agentId": {agentID}}
	if err := b.getJSON(ctx, "/api/widget/v1/config", query, &res); err != nil {
		return Config{}, err
	}

	return Config{
		Status:             res.Status,
		Name:               res.Agent.Name,
		AvatarURL:          res.Agent.AvatarURL,
		Color:              res.Agent.Color,
		WelcomeMessage:     res.Agent.WelcomeMessage,
		RequireVisitorInfo: res.Agent.RequireVisitorInfo,
		FallbackMessage:    res.Agent.FallbackMessage,
		FallbackEmail:      res.Agent.FallbackEmail,
	}, nil
}

func (b *HTTPBackend) FetchHistory(ctx context.Context, agentID, visitorID string) ([]Message, error) {
	var res dto.HistoryResponse
	query := url.Values{"agentId": {agentID}, "visitorId": {visitorID}}
	if err := b.getJSON(ctx, "/api/widget/v1/history", query, &res); err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(res.Messages))
	for _, msg := range res.Messages {
		messages = append(messages, Message{
			Role:      Role(msg.Role),
			Content:   msg.Content,
			CreatedAt: parseTimestamp(msg.CreatedAt),
		})
	}
	return messages, nil
}

func (b *HTTPBackend) Send(ctx context.Context, agentID string, req SendRequest) (SendResult, error) {
	payload, err := json.Marshal(dto.SendMessageRequest{
		AgentID:   agentID,
		VisitorID: req.VisitorID,
		Message:   req.Message,
		VisitorInfo: dto.VisitorInfoPayload{
			Name:  req.VisitorInfo.Name,
			Email: req.VisitorInfo.Email,
		},
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("marshal send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/widget/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, fmt.Errorf("build send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpRes, err := b.client.Do(httpReq)
	if err != nil {
		return SendResult{}, fmt.Errorf("send message: %w", err)
	}
	defer httpRes.Body.Close()

	if httpRes.StatusCode != http.StatusOK {
		return SendResult{}, fmt.Errorf("send message: unexpected status %d", httpRes.StatusCode)
	}

	var res dto.SendMessageResponse
	if err := json.NewDecoder(httpRes.Body).Decode(&res); err != nil {
		return SendResult{}, fmt.Errorf("decode send response: %w", err)
	}

	return SendResult{
		Status:       SendStatus(res.Status),
		ResponseText: res.ResponseText,
	}, nil
}

func (b *HTTPBackend) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}

	res, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", path, res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func parseTimestamp(ts string) time.Time {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}
