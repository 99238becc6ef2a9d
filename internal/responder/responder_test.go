package responder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func staticSettings(url string) *SettingsCache {
	return NewSettingsCache(func(ctx context.Context, name string) (string, error) {
		if name != WebhookURLSetting {
			return "", errors.New("unknown setting")
		}
		return url, nil
	})
}

func TestWebhookResponderReply(t *testing.T) {
	var received ReplyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"output": "Hello from the bot"})
	}))
	defer server.Close()

	responder := NewWebhookResponder(staticSettings(server.URL))
	reply, err := responder.Reply(context.Background(), ReplyRequest{
		SessionID:    "conv-1",
		AgentName:    "Support Bot",
		Message:      "Hi",
		SystemPrompt: "You are helpful.",
	})
	if err != nil {
		t.Fatalf("Reply error: %v", err)
	}
	if reply != "Hello from the bot" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if received.SessionID != "conv-1" || received.Message != "Hi" {
		t.Fatalf("unexpected forwarded request %+v", received)
	}
}

func TestWebhookResponderReplyFieldFallbacks(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"output", `{"output":"a"}`, "a"},
		{"response", `{"response":"b"}`, "b"},
		{"message", `{"message":"c"}`, "c"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			responder := NewWebhookResponder(staticSettings(server.URL))
			reply, err := responder.Reply(context.Background(), ReplyRequest{Message: "Hi"})
			if err != nil {
				t.Fatalf("Reply error: %v", err)
			}
			if reply != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, reply)
			}
		})
	}
}

func TestWebhookResponderEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	responder := NewWebhookResponder(staticSettings(server.URL))
	if _, err := responder.Reply(context.Background(), ReplyRequest{Message: "Hi"}); err == nil {
		t.Fatal("expected error for reply without text")
	}
}

func TestWebhookResponderNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	responder := NewWebhookResponder(staticSettings(server.URL))
	if _, err := responder.Reply(context.Background(), ReplyRequest{Message: "Hi"}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestSettingsCacheMemoisesAndResets(t *testing.T) {
	calls := 0
	cache := NewSettingsCache(func(ctx context.Context, name string) (string, error) {
		calls++
		return "value-" + name, nil
	})

	for i := 0; i < 3; i++ {
		val, err := cache.Get(context.Background(), "webhook")
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if val != "value-webhook" {
			t.Fatalf("unexpected value %q", val)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one lookup, got %d", calls)
	}

	cache.Reset()
	if _, err := cache.Get(context.Background(), "webhook"); err != nil {
		t.Fatalf("Get after Reset error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected lookup after reset, got %d calls", calls)
	}
}

func TestSettingsCacheLookupErrorNotCached(t *testing.T) {
	calls := 0
	cache := NewSettingsCache(func(ctx context.Context, name string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	if _, err := cache.Get(context.Background(), "webhook"); err == nil {
		t.Fatal("expected first lookup to fail")
	}
	val, err := cache.Get(context.Background(), "webhook")
	if err != nil {
		t.Fatalf("second Get error: %v", err)
	}
	if val != "ok" {
		t.Fatalf("unexpected value %q", val)
	}
}
