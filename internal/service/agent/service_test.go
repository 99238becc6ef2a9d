package agent

import (
	"context"
	"sync"
	"testing"

	"agent-widget-platform/internal/model"
)

type memoryRepository struct {
	mu     sync.Mutex
	agents map[string]model.AgentItem
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{agents: make(map[string]model.AgentItem)}
}

func (m *memoryRepository) GetAgent(ctx context.Context, agentID string) (model.AgentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[agentID]
	if !ok {
		return model.AgentItem{}, ErrNotFound
	}
	return agent, nil
}

func TestWidgetConfig(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewWithRepository(repo, nil)

	repo.agents["agent-1"] = model.AgentItem{
		AgentID:            "agent-1",
		TenantID:           "tenant-1",
		Name:               "Support Bot",
		AvatarURL:          "https://cdn.example.com/bot.png",
		WidgetColor:        "#336699",
		WelcomeMessage:     "Hi, how can I help?",
		RequireVisitorInfo: true,
		FallbackMessage:    "We are away.",
		FallbackEmail:      "help@example.com",
		Status:             model.AgentStatusActive,
	}

	config, err := svc.WidgetConfig(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("WidgetConfig error: %v", err)
	}
	if config.Name != "Support Bot" {
		t.Fatalf("unexpected name %s", config.Name)
	}
	if !config.RequireVisitorInfo {
		t.Fatal("expected RequireVisitorInfo to be true")
	}
	if config.Status != model.AgentStatusActive {
		t.Fatalf("unexpected status %s", config.Status)
	}
}

func TestWidgetConfigUnknownAgent(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewWithRepository(repo, nil)

	_, err := svc.WidgetConfig(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing agent")
	}
	svcErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if svcErr.Code != ErrorCodeNotFound {
		t.Fatalf("expected not_found, got %s", svcErr.Code)
	}
}

func TestWidgetConfigRequiresAgentID(t *testing.T) {
	svc := NewWithRepository(newMemoryRepository(), nil)

	_, err := svc.WidgetConfig(context.Background(), "  ")
	if err == nil {
		t.Fatal("expected validation error")
	}
	svcErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if svcErr.Code != ErrorCodeValidation {
		t.Fatalf("expected validation_error, got %s", svcErr.Code)
	}
}
