package conversation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"agent-widget-platform/internal/model"
	"agent-widget-platform/internal/responder"
)

type memoryRepository struct {
	mu            sync.Mutex
	agents        map[string]model.AgentItem
	credits       map[string]model.CreditsItem
	creditsErr    error
	visitors      map[string]model.VisitorItem
	conversations map[string]model.ConversationItem
	messages      map[string][]model.MessageItem
	usage         []model.UsageLogItem
	settings      map[string]model.AppSettingItem
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		agents:        make(map[string]model.AgentItem),
		credits:       make(map[string]model.CreditsItem),
		visitors:      make(map[string]model.VisitorItem),
		conversations: make(map[string]model.ConversationItem),
		messages:      make(map[string][]model.MessageItem),
		settings:      make(map[string]model.AppSettingItem),
	}
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

func (m *memoryRepository) UpdateAgentStatus(ctx context.Context, agentID string, status model.AgentStatus, updatedAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[agentID]
	if !ok {
		return ErrNotFound
	}
	agent.Status = status
	agent.UpdatedAt = updatedAt
	m.agents[agentID] = agent
	return nil
}

func (m *memoryRepository) GetCredits(ctx context.Context, tenantID string) (model.CreditsItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creditsErr != nil {
		return model.CreditsItem{}, m.creditsErr
	}
	credits, ok := m.credits[tenantID]
	if !ok {
		return model.CreditsItem{}, ErrNotFound
	}
	return credits, nil
}

func (m *memoryRepository) GetVisitor(ctx context.Context, agentID, visitorID string) (model.VisitorItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	visitor, ok := m.visitors[model.VisitorPK(agentID, visitorID)]
	if !ok {
		return model.VisitorItem{}, ErrNotFound
	}
	return visitor, nil
}

func (m *memoryRepository) PutVisitor(ctx context.Context, visitor model.VisitorItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visitors[visitor.PK] = visitor
	return nil
}

func (m *memoryRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversation.PK] = conversation
	return nil
}

func (m *memoryRepository) GetConversation(ctx context.Context, agentID, conversationID string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[model.ConversationPK(agentID, conversationID)]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	return conversation, nil
}

func (m *memoryRepository) LatestConversation(ctx context.Context, agentID, visitorID string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	visitorPK := model.VisitorPK(agentID, visitorID)
	items := make([]model.ConversationItem, 0)
	for _, c := range m.conversations {
		if c.VisitorPK == visitorPK {
			items = append(items, c)
		}
	}
	if len(items) == 0 {
		return model.ConversationItem{}, ErrNotFound
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastMessageAt > items[j].LastMessageAt
	})
	return items[0], nil
}

func (m *memoryRepository) UpdateConversationStatus(ctx context.Context, agentID, conversationID string, status model.ConversationStatus, takenOverBy, updatedAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := model.ConversationPK(agentID, conversationID)
	conversation, ok := m.conversations[pk]
	if !ok {
		return ErrNotFound
	}
	conversation.Status = status
	conversation.UpdatedAt = updatedAt
	if takenOverBy != "" {
		conversation.TakenOverBy = takenOverBy
	}
	m.conversations[pk] = conversation
	return nil
}

func (m *memoryRepository) UpdateConversationActivity(ctx context.Context, agentID, conversationID, updatedAt, lastMessageAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := model.ConversationPK(agentID, conversationID)
	conversation, ok := m.conversations[pk]
	if !ok {
		return ErrNotFound
	}
	conversation.UpdatedAt = updatedAt
	conversation.LastMessageAt = lastMessageAt
	m.conversations[pk] = conversation
	return nil
}

func (m *memoryRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[message.ConversationID] = append(m.messages[message.ConversationID], message)
	return nil
}

func (m *memoryRepository) ListMessages(ctx context.Context, agentID, conversationID string, limit int) ([]model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.MessageItem, 0)
	for _, msg := range m.messages[conversationID] {
		if msg.AgentID == agentID {
			items = append(items, msg)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		ti := parseTime(items[i].CreatedAt)
		tj := parseTime(items[j].CreatedAt)
		return ti.Before(tj)
	})
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func (m *memoryRepository) CreateUsageLog(ctx context.Context, usage model.UsageLogItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = append(m.usage, usage)
	return nil
}

func (m *memoryRepository) GetAppSetting(ctx context.Context, name string) (model.AppSettingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	setting, ok := m.settings[name]
	if !ok {
		return model.AppSettingItem{}, ErrNotFound
	}
	return setting, nil
}

type fakeResponder struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	lastReq responder.ReplyRequest
}

func (f *fakeResponder) Reply(ctx context.Context, req responder.ReplyRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func activeAgent() model.AgentItem {
	return model.AgentItem{
		AgentID:         "agent-1",
		TenantID:        "tenant-1",
		Name:            "Support Bot",
		SystemPrompt:    "You are helpful.",
		FallbackMessage: "We are away right now.",
		Status:          model.AgentStatusActive,
	}
}

func TestSendVisitorMessageStartsConversationAndReplies(t *testing.T) {
	repo := newMemoryRepository()
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	resp := &fakeResponder{reply: "Hola!"}
	svc := NewWithRepository(repo, resp, func() time.Time { return now })

	repo.agents["agent-1"] = activeAgent()
	repo.credits["tenant-1"] = model.CreditsItem{TenantID: "tenant-1", Balance: 5}

	result, err := svc.SendVisitorMessage(context.Background(), SendVisitorMessageParams{
		AgentID:     "agent-1",
		VisitorID:   "visitor-1",
		Message:     "Hi there",
		VisitorName: "Visitor",
	})
	if err != nil {
		t.Fatalf("SendVisitorMessage error: %v", err)
	}

	if result.Status != DispatchSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if result.ResponseText != "Hola!" {
		t.Fatalf("unexpected response text %q", result.ResponseText)
	}
	if result.ConversationID == "" {
		t.Fatal("expected conversation id")
	}

	messages := repo.messages[result.ConversationID]
	if len(messages) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(messages))
	}
	if messages[0].Role != model.MessageRoleVisitor || messages[0].Body != "Hi there" {
		t.Fatalf("unexpected visitor message %+v", messages[0])
	}
	if messages[1].Role != model.MessageRoleAgent || messages[1].Body != "Hola!" {
		t.Fatalf("unexpected assistant message %+v", messages[1])
	}

	if len(repo.usage) != 1 {
		t.Fatalf("expected 1 usage log, got %d", len(repo.usage))
	}
	if repo.usage[0].TenantID != "tenant-1" || repo.usage[0].Amount != 1 {
		t.Fatalf("unexpected usage log %+v", repo.usage[0])
	}

	if resp.lastReq.SystemPrompt != "You are helpful." {
		t.Fatalf("responder did not receive the system prompt: %+v", resp.lastReq)
	}
}

func TestSendVisitorMessagePausedAgentIsOutOfService(t *testing.T) {
	repo := newMemoryRepository()
	resp := &fakeResponder{reply: "Hola!"}
	svc := NewWithRepository(repo, resp, nil)

	agent := activeAgent()
	agent.Status = model.AgentStatusPaused
	repo.agents[agent.AgentID] = agent

	result, err := svc.SendVisitorMessage(context.Background(), SendVisitorMessageParams{
		AgentID:   "agent-1",
		VisitorID: "visitor-1",
		Message:   "Hi",
	})
	if err != nil {
		t.Fatalf("SendVisitorMessage error: %v", err)
	}
	if result.Status != DispatchOutOfService {
		t.Fatalf("expected out_of_service, got %s", result.Status)
	}
	if result.ResponseText != "We are away right now." {
		t.Fatalf("unexpected fallback text %q", result.ResponseText)
	}
	if resp.calls != 0 {
		t.Fatalf("responder must not be called, got %d calls", resp.calls)
	}
}

func TestSendVisitorMessageExhaustedCreditsAutoPauses(t *testing.T) {
	repo := newMemoryRepository()
	resp := &fakeResponder{reply: "Hola!"}
	svc := NewWithRepository(repo, resp, nil)

	repo.agents["agent-1"] = activeAgent()
	repo.credits["tenant-1"] = model.CreditsItem{TenantID: "tenant-1", Balance: 0}

	result, err := svc.SendVisitorMessage(context.Background(), SendVisitorMessageParams{
		AgentID:   "agent-1",
		VisitorID: "visitor-1",
		Message:   "Hi",
	})
	if err != nil {
		t.Fatalf("SendVisitorMessage error: %v", err)
	}
	if result.Status != DispatchOutOfService {
		t.Fatalf("expected out_of_service, got %s", result.Status)
	}
	if repo.agents["agent-1"].Status != model.AgentStatusPaused {
		t.Fatalf("expected agent paused, got %s", repo.agents["agent-1"].Status)
	}
}

func TestSendVisitorMessageCreditLookupFailureDoesNotBlock(t *testing.T) {
	repo := newMemoryRepository()
	resp := &fakeResponder{reply: "Hola!"}
	svc := NewWithRepository(repo, resp, nil)

	repo.agents["agent-1"] = activeAgent()
	repo.creditsErr = errors.New("dynamo unavailable")

	result, err := svc.SendVisitorMessage(context.Background(), SendVisitorMessageParams{
		AgentID:   "agent-1",
		VisitorID: "visitor-1",
		Message:   "Hi",
	})
	if err != nil {
		t.Fatalf("SendVisitorMessage error: %v", err)
	}
	if result.Status != DispatchSuccess {
		t.Fatalf("expected success despite credit lookup failure, got %s", result.Status)
	}
}

func TestSendVisitorMessageHumanTakeoverShortCircuits(t *testing.T) {
	repo := newMemoryRepository()
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	resp := &fakeResponder{reply: "Hola!"}
	svc := NewWithRepository(repo, resp, func() time.Time { return now })

	repo.agents["agent-1"] = activeAgent()
	repo.credits["tenant-1"] = model.CreditsItem{TenantID: "tenant-1", Balance: 5}

	conversation := model.ConversationItem{
		PK:             model.ConversationPK("agent-1", "conv-1"),
		VisitorPK:      model.VisitorPK("agent-1", "visitor-1"),
		ConversationID: "conv-1",
		AgentID:        "agent-1",
		TenantID:       "tenant-1",
		VisitorID:      "visitor-1",
		Status:         model.ConversationStatusHumanTakeover,
		LastMessageAt:  now.Format(time.RFC3339),
	}
	repo.conversations[conversation.PK] = conversation

	result, err := svc.SendVisitorMessage(context.Background(), SendVisitorMessageParams{
		AgentID:   "agent-1",
		VisitorID: "visitor-1",
		Message:   "Anyone there?",
	})
	if err != nil {
		t.Fatalf("SendVisitorMessage error: %v", err)
	}
	if result.Status != DispatchHumanTakeover {
		t.Fatalf("expected human_takeover, got %s", result.Status)
	}
	if result.ResponseText != "" {
		t.Fatalf("expected empty response text, got %q", result.ResponseText)
	}
	if resp.calls != 0 {
		t.Fatalf("responder must not be called during takeover, got %d calls", resp.calls)
	}
	if len(repo.messages["conv-1"]) != 1 {
		t.Fatalf("visitor message must still be stored, got %d", len(repo.messages["conv-1"]))
	}
}

func TestSendVisitorMessageResponderFailureKeepsVisitorMessage(t *testing.T) {
	repo := newMemoryRepository()
	resp := &fakeResponder{err: errors.New("webhook down")}
	svc := NewWithRepository(repo, resp, nil)

	repo.agents["agent-1"] = activeAgent()
	repo.credits["tenant-1"] = model.CreditsItem{TenantID: "tenant-1", Balance: 5}

	result, err := svc.SendVisitorMessage(context.Background(), SendVisitorMessageParams{
		AgentID:   "agent-1",
		VisitorID: "visitor-1",
		Message:   "Hi",
	})
	if err != nil {
		t.Fatalf("SendVisitorMessage error: %v", err)
	}
	if result.Status != DispatchError {
		t.Fatalf("expected error status, got %s", result.Status)
	}

	messages := repo.messages[result.ConversationID]
	if len(messages) != 1 || messages[0].Role != model.MessageRoleVisitor {
		t.Fatalf("visitor message must be preserved, got %+v", messages)
	}
	if len(repo.usage) != 0 {
		t.Fatalf("no usage must be recorded on failure, got %d", len(repo.usage))
	}
}

func TestSendVisitorMessageResolvedConversationStartsFresh(t *testing.T) {
	repo := newMemoryRepository()
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	resp := &fakeResponder{reply: "Welcome back"}
	svc := NewWithRepository(repo, resp, func() time.Time { return now })

	repo.agents["agent-1"] = activeAgent()
	repo.credits["tenant-1"] = model.CreditsItem{TenantID: "tenant-1", Balance: 5}

	resolved := model.ConversationItem{
		PK:             model.ConversationPK("agent-1", "conv-old"),
		VisitorPK:      model.VisitorPK("agent-1", "visitor-1"),
		ConversationID: "conv-old",
		AgentID:        "agent-1",
		VisitorID:      "visitor-1",
		Status:         model.ConversationStatusResolved,
		LastMessageAt:  now.Add(-time.Hour).Format(time.RFC3339),
	}
	repo.conversations[resolved.PK] = resolved

	result, err := svc.SendVisitorMessage(context.Background(), SendVisitorMessageParams{
		AgentID:   "agent-1",
		VisitorID: "visitor-1",
		Message:   "Hi again",
	})
	if err != nil {
		t.Fatalf("SendVisitorMessage error: %v", err)
	}
	if result.Status != DispatchSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if result.ConversationID == "conv-old" {
		t.Fatal("expected a fresh conversation, reused the resolved one")
	}
}

func TestSendVisitorMessageUnknownAgent(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewWithRepository(repo, &fakeResponder{}, nil)

	_, err := svc.SendVisitorMessage(context.Background(), SendVisitorMessageParams{
		AgentID:   "missing",
		VisitorID: "visitor-1",
		Message:   "Hi",
	})
	if err == nil {
		t.Fatal("expected error for unknown agent")
	}
	svcErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if svcErr.Code != ErrorCodeNotFound {
		t.Fatalf("expected not_found, got %s", svcErr.Code)
	}
}

func TestHistoryEmptyForNewVisitor(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewWithRepository(repo, &fakeResponder{}, nil)

	result, err := svc.History(context.Background(), "agent-1", "visitor-1")
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(result.Messages) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(result.Messages))
	}
}

func TestHistoryReturnsMessagesOldestFirst(t *testing.T) {
	repo := newMemoryRepository()
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	resp := &fakeResponder{reply: "First reply"}
	svc := NewWithRepository(repo, resp, func() time.Time { return now })

	repo.agents["agent-1"] = activeAgent()
	repo.credits["tenant-1"] = model.CreditsItem{TenantID: "tenant-1", Balance: 5}

	if _, err := svc.SendVisitorMessage(context.Background(), SendVisitorMessageParams{
		AgentID:   "agent-1",
		VisitorID: "visitor-1",
		Message:   "First question",
	}); err != nil {
		t.Fatalf("SendVisitorMessage error: %v", err)
	}

	result, err := svc.History(context.Background(), "agent-1", "visitor-1")
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(result.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result.Messages))
	}
	if result.Messages[0].Body != "First question" {
		t.Fatalf("expected visitor message first, got %q", result.Messages[0].Body)
	}
	if result.Messages[1].Body != "First reply" {
		t.Fatalf("expected reply second, got %q", result.Messages[1].Body)
	}
}

func TestTakeOverThenResolve(t *testing.T) {
	repo := newMemoryRepository()
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	svc := NewWithRepository(repo, &fakeResponder{}, func() time.Time { return now })

	conversation := model.ConversationItem{
		PK:             model.ConversationPK("agent-1", "conv-1"),
		VisitorPK:      model.VisitorPK("agent-1", "visitor-1"),
		ConversationID: "conv-1",
		AgentID:        "agent-1",
		VisitorID:      "visitor-1",
		Status:         model.ConversationStatusActive,
	}
	repo.conversations[conversation.PK] = conversation

	taken, err := svc.TakeOver(context.Background(), "agent-1", "conv-1", "op-1")
	if err != nil {
		t.Fatalf("TakeOver error: %v", err)
	}
	if taken.Status != model.ConversationStatusHumanTakeover {
		t.Fatalf("expected human_takeover, got %s", taken.Status)
	}
	if taken.TakenOverBy != "op-1" {
		t.Fatalf("expected operator op-1, got %s", taken.TakenOverBy)
	}

	resolved, err := svc.Resolve(context.Background(), "agent-1", "conv-1")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolved.Status != model.ConversationStatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}

	_, err = svc.TakeOver(context.Background(), "agent-1", "conv-1", "op-1")
	if err == nil {
		t.Fatal("expected error taking over a resolved conversation")
	}
	svcErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if svcErr.Code != ErrorCodeConflict {
		t.Fatalf("expected conflict, got %s", svcErr.Code)
	}
}

func TestPostOperatorMessageImpliesTakeover(t *testing.T) {
	repo := newMemoryRepository()
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	svc := NewWithRepository(repo, &fakeResponder{}, func() time.Time { return now })

	conversation := model.ConversationItem{
		PK:             model.ConversationPK("agent-1", "conv-1"),
		VisitorPK:      model.VisitorPK("agent-1", "visitor-1"),
		ConversationID: "conv-1",
		AgentID:        "agent-1",
		VisitorID:      "visitor-1",
		Status:         model.ConversationStatusActive,
	}
	repo.conversations[conversation.PK] = conversation

	result, err := svc.PostOperatorMessage(context.Background(), "agent-1", "conv-1", "op-1", "I can help")
	if err != nil {
		t.Fatalf("PostOperatorMessage error: %v", err)
	}
	if result.Conversation.Status != model.ConversationStatusHumanTakeover {
		t.Fatalf("expected takeover, got %s", result.Conversation.Status)
	}
	if result.Message.Role != model.MessageRoleAgent || result.Message.SenderID != "op-1" {
		t.Fatalf("unexpected operator message %+v", result.Message)
	}

	stored := repo.conversations[model.ConversationPK("agent-1", "conv-1")]
	if stored.Status != model.ConversationStatusHumanTakeover {
		t.Fatalf("takeover not persisted, got %s", stored.Status)
	}
}
