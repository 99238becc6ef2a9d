package endpoints

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"agent-widget-platform/internal/api"
	"agent-widget-platform/internal/dto"
	internaljwt "agent-widget-platform/internal/jwt"
	"agent-widget-platform/internal/model"
	"agent-widget-platform/internal/queue"
	conversationservice "agent-widget-platform/internal/service/conversation"

	"github.com/prometheus/client_golang/prometheus"
)

func setupOperatorHandler(t *testing.T, repo *testRepository) http.Handler {
	t.Helper()

	internaljwt.RoleSecrets[internaljwt.RoleOperator] = "test-secret"
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	conversations := conversationservice.NewWithRepository(repo, &staticResponder{}, fixedTime)
	operatorEndpoints := NewOperatorEndpoints(conversations, nil)

	queueManager := queue.NewRequestQueueManager(10, 1)
	t.Cleanup(queueManager.Shutdown)
	server := api.NewAPIServer(":0", queueManager, nil, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tenant/v1/conversations/takeover", server.MakeHTTPHandleFunc(operatorEndpoints.TakeOver))
	mux.HandleFunc("/api/tenant/v1/conversations/resolve", server.MakeHTTPHandleFunc(operatorEndpoints.Resolve))
	mux.HandleFunc("/api/tenant/v1/conversations/reply", server.MakeHTTPHandleFunc(operatorEndpoints.Reply))
	mux.HandleFunc("/api/tenant/v1/conversations/messages", server.MakeHTTPHandleFunc(operatorEndpoints.Messages))
	return mux
}

func operatorToken(t *testing.T) string {
	t.Helper()
	token, err := internaljwt.CreateToken(internaljwt.Operator{Id: "op-1", Email: "op@example.com"}, internaljwt.RoleOperator, 0)
	if err != nil {
		t.Fatalf("mint operator token: %v", err)
	}
	return token
}

func seedConversation(repo *testRepository, status model.ConversationStatus) model.ConversationItem {
	conversation := model.ConversationItem{
		PK:             model.ConversationPK("agent-1", "conv-1"),
		VisitorPK:      model.VisitorPK("agent-1", "visitor-1"),
		ConversationID: "conv-1",
		AgentID:        "agent-1",
		VisitorID:      "visitor-1",
		Status:         status,
		StartedAt:      "2024-01-02T14:00:00Z",
		LastMessageAt:  "2024-01-02T14:05:00Z",
	}
	repo.conversations[conversation.PK] = conversation
	return conversation
}

func postJSON(t *testing.T, handler http.Handler, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestOperatorTakeOverEndpoint(t *testing.T) {
	repo := newTestRepository()
	seedAgent(repo)
	seedConversation(repo, model.ConversationStatusActive)
	handler := setupOperatorHandler(t, repo)

	res := postJSON(t, handler, "/api/tenant/v1/conversations/takeover", operatorToken(t), dto.ConversationActionRequest{
		AgentID:        "agent-1",
		ConversationID: "conv-1",
	})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp dto.ConversationResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Conversation.Status != string(model.ConversationStatusHumanTakeover) {
		t.Fatalf("expected human_takeover, got %q", resp.Conversation.Status)
	}
	if resp.Conversation.TakenOverBy != "op-1" {
		t.Fatalf("expected taken over by op-1, got %q", resp.Conversation.TakenOverBy)
	}
}

func TestOperatorTakeOverEndpointRequiresToken(t *testing.T) {
	repo := newTestRepository()
	seedAgent(repo)
	seedConversation(repo, model.ConversationStatusActive)
	handler := setupOperatorHandler(t, repo)

	res := postJSON(t, handler, "/api/tenant/v1/conversations/takeover", "", dto.ConversationActionRequest{
		AgentID:        "agent-1",
		ConversationID: "conv-1",
	})

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.Code, res.Body.String())
	}
}

func TestOperatorTakeOverEndpointResolvedConflict(t *testing.T) {
	repo := newTestRepository()
	seedAgent(repo)
	seedConversation(repo, model.ConversationStatusResolved)
	handler := setupOperatorHandler(t, repo)

	res := postJSON(t, handler, "/api/tenant/v1/conversations/takeover", operatorToken(t), dto.ConversationActionRequest{
		AgentID:        "agent-1",
		ConversationID: "conv-1",
	})

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.Code, res.Body.String())
	}
}

func TestOperatorReplyEndpoint(t *testing.T) {
	repo := newTestRepository()
	seedAgent(repo)
	seedConversation(repo, model.ConversationStatusActive)
	handler := setupOperatorHandler(t, repo)

	res := postJSON(t, handler, "/api/tenant/v1/conversations/reply", operatorToken(t), dto.OperatorReplyRequest{
		AgentID:        "agent-1",
		ConversationID: "conv-1",
		Body:           "I can help with that.",
	})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp dto.OperatorReplyResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Replying implies taking over.
	if resp.Conversation.Status != string(model.ConversationStatusHumanTakeover) {
		t.Fatalf("expected human_takeover, got %q", resp.Conversation.Status)
	}
	if resp.Message.Role != string(model.MessageRoleAgent) {
		t.Fatalf("expected agent role, got %q", resp.Message.Role)
	}
	if resp.Message.SenderID != "op-1" {
		t.Fatalf("expected sender op-1, got %q", resp.Message.SenderID)
	}
	if resp.Message.Body != "I can help with that." {
		t.Fatalf("unexpected body %q", resp.Message.Body)
	}
}

func TestOperatorMessagesEndpoint(t *testing.T) {
	repo := newTestRepository()
	seedAgent(repo)
	seedConversation(repo, model.ConversationStatusActive)
	repo.messages["conv-1"] = []model.MessageItem{
		{
			PK:             model.MessagePK("conv-1", "msg-1"),
			MessageID:      "msg-1",
			ConversationID: "conv-1",
			AgentID:        "agent-1",
			Role:           model.MessageRoleVisitor,
			Body:           "Hi",
			CreatedAt:      "2024-01-02T14:00:00Z",
		},
		{
			PK:             model.MessagePK("conv-1", "msg-2"),
			MessageID:      "msg-2",
			ConversationID: "conv-1",
			AgentID:        "agent-1",
			Role:           model.MessageRoleAgent,
			Body:           "Hello!",
			CreatedAt:      "2024-01-02T14:01:00Z",
		},
	}
	handler := setupOperatorHandler(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/tenant/v1/conversations/messages?agentId=agent-1&conversationId=conv-1", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp dto.ListMessagesResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(resp.Messages))
	}
	if resp.Messages[0].MessageID != "msg-1" || resp.Messages[1].MessageID != "msg-2" {
		t.Fatalf("unexpected order %+v", resp.Messages)
	}
}
