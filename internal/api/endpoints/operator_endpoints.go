package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"agent-widget-platform/internal/dto"
	internaljwt "agent-widget-platform/internal/jwt"
	"agent-widget-platform/internal/model"
	conversationservice "agent-widget-platform/internal/service/conversation"
	"agent-widget-platform/internal/websocket"
)

type OperatorEndpoints interface {
	TakeOver(http.ResponseWriter, *http.Request) error
	Resolve(http.ResponseWriter, *http.Request) error
	Reply(http.ResponseWriter, *http.Request) error
	Messages(http.ResponseWriter, *http.Request) error
}

type operatorEndpoints struct {
	conversations *conversationservice.Service
	notifier      *websocket.Handler
}

func NewOperatorEndpoints(conversations *conversationservice.Service, notifier *websocket.Handler) OperatorEndpoints {
	return &operatorEndpoints{
		conversations: conversations,
		notifier:      notifier,
	}
}

func (h *operatorEndpoints) TakeOver(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleTakeOver,
	})
}

func (h *operatorEndpoints) Resolve(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleResolve,
	})
}

func (h *operatorEndpoints) Reply(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleReply,
	})
}

func (h *operatorEndpoints) Messages(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListMessages,
	})
}

func (h *operatorEndpoints) handleTakeOver(w http.ResponseWriter, r *http.Request) error {
	operator, err := operatorFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.ConversationActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode takeover request: %w", err),
		}
	}

	conversation, err := h.conversations.TakeOver(r.Context(), req.AgentID, req.ConversationID, operator.Id)
	if err != nil {
		return mapConversationServiceError(err)
	}

	h.notify(websocket.NotificationEvent{
		Type:           websocket.EventConversationTakeover,
		AgentID:        conversation.AgentID,
		ConversationID: conversation.ConversationID,
		VisitorID:      conversation.VisitorID,
	})

	return WriteJSON(w, http.StatusOK, dto.ConversationResponse{
		Conversation: conversationMetadata(conversation),
	})
}

func (h *operatorEndpoints) handleResolve(w http.ResponseWriter, r *http.Request) error {
	if _, err := operatorFromRequest(r); err != nil {
		return err
	}

	var req dto.ConversationActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode resolve request: %w", err),
		}
	}

	conversation, err := h.conversations.Resolve(r.Context(), req.AgentID, req.ConversationID)
	if err != nil {
		return mapConversationServiceError(err)
	}

	h.notify(websocket.NotificationEvent{
		Type:           websocket.EventConversationResolved,
		AgentID:        conversation.AgentID,
		ConversationID: conversation.ConversationID,
		VisitorID:      conversation.VisitorID,
	})

	return WriteJSON(w, http.StatusOK, dto.ConversationResponse{
		Conversation: conversationMetadata(conversation),
	})
}

func (h *operatorEndpoints) handleReply(w http.ResponseWriter, r *http.Request) error {
	operator, err := operatorFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.OperatorReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode reply request: %w", err),
		}
	}

	result, err := h.conversations.PostOperatorMessage(r.Context(), req.AgentID, req.ConversationID, operator.Id, req.Body)
	if err != nil {
		return mapConversationServiceError(err)
	}

	h.notify(websocket.NotificationEvent{
		Type:           websocket.EventOperatorMessage,
		AgentID:        result.Conversation.AgentID,
		ConversationID: result.Conversation.ConversationID,
		VisitorID:      result.Conversation.VisitorID,
		Role:           string(result.Message.Role),
		Body:           result.Message.Body,
		CreatedAt:      result.Message.CreatedAt,
	})

	return WriteJSON(w, http.StatusOK, dto.OperatorReplyResponse{
		Conversation: conversationMetadata(result.Conversation),
		Message:      messageResponse(result.Message),
	})
}

func (h *operatorEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request) error {
	if _, err := operatorFromRequest(r); err != nil {
		return err
	}

	agentID := r.URL.Query().Get("agentId")
	conversationID := r.URL.Query().Get("conversationId")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid limit parameter",
				ErrorLog:   fmt.Errorf("parse limit %q: %v", raw, err),
			}
		}
		limit = parsed
	}

	messages, err := h.conversations.ListMessages(r.Context(), agentID, conversationID, limit)
	if err != nil {
		return mapConversationServiceError(err)
	}

	items := make([]dto.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		items = append(items, messageResponse(msg))
	}

	return WriteJSON(w, http.StatusOK, dto.ListMessagesResponse{
		ConversationID: conversationID,
		Messages:       items,
	})
}

func (h *operatorEndpoints) notify(event websocket.NotificationEvent) {
	if h.notifier == nil || event.AgentID == "" {
		return
	}
	h.notifier.EnsureRoom(event.AgentID)
	h.notifier.NotifyRoom(event.AgentID, event)
}

// operatorFromRequest re-parses the bearer token the auth middleware already
// validated, to recover the operator identity for attribution.
func operatorFromRequest(r *http.Request) (internaljwt.Operator, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return internaljwt.Operator{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("missing bearer token"),
		}
	}

	claims, err := internaljwt.ParseToken(token, internaljwt.RoleOperator)
	if err != nil {
		return internaljwt.Operator{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("parse operator token: %w", err),
		}
	}

	return internaljwt.OperatorFromClaims(claims), nil
}

func conversationMetadata(conversation model.ConversationItem) dto.ConversationMetadata {
	return dto.ConversationMetadata{
		ConversationID: conversation.ConversationID,
		AgentID:        conversation.AgentID,
		VisitorID:      conversation.VisitorID,
		VisitorName:    conversation.VisitorName,
		VisitorEmail:   conversation.VisitorEmail,
		Status:         string(conversation.Status),
		TakenOverBy:    conversation.TakenOverBy,
		StartedAt:      conversation.StartedAt,
		UpdatedAt:      conversation.UpdatedAt,
		LastMessageAt:  conversation.LastMessageAt,
	}
}

func messageResponse(message model.MessageItem) dto.MessageResponse {
	return dto.MessageResponse{
		MessageID:      message.MessageID,
		ConversationID: message.ConversationID,
		Role:           string(message.Role),
		SenderID:       message.SenderID,
		Body:           message.Body,
		CreatedAt:      message.CreatedAt,
	}
}
