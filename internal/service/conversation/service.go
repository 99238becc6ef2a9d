package conversation

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"agent-widget-platform/internal/database"
	"agent-widget-platform/internal/model"
	"agent-widget-platform/internal/responder"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
	ErrorCodeConflict   ErrorCode = "conflict"
	ErrorCodeInternal   ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// DispatchStatus is the in-band outcome of a visitor send. Everything past
// request validation is reported through it rather than as a transport error,
// so the widget can render a deterministic fallback instead of surfacing a
// raw failure.
type DispatchStatus string

const (
	DispatchSuccess       DispatchStatus = "success"
	DispatchHumanTakeover DispatchStatus = "human_takeover"
	DispatchOutOfService  DispatchStatus = "out_of_service"
	DispatchError         DispatchStatus = "error"
)

const (
	defaultFallbackMessage = "Our agent is currently unavailable. Please try again later."
	usageDescriptionReply  = "agent reply"
)

type SendVisitorMessageParams struct {
	AgentID      string
	VisitorID    string
	Message      string
	VisitorName  string
	VisitorEmail string
}

type DispatchResult struct {
	Status         DispatchStatus
	ResponseText   string
	ConversationID string
}

type HistoryResult struct {
	Conversation model.ConversationItem
	Messages     []model.MessageItem
}

type MessageResult struct {
	Conversation model.ConversationItem
	Message      model.MessageItem
}

type Service struct {
	repo      Repository
	responder responder.Responder
	now       func() time.Time
}

func New(db *database.Database, r responder.Responder) *Service {
	return &Service{
		repo:      NewDynamoRepository(db),
		responder: r,
		now:       time.Now,
	}
}

func NewWithRepository(repo Repository, r responder.Responder, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      repo,
		responder: r,
		now:       now,
	}
}

// SendVisitorMessage runs the widget dispatch pipeline. The visitor message
// is persisted before the responder is consulted, so a downstream failure
// never loses what the visitor typed.
func (s *Service) SendVisitorMessage(ctx context.Context, params SendVisitorMessageParams) (DispatchResult, error) {
	agentID := strings.TrimSpace(params.AgentID)
	visitorID := strings.TrimSpace(params.VisitorID)
	body := strings.TrimSpace(params.Message)

	if agentID == "" {
		return DispatchResult{}, newError(ErrorCodeValidation, "agentId is required", nil)
	}
	if visitorID == "" {
		return DispatchResult{}, newError(ErrorCodeValidation, "visitorId is required", nil)
	}
	if body == "" {
		return DispatchResult{}, newError(ErrorCodeValidation, "message body is required", nil)
	}

	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DispatchResult{}, newError(ErrorCodeNotFound, "agent not found", err)
		}
		return DispatchResult{}, newError(ErrorCodeInternal, "failed to load agent", err)
	}

	if agent.Status != model.AgentStatusActive {
		return DispatchResult{
			Status:       DispatchOutOfService,
			ResponseText: fallbackText(agent),
		}, nil
	}

	// An exhausted balance pauses the agent so the config endpoint reports it
	// unavailable on the widget's next mount. A failed credit lookup must not
	// block the visitor.
	if credits, err := s.repo.GetCredits(ctx, agent.TenantID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("conversation: credit lookup for tenant %s failed: %v", agent.TenantID, err)
		}
	} else if credits.Balance < 1 {
		nowStr := s.now().UTC().Format(time.RFC3339)
		if err := s.repo.UpdateAgentStatus(ctx, agent.AgentID, model.AgentStatusPaused, nowStr); err != nil {
			log.Printf("conversation: auto-pause of agent %s failed: %v", agent.AgentID, err)
		}
		return DispatchResult{
			Status:       DispatchOutOfService,
			ResponseText: fallbackText(agent),
		}, nil
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)

	conversation, err := s.repo.LatestConversation(ctx, agent.AgentID, visitorID)
	switch {
	case err == nil && conversation.Status != model.ConversationStatusResolved:
		// continue in the existing conversation
	case err == nil || errors.Is(err, ErrNotFound):
		conversation, err = s.startConversation(ctx, agent, visitorID, params.VisitorName, params.VisitorEmail, nowStr)
		if err != nil {
			return dispatchFailure(""), nil
		}
	default:
		return dispatchFailure(""), nil
	}

	visitorMessageID := uuid.NewString()
	visitorMessage := model.MessageItem{
		PK:             model.MessagePK(conversation.ConversationID, visitorMessageID),
		AgentID:        agent.AgentID,
		ConversationID: conversation.ConversationID,
		MessageID:      visitorMessageID,
		Role:           model.MessageRoleVisitor,
		SenderID:       visitorID,
		Body:           body,
		CreatedAt:      nowStr,
	}
	if err := s.repo.CreateMessage(ctx, visitorMessage); err != nil {
		return dispatchFailure(""), nil
	}

	if err := s.repo.UpdateConversationActivity(ctx, agent.AgentID, conversation.ConversationID, nowStr, nowStr); err != nil {
		log.Printf("conversation: activity update for %s failed: %v", conversation.ConversationID, err)
	}

	// A human owns the conversation; the operator's reply reaches the widget
	// through its history polling, not through this call.
	if conversation.Status == model.ConversationStatusHumanTakeover {
		return DispatchResult{
			Status:         DispatchHumanTakeover,
			ConversationID: conversation.ConversationID,
		}, nil
	}

	reply, err := s.responder.Reply(ctx, responder.ReplyRequest{
		SessionID:    conversation.ConversationID,
		AgentName:    agent.Name,
		Message:      body,
		SystemPrompt: agent.SystemPrompt,
	})
	if err != nil {
		log.Printf("conversation: responder call for %s failed: %v", conversation.ConversationID, err)
		return dispatchFailure(conversation.ConversationID), nil
	}

	replyStr := s.now().UTC().Format(time.RFC3339)
	assistantMessageID := uuid.NewString()
	assistantMessage := model.MessageItem{
		PK:             model.MessagePK(conversation.ConversationID, assistantMessageID),
		AgentID:        agent.AgentID,
		ConversationID: conversation.ConversationID,
		MessageID:      assistantMessageID,
		Role:           model.MessageRoleAgent,
		SenderID:       agent.AgentID,
		Body:           reply,
		CreatedAt:      replyStr,
	}
	if err := s.repo.CreateMessage(ctx, assistantMessage); err != nil {
		return dispatchFailure(conversation.ConversationID), nil
	}

	if err := s.repo.UpdateConversationActivity(ctx, agent.AgentID, conversation.ConversationID, replyStr, replyStr); err != nil {
		log.Printf("conversation: activity update for %s failed: %v", conversation.ConversationID, err)
	}

	usage := model.UsageLogItem{
		LogID:       uuid.NewString(),
		TenantID:    agent.TenantID,
		Amount:      1,
		Description: usageDescriptionReply,
		CreatedAt:   replyStr,
	}
	if err := s.repo.CreateUsageLog(ctx, usage); err != nil {
		log.Printf("conversation: usage log for tenant %s failed: %v", agent.TenantID, err)
	}

	return DispatchResult{
		Status:         DispatchSuccess,
		ResponseText:   reply,
		ConversationID: conversation.ConversationID,
	}, nil
}

func (s *Service) startConversation(ctx context.Context, agent model.AgentItem, visitorID, visitorName, visitorEmail, nowStr string) (model.ConversationItem, error) {
	visitor := model.VisitorItem{
		PK:         model.VisitorPK(agent.AgentID, visitorID),
		AgentID:    agent.AgentID,
		VisitorID:  visitorID,
		Name:       strings.TrimSpace(visitorName),
		Email:      strings.ToLower(strings.TrimSpace(visitorEmail)),
		CreatedAt:  nowStr,
		LastSeenAt: nowStr,
	}
	if existing, err := s.repo.GetVisitor(ctx, agent.AgentID, visitorID); err == nil {
		if visitor.Name == "" {
			visitor.Name = existing.Name
		}
		if visitor.Email == "" {
			visitor.Email = existing.Email
		}
		visitor.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, ErrNotFound) {
		return model.ConversationItem{}, err
	}
	if err := s.repo.PutVisitor(ctx, visitor); err != nil {
		return model.ConversationItem{}, err
	}

	conversationID := uuid.NewString()
	conversation := model.ConversationItem{
		PK:             model.ConversationPK(agent.AgentID, conversationID),
		VisitorPK:      model.VisitorPK(agent.AgentID, visitorID),
		ConversationID: conversationID,
		AgentID:        agent.AgentID,
		TenantID:       agent.TenantID,
		VisitorID:      visitorID,
		VisitorName:    visitor.Name,
		VisitorEmail:   visitor.Email,
		Status:         model.ConversationStatusActive,
		StartedAt:      nowStr,
		UpdatedAt:      nowStr,
		LastMessageAt:  nowStr,
	}
	if err := s.repo.CreateConversation(ctx, conversation); err != nil {
		return model.ConversationItem{}, err
	}
	return conversation, nil
}

// History returns the latest conversation for the visitor with its messages
// oldest first. No conversation yet is not an error; the widget treats the
// empty history as a fresh session.
func (s *Service) History(ctx context.Context, agentID, visitorID string) (HistoryResult, error) {
	agentID = strings.TrimSpace(agentID)
	visitorID = strings.TrimSpace(visitorID)
	if agentID == "" {
		return HistoryResult{}, newError(ErrorCodeValidation, "agentId is required", nil)
	}
	if visitorID == "" {
		return HistoryResult{}, newError(ErrorCodeValidation, "visitorId is required", nil)
	}

	conversation, err := s.repo.LatestConversation(ctx, agentID, visitorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return HistoryResult{Messages: []model.MessageItem{}}, nil
		}
		return HistoryResult{}, newError(ErrorCodeInternal, "failed to load conversation", err)
	}

	messages, err := s.repo.ListMessages(ctx, agentID, conversation.ConversationID, 0)
	if err != nil {
		return HistoryResult{}, newError(ErrorCodeInternal, "failed to load messages", err)
	}

	return HistoryResult{
		Conversation: conversation,
		Messages:     messages,
	}, nil
}

// TakeOver hands the conversation to a human operator. Subsequent visitor
// sends short-circuit before the responder until the conversation is
// resolved.
func (s *Service) TakeOver(ctx context.Context, agentID, conversationID, operatorID string) (model.ConversationItem, error) {
	conversation, err := s.getConversation(ctx, agentID, conversationID)
	if err != nil {
		return model.ConversationItem{}, err
	}
	if conversation.Status == model.ConversationStatusResolved {
		return model.ConversationItem{}, newError(ErrorCodeConflict, "conversation is resolved", nil)
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	if err := s.repo.UpdateConversationStatus(ctx, agentID, conversationID, model.ConversationStatusHumanTakeover, operatorID, nowStr); err != nil {
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to update conversation", err)
	}

	conversation.Status = model.ConversationStatusHumanTakeover
	conversation.TakenOverBy = operatorID
	conversation.UpdatedAt = nowStr
	return conversation, nil
}

// PostOperatorMessage stores a human reply. Posting implies takeover when the
// conversation is still bot-owned.
func (s *Service) PostOperatorMessage(ctx context.Context, agentID, conversationID, operatorID, body string) (MessageResult, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "message body is required", nil)
	}

	conversation, err := s.getConversation(ctx, agentID, conversationID)
	if err != nil {
		return MessageResult{}, err
	}
	if conversation.Status == model.ConversationStatusResolved {
		return MessageResult{}, newError(ErrorCodeConflict, "conversation is resolved", nil)
	}

	nowStr := s.now().UTC().Format(time.RFC3339)

	if conversation.Status != model.ConversationStatusHumanTakeover {
		if err := s.repo.UpdateConversationStatus(ctx, agentID, conversationID, model.ConversationStatusHumanTakeover, operatorID, nowStr); err != nil {
			return MessageResult{}, newError(ErrorCodeInternal, "failed to update conversation", err)
		}
		conversation.Status = model.ConversationStatusHumanTakeover
		conversation.TakenOverBy = operatorID
	}

	messageID := uuid.NewString()
	message := model.MessageItem{
		PK:             model.MessagePK(conversationID, messageID),
		AgentID:        agentID,
		ConversationID: conversationID,
		MessageID:      messageID,
		Role:           model.MessageRoleAgent,
		SenderID:       operatorID,
		Body:           body,
		CreatedAt:      nowStr,
	}
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return MessageResult{}, newError(ErrorCodeInternal, "failed to store message", err)
	}

	if err := s.repo.UpdateConversationActivity(ctx, agentID, conversationID, nowStr, nowStr); err != nil {
		return MessageResult{}, newError(ErrorCodeInternal, "failed to update conversation", err)
	}

	conversation.UpdatedAt = nowStr
	conversation.LastMessageAt = nowStr
	return MessageResult{
		Conversation: conversation,
		Message:      message,
	}, nil
}

// Resolve closes the conversation. The visitor's next message starts a fresh
// one.
func (s *Service) Resolve(ctx context.Context, agentID, conversationID string) (model.ConversationItem, error) {
	conversation, err := s.getConversation(ctx, agentID, conversationID)
	if err != nil {
		return model.ConversationItem{}, err
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	if err := s.repo.UpdateConversationStatus(ctx, agentID, conversationID, model.ConversationStatusResolved, "", nowStr); err != nil {
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to update conversation", err)
	}

	conversation.Status = model.ConversationStatusResolved
	conversation.UpdatedAt = nowStr
	return conversation, nil
}

func (s *Service) ListMessages(ctx context.Context, agentID, conversationID string, limit int) ([]model.MessageItem, error) {
	if _, err := s.getConversation(ctx, agentID, conversationID); err != nil {
		return nil, err
	}
	messages, err := s.repo.ListMessages(ctx, agentID, conversationID, limit)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to load messages", err)
	}
	return messages, nil
}

func (s *Service) getConversation(ctx context.Context, agentID, conversationID string) (model.ConversationItem, error) {
	agentID = strings.TrimSpace(agentID)
	conversationID = strings.TrimSpace(conversationID)
	if agentID == "" || conversationID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "agentId and conversationId are required", nil)
	}
	conversation, err := s.repo.GetConversation(ctx, agentID, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to load conversation", err)
	}
	return conversation, nil
}

func fallbackText(agent model.AgentItem) string {
	if msg := strings.TrimSpace(agent.FallbackMessage); msg != "" {
		return msg
	}
	return defaultFallbackMessage
}

// The widget renders its own interface-language failure message on status
// error, so no response text travels with it.
func dispatchFailure(conversationID string) DispatchResult {
	return DispatchResult{
		Status:         DispatchError,
		ConversationID: conversationID,
	}
}
