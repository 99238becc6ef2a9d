package dto

type ConversationMetadata struct {
	ConversationID string `json:"conversationId"`
	AgentID        string `json:"agentId"`
	VisitorID      string `json:"visitorId"`
	VisitorName    string `json:"visitorName,omitempty"`
	VisitorEmail   string `json:"visitorEmail,omitempty"`
	Status         string `json:"status"`
	TakenOverBy    string `json:"takenOverBy,omitempty"`
	StartedAt      string `json:"startedAt"`
	UpdatedAt      string `json:"updatedAt"`
	LastMessageAt  string `json:"lastMessageAt"`
}

type MessageResponse struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Role           string `json:"role"`
	SenderID       string `json:"senderId,omitempty"`
	Body           string `json:"body"`
	CreatedAt      string `json:"createdAt"`
}

type ConversationActionRequest struct {
	AgentID        string `json:"agentId"`
	ConversationID string `json:"conversationId"`
}

type OperatorReplyRequest struct {
	AgentID        string `json:"agentId"`
	ConversationID string `json:"conversationId"`
	Body           string `json:"body"`
}

type OperatorReplyResponse struct {
	Conversation ConversationMetadata `json:"conversation"`
	Message      MessageResponse      `json:"message"`
}

type ConversationResponse struct {
	Conversation ConversationMetadata `json:"conversation"`
}

type ListMessagesResponse struct {
	ConversationID string            `json:"conversationId"`
	Messages       []MessageResponse `json:"messages"`
}
