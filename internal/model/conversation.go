package model

import "fmt"

type ConversationStatus string

const (
	ConversationStatusActive        ConversationStatus = "active"
	ConversationStatusHumanTakeover ConversationStatus = "human_takeover"
	ConversationStatusResolved      ConversationStatus = "resolved"
)

type MessageRole string

const (
	MessageRoleVisitor MessageRole = "visitor"
	MessageRoleAgent   MessageRole = "agent"
)

func ConversationPK(agentID, conversationID string) string {
	return fmt.Sprintf("%s#%s", agentID, conversationID)
}

func MessagePK(conversationID, messageID string) string {
	return fmt.Sprintf("%s#%s", conversationID, messageID)
}

func VisitorPK(agentID, visitorID string) string {
	return fmt.Sprintf("%s#%s", agentID, visitorID)
}

type ConversationItem struct {
	PK             string             `dynamodbav:"pk"`
	VisitorPK      string             `dynamodbav:"visitorPk"`
	ConversationID string             `dynamodbav:"conversationId"`
	AgentID        string             `dynamodbav:"agentId"`
	TenantID       string             `dynamodbav:"tenantId"`
	VisitorID      string             `dynamodbav:"visitorId"`
	VisitorName    string             `dynamodbav:"visitorName,omitempty"`
	VisitorEmail   string             `dynamodbav:"visitorEmail,omitempty"`
	Status         ConversationStatus `dynamodbav:"status"`
	TakenOverBy    string             `dynamodbav:"takenOverBy,omitempty"`
	StartedAt      string             `dynamodbav:"startedAt"`
	UpdatedAt      string             `dynamodbav:"updatedAt"`
	LastMessageAt  string             `dynamodbav:"lastMessageAt"`
}

type MessageItem struct {
	PK             string      `dynamodbav:"pk"`
	AgentID        string      `dynamodbav:"agentId"`
	ConversationID string      `dynamodbav:"conversationId"`
	MessageID      string      `dynamodbav:"messageId"`
	Role           MessageRole `dynamodbav:"role"`
	SenderID       string      `dynamodbav:"senderId,omitempty"`
	Body           string      `dynamodbav:"body"`
	CreatedAt      string      `dynamodbav:"createdAt"`
}

type VisitorItem struct {
	PK         string `dynamodbav:"pk"`
	AgentID    string `dynamodbav:"agentId"`
	VisitorID  string `dynamodbav:"visitorId"`
	Name       string `dynamodbav:"name,omitempty"`
	Email      string `dynamodbav:"email,omitempty"`
	CreatedAt  string `dynamodbav:"createdAt"`
	LastSeenAt string `dynamodbav:"lastSeenAt"`
}
