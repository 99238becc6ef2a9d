package model

import "fmt"

const (
	AgentsTable        = "Agents"
	ConversationsTable = "PublicConversations"
	MessagesTable      = "PublicMessages"
	VisitorsTable      = "Visitors"
	CreditsTable       = "Credits"
	UsageLogsTable     = "UsageLogs"
	AppSettingsTable   = "AppSettings"
)

type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusPaused   AgentStatus = "paused"
	AgentStatusDraft    AgentStatus = "draft"
	AgentStatusArchived AgentStatus = "archived"
)

type AgentItem struct {
	AgentID            string      `dynamodbav:"agentId"`
	TenantID           string      `dynamodbav:"tenantId"`
	Name               string      `dynamodbav:"name"`
	AvatarURL          string      `dynamodbav:"avatarUrl,omitempty"`
	WidgetColor        string      `dynamodbav:"widgetColor,omitempty"`
	WelcomeMessage     string      `dynamodbav:"welcomeMessage,omitempty"`
	SystemPrompt       string      `dynamodbav:"systemPrompt,omitempty"`
	RequireVisitorInfo bool        `dynamodbav:"requireVisitorInfo"`
	FallbackMessage    string      `dynamodbav:"fallbackMessage,omitempty"`
	FallbackEmail      string      `dynamodbav:"fallbackEmail,omitempty"`
	Status             AgentStatus `dynamodbav:"status"`
	CreatedAt          string      `dynamodbav:"createdAt"`
	UpdatedAt          string      `dynamodbav:"updatedAt"`
}

type CreditsItem struct {
	TenantID string `dynamodbav:"tenantId"`
	Balance  int    `dynamodbav:"balance"`
}

type UsageLogItem struct {
	LogID       string `dynamodbav:"logId"`
	TenantID    string `dynamodbav:"tenantId"`
	Amount      int    `dynamodbav:"amount"`
	Description string `dynamodbav:"description"`
	CreatedAt   string `dynamodbav:"createdAt"`
}

type AppSettingItem struct {
	Name  string `dynamodbav:"name"`
	Value string `dynamodbav:"value"`
}

func AgentScopedPK(agentID, entityID string) string {
	return fmt.Sprintf("%s#%s", agentID, entityID)
}
