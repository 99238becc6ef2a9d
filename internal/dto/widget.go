package dto

type AgentPublicProfile struct {
	Name               string `json:"name"`
	AvatarURL          string `json:"avatarUrl,omitempty"`
	Color              string `json:"color,omitempty"`
	WelcomeMessage     string `json:"welcomeMessage,omitempty"`
	RequireVisitorInfo bool   `json:"requireVisitorInfo"`
	FallbackMessage    string `json:"fallbackMessage,omitempty"`
	FallbackEmail      string `json:"fallbackEmail,omitempty"`
}

type WidgetConfigResponse struct {
	Status string             `json:"status"`
	Agent  AgentPublicProfile `json:"agent"`
}

type WidgetMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

type HistoryResponse struct {
	Messages []WidgetMessage `json:"messages"`
}

type VisitorInfoPayload struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type SendMessageRequest struct {
	AgentID     string             `json:"agentId"`
	VisitorID   string             `json:"visitorId"`
	Message     string             `json:"message"`
	VisitorInfo VisitorInfoPayload `json:"visitorInfo,omitempty"`
}

type SendMessageResponse struct {
	Status         string `json:"status"`
	ResponseText   string `json:"responseText,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}
