package websocket

type Room struct {
	Id      string               `json:"id"`
	Clients map[string]*WSClient `json:"clients"`
}

type WSMessage struct {
	Content   string `json:"content"`
	RoomID    string `json:"roomId"`
	Timestamp int64  `json:"timestamp"`
}

// NotificationEvent is the payload fanned out to dashboard operators when a
// conversation changes. Rooms are keyed by agent ID, one per configured agent.
type NotificationEvent struct {
	Type           string `json:"type"`
	AgentID        string `json:"agentId"`
	ConversationID string `json:"conversationId"`
	VisitorID      string `json:"visitorId,omitempty"`
	Role           string `json:"role,omitempty"`
	Body           string `json:"body,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

const (
	EventVisitorMessage       = "visitor_message"
	EventOperatorMessage      = "operator_message"
	EventConversationTakeover = "conversation_takeover"
	EventConversationResolved = "conversation_resolved"
)

type RoomRes struct {
	ID string `json:"id"`
}
