package widget

import "context"

// Backend is the engine's view of the widget API. The engine never interprets
// transport errors beyond the deterministic fallbacks: a failed config fetch
// means out-of-service, a failed history fetch means an empty history, and a
// failed send surfaces as a generic failure message.
type Backend interface {
	// FetchConfig loads the agent's public configuration.
	FetchConfig(ctx context.Context, agentID string) (Config, error)

	// FetchHistory returns the visitor's conversation, oldest first. An
	// empty slice is a valid fresh conversation.
	FetchHistory(ctx context.Context, agentID, visitorID string) ([]Message, error)

	// Send dispatches one visitor message and reports the in-band outcome.
	Send(ctx context.Context, agentID string, req SendRequest) (SendResult, error)
}
