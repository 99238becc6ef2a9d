package widget

import "time"

// Phase is the widget lifecycle state.
type Phase string

const (
	PhaseCollapsed    Phase = "collapsed"
	PhasePreChat      Phase = "pre-chat"
	PhaseActive       Phase = "active"
	PhaseOutOfService Phase = "out-of-service"
)

type Role string

const (
	RoleVisitor Role = "visitor"
	RoleAgent   Role = "agent"
)

type Message struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Config is the agent snapshot fetched on open.
type Config struct {
	Status             string
	Name               string
	AvatarURL          string
	Color              string
	WelcomeMessage     string
	RequireVisitorInfo bool
	FallbackMessage    string
	FallbackEmail      string
}

// Active reports whether the agent is answering. Anything but an explicit
// active status fails closed.
func (c Config) Active() bool {
	return c.Status == "active"
}

type VisitorInfo struct {
	Name  string
	Email string
}

type SendStatus string

const (
	SendSuccess       SendStatus = "success"
	SendHumanTakeover SendStatus = "human_takeover"
	SendOutOfService  SendStatus = "out_of_service"
	SendError         SendStatus = "error"
)

type SendRequest struct {
	VisitorID   string
	Message     string
	VisitorInfo VisitorInfo
}

type SendResult struct {
	Status       SendStatus
	ResponseText string
}
