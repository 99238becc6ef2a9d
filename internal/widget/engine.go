package widget

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultPollInterval balances perceived latency of human-takeover
	// replies against request volume.
	DefaultPollInterval = 3 * time.Second

	// DefaultHistoryLimit caps the locally retained message list. The
	// server stays authoritative for the full log.
	DefaultHistoryLimit = 500

	defaultFailureMessage = "Sorry, something went wrong. Please try again."
)

var (
	ErrNotActive           = errors.New("widget: conversation is not active")
	ErrSendInFlight        = errors.New("widget: a send is already in flight")
	ErrVisitorInfoRequired = errors.New("widget: name and email are required")
	ErrNotOpen             = errors.New("widget: widget is not open")
)

type Options struct {
	AgentID  string
	Backend  Backend
	Identity *IdentityStore

	// PollInterval is the takeover-detection cadence. Zero selects
	// DefaultPollInterval.
	PollInterval time.Duration

	// FailureMessage is the assistant-role text appended when a send fails.
	// Zero selects the English default.
	FailureMessage string

	// HistoryLimit caps the local message list. Zero selects
	// DefaultHistoryLimit.
	HistoryLimit int

	Logger *slog.Logger

	// OnChange fires after every observable state change, outside the
	// engine lock.
	OnChange func()
}

// Engine drives one widget conversation: identity, pre-chat gating, the
// optimistic message list, and polling reconciliation against a backend that
// a human operator may be writing to concurrently.
type Engine struct {
	mu sync.Mutex

	agentID        string
	backend        Backend
	identity       *IdentityStore
	pollInterval   time.Duration
	failureMessage string
	historyLimit   int
	logger         *slog.Logger
	onChange       func()

	phase        Phase
	config       Config
	configLoaded bool
	visitorID    string
	visitorInfo  VisitorInfo
	messages     []Message
	sendInFlight bool
	reviewing    bool
	poller       *poller
}

func NewEngine(opts Options) *Engine {
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	failureMessage := opts.FailureMessage
	if failureMessage == "" {
		failureMessage = defaultFailureMessage
	}
	historyLimit := opts.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	identity := opts.Identity
	if identity == nil {
		identity = NewIdentityStore("")
	}

	return &Engine{
		agentID:        opts.AgentID,
		backend:        opts.Backend,
		identity:       identity,
		pollInterval:   pollInterval,
		failureMessage: failureMessage,
		historyLimit:   historyLimit,
		logger:         logger,
		onChange:       opts.OnChange,
		phase:          PhaseCollapsed,
	}
}

// Open resolves the initial phase: config unavailable or inactive means
// out-of-service, existing history means active, otherwise pre-chat. Opening
// an already open widget is a no-op.
func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	if e.phase != PhaseCollapsed {
		e.mu.Unlock()
		return nil
	}
	visitorID := e.identity.GetOrCreate()
	e.visitorID = visitorID
	e.mu.Unlock()

	config, err := e.backend.FetchConfig(ctx, e.agentID)
	if err != nil || !config.Active() {
		if err != nil {
			e.logger.Warn("widget config fetch failed", "agentId", e.agentID, "error", err)
		}
		e.mu.Lock()
		if err == nil {
			e.config = config
			e.configLoaded = true
		}
		e.phase = PhaseOutOfService
		e.mu.Unlock()
		e.notify()
		return nil
	}

	history, err := e.backend.FetchHistory(ctx, e.agentID, visitorID)
	if err != nil {
		// Equivalent to a fresh conversation.
		e.logger.Warn("widget history fetch failed", "agentId", e.agentID, "error", err)
		history = nil
	}

	e.mu.Lock()
	e.config = config
	e.configLoaded = true
	if len(history) > 0 {
		e.messages = capMessages(history, e.historyLimit)
		e.phase = PhaseActive
		e.startPollerLocked()
	} else {
		e.phase = PhasePreChat
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// SubmitVisitorInfo completes the pre-chat form. When the configuration
// marks visitor info mandatory, empty name or email blocks the transition
// and no network call is made.
func (e *Engine) SubmitVisitorInfo(name, email string) error {
	e.mu.Lock()
	if e.phase != PhasePreChat {
		e.mu.Unlock()
		return ErrNotOpen
	}
	if e.config.RequireVisitorInfo && (name == "" || email == "") {
		e.mu.Unlock()
		return ErrVisitorInfoRequired
	}
	e.visitorInfo = VisitorInfo{Name: name, Email: email}
	e.phase = PhaseActive
	e.startPollerLocked()
	e.mu.Unlock()
	e.notify()
	return nil
}

// Send appends the visitor's message locally before dispatching it, so the
// visitor never sees their own message disappear while the reply is pending.
// Only one send may be in flight at a time.
func (e *Engine) Send(ctx context.Context, text string) error {
	e.mu.Lock()
	if e.phase != PhaseActive {
		e.mu.Unlock()
		return ErrNotActive
	}
	if e.sendInFlight {
		e.mu.Unlock()
		return ErrSendInFlight
	}
	e.sendInFlight = true
	e.appendLocked(Message{
		Role:      RoleVisitor,
		Content:   text,
		CreatedAt: time.Now(),
	})
	visitorID := e.visitorID
	visitorInfo := e.visitorInfo
	e.mu.Unlock()
	e.notify()

	result, err := e.backend.Send(ctx, e.agentID, SendRequest{
		VisitorID:   visitorID,
		Message:     text,
		VisitorInfo: visitorInfo,
	})
	if err != nil {
		e.logger.Warn("widget send failed", "agentId", e.agentID, "error", err)
		result = SendResult{Status: SendError}
	}

	e.mu.Lock()
	e.sendInFlight = false
	switch result.Status {
	case SendSuccess:
		if result.ResponseText != "" {
			e.appendLocked(Message{
				Role:      RoleAgent,
				Content:   result.ResponseText,
				CreatedAt: time.Now(),
			})
		}
	case SendHumanTakeover:
		// The operator's reply surfaces through the next poll.
	case SendOutOfService:
		if result.ResponseText != "" {
			e.appendLocked(Message{
				Role:      RoleAgent,
				Content:   result.ResponseText,
				CreatedAt: time.Now(),
			})
		}
		e.phase = PhaseOutOfService
		e.stopPollerLocked()
	default:
		e.appendLocked(Message{
			Role:      RoleAgent,
			Content:   e.failureMessage,
			CreatedAt: time.Now(),
		})
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// Review switches an out-of-service widget to a read-only view of the past
// messages. The transition is one-way and never re-enables sending.
func (e *Engine) Review() error {
	e.mu.Lock()
	if e.phase != PhaseOutOfService || len(e.messages) == 0 {
		e.mu.Unlock()
		return ErrNotOpen
	}
	e.reviewing = true
	e.mu.Unlock()
	e.notify()
	return nil
}

// Close collapses the widget. In-memory history survives; only the poller is
// torn down.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.phase == PhaseCollapsed {
		e.mu.Unlock()
		return
	}
	e.phase = PhaseCollapsed
	e.reviewing = false
	e.stopPollerLocked()
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) Config() (Config, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config, e.configLoaded
}

func (e *Engine) VisitorID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visitorID
}

func (e *Engine) Reviewing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reviewing
}

func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// applyHistory reconciles a poll result. The server is authoritative but
// message identity is not stable across polls, so a longer sequence replaces
// the local list wholesale; anything else is a no-op. This also protects a
// newer optimistic append from a slow, stale poll response.
func (e *Engine) applyHistory(incoming []Message) {
	e.mu.Lock()
	if e.phase != PhaseActive || len(incoming) <= len(e.messages) {
		e.mu.Unlock()
		return
	}
	e.messages = capMessages(incoming, e.historyLimit)
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) appendLocked(msg Message) {
	e.messages = append(e.messages, msg)
	e.messages = capMessages(e.messages, e.historyLimit)
}

func (e *Engine) startPollerLocked() {
	if e.poller != nil {
		return
	}
	e.poller = newPoller(e)
}

func (e *Engine) stopPollerLocked() {
	if e.poller == nil {
		return
	}
	e.poller.stop()
	e.poller = nil
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange()
	}
}

func capMessages(messages []Message, limit int) []Message {
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages
}
