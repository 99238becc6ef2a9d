package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"agent-widget-platform/internal/database"
	"agent-widget-platform/internal/model"
)

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
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

// WidgetConfig is the public-facing snapshot of one agent that the embedded
// widget fetches on every mount.
type WidgetConfig struct {
	AgentID            string
	Name               string
	AvatarURL          string
	WidgetColor        string
	WelcomeMessage     string
	RequireVisitorInfo bool
	FallbackMessage    string
	FallbackEmail      string
	Status             model.AgentStatus
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func New(db *database.Database) *Service {
	return &Service{
		repo: NewDynamoRepository(db),
		now:  time.Now,
	}
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo: repo,
		now:  now,
	}
}

// WidgetConfig loads the public configuration for an agent. The caller maps
// not_found to a failed mount; the widget then fails closed into its
// out-of-service state.
func (s *Service) WidgetConfig(ctx context.Context, agentID string) (WidgetConfig, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return WidgetConfig{}, newError(ErrorCodeValidation, "agentId is required", nil)
	}

	item, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return WidgetConfig{}, newError(ErrorCodeNotFound, "agent not found", err)
		}
		return WidgetConfig{}, newError(ErrorCodeInternal, "failed to load agent", err)
	}

	return WidgetConfig{
		AgentID:            item.AgentID,
		Name:               item.Name,
		AvatarURL:          item.AvatarURL,
		WidgetColor:        item.WidgetColor,
		WelcomeMessage:     item.WelcomeMessage,
		RequireVisitorInfo: item.RequireVisitorInfo,
		FallbackMessage:    item.FallbackMessage,
		FallbackEmail:      item.FallbackEmail,
		Status:             item.Status,
	}, nil
}
