package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"agent-widget-platform/internal/dto"
	agentservice "agent-widget-platform/internal/service/agent"
	conversationservice "agent-widget-platform/internal/service/conversation"
	"agent-widget-platform/internal/websocket"
)

type WidgetEndpoints interface {
	Config(http.ResponseWriter, *http.Request) error
	History(http.ResponseWriter, *http.Request) error
	Messages(http.ResponseWriter, *http.Request) error
}

type widgetEndpoints struct {
	agents        *agentservice.Service
	conversations *conversationservice.Service
	notifier      *websocket.Handler
}

// NewWidgetEndpoints wires the public widget surface. notifier may be nil
// when the process runs without a dashboard stream.
func NewWidgetEndpoints(agents *agentservice.Service, conversations *conversationservice.Service, notifier *websocket.Handler) WidgetEndpoints {
	return &widgetEndpoints{
		agents:        agents,
		conversations: conversations,
		notifier:      notifier,
	}
}

func (h *widgetEndpoints) Config(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleConfig,
	})
}

func (h *widgetEndpoints) History(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleHistory,
	})
}

func (h *widgetEndpoints) Messages(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleSendMessage,
	})
}

func (h *widgetEndpoints) handleConfig(w http.ResponseWriter, r *http.Request) error {
	agentID := r.URL.Query().Get("agentId")

	config, err := h.agents.WidgetConfig(r.Context(), agentID)
	if err != nil {
		return mapAgentServiceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.WidgetConfigResponse{
		Status: string(config.Status),
		Agent: dto.AgentPublicProfile{
			Name:               config.Name,
			AvatarURL:          config.AvatarURL,
			Color:              config.WidgetColor,
			WelcomeMessage:     config.WelcomeMessage,
			RequireVisitorInfo: config.RequireVisitorInfo,
			FallbackMessage:    config.FallbackMessage,
			FallbackEmail:      config.FallbackEmail,
		},
	})
}

func (h *widgetEndpoints) handleHistory(w http.ResponseWriter, r *http.Request) error {
	agentID := r.URL.Query().Get("agentId")
	visitorID := r.URL.Query().Get("visitorId")

	history, err := h.conversations.History(r.Context(), agentID, visitorID)
	if err != nil {
		return mapConversationServiceError(err)
	}

	messages := make([]dto.WidgetMessage, 0, len(history.Messages))
	for _, msg := range history.Messages {
		messages = append(messages, dto.WidgetMessage{
			Role:      string(msg.Role),
			Content:   msg.Body,
			CreatedAt: msg.CreatedAt,
		})
	}

	return WriteJSON(w, http.StatusOK, dto.HistoryResponse{Messages: messages})
}

func (h *widgetEndpoints) handleSendMessage(w http.ResponseWriter, r *http.Request) error {
	var req dto.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode send message request: %w", err),
		}
	}

	result, err := h.conversations.SendVisitorMessage(r.Context(), conversationservice.SendVisitorMessageParams{
		AgentID:      req.AgentID,
		VisitorID:    req.VisitorID,
		Message:      req.Message,
		VisitorName:  req.VisitorInfo.Name,
		VisitorEmail: req.VisitorInfo.Email,
	})
	if err != nil {
		return mapConversationServiceError(err)
	}

	if h.notifier != nil && result.ConversationID != "" {
		h.notifier.EnsureRoom(req.AgentID)
		h.notifier.NotifyRoom(req.AgentID, websocket.NotificationEvent{
			Type:           websocket.EventVisitorMessage,
			AgentID:        req.AgentID,
			ConversationID: result.ConversationID,
			VisitorID:      req.VisitorID,
			Role:           "visitor",
			Body:           req.Message,
		})
	}

	return WriteJSON(w, http.StatusOK, dto.SendMessageResponse{
		Status:         string(result.Status),
		ResponseText:   result.ResponseText,
		ConversationID: result.ConversationID,
	})
}

func mapAgentServiceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*agentservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("agent service: %w", err),
		}
	}

	var errorLog error
	if svcErr.Err != nil {
		errorLog = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		errorLog = svcErr
	}

	switch svcErr.Code {
	case agentservice.ErrorCodeValidation:
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    svcErr.Message,
			ErrorLog:   errorLog,
		}
	case agentservice.ErrorCodeNotFound:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    svcErr.Message,
			ErrorLog:   errorLog,
		}
	default:
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   errorLog,
		}
	}
}

func mapConversationServiceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*conversationservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("conversation service: %w", err),
		}
	}

	var errorLog error
	if svcErr.Err != nil {
		errorLog = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		errorLog = svcErr
	}

	switch svcErr.Code {
	case conversationservice.ErrorCodeValidation:
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    svcErr.Message,
			ErrorLog:   errorLog,
		}
	case conversationservice.ErrorCodeNotFound:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    svcErr.Message,
			ErrorLog:   errorLog,
		}
	case conversationservice.ErrorCodeConflict:
		return &HTTPError{
			StatusCode: http.StatusConflict,
			Message:    svcErr.Message,
			ErrorLog:   errorLog,
		}
	default:
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   errorLog,
		}
	}
}
