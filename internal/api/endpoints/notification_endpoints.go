package endpoints

import (
	"fmt"
	"net/http"

	internaljwt "agent-widget-platform/internal/jwt"
	"agent-widget-platform/internal/websocket"

	"github.com/google/uuid"
)

type NotificationEndpoints interface {
	Stream(http.ResponseWriter, *http.Request) error
	Rooms(http.ResponseWriter, *http.Request) error
}

type notificationEndpoints struct {
	handler *websocket.Handler
}

func NewNotificationEndpoints(handler *websocket.Handler) NotificationEndpoints {
	return &notificationEndpoints{handler: handler}
}

// Stream upgrades the dashboard connection and joins it to the agent's
// notification room. Browsers cannot set headers on websocket dials, so the
// operator token arrives as a query parameter.
func (h *notificationEndpoints) Stream(w http.ResponseWriter, r *http.Request) error {
	token := r.URL.Query().Get("token")
	if _, err := internaljwt.ParseToken(token, internaljwt.RoleOperator); err != nil {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("parse stream token: %w", err),
		}
	}

	agentID := r.URL.Query().Get("agentId")
	if agentID == "" {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "agentId is required",
			ErrorLog:   fmt.Errorf("missing agentId on stream join"),
		}
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	h.handler.EnsureRoom(agentID)
	h.handler.JoinRoom(w, r, agentID, clientID)
	return nil
}

func (h *notificationEndpoints) Rooms(w http.ResponseWriter, r *http.Request) error {
	if _, err := operatorFromRequest(r); err != nil {
		return err
	}
	h.handler.GetRooms(w, r)
	return nil
}
