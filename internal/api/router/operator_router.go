package router

import (
	"net/http"

	"agent-widget-platform/internal/api"
	"agent-widget-platform/internal/api/endpoints"
	"agent-widget-platform/internal/api/middleware"
)

func OperatorRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		conversations := newConversationService(s)
		operatorEndpoints := endpoints.NewOperatorEndpoints(conversations, s.Handler())

		mux.HandleFunc(prefix+"/conversations/takeover", s.MakeHTTPHandleFunc(operatorEndpoints.TakeOver, middleware.ValidateOperatorJWT))
		mux.HandleFunc(prefix+"/conversations/resolve", s.MakeHTTPHandleFunc(operatorEndpoints.Resolve, middleware.ValidateOperatorJWT))
		mux.HandleFunc(prefix+"/conversations/reply", s.MakeHTTPHandleFunc(operatorEndpoints.Reply, middleware.ValidateOperatorJWT))
		mux.HandleFunc(prefix+"/conversations/messages", s.MakeHTTPHandleFunc(operatorEndpoints.Messages, middleware.ValidateOperatorJWT))
	}
}

func NotificationRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		notificationEndpoints := endpoints.NewNotificationEndpoints(s.Handler())

		mux.HandleFunc(prefix+"/notifications/ws", s.MakeHTTPHandleFunc(notificationEndpoints.Stream))
		mux.HandleFunc(prefix+"/notifications/rooms", s.MakeHTTPHandleFunc(notificationEndpoints.Rooms))
	}
}
