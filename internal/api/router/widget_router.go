package router

import (
	"context"
	"net/http"

	"agent-widget-platform/internal/api"
	"agent-widget-platform/internal/api/endpoints"
	"agent-widget-platform/internal/env"
	"agent-widget-platform/internal/responder"
	agentservice "agent-widget-platform/internal/service/agent"
	conversationservice "agent-widget-platform/internal/service/conversation"
)

// WidgetPublicRoutes serves the unauthenticated surface the embedded widget
// talks to.
func WidgetPublicRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		agents := agentservice.New(s.Database())
		conversations := newConversationService(s)
		widgetEndpoints := endpoints.NewWidgetEndpoints(agents, conversations, s.Handler())

		mux.HandleFunc(prefix+"/config", s.MakeHTTPHandleFunc(widgetEndpoints.Config))
		mux.HandleFunc(prefix+"/history", s.MakeHTTPHandleFunc(widgetEndpoints.History))
		mux.HandleFunc(prefix+"/messages", s.MakeHTTPHandleFunc(widgetEndpoints.Messages))
	}
}

// newConversationService assembles the dispatch pipeline: the dynamo
// repository, the settings cache feeding the responder webhook, and the
// service on top. RESPONDER_WEBHOOK_URL overrides the stored setting for
// local development.
func newConversationService(s *api.APIServer) *conversationservice.Service {
	repo := conversationservice.NewDynamoRepository(s.Database())

	settings := responder.NewSettingsCache(func(ctx context.Context, name string) (string, error) {
		if name == responder.WebhookURLSetting {
			if override := env.Get(env.ResponderWebhook); override != "" {
				return override, nil
			}
		}
		setting, err := repo.GetAppSetting(ctx, name)
		if err != nil {
			return "", err
		}
		return setting.Value, nil
	})

	return conversationservice.NewWithRepository(repo, responder.NewWebhookResponder(settings), nil)
}
