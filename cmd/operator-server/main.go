package main

import (
	"log"

	"agent-widget-platform/internal/api"
	"agent-widget-platform/internal/api/router"
	"agent-widget-platform/internal/database"
	"agent-widget-platform/internal/queue"
	"agent-widget-platform/internal/websocket"
)

func main() {
	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	hub := websocket.NewHub()
	go hub.Run()
	handler := websocket.NewHandler(hub)

	server := api.NewAPIServer(
		":83",
		queueManager,
		db,
		handler,
		router.UtilsRoutes("/api/tenant/v1"),
		router.OperatorRoutes("/api/tenant/v1"),
		router.NotificationRoutes("/api/tenant/v1"),
	)

	handler.SubscribeToRedisChannels()

	server.Run()
}
