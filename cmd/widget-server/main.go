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

	// The widget server publishes visitor-message notifications into the
	// dashboard rooms; it never serves websocket clients itself.
	hub := websocket.NewHub()
	go hub.Run()
	handler := websocket.NewHandler(hub)

	server := api.NewAPIServer(
		":82",
		queueManager,
		db,
		handler,
		router.UtilsRoutes("/api/widget/v1"),
		router.WidgetPublicRoutes("/api/widget/v1"),
	)

	server.Run()
}
