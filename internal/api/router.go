package api

import (
	"github.com/gorilla/mux"

	"github.com/slotbot-ai/slotbot/internal/api/recovery"
)

// NewRouter creates the HTTP router for the scheduling engine.
func NewRouter(messages *MessagesHandler) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware)

	healthHandler := NewHealthHandler()

	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/api/messages", messages.HandleMessage).Methods("POST")

	return router
}
