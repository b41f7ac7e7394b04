// Package server wires HTTP handlers into a router for the Roomcast
// application.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns the application router. It registers
// the health check, WebSocket endpoint, and test page, and, when a static
// directory is configured, serves its contents at the root.
func SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", WebSocketHandler).Methods(http.MethodGet)
	r.HandleFunc("/test", TestPageHandler).Methods(http.MethodGet)

	if staticDir := currentConfig().StaticDir; staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	} else {
		r.HandleFunc("/", HealthHandler).Methods(http.MethodGet)
	}

	return r
}
