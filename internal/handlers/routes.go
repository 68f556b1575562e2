package handlers

import (
	"github.com/gorilla/mux"
)

// Register adds all giffer routes to r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tags", h.GetTags).Methods("GET")
	api.HandleFunc("/tags/{filename}", h.SetTags).Methods("PUT")
	api.HandleFunc("/files/{filename}", h.DeleteFile).Methods("DELETE")
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/file/{filename}", h.GetFile).Methods("GET")
	api.HandleFunc("/thumbnail/{filename}", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/ingest", h.Ingest).Methods("POST")
	api.HandleFunc("/ws", h.ServeWebSocket).Methods("GET")
}
