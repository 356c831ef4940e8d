package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Use(h.requestID, h.instrument)

	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
	router.HandleFunc("/indexes", h.HandleGetIndexes).Methods("GET")

	// Filtering and listing
	router.HandleFunc("/users/filter", h.HandleFilter).Methods("GET")
	router.HandleFunc("/users/filter/stream", h.HandleFilterStream).Methods("GET")
	router.HandleFunc("/users", h.HandleFindAll).Methods("GET")

	// Single records
	router.HandleFunc("/users", h.HandleInsert).Methods("POST")
	router.HandleFunc("/users/batch", h.HandleBatchInsert).Methods("POST")
	router.HandleFunc("/users/{id:[0-9]+}", h.HandleGetById).Methods("GET")
	router.HandleFunc("/users/{id:[0-9]+}", h.HandleReplaceById).Methods("PUT")
	router.HandleFunc("/users/{id:[0-9]+}", h.HandleUpdateById).Methods("PATCH")
}
