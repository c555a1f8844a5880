package handlers

import (
	"github.com/go-chi/chi"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	// the bridge posts scans here; route shape is fixed by the bridge contract
	r.Post("/api/log-rfid", h.LogRFID)
	r.Get("/api/scans/{id}", h.GetScan)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)
		r.Get("/ws", h.HandleFeed)
	})
}
