package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/pierogicoin/presale-service/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware API пресейла.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/presale", func(r chi.Router) {
		r.Post("/purchase", h.InitiatePurchase)
		r.Post("/confirm", h.ConfirmPayment)
		r.Get("/stats", h.Stats)

		r.Group(func(r chi.Router) {
			r.Use(h.webhookAuth.Middleware)
			r.Post("/webhook", h.WebhookConfirm)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.workerAuth.Middleware)
			r.Post("/distribute", h.Distribute)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
