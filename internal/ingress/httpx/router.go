package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/events/order-created", handler.OrderCreated)
	r.Post("/events/notification-succeeded", handler.NotificationSucceeded)
	r.Post("/events/notification-failed", handler.NotificationFailed)

	r.Get("/sagas/{id}", handler.GetSaga)
	r.Get("/orders/{id}", handler.GetOrder)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// otelhttp wraps the whole mux so every inbound event gets a server span
	// that flows into the saga's store writes and outbound calls.
	return otelhttp.NewHandler(r, "ingress")
}
