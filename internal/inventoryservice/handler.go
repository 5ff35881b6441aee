package inventoryservice

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type commandRequest struct {
	OrderID string `json:"orderId"`
	Items   []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

type commandResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// NewRouter exposes the service on the reserve/release contract.
func NewRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/products/reserve", reserveHandler(svc))
	r.Post("/api/products/release", releaseHandler(svc))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func reserveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeCommand(w, r)
		if !ok {
			return
		}

		items := make([]Item, len(req.Items))
		for i, it := range req.Items {
			items[i] = Item{ProductID: it.ProductID, Quantity: it.Quantity}
		}

		success, msg := svc.Reserve(req.OrderID, items)
		writeJSON(w, commandResponse{Success: success, ErrorMessage: msg})
	}
}

func releaseHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeCommand(w, r)
		if !ok {
			return
		}
		writeJSON(w, commandResponse{Success: svc.Release(req.OrderID)})
	}
}

func decodeCommand(w http.ResponseWriter, r *http.Request) (commandRequest, bool) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return req, false
	}
	if req.OrderID == "" {
		http.Error(w, "orderId is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
