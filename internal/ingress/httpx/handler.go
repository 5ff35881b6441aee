// Package httpx is the HTTP boundary of the orchestrator. The message
// transport is out of scope, so events arrive as webhook-style JSON posts;
// each is validated and handed to the per-key dispatcher, and the response
// only acknowledges acceptance — saga progress is asynchronous.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ecomsagas/fulfillment/internal/order"
	"github.com/ecomsagas/fulfillment/internal/saga"
	"github.com/ecomsagas/fulfillment/internal/saga/dispatch"
)

// Handler exposes event intake plus read endpoints for sagas and orders.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	sagas      saga.Store
	orders     order.Repository
	logger     *slog.Logger
}

func NewHandler(dispatcher *dispatch.Dispatcher, sagas saga.Store, orders order.Repository, logger *slog.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		sagas:      sagas,
		orders:     orders,
		logger:     logger,
	}
}

// OrderCreated ingests an OrderCreated event: it materializes the order
// aggregate if this is the first delivery, then submits the event to the
// saga dispatcher.
func (h *Handler) OrderCreated(w http.ResponseWriter, r *http.Request) {
	var req OrderCreatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if _, err := uuid.Parse(req.OrderID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_id", "orderId must be a UUID")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "items are required")
		return
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_item", "productId and quantity must be valid")
			return
		}
	}

	h.ensureOrder(r, req)

	ev := saga.Event{
		Type:          saga.EventOrderCreated,
		OrderID:       req.OrderID,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		TotalAmount:   req.TotalAmount,
		CreatedAt:     req.CreatedAt,
	}
	for _, it := range req.Items {
		ev.Items = append(ev.Items, saga.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		})
	}

	h.submit(w, r, ev)
}

// NotificationSucceeded ingests the notification collaborator's success event.
func (h *Handler) NotificationSucceeded(w http.ResponseWriter, r *http.Request) {
	h.notificationOutcome(w, r, saga.EventNotificationSucceeded)
}

// NotificationFailed ingests the notification collaborator's failure event.
func (h *Handler) NotificationFailed(w http.ResponseWriter, r *http.Request) {
	h.notificationOutcome(w, r, saga.EventNotificationFailed)
}

func (h *Handler) notificationOutcome(w http.ResponseWriter, r *http.Request, t saga.EventType) {
	var req NotificationOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if _, err := uuid.Parse(req.OrderID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_id", "orderId must be a UUID")
		return
	}

	h.submit(w, r, saga.Event{Type: t, OrderID: req.OrderID, Error: req.Error})
}

// GetSaga returns the stored saga instance for an order id.
func (h *Handler) GetSaga(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	in, err := h.sagas.Get(r.Context(), id)
	if errors.Is(err, saga.ErrNotFound) {
		writeError(w, http.StatusNotFound, "saga_not_found", "")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "saga lookup failed", "correlation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "")
		return
	}

	writeJSON(w, http.StatusOK, mapInstance(in))
}

// GetOrder returns the order aggregate for an id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, err := h.orders.GetByID(r.Context(), id)
	if errors.Is(err, order.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order_not_found", "")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "order lookup failed", "order_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store_error", "")
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// ensureOrder persists the aggregate on first delivery of OrderCreated. The
// aggregate may already exist when the event is redelivered; that is fine.
func (h *Handler) ensureOrder(r *http.Request, req OrderCreatedRequest) {
	ctx := r.Context()
	if _, err := h.orders.GetByID(ctx, req.OrderID); !errors.Is(err, order.ErrNotFound) {
		return
	}

	items := make([]order.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		}
	}
	o := &order.Order{
		ID:            req.OrderID,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         items,
		TotalAmount:   req.TotalAmount,
		Status:        order.StatusCreated,
		CreatedAt:     req.CreatedAt,
		UpdatedAt:     req.CreatedAt,
	}
	if err := h.orders.Save(ctx, o); err != nil {
		h.logger.ErrorContext(ctx, "failed to persist order aggregate", "order_id", req.OrderID, "error", err)
	}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, ev saga.Event) {
	if err := h.dispatcher.Submit(r.Context(), ev); err != nil {
		writeError(w, http.StatusServiceUnavailable, "shutting_down", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Accepted: true, OrderID: ev.OrderID})
}

func mapInstance(in *saga.Instance) SagaResponse {
	items := make([]SagaItemDTO, len(in.Items))
	for i, it := range in.Items {
		items[i] = SagaItemDTO{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return SagaResponse{
		CorrelationID:    in.CorrelationID,
		State:            string(in.State),
		CustomerID:       in.CustomerID,
		Items:            items,
		TotalAmount:      in.TotalAmount,
		ProductsReserved: in.ProductsReserved,
		NotificationSent: in.NotificationSent,
		ErrorMessage:     in.ErrorMessage,
		CreatedAt:        in.CreatedAt,
		LastTransitionAt: in.LastTransitionAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
