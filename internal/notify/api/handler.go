// Package api exposes notification subscriptions over REST.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/cheamigo/cheamigo/internal/notify"
	"github.com/cheamigo/cheamigo/pkg/events"
)

const maxRequestBodySize = 64 << 10

// Handler serves /api/v1/subscriptions.
type Handler struct {
	store      notify.Store
	dispatcher *notify.Dispatcher
	check      notify.URLChecker
}

// NewHandler creates the subscription API.
func NewHandler(store notify.Store, dispatcher *notify.Dispatcher, check notify.URLChecker) *Handler {
	return &Handler{store: store, dispatcher: dispatcher, check: check}
}

// RegisterRoutes registers the API on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/subscriptions", h.Create)
	mux.HandleFunc("GET /api/v1/subscriptions", h.List)
	mux.HandleFunc("GET /api/v1/subscriptions/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/subscriptions/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/subscriptions/{id}", h.Delete)
	mux.HandleFunc("POST /api/v1/subscriptions/{id}/rotate-secret", h.RotateSecret)
	mux.HandleFunc("GET /api/v1/subscriptions/{id}/deliveries", h.Deliveries)
	mux.HandleFunc("POST /api/v1/subscriptions/{id}/test", h.Test)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "name and url are required")
		return
	}
	if err := validEvents(req.Events); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.check.Check(r.Context(), req.URL); err != nil {
		writeError(w, http.StatusBadRequest, "invalid url: "+err.Error())
		return
	}

	secret, err := notify.NewSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate secret")
		return
	}
	sub := &notify.Subscription{
		Name:      req.Name,
		URL:       req.URL,
		Secret:    secret,
		Events:    notify.EventTypes(req.Events),
		SessionID: req.SessionID,
		Active:    true,
	}
	if err := h.store.Create(r.Context(), sub); err != nil {
		slog.ErrorContext(r.Context(), "create subscription failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}
	writeJSON(w, http.StatusCreated, h.response(sub, true))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	resp := make([]SubscriptionResponse, 0, len(subs))
	for i := range subs {
		resp = append(resp, h.response(&subs[i], false))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.response(sub, false))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.load(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Name != nil {
		sub.Name = *req.Name
	}
	if req.URL != nil {
		if err := h.check.Check(r.Context(), *req.URL); err != nil {
			writeError(w, http.StatusBadRequest, "invalid url: "+err.Error())
			return
		}
		sub.URL = *req.URL
	}
	if req.Events != nil {
		if err := validEvents(*req.Events); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sub.Events = notify.EventTypes(*req.Events)
	}
	if req.SessionID != nil {
		sub.SessionID = *req.SessionID
	}
	if req.Active != nil {
		sub.Active = *req.Active
	}

	if err := h.store.Update(r.Context(), sub); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update subscription")
		return
	}
	writeJSON(w, http.StatusOK, h.response(sub, false))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.store.Delete(r.Context(), id)
	switch {
	case errors.Is(err, notify.ErrNotFound):
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if h.dispatcher != nil {
		h.dispatcher.Forget(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.load(w, r)
	if !ok {
		return
	}
	secret, err := notify.NewSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate secret")
		return
	}
	sub.Secret = secret
	if err := h.store.Update(r.Context(), sub); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update secret")
		return
	}
	writeJSON(w, http.StatusOK, h.response(sub, true))
}

func (h *Handler) Deliveries(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.load(w, r)
	if !ok {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.store.Deliveries(r.Context(), sub.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	resp := make([]DeliveryResponse, 0, len(list))
	for _, d := range list {
		resp = append(resp, toDeliveryResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Test delivers a notify.test event right away and reports the outcome.
func (h *Handler) Test(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.load(w, r)
	if !ok {
		return
	}
	if h.dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications are disabled")
		return
	}

	payload, err := json.Marshal(events.NotifyTestData{
		SubscriptionID: sub.ID,
		Message:        "Prueba de notificación de Che Amigo",
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build test event")
		return
	}
	env := events.Envelope{
		ID:        xid.New().String(),
		Type:      events.NotifyTest,
		Source:    "notify",
		SessionID: sub.SessionID,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}

	rec, err := h.dispatcher.Send(r.Context(), *sub, env)
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, toDeliveryResponse(rec))
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*notify.Subscription, bool) {
	sub, err := h.store.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, notify.ErrNotFound):
		writeError(w, http.StatusNotFound, "subscription not found")
		return nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return nil, false
	}
	return sub, true
}

func (h *Handler) response(sub *notify.Subscription, withSecret bool) SubscriptionResponse {
	resp := SubscriptionResponse{
		ID:        sub.ID,
		Name:      sub.Name,
		URL:       sub.URL,
		Events:    []events.EventType(sub.Events),
		SessionID: sub.SessionID,
		Active:    sub.Active,
	}
	if resp.Events == nil {
		resp.Events = []events.EventType{}
	}
	if h.dispatcher != nil {
		resp.Breaker = h.dispatcher.BreakerState(sub.ID)
	}
	if withSecret {
		resp.Secret = sub.Secret
	}
	return resp
}

func toDeliveryResponse(d notify.Delivery) DeliveryResponse {
	return DeliveryResponse{
		EventID:     d.EventID,
		EventType:   d.EventType,
		Attempt:     d.Attempt,
		StatusCode:  d.StatusCode,
		Outcome:     d.Outcome,
		Error:       d.Error,
		DurationMs:  d.DurationMs,
		AttemptedAt: d.AttemptedAt.Format(time.RFC3339),
	}
}

func validEvents(list []events.EventType) error {
	if len(list) == 0 {
		return errors.New("at least one event type is required")
	}
	for _, et := range list {
		if !et.Known() {
			return fmt.Errorf("unknown event type %q", et)
		}
	}
	return nil
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
