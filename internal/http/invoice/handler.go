package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pmckenzie/trustline/internal/http/auth"
	"github.com/pmckenzie/trustline/internal/invoice"
)

type Handler struct {
	svc *invoice.Service
}

func NewHandler(svc *invoice.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/accept", h.accept)
	r.Post("/{id}/release", h.release)
	r.Post("/{id}/cancel", h.cancel)
}

type createInvoiceRequest struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		http.Error(w, "missing actor", http.StatusUnauthorized)
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inv, err := h.svc.Create(r.Context(), actor, invoice.CreateParams{
		ConversationID: conversationID,
		RecipientID:    req.RecipientID,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		Description:    req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(inv))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	invs, err := h.svc.ListByConversation(r.Context(), conversationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponseList(invs))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	inv, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Accept)
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Release)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

type transitionFunc func(ctx context.Context, id uuid.UUID, actor invoice.Actor) (*invoice.Invoice, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op transitionFunc) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		http.Error(w, "missing actor", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	inv, err := op(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(inv))
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps ledger errors onto status codes. Rejected operations leave
// the invoice unchanged server-side, so the surface can always retry after
// showing the message.
func writeError(w http.ResponseWriter, err error) {
	var status int

	switch {
	case errors.Is(err, invoice.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, invoice.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, invoice.ErrInvalidState), errors.Is(err, invoice.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, invoice.ErrInvalidAmount),
		errors.Is(err, invoice.ErrInvalidCurrency),
		errors.Is(err, invoice.ErrInvalidParticipants):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, invoice.ErrPolicyUnavailable):
		status = http.StatusServiceUnavailable
	default:
		slog.Error("invoice operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})

		return
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
