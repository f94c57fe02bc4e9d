package web

import (
	"net/http"

	"factory-erp/internal/app"
	"factory-erp/internal/core"

	"github.com/go-chi/chi/v5"
)

// productionQueue handles GET /api/production?priority=.
func (h *Handler) productionQueue(w http.ResponseWriter, r *http.Request) {
	priority := core.ProductionPriority(r.URL.Query().Get("priority"))
	if priority != "" && !priority.Valid() {
		writeError(w, r, "unknown priority "+string(priority), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	queue, err := h.svc.ProductionQueue(r.Context(), priority)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, queue)
}

func (h *Handler) addProductionOrder(w http.ResponseWriter, r *http.Request) {
	var in core.NewProductionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	po, err := h.svc.AddProductionOrder(r.Context(), in, currentUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, po)
}

// updateProduction handles PATCH /api/production/{id}.
func (h *Handler) updateProduction(w http.ResponseWriter, r *http.Request) {
	var req app.UpdateProductionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	req.User = currentUser(r)
	po, err := h.svc.UpdateProduction(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, po)
}

func (h *Handler) deleteProductionOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProductionOrder(r.Context(), chi.URLParam(r, "id"), currentUser(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) productionNeeds(w http.ResponseWriter, r *http.Request) {
	needs, err := h.svc.ProductionNeeds(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, needs)
}

func (h *Handler) produceForStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	po, err := h.svc.ProduceForStock(r.Context(), req.ProductID, req.Quantity, currentUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, po)
}

// ── Suggestions ───────────────────────────────────────────────────────────────

func (h *Handler) listSuggestions(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListSuggestions(r.Context(), core.SuggestionStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, out)
}

// suggestProduction handles POST /api/production/suggestions and returns only the new entries.
func (h *Handler) suggestProduction(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.SuggestProduction(r.Context(), currentUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, out)
}

// approveSuggestion accepts an optional {"quantity": n}; zero keeps the suggested amount.
func (h *Handler) approveSuggestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	po, err := h.svc.ApproveSuggestion(r.Context(), chi.URLParam(r, "id"), req.Quantity, currentUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, po)
}

func (h *Handler) rejectSuggestion(w http.ResponseWriter, r *http.Request) {
	sg, err := h.svc.RejectSuggestion(r.Context(), chi.URLParam(r, "id"), currentUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sg)
}
