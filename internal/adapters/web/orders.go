package web

import (
	"net/http"

	"factory-erp/internal/app"
	"factory-erp/internal/core"

	"github.com/go-chi/chi/v5"
)

// listOrders handles GET /api/orders?status=.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var status *core.OrderStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := core.OrderStatus(v)
		if !st.Valid() {
			writeError(w, r, "unknown status "+v, "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		status = &st
	}
	result, err := h.svc.ListOrders(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createOrder handles POST /api/orders. The response status is whatever
// allocation decided, never one the caller chose.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.User = currentUser(r)
	result, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, result)
}

// createReturn handles POST /api/returns.
func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.User = currentUser(r)
	result, err := h.svc.CreateReturn(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, result)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status core.OrderStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status, currentUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteOrder(r.Context(), chi.URLParam(r, "id"), currentUser(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// saveSignature handles POST /api/orders/{id}/signature with a data-URL image.
func (h *Handler) saveSignature(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signature string `json:"signature"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.SaveSignature(r.Context(), chi.URLParam(r, "id"), req.Signature, currentUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// romaneio handles POST /api/orders/{id}/romaneio.
func (h *Handler) romaneio(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GenerateRomaneio(r.Context(), chi.URLParam(r, "id"), currentUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, doc)
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockLevels(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req app.AdjustStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.User = currentUser(r)
	p, err := h.svc.AdjustStock(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) runAllocation(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.RunAllocation(r.Context(), currentUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]int{"promoted": n})
}
