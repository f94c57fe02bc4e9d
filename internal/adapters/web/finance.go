package web

import (
	"net/http"

	"factory-erp/internal/core"
)

const defaultLogLimit = 200

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	var p core.Payment
	if !decodeJSON(w, r, &p) {
		return
	}
	saved, err := h.svc.AddPayment(r.Context(), p, currentUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, saved)
}

// paymentHistory handles GET /api/payments?from=&to=.
func (h *Handler) paymentHistory(w http.ResponseWriter, r *http.Request) {
	rng, ok := queryRange(w, r)
	if !ok {
		return
	}
	out, err := h.svc.PaymentHistory(r.Context(), rng)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, out)
}

func (h *Handler) pendingSettlements(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.PendingSettlements(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, out)
}

func (h *Handler) debtors(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Debtors(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, out)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, out)
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	rng, ok := queryRange(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Sales(r.Context(), rng)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, out)
}

func (h *Handler) profitabilityReport(w http.ResponseWriter, r *http.Request) {
	rng, ok := queryRange(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Profitability(r.Context(), rng)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, out)
}

// auditTrail handles GET /api/logs?limit=, newest first.
func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.AuditTrail(r.Context(), queryInt(r, "limit", defaultLogLimit))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, out)
}
