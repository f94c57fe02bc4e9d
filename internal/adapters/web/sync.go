package web

import "net/http"

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.SyncStatus(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, st)
}

// syncPull handles POST /api/sync/pull. 503 when no export URL is configured.
func (h *Handler) syncPull(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.PullNow(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) syncFlush(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.FlushOutbox(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]int{"delivered": n})
}
