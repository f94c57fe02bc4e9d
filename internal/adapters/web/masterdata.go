package web

import (
	"net/http"

	"factory-erp/internal/app"
	"factory-erp/internal/core"

	"github.com/go-chi/chi/v5"
)

// ── Customers ─────────────────────────────────────────────────────────────────

// listCustomers handles GET /api/customers?q=.
func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.svc.ListCustomers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, customers)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var c core.Customer
	if !decodeJSON(w, r, &c) {
		return
	}
	c.ID = ""
	saved, err := h.svc.SaveCustomer(r.Context(), app.SaveCustomerRequest{Customer: c, User: currentUser(r)})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, saved)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var c core.Customer
	if !decodeJSON(w, r, &c) {
		return
	}
	c.ID = chi.URLParam(r, "id")
	saved, err := h.svc.SaveCustomer(r.Context(), app.SaveCustomerRequest{Customer: c, User: currentUser(r)})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, saved)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCustomer(r.Context(), chi.URLParam(r, "id"), currentUser(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Products ──────────────────────────────────────────────────────────────────

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var p core.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = ""
	saved, err := h.svc.SaveProduct(r.Context(), app.SaveProductRequest{Product: p, User: currentUser(r)})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, saved)
}

// updateProduct handles PUT /api/products/{id}. Stock fields are ignored; use /api/stock/adjust.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p core.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	saved, err := h.svc.SaveProduct(r.Context(), app.SaveProductRequest{Product: p, User: currentUser(r)})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, saved)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProduct(r.Context(), chi.URLParam(r, "id"), currentUser(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.svc.ListPaymentMethods(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, methods)
}

// ── Users ─────────────────────────────────────────────────────────────────────

// userRequest carries the plain-text password alongside the user record.
type userRequest struct {
	core.User
	Password string `json:"password"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, users)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.User.ID = ""
	saved, err := h.svc.SaveUser(r.Context(), app.SaveUserRequest{User: req.User, Password: req.Password, Admin: currentUser(r)})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, saved)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.User.ID = chi.URLParam(r, "id")
	saved, err := h.svc.SaveUser(r.Context(), app.SaveUserRequest{User: req.User, Password: req.Password, Admin: currentUser(r)})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, saved)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteUser(r.Context(), chi.URLParam(r, "id"), currentUser(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
