package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"factory-erp/internal/app"
	"factory-erp/internal/core"
	"factory-erp/internal/logger"

	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	log       logger.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string, log logger.Logger) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
		log:       log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (401 JSON if unauthenticated) ───────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/api/auth/me", h.me)
		r.Get("/api/payment-methods", h.listPaymentMethods)

		r.With(RequirePermission(core.PermDashboard)).Get("/api/dashboard", h.dashboard)

		// ── Customers ─────────────────────────────────────────────────────────
		r.Route("/api/customers", func(r chi.Router) {
			r.Use(RequirePermission(core.PermCustomers))
			r.Get("/", h.listCustomers)
			r.Post("/", h.createCustomer)
			r.Put("/{id}", h.updateCustomer)
			r.Delete("/{id}", h.deleteCustomer)
		})

		// ── Products and stock ────────────────────────────────────────────────
		r.Route("/api/products", func(r chi.Router) {
			r.Use(RequirePermission(core.PermProducts))
			r.Get("/", h.listProducts)
			r.Post("/", h.createProduct)
			r.Put("/{id}", h.updateProduct)
			r.Delete("/{id}", h.deleteProduct)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(core.PermStock))
			r.Get("/api/stock", h.stockLevels)
			r.Post("/api/stock/adjust", h.adjustStock)
			r.Post("/api/allocation/run", h.runAllocation)
		})

		// ── Orders ────────────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(core.PermOrders))
			r.Get("/api/orders", h.listOrders)
			r.Post("/api/orders", h.createOrder)
			r.Get("/api/orders/{id}", h.getOrder)
			r.Patch("/api/orders/{id}/status", h.updateOrderStatus)
			r.Delete("/api/orders/{id}", h.deleteOrder)
			r.Post("/api/returns", h.createReturn)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(core.PermDispatch))
			r.Post("/api/orders/{id}/signature", h.saveSignature)
			r.Post("/api/orders/{id}/romaneio", h.romaneio)
		})

		// ── Production ────────────────────────────────────────────────────────
		r.Route("/api/production", func(r chi.Router) {
			r.Use(RequirePermission(core.PermProduction))
			r.Get("/", h.productionQueue)
			r.Post("/", h.addProductionOrder)
			r.Patch("/{id}", h.updateProduction)
			r.Delete("/{id}", h.deleteProductionOrder)
			r.Get("/needs", h.productionNeeds)
			r.Post("/produce-for-stock", h.produceForStock)
			r.Get("/suggestions", h.listSuggestions)
			r.Post("/suggestions", h.suggestProduction)
			r.Post("/suggestions/{id}/approve", h.approveSuggestion)
			r.Post("/suggestions/{id}/reject", h.rejectSuggestion)
		})

		// ── Finance and reports ───────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(core.PermFinance))
			r.Get("/api/payments", h.paymentHistory)
			r.Post("/api/payments", h.addPayment)
			r.Get("/api/finance/settlements", h.pendingSettlements)
			r.Get("/api/finance/debtors", h.debtors)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(core.PermReports))
			r.Get("/api/reports/sales", h.salesReport)
			r.Get("/api/reports/profitability", h.profitabilityReport)
		})

		// ── Settings ──────────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(core.PermSettings))
			r.Get("/api/users", h.listUsers)
			r.Post("/api/users", h.createUser)
			r.Put("/api/users/{id}", h.updateUser)
			r.Delete("/api/users/{id}", h.deleteUser)
			r.Get("/api/logs", h.auditTrail)
			r.Get("/api/sync/status", h.syncStatus)
			r.Post("/api/sync/pull", h.syncPull)
			r.Post("/api/sync/flush", h.syncFlush)
		})
	})

	h.router = r
	return r
}

// health returns service status and the outbox backlog.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status  string `json:"status"`
		Pending int    `json:"pending"`
	}
	st, err := h.svc.SyncStatus(r.Context())
	if err != nil {
		writeJSON(w, response{Status: "degraded"})
		return
	}
	writeJSON(w, response{Status: "ok", Pending: st.Outbox.Pending})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// queryRange reads ?from= and ?to= as calendar days. to covers its whole day.
func queryRange(w http.ResponseWriter, r *http.Request) (core.DateRange, bool) {
	var rng core.DateRange
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			writeError(w, r, "from must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
			return rng, false
		}
		rng.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			writeError(w, r, "to must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
			return rng, false
		}
		rng.To = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return rng, true
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
