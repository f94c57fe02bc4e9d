package app

import (
	"context"

	"factory-erp/internal/core"
)

// ApplicationService is the single interface the CLI and web adapters call.
// Implementations contain no presentation logic.
type ApplicationService interface {
	// ── Auth ──────────────────────────────────────────────────────────────────

	// AuthenticateUser checks credentials against the master account and stored users.
	AuthenticateUser(ctx context.Context, email, password string) (*UserSession, error)

	// GetUser returns the user behind a session id, including the master account.
	GetUser(ctx context.Context, userID string) (*UserSession, error)

	// ── Master data ───────────────────────────────────────────────────────────

	ListCustomers(ctx context.Context, search string) ([]core.Customer, error)
	SaveCustomer(ctx context.Context, req SaveCustomerRequest) (*core.Customer, error)
	DeleteCustomer(ctx context.Context, id, user string) error

	ListProducts(ctx context.Context) ([]core.Product, error)
	SaveProduct(ctx context.Context, req SaveProductRequest) (*core.Product, error)
	DeleteProduct(ctx context.Context, id, user string) error

	ListUsers(ctx context.Context) ([]core.User, error)
	SaveUser(ctx context.Context, req SaveUserRequest) (*core.User, error)
	DeleteUser(ctx context.Context, id, admin string) error

	ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error)

	// ── Stock ─────────────────────────────────────────────────────────────────

	GetStockLevels(ctx context.Context) (*StockResult, error)

	// AdjustStock sets on-hand and minimum stock and re-runs allocation.
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.Product, error)

	// RunAllocation re-runs the allocation engine and returns how many orders were promoted.
	RunAllocation(ctx context.Context, user string) (int, error)

	// ── Orders ────────────────────────────────────────────────────────────────

	ListOrders(ctx context.Context, status *core.OrderStatus) (*OrderListResult, error)
	GetOrder(ctx context.Context, id string) (*OrderResult, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error)
	CreateReturn(ctx context.Context, req CreateOrderRequest) (*OrderResult, error)
	UpdateOrderStatus(ctx context.Context, id string, status core.OrderStatus, user string) (*OrderResult, error)
	DeleteOrder(ctx context.Context, id, user string) error
	SaveSignature(ctx context.Context, id, signature, user string) (*OrderResult, error)

	// GenerateRomaneio returns the dispatch manifest, delivering a Ready order.
	GenerateRomaneio(ctx context.Context, id, user string) (*core.Romaneio, error)

	// ── Production ────────────────────────────────────────────────────────────

	ProductionQueue(ctx context.Context, priority core.ProductionPriority) ([]core.ProductionOrder, error)
	AddProductionOrder(ctx context.Context, in core.NewProductionInput, user string) (*core.ProductionOrder, error)
	UpdateProduction(ctx context.Context, req UpdateProductionRequest) (*core.ProductionOrder, error)
	DeleteProductionOrder(ctx context.Context, id, user string) error
	ProductionNeeds(ctx context.Context) ([]core.ProductionNeed, error)
	ProduceForStock(ctx context.Context, productID string, quantity int, user string) (*core.ProductionOrder, error)

	// SuggestProduction records Pending suggestions for every current need.
	SuggestProduction(ctx context.Context, user string) ([]core.ProductionSuggestion, error)
	ListSuggestions(ctx context.Context, status core.SuggestionStatus) ([]core.ProductionSuggestion, error)
	ApproveSuggestion(ctx context.Context, id string, quantity int, user string) (*core.ProductionOrder, error)
	RejectSuggestion(ctx context.Context, id, user string) (*core.ProductionSuggestion, error)

	// ── Finance and reports ───────────────────────────────────────────────────

	AddPayment(ctx context.Context, p core.Payment, user string) (*core.Payment, error)
	PaymentHistory(ctx context.Context, r core.DateRange) ([]core.PaymentEntry, error)
	PendingSettlements(ctx context.Context, search string) ([]core.OrderBalance, error)
	Debtors(ctx context.Context) ([]core.Debtor, error)
	Dashboard(ctx context.Context) (*core.DashboardSummary, error)
	Sales(ctx context.Context, r core.DateRange) ([]core.SaleEntry, error)
	Profitability(ctx context.Context, r core.DateRange) ([]core.ProductProfit, error)
	AuditTrail(ctx context.Context, limit int) ([]core.AuditLog, error)

	// ── Sync ──────────────────────────────────────────────────────────────────

	// PullNow downloads the remote workbook and applies it immediately.
	PullNow(ctx context.Context) (*SyncResult, error)

	// FlushOutbox pushes every due outbox entry once.
	FlushOutbox(ctx context.Context) (int, error)

	SyncStatus(ctx context.Context) (*SyncStatusResult, error)
}
