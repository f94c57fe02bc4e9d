package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"factory-erp/internal/ai"
	"factory-erp/internal/core"
	"factory-erp/internal/logger"
	"factory-erp/internal/syncer"
)

// ErrSyncDisabled is returned by PullNow when no spreadsheet is configured.
var ErrSyncDisabled = errors.New("spreadsheet sync is not configured")

// MasterCredential is the configured administrator login that exists
// independently of the user table.
type MasterCredential struct {
	Name     string
	Email    string
	Password string
}

// Dependencies wires an appService. Puller and Dispatcher may be nil.
type Dependencies struct {
	Coordinator *core.Coordinator
	Planner     ai.PlannerService
	Outbox      syncer.Outbox
	Dispatcher  *syncer.Dispatcher
	Puller      *syncer.Puller
	Master      MasterCredential
	AutoSync    bool
	Logger      logger.Logger
}

type appService struct {
	coord      *core.Coordinator
	planner    ai.PlannerService
	outbox     syncer.Outbox
	dispatcher *syncer.Dispatcher
	puller     *syncer.Puller
	master     MasterCredential
	autoSync   bool
	log        logger.Logger
	now        func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(d Dependencies) ApplicationService {
	return &appService{
		coord:      d.Coordinator,
		planner:    d.Planner,
		outbox:     d.Outbox,
		dispatcher: d.Dispatcher,
		puller:     d.Puller,
		master:     d.Master,
		autoSync:   d.AutoSync,
		log:        d.Logger,
		now:        time.Now,
	}
}

// ── Master data ──────────────────────────────────────────────────────────────

func (s *appService) ListCustomers(ctx context.Context, search string) ([]core.Customer, error) {
	customers := s.coord.Snapshot().Customers
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return customers, nil
	}
	out := make([]core.Customer, 0, len(customers))
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.Name), search) ||
			strings.Contains(strings.ToLower(c.CpfCnpj), search) ||
			strings.Contains(c.Phone, search) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *appService) SaveCustomer(ctx context.Context, req SaveCustomerRequest) (*core.Customer, error) {
	if req.Customer.ID == "" {
		return s.coord.AddCustomer(ctx, req.Customer, req.User)
	}
	return s.coord.UpdateCustomer(ctx, req.Customer, req.User)
}

func (s *appService) DeleteCustomer(ctx context.Context, id, user string) error {
	return s.coord.DeleteCustomer(ctx, id, user)
}

func (s *appService) ListProducts(ctx context.Context) ([]core.Product, error) {
	return s.coord.Snapshot().Products, nil
}

func (s *appService) SaveProduct(ctx context.Context, req SaveProductRequest) (*core.Product, error) {
	if req.Product.ID == "" {
		return s.coord.AddProduct(ctx, req.Product, req.User)
	}
	return s.coord.UpdateProduct(ctx, req.Product, req.User)
}

func (s *appService) DeleteProduct(ctx context.Context, id, user string) error {
	return s.coord.DeleteProduct(ctx, id, user)
}

func (s *appService) ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	return s.coord.Snapshot().PaymentMethods, nil
}

// ── Stock ────────────────────────────────────────────────────────────────────

func (s *appService) GetStockLevels(ctx context.Context) (*StockResult, error) {
	levels := core.StockLevels(s.coord.Snapshot())
	res := &StockResult{Levels: levels}
	for _, l := range levels {
		if l.LowStock {
			res.LowStock++
		}
	}
	return res, nil
}

func (s *appService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.Product, error) {
	return s.coord.AdjustStock(ctx, req.ProductID, req.CurrentStock, req.MinimumStock, req.User)
}

func (s *appService) RunAllocation(ctx context.Context, user string) (int, error) {
	return s.coord.RunAllocation(ctx, user)
}

// ── Orders ───────────────────────────────────────────────────────────────────

// ListOrders returns orders newest first, optionally filtered by status.
func (s *appService) ListOrders(ctx context.Context, status *core.OrderStatus) (*OrderListResult, error) {
	orders := s.coord.Snapshot().Orders
	if status != nil {
		orders = slices.DeleteFunc(orders, func(o core.Order) bool { return o.Status != *status })
	}
	slices.SortStableFunc(orders, func(a, b core.Order) int { return b.OrderNumber - a.OrderNumber })
	return &OrderListResult{Orders: orders}, nil
}

func (s *appService) GetOrder(ctx context.Context, id string) (*OrderResult, error) {
	return orderResult(s.coord.Snapshot(), id)
}

func orderResult(snap *core.Snapshot, id string) (*OrderResult, error) {
	o, ok := snap.Order(id)
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, core.ErrNotFound)
	}
	total := core.OrderTotal(snap, id)
	paid := core.PaidForOrder(snap, id)
	return &OrderResult{
		Order:   o,
		Items:   snap.ItemsFor(id),
		Total:   total,
		Paid:    paid,
		Balance: total.Sub(paid),
	}, nil
}

func (req CreateOrderRequest) toInput() core.NewOrderInput {
	lines := make([]core.OrderLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = core.OrderLineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return core.NewOrderInput{
		CustomerID:       req.CustomerID,
		DeliveryDate:     req.DeliveryDate,
		PaymentMethodID:  req.PaymentMethodID,
		SendToProduction: req.SendToProduction,
		Notes:            req.Notes,
		Installments:     req.Installments,
		Lines:            lines,
	}
}

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	order, _, err := s.coord.CreateOrder(ctx, req.toInput(), req.User)
	if err != nil {
		return nil, err
	}
	return orderResult(s.coord.Snapshot(), order.ID)
}

func (s *appService) CreateReturn(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	order, err := s.coord.CreateReturn(ctx, req.toInput(), req.User)
	if err != nil {
		return nil, err
	}
	return orderResult(s.coord.Snapshot(), order.ID)
}

func (s *appService) UpdateOrderStatus(ctx context.Context, id string, status core.OrderStatus, user string) (*OrderResult, error) {
	if _, err := s.coord.UpdateOrderStatus(ctx, id, status, user); err != nil {
		return nil, err
	}
	return orderResult(s.coord.Snapshot(), id)
}

func (s *appService) DeleteOrder(ctx context.Context, id, user string) error {
	return s.coord.DeleteOrder(ctx, id, user)
}

func (s *appService) SaveSignature(ctx context.Context, id, signature, user string) (*OrderResult, error) {
	if _, err := s.coord.SaveSignature(ctx, id, signature, user); err != nil {
		return nil, err
	}
	return orderResult(s.coord.Snapshot(), id)
}

func (s *appService) GenerateRomaneio(ctx context.Context, id, user string) (*core.Romaneio, error) {
	return s.coord.GenerateRomaneio(ctx, id, user)
}

// ── Production ───────────────────────────────────────────────────────────────

func (s *appService) ProductionQueue(ctx context.Context, priority core.ProductionPriority) ([]core.ProductionOrder, error) {
	return core.ProductionQueue(s.coord.Snapshot(), priority), nil
}

func (s *appService) AddProductionOrder(ctx context.Context, in core.NewProductionInput, user string) (*core.ProductionOrder, error) {
	return s.coord.AddProductionOrder(ctx, in, user)
}

// UpdateProduction applies quantity, then priority, then status, so a batch
// can be resized and finished in one request.
func (s *appService) UpdateProduction(ctx context.Context, req UpdateProductionRequest) (*core.ProductionOrder, error) {
	if req.Status == nil && req.Priority == nil && req.Quantity == nil {
		return nil, fmt.Errorf("nothing to update: %w", core.ErrValidation)
	}
	var (
		po  *core.ProductionOrder
		err error
	)
	if req.Quantity != nil {
		if po, err = s.coord.UpdateProductionQuantity(ctx, req.ID, *req.Quantity, req.User); err != nil {
			return nil, err
		}
	}
	if req.Priority != nil {
		if po, err = s.coord.UpdateProductionPriority(ctx, req.ID, *req.Priority, req.User); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		if po, err = s.coord.UpdateProductionStatus(ctx, req.ID, *req.Status, req.Produced, req.User); err != nil {
			return nil, err
		}
	}
	return po, nil
}

func (s *appService) DeleteProductionOrder(ctx context.Context, id, user string) error {
	return s.coord.DeleteProductionOrder(ctx, id, user)
}

func (s *appService) ProductionNeeds(ctx context.Context) ([]core.ProductionNeed, error) {
	return core.ProductionNeeds(s.coord.Snapshot()), nil
}

func (s *appService) ProduceForStock(ctx context.Context, productID string, quantity int, user string) (*core.ProductionOrder, error) {
	return s.coord.ProduceForStock(ctx, productID, quantity, user)
}

func (s *appService) SuggestProduction(ctx context.Context, user string) ([]core.ProductionSuggestion, error) {
	snap := s.coord.Snapshot()
	needs := core.ProductionNeeds(snap)
	if len(needs) == 0 {
		return nil, nil
	}
	drafts, err := s.planner.Prioritise(ctx, ai.PlanInput{
		Today:  s.now(),
		Needs:  needs,
		Active: core.ActiveProduction(snap),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to plan production: %w", err)
	}
	return s.coord.RecordSuggestions(ctx, drafts, user)
}

func (s *appService) ListSuggestions(ctx context.Context, status core.SuggestionStatus) ([]core.ProductionSuggestion, error) {
	out := s.coord.Snapshot().Suggestions
	if status != "" {
		out = slices.DeleteFunc(out, func(sg core.ProductionSuggestion) bool { return sg.SuggestionStatus != status })
	}
	return out, nil
}

func (s *appService) ApproveSuggestion(ctx context.Context, id string, quantity int, user string) (*core.ProductionOrder, error) {
	return s.coord.ApproveSuggestion(ctx, id, quantity, user)
}

func (s *appService) RejectSuggestion(ctx context.Context, id, user string) (*core.ProductionSuggestion, error) {
	return s.coord.RejectSuggestion(ctx, id, user)
}

// ── Finance and reports ──────────────────────────────────────────────────────

func (s *appService) AddPayment(ctx context.Context, p core.Payment, user string) (*core.Payment, error) {
	return s.coord.AddPayment(ctx, p, user)
}

func (s *appService) PaymentHistory(ctx context.Context, r core.DateRange) ([]core.PaymentEntry, error) {
	return core.PaymentHistory(s.coord.Snapshot(), r), nil
}

func (s *appService) PendingSettlements(ctx context.Context, search string) ([]core.OrderBalance, error) {
	return core.PendingSettlements(s.coord.Snapshot(), search), nil
}

func (s *appService) Debtors(ctx context.Context) ([]core.Debtor, error) {
	return core.Debtors(s.coord.Snapshot()), nil
}

func (s *appService) Dashboard(ctx context.Context) (*core.DashboardSummary, error) {
	d := core.Dashboard(s.coord.Snapshot(), s.now())
	return &d, nil
}

func (s *appService) Sales(ctx context.Context, r core.DateRange) ([]core.SaleEntry, error) {
	return core.Sales(s.coord.Snapshot(), r), nil
}

func (s *appService) Profitability(ctx context.Context, r core.DateRange) ([]core.ProductProfit, error) {
	return core.Profitability(s.coord.Snapshot(), r), nil
}

func (s *appService) AuditTrail(ctx context.Context, limit int) ([]core.AuditLog, error) {
	return core.AuditTrail(s.coord.Snapshot(), limit), nil
}

// ── Sync ─────────────────────────────────────────────────────────────────────

func (s *appService) PullNow(ctx context.Context) (*SyncResult, error) {
	if s.puller == nil {
		return nil, ErrSyncDisabled
	}
	return s.puller.Pull(ctx)
}

func (s *appService) FlushOutbox(ctx context.Context) (int, error) {
	if s.dispatcher == nil {
		return 0, nil
	}
	return s.dispatcher.Flush(ctx)
}

func (s *appService) SyncStatus(ctx context.Context) (*SyncStatusResult, error) {
	res := &SyncStatusResult{AutoSync: s.autoSync, PullEnabled: s.puller != nil}
	if s.outbox != nil {
		st, err := s.outbox.Stats(ctx)
		if err != nil {
			return nil, err
		}
		res.Outbox = st
	}
	if s.puller != nil {
		last, err := s.puller.Status()
		res.LastPull = last
		if err != nil {
			res.LastError = err.Error()
		}
	}
	return res, nil
}
