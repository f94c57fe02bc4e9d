package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"factory-erp/internal/core"
	"factory-erp/internal/logger"
	"factory-erp/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx   context.Context
	c     *core.Coordinator
	store *store.MemoryStore
	now   time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T, seed *core.Snapshot) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: store.NewMemoryStore("sheet"),
		now:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if seed != nil {
		f.store.Seed(seed)
	}
	seq := 0
	f.c = core.NewCoordinator(f.store, logger.NewNop(),
		core.WithClock(func() time.Time { return f.now }),
		core.WithIDGenerator(func(prefix string) string {
			seq++
			return fmt.Sprintf("%s-%d", prefix, seq)
		}),
	)
	require.NoError(t, f.c.Load(f.ctx))
	return f
}

func baseSnapshot() *core.Snapshot {
	s := core.NewSnapshot()
	s.Products = []core.Product{
		{ID: "P1", Name: "Widget", BasePrice: decimal.NewFromInt(20), CostPrice: decimal.NewFromInt(8), CurrentStock: 10, MinimumStock: 2},
		{ID: "P2", Name: "Gadget", BasePrice: decimal.NewFromInt(50), CostPrice: decimal.NewFromInt(30), CurrentStock: 0},
	}
	s.Customers = []core.Customer{
		{ID: "C1", Name: "Acme", DiscountPercentage: decimal.NewFromInt(10)},
		{ID: "C2", Name: "Globex", SpecialPrices: []core.CustomerProductPrice{{ProductID: "P1", Price: decimal.NewFromInt(15)}}},
	}
	s.Orders = []core.Order{{ID: "OLD", OrderNumber: 7, CustomerID: "C1", Status: core.OrderStatusDelivered, OrderDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}}
	return s
}

func order(t *testing.T, f *fixture, id string) core.Order {
	t.Helper()
	o, ok := f.c.Snapshot().Order(id)
	require.True(t, ok, "order %s", id)
	return o
}

func product(t *testing.T, f *fixture, id string) core.Product {
	t.Helper()
	p, ok := f.c.Snapshot().Product(id)
	require.True(t, ok, "product %s", id)
	return p
}

func TestCreateOrder_PricesAndPromotes(t *testing.T) {
	f := newFixture(t, baseSnapshot())

	o, items, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "P1", Quantity: 4}},
	}, "ana@example.com")
	require.NoError(t, err)

	assert.Equal(t, 8, o.OrderNumber)
	assert.Equal(t, core.OrderStatusReady, o.Status)
	require.Len(t, items, 1)
	assert.True(t, decimal.NewFromInt(18).Equal(items[0].UnitPrice), "10%% discount on 20, got %s", items[0].UnitPrice)
	require.NotNil(t, items[0].CostPrice)
	assert.True(t, decimal.NewFromInt(8).Equal(*items[0].CostPrice))

	entries := f.store.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, core.ActionCreate, entries[0].Change.Action)
	assert.Equal(t, core.TableOrders, entries[0].Change.Table)
	assert.Equal(t, core.TableOrderItems, entries[1].Change.Table)
	assert.Equal(t, core.ActionUpdate, entries[2].Change.Action)
	assert.Equal(t, core.OrderStatusReady, entries[2].Change.Record.(core.Order).Status)

	loaded, err := f.store.Load(f.ctx)
	require.NoError(t, err)
	stored, _ := loaded.Order(o.ID)
	assert.Equal(t, core.OrderStatusReady, stored.Status)
	require.Len(t, loaded.Logs, 1)
	assert.Equal(t, "ana@example.com", loaded.Logs[0].User)
}

func TestCreateOrder_SpecialPriceAndExplicitPrice(t *testing.T) {
	f := newFixture(t, baseSnapshot())

	_, items, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C2",
		Lines: []core.OrderLineInput{
			{ProductID: "P1", Quantity: 1},
			{ProductID: "P2", Quantity: 1, UnitPrice: decimal.NewFromInt(45)},
		},
	}, "u")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(15).Equal(items[0].UnitPrice))
	assert.True(t, decimal.NewFromInt(45).Equal(items[1].UnitPrice))
}

func TestCreateOrder_ShortStockStaysOpen(t *testing.T) {
	f := newFixture(t, baseSnapshot())

	o, _, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "P2", Quantity: 1}},
	}, "u")
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusOpen, o.Status)
}

func TestCreateOrder_RepeatedLinesCannotOvercommit(t *testing.T) {
	f := newFixture(t, baseSnapshot())

	o, items, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines: []core.OrderLineInput{
			{ProductID: "P1", Quantity: 6},
			{ProductID: "P1", Quantity: 6},
		},
	}, "u")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, core.OrderStatusOpen, o.Status)

	levels := core.StockLevels(f.c.Snapshot())
	require.NotEmpty(t, levels)
	assert.Equal(t, "P1", levels[0].ProductID)
	assert.Equal(t, 12, levels[0].Committed)
	assert.Equal(t, 10, product(t, f, "P1").CurrentStock)
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t, baseSnapshot())

	_, _, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{CustomerID: "C1"}, "u")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, _, err = f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "NOPE", Quantity: 1}},
	}, "u")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, _, err = f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "P1", Quantity: 0}},
	}, "u")
	assert.ErrorIs(t, err, core.ErrValidation)

	assert.Empty(t, f.store.Entries())
}

func TestUpdateOrderStatus_Rules(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	o, _, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "P2", Quantity: 1}},
	}, "u")
	require.NoError(t, err)

	_, err = f.c.UpdateOrderStatus(f.ctx, o.ID, core.OrderStatusReady, "u")
	assert.ErrorIs(t, err, core.ErrReadyIsDerived)

	_, err = f.c.UpdateOrderStatus(f.ctx, "missing", core.OrderStatusCancelled, "u")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.c.UpdateOrderStatus(f.ctx, o.ID, core.OrderStatus("Whatever"), "u")
	assert.ErrorIs(t, err, core.ErrValidation)

	got, err := f.c.UpdateOrderStatus(f.ctx, o.ID, core.OrderStatusInProduction, "u")
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusInProduction, got.Status)

	_, err = f.c.UpdateOrderStatus(f.ctx, o.ID, core.OrderStatusOpen, "u")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = f.c.UpdateOrderStatus(f.ctx, o.ID, core.OrderStatusCancelled, "u")
	require.NoError(t, err)

	_, err = f.c.UpdateOrderStatus(f.ctx, o.ID, core.OrderStatusDelivered, "u")
	assert.ErrorIs(t, err, core.ErrTerminalStatus)
}

func TestUpdateOrderStatus_CancelReleasesStock(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	first, _, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "P1", Quantity: 8}},
	}, "u")
	require.NoError(t, err)
	require.Equal(t, core.OrderStatusReady, first.Status)

	f.advance(time.Hour)
	second, _, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C2",
		Lines:      []core.OrderLineInput{{ProductID: "P1", Quantity: 5}},
	}, "u")
	require.NoError(t, err)
	require.Equal(t, core.OrderStatusOpen, second.Status)

	_, err = f.c.UpdateOrderStatus(f.ctx, first.ID, core.OrderStatusCancelled, "u")
	require.NoError(t, err)

	assert.Equal(t, core.OrderStatusReady, order(t, f, second.ID).Status)
}

func TestDelivery_FixesRomaneioDateOnce(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	o, _, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "P1", Quantity: 2}},
	}, "u")
	require.NoError(t, err)
	require.Equal(t, core.OrderStatusReady, o.Status)

	f.advance(2 * time.Hour)
	emitted := f.now
	r, err := f.c.GenerateRomaneio(f.ctx, o.ID, "u")
	require.NoError(t, err)
	assert.Equal(t, emitted, r.EmittedAt)
	assert.Equal(t, core.OrderStatusDelivered, order(t, f, o.ID).Status)
	require.Len(t, r.Lines, 1)
	assert.Equal(t, "Widget", r.Lines[0].ProductName)
	assert.True(t, decimal.NewFromInt(36).Equal(r.Total))
	require.NotNil(t, r.Customer)
	assert.Equal(t, "Acme", r.Customer.Name)

	f.advance(24 * time.Hour)
	again, err := f.c.GenerateRomaneio(f.ctx, o.ID, "u")
	require.NoError(t, err)
	assert.Equal(t, emitted, again.EmittedAt)
	assert.Equal(t, emitted, *order(t, f, o.ID).RomaneioDate)
}

func TestGenerateRomaneio_RequiresReadyOrDelivered(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	o, _, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "P2", Quantity: 1}},
	}, "u")
	require.NoError(t, err)

	_, err = f.c.GenerateRomaneio(f.ctx, o.ID, "u")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	assert.Nil(t, order(t, f, o.ID).RomaneioDate)
}

func TestAdjustStock_PromotesWaitingOrders(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	o, _, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "P2", Quantity: 3}},
	}, "u")
	require.NoError(t, err)
	require.Equal(t, core.OrderStatusOpen, o.Status)

	p, err := f.c.AdjustStock(f.ctx, "P2", 3, 1, "u")
	require.NoError(t, err)
	assert.Equal(t, 3, p.CurrentStock)
	assert.Equal(t, 1, p.MinimumStock)
	assert.Equal(t, core.OrderStatusReady, order(t, f, o.ID).Status)

	_, err = f.c.AdjustStock(f.ctx, "P2", -1, 0, "u")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestProductionFinish_AddsStockOnce(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	o, _, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "P2", Quantity: 4}},
	}, "u")
	require.NoError(t, err)

	po, err := f.c.AddProductionOrder(f.ctx, core.NewProductionInput{ProductID: "P2", Quantity: 5, Priority: core.PriorityToday}, "u")
	require.NoError(t, err)
	assert.Equal(t, core.ProductionPending, po.Status)

	f.advance(time.Hour)
	started, err := f.c.UpdateProductionStatus(f.ctx, po.ID, core.ProductionProducing, nil, "u")
	require.NoError(t, err)
	require.NotNil(t, started.StartDate)

	f.advance(time.Hour)
	done, err := f.c.UpdateProductionStatus(f.ctx, po.ID, core.ProductionFinished, nil, "u")
	require.NoError(t, err)
	assert.Equal(t, 5, done.Produced)
	assert.Equal(t, f.now, *done.CompletionDate)
	assert.Equal(t, started.StartDate, done.StartDate)

	assert.Equal(t, 5, product(t, f, "P2").CurrentStock)
	assert.Equal(t, core.OrderStatusReady, order(t, f, o.ID).Status)

	_, err = f.c.UpdateProductionStatus(f.ctx, po.ID, core.ProductionFinished, nil, "u")
	assert.ErrorIs(t, err, core.ErrTerminalStatus)
	assert.Equal(t, 5, product(t, f, "P2").CurrentStock)
}

func TestProductionFinish_ExplicitProducedQuantity(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	po, err := f.c.AddProductionOrder(f.ctx, core.NewProductionInput{ProductID: "P1", Quantity: 10}, "u")
	require.NoError(t, err)
	assert.Equal(t, core.PriorityStock, po.Priority)

	produced := 7
	_, err = f.c.UpdateProductionStatus(f.ctx, po.ID, core.ProductionFinished, &produced, "u")
	require.NoError(t, err)
	assert.Equal(t, 17, product(t, f, "P1").CurrentStock)
}

func TestCreateReturn_CreditsStock(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	waiting, _, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C2",
		Lines:      []core.OrderLineInput{{ProductID: "P2", Quantity: 2}},
	}, "u")
	require.NoError(t, err)
	require.Equal(t, core.OrderStatusOpen, waiting.Status)

	ret, err := f.c.CreateReturn(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Notes:      "damaged box",
		Lines: []core.OrderLineInput{
			{ProductID: "P2", Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
			{ProductID: "P2", Quantity: 2, UnitPrice: decimal.NewFromInt(-50)},
		},
	}, "u")
	require.NoError(t, err)

	assert.Equal(t, core.OrderStatusDelivered, ret.Status)
	assert.Equal(t, core.ReturnNotesPrefix+" damaged box", ret.Notes)
	for _, it := range f.c.Snapshot().ItemsFor(ret.ID) {
		assert.True(t, it.UnitPrice.Equal(decimal.NewFromInt(-50)), "got %s", it.UnitPrice)
	}
	assert.Equal(t, 3, product(t, f, "P2").CurrentStock)
	assert.Equal(t, core.OrderStatusReady, order(t, f, waiting.ID).Status)
}

func TestDeleteOrder_TombstonesOrderAndItems(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	o, items, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "P1", Quantity: 10}},
	}, "u")
	require.NoError(t, err)
	require.Equal(t, core.OrderStatusReady, o.Status)

	f.advance(time.Minute)
	next, _, err := f.c.CreateOrder(f.ctx, core.NewOrderInput{
		CustomerID: "C1",
		Lines:      []core.OrderLineInput{{ProductID: "P1", Quantity: 1}},
	}, "u")
	require.NoError(t, err)
	require.Equal(t, core.OrderStatusOpen, next.Status)

	require.NoError(t, f.c.DeleteOrder(f.ctx, o.ID, "u"))

	snap := f.c.Snapshot()
	_, ok := snap.Order(o.ID)
	assert.False(t, ok)
	assert.Empty(t, snap.ItemsFor(o.ID))
	assert.True(t, snap.Deleted.Has(o.ID))
	assert.True(t, snap.Deleted.Has(items[0].ID))
	assert.Equal(t, core.OrderStatusReady, order(t, f, next.ID).Status)

	// A deleted number is not reused while a higher one exists.
	assert.Equal(t, next.OrderNumber+1, snap.NextOrderNumber())
}

func TestApplyRemoteSnapshot_FiltersTombstonesAndReallocates(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	require.NoError(t, f.c.DeleteCustomer(f.ctx, "C2", "u"))

	remote := &core.Snapshot{
		Customers: []core.Customer{
			{ID: "C1", Name: "Acme (old)"},
			{ID: "C2", Name: "Globex"},
			{ID: "C1", Name: "Acme"},
		},
		Products: []core.Product{{ID: "P9", Name: "Remote", CurrentStock: 5}},
		Orders: []core.Order{
			{ID: "R1", OrderNumber: 40, Status: core.OrderStatusOpen, OrderDate: f.now},
		},
		OrderItems: []core.OrderItem{{ID: "RI1", OrderID: "R1", ProductID: "P9", Quantity: 5}},
	}

	promoted, err := f.c.ApplyRemoteSnapshot(f.ctx, remote)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	snap := f.c.Snapshot()
	require.Len(t, snap.Customers, 1)
	assert.Equal(t, "Acme", snap.Customers[0].Name)
	assert.Equal(t, core.OrderStatusReady, order(t, f, "R1").Status)
	// Production was absent from the pull and is kept.
	assert.Empty(t, snap.ProductionOrders)

	loaded, err := f.store.Load(f.ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Products, 1)
	assert.True(t, loaded.Deleted.Has("C2"))

	last := f.store.Entries()[len(f.store.Entries())-1]
	assert.Equal(t, "R1", last.Change.RecordID)
}

func TestPruneTombstones(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	require.NoError(t, f.c.DeleteCustomer(f.ctx, "C1", "u"))
	f.advance(48 * time.Hour)
	require.NoError(t, f.c.DeleteCustomer(f.ctx, "C2", "u"))

	n, err := f.c.PruneTombstones(f.ctx, f.now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap := f.c.Snapshot()
	assert.False(t, snap.Deleted.Has("C1"))
	assert.True(t, snap.Deleted.Has("C2"))
}

type failingStore struct{ core.Store }

func (failingStore) Commit(context.Context, core.Batch) error { return errors.New("disk full") }

func TestMutation_StoreFailureLeavesStateUntouched(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.Seed(baseSnapshot())
	c := core.NewCoordinator(failingStore{mem}, logger.NewNop())
	require.NoError(t, c.Load(context.Background()))

	_, err := c.AdjustStock(context.Background(), "P1", 99, 0, "u")
	require.Error(t, err)

	p, _ := c.Snapshot().Product("P1")
	assert.Equal(t, 10, p.CurrentStock)
}

func TestUpdateProduct_KeepsStock(t *testing.T) {
	f := newFixture(t, baseSnapshot())
	p := product(t, f, "P1")
	p.Name = "Widget XL"
	p.CurrentStock = 999

	got, err := f.c.UpdateProduct(f.ctx, p, "u")
	require.NoError(t, err)
	assert.Equal(t, "Widget XL", got.Name)
	assert.Equal(t, 10, got.CurrentStock)
}

func TestAddPayment_Validation(t *testing.T) {
	f := newFixture(t, baseSnapshot())

	_, err := f.c.AddPayment(f.ctx, core.Payment{CustomerID: "C1", AmountPaid: decimal.Zero}, "u")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.c.AddPayment(f.ctx, core.Payment{CustomerID: "C2", OrderID: "OLD", AmountPaid: decimal.NewFromInt(5)}, "u")
	assert.ErrorIs(t, err, core.ErrValidation)

	pay, err := f.c.AddPayment(f.ctx, core.Payment{CustomerID: "C1", OrderID: "OLD", AmountPaid: decimal.NewFromInt(5), PaymentMethodID: "FP-001"}, "u")
	require.NoError(t, err)
	assert.Equal(t, f.now, pay.PaymentDate)
}

func TestUsers_EmailUniqueAndHashKept(t *testing.T) {
	f := newFixture(t, baseSnapshot())

	u, err := f.c.AddUser(f.ctx, core.User{Name: "Ana", Email: "ana@example.com", PasswordHash: "hash"}, "admin")
	require.NoError(t, err)

	_, err = f.c.AddUser(f.ctx, core.User{Name: "Other", Email: "ana@example.com"}, "admin")
	assert.ErrorIs(t, err, core.ErrValidation)

	u.CanViewOrders = true
	u.PasswordHash = ""
	_, err = f.c.UpdateUser(f.ctx, *u, "admin")
	require.NoError(t, err)

	stored, ok := f.c.Snapshot().User(u.ID)
	require.True(t, ok)
	assert.Equal(t, "hash", stored.PasswordHash)
	assert.True(t, stored.Can(core.PermOrders))
	assert.False(t, stored.Can(core.PermFinance))
}

func TestRunAllocation_PromotesAndNotifies(t *testing.T) {
	seed := baseSnapshot()
	seed.Orders = append(seed.Orders, core.Order{ID: "WAIT", OrderNumber: 8, CustomerID: "C1", Status: core.OrderStatusOpen})
	seed.OrderItems = append(seed.OrderItems, core.OrderItem{ID: "w1", OrderID: "WAIT", ProductID: "P1", Quantity: 2})

	mem := store.NewMemoryStore("sheet")
	mem.Seed(seed)
	commits := 0
	c := core.NewCoordinator(mem, logger.NewNop(), core.WithCommitHook(func() { commits++ }))
	require.NoError(t, c.Load(context.Background()))

	n, err := c.RunAllocation(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, commits)
	o, _ := c.Snapshot().Order("WAIT")
	assert.Equal(t, core.OrderStatusReady, o.Status)

	n, err = c.RunAllocation(context.Background(), "admin")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, commits, "nothing written, no notification")
}
