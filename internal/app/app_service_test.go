package app_test

import (
	"context"
	"testing"

	"factory-erp/internal/ai"
	"factory-erp/internal/app"
	"factory-erp/internal/core"
	"factory-erp/internal/logger"
	"factory-erp/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlanner struct{ calls int }

func (p *stubPlanner) Prioritise(ctx context.Context, in ai.PlanInput) ([]core.ProductionSuggestion, error) {
	p.calls++
	return core.SuggestionsFromNeeds(in.Needs), nil
}

func seed() *core.Snapshot {
	s := core.NewSnapshot()
	s.Products = []core.Product{
		{ID: "P1", Name: "Widget", BasePrice: decimal.NewFromInt(20), CurrentStock: 5, MinimumStock: 1},
		{ID: "P2", Name: "Gadget", BasePrice: decimal.NewFromInt(50), CurrentStock: 0, MinimumStock: 3},
	}
	s.Customers = []core.Customer{{ID: "C1", Name: "Acme Ltda", Phone: "5511999"}}
	return s
}

func newService(t *testing.T) (app.ApplicationService, *stubPlanner, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore("sheet")
	mem.Seed(seed())
	coord := core.NewCoordinator(mem, logger.NewNop())
	require.NoError(t, coord.Load(context.Background()))
	planner := &stubPlanner{}
	svc := app.NewAppService(app.Dependencies{
		Coordinator: coord,
		Planner:     planner,
		Outbox:      mem,
		Master:      app.MasterCredential{Name: "Admin", Email: "admin@factory.test", Password: "s3cret"},
		Logger:      logger.NewNop(),
	})
	return svc, planner, mem
}

func TestAuthenticate_MasterCredential(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	sess, err := svc.AuthenticateUser(ctx, "ADMIN@factory.test", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, app.MasterUserID, sess.UserID)
	assert.True(t, sess.Can(core.PermSettings))

	_, err = svc.AuthenticateUser(ctx, "admin@factory.test", "wrong")
	assert.ErrorIs(t, err, app.ErrInvalidCredentials)

	again, err := svc.GetUser(ctx, app.MasterUserID)
	require.NoError(t, err)
	assert.True(t, again.IsAdmin)
}

func TestAuthenticate_StoredUser(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.SaveUser(ctx, app.SaveUserRequest{User: core.User{Name: "Ana", Email: "ana@factory.test"}, Admin: "admin"})
	assert.ErrorIs(t, err, core.ErrValidation, "new users need a password")

	u, err := svc.SaveUser(ctx, app.SaveUserRequest{
		User:     core.User{Name: "Ana", Email: "ana@factory.test", CanViewOrders: true},
		Password: "pa55word",
		Admin:    "admin",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "pa55word", u.PasswordHash)

	sess, err := svc.AuthenticateUser(ctx, "ana@factory.test", "pa55word")
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.UserID)
	assert.True(t, sess.Can(core.PermOrders))
	assert.False(t, sess.Can(core.PermFinance))

	_, err = svc.AuthenticateUser(ctx, "ana@factory.test", "nope")
	assert.ErrorIs(t, err, app.ErrInvalidCredentials)

	// Updating without a password keeps the login working.
	_, err = svc.SaveUser(ctx, app.SaveUserRequest{User: core.User{ID: u.ID, Name: "Ana B", Email: "ana@factory.test"}, Admin: "admin"})
	require.NoError(t, err)
	_, err = svc.AuthenticateUser(ctx, "ana@factory.test", "pa55word")
	assert.NoError(t, err)
}

func TestCreateOrder_ReturnsTotals(t *testing.T) {
	svc, _, mem := newService(t)
	ctx := context.Background()

	res, err := svc.CreateOrder(ctx, app.CreateOrderRequest{
		CustomerID:      "C1",
		PaymentMethodID: "FP-001",
		Lines:           []app.OrderLineInput{{ProductID: "P1", Quantity: 2}},
		User:            "ana",
	})
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusReady, res.Order.Status)
	require.Len(t, res.Items, 1)
	assert.True(t, decimal.NewFromInt(40).Equal(res.Total))
	assert.True(t, decimal.NewFromInt(40).Equal(res.Balance))
	assert.NotEmpty(t, mem.Entries())

	ready := core.OrderStatusReady
	list, err := svc.ListOrders(ctx, &ready)
	require.NoError(t, err)
	assert.Len(t, list.Orders, 1)

	open := core.OrderStatusOpen
	list, err = svc.ListOrders(ctx, &open)
	require.NoError(t, err)
	assert.Empty(t, list.Orders)

	_, err = svc.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateProduction_ResizeThenFinish(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	po, err := svc.AddProductionOrder(ctx, core.NewProductionInput{ProductID: "P2", Quantity: 2}, "ana")
	require.NoError(t, err)

	qty := 4
	finished := core.ProductionFinished
	updated, err := svc.UpdateProduction(ctx, app.UpdateProductionRequest{ID: po.ID, Quantity: &qty, Status: &finished, User: "ana"})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Produced)

	levels, err := svc.GetStockLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, levels.Levels[1].OnHand)

	_, err = svc.UpdateProduction(ctx, app.UpdateProductionRequest{ID: po.ID})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSuggestProduction_RecordsPending(t *testing.T) {
	svc, planner, _ := newService(t)
	ctx := context.Background()

	created, err := svc.SuggestProduction(ctx, "planner")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "P2", created[0].ProductID)
	assert.Equal(t, 1, planner.calls)

	pending, err := svc.ListSuggestions(ctx, core.SuggestionPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestListCustomers_Search(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	got, err := svc.ListCustomers(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = svc.ListCustomers(ctx, "globex")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSync_WithoutSheet(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.PullNow(ctx)
	assert.ErrorIs(t, err, app.ErrSyncDisabled)

	n, err := svc.FlushOutbox(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.AdjustStock(ctx, app.AdjustStockRequest{ProductID: "P1", CurrentStock: 7, MinimumStock: 1, User: "ana"})
	require.NoError(t, err)

	st, err := svc.SyncStatus(ctx)
	require.NoError(t, err)
	assert.False(t, st.PullEnabled)
	assert.Equal(t, 1, st.Outbox.Pending)
}
