package cli_test

import (
	"bytes"
	"context"
	"testing"

	"factory-erp/internal/adapters/cli"
	"factory-erp/internal/ai"
	"factory-erp/internal/app"
	"factory-erp/internal/core"
	"factory-erp/internal/logger"
	"factory-erp/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fallbackPlanner struct{}

func (fallbackPlanner) Prioritise(ctx context.Context, in ai.PlanInput) ([]core.ProductionSuggestion, error) {
	return core.SuggestionsFromNeeds(in.Needs), nil
}

func newService(t *testing.T) app.ApplicationService {
	t.Helper()
	s := core.NewSnapshot()
	s.Products = []core.Product{
		{ID: "P1", Name: "Widget", BasePrice: decimal.NewFromInt(20), CurrentStock: 1, MinimumStock: 2},
	}
	s.Customers = []core.Customer{{ID: "C1", Name: "Acme Ltda"}}
	mem := store.NewMemoryStore()
	mem.Seed(s)
	coord := core.NewCoordinator(mem, logger.NewNop())
	require.NoError(t, coord.Load(context.Background()))
	return app.NewAppService(app.Dependencies{
		Coordinator: coord,
		Planner:     fallbackPlanner{},
		Outbox:      mem,
		Logger:      logger.NewNop(),
	})
}

func TestRun_Stock(t *testing.T) {
	svc := newService(t)
	var out bytes.Buffer
	require.NoError(t, cli.Run(context.Background(), svc, []string{"stock"}, &out))
	assert.Contains(t, out.String(), "Widget")
	assert.Contains(t, out.String(), "1 product(s) at or below minimum stock")
}

func TestRun_AllocateAndOrders(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, cli.Run(ctx, svc, []string{"allocate"}, &out))
	assert.Contains(t, out.String(), "0 order(s) promoted")

	out.Reset()
	require.NoError(t, cli.Run(ctx, svc, []string{"orders", "Em", "Produção"}, &out))
	assert.Contains(t, out.String(), "NUMBER")

	assert.Error(t, cli.Run(ctx, svc, []string{"orders", "Bogus"}, &out))
}

func TestRun_NeedsAndSuggest(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, cli.Run(ctx, svc, []string{"needs"}, &out))
	assert.Contains(t, out.String(), "P1")

	out.Reset()
	require.NoError(t, cli.Run(ctx, svc, []string{"suggest"}, &out))
	assert.Contains(t, out.String(), "1 suggestion(s) recorded.")
}

func TestRun_SyncCommands(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	var out bytes.Buffer

	err := cli.Run(ctx, svc, []string{"pull"}, &out)
	assert.ErrorIs(t, err, app.ErrSyncDisabled)

	require.NoError(t, cli.Run(ctx, svc, []string{"flush"}, &out))
	assert.Contains(t, out.String(), "0 change(s) delivered.")

	out.Reset()
	require.NoError(t, cli.Run(ctx, svc, []string{"status"}, &out))
	assert.Contains(t, out.String(), `"pullEnabled": false`)
}

func TestRun_UnknownCommand(t *testing.T) {
	svc := newService(t)
	err := cli.Run(context.Background(), svc, []string{"frobnicate"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")

	assert.Error(t, cli.Run(context.Background(), svc, []string{"logs", "-1"}, &bytes.Buffer{}))
}
