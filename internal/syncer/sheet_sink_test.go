package syncer_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"factory-erp/internal/core"
	"factory-erp/internal/syncer"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedPush struct {
	ContentType string
	Body        map[string]any
}

func scriptServer(t *testing.T, status int) (*httptest.Server, *[]capturedPush) {
	t.Helper()
	var pushes []capturedPush
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		pushes = append(pushes, capturedPush{ContentType: r.Header.Get("Content-Type"), Body: body})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &pushes
}

func TestSheetSink_PushFlattensNestedFields(t *testing.T) {
	srv, pushes := scriptServer(t, http.StatusOK)
	sink := syncer.NewSheetSink(srv.URL, srv.Client())

	err := sink.Push(context.Background(), core.Change{
		Table: core.TableCustomers, Action: core.ActionCreate, RecordID: "CL-1",
		Record: core.Customer{
			ID: "CL-1", Name: "Acme",
			SpecialPrices: []core.CustomerProductPrice{{ProductID: "P1", Price: decimal.NewFromInt(15)}},
		},
	})
	require.NoError(t, err)
	require.Len(t, *pushes, 1)

	p := (*pushes)[0]
	assert.Equal(t, "text/plain;charset=utf-8", p.ContentType)
	assert.Equal(t, "Clientes", p.Body["tableName"])
	assert.Equal(t, "create", p.Body["action"])

	data := p.Body["data"].(map[string]any)
	assert.Equal(t, "Acme", data["name"])
	special, ok := data["specialPrices"].(string)
	require.True(t, ok, "nested arrays travel as JSON strings")
	assert.JSONEq(t, `[{"productId":"P1","price":"15"}]`, special)
}

func TestSheetSink_DeleteSendsOnlyID(t *testing.T) {
	srv, pushes := scriptServer(t, http.StatusOK)
	sink := syncer.NewSheetSink(srv.URL, srv.Client())

	require.NoError(t, sink.Push(context.Background(), core.Change{
		Table: core.TableOrders, Action: core.ActionDelete, RecordID: "O-9",
	}))
	require.Len(t, *pushes, 1)
	assert.Equal(t, map[string]any{"id": "O-9"}, (*pushes)[0].Body["data"])
}

func TestSheetSink_SkipsLocalOnlyTables(t *testing.T) {
	srv, pushes := scriptServer(t, http.StatusOK)
	sink := syncer.NewSheetSink(srv.URL, srv.Client())

	require.NoError(t, sink.Push(context.Background(), core.Change{
		Table: core.TableSuggestions, Action: core.ActionCreate, RecordID: "SG-1",
		Record: core.ProductionSuggestion{ID: "SG-1"},
	}))
	assert.Empty(t, *pushes)
}

func TestSheetSink_ServerErrorIsReturned(t *testing.T) {
	srv, _ := scriptServer(t, http.StatusInternalServerError)
	sink := syncer.NewSheetSink(srv.URL, srv.Client())

	err := sink.Push(context.Background(), core.Change{
		Table: core.TableProducts, Action: core.ActionUpdate, RecordID: "P1", Record: core.Product{ID: "P1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSheetRow_UserHashNeverLeaves(t *testing.T) {
	row, err := syncer.SheetRow(core.Change{
		Table: core.TableUsers, Action: core.ActionUpdate, RecordID: "U1",
		Record: core.User{ID: "U1", Email: "a@b.c", PasswordHash: "secret"},
	})
	require.NoError(t, err)
	for k, v := range row {
		assert.NotEqual(t, "secret", v, "field %s", k)
	}
	assert.Equal(t, "a@b.c", row["email"])
}
