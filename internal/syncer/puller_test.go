package syncer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"factory-erp/internal/core"
	"factory-erp/internal/logger"
	"factory-erp/internal/syncer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockApplier struct {
	mock.Mock
}

func (m *mockApplier) ApplyRemoteSnapshot(ctx context.Context, remote *core.Snapshot) (int, error) {
	args := m.Called(remote)
	return args.Int(0), args.Error(1)
}

func (m *mockApplier) PruneTombstones(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(cutoff)
	return args.Int(0), args.Error(1)
}

func TestPuller_PullAppliesWorkbook(t *testing.T) {
	book := sampleWorkbook(t).Bytes()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/export", r.URL.Path)
		assert.Equal(t, "xlsx", r.URL.Query().Get("format"))
		_, _ = w.Write(book)
	}))
	defer srv.Close()

	applier := &mockApplier{}
	applier.On("ApplyRemoteSnapshot", mock.MatchedBy(func(s *core.Snapshot) bool {
		return len(s.Products) == 2 && s.Customers == nil
	})).Return(3, nil)
	applier.On("PruneTombstones", mock.Anything).Return(1, nil)

	p := syncer.NewPuller(srv.URL+"/export?format=xlsx", srv.Client(), applier, 30*24*time.Hour, logger.NewNop())
	res, err := p.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Promoted)
	assert.Equal(t, 1, res.Pruned)

	last, lastErr := p.Status()
	assert.NoError(t, lastErr)
	assert.Equal(t, res, last)
	applier.AssertExpectations(t)
}

func TestPuller_NoRetentionSkipsPruning(t *testing.T) {
	book := sampleWorkbook(t).Bytes()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(book)
	}))
	defer srv.Close()

	applier := &mockApplier{}
	applier.On("ApplyRemoteSnapshot", mock.Anything).Return(0, nil)

	p := syncer.NewPuller(srv.URL, srv.Client(), applier, 0, logger.NewNop())
	_, err := p.Pull(context.Background())
	require.NoError(t, err)
	applier.AssertNotCalled(t, "PruneTombstones", mock.Anything)
}

func TestPuller_BadCellDoesNotBlockPull(t *testing.T) {
	book := buildWorkbook(t, map[string][][]any{
		"Produtos": {
			{"id", "name", "currentStock"},
			{"P1", "Widget", "5"},
			{"P2", "Gadget", "n/a"},
		},
	}, "Produtos").Bytes()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(book)
	}))
	defer srv.Close()

	applier := &mockApplier{}
	applier.On("ApplyRemoteSnapshot", mock.MatchedBy(func(s *core.Snapshot) bool {
		return len(s.Products) == 2 && s.Products[0].CurrentStock == 5 && s.Products[1].CurrentStock == 0
	})).Return(0, nil)

	p := syncer.NewPuller(srv.URL, srv.Client(), applier, 0, logger.NewNop())
	_, err := p.Pull(context.Background())
	require.NoError(t, err)
	applier.AssertExpectations(t)
}

func TestPuller_DownloadFailureKeepsState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	applier := &mockApplier{}
	p := syncer.NewPuller(srv.URL, srv.Client(), applier, 0, logger.NewNop())

	_, err := p.Pull(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	applier.AssertNotCalled(t, "ApplyRemoteSnapshot", mock.Anything)

	last, lastErr := p.Status()
	assert.Nil(t, last)
	assert.Error(t, lastErr)
}
