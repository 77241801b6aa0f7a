package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/internal/tiertest"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

type fakeSource struct {
	calls    atomic.Int32
	err      error
	datasets []*types.Dataset
	records  []*types.Record
}

func (f *fakeSource) ListDatasets(_ context.Context, module string) ([]*types.Dataset, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var out []*types.Dataset
	for _, d := range f.datasets {
		if d.Module == module {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeSource) ListRecords(_ context.Context, module, datasetID string) ([]*types.Record, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var out []*types.Record
	for _, r := range f.records {
		if r.Module == module && (datasetID == "" || r.FileID == datasetID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func newFixture(t *testing.T) (*fakeSource, *httptest.Server) {
	t.Helper()
	src := &fakeSource{
		datasets: []*types.Dataset{tiertest.Dataset("adangal_file_1", types.ModuleAdangal, "Owner", "Area")},
		records: []*types.Record{
			tiertest.Record("adangal_row_1_000001", types.ModuleAdangal, "adangal_file_1", "Owner", "Ravi", "Area", "2"),
			tiertest.Record("adangal_row_2_000001", types.ModuleAdangal, "adangal_file_2", "Owner", "Mala"),
		},
	}
	srv := httptest.NewServer(NewRouter(src, func() bool { return true }, zap.NewNop()))
	t.Cleanup(srv.Close)
	return src, srv
}

func TestClientReadsThroughServer(t *testing.T) {
	_, srv := newFixture(t)
	c := NewClient(ClientConfig{BaseURL: srv.URL + "/"}, zap.NewNop())
	require.True(t, c.Available())
	ctx := context.Background()

	files, err := c.ListDatasets(ctx, types.ModuleAdangal)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, []string{"Owner", "Area"}, files[0].Columns)

	recs, err := c.ListRecords(ctx, types.ModuleAdangal, "adangal_file_1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"Owner", "Area"}, recs[0].Columns.Keys())
	assert.True(t, recs[0].CreatedDate.Equal(tiertest.Base))

	all, err := c.ListRecords(ctx, types.ModuleAdangal, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := c.ListRecords(ctx, types.ModuleChitta, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClientCachesResponses(t *testing.T) {
	src, srv := newFixture(t)
	c := NewClient(ClientConfig{BaseURL: srv.URL, CacheTTL: time.Minute}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.ListRecords(ctx, types.ModuleAdangal, "")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())

	c.Invalidate()
	_, err := c.ListRecords(ctx, types.ModuleAdangal, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestClientServerErrorIsUnavailable(t *testing.T) {
	src, srv := newFixture(t)
	src.err = errors.New("backend down")
	c := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())

	_, err := c.ListRecords(context.Background(), types.ModuleAdangal, "")
	assert.ErrorIs(t, err, types.ErrTierUnavailable)
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{BaseURL: url, Timeout: time.Second}, zap.NewNop())
	_, err := c.ListDatasets(context.Background(), types.ModuleAdangal)
	assert.ErrorIs(t, err, types.ErrTierUnavailable)
}

func TestClientIsReadOnly(t *testing.T) {
	_, srv := newFixture(t)
	c := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())
	ctx := context.Background()

	assert.ErrorIs(t, c.PutRecords(ctx, types.ModuleAdangal, nil), types.ErrReadOnly)
	assert.ErrorIs(t, c.PutDataset(ctx, &types.Dataset{}), types.ErrReadOnly)
	assert.ErrorIs(t, c.DeleteRecords(ctx, []string{"x"}), types.ErrReadOnly)
	_, err := c.ClearModified(ctx, types.ModuleAdangal)
	assert.ErrorIs(t, err, types.ErrReadOnly)
	_, err = c.EmptyBin(ctx)
	assert.ErrorIs(t, err, types.ErrReadOnly)

	_, err = c.GetRecord(ctx, "adangal_row_1_000001")
	assert.ErrorIs(t, err, types.ErrUnsupported)
	_, err = c.ListBin(ctx)
	assert.ErrorIs(t, err, types.ErrUnsupported)
}

func TestClientUnconfigured(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative"} {
		c := NewClient(ClientConfig{BaseURL: base}, zap.NewNop())
		assert.False(t, c.Available(), base)
		_, err := c.ListRecords(context.Background(), types.ModuleAdangal, "")
		assert.ErrorIs(t, err, types.ErrTierUnavailable, base)
	}
}

func TestServerRejectsBadModule(t *testing.T) {
	_, srv := newFixture(t)
	for _, path := range []string{"/files", "/records?module=Bad%20Name"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestServerHealthAndMetrics(t *testing.T) {
	_, srv := newFixture(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Offline)

	mresp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	mresp.Body.Close()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
}

func TestServerEmptyListIsArray(t *testing.T) {
	_, srv := newFixture(t)
	resp, err := http.Get(srv.URL + "/files?module=chitta")
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw))
}

func TestServerRunStopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", &fakeSource{}, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
