package doctier

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/internal/tiertest"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

func openTestTier(t *testing.T) (*Tier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "test", zap.NewNop()), mr
}

func TestTierConformance(t *testing.T) {
	tiertest.Run(t, func(t *testing.T) types.Tier {
		tier, _ := openTestTier(t)
		return tier
	})
}

func TestKeysArePrefixed(t *testing.T) {
	tier, mr := openTestTier(t)
	ctx := context.Background()
	require.NoError(t, tier.PutRecords(ctx, types.ModuleAdangal, []*types.Record{
		tiertest.Record("adangal_row_1_000001", types.ModuleAdangal, "f1", "Owner", "Ravi"),
	}))

	assert.True(t, mr.Exists("test:record:adangal_row_1_000001"))
	members, err := mr.Members("test:records:adangal:file:f1")
	require.NoError(t, err)
	assert.Equal(t, []string{"adangal_row_1_000001"}, members)
}

func TestRecordMovedBetweenDatasets(t *testing.T) {
	tier, _ := openTestTier(t)
	ctx := context.Background()
	r := tiertest.Record("adangal_row_1_000001", types.ModuleAdangal, "f1", "Owner", "Ravi")
	require.NoError(t, tier.PutRecords(ctx, types.ModuleAdangal, []*types.Record{r}))

	moved := r.Clone()
	moved.FileID = "f2"
	require.NoError(t, tier.PutRecords(ctx, types.ModuleAdangal, []*types.Record{moved}))

	old, err := tier.ListRecords(ctx, types.ModuleAdangal, "f1")
	require.NoError(t, err)
	assert.Empty(t, old)
	cur, err := tier.ListRecords(ctx, types.ModuleAdangal, "f2")
	require.NoError(t, err)
	assert.Len(t, cur, 1)
}

func TestWatchDeliversChanges(t *testing.T) {
	tier, _ := openTestTier(t)
	ctx := context.Background()

	changes := make(chan types.Change, 4)
	sub, err := tier.Watch(ctx, types.ModuleChitta, func(c types.Change) { changes <- c })
	require.NoError(t, err)

	require.NoError(t, tier.PutRecords(ctx, types.ModuleChitta, []*types.Record{
		tiertest.Record("chitta_row_1_000001", types.ModuleChitta, "c1", "Patta", "7"),
	}))
	// Writes to other modules are not delivered.
	require.NoError(t, tier.PutRecords(ctx, types.ModuleAdangal, []*types.Record{
		tiertest.Record("adangal_row_1_000001", types.ModuleAdangal, "f1"),
	}))

	select {
	case c := <-changes:
		assert.Equal(t, types.ModuleChitta, c.Module)
		assert.Equal(t, TierName, c.Tier)
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}

	sub.Cancel()
	sub.Cancel()
	require.NoError(t, tier.PutRecords(ctx, types.ModuleChitta, []*types.Record{
		tiertest.Record("chitta_row_1_000002", types.ModuleChitta, "c1"),
	}))
	select {
	case c := <-changes:
		t.Fatalf("change delivered after cancel: %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnconfiguredTier(t *testing.T) {
	tier := Connect(context.Background(), Options{}, zap.NewNop())
	assert.False(t, tier.Available())
	assert.Equal(t, TierName, tier.Name())

	_, err := tier.GetRecord(context.Background(), "x")
	assert.ErrorIs(t, err, types.ErrTierUnavailable)
	_, err = tier.Watch(context.Background(), types.ModuleAdangal, func(types.Change) {})
	assert.ErrorIs(t, err, types.ErrTierUnavailable)
}

func TestConnectUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	tier := Connect(context.Background(), Options{Addr: addr}, zap.NewNop())
	assert.False(t, tier.Available())
}

func TestConnectReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	tier := Connect(context.Background(), Options{Addr: mr.Addr()}, zap.NewNop())
	defer tier.Close()
	assert.True(t, tier.Available())
}
