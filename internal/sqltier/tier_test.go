package sqltier

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"

	"github.com/mesh-intelligence/landrecords/internal/tiertest"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// openTestTier runs the tier on a file-backed SQLite database through the
// glebarez gorm driver. It is linked into this test binary only.
func openTestTier(t *testing.T) *Tier {
	t.Helper()
	tier, err := Open(sqlite.Open(filepath.Join(t.TempDir(), "sql.db")), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { tier.Close() })
	return tier
}

func TestTierConformance(t *testing.T) {
	tiertest.Run(t, func(t *testing.T) types.Tier { return openTestTier(t) })
}

func TestDialector(t *testing.T) {
	tests := []struct {
		dsn     string
		wantErr bool
	}{
		{dsn: "postgres://u:p@db:5432/land"},
		{dsn: "postgresql://db/land"},
		{dsn: "host=db user=u dbname=land"},
		{dsn: "sqlite:///var/lib/land/sql.db", wantErr: true},
		{dsn: "mysql://db/land", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			d, err := Dialector(tt.dsn)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedDSN)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &postgres.Dialector{}, d)
		})
	}
}

func TestRedactHidesCredentials(t *testing.T) {
	assert.Equal(t, "mysql://***@db/land", redact("mysql://user:secret@db/land"))
	assert.Equal(t, "plain", redact("plain"))
}

func TestConnectUnconfigured(t *testing.T) {
	tier := Connect("", zap.NewNop())
	assert.False(t, tier.Available())
	assert.Equal(t, TierName, tier.Name())

	_, err := tier.ListRecords(context.Background(), types.ModuleAdangal, "")
	assert.ErrorIs(t, err, types.ErrTierUnavailable)
	assert.NoError(t, tier.Close())
}

func TestConnectBadDSNIsUnavailable(t *testing.T) {
	tier := Connect("ftp://nowhere", zap.NewNop())
	assert.False(t, tier.Available())
}

func TestReorderRestoresColumnOrder(t *testing.T) {
	stored := types.NewColumns("Area", "2", "Owner", "Ravi", "Survey No", "12", "Extra", "x")
	got := reorder(stored, []string{"Survey No", "Owner", "Area"})
	assert.Equal(t, []string{"Survey No", "Owner", "Area", "Extra"}, got.Keys())
	assert.Equal(t, "Ravi", got.Value("Owner"))
}

func TestRecordRowKeepsAuditFields(t *testing.T) {
	r := tiertest.Record("adangal_row_1_000001", types.ModuleAdangal, "f1", "Owner", "Ravi")
	r.ApplyEdit(types.NewColumns("Owner", "Kumar"), "vao", tiertest.Base)
	r.ImageURL = "https://img/1.png"

	row, err := toRecordRow(r)
	require.NoError(t, err)
	back, err := row.record()
	require.NoError(t, err)
	assert.Equal(t, r.ID, back.ID)
	assert.True(t, back.IsNew)
	assert.True(t, back.IsUpdated)
	assert.True(t, back.IsModified)
	assert.Equal(t, "vao", back.UpdatedBy)
	assert.Equal(t, "https://img/1.png", back.ImageURL)
	assert.True(t, r.Columns.Equal(back.Columns))
}
