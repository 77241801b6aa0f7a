package sqltier

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"

	"github.com/mesh-intelligence/landrecords/internal/tiertest"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// EnvPostgresDSN points the conformance suite at a live PostgreSQL server.
// `mage stack:up` starts one and prints the matching value.
const EnvPostgresDSN = "LANDRECORDS_TEST_POSTGRES_DSN"

func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv(EnvPostgresDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvPostgresDSN)
	}
	tiertest.Run(t, func(t *testing.T) types.Tier {
		tier, err := Open(postgres.Open(dsn), zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, tier.db.Exec("TRUNCATE records, files, aux_entities, recycle_bin").Error)
		t.Cleanup(func() { tier.Close() })
		return tier
	})
}
