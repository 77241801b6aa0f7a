// Package sqltier implements the remote SQL tier on gorm over PostgreSQL.
package sqltier

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// TierName is the name the SQL tier reports to the orchestrator.
const TierName = "sql"

var _ types.Tier = (*Tier)(nil)

// ErrUnsupportedDSN is returned for DSNs that match no known driver.
var ErrUnsupportedDSN = errors.New("unsupported sql dsn")

// Tier is a types.Tier on a gorm database. A Tier whose database could not be
// opened stays in the fallback list but reports itself unavailable.
type Tier struct {
	db  *gorm.DB
	log *zap.Logger
}

// Dialector picks the gorm driver for dsn. postgres:// and postgresql://
// URLs and key=value strings go to PostgreSQL.
//
// Only the PostgreSQL driver is linked here. The local store registers the
// modernc "sqlite" database/sql driver, and a second SQLite driver in the
// same binary would collide with it at init.
func Dialector(dsn string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, redact(dsn))
	}
}

// Open connects with dialector and migrates the schema.
func Open(dialector gorm.Dialector, log *zap.Logger) (*Tier, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to sql tier: %w", err)
	}
	if err := db.AutoMigrate(&recordRow{}, &fileRow{}, &auxRow{}, &binRow{}); err != nil {
		return nil, fmt.Errorf("migrating sql tier: %w", err)
	}
	return &Tier{db: db, log: log}, nil
}

// Connect opens the tier for dsn. An empty dsn means not configured; a
// connection failure is logged. Either way the returned tier is unavailable
// and never touched by the orchestrator.
func Connect(dsn string, log *zap.Logger) *Tier {
	if dsn == "" {
		return &Tier{log: log}
	}
	dialector, err := Dialector(dsn)
	if err == nil {
		var t *Tier
		if t, err = Open(dialector, log); err == nil {
			if sqlDB, dbErr := t.db.DB(); dbErr == nil {
				sqlDB.SetMaxIdleConns(4)
				sqlDB.SetMaxOpenConns(16)
				sqlDB.SetConnMaxLifetime(time.Hour)
			}
			return t
		}
	}
	log.Warn("sql tier unavailable", zap.String("tier", TierName), zap.Error(err))
	return &Tier{log: log}
}

// Name implements types.Tier.
func (t *Tier) Name() string { return TierName }

// Available implements types.Tier.
func (t *Tier) Available() bool { return t.db != nil }

// Close releases the connection pool.
func (t *Tier) Close() error {
	if t.db == nil {
		return nil
	}
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (t *Tier) conn() (*gorm.DB, error) {
	if t.db == nil {
		return nil, types.ErrTierUnavailable
	}
	return t.db, nil
}

// redact drops credentials from a URL-style DSN for error messages.
func redact(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			return dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return dsn
}
