package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-payments/core"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// PersistenceConfig adapts core.StoreConfig to go-persistence-bun.
type PersistenceConfig struct {
	Driver      string
	DSN         string
	Debug       bool
	PingTimeout time.Duration
	Identifier  string
}

func (c PersistenceConfig) GetDebug() bool            { return c.Debug }
func (c PersistenceConfig) GetDriver() string         { return c.Driver }
func (c PersistenceConfig) GetServer() string         { return c.DSN }
func (c PersistenceConfig) GetOtelIdentifier() string { return c.Identifier }
func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

// MigrationDialect maps a driver name onto the migrations dialect label.
func MigrationDialect(driver string) string {
	if strings.TrimSpace(driver) == DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Open builds a persistence client for cfg. The database/sql driver must be
// registered by the caller (lib/pq or go-sqlite3).
func Open(cfg core.StoreConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(cfg.Driver)
	var dialect schema.Dialect
	switch driver {
	case DriverPostgres:
		dialect = pgdialect.New()
	case DriverSQLite:
		dialect = sqlitedialect.New()
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}
	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(PersistenceConfig{
		Driver:     driver,
		DSN:        cfg.DSN,
		Debug:      cfg.Debug,
		Identifier: "go-payments",
	}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: persistence client: %w", err)
	}
	return client, nil
}
