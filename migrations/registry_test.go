package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	payments "github.com/goliatone/go-payments"
	_ "github.com/mattn/go-sqlite3"
)

var gatewayMigrations = []string{
	"00001_payments_core",
	"00002_payments_webhooks",
	"00003_payments_idempotency",
}

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) != len(gatewayMigrations) {
			t.Fatalf("expected %d %s migrations, got %d", len(gatewayMigrations), entry.Dialect, len(matches))
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
	if reg.SourceLabel != "go-payments" {
		t.Fatalf("unexpected source label %q", reg.SourceLabel)
	}
	if len(reg.Registered) != 1 || reg.Registered[0].Path != "data/sql/migrations/sqlite" {
		t.Fatalf("unexpected registered sets %+v", reg.Registered)
	}
}

func TestRegister_UnknownTargetFails(t *testing.T) {
	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		return nil
	}, WithValidationTargets("mysql"))
	if err == nil {
		t.Fatalf("expected error for a dialect without migrations")
	}
}

func TestRegister_RequiresRegisterFunc(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error without register function")
	}
}

func TestMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := payments.GetMigrationsFS()
	for _, name := range gatewayMigrations {
		for _, dir := range []string{"data/sql/migrations/", "data/sql/migrations/sqlite/"} {
			for _, suffix := range []string{".up.sql", ".down.sql"} {
				migrationPath := dir + name + suffix
				content, err := fs.ReadFile(root, migrationPath)
				if err != nil {
					t.Fatalf("read migration %s: %v", migrationPath, err)
				}
				if strings.TrimSpace(string(content)) == "" {
					t.Fatalf("expected migration %s to have SQL content", migrationPath)
				}
			}
		}
	}
}

func TestSQLiteGatewayMigrations_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-gateway?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	sqliteMigrations, err := fs.Sub(payments.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()
	for _, name := range gatewayMigrations {
		if err := execSQLMigration(ctx, db, sqliteMigrations, name+".up.sql"); err != nil {
			t.Fatalf("apply %s: %v", name, err)
		}
	}

	for _, table := range []string{"merchants", "orders", "payments", "payment_logs", "refunds", "webhooks", "webhook_logs", "idempotency_keys"} {
		if countTables(t, db, table) != 1 {
			t.Fatalf("expected table %s after up migrations", table)
		}
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO merchants (id, name, email, api_key, api_secret) VALUES (?, ?, ?, ?, ?)`,
		"mrc_1", "Test", "test@example.com", "key_1", "secret_1",
	); err != nil {
		t.Fatalf("insert merchant: %v", err)
	}
	insertKey := `INSERT INTO idempotency_keys (id, merchant_id, idempotency_key, request_hash, response_code, response_body, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insertKey, "idem_1", "mrc_1", "k1", "hash", 201, []byte("{}"), "2026-03-02T00:00:00Z"); err != nil {
		t.Fatalf("insert idempotency key: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertKey, "idem_2", "mrc_1", "k1", "hash", 201, []byte("{}"), "2026-03-02T00:00:00Z"); err == nil {
		t.Fatalf("expected unique (merchant_id, idempotency_key) violation")
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO orders (id, merchant_id, amount) VALUES (?, ?, ?)`, "order_1", "mrc_1", 99,
	); err == nil {
		t.Fatalf("expected minimum amount check to reject 99")
	}

	for i := len(gatewayMigrations) - 1; i >= 0; i-- {
		if err := execSQLMigration(ctx, db, sqliteMigrations, gatewayMigrations[i]+".down.sql"); err != nil {
			t.Fatalf("rollback %s: %v", gatewayMigrations[i], err)
		}
	}
	if countTables(t, db, "payments") != 0 {
		t.Fatalf("expected payments to be dropped after down migrations")
	}
}

func countTables(t *testing.T, db *sql.DB, name string) int {
	t.Helper()
	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		name,
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master for %s: %v", name, err)
	}
	return count
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
