// Package migrations exposes the embedded gateway schema per SQL dialect.
//
// Postgres files live in data/sql/migrations and sqlite files in its sqlite/
// subdirectory; both sets carry the same numbered up/down pairs.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	payments "github.com/goliatone/go-payments"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	sourceLabel = "go-payments"
	rootDir     = "data/sql/migrations"
)

// DialectFS is the migration set for one dialect.
type DialectFS struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel string
	Targets     []string
	Registered  []DialectFS
}

// RegisterFunc receives each selected dialect set, usually forwarding it to
// persistence.Client.RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

// WithValidationTargets restricts registration to the named dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		selected := normalizeDialects(targets)
		if len(selected) > 0 {
			r.Targets = selected
		}
	}
}

// Filesystems resolves the postgres and sqlite sets from root, defaulting to
// the embedded module FS. Each set must contain at least one *.up.sql file.
func Filesystems(root ...fs.FS) ([]DialectFS, error) {
	source := payments.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		source = root[0]
	}
	postgres, err := fs.Sub(source, rootDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootDir, err)
	}
	sqlite, err := fs.Sub(postgres, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite set: %w", err)
	}

	sets := []DialectFS{
		{Dialect: DialectPostgres, Path: rootDir, FS: postgres},
		{Dialect: DialectSQLite, Path: rootDir + "/sqlite", FS: sqlite},
	}
	for _, set := range sets {
		ups, err := fs.Glob(set.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: list %s: %w", set.Path, err)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: %s has no *.up.sql files", set.Path)
		}
	}
	return sets, nil
}

// Register hands every targeted dialect set to registerFn. Both dialects are
// targeted unless WithValidationTargets narrows the list.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel: sourceLabel,
		Targets:     []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	sets, err := Filesystems()
	if err != nil {
		return reg, err
	}
	for _, set := range sets {
		if !slices.Contains(reg.Targets, set.Dialect) {
			continue
		}
		if err := registerFn(ctx, set.Dialect, reg.SourceLabel, set.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s: %w", set.Dialect, err)
		}
		reg.Registered = append(reg.Registered, set)
	}
	if len(reg.Registered) == 0 {
		return reg, fmt.Errorf("migrations: no migration set matches targets %v", reg.Targets)
	}
	return reg, nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		dialect := strings.ToLower(strings.TrimSpace(value))
		if dialect != "" && !slices.Contains(out, dialect) {
			out = append(out, dialect)
		}
	}
	return out
}
