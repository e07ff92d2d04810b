// Package schema creates the sign-off tables and seeds their catalogs.
package schema

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsTable = "schema_migrations"

// Step is one embedded SQL file.
type Step struct {
	Name string
	SQL  string
}

// Steps returns the embedded steps in application order.
func Steps() ([]Step, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	var steps []Step
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		body, err := migrationFiles.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Name: e.Name(), SQL: string(body)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Name < steps[j].Name })
	return steps, nil
}

// Open connects through the pgx database/sql driver.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Runner applies pending steps and records them in schema_migrations.
type Runner struct {
	db    *sql.DB
	steps []Step
	now   func() time.Time
}

// NewRunner creates a runner for the embedded steps.
func NewRunner(db *sql.DB) (*Runner, error) {
	steps, err := Steps()
	if err != nil {
		return nil, err
	}
	return &Runner{db: db, steps: steps, now: time.Now}, nil
}

// Up applies every step not yet recorded, all in one transaction, and
// returns the names applied.
func (r *Runner) Up(ctx context.Context) ([]string, error) {
	ddl := fmt.Sprintf(`
		create table if not exists %s (
			name text primary key,
			applied_at timestamptz not null default now()
		)`, migrationsTable)
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure %s: %w", migrationsTable, err)
	}

	executed, err := r.executed(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var applied []string
	for _, step := range r.steps {
		if executed[step.Name] {
			continue
		}
		if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
			return nil, fmt.Errorf("apply %s: %w", step.Name, err)
		}
		insert := fmt.Sprintf(`insert into %s (name, applied_at) values ($1, $2)`, migrationsTable)
		if _, err := tx.ExecContext(ctx, insert, step.Name, r.now().UTC()); err != nil {
			return nil, fmt.Errorf("record %s: %w", step.Name, err)
		}
		applied = append(applied, step.Name)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return applied, nil
}

func (r *Runner) executed(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, migrationsTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result[name] = true
	}
	return result, rows.Err()
}
