package store

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"

	"github.com/guildai/guildflow/pkg/schema"
)

//go:embed migrations/001_initial_schema.sql
var migration001 string

// archiveMigrations is the ordered migration history. Append only; versions
// already recorded in archive_schema are never re-run.
var archiveMigrations = []struct {
	version int
	name    string
	script  string
}{
	{1, "initial_schema", migration001},
}

// applyMigrations brings the archive database up to the latest version.
// Each pending migration runs in its own transaction and is recorded in
// archive_schema on commit.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS archive_schema (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return schema.NewError(schema.ErrCodeStore, "create archive_schema: "+err.Error()).WithCause(err)
	}

	current, err := appliedVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range archiveMigrations {
		if m.version <= current {
			continue
		}
		if err := applyOne(ctx, db, m.version, m.name, m.script); err != nil {
			return err
		}
	}
	return nil
}

func appliedVersion(ctx context.Context, db *sql.DB) (int, error) {
	var current int
	row := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM archive_schema`)
	if err := row.Scan(&current); err != nil {
		return 0, schema.NewError(schema.ErrCodeStore, "read archive_schema: "+err.Error()).WithCause(err)
	}
	return current, nil
}

func applyOne(ctx context.Context, db *sql.DB, version int, name, script string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "begin migration %d (%s): %s", version, name, err.Error()).WithCause(err)
	}
	defer tx.Rollback()

	for _, stmt := range sqlStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "migration %d (%s): %s", version, name, err.Error()).WithCause(err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO archive_schema (version, name) VALUES (?, ?)`, version, name); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "record migration %d (%s): %s", version, name, err.Error()).WithCause(err)
	}
	if err := tx.Commit(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "commit migration %d (%s): %s", version, name, err.Error()).WithCause(err)
	}
	return nil
}

// sqlStatements strips -- comments from a script and splits it into
// executable statements on semicolons.
func sqlStatements(script string) []string {
	var clean strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		clean.WriteString(line)
		clean.WriteString("\n")
	}

	var stmts []string
	for _, raw := range strings.Split(clean.String(), ";") {
		if s := strings.TrimSpace(raw); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
