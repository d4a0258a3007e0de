package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/IliyaBaranov/agora/internal/logging"
)

// DefaultClickHouseMigrationsPath holds the ClickHouse journal schema
const DefaultClickHouseMigrationsPath = "migrations/clickhouse"

// statementExecer runs one DDL statement; ClickHouseDB satisfies it
type statementExecer interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// RunClickHouseMigrations applies every *.up.sql file under migrationsPath in name order.
// The statements must be idempotent (CREATE ... IF NOT EXISTS); ClickHouse keeps no
// version table here, so every run replays them.
func RunClickHouseMigrations(ctx context.Context, db statementExecer, migrationsPath string) error {
	if migrationsPath == "" {
		migrationsPath = DefaultClickHouseMigrationsPath
	}
	files, err := upMigrationFiles(migrationsPath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logging.Infof("No ClickHouse migration files found in %s", migrationsPath)
		return nil
	}

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(migrationsPath, name)) // #nosec G304 - path comes from the operator
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		for i, stmt := range splitSQLStatements(string(content)) {
			if err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute statement %d in %s: %w", i+1, name, err)
			}
		}
		logging.Infof("Applied ClickHouse migration %s", name)
	}
	return nil
}

func upMigrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// splitSQLStatements splits a migration file on statement-ending semicolons,
// dropping blank and comment-only lines. ClickHouse rejects the trailing semicolon.
func splitSQLStatements(content string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	flush := func() {
		stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return statements
}
