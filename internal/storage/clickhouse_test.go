package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IliyaBaranov/agora/internal/config"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/types"
)

type recordingExecer struct {
	statements []string
	failOn     int
}

func (r *recordingExecer) Exec(_ context.Context, query string, _ ...interface{}) error {
	r.statements = append(r.statements, query)
	if r.failOn > 0 && len(r.statements) == r.failOn {
		return errors.New("syntax error")
	}
	return nil
}

func TestSplitSQLStatements(t *testing.T) {
	content := `-- journal
CREATE TABLE a (
    id String
)
ENGINE = MergeTree
ORDER BY id;

-- second
ALTER TABLE a ADD COLUMN IF NOT EXISTS note String;
SELECT 1`

	got := splitSQLStatements(content)
	require.Len(t, got, 3)
	assert.Equal(t, "CREATE TABLE a (\n    id String\n)\nENGINE = MergeTree\nORDER BY id", got[0])
	assert.Equal(t, "ALTER TABLE a ADD COLUMN IF NOT EXISTS note String", got[1])
	assert.Equal(t, "SELECT 1", got[2])
	assert.Empty(t, splitSQLStatements("-- only a comment\n\n"))
}

func TestRunClickHouseMigrations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("000002_second.up.sql", "CREATE TABLE b (x UInt8) ENGINE = Memory;")
	write("000001_first.up.sql", "CREATE TABLE a (x UInt8) ENGINE = Memory;\nCREATE TABLE c (x UInt8) ENGINE = Memory;")
	write("000001_first.down.sql", "DROP TABLE a;")
	write("README.md", "not sql")

	db := &recordingExecer{}
	require.NoError(t, RunClickHouseMigrations(context.Background(), db, dir))
	assert.Equal(t, []string{
		"CREATE TABLE a (x UInt8) ENGINE = Memory",
		"CREATE TABLE c (x UInt8) ENGINE = Memory",
		"CREATE TABLE b (x UInt8) ENGINE = Memory",
	}, db.statements)

	failing := &recordingExecer{failOn: 2}
	err := RunClickHouseMigrations(context.Background(), failing, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 2 in 000001_first.up.sql")
	assert.Len(t, failing.statements, 2)

	assert.Error(t, RunClickHouseMigrations(context.Background(), db, filepath.Join(dir, "missing")))
}

func TestRunClickHouseMigrations_RepositorySchema(t *testing.T) {
	db := &recordingExecer{}
	require.NoError(t, RunClickHouseMigrations(context.Background(), db, "../../"+DefaultClickHouseMigrationsPath))
	require.Len(t, db.statements, 1)
	assert.Contains(t, db.statements[0], "CREATE TABLE IF NOT EXISTS operation_journal")
	assert.NotContains(t, db.statements[0], ";")
}

func TestClickHouseJournal_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewClickHouseDB(&config.ClickHouseConfig{
		Host:     "localhost",
		Port:     "9000",
		Database: "default",
		User:     "default",
	})
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
		return
	}
	defer func() { _ = db.Close() }()

	ctx := testContext(t)
	if err := RunClickHouseMigrations(ctx, db, "../../"+DefaultClickHouseMigrationsPath); err != nil {
		t.Skipf("Skipping test - migrations failed: %v", err)
		return
	}
	require.NoError(t, db.Ping(ctx))

	journal := NewClickHouseJournal(db)
	msg := "backend refused"
	e := &models.JournalEntry{
		RequestID:  "req-ch",
		Operation:  "take_job",
		EntityType: "job",
		EntityID:   "12",
		Policy:     types.PolicyConfirmFirst,
		Outcome:    types.OutcomeFailed,
		Error:      &msg,
	}
	require.NoError(t, journal.Append(ctx, e))
	assert.NotEmpty(t, e.ID)

	recent, err := journal.Recent(ctx, 10)
	require.NoError(t, err)

	var found *models.JournalEntry
	for i := range recent {
		if recent[i].ID == e.ID {
			found = &recent[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, types.OutcomeFailed, found.Outcome)
	require.NotNil(t, found.Error)
	assert.Equal(t, msg, *found.Error)

	require.NoError(t, db.Exec(ctx, "ALTER TABLE operation_journal DELETE WHERE id = ?", e.ID))
}
