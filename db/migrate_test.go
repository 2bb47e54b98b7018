package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	testDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	testDB.SetMaxOpenConns(1)
	t.Cleanup(func() { testDB.Close() })
	return testDB
}

func TestMigrateCreatesSchema(t *testing.T) {
	testDB := openTestDB(t)

	require.NoError(t, Migrate(testDB, nil))

	for _, table := range []string{"schema_migrations", "checkin_runs", "member_checkins"} {
		var name string
		err := testDB.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	testDB := openTestDB(t)

	require.NoError(t, Migrate(testDB, nil))
	require.NoError(t, Migrate(testDB, nil))

	var count int
	err := testDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one row per migration, applied once")
}

func TestLedgerUniqueConstraint(t *testing.T) {
	testDB := openTestDB(t)
	require.NoError(t, Migrate(testDB, nil))

	_, err := testDB.Exec(`INSERT INTO checkin_runs (run_id, status, started_at) VALUES ('run-1', 'processing', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	insert := `INSERT INTO member_checkins (run_id, member_id, member_name, checkin_timestamp) VALUES ('run-1', 'm1', 'Ana', CURRENT_TIMESTAMP)`
	_, err = testDB.Exec(insert)
	require.NoError(t, err)

	_, err = testDB.Exec(insert)
	assert.Error(t, err, "duplicate (run_id, member_id) must violate the unique index")
}
