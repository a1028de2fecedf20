package submissionlog

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_submission_log.up.sql")
	assert.Contains(t, names, "000001_submission_log.down.sql")
}

func TestPostgresLog_Append(t *testing.T) {
	databaseURL := os.Getenv("VENDEDOR360_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("VENDEDOR360_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	log, err := NewPostgresLog(ctx, databaseURL)
	require.NoError(t, err)
	defer log.Close()

	rec := testRecord()
	rec.Portal = "wherex"
	rec.OpportunityID = "LIC-pg-test"
	rec.RunID = "run-pg-test"
	require.NoError(t, log.Append(ctx, rec))

	var code, price string
	err = log.pool.QueryRow(ctx,
		`SELECT product_code, price::text FROM submission_log WHERE run_id = $1 ORDER BY id DESC LIMIT 1`,
		rec.RunID,
	).Scan(&code, &price)
	require.NoError(t, err)
	assert.Equal(t, "A1", code)
	assert.Equal(t, "10000", price)

	_, err = log.pool.Exec(ctx, `DELETE FROM submission_log WHERE run_id = $1`, rec.RunID)
	require.NoError(t, err)
}
