//go:build integration

package compile

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/roach88/aqlc/internal/config"
	"github.com/roach88/aqlc/internal/prepass"
	"github.com/roach88/aqlc/internal/testutil"
)

// TestCompile_RunsOnPostgres executes compiled statements against an empty
// database with the storage schema, so PostgreSQL parses, plans and runs
// every one of them.
func TestCompile_RunsOnPostgres(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("ehrbase"),
		postgres.WithUsername("ehrbase"),
		postgres.WithPassword("ehrbase"),
		postgres.WithInitScripts("../schema/schema.sql"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Second*60),
		),
	)
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	defer conn.Close(ctx)

	opts := config.Default()
	opts.FolderEnabled = true
	comp := newCompiler(opts)
	comp.Knowledge = testutil.Knowledge()

	queries := []struct {
		name   string
		query  string
		params map[string]any
	}{
		{"ehr ids", "SELECT e/ehr_id/value FROM EHR e", nil},
		{"composition uid", "SELECT c/uid/value, c/name/value FROM EHR e CONTAINS COMPOSITION c", nil},
		{"whole composition", "SELECT c FROM COMPOSITION c LIMIT 10", nil},
		{"template id", "SELECT c/archetype_details/template_id/value FROM COMPOSITION c ORDER BY c/archetype_details/template_id/value", nil},
		{"archetype node id", "SELECT c/archetype_node_id FROM COMPOSITION c ORDER BY c/archetype_node_id DESC", nil},
		{"observation path", "SELECT o/data[at0001]/events[at0002]/data[at0003]/items[at0004]/value/magnitude FROM COMPOSITION c CONTAINS OBSERVATION o[openEHR-EHR-OBSERVATION.blood_pressure.v2]", nil},
		{"parameters", "SELECT c/uid/value FROM EHR e CONTAINS COMPOSITION c WHERE e/ehr_id/value = $ehr_id AND c/name/value LIKE 'Vital*'", map[string]any{"ehr_id": "a6ddec4c-a68a-49ef-963e-3e0bc1970a28"}},
		{"count", "SELECT COUNT(c/uid/value) FROM COMPOSITION c", nil},
		{"primitives only", "SELECT 1 FROM EHR e", nil},
		{"ehr status", "SELECT e/ehr_status/is_queryable FROM EHR e", nil},
		{"version", "SELECT v/commit_audit/time_committed/value FROM VERSION v CONTAINS COMPOSITION c ORDER BY v/commit_audit/time_committed/value", nil},
		{"folder", "SELECT f/name/value, c/uid/value FROM EHR e CONTAINS FOLDER f CONTAINS COMPOSITION c", nil},
	}
	for _, tt := range queries {
		t.Run(tt.name, func(t *testing.T) {
			res, err := comp.Compile(ctx, tt.query, tt.params, prepass.Page{})
			require.NoError(t, err)

			rows, err := conn.Query(ctx, res.Statement.SQL, res.Statement.Args...)
			require.NoError(t, err, res.Statement.SQL)
			for rows.Next() {
			}
			rows.Close()
			require.NoError(t, rows.Err(), res.Statement.SQL)
		})
	}
}
