package harness_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avantgardnerio/hermitage/internal/annotation"
	"github.com/avantgardnerio/hermitage/internal/backend"
	"github.com/avantgardnerio/hermitage/internal/harness"
	"github.com/avantgardnerio/hermitage/internal/testutil"
)

// runSQLite runs sc on three sessions of a fresh WAL-mode database file.
func runSQLite(t *testing.T, sc *harness.Scenario) *harness.Result {
	t.Helper()
	b, ok := backend.Get("sqlite")
	require.True(t, ok)

	ctx := context.Background()
	logger := testutil.NewTestLogger(t)
	target := backend.Target{Type: "sqlite", Database: filepath.Join(t.TempDir(), "hermitage.db")}

	set, err := backend.Connect(ctx, b, target, 3, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })

	result, err := harness.Run(ctx, set.Sessions(), backend.NewFixture(b, logger), sc,
		harness.WithClassifier(b.Classifier()),
		harness.WithSettle(200*time.Millisecond),
		harness.WithLogger(logger),
	)
	require.NoError(t, err)
	return result
}

func TestSQLite_G0(t *testing.T) {
	sc := &harness.Scenario{
		Name:        "sqlite_g0",
		Description: "Write cycles (G0)",
		Steps: []harness.Step{
			{Exec: "begin; -- T1"},
			{Exec: "begin; -- T2"},
			{Exec: "update test set value = 11 where id = 1; -- T1"},
			{Block: "update test set value = 12 where id = 1; -- T2"},
			{Exec: "update test set value = 21 where id = 2; -- T1"},
			{Query: "select * from test; -- T1, 1 => 11, 2 => 21"},
			{Unblock: "commit; -- T1"},
			{Exec: "update test set value = 22 where id = 2; -- T2"},
			{Exec: "commit; -- T2"},
			{Query: "select * from test; -- either, 1 => 12, 2 => 22"},
		},
	}

	result := runSQLite(t, sc)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSQLite_G1a(t *testing.T) {
	sc := &harness.Scenario{
		Name:        "sqlite_g1a",
		Description: "Aborted reads (G1a)",
		Steps: []harness.Step{
			{Exec: "begin; -- T1"},
			{Exec: "begin; -- T2"},
			{Exec: "update test set value = 101 where id = 1; -- T1"},
			{Query: "select * from test; -- T2, 1 => 10"},
			{Exec: "rollback; -- T1"},
			{Query: "select * from test; -- T2, 1 => 10"},
			{Exec: "commit; -- T2"},
		},
	}

	result := runSQLite(t, sc)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSQLite_Catalog(t *testing.T) {
	scenarios, err := harness.LoadScenarios(filepath.Join("..", "..", "scenarios", "sqlite"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			require.True(t, sc.AppliesTo("sqlite"))
			result := runSQLite(t, sc)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

// TestPostgres_Catalog runs the postgres catalog against a live server.
// Set HERMITAGE_POSTGRES_DSN to enable it.
func TestPostgres_Catalog(t *testing.T) {
	dsn := os.Getenv("HERMITAGE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HERMITAGE_POSTGRES_DSN not set")
	}
	b, ok := backend.Get("postgres")
	require.True(t, ok)

	scenarios, err := harness.LoadScenarios(filepath.Join("..", "..", "scenarios", "postgres"))
	require.NoError(t, err)

	ctx := context.Background()
	logger := testutil.NewTestLogger(t)
	set, err := backend.Connect(ctx, b, backend.Target{Type: "postgres", DSN: dsn}, 3, logger)
	require.NoError(t, err)
	defer func() { _ = set.Close() }()

	fixture := backend.NewFixture(b, logger)
	for _, sc := range scenarios {
		if !sc.AppliesTo("postgres") {
			continue
		}
		t.Run(sc.Name, func(t *testing.T) {
			result, err := harness.Run(ctx, set.Sessions(), fixture, sc,
				harness.WithClassifier(b.Classifier()),
				harness.WithSettle(b.Settle),
				harness.WithLogger(logger),
			)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

// A prevented write skew is only shown once both sessions see T1's write
// alone after T2's commit fails.
func TestPostgresCatalog_G2ItemSerializableChecksFinalState(t *testing.T) {
	sc, err := harness.LoadScenario(filepath.Join("..", "..", "scenarios", "postgres", "g2_item_serializable.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, sc.Steps)

	last := sc.Steps[len(sc.Steps)-1]
	require.Equal(t, harness.StepQuery, last.Kind())

	ann, err := annotation.Parse(last.Query)
	require.NoError(t, err)
	assert.Equal(t, annotation.EitherLabel, ann.Label)
	assert.Equal(t, annotation.ExpectSubset, ann.Expectation.Kind)
	assert.Equal(t, map[int64]int64{1: 11, 2: 20}, ann.Expectation.Values)

	prev := sc.Steps[len(sc.Steps)-2]
	require.NotNil(t, prev.ExpectError)
	assert.Equal(t, "rw_dependency", string(prev.ExpectError.Kind))
}
