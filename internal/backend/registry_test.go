package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_AllBackendsRegistered(t *testing.T) {
	assert.Equal(t, []string{"cockroach", "duckdb", "flightsql", "mysql", "postgres", "sqlite"}, List())
}

func TestGet_CaseInsensitive(t *testing.T) {
	b, ok := Get("Postgres")
	require.True(t, ok)
	assert.Equal(t, "postgres", b.Name)
	assert.Equal(t, "pgx", b.Driver)

	_, ok = Get("oracle")
	assert.False(t, ok)
}

func TestLookup_UnknownBackend(t *testing.T) {
	_, err := Lookup("oracle")
	require.Error(t, err)

	var unknown *UnknownBackendError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)
	assert.Contains(t, unknown.Available, "postgres")
	assert.Contains(t, err.Error(), "Available backends")
}

func TestLookup_Empty(t *testing.T) {
	_, err := Lookup("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not specified")
}

func TestBackends_CleanupStatements(t *testing.T) {
	tests := []struct {
		name    string
		cleanup string
	}{
		{"postgres", "abort"},
		{"cockroach", "abort"},
		{"mysql", "rollback"},
		{"flightsql", ""},
		{"duckdb", "rollback"},
		{"sqlite", "rollback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := Get(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.cleanup, b.Cleanup)
			assert.NotEmpty(t, b.Setup)
			assert.Positive(t, b.Settle)
		})
	}
}

func TestCockroach_ClassifiesRefreshFailure(t *testing.T) {
	b, ok := Get("cockroach")
	require.True(t, ok)

	err := errorString("restart transaction: TransactionRetryWithProtoRefreshError: TransactionRetryError: retry txn (RETRY_SERIALIZABLE - failed preemptive refresh)")
	assert.Equal(t, "refresh_failure", string(b.Classifier().Classify(err)))
}

type errorString string

func (e errorString) Error() string { return string(e) }
