package harness

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/avantgardnerio/hermitage/internal/session"
	"github.com/avantgardnerio/hermitage/internal/testutil"
)

// newMockSessions returns n sessions, each pinned from its own sqlmock
// database so expectations are ordered per session.
func newMockSessions(t *testing.T, n int) ([]session.Session, []sqlmock.Sqlmock) {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	sessions := make([]session.Session, 0, n)
	mocks := make([]sqlmock.Sqlmock, 0, n)
	for i := 1; i <= n; i++ {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		conn, err := db.Conn(context.Background())
		require.NoError(t, err)
		sessions = append(sessions, session.NewConn(i, conn, logger))
		mocks = append(mocks, mock)
	}
	return sessions, mocks
}

func requireMet(t *testing.T, mocks []sqlmock.Sqlmock) {
	t.Helper()
	for i, mock := range mocks {
		require.NoError(t, mock.ExpectationsWereMet(), "session T%d", i+1)
	}
}

func rows(pairs ...int64) *sqlmock.Rows {
	r := sqlmock.NewRows([]string{"id", "value"})
	for i := 0; i+1 < len(pairs); i += 2 {
		r.AddRow(pairs[i], pairs[i+1])
	}
	return r
}

// recordingFixture records the fixture calls a run makes.
type recordingFixture struct {
	mu       sync.Mutex
	setups   int
	resets   []int
	setupErr error
}

func (f *recordingFixture) Setup(ctx context.Context, sessions []session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setups++
	return f.setupErr
}

func (f *recordingFixture) Reset(ctx context.Context, s session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, s.Ordinal())
	return nil
}

func (f *recordingFixture) resetOrder() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.resets...)
}

func traceKinds(trace []TraceEvent) []string {
	kinds := make([]string, len(trace))
	for i, ev := range trace {
		kinds[i] = ev.Kind
	}
	return kinds
}
