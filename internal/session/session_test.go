package session

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockConn pins a connection from a fresh sqlmock database.
func newMockConn(t *testing.T, ordinal int) (*Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	return NewConn(ordinal, conn, nil), mock
}

func TestConn_Exec(t *testing.T) {
	s, mock := newMockConn(t, 1)
	stmt := "update test set value = 11 where id = 1; -- T1"
	mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.Exec(context.Background(), stmt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, s.Ordinal())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_ExecErrorIsVerbatim(t *testing.T) {
	s, mock := newMockConn(t, 2)
	stmt := "commit; -- T2"
	backendErr := errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)")
	mock.ExpectExec(stmt).WillReturnError(backendErr)

	_, err := s.Exec(context.Background(), stmt)
	require.Error(t, err)
	assert.Equal(t, backendErr.Error(), err.Error())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_ExecRowsAffectedUnavailable(t *testing.T) {
	s, mock := newMockConn(t, 1)
	stmt := "begin; -- T1"
	mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewErrorResult(errors.New("not supported")))

	n, err := s.Exec(context.Background(), stmt)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)
}

func TestConn_Query(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		rows    [][]driver.Value
		want    []Row
	}{
		{
			name:    "id then value",
			columns: []string{"id", "value"},
			rows:    [][]driver.Value{{int64(1), int64(10)}, {int64(2), int64(20)}},
			want:    []Row{{ID: 1, Value: 10}, {ID: 2, Value: 20}},
		},
		{
			name:    "reordered upper case columns",
			columns: []string{"VALUE", "ID"},
			rows:    [][]driver.Value{{int64(11), int64(1)}},
			want:    []Row{{ID: 1, Value: 11}},
		},
		{
			name:    "text protocol bytes",
			columns: []string{"id", "value"},
			rows:    [][]driver.Value{{[]byte("3"), []byte("30")}},
			want:    []Row{{ID: 3, Value: 30}},
		},
		{
			name:    "extra columns ignored",
			columns: []string{"id", "note", "value"},
			rows:    [][]driver.Value{{int64(4), "x", int64(42)}},
			want:    []Row{{ID: 4, Value: 42}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockConn(t, 1)
			rows := sqlmock.NewRows(tt.columns)
			for _, r := range tt.rows {
				rows.AddRow(r...)
			}
			mock.ExpectQuery("select * from test").WillReturnRows(rows)

			got, err := s.Query(context.Background(), "select * from test")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestConn_QueryMissingColumns(t *testing.T) {
	s, mock := newMockConn(t, 1)
	mock.ExpectQuery("select id from test").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	_, err := s.Query(context.Background(), "select id from test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need both id and value")
}

func TestConn_QueryNull(t *testing.T) {
	s, mock := newMockConn(t, 1)
	mock.ExpectQuery("select * from test").
		WillReturnRows(sqlmock.NewRows([]string{"id", "value"}).AddRow(int64(1), nil))

	_, err := s.Query(context.Background(), "select * from test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NULL")
}

func TestToMap_LastRowWins(t *testing.T) {
	m := ToMap([]Row{{ID: 1, Value: 10}, {ID: 2, Value: 20}, {ID: 1, Value: 11}})
	assert.Equal(t, map[int64]int64{1: 11, 2: 20}, m)
}

func TestOpen(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	// One driver-level close per pinned connection.
	mock.ExpectClose()
	mock.ExpectClose()
	mock.ExpectClose()

	set, err := Open(context.Background(), db, 3, nil)
	require.NoError(t, err)

	sessions := set.Sessions()
	require.Len(t, sessions, 3)
	for i, s := range sessions {
		assert.Equal(t, i+1, s.Ordinal())
	}

	require.NoError(t, set.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_TooFewSessions(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = Open(context.Background(), db, 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 sessions")
}
